package db

import (
	"database/sql"

	"github.com/digitalpakistan/quiz-session-api/utils"
	_ "github.com/mattn/go-sqlite3"
)

type DB struct {
	*sql.DB
}

func InitDB(dbPath string) (*DB, error) {
	utils.LogStartup("Initializing database at: %s", dbPath)

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		utils.LogError("Failed to open database: %v", err)
		return nil, err
	}

	if err := db.Ping(); err != nil {
		utils.LogError("Failed to ping database: %v", err)
		return nil, err
	}

	utils.LogStartup("Database connection established")

	if err := createTables(db); err != nil {
		utils.LogError("Failed to create tables: %v", err)
		return nil, err
	}

	utils.LogStartup("Database tables initialized successfully")
	return &DB{db}, nil
}

func createTables(db *sql.DB) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS quizzes (
			id TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			time_limit_seconds INTEGER NOT NULL,
			enabled BOOLEAN NOT NULL DEFAULT 0,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE TABLE IF NOT EXISTS questions (
			id TEXT NOT NULL,
			quiz_id TEXT NOT NULL,
			position INTEGER NOT NULL,
			prompt TEXT NOT NULL,
			choices TEXT NOT NULL, -- JSON array
			correct_index INTEGER NOT NULL,
			PRIMARY KEY (quiz_id, id),
			FOREIGN KEY (quiz_id) REFERENCES quizzes(id) ON DELETE CASCADE
		)`,

		`CREATE TABLE IF NOT EXISTS attempts (
			id TEXT PRIMARY KEY,
			quiz_id TEXT NOT NULL,
			student_id TEXT NOT NULL,
			started_at DATETIME NOT NULL,
			status TEXT NOT NULL DEFAULT 'in_progress' CHECK (status IN ('in_progress', 'submitted', 'expired')),
			FOREIGN KEY (quiz_id) REFERENCES quizzes(id) ON DELETE CASCADE
		)`,

		`CREATE TABLE IF NOT EXISTS answers (
			attempt_id TEXT NOT NULL,
			question_id TEXT NOT NULL,
			choice_index INTEGER NOT NULL,
			answered_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (attempt_id, question_id),
			FOREIGN KEY (attempt_id) REFERENCES attempts(id) ON DELETE CASCADE
		)`,

		`CREATE TABLE IF NOT EXISTS results (
			id TEXT PRIMARY KEY,
			attempt_id TEXT UNIQUE NOT NULL,
			quiz_id TEXT NOT NULL,
			student_id TEXT NOT NULL,
			correct INTEGER NOT NULL,
			total INTEGER NOT NULL,
			score REAL NOT NULL,
			status TEXT NOT NULL CHECK (status IN ('submitted', 'expired')),
			completed_at DATETIME NOT NULL,
			FOREIGN KEY (attempt_id) REFERENCES attempts(id) ON DELETE CASCADE
		)`,

		`CREATE INDEX IF NOT EXISTS idx_questions_quiz_id ON questions(quiz_id)`,
		`CREATE INDEX IF NOT EXISTS idx_attempts_quiz_student ON attempts(quiz_id, student_id)`,
		`CREATE INDEX IF NOT EXISTS idx_attempts_status ON attempts(status)`,
		`CREATE INDEX IF NOT EXISTS idx_results_student_id ON results(student_id)`,
	}

	for _, query := range queries {
		if _, err := db.Exec(query); err != nil {
			return err
		}
	}

	return nil
}
