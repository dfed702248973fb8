package db

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/digitalpakistan/quiz-session-api/models"
	"github.com/digitalpakistan/quiz-session-api/utils"
)

// CreateQuiz stores a pre-parsed quiz. Quizzes start disabled; a teacher
// enables them explicitly. A zero time limit defaults to one minute per
// question.
func (db *DB) CreateQuiz(req models.QuizRequest) (*models.Quiz, error) {
	utils.LogDB("Creating quiz '%s' with %d questions", req.Title, len(req.Questions))
	start := time.Now()

	timeLimit := time.Duration(req.TimeLimitSeconds) * time.Second
	if timeLimit == 0 {
		timeLimit = time.Duration(len(req.Questions)) * time.Minute
	}

	quiz := &models.Quiz{
		ID:        uuid.NewString(),
		Title:     req.Title,
		TimeLimit: timeLimit,
		Enabled:   false,
		CreatedAt: time.Now().UTC(),
	}

	tx, err := db.Begin()
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
        INSERT INTO quizzes (id, title, time_limit_seconds, enabled, created_at)
        VALUES (?, ?, ?, ?, ?)
    `, quiz.ID, quiz.Title, int(quiz.TimeLimit.Seconds()), quiz.Enabled, quiz.CreatedAt)
	if err != nil {
		utils.LogError("Failed to insert quiz: %v", err)
		return nil, err
	}

	for i, q := range req.Questions {
		question := models.Question{
			ID:           uuid.NewString(),
			Prompt:       q.Prompt,
			Choices:      q.Choices,
			CorrectIndex: q.CorrectIndex,
		}

		choicesJSON, err := json.Marshal(question.Choices)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal choices: %w", err)
		}

		_, err = tx.Exec(`
            INSERT INTO questions (id, quiz_id, position, prompt, choices, correct_index)
            VALUES (?, ?, ?, ?, ?, ?)
        `, question.ID, quiz.ID, i, question.Prompt, string(choicesJSON), question.CorrectIndex)
		if err != nil {
			utils.LogError("Failed to insert question %d: %v", i+1, err)
			return nil, err
		}

		quiz.Questions = append(quiz.Questions, question)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit quiz: %w", err)
	}

	utils.LogDB("Quiz %s created in %v", quiz.ID, time.Since(start))
	return quiz, nil
}

// GetQuizByID loads a quiz and its questions in order.
func (db *DB) GetQuizByID(id string) (*models.Quiz, error) {
	utils.LogDB("Executing query: GetQuizByID(%s)", id)

	var quiz models.Quiz
	var timeLimitSeconds int

	err := db.QueryRow(`
        SELECT id, title, time_limit_seconds, enabled, created_at
        FROM quizzes WHERE id = ?
    `, id).Scan(&quiz.ID, &quiz.Title, &timeLimitSeconds, &quiz.Enabled, &quiz.CreatedAt)
	if err != nil {
		if err != sql.ErrNoRows {
			utils.LogError("GetQuizByID(%s) failed: %v", id, err)
		}
		return nil, err
	}
	quiz.TimeLimit = time.Duration(timeLimitSeconds) * time.Second

	rows, err := db.Query(`
        SELECT id, prompt, choices, correct_index
        FROM questions WHERE quiz_id = ?
        ORDER BY position
    `, id)
	if err != nil {
		utils.LogError("Failed to load questions for quiz %s: %v", id, err)
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var q models.Question
		var choicesJSON string

		if err := rows.Scan(&q.ID, &q.Prompt, &choicesJSON, &q.CorrectIndex); err != nil {
			utils.LogError("Failed to scan question row: %v", err)
			return nil, err
		}

		if err := json.Unmarshal([]byte(choicesJSON), &q.Choices); err != nil {
			utils.LogError("Failed to parse choices for question %s: %v", q.ID, err)
			return nil, err
		}

		quiz.Questions = append(quiz.Questions, q)
	}

	return &quiz, rows.Err()
}

// ListQuizzes returns quiz summaries newest first, without question bodies.
// Disabled quizzes are included only when includeDisabled is set (the
// teacher view).
func (db *DB) ListQuizzes(includeDisabled bool) ([]models.QuizView, error) {
	utils.LogDB("Listing quizzes (includeDisabled: %t)", includeDisabled)
	start := time.Now()

	query := `
        SELECT q.id, q.title, q.time_limit_seconds, q.enabled, q.created_at,
               COUNT(que.id) as question_count
        FROM quizzes q
        LEFT JOIN questions que ON que.quiz_id = q.id
    `
	if !includeDisabled {
		query += ` WHERE q.enabled = 1`
	}
	query += ` GROUP BY q.id ORDER BY q.created_at DESC`

	rows, err := db.Query(query)
	if err != nil {
		utils.LogError("ListQuizzes query failed: %v", err)
		return nil, err
	}
	defer rows.Close()

	var quizzes []models.QuizView
	for rows.Next() {
		var view models.QuizView

		err := rows.Scan(&view.ID, &view.Title, &view.TimeLimitSeconds, &view.Enabled, &view.CreatedAt, &view.QuestionCount)
		if err != nil {
			utils.LogError("Failed to scan quiz row: %v", err)
			return nil, err
		}

		quizzes = append(quizzes, view)
	}

	utils.LogDB("Listed %d quizzes in %v", len(quizzes), time.Since(start))
	return quizzes, rows.Err()
}

// SetQuizEnabled toggles the teacher-controlled enabled flag.
func (db *DB) SetQuizEnabled(id string, enabled bool) error {
	utils.LogDB("Setting quiz %s enabled=%t", id, enabled)

	result, err := db.Exec(`UPDATE quizzes SET enabled = ? WHERE id = ?`, enabled, id)
	if err != nil {
		utils.LogError("SetQuizEnabled(%s) failed: %v", id, err)
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return sql.ErrNoRows
	}

	return nil
}
