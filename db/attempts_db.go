package db

import (
	"time"

	"github.com/digitalpakistan/quiz-session-api/models"
	"github.com/digitalpakistan/quiz-session-api/utils"
)

// SaveAttempt inserts a freshly started attempt.
func (db *DB) SaveAttempt(attempt *models.Attempt) error {
	utils.LogDB("Saving attempt %s: quiz %s, student %s", attempt.ID, attempt.QuizID, attempt.StudentID)

	_, err := db.Exec(`
        INSERT INTO attempts (id, quiz_id, student_id, started_at, status)
        VALUES (?, ?, ?, ?, ?)
    `, attempt.ID, attempt.QuizID, attempt.StudentID, attempt.StartedAt.UTC(), string(attempt.Status))
	if err != nil {
		utils.LogError("SaveAttempt(%s) failed: %v", attempt.ID, err)
	}
	return err
}

// SaveAnswer upserts one recorded answer.
func (db *DB) SaveAnswer(attemptID, questionID string, choiceIndex int) error {
	_, err := db.Exec(`
        INSERT INTO answers (attempt_id, question_id, choice_index)
        VALUES (?, ?, ?)
        ON CONFLICT (attempt_id, question_id)
        DO UPDATE SET choice_index = excluded.choice_index, answered_at = CURRENT_TIMESTAMP
    `, attemptID, questionID, choiceIndex)
	if err != nil {
		utils.LogError("SaveAnswer(%s, %s) failed: %v", attemptID, questionID, err)
	}
	return err
}

// MarkFinalized records the terminal status of an attempt.
func (db *DB) MarkFinalized(attemptID string, status models.AttemptStatus) error {
	utils.LogDB("Marking attempt %s as %s", attemptID, status)

	_, err := db.Exec(`UPDATE attempts SET status = ? WHERE id = ?`, string(status), attemptID)
	if err != nil {
		utils.LogError("MarkFinalized(%s) failed: %v", attemptID, err)
	}
	return err
}

// SaveResult persists the immutable graded record.
func (db *DB) SaveResult(result *models.Result) error {
	utils.LogDB("Saving result %s: attempt %s, %d/%d (%.1f%%)",
		result.ID, result.AttemptID, result.Correct, result.Total, result.Score)

	_, err := db.Exec(`
        INSERT INTO results (id, attempt_id, quiz_id, student_id, correct, total, score, status, completed_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
    `, result.ID, result.AttemptID, result.QuizID, result.StudentID,
		result.Correct, result.Total, result.Score, string(result.Status), result.CompletedAt.UTC())
	if err != nil {
		utils.LogError("SaveResult(%s) failed: %v", result.ID, err)
	}
	return err
}

// ListInProgressAttempts loads every non-terminal attempt with its recorded
// answers, for engine restore at startup.
func (db *DB) ListInProgressAttempts() ([]models.Attempt, error) {
	utils.LogDB("Loading in-progress attempts")
	start := time.Now()

	rows, err := db.Query(`
        SELECT id, quiz_id, student_id, started_at, status
        FROM attempts WHERE status = 'in_progress'
    `)
	if err != nil {
		utils.LogError("ListInProgressAttempts query failed: %v", err)
		return nil, err
	}
	defer rows.Close()

	var attempts []models.Attempt
	for rows.Next() {
		var attempt models.Attempt
		var status string

		err := rows.Scan(&attempt.ID, &attempt.QuizID, &attempt.StudentID, &attempt.StartedAt, &status)
		if err != nil {
			utils.LogError("Failed to scan attempt row: %v", err)
			return nil, err
		}

		attempt.Status = models.AttemptStatus(status)
		attempt.Answers = make(map[string]int)
		attempts = append(attempts, attempt)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range attempts {
		if err := db.loadAnswers(&attempts[i]); err != nil {
			return nil, err
		}
	}

	utils.LogDB("Loaded %d in-progress attempts in %v", len(attempts), time.Since(start))
	return attempts, nil
}

func (db *DB) loadAnswers(attempt *models.Attempt) error {
	rows, err := db.Query(`
        SELECT question_id, choice_index FROM answers WHERE attempt_id = ?
    `, attempt.ID)
	if err != nil {
		utils.LogError("Failed to load answers for attempt %s: %v", attempt.ID, err)
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var questionID string
		var choiceIndex int

		if err := rows.Scan(&questionID, &choiceIndex); err != nil {
			utils.LogError("Failed to scan answer row: %v", err)
			return err
		}
		attempt.Answers[questionID] = choiceIndex
	}
	return rows.Err()
}

// ListResults returns graded results newest first, optionally filtered by
// student. The external reporting collaborator consumes these as-is.
func (db *DB) ListResults(studentID string) ([]models.Result, error) {
	utils.LogDB("Listing results (student: %q)", studentID)
	start := time.Now()

	query := `
        SELECT id, attempt_id, quiz_id, student_id, correct, total, score, status, completed_at
        FROM results
    `
	var args []interface{}
	if studentID != "" {
		query += ` WHERE student_id = ?`
		args = append(args, studentID)
	}
	query += ` ORDER BY completed_at DESC`

	rows, err := db.Query(query, args...)
	if err != nil {
		utils.LogError("ListResults query failed: %v", err)
		return nil, err
	}
	defer rows.Close()

	var results []models.Result
	for rows.Next() {
		var result models.Result
		var status string

		err := rows.Scan(&result.ID, &result.AttemptID, &result.QuizID, &result.StudentID,
			&result.Correct, &result.Total, &result.Score, &status, &result.CompletedAt)
		if err != nil {
			utils.LogError("Failed to scan result row: %v", err)
			return nil, err
		}

		result.Status = models.AttemptStatus(status)
		results = append(results, result)
	}

	utils.LogDB("Listed %d results in %v", len(results), time.Since(start))
	return results, rows.Err()
}
