package models

import "time"

// AttemptStatus enumerates attempt lifecycle states.
type AttemptStatus string

const (
	AttemptInProgress AttemptStatus = "in_progress"
	AttemptSubmitted  AttemptStatus = "submitted"
	AttemptExpired    AttemptStatus = "expired"
)

// Terminal reports whether no further transition is permitted.
func (s AttemptStatus) Terminal() bool {
	return s == AttemptSubmitted || s == AttemptExpired
}

// Attempt is one student's run through a quiz. Answers maps question ID to
// the selected choice index; unanswered questions have no entry.
type Attempt struct {
	ID        string         `json:"id"`
	QuizID    string         `json:"quiz_id"`
	StudentID string         `json:"student_id"`
	StartedAt time.Time      `json:"started_at"`
	Answers   map[string]int `json:"answers"`
	Status    AttemptStatus  `json:"status"`
}

// Result is the immutable graded record of a finalized attempt. Score is a
// percentage in [0, 100].
type Result struct {
	ID          string        `json:"id"`
	AttemptID   string        `json:"attempt_id"`
	QuizID      string        `json:"quiz_id"`
	StudentID   string        `json:"student_id"`
	Correct     int           `json:"correct"`
	Total       int           `json:"total"`
	Score       float64       `json:"score"`
	Status      AttemptStatus `json:"status"`
	CompletedAt time.Time     `json:"completed_at"`
}

// AnswerRequest records or replaces one answer on an attempt.
type AnswerRequest struct {
	QuestionID  string `json:"question_id"`
	ChoiceIndex int    `json:"choice_index"`
}

// StartAttemptRequest opens an attempt against a quiz.
type StartAttemptRequest struct {
	QuizID string `json:"quiz_id"`
}
