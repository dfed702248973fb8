package handlers

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/digitalpakistan/quiz-session-api/db"
	"github.com/digitalpakistan/quiz-session-api/engine"
	"github.com/digitalpakistan/quiz-session-api/models"
	"github.com/digitalpakistan/quiz-session-api/utils"
)

type AttemptHandlers struct {
	db        *db.DB
	engine    *engine.Engine
	scheduler ExpiryScheduler
}

func NewAttemptHandlers(database *db.DB, eng *engine.Engine, scheduler ExpiryScheduler) *AttemptHandlers {
	return &AttemptHandlers{
		db:        database,
		engine:    eng,
		scheduler: scheduler,
	}
}

func (ah *AttemptHandlers) HandleAttempts(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		ah.startAttempt(w, r)
	default:
		utils.LogHTTP("Method %s not allowed for /attempts", r.Method)
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (ah *AttemptHandlers) startAttempt(w http.ResponseWriter, r *http.Request) {
	studentID := studentIDFromRequest(r)
	if studentID == "" {
		http.Error(w, "Missing X-Student-ID header", http.StatusBadRequest)
		return
	}

	var req models.StartAttemptRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.LogHTTP("Invalid JSON in start request: %v", err)
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}

	if req.QuizID == "" {
		http.Error(w, "Missing quiz_id", http.StatusBadRequest)
		return
	}

	quiz, err := ah.db.GetQuizByID(req.QuizID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			http.Error(w, "Quiz not found", http.StatusNotFound)
			return
		}
		utils.LogError("Failed to load quiz %s: %v", req.QuizID, err)
		http.Error(w, "Failed to load quiz", http.StatusInternalServerError)
		return
	}

	attempt, err := ah.engine.Start(quiz, studentID)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	// Queue failures are non-fatal: the periodic sweep expires anything
	// that never got a deadline task.
	if err := ah.scheduler.ScheduleExpiry(attempt.ID, quiz.TimeLimit); err != nil {
		utils.LogError("Failed to schedule expiry for attempt %s: %v", attempt.ID, err)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(attempt)
}

func (ah *AttemptHandlers) HandleAttemptByID(w http.ResponseWriter, r *http.Request, attemptID string) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	attempt, err := ah.engine.Attempt(attemptID)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(attempt)
}

func (ah *AttemptHandlers) HandleAnswer(w http.ResponseWriter, r *http.Request, attemptID string) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req models.AnswerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.LogHTTP("Invalid JSON in answer request: %v", err)
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}

	if req.QuestionID == "" {
		http.Error(w, "Missing question_id", http.StatusBadRequest)
		return
	}

	if err := ah.engine.RecordAnswer(attemptID, req.QuestionID, req.ChoiceIndex); err != nil {
		writeEngineError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (ah *AttemptHandlers) HandleRemainingTime(w http.ResponseWriter, r *http.Request, attemptID string) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	remaining, err := ah.engine.RemainingTime(attemptID)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"attempt_id":        attemptID,
		"remaining_seconds": int(remaining.Seconds()),
	})
}

func (ah *AttemptHandlers) HandleSubmit(w http.ResponseWriter, r *http.Request, attemptID string) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	result, err := ah.engine.Submit(attemptID)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	utils.LogHTTP("Attempt %s submitted: %d/%d correct (%.1f%%)",
		attemptID, result.Correct, result.Total, result.Score)
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(result)
}

func (ah *AttemptHandlers) HandleResults(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	results, err := ah.db.ListResults(r.URL.Query().Get("student_id"))
	if err != nil {
		utils.LogError("Failed to list results: %v", err)
		http.Error(w, "Failed to list results", http.StatusInternalServerError)
		return
	}

	if results == nil {
		results = []models.Result{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(results)
}

// writeEngineError maps engine error kinds to HTTP status codes.
func writeEngineError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, engine.ErrAttemptNotFound), errors.Is(err, engine.ErrQuestionNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, engine.ErrAttemptConflict), errors.Is(err, engine.ErrAttemptFinalized):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, engine.ErrQuizDisabled):
		http.Error(w, err.Error(), http.StatusForbidden)
	case errors.Is(err, engine.ErrDeadlineExceeded):
		http.Error(w, err.Error(), http.StatusGone)
	case errors.Is(err, engine.ErrChoiceOutOfRange):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		utils.LogError("Unexpected engine error: %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}
