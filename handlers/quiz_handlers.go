package handlers

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/digitalpakistan/quiz-session-api/db"
	"github.com/digitalpakistan/quiz-session-api/models"
	"github.com/digitalpakistan/quiz-session-api/utils"
)

type QuizHandlers struct {
	db *db.DB
}

func NewQuizHandlers(database *db.DB) *QuizHandlers {
	return &QuizHandlers{db: database}
}

func (qh *QuizHandlers) HandleQuizzes(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		qh.listQuizzes(w, r)
	case http.MethodPost:
		qh.createQuiz(w, r)
	default:
		utils.LogHTTP("Method %s not allowed for /quizzes", r.Method)
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// createQuiz imports a pre-parsed quiz. Whatever produced the question set
// (document upload, manual entry) is not this service's concern.
func (qh *QuizHandlers) createQuiz(w http.ResponseWriter, r *http.Request) {
	var req models.QuizRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.LogHTTP("Invalid JSON in quiz request: %v", err)
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}

	if err := utils.ValidateQuizRequest(&req); err != nil {
		utils.LogHTTP("Quiz validation failed: %v", err)
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	quiz, err := qh.db.CreateQuiz(req)
	if err != nil {
		utils.LogError("Failed to create quiz: %v", err)
		http.Error(w, "Failed to create quiz", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(quiz.View())
}

func (qh *QuizHandlers) listQuizzes(w http.ResponseWriter, r *http.Request) {
	includeDisabled := r.URL.Query().Get("all") == "1"

	quizzes, err := qh.db.ListQuizzes(includeDisabled)
	if err != nil {
		utils.LogError("Failed to list quizzes: %v", err)
		http.Error(w, "Failed to list quizzes", http.StatusInternalServerError)
		return
	}

	if quizzes == nil {
		quizzes = []models.QuizView{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(quizzes)
}

func (qh *QuizHandlers) HandleQuizByID(w http.ResponseWriter, r *http.Request, quizID string) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	quiz, err := qh.db.GetQuizByID(quizID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			http.Error(w, "Quiz not found", http.StatusNotFound)
			return
		}
		utils.LogError("Failed to get quiz %s: %v", quizID, err)
		http.Error(w, "Failed to get quiz", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(quiz.View())
}

// HandleQuizEnable toggles the teacher-controlled flag that gates Start.
func (qh *QuizHandlers) HandleQuizEnable(w http.ResponseWriter, r *http.Request, quizID string, enabled bool) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if err := qh.db.SetQuizEnabled(quizID, enabled); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			http.Error(w, "Quiz not found", http.StatusNotFound)
			return
		}
		utils.LogError("Failed to toggle quiz %s: %v", quizID, err)
		http.Error(w, "Failed to update quiz", http.StatusInternalServerError)
		return
	}

	utils.LogHTTP("Quiz %s enabled=%t", quizID, enabled)
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{"id": quizID, "enabled": enabled})
}
