package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/digitalpakistan/quiz-session-api/db"
	"github.com/digitalpakistan/quiz-session-api/engine"
	"github.com/digitalpakistan/quiz-session-api/utils"
)

// ExpiryScheduler is the timer collaborator wired in by main; the attempt
// handlers only need the enqueue side of it.
type ExpiryScheduler interface {
	ScheduleExpiry(attemptID string, in time.Duration) error
}

// API wrapper to hold all handlers
type API struct {
	quizHandlers    *QuizHandlers
	attemptHandlers *AttemptHandlers
}

func NewAPI(database *db.DB, eng *engine.Engine, scheduler ExpiryScheduler) *API {
	return &API{
		quizHandlers:    NewQuizHandlers(database),
		attemptHandlers: NewAttemptHandlers(database, eng, scheduler),
	}
}

func NewRouter(database *db.DB, eng *engine.Engine, scheduler ExpiryScheduler) http.Handler {
	api := NewAPI(database, eng, scheduler)

	mux := http.NewServeMux()

	// Health check
	mux.HandleFunc("/health", healthCheck)

	// Quiz routes
	mux.HandleFunc("/quizzes", loggingMiddleware(api.quizHandlers.HandleQuizzes))
	mux.HandleFunc("/quizzes/", loggingMiddleware(func(w http.ResponseWriter, r *http.Request) {
		path := strings.TrimPrefix(r.URL.Path, "/quizzes/")
		parts := strings.Split(path, "/")

		switch {
		case len(parts) == 1 && parts[0] != "":
			api.quizHandlers.HandleQuizByID(w, r, parts[0])
		case len(parts) == 2 && (parts[1] == "enable" || parts[1] == "disable"):
			api.quizHandlers.HandleQuizEnable(w, r, parts[0], parts[1] == "enable")
		default:
			http.Error(w, "Not found", http.StatusNotFound)
		}
	}))

	// Attempt routes
	mux.HandleFunc("/attempts", loggingMiddleware(api.attemptHandlers.HandleAttempts))
	mux.HandleFunc("/attempts/", loggingMiddleware(func(w http.ResponseWriter, r *http.Request) {
		path := strings.TrimPrefix(r.URL.Path, "/attempts/")
		parts := strings.Split(path, "/")

		switch {
		case len(parts) == 1 && parts[0] != "":
			api.attemptHandlers.HandleAttemptByID(w, r, parts[0])
		case len(parts) == 2 && parts[1] == "answers":
			api.attemptHandlers.HandleAnswer(w, r, parts[0])
		case len(parts) == 2 && parts[1] == "time":
			api.attemptHandlers.HandleRemainingTime(w, r, parts[0])
		case len(parts) == 2 && parts[1] == "submit":
			api.attemptHandlers.HandleSubmit(w, r, parts[0])
		default:
			http.Error(w, "Not found", http.StatusNotFound)
		}
	}))

	// Result routes
	mux.HandleFunc("/results", loggingMiddleware(api.attemptHandlers.HandleResults))

	return corsMiddleware(mux)
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Student-ID")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func healthCheck(w http.ResponseWriter, r *http.Request) {
	utils.LogHTTP("Health check requested")
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status": "ok"}`))
}
