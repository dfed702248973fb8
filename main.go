package main

import (
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/digitalpakistan/quiz-session-api/db"
	"github.com/digitalpakistan/quiz-session-api/engine"
	"github.com/digitalpakistan/quiz-session-api/handlers"
	"github.com/digitalpakistan/quiz-session-api/jobs"
	"github.com/digitalpakistan/quiz-session-api/utils"
)

func main() {
	// Set up logging with timestamps
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)
	utils.LogStartup("Quiz Session API starting...")

	if err := godotenv.Load(); err != nil {
		utils.LogConfig("No .env file found, using environment as-is")
	}

	port := utils.GetEnvOrDefault("PORT", "8044")
	utils.LogConfig("Using port: %s", port)

	dbPath := utils.GetEnvOrDefault("DB_PATH", "./quizzes.db")
	utils.LogConfig("Using database path: %s", dbPath)

	redisURL := utils.GetEnvOrDefault("REDIS_URL", "redis://localhost:6379")
	utils.LogConfig("Using redis at: %s", redisURL)

	// Initialize database
	utils.LogStartup("Initializing database connection...")
	database, err := db.InitDB(dbPath)
	if err != nil {
		log.Fatalf("[FATAL] Failed to initialize database: %v", err)
	}

	// The engine journals through the database and emits results into it;
	// it holds no backend knowledge beyond those two interfaces.
	clock := engine.SystemClock()
	eng := engine.New(clock, database, database)

	scheduler := jobs.NewScheduler(redisURL, eng, clock)

	restoreAttempts(database, eng, scheduler, clock)

	if err := scheduler.Start(); err != nil {
		log.Fatalf("[FATAL] Failed to start expiry scheduler: %v", err)
	}

	// Set up graceful shutdown
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-c
		utils.LogShutdown("Received shutdown signal")
		scheduler.Stop()
		if err := database.Close(); err != nil {
			utils.LogError("Error closing database: %v", err)
		} else {
			utils.LogShutdown("Database connection closed successfully")
		}
		os.Exit(0)
	}()

	// Setup API routes
	utils.LogStartup("Setting up API routes...")
	router := handlers.NewRouter(database, eng, scheduler)

	// Create server with timeouts
	server := &http.Server{
		Addr:         ":" + port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	utils.LogStartup("Starting HTTP server on port %s...", port)

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("[FATAL] Server failed to start: %v", err)
	}
}

// restoreAttempts re-registers in-progress attempts from the last run and
// puts their deadlines back on the queue. Attempts already past their
// deadline get an immediate expiry task.
func restoreAttempts(database *db.DB, eng *engine.Engine, scheduler *jobs.Scheduler, clock engine.Clock) {
	attempts, err := database.ListInProgressAttempts()
	if err != nil {
		utils.LogError("Failed to load in-progress attempts: %v", err)
		return
	}

	restored := 0
	for i := range attempts {
		attempt := &attempts[i]

		quiz, err := database.GetQuizByID(attempt.QuizID)
		if err != nil {
			utils.LogError("Failed to load quiz %s for attempt %s: %v", attempt.QuizID, attempt.ID, err)
			continue
		}

		if err := eng.Restore(attempt, quiz); err != nil {
			utils.LogError("Failed to restore attempt %s: %v", attempt.ID, err)
			continue
		}

		remaining := attempt.StartedAt.Add(quiz.TimeLimit).Sub(clock.Now())
		if err := scheduler.ScheduleExpiry(attempt.ID, remaining); err != nil {
			utils.LogError("Failed to reschedule expiry for attempt %s: %v", attempt.ID, err)
		}
		restored++
	}

	if restored > 0 {
		utils.LogStartup("Restored %d in-progress attempts", restored)
	}
}
