package utils

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/digitalpakistan/quiz-session-api/models"
)

// Environment utilities
func GetEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func GetEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func GetEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

// Validation utilities
func ValidateQuizRequest(req *models.QuizRequest) error {
	if strings.TrimSpace(req.Title) == "" {
		return fmt.Errorf("title is required")
	}

	if len(req.Questions) == 0 {
		return fmt.Errorf("at least one question is required")
	}

	if req.TimeLimitSeconds < 0 {
		return fmt.Errorf("time limit cannot be negative")
	}

	for i, q := range req.Questions {
		if strings.TrimSpace(q.Prompt) == "" {
			return fmt.Errorf("question %d: prompt is required", i+1)
		}

		if len(q.Choices) < models.MinChoices || len(q.Choices) > models.MaxChoices {
			return fmt.Errorf("question %d: must have between %d and %d choices, got %d",
				i+1, models.MinChoices, models.MaxChoices, len(q.Choices))
		}

		for j, choice := range q.Choices {
			if strings.TrimSpace(choice) == "" {
				return fmt.Errorf("question %d: choice %d is empty", i+1, j+1)
			}
		}

		if q.CorrectIndex < 0 || q.CorrectIndex >= len(q.Choices) {
			return fmt.Errorf("question %d: correct index %d is out of range", i+1, q.CorrectIndex)
		}
	}

	return nil
}
