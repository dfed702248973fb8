package utils_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/digitalpakistan/quiz-session-api/models"
	"github.com/digitalpakistan/quiz-session-api/utils"
)

func TestGetEnvOrDefault(t *testing.T) {
	t.Setenv("QSA_TEST_KEY", "set")
	require.Equal(t, "set", utils.GetEnvOrDefault("QSA_TEST_KEY", "fallback"))
	require.Equal(t, "fallback", utils.GetEnvOrDefault("QSA_TEST_MISSING", "fallback"))
}

func TestGetEnvInt(t *testing.T) {
	t.Setenv("QSA_TEST_INT", "42")
	require.Equal(t, 42, utils.GetEnvInt("QSA_TEST_INT", 7))

	t.Setenv("QSA_TEST_BAD_INT", "not a number")
	require.Equal(t, 7, utils.GetEnvInt("QSA_TEST_BAD_INT", 7))
}

func TestGetEnvDuration(t *testing.T) {
	t.Setenv("QSA_TEST_DUR", "90s")
	require.Equal(t, 90*time.Second, utils.GetEnvDuration("QSA_TEST_DUR", time.Minute))
	require.Equal(t, time.Minute, utils.GetEnvDuration("QSA_TEST_NO_DUR", time.Minute))
}

func TestValidateQuizRequest(t *testing.T) {
	valid := models.QuizRequest{
		Title:            "Valid",
		TimeLimitSeconds: 60,
		Questions: []models.QuestionRequest{
			{Prompt: "?", Choices: []string{"a", "b", "c", "d", "e", "f"}, CorrectIndex: 5},
		},
	}
	require.NoError(t, utils.ValidateQuizRequest(&valid))

	cases := []struct {
		name   string
		mutate func(*models.QuizRequest)
	}{
		{"blank title", func(r *models.QuizRequest) { r.Title = "  " }},
		{"negative time limit", func(r *models.QuizRequest) { r.TimeLimitSeconds = -1 }},
		{"no questions", func(r *models.QuizRequest) { r.Questions = nil }},
		{"blank prompt", func(r *models.QuizRequest) { r.Questions[0].Prompt = "" }},
		{"too many choices", func(r *models.QuizRequest) {
			r.Questions[0].Choices = append(r.Questions[0].Choices, "g")
		}},
		{"single choice", func(r *models.QuizRequest) {
			r.Questions[0].Choices = []string{"only"}
			r.Questions[0].CorrectIndex = 0
		}},
		{"empty choice", func(r *models.QuizRequest) { r.Questions[0].Choices[2] = " " }},
		{"negative correct index", func(r *models.QuizRequest) { r.Questions[0].CorrectIndex = -1 }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := models.QuizRequest{
				Title:            "Valid",
				TimeLimitSeconds: 60,
				Questions: []models.QuestionRequest{
					{Prompt: "?", Choices: []string{"a", "b", "c", "d", "e", "f"}, CorrectIndex: 5},
				},
			}
			tc.mutate(&req)
			require.Error(t, utils.ValidateQuizRequest(&req))
		})
	}
}
