package models

import "time"

const (
	MinChoices = 2
	MaxChoices = 6
)

// Question is one multiple-choice question inside a quiz. CorrectIndex is
// grading-only and must never be serialized to a student-facing view.
type Question struct {
	ID           string   `json:"id"`
	Prompt       string   `json:"prompt"`
	Choices      []string `json:"choices"`
	CorrectIndex int      `json:"correct_index"`
}

// Quiz is a published question set. It is immutable while attempts against
// it are in progress; only the enabled flag is toggled by a teacher.
type Quiz struct {
	ID        string        `json:"id"`
	Title     string        `json:"title"`
	Questions []Question    `json:"questions"`
	TimeLimit time.Duration `json:"-"`
	Enabled   bool          `json:"enabled"`
	CreatedAt time.Time     `json:"created_at"`
}

// Question returns the question with the given ID, or nil if the quiz does
// not contain it.
func (q *Quiz) Question(questionID string) *Question {
	for i := range q.Questions {
		if q.Questions[i].ID == questionID {
			return &q.Questions[i]
		}
	}
	return nil
}

// QuizRequest is the payload for importing a pre-parsed quiz. A zero
// TimeLimitSeconds means one minute per question.
type QuizRequest struct {
	Title            string            `json:"title"`
	TimeLimitSeconds int               `json:"time_limit_seconds"`
	Questions        []QuestionRequest `json:"questions"`
}

type QuestionRequest struct {
	Prompt       string   `json:"prompt"`
	Choices      []string `json:"choices"`
	CorrectIndex int      `json:"correct_index"`
}

// QuestionView is the student-facing shape of a question: no correct index.
type QuestionView struct {
	ID      string   `json:"id"`
	Prompt  string   `json:"prompt"`
	Choices []string `json:"choices"`
}

type QuizView struct {
	ID               string         `json:"id"`
	Title            string         `json:"title"`
	TimeLimitSeconds int            `json:"time_limit_seconds"`
	Enabled          bool           `json:"enabled"`
	QuestionCount    int            `json:"question_count"`
	Questions        []QuestionView `json:"questions"`
	CreatedAt        time.Time      `json:"created_at"`
}

// View strips grading data from the quiz for student consumption.
func (q *Quiz) View() *QuizView {
	view := &QuizView{
		ID:               q.ID,
		Title:            q.Title,
		TimeLimitSeconds: int(q.TimeLimit.Seconds()),
		Enabled:          q.Enabled,
		QuestionCount:    len(q.Questions),
		Questions:        make([]QuestionView, 0, len(q.Questions)),
		CreatedAt:        q.CreatedAt,
	}
	for _, question := range q.Questions {
		view.Questions = append(view.Questions, QuestionView{
			ID:      question.ID,
			Prompt:  question.Prompt,
			Choices: question.Choices,
		})
	}
	return view
}
