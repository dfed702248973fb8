package handlers_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/digitalpakistan/quiz-session-api/db"
	"github.com/digitalpakistan/quiz-session-api/engine"
	"github.com/digitalpakistan/quiz-session-api/handlers"
	"github.com/digitalpakistan/quiz-session-api/models"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// stubScheduler records expiry scheduling without a queue behind it.
type stubScheduler struct {
	mu        sync.Mutex
	scheduled map[string]time.Duration
}

func newStubScheduler() *stubScheduler {
	return &stubScheduler{scheduled: make(map[string]time.Duration)}
}

func (s *stubScheduler) ScheduleExpiry(attemptID string, in time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scheduled[attemptID] = in
	return nil
}

type testServer struct {
	server    *httptest.Server
	clock     *fakeClock
	scheduler *stubScheduler
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	database, err := db.InitDB(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })

	clock := &fakeClock{now: time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)}
	eng := engine.New(clock, database, database)
	scheduler := newStubScheduler()

	server := httptest.NewServer(handlers.NewRouter(database, eng, scheduler))
	t.Cleanup(server.Close)

	return &testServer{server: server, clock: clock, scheduler: scheduler}
}

func (ts *testServer) do(t *testing.T, method, path, studentID string, body interface{}) *http.Response {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req, err := http.NewRequest(method, ts.server.URL+path, &buf)
	require.NoError(t, err)
	if studentID != "" {
		req.Header.Set("X-Student-ID", studentID)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func decode(t *testing.T, resp *http.Response, v interface{}) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

func (ts *testServer) createEnabledQuiz(t *testing.T) models.QuizView {
	t.Helper()

	req := models.QuizRequest{
		Title:            "Computer Basics",
		TimeLimitSeconds: 60,
		Questions: []models.QuestionRequest{
			{Prompt: "2 ** 3 in Python?", Choices: []string{"6", "8", "9"}, CorrectIndex: 1},
			{Prompt: "Keyword to define a function?", Choices: []string{"func", "def"}, CorrectIndex: 1},
			{Prompt: "Result type of 3 / 2?", Choices: []string{"int", "float"}, CorrectIndex: 1},
		},
	}

	resp := ts.do(t, http.MethodPost, "/quizzes", "", req)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var quiz models.QuizView
	decode(t, resp, &quiz)

	resp = ts.do(t, http.MethodPost, "/quizzes/"+quiz.ID+"/enable", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	return quiz
}

func TestHealthCheck(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do(t, http.MethodGet, "/health", "", nil)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestCreateQuizValidation(t *testing.T) {
	ts := newTestServer(t)

	cases := []struct {
		name string
		req  models.QuizRequest
	}{
		{"missing title", models.QuizRequest{
			Questions: []models.QuestionRequest{{Prompt: "?", Choices: []string{"a", "b"}}},
		}},
		{"no questions", models.QuizRequest{Title: "Empty"}},
		{"too few choices", models.QuizRequest{
			Title:     "Bad",
			Questions: []models.QuestionRequest{{Prompt: "?", Choices: []string{"a"}}},
		}},
		{"correct index out of range", models.QuizRequest{
			Title:     "Bad",
			Questions: []models.QuestionRequest{{Prompt: "?", Choices: []string{"a", "b"}, CorrectIndex: 2}},
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp := ts.do(t, http.MethodPost, "/quizzes", "", tc.req)
			defer resp.Body.Close()
			require.Equal(t, http.StatusBadRequest, resp.StatusCode)
		})
	}
}

func TestQuizViewHidesCorrectIndexes(t *testing.T) {
	ts := newTestServer(t)
	quiz := ts.createEnabledQuiz(t)

	resp := ts.do(t, http.MethodGet, "/quizzes/"+quiz.ID, "student-1", nil)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var raw map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&raw))

	questions, ok := raw["questions"].([]interface{})
	require.True(t, ok)
	require.Len(t, questions, 3)
	for _, q := range questions {
		require.NotContains(t, q.(map[string]interface{}), "correct_index")
	}
}

func TestStartRequiresEnabledQuiz(t *testing.T) {
	ts := newTestServer(t)

	req := models.QuizRequest{
		Title:     "Draft",
		Questions: []models.QuestionRequest{{Prompt: "?", Choices: []string{"a", "b"}, CorrectIndex: 0}},
	}
	resp := ts.do(t, http.MethodPost, "/quizzes", "", req)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var quiz models.QuizView
	decode(t, resp, &quiz)

	resp = ts.do(t, http.MethodPost, "/attempts", "student-1", models.StartAttemptRequest{QuizID: quiz.ID})
	defer resp.Body.Close()
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestStartRequiresStudentIdentity(t *testing.T) {
	ts := newTestServer(t)
	quiz := ts.createEnabledQuiz(t)

	resp := ts.do(t, http.MethodPost, "/attempts", "", models.StartAttemptRequest{QuizID: quiz.ID})
	defer resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAttemptLifecycle(t *testing.T) {
	ts := newTestServer(t)
	quiz := ts.createEnabledQuiz(t)

	// Start
	resp := ts.do(t, http.MethodPost, "/attempts", "student-1", models.StartAttemptRequest{QuizID: quiz.ID})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var attempt models.Attempt
	decode(t, resp, &attempt)
	require.Equal(t, models.AttemptInProgress, attempt.Status)
	require.Equal(t, "student-1", attempt.StudentID)

	// The deadline task was scheduled for the quiz time limit.
	require.Equal(t, 60*time.Second, ts.scheduler.scheduled[attempt.ID])

	// A second start conflicts.
	resp = ts.do(t, http.MethodPost, "/attempts", "student-1", models.StartAttemptRequest{QuizID: quiz.ID})
	require.Equal(t, http.StatusConflict, resp.StatusCode)
	resp.Body.Close()

	// Answer two of three questions: one correct, one wrong.
	resp = ts.do(t, http.MethodPost, "/attempts/"+attempt.ID+"/answers", "student-1",
		models.AnswerRequest{QuestionID: quiz.Questions[0].ID, ChoiceIndex: 1})
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp.Body.Close()

	resp = ts.do(t, http.MethodPost, "/attempts/"+attempt.ID+"/answers", "student-1",
		models.AnswerRequest{QuestionID: quiz.Questions[1].ID, ChoiceIndex: 0})
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp.Body.Close()

	// Remaining time after 30 of 60 seconds.
	ts.clock.Advance(30 * time.Second)

	resp = ts.do(t, http.MethodGet, "/attempts/"+attempt.ID+"/time", "student-1", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var timeLeft struct {
		RemainingSeconds int `json:"remaining_seconds"`
	}
	decode(t, resp, &timeLeft)
	require.Equal(t, 30, timeLeft.RemainingSeconds)

	// Submit and grade.
	resp = ts.do(t, http.MethodPost, "/attempts/"+attempt.ID+"/submit", "student-1", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var result models.Result
	decode(t, resp, &result)
	require.Equal(t, models.AttemptSubmitted, result.Status)
	require.Equal(t, 1, result.Correct)
	require.Equal(t, 3, result.Total)
	require.InDelta(t, 100.0/3.0, result.Score, 0.01)

	// Mutation after finalization is rejected.
	resp = ts.do(t, http.MethodPost, "/attempts/"+attempt.ID+"/answers", "student-1",
		models.AnswerRequest{QuestionID: quiz.Questions[2].ID, ChoiceIndex: 1})
	require.Equal(t, http.StatusConflict, resp.StatusCode)
	resp.Body.Close()

	resp = ts.do(t, http.MethodPost, "/attempts/"+attempt.ID+"/submit", "student-1", nil)
	require.Equal(t, http.StatusConflict, resp.StatusCode)
	resp.Body.Close()

	// The result is persisted for the reporting collaborator.
	resp = ts.do(t, http.MethodGet, "/results?student_id=student-1", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var results []models.Result
	decode(t, resp, &results)
	require.Len(t, results, 1)
	require.Equal(t, result.ID, results[0].ID)
}

func TestAnswerPastDeadline(t *testing.T) {
	ts := newTestServer(t)
	quiz := ts.createEnabledQuiz(t)

	resp := ts.do(t, http.MethodPost, "/attempts", "student-1", models.StartAttemptRequest{QuizID: quiz.ID})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var attempt models.Attempt
	decode(t, resp, &attempt)

	ts.clock.Advance(61 * time.Second)

	resp = ts.do(t, http.MethodPost, "/attempts/"+attempt.ID+"/answers", "student-1",
		models.AnswerRequest{QuestionID: quiz.Questions[0].ID, ChoiceIndex: 1})
	require.Equal(t, http.StatusGone, resp.StatusCode)
	resp.Body.Close()

	// The deadline check expired the attempt as a side effect.
	resp = ts.do(t, http.MethodGet, "/attempts/"+attempt.ID, "student-1", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var snapshot models.Attempt
	decode(t, resp, &snapshot)
	require.Equal(t, models.AttemptExpired, snapshot.Status)
}

func TestUnknownRoutesAndAttempts(t *testing.T) {
	ts := newTestServer(t)

	for _, path := range []string{
		"/attempts/missing",
		"/attempts/missing/time",
		"/quizzes/missing",
	} {
		resp := ts.do(t, http.MethodGet, path, "student-1", nil)
		require.Equal(t, http.StatusNotFound, resp.StatusCode, fmt.Sprintf("path %s", path))
		resp.Body.Close()
	}

	resp := ts.do(t, http.MethodPost, "/attempts", "student-1", models.StartAttemptRequest{QuizID: "missing"})
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()
}
