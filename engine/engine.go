package engine

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/digitalpakistan/quiz-session-api/models"
	"github.com/digitalpakistan/quiz-session-api/utils"
)

// AttemptJournal persists attempt state as it changes. The engine stays
// authoritative in memory; the journal exists so attempts survive a restart.
type AttemptJournal interface {
	SaveAttempt(attempt *models.Attempt) error
	SaveAnswer(attemptID, questionID string, choiceIndex int) error
	MarkFinalized(attemptID string, status models.AttemptStatus) error
}

// ResultSink receives the graded record of a finalized attempt.
type ResultSink interface {
	SaveResult(result *models.Result) error
}

// attemptState pairs an attempt with the quiz it runs against. mu serializes
// every status check-and-set so exactly one grading pass happens even when a
// manual submit races the expiry callback.
type attemptState struct {
	mu      sync.Mutex
	attempt *models.Attempt
	quiz    *models.Quiz
}

func (st *attemptState) deadline() time.Time {
	return st.attempt.StartedAt.Add(st.quiz.TimeLimit)
}

// Engine owns the lifecycle of quiz attempts: start, answer recording,
// deadline enforcement, and a single grading pass per attempt.
type Engine struct {
	mu       sync.RWMutex
	attempts map[string]*attemptState
	active   map[string]string // quizID + "\x00" + studentID -> attempt ID

	clock   Clock
	journal AttemptJournal
	results ResultSink
}

func New(clock Clock, journal AttemptJournal, results ResultSink) *Engine {
	return &Engine{
		attempts: make(map[string]*attemptState),
		active:   make(map[string]string),
		clock:    clock,
		journal:  journal,
		results:  results,
	}
}

func activeKey(quizID, studentID string) string {
	return quizID + "\x00" + studentID
}

// Start opens a new attempt for (quiz, student). It fails with
// ErrAttemptConflict if the student already has an in-progress attempt for
// this quiz and ErrQuizDisabled if the quiz is not enabled.
func (e *Engine) Start(quiz *models.Quiz, studentID string) (*models.Attempt, error) {
	if !quiz.Enabled {
		return nil, ErrQuizDisabled
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	key := activeKey(quiz.ID, studentID)
	if _, exists := e.active[key]; exists {
		return nil, ErrAttemptConflict
	}

	attempt := &models.Attempt{
		ID:        uuid.NewString(),
		QuizID:    quiz.ID,
		StudentID: studentID,
		StartedAt: e.clock.Now(),
		Answers:   make(map[string]int),
		Status:    models.AttemptInProgress,
	}

	if err := e.journal.SaveAttempt(attempt); err != nil {
		return nil, fmt.Errorf("failed to journal attempt: %w", err)
	}

	e.attempts[attempt.ID] = &attemptState{attempt: attempt, quiz: quiz}
	e.active[key] = attempt.ID

	utils.LogEngine("Started attempt %s: quiz %s, student %s, limit %v",
		attempt.ID, quiz.ID, studentID, quiz.TimeLimit)

	return copyAttempt(attempt), nil
}

// Restore re-registers an in-progress attempt loaded from storage, typically
// at startup. Terminal attempts are rejected; they need no engine state.
func (e *Engine) Restore(attempt *models.Attempt, quiz *models.Quiz) error {
	if attempt.Status.Terminal() {
		return ErrAttemptFinalized
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if _, exists := e.attempts[attempt.ID]; exists {
		return ErrAttemptConflict
	}

	if attempt.Answers == nil {
		attempt.Answers = make(map[string]int)
	}

	e.attempts[attempt.ID] = &attemptState{attempt: copyAttempt(attempt), quiz: quiz}
	e.active[activeKey(quiz.ID, attempt.StudentID)] = attempt.ID

	utils.LogEngine("Restored attempt %s: quiz %s, student %s, %d answers",
		attempt.ID, quiz.ID, attempt.StudentID, len(attempt.Answers))

	return nil
}

// RecordAnswer upserts the student's choice for a question. No correctness
// check happens here; grading is deferred to finalization. A call past the
// deadline expires and grades the attempt before returning
// ErrDeadlineExceeded.
func (e *Engine) RecordAnswer(attemptID, questionID string, choiceIndex int) error {
	st, err := e.state(attemptID)
	if err != nil {
		return err
	}

	st.mu.Lock()
	defer st.mu.Unlock()

	if st.attempt.Status.Terminal() {
		return ErrAttemptFinalized
	}

	if e.clock.Now().After(st.deadline()) {
		e.finalizeLocked(st, models.AttemptExpired)
		return ErrDeadlineExceeded
	}

	question := st.quiz.Question(questionID)
	if question == nil {
		return ErrQuestionNotFound
	}

	if choiceIndex < 0 || choiceIndex >= len(question.Choices) {
		return ErrChoiceOutOfRange
	}

	st.attempt.Answers[questionID] = choiceIndex

	if err := e.journal.SaveAnswer(attemptID, questionID, choiceIndex); err != nil {
		utils.LogError("Failed to journal answer for attempt %s: %v", attemptID, err)
	}

	return nil
}

// RemainingTime reports how long the attempt has left, clamped at zero. It
// never mutates state; the deadline takes effect on the next submission or
// expiry call.
func (e *Engine) RemainingTime(attemptID string) (time.Duration, error) {
	st, err := e.state(attemptID)
	if err != nil {
		return 0, err
	}

	st.mu.Lock()
	defer st.mu.Unlock()

	remaining := st.deadline().Sub(e.clock.Now())
	if remaining < 0 {
		remaining = 0
	}
	return remaining, nil
}

// Submit finalizes the attempt on the student's initiative. Before the
// deadline the attempt becomes submitted; a first submit after the deadline
// grades as expired rather than being rejected, since an auto-expiry
// collaborator may race it.
func (e *Engine) Submit(attemptID string) (*models.Result, error) {
	st, err := e.state(attemptID)
	if err != nil {
		return nil, err
	}

	st.mu.Lock()
	defer st.mu.Unlock()

	if st.attempt.Status.Terminal() {
		return nil, ErrAttemptFinalized
	}

	status := models.AttemptSubmitted
	if e.clock.Now().After(st.deadline()) {
		status = models.AttemptExpired
	}

	return e.finalizeLocked(st, status), nil
}

// Expire finalizes the attempt on behalf of the timer collaborator. Grading
// is identical to Submit; the status is always expired.
func (e *Engine) Expire(attemptID string) (*models.Result, error) {
	st, err := e.state(attemptID)
	if err != nil {
		return nil, err
	}

	st.mu.Lock()
	defer st.mu.Unlock()

	if st.attempt.Status.Terminal() {
		return nil, ErrAttemptFinalized
	}

	return e.finalizeLocked(st, models.AttemptExpired), nil
}

// Attempt returns a snapshot of the attempt for read-only consumers.
func (e *Engine) Attempt(attemptID string) (*models.Attempt, error) {
	st, err := e.state(attemptID)
	if err != nil {
		return nil, err
	}

	st.mu.Lock()
	defer st.mu.Unlock()

	return copyAttempt(st.attempt), nil
}

// Overdue lists in-progress attempts whose deadline has passed, for the
// periodic sweep.
func (e *Engine) Overdue(now time.Time) []string {
	e.mu.RLock()
	states := make(map[string]*attemptState, len(e.attempts))
	for id, st := range e.attempts {
		states[id] = st
	}
	e.mu.RUnlock()

	// st.mu is taken outside e.mu: finalization locks in the other order.
	var overdue []string
	for id, st := range states {
		st.mu.Lock()
		if !st.attempt.Status.Terminal() && now.After(st.deadline()) {
			overdue = append(overdue, id)
		}
		st.mu.Unlock()
	}
	return overdue
}

// finalizeLocked transitions the attempt to a terminal status and runs the
// single grading pass. Callers must hold st.mu and have checked that the
// attempt is not already terminal. The attempt stays terminal even if a
// persistence write fails: losing a row beats grading twice.
func (e *Engine) finalizeLocked(st *attemptState, status models.AttemptStatus) *models.Result {
	st.attempt.Status = status

	correct := 0
	for _, question := range st.quiz.Questions {
		if choice, answered := st.attempt.Answers[question.ID]; answered && choice == question.CorrectIndex {
			correct++
		}
	}

	total := len(st.quiz.Questions)
	score := 0.0
	if total > 0 {
		score = float64(correct) / float64(total) * 100
	}

	result := &models.Result{
		ID:          uuid.NewString(),
		AttemptID:   st.attempt.ID,
		QuizID:      st.quiz.ID,
		StudentID:   st.attempt.StudentID,
		Correct:     correct,
		Total:       total,
		Score:       score,
		Status:      status,
		CompletedAt: e.clock.Now(),
	}

	e.mu.Lock()
	delete(e.active, activeKey(st.quiz.ID, st.attempt.StudentID))
	e.mu.Unlock()

	if err := e.journal.MarkFinalized(st.attempt.ID, status); err != nil {
		utils.LogError("Failed to journal finalization of attempt %s: %v", st.attempt.ID, err)
	}
	if err := e.results.SaveResult(result); err != nil {
		utils.LogError("Failed to persist result for attempt %s: %v", st.attempt.ID, err)
	}

	utils.LogEngine("Finalized attempt %s as %s: %d/%d correct (%.1f%%)",
		st.attempt.ID, status, correct, total, score)

	return result
}

func (e *Engine) state(attemptID string) (*attemptState, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	st, exists := e.attempts[attemptID]
	if !exists {
		return nil, ErrAttemptNotFound
	}
	return st, nil
}

func copyAttempt(attempt *models.Attempt) *models.Attempt {
	answers := make(map[string]int, len(attempt.Answers))
	for questionID, choice := range attempt.Answers {
		answers[questionID] = choice
	}
	clone := *attempt
	clone.Answers = answers
	return &clone
}
