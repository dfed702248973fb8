package engine

import "errors"

// Error kinds reported by the engine. Handlers map these to HTTP status
// codes with errors.Is; nothing is retried internally.
var (
	ErrAttemptConflict  = errors.New("student already has an in-progress attempt for this quiz")
	ErrQuizDisabled     = errors.New("quiz is not enabled")
	ErrAttemptNotFound  = errors.New("attempt not found")
	ErrAttemptFinalized = errors.New("attempt is already finalized")
	ErrDeadlineExceeded = errors.New("attempt deadline has passed")
	ErrQuestionNotFound = errors.New("question is not part of the quiz")
	ErrChoiceOutOfRange = errors.New("choice index is out of range")
)
