package quiz

import "errors"

var (
	ErrQuizNotFound    = errors.New("quiz not found")
	ErrQuizInactive    = errors.New("quiz is not active")
	ErrAlreadyAnswered = errors.New("quiz already answered")
	ErrNoQuizAvailable = errors.New("no unanswered quiz available")
	ErrInvalidPoints   = errors.New("points must not be negative")
)
