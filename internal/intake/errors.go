package intake

import (
	"errors"
	"fmt"
)

var (
	ErrValidation        = errors.New("invalid error report")
	ErrNotFound          = errors.New("error log not found")
	ErrPersistence       = errors.New("persistence gateway failure")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrConflict          = errors.New("another open error has the same title and code")
)

// ValidationError names the offending input field. It matches ErrValidation
// under errors.Is.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

func invalid(field, msg string) error {
	return &ValidationError{Field: field, Message: msg}
}

// persistence wraps a gateway failure so that callers can match both
// ErrPersistence and the underlying cause.
func persistence(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrPersistence, op, err)
}
