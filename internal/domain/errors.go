package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors used across all layers.
var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
	ErrValidation    = errors.New("validation error")
	ErrConflict      = errors.New("version conflict")

	// ErrTransactionFailed means the store could not commit a transaction
	// after exhausting its conflict-retry budget. None of the staged writes
	// were applied.
	ErrTransactionFailed = errors.New("transaction failed")

	// ErrRateLimited means a new code was requested before the resend
	// cooldown for the subject elapsed.
	ErrRateLimited = errors.New("rate limited")

	// ErrAttemptsExceeded means the verification attempt ceiling was hit.
	// The session is invalidated permanently; a new code must be requested.
	ErrAttemptsExceeded = errors.New("too many attempts")

	// ErrCodeMismatch means the supplied code did not match. The session
	// stays alive until the attempt ceiling is reached.
	ErrCodeMismatch = errors.New("code mismatch")
)

// FieldError describes a validation error for a specific field.
type FieldError struct {
	Field   string
	Message string
}

// ValidationError contains a list of field-level validation errors.
type ValidationError struct {
	Errors []FieldError
}

func (e *ValidationError) Error() string {
	if len(e.Errors) == 1 {
		return fmt.Sprintf("validation: %s: %s", e.Errors[0].Field, e.Errors[0].Message)
	}
	return fmt.Sprintf("validation: %d errors", len(e.Errors))
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// NewValidationError creates a ValidationError for a single field.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{
		Errors: []FieldError{{Field: field, Message: message}},
	}
}

// NewValidationErrors creates a ValidationError from multiple field errors.
func NewValidationErrors(errs []FieldError) *ValidationError {
	return &ValidationError{Errors: errs}
}
