// Package apperr defines the error taxonomy for the merge engine and its
// collaborators: a stable code, a human message, and an optional wrapped
// cause.
package apperr

import (
	"errors"
	"fmt"
)

// Error codes for the merge engine's error taxonomy.
const (
	CodeInconsistentSchema   = "INCONSISTENT_SCHEMA"
	CodeMemoryBudgetExceeded = "MEMORY_BUDGET_EXCEEDED"
	CodeMergeFailed          = "MERGE_FAILED"
	CodeInvalidInput         = "INVALID_INPUT"
	CodeInvariantViolation   = "INVARIANT_VIOLATION"
)

// AppError represents a merge-engine error with a stable code and message.
type AppError struct {
	Code    string
	Message string
	Err     error
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error, if any.
func (e *AppError) Unwrap() error {
	return e.Err
}

// Is matches another *AppError by code, so errors.Is(err, ErrInvalidInput)
// works regardless of message or wrapped cause.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// New creates a new AppError.
func New(code, message string) *AppError {
	return &AppError{Code: code, Message: message}
}

// Wrap wraps an existing error with an AppError code and message.
func Wrap(code, message string, err error) *AppError {
	return &AppError{Code: code, Message: message, Err: err}
}

// Sentinel errors, one per taxonomy entry.
var (
	// ErrInconsistentSchema: a variable's descriptor differs across
	// granules for the same path. Fatal; abort before any write.
	ErrInconsistentSchema = New(CodeInconsistentSchema, "inconsistent variable schema across granules")

	// ErrMemoryBudgetExceeded: a single resized array exceeds the
	// shared-memory budget. Fatal.
	ErrMemoryBudgetExceeded = New(CodeMemoryBudgetExceeded, "resized variable exceeds memory budget")

	// ErrMergeFailed: a reader terminated abnormally. Fatal; abort the
	// writer.
	ErrMergeFailed = New(CodeMergeFailed, "merge worker failed")

	// ErrInvalidInput: nonexistent data directory, no inputs after the
	// emptiness filter, or a zero/negative worker count. Fatal before
	// preprocess.
	ErrInvalidInput = New(CodeInvalidInput, "invalid input")

	// ErrInvariantViolation: resolve_dim found nothing, or the output
	// queue produced an unknown var_path. Fatal; indicates a bug.
	ErrInvariantViolation = New(CodeInvariantViolation, "internal invariant violated")
)

// WithMessage returns a copy of the sentinel with a more specific message,
// preserving the code for errors.Is matching.
func (e *AppError) WithMessage(format string, args ...any) *AppError {
	return &AppError{Code: e.Code, Message: fmt.Sprintf(format, args...), Err: e.Err}
}

// WithCause returns a copy of the sentinel wrapping err as its cause.
func (e *AppError) WithCause(err error) *AppError {
	return &AppError{Code: e.Code, Message: e.Message, Err: err}
}

// Code extracts the error code from err, or "UNKNOWN_ERROR" if err is not
// an *AppError.
func Code(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return "UNKNOWN_ERROR"
}
