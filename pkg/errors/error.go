// Package errors provides structured error handling with typed error codes.
//
// Error codes are organized into categories:
//   - General errors (1-99): Unknown and general errors
//   - Validation errors (100-199): Invalid configuration, parameters, order intents
//   - Data errors (200-299): Historical data fetching and completeness
//   - Store errors (300-399): Persisted state load/save failures
//   - Engine errors (400-499): Guard, scheduler, and cycle failures
//   - Order errors (500-599): Order submission and account queries
//   - Calendar errors (600-699): Trading-day oracle failures
//
// Usage:
//
//	// Create a new error
//	err := errors.New(errors.ErrCodeInvalidConfiguration, "slot count must be positive")
//
//	// Create a formatted error
//	err := errors.Newf(errors.ErrCodeBarsFetchFailed, "fetch failed for chunk starting at %s", code)
//
//	// Wrap an existing error
//	err := errors.Wrap(errors.ErrCodeStoreWriteFailed, "failed to persist held days", originalErr)
//
//	// Check error code
//	if errors.HasCode(err, errors.ErrCodeOrderRejected) { ... }
package errors

import (
	"errors"
	"fmt"
)

// Error represents a structured error with an error code and message.
type Error struct {
	Code    ErrorCode
	Message string
	Cause   error
}

// New creates a new Error with the given code and message.
func New(code ErrorCode, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Cause:   nil,
	}
}

// Newf creates a new Error with the given code and formatted message.
func Newf(code ErrorCode, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Cause:   nil,
	}
}

// Wrap wraps an existing error with a new Error containing the given code and message.
func Wrap(code ErrorCode, message string, cause error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// Wrapf wraps an existing error with a new Error containing the given code and formatted message.
func Wrapf(code ErrorCode, cause error, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Cause:   cause,
	}
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%d] %s: %v", e.Code, e.Message, e.Cause)
	}

	return fmt.Sprintf("[%d] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether any error in err's chain matches target.
// This is a convenience wrapper around the standard errors.Is function.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
// This is a convenience wrapper around the standard errors.As function.
func As(err error, target any) bool {
	return errors.As(err, target)
}

// GetCode extracts the ErrorCode from an error if it's an *Error type.
// Returns ErrCodeUnknown if the error is not an *Error type.
func GetCode(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}

	return ErrCodeUnknown
}

// HasCode checks if an error has a specific ErrorCode.
func HasCode(err error, code ErrorCode) bool {
	return GetCode(err) == code
}

// IncompleteWindowError represents an error when a historical window is
// shorter than the configured length or contains missing values.
type IncompleteWindowError struct {
	Required int    // Bars required for a complete window
	Actual   int    // Bars actually available
	Code     string // Instrument code the window belongs to
	Message  string // Human-readable message
}

// NewIncompleteWindowError creates a new IncompleteWindowError.
func NewIncompleteWindowError(required, actual int, code, message string) *IncompleteWindowError {
	return &IncompleteWindowError{
		Required: required,
		Actual:   actual,
		Code:     code,
		Message:  message,
	}
}

// Error implements the error interface.
func (e *IncompleteWindowError) Error() string {
	return e.Message
}

// IsIncompleteWindowError checks if an error is an IncompleteWindowError.
// It uses errors.As to check the error chain.
func IsIncompleteWindowError(err error) bool {
	var incompleteErr *IncompleteWindowError

	return errors.As(err, &incompleteErr)
}
