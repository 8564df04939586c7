// Package errors provides structured error handling with typed error codes.
//
// Error codes are organized into categories:
//   - General errors (1-99): Unknown and general errors
//   - Validation errors (100-199): Rejected inputs, insufficient balance, bad order sizes
//   - State errors (200-299): Conflicts with the in-memory trading state
//   - Trading errors (300-399): Order execution and position management errors
//   - External errors (400-499): Exchange and network failures that are worth retrying
//   - Storage errors (500-599): Ledger, cooldown store and state file failures
//   - Configuration errors (600-699): Missing credentials and unreadable config
//   - Indicator errors (700-799): Not enough klines or a failed oscillator calculation
//
// Usage:
//
//	err := errors.Newf(errors.ErrCodeTradeAlreadyOpen, "trade already open for %s", symbol)
//
//	err := errors.Wrap(errors.ErrCodeExchangeUnavailable, "failed to fetch klines", originalErr)
//
//	if errors.IsTransient(err) { ... }
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
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
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

// IsTransient reports whether the error came from an external dependency
// and the operation may succeed on a later attempt.
func IsTransient(err error) bool {
	code := GetCode(err)

	return code >= 400 && code < 500
}

// IsValidation reports whether the error is a rejected input that must not be retried.
func IsValidation(err error) bool {
	code := GetCode(err)

	return code >= 100 && code < 200
}

// IsBenignRace reports whether the error is a conflict that another goroutine already
// resolved, such as a duplicate open for the same symbol.
func IsBenignRace(err error) bool {
	return HasCode(err, ErrCodeTradeAlreadyOpen) || HasCode(err, ErrCodeTradeNotFound)
}
