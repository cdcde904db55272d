// Package errors defines the application error taxonomy shared by the
// repository, service and HTTP layers.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorCode represents a category of application error.
type ErrorCode string

const (
	// ErrCodeNotFound indicates a resource was not found.
	ErrCodeNotFound ErrorCode = "not_found"
	// ErrCodeConflict indicates a conflict with existing data (e.g., a taken email).
	ErrCodeConflict ErrorCode = "conflict"
	// ErrCodeValidation indicates invalid input data.
	ErrCodeValidation ErrorCode = "validation"
	// ErrCodeUnauthenticated indicates missing or invalid credentials.
	ErrCodeUnauthenticated ErrorCode = "unauthenticated"
	// ErrCodeForbidden indicates an authenticated caller lacks the role for an action.
	ErrCodeForbidden ErrorCode = "forbidden"
	ErrCodeInternal  ErrorCode = "internal"
	ErrCodeTimeout   ErrorCode = "timeout"
	ErrCodeCanceled  ErrorCode = "canceled"
)

// AppError represents a structured application error with a code, message, and optional cause.
// It supports error wrapping and unwrapping for use with errors.Is and errors.As.
type AppError struct {
	Code    ErrorCode
	Message string
	Cause   error
	// Field names the offending input for validation and conflict errors.
	Field string
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

func newMsg(code ErrorCode, msg string) *AppError {
	return &AppError{Code: code, Message: msg}
}

// NotFound creates a new NotFound error.
func NotFound(message string) *AppError { return newMsg(ErrCodeNotFound, message) }

// Conflict creates a new Conflict error for field.
func Conflict(field, message string) *AppError {
	e := newMsg(ErrCodeConflict, message)
	e.Field = field
	return e
}

// ValidationField creates a new Validation error for a specific field.
func ValidationField(field, message string) *AppError {
	e := newMsg(ErrCodeValidation, message)
	e.Field = field
	return e
}

// Unauthenticated creates a new Unauthenticated error.
func Unauthenticated(message string) *AppError { return newMsg(ErrCodeUnauthenticated, message) }

// Internal creates a new Internal error.
func Internal(message string) *AppError { return newMsg(ErrCodeInternal, message) }

// Wrap wraps an existing error with an AppError, preserving the cause.
func Wrap(err error, code ErrorCode, message string) *AppError {
	if err == nil {
		return nil
	}
	return &AppError{Code: code, Message: message, Cause: err}
}

func isCode(err error, code ErrorCode) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Code == code
}

func IsNotFound(err error) bool        { return isCode(err, ErrCodeNotFound) }
func IsConflict(err error) bool        { return isCode(err, ErrCodeConflict) }
func IsValidation(err error) bool      { return isCode(err, ErrCodeValidation) }
func IsUnauthenticated(err error) bool { return isCode(err, ErrCodeUnauthenticated) }
func IsInternal(err error) bool        { return isCode(err, ErrCodeInternal) }

// GetCode returns the ErrorCode from an error, or empty string if not an AppError.
func GetCode(err error) ErrorCode {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}

// GetField returns the Field from an error, or empty string if not an AppError or no field set.
func GetField(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Field
	}
	return ""
}

// HTTPStatus maps an error to the response status the HTTP layer should use.
// Errors outside the taxonomy are 500s.
func HTTPStatus(err error) int {
	switch GetCode(err) {
	case ErrCodeNotFound:
		return http.StatusNotFound
	case ErrCodeConflict:
		return http.StatusConflict
	case ErrCodeValidation:
		return http.StatusBadRequest
	case ErrCodeUnauthenticated:
		return http.StatusUnauthorized
	case ErrCodeForbidden:
		return http.StatusForbidden
	case ErrCodeTimeout:
		return http.StatusGatewayTimeout
	case ErrCodeCanceled:
		// nginx's "client closed request"; nobody reads it.
		return 499
	default:
		return http.StatusInternalServerError
	}
}
