// Package apperr defines the error taxonomy shared by all engine operations.
// Failures cross the service boundary as *Error values; the HTTP layer maps
// them onto the uniform result envelope. No other error type ever escapes a
// service uncoerced.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Code classifies a failure.
type Code string

const (
	CodeValidation     Code = "VALIDATION_ERROR"
	CodeUnauthorized   Code = "UNAUTHORIZED"
	CodeForbidden      Code = "FORBIDDEN"
	CodeNotFound       Code = "NOT_FOUND"
	CodeInvalidState   Code = "INVALID_STATE"
	CodeMissingRevenue Code = "MISSING_REVENUE"
	CodeMissingLabor   Code = "MISSING_LABOR"
	CodeMissingTax     Code = "MISSING_TAX"
	CodeInternal       Code = "INTERNAL_ERROR"
)

// Error is a classified application error.
type Error struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"statusCode"`
	Details any    `json:"details,omitempty"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// New creates an error with an explicit code and HTTP status.
func New(code Code, status int, message string) *Error {
	return &Error{Code: code, Message: message, Status: status}
}

// Validation reports malformed or missing input.
func Validation(format string, args ...any) *Error {
	return New(CodeValidation, http.StatusBadRequest, fmt.Sprintf(format, args...))
}

// Unauthorized reports that no identity could be resolved.
func Unauthorized(message string) *Error {
	return New(CodeUnauthorized, http.StatusUnauthorized, message)
}

// Forbidden reports a resolved identity lacking the required role or ownership.
func Forbidden(message string) *Error {
	return New(CodeForbidden, http.StatusForbidden, message)
}

// NotFound reports an absent referenced entity.
func NotFound(message string) *Error {
	return New(CodeNotFound, http.StatusNotFound, message)
}

// InvalidState reports an operation that is not legal in the entity's
// current lifecycle state. Always carries a human-readable reason.
func InvalidState(format string, args ...any) *Error {
	return New(CodeInvalidState, http.StatusConflict, fmt.Sprintf(format, args...))
}

// Missing builds a settlement precondition failure for one of the
// MISSING_REVENUE / MISSING_LABOR / MISSING_TAX codes.
func Missing(code Code, message string) *Error {
	return New(code, http.StatusUnprocessableEntity, message)
}

// Internal wraps an unexpected failure.
func Internal(err error) *Error {
	return New(CodeInternal, http.StatusInternalServerError, err.Error())
}

// From coerces any error into an *Error, defaulting to INTERNAL_ERROR.
func From(err error) *Error {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr
	}
	return Internal(err)
}

// Is reports whether err is an *Error carrying the given code.
func Is(err error, code Code) bool {
	var appErr *Error
	return errors.As(err, &appErr) && appErr.Code == code
}
