package domain

import (
	"errors"
	"fmt"
)

// ErrorCode represents a semantic classification shared across transport layers.
type ErrorCode string

const (
	ErrCodeNotFound     ErrorCode = "NOT_FOUND"
	ErrCodeInvalid      ErrorCode = "INVALID"
	ErrCodeConflict     ErrorCode = "CONFLICT"
	ErrCodeForbidden    ErrorCode = "FORBIDDEN"
	ErrCodeUnauthorized ErrorCode = "UNAUTHORIZED"
	ErrCodeUnavailable  ErrorCode = "UNAVAILABLE"
	ErrCodeBusy         ErrorCode = "BUSY"
	ErrCodeSuperseded   ErrorCode = "SUPERSEDED"
	ErrCodeInternal     ErrorCode = "INTERNAL"
)

// Error represents a domain-level error.
type Error struct {
	Code    ErrorCode
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// NewError builds a domain error.
func NewError(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// WrapError wraps an existing error with a domain classification.
func WrapError(code ErrorCode, message string, err error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Common domain errors.
var (
	ErrInvalidCredentials = NewError(ErrCodeUnauthorized, "invalid username or password")
	ErrAccountExists      = NewError(ErrCodeConflict, "username or email already registered")
	ErrUnavailable        = NewError(ErrCodeUnavailable, "authentication service unavailable")
	ErrAuthInProgress     = NewError(ErrCodeBusy, "an authentication request is already in progress")
	ErrSessionSuperseded  = NewError(ErrCodeSuperseded, "session changed while the request was in flight")
	ErrNotAuthenticated   = NewError(ErrCodeUnauthorized, "not authenticated")
	ErrForbidden          = NewError(ErrCodeForbidden, "insufficient role")
	ErrInvalidPayload     = NewError(ErrCodeInvalid, "invalid payload")
)

// IsDomainError helps checking error codes.
func IsDomainError(err error, code ErrorCode) bool {
	var dErr *Error
	if errors.As(err, &dErr) {
		return dErr.Code == code
	}
	return false
}

// MessageOf returns the user-facing message of a domain error, or fallback
// for anything else.
func MessageOf(err error, fallback string) string {
	var dErr *Error
	if errors.As(err, &dErr) && dErr.Message != "" {
		return dErr.Message
	}
	return fallback
}
