// Package common defines shared constants and error kinds used across
// client and server layers of AuthKeeper. Callers should use errors.Is to
// match these values.
package common

import (
	"errors"
)

var (
	// Error kinds surfaced by the auth core.
	ErrorConflict     = errors.New("conflict")
	ErrorUnauthorized = errors.New("unauthorized")
	ErrorNotFound     = errors.New("not found")
	ErrorValidation   = errors.New("validation error")

	// Infrastructure failures with no caller-facing detail.
	ErrorInternal = errors.New("internal error")

	// Token verification causes.
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
)

// Error is a failure of a known kind carrying the message shown to the
// caller. It matches both its Kind and its wrapped cause under errors.Is.
type Error struct {
	Kind    error
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Kind != nil {
		return e.Kind.Error()
	}
	return ErrorInternal.Error()
}

// Unwrap exposes the kind and the cause to errors.Is / errors.As.
func (e *Error) Unwrap() []error {
	errs := make([]error, 0, 2)
	if e.Kind != nil {
		errs = append(errs, e.Kind)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

func newError(kind error, msg string, cause error) *Error {
	return &Error{Kind: kind, Message: msg, Err: cause}
}

// Unauthorized builds an ErrorUnauthorized failure.
func Unauthorized(msg string) *Error { return newError(ErrorUnauthorized, msg, nil) }

// UnauthorizedWrap builds an ErrorUnauthorized failure with a cause.
func UnauthorizedWrap(msg string, cause error) *Error {
	return newError(ErrorUnauthorized, msg, cause)
}

// Conflict builds an ErrorConflict failure.
func Conflict(msg string) *Error { return newError(ErrorConflict, msg, nil) }

// NotFound builds an ErrorNotFound failure.
func NotFound(msg string) *Error { return newError(ErrorNotFound, msg, nil) }

// Validation builds an ErrorValidation failure.
func Validation(msg string) *Error { return newError(ErrorValidation, msg, nil) }

// Message returns the caller-facing message of err when it is an *Error,
// otherwise the generic internal error text.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Error()
	}
	return ErrorInternal.Error()
}
