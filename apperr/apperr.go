// Package apperr defines the error kinds returned by the issue and session
// stores. Callers match on a kind with errors.Is against the exported
// sentinels, e.g. errors.Is(err, apperr.ErrNotFound).
package apperr

import (
	"errors"
	"fmt"
)

type Kind string

const (
	KindAuthentication         Kind = "authentication"
	KindAuthenticationRequired Kind = "authentication_required"
	KindValidation             Kind = "validation"
	KindNotFound               Kind = "not_found"
	KindInvalidTransition      Kind = "invalid_transition"
	KindForbidden              Kind = "forbidden"
)

// Error carries a kind, a user-facing message and an optional cause.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.Err != nil {
		return msg + ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports a match when target is a bare sentinel of the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Message == "" && t.Err == nil
}

var (
	ErrAuthentication         = &Error{Kind: KindAuthentication}
	ErrAuthenticationRequired = &Error{Kind: KindAuthenticationRequired}
	ErrValidation             = &Error{Kind: KindValidation}
	ErrNotFound               = &Error{Kind: KindNotFound}
	ErrInvalidTransition      = &Error{Kind: KindInvalidTransition}
	ErrForbidden              = &Error{Kind: KindForbidden}
)

func newf(kind Kind, format string, args ...any) error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Authentication is returned when credentials do not match a known user.
func Authentication(format string, args ...any) error {
	return newf(KindAuthentication, format, args...)
}

// AuthenticationRequired is returned when a write is attempted without a session.
func AuthenticationRequired(format string, args ...any) error {
	return newf(KindAuthenticationRequired, format, args...)
}

func Validation(format string, args ...any) error {
	return newf(KindValidation, format, args...)
}

func NotFound(format string, args ...any) error {
	return newf(KindNotFound, format, args...)
}

func InvalidTransition(format string, args ...any) error {
	return newf(KindInvalidTransition, format, args...)
}

func Forbidden(format string, args ...any) error {
	return newf(KindForbidden, format, args...)
}

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return "", false
}

// MessageOf returns the user-facing message of err, falling back to fallback
// for errors that are not *Error.
func MessageOf(err error, fallback string) string {
	var e *Error
	if errors.As(err, &e) && e.Message != "" {
		return e.Message
	}
	return fallback
}
