package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies failures surfaced to API clients.
type Kind string

const (
	KindValidation Kind = "validation_error"
	KindConflict   Kind = "conflict_error"
	KindNotFound   Kind = "not_found_error"
	KindParse      Kind = "parse_error"
	KindStore      Kind = "store_error"
)

// Error is the application error carried across service boundaries.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Validation reports missing or malformed client input.
func Validation(format string, args ...any) error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

// Conflict reports a uniqueness violation.
func Conflict(format string, args ...any) error {
	return &Error{Kind: KindConflict, Message: fmt.Sprintf(format, args...)}
}

// NotFound reports an absent referenced entity.
func NotFound(format string, args ...any) error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

// Parse reports a malformed time-of-day string.
func Parse(format string, args ...any) error {
	return &Error{Kind: KindParse, Message: fmt.Sprintf(format, args...)}
}

// Store wraps a persistence failure. The message is internal and never shown to clients.
func Store(err error, format string, args ...any) error {
	return &Error{Kind: KindStore, Message: fmt.Sprintf(format, args...), Err: err}
}

// KindOf returns the kind of err, treating unknown errors as store failures.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindStore
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	if err == nil {
		return false
	}
	return KindOf(err) == kind
}

// MessageOf returns the client-safe message for err.
func MessageOf(err error) string {
	var appErr *Error
	if errors.As(err, &appErr) && appErr.Kind != KindStore {
		return appErr.Message
	}
	return "internal server error"
}
