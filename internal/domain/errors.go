package domain

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies every error that crosses a service boundary.
// The set is closed; the transport maps each kind to exactly one HTTP status.
type Kind int

const (
	KindInvalidInput Kind = iota
	KindUnauthenticated
	KindMFARequired
	KindForbidden
	KindNotFound
	KindConflict
	KindValidation
	KindDatabase
	KindInternal
)

// String returns the wire code for the kind, used in error envelopes.
func (k Kind) String() string {
	switch k {
	case KindInvalidInput:
		return "invalid_input"
	case KindUnauthenticated:
		return "unauthenticated"
	case KindMFARequired:
		return "mfa_required"
	case KindForbidden:
		return "forbidden"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindValidation:
		return "validation"
	case KindDatabase:
		return "database"
	default:
		return "internal"
	}
}

// HTTPStatus maps the kind to its HTTP status code. MFARequired shares 401
// with Unauthenticated; the envelope code distinguishes them for the caller.
func (k Kind) HTTPStatus() int {
	switch k {
	case KindInvalidInput, KindValidation:
		return http.StatusBadRequest
	case KindUnauthenticated, KindMFARequired:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// Error is the structured error carried between layers.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// E creates a new domain error.
func E(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Errorf creates a new domain error with a formatted message.
func Errorf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a kind and message to an underlying cause.
func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// KindOf extracts the kind from an error chain. Unclassified errors are
// Internal: an error that escaped without a kind is a bug, not user input.
func KindOf(err error) Kind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindInternal
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
