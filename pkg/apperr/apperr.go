// Package apperr defines the closed set of failure kinds returned by services.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies a failure. Handlers switch on it to pick a status code.
type Kind int

const (
	// KindInternal is an unexpected failure (storage, credential generation).
	KindInternal Kind = iota
	// KindInvalid is a malformed request.
	KindInvalid
	// KindNotFound means an id did not resolve.
	KindNotFound
	// KindForbidden means the caller may not perform the action.
	KindForbidden
	// KindConflict means the action is not valid in the current state.
	KindConflict
)

func (k Kind) String() string {
	switch k {
	case KindInvalid:
		return "invalid"
	case KindNotFound:
		return "not_found"
	case KindForbidden:
		return "forbidden"
	case KindConflict:
		return "conflict"
	default:
		return "internal"
	}
}

// Error is a typed service failure with a stable code.
type Error struct {
	Kind    Kind
	Code    string
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

// Is matches another *Error with the same kind and code, so sentinels keep
// matching after Wrap.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind && e.Code == t.Code
}

// Wrap returns a copy of e carrying cause.
func (e *Error) Wrap(cause error) *Error {
	return &Error{Kind: e.Kind, Code: e.Code, Message: e.Message, Err: cause}
}

func newError(kind Kind, code, msg string) *Error {
	return &Error{Kind: kind, Code: code, Message: msg}
}

// Invalid creates a KindInvalid error.
func Invalid(code, msg string) *Error { return newError(KindInvalid, code, msg) }

// NotFound creates a KindNotFound error.
func NotFound(code, msg string) *Error { return newError(KindNotFound, code, msg) }

// Forbidden creates a KindForbidden error.
func Forbidden(code, msg string) *Error { return newError(KindForbidden, code, msg) }

// Conflict creates a KindConflict error.
func Conflict(code, msg string) *Error { return newError(KindConflict, code, msg) }

// Internal creates a KindInternal error. The cause is kept for logs only.
func Internal(cause error) *Error {
	return &Error{Kind: KindInternal, Code: "internal", Message: "internal error", Err: cause}
}

// KindOf returns the kind of err, or KindInternal when err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// As returns err as *Error if it is one.
func As(err error) (*Error, bool) {
	var e *Error
	ok := errors.As(err, &e)
	return e, ok
}
