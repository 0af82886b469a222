// Package apperr defines the error kinds shared by the repository and its callers.
package apperr

import (
	"errors"
	"fmt"
)

// Kind is a machine-readable error category surfaced to API clients.
type Kind string

const (
	KindNotFound          Kind = "not_found"
	KindInvalidPayload    Kind = "invalid_payload"
	KindRemoteUnavailable Kind = "remote_unavailable"
	KindRemoteFailure     Kind = "remote_failure"
	KindConflict          Kind = "conflict"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrInvalidPayload    = errors.New("invalid payload")
	ErrRemoteUnavailable = errors.New("remote repository is not configured")
	ErrRemoteFailure     = errors.New("remote failure")
	ErrConflict          = errors.New("conflict")
	ErrAlreadyExists     = errors.New("already exists")
)

// Error wraps a cause with a kind and the operation that failed.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

// New returns an *Error of the given kind.
func New(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Invalid returns an invalid_payload error with a formatted message.
func Invalid(op, format string, args ...any) *Error {
	return &Error{Kind: KindInvalidPayload, Op: op, Err: fmt.Errorf(format, args...)}
}

func (e *Error) Error() string {
	if e.Err == nil {
		return string(e.Kind)
	}
	if e.Op == "" {
		return e.Err.Error()
	}
	return e.Op + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

// Is makes errors.Is match the sentinel of the error's kind.
// A conflict also matches ErrRemoteFailure.
func (e *Error) Is(target error) bool {
	switch target {
	case ErrNotFound:
		return e.Kind == KindNotFound
	case ErrInvalidPayload:
		return e.Kind == KindInvalidPayload
	case ErrRemoteUnavailable:
		return e.Kind == KindRemoteUnavailable
	case ErrRemoteFailure:
		return e.Kind == KindRemoteFailure || e.Kind == KindConflict
	case ErrConflict:
		return e.Kind == KindConflict
	}
	return false
}

// KindOf reports the kind of err. Errors that carry no kind are remote failures.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	switch {
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrInvalidPayload):
		return KindInvalidPayload
	case errors.Is(err, ErrRemoteUnavailable):
		return KindRemoteUnavailable
	case errors.Is(err, ErrConflict), errors.Is(err, ErrAlreadyExists):
		return KindConflict
	}
	return KindRemoteFailure
}
