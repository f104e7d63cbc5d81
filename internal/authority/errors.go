package authority

import (
	"context"
	"errors"
)

// Kind classifies authority errors so callers can render inline messages
// without string matching.
type Kind int

const (
	KindUnexpected Kind = iota
	KindValidation
	KindCredential
	KindNetwork
	KindNotFound
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindCredential:
		return "credential"
	case KindNetwork:
		return "network"
	case KindNotFound:
		return "not_found"
	default:
		return "unexpected"
	}
}

// Error is the typed result returned by authority operations and expected
// from Gateway and store implementations.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil && e.Message == "" {
		return e.Cause.Error()
	}
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	if e.Message == "" {
		return e.Kind.String() + " error"
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches by kind, so errors.Is(err, ErrValidation) holds for every
// validation error.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Kind == t.Kind
	}
	return false
}

// Sentinels for errors.Is.
var (
	ErrValidation = &Error{Kind: KindValidation}
	ErrCredential = &Error{Kind: KindCredential}
	ErrNetwork    = &Error{Kind: KindNetwork}
	ErrNotFound   = &Error{Kind: KindNotFound}
	ErrUnexpected = &Error{Kind: KindUnexpected}

	// ErrNotSignedIn is returned by operations that need a principal.
	ErrNotSignedIn = &Error{Kind: KindCredential, Message: "not signed in"}
)

func Validation(msg string) *Error {
	return &Error{Kind: KindValidation, Message: msg}
}

func Credential(msg string, cause error) *Error {
	return &Error{Kind: KindCredential, Message: msg, Cause: cause}
}

func Network(msg string, cause error) *Error {
	return &Error{Kind: KindNetwork, Message: msg, Cause: cause}
}

func NotFound(msg string) *Error {
	return &Error{Kind: KindNotFound, Message: msg}
}

func Unexpected(msg string, cause error) *Error {
	return &Error{Kind: KindUnexpected, Message: msg, Cause: cause}
}

// KindOf reports the kind of err. Context cancellation and deadline errors
// count as network failures; anything untyped is unexpected.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return KindNetwork
	}
	return KindUnexpected
}

// classify returns err as an *Error, wrapping untyped errors.
func classify(err error, msg string) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return &Error{Kind: KindOf(err), Message: msg, Cause: err}
}
