package model

import "errors"

// Kind is a stable category for programmatic error handling.
//
// Callers should branch on Kind rather than matching error strings.
type Kind string

const (
	// KindIO means file bytes could not be fully read.
	KindIO Kind = "IO"
	// KindTransport means the provider was unreachable or a read call could
	// not be completed or decoded.
	KindTransport Kind = "Transport"
	// KindNotarization means the remote side rejected a state change.
	KindNotarization Kind = "Notarization"
	// KindLookup means a details read failed or the hash is unknown.
	KindLookup Kind = "Lookup"
)

// Error is the structured error type surfaced by the digest and notary layers.
//
// Message is intended for humans; do not match on it. For Notarization errors
// it carries the remote-provided reason when one was available.
type Error struct {
	Kind    Kind
	Op      string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Message != "" {
		return e.Message
	}
	if e.Cause != nil {
		return e.Cause.Error()
	}
	return string(e.Kind) + " error"
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// NewError returns a structured error without a cause.
func NewError(kind Kind, op, msg string) error {
	return &Error{Kind: kind, Op: op, Message: msg}
}

// WrapError returns a structured error around cause. An empty msg reuses the
// cause's message.
func WrapError(kind Kind, op, msg string, cause error) error {
	if cause == nil {
		return NewError(kind, op, msg)
	}
	if msg == "" {
		msg = cause.Error()
	}
	return &Error{Kind: kind, Op: op, Message: msg, Cause: cause}
}

// IsKind reports whether err is (or wraps) an *Error with the given Kind.
func IsKind(err error, kind Kind) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Kind == kind
}

// KindOf returns the Kind of a structured error, or "" if err is not one.
func KindOf(err error) Kind {
	var e *Error
	if !errors.As(err, &e) {
		return ""
	}
	return e.Kind
}
