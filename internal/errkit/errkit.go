// Package errkit defines the typed error taxonomy (spec.md §7) the core's
// components surface upward: a Kind classifying the failure plus a
// Context record of where it happened, so callers can branch on Kind
// without string-matching error messages.
package errkit

import (
	"errors"
	"fmt"
)

// Kind classifies an error by its recovery semantics, not by the
// component that raised it.
type Kind string

const (
	KindValidation       Kind = "validation"
	KindTranslation      Kind = "translation"
	KindStorage          Kind = "storage"
	KindTemporalConflict Kind = "temporal_conflict"
	KindConfiguration    Kind = "configuration"
	KindConnection       Kind = "connection"
	KindTimeout          Kind = "timeout"
	KindAbort            Kind = "abort"
	KindDisposed         Kind = "disposed"
	KindNotFound         Kind = "not_found"
	KindIntegrityFail    Kind = "integrity_fail"
	KindAuthenticityFail Kind = "authenticity_fail"
	KindRateLimited      Kind = "rate_limited"
)

// Recoverable reports whether a caller may retry the operation that
// produced an error of this kind (spec.md §7).
func (k Kind) Recoverable() bool {
	switch k {
	case KindTemporalConflict, KindConnection, KindTimeout, KindAbort, KindRateLimited:
		return true
	default:
		return false
	}
}

// Error is the typed error every component surface upward: a Kind plus
// the context record spec.md §7's propagation policy requires
// (component, operation, correlation id, optional cause).
type Error struct {
	Kind          Kind
	Component     string
	Operation     string
	CorrelationID string
	Message       string
	Cause         error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s.%s [%s]: %s: %v", e.Component, e.Operation, e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s.%s [%s]: %s", e.Component, e.Operation, e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// New constructs a typed Error.
func New(kind Kind, component, operation, message string) *Error {
	return &Error{Kind: kind, Component: component, Operation: operation, Message: message}
}

// Wrap constructs a typed Error around an underlying cause.
func Wrap(kind Kind, component, operation string, cause error) *Error {
	return &Error{Kind: kind, Component: component, Operation: operation, Message: cause.Error(), Cause: cause}
}

// WithCorrelation returns a copy of e carrying a correlation id, for
// threading a single request's id through nested component errors.
func (e *Error) WithCorrelation(id string) *Error {
	cp := *e
	cp.CorrelationID = id
	return &cp
}

// Is reports whether err is (or wraps) an *Error of the given Kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}
