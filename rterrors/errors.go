// Package rterrors defines the error taxonomy shared by every runtime
// package: a closed set of error kinds, sentinel errors for comparison
// with errors.Is, and a structured wrapper that carries operation and
// entity context without accumulating any hidden global state.
package rterrors

import (
	"errors"
	"fmt"
)

// Kind is a closed classification of runtime errors. It intentionally
// does not distinguish concrete Go types — callers branch on Kind, not on
// reflection.
type Kind string

const (
	// Input errors
	KindNullArg      Kind = "input.null_arg"
	KindInvalidValue Kind = "input.invalid_value"
	KindOutOfRange   Kind = "input.out_of_range"
	KindTooLarge     Kind = "input.too_large"

	// Protocol errors
	KindHTTPBadRequest   Kind = "protocol.http_400"
	KindHTTPUnauthorized Kind = "protocol.http_401"
	KindHTTPForbidden    Kind = "protocol.http_403"
	KindHTTPNotFound     Kind = "protocol.http_404"
	KindHTTPRateLimit    Kind = "protocol.http_429"
	KindHTTPServerError  Kind = "protocol.http_5xx"
	KindHTTPOther        Kind = "protocol.http_other"
	KindFormat           Kind = "protocol.format"
	KindSize             Kind = "protocol.size"
	KindQueueFull        Kind = "protocol.queue_full"

	// System errors
	KindMemory  Kind = "system.memory"
	KindFile    Kind = "system.file"
	KindProcess Kind = "system.process"
	KindSocket  Kind = "system.socket"
	KindIO      Kind = "system.io"

	// CI-specific errors
	KindNoProvider  Kind = "ci.no_provider"
	KindDisconnected Kind = "ci.disconnected"
	KindInvalid     Kind = "ci.invalid"
	KindTimeout     Kind = "ci.timeout"
	KindConfused    Kind = "ci.confused"

	// Internal errors
	KindCorrupt       Kind = "internal.corrupt"
	KindNotImplemented Kind = "internal.not_implemented"
	KindLogic         Kind = "internal.logic"
)

// RuntimeError is the structured report every operation returns alongside
// (or instead of) a plain error: the failing operation, its kind, an
// optional entity ID, a human message and the wrapped cause.
type RuntimeError struct {
	Op      string
	Kind    Kind
	ID      string
	Message string
	Err     error
}

func (e *RuntimeError) Error() string {
	switch {
	case e.Op != "" && e.ID != "":
		return fmt.Sprintf("%s [%s]: %s", e.Op, e.ID, e.detail())
	case e.Op != "":
		return fmt.Sprintf("%s: %s", e.Op, e.detail())
	default:
		return e.detail()
	}
}

func (e *RuntimeError) detail() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return string(e.Kind)
}

// Unwrap allows errors.Is/errors.As to see through to the underlying cause.
func (e *RuntimeError) Unwrap() error {
	return e.Err
}

// New builds a RuntimeError for the given operation and kind.
func New(op string, kind Kind, message string) *RuntimeError {
	return &RuntimeError{Op: op, Kind: kind, Message: message}
}

// Wrap builds a RuntimeError around an existing error.
func Wrap(op string, kind Kind, err error) *RuntimeError {
	return &RuntimeError{Op: op, Kind: kind, Err: err}
}

// WithID attaches an entity ID (CI name, session ID, ...) to a RuntimeError.
func (e *RuntimeError) WithID(id string) *RuntimeError {
	e.ID = id
	return e
}

// KindOf extracts the Kind from err if it (or something it wraps) is a
// *RuntimeError; returns "" otherwise.
func KindOf(err error) Kind {
	var re *RuntimeError
	if errors.As(err, &re) {
		return re.Kind
	}
	return ""
}

// Is reports whether err carries the given Kind.
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// Sentinel errors for direct comparison, mirroring the corpus's
// errors.New-based sentinels used alongside the structured type.
var (
	ErrCINotFound        = errors.New("ci not found")
	ErrPortExhausted     = errors.New("no free port in role range")
	ErrCapacityExceeded  = errors.New("registry at capacity")
	ErrNegotiationActive = errors.New("merge negotiation already active")
	ErrWorkflowRunning   = errors.New("workflow already running")
	ErrNegotiationOpen   = errors.New("negotiation incomplete")
)

// IsRetryable reports whether the error kind represents a transient
// condition a caller might reasonably retry. The runtime itself never
// retries provider HTTP calls (see spec Non-goals); this helper exists
// for callers composing their own policy on top.
func IsRetryable(err error) bool {
	switch KindOf(err) {
	case KindHTTPRateLimit, KindHTTPServerError, KindTimeout, KindDisconnected:
		return true
	}
	return false
}

// IsNotFound reports whether the error represents a missing entity.
func IsNotFound(err error) bool {
	if errors.Is(err, ErrCINotFound) {
		return true
	}
	return KindOf(err) == KindHTTPNotFound
}

// IsConfused reports a subprocess-CLI non-zero exit per spec §6/§7.
func IsConfused(err error) bool {
	return KindOf(err) == KindConfused
}
