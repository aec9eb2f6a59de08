// Package coreerrors defines the unified error taxonomy shared by every
// layer of the capsule storage core: persistence primitives, blob
// store, upload sessions, capsule store, access control, and the
// memory/asset domain. No bare errors.New string crosses a package
// boundary — callers construct a *CoreError via the factory functions
// below and switch on Kind (or use errors.Is/As) to decide retry
// behavior.
package coreerrors

import (
	"errors"
	"fmt"
)

// Kind classifies a CoreError for retry and mapping decisions.
type Kind int

const (
	// KindUnauthorized means the caller lacks the required permission.
	KindUnauthorized Kind = iota
	// KindNotFound means the resource does not exist.
	KindNotFound
	// KindConflict means an idempotency or uniqueness violation, a
	// duplicate chunk index, or a state machine mismatch.
	KindConflict
	// KindInvalidArgument means a schema or constraint violation.
	KindInvalidArgument
	// KindResourceExhausted means a budget or storage limit was hit.
	KindResourceExhausted
	// KindInternal means an invariant was broken; implies a bug.
	KindInternal
	// KindNotImplemented means a reserved, not-yet-wired endpoint.
	KindNotImplemented
)

// String renders the Kind the way it appears in error messages and
// logs.
func (k Kind) String() string {
	switch k {
	case KindUnauthorized:
		return "unauthorized"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindInvalidArgument:
		return "invalid_argument"
	case KindResourceExhausted:
		return "resource_exhausted"
	case KindInternal:
		return "internal"
	case KindNotImplemented:
		return "not_implemented"
	default:
		return "unknown"
	}
}

// Retryable reports whether a caller might reasonably retry an
// operation that failed with this Kind. Per the spec's error table,
// only Conflict is situationally retryable; everything else is not.
func (k Kind) Retryable() bool {
	return k == KindConflict
}

// CoreError is the concrete error type returned by every exported
// operation in this module.
type CoreError struct {
	Kind     Kind
	Reason   string // machine-readable detail, e.g. "checksum_mismatch"
	Resource string // optional resource identifier or path
	Message  string // human-readable message
	Cause    error
}

func (e *CoreError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = e.Kind.String()
		if e.Reason != "" {
			msg = fmt.Sprintf("%s: %s", msg, e.Reason)
		}
	}
	if e.Resource != "" {
		msg = fmt.Sprintf("%s (resource=%s)", msg, e.Resource)
	}
	if e.Cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

func (e *CoreError) Unwrap() error {
	return e.Cause
}

// Is supports errors.Is comparison by Kind and Reason: two *CoreError
// values match if their Kind is equal and either Reason is empty or
// both Reasons are equal. This lets callers write
// errors.Is(err, coreerrors.Conflict("duplicate_chunk_index")).
func (e *CoreError) Is(target error) bool {
	var t *CoreError
	if !errors.As(target, &t) {
		return false
	}
	if e.Kind != t.Kind {
		return false
	}
	if t.Reason == "" || e.Reason == "" {
		return true
	}
	return e.Reason == t.Reason
}

func new(kind Kind, reason, format string, args ...any) *CoreError {
	return &CoreError{Kind: kind, Reason: reason, Message: fmt.Sprintf(format, args...)}
}

// Unauthorized reports that the caller lacks a required permission.
func Unauthorized(format string, args ...any) *CoreError {
	return new(KindUnauthorized, "", format, args...)
}

// NotFound reports a missing resource, identified by resource.
func NotFound(resource string, format string, args ...any) *CoreError {
	e := new(KindNotFound, "", format, args...)
	e.Resource = resource
	return e
}

// Conflict reports an idempotency, uniqueness, or state-machine
// violation, tagged with a machine-readable reason.
func Conflict(reason string, format string, args ...any) *CoreError {
	return new(KindConflict, reason, format, args...)
}

// InvalidArgument reports a schema or constraint violation, tagged
// with a machine-readable reason.
func InvalidArgument(reason string, format string, args ...any) *CoreError {
	return new(KindInvalidArgument, reason, format, args...)
}

// ResourceExhausted reports a budget or storage limit violation.
func ResourceExhausted(format string, args ...any) *CoreError {
	return new(KindResourceExhausted, "", format, args...)
}

// Internal reports a broken invariant. Internal errors indicate a bug
// and should trigger guardrail-test scrutiny, never silent recovery.
func Internal(reason string, format string, args ...any) *CoreError {
	return new(KindInternal, reason, format, args...)
}

// NotImplemented reports a reserved endpoint.
func NotImplemented(format string, args ...any) *CoreError {
	return new(KindNotImplemented, "", format, args...)
}

// Wrap attaches cause to err without changing its Kind/Reason. Useful
// when a lower layer's generic error (e.g. a badger I/O failure) needs
// surfacing as an Internal CoreError with context preserved for logs.
func Wrap(kind Kind, reason string, cause error, format string, args ...any) *CoreError {
	e := new(kind, reason, format, args...)
	e.Cause = cause
	return e
}

func IsUnauthorized(err error) bool     { return hasKind(err, KindUnauthorized) }
func IsNotFound(err error) bool         { return hasKind(err, KindNotFound) }
func IsConflict(err error) bool         { return hasKind(err, KindConflict) }
func IsInvalidArgument(err error) bool  { return hasKind(err, KindInvalidArgument) }
func IsResourceExhausted(err error) bool { return hasKind(err, KindResourceExhausted) }
func IsInternal(err error) bool         { return hasKind(err, KindInternal) }
func IsNotImplemented(err error) bool   { return hasKind(err, KindNotImplemented) }

func hasKind(err error, kind Kind) bool {
	var e *CoreError
	if !errors.As(err, &e) {
		return false
	}
	return e.Kind == kind
}
