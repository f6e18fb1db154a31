// Package apperrors defines the error taxonomy surfaced at the service boundary.
package apperrors

import (
	"errors"
	"fmt"
)

// Kind classifies an error for boundary handling (HTTP status mapping, retry policy).
type Kind int

const (
	KindUnknown Kind = iota
	KindValidation
	KindNotFound
	KindConflict
	KindExternal
	KindIntegrity
	KindCompensation
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindExternal:
		return "external_service"
	case KindIntegrity:
		return "integrity"
	case KindCompensation:
		return "compensation_failure"
	default:
		return "unknown"
	}
}

// Error is a classified application error. Service is set for external failures
// to identify which upstream misbehaved. Retryable is only meaningful for
// KindExternal: a retryable failure may be retried with backoff up to a bounded
// attempt count; everything else surfaces immediately.
type Error struct {
	Kind      Kind
	Service   string
	Msg       string
	Retryable bool
	Err       error
}

func (e *Error) Error() string {
	switch {
	case e.Err != nil && e.Msg != "":
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	default:
		return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches on Kind so callers can compare against sentinel-shaped targets.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return e.Kind == t.Kind
}

func Validation(format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Msg: fmt.Sprintf(format, args...)}
}

func NotFound(format string, args ...any) *Error {
	return &Error{Kind: KindNotFound, Msg: fmt.Sprintf(format, args...)}
}

func Conflict(format string, args ...any) *Error {
	return &Error{Kind: KindConflict, Msg: fmt.Sprintf(format, args...)}
}

// External wraps a failure from an upstream provider. retryable marks whether
// the operation is safe and worthwhile to retry.
func External(service string, retryable bool, err error) *Error {
	return &Error{Kind: KindExternal, Service: service, Retryable: retryable, Err: err}
}

func Externalf(service string, retryable bool, format string, args ...any) *Error {
	return &Error{Kind: KindExternal, Service: service, Retryable: retryable, Msg: fmt.Sprintf(format, args...)}
}

func Integrity(err error) *Error {
	return &Error{Kind: KindIntegrity, Err: err}
}

// Compensation marks a failed rollback step. It is never absorbed: local and
// external state have diverged and manual reconciliation is required.
func Compensation(msg string, err error) *Error {
	return &Error{Kind: KindCompensation, Msg: msg, Err: err}
}

// KindOf extracts the taxonomy kind from any error chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// IsRetryable reports whether err is an external failure safe to retry.
func IsRetryable(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == KindExternal && e.Retryable
	}
	return false
}
