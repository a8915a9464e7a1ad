// Package apperrors defines the error taxonomy shared by the ledger services,
// the data-access layer and the HTTP adapter.
package apperrors

import (
	"errors"
	"fmt"
)

// Kind is the stable, machine-readable category of an error.
type Kind string

const (
	KindNotFound          Kind = "not_found"
	KindValidation        Kind = "validation"
	KindInvalidState      Kind = "invalid_state"
	KindInvalidTransition Kind = "invalid_transition"
	KindConflict          Kind = "conflict"
	KindOverpayment       Kind = "overpayment"
	KindTransient         Kind = "transient"
	KindInternal          Kind = "internal"
)

// Sentinels for errors.Is matching. Only the Kind is compared.
var (
	ErrNotFound          = &Error{Kind: KindNotFound}
	ErrValidation        = &Error{Kind: KindValidation}
	ErrInvalidState      = &Error{Kind: KindInvalidState}
	ErrInvalidTransition = &Error{Kind: KindInvalidTransition}
	ErrConflict          = &Error{Kind: KindConflict}
	ErrOverpayment       = &Error{Kind: KindOverpayment}
	ErrTransient         = &Error{Kind: KindTransient}
)

// Error carries a Kind, the operation that failed and a human-readable reason.
type Error struct {
	// Kind identifies the error category.
	Kind Kind

	// Op is the operation that failed (e.g. "payment.record").
	Op string

	// Reason is safe to show to API callers.
	Reason string

	// Err is the underlying error, if any.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := string(e.Kind)
	if e.Reason != "" {
		msg = e.Reason
	}
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches on Kind. An overpayment also matches ErrConflict.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if e.Kind == t.Kind {
		return true
	}
	return e.Kind == KindOverpayment && t.Kind == KindConflict
}

func newf(kind Kind, op, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Reason: fmt.Sprintf(format, args...)}
}

// NotFound reports an unknown id.
func NotFound(op, format string, args ...any) *Error {
	return newf(KindNotFound, op, format, args...)
}

// Validation reports malformed input.
func Validation(op, format string, args ...any) *Error {
	return newf(KindValidation, op, format, args...)
}

// InvalidState reports an operation that is not valid in the current lifecycle state.
func InvalidState(op, format string, args ...any) *Error {
	return newf(KindInvalidState, op, format, args...)
}

// InvalidTransition reports a status change outside the allowed table.
func InvalidTransition(op string, from, to fmt.Stringer) *Error {
	return newf(KindInvalidTransition, op, "cannot move from %s to %s", from, to)
}

// Conflict reports a uniqueness or concurrency conflict.
func Conflict(op, format string, args ...any) *Error {
	return newf(KindConflict, op, format, args...)
}

// Overpayment reports a paid amount that would exceed the document total.
func Overpayment(op, format string, args ...any) *Error {
	return newf(KindOverpayment, op, format, args...)
}

// Transient wraps a storage failure the client may retry explicitly.
func Transient(op string, err error) *Error {
	return &Error{Kind: KindTransient, Op: op, Reason: "temporary storage failure, retry the request", Err: err}
}

// KindOf returns the Kind of err, or KindInternal when err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// ReasonOf returns the caller-facing reason of err.
func ReasonOf(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Reason != "" {
		return e.Reason
	}
	return "internal server error"
}
