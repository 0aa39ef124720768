// Package pdferrors defines the error kinds raised during serialization.
//
// None of these are recovered locally: any failure aborts the whole
// serialization pass, because offsets already written would be inconsistent
// with a retried attempt. Callers discard the buffer and re-run from scratch.
package pdferrors

import (
	"errors"
	"fmt"
)

// Kind classifies a serialization failure.
type Kind int

const (
	// KindValidation marks malformed input: a name without its / prefix, a
	// character code out of range, non-ASCII text pushed into a text-only
	// write, or an out-of-bounds in-place patch.
	KindValidation Kind = iota

	// KindState marks an operation invoked out of order, such as signing
	// before the byte range has been reserved.
	KindState

	// KindTransform marks a failed compression, encryption or signing
	// callback.
	KindTransform
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindState:
		return "state"
	case KindTransform:
		return "transform"
	}
	return "unknown"
}

// Error carries a kind plus an optional wrapped cause.
type Error struct {
	kind Kind
	msg  string
	err  error
}

func (e *Error) Kind() Kind { return e.kind }

func (e *Error) Error() string {
	if e.err != nil {
		return e.msg + ": " + e.err.Error()
	}
	return e.msg
}

func (e *Error) Unwrap() error { return e.err }

// Validation returns a new KindValidation error.
func Validation(format string, args ...any) error {
	return &Error{kind: KindValidation, msg: fmt.Sprintf(format, args...)}
}

// State returns a new KindState error.
func State(format string, args ...any) error {
	return &Error{kind: KindState, msg: fmt.Sprintf(format, args...)}
}

// Transform wraps a failed transform callback, keeping the cause reachable
// through errors.Unwrap.
func Transform(op string, err error) error {
	return &Error{kind: KindTransform, msg: op, err: err}
}

func isKind(err error, k Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.kind == k
	}
	return false
}

func IsValidation(err error) bool { return isKind(err, KindValidation) }
func IsState(err error) bool      { return isKind(err, KindState) }
func IsTransform(err error) bool  { return isKind(err, KindTransform) }
