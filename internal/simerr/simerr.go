// Package simerr implements the error taxonomy from spec.md §7, shared by
// every core so callers can type-switch on failure class instead of parsing
// error strings. Modeled on the teacher's fmt.Errorf("...: %w", err)
// wrapping plus sentinel-error convention (see executor.ErrNoHistogramData,
// checked with errors.Is in parsers.go).
package simerr

import "fmt"

// Code classifies a simulator failure.
type Code int

const (
	// InvalidArgument: null/out-of-range inputs, inconsistent config.
	InvalidArgument Code = iota
	// CapacityExceeded: queue full, class tree full, SRCU slots full,
	// scheduler task limit reached.
	CapacityExceeded
	// StateViolation: operation attempted in the wrong state.
	StateViolation
	// Transient: would-block condition; caller may retry.
	Transient
	// Fatal: thread-creation failure at start(), OOM during construction.
	Fatal
)

func (c Code) String() string {
	switch c {
	case InvalidArgument:
		return "InvalidArgument"
	case CapacityExceeded:
		return "CapacityExceeded"
	case StateViolation:
		return "StateViolation"
	case Transient:
		return "Transient"
	case Fatal:
		return "Fatal"
	default:
		return "Unknown"
	}
}

// Error is the typed error result every runtime operation returns. Workers
// never panic; they either propagate an *Error up through a return value or,
// for non-fatal classes, swallow it into a counter and continue (per
// spec.md §7's "internal worker threads swallow non-fatal errors").
type Error struct {
	Code      Code
	Component string
	Op        string
	Err       error
}

func New(code Code, component, op string, err error) *Error {
	return &Error{Code: code, Component: component, Op: op, Err: err}
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %s: %v", e.Component, e.Op, e.Code, e.Err)
	}
	return fmt.Sprintf("%s: %s: %s", e.Component, e.Op, e.Code)
}

func (e *Error) Unwrap() error { return e.Err }

// Is lets errors.Is(err, &simerr.Error{Code: simerr.CapacityExceeded})
// style checks work by comparing codes when both sides are *Error; a bare
// Code is not an error and cannot be a target — callers more commonly just
// inspect Code directly via errors.As.
func (e *Error) Is(target error) bool {
	other, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == other.Code
}

// IsRetryable reports whether a caller may retry the operation unchanged.
func IsRetryable(err error) bool {
	var se *Error
	if e, ok := err.(*Error); ok {
		se = e
	} else {
		return false
	}
	return se.Code == Transient
}
