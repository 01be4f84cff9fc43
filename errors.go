// Package asyncrt provides ES2022-compatible error types with cause chain support,
// alongside the runtime's own programming-error and descriptor-error values.
package asyncrt

import (
	"errors"
	"fmt"
)

// AlreadyFilled is raised when fill is called on an Ivar that is already
// Full. This is a programming error: callers must ensure at most one fill
// per Ivar over its lifetime.
type AlreadyFilled struct {
	// Name is the Ivar's debug name, if any.
	Name string
}

func (e *AlreadyFilled) Error() string {
	if e.Name == "" {
		return "asyncrt: ivar already filled"
	}
	return fmt.Sprintf("asyncrt: ivar %q already filled", e.Name)
}

// AlreadyClosed is returned (never panicked) by Fd operations attempted
// against an Fd that is not Open.
type AlreadyClosed struct {
	Name  string
	State FdState
}

func (e *AlreadyClosed) Error() string {
	return fmt.Sprintf("asyncrt: fd %q is %s, not open", e.Name, e.State)
}

// BadFdTransition is raised when an Fd state transition outside the
// allowed set (Open→Close_requested, Open→Replaced, Close_requested→Closed)
// is attempted.
type BadFdTransition struct {
	Name string
	From FdState
	To   FdState
}

func (e *BadFdTransition) Error() string {
	return fmt.Sprintf("asyncrt: fd %q: illegal transition %s -> %s", e.Name, e.From, e.To)
}

// NegativeInFlight is raised if the in-flight syscall counter on an Fd
// would go negative, which can only happen from a bookkeeping bug.
type NegativeInFlight struct {
	Name string
}

func (e *NegativeInFlight) Error() string {
	return fmt.Sprintf("asyncrt: fd %q: in_flight counter went negative", e.Name)
}

// ShutdownConflict is raised when shutdown is called twice with differing
// nonzero exit codes (see Scheduler.Shutdown's reconciliation rule).
type ShutdownConflict struct {
	Existing int
	Proposed int
}

func (e *ShutdownConflict) Error() string {
	return fmt.Sprintf("asyncrt: shutdown already requested with code %d, conflicts with %d", e.Existing, e.Proposed)
}

// PanicError wraps a panic value recovered from a job's thunk by the
// scheduler's job-execution boundary, or from a Scheduler.OffloadSyscall goroutine.
type PanicError struct {
	// Value is the recovered panic value (may be any type, including error).
	Value any
}

// Error implements the error interface.
func (e PanicError) Error() string {
	return fmt.Sprintf("asyncrt: panic: %v", e.Value)
}

// Unwrap returns the underlying error if the panic value is an error type.
// This enables use with [errors.Is] and [errors.As] for error matching
// through the cause chain. Returns nil if the panic value is not an error.
func (e PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}

// ErrGoexit is used to reject an OffloadSyscall deferred when the
// goroutine running it exits via runtime.Goexit() rather than returning.
var ErrGoexit = errors.New("asyncrt: goroutine exited via runtime.Goexit")

// AggregateError collects more than one failure; the shutdown hook fan-in
// builds one from every failed hook (All and AllUnit have no failure
// channel of their own). Modeled on
// JavaScript's AggregateError and on Go 1.20+ multi-error Unwrap.
type AggregateError struct {
	// Message is a short human summary.
	Message string
	// Errors holds every contributing error, in the order observed.
	Errors []error
}

func (e *AggregateError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s (%d errors)", e.Message, len(e.Errors))
	}
	return fmt.Sprintf("asyncrt: %d errors occurred", len(e.Errors))
}

// AggregateErrorCause returns the first error in Errors, if any. Provided
// for ES2022 .cause-style access to a primary underlying cause.
func (e *AggregateError) AggregateErrorCause() error {
	if len(e.Errors) > 0 {
		return e.Errors[0]
	}
	return nil
}

// Unwrap returns the errors slice for multi-error unwrapping (Go 1.20+),
// enabling errors.Is/errors.As to check against every contained error.
func (e *AggregateError) Unwrap() []error {
	return e.Errors
}

// Is reports whether target is an *AggregateError (contents are not
// compared; use errors.Is/errors.As against the individual Errors for that).
func (e *AggregateError) Is(target error) bool {
	var aggTarget *AggregateError
	return errors.As(target, &aggTarget)
}

// TypeError represents a type error, similar to JavaScript's TypeError.
type TypeError struct {
	Cause   error
	Message string
}

func (e *TypeError) Error() string {
	if e.Message == "" {
		return "asyncrt: type error"
	}
	return e.Message
}

func (e *TypeError) Unwrap() error { return e.Cause }

// RangeError represents an out-of-range argument, similar to JavaScript's
// RangeError.
type RangeError struct {
	Cause   error
	Message string
}

func (e *RangeError) Error() string {
	if e.Message == "" {
		return "asyncrt: range error"
	}
	return e.Message
}

func (e *RangeError) Unwrap() error { return e.Cause }

// TimeoutError represents an operation that failed to complete within a
// deadline, used by WithTimeout (see combinators.go).
type TimeoutError struct {
	Cause   error
	Message string
}

func (e *TimeoutError) Error() string {
	if e.Message == "" {
		return "asyncrt: operation timed out"
	}
	return e.Message
}

func (e *TimeoutError) Unwrap() error { return e.Cause }

// WrapError wraps an error with a message, preserving the chain so that
// errors.Is(result, cause) == true.
func WrapError(message string, cause error) error {
	return fmt.Errorf("%s: %w", message, cause)
}
