package easyloop

import (
	"errors"
	"fmt"
)

// Standard errors.
var (
	// ErrAlreadyRunning is returned when Run is called on a goroutine whose
	// loop is already being driven by another Run call.
	ErrAlreadyRunning = errors.New("easyloop: loop is already running on this goroutine")

	// ErrNoActiveLoop is returned when an accessor that does not lazily
	// create a loop is used on a goroutine with no initialized loop.
	ErrNoActiveLoop = errors.New("easyloop: no active loop on this goroutine")

	// ErrWrongGoroutine is returned when a LoopHandle or Promise is used from
	// a goroutine other than the one that owns its loop.
	ErrWrongGoroutine = errors.New("easyloop: loop handle used outside its owning goroutine")

	// ErrNilFuture is returned by Run when the producer returns a nil promise.
	ErrNilFuture = errors.New("easyloop: producer returned a nil future")

	// ErrTimerNotFound is returned by LoopHandle.ClearTimeout when the timer
	// id is invalid or the timer has already fired.
	ErrTimerNotFound = errors.New("easyloop: timer not found")

	// ErrGoexit is used to reject a promisified result when the goroutine
	// exits via runtime.Goexit rather than returning.
	ErrGoexit = errors.New("easyloop: goroutine exited via runtime.Goexit")
)

// ConstructError reports that constructing the reactor for a goroutine
// failed. The goroutine's state is left untouched, so a later call may retry.
type ConstructError struct {
	Cause error
}

// Error implements the error interface.
func (e *ConstructError) Error() string {
	return fmt.Sprintf("easyloop: construct reactor: %v", e.Cause)
}

// Unwrap returns the underlying cause for use with [errors.Is] and [errors.As].
func (e *ConstructError) Unwrap() error {
	return e.Cause
}

// PanicError wraps a panic value recovered from a producer, a promise
// handler, or a promisified function.
type PanicError struct {
	Value any
}

// Error implements the error interface.
func (e PanicError) Error() string {
	return fmt.Sprintf("easyloop: panicked: %v", e.Value)
}

// Unwrap returns the underlying error if the panic value is an error type.
// This enables use with [errors.Is] and [errors.As] through the cause chain.
// If the panic Value is not an error, returns nil.
func (e PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}

// RejectionError wraps a non-error rejection reason so it can propagate
// through error returns. The original reason is available via Reason.
type RejectionError struct {
	Reason Result
}

// Error implements the error interface.
func (e *RejectionError) Error() string {
	return fmt.Sprintf("easyloop: promise rejected: %v", e.Reason)
}

// reasonToError converts a rejection reason into an error, passing errors
// through unchanged.
func reasonToError(reason Result) error {
	if err, ok := reason.(error); ok {
		return err
	}
	return &RejectionError{Reason: reason}
}
