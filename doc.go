// Package easyloop provides a per-goroutine asynchronous execution context: a
// lazily-created event loop (task scheduling plus timers) bound to the calling
// goroutine, and a small set of entry points ([Run], [Handle], [Timeout],
// [Spawn]) that let arbitrary code obtain and drive that loop without
// threading a loop handle through every call.
//
// # Execution Model
//
// Each goroutine owns at most one loop. The loop is created lazily on first
// use and is driven cooperatively, on the owning goroutine, by a blocking
// [Run] call: [Run] invokes its producer on the loop, then executes ready
// work and expired timers until the producer's future settles. There is no
// preemption, no work stealing, and no cross-goroutine work migration;
// loops on different goroutines are fully independent.
//
//	res, err := easyloop.Run(ctx, func() (*easyloop.Promise, error) {
//	    return easyloop.Timeout(time.Second)
//	})
//
// Inside a running loop (or on any goroutine that already initialized one),
// [Handle] returns the loop's capability object, [Timeout] registers a
// single-shot timer future, and [Spawn] schedules a future for independent
// progress whose failure is isolated from the driving [Run].
//
// # Goroutine Affinity
//
// A [LoopHandle] is owned by the goroutine that created its loop. Using a
// handle from any other goroutine fails with [ErrWrongGoroutine]; Go cannot
// make the misuse inexpressible, so it is rejected at every call instead.
// The resolve and reject functions returned by [LoopHandle.NewPromise] are
// the deliberate exception: they may be called from any goroutine, and
// settlement handlers still execute on the owning loop.
//
// # Errors
//
// Misuse is reported with typed failures, never a panic:
//   - [ErrAlreadyRunning]: nested [Run] on the same goroutine
//   - [ErrNoActiveLoop]: accessor used on a goroutine with no initialized loop
//   - [ErrWrongGoroutine]: handle or promise used off its owning goroutine
//   - [ConstructError]: reactor construction failed (retryable on a later call)
//   - [PanicError]: wraps panics recovered from producers and handlers
//
// Failures of the producer's future are returned from [Run] unchanged when
// the rejection reason is an error, and wrapped in [RejectionError] otherwise.
//
// # Logging
//
// The package is silent by default. [SetLogger] installs a
// [github.com/joeycumines/logiface] logger used for task panics, spawned
// task failures, and loop lifecycle diagnostics.
package easyloop
