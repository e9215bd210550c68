package easyloop

import (
	"context"
	"time"
)

// Producer is invoked by [Run], on the loop, to obtain the future that the
// blocking drive waits on.
type Producer func() (*Promise, error)

// Run drives the calling goroutine's loop until the future returned by
// producer settles, then returns its fulfillment value or failure.
//
// The loop is created lazily on first use. producer is not invoked inline:
// it runs as the first task of the drive, so [Handle], [Timeout], and
// [Spawn] are all usable inside it. Run fails fast with [ErrAlreadyRunning]
// if a Run call is already driving this goroutine's loop; the running flag
// is cleared on every exit path, including producer failure and ctx
// cancellation, so one failed Run never wedges the goroutine.
//
// If ctx ends before the future settles, Run returns ctx's error. Work left
// on the loop (spawned tasks, unexpired timers) stays queued for a later
// Run on the same goroutine.
func Run(ctx context.Context, producer Producer) (Result, error) {
	if producer == nil {
		return nil, ErrNilFuture
	}

	s, err := ensureSlot()
	if err != nil {
		return nil, err
	}
	if err := s.enter(); err != nil {
		return nil, err
	}
	defer s.exit()

	var (
		res   Result
		cause error
		done  = make(chan struct{})

		// abandoned marks this invocation dead once drive fails, so a
		// still-queued bootstrap (or settlement handler) from this Run
		// cannot execute inside a later Run on the same goroutine. The
		// flag is only touched on the owning goroutine: set after drive
		// returns, read by loop tasks during a drive.
		abandoned bool
	)

	// Bootstrap task: obtain the future on the loop, then bind its
	// settlement to ending the drive. res and cause are only written by
	// loop tasks, which execute on this goroutine during drive.
	s.loop.submit(func() {
		if abandoned {
			return
		}
		p, err := runProducer(producer)
		if err != nil {
			cause = err
			close(done)
			return
		}
		if p == nil {
			cause = ErrNilFuture
			close(done)
			return
		}
		p.Then(
			func(v Result) Result {
				if abandoned {
					return nil
				}
				res = v
				close(done)
				return nil
			},
			func(r Result) Result {
				if abandoned {
					return nil
				}
				cause = reasonToError(r)
				close(done)
				return nil
			},
		)
	})

	if err := s.loop.drive(ctx, done); err != nil {
		abandoned = true
		return nil, err
	}
	return res, cause
}

// runProducer invokes producer with panic isolation; a panicking producer
// surfaces as a PanicError from Run rather than leaving the loop
// half-entered.
func runProducer(producer Producer) (p *Promise, err error) {
	defer func() {
		if r := recover(); r != nil {
			p, err = nil, PanicError{Value: r}
		}
	}()
	return producer()
}

// RunForever drives the calling goroutine's loop until ctx ends, returning
// ctx's error, or until init fails, returning init's error. init runs as the
// first task of the drive and typically spawns the long-lived work (for
// example via [Interval] or [Spawn]).
func RunForever(ctx context.Context, init func() error) error {
	s, err := ensureSlot()
	if err != nil {
		return err
	}
	if err := s.enter(); err != nil {
		return err
	}
	defer s.exit()

	var (
		cause error
		done  = make(chan struct{})

		// Same staleness guard as Run's bootstrap.
		abandoned bool
	)

	s.loop.submit(func() {
		if abandoned {
			return
		}
		if err := runInit(init); err != nil {
			cause = err
			close(done)
		}
	})

	if err := s.loop.drive(ctx, done); err != nil {
		abandoned = true
		return err
	}
	return cause
}

func runInit(init func() error) (err error) {
	if init == nil {
		return nil
	}
	defer func() {
		if r := recover(); r != nil {
			err = PanicError{Value: r}
		}
	}()
	return init()
}

// Handle returns the calling goroutine's [LoopHandle]. It never creates a
// loop: calling it on a goroutine whose loop was not initialized (by [Run],
// [Timeout], or [Interval]) fails with [ErrNoActiveLoop].
func Handle() (*LoopHandle, error) {
	s, ok := currentSlot()
	if !ok {
		return nil, ErrNoActiveLoop
	}
	return s.handle, nil
}

// IsRunning reports whether a [Run] call is currently driving the calling
// goroutine's loop.
func IsRunning() bool {
	s, ok := currentSlot()
	return ok && s.running
}

// Timeout returns a future that fulfills (with a nil value) once at least
// delay has elapsed, registered against the calling goroutine's loop. The
// loop is created lazily if absent; creation failure is reported as a
// [ConstructError].
//
// A zero delay still takes at least one scheduling step before resolving,
// preserving fairness with other pending work.
func Timeout(delay time.Duration) (*Promise, error) {
	s, err := ensureSlot()
	if err != nil {
		return nil, err
	}
	return timeoutOn(s, delay), nil
}

// Interval schedules fn to run repeatedly, delay apart, on the calling
// goroutine's loop, creating the loop lazily if absent. The returned stop
// function cancels the interval.
func Interval(delay time.Duration, fn func()) (stop func(), err error) {
	s, err := ensureSlot()
	if err != nil {
		return nil, err
	}
	return intervalOn(s, delay, fn), nil
}

// Spawn schedules p for independent progress on the calling goroutine's
// loop without blocking the caller. It requires an already-initialized loop
// and fails with [ErrNoActiveLoop] otherwise: spawning never implicitly
// creates a loop, only [Run] and the lazy timer entry points do, to avoid
// silently starting loops that nobody drives.
//
// p's result, if not awaited elsewhere, is discarded; a failure inside p is
// logged and isolated, never propagated to the driving [Run].
func Spawn(p *Promise) error {
	s, ok := currentSlot()
	if !ok {
		return ErrNoActiveLoop
	}
	return spawnOn(s, p)
}
