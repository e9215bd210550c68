package easyloop

import (
	"sync/atomic"
	"time"
)

// LoopHandle is the capability object for one goroutine's loop, bundling its
// task-spawning and timer-registration facilities.
//
// A handle is created once per goroutine and remains valid for the
// goroutine's lifetime; obtaining it twice yields the same handle. It is
// owned by that goroutine: every method except [LoopHandle.NewPromise]
// fails with [ErrWrongGoroutine] when called from anywhere else.
type LoopHandle struct {
	// Prevent copying
	_ [0]func()

	slot *loopSlot
}

func (h *LoopHandle) checkOwner() error {
	if getGoroutineID() != h.slot.gid {
		return ErrWrongGoroutine
	}
	return nil
}

// Submit schedules fn to run on the loop during a drive. Tasks submitted
// while no Run call is active stay queued until the next drive.
func (h *LoopHandle) Submit(fn func()) error {
	if err := h.checkOwner(); err != nil {
		return err
	}
	h.slot.loop.submit(fn)
	return nil
}

// SetTimeout schedules fn to run after delay and returns an id usable with
// [LoopHandle.ClearTimeout]. A nil fn returns 0 without scheduling. A zero
// (or negative) delay still takes at least one scheduling step; callbacks
// never run synchronously within SetTimeout.
func (h *LoopHandle) SetTimeout(fn func(), delay time.Duration) (TimerID, error) {
	if err := h.checkOwner(); err != nil {
		return 0, err
	}
	if fn == nil {
		return 0, nil
	}
	return h.slot.loop.scheduleTimer(delay, fn), nil
}

// ClearTimeout cancels a timer scheduled with [LoopHandle.SetTimeout].
// Returns [ErrTimerNotFound] if the timer already fired or the id is
// unknown.
func (h *LoopHandle) ClearTimeout(id TimerID) error {
	if err := h.checkOwner(); err != nil {
		return err
	}
	return h.slot.loop.cancelTimer(id)
}

// Timeout returns a future that fulfills (with a nil value) once at least
// delay has elapsed, subject to timer granularity. Expiry is single-shot
// and final.
func (h *LoopHandle) Timeout(delay time.Duration) (*Promise, error) {
	if err := h.checkOwner(); err != nil {
		return nil, err
	}
	return timeoutOn(h.slot, delay), nil
}

// Interval schedules fn to run repeatedly, delay apart, on the loop. The
// returned stop function cancels the interval and is safe to call more than
// once, from any goroutine. A nil fn returns a no-op stop.
func (h *LoopHandle) Interval(delay time.Duration, fn func()) (stop func(), err error) {
	if err := h.checkOwner(); err != nil {
		return nil, err
	}
	return intervalOn(h.slot, delay, fn), nil
}

// Spawn schedules p for independent progress on the loop. The caller is not
// blocked, and the result is discarded: a rejection is logged and isolated
// rather than propagated to the driving Run.
func (h *LoopHandle) Spawn(p *Promise) error {
	if err := h.checkOwner(); err != nil {
		return err
	}
	return spawnOn(h.slot, p)
}

// NewPromise creates a pending promise bound to this handle's loop, along
// with its resolve and reject functions. Unlike the handle itself, resolve
// and reject may be called from any goroutine; settlement handlers still
// execute on the owning loop.
func (h *LoopHandle) NewPromise() (*Promise, ResolveFunc, RejectFunc) {
	return newPromise(h.slot.loop)
}

// intervalState tracks one repeating callback. Clearing is cooperative: the
// flag is checked before each firing and before each reschedule, so at most
// one stale firing window exists after stop.
type intervalState struct {
	fn      func()
	loop    *loop
	delay   time.Duration
	cleared atomic.Bool
}

func (st *intervalState) run() {
	if st.cleared.Load() {
		return
	}
	st.fn()
	if st.cleared.Load() {
		return
	}
	st.loop.scheduleTimer(st.delay, st.run)
}

func intervalOn(s *loopSlot, delay time.Duration, fn func()) (stop func()) {
	if fn == nil {
		return func() {}
	}
	st := &intervalState{fn: fn, loop: s.loop, delay: delay}
	s.loop.scheduleTimer(delay, st.run)
	return func() {
		st.cleared.Store(true)
	}
}

func timeoutOn(s *loopSlot, delay time.Duration) *Promise {
	p, resolve, _ := newPromise(s.loop)
	s.loop.scheduleTimer(delay, func() {
		resolve(nil)
	})
	return p
}

func spawnOn(s *loopSlot, p *Promise) error {
	if p == nil {
		return nil
	}
	if p.loop != s.loop {
		return ErrWrongGoroutine
	}
	loopID := s.loop.id
	p.Catch(func(reason Result) Result {
		getLogger().Warning().
			Uint64("loop", loopID).
			Err(reasonToError(reason)).
			Log("easyloop: spawned task failed")
		return nil
	})
	return nil
}
