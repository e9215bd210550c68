package easyloop

import (
	"sync"
	"sync/atomic"
)

// Result is the value type carried by promises. It is intentionally untyped;
// callers assert the concrete type at the point of use.
type Result = any

// PromiseState represents the lifecycle state of a [Promise].
type PromiseState int32

const (
	// Pending indicates the promise has not settled.
	Pending PromiseState = iota
	// Fulfilled indicates the promise settled with a value.
	Fulfilled
	// Rejected indicates the promise settled with a failure reason.
	Rejected
)

// String returns a human-readable representation of the state.
func (s PromiseState) String() string {
	switch s {
	case Pending:
		return "Pending"
	case Fulfilled:
		return "Fulfilled"
	case Rejected:
		return "Rejected"
	default:
		return "Unknown"
	}
}

// ResolveFunc fulfills a promise with a value. Only the first settlement has
// an effect. Can be called from any goroutine.
type ResolveFunc func(Result)

// RejectFunc rejects a promise with a reason. Only the first settlement has
// an effect. Can be called from any goroutine.
type RejectFunc func(Result)

// Promise is a single-settlement future bound to one loop.
//
// Settlement may happen from any goroutine, but handlers registered via
// [Promise.Then], [Promise.Catch], and [Promise.Finally] always execute on
// the owning loop, during a drive. Expiry and settlement are final; there is
// no retry state.
type Promise struct {
	loop   *loop
	result Result

	// handlers and channels are only non-empty while pending.
	handlers []handler
	channels []chan Result

	state atomic.Int32
	mu    sync.Mutex
}

// handler is a reaction to settlement, feeding a chained target promise.
type handler struct {
	onFulfilled func(Result) Result
	onRejected  func(Result) Result
	target      *Promise
}

// newPromise creates a pending promise bound to l along with its resolve and
// reject functions.
func newPromise(l *loop) (*Promise, ResolveFunc, RejectFunc) {
	p := &Promise{loop: l}
	return p, p.resolve, p.reject
}

// settledPromise creates an already-settled promise, used for rejection
// propagation through Finally.
func settledPromise(l *loop, state PromiseState, res Result) *Promise {
	p := &Promise{loop: l, result: res}
	p.state.Store(int32(state))
	return p
}

// State returns the current [PromiseState]. Safe from any goroutine.
func (p *Promise) State() PromiseState {
	return PromiseState(p.state.Load())
}

// Value returns the fulfillment value, or nil if not fulfilled.
func (p *Promise) Value() Result {
	if p.State() == Fulfilled {
		return p.result
	}
	return nil
}

// Reason returns the rejection reason, or nil if not rejected.
func (p *Promise) Reason() Result {
	if p.State() == Rejected {
		return p.result
	}
	return nil
}

func (p *Promise) resolve(v Result) {
	// Resolving with another promise adopts its eventual settlement.
	if inner, ok := v.(*Promise); ok {
		if inner == p {
			p.settle(Rejected, &RejectionError{Reason: "promise resolved with itself"})
			return
		}
		if inner != nil {
			inner.Then(
				func(v Result) Result { p.resolve(v); return nil },
				func(r Result) Result { p.reject(r); return nil },
			)
			return
		}
	}
	p.settle(Fulfilled, v)
}

func (p *Promise) reject(r Result) {
	p.settle(Rejected, r)
}

// settle transitions Pending → state exactly once, delivers any ToChannel
// receivers immediately, and schedules pending handlers onto the loop.
func (p *Promise) settle(state PromiseState, res Result) {
	p.mu.Lock()
	if p.State() != Pending {
		p.mu.Unlock()
		return
	}
	// result must be published before the state store: State/Value/Reason
	// read lock-free, ordered by the atomic load.
	p.result = res
	p.state.Store(int32(state))
	handlers := p.handlers
	channels := p.channels
	p.handlers = nil
	p.channels = nil
	p.mu.Unlock()

	for _, ch := range channels {
		ch <- res
		close(ch)
	}
	for _, h := range handlers {
		p.dispatch(h, state, res)
	}
}

// Then registers settlement callbacks and returns the chained promise.
//
// A nil callback passes the settlement through to the chained promise
// unchanged. A non-nil callback's return value fulfills the chained promise;
// returning a *Promise causes the chained promise to adopt it. A panic in a
// callback rejects the chained promise with a [PanicError].
func (p *Promise) Then(onFulfilled, onRejected func(Result) Result) *Promise {
	h := handler{
		onFulfilled: onFulfilled,
		onRejected:  onRejected,
		target:      &Promise{loop: p.loop},
	}

	p.mu.Lock()
	if p.State() == Pending {
		p.handlers = append(p.handlers, h)
		p.mu.Unlock()
		return h.target
	}
	state := p.State()
	res := p.result
	p.mu.Unlock()

	p.dispatch(h, state, res)
	return h.target
}

// Catch registers a rejection callback; shorthand for Then(nil, onRejected).
func (p *Promise) Catch(onRejected func(Result) Result) *Promise {
	return p.Then(nil, onRejected)
}

// Finally runs fn once the promise settles, preserving the settlement: the
// returned promise fulfills or rejects exactly as p did.
func (p *Promise) Finally(fn func()) *Promise {
	return p.Then(
		func(v Result) Result {
			fn()
			return v
		},
		func(r Result) Result {
			fn()
			return settledPromise(p.loop, Rejected, r)
		},
	)
}

// ToChannel returns a channel that receives the settlement result exactly
// once and is then closed. The channel is buffered; delivery does not depend
// on the loop being driven.
//
// Fulfillment values and rejection reasons are delivered the same way; use
// [Promise.State] to distinguish them after receipt.
func (p *Promise) ToChannel() <-chan Result {
	ch := make(chan Result, 1)
	p.mu.Lock()
	if p.State() == Pending {
		p.channels = append(p.channels, ch)
		p.mu.Unlock()
		return ch
	}
	res := p.result
	p.mu.Unlock()
	ch <- res
	close(ch)
	return ch
}

// dispatch schedules a handler onto the loop for execution during a drive.
func (p *Promise) dispatch(h handler, state PromiseState, res Result) {
	p.loop.submit(func() {
		runHandler(h, state, res)
	})
}

// runHandler executes a settlement handler on the loop goroutine and settles
// the chained target.
func runHandler(h handler, state PromiseState, res Result) {
	var cb func(Result) Result
	if state == Fulfilled {
		cb = h.onFulfilled
	} else {
		cb = h.onRejected
	}

	if cb == nil {
		// Pass-through: settlement propagates down the chain unchanged.
		if state == Fulfilled {
			h.target.resolve(res)
		} else {
			h.target.reject(res)
		}
		return
	}

	var out Result
	panicked := true
	func() {
		defer func() {
			if r := recover(); r != nil {
				h.target.reject(PanicError{Value: r})
			}
		}()
		out = cb(res)
		panicked = false
	}()
	if panicked {
		return
	}
	h.target.resolve(out)
}
