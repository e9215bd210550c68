package easyloop

import (
	"context"
)

// Promisify executes fn in a new goroutine and returns a future representing
// its result, bound to this handle's loop.
//
// It ensures:
//   - Goexit handling: if the goroutine exits via runtime.Goexit, the
//     promise is rejected with [ErrGoexit] rather than hanging indefinitely.
//   - Panic handling: a panic in fn rejects the promise with a [PanicError].
//   - Context propagation: ctx is passed to fn, which can use ctx.Done() to
//     detect cancellation; if ctx has ended before fn starts, the promise is
//     rejected with ctx's error without invoking fn.
//
// Settlement is routed through the loop, so handlers observe it during a
// drive like any other promise.
func (h *LoopHandle) Promisify(ctx context.Context, fn func(ctx context.Context) (Result, error)) (*Promise, error) {
	if err := h.checkOwner(); err != nil {
		return nil, err
	}

	p, resolve, reject := newPromise(h.slot.loop)

	go func() {
		// Completion flag distinguishes normal return from Goexit.
		completed := false
		defer func() {
			if r := recover(); r != nil {
				reject(PanicError{Value: r})
			} else if !completed {
				reject(ErrGoexit)
			}
		}()

		select {
		case <-ctx.Done():
			completed = true
			reject(ctx.Err())
			return
		default:
		}

		res, err := fn(ctx)
		completed = true
		if err != nil {
			reject(err)
		} else {
			resolve(res)
		}
	}()

	return p, nil
}
