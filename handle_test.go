package easyloop

import (
	"context"
	"errors"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testHandle(t *testing.T) *LoopHandle {
	t.Helper()
	_, err := Timeout(0)
	require.NoError(t, err)
	h, err := Handle()
	require.NoError(t, err)
	return h
}

func TestLoopHandle_OwnerChecks(t *testing.T) {
	h := testHandle(t)

	type outcome struct {
		name string
		err  error
	}
	ch := make(chan outcome, 6)
	go func() {
		err := h.Submit(func() {})
		ch <- outcome{"Submit", err}
		_, err = h.SetTimeout(func() {}, time.Millisecond)
		ch <- outcome{"SetTimeout", err}
		err = h.ClearTimeout(1)
		ch <- outcome{"ClearTimeout", err}
		_, err = h.Timeout(time.Millisecond)
		ch <- outcome{"Timeout", err}
		_, err = h.Interval(time.Millisecond, func() {})
		ch <- outcome{"Interval", err}
		err = h.Spawn(nil)
		ch <- outcome{"Spawn", err}
		_, err = h.Promisify(context.Background(), func(context.Context) (Result, error) {
			return nil, nil
		})
		ch <- outcome{"Promisify", err}
	}()
	for i := 0; i < 7; i++ {
		o := <-ch
		assert.ErrorIs(t, o.err, ErrWrongGoroutine, o.name)
	}
}

func TestLoopHandle_NewPromiseCrossGoroutine(t *testing.T) {
	h := testHandle(t)

	// NewPromise and the settlement functions are explicitly exempt from the
	// owner check: promises exist to carry results across goroutines.
	p, resolve, _ := h.NewPromise()
	go resolve("from elsewhere")

	res, err := Run(context.Background(), func() (*Promise, error) {
		return p, nil
	})
	require.NoError(t, err)
	assert.Equal(t, "from elsewhere", res)
}

func TestLoopHandle_SetTimeoutNilCallback(t *testing.T) {
	h := testHandle(t)
	id, err := h.SetTimeout(nil, time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, TimerID(0), id)
}

func TestLoopHandle_ClearTimeoutCancelsBeforeFire(t *testing.T) {
	h := testHandle(t)

	fired := false
	_, err := Run(context.Background(), func() (*Promise, error) {
		id, err := h.SetTimeout(func() { fired = true }, 5*time.Millisecond)
		if err != nil {
			return nil, err
		}
		if err := h.ClearTimeout(id); err != nil {
			return nil, err
		}
		return h.Timeout(30 * time.Millisecond)
	})
	require.NoError(t, err)
	assert.False(t, fired)
}

func TestLoopHandle_ClearTimeoutAfterFire(t *testing.T) {
	h := testHandle(t)

	var id TimerID
	fired := false
	_, err := Run(context.Background(), func() (*Promise, error) {
		var err error
		id, err = h.SetTimeout(func() { fired = true }, time.Millisecond)
		if err != nil {
			return nil, err
		}
		return h.Timeout(30 * time.Millisecond)
	})
	require.NoError(t, err)
	require.True(t, fired)
	assert.ErrorIs(t, h.ClearTimeout(id), ErrTimerNotFound)
}

func TestLoopHandle_ClearTimeoutUnknownID(t *testing.T) {
	h := testHandle(t)
	assert.ErrorIs(t, h.ClearTimeout(TimerID(1<<40)), ErrTimerNotFound)
}

func TestLoopHandle_TimerOrdering(t *testing.T) {
	h := testHandle(t)

	var order []string
	_, err := Run(context.Background(), func() (*Promise, error) {
		if _, err := h.SetTimeout(func() { order = append(order, "late") }, 20*time.Millisecond); err != nil {
			return nil, err
		}
		if _, err := h.SetTimeout(func() { order = append(order, "early") }, 5*time.Millisecond); err != nil {
			return nil, err
		}
		return h.Timeout(40 * time.Millisecond)
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"early", "late"}, order)
}

func TestLoopHandle_IntervalStopsAtThree(t *testing.T) {
	h := testHandle(t)

	ticks := 0
	var stop func()
	_, err := Run(context.Background(), func() (*Promise, error) {
		var err error
		stop, err = h.Interval(5*time.Millisecond, func() {
			ticks++
			if ticks == 3 {
				stop()
			}
		})
		if err != nil {
			return nil, err
		}
		return h.Timeout(60 * time.Millisecond)
	})
	require.NoError(t, err)
	assert.Equal(t, 3, ticks)
}

func TestLoopHandle_IntervalNilCallback(t *testing.T) {
	h := testHandle(t)
	stop, err := h.Interval(time.Millisecond, nil)
	require.NoError(t, err)
	stop()
	stop() // safe to call more than once
}

func TestLoopHandle_SpawnForeignPromise(t *testing.T) {
	h := testHandle(t)

	foreignCh := make(chan *Promise, 1)
	done := make(chan struct{})
	go func() {
		defer close(done)
		other, err := ensureSlot()
		if err != nil {
			t.Error(err)
			foreignCh <- nil
			return
		}
		p, _, _ := newPromise(other.loop)
		foreignCh <- p
	}()
	foreign := <-foreignCh
	<-done
	require.NotNil(t, foreign)

	assert.ErrorIs(t, h.Spawn(foreign), ErrWrongGoroutine)
}

func TestLoopHandle_SpawnNilPromise(t *testing.T) {
	h := testHandle(t)
	assert.NoError(t, h.Spawn(nil))
}

func TestPromisify_Resolves(t *testing.T) {
	res, err := Run(context.Background(), func() (*Promise, error) {
		h, err := Handle()
		if err != nil {
			return nil, err
		}
		return h.Promisify(context.Background(), func(context.Context) (Result, error) {
			return 42, nil
		})
	})
	require.NoError(t, err)
	assert.Equal(t, 42, res)
}

func TestPromisify_ErrorRejects(t *testing.T) {
	boom := errors.New("worker failed")
	_, err := Run(context.Background(), func() (*Promise, error) {
		h, err := Handle()
		if err != nil {
			return nil, err
		}
		return h.Promisify(context.Background(), func(context.Context) (Result, error) {
			return nil, boom
		})
	})
	assert.ErrorIs(t, err, boom)
}

func TestPromisify_PanicRejects(t *testing.T) {
	_, err := Run(context.Background(), func() (*Promise, error) {
		h, err := Handle()
		if err != nil {
			return nil, err
		}
		return h.Promisify(context.Background(), func(context.Context) (Result, error) {
			panic("worker panic")
		})
	})
	var pe PanicError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "worker panic", pe.Value)
}

func TestPromisify_GoexitRejects(t *testing.T) {
	_, err := Run(context.Background(), func() (*Promise, error) {
		h, err := Handle()
		if err != nil {
			return nil, err
		}
		return h.Promisify(context.Background(), func(context.Context) (Result, error) {
			runtime.Goexit()
			return nil, nil
		})
	})
	assert.ErrorIs(t, err, ErrGoexit)
}

func TestPromisify_CanceledContextSkipsFn(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	invoked := false
	_, err := Run(context.Background(), func() (*Promise, error) {
		h, err := Handle()
		if err != nil {
			return nil, err
		}
		return h.Promisify(ctx, func(context.Context) (Result, error) {
			invoked = true
			return nil, nil
		})
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, invoked)
}

func TestLoopHandle_SubmitQueuesAcrossRuns(t *testing.T) {
	h := testHandle(t)

	ran := false
	require.NoError(t, h.Submit(func() { ran = true }))
	assert.False(t, ran, "tasks must wait for a drive")

	_, err := Run(context.Background(), func() (*Promise, error) {
		return h.Timeout(time.Millisecond)
	})
	require.NoError(t, err)
	assert.True(t, ran)
}
