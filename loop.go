package easyloop

import (
	"container/heap"
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// maxParkDelay caps how long a single park blocks. The loop re-checks its
// context and queues at least this often even with no timers registered.
const maxParkDelay = 10 * time.Second

// TimerID identifies a timer registered via [LoopHandle.SetTimeout].
type TimerID uint64

// loop is the per-goroutine reactor: a task queue plus a timer heap, driven
// cooperatively by the owning goroutine.
//
// The loop has no terminal state. drive returns when its completion channel
// closes (or its context ends) and leaves all queues intact, so the same
// loop can be driven again by a later Run call on the owning goroutine.
type loop struct {
	// Prevent copying
	_ [0]func()

	state *loopState

	// wake is the park/wake signal. Capacity 1 deduplicates wake-ups the
	// same way a pending-flag around a wake pipe would.
	wake chan struct{}

	// mu guards tasks, taskBuf, timers, and timerIndex.
	mu         sync.Mutex
	tasks      []func()
	taskBuf    []func()
	timers     timerHeap
	timerIndex map[TimerID]*loopTimer

	nextTimerID atomic.Uint64

	id uint64
}

// loopTimer is a scheduled single-shot callback.
type loopTimer struct {
	when     time.Time
	fn       func()
	id       TimerID
	canceled atomic.Bool
}

// timerHeap is a min-heap of timers ordered by expiry.
type timerHeap []*loopTimer

func (h timerHeap) Len() int           { return len(h) }
func (h timerHeap) Less(i, j int) bool { return h[i].when.Before(h[j].when) }
func (h timerHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }

func (h *timerHeap) Push(x any) {
	*h = append(*h, x.(*loopTimer))
}

func (h *timerHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return x
}

var loopIDCounter atomic.Uint64

// newLoop creates a new reactor. The error return is part of the reactor
// construction contract; see reactorFactory.
func newLoop() (*loop, error) {
	return &loop{
		id:         loopIDCounter.Add(1),
		state:      &loopState{},
		wake:       make(chan struct{}, 1),
		timerIndex: make(map[TimerID]*loopTimer),
	}, nil
}

// submit appends a task to the queue and wakes the loop if parked.
// Safe to call from any goroutine; the task executes on the owning goroutine
// during a drive.
func (l *loop) submit(fn func()) {
	if fn == nil {
		return
	}
	l.mu.Lock()
	l.tasks = append(l.tasks, fn)
	l.mu.Unlock()
	l.wakeUp()
}

// wakeUp nudges a parked drive. The buffered channel makes this idempotent
// while a wake-up is already pending.
func (l *loop) wakeUp() {
	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// scheduleTimer registers fn to run after delay. Negative delays are treated
// as zero. A zero delay still parks registration until the next timer pass;
// callbacks never run synchronously within scheduleTimer.
func (l *loop) scheduleTimer(delay time.Duration, fn func()) TimerID {
	if delay < 0 {
		delay = 0
	}
	t := &loopTimer{
		id:   TimerID(l.nextTimerID.Add(1)),
		when: time.Now().Add(delay),
		fn:   fn,
	}
	l.mu.Lock()
	heap.Push(&l.timers, t)
	l.timerIndex[t.id] = t
	l.mu.Unlock()
	// The new timer may be earlier than the current park deadline.
	l.wakeUp()
	return t.id
}

// cancelTimer cancels a pending timer. Cancellation is lazy: the heap entry
// is skipped when popped. Returns ErrTimerNotFound if the id is unknown or
// the timer already fired.
func (l *loop) cancelTimer(id TimerID) error {
	l.mu.Lock()
	t, ok := l.timerIndex[id]
	if ok {
		delete(l.timerIndex, id)
	}
	l.mu.Unlock()
	if !ok {
		return ErrTimerNotFound
	}
	t.canceled.Store(true)
	return nil
}

// drive runs the loop on the calling goroutine until done closes or ctx
// ends. Pending tasks and timers survive drive returning.
func (l *loop) drive(ctx context.Context, done <-chan struct{}) error {
	l.state.store(stateDriving)
	defer l.state.store(stateIdle)

	for {
		select {
		case <-done:
			return nil
		default:
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		l.runTimers()
		l.drainTasks()

		select {
		case <-done:
			return nil
		default:
		}

		if err := l.park(ctx, done); err != nil {
			return err
		}
	}
}

// runTimers executes all expired timers.
func (l *loop) runTimers() {
	now := time.Now()
	for {
		l.mu.Lock()
		if len(l.timers) == 0 || l.timers[0].when.After(now) {
			l.mu.Unlock()
			return
		}
		t := heap.Pop(&l.timers).(*loopTimer)
		delete(l.timerIndex, t.id)
		l.mu.Unlock()

		if t.canceled.Load() {
			continue
		}
		l.exec(t.fn)
	}
}

// drainTasks executes queued tasks until the queue is observed empty,
// swapping buffers to amortize allocation.
func (l *loop) drainTasks() {
	for {
		l.mu.Lock()
		if len(l.tasks) == 0 {
			l.mu.Unlock()
			return
		}
		tasks := l.tasks
		l.tasks = l.taskBuf[:0]
		l.taskBuf = tasks
		l.mu.Unlock()

		for i, fn := range tasks {
			l.exec(fn)
			tasks[i] = nil
		}
	}
}

// park blocks until new work arrives, the next timer expires, done closes,
// or ctx ends. Returns immediately if work is already queued.
func (l *loop) park(ctx context.Context, done <-chan struct{}) error {
	delay := maxParkDelay
	l.mu.Lock()
	if len(l.tasks) > 0 {
		l.mu.Unlock()
		return nil
	}
	if len(l.timers) > 0 {
		if d := time.Until(l.timers[0].when); d < delay {
			delay = d
		}
	}
	l.mu.Unlock()
	if delay <= 0 {
		// An expired timer is pending; skip straight to the next pass.
		return nil
	}

	if !l.state.tryTransition(stateDriving, stateParked) {
		return nil
	}
	defer l.state.tryTransition(stateParked, stateDriving)

	tm := time.NewTimer(delay)
	defer tm.Stop()

	select {
	case <-l.wake:
	case <-tm.C:
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}
	return nil
}

// exec runs a task with panic isolation; a panicking task must not take
// down the drive.
func (l *loop) exec(fn func()) {
	if fn == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			getLogger().Err().
				Uint64("loop", l.id).
				Field("panic", r).
				Log("easyloop: task panicked")
		}
	}()
	fn()
}
