package easyloop

import (
	"runtime"
	"sync"
)

// loopSlot is the per-goroutine loop state: either absent (no registry
// entry) or present with a running flag. The running flag and the loop/
// handle fields are mutated only by the owning goroutine; the registry lock
// below covers the map itself, not slot contents.
type loopSlot struct {
	handle *LoopHandle
	loop   *loop

	// gid is the owning goroutine, fixed at creation.
	gid uint64

	// running is true only while a Run call on the owning goroutine is
	// actively driving the loop.
	running bool
}

// slots is the goroutine-keyed registry standing in for thread-local
// storage. Goroutine IDs are never reused within a process, so a key
// identifies its goroutine for the process lifetime.
var slots = struct {
	sync.RWMutex
	m map[uint64]*loopSlot
}{m: make(map[uint64]*loopSlot)}

// reactorFactory constructs the reactor for a new slot. It is a variable so
// tests can inject construction failures.
var reactorFactory = newLoop

// ensureSlot returns the calling goroutine's slot, constructing the reactor
// and registering the slot on first use. On construction failure the
// goroutine's state is left absent, so a later call may retry.
func ensureSlot() (*loopSlot, error) {
	gid := getGoroutineID()

	slots.RLock()
	s := slots.m[gid]
	slots.RUnlock()
	if s != nil {
		return s, nil
	}

	l, err := reactorFactory()
	if err != nil {
		return nil, &ConstructError{Cause: err}
	}

	s = &loopSlot{loop: l, gid: gid}
	s.handle = &LoopHandle{slot: s}

	slots.Lock()
	slots.m[gid] = s
	slots.Unlock()

	getLogger().Debug().
		Uint64("goroutine", gid).
		Uint64("loop", l.id).
		Log("easyloop: loop created")

	return s, nil
}

// currentSlot returns the calling goroutine's slot without creating one.
func currentSlot() (*loopSlot, bool) {
	gid := getGoroutineID()
	slots.RLock()
	s := slots.m[gid]
	slots.RUnlock()
	return s, s != nil
}

// enter sets the running flag, failing if a Run call is already driving this
// goroutine's loop. Nested blocking drives on one goroutine would deadlock
// the loop against itself.
func (s *loopSlot) enter() error {
	if s.running {
		return ErrAlreadyRunning
	}
	s.running = true
	return nil
}

// exit clears the running flag. Callers defer this immediately after enter
// succeeds; the flag must be cleared on every exit path from Run.
func (s *loopSlot) exit() {
	s.running = false
}

// getGoroutineID returns the current goroutine's ID, parsed from the
// runtime.Stack header.
func getGoroutineID() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	var id uint64
	for i := len("goroutine "); i < n; i++ {
		if buf[i] >= '0' && buf[i] <= '9' {
			id = id*10 + uint64(buf[i]-'0')
		} else {
			break
		}
	}
	return id
}
