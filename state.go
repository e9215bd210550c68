package easyloop

import (
	"sync/atomic"
)

// driveState represents the current state of a loop's drive cycle.
//
// State machine:
//
//	stateIdle (0) → stateDriving (1)    [drive()]
//	stateDriving (1) → stateParked (2)  [park() via CAS]
//	stateParked (2) → stateDriving (1)  [wake via CAS]
//	stateDriving (1) → stateIdle (0)    [drive() returns]
//
// Unlike a terminating event loop there is no terminal state: a loop returns
// to stateIdle when its drive completes and may be driven again later.
type driveState uint32

const (
	// stateIdle indicates no Run call is driving the loop.
	stateIdle driveState = iota
	// stateDriving indicates the loop is actively processing tasks and timers.
	stateDriving
	// stateParked indicates the loop is blocked waiting for work or a timer.
	stateParked
)

// String returns a human-readable representation of the state.
func (s driveState) String() string {
	switch s {
	case stateIdle:
		return "Idle"
	case stateDriving:
		return "Driving"
	case stateParked:
		return "Parked"
	default:
		return "Unknown"
	}
}

// loopState is a lock-free state cell. Use tryTransition (CAS) for the
// driving/parked flips; store is reserved for drive entry and exit, which
// are single-writer by construction (only the owning goroutine drives).
type loopState struct {
	v atomic.Uint32
}

func (s *loopState) load() driveState {
	return driveState(s.v.Load())
}

func (s *loopState) store(state driveState) {
	s.v.Store(uint32(state))
}

func (s *loopState) tryTransition(from, to driveState) bool {
	return s.v.CompareAndSwap(uint32(from), uint32(to))
}
