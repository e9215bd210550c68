package easyloop

import (
	"testing"
)

func TestDriveState_String(t *testing.T) {
	for _, tc := range []struct {
		state driveState
		want  string
	}{
		{stateIdle, "Idle"},
		{stateDriving, "Driving"},
		{stateParked, "Parked"},
		{driveState(42), "Unknown"},
	} {
		if got := tc.state.String(); got != tc.want {
			t.Errorf("%d: got %q, want %q", tc.state, got, tc.want)
		}
	}
}

func TestLoopState_Transitions(t *testing.T) {
	var s loopState
	if got := s.load(); got != stateIdle {
		t.Fatalf("zero value must be Idle, got %v", got)
	}

	s.store(stateDriving)
	if !s.tryTransition(stateDriving, stateParked) {
		t.Error("Driving → Parked should succeed")
	}
	if s.tryTransition(stateDriving, stateParked) {
		t.Error("transition from stale state should fail")
	}
	if !s.tryTransition(stateParked, stateDriving) {
		t.Error("Parked → Driving should succeed")
	}
	if got := s.load(); got != stateDriving {
		t.Errorf("got %v, want Driving", got)
	}
}
