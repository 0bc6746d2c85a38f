package fsm_test

import (
	"sync"
	"testing"

	"github.com/fluxorio/threadpool/pkg/core/fsm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	StateIdle    fsm.State = "IDLE"
	StateRunning fsm.State = "RUNNING"
	StateStopped fsm.State = "STOPPED"

	EventStart fsm.Event = "START"
	EventStop  fsm.Event = "STOP"
)

func TestFSM(t *testing.T) {
	machine := fsm.NewFSM(StateIdle,
		fsm.Transition{From: StateIdle, Event: EventStart, To: StateRunning},
		fsm.Transition{From: StateRunning, Event: EventStop, To: StateStopped},
	)

	if machine.CurrentState() != StateIdle {
		t.Errorf("expected state %s, got %s", StateIdle, machine.CurrentState())
	}

	if err := machine.Trigger(EventStop); err == nil {
		t.Error("expected error triggering STOP from IDLE")
	}

	if err := machine.Trigger(EventStart); err != nil {
		t.Fatalf("failed to trigger START: %v", err)
	}
	if machine.CurrentState() != StateRunning {
		t.Errorf("expected state %s, got %s", StateRunning, machine.CurrentState())
	}

	if err := machine.Trigger(EventStop); err != nil {
		t.Fatalf("failed to trigger STOP: %v", err)
	}
	if machine.CurrentState() != StateStopped {
		t.Errorf("expected state %s, got %s", StateStopped, machine.CurrentState())
	}

	if err := machine.Trigger(EventStart); err == nil {
		t.Error("expected error triggering START from STOPPED")
	}
}

func TestFSM_ConcurrentReaders(t *testing.T) {
	machine := fsm.NewFSM(StateIdle,
		fsm.Transition{From: StateIdle, Event: EventStart, To: StateRunning},
		fsm.Transition{From: StateRunning, Event: EventStop, To: StateIdle},
	)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				s := machine.CurrentState()
				assert.Contains(t, []fsm.State{StateIdle, StateRunning}, s)
			}
		}()
	}
	for j := 0; j < 100; j++ {
		machine.MustTrigger(EventStart)
		machine.MustTrigger(EventStop)
	}
	wg.Wait()

	assert.Equal(t, StateIdle, machine.CurrentState())
}

func TestFSM_TransitionTableAndObserver(t *testing.T) {
	machine := fsm.NewFSM(StateIdle,
		fsm.Transition{From: StateIdle, Event: EventStart, To: StateRunning},
		fsm.Transition{From: StateRunning, Event: EventStop, To: StateIdle},
	)

	var seen []fsm.State
	machine.Observe(func(from, to fsm.State, event fsm.Event) {
		seen = append(seen, from, to)
	})

	require.NoError(t, machine.Trigger(EventStart))
	require.NoError(t, machine.Trigger(EventStop))

	assert.Equal(t, []fsm.State{StateIdle, StateRunning, StateRunning, StateIdle}, seen)
}

func TestFSM_MustTriggerPanicsOnInvalidTransition(t *testing.T) {
	machine := fsm.NewFSM(StateStopped)

	assert.Panics(t, func() { machine.MustTrigger(EventStart) })
	assert.Equal(t, StateStopped, machine.CurrentState())
}
