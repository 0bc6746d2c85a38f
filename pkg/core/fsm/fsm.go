package fsm

import (
	"fmt"
	"sync"
)

// State represents a state in the machine
type State string

// Event represents an event that triggers a transition
type Event string

// Transition represents a valid state transition
type Transition struct {
	From  State
	Event Event
	To    State
}

// Observer is notified after every successful transition.
type Observer func(from, to State, event Event)

// FSM is a thread-safe finite state machine
type FSM struct {
	currentState State
	transitions  map[State]map[Event]State
	observers    []Observer
	mu           sync.RWMutex
}

// NewFSM creates a new FSM with the initial state and an optional transition table
func NewFSM(initialState State, transitions ...Transition) *FSM {
	f := &FSM{
		currentState: initialState,
		transitions:  make(map[State]map[Event]State),
	}
	for _, t := range transitions {
		f.addTransition(t.From, t.Event, t.To)
	}
	return f
}

func (f *FSM) addTransition(from State, event Event, to State) {
	if _, ok := f.transitions[from]; !ok {
		f.transitions[from] = make(map[Event]State)
	}
	f.transitions[from][event] = to
}

// Observe registers an observer called synchronously after each transition.
func (f *FSM) Observe(o Observer) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.observers = append(f.observers, o)
}

// CurrentState returns the current state
func (f *FSM) CurrentState() State {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.currentState
}

// Trigger triggers an event
func (f *FSM) Trigger(event Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	from := f.currentState
	toState, ok := f.transitions[from][event]
	if !ok {
		return fmt.Errorf("invalid transition from state '%s' with event '%s'", from, event)
	}

	f.currentState = toState

	// observers run under the lock so they see a consistent state
	for _, o := range f.observers {
		o(from, toState, event)
	}

	return nil
}

// MustTrigger triggers an event and panics if the transition is not allowed.
func (f *FSM) MustTrigger(event Event) {
	if err := f.Trigger(event); err != nil {
		panic(fmt.Errorf("fail-fast: %w", err))
	}
}
