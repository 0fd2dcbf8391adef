package assets

import (
	"fmt"
	"sync"
)

// State is a pipeline build phase.
type State string

const (
	StateIdle      State = "idle"
	StateResolving State = "resolving"
	StateHashing   State = "hashing"
	StateRewriting State = "rewriting"
	StateWriting   State = "writing"
	StateDone      State = "done"
	StateFailed    State = "failed"
)

// IsTerminal reports whether the state ends a build.
func (s State) IsTerminal() bool {
	return s == StateDone || s == StateFailed
}

func isAllowedTransition(from, to State) bool {
	if to == StateFailed {
		return !from.IsTerminal()
	}
	switch from {
	case StateIdle:
		return to == StateResolving
	case StateResolving:
		return to == StateHashing
	case StateHashing:
		return to == StateRewriting
	case StateRewriting:
		return to == StateWriting
	case StateWriting:
		return to == StateDone
	default:
		return false
	}
}

// Observer is notified of every state change.
type Observer func(from, to State)

// StateMachine tracks the phase of one build.
type StateMachine struct {
	mu        sync.Mutex
	state     State
	observers []Observer
}

// NewStateMachine returns a machine in StateIdle.
func NewStateMachine(observers ...Observer) *StateMachine {
	return &StateMachine{state: StateIdle, observers: observers}
}

// State returns the current state.
func (m *StateMachine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Transition moves to the given state, rejecting transitions the build
// lifecycle does not allow.
func (m *StateMachine) Transition(to State) error {
	m.mu.Lock()
	from := m.state
	if !isAllowedTransition(from, to) {
		m.mu.Unlock()
		return fmt.Errorf("invalid pipeline transition: %s -> %s", from, to)
	}
	m.state = to
	observers := m.observers
	m.mu.Unlock()

	for _, o := range observers {
		o(from, to)
	}
	return nil
}

// Fail moves to StateFailed unless the build already ended.
func (m *StateMachine) Fail() {
	_ = m.Transition(StateFailed)
}
