package session

import (
	"log/slog"
	"slices"
	"sync"
)

// Handler runs as part of an accepted transition.
type Handler func()

// Machine is the session state machine.
//
// Fire is expected to be called from serialized jobs only; the mutex protects
// readers of State, not concurrent writers.
type Machine struct {
	mu          sync.RWMutex
	state       State
	transitions map[Event]Transition
	onEvent     map[Event]Handler
	onEnter     map[State]Handler
	emitter     *Emitter
	logger      *slog.Logger
}

// MachineOption configures a Machine.
type MachineOption func(*Machine)

// WithEventHandler runs h whenever ev is accepted.
func WithEventHandler(ev Event, h Handler) MachineOption {
	return func(m *Machine) {
		m.onEvent[ev] = h
	}
}

// WithEnterHandler runs h whenever the machine enters state.
func WithEnterHandler(state State, h Handler) MachineOption {
	return func(m *Machine) {
		m.onEnter[state] = h
	}
}

// WithTransitions replaces the transition table.
func WithTransitions(transitions map[Event]Transition) MachineOption {
	return func(m *Machine) {
		m.transitions = transitions
	}
}

// WithLogger sets the logger used for rejected transitions.
func WithLogger(logger *slog.Logger) MachineOption {
	return func(m *Machine) {
		m.logger = logger
	}
}

// NewMachine creates a machine in NewSession that publishes state changes to
// emitter.
func NewMachine(emitter *Emitter, opts ...MachineOption) *Machine {
	m := &Machine{
		state:       NewSession,
		transitions: DefaultTransitions(),
		onEvent:     make(map[Event]Handler),
		onEnter:     make(map[State]Handler),
		emitter:     emitter,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.emitter == nil {
		m.emitter = NewEmitter(m.logger)
	}
	return m
}

// State returns the current state.
func (m *Machine) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// Can reports whether ev would be accepted in the current state.
func (m *Machine) Can(ev Event) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.transitions[ev]
	return ok && slices.Contains(t.From, m.state)
}

// Fire applies ev. It returns false without side effects when the current
// state is not a source of ev. Otherwise the state is updated, the event
// handler runs, and if the state actually changed the enter handler runs and
// the new state is emitted.
func (m *Machine) Fire(ev Event) bool {
	m.mu.Lock()
	t, ok := m.transitions[ev]
	if !ok || !slices.Contains(t.From, m.state) {
		from := m.state
		m.mu.Unlock()
		m.logger.Debug("Ignoring invalid session transition",
			"event", ev.String(),
			"state", from.String(),
		)
		return false
	}
	from := m.state
	m.state = t.To
	m.mu.Unlock()

	if h := m.onEvent[ev]; h != nil {
		h()
	}

	if from == t.To {
		return true
	}

	if h := m.onEnter[t.To]; h != nil {
		h()
	}
	m.logger.Debug("Session state changed",
		"event", ev.String(),
		"from", from.String(),
		"to", t.To.String(),
	)
	m.emitter.Emit(t.To)
	return true
}
