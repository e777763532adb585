package session

import (
	"log/slog"
	"sync"
)

// Emitter delivers state changes to subscribers, synchronously and in
// subscription order.
type Emitter struct {
	mu       sync.RWMutex
	nextID   int
	handlers []subscription
	logger   *slog.Logger
}

type subscription struct {
	id int
	fn func(State)
}

// NewEmitter creates an emitter. A nil logger uses slog.Default().
func NewEmitter(logger *slog.Logger) *Emitter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Emitter{logger: logger}
}

// Subscribe registers fn and returns a function that removes it.
func (e *Emitter) Subscribe(fn func(State)) (unsubscribe func()) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.nextID++
	id := e.nextID
	e.handlers = append(e.handlers, subscription{id: id, fn: fn})

	var once sync.Once
	return func() {
		once.Do(func() {
			e.mu.Lock()
			defer e.mu.Unlock()
			for i, h := range e.handlers {
				if h.id == id {
					e.handlers = append(e.handlers[:i:i], e.handlers[i+1:]...)
					return
				}
			}
		})
	}
}

// Emit calls every subscriber with state. A panicking subscriber is logged
// and does not stop delivery to the others.
func (e *Emitter) Emit(state State) {
	e.mu.RLock()
	handlers := make([]subscription, len(e.handlers))
	copy(handlers, e.handlers)
	e.mu.RUnlock()

	for _, h := range handlers {
		e.call(h.fn, state)
	}
}

func (e *Emitter) call(fn func(State), state State) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("State change subscriber panicked",
				"state", state.String(),
				"panic", r,
			)
		}
	}()
	fn(state)
}
