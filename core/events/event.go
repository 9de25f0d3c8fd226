package events

import (
	"sync"

	"cookledger/core/types"
)

// Event represents a structured state change emitted by the ledger.
type Event interface {
	EventType() string
}

// Payload is implemented by events that carry a broadcastable body.
type Payload interface {
	Event() *types.Event
}

// Emitter broadcasts events to downstream subscribers (e.g. RPC, indexers).
type Emitter interface {
	Emit(Event)
}

// NoopEmitter is a helper that satisfies the Emitter interface while discarding
// all events. It is useful when a component wants to optionally expose events.
type NoopEmitter struct{}

// Emit implements the Emitter interface.
func (NoopEmitter) Emit(Event) {}

// Buffer holds events until the surrounding transaction commits.
type Buffer struct {
	events []Event
}

// Emit implements the Emitter interface.
func (b *Buffer) Emit(evt Event) {
	if evt == nil {
		return
	}
	b.events = append(b.events, evt)
}

// Drain returns the buffered events and empties the buffer.
func (b *Buffer) Drain() []Event {
	out := b.events
	b.events = nil
	return out
}

// Len reports the number of buffered events.
func (b *Buffer) Len() int { return len(b.events) }

// Bus fans committed events out to every registered emitter.
type Bus struct {
	mu        sync.RWMutex
	listeners []Emitter
}

// NewBus returns a bus with the supplied listeners.
func NewBus(listeners ...Emitter) *Bus {
	bus := &Bus{}
	for _, l := range listeners {
		bus.Subscribe(l)
	}
	return bus
}

// Subscribe registers an additional listener.
func (b *Bus) Subscribe(l Emitter) {
	if l == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.listeners = append(b.listeners, l)
}

// Emit implements the Emitter interface.
func (b *Bus) Emit(evt Event) {
	b.mu.RLock()
	listeners := append([]Emitter(nil), b.listeners...)
	b.mu.RUnlock()
	for _, l := range listeners {
		l.Emit(evt)
	}
}
