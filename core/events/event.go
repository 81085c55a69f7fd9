package events

import "tokensale/core/types"

// Event represents a structured state change emitted by the engine.
type Event interface {
	EventType() string
}

// Emitter receives every committed event, in emission order. Implementations
// must not block; the node calls Emit while holding its operation lock.
type Emitter interface {
	Emit(types.Event)
}

// NoopEmitter satisfies the Emitter interface while discarding all events.
type NoopEmitter struct{}

// Emit implements the Emitter interface.
func (NoopEmitter) Emit(types.Event) {}
