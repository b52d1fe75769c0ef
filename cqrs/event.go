package cqrs

import (
	"time"

	"github.com/google/uuid"
)

// Event is a domain event describing a change that has happened to an aggregate.
type Event interface {
	AggregateID() string
	EventType() string
}

// Envelope wraps an Event together with the bookkeeping the store and the
// durable log need: a unique event identifier, the stream it belongs to, the
// version it occupies inside that stream and the time it occurred.
//
// Versions within a stream are strictly increasing by one, with no gaps.
type Envelope struct {
	EventID    uuid.UUID
	StreamID   string
	Metadata   map[string]any
	Event      Event
	Version    uint64
	OccurredAt time.Time
}
