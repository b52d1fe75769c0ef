package cqrs

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

var now = time.Now

// EventApplier mutates aggregate state for a single event. The implementation
// is a tagged-union switch over the concrete event variants; an unmatched
// variant must be reported with UnknownEventError, never silently ignored.
//
// All state changes of an aggregate happen inside ApplyEvent. Command methods
// only validate preconditions and raise events.
type EventApplier interface {
	ApplyEvent(event Event) error
}

// Aggregate is the interface that all aggregates must implement.
type Aggregate interface {
	EventApplier

	// EntityID returns the unique identifier of the aggregate.
	EntityID() string

	// AggregateVersion returns the version of the aggregate.
	AggregateVersion() uint64

	// UncommittedEvents returns all the events that are currently uncommitted.
	UncommittedEvents() []Envelope

	// MarkCommitted clears the uncommitted buffer after a successful append.
	MarkCommitted()
}

// AggregateBase carries the replay/raise discipline shared by all aggregates:
// an identifier, the current version and the buffer of uncommitted events.
// Concrete aggregates embed it and implement ApplyEvent.
type AggregateBase struct {
	id     string
	v      uint64
	events []Envelope
}

// NewAggregateBase creates an aggregate base for the given identifier.
func NewAggregateBase(id string) *AggregateBase {
	return &AggregateBase{
		id:     id,
		events: make([]Envelope, 0),
	}
}

// EntityID implements the EntityID method of the Aggregate interface.
func (a *AggregateBase) EntityID() string {
	return a.id
}

// AggregateVersion implements the AggregateVersion method of the Aggregate interface.
func (a *AggregateBase) AggregateVersion() uint64 {
	return a.v
}

// UncommittedEvents implements the UncommittedEvents method of the Aggregate interface.
func (a *AggregateBase) UncommittedEvents() []Envelope {
	return a.events
}

// MarkCommitted implements the MarkCommitted method of the Aggregate interface.
func (a *AggregateBase) MarkCommitted() {
	a.events = nil
}

// EventOption customizes the envelope of a raised event.
type EventOption func(*Envelope)

// WithMetadata merges the given metadata into the envelope of a raised event.
func WithMetadata(metadata map[string]any) EventOption {
	return func(env *Envelope) {
		for k, v := range metadata {
			env.Metadata[k] = v
		}
	}
}

// Raise applies the event to the in-memory state via the applier's apply rule,
// appends it to the uncommitted buffer and increments the version. If the
// apply rule rejects the event nothing is buffered and the version is
// unchanged.
func (a *AggregateBase) Raise(applier EventApplier, event Event, options ...EventOption) error {
	if err := applier.ApplyEvent(event); err != nil {
		return err
	}

	envelope := Envelope{
		EventID:    uuid.New(),
		StreamID:   a.id,
		Metadata:   make(map[string]any),
		Event:      event,
		Version:    a.v + 1,
		OccurredAt: now(),
	}

	for _, option := range options {
		option(&envelope)
	}

	a.events = append(a.events, envelope)
	a.v = envelope.Version
	return nil
}

// Replay applies a sequence of historical events without adding them to the
// uncommitted buffer. It is used to rebuild state from storage. An event with
// no matching apply rule is a fatal replay error.
func (a *AggregateBase) Replay(applier EventApplier, history []Envelope) error {
	for i := range history {
		if err := applier.ApplyEvent(history[i].Event); err != nil {
			return fmt.Errorf("replay stream %q at version %d: %w", a.id, history[i].Version, err)
		}
		a.v = history[i].Version
	}
	return nil
}
