package cqrs

import (
	"errors"
	"testing"
)

// ---- Test Stubs ----

type counterIncremented struct {
	ID string
	By int
}

func (e counterIncremented) AggregateID() string { return e.ID }
func (e counterIncremented) EventType() string   { return "CounterIncremented" }

type counterBroken struct {
	ID string
}

func (e counterBroken) AggregateID() string { return e.ID }
func (e counterBroken) EventType() string   { return "CounterBroken" }

type counter struct {
	*AggregateBase
	total int
}

func newCounter(id string) *counter {
	return &counter{AggregateBase: NewAggregateBase(id)}
}

func (c *counter) ApplyEvent(event Event) error {
	switch e := event.(type) {
	case counterIncremented:
		c.total += e.By
	default:
		return &UnknownEventError{Event: event}
	}
	return nil
}

// ---- Tests ----

func TestRaise_BuffersAndIncrementsVersion(t *testing.T) {
	c := newCounter("c-1")

	if err := c.Raise(c, counterIncremented{ID: "c-1", By: 2}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := c.Raise(c, counterIncremented{ID: "c-1", By: 3}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if c.total != 5 {
		t.Fatalf("expected total 5, got %d", c.total)
	}
	if c.AggregateVersion() != 2 {
		t.Fatalf("expected version 2, got %d", c.AggregateVersion())
	}

	events := c.UncommittedEvents()
	if len(events) != 2 {
		t.Fatalf("expected 2 uncommitted events, got %d", len(events))
	}
	for i, env := range events {
		if env.Version != uint64(i+1) {
			t.Errorf("event %d: expected version %d, got %d", i, i+1, env.Version)
		}
		if env.StreamID != "c-1" {
			t.Errorf("event %d: expected stream c-1, got %q", i, env.StreamID)
		}
		if env.EventID.String() == "00000000-0000-0000-0000-000000000000" {
			t.Errorf("event %d: missing event ID", i)
		}
	}
}

func TestRaise_RejectedEventLeavesNoTrace(t *testing.T) {
	c := newCounter("c-1")

	err := c.Raise(c, counterBroken{ID: "c-1"})
	var unknown *UnknownEventError
	if !errors.As(err, &unknown) {
		t.Fatalf("expected UnknownEventError, got %v", err)
	}

	if c.AggregateVersion() != 0 {
		t.Fatalf("version must not advance on rejection, got %d", c.AggregateVersion())
	}
	if len(c.UncommittedEvents()) != 0 {
		t.Fatalf("nothing may be buffered on rejection")
	}
}

func TestRaise_WithMetadata(t *testing.T) {
	c := newCounter("c-1")

	err := c.Raise(c, counterIncremented{ID: "c-1", By: 1}, WithMetadata(map[string]any{"origin": "test"}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	env := c.UncommittedEvents()[0]
	if env.Metadata["origin"] != "test" {
		t.Fatalf("expected metadata to carry origin, got %v", env.Metadata)
	}
}

func TestMarkCommitted_ClearsBuffer(t *testing.T) {
	c := newCounter("c-1")
	if err := c.Raise(c, counterIncremented{ID: "c-1", By: 1}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	c.MarkCommitted()

	if len(c.UncommittedEvents()) != 0 {
		t.Fatalf("expected empty buffer after MarkCommitted")
	}
	if c.AggregateVersion() != 1 {
		t.Fatalf("version must survive MarkCommitted, got %d", c.AggregateVersion())
	}
}

func TestReplay_RebuildsStateWithoutBuffering(t *testing.T) {
	source := newCounter("c-1")
	for i := 1; i <= 3; i++ {
		if err := source.Raise(source, counterIncremented{ID: "c-1", By: i}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	history := source.UncommittedEvents()

	replayed := newCounter("c-1")
	if err := replayed.Replay(replayed, history); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if replayed.total != source.total {
		t.Fatalf("expected total %d, got %d", source.total, replayed.total)
	}
	if replayed.AggregateVersion() != 3 {
		t.Fatalf("expected version 3, got %d", replayed.AggregateVersion())
	}
	if len(replayed.UncommittedEvents()) != 0 {
		t.Fatalf("replay must not buffer events")
	}
}

func TestReplay_UnknownEventIsFatal(t *testing.T) {
	c := newCounter("c-1")
	history := []Envelope{
		{StreamID: "c-1", Event: counterIncremented{ID: "c-1", By: 1}, Version: 1},
		{StreamID: "c-1", Event: counterBroken{ID: "c-1"}, Version: 2},
	}

	err := c.Replay(c, history)
	var unknown *UnknownEventError
	if !errors.As(err, &unknown) {
		t.Fatalf("expected UnknownEventError, got %v", err)
	}
}
