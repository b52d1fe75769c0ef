package memory

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/openledger/banking/cqrs"
)

// ---- Test Stubs ----

type busTestEvent struct {
	ID string `json:"id"`
}

func (e busTestEvent) AggregateID() string { return e.ID }
func (e busTestEvent) EventType() string   { return "MemoryBusTestEvent" }

type otherTestEvent struct {
	ID string `json:"id"`
}

func (e otherTestEvent) AggregateID() string { return e.ID }
func (e otherTestEvent) EventType() string   { return "MemoryBusOtherEvent" }

func init() {
	cqrs.RegisterEvent("MemoryBusTestEvent", func(data []byte) (cqrs.Event, error) {
		var ev busTestEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			return nil, err
		}
		return ev, nil
	})
}

func envelope(stream string, version uint64) cqrs.Envelope {
	return cqrs.Envelope{
		EventID:  uuid.New(),
		StreamID: stream,
		Event:    busTestEvent{ID: stream},
		Version:  version,
	}
}

// ---- Tests ----

func TestBus_PublishPollCommit(t *testing.T) {
	bus := NewBus([]string{"MemoryBusTestEvent"}, 8)
	ctx := context.Background()

	env := envelope("s-1", 1)
	if err := bus.Publish(ctx, []cqrs.Envelope{env}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	d, err := bus.Poll(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.Topic != "MemoryBusTestEvent" {
		t.Fatalf("expected topic MemoryBusTestEvent, got %q", d.Topic)
	}

	got, err := cqrs.UnmarshalEnvelope(d.Topic, d.Payload)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.EventID != env.EventID {
		t.Fatalf("expected event ID %s, got %s", env.EventID, got.EventID)
	}

	if err := bus.Commit(ctx, d); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !bus.Committed(d.ID) {
		t.Fatalf("expected delivery %s to be committed", d.ID)
	}
}

func TestBus_UnsubscribedTopicIsDropped(t *testing.T) {
	bus := NewBus([]string{"MemoryBusTestEvent"}, 8)
	ctx := context.Background()

	err := bus.Publish(ctx, []cqrs.Envelope{{
		EventID:  uuid.New(),
		StreamID: "s-1",
		Event:    otherTestEvent{ID: "s-1"},
		Version:  1,
	}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	pollCtx, cancel := context.WithCancel(ctx)
	cancel()
	if _, err := bus.Poll(pollCtx); err == nil {
		t.Fatalf("expected empty queue, the event should have been dropped")
	}
}

func TestBus_PreservesPublicationOrder(t *testing.T) {
	bus := NewBus([]string{"MemoryBusTestEvent"}, 8)
	ctx := context.Background()

	if err := bus.Publish(ctx, []cqrs.Envelope{envelope("s-1", 1), envelope("s-1", 2), envelope("s-1", 3)}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for want := uint64(1); want <= 3; want++ {
		d, err := bus.Poll(ctx)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		env, err := cqrs.UnmarshalEnvelope(d.Topic, d.Payload)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if env.Version != want {
			t.Fatalf("expected version %d, got %d", want, env.Version)
		}
	}
}

func TestBus_Reject(t *testing.T) {
	bus := NewBus([]string{"MemoryBusTestEvent"}, 8)
	ctx := context.Background()

	if err := bus.PublishRaw(ctx, "MemoryBusTestEvent", []byte("garbage")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	d, err := bus.Poll(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := bus.Reject(ctx, d, errors.New("undecodable")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	dead := bus.DeadLetters()
	if len(dead) != 1 || string(dead[0].Payload) != "garbage" {
		t.Fatalf("expected the rejected payload in the dead letters, got %v", dead)
	}
}

func TestBus_Close(t *testing.T) {
	bus := NewBus([]string{"MemoryBusTestEvent"}, 8)
	ctx := context.Background()

	if err := bus.Close(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := bus.Close(); err != nil {
		t.Fatalf("close must be idempotent: %v", err)
	}

	if err := bus.Publish(ctx, []cqrs.Envelope{envelope("s-1", 1)}); err == nil {
		t.Fatalf("expected error publishing to a closed bus")
	}
	if _, err := bus.Poll(ctx); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}
