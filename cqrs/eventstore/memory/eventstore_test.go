package memory

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"

	"github.com/openledger/banking/cqrs"
)

// ---- Test Stubs ----

type storeTestEvent struct {
	ID string `json:"id"`
	N  int    `json:"n"`
}

func (e storeTestEvent) AggregateID() string { return e.ID }
func (e storeTestEvent) EventType() string   { return "MemoryStoreTestEvent" }

func envelope(stream string, version uint64, n int) cqrs.Envelope {
	return cqrs.Envelope{
		EventID:  uuid.New(),
		StreamID: stream,
		Event:    storeTestEvent{ID: stream, N: n},
		Version:  version,
	}
}

// ---- Tests ----

func TestStore_AppendAndLoad(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	if err := store.Append(ctx, "s-1", 0, []cqrs.Envelope{envelope("s-1", 1, 10)}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := store.Append(ctx, "s-1", 1, []cqrs.Envelope{envelope("s-1", 2, 20), envelope("s-1", 3, 30)}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	history, err := store.Load(ctx, "s-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(history) != 3 {
		t.Fatalf("expected 3 events, got %d", len(history))
	}
	for i, env := range history {
		if env.Version != uint64(i+1) {
			t.Errorf("event %d: expected version %d, got %d", i, i+1, env.Version)
		}
	}
}

func TestStore_LoadUnknownStreamIsEmpty(t *testing.T) {
	store := NewStore()

	history, err := store.Load(context.Background(), "nope")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(history) != 0 {
		t.Fatalf("expected empty history, got %d events", len(history))
	}
}

func TestStore_VersionConflict(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	if err := store.Append(ctx, "s-1", 0, []cqrs.Envelope{envelope("s-1", 1, 1)}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	err := store.Append(ctx, "s-1", 0, []cqrs.Envelope{envelope("s-1", 1, 2)})
	var conflict *cqrs.ConcurrencyError
	if !errors.As(err, &conflict) {
		t.Fatalf("expected ConcurrencyError, got %v", err)
	}
	if conflict.Expected != 0 || conflict.Actual != 1 {
		t.Fatalf("expected 0/1 in conflict, got %d/%d", conflict.Expected, conflict.Actual)
	}

	history, _ := store.Load(ctx, "s-1")
	if len(history) != 1 {
		t.Fatalf("losing append must not change the stream, got %d events", len(history))
	}
}

func TestStore_ConcurrentAppendsOneWinner(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	const writers = 16
	var wg sync.WaitGroup
	errs := make([]error, writers)

	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = store.Append(ctx, "s-1", 0, []cqrs.Envelope{envelope("s-1", 1, i)})
		}(i)
	}
	wg.Wait()

	winners := 0
	for _, err := range errs {
		if err == nil {
			winners++
			continue
		}
		var conflict *cqrs.ConcurrencyError
		if !errors.As(err, &conflict) {
			t.Fatalf("expected ConcurrencyError for loser, got %v", err)
		}
	}
	if winners != 1 {
		t.Fatalf("expected exactly one winner, got %d", winners)
	}

	history, _ := store.Load(ctx, "s-1")
	if len(history) != 1 {
		t.Fatalf("expected one event in stream, got %d", len(history))
	}
}

func TestStore_RejectsForeignStreamEvents(t *testing.T) {
	store := NewStore()

	err := store.Append(context.Background(), "s-1", 0, []cqrs.Envelope{envelope("s-2", 1, 1)})
	var storage *cqrs.StorageError
	if !errors.As(err, &storage) {
		t.Fatalf("expected StorageError, got %v", err)
	}
}

func TestStore_CancelledContext(t *testing.T) {
	store := NewStore()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := store.Append(ctx, "s-1", 0, []cqrs.Envelope{envelope("s-1", 1, 1)}); err == nil {
		t.Fatalf("expected error on cancelled context")
	}
	if _, err := store.Load(ctx, "s-1"); err == nil {
		t.Fatalf("expected error on cancelled context")
	}
}
