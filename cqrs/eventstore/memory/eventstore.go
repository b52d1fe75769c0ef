package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/openledger/banking/cqrs"
)

var _ cqrs.EventStore = (*Store)(nil)

// Store is an in-memory event store with optimistic concurrency, backing the
// package tests and local runs.
type Store struct {
	mu      sync.RWMutex
	streams map[string][]cqrs.Envelope
}

// NewStore creates an empty in-memory event store.
func NewStore() *Store {
	return &Store{
		streams: make(map[string][]cqrs.Envelope),
	}
}

// Append implements cqrs.EventStore. The whole batch is appended atomically
// or not at all.
func (s *Store) Append(ctx context.Context, streamID string, expectedVersion uint64, events []cqrs.Envelope) error {
	if err := ctx.Err(); err != nil {
		return cqrs.WrapStorageError(err)
	}
	if len(events) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range events {
		if events[i].StreamID != streamID {
			return cqrs.WrapStorageError(fmt.Errorf("event %d belongs to stream %q, not %q", i, events[i].StreamID, streamID))
		}
	}

	current := uint64(len(s.streams[streamID]))
	if current != expectedVersion {
		return &cqrs.ConcurrencyError{
			Stream:   streamID,
			Expected: expectedVersion,
			Actual:   current,
		}
	}

	s.streams[streamID] = append(s.streams[streamID], events...)
	return nil
}

// Load implements cqrs.EventStore. An unknown stream yields an empty slice.
func (s *Store) Load(ctx context.Context, streamID string) ([]cqrs.Envelope, error) {
	if err := ctx.Err(); err != nil {
		return nil, cqrs.WrapStorageError(err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	stream := s.streams[streamID]
	out := make([]cqrs.Envelope, len(stream))
	copy(out, stream)
	return out, nil
}

// Close implements cqrs.EventStore.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.streams = make(map[string][]cqrs.Envelope)
	return nil
}
