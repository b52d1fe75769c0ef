package cqrs

import "context"

// EventStore defines the contract for an append-only event store. An
// EventStore persists events associated with a given stream in sequential
// order, allowing for full reconstruction of aggregate state at any point in
// time.
//
// Implementations must guarantee:
//   - Events for a given stream are stored and loaded in order.
//   - Concurrency control based on the expected stream version.
//   - Events are durably persisted before Append returns.
type EventStore interface {
	// Append appends all envelopes to the event stream for a specific
	// aggregate. expectedVersion is the number of events the caller believes
	// the stream already holds (0 for a new stream); when it does not match
	// the actual stream length, Append fails with *ConcurrencyError and
	// persists nothing. Any other persistence failure is reported as
	// *StorageError, again with nothing persisted.
	Append(ctx context.Context, streamID string, expectedVersion uint64, events []Envelope) error

	// Load returns the full ordered history of the given stream, oldest
	// first. An unknown stream yields an empty slice, not an error.
	Load(ctx context.Context, streamID string) ([]Envelope, error)

	// Close releases any resources held by the EventStore. Implementations
	// should make Close idempotent.
	Close() error
}
