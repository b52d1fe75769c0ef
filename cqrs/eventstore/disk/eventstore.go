package disk

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/openledger/banking/cqrs"
)

var _ cqrs.EventStore = (*Store)(nil)

// Store is a file-backed event store: one directory per stream, one JSON file
// per event, named by its zero-padded version so lexical order equals stream
// order. Events are fsynced before Append returns.
//
// It is meant for single-process deployments and local development; the
// version check is guarded by a process-wide mutex.
type Store struct {
	baseDir string
	mu      sync.Mutex
}

// record is the on-disk shape of one event. The topic travels alongside the
// serialized envelope so Load can resolve the event variant.
type record struct {
	Topic    string          `json:"topic"`
	Envelope json.RawMessage `json:"envelope"`
}

// NewStore creates the store, creating baseDir if needed.
func NewStore(baseDir string) (*Store, error) {
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, cqrs.WrapStorageError(err)
	}
	return &Store{baseDir: baseDir}, nil
}

func (s *Store) streamDir(id string) string {
	return filepath.Join(s.baseDir, id)
}

// Append implements cqrs.EventStore.
func (s *Store) Append(ctx context.Context, streamID string, expectedVersion uint64, events []cqrs.Envelope) error {
	if err := ctx.Err(); err != nil {
		return cqrs.WrapStorageError(err)
	}
	if len(events) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	dir := s.streamDir(streamID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return cqrs.WrapStorageError(err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return cqrs.WrapStorageError(err)
	}

	current := uint64(len(entries))
	if current != expectedVersion {
		return &cqrs.ConcurrencyError{
			Stream:   streamID,
			Expected: expectedVersion,
			Actual:   current,
		}
	}

	version := current
	for i := range events {
		version++
		body, err := cqrs.MarshalEnvelope(&events[i])
		if err != nil {
			return cqrs.WrapStorageError(fmt.Errorf("marshal event %d: %w", i, err))
		}
		data, err := json.Marshal(record{Topic: events[i].Event.EventType(), Envelope: body})
		if err != nil {
			return cqrs.WrapStorageError(err)
		}
		if err := writeFileSync(filepath.Join(dir, fmt.Sprintf("%020d.json", version)), data); err != nil {
			return cqrs.WrapStorageError(err)
		}
	}

	return nil
}

// Load implements cqrs.EventStore.
func (s *Store) Load(ctx context.Context, streamID string) ([]cqrs.Envelope, error) {
	if err := ctx.Err(); err != nil {
		return nil, cqrs.WrapStorageError(err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	dir := s.streamDir(streamID)
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return []cqrs.Envelope{}, nil
	}
	if err != nil {
		return nil, cqrs.WrapStorageError(err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	out := make([]cqrs.Envelope, 0, len(names))
	for _, name := range names {
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, cqrs.WrapStorageError(err)
		}
		var rec record
		if err := json.Unmarshal(data, &rec); err != nil {
			return nil, cqrs.WrapStorageError(fmt.Errorf("stream %q: corrupt record %s: %w", streamID, name, err))
		}
		env, err := cqrs.UnmarshalEnvelope(rec.Topic, rec.Envelope)
		if err != nil {
			return nil, err
		}
		out = append(out, *env)
	}

	return out, nil
}

// Close implements cqrs.EventStore.
func (s *Store) Close() error {
	return nil
}

func writeFileSync(path string, data []byte) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
