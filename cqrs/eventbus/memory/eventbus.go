package memory

import (
	"context"
	"errors"
	"strconv"
	"sync"

	"github.com/openledger/banking/cqrs"
)

var (
	_ cqrs.EventPublisher = (*Bus)(nil)
	_ cqrs.Subscriber     = (*Bus)(nil)
	_ cqrs.DeadLetterSink = (*Bus)(nil)
)

// ErrClosed is returned by Poll once the bus has been closed and drained.
var ErrClosed = errors.New("eventbus is closed")

// Bus is an in-process durable-log stand-in used by tests and local runs. It
// implements the publisher, subscriber and dead-letter contracts at once:
// published envelopes matching the subscribed topic set are queued in
// publication order, which preserves per-aggregate ordering the same way a
// key-partitioned log with a single consumer would.
type Bus struct {
	mu     sync.Mutex
	topics map[string]bool
	queue  chan cqrs.Delivery
	acked  map[string]bool
	dead   []cqrs.Delivery
	seq    int
	closed bool
}

// NewBus creates a bus delivering only the given topics, with a buffered
// queue of the given size.
func NewBus(topics []string, bufferSize int) *Bus {
	set := make(map[string]bool, len(topics))
	for _, t := range topics {
		set[t] = true
	}
	return &Bus{
		topics: set,
		queue:  make(chan cqrs.Delivery, bufferSize),
		acked:  make(map[string]bool),
	}
}

// Publish implements cqrs.EventPublisher. Envelopes whose topic is not
// subscribed are dropped, mirroring a broker nobody listens to.
func (b *Bus) Publish(ctx context.Context, events []cqrs.Envelope) error {
	for i := range events {
		topic := events[i].Event.EventType()
		if !b.topics[topic] {
			continue
		}
		payload, err := cqrs.MarshalEnvelope(&events[i])
		if err != nil {
			return &cqrs.DownstreamError{Err: err}
		}
		if err := b.enqueue(ctx, topic, payload); err != nil {
			return err
		}
	}
	return nil
}

// PublishRaw enqueues an arbitrary payload on a topic, bypassing the
// envelope codec. Tests use it to simulate malformed messages on the wire.
func (b *Bus) PublishRaw(ctx context.Context, topic string, payload []byte) error {
	return b.enqueue(ctx, topic, payload)
}

func (b *Bus) enqueue(ctx context.Context, topic string, payload []byte) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return &cqrs.DownstreamError{Err: ErrClosed}
	}
	b.seq++
	d := cqrs.Delivery{Topic: topic, ID: strconv.Itoa(b.seq), Payload: payload}
	b.mu.Unlock()

	select {
	case b.queue <- d:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Poll implements cqrs.Subscriber.
func (b *Bus) Poll(ctx context.Context) (*cqrs.Delivery, error) {
	select {
	case d, ok := <-b.queue:
		if !ok {
			return nil, ErrClosed
		}
		return &d, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Commit implements cqrs.Subscriber.
func (b *Bus) Commit(ctx context.Context, d *cqrs.Delivery) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.acked[d.ID] = true
	return nil
}

// Reject implements cqrs.DeadLetterSink.
func (b *Bus) Reject(ctx context.Context, d *cqrs.Delivery, cause error) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.dead = append(b.dead, *d)
	return nil
}

// Committed reports whether the delivery with the given ID has been acked.
func (b *Bus) Committed(id string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.acked[id]
}

// DeadLetters returns the rejected deliveries, oldest first.
func (b *Bus) DeadLetters() []cqrs.Delivery {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]cqrs.Delivery, len(b.dead))
	copy(out, b.dead)
	return out
}

// Close implements cqrs.Subscriber. It is idempotent.
func (b *Bus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.closed {
		b.closed = true
		close(b.queue)
	}
	return nil
}
