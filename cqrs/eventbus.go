package cqrs

import "context"

// EventPublisher forwards committed events onto the durable log. One logical
// topic exists per event variant (topic name = EventType()), and the
// aggregate identifier is used as the partition key so a key-ordered log
// preserves per-aggregate ordering end to end.
type EventPublisher interface {
	Publish(ctx context.Context, events []Envelope) error
}

// Delivery is one message received from the durable log. Payload is the raw
// serialized envelope; the consumer decodes it according to the topic's event
// variant. ID is the broker position used to commit the delivery.
type Delivery struct {
	Topic   string
	ID      string
	Payload []byte
}

// Subscriber is a cancellable blocking consumer over a fixed topic set.
type Subscriber interface {
	// Poll blocks until the next message arrives, the poll interval elapses
	// or ctx is canceled. An empty poll returns (nil, nil); the caller simply
	// retries. A canceled context surfaces ctx.Err(). Transient broker
	// failures are reported as *DownstreamError.
	Poll(ctx context.Context) (*Delivery, error)

	// Commit acknowledges a processed delivery, advancing the consumer's
	// read position. It is called only after the read-store write succeeded.
	Commit(ctx context.Context, d *Delivery) error

	// Close closes the subscription.
	Close() error
}

// DeadLetterSink preserves messages that cannot be processed so they can be
// inspected later instead of being dropped.
type DeadLetterSink interface {
	Reject(ctx context.Context, d *Delivery, cause error) error
}
