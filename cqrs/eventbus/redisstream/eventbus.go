// Package redisstream implements the durable event log on Redis Streams. One
// stream exists per event variant; entries carry the aggregate identifier as
// their key, and consumer groups provide at-least-once delivery with explicit
// acknowledgement.
package redisstream

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/openledger/banking/cqrs"
)

const defaultStreamPrefix = "bank.events."

// Option configures a publisher or subscriber.
type Option func(*options)

type options struct {
	prefix string
	block  time.Duration
}

func newOptions(opts []Option) options {
	cfg := options{
		prefix: defaultStreamPrefix,
		block:  time.Second,
	}
	for _, o := range opts {
		o(&cfg)
	}
	return cfg
}

// WithStreamPrefix overrides the stream name prefix shared by publisher and
// subscriber.
func WithStreamPrefix(prefix string) Option {
	return func(o *options) { o.prefix = prefix }
}

// WithBlockTimeout sets how long a single Poll blocks waiting for a message
// before reporting an empty poll.
func WithBlockTimeout(d time.Duration) Option {
	return func(o *options) { o.block = d }
}

var _ cqrs.EventPublisher = (*Publisher)(nil)

// Publisher forwards committed envelopes onto the Redis streams.
type Publisher struct {
	rdb    *redis.Client
	prefix string
}

// NewPublisher creates a publisher on an existing client. The client's
// lifecycle stays with the caller.
func NewPublisher(rdb *redis.Client, opts ...Option) *Publisher {
	cfg := newOptions(opts)
	return &Publisher{rdb: rdb, prefix: cfg.prefix}
}

// Publish implements cqrs.EventPublisher. Envelopes are added one stream
// entry each; within a stream Redis preserves insertion order, which keeps
// per-aggregate ordering intact for a single consumer group reader.
func (p *Publisher) Publish(ctx context.Context, events []cqrs.Envelope) error {
	for i := range events {
		topic := events[i].Event.EventType()
		payload, err := cqrs.MarshalEnvelope(&events[i])
		if err != nil {
			return &cqrs.DownstreamError{Err: fmt.Errorf("marshal event for topic %q: %w", topic, err)}
		}

		err = p.rdb.XAdd(ctx, &redis.XAddArgs{
			Stream: p.prefix + topic,
			Values: map[string]any{
				"key":     events[i].StreamID,
				"payload": payload,
			},
		}).Err()
		if err != nil {
			return &cqrs.DownstreamError{Err: fmt.Errorf("xadd to %s%s: %w", p.prefix, topic, err)}
		}
	}
	return nil
}

var _ cqrs.Subscriber = (*Subscriber)(nil)

// readCount bounds how many entries one XREADGROUP may return per stream.
const readCount = 16

// Subscriber reads a fixed topic set through one consumer group. Deliveries
// stay pending until committed; on startup the subscriber drains its own
// pending list before reading new entries, so a crash between Poll and Commit
// leads to redelivery rather than loss.
//
// A Subscriber serves a single consumer loop and is not safe for concurrent
// Polls.
type Subscriber struct {
	rdb      *redis.Client
	group    string
	consumer string
	streams  []string
	prefix   string
	block    time.Duration

	// buffer holds entries already read from the broker but not yet handed
	// out. One XREADGROUP can return entries from several streams; all of
	// them land in the consumer's pending list, so every one must reach the
	// caller.
	buffer []cqrs.Delivery

	// backlog is true while entries delivered to this consumer name before a
	// restart may still sit unacknowledged in the pending list. Those are
	// only visible when reading from ID 0, never via ">".
	backlog bool
}

// NewSubscriber creates the consumer group on every topic stream (creating
// the streams if they do not exist yet) and returns a subscriber bound to it.
func NewSubscriber(ctx context.Context, rdb *redis.Client, group, consumer string, topics []string, opts ...Option) (*Subscriber, error) {
	cfg := newOptions(opts)

	streams := make([]string, 0, len(topics))
	for _, topic := range topics {
		stream := cfg.prefix + topic
		err := rdb.XGroupCreateMkStream(ctx, stream, group, "0").Err()
		if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
			return nil, &cqrs.DownstreamError{Err: fmt.Errorf("create group %q on %s: %w", group, stream, err)}
		}
		streams = append(streams, stream)
	}

	return &Subscriber{
		rdb:      rdb,
		group:    group,
		consumer: consumer,
		streams:  streams,
		prefix:   cfg.prefix,
		block:    cfg.block,
		backlog:  true,
	}, nil
}

// Poll implements cqrs.Subscriber. It hands out buffered entries first, then
// blocks up to the configured timeout for new ones; an expired timeout is an
// empty poll, not an error. While the startup backlog is being drained the
// read cursor is 0 instead of ">", which returns this consumer's own
// unacknowledged entries from before a restart. Reads from an explicit ID
// return immediately, so an empty backlog costs one extra round trip, after
// which the cursor switches to ">" for good.
func (s *Subscriber) Poll(ctx context.Context) (*cqrs.Delivery, error) {
	if d := s.next(); d != nil {
		return d, nil
	}

	cursor := ">"
	if s.backlog {
		cursor = "0"
	}

	args := &redis.XReadGroupArgs{
		Group:    s.group,
		Consumer: s.consumer,
		Streams:  s.readStreams(cursor),
		Count:    readCount,
		Block:    s.block,
	}

	res, err := s.rdb.XReadGroup(ctx, args).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &cqrs.DownstreamError{Err: fmt.Errorf("xreadgroup: %w", err)}
	}

	for _, stream := range res {
		topic := strings.TrimPrefix(stream.Stream, s.prefix)
		for _, msg := range stream.Messages {
			payload, _ := msg.Values["payload"].(string)
			s.buffer = append(s.buffer, cqrs.Delivery{
				Topic:   topic,
				ID:      msg.ID,
				Payload: []byte(payload),
			})
		}
	}

	if s.backlog && len(s.buffer) == 0 {
		s.backlog = false
	}
	return s.next(), nil
}

// next pops the oldest buffered delivery, or nil.
func (s *Subscriber) next() *cqrs.Delivery {
	if len(s.buffer) == 0 {
		return nil
	}
	d := s.buffer[0]
	s.buffer = s.buffer[1:]
	return &d
}

// readStreams builds the XREADGROUP stream argument: every subscribed stream
// followed by one cursor per stream.
func (s *Subscriber) readStreams(cursor string) []string {
	out := make([]string, 0, len(s.streams)*2)
	out = append(out, s.streams...)
	for range s.streams {
		out = append(out, cursor)
	}
	return out
}

// Commit implements cqrs.Subscriber, acknowledging the delivery in its
// consumer group.
func (s *Subscriber) Commit(ctx context.Context, d *cqrs.Delivery) error {
	err := s.rdb.XAck(ctx, s.prefix+d.Topic, s.group, d.ID).Err()
	if err != nil {
		return &cqrs.DownstreamError{Err: fmt.Errorf("xack %s on %s%s: %w", d.ID, s.prefix, d.Topic, err)}
	}
	return nil
}

// Close implements cqrs.Subscriber. The redis client is owned by the caller,
// so there is nothing to tear down beyond the in-flight Poll, which the
// caller cancels through its context.
func (s *Subscriber) Close() error {
	return nil
}

var _ cqrs.DeadLetterSink = (*DeadLetter)(nil)

// DeadLetter appends rejected deliveries to a dedicated stream named after
// the consumer group, preserving the raw payload and the rejection cause for
// inspection.
type DeadLetter struct {
	rdb    *redis.Client
	stream string
}

// NewDeadLetter creates the sink for the given consumer group.
func NewDeadLetter(rdb *redis.Client, group string, opts ...Option) *DeadLetter {
	cfg := newOptions(opts)
	return &DeadLetter{rdb: rdb, stream: cfg.prefix + group + ".dead-letter"}
}

// Reject implements cqrs.DeadLetterSink.
func (d *DeadLetter) Reject(ctx context.Context, delivery *cqrs.Delivery, cause error) error {
	err := d.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: d.stream,
		Values: map[string]any{
			"topic":       delivery.Topic,
			"delivery_id": delivery.ID,
			"payload":     delivery.Payload,
			"error":       cause.Error(),
			"rejected_at": time.Now().UTC().Format(time.RFC3339Nano),
		},
	}).Err()
	if err != nil {
		return &cqrs.DownstreamError{Err: fmt.Errorf("xadd dead-letter: %w", err)}
	}
	return nil
}
