package cqrs

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type ctxKey string

const (
	streamIDKey   ctxKey = "streamID"
	eventIDKey    ctxKey = "eventID"
	versionKey    ctxKey = "version"
	occurredAtKey ctxKey = "occurredAt"
)

// WithEnvelope adds the envelope's identifying fields to the context so
// downstream handlers and log decorators can correlate their work with the
// event being processed.
func WithEnvelope(ctx context.Context, env *Envelope) context.Context {
	ctx = context.WithValue(ctx, streamIDKey, env.StreamID)
	ctx = context.WithValue(ctx, eventIDKey, env.EventID)
	ctx = context.WithValue(ctx, versionKey, env.Version)
	ctx = context.WithValue(ctx, occurredAtKey, env.OccurredAt)
	return ctx
}

// StreamIDFromContext returns the stream ID or "" if not present.
func StreamIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(streamIDKey).(string); ok {
		return v
	}
	return ""
}

// EventIDFromContext returns the event ID or uuid.Nil if not present.
func EventIDFromContext(ctx context.Context) uuid.UUID {
	if v, ok := ctx.Value(eventIDKey).(uuid.UUID); ok {
		return v
	}
	return uuid.Nil
}

// VersionFromContext returns the stream version or 0 if not present.
func VersionFromContext(ctx context.Context) uint64 {
	if v, ok := ctx.Value(versionKey).(uint64); ok {
		return v
	}
	return 0
}

// OccurredAtFromContext returns the event time or the zero time if not present.
func OccurredAtFromContext(ctx context.Context) time.Time {
	if v, ok := ctx.Value(occurredAtKey).(time.Time); ok {
		return v
	}
	return time.Time{}
}
