package otel

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/openledger/banking/cqrs"
)

// WithEventTracing wraps an EventHandler with an OpenTelemetry span named
// after the event type, carrying the stream position from the envelope
// context.
func WithEventTracing(next cqrs.EventHandler) cqrs.EventHandler {
	return cqrs.NewEventHandlerFunc(func(ctx context.Context, event cqrs.Event) error {
		ctx, span := tracer.Start(ctx, fmt.Sprintf("event.handle %s", event.EventType()),
			trace.WithSpanKind(trace.SpanKindConsumer),
			trace.WithAttributes(
				AttrEventType.String(event.EventType()),
				AttrAggregateID.String(event.AggregateID()),
				AttrStreamID.String(cqrs.StreamIDFromContext(ctx)),
				AttrVersion.Int64(int64(cqrs.VersionFromContext(ctx))),
			),
		)
		defer span.End()

		err := next.Handle(ctx, event)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return err
		}
		span.SetStatus(codes.Ok, "")
		return nil
	})
}
