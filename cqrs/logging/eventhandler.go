package logging

import (
	"context"

	"go.uber.org/zap"

	"github.com/openledger/banking/cqrs"
)

// WithEventLogging wraps an EventHandler with logging. The envelope fields
// placed on the context by cqrs.WithEnvelope are attached to every entry.
func WithEventLogging(logger *zap.Logger, next cqrs.EventHandler) cqrs.EventHandler {
	return cqrs.NewEventHandlerFunc(func(ctx context.Context, event cqrs.Event) error {
		l := logger.With(
			zap.String("event", event.EventType()),
			zap.String("stream_id", cqrs.StreamIDFromContext(ctx)),
			zap.String("event_id", cqrs.EventIDFromContext(ctx).String()),
			zap.Uint64("version", cqrs.VersionFromContext(ctx)),
		)

		l.Debug("event processing started")

		err := next.Handle(ctx, event)
		if err != nil {
			l.Error("error processing event", zap.Error(err))
		} else {
			l.Debug("event processed")
		}
		return err
	})
}
