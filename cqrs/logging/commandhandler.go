package logging

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/openledger/banking/cqrs"
)

// WithCommandLogging wraps a CommandHandler with logging. It logs the command
// type and aggregate ID before execution, and logs errors if the command
// fails.
func WithCommandLogging[C cqrs.Command](logger *zap.Logger, next cqrs.CommandHandler[C]) cqrs.CommandHandler[C] {
	return func(ctx context.Context, command C) error {
		l := logger.With(
			zap.String("command", fmt.Sprintf("%T", command)),
			zap.String("aggregate_id", command.AggregateID()),
		)
		l.Debug("dispatching command")

		err := next(ctx, command)
		if err != nil {
			l.Error("command failed", zap.Error(err))
		}
		return err
	}
}
