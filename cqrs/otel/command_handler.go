package otel

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/openledger/banking/cqrs"
)

var tracer = otel.Tracer("github.com/openledger/banking/cqrs")

// Span attribute keys shared by the command and event decorators.
var (
	AttrCommandType = attribute.Key("cqrs.command.type")
	AttrEventType   = attribute.Key("cqrs.event.type")
	AttrAggregateID = attribute.Key("cqrs.aggregate.id")
	AttrStreamID    = attribute.Key("cqrs.stream.id")
	AttrVersion     = attribute.Key("cqrs.stream.version")
)

// WithCommandTracing wraps a CommandHandler with an OpenTelemetry span named
// after the command type. A domain rejection (validation or business rule) is
// recorded as a span event but leaves the span status Ok: the operation itself
// executed as designed. Every other failure marks the span as an error.
func WithCommandTracing[C cqrs.Command](next cqrs.CommandHandler[C]) cqrs.CommandHandler[C] {
	var zero C
	commandType := fmt.Sprintf("%T", zero)

	return func(ctx context.Context, cmd C) error {
		ctx, span := tracer.Start(ctx, fmt.Sprintf("command.handle %s", commandType),
			trace.WithSpanKind(trace.SpanKindInternal),
			trace.WithAttributes(
				AttrCommandType.String(commandType),
				AttrAggregateID.String(cmd.AggregateID()),
			),
		)
		defer span.End()

		err := next(ctx, cmd)
		if err == nil {
			span.SetStatus(codes.Ok, "")
			return nil
		}

		var validation *cqrs.ValidationError
		var rule *cqrs.DomainRuleError
		if errors.As(err, &validation) || errors.As(err, &rule) {
			span.AddEvent("command_rejected", trace.WithAttributes(
				attribute.String("reason", err.Error()),
			))
			span.SetStatus(codes.Ok, "")
			return err
		}

		var conflict *cqrs.ConcurrencyError
		if errors.As(err, &conflict) {
			span.AddEvent("concurrency_conflict", trace.WithAttributes(
				AttrStreamID.String(conflict.Stream),
			))
		}

		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
}
