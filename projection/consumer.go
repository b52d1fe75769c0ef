package projection

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/openledger/banking/cqrs"
	"github.com/openledger/banking/cqrs/logging"
	otelmw "github.com/openledger/banking/cqrs/otel"
)

// Consumer drives the projection: it polls the durable log, decodes each
// delivery and hands it to the projector. It runs until its context is
// cancelled or it hits an error it cannot recover from.
type Consumer struct {
	sub        cqrs.Subscriber
	deadLetter cqrs.DeadLetterSink
	handler    cqrs.EventHandler
	log        *zap.Logger

	pollBackoff time.Duration
}

// NewConsumer assembles the consumer with tracing and logging around the
// projector. Undecodable deliveries go to the dead letter sink instead of
// blocking the stream.
func NewConsumer(sub cqrs.Subscriber, deadLetter cqrs.DeadLetterSink, projector *Projector, log *zap.Logger) *Consumer {
	return &Consumer{
		sub:         sub,
		deadLetter:  deadLetter,
		handler:     otelmw.WithEventTracing(logging.WithEventLogging(log, projector)),
		log:         log,
		pollBackoff: time.Second,
	}
}

// Run polls and processes deliveries until ctx is cancelled. Cancellation
// returns nil. A storage failure on the read store is returned so the
// supervisor can restart the consumer; the unacknowledged delivery will be
// redelivered and the idempotency ledger keeps the replay safe.
func (c *Consumer) Run(ctx context.Context) error {
	defer c.sub.Close()

	for {
		if ctx.Err() != nil {
			return nil
		}

		delivery, err := c.sub.Poll(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil
			}
			var downstream *cqrs.DownstreamError
			if errors.As(err, &downstream) {
				c.log.Warn("poll failed, backing off", zap.Error(err))
				if !c.sleep(ctx) {
					return nil
				}
				continue
			}
			return err
		}
		if delivery == nil {
			continue
		}

		if err := c.handle(ctx, delivery); err != nil {
			return err
		}
	}
}

// handle processes one delivery end to end. A read-store failure is returned
// and leaves the delivery unacknowledged; everything else is either applied
// or rejected to the dead letter stream, then acknowledged.
func (c *Consumer) handle(ctx context.Context, delivery *cqrs.Delivery) error {
	env, err := cqrs.UnmarshalEnvelope(delivery.Topic, delivery.Payload)
	if err != nil {
		c.reject(ctx, delivery, err)
		return nil
	}

	if err := c.handler.Handle(cqrs.WithEnvelope(ctx, env), env.Event); err != nil {
		var storage *cqrs.StorageError
		if errors.As(err, &storage) {
			c.log.Error("read store unavailable, delivery left pending",
				zap.String("topic", delivery.Topic),
				zap.String("delivery_id", delivery.ID),
				zap.Error(err),
			)
			return err
		}
		c.reject(ctx, delivery, err)
		return nil
	}

	if err := c.sub.Commit(ctx, delivery); err != nil {
		c.log.Warn("acknowledge failed, delivery may repeat",
			zap.String("delivery_id", delivery.ID),
			zap.Error(err),
		)
	}
	return nil
}

// reject parks the delivery on the dead letter stream and acknowledges it so
// the consumer group can move past it.
func (c *Consumer) reject(ctx context.Context, delivery *cqrs.Delivery, cause error) {
	c.log.Error("delivery rejected",
		zap.String("topic", delivery.Topic),
		zap.String("delivery_id", delivery.ID),
		zap.Error(cause),
	)
	if err := c.deadLetter.Reject(ctx, delivery, cause); err != nil {
		c.log.Error("dead letter write failed, delivery left pending", zap.Error(err))
		return
	}
	if err := c.sub.Commit(ctx, delivery); err != nil {
		c.log.Warn("acknowledge after reject failed", zap.Error(err))
	}
}

func (c *Consumer) sleep(ctx context.Context) bool {
	t := time.NewTimer(c.pollBackoff)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
