package account

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/openledger/banking/cqrs"
	"github.com/openledger/banking/cqrs/logging"
	otelmw "github.com/openledger/banking/cqrs/otel"
)

// HandlerOption configures the account command handlers.
type HandlerOption func(*handlerConfig)

type handlerConfig struct {
	maxConflictRetries uint64
	newBackOff         func() backoff.BackOff
}

func newHandlerConfig(opts []HandlerOption) *handlerConfig {
	cfg := &handlerConfig{
		maxConflictRetries: 3,
		newBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 20 * time.Millisecond
			b.MaxInterval = 250 * time.Millisecond
			return b
		},
	}
	for _, o := range opts {
		o(cfg)
	}
	return cfg
}

// WithMaxConflictRetries bounds how many times a handler reloads and
// reapplies after a concurrency conflict before giving up.
func WithMaxConflictRetries(n uint64) HandlerOption {
	return func(cfg *handlerConfig) { cfg.maxConflictRetries = n }
}

// WithBackOff overrides the retry strategy factory used between conflict
// retries.
func WithBackOff(factory func() backoff.BackOff) HandlerOption {
	return func(cfg *handlerConfig) { cfg.newBackOff = factory }
}

// NewOpenAccountHandler returns the handler for OpenAccount: construct a
// fresh aggregate (raising AccountOpened), append at expected version 0 and
// publish. A duplicate identifier surfaces as a concurrency conflict; there
// is nothing to retry onto, so it is returned as-is.
func NewOpenAccountHandler(store cqrs.EventStore, publisher cqrs.EventPublisher) cqrs.CommandHandler[OpenAccount] {
	return func(ctx context.Context, cmd OpenAccount) error {
		agg, err := Open(cmd.ID, cmd.AccountHolder, cmd.AccountType, cmd.OpeningBalance)
		if err != nil {
			return err
		}
		return commit(ctx, store, publisher, agg, 0)
	}
}

// NewDepositFundsHandler returns the handler for DepositFunds.
func NewDepositFundsHandler(store cqrs.EventStore, publisher cqrs.EventPublisher, opts ...HandlerOption) cqrs.CommandHandler[DepositFunds] {
	cfg := newHandlerConfig(opts)
	return func(ctx context.Context, cmd DepositFunds) error {
		return mutate(ctx, cfg, store, publisher, cmd.ID, func(a *Account) error {
			return a.Deposit(cmd.Amount)
		})
	}
}

// NewWithdrawFundsHandler returns the handler for WithdrawFunds.
func NewWithdrawFundsHandler(store cqrs.EventStore, publisher cqrs.EventPublisher, opts ...HandlerOption) cqrs.CommandHandler[WithdrawFunds] {
	cfg := newHandlerConfig(opts)
	return func(ctx context.Context, cmd WithdrawFunds) error {
		return mutate(ctx, cfg, store, publisher, cmd.ID, func(a *Account) error {
			return a.Withdraw(cmd.Amount)
		})
	}
}

// NewCloseAccountHandler returns the handler for CloseAccount.
func NewCloseAccountHandler(store cqrs.EventStore, publisher cqrs.EventPublisher, opts ...HandlerOption) cqrs.CommandHandler[CloseAccount] {
	cfg := newHandlerConfig(opts)
	return func(ctx context.Context, cmd CloseAccount) error {
		return mutate(ctx, cfg, store, publisher, cmd.ID, func(a *Account) error {
			return a.Close()
		})
	}
}

// mutate is the load → replay → operate → persist → discard cycle shared by
// every command against an existing account. A concurrency conflict on
// append drives a bounded reload-reapply retry; every other failure is
// permanent. No aggregate instance outlives the command.
func mutate(ctx context.Context, cfg *handlerConfig, store cqrs.EventStore, publisher cqrs.EventPublisher, id string, op func(*Account) error) error {
	operation := func() error {
		history, err := store.Load(ctx, id)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("load stream %q: %w", id, err))
		}
		if len(history) == 0 {
			return backoff.Permanent(&cqrs.DomainRuleError{Msg: fmt.Sprintf("account %q does not exist", id)})
		}

		agg := NewAccount(id)
		if err := agg.Replay(agg, history); err != nil {
			return backoff.Permanent(err)
		}

		if err := op(agg); err != nil {
			return backoff.Permanent(err)
		}

		if err := commit(ctx, store, publisher, agg, uint64(len(history))); err != nil {
			var conflict *cqrs.ConcurrencyError
			if errors.As(err, &conflict) {
				return err // retryable: reload and reapply
			}
			return backoff.Permanent(err)
		}
		return nil
	}

	strategy := backoff.WithContext(backoff.WithMaxRetries(cfg.newBackOff(), cfg.maxConflictRetries), ctx)
	return backoff.Retry(operation, strategy)
}

// commit appends the aggregate's uncommitted events at the expected version
// and publishes them onto the durable log. If the append fails nothing is
// published and the in-memory mutation is discarded with the aggregate. A
// publish failure after a successful append cannot be rolled back; it is
// surfaced instead of hidden so the caller knows the log is behind the store.
func commit(ctx context.Context, store cqrs.EventStore, publisher cqrs.EventPublisher, agg *Account, expectedVersion uint64) error {
	events := agg.UncommittedEvents()
	if len(events) == 0 {
		return nil
	}

	if err := store.Append(ctx, agg.EntityID(), expectedVersion, events); err != nil {
		return err
	}
	agg.MarkCommitted()

	if err := publisher.Publish(ctx, events); err != nil {
		return fmt.Errorf("account %q: events appended but not published: %w", agg.EntityID(), err)
	}
	return nil
}

// RegisterHandlers wires all account command handlers onto the bus, wrapped
// with tracing and logging middleware.
func RegisterHandlers(bus *cqrs.CommandBus, store cqrs.EventStore, publisher cqrs.EventPublisher, logger *zap.Logger, opts ...HandlerOption) {
	cqrs.Register(bus, otelmw.WithCommandTracing(logging.WithCommandLogging(logger, NewOpenAccountHandler(store, publisher))))
	cqrs.Register(bus, otelmw.WithCommandTracing(logging.WithCommandLogging(logger, NewDepositFundsHandler(store, publisher, opts...))))
	cqrs.Register(bus, otelmw.WithCommandTracing(logging.WithCommandLogging(logger, NewWithdrawFundsHandler(store, publisher, opts...))))
	cqrs.Register(bus, otelmw.WithCommandTracing(logging.WithCommandLogging(logger, NewCloseAccountHandler(store, publisher, opts...))))
}
