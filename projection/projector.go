// Package projection keeps the read store eventually consistent with the
// write-side event log: a long-running consumer polls the durable log and
// applies per-event-type projection rules to the bank-account rows.
package projection

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/openledger/banking/account"
	"github.com/openledger/banking/cqrs"
	"github.com/openledger/banking/readstore"
)

// Topics returns the topic set the projection subscribes to.
func Topics() []string {
	return account.Topics()
}

// Projector applies one event to the read store. Deliveries are
// at-least-once, so every application is guarded by the repository's
// processed-event ledger: the idempotency mark and the row mutation commit in
// one transaction, and a redelivered event is skipped without effect.
//
// Projector implements cqrs.EventHandler; it expects the envelope fields to
// be on the context via cqrs.WithEnvelope.
type Projector struct {
	repo readstore.Repository
	log  *zap.Logger
}

var _ cqrs.EventHandler = (*Projector)(nil)

// NewProjector creates a projector over the given repository.
func NewProjector(repo readstore.Repository, log *zap.Logger) *Projector {
	return &Projector{repo: repo, log: log}
}

// Handle applies the event to the read store. Duplicate deliveries return nil
// without touching any row.
func (p *Projector) Handle(ctx context.Context, event cqrs.Event) error {
	eventID := cqrs.EventIDFromContext(ctx)
	return p.repo.Transact(ctx, func(tx readstore.Repository) error {
		first, err := tx.MarkProcessed(ctx, eventID.String())
		if err != nil {
			return err
		}
		if !first {
			p.log.Debug("duplicate delivery skipped",
				zap.String("event_id", eventID.String()),
				zap.String("stream_id", cqrs.StreamIDFromContext(ctx)),
			)
			return nil
		}
		return p.rules(tx).Handle(ctx, event)
	})
}

// rules binds the per-event projection rules to one repository view, so they
// share the transaction of the idempotency mark.
func (p *Projector) rules(repo readstore.Repository) *cqrs.EventGroupProcessor {
	return cqrs.NewEventGroupProcessor(
		cqrs.OnEvent(func(ctx context.Context, ev account.AccountOpened) error {
			return repo.Insert(ctx, &readstore.BankAccount{
				Identifier:    ev.ID,
				AccountHolder: ev.AccountHolder,
				AccountType:   ev.AccountType,
				Balance:       ev.OpeningBalance,
				CreationDate:  ev.CreatedAt,
			})
		}),
		cqrs.OnEvent(func(ctx context.Context, ev account.AccountClosed) error {
			return repo.DeleteByIdentifier(ctx, ev.ID)
		}),
		cqrs.OnEvent(func(ctx context.Context, ev account.FundsDeposited) error {
			return p.adjust(ctx, repo, ev.ID, ev.Amount)
		}),
		cqrs.OnEvent(func(ctx context.Context, ev account.FundsWithdrawn) error {
			return p.adjust(ctx, repo, ev.ID, ev.Amount.Neg())
		}),
	)
}

// adjust applies a balance delta. A missing row means the account was closed
// while this event was still in flight; the delta is dropped with a warning
// rather than failing the delivery forever.
func (p *Projector) adjust(ctx context.Context, repo readstore.Repository, id string, delta decimal.Decimal) error {
	err := repo.AdjustBalance(ctx, id, delta)
	if errors.Is(err, readstore.ErrNotFound) {
		p.log.Warn("balance delta for missing account dropped",
			zap.String("identifier", id),
			zap.String("delta", delta.String()),
		)
		return nil
	}
	return err
}
