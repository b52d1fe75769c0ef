// Package readstore holds the query-optimized view of bank accounts. The
// rows are owned exclusively by the projection consumer and are eventually
// consistent with the write-side event log; they may lag arbitrarily while
// the consumer is down.
package readstore

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when no row exists for the requested identifier.
var ErrNotFound = errors.New("bank account not found")

// BankAccount is one materialized read row.
type BankAccount struct {
	Identifier    string          `gorm:"primaryKey;size:64" json:"identifier"`
	AccountHolder string          `json:"accountHolder"`
	AccountType   string          `json:"accountType"`
	Balance       decimal.Decimal `gorm:"type:numeric(20,4)" json:"balance"`
	CreationDate  time.Time       `json:"creationDate"`
}

// ProcessedEvent is the idempotency ledger: one row per event the projection
// has applied, keyed by the envelope's event ID. Redelivered events hit the
// primary key and are skipped instead of re-applied.
type ProcessedEvent struct {
	EventID     string `gorm:"primaryKey;size:36"`
	ProcessedAt time.Time
}

// Repository is the read-store contract the projection consumer and the
// query side depend on.
type Repository interface {
	// Insert creates the row for a newly opened account.
	Insert(ctx context.Context, account *BankAccount) error

	// DeleteByIdentifier removes the row for a closed account. Deleting an
	// unknown identifier is not an error.
	DeleteByIdentifier(ctx context.Context, identifier string) error

	// AdjustBalance applies a signed delta to the stored balance. Returns
	// ErrNotFound when no row exists for the identifier.
	AdjustBalance(ctx context.Context, identifier string, delta decimal.Decimal) error

	// FindByIdentifier returns the row or ErrNotFound.
	FindByIdentifier(ctx context.Context, identifier string) (*BankAccount, error)

	// FindAll returns every row. No rows is an empty slice, not an error.
	FindAll(ctx context.Context) ([]BankAccount, error)

	// MarkProcessed records the event in the idempotency ledger. It reports
	// whether this is the first time the event has been seen.
	MarkProcessed(ctx context.Context, eventID string) (bool, error)

	// Transact runs fn against a transactional view of the repository, so an
	// idempotency mark and the row mutation it guards commit together.
	Transact(ctx context.Context, fn func(Repository) error) error
}
