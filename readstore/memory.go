package readstore

import (
	"context"
	"sort"
	"sync"

	"github.com/shopspring/decimal"
)

var _ Repository = (*MemoryRepository)(nil)

// MemoryRepository is the in-memory repository used by tests and local runs.
type MemoryRepository struct {
	mu        sync.RWMutex
	accounts  map[string]BankAccount
	processed map[string]bool
}

// NewMemoryRepository creates an empty in-memory repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		accounts:  make(map[string]BankAccount),
		processed: make(map[string]bool),
	}
}

func (r *MemoryRepository) Insert(ctx context.Context, account *BankAccount) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.accounts[account.Identifier] = *account
	return nil
}

func (r *MemoryRepository) DeleteByIdentifier(ctx context.Context, identifier string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.accounts, identifier)
	return nil
}

func (r *MemoryRepository) AdjustBalance(ctx context.Context, identifier string, delta decimal.Decimal) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	account, ok := r.accounts[identifier]
	if !ok {
		return ErrNotFound
	}
	account.Balance = account.Balance.Add(delta)
	r.accounts[identifier] = account
	return nil
}

func (r *MemoryRepository) FindByIdentifier(ctx context.Context, identifier string) (*BankAccount, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	account, ok := r.accounts[identifier]
	if !ok {
		return nil, ErrNotFound
	}
	return &account, nil
}

func (r *MemoryRepository) FindAll(ctx context.Context) ([]BankAccount, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]BankAccount, 0, len(r.accounts))
	for _, account := range r.accounts {
		out = append(out, account)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Identifier < out[j].Identifier })
	return out, nil
}

func (r *MemoryRepository) MarkProcessed(ctx context.Context, eventID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.processed[eventID] {
		return false, nil
	}
	r.processed[eventID] = true
	return true, nil
}

// Transact runs fn against the repository itself. The in-memory
// implementation offers no rollback; it exists for tests, where the
// transactional coupling of the PostgreSQL repository is not under test.
func (r *MemoryRepository) Transact(ctx context.Context, fn func(Repository) error) error {
	return fn(r)
}
