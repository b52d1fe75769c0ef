package account

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/openledger/banking/cqrs"
)

// Account is the bank-account aggregate: Uninitialized → Open → Closed. Its
// state is a pure function of its event history; the command methods only
// validate preconditions and raise events, and every mutation happens inside
// ApplyEvent.
type Account struct {
	*cqrs.AggregateBase

	active   bool
	balance  decimal.Decimal
	holder   string
	kind     string
	openedAt time.Time
}

var _ cqrs.Aggregate = (*Account)(nil)

// NewAccount creates an uninitialized aggregate ready to replay a stream.
func NewAccount(id string) *Account {
	return &Account{AggregateBase: cqrs.NewAggregateBase(id)}
}

// Open creates a fresh aggregate and raises AccountOpened. There is no
// precondition: any identifier, holder and opening balance open an account.
func Open(id, holder, accountType string, openingBalance decimal.Decimal) (*Account, error) {
	a := NewAccount(id)
	err := a.Raise(a, AccountOpened{
		ID:             id,
		AccountHolder:  holder,
		AccountType:    accountType,
		OpeningBalance: openingBalance,
		CreatedAt:      time.Now().UTC(),
	})
	if err != nil {
		return nil, err
	}
	return a, nil
}

// Deposit raises FundsDeposited. The account must be active and the amount
// must not be negative.
func (a *Account) Deposit(amount decimal.Decimal) error {
	if !a.active {
		return &cqrs.DomainRuleError{Msg: "funds cannot be deposited into an inactive account"}
	}
	if amount.IsNegative() {
		return &cqrs.ValidationError{Msg: "deposit amount must not be negative"}
	}
	return a.Raise(a, FundsDeposited{ID: a.EntityID(), Amount: amount})
}

// Withdraw raises FundsWithdrawn. The account must be active. There is no
// sufficient-funds guard: the balance may go negative (overdraft).
func (a *Account) Withdraw(amount decimal.Decimal) error {
	if !a.active {
		return &cqrs.DomainRuleError{Msg: "funds cannot be withdrawn from an inactive account"}
	}
	return a.Raise(a, FundsWithdrawn{ID: a.EntityID(), Amount: amount})
}

// Close raises AccountClosed. The account must be active.
func (a *Account) Close() error {
	if !a.active {
		return &cqrs.DomainRuleError{Msg: "account is not active"}
	}
	return a.Raise(a, AccountClosed{ID: a.EntityID()})
}

// ApplyEvent implements cqrs.EventApplier with a single dispatch over the
// account event variants.
func (a *Account) ApplyEvent(event cqrs.Event) error {
	switch e := event.(type) {
	case AccountOpened:
		a.active = true
		a.balance = e.OpeningBalance
		a.holder = e.AccountHolder
		a.kind = e.AccountType
		a.openedAt = e.CreatedAt
	case FundsDeposited:
		a.balance = a.balance.Add(e.Amount)
	case FundsWithdrawn:
		a.balance = a.balance.Sub(e.Amount)
	case AccountClosed:
		a.active = false
	default:
		return &cqrs.UnknownEventError{Event: event}
	}
	return nil
}

// Active reports whether the account is open.
func (a *Account) Active() bool { return a.active }

// Balance returns the current balance.
func (a *Account) Balance() decimal.Decimal { return a.balance }

// Holder returns the account holder's name.
func (a *Account) Holder() string { return a.holder }

// AccountType returns the account type.
func (a *Account) AccountType() string { return a.kind }

// OpenedAt returns the opening time.
func (a *Account) OpenedAt() time.Time { return a.openedAt }
