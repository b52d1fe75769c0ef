package account

import "github.com/shopspring/decimal"

// OpenAccount opens a new account under the given identifier. The caller
// allocates the identifier so it can be returned before the command is
// processed.
type OpenAccount struct {
	ID             string
	AccountHolder  string
	AccountType    string
	OpeningBalance decimal.Decimal
}

func (c OpenAccount) AggregateID() string { return c.ID }

// DepositFunds adds the amount to the account's balance.
type DepositFunds struct {
	ID     string
	Amount decimal.Decimal
}

func (c DepositFunds) AggregateID() string { return c.ID }

// WithdrawFunds subtracts the amount from the account's balance.
type WithdrawFunds struct {
	ID     string
	Amount decimal.Decimal
}

func (c WithdrawFunds) AggregateID() string { return c.ID }

// CloseAccount closes the account.
type CloseAccount struct {
	ID string
}

func (c CloseAccount) AggregateID() string { return c.ID }
