package account

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"

	"github.com/openledger/banking/cqrs"
)

// Topic names double as event type names on the wire: the durable log carries
// one stream per topic.
const (
	TopicAccountOpened  = "AccountOpened"
	TopicAccountClosed  = "AccountClosed"
	TopicFundsDeposited = "FundsDeposited"
	TopicFundsWithdrawn = "FundsWithdrawn"
)

// Topics returns the full topic set of the account domain, in the order the
// projection consumer subscribes to them.
func Topics() []string {
	return []string{TopicAccountOpened, TopicAccountClosed, TopicFundsDeposited, TopicFundsWithdrawn}
}

// AccountOpened records that a new account was opened with an initial
// balance.
type AccountOpened struct {
	ID             string          `json:"id"`
	AccountHolder  string          `json:"accountHolder"`
	AccountType    string          `json:"accountType"`
	OpeningBalance decimal.Decimal `json:"openingBalance"`
	CreatedAt      time.Time       `json:"createdAt"`
}

func (e AccountOpened) AggregateID() string { return e.ID }
func (e AccountOpened) EventType() string   { return TopicAccountOpened }

// FundsDeposited records that the given amount was added to the balance.
type FundsDeposited struct {
	ID     string          `json:"id"`
	Amount decimal.Decimal `json:"amount"`
}

func (e FundsDeposited) AggregateID() string { return e.ID }
func (e FundsDeposited) EventType() string   { return TopicFundsDeposited }

// FundsWithdrawn records that the given amount was subtracted from the
// balance.
type FundsWithdrawn struct {
	ID     string          `json:"id"`
	Amount decimal.Decimal `json:"amount"`
}

func (e FundsWithdrawn) AggregateID() string { return e.ID }
func (e FundsWithdrawn) EventType() string   { return TopicFundsWithdrawn }

// AccountClosed records that the account was closed.
type AccountClosed struct {
	ID string `json:"id"`
}

func (e AccountClosed) AggregateID() string { return e.ID }
func (e AccountClosed) EventType() string   { return TopicAccountClosed }

func init() {
	cqrs.RegisterEvent(TopicAccountOpened, func(data []byte) (cqrs.Event, error) {
		var ev AccountOpened
		if err := json.Unmarshal(data, &ev); err != nil {
			return nil, err
		}
		return ev, nil
	})
	cqrs.RegisterEvent(TopicAccountClosed, func(data []byte) (cqrs.Event, error) {
		var ev AccountClosed
		if err := json.Unmarshal(data, &ev); err != nil {
			return nil, err
		}
		return ev, nil
	})
	cqrs.RegisterEvent(TopicFundsDeposited, func(data []byte) (cqrs.Event, error) {
		var ev FundsDeposited
		if err := json.Unmarshal(data, &ev); err != nil {
			return nil, err
		}
		return ev, nil
	})
	cqrs.RegisterEvent(TopicFundsWithdrawn, func(data []byte) (cqrs.Event, error) {
		var ev FundsWithdrawn
		if err := json.Unmarshal(data, &ev); err != nil {
			return nil, err
		}
		return ev, nil
	})
}
