package query

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/openledger/banking/cqrs"
	"github.com/openledger/banking/readstore"
)

func seededBus(t *testing.T) *cqrs.QueryBus {
	t.Helper()
	repo := readstore.NewMemoryRepository()
	ctx := context.Background()

	for _, id := range []string{"acc-1", "acc-2"} {
		err := repo.Insert(ctx, &readstore.BankAccount{
			Identifier:    id,
			AccountHolder: "Ada",
			AccountType:   "savings",
			Balance:       decimal.NewFromInt(10),
			CreationDate:  time.Now().UTC(),
		})
		require.NoError(t, err)
	}

	bus := cqrs.NewQueryBus()
	RegisterHandlers(bus, repo)
	return bus
}

func TestFindAllAccounts(t *testing.T) {
	bus := seededBus(t)
	gateway := cqrs.NewQueryGateway[FindAllAccounts, []readstore.BankAccount](bus)

	accounts, err := gateway.HandleQuery(context.Background(), FindAllAccounts{})
	require.NoError(t, err)
	require.Len(t, accounts, 2)
}

func TestFindAccountByID(t *testing.T) {
	bus := seededBus(t)
	gateway := cqrs.NewQueryGateway[FindAccountByID, *readstore.BankAccount](bus)

	account, err := gateway.HandleQuery(context.Background(), FindAccountByID{Identifier: "acc-1"})
	require.NoError(t, err)
	require.Equal(t, "acc-1", account.Identifier)
	require.Equal(t, "Ada", account.AccountHolder)
}

func TestFindAccountByID_Unknown(t *testing.T) {
	bus := seededBus(t)
	gateway := cqrs.NewQueryGateway[FindAccountByID, *readstore.BankAccount](bus)

	_, err := gateway.HandleQuery(context.Background(), FindAccountByID{Identifier: "ghost"})
	require.ErrorIs(t, err, readstore.ErrNotFound)
}
