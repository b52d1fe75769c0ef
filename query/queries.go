// Package query defines the read-side requests and wires them to the read
// store. Queries never touch the event store; they serve whatever the
// projection has materialized so far.
package query

import (
	"context"

	"github.com/openledger/banking/cqrs"
	"github.com/openledger/banking/readstore"
)

// FindAllAccounts lists every bank account row.
type FindAllAccounts struct{}

// FindAccountByID fetches a single bank account row by identifier.
type FindAccountByID struct {
	Identifier string
}

// RegisterHandlers wires the account query handlers onto the bus, backed by
// the given repository.
func RegisterHandlers(bus *cqrs.QueryBus, repo readstore.Repository) {
	cqrs.RegisterQueryHandler(bus, cqrs.QueryHandlerFunc[FindAllAccounts, []readstore.BankAccount](
		func(ctx context.Context, _ FindAllAccounts) ([]readstore.BankAccount, error) {
			return repo.FindAll(ctx)
		},
	))
	cqrs.RegisterQueryHandler(bus, cqrs.QueryHandlerFunc[FindAccountByID, *readstore.BankAccount](
		func(ctx context.Context, qry FindAccountByID) (*readstore.BankAccount, error) {
			return repo.FindByIdentifier(ctx, qry.Identifier)
		},
	))
}
