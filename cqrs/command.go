package cqrs

import "context"

// Command expresses the intent to perform a domain action against one
// aggregate.
type Command interface {
	AggregateID() string
}

// CommandHandler implements the business logic associated with a command of
// type C: typically load the aggregate's history, replay it, invoke the
// operation and persist and publish the resulting events.
//
// Handlers should treat the command as immutable, express all state changes
// as events and return errors instead of panicking.
type CommandHandler[C Command] func(ctx context.Context, command C) error
