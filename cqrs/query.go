package cqrs

import (
	"context"
	"errors"
	"fmt"
)

// ErrHandlerNotFound is returned by a query gateway when no handler is
// registered for the requested query/result pair.
var ErrHandlerNotFound = errors.New("no handler registered for query")

// Query is a marker for read-side requests. Queries only ever touch the read
// store, never the event store.
type Query interface{}

// QueryHandler resolves a query of type Q into a result of type R.
type QueryHandler[Q Query, R any] interface {
	HandleQuery(ctx context.Context, qry Q) (R, error)
}

// QueryHandlerFunc adapts a plain function to the QueryHandler interface.
type QueryHandlerFunc[Q Query, R any] func(ctx context.Context, qry Q) (R, error)

func (f QueryHandlerFunc[Q, R]) HandleQuery(ctx context.Context, qry Q) (R, error) {
	return f(ctx, qry)
}

// QueryBus acts as a central registry for query handlers, keyed by their
// query and result types, allowing multiple query types to be registered on a
// single bus and executed through typed gateways.
//
// Example Usage:
//
//	bus := NewQueryBus()
//	RegisterQueryHandler(bus, QueryHandlerFunc[MyQuery, *MyResult](func(ctx context.Context, q MyQuery) (*MyResult, error) {
//	    return &MyResult{Value: 42}, nil
//	}))
//	gateway := NewQueryGateway[MyQuery, *MyResult](bus)
//	result, err := gateway.HandleQuery(ctx, MyQuery{})
type QueryBus struct {
	handlers map[string]any
}

// NewQueryBus creates a new, empty bus ready for handler registration.
func NewQueryBus() *QueryBus {
	return &QueryBus{
		handlers: make(map[string]any),
	}
}

// RegisterQueryHandler registers a QueryHandler for a specific query and
// result type on the provided QueryBus.
//
// Panics if a handler for the same query/result pair is already registered.
func RegisterQueryHandler[Q Query, R any](bus *QueryBus, handler QueryHandler[Q, R]) {
	key := fmt.Sprintf("%T|%T", *new(Q), *new(R))
	if _, exists := bus.handlers[key]; exists {
		panic(fmt.Sprintf("handler already registered for query %s", key))
	}
	bus.handlers[key] = handler
}

// QueryGateway provides a typed interface for executing queries registered on
// a QueryBus. It implements QueryHandler[Q, R] itself, so it can be used
// wherever a handler is expected.
type QueryGateway[Q Query, R any] struct {
	bus *QueryBus
}

// NewQueryGateway creates a typed gateway for a specific query type backed by
// a QueryBus.
func NewQueryGateway[Q Query, R any](bus *QueryBus) QueryGateway[Q, R] {
	return QueryGateway[Q, R]{bus: bus}
}

// HandleQuery executes the registered handler for the given query.
func (g QueryGateway[Q, R]) HandleQuery(ctx context.Context, qry Q) (R, error) {
	key := fmt.Sprintf("%T|%T", qry, *new(R))

	h, ok := g.bus.handlers[key]
	if !ok {
		var zero R
		return zero, fmt.Errorf("query %T -> %T: %w", qry, *new(R), ErrHandlerNotFound)
	}

	handler, ok := h.(QueryHandler[Q, R])
	if !ok {
		var zero R
		return zero, fmt.Errorf("handler type mismatch for query %T -> %T", qry, *new(R))
	}

	return handler.HandleQuery(ctx, qry)
}
