package cqrs

import (
	"context"
	"fmt"
	"hash/fnv"
	"sync"
)

// queuedCommand represents a command enqueued in the command bus for
// processing, together with the caller's context and a response channel.
type queuedCommand struct {
	Ctx        context.Context
	Command    Command
	ResponseCh chan<- error
}

// CommandBus is an in-memory, type-safe command dispatcher. Commands are
// routed to a fixed set of worker goroutines by hashing the aggregate
// identifier, so commands for the same aggregate are processed sequentially
// while commands for distinct aggregates run in parallel.
//
// The bus supports:
//   - Typed command registration using generics
//   - Safe shutdown that waits for in-flight commands to complete
//   - Panic recovery in handlers to prevent the bus from crashing
type CommandBus struct {
	handlers   map[string]func(ctx context.Context, command Command) error
	queues     []chan queuedCommand
	stopCh     chan struct{}
	wg         sync.WaitGroup
	mu         sync.RWMutex
	shardCount int
}

// NewCommandBus creates a command bus with the given queue buffer size and
// number of worker shards. The workers are started immediately.
func NewCommandBus(bufferSize int, shardCount int) *CommandBus {
	if shardCount <= 0 {
		shardCount = 1
	}

	bus := &CommandBus{
		queues:     make([]chan queuedCommand, shardCount),
		handlers:   make(map[string]func(ctx context.Context, command Command) error),
		stopCh:     make(chan struct{}),
		shardCount: shardCount,
	}

	for i := 0; i < shardCount; i++ {
		bus.queues[i] = make(chan queuedCommand, bufferSize)
		go bus.worker(bus.queues[i])
	}

	return bus
}

// Dispatch enqueues a command for processing by the registered handler and
// waits for the result. It is safe to call concurrently. The caller's context
// bounds both the wait for a queue slot and the wait for the result.
func (b *CommandBus) Dispatch(ctx context.Context, cmd Command) error {
	select {
	case <-b.stopCh:
		return fmt.Errorf("command bus is stopped")
	default:
	}

	responseCh := make(chan error, 1)
	b.wg.Add(1)
	defer b.wg.Done()

	shard := b.getShard(cmd.AggregateID())

	select {
	case b.queues[shard] <- queuedCommand{Ctx: ctx, Command: cmd, ResponseCh: responseCh}:
		select {
		case err := <-responseCh:
			return err
		case <-ctx.Done():
			return ctx.Err()
		}
	case <-ctx.Done():
		return ctx.Err()
	}
}

// worker processes commands from a single shard queue.
func (b *CommandBus) worker(queue chan queuedCommand) {
	for cmd := range queue {
		cmdName := fmt.Sprintf("%T", cmd.Command)

		b.mu.RLock()
		h, exists := b.handlers[cmdName]
		b.mu.RUnlock()

		if !exists {
			cmd.ResponseCh <- fmt.Errorf("no handler for command %s", cmdName)
			continue
		}

		func() {
			defer func() {
				if r := recover(); r != nil {
					cmd.ResponseCh <- fmt.Errorf("panic in handler: %v", r)
				}
			}()

			cmd.ResponseCh <- h(cmd.Ctx, cmd.Command)
		}()
	}
}

func (b *CommandBus) getShard(aggregateID string) int {
	hash := fnv.New32a()
	hash.Write([]byte(aggregateID))
	return int(hash.Sum32()) % b.shardCount
}

// Register adds a new typed command handler to the bus. The command type name
// is derived automatically, so no registration strings are needed.
//
// Panics if a handler is already registered for the same command type.
func Register[C Command](b *CommandBus, handler CommandHandler[C]) {
	var zero C
	cmdName := fmt.Sprintf("%T", zero)
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.handlers[cmdName]; exists {
		panic(fmt.Sprintf("handler already registered for command type %s", cmdName))
	}

	b.handlers[cmdName] = func(ctx context.Context, cmd Command) error {
		c, ok := cmd.(C)
		if !ok {
			return fmt.Errorf("expected command type %s but got %T", cmdName, cmd)
		}
		return handler(ctx, c)
	}
}

// Stop shuts down the bus: it stops accepting new commands, closes the worker
// queues and waits for all in-flight commands to finish.
func (b *CommandBus) Stop() {
	close(b.stopCh)
	for _, q := range b.queues {
		close(q)
	}
	b.wg.Wait()
}
