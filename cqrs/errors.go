package cqrs

import "fmt"

// ValidationError reports malformed command input, such as a negative amount.
// It is returned synchronously to the caller; no event is produced.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string {
	return e.Msg
}

// DomainRuleError reports an operation that violates a business rule, such as
// depositing into a closed account. It is returned synchronously to the
// caller; no event is produced.
type DomainRuleError struct {
	Msg string
}

func (e *DomainRuleError) Error() string {
	return e.Msg
}

// ConcurrencyError is returned by EventStore.Append when the expected version
// does not match the actual stream length. The loser of the race is expected
// to reload the stream and reapply its command.
type ConcurrencyError struct {
	Stream   string
	Expected uint64
	Actual   uint64
}

func (e *ConcurrencyError) Error() string {
	return fmt.Sprintf("stream %q revision conflict: expected version %d, actual %d", e.Stream, e.Expected, e.Actual)
}

// StorageError wraps a failure of the event store or the read store.
type StorageError struct {
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage error: %v", e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// WrapStorageError wraps err in a StorageError, passing nil through.
func WrapStorageError(err error) error {
	if err == nil {
		return nil
	}
	return &StorageError{Err: err}
}

// DeserializationError reports a message on the wire that could not be
// decoded into the event variant its topic announces. The consumer routes
// such messages to a dead-letter sink instead of dropping them.
type DeserializationError struct {
	Topic string
	Err   error
}

func (e *DeserializationError) Error() string {
	return fmt.Sprintf("deserialize event from topic %q: %v", e.Topic, e.Err)
}

func (e *DeserializationError) Unwrap() error {
	return e.Err
}

// DownstreamError reports that the durable log or another downstream
// collaborator is unreachable.
type DownstreamError struct {
	Err error
}

func (e *DownstreamError) Error() string {
	return fmt.Sprintf("downstream unavailable: %v", e.Err)
}

func (e *DownstreamError) Unwrap() error {
	return e.Err
}

// UnknownEventError is returned when an aggregate has no apply rule for an
// event variant found in its stream. During replay this is fatal: it signals
// store corruption or schema drift, never a case to ignore.
type UnknownEventError struct {
	Event Event
}

func (e *UnknownEventError) Error() string {
	return fmt.Sprintf("no apply rule for event of type %T", e.Event)
}

// SkippedEventError is returned when a handler group receives an event type
// it has no handler for.
type SkippedEventError struct {
	Event Event
}

func (e *SkippedEventError) Error() string {
	return fmt.Sprintf("skipped event of type %T", e.Event)
}
