package cqrs

import (
	"fmt"
	"sync"
)

// EventDecoder turns a raw payload from the wire into the concrete event
// variant of one topic.
type EventDecoder func(data []byte) (Event, error)

var (
	// registry maps topic names to their payload decoders.
	registry = map[string]EventDecoder{}

	// mu protects access to the registry for concurrent operations.
	mu sync.RWMutex
)

// RegisterEvent registers the decoder for one topic. Each event variant
// registers exactly once, typically from an init function in the package that
// declares it.
//
// Panics if the decoder is nil or the topic is already registered.
func RegisterEvent(topic string, decode EventDecoder) {
	if decode == nil {
		panic(fmt.Sprintf("cannot register nil decoder for topic %q", topic))
	}

	mu.Lock()
	defer mu.Unlock()

	if _, exists := registry[topic]; exists {
		panic(fmt.Sprintf("event already registered for topic: %s", topic))
	}
	registry[topic] = decode
}

// DecodeEvent decodes a raw payload according to the given topic's event
// variant. An unregistered topic or a malformed payload is reported as
// *DeserializationError.
func DecodeEvent(topic string, data []byte) (Event, error) {
	mu.RLock()
	decode, ok := registry[topic]
	mu.RUnlock()

	if !ok {
		return nil, &DeserializationError{Topic: topic, Err: fmt.Errorf("no event registered for topic")}
	}

	event, err := decode(data)
	if err != nil {
		return nil, &DeserializationError{Topic: topic, Err: err}
	}
	return event, nil
}
