package cqrs

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// wireEnvelope is the serialized form of an Envelope on the durable log. The
// event body travels as an opaque payload decoded according to the topic.
type wireEnvelope struct {
	EventID    uuid.UUID       `json:"eventId"`
	StreamID   string          `json:"streamId"`
	Version    uint64          `json:"version"`
	OccurredAt time.Time       `json:"occurredAt"`
	Metadata   map[string]any  `json:"metadata,omitempty"`
	Payload    json.RawMessage `json:"payload"`
}

// MarshalEnvelope serializes an envelope for publication. The topic is not
// part of the body; the broker carries it as the stream name.
func MarshalEnvelope(env *Envelope) ([]byte, error) {
	payload, err := json.Marshal(env.Event)
	if err != nil {
		return nil, err
	}
	return json.Marshal(wireEnvelope{
		EventID:    env.EventID,
		StreamID:   env.StreamID,
		Version:    env.Version,
		OccurredAt: env.OccurredAt,
		Metadata:   env.Metadata,
		Payload:    payload,
	})
}

// UnmarshalEnvelope decodes a message consumed from the durable log,
// resolving the event variant from the topic name. Malformed messages are
// reported as *DeserializationError.
func UnmarshalEnvelope(topic string, data []byte) (*Envelope, error) {
	var wire wireEnvelope
	if err := json.Unmarshal(data, &wire); err != nil {
		return nil, &DeserializationError{Topic: topic, Err: err}
	}

	event, err := DecodeEvent(topic, wire.Payload)
	if err != nil {
		return nil, err
	}

	return &Envelope{
		EventID:    wire.EventID,
		StreamID:   wire.StreamID,
		Metadata:   wire.Metadata,
		Event:      event,
		Version:    wire.Version,
		OccurredAt: wire.OccurredAt,
	}, nil
}
