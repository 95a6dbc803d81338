package kafka

import (
	"encoding/json"
	"fmt"

	"github.com/segmentio/kafka-go"
)

// UnmarshalEnvelope decodes a message value into out, naming the message position on failure.
func UnmarshalEnvelope(m kafka.Message, out any) error {
	if err := json.Unmarshal(m.Value, out); err != nil {
		return fmt.Errorf("decode envelope %s/%d@%d: %w", m.Topic, m.Partition, m.Offset, err)
	}
	return nil
}

// UnwrapPayload decodes an event-specific payload.
func UnwrapPayload[T any](payload json.RawMessage) (T, error) {
	var t T
	if err := json.Unmarshal(payload, &t); err != nil {
		return t, fmt.Errorf("decode payload: %w", err)
	}
	return t, nil
}
