package gateway

import (
	"encoding/json"
	"fmt"

	"github.com/mcdev12/claimline/go/internal/game/events"
)

// Envelope is the wire frame for every message in both directions. Commands that expect an
// acknowledgment carry an AckID, echoed back on the matching "ack" frame.
type Envelope struct {
	Type  events.Name     `json:"type"`
	AckID *int64          `json:"ackId,omitempty"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Encode builds an outbound frame.
func Encode(t events.Name, ackID *int64, payload any) ([]byte, error) {
	if t == "" {
		return nil, fmt.Errorf("encode envelope: empty type")
	}
	env := Envelope{Type: t, AckID: ackID}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encode %s payload: %w", t, err)
		}
		env.Data = data
	}
	return json.Marshal(env)
}

// DecodeEnvelope parses an inbound frame.
func DecodeEnvelope(b []byte) (Envelope, error) {
	if len(b) == 0 {
		return Envelope{}, fmt.Errorf("%w: empty frame", events.ErrInvalidPayload)
	}
	var env Envelope
	if err := json.Unmarshal(b, &env); err != nil {
		return Envelope{}, fmt.Errorf("%w: %v", events.ErrInvalidPayload, err)
	}
	if env.Type == "" {
		return env, fmt.Errorf("%w: type is required", events.ErrInvalidPayload)
	}
	return env, nil
}

// DecodeData unmarshals the frame's data into the schema for its type. A missing data field
// decodes to the zero value, left for the schema's Validate to reject.
func DecodeData[T any](env Envelope) (T, error) {
	var out T
	if len(env.Data) == 0 || string(env.Data) == "null" {
		return out, nil
	}
	if err := json.Unmarshal(env.Data, &out); err != nil {
		return out, fmt.Errorf("%w: %s: %v", events.ErrInvalidPayload, env.Type, err)
	}
	return out, nil
}
