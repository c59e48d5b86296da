package kafka

import (
	"encoding/json"
	"errors"
	"fmt"
)

// EncodeEnvelope sets the envelope payload and returns the message value.
func EncodeEnvelope(env Envelope, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", env.EventType, err)
	}
	env.Payload = raw
	b, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("encode %s envelope: %w", env.EventType, err)
	}
	return b, nil
}

func DecodeEnvelope(b []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(b, &env); err != nil {
		return env, fmt.Errorf("decode envelope: %w", err)
	}
	if env.EventID == "" || env.EventType == "" {
		return env, fmt.Errorf("decode envelope: missing event id or type")
	}
	return env, nil
}

// DecodeNotification reads the notification carried by a reservation event.
func DecodeNotification(env Envelope) (NotificationPayload, error) {
	var p NotificationPayload
	if len(env.Payload) == 0 {
		return p, errors.New("decode notification: empty payload")
	}
	if err := json.Unmarshal(env.Payload, &p); err != nil {
		return p, fmt.Errorf("decode notification %s: %w", env.EventID, err)
	}
	return p, nil
}
