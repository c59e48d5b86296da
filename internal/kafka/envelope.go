package kafka

import (
	"encoding/json"
	"time"
)

const EventVersion = 1

// Envelope wraps every message on the reservation topic.
type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"` // e.g. "canteen-api"
	TraceID       string          `json:"trace_id,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"` // reservation id
	Payload       json.RawMessage `json:"payload"`
}

// NotificationPayload is what the notifier service stores in an inbox.
type NotificationPayload struct {
	For       string         `json:"for"`
	Actor     string         `json:"actor,omitempty"`
	Type      string         `json:"type"`
	Title     string         `json:"title"`
	Body      string         `json:"body"`
	Data      map[string]any `json:"data,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// PartitionKey keeps every event of one reservation on one partition, in order.
func PartitionKey(reservationID string) []byte { return []byte(reservationID) }
