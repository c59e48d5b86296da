package reservation

import (
	"context"
	"log/slog"
	"time"
)

const (
	EventCreated = "reservation:created"
	EventStatus  = "reservation:status"
)

// AudienceAdmins addresses events to canteen staff rather than a single user.
const AudienceAdmins = "admins"

type Event struct {
	For       string         `json:"for"`
	Actor     string         `json:"actor,omitempty"`
	Type      string         `json:"type"`
	Title     string         `json:"title"`
	Body      string         `json:"body"`
	Data      map[string]any `json:"data,omitempty"`
	CreatedAt time.Time      `json:"createdAt"`
}

// Notifier must not block; the engine ignores its errors beyond logging.
type Notifier interface {
	Publish(ctx context.Context, ev Event) error
}

// LogNotifier writes events to the log. Used when no broker is configured.
type LogNotifier struct{ Log *slog.Logger }

func (n LogNotifier) Publish(_ context.Context, ev Event) error {
	n.Log.Info("reservation event", "type", ev.Type, "for", ev.For, "title", ev.Title, "data", ev.Data)
	return nil
}
