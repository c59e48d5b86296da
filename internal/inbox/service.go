package inbox

import (
	"context"
	"log/slog"
	"time"

	kafkax "github.com/ariefcatur/canteen-reservations/internal/kafka"
	"github.com/ariefcatur/canteen-reservations/internal/reservation"
	kafkago "github.com/segmentio/kafka-go"
)

// Notification is one stored inbox entry.
type Notification struct {
	ID        string         `json:"id"`
	For       string         `json:"for"`
	Actor     string         `json:"actor,omitempty"`
	Type      string         `json:"type"`
	Title     string         `json:"title"`
	Body      string         `json:"body"`
	Data      map[string]any `json:"data,omitempty"`
	CreatedAt time.Time      `json:"createdAt"`
}

type Store interface {
	// MarkSeen returns false when the event was already processed.
	MarkSeen(ctx context.Context, eventID string) (bool, error)
	Forget(ctx context.Context, eventID string) error
	Push(ctx context.Context, n Notification) error
	Recent(ctx context.Context, audience string, limit int64) ([]Notification, error)
}

type Metrics interface {
	InboxStored(eventType string)
	InboxDuplicate()
}

type Service struct {
	Store   Store
	Metrics Metrics
	Log     *slog.Logger
}

// HandleReservationEvent is installed as the consumer handler.
func (s *Service) HandleReservationEvent(ctx context.Context, m kafkago.Message) error {
	env, err := kafkax.DecodeEnvelope(m.Value)
	if err != nil {
		// poison message: log and commit past it
		s.Log.Warn("dropping undecodable message", "partition", m.Partition, "offset", m.Offset, "err", err)
		return nil
	}
	if env.EventType != reservation.EventCreated && env.EventType != reservation.EventStatus {
		return nil
	}

	p, err := kafkax.DecodeNotification(env)
	if err != nil {
		s.Log.Warn("dropping event with bad payload", "event_id", env.EventID, "err", err)
		return nil
	}

	first, err := s.Store.MarkSeen(ctx, env.EventID)
	if err != nil {
		return err
	}
	if !first {
		if s.Metrics != nil {
			s.Metrics.InboxDuplicate()
		}
		return nil
	}

	n := Notification{
		ID:        env.EventID,
		For:       p.For,
		Actor:     p.Actor,
		Type:      p.Type,
		Title:     p.Title,
		Body:      p.Body,
		Data:      p.Data,
		CreatedAt: p.CreatedAt,
	}
	if n.For == "" {
		n.For = reservation.AudienceAdmins
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = env.OccurredAt
	}
	if err := s.Store.Push(ctx, n); err != nil {
		// let redelivery try again
		if ferr := s.Store.Forget(ctx, env.EventID); ferr != nil {
			s.Log.Error("dedup rollback failed", "event_id", env.EventID, "err", ferr)
		}
		return err
	}
	if s.Metrics != nil {
		s.Metrics.InboxStored(env.EventType)
	}
	s.Log.Debug("notification stored", "event_id", env.EventID, "for", n.For, "type", n.Type, "trace_id", env.TraceID)
	return nil
}

func (s *Service) Recent(ctx context.Context, audience string, limit int64) ([]Notification, error) {
	return s.Store.Recent(ctx, audience, limit)
}
