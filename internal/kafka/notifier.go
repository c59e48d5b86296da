package kafka

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/ariefcatur/canteen-reservations/internal/reservation"
	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
)

type publisher interface {
	Publish(key, value []byte, headers ...kafka.Header) error
}

// Notifier publishes reservation events to Kafka. Publish only enqueues, so
// a slow broker never holds up a status change.
type Notifier struct {
	p       publisher
	service string
	now     func() time.Time
}

func NewNotifier(p *Producer, service string) *Notifier {
	return &Notifier{p: p, service: service, now: func() time.Time { return time.Now().UTC() }}
}

func (n *Notifier) Publish(ctx context.Context, ev reservation.Event) error {
	reservationID, _ := ev.Data["reservationId"].(string)
	env := Envelope{
		EventID:       uuid.NewString(),
		EventType:     ev.Type,
		EventVersion:  EventVersion,
		OccurredAt:    n.now(),
		Producer:      n.service,
		TraceID:       traceID(ctx),
		CorrelationID: reservationID,
	}
	value, err := EncodeEnvelope(env, NotificationPayload{
		For:       ev.For,
		Actor:     ev.Actor,
		Type:      ev.Type,
		Title:     ev.Title,
		Body:      ev.Body,
		Data:      ev.Data,
		CreatedAt: ev.CreatedAt,
	})
	if err != nil {
		return err
	}
	err = n.p.Publish(PartitionKey(reservationID), value,
		kafka.Header{Key: "x-event-type", Value: []byte(ev.Type)},
		kafka.Header{Key: "x-event-version", Value: []byte(strconv.Itoa(EventVersion))},
	)
	if err != nil {
		return fmt.Errorf("publish %s: %w", ev.Type, err)
	}
	return nil
}

type traceKey struct{}

// WithTraceID carries the request id into published envelopes.
func WithTraceID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, traceKey{}, id)
}

func traceID(ctx context.Context) string {
	id, _ := ctx.Value(traceKey{}).(string)
	return id
}
