package inbox

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	kafkax "github.com/ariefcatur/canteen-reservations/internal/kafka"
	"github.com/ariefcatur/canteen-reservations/internal/reservation"
	kafkago "github.com/segmentio/kafka-go"
)

type memStore struct {
	seen    map[string]bool
	inbox   map[string][]Notification
	pushErr error
}

func newMemStore() *memStore {
	return &memStore{seen: map[string]bool{}, inbox: map[string][]Notification{}}
}

func (m *memStore) MarkSeen(_ context.Context, id string) (bool, error) {
	if m.seen[id] {
		return false, nil
	}
	m.seen[id] = true
	return true, nil
}

func (m *memStore) Forget(_ context.Context, id string) error {
	delete(m.seen, id)
	return nil
}

func (m *memStore) Push(_ context.Context, n Notification) error {
	if m.pushErr != nil {
		return m.pushErr
	}
	m.inbox[n.For] = append([]Notification{n}, m.inbox[n.For]...)
	return nil
}

func (m *memStore) Recent(_ context.Context, audience string, _ int64) ([]Notification, error) {
	return m.inbox[audience], nil
}

type counters struct{ stored, dups int }

func (c *counters) InboxStored(string) { c.stored++ }
func (c *counters) InboxDuplicate()    { c.dups++ }

func message(t *testing.T, eventID, typ string, p kafkax.NotificationPayload) kafkago.Message {
	t.Helper()
	env := kafkax.Envelope{
		EventID:      eventID,
		EventType:    typ,
		EventVersion: kafkax.EventVersion,
		OccurredAt:   time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC),
		Producer:     "canteen-api",
	}
	b, err := kafkax.EncodeEnvelope(env, p)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	return kafkago.Message{Value: b}
}

func newService() (*Service, *memStore, *counters) {
	st := newMemStore()
	c := &counters{}
	return &Service{Store: st, Metrics: c, Log: slog.New(slog.NewTextHandler(io.Discard, nil))}, st, c
}

func TestHandle_StoresOncePerEvent(t *testing.T) {
	ctx := context.Background()
	svc, st, c := newService()
	m := message(t, "ev-1", reservation.EventStatus, kafkax.NotificationPayload{
		For: "u1", Type: reservation.EventStatus, Title: "Reservation approved",
	})

	for i := 0; i < 3; i++ {
		if err := svc.HandleReservationEvent(ctx, m); err != nil {
			t.Fatalf("handle: %v", err)
		}
	}
	got, _ := svc.Recent(ctx, "u1", 10)
	if len(got) != 1 || got[0].ID != "ev-1" || got[0].Title != "Reservation approved" {
		t.Fatalf("unexpected inbox %+v", got)
	}
	if got[0].CreatedAt.IsZero() {
		t.Fatal("missing timestamp should fall back to the envelope time")
	}
	if c.stored != 1 || c.dups != 2 {
		t.Fatalf("stored=%d dups=%d", c.stored, c.dups)
	}
	if len(st.inbox[reservation.AudienceAdmins]) != 0 {
		t.Fatal("status event leaked into the admin inbox")
	}
}

func TestHandle_DefaultsToAdmins(t *testing.T) {
	ctx := context.Background()
	svc, st, _ := newService()
	m := message(t, "ev-2", reservation.EventCreated, kafkax.NotificationPayload{Type: reservation.EventCreated})
	if err := svc.HandleReservationEvent(ctx, m); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if len(st.inbox[reservation.AudienceAdmins]) != 1 {
		t.Fatalf("expected admin inbox entry, got %+v", st.inbox)
	}
}

func TestHandle_IgnoresForeignAndPoisonMessages(t *testing.T) {
	ctx := context.Background()
	svc, st, _ := newService()
	if err := svc.HandleReservationEvent(ctx, kafkago.Message{Value: []byte("{garbage")}); err != nil {
		t.Fatalf("poison message must be skipped, got %v", err)
	}
	m := message(t, "ev-3", "OrderCreated", kafkax.NotificationPayload{For: "u1"})
	if err := svc.HandleReservationEvent(ctx, m); err != nil {
		t.Fatalf("foreign event: %v", err)
	}
	if len(st.seen) != 0 || len(st.inbox) != 0 {
		t.Fatalf("nothing should be recorded: %+v %+v", st.seen, st.inbox)
	}
}

func TestHandle_PushFailureAllowsRedelivery(t *testing.T) {
	ctx := context.Background()
	svc, st, _ := newService()
	st.pushErr = errors.New("redis down")
	m := message(t, "ev-4", reservation.EventStatus, kafkax.NotificationPayload{For: "u1"})

	if err := svc.HandleReservationEvent(ctx, m); err == nil {
		t.Fatal("expected push error to surface")
	}
	if st.seen["ev-4"] {
		t.Fatal("dedup key must be released after a failed push")
	}

	st.pushErr = nil
	if err := svc.HandleReservationEvent(ctx, m); err != nil {
		t.Fatalf("redelivery: %v", err)
	}
	if len(st.inbox["u1"]) != 1 {
		t.Fatalf("expected stored notification after redelivery, got %+v", st.inbox)
	}
}
