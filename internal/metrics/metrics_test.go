package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
)

func TestRegistry_RecordsEngineOutcomes(t *testing.T) {
	r := NewRegistry()
	r.ReservationCreated()
	r.TransitionObserved("Pending", "Approved", "ok", 15*time.Millisecond)
	r.TransitionObserved("Approved", "Approved", "noop", time.Millisecond)
	r.Charged(decimal.RequireFromString("49.50"))
	r.Refunded(decimal.NewFromInt(20))
	r.NotifyFailed()

	if got := testutil.ToFloat64(r.Created); got != 1 {
		t.Fatalf("created = %v", got)
	}
	if got := testutil.ToFloat64(r.Transitions.WithLabelValues("Pending", "Approved", "ok")); got != 1 {
		t.Fatalf("ok transitions = %v", got)
	}
	if got := testutil.ToFloat64(r.ChargedAmount); got != 49.5 {
		t.Fatalf("charged = %v", got)
	}
	if got := testutil.ToFloat64(r.NotifyFailures); got != 1 {
		t.Fatalf("notify failures = %v", got)
	}
}

func TestRegistry_Handler(t *testing.T) {
	r := NewRegistry()
	r.Inconsistency()

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), "canteen_reservation_inconsistencies_total 1") {
		t.Fatalf("metric missing from exposition:\n%s", body)
	}
}
