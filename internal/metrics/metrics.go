package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
)

// Registry implements reservation.Metrics on a private Prometheus registry.
type Registry struct {
	reg *prometheus.Registry

	Created         prometheus.Counter
	Transitions     *prometheus.CounterVec
	TransitionSec   prometheus.Histogram
	ChargedAmount   prometheus.Counter
	RefundedAmount  prometheus.Counter
	Inconsistencies prometheus.Counter
	NotifyFailures  prometheus.Counter

	// notifier service
	InboxStoredVec  *prometheus.CounterVec
	InboxDuplicates prometheus.Counter
}

func NewRegistry() *Registry {
	r := prometheus.NewRegistry()
	created := prometheus.NewCounter(prometheus.CounterOpts{Name: "canteen_reservations_created_total"})
	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "canteen_reservation_transitions_total",
		Help: "Status change attempts by source, target and outcome.",
	}, []string{"from", "to", "outcome"})
	transitionSec := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "canteen_reservation_transition_seconds",
		Buckets: prometheus.DefBuckets,
	})
	charged := prometheus.NewCounter(prometheus.CounterOpts{Name: "canteen_wallet_charged_amount_total"})
	refunded := prometheus.NewCounter(prometheus.CounterOpts{Name: "canteen_wallet_refunded_amount_total"})
	inconsistencies := prometheus.NewCounter(prometheus.CounterOpts{Name: "canteen_reservation_inconsistencies_total"})
	notifyFailures := prometheus.NewCounter(prometheus.CounterOpts{Name: "canteen_notify_failures_total"})
	inboxStored := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "canteen_inbox_stored_total"}, []string{"type"})
	inboxDup := prometheus.NewCounter(prometheus.CounterOpts{Name: "canteen_inbox_duplicates_total"})

	r.MustRegister(created, transitions, transitionSec, charged, refunded, inconsistencies, notifyFailures, inboxStored, inboxDup)
	return &Registry{
		reg:             r,
		Created:         created,
		Transitions:     transitions,
		TransitionSec:   transitionSec,
		ChargedAmount:   charged,
		RefundedAmount:  refunded,
		Inconsistencies: inconsistencies,
		NotifyFailures:  notifyFailures,
		InboxStoredVec:  inboxStored,
		InboxDuplicates: inboxDup,
	}
}

func (r *Registry) Handler() http.Handler { return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{}) }

func (r *Registry) ReservationCreated() { r.Created.Inc() }

func (r *Registry) TransitionObserved(from, to, outcome string, took time.Duration) {
	r.Transitions.WithLabelValues(from, to, outcome).Inc()
	r.TransitionSec.Observe(took.Seconds())
}

func (r *Registry) Charged(amount decimal.Decimal)  { r.ChargedAmount.Add(amount.InexactFloat64()) }
func (r *Registry) Refunded(amount decimal.Decimal) { r.RefundedAmount.Add(amount.InexactFloat64()) }
func (r *Registry) Inconsistency()                  { r.Inconsistencies.Inc() }
func (r *Registry) NotifyFailed()                   { r.NotifyFailures.Inc() }

func (r *Registry) InboxStored(eventType string) { r.InboxStoredVec.WithLabelValues(eventType).Inc() }
func (r *Registry) InboxDuplicate()              { r.InboxDuplicates.Inc() }
