package reservation

import (
	"context"
	"time"

	"github.com/ariefcatur/canteen-reservations/internal/menu"
	"github.com/ariefcatur/canteen-reservations/internal/wallet"
	"github.com/shopspring/decimal"
)

// Store is the persistence boundary of the engine.
type Store interface {
	// InTx runs fn as one isolated, atomic unit. Mutations of the same
	// reservation, wallet or menu item never interleave; any error from fn
	// discards every change made inside it.
	InTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error

	Get(ctx context.Context, id string) (Reservation, error)
	ListByUser(ctx context.Context, userID string) ([]Reservation, error)
	// List returns all reservations, or only those in status when it is set.
	List(ctx context.Context, status Status) ([]Reservation, error)
	RecordAudit(ctx context.Context, e AuditEntry) error
}

type Tx interface {
	Reservations() Repository
	Catalog() menu.Catalog
	Wallets() wallet.Store
	Users() wallet.Directory
}

type Repository interface {
	// Get loads and locks a reservation for the rest of the transaction.
	Get(ctx context.Context, id string) (Reservation, error)
	Insert(ctx context.Context, r Reservation) error
	Update(ctx context.Context, r Reservation) error
}

type AuditEntry struct {
	ID            string          `json:"id"`
	Kind          string          `json:"kind"`
	ReservationID string          `json:"reservationId"`
	UserID        string          `json:"userId,omitempty"`
	Amount        decimal.Decimal `json:"amount"`
	Detail        string          `json:"detail"`
	Problems      []StockProblem  `json:"problems,omitempty"`
	CreatedAt     time.Time       `json:"createdAt"`
}

const AuditInconsistency = "inconsistency"

// Metrics receives engine outcomes. See internal/metrics.
type Metrics interface {
	ReservationCreated()
	TransitionObserved(from, to, outcome string, took time.Duration)
	Charged(amount decimal.Decimal)
	Refunded(amount decimal.Decimal)
	Inconsistency()
	NotifyFailed()
}

type noopMetrics struct{}

func (noopMetrics) ReservationCreated()                                {}
func (noopMetrics) TransitionObserved(_, _, _ string, _ time.Duration) {}
func (noopMetrics) Charged(decimal.Decimal)                            {}
func (noopMetrics) Refunded(decimal.Decimal)                           {}
func (noopMetrics) Inconsistency()                                     {}
func (noopMetrics) NotifyFailed()                                      {}
