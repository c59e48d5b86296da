package reservation

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ariefcatur/canteen-reservations/internal/wallet"
	"github.com/shopspring/decimal"
)

var ErrNotFound = errors.New("reservation not found")

type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

type NotFoundError struct {
	Kind string // reservation, menu item, user
	ID   string
}

func (e *NotFoundError) Error() string { return fmt.Sprintf("%s not found: %s", e.Kind, e.ID) }

type IllegalTransitionError struct {
	From    Status
	To      Status
	Allowed []Status
}

func (e *IllegalTransitionError) Error() string {
	allowed := make([]string, 0, len(e.Allowed))
	for _, s := range e.Allowed {
		allowed = append(allowed, string(s))
	}
	next := "none"
	if len(allowed) > 0 {
		next = strings.Join(allowed, ", ")
	}
	return fmt.Sprintf("cannot move reservation from %s to %s (allowed: %s)", e.From, e.To, next)
}

// AlreadyInStateError signals a repeated request, not a failed one.
type AlreadyInStateError struct {
	ID     string
	Status Status
}

func (e *AlreadyInStateError) Error() string {
	return fmt.Sprintf("reservation %s is already %s", e.ID, e.Status)
}

type InsufficientStockError struct {
	ItemID    string
	Name      string
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for %s (%s): requested %d, available %d",
		e.Name, e.ItemID, e.Requested, e.Available)
}

type InsufficientBalanceError = wallet.InsufficientBalanceError

type UnresolvedUserError struct {
	ReservationID string
	Reason        string
}

func (e *UnresolvedUserError) Error() string {
	return fmt.Sprintf("cannot attribute reservation %s to a wallet: %s", e.ReservationID, e.Reason)
}

// InternalInconsistencyError means a side effect would have been partially
// applied. The unit of work is rolled back and an audit entry is recorded.
type InternalInconsistencyError struct {
	ReservationID string
	UserID        string
	Amount        decimal.Decimal
	Problems      []StockProblem
}

func (e *InternalInconsistencyError) Error() string {
	ps := make([]string, 0, len(e.Problems))
	for _, p := range e.Problems {
		ps = append(ps, p.String())
	}
	return fmt.Sprintf("internal inconsistency approving %s (user %s, amount %s): %s",
		e.ReservationID, e.UserID, e.Amount.StringFixed(2), strings.Join(ps, "; "))
}

// IsBusiness reports whether err is an expected, caller-facing rule violation.
func IsBusiness(err error) bool {
	var (
		v  *ValidationError
		nf *NotFoundError
		it *IllegalTransitionError
		as *AlreadyInStateError
		is *InsufficientStockError
		ib *InsufficientBalanceError
		uu *UnresolvedUserError
	)
	return errors.As(err, &v) || errors.As(err, &nf) || errors.As(err, &it) || errors.As(err, &as) ||
		errors.As(err, &is) || errors.As(err, &ib) || errors.As(err, &uu)
}
