package wallet

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Ledger applies balance changes and appends the matching transaction.
// Existing transactions are never touched; corrections are new entries.
type Ledger struct {
	store Store
	now   func() time.Time
}

func NewLedger(store Store) *Ledger {
	return &Ledger{store: store, now: func() time.Time { return time.Now().UTC() }}
}

func (l *Ledger) Debit(ctx context.Context, userID string, amount decimal.Decimal, ref string) (Transaction, error) {
	return l.apply(ctx, userID, amount, ref, Debit)
}

func (l *Ledger) Credit(ctx context.Context, userID string, amount decimal.Decimal, ref string) (Transaction, error) {
	return l.apply(ctx, userID, amount, ref, Credit)
}

// FindByRef reports the transaction recorded for (ref, dir), if any.
func (l *Ledger) FindByRef(ctx context.Context, ref string, dir Direction) (Transaction, bool, error) {
	t, err := l.store.FindTransaction(ctx, ref, dir)
	if errors.Is(err, ErrNotFound) {
		return Transaction{}, false, nil
	}
	if err != nil {
		return Transaction{}, false, err
	}
	return t, true, nil
}

func (l *Ledger) apply(ctx context.Context, userID string, amount decimal.Decimal, ref string, dir Direction) (Transaction, error) {
	if !amount.IsPositive() {
		return Transaction{}, fmt.Errorf("%s %s: %w", dir, amount, ErrInvalidAmount)
	}
	if _, found, err := l.FindByRef(ctx, ref, dir); err != nil {
		return Transaction{}, err
	} else if found {
		return Transaction{}, fmt.Errorf("%s %s: %w", dir, ref, ErrDuplicateTransaction)
	}

	u, err := l.store.GetUser(ctx, userID)
	if err != nil {
		return Transaction{}, fmt.Errorf("load user %s: %w", userID, err)
	}

	next := u.Balance.Add(amount)
	if dir == Debit {
		if u.Balance.LessThan(amount) {
			return Transaction{}, &InsufficientBalanceError{UserID: userID, Balance: u.Balance, Required: amount}
		}
		next = u.Balance.Sub(amount)
	}
	if err := l.store.SetBalance(ctx, userID, next); err != nil {
		return Transaction{}, err
	}

	t := Transaction{
		ID:        uuid.NewString(),
		UserID:    userID,
		Direction: dir,
		Amount:    amount,
		Ref:       ref,
		Status:    StatusCompleted,
		CreatedAt: l.now(),
	}
	if err := l.store.InsertTransaction(ctx, t); err != nil {
		return Transaction{}, err
	}
	return t, nil
}
