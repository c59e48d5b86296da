package wallet

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

type Direction string

const (
	Debit  Direction = "debit"
	Credit Direction = "credit"
)

const StatusCompleted = "completed"

var (
	ErrNotFound             = errors.New("not found")
	ErrDuplicateTransaction = errors.New("transaction already exists for ref")
	ErrInvalidAmount        = errors.New("amount must be positive")
)

// User is the wallet holder.
type User struct {
	ID      string          `json:"id"`
	Name    string          `json:"name"`
	Email   string          `json:"email"`
	Balance decimal.Decimal `json:"balance"`
}

// Transaction is an immutable ledger entry. (Ref, Direction) is unique.
type Transaction struct {
	ID        string          `json:"id"`
	UserID    string          `json:"userId"`
	Direction Direction       `json:"direction"`
	Amount    decimal.Decimal `json:"amount"`
	Ref       string          `json:"ref"`
	Status    string          `json:"status"`
	CreatedAt time.Time       `json:"createdAt"`
}

type InsufficientBalanceError struct {
	UserID   string
	Balance  decimal.Decimal
	Required decimal.Decimal
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient balance for user %s: balance %s, required %s",
		e.UserID, e.Balance.StringFixed(2), e.Required.StringFixed(2))
}

// Store persists balances and transactions. Implementations are scoped to a
// single store transaction.
type Store interface {
	GetUser(ctx context.Context, id string) (User, error)
	SetBalance(ctx context.Context, userID string, balance decimal.Decimal) error
	// FindTransaction returns ErrNotFound when no entry exists for (ref, dir).
	FindTransaction(ctx context.Context, ref string, dir Direction) (Transaction, error)
	// InsertTransaction returns ErrDuplicateTransaction on a (ref, dir) conflict.
	InsertTransaction(ctx context.Context, t Transaction) error
}

// Directory looks users up for charge attribution.
type Directory interface {
	FindByID(ctx context.Context, id string) (User, error)
	// Search matches text case-insensitively against id, name and email.
	Search(ctx context.Context, text string) ([]User, error)
}
