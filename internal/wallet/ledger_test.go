package wallet

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

type memStore struct {
	users map[string]User
	txs   map[string]Transaction
}

func newMemStore() *memStore {
	return &memStore{users: map[string]User{}, txs: map[string]Transaction{}}
}

func key(ref string, dir Direction) string { return ref + "#" + string(dir) }

func (m *memStore) GetUser(_ context.Context, id string) (User, error) {
	u, ok := m.users[id]
	if !ok {
		return User{}, ErrNotFound
	}
	return u, nil
}

func (m *memStore) SetBalance(_ context.Context, id string, b decimal.Decimal) error {
	u, ok := m.users[id]
	if !ok {
		return ErrNotFound
	}
	u.Balance = b
	m.users[id] = u
	return nil
}

func (m *memStore) FindTransaction(_ context.Context, ref string, dir Direction) (Transaction, error) {
	t, ok := m.txs[key(ref, dir)]
	if !ok {
		return Transaction{}, ErrNotFound
	}
	return t, nil
}

func (m *memStore) InsertTransaction(_ context.Context, t Transaction) error {
	if _, ok := m.txs[key(t.Ref, t.Direction)]; ok {
		return ErrDuplicateTransaction
	}
	m.txs[key(t.Ref, t.Direction)] = t
	return nil
}

func TestLedger_DebitCredit(t *testing.T) {
	ctx := context.Background()
	s := newMemStore()
	s.users["u1"] = User{ID: "u1", Balance: decimal.NewFromInt(100)}
	l := NewLedger(s)

	d, err := l.Debit(ctx, "u1", decimal.NewFromInt(100), "RSV-1")
	if err != nil {
		t.Fatalf("debit: %v", err)
	}
	if d.Direction != Debit || !d.Amount.Equal(decimal.NewFromInt(100)) || d.ID == "" {
		t.Fatalf("unexpected debit %+v", d)
	}
	if b := s.users["u1"].Balance; !b.IsZero() {
		t.Fatalf("expected balance 0, got %s", b)
	}

	if _, err := l.Credit(ctx, "u1", decimal.NewFromInt(100), "RSV-1"); err != nil {
		t.Fatalf("credit: %v", err)
	}
	if b := s.users["u1"].Balance; !b.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("expected balance 100, got %s", b)
	}
	if len(s.txs) != 2 {
		t.Fatalf("expected 2 transactions, got %d", len(s.txs))
	}
}

func TestLedger_DebitInsufficientBalance(t *testing.T) {
	ctx := context.Background()
	s := newMemStore()
	s.users["u1"] = User{ID: "u1", Balance: decimal.NewFromInt(10)}
	l := NewLedger(s)

	_, err := l.Debit(ctx, "u1", decimal.NewFromInt(100), "RSV-1")
	var ib *InsufficientBalanceError
	if !errors.As(err, &ib) {
		t.Fatalf("expected InsufficientBalanceError, got %v", err)
	}
	if !ib.Required.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("unexpected required amount %s", ib.Required)
	}
	if len(s.txs) != 0 || !s.users["u1"].Balance.Equal(decimal.NewFromInt(10)) {
		t.Fatal("failed debit must not change state")
	}
}

func TestLedger_DuplicateRef(t *testing.T) {
	ctx := context.Background()
	s := newMemStore()
	s.users["u1"] = User{ID: "u1", Balance: decimal.NewFromInt(500)}
	l := NewLedger(s)

	if _, err := l.Debit(ctx, "u1", decimal.NewFromInt(100), "RSV-1"); err != nil {
		t.Fatalf("debit: %v", err)
	}
	if _, err := l.Debit(ctx, "u1", decimal.NewFromInt(100), "RSV-1"); !errors.Is(err, ErrDuplicateTransaction) {
		t.Fatalf("expected ErrDuplicateTransaction, got %v", err)
	}
	if b := s.users["u1"].Balance; !b.Equal(decimal.NewFromInt(400)) {
		t.Fatalf("expected single charge, balance %s", b)
	}

	_, found, err := l.FindByRef(ctx, "RSV-1", Credit)
	if err != nil || found {
		t.Fatalf("expected no credit, found=%v err=%v", found, err)
	}
}

func TestLedger_RejectsNonPositive(t *testing.T) {
	l := NewLedger(newMemStore())
	if _, err := l.Credit(context.Background(), "u1", decimal.Zero, "RSV-1"); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
}
