package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/ariefcatur/canteen-reservations/internal/menu"
	"github.com/ariefcatur/canteen-reservations/internal/reservation"
	"github.com/ariefcatur/canteen-reservations/internal/wallet"
)

const (
	prefixReservation = "reservation/"
	prefixMenu        = "menu/"
	prefixUser        = "user/"
	prefixTxn         = "txn/"
	prefixAudit       = "audit/"
)

// Store keeps every entity as a JSON document in a key/value backend.
// Units of work run one at a time, which serializes all wallet and stock
// mutations.
type Store struct {
	mu      sync.Mutex
	backend backend
}

func NewMemory() *Store { return &Store{backend: newMemBackend()} }

func OpenPebble(dir string) (*Store, error) {
	b, err := openPebble(dir)
	if err != nil {
		return nil, err
	}
	return &Store{backend: b}, nil
}

func (s *Store) Close() error { return s.backend.close() }

func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context, tx reservation.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	t := s.backend.begin()
	defer t.discard()
	if err := fn(ctx, &docTx{t: t}); err != nil {
		return err
	}
	return t.commit()
}

// read runs fn against a throwaway view of committed data.
func (s *Store) read(fn func(t txn) error) error {
	t := s.backend.begin()
	defer t.discard()
	return fn(t)
}

func (s *Store) Get(_ context.Context, id string) (reservation.Reservation, error) {
	var r reservation.Reservation
	err := s.read(func(t txn) error {
		var err error
		r, err = getDoc[reservation.Reservation](t, prefixReservation+id, reservation.ErrNotFound)
		return err
	})
	return r, err
}

func (s *Store) ListByUser(_ context.Context, userID string) ([]reservation.Reservation, error) {
	return s.listWhere(func(r reservation.Reservation) bool { return r.UserID == userID })
}

func (s *Store) List(_ context.Context, status reservation.Status) ([]reservation.Reservation, error) {
	return s.listWhere(func(r reservation.Reservation) bool { return status == "" || r.Status == status })
}

func (s *Store) listWhere(keep func(reservation.Reservation) bool) ([]reservation.Reservation, error) {
	var out []reservation.Reservation
	err := s.read(func(t txn) error {
		all, err := scanDocs[reservation.Reservation](t, prefixReservation)
		if err != nil {
			return err
		}
		for _, r := range all {
			if keep(r) {
				out = append(out, r)
			}
		}
		return nil
	})
	reservation.SortNewestFirst(out)
	return out, err
}

func (s *Store) RecordAudit(ctx context.Context, e reservation.AuditEntry) error {
	return s.write(ctx, prefixAudit+e.ID, e)
}

func (s *Store) Audits(_ context.Context) ([]reservation.AuditEntry, error) {
	var out []reservation.AuditEntry
	err := s.read(func(t txn) error {
		var err error
		out, err = scanDocs[reservation.AuditEntry](t, prefixAudit)
		return err
	})
	return out, err
}

func (s *Store) write(ctx context.Context, key string, v any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	t := s.backend.begin()
	defer t.discard()
	if err := putDoc(t, key, v); err != nil {
		return err
	}
	return t.commit()
}

// Catalog and wallet management live outside the engine; these helpers are
// for seeding and inspection.

func (s *Store) PutMenuItem(ctx context.Context, it menu.Item) error {
	return s.write(ctx, prefixMenu+it.ID, it)
}

func (s *Store) PutUser(ctx context.Context, u wallet.User) error {
	return s.write(ctx, prefixUser+u.ID, u)
}

func (s *Store) MenuItem(_ context.Context, id string) (menu.Item, error) {
	var it menu.Item
	err := s.read(func(t txn) error {
		var err error
		it, err = getDoc[menu.Item](t, prefixMenu+id, menu.ErrNotFound)
		return err
	})
	return it, err
}

func (s *Store) User(_ context.Context, id string) (wallet.User, error) {
	var u wallet.User
	err := s.read(func(t txn) error {
		var err error
		u, err = getDoc[wallet.User](t, prefixUser+id, wallet.ErrNotFound)
		return err
	})
	return u, err
}

func (s *Store) Transactions(_ context.Context) ([]wallet.Transaction, error) {
	var out []wallet.Transaction
	err := s.read(func(t txn) error {
		var err error
		out, err = scanDocs[wallet.Transaction](t, prefixTxn)
		return err
	})
	return out, err
}

// Dataset is the seed file layout.
type Dataset struct {
	Menu  []menu.Item   `json:"menu"`
	Users []wallet.User `json:"users"`
}

func (s *Store) Seed(ctx context.Context, d Dataset) error {
	return s.InTx(ctx, func(ctx context.Context, tx reservation.Tx) error {
		t := tx.(*docTx).t
		for _, it := range d.Menu {
			if err := putDoc(t, prefixMenu+it.ID, it); err != nil {
				return err
			}
		}
		for _, u := range d.Users {
			if err := putDoc(t, prefixUser+u.ID, u); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Store) SeedFile(ctx context.Context, path string) error {
	d, err := ReadDataset(path)
	if err != nil {
		return err
	}
	return s.Seed(ctx, d)
}

// ReadDataset loads a JSON seed file. Other stores reuse the same layout.
func ReadDataset(path string) (Dataset, error) {
	var d Dataset
	b, err := os.ReadFile(path)
	if err != nil {
		return d, fmt.Errorf("read seed: %w", err)
	}
	if err := json.Unmarshal(b, &d); err != nil {
		return d, fmt.Errorf("decode seed: %w", err)
	}
	return d, nil
}

func getDoc[T any](t txn, key string, notFound error) (T, error) {
	var v T
	raw, err := t.get(key)
	if errors.Is(err, errNoKey) {
		return v, notFound
	}
	if err != nil {
		return v, err
	}
	if err := json.Unmarshal(raw, &v); err != nil {
		return v, fmt.Errorf("decode %s: %w", key, err)
	}
	return v, nil
}

func putDoc(t txn, key string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return t.set(key, b)
}

func scanDocs[T any](t txn, prefix string) ([]T, error) {
	var out []T
	err := t.scan(prefix, func(key string, val []byte) error {
		var v T
		if err := json.Unmarshal(val, &v); err != nil {
			return fmt.Errorf("decode %s: %w", key, err)
		}
		out = append(out, v)
		return nil
	})
	return out, err
}
