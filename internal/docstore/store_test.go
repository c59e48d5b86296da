package docstore

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ariefcatur/canteen-reservations/internal/menu"
	"github.com/ariefcatur/canteen-reservations/internal/reservation"
	"github.com/ariefcatur/canteen-reservations/internal/wallet"
	"github.com/shopspring/decimal"
)

func stores(t *testing.T) map[string]*Store {
	t.Helper()
	pb, err := OpenPebble(t.TempDir())
	if err != nil {
		t.Fatalf("pebble open: %v", err)
	}
	t.Cleanup(func() { _ = pb.Close() })
	return map[string]*Store{"memory": NewMemory(), "pebble": pb}
}

func TestInTx_RollbackOnError(t *testing.T) {
	ctx := context.Background()
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			if err := s.PutMenuItem(ctx, menu.Item{ID: "a", Name: "Adobo", Price: decimal.NewFromInt(50), Stock: menu.Stock(3)}); err != nil {
				t.Fatalf("seed: %v", err)
			}
			boom := errors.New("boom")
			err := s.InTx(ctx, func(ctx context.Context, tx reservation.Tx) error {
				it, err := tx.Catalog().AdjustStock(ctx, "a", -2)
				if err != nil {
					return err
				}
				// read-your-writes inside the unit
				again, err := tx.Catalog().Find(ctx, "a")
				if err != nil {
					return err
				}
				if again.Available() != it.Available() || it.Available() != 1 {
					t.Errorf("expected stock 1 inside tx, got %d / %d", it.Available(), again.Available())
				}
				return boom
			})
			if !errors.Is(err, boom) {
				t.Fatalf("expected boom, got %v", err)
			}
			it, err := s.MenuItem(ctx, "a")
			if err != nil {
				t.Fatalf("menu item: %v", err)
			}
			if it.Available() != 3 {
				t.Fatalf("rollback failed, stock=%d", it.Available())
			}
		})
	}
}

func TestInTx_TransactionUniqueByRefDirection(t *testing.T) {
	ctx := context.Background()
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			tr := wallet.Transaction{ID: "t1", UserID: "u1", Direction: wallet.Debit, Amount: decimal.NewFromInt(5), Ref: "RSV-1"}
			err := s.InTx(ctx, func(ctx context.Context, tx reservation.Tx) error {
				if err := tx.Wallets().InsertTransaction(ctx, tr); err != nil {
					return err
				}
				tr.ID = "t2"
				if err := tx.Wallets().InsertTransaction(ctx, tr); !errors.Is(err, wallet.ErrDuplicateTransaction) {
					t.Errorf("expected duplicate error, got %v", err)
				}
				tr.ID = "t3"
				tr.Direction = wallet.Credit
				return tx.Wallets().InsertTransaction(ctx, tr)
			})
			if err != nil {
				t.Fatalf("tx: %v", err)
			}
			txs, err := s.Transactions(ctx)
			if err != nil {
				t.Fatalf("transactions: %v", err)
			}
			if len(txs) != 2 {
				t.Fatalf("expected 2 transactions, got %d", len(txs))
			}
		})
	}
}

func TestListFiltersAndOrders(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2026, 6, 1, 7, 0, 0, 0, time.UTC)
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			err := s.InTx(ctx, func(ctx context.Context, tx reservation.Tx) error {
				rs := []reservation.Reservation{
					{ID: "r1", UserID: "u1", Status: reservation.StatusPending, CreatedAt: base},
					{ID: "r2", UserID: "u2", Status: reservation.StatusApproved, CreatedAt: base.Add(time.Minute)},
					{ID: "r3", UserID: "u1", Status: reservation.StatusApproved, CreatedAt: base.Add(2 * time.Minute)},
				}
				for _, r := range rs {
					if err := tx.Reservations().Insert(ctx, r); err != nil {
						return err
					}
				}
				return nil
			})
			if err != nil {
				t.Fatalf("insert: %v", err)
			}

			mine, err := s.ListByUser(ctx, "u1")
			if err != nil {
				t.Fatalf("list by user: %v", err)
			}
			if len(mine) != 2 || mine[0].ID != "r3" {
				t.Fatalf("unexpected list for u1: %+v", mine)
			}
			approved, err := s.List(ctx, reservation.StatusApproved)
			if err != nil {
				t.Fatalf("list: %v", err)
			}
			if len(approved) != 2 {
				t.Fatalf("expected 2 approved, got %d", len(approved))
			}
			all, _ := s.List(ctx, "")
			if len(all) != 3 {
				t.Fatalf("expected 3, got %d", len(all))
			}
			if _, err := s.Get(ctx, "missing"); !errors.Is(err, reservation.ErrNotFound) {
				t.Fatalf("expected ErrNotFound, got %v", err)
			}
		})
	}
}

func TestSearchUsers(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()
	_ = s.Seed(ctx, Dataset{Users: []wallet.User{
		{ID: "u1", Name: "Juan Dela Cruz", Email: "juan@school.ph"},
		{ID: "u2", Name: "Maria Santos", Email: "maria@school.ph"},
	}})
	err := s.InTx(ctx, func(ctx context.Context, tx reservation.Tx) error {
		for _, q := range []string{"juan dela cruz", "JUAN@SCHOOL.PH", "U1"} {
			got, err := tx.Users().Search(ctx, q)
			if err != nil {
				return err
			}
			if len(got) != 1 || got[0].ID != "u1" {
				t.Errorf("search %q = %+v", q, got)
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("tx: %v", err)
	}
}

func TestPebble_PersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	s, err := OpenPebble(dir)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := s.PutUser(ctx, wallet.User{ID: "u1", Balance: decimal.NewFromInt(100)}); err != nil {
		t.Fatalf("put user: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	s, err = OpenPebble(dir)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	u, err := s.User(ctx, "u1")
	if err != nil {
		t.Fatalf("user: %v", err)
	}
	if !u.Balance.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("balance = %s", u.Balance)
	}
}

func TestPrefixEnd(t *testing.T) {
	if got := string(prefixEnd([]byte("menu/"))); got != "menu0" {
		t.Fatalf("prefixEnd = %q", got)
	}
	if prefixEnd([]byte{0xff}) != nil {
		t.Fatal("all-0xff prefix has no upper bound")
	}
}

func TestSeedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seed.json")
	seed := `{"menu":[{"id":"snacks-01","name":"Turon","price":"15.00","stock":4},{"id":"drinks-01","name":"Tea","price":"20"},
	                 {"id":"snacks-02","name":"Banana Cue","price":"20","stock":-1}],
	          "users":[{"id":"u1","name":"Ana","email":"ana@school.ph","balance":"250.50"}]}`
	if err := os.WriteFile(path, []byte(seed), 0o600); err != nil {
		t.Fatal(err)
	}

	s := NewMemory()
	ctx := context.Background()
	if err := s.SeedFile(ctx, path); err != nil {
		t.Fatalf("seed: %v", err)
	}
	it, err := s.MenuItem(ctx, "snacks-01")
	if err != nil || it.Available() != 4 {
		t.Fatalf("menu item: %+v %v", it, err)
	}
	tea, err := s.MenuItem(ctx, "drinks-01")
	if err != nil || tea.Tracked() {
		t.Fatalf("tea should be untracked: %+v %v", tea, err)
	}
	err = s.InTx(ctx, func(ctx context.Context, tx reservation.Tx) error {
		_, err := tx.Catalog().AdjustStock(ctx, "snacks-02", -1)
		return err
	})
	if err != nil {
		t.Fatalf("adjust: %v", err)
	}
	cue, err := s.MenuItem(ctx, "snacks-02")
	if err != nil || cue.Tracked() || cue.Stock == nil || *cue.Stock != -1 {
		t.Fatalf("stock -1 must stay untracked and unchanged: %+v %v", cue, err)
	}
	u, err := s.User(ctx, "u1")
	if err != nil || u.Balance.String() != "250.5" {
		t.Fatalf("user: %+v %v", u, err)
	}

	if _, err := ReadDataset(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Fatal("expected error for missing seed file")
	}
}
