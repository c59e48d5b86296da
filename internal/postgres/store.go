package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ariefcatur/canteen-reservations/internal/menu"
	"github.com/ariefcatur/canteen-reservations/internal/reservation"
	"github.com/ariefcatur/canteen-reservations/internal/wallet"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Store is the Postgres implementation of reservation.Store. Isolation comes
// from row locks (SELECT ... FOR UPDATE) taken inside each unit of work.
type Store struct{ DB *pgxpool.Pool }

func NewStore(db *pgxpool.Pool) *Store { return &Store{DB: db} }

func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context, tx reservation.Tx) error) error {
	tx, err := s.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(ctx, &pgTx{tx: tx}); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

const reservationCols = `id, user_id, student, grade, section, slot, note, items, total::text, status,
	stock_deducted, charged, charged_at, transaction_id, refund_transaction_id, refunded_at, created_at, updated_at`

func (s *Store) Get(ctx context.Context, id string) (reservation.Reservation, error) {
	r, err := scanReservation(s.DB.QueryRow(ctx, `SELECT `+reservationCols+` FROM reservations WHERE id=$1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return r, reservation.ErrNotFound
	}
	return r, err
}

func (s *Store) ListByUser(ctx context.Context, userID string) ([]reservation.Reservation, error) {
	return s.query(ctx, `SELECT `+reservationCols+` FROM reservations WHERE user_id=$1 ORDER BY created_at DESC`, userID)
}

func (s *Store) List(ctx context.Context, status reservation.Status) ([]reservation.Reservation, error) {
	if status == "" {
		return s.query(ctx, `SELECT `+reservationCols+` FROM reservations ORDER BY created_at DESC`)
	}
	return s.query(ctx, `SELECT `+reservationCols+` FROM reservations WHERE status=$1 ORDER BY created_at DESC`, string(status))
}

func (s *Store) query(ctx context.Context, sql string, args ...any) ([]reservation.Reservation, error) {
	rows, err := s.DB.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []reservation.Reservation
	for rows.Next() {
		r, err := scanReservation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) RecordAudit(ctx context.Context, e reservation.AuditEntry) error {
	problems, err := json.Marshal(e.Problems)
	if err != nil {
		return err
	}
	_, err = s.DB.Exec(ctx, `
		INSERT INTO reservation_audit(id, kind, reservation_id, user_id, amount, detail, problems, created_at)
		VALUES ($1,$2,$3,$4,$5::numeric,$6,$7,$8)
		ON CONFLICT (id) DO NOTHING`,
		e.ID, e.Kind, e.ReservationID, e.UserID, e.Amount.String(), e.Detail, problems, e.CreatedAt)
	return err
}

// Seed upserts catalog items and users. Existing balances are left alone.
func (s *Store) Seed(ctx context.Context, items []menu.Item, users []wallet.User) error {
	tx, err := s.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for _, it := range items {
		if _, err := tx.Exec(ctx, `
			INSERT INTO menu_items(id, name, category, price, stock)
			VALUES ($1,$2,$3,$4::numeric,$5)
			ON CONFLICT (id) DO UPDATE SET name=EXCLUDED.name, category=EXCLUDED.category,
				price=EXCLUDED.price, stock=EXCLUDED.stock, updated_at=now()`,
			it.ID, it.Name, it.Category, it.Price.String(), it.Stock); err != nil {
			return fmt.Errorf("seed menu item %s: %w", it.ID, err)
		}
	}
	for _, u := range users {
		if _, err := tx.Exec(ctx, `
			INSERT INTO users(id, name, email, balance)
			VALUES ($1,$2,$3,$4::numeric)
			ON CONFLICT (id) DO UPDATE SET name=EXCLUDED.name, email=EXCLUDED.email, updated_at=now()`,
			u.ID, u.Name, u.Email, u.Balance.String()); err != nil {
			return fmt.Errorf("seed user %s: %w", u.ID, err)
		}
	}
	return tx.Commit(ctx)
}

func scanReservation(row pgx.Row) (reservation.Reservation, error) {
	var (
		r      reservation.Reservation
		items  []byte
		total  string
		status string
	)
	err := row.Scan(&r.ID, &r.UserID, &r.Student, &r.Grade, &r.Section, &r.Slot, &r.Note, &items, &total, &status,
		&r.StockDeducted, &r.Charged, &r.ChargedAt, &r.TransactionID, &r.RefundTransactionID, &r.RefundedAt,
		&r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return r, err
	}
	r.Status = reservation.Status(status)
	if r.Total, err = parseDecimal(total); err != nil {
		return r, err
	}
	if err := json.Unmarshal(items, &r.Items); err != nil {
		return r, fmt.Errorf("decode items of %s: %w", r.ID, err)
	}
	return r, nil
}
