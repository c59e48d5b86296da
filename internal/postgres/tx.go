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
	"github.com/shopspring/decimal"
)

type pgTx struct{ tx pgx.Tx }

func (t *pgTx) Reservations() reservation.Repository { return reservationRepo{t.tx} }
func (t *pgTx) Catalog() menu.Catalog                { return catalogRepo{t.tx} }
func (t *pgTx) Wallets() wallet.Store                { return walletRepo{t.tx} }
func (t *pgTx) Users() wallet.Directory              { return walletRepo{t.tx} }

func parseDecimal(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse numeric %q: %w", s, err)
	}
	return d, nil
}

type reservationRepo struct{ tx pgx.Tx }

func (r reservationRepo) Get(ctx context.Context, id string) (reservation.Reservation, error) {
	res, err := scanReservation(r.tx.QueryRow(ctx, `SELECT `+reservationCols+` FROM reservations WHERE id=$1 FOR UPDATE`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return res, reservation.ErrNotFound
	}
	return res, err
}

func (r reservationRepo) Insert(ctx context.Context, res reservation.Reservation) error {
	items, err := json.Marshal(res.Items)
	if err != nil {
		return err
	}
	_, err = r.tx.Exec(ctx, `
		INSERT INTO reservations(id, user_id, student, grade, section, slot, note, items, total, status,
			stock_deducted, charged, charged_at, transaction_id, refund_transaction_id, refunded_at, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9::numeric,$10,$11,$12,$13,$14,$15,$16,$17,$18)`,
		res.ID, res.UserID, res.Student, res.Grade, res.Section, res.Slot, res.Note, items, res.Total.String(), string(res.Status),
		res.StockDeducted, res.Charged, res.ChargedAt, res.TransactionID, res.RefundTransactionID, res.RefundedAt,
		res.CreatedAt, res.UpdatedAt)
	return err
}

// Update rewrites the mutable columns. Items and total are fixed at creation.
func (r reservationRepo) Update(ctx context.Context, res reservation.Reservation) error {
	ct, err := r.tx.Exec(ctx, `
		UPDATE reservations SET user_id=$2, status=$3, stock_deducted=$4, charged=$5, charged_at=$6,
			transaction_id=$7, refund_transaction_id=$8, refunded_at=$9, updated_at=$10
		WHERE id=$1`,
		res.ID, res.UserID, string(res.Status), res.StockDeducted, res.Charged, res.ChargedAt,
		res.TransactionID, res.RefundTransactionID, res.RefundedAt, res.UpdatedAt)
	if err != nil {
		return err
	}
	if ct.RowsAffected() != 1 {
		return reservation.ErrNotFound
	}
	return nil
}

type catalogRepo struct{ tx pgx.Tx }

func scanItem(row pgx.Row) (menu.Item, error) {
	var (
		it    menu.Item
		price string
	)
	if err := row.Scan(&it.ID, &it.Name, &it.Category, &price, &it.Stock); err != nil {
		return it, err
	}
	var err error
	it.Price, err = parseDecimal(price)
	return it, err
}

// Find locks the row; stock decisions made afterwards hold until commit.
func (c catalogRepo) Find(ctx context.Context, id string) (menu.Item, error) {
	it, err := scanItem(c.tx.QueryRow(ctx, `SELECT id, name, category, price::text, stock FROM menu_items WHERE id=$1 FOR UPDATE`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return it, menu.ErrNotFound
	}
	return it, err
}

func (c catalogRepo) All(ctx context.Context) ([]menu.Item, error) {
	rows, err := c.tx.Query(ctx, `SELECT id, name, category, price::text, stock FROM menu_items ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []menu.Item
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

// AdjustStock leaves untracked stock (NULL or negative) untouched.
func (c catalogRepo) AdjustStock(ctx context.Context, id string, delta int) (menu.Item, error) {
	it, err := scanItem(c.tx.QueryRow(ctx, `
		UPDATE menu_items
		SET stock = CASE WHEN stock >= 0 THEN stock + $2 ELSE stock END, updated_at = now()
		WHERE id=$1
		RETURNING id, name, category, price::text, stock`, id, delta))
	if errors.Is(err, pgx.ErrNoRows) {
		return it, menu.ErrNotFound
	}
	return it, err
}

type walletRepo struct{ tx pgx.Tx }

func scanUser(row pgx.Row) (wallet.User, error) {
	var (
		u       wallet.User
		balance string
	)
	if err := row.Scan(&u.ID, &u.Name, &u.Email, &balance); err != nil {
		return u, err
	}
	var err error
	u.Balance, err = parseDecimal(balance)
	return u, err
}

func (w walletRepo) GetUser(ctx context.Context, id string) (wallet.User, error) {
	u, err := scanUser(w.tx.QueryRow(ctx, `SELECT id, name, email, balance::text FROM users WHERE id=$1 FOR UPDATE`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return u, wallet.ErrNotFound
	}
	return u, err
}

func (w walletRepo) FindByID(ctx context.Context, id string) (wallet.User, error) {
	u, err := scanUser(w.tx.QueryRow(ctx, `SELECT id, name, email, balance::text FROM users WHERE id=$1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return u, wallet.ErrNotFound
	}
	return u, err
}

func (w walletRepo) Search(ctx context.Context, text string) ([]wallet.User, error) {
	rows, err := w.tx.Query(ctx, `
		SELECT id, name, email, balance::text FROM users
		WHERE lower(id)=lower($1) OR lower(name)=lower($1) OR lower(email)=lower($1)
		ORDER BY id`, text)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []wallet.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func (w walletRepo) SetBalance(ctx context.Context, userID string, balance decimal.Decimal) error {
	ct, err := w.tx.Exec(ctx, `UPDATE users SET balance=$2::numeric, updated_at=now() WHERE id=$1`, userID, balance.String())
	if err != nil {
		return err
	}
	if ct.RowsAffected() != 1 {
		return wallet.ErrNotFound
	}
	return nil
}

func (w walletRepo) FindTransaction(ctx context.Context, ref string, dir wallet.Direction) (wallet.Transaction, error) {
	var (
		t         wallet.Transaction
		direction string
		amount    string
	)
	err := w.tx.QueryRow(ctx, `
		SELECT id, user_id, direction, amount::text, ref, status, created_at
		FROM wallet_transactions WHERE ref=$1 AND direction=$2`, ref, string(dir)).
		Scan(&t.ID, &t.UserID, &direction, &amount, &t.Ref, &t.Status, &t.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return t, wallet.ErrNotFound
	}
	if err != nil {
		return t, err
	}
	t.Direction = wallet.Direction(direction)
	t.Amount, err = parseDecimal(amount)
	return t, err
}

// InsertTransaction relies on UNIQUE (ref, direction) for idempotency.
func (w walletRepo) InsertTransaction(ctx context.Context, t wallet.Transaction) error {
	ct, err := w.tx.Exec(ctx, `
		INSERT INTO wallet_transactions(id, user_id, direction, amount, ref, status, created_at)
		VALUES ($1,$2,$3,$4::numeric,$5,$6,$7)
		ON CONFLICT (ref, direction) DO NOTHING`,
		t.ID, t.UserID, string(t.Direction), t.Amount.String(), t.Ref, t.Status, t.CreatedAt)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return wallet.ErrDuplicateTransaction
	}
	return nil
}
