package docstore

import (
	"context"
	"errors"
	"strings"

	"github.com/ariefcatur/canteen-reservations/internal/menu"
	"github.com/ariefcatur/canteen-reservations/internal/reservation"
	"github.com/ariefcatur/canteen-reservations/internal/wallet"
	"github.com/shopspring/decimal"
)

type docTx struct{ t txn }

func (d *docTx) Reservations() reservation.Repository { return reservationDocs{d.t} }
func (d *docTx) Catalog() menu.Catalog                { return catalogDocs{d.t} }
func (d *docTx) Wallets() wallet.Store                { return walletDocs{d.t} }
func (d *docTx) Users() wallet.Directory              { return walletDocs{d.t} }

type reservationDocs struct{ t txn }

func (r reservationDocs) Get(_ context.Context, id string) (reservation.Reservation, error) {
	return getDoc[reservation.Reservation](r.t, prefixReservation+id, reservation.ErrNotFound)
}

func (r reservationDocs) Insert(_ context.Context, res reservation.Reservation) error {
	if _, err := r.t.get(prefixReservation + res.ID); err == nil {
		return errors.New("reservation already exists: " + res.ID)
	}
	return putDoc(r.t, prefixReservation+res.ID, res)
}

func (r reservationDocs) Update(_ context.Context, res reservation.Reservation) error {
	if _, err := r.t.get(prefixReservation + res.ID); errors.Is(err, errNoKey) {
		return reservation.ErrNotFound
	}
	return putDoc(r.t, prefixReservation+res.ID, res)
}

type catalogDocs struct{ t txn }

func (c catalogDocs) Find(_ context.Context, id string) (menu.Item, error) {
	return getDoc[menu.Item](c.t, prefixMenu+id, menu.ErrNotFound)
}

func (c catalogDocs) All(_ context.Context) ([]menu.Item, error) {
	return scanDocs[menu.Item](c.t, prefixMenu)
}

func (c catalogDocs) AdjustStock(ctx context.Context, id string, delta int) (menu.Item, error) {
	it, err := c.Find(ctx, id)
	if err != nil {
		return menu.Item{}, err
	}
	if !it.Tracked() {
		return it, nil
	}
	it.Stock = menu.Stock(*it.Stock + delta)
	return it, putDoc(c.t, prefixMenu+id, it)
}

type walletDocs struct{ t txn }

func txnKey(ref string, dir wallet.Direction) string {
	return prefixTxn + ref + "/" + string(dir)
}

func (w walletDocs) GetUser(_ context.Context, id string) (wallet.User, error) {
	return getDoc[wallet.User](w.t, prefixUser+id, wallet.ErrNotFound)
}

func (w walletDocs) FindByID(ctx context.Context, id string) (wallet.User, error) {
	return w.GetUser(ctx, id)
}

func (w walletDocs) SetBalance(ctx context.Context, userID string, balance decimal.Decimal) error {
	u, err := w.GetUser(ctx, userID)
	if err != nil {
		return err
	}
	u.Balance = balance
	return putDoc(w.t, prefixUser+userID, u)
}

func (w walletDocs) FindTransaction(_ context.Context, ref string, dir wallet.Direction) (wallet.Transaction, error) {
	return getDoc[wallet.Transaction](w.t, txnKey(ref, dir), wallet.ErrNotFound)
}

// InsertTransaction relies on the (ref, direction) key for uniqueness.
func (w walletDocs) InsertTransaction(_ context.Context, t wallet.Transaction) error {
	key := txnKey(t.Ref, t.Direction)
	if _, err := w.t.get(key); err == nil {
		return wallet.ErrDuplicateTransaction
	} else if !errors.Is(err, errNoKey) {
		return err
	}
	return putDoc(w.t, key, t)
}

func (w walletDocs) Search(_ context.Context, text string) ([]wallet.User, error) {
	text = strings.TrimSpace(text)
	all, err := scanDocs[wallet.User](w.t, prefixUser)
	if err != nil {
		return nil, err
	}
	var out []wallet.User
	for _, u := range all {
		if strings.EqualFold(u.ID, text) || strings.EqualFold(u.Name, text) || strings.EqualFold(u.Email, text) {
			out = append(out, u)
		}
	}
	return out, nil
}
