package reservation

import (
	"context"
	"errors"
	"fmt"

	"github.com/ariefcatur/canteen-reservations/internal/menu"
)

type StockDirection string

const (
	Deduct  StockDirection = "deduct"
	Restore StockDirection = "restore"
)

// StockProblem is a per-item issue found while adjusting stock.
type StockProblem struct {
	ItemID string `json:"itemId"`
	Reason string `json:"reason"`
}

func (p StockProblem) String() string { return p.ItemID + ": " + p.Reason }

// AdjustStock deducts or restores stock for every line of a reservation.
// Per-item problems are collected instead of aborting so the caller decides
// whether they are fatal; the returned error is reserved for store failures.
// Deductions are clamped at zero.
func AdjustStock(ctx context.Context, c menu.Catalog, items []LineItem, dir StockDirection) ([]StockProblem, error) {
	var problems []StockProblem
	for _, d := range demandByItem(items) {
		it, err := c.Find(ctx, d.ItemID)
		if errors.Is(err, menu.ErrNotFound) {
			problems = append(problems, StockProblem{ItemID: d.ItemID, Reason: "missing from catalog"})
			continue
		}
		if err != nil {
			return problems, err
		}
		if !it.Tracked() {
			continue
		}

		delta := d.Qty
		if dir == Deduct {
			delta = -d.Qty
			if have := it.Available(); have < d.Qty {
				problems = append(problems, StockProblem{
					ItemID: d.ItemID,
					Reason: fmt.Sprintf("stock %d below requested %d, clamped to zero", have, d.Qty),
				})
				delta = -have
			}
		}
		if delta == 0 {
			continue
		}
		if _, err := c.AdjustStock(ctx, d.ItemID, delta); err != nil {
			if errors.Is(err, menu.ErrNotFound) {
				problems = append(problems, StockProblem{ItemID: d.ItemID, Reason: "vanished during adjustment"})
				continue
			}
			return problems, err
		}
	}
	return problems, nil
}
