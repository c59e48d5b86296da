package reservation

import (
	"sort"
	"time"

	"github.com/ariefcatur/canteen-reservations/internal/wallet"
	"github.com/shopspring/decimal"
)

// LineItem is the price snapshot taken at order time. It is never rewritten.
type LineItem struct {
	ItemID    string          `json:"itemId"`
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"unitPriceAtOrderTime"`
	Qty       int             `json:"qty"`
}

type Reservation struct {
	ID                  string          `json:"id"`
	UserID              string          `json:"userId,omitempty"`
	Student             string          `json:"student"`
	Grade               string          `json:"grade,omitempty"`
	Section             string          `json:"section,omitempty"`
	Slot                string          `json:"slot"`
	Note                string          `json:"note,omitempty"`
	Items               []LineItem      `json:"items"`
	Total               decimal.Decimal `json:"total"`
	Status              Status          `json:"status"`
	StockDeducted       bool            `json:"stockDeducted"`
	Charged             bool            `json:"charged"`
	ChargedAt           *time.Time      `json:"chargedAt,omitempty"`
	TransactionID       string          `json:"transactionId,omitempty"`
	RefundTransactionID string          `json:"refundTransactionId,omitempty"`
	RefundedAt          *time.Time      `json:"refundedAt,omitempty"`
	CreatedAt           time.Time       `json:"createdAt"`
	UpdatedAt           time.Time       `json:"updatedAt"`
}

// Ref is the ledger reference tying transactions to this reservation.
func (r Reservation) Ref() string { return r.ID }

// Total sums qty x snapshot price.
func Total(items []LineItem) decimal.Decimal {
	total := decimal.Zero
	for _, it := range items {
		total = total.Add(it.UnitPrice.Mul(decimal.NewFromInt(int64(it.Qty))))
	}
	return total
}

type ItemRequest struct {
	ItemID string `json:"itemId"`
	Qty    int    `json:"qty"`
}

type CreateInput struct {
	Items   []ItemRequest `json:"items"`
	Student string        `json:"student"`
	Grade   string        `json:"grade"`
	Section string        `json:"section"`
	Slot    string        `json:"slot"`
	Note    string        `json:"note"`
}

// Actor is whoever triggers an operation. UserID is empty for guests.
type Actor struct {
	UserID string
	Name   string
}

// Result of a transition. Backfilled marks an approval that adopted a debit
// written by an earlier attempt instead of charging again.
type Result struct {
	Reservation Reservation         `json:"reservation"`
	Transaction *wallet.Transaction `json:"transaction,omitempty"`
	Backfilled  bool                `json:"backfilled,omitempty"`
}

type demand struct {
	ItemID string
	Name   string
	Qty    int
}

// demandByItem merges duplicate lines and orders them by item id so row locks
// are always taken in the same order.
func demandByItem(items []LineItem) []demand {
	idx := map[string]int{}
	var out []demand
	for _, it := range items {
		if i, ok := idx[it.ItemID]; ok {
			out[i].Qty += it.Qty
			continue
		}
		idx[it.ItemID] = len(out)
		out = append(out, demand{ItemID: it.ItemID, Name: it.Name, Qty: it.Qty})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ItemID < out[j].ItemID })
	return out
}

// requestedIDs returns the distinct requested item ids in sorted order.
func requestedIDs(reqs []ItemRequest) []string {
	seen := make(map[string]bool, len(reqs))
	var out []string
	for _, r := range reqs {
		if !seen[r.ItemID] {
			seen[r.ItemID] = true
			out = append(out, r.ItemID)
		}
	}
	sort.Strings(out)
	return out
}

// SortNewestFirst orders by creation time, latest first.
func SortNewestFirst(rs []Reservation) {
	sort.SliceStable(rs, func(i, j int) bool { return rs[i].CreatedAt.After(rs[j].CreatedAt) })
}
