package menu

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

var ErrNotFound = errors.New("menu item not found")

// Item is a catalog entry. A nil or -1 Stock means the item is not
// stock-tracked.
type Item struct {
	ID       string          `json:"id"`
	Name     string          `json:"name"`
	Category string          `json:"category"`
	Price    decimal.Decimal `json:"price"`
	Stock    *int            `json:"stock,omitempty"`
}

func (it Item) Tracked() bool { return it.Stock != nil && *it.Stock >= 0 }

// Available returns the tracked stock, or -1 when untracked.
func (it Item) Available() int {
	if !it.Tracked() {
		return -1
	}
	return *it.Stock
}

func Stock(n int) *int { return &n }

// Catalog is the menu as seen from inside a store transaction.
type Catalog interface {
	Find(ctx context.Context, id string) (Item, error)
	All(ctx context.Context) ([]Item, error)
	// AdjustStock adds delta to a tracked item's stock and returns the updated item.
	// Untracked items are returned unchanged.
	AdjustStock(ctx context.Context, id string, delta int) (Item, error)
}

// Resolve looks an item up by exact id and falls back to the legacy suffix
// match: old clients sent ids with or without a category prefix
// ("drinks-07" vs "07"), so an id matches case-insensitively or when one is
// a "-" suffix of the other. The fallback only accepts a single candidate.
func Resolve(ctx context.Context, c Catalog, id string) (Item, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Item{}, fmt.Errorf("%w: empty id", ErrNotFound)
	}
	it, err := c.Find(ctx, id)
	if err == nil {
		return it, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return Item{}, err
	}

	all, err := c.All(ctx)
	if err != nil {
		return Item{}, err
	}
	want := strings.ToLower(id)
	var matches []Item
	for _, cand := range all {
		have := strings.ToLower(cand.ID)
		if have == want || strings.HasSuffix(have, "-"+want) || strings.HasSuffix(want, "-"+have) {
			matches = append(matches, cand)
		}
	}
	switch len(matches) {
	case 1:
		return matches[0], nil
	case 0:
		return Item{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	default:
		return Item{}, fmt.Errorf("%w: %s matches %d legacy ids", ErrNotFound, id, len(matches))
	}
}
