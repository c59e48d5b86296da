package redisx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

type StatusEntry struct {
	Status    string    `json:"status"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// StatusCache is a read-through cache of reservation status. The store
// remains the source of truth.
type StatusCache struct{ rdb *redis.Client }

func NewStatusCache(rdb *redis.Client) *StatusCache { return &StatusCache{rdb: rdb} }

func (c *StatusCache) Get(ctx context.Context, id string) (StatusEntry, bool, error) {
	var e StatusEntry
	s, err := c.rdb.Get(ctx, fmt.Sprintf(KeyReservationStatus, id)).Result()
	if errors.Is(err, redis.Nil) {
		return e, false, nil
	}
	if err != nil {
		return e, false, err
	}
	if err := json.Unmarshal([]byte(s), &e); err != nil {
		return e, false, err
	}
	return e, true, nil
}

func (c *StatusCache) Put(ctx context.Context, id string, e StatusEntry) error {
	b, err := json.Marshal(e)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, fmt.Sprintf(KeyReservationStatus, id), b, TTLStatusCache).Err()
}
