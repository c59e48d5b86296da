package inbox

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ariefcatur/canteen-reservations/internal/redisx"
	"github.com/redis/go-redis/v9"
)

// RedisStore keeps each audience's inbox as a capped list, newest first.
type RedisStore struct {
	rdb     *redis.Client
	service string
	limit   int64
}

func NewRedisStore(rdb *redis.Client, service string, limit int64) *RedisStore {
	if limit <= 0 {
		limit = 100
	}
	return &RedisStore{rdb: rdb, service: service, limit: limit}
}

func (r *RedisStore) dedupKey(eventID string) string {
	return fmt.Sprintf(redisx.KeyDedup, r.service, eventID)
}

func (r *RedisStore) MarkSeen(ctx context.Context, eventID string) (bool, error) {
	return r.rdb.SetNX(ctx, r.dedupKey(eventID), "1", redisx.TTLDedup).Result()
}

func (r *RedisStore) Forget(ctx context.Context, eventID string) error {
	return r.rdb.Del(ctx, r.dedupKey(eventID)).Err()
}

func (r *RedisStore) Push(ctx context.Context, n Notification) error {
	b, err := json.Marshal(n)
	if err != nil {
		return err
	}
	key := fmt.Sprintf(redisx.KeyInbox, n.For)
	_, err = r.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.LPush(ctx, key, b)
		p.LTrim(ctx, key, 0, r.limit-1)
		p.Expire(ctx, key, redisx.TTLInbox)
		return nil
	})
	return err
}

func (r *RedisStore) Recent(ctx context.Context, audience string, limit int64) ([]Notification, error) {
	if limit <= 0 || limit > r.limit {
		limit = r.limit
	}
	raw, err := r.rdb.LRange(ctx, fmt.Sprintf(redisx.KeyInbox, audience), 0, limit-1).Result()
	if err != nil {
		return nil, err
	}
	out := make([]Notification, 0, len(raw))
	for _, s := range raw {
		var n Notification
		if err := json.Unmarshal([]byte(s), &n); err != nil {
			return nil, fmt.Errorf("decode inbox entry: %w", err)
		}
		out = append(out, n)
	}
	return out, nil
}
