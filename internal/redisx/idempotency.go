package redisx

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const claimMarker = "in-flight"

var ErrInFlight = errors.New("a request with this idempotency key is still in progress")

// Idempotency remembers which reservation an Idempotency-Key produced so a
// retried create returns the original instead of a duplicate.
type Idempotency struct{ rdb *redis.Client }

func NewIdempotency(rdb *redis.Client) *Idempotency { return &Idempotency{rdb: rdb} }

func idemKey(actor, key string) string {
	return fmt.Sprintf(KeyIdemReservationCreate, actor, key)
}

// Claim reserves key for the caller. When an earlier request already
// finished, its reservation id is returned with claimed=false.
func (i *Idempotency) Claim(ctx context.Context, actor, key string) (existing string, claimed bool, err error) {
	k := idemKey(actor, key)
	ok, err := i.rdb.SetNX(ctx, k, claimMarker, TTLClaim).Result()
	if err != nil {
		return "", false, err
	}
	if ok {
		return "", true, nil
	}
	v, err := i.rdb.Get(ctx, k).Result()
	if errors.Is(err, redis.Nil) {
		// expired between the two calls; let the caller retry
		return "", false, ErrInFlight
	}
	if err != nil {
		return "", false, err
	}
	if v == claimMarker {
		return "", false, ErrInFlight
	}
	return v, false, nil
}

func (i *Idempotency) Complete(ctx context.Context, actor, key, reservationID string) error {
	return i.rdb.Set(ctx, idemKey(actor, key), reservationID, TTLIdempotency).Err()
}

// Release drops a claim after a failed create so the client may retry.
func (i *Idempotency) Release(ctx context.Context, actor, key string) error {
	return i.rdb.Del(ctx, idemKey(actor, key)).Err()
}
