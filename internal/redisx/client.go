package redisx

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

func New(addr string) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})
}

const pendingMarker = "pending"

// Idempotency remembers which order a client's Idempotency-Key produced.
type Idempotency struct {
	RDB *redis.Client
	// PendingTTL bounds an unfinished claim; TTLIdempotencyPending when zero.
	PendingTTL time.Duration
}

// Claim reserves the key for a new request. When the key is already known,
// orderID is the order it produced, or empty while the first request is still running.
func (i *Idempotency) Claim(ctx context.Context, actor, key string) (orderID string, claimed bool, err error) {
	k := fmt.Sprintf(KeyIdemOrderCreate, actor, key)
	ok, err := i.RDB.SetNX(ctx, k, pendingMarker, i.pendingTTL()).Result()
	if err != nil {
		return "", false, err
	}
	if ok {
		return "", true, nil
	}
	v, err := i.RDB.Get(ctx, k).Result()
	if errors.Is(err, redis.Nil) {
		// expired between SETNX and GET; treat as in flight, the client retries
		return "", false, nil
	}
	if err != nil || v == pendingMarker {
		return "", false, err
	}
	return v, false, nil
}

func (i *Idempotency) pendingTTL() time.Duration {
	if i.PendingTTL > 0 {
		return i.PendingTTL
	}
	return TTLIdempotencyPending
}

// Complete records the order under the key for the full replay window.
func (i *Idempotency) Complete(ctx context.Context, actor, key, orderID string) error {
	return i.RDB.Set(ctx, fmt.Sprintf(KeyIdemOrderCreate, actor, key), orderID, TTLIdempotency).Err()
}

// Abandon releases a claim after a failed request so the client may retry.
func (i *Idempotency) Abandon(ctx context.Context, actor, key string) error {
	return i.RDB.Del(ctx, fmt.Sprintf(KeyIdemOrderCreate, actor, key)).Err()
}

// OrderCache holds rendered order views. Stock quantities are never cached.
type OrderCache struct{ RDB *redis.Client }

func (c *OrderCache) Get(ctx context.Context, orderID string) ([]byte, bool) {
	b, err := c.RDB.Get(ctx, fmt.Sprintf(KeyOrderView, orderID)).Bytes()
	if err != nil || len(b) == 0 {
		return nil, false
	}
	return b, true
}

func (c *OrderCache) Set(ctx context.Context, orderID string, body []byte) error {
	return c.RDB.Set(ctx, fmt.Sprintf(KeyOrderView, orderID), body, TTLOrderView).Err()
}

func (c *OrderCache) Invalidate(ctx context.Context, orderID string) error {
	return c.RDB.Del(ctx, fmt.Sprintf(KeyOrderView, orderID)).Err()
}

// ReorderQueue tracks products at or below their reorder level.
type ReorderQueue struct {
	RDB     *redis.Client
	Service string
}

// FirstDelivery reports whether eventID is seen for the first time.
func (q *ReorderQueue) FirstDelivery(ctx context.Context, eventID string) (bool, error) {
	return q.RDB.SetNX(ctx, fmt.Sprintf(KeyDedup, q.Service, eventID), "1", TTLDedup).Result()
}

func (q *ReorderQueue) Forget(ctx context.Context, eventID string) error {
	return q.RDB.Del(ctx, fmt.Sprintf(KeyDedup, q.Service, eventID)).Err()
}

func (q *ReorderQueue) Flag(ctx context.Context, productID string, quantity int) error {
	return q.RDB.ZAdd(ctx, KeyReorderQueue, redis.Z{Score: float64(quantity), Member: productID}).Err()
}

func (q *ReorderQueue) Clear(ctx context.Context, productID string) error {
	return q.RDB.ZRem(ctx, KeyReorderQueue, productID).Err()
}

// Lowest returns up to n product ids with the least stock first.
func (q *ReorderQueue) Lowest(ctx context.Context, n int64) ([]string, error) {
	return q.RDB.ZRange(ctx, KeyReorderQueue, 0, n-1).Result()
}
