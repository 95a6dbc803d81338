package redisx

import "time"

const (
	// Idempotency create order: idem:order:create:{actor}:{key} -> order_id | "pending"
	KeyIdemOrderCreate = "idem:order:create:%s:%s"

	// Cached GET /orders/{id} body: order_view:{order_id}
	KeyOrderView = "order_view:%s"

	// Dedup event processing: dedup:{service}:{event_id}
	KeyDedup = "dedup:%s:%s"

	// Sorted set of products needing reorder, score = quantity on hand.
	KeyReorderQueue = "reorder:queue"
)

var (
	TTLIdempotency = 24 * time.Hour
	TTLOrderView   = 5 * time.Minute
	TTLDedup       = 48 * time.Hour

	// Lifetime of a "pending" claim, so a crashed request does not lock the key for a day.
	TTLIdempotencyPending = 30 * time.Second
)
