package redisx

import "time"

const (
	// Idempotent order creation: idem:order:create:{client_request_id} -> order_id
	KeyIdemOrderCreate = "idem:order:create:%s"

	// Order status mirror maintained by the notifier:
	// order:status:{order_id} -> {"status": "...", "updated_at": "..."}
	KeyOrderStatus = "order:status:%s"

	// Event dedup for consumers: dedup:{service}:{event_id}
	KeyDedup = "dedup:%s:%s"
)

var (
	TTLIdempotency = 24 * time.Hour
	TTLStatusCache = 24 * time.Hour
	TTLDedup       = 48 * time.Hour
)
