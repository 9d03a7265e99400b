package orders

import (
	"context"

	"github.com/google/uuid"
)

// Store persists orders. Every write method runs as a single atomic
// transaction; no partial order or partial transition is ever visible.
type Store interface {
	// Create inserts the order with its items and option snapshots and
	// advances the insert-time placeholder status to RECEIVED before commit.
	Create(ctx context.Context, req CreateOrder) (uuid.UUID, error)
	// ByClientRequestID returns the order created for a replayed checkout,
	// or ErrNotFound.
	ByClientRequestID(ctx context.Context, key string) (*Detail, error)
	// Detail assembles the nested order -> items -> options structure, or
	// returns ErrNotFound.
	Detail(ctx context.Context, id uuid.UUID) (*Detail, error)
	List(ctx context.Context, f ListFilter) ([]Detail, error)
	// Transition moves the order to target and, exactly once per order,
	// deducts stock when the order reaches FULFILLED. Returns the prior
	// status.
	Transition(ctx context.Context, id uuid.UUID, target Status) (Status, error)
}
