package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	kafkax "github.com/cafehub/go-coffee-pos/internal/kafka"
	"github.com/cafehub/go-coffee-pos/internal/redisx"
)

// Publisher is the slice of the kafka producer the engine needs.
type Publisher interface {
	Publish(key, value []byte, headers ...kafkago.Header)
}

// Engine drives the order lifecycle: atomic creation, validated status
// transitions, and the one-time fulfillment stock deduction. Event
// publishing is fire-and-forget and never affects transaction outcome.
type Engine struct {
	Store   Store
	Redis   *redis.Client
	Created Publisher // order.created
	Changed Publisher // order.status.changed
	Log     *zap.Logger
	Service string
}

// Create persists a checkout as one atomic unit and returns the hydrated
// order. The second return value reports an idempotent replay: a request
// carrying an already-seen clientRequestId returns the existing order
// without writing anything.
func (e *Engine) Create(ctx context.Context, req CreateOrder) (*Detail, bool, error) {
	if err := req.Validate(); err != nil {
		return nil, false, err
	}

	if req.ClientRequestID != "" {
		// Redis fast path first; the unique constraint below stays
		// authoritative, so a stale or missing key only costs a DB lookup.
		if d, ok := e.replayFromCache(ctx, req.ClientRequestID); ok {
			return d, true, nil
		}
		d, err := e.Store.ByClientRequestID(ctx, req.ClientRequestID)
		if err == nil {
			return d, true, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return nil, false, err
		}
	}

	id, err := e.Store.Create(ctx, req)
	if err != nil {
		// Two concurrent submissions of the same checkout: the unique
		// constraint decides, the loser re-reads the winner's order.
		if errors.Is(err, ErrDuplicateRequest) && req.ClientRequestID != "" {
			if d, err2 := e.Store.ByClientRequestID(ctx, req.ClientRequestID); err2 == nil {
				return d, true, nil
			}
		}
		if errors.Is(err, ErrInsufficientStock) {
			return nil, false, err
		}
		return nil, false, fmt.Errorf("create order: %w", err)
	}

	d, err := e.Store.Detail(ctx, id)
	if err != nil {
		return nil, false, fmt.Errorf("read back order %s: %w", id, err)
	}

	if e.Redis != nil && req.ClientRequestID != "" {
		key := fmt.Sprintf(redisx.KeyIdemOrderCreate, req.ClientRequestID)
		if err := e.Redis.Set(ctx, key, id.String(), redisx.TTLIdempotency).Err(); err != nil {
			e.Log.Warn("idempotency key not cached", zap.Error(err))
		}
	}

	e.publishCreated(d, req.ClientRequestID)
	return d, false, nil
}

// replayFromCache resolves a clientRequestId through the idempotency key.
// Any miss, parse failure or dangling id falls back to the DB lookup.
func (e *Engine) replayFromCache(ctx context.Context, clientReqID string) (*Detail, bool) {
	if e.Redis == nil {
		return nil, false
	}
	v, err := e.Redis.Get(ctx, fmt.Sprintf(redisx.KeyIdemOrderCreate, clientReqID)).Result()
	if err != nil {
		return nil, false
	}
	id, err := uuid.Parse(v)
	if err != nil {
		return nil, false
	}
	d, err := e.Store.Detail(ctx, id)
	if err != nil {
		return nil, false
	}
	return d, true
}

// Transition validates the target against the closed status set and the
// transition table, then applies it atomically.
func (e *Engine) Transition(ctx context.Context, id uuid.UUID, raw string) (*Detail, error) {
	target, ok := ParseStatus(raw)
	if !ok || target == StatusPending {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, raw)
	}

	prior, err := e.Store.Transition(ctx, id, target)
	if err != nil {
		return nil, err
	}

	d, err := e.Store.Detail(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("read back order %s: %w", id, err)
	}

	e.publishStatusChanged(d, prior)
	return d, nil
}

func (e *Engine) Get(ctx context.Context, id uuid.UUID) (*Detail, error) {
	return e.Store.Detail(ctx, id)
}

func (e *Engine) List(ctx context.Context, f ListFilter) ([]Detail, error) {
	return e.Store.List(ctx, f)
}

func (e *Engine) publishCreated(d *Detail, clientReqID string) {
	if e.Created == nil {
		return
	}
	items := make([]ItemQty, 0, len(d.Items))
	for _, it := range d.Items {
		items = append(items, ItemQty{ProductID: it.ProductID, Qty: it.Quantity})
	}
	e.publish(e.Created, EventOrderCreated, d.ID, OrderCreatedPayload{
		OrderID:         d.ID.String(),
		ClientRequestID: clientReqID,
		TotalAmount:     d.TotalAmount,
		Items:           items,
	})
}

func (e *Engine) publishStatusChanged(d *Detail, prior Status) {
	if e.Changed == nil {
		return
	}
	e.publish(e.Changed, EventOrderStatusChanged, d.ID, OrderStatusChangedPayload{
		OrderID: d.ID.String(),
		From:    prior,
		To:      d.Status,
	})
}

func (e *Engine) publish(p Publisher, eventType string, orderID uuid.UUID, payload any) {
	ev := Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      e.Service,
		CorrelationID: orderID.String(),
		Payload:       kafkax.MustMarshal(payload),
	}
	p.Publish(PartitionKey(orderID.String()), kafkax.MustMarshal(ev),
		kafkago.Header{Key: "x-event-type", Value: []byte(eventType)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
}
