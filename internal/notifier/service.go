package notifier

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	kafkax "github.com/cafehub/go-coffee-pos/internal/kafka"
	"github.com/cafehub/go-coffee-pos/internal/orders"
	"github.com/cafehub/go-coffee-pos/internal/redisx"
)

// Service mirrors order lifecycle events into Redis so status reads on hot
// dashboard paths never hit Postgres. Events may be redelivered; the
// event-id dedup key makes processing idempotent.
type Service struct {
	Redis       *redis.Client
	Log         *zap.Logger
	ServiceName string
}

// HandleOrderEvent is installed as the consumer handler for both order
// topics.
func (s *Service) HandleOrderEvent(ctx context.Context, m kafkago.Message) error {
	var env orders.Envelope
	if err := json.Unmarshal(m.Value, &env); err != nil {
		return err
	}

	dkey := fmt.Sprintf(redisx.KeyDedup, s.ServiceName, env.EventID)
	if exists, _ := redisx.Exists(ctx, s.Redis, dkey); exists {
		return nil
	}

	var orderID string
	var target orders.Status
	switch env.EventType {
	case orders.EventOrderCreated:
		p, err := kafkax.UnwrapPayload[orders.OrderCreatedPayload](env.Payload)
		if err != nil {
			return err
		}
		s.Log.Info("order created",
			zap.String("order_id", p.OrderID),
			zap.Int("items", len(p.Items)))
		orderID, target = p.OrderID, orders.StatusReceived
	case orders.EventOrderStatusChanged:
		p, err := kafkax.UnwrapPayload[orders.OrderStatusChangedPayload](env.Payload)
		if err != nil {
			return err
		}
		s.Log.Info("order status changed",
			zap.String("order_id", p.OrderID),
			zap.String("from", string(p.From)),
			zap.String("to", string(p.To)))
		orderID, target = p.OrderID, p.To
	default:
		return nil // ignore
	}

	if err := s.cacheStatus(ctx, orderID, target, env.OccurredAt); err != nil {
		return err
	}
	// mark processed only after the cache write, so a failed write is
	// retried on redelivery instead of silently skipped
	_ = s.Redis.Set(ctx, dkey, "1", redisx.TTLDedup).Err()
	return nil
}

func (s *Service) cacheStatus(ctx context.Context, orderID string, st orders.Status, at time.Time) error {
	key := fmt.Sprintf(redisx.KeyOrderStatus, orderID)
	b := kafkax.MustMarshal(map[string]any{"status": st, "updated_at": at})
	return s.Redis.Set(ctx, key, b, redisx.TTLStatusCache).Err()
}
