package stats

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Summary is the dashboard roll-up. Purely derived from order state; safe
// to recompute on every poll.
type Summary struct {
	// TotalQuantity is the item quantity across all orders not yet fulfilled.
	TotalQuantity int `json:"totalQuantity"`
	// ReceivedCount / InProgressCount count orders per status.
	ReceivedCount   int `json:"receivedCount"`
	InProgressCount int `json:"inProgressCount"`
	// FulfilledQuantity / FulfilledOrderCount cover fulfilled orders.
	FulfilledQuantity   int `json:"fulfilledQuantity"`
	FulfilledOrderCount int `json:"fulfilledOrderCount"`
}

type Repo struct {
	DB *pgxpool.Pool
}

func (r *Repo) Summary(ctx context.Context) (*Summary, error) {
	var s Summary

	err := r.DB.QueryRow(ctx, `
		SELECT COALESCE(SUM(oi.quantity), 0)::int
		FROM orders o
		JOIN order_items oi ON o.id = oi.order_id
		WHERE o.status != 'FULFILLED'`).Scan(&s.TotalQuantity)
	if err != nil {
		return nil, err
	}

	err = r.DB.QueryRow(ctx,
		`SELECT COUNT(*) FROM orders WHERE status = 'RECEIVED'`).Scan(&s.ReceivedCount)
	if err != nil {
		return nil, err
	}

	err = r.DB.QueryRow(ctx,
		`SELECT COUNT(*) FROM orders WHERE status = 'IN_PROGRESS'`).Scan(&s.InProgressCount)
	if err != nil {
		return nil, err
	}

	err = r.DB.QueryRow(ctx, `
		SELECT COUNT(DISTINCT o.id), COALESCE(SUM(oi.quantity), 0)::int
		FROM orders o
		JOIN order_items oi ON o.id = oi.order_id
		WHERE o.status = 'FULFILLED'`).Scan(&s.FulfilledOrderCount, &s.FulfilledQuantity)
	if err != nil {
		return nil, err
	}

	return &s, nil
}
