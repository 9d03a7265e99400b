package inventory

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrNotFound = errors.New("inventory record not found")

// Record is one row of the inventory ledger, with the derived available
// quantity alongside physical stock.
type Record struct {
	ProductID   int64  `json:"productId"`
	ProductName string `json:"productName"`
	Stock       int    `json:"stock"`
	Available   int    `json:"available"`
}

type AdjustResult struct {
	ProductID   int64  `json:"productId"`
	ProductName string `json:"productName"`
	Stock       int    `json:"stock"`
}

type Repo struct {
	DB *pgxpool.Pool
}

const inFlightByProduct = `
	SELECT COALESCE(SUM(oi.quantity), 0)::int
	FROM order_items oi
	JOIN orders o ON o.id = oi.order_id
	WHERE oi.product_id = $1 AND o.status IN ('RECEIVED', 'IN_PROGRESS')`

// List returns the ledger joined with product names, each row carrying the
// available-to-order quantity next to physical stock.
func (r *Repo) List(ctx context.Context) ([]Record, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT i.product_id, p.name, i.stock, COALESCE(f.qty, 0)::int
		FROM inventory i
		JOIN products p ON p.id = i.product_id
		LEFT JOIN (
			SELECT oi.product_id, SUM(oi.quantity) AS qty
			FROM order_items oi
			JOIN orders o ON o.id = oi.order_id
			WHERE o.status IN ('RECEIVED', 'IN_PROGRESS')
			GROUP BY oi.product_id
		) f ON f.product_id = i.product_id
		ORDER BY i.product_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Record, 0)
	for rows.Next() {
		var rec Record
		var inFlight int
		if err := rows.Scan(&rec.ProductID, &rec.ProductName, &rec.Stock, &inFlight); err != nil {
			return nil, err
		}
		rec.Available = AvailableQty(rec.Stock, inFlight, 0)
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Available computes the orderable quantity for a single product.
func (r *Repo) Available(ctx context.Context, productID int64) (int, error) {
	var stock int
	err := r.DB.QueryRow(ctx,
		`SELECT stock FROM inventory WHERE product_id = $1`, productID).Scan(&stock)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, err
	}
	var inFlight int
	if err := r.DB.QueryRow(ctx, inFlightByProduct, productID).Scan(&inFlight); err != nil {
		return 0, err
	}
	return AvailableQty(stock, inFlight, 0), nil
}

// Adjust applies a signed stock change under a row lock, clamped at zero.
func (r *Repo) Adjust(ctx context.Context, productID int64, delta int) (*AdjustResult, error) {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var current int
	var name string
	err = tx.QueryRow(ctx, `
		SELECT i.stock, p.name
		FROM inventory i
		JOIN products p ON p.id = i.product_id
		WHERE i.product_id = $1
		FOR UPDATE OF i`, productID).Scan(&current, &name)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	newStock := ClampStock(current, delta)
	if _, err := tx.Exec(ctx, `
		UPDATE inventory SET stock = $2, updated_at = now()
		WHERE product_id = $1`, productID, newStock); err != nil {
		return nil, fmt.Errorf("adjust stock: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return &AdjustResult{ProductID: productID, ProductName: name, Stock: newStock}, nil
}
