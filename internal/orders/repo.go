package orders

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/cafehub/go-coffee-pos/internal/inventory"
)

// PGStore is the pgx implementation of Store.
//
// Strict toggles the checkout guard: when set, Create locks the inventory
// rows of the requested products and rejects orders that exceed the
// available quantity, closing the oversell window between two concurrent
// checkouts. The default (soft) keeps availability advisory.
type PGStore struct {
	DB     *pgxpool.Pool
	Log    *zap.Logger
	Strict bool
}

var _ Store = (*PGStore)(nil)

func (s *PGStore) Create(ctx context.Context, req CreateOrder) (uuid.UUID, error) {
	tx, err := s.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return uuid.Nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if s.Strict {
		if err := s.guardStock(ctx, tx, req.Items); err != nil {
			return uuid.Nil, err
		}
	}

	id := uuid.New()
	now := time.Now().UTC()
	var clientReqID *string
	if req.ClientRequestID != "" {
		clientReqID = &req.ClientRequestID
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO orders (id, client_request_id, order_date, total_amount, status, updated_at)
		VALUES ($1, $2, $3, $4, $5, $3)`,
		id, clientReqID, now, req.TotalAmount, StatusPending)
	if err != nil {
		if isUniqueViolation(err) {
			return uuid.Nil, ErrDuplicateRequest
		}
		return uuid.Nil, fmt.Errorf("insert order: %w", err)
	}

	for _, it := range req.Items {
		if err := s.insertItem(ctx, tx, id, it); err != nil {
			return uuid.Nil, err
		}
	}

	// Advance the insert-time placeholder before commit so PENDING is never
	// externally observable.
	if _, err := tx.Exec(ctx, `
		UPDATE orders SET status = $2, updated_at = now() WHERE id = $1`,
		id, StatusReceived); err != nil {
		return uuid.Nil, fmt.Errorf("advance status: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return uuid.Nil, err
	}
	return id, nil
}

func (s *PGStore) insertItem(ctx context.Context, tx pgx.Tx, orderID uuid.UUID, it CreateItem) error {
	var catalogName string
	var catalogPrice decimal.Decimal
	err := tx.QueryRow(ctx,
		`SELECT name, price FROM products WHERE id = $1`, it.ProductID).
		Scan(&catalogName, &catalogPrice)
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("product not found: %d", it.ProductID)
	}
	if err != nil {
		return fmt.Errorf("resolve product %d: %w", it.ProductID, err)
	}

	// Caller-supplied snapshots win; the catalog fills the blanks.
	name := it.ProductName
	if name == "" {
		name = catalogName
	}
	base := catalogPrice
	if base.IsZero() {
		base = it.Price.Div(decimal.NewFromInt(int64(it.Quantity))).Round(2)
	}

	var itemID int64
	err = tx.QueryRow(ctx, `
		INSERT INTO order_items (order_id, product_id, product_name, quantity, base_price, item_total_price)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`,
		orderID, it.ProductID, name, it.Quantity, base, it.Price).Scan(&itemID)
	if err != nil {
		return fmt.Errorf("insert order item: %w", err)
	}

	for _, sel := range it.Options {
		if err := s.insertItemOption(ctx, tx, itemID, sel); err != nil {
			return err
		}
	}
	return nil
}

func (s *PGStore) insertItemOption(ctx context.Context, tx pgx.Tx, itemID int64, sel OptionSelection) error {
	name := sel.OptionName
	var price decimal.Decimal
	if sel.OptionPrice != nil {
		price = *sel.OptionPrice
	}

	if sel.OptionID != nil && (name == "" || sel.OptionPrice == nil) {
		var catName string
		var catPrice decimal.Decimal
		err := tx.QueryRow(ctx,
			`SELECT name, price FROM product_options WHERE id = $1`, *sel.OptionID).
			Scan(&catName, &catPrice)
		switch {
		case err == nil:
			if name == "" {
				name = catName
			}
			if sel.OptionPrice == nil {
				price = catPrice
			}
		case errors.Is(err, pgx.ErrNoRows):
			// fall through to the name check below
		default:
			return fmt.Errorf("resolve option %d: %w", *sel.OptionID, err)
		}
	}

	// options with no resolvable name are dropped, not failed
	if name == "" {
		s.Log.Warn("dropping order item option without a resolvable name",
			zap.Int64("order_item_id", itemID))
		return nil
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO order_item_options (order_item_id, option_id, option_name, option_price)
		VALUES ($1, $2, $3, $4)`,
		itemID, sel.OptionID, name, price); err != nil {
		return fmt.Errorf("insert item option: %w", err)
	}
	return nil
}

// guardStock locks inventory rows in product-id order (so concurrent strict
// checkouts cannot deadlock) and rejects the order when any requested
// quantity exceeds the available amount.
func (s *PGStore) guardStock(ctx context.Context, tx pgx.Tx, items []CreateItem) error {
	qtys := make([]ItemQty, 0, len(items))
	for _, it := range items {
		qtys = append(qtys, ItemQty{ProductID: it.ProductID, Qty: it.Quantity})
	}
	plan := DeductionPlan(qtys)

	ids := make([]int64, 0, len(plan))
	for pid := range plan {
		ids = append(ids, pid)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	for _, pid := range ids {
		var stock int
		err := tx.QueryRow(ctx,
			`SELECT stock FROM inventory WHERE product_id = $1 FOR UPDATE`, pid).Scan(&stock)
		if errors.Is(err, pgx.ErrNoRows) {
			stock = 0
		} else if err != nil {
			return fmt.Errorf("lock inventory %d: %w", pid, err)
		}

		var inFlight int
		if err := tx.QueryRow(ctx, `
			SELECT COALESCE(SUM(oi.quantity), 0)::int
			FROM order_items oi
			JOIN orders o ON o.id = oi.order_id
			WHERE oi.product_id = $1 AND o.status IN ('RECEIVED', 'IN_PROGRESS')`,
			pid).Scan(&inFlight); err != nil {
			return fmt.Errorf("in-flight quantity %d: %w", pid, err)
		}

		if plan[pid] > inventory.AvailableQty(stock, inFlight, 0) {
			return fmt.Errorf("%w: product %d", ErrInsufficientStock, pid)
		}
	}
	return nil
}

func (s *PGStore) ByClientRequestID(ctx context.Context, key string) (*Detail, error) {
	var id uuid.UUID
	err := s.DB.QueryRow(ctx,
		`SELECT id FROM orders WHERE client_request_id = $1`, key).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return s.Detail(ctx, id)
}

func (s *PGStore) Detail(ctx context.Context, id uuid.UUID) (*Detail, error) {
	var d Detail
	err := s.DB.QueryRow(ctx, `
		SELECT id, order_date, total_amount, status
		FROM orders WHERE id = $1`, id).
		Scan(&d.ID, &d.OrderDate, &d.TotalAmount, &d.Status)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	rows, err := s.DB.Query(ctx, `
		SELECT id, product_id, product_name, quantity, base_price, item_total_price
		FROM order_items WHERE order_id = $1 ORDER BY id`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	d.Items = make([]Item, 0)
	for rows.Next() {
		var it Item
		if err := rows.Scan(&it.ID, &it.ProductID, &it.ProductName, &it.Quantity, &it.BasePrice, &it.Price); err != nil {
			return nil, err
		}
		d.Items = append(d.Items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range d.Items {
		opts, err := s.itemOptions(ctx, d.Items[i].ID)
		if err != nil {
			return nil, err
		}
		d.Items[i].Options = opts
	}
	return &d, nil
}

func (s *PGStore) itemOptions(ctx context.Context, itemID int64) ([]ItemOption, error) {
	rows, err := s.DB.Query(ctx, `
		SELECT option_id, option_name, option_price
		FROM order_item_options WHERE order_item_id = $1 ORDER BY id`, itemID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]ItemOption, 0)
	for rows.Next() {
		var o ItemOption
		if err := rows.Scan(&o.OptionID, &o.OptionName, &o.OptionPrice); err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func (s *PGStore) List(ctx context.Context, f ListFilter) ([]Detail, error) {
	q := `SELECT id FROM orders WHERE 1=1`
	args := []any{}
	if f.Status != nil {
		args = append(args, *f.Status)
		q += fmt.Sprintf(` AND status = $%d`, len(args))
	}
	if f.ExcludeFulfilled {
		args = append(args, StatusFulfilled)
		q += fmt.Sprintf(` AND status != $%d`, len(args))
	}
	q += ` ORDER BY order_date DESC`

	rows, err := s.DB.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := make([]uuid.UUID, 0)
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]Detail, 0, len(ids))
	for _, id := range ids {
		d, err := s.Detail(ctx, id)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				continue
			}
			return nil, err
		}
		out = append(out, *d)
	}
	return out, nil
}

func (s *PGStore) Transition(ctx context.Context, id uuid.UUID, target Status) (Status, error) {
	tx, err := s.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return "", err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	// Locking the order row closes the race between two concurrent
	// transitions of the same order: the second caller sees the committed
	// status of the first and skips the deduction.
	var cur string
	err = tx.QueryRow(ctx,
		`SELECT status FROM orders WHERE id = $1 FOR UPDATE`, id).Scan(&cur)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	prior := Status(cur)

	if !CanTransition(prior, target) {
		return "", fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, prior, target)
	}

	if _, err := tx.Exec(ctx, `
		UPDATE orders SET status = $2, updated_at = now() WHERE id = $1`,
		id, target); err != nil {
		return "", fmt.Errorf("update status: %w", err)
	}

	if ShouldDeduct(prior, target) {
		if err := s.deductStock(ctx, tx, id); err != nil {
			return "", err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return "", err
	}
	return prior, nil
}

func (s *PGStore) deductStock(ctx context.Context, tx pgx.Tx, orderID uuid.UUID) error {
	rows, err := tx.Query(ctx,
		`SELECT product_id, quantity FROM order_items WHERE order_id = $1`, orderID)
	if err != nil {
		return err
	}
	items := make([]ItemQty, 0)
	for rows.Next() {
		var it ItemQty
		if err := rows.Scan(&it.ProductID, &it.Qty); err != nil {
			rows.Close()
			return err
		}
		items = append(items, it)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	plan := DeductionPlan(items)
	ids := make([]int64, 0, len(plan))
	for pid := range plan {
		ids = append(ids, pid)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	for _, pid := range ids {
		// stock floors at zero, never negative
		if _, err := tx.Exec(ctx, `
			UPDATE inventory
			SET stock = GREATEST(stock - $2, 0), updated_at = now()
			WHERE product_id = $1`, pid, plan[pid]); err != nil {
			return fmt.Errorf("deduct stock for product %d: %w", pid, err)
		}
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
