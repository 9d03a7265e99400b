package orders

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OptionSelection is one add-on chosen for a cart item. Callers may supply a
// catalog option id, an inline name+price pair, or a mix; blanks are resolved
// from the catalog inside the create transaction.
type OptionSelection struct {
	OptionID    *int64           `json:"optionId"`
	OptionName  string           `json:"optionName"`
	OptionPrice *decimal.Decimal `json:"optionPrice"`
}

// CreateItem is one product line of a checkout request. Price is the
// caller-computed line total: (base + selected option prices) * quantity.
type CreateItem struct {
	ProductID   int64             `json:"productId"`
	ProductName string            `json:"productName"`
	Quantity    int               `json:"quantity"`
	Price       decimal.Decimal   `json:"price"`
	Options     []OptionSelection `json:"options"`
}

type CreateOrder struct {
	ClientRequestID string          `json:"clientRequestId,omitempty"`
	Items           []CreateItem    `json:"items"`
	TotalAmount     decimal.Decimal `json:"totalAmount"`
}

// Validate rejects malformed requests before any write happens.
func (r CreateOrder) Validate() error {
	if len(r.Items) == 0 {
		return fmt.Errorf("%w: items are required", ErrInvalidRequest)
	}
	if !r.TotalAmount.IsPositive() {
		return fmt.Errorf("%w: totalAmount must be positive", ErrInvalidRequest)
	}
	for i, it := range r.Items {
		if it.ProductID <= 0 {
			return fmt.Errorf("%w: items[%d].productId is required", ErrInvalidRequest, i)
		}
		if it.Quantity < 1 {
			return fmt.Errorf("%w: items[%d].quantity must be at least 1", ErrInvalidRequest, i)
		}
	}
	return nil
}

// ItemOption is a persisted option snapshot. OptionID is nil when the option
// was supplied as free text without a catalog id.
type ItemOption struct {
	OptionID    *int64          `json:"optionId"`
	OptionName  string          `json:"optionName"`
	OptionPrice decimal.Decimal `json:"optionPrice"`
}

// Item is a persisted order line with name and price snapshots taken at
// order time, so later catalog edits never alter historical orders.
type Item struct {
	ID          int64           `json:"id"`
	ProductID   int64           `json:"productId"`
	ProductName string          `json:"productName"`
	Quantity    int             `json:"quantity"`
	BasePrice   decimal.Decimal `json:"basePrice"`
	Price       decimal.Decimal `json:"price"`
	Options     []ItemOption    `json:"options"`
}

// Detail is the fully hydrated order shape returned by every read path.
type Detail struct {
	ID          uuid.UUID       `json:"id"`
	OrderDate   time.Time       `json:"orderDate"`
	Status      Status          `json:"status"`
	TotalAmount decimal.Decimal `json:"totalAmount"`
	Items       []Item          `json:"items"`
}

type ListFilter struct {
	Status           *Status
	ExcludeFulfilled bool
}

// DeductionPlan sums quantities per product so orders holding several lines
// of the same product deduct stock once, with the combined quantity.
func DeductionPlan(items []ItemQty) map[int64]int {
	plan := make(map[int64]int, len(items))
	for _, it := range items {
		plan[it.ProductID] += it.Qty
	}
	return plan
}
