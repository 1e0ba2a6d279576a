package core

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus is the lifecycle state of a stock order:
//
//	draft → confirmed
//	draft → cancelled
//
// confirmed and cancelled are terminal.
type OrderStatus string

const (
	OrderDraft     OrderStatus = "draft"
	OrderConfirmed OrderStatus = "confirmed"
	OrderCancelled OrderStatus = "cancelled"
)

func (s OrderStatus) Valid() bool {
	switch s {
	case OrderDraft, OrderConfirmed, OrderCancelled:
		return true
	}
	return false
}

// StockOrder batches line items for one partner and one direction. Its lines
// take effect on stock and the ledger only when the order is confirmed.
type StockOrder struct {
	ID           int              `json:"id"`
	StoreID      int              `json:"store_id"`
	OrderNo      string           `json:"order_no"`
	Direction    Direction        `json:"direction"`
	CompanyID    int              `json:"company_id"`
	CompanyName  string           `json:"company_name"`
	OperatorID   int              `json:"operator_id"`
	OperatorName string           `json:"operator_name"`
	Status       OrderStatus      `json:"status"`
	TotalAmount  decimal.Decimal  `json:"total_amount"`
	Notes        string           `json:"notes"`
	Version      int              `json:"version"`
	CreatedAt    time.Time        `json:"created_at"`
	UpdatedAt    time.Time        `json:"updated_at"`
	ConfirmedAt  *time.Time       `json:"confirmed_at,omitempty"`
	CancelledAt  *time.Time       `json:"cancelled_at,omitempty"`
	Lines        []StockOrderLine `json:"lines,omitempty"`
}

// StockOrderLine is one item of a stock order. Total = Quantity × Price.
type StockOrderLine struct {
	ID       int             `json:"id"`
	OrderID  int             `json:"order_id"`
	ItemID   int             `json:"item_id"`
	Barcode  string          `json:"barcode"`
	ItemName string          `json:"item_name"`
	Unit     string          `json:"unit"`
	Quantity int64           `json:"quantity"`
	Price    decimal.Decimal `json:"price"`
	Total    decimal.Decimal `json:"total"`
	Notes    string          `json:"notes"`
}

// OrderLineInput is one requested line of an order.
type OrderLineInput struct {
	Barcode  string          `json:"barcode"`
	Quantity int64           `json:"quantity"`
	Price    decimal.Decimal `json:"price"`
	Notes    string          `json:"notes"`
}

// CreateOrderInput is a new draft stock order.
type CreateOrderInput struct {
	Direction Direction        `json:"direction"`
	CompanyID int              `json:"company_id"`
	Notes     string           `json:"notes"`
	Lines     []OrderLineInput `json:"lines"`
}

// UpdateOrderInput edits a draft order. Nil fields are left unchanged; a
// non-nil Lines replaces every line. When ExpectedVersion is set the update
// fails with STALE_VERSION unless it matches the stored version.
type UpdateOrderInput struct {
	ExpectedVersion *int             `json:"expected_version,omitempty"`
	CompanyID       *int             `json:"company_id,omitempty"`
	Notes           *string          `json:"notes,omitempty"`
	Lines           []OrderLineInput `json:"lines,omitempty"`
}

// OrderFilter narrows StockOrderService.ListOrders.
type OrderFilter struct {
	Search    string
	Direction Direction
	Status    OrderStatus
	Page      PageRequest
}

// lineTotals validates lines and returns each line total and the order total.
func lineTotals(lines []OrderLineInput) ([]decimal.Decimal, decimal.Decimal, error) {
	if len(lines) == 0 {
		return nil, decimal.Zero, validation("order must have at least one line")
	}
	totals := make([]decimal.Decimal, len(lines))
	sum := decimal.Zero
	for i, l := range lines {
		if l.Barcode == "" {
			return nil, decimal.Zero, validation("line %d: barcode is required", i+1)
		}
		if l.Quantity <= 0 {
			return nil, decimal.Zero, validation("line %d: quantity must be positive, got %d", i+1, l.Quantity)
		}
		if err := validatePrice(fmt.Sprintf("line %d price", i+1), l.Price); err != nil {
			return nil, decimal.Zero, err
		}
		total, err := lineTotal(fmt.Sprintf("line %d total", i+1), l.Quantity, l.Price)
		if err != nil {
			return nil, decimal.Zero, err
		}
		totals[i] = total
		sum = sum.Add(total)
	}
	if sum.GreaterThan(maxAmount) {
		return nil, decimal.Zero, validation("order total %s exceeds the maximum amount %s", sum, maxAmount)
	}
	return totals, sum, nil
}
