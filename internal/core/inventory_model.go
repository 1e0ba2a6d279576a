package core

import (
	"time"

	"github.com/shopspring/decimal"
)

// Item is a stocked article identified by barcode within a store.
type Item struct {
	ID               int       `json:"id"`
	StoreID          int       `json:"store_id"`
	Barcode          string    `json:"barcode"`
	Name             string    `json:"name"`
	Unit             string    `json:"unit"`
	Quantity         int64     `json:"quantity"`
	WarningThreshold int64     `json:"warning_threshold"`
	IsActive         bool      `json:"is_active"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// IsLowStock reports whether quantity has reached the warning threshold.
func (i Item) IsLowStock() bool {
	return i.Quantity <= i.WarningThreshold
}

// RegisterItemInput holds the attributes of a new item. Items start at quantity 0;
// stock arrives only through ledger-appending operations.
type RegisterItemInput struct {
	Barcode          string `json:"barcode"`
	Name             string `json:"name"`
	Unit             string `json:"unit"`
	WarningThreshold int64  `json:"warning_threshold"`
}

// UpdateItemInput holds the editable attributes of an item. Nil fields are left unchanged.
type UpdateItemInput struct {
	Name             *string `json:"name,omitempty"`
	Unit             *string `json:"unit,omitempty"`
	WarningThreshold *int64  `json:"warning_threshold,omitempty"`
}

// ItemFilter narrows InventoryService.ListItems.
type ItemFilter struct {
	Search   string
	Active   *bool
	LowStock bool
	Page     PageRequest
}

// StockMovementInput is a direct stock-in or stock-out request.
type StockMovementInput struct {
	Barcode   string          `json:"barcode"`
	Quantity  int64           `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
	CompanyID *int            `json:"company_id,omitempty"`
	Notes     string          `json:"notes"`
}

// StockMovementResult is the item state and ledger entry produced by a direct movement.
type StockMovementResult struct {
	Item        Item        `json:"item"`
	Transaction Transaction `json:"transaction"`
}

// PurgeResult describes an irreversible item purge.
type PurgeResult struct {
	Item               Item `json:"item"`
	PurgedTransactions int  `json:"purged_transactions"`
}
