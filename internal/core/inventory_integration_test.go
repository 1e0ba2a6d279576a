package core_test

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync/atomic"
	"testing"

	"stock-ledger/internal/core"

	"golang.org/x/sync/errgroup"
)

func TestInventory_RegisterRejectsDuplicates(t *testing.T) {
	s := newServices(t)
	ctx := context.Background()

	item := s.mustRegister(t, owner, "3001", "Cola")
	if item.Quantity != 0 || !item.IsActive {
		t.Errorf("new item = %+v, want quantity 0 and active", item)
	}

	_, err := s.inventory.RegisterItem(ctx, owner, core.RegisterItemInput{Barcode: "3001", Name: "Other"})
	if !errors.Is(err, core.ErrDuplicateBarcode) {
		t.Errorf("duplicate barcode: expected DUPLICATE_BARCODE, got %v", err)
	}
	_, err = s.inventory.RegisterItem(ctx, owner, core.RegisterItemInput{Barcode: "3002", Name: "Cola"})
	if !errors.Is(err, core.ErrDuplicateName) {
		t.Errorf("duplicate name: expected DUPLICATE_NAME, got %v", err)
	}

	// Barcodes are unique per store only.
	s.mustRegister(t, remote, "3001", "Cola")
}

func TestInventory_StockInAndOut(t *testing.T) {
	s := newServices(t)
	ctx := context.Background()

	item := s.mustRegister(t, owner, "3101", "Soap")

	in := s.mustStockIn(t, owner, "3101", 10, "5.00")
	if in.Item.Quantity != 10 {
		t.Errorf("after stock in quantity = %d, want 10", in.Item.Quantity)
	}
	if !in.Transaction.Total.Equal(dec("50")) {
		t.Errorf("entry total = %s, want 50", in.Transaction.Total)
	}

	out := s.mustStockOut(t, owner, "3101", 4, "8.50")
	if out.Item.Quantity != 6 {
		t.Errorf("after stock out quantity = %d, want 6", out.Item.Quantity)
	}

	_, err := s.inventory.StockOut(ctx, owner, core.StockMovementInput{Barcode: "3101", Quantity: 7, Price: dec("8.50")})
	if !errors.Is(err, core.ErrInsufficientStock) {
		t.Fatalf("expected InsufficientStock, got %v", err)
	}
	if got := s.quantity(t, owner, "3101"); got != 6 {
		t.Errorf("quantity after rejected out = %d, want 6", got)
	}
	if got := s.ledgerQuantity(t, item.ID); got != 6 {
		t.Errorf("ledger quantity = %d, want 6", got)
	}
}

func TestInventory_RejectsInvalidMovements(t *testing.T) {
	s := newServices(t)
	ctx := context.Background()
	salt := s.mustRegister(t, owner, "3201", "Salt")

	tests := []struct {
		name string
		in   core.StockMovementInput
		want error
	}{
		{"zero quantity", core.StockMovementInput{Barcode: "3201", Quantity: 0, Price: dec("1")}, core.ErrValidation},
		{"negative price", core.StockMovementInput{Barcode: "3201", Quantity: 1, Price: dec("-1")}, core.ErrValidation},
		{"three decimals", core.StockMovementInput{Barcode: "3201", Quantity: 1, Price: dec("1.005")}, core.ErrValidation},
		{"unknown barcode", core.StockMovementInput{Barcode: "nope", Quantity: 1, Price: dec("1")}, core.ErrNotFound},
		{"price too large", core.StockMovementInput{Barcode: "3201", Quantity: 1, Price: dec("1000000000000")}, core.ErrValidation},
		{"total too large", core.StockMovementInput{Barcode: "3201", Quantity: 1_000_000_000_000, Price: dec("1")}, core.ErrValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.inventory.StockIn(ctx, owner, tt.in)
			if !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
	if got := s.ledgerQuantity(t, salt.ID); got != 0 {
		t.Errorf("rejected movements left %d units in the ledger", got)
	}
}

func TestInventory_QuantityCannotOverflow(t *testing.T) {
	s := newServices(t)
	ctx := context.Background()
	s.mustRegister(t, owner, "3211", "Sand")

	if _, err := s.inventory.StockIn(ctx, owner, core.StockMovementInput{Barcode: "3211", Quantity: math.MaxInt64, Price: dec("0")}); err != nil {
		t.Fatalf("StockIn up to the limit failed: %v", err)
	}
	_, err := s.inventory.StockIn(ctx, owner, core.StockMovementInput{Barcode: "3211", Quantity: 1, Price: dec("0")})
	if !errors.Is(err, core.ErrValidation) {
		t.Fatalf("expected ValidationError past the limit, got %v", err)
	}
	if got := s.quantity(t, owner, "3211"); got != math.MaxInt64 {
		t.Errorf("quantity = %d, want %d", got, int64(math.MaxInt64))
	}
}

func TestInventory_InactiveItemRejectsMovements(t *testing.T) {
	s := newServices(t)
	ctx := context.Background()

	s.mustRegister(t, owner, "3301", "Lamp")
	s.mustStockIn(t, owner, "3301", 2, "10.00")

	retired, err := s.inventory.Retire(ctx, owner, "3301")
	if err != nil {
		t.Fatalf("Retire failed: %v", err)
	}
	if retired.IsActive {
		t.Fatal("retired item still active")
	}

	_, err = s.inventory.StockIn(ctx, owner, core.StockMovementInput{Barcode: "3301", Quantity: 1, Price: dec("10")})
	if !errors.Is(err, core.ErrInactiveItem) {
		t.Errorf("expected InactiveItem, got %v", err)
	}

	if _, err := s.inventory.ToggleActive(ctx, owner, "3301"); err != nil {
		t.Fatalf("ToggleActive failed: %v", err)
	}
	s.mustStockOut(t, owner, "3301", 1, "12.00")
}

func TestInventory_PurgeRequiresConsent(t *testing.T) {
	s := newServices(t)
	ctx := context.Background()

	s.mustRegister(t, owner, "3401", "Broom")
	s.mustStockIn(t, owner, "3401", 3, "4.00")

	_, err := s.inventory.Purge(ctx, owner, "3401", false)
	if !errors.Is(err, core.ErrHasHistory) {
		t.Fatalf("expected HAS_HISTORY, got %v", err)
	}

	res, err := s.inventory.Purge(ctx, owner, "3401", true)
	if err != nil {
		t.Fatalf("Purge failed: %v", err)
	}
	if res.PurgedTransactions != 1 {
		t.Errorf("purged = %d, want 1", res.PurgedTransactions)
	}
	if _, err := s.inventory.GetItem(ctx, owner, "3401"); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("expected NotFound after purge, got %v", err)
	}

	logs, err := s.audit.List(ctx, owner, core.AuditFilter{OperationType: core.OpPurgeItem})
	if err != nil {
		t.Fatalf("audit List failed: %v", err)
	}
	if logs.Total != 1 {
		t.Errorf("purge audit records = %d, want 1", logs.Total)
	}
}

func TestInventory_ListItems(t *testing.T) {
	s := newServices(t)
	ctx := context.Background()

	s.mustRegister(t, owner, "3501", "Apple Juice")
	s.mustRegister(t, owner, "3502", "Orange Juice")
	s.mustRegister(t, owner, "3503", "Bread")
	s.mustStockIn(t, owner, "3501", 50, "1.00")

	page, err := s.inventory.ListItems(ctx, owner, core.ItemFilter{Search: "juice"})
	if err != nil {
		t.Fatalf("ListItems failed: %v", err)
	}
	if page.Total != 2 {
		t.Errorf("search total = %d, want 2", page.Total)
	}

	low, err := s.inventory.ListItems(ctx, owner, core.ItemFilter{LowStock: true})
	if err != nil {
		t.Fatalf("ListItems failed: %v", err)
	}
	if low.Total != 2 {
		t.Errorf("low stock total = %d, want 2", low.Total)
	}

	other, err := s.inventory.ListItems(ctx, remote, core.ItemFilter{})
	if err != nil {
		t.Fatalf("ListItems failed: %v", err)
	}
	if other.Total != 0 {
		t.Errorf("other store sees %d items, want 0", other.Total)
	}
}

func TestInventory_ConcurrentStockOutNeverOversells(t *testing.T) {
	s := newServices(t)
	ctx := context.Background()

	item := s.mustRegister(t, owner, "3601", "Limited Edition")
	s.mustStockIn(t, owner, "3601", 10, "20.00")

	const workers = 25
	var succeeded, rejected atomic.Int32
	var g errgroup.Group
	for i := 0; i < workers; i++ {
		g.Go(func() error {
			_, err := s.inventory.StockOut(ctx, owner, core.StockMovementInput{
				Barcode: "3601", Quantity: 1, Price: dec("30.00"),
			})
			switch {
			case err == nil:
				succeeded.Add(1)
			case errors.Is(err, core.ErrInsufficientStock):
				rejected.Add(1)
			default:
				return fmt.Errorf("unexpected error: %w", err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatal(err)
	}

	if succeeded.Load() != 10 || rejected.Load() != workers-10 {
		t.Errorf("succeeded/rejected = %d/%d, want 10/%d", succeeded.Load(), rejected.Load(), workers-10)
	}
	if got := s.quantity(t, owner, "3601"); got != 0 {
		t.Errorf("final quantity = %d, want 0", got)
	}
	if got := s.ledgerQuantity(t, item.ID); got != 0 {
		t.Errorf("ledger quantity = %d, want 0", got)
	}
}

func TestInventory_AdjustTxHoldsCallerTransaction(t *testing.T) {
	s := newServices(t)
	ctx := context.Background()

	s.mustRegister(t, owner, "3701", "Crate")
	s.mustStockIn(t, owner, "3701", 4, "3.00")

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		t.Fatalf("Begin failed: %v", err)
	}
	got, err := s.inventory.AdjustTx(ctx, tx, owner.StoreID, "3701", core.DirectionOut, 3)
	if err != nil {
		t.Fatalf("AdjustTx failed: %v", err)
	}
	if got != 1 {
		t.Errorf("new quantity = %d, want 1", got)
	}
	if _, err := s.inventory.AdjustTx(ctx, tx, owner.StoreID, "3701", core.DirectionOut, 2); !errors.Is(err, core.ErrInsufficientStock) {
		t.Errorf("expected InsufficientStock, got %v", err)
	}
	if err := tx.Rollback(ctx); err != nil {
		t.Fatalf("Rollback failed: %v", err)
	}

	// Rolled back with the caller's transaction.
	if got := s.quantity(t, owner, "3701"); got != 4 {
		t.Errorf("quantity after rollback = %d, want 4", got)
	}
}
