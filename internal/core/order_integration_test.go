package core_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"stock-ledger/internal/core"

	"golang.org/x/sync/errgroup"
)

func (s *services) mustCompany(t *testing.T, actor core.Actor, name string, typ core.CompanyType) *core.Company {
	t.Helper()
	c, err := s.companies.CreateCompany(context.Background(), actor, core.CreateCompanyInput{Name: name, Type: typ})
	if err != nil {
		t.Fatalf("CreateCompany(%s) failed: %v", name, err)
	}
	return c
}

func (s *services) mustOrder(t *testing.T, dir core.Direction, companyID int, lines ...core.OrderLineInput) *core.StockOrder {
	t.Helper()
	order, err := s.orders.CreateOrder(context.Background(), owner, core.CreateOrderInput{
		Direction: dir, CompanyID: companyID, Lines: lines,
	})
	if err != nil {
		t.Fatalf("CreateOrder failed: %v", err)
	}
	return order
}

func line(barcode string, qty int64, price string) core.OrderLineInput {
	return core.OrderLineInput{Barcode: barcode, Quantity: qty, Price: dec(price)}
}

func TestOrder_CreateComputesTotals(t *testing.T) {
	s := newServices(t)

	supplier := s.mustCompany(t, owner, "Acme Supply", core.CompanySupplier)
	s.mustRegister(t, owner, "4001", "Pen")
	s.mustRegister(t, owner, "4002", "Notebook")

	order := s.mustOrder(t, core.DirectionIn, supplier.ID, line("4001", 2, "3.50"), line("4002", 1, "10.00"))

	if order.Status != core.OrderDraft || order.Version != 1 {
		t.Errorf("status/version = %s/%d, want draft/1", order.Status, order.Version)
	}
	if !order.TotalAmount.Equal(dec("17.00")) {
		t.Errorf("total = %s, want 17.00", order.TotalAmount)
	}
	if len(order.Lines) != 2 || !order.Lines[0].Total.Equal(dec("7.00")) {
		t.Errorf("lines = %+v, want 2 lines with first total 7.00", order.Lines)
	}
	wantPrefix := "I" + time.Now().Format("20060102")
	if !strings.HasPrefix(order.OrderNo, wantPrefix) || len(order.OrderNo) != len(wantPrefix)+4 {
		t.Errorf("order number = %s, want %s####", order.OrderNo, wantPrefix)
	}
	if order.CompanyName != "Acme Supply" {
		t.Errorf("company name = %q, want Acme Supply", order.CompanyName)
	}

	// A draft never moves stock.
	if got := s.quantity(t, owner, "4001"); got != 0 {
		t.Errorf("draft changed quantity to %d", got)
	}
}

func TestOrder_CreateValidation(t *testing.T) {
	s := newServices(t)
	ctx := context.Background()
	customer := s.mustCompany(t, owner, "Bistro", core.CompanyCustomer)
	s.mustRegister(t, owner, "4101", "Cup")

	tests := []struct {
		name string
		in   core.CreateOrderInput
		want error
	}{
		{"no lines", core.CreateOrderInput{Direction: core.DirectionOut, CompanyID: customer.ID}, core.ErrValidation},
		{"bad direction", core.CreateOrderInput{Direction: "sideways", CompanyID: customer.ID, Lines: []core.OrderLineInput{line("4101", 1, "1")}}, core.ErrValidation},
		{"zero quantity", core.CreateOrderInput{Direction: core.DirectionOut, CompanyID: customer.ID, Lines: []core.OrderLineInput{line("4101", 0, "1")}}, core.ErrValidation},
		{"unknown company", core.CreateOrderInput{Direction: core.DirectionOut, CompanyID: 999, Lines: []core.OrderLineInput{line("4101", 1, "1")}}, core.ErrNotFound},
		{"unknown item", core.CreateOrderInput{Direction: core.DirectionOut, CompanyID: customer.ID, Lines: []core.OrderLineInput{line("missing", 1, "1")}}, core.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.orders.CreateOrder(ctx, owner, tt.in)
			if !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestOrder_ConfirmIsAllOrNothing(t *testing.T) {
	s := newServices(t)
	ctx := context.Background()

	customer := s.mustCompany(t, owner, "Corner Cafe", core.CompanyCustomer)
	a := s.mustRegister(t, owner, "4201", "Milk")
	b := s.mustRegister(t, owner, "4202", "Sugar")
	s.mustStockIn(t, owner, "4201", 5, "1.00")
	s.mustStockIn(t, owner, "4202", 1, "2.00")

	order := s.mustOrder(t, core.DirectionOut, customer.ID, line("4201", 3, "2.00"), line("4202", 2, "4.00"))

	_, err := s.orders.ConfirmOrder(ctx, owner, order.ID)
	if !errors.Is(err, core.ErrInsufficientStock) {
		t.Fatalf("expected InsufficientStock, got %v", err)
	}
	if got := s.quantity(t, owner, "4201"); got != 5 {
		t.Errorf("first line applied despite failure: quantity %d, want 5", got)
	}
	entries, err := s.ledger.Query(ctx, owner, core.TransactionFilter{OrderID: order.ID})
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if entries.Total != 0 {
		t.Errorf("failed confirmation left %d ledger entries", entries.Total)
	}
	reloaded, err := s.orders.GetOrder(ctx, owner, order.ID)
	if err != nil {
		t.Fatalf("GetOrder failed: %v", err)
	}
	if reloaded.Status != core.OrderDraft {
		t.Errorf("status = %s, want draft", reloaded.Status)
	}

	fixed, err := s.orders.UpdateOrder(ctx, owner, order.ID, core.UpdateOrderInput{
		Lines: []core.OrderLineInput{line("4201", 3, "2.00"), line("4202", 1, "4.00")},
	})
	if err != nil {
		t.Fatalf("UpdateOrder failed: %v", err)
	}
	if !fixed.TotalAmount.Equal(dec("10.00")) {
		t.Errorf("updated total = %s, want 10.00", fixed.TotalAmount)
	}

	confirmed, err := s.orders.ConfirmOrder(ctx, owner, order.ID)
	if err != nil {
		t.Fatalf("ConfirmOrder failed: %v", err)
	}
	if confirmed.Status != core.OrderConfirmed || confirmed.ConfirmedAt == nil {
		t.Errorf("status = %s, confirmed_at = %v", confirmed.Status, confirmed.ConfirmedAt)
	}
	if got := s.quantity(t, owner, "4201"); got != 2 {
		t.Errorf("milk quantity = %d, want 2", got)
	}
	if got := s.quantity(t, owner, "4202"); got != 0 {
		t.Errorf("sugar quantity = %d, want 0", got)
	}
	if got := s.ledgerQuantity(t, a.ID); got != 2 {
		t.Errorf("milk ledger quantity = %d, want 2", got)
	}
	if got := s.ledgerQuantity(t, b.ID); got != 0 {
		t.Errorf("sugar ledger quantity = %d, want 0", got)
	}

	entries, err = s.ledger.Query(ctx, owner, core.TransactionFilter{OrderID: order.ID})
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if entries.Total != 2 {
		t.Fatalf("ledger entries = %d, want 2", entries.Total)
	}
	for _, e := range entries.Items {
		if e.OrderNo == nil || *e.OrderNo != order.OrderNo {
			t.Errorf("entry %d order_no = %v, want %s", e.ID, e.OrderNo, order.OrderNo)
		}
		if e.CompanyID == nil || *e.CompanyID != customer.ID {
			t.Errorf("entry %d company = %v, want %d", e.ID, e.CompanyID, customer.ID)
		}
	}
}

func TestOrder_StateMachine(t *testing.T) {
	s := newServices(t)
	ctx := context.Background()

	supplier := s.mustCompany(t, owner, "Farm Co", core.CompanySupplier)
	s.mustRegister(t, owner, "4301", "Eggs")

	confirmed := s.mustOrder(t, core.DirectionIn, supplier.ID, line("4301", 12, "0.25"))
	if _, err := s.orders.ConfirmOrder(ctx, owner, confirmed.ID); err != nil {
		t.Fatalf("ConfirmOrder failed: %v", err)
	}
	if _, err := s.orders.ConfirmOrder(ctx, owner, confirmed.ID); !errors.Is(err, core.ErrInvalidState) {
		t.Errorf("confirm twice: expected InvalidState, got %v", err)
	}
	if _, err := s.orders.CancelOrder(ctx, owner, confirmed.ID); !errors.Is(err, core.ErrInvalidState) {
		t.Errorf("cancel confirmed: expected InvalidState, got %v", err)
	}
	if _, err := s.orders.UpdateOrder(ctx, owner, confirmed.ID, core.UpdateOrderInput{}); !errors.Is(err, core.ErrInvalidState) {
		t.Errorf("edit confirmed: expected InvalidState, got %v", err)
	}

	draft := s.mustOrder(t, core.DirectionIn, supplier.ID, line("4301", 6, "0.25"))
	cancelled, err := s.orders.CancelOrder(ctx, owner, draft.ID)
	if err != nil {
		t.Fatalf("CancelOrder failed: %v", err)
	}
	if cancelled.Status != core.OrderCancelled || cancelled.CancelledAt == nil {
		t.Errorf("status = %s, cancelled_at = %v", cancelled.Status, cancelled.CancelledAt)
	}
	if _, err := s.orders.ConfirmOrder(ctx, owner, draft.ID); !errors.Is(err, core.ErrInvalidState) {
		t.Errorf("confirm cancelled: expected InvalidState, got %v", err)
	}
	if got := s.quantity(t, owner, "4301"); got != 12 {
		t.Errorf("quantity = %d, want 12", got)
	}

	if _, err := s.orders.GetOrder(ctx, remote, draft.ID); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("other store: expected NotFound, got %v", err)
	}
}

func TestOrder_StaleVersionRejected(t *testing.T) {
	s := newServices(t)
	ctx := context.Background()

	supplier := s.mustCompany(t, owner, "Paper Mill", core.CompanySupplier)
	s.mustRegister(t, owner, "4401", "Paper")
	order := s.mustOrder(t, core.DirectionIn, supplier.ID, line("4401", 1, "5.00"))

	v := order.Version
	notes := "first edit"
	updated, err := s.orders.UpdateOrder(ctx, owner, order.ID, core.UpdateOrderInput{ExpectedVersion: &v, Notes: &notes})
	if err != nil {
		t.Fatalf("UpdateOrder failed: %v", err)
	}
	if updated.Version != v+1 || updated.Notes != notes {
		t.Errorf("version/notes = %d/%q, want %d/%q", updated.Version, updated.Notes, v+1, notes)
	}

	other := "second edit"
	_, err = s.orders.UpdateOrder(ctx, owner, order.ID, core.UpdateOrderInput{ExpectedVersion: &v, Notes: &other})
	if !errors.Is(err, core.ErrStaleVersion) {
		t.Fatalf("expected STALE_VERSION, got %v", err)
	}
	if core.KindOf(err) != core.KindConcurrencyConflict {
		t.Errorf("kind = %s, want %s", core.KindOf(err), core.KindConcurrencyConflict)
	}
}

func TestOrder_ConcurrentCreateAllocatesUniqueNumbers(t *testing.T) {
	s := newServices(t)
	ctx := context.Background()

	customer := s.mustCompany(t, owner, "Big Buyer", core.CompanyCustomer)
	s.mustRegister(t, owner, "4501", "Widget")

	const n = 20
	numbers := make([]string, n)
	var g errgroup.Group
	for i := 0; i < n; i++ {
		i := i
		g.Go(func() error {
			order, err := s.orders.CreateOrder(ctx, owner, core.CreateOrderInput{
				Direction: core.DirectionOut, CompanyID: customer.ID,
				Lines: []core.OrderLineInput{line("4501", 1, "1.00")},
			})
			if err != nil {
				return err
			}
			numbers[i] = order.OrderNo
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatalf("concurrent CreateOrder failed: %v", err)
	}

	seen := make(map[string]bool, n)
	for _, no := range numbers {
		if seen[no] {
			t.Errorf("order number %s allocated twice", no)
		}
		seen[no] = true
	}
}

func TestOrder_ConcurrentConfirmWithOpposingLineOrder(t *testing.T) {
	s := newServices(t)
	ctx := context.Background()

	supplier := s.mustCompany(t, owner, "Two Way", core.CompanySupplier)
	s.mustRegister(t, owner, "4601", "Left")
	s.mustRegister(t, owner, "4602", "Right")

	const pairs = 5
	var ids []int
	for i := 0; i < pairs; i++ {
		ab := s.mustOrder(t, core.DirectionIn, supplier.ID, line("4601", 1, "1.00"), line("4602", 1, "1.00"))
		ba := s.mustOrder(t, core.DirectionIn, supplier.ID, line("4602", 1, "1.00"), line("4601", 1, "1.00"))
		ids = append(ids, ab.ID, ba.ID)
	}

	var g errgroup.Group
	for _, id := range ids {
		id := id
		g.Go(func() error {
			_, err := s.orders.ConfirmOrder(ctx, owner, id)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatalf("concurrent ConfirmOrder failed: %v", err)
	}

	for _, barcode := range []string{"4601", "4602"} {
		if got := s.quantity(t, owner, barcode); got != 2*pairs {
			t.Errorf("%s quantity = %d, want %d", barcode, got, 2*pairs)
		}
	}
}
