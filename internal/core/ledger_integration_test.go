package core_test

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"stock-ledger/internal/core"
	"stock-ledger/internal/db"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

var (
	owner  = core.Actor{StoreID: 1, OperatorID: 1, IsOwner: true}
	clerk  = core.Actor{StoreID: 1, OperatorID: 3}
	remote = core.Actor{StoreID: 2, OperatorID: 2, IsOwner: true}
)

func setupTestDB(t *testing.T) *pgxpool.Pool {
	_ = godotenv.Load("../../.env")

	// Use a dedicated TEST database; every test truncates all tables.
	dbURL := os.Getenv("TEST_DATABASE_URL")
	if dbURL == "" {
		t.Skip("TEST_DATABASE_URL not set, skipping integration test")
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}
	if err := db.ApplySchema(ctx, pool); err != nil {
		t.Fatalf("Failed to apply schema: %v", err)
	}

	_, err = pool.Exec(ctx, `
		TRUNCATE TABLE operation_logs, other_transactions, payments, transactions, stock_order_lines,
			stock_orders, order_sequences, companies, items, users, stores RESTART IDENTITY CASCADE;

		INSERT INTO stores (id, name) VALUES (1, 'Main Store'), (2, 'Second Store');

		INSERT INTO users (id, store_id, name, is_owner) VALUES
		(1, 1, 'Alice', true),
		(2, 2, 'Bob', true),
		(3, 1, 'Carol', false);

		SELECT setval(pg_get_serial_sequence('stores', 'id'), 2);
		SELECT setval(pg_get_serial_sequence('users', 'id'), 3);
	`)
	if err != nil {
		t.Fatalf("Failed to seed test database: %v", err)
	}
	return pool
}

type services struct {
	pool      *pgxpool.Pool
	ledger    *core.Ledger
	audit     *core.AuditLog
	inventory core.InventoryService
	orders    core.StockOrderService
	companies core.CompanyService
	balances  core.BalanceService
	reports   core.ReportingService
	finance   core.FinanceService
}

func newServices(t *testing.T) *services {
	pool := setupTestDB(t)
	t.Cleanup(pool.Close)

	runner := core.NewTxRunner(pool, nil, core.RunnerConfig{
		MaxAttempts: 5,
		Backoff:     10 * time.Millisecond,
		LockTimeout: 5 * time.Second,
	})
	audit := core.NewAuditLog(runner)
	ledger := core.NewLedger(runner, audit, nil)
	return &services{
		pool:      pool,
		ledger:    ledger,
		audit:     audit,
		inventory: core.NewInventoryService(runner, ledger, audit, nil),
		orders:    core.NewStockOrderService(runner, ledger, audit, nil),
		companies: core.NewCompanyService(runner, audit),
		balances:  core.NewBalanceService(runner),
		reports:   core.NewReportingService(runner),
		finance:   core.NewFinanceService(runner, audit),
	}
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func (s *services) mustRegister(t *testing.T, actor core.Actor, barcode, name string) *core.Item {
	t.Helper()
	item, err := s.inventory.RegisterItem(context.Background(), actor, core.RegisterItemInput{
		Barcode: barcode, Name: name, Unit: "pcs", WarningThreshold: 2,
	})
	if err != nil {
		t.Fatalf("RegisterItem(%s) failed: %v", barcode, err)
	}
	return item
}

func (s *services) mustStockIn(t *testing.T, actor core.Actor, barcode string, qty int64, price string) *core.StockMovementResult {
	t.Helper()
	res, err := s.inventory.StockIn(context.Background(), actor, core.StockMovementInput{
		Barcode: barcode, Quantity: qty, Price: dec(price),
	})
	if err != nil {
		t.Fatalf("StockIn(%s, %d) failed: %v", barcode, qty, err)
	}
	return res
}

func (s *services) mustStockOut(t *testing.T, actor core.Actor, barcode string, qty int64, price string) *core.StockMovementResult {
	t.Helper()
	res, err := s.inventory.StockOut(context.Background(), actor, core.StockMovementInput{
		Barcode: barcode, Quantity: qty, Price: dec(price),
	})
	if err != nil {
		t.Fatalf("StockOut(%s, %d) failed: %v", barcode, qty, err)
	}
	return res
}

func (s *services) quantity(t *testing.T, actor core.Actor, barcode string) int64 {
	t.Helper()
	item, err := s.inventory.GetItem(context.Background(), actor, barcode)
	if err != nil {
		t.Fatalf("GetItem(%s) failed: %v", barcode, err)
	}
	return item.Quantity
}

// ledgerQuantity recomputes an item's quantity from its ledger entries.
func (s *services) ledgerQuantity(t *testing.T, itemID int) int64 {
	t.Helper()
	var q int64
	err := s.pool.QueryRow(context.Background(), `
		SELECT COALESCE(SUM(CASE WHEN direction = 'in' THEN quantity ELSE -quantity END), 0)::bigint
		FROM transactions WHERE item_id = $1
	`, itemID).Scan(&q)
	if err != nil {
		t.Fatalf("Failed to sum ledger for item %d: %v", itemID, err)
	}
	return q
}

func TestLedger_CancelOnRetiredItem(t *testing.T) {
	s := newServices(t)
	ctx := context.Background()

	item := s.mustRegister(t, owner, "1051", "Oolong")
	in := s.mustStockIn(t, owner, "1051", 6, "4.00")
	out := s.mustStockOut(t, owner, "1051", 2, "7.00")
	if _, err := s.inventory.Retire(ctx, owner, "1051"); err != nil {
		t.Fatalf("Retire failed: %v", err)
	}

	res, err := s.ledger.Cancel(ctx, owner, out.Transaction.ID)
	if err != nil {
		t.Fatalf("Cancel of a retired item's entry failed: %v", err)
	}
	if res.BeforeQuantity != 4 || res.AfterQuantity != 6 {
		t.Errorf("before/after = %d/%d, want 4/6", res.BeforeQuantity, res.AfterQuantity)
	}

	if _, err := s.ledger.Cancel(ctx, owner, in.Transaction.ID); err != nil {
		t.Fatalf("Cancel of the stock in failed: %v", err)
	}
	got, err := s.inventory.GetItem(ctx, owner, "1051")
	if err != nil {
		t.Fatalf("GetItem failed: %v", err)
	}
	if got.Quantity != 0 || got.IsActive {
		t.Errorf("item = qty %d active %v, want qty 0 and still retired", got.Quantity, got.IsActive)
	}
	if q := s.ledgerQuantity(t, item.ID); q != 0 {
		t.Errorf("ledger quantity = %d, want 0", q)
	}
}

func TestLedger_CancelOutRestoresStock(t *testing.T) {
	s := newServices(t)
	ctx := context.Background()

	item := s.mustRegister(t, owner, "1001", "Green Tea")
	s.mustStockIn(t, owner, "1001", 10, "5.00")
	out := s.mustStockOut(t, owner, "1001", 4, "9.00")

	res, err := s.ledger.Cancel(ctx, owner, out.Transaction.ID)
	if err != nil {
		t.Fatalf("Cancel failed: %v", err)
	}
	if res.BeforeQuantity != 6 || res.AfterQuantity != 10 {
		t.Errorf("before/after = %d/%d, want 6/10", res.BeforeQuantity, res.AfterQuantity)
	}
	if got := s.quantity(t, owner, "1001"); got != 10 {
		t.Errorf("quantity = %d, want 10", got)
	}
	if got := s.ledgerQuantity(t, item.ID); got != 10 {
		t.Errorf("ledger quantity = %d, want 10", got)
	}

	logs, err := s.audit.List(ctx, owner, core.AuditFilter{OperationType: core.OpCancelTransaction})
	if err != nil {
		t.Fatalf("audit List failed: %v", err)
	}
	if logs.Total != 1 {
		t.Fatalf("audit records = %d, want 1", logs.Total)
	}
	if logs.Items[0].OperatorName != "Alice" {
		t.Errorf("audit operator = %q, want Alice", logs.Items[0].OperatorName)
	}

	// A cancelled entry is gone: cancelling again is NotFound.
	if _, err := s.ledger.Cancel(ctx, owner, out.Transaction.ID); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("second cancel: expected NotFound, got %v", err)
	}
}

func TestLedger_CancelConsumedInFails(t *testing.T) {
	s := newServices(t)
	ctx := context.Background()

	item := s.mustRegister(t, owner, "1002", "Oolong")
	in := s.mustStockIn(t, owner, "1002", 10, "5.00")
	s.mustStockOut(t, owner, "1002", 8, "9.00")

	_, err := s.ledger.Cancel(ctx, owner, in.Transaction.ID)
	if !errors.Is(err, core.ErrInsufficientStock) {
		t.Fatalf("expected InsufficientStock, got %v", err)
	}
	if got := s.quantity(t, owner, "1002"); got != 2 {
		t.Errorf("quantity = %d, want unchanged 2", got)
	}
	if got := s.ledgerQuantity(t, item.ID); got != 2 {
		t.Errorf("ledger quantity = %d, want 2", got)
	}

	logs, err := s.audit.List(ctx, owner, core.AuditFilter{})
	if err != nil {
		t.Fatalf("audit List failed: %v", err)
	}
	if logs.Total != 0 {
		t.Errorf("failed cancellation left %d audit records", logs.Total)
	}
}

func TestLedger_CancelIsScoped(t *testing.T) {
	s := newServices(t)

	s.mustRegister(t, owner, "1003", "Sencha")
	in := s.mustStockIn(t, owner, "1003", 3, "1.00")

	if _, err := s.ledger.Cancel(context.Background(), remote, in.Transaction.ID); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected NotFound from another store, got %v", err)
	}
	if got := s.quantity(t, owner, "1003"); got != 3 {
		t.Errorf("quantity = %d, want 3", got)
	}
}

func TestLedger_QueryFiltersAndOrder(t *testing.T) {
	s := newServices(t)
	ctx := context.Background()

	s.mustRegister(t, owner, "2001", "Rice")
	s.mustRegister(t, owner, "2002", "Beans")
	s.mustStockIn(t, owner, "2001", 5, "1.00")
	s.mustStockIn(t, owner, "2002", 5, "2.00")
	s.mustStockOut(t, clerk, "2001", 2, "3.00")
	last := s.mustStockOut(t, owner, "2002", 1, "4.00")

	page, err := s.ledger.Query(ctx, owner, core.TransactionFilter{})
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if page.Total != 4 || len(page.Items) != 4 {
		t.Fatalf("total/items = %d/%d, want 4/4", page.Total, len(page.Items))
	}
	if page.Items[0].ID != last.Transaction.ID {
		t.Errorf("first entry = %d, want newest %d", page.Items[0].ID, last.Transaction.ID)
	}
	if page.Items[0].ItemName != "Beans" || page.Items[0].OperatorName != "Alice" {
		t.Errorf("display data = %q/%q, want Beans/Alice", page.Items[0].ItemName, page.Items[0].OperatorName)
	}

	outs, err := s.ledger.Query(ctx, owner, core.TransactionFilter{Direction: core.DirectionOut, Barcode: "2001"})
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if outs.Total != 1 || outs.Items[0].OperatorName != "Carol" {
		t.Errorf("filtered query = %+v, want one entry by Carol", outs.Items)
	}
	if !outs.Items[0].Total.Equal(dec("6")) {
		t.Errorf("total = %s, want 6", outs.Items[0].Total)
	}

	paged, err := s.ledger.Query(ctx, owner, core.TransactionFilter{Page: core.PageRequest{Offset: 3, Limit: 2}})
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if paged.Total != 4 || len(paged.Items) != 1 {
		t.Errorf("paged total/items = %d/%d, want 4/1", paged.Total, len(paged.Items))
	}

	other, err := s.ledger.Query(ctx, remote, core.TransactionFilter{})
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if other.Total != 0 {
		t.Errorf("other store sees %d entries, want 0", other.Total)
	}
}

func TestUser_GetByIDIsScoped(t *testing.T) {
	s := newServices(t)
	users := core.NewUserService(s.pool)
	ctx := context.Background()

	u, err := users.GetByID(ctx, 1, 3)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if u.Name != "Carol" || u.StoreName != "Main Store" || u.IsOwner {
		t.Errorf("user = %+v, want Carol of Main Store, not owner", u)
	}
	if u.Actor() != clerk {
		t.Errorf("actor = %+v, want %+v", u.Actor(), clerk)
	}

	if _, err := users.GetByID(ctx, 2, 3); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("cross-store lookup: expected NotFound, got %v", err)
	}
}

func TestUser_EnsureStoreOwner(t *testing.T) {
	s := newServices(t)
	users := core.NewUserService(s.pool)
	ctx := context.Background()

	existing, err := users.EnsureStoreOwner(ctx, "Main Store", "Someone Else")
	if err != nil {
		t.Fatalf("EnsureStoreOwner(existing) failed: %v", err)
	}
	if existing.ID != 1 || existing.Name != "Alice" {
		t.Errorf("existing store owner = %+v, want Alice", existing)
	}

	created, err := users.EnsureStoreOwner(ctx, "  Kiosk  ", "Dana")
	if err != nil {
		t.Fatalf("EnsureStoreOwner(new) failed: %v", err)
	}
	if created.StoreID != 3 || created.ID != 4 || !created.IsOwner || created.StoreName != "Kiosk" {
		t.Errorf("created owner = %+v, want owner 4 of store 3 named Kiosk", created)
	}

	again, err := users.EnsureStoreOwner(ctx, "Kiosk", "Dana")
	if err != nil {
		t.Fatalf("EnsureStoreOwner(repeat) failed: %v", err)
	}
	if again.ID != created.ID {
		t.Errorf("repeat created a second owner: %d != %d", again.ID, created.ID)
	}

	if _, err := users.EnsureStoreOwner(ctx, "", "Dana"); !errors.Is(err, core.ErrValidation) {
		t.Errorf("empty store name: expected ValidationError, got %v", err)
	}
}
