package app

import (
	"context"

	"stock-ledger/internal/core"
)

// ApplicationService is the single interface all UI adapters (CLI, Web) call.
// It decouples presentation from business logic. Implementations must contain
// no fmt.Println, no ANSI codes, and no display logic of any kind.
//
// Every operation except Health and ApplySchema runs on behalf of an actor:
// the store scope and operator supplied by the caller's authentication layer.
type ApplicationService interface {
	// Health verifies the database is reachable.
	Health(ctx context.Context) error

	// ApplySchema creates any missing tables and indexes.
	ApplySchema(ctx context.Context) error

	// Me returns the operator behind actor.
	Me(ctx context.Context, actor core.Actor) (*core.User, error)

	// ── Items ──────────────────────────────────────────────────────────────

	RegisterItem(ctx context.Context, actor core.Actor, req core.RegisterItemInput) (*core.Item, error)
	UpdateItem(ctx context.Context, actor core.Actor, barcode string, req core.UpdateItemInput) (*core.Item, error)
	GetItem(ctx context.Context, actor core.Actor, barcode string) (*core.Item, error)
	ListItems(ctx context.Context, actor core.Actor, req ListItemsRequest) (*core.Page[core.Item], error)
	ToggleItem(ctx context.Context, actor core.Actor, barcode string) (*core.Item, error)
	RetireItem(ctx context.Context, actor core.Actor, barcode string) (*core.Item, error)
	// PurgeItem irreversibly deletes an item, and its ledger history when purgeHistory is set.
	PurgeItem(ctx context.Context, actor core.Actor, barcode string, purgeHistory bool) (*core.PurgeResult, error)

	// StockIn and StockOut adjust quantity directly and append one ledger entry.
	StockIn(ctx context.Context, actor core.Actor, req core.StockMovementInput) (*core.StockMovementResult, error)
	StockOut(ctx context.Context, actor core.Actor, req core.StockMovementInput) (*core.StockMovementResult, error)

	// ── Stock orders ───────────────────────────────────────────────────────

	CreateOrder(ctx context.Context, actor core.Actor, req core.CreateOrderInput) (*core.StockOrder, error)
	UpdateOrder(ctx context.Context, actor core.Actor, orderID int, req core.UpdateOrderInput) (*core.StockOrder, error)
	// ConfirmOrder applies every line to stock and the ledger, or none of them.
	ConfirmOrder(ctx context.Context, actor core.Actor, orderID int) (*core.StockOrder, error)
	CancelOrder(ctx context.Context, actor core.Actor, orderID int) (*core.StockOrder, error)
	GetOrder(ctx context.Context, actor core.Actor, orderID int) (*core.StockOrder, error)
	ListOrders(ctx context.Context, actor core.Actor, req core.OrderFilter) (*core.Page[core.StockOrder], error)

	// ── Ledger ─────────────────────────────────────────────────────────────

	// CancelTransaction reverses a ledger entry's effect on stock and removes it.
	CancelTransaction(ctx context.Context, actor core.Actor, transactionID int) (*core.CancelResult, error)
	ListTransactions(ctx context.Context, actor core.Actor, req ListTransactionsRequest) (*core.Page[core.TransactionView], error)

	// ── Reports ────────────────────────────────────────────────────────────

	GetPerformanceStats(ctx context.Context, actor core.Actor, req PerformanceRequest) (*core.PerformanceReport, error)
	GetInventoryStats(ctx context.Context, actor core.Actor) (*core.InventoryStats, error)

	// ── Trading partners ───────────────────────────────────────────────────

	CreateCompany(ctx context.Context, actor core.Actor, req core.CreateCompanyInput) (*core.Company, error)
	UpdateCompany(ctx context.Context, actor core.Actor, companyID int, req core.UpdateCompanyInput) (*core.Company, error)
	GetCompany(ctx context.Context, actor core.Actor, companyID int) (*core.Company, error)
	ListCompanies(ctx context.Context, actor core.Actor, req core.CompanyFilter) (*core.Page[core.Company], error)
	ListCompanyActivity(ctx context.Context, actor core.Actor, companyID int, page core.PageRequest) (*core.Page[core.CompanyActivity], error)
	RecordPayment(ctx context.Context, actor core.Actor, req core.RecordPaymentInput) (*core.Payment, error)
	ListPayments(ctx context.Context, actor core.Actor, req ListPaymentsRequest) (*core.Page[core.Payment], error)

	// GetCompanyBalance returns one partner's position when req.CompanyID is set,
	// otherwise a page of positions plus store-wide totals.
	GetCompanyBalance(ctx context.Context, actor core.Actor, req BalanceRequest) (*BalanceResult, error)

	// ── Finance ────────────────────────────────────────────────────────────

	RecordOtherTransaction(ctx context.Context, actor core.Actor, req core.RecordOtherInput) (*core.OtherTransaction, error)
	ListOtherTransactions(ctx context.Context, actor core.Actor, req ListOtherTransactionsRequest) (*core.Page[core.OtherTransaction], error)
	DeleteOtherTransaction(ctx context.Context, actor core.Actor, id int) error
	GetProfitStatistics(ctx context.Context, actor core.Actor, req DateRange) (*core.CashProfit, error)

	// ── Audit ──────────────────────────────────────────────────────────────

	ListOperationLogs(ctx context.Context, actor core.Actor, req ListOperationLogsRequest) (*core.Page[core.AuditRecord], error)
}
