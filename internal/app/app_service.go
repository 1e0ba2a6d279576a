package app

import (
	"context"
	"fmt"

	"stock-ledger/internal/core"
	"stock-ledger/internal/db"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// Services groups the core services an appService delegates to.
type Services struct {
	Inventory core.InventoryService
	Ledger    *core.Ledger
	Orders    core.StockOrderService
	Companies core.CompanyService
	Balances  core.BalanceService
	Reports   core.ReportingService
	Finance   core.FinanceService
	Audit     *core.AuditLog
	Users     core.UserService
}

// NewServices wires every core service over one pool and unit-of-work runner.
func NewServices(pool *pgxpool.Pool, log *zap.Logger, cfg core.RunnerConfig) Services {
	runner := core.NewTxRunner(pool, log, cfg)
	audit := core.NewAuditLog(runner)
	ledger := core.NewLedger(runner, audit, log)
	return Services{
		Inventory: core.NewInventoryService(runner, ledger, audit, log),
		Ledger:    ledger,
		Orders:    core.NewStockOrderService(runner, ledger, audit, log),
		Companies: core.NewCompanyService(runner, audit),
		Balances:  core.NewBalanceService(runner),
		Reports:   core.NewReportingService(runner),
		Finance:   core.NewFinanceService(runner, audit),
		Audit:     audit,
		Users:     core.NewUserService(pool),
	}
}

type appService struct {
	pool *pgxpool.Pool
	Services
}

// NewAppService constructs an appService that satisfies ApplicationService.
func NewAppService(pool *pgxpool.Pool, svcs Services) ApplicationService {
	return &appService{pool: pool, Services: svcs}
}

func (s *appService) Health(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return fmt.Errorf("database unreachable: %w", err)
	}
	return nil
}

func (s *appService) ApplySchema(ctx context.Context) error {
	return db.ApplySchema(ctx, s.pool)
}

func (s *appService) Me(ctx context.Context, actor core.Actor) (*core.User, error) {
	return s.Users.GetByID(ctx, actor.StoreID, actor.OperatorID)
}

// ── Items ──────────────────────────────────────────────────────────────────────

func (s *appService) RegisterItem(ctx context.Context, actor core.Actor, req core.RegisterItemInput) (*core.Item, error) {
	return s.Inventory.RegisterItem(ctx, actor, req)
}

func (s *appService) UpdateItem(ctx context.Context, actor core.Actor, barcode string, req core.UpdateItemInput) (*core.Item, error) {
	return s.Inventory.UpdateItem(ctx, actor, barcode, req)
}

func (s *appService) GetItem(ctx context.Context, actor core.Actor, barcode string) (*core.Item, error) {
	return s.Inventory.GetItem(ctx, actor, barcode)
}

func (s *appService) ListItems(ctx context.Context, actor core.Actor, req ListItemsRequest) (*core.Page[core.Item], error) {
	return s.Inventory.ListItems(ctx, actor, core.ItemFilter{
		Search:   req.Search,
		Active:   req.Active,
		LowStock: req.LowStock,
		Page:     req.Page,
	})
}

func (s *appService) ToggleItem(ctx context.Context, actor core.Actor, barcode string) (*core.Item, error) {
	return s.Inventory.ToggleActive(ctx, actor, barcode)
}

func (s *appService) RetireItem(ctx context.Context, actor core.Actor, barcode string) (*core.Item, error) {
	return s.Inventory.Retire(ctx, actor, barcode)
}

func (s *appService) PurgeItem(ctx context.Context, actor core.Actor, barcode string, purgeHistory bool) (*core.PurgeResult, error) {
	return s.Inventory.Purge(ctx, actor, barcode, purgeHistory)
}

func (s *appService) StockIn(ctx context.Context, actor core.Actor, req core.StockMovementInput) (*core.StockMovementResult, error) {
	return s.Inventory.StockIn(ctx, actor, req)
}

func (s *appService) StockOut(ctx context.Context, actor core.Actor, req core.StockMovementInput) (*core.StockMovementResult, error) {
	return s.Inventory.StockOut(ctx, actor, req)
}

// ── Stock orders ───────────────────────────────────────────────────────────────

func (s *appService) CreateOrder(ctx context.Context, actor core.Actor, req core.CreateOrderInput) (*core.StockOrder, error) {
	return s.Orders.CreateOrder(ctx, actor, req)
}

func (s *appService) UpdateOrder(ctx context.Context, actor core.Actor, orderID int, req core.UpdateOrderInput) (*core.StockOrder, error) {
	return s.Orders.UpdateOrder(ctx, actor, orderID, req)
}

func (s *appService) ConfirmOrder(ctx context.Context, actor core.Actor, orderID int) (*core.StockOrder, error) {
	return s.Orders.ConfirmOrder(ctx, actor, orderID)
}

func (s *appService) CancelOrder(ctx context.Context, actor core.Actor, orderID int) (*core.StockOrder, error) {
	return s.Orders.CancelOrder(ctx, actor, orderID)
}

func (s *appService) GetOrder(ctx context.Context, actor core.Actor, orderID int) (*core.StockOrder, error) {
	return s.Orders.GetOrder(ctx, actor, orderID)
}

func (s *appService) ListOrders(ctx context.Context, actor core.Actor, req core.OrderFilter) (*core.Page[core.StockOrder], error) {
	return s.Orders.ListOrders(ctx, actor, req)
}

// ── Ledger ─────────────────────────────────────────────────────────────────────

func (s *appService) CancelTransaction(ctx context.Context, actor core.Actor, transactionID int) (*core.CancelResult, error) {
	return s.Ledger.Cancel(ctx, actor, transactionID)
}

func (s *appService) ListTransactions(ctx context.Context, actor core.Actor, req ListTransactionsRequest) (*core.Page[core.TransactionView], error) {
	period, err := req.Dates.period()
	if err != nil {
		return nil, err
	}
	return s.Ledger.Query(ctx, actor, core.TransactionFilter{
		Barcode:   req.Barcode,
		ItemID:    req.ItemID,
		Direction: req.Direction,
		CompanyID: req.CompanyID,
		OrderID:   req.OrderID,
		Period:    period,
		Page:      req.Page,
	})
}

// ── Reports ────────────────────────────────────────────────────────────────────

func (s *appService) GetPerformanceStats(ctx context.Context, actor core.Actor, req PerformanceRequest) (*core.PerformanceReport, error) {
	period, err := req.Dates.period()
	if err != nil {
		return nil, err
	}
	return s.Reports.GetPerformanceStats(ctx, actor, period, req.Limit)
}

func (s *appService) GetInventoryStats(ctx context.Context, actor core.Actor) (*core.InventoryStats, error) {
	return s.Reports.GetInventoryStats(ctx, actor)
}

// ── Trading partners ───────────────────────────────────────────────────────────

func (s *appService) CreateCompany(ctx context.Context, actor core.Actor, req core.CreateCompanyInput) (*core.Company, error) {
	return s.Companies.CreateCompany(ctx, actor, req)
}

func (s *appService) UpdateCompany(ctx context.Context, actor core.Actor, companyID int, req core.UpdateCompanyInput) (*core.Company, error) {
	return s.Companies.UpdateCompany(ctx, actor, companyID, req)
}

func (s *appService) GetCompany(ctx context.Context, actor core.Actor, companyID int) (*core.Company, error) {
	return s.Companies.GetCompany(ctx, actor, companyID)
}

func (s *appService) ListCompanies(ctx context.Context, actor core.Actor, req core.CompanyFilter) (*core.Page[core.Company], error) {
	return s.Companies.ListCompanies(ctx, actor, req)
}

func (s *appService) ListCompanyActivity(ctx context.Context, actor core.Actor, companyID int, page core.PageRequest) (*core.Page[core.CompanyActivity], error) {
	return s.Companies.ListActivity(ctx, actor, companyID, page)
}

func (s *appService) RecordPayment(ctx context.Context, actor core.Actor, req core.RecordPaymentInput) (*core.Payment, error) {
	return s.Companies.RecordPayment(ctx, actor, req)
}

func (s *appService) ListPayments(ctx context.Context, actor core.Actor, req ListPaymentsRequest) (*core.Page[core.Payment], error) {
	period, err := req.Dates.period()
	if err != nil {
		return nil, err
	}
	return s.Companies.ListPayments(ctx, actor, core.PaymentFilter{
		CompanyID:   req.CompanyID,
		CompanyType: req.CompanyType,
		Kind:        req.Kind,
		Period:      period,
		Page:        req.Page,
	})
}

func (s *appService) GetCompanyBalance(ctx context.Context, actor core.Actor, req BalanceRequest) (*BalanceResult, error) {
	if req.CompanyID != nil {
		cb, err := s.Balances.GetCompanyBalance(ctx, actor, *req.CompanyID)
		if err != nil {
			return nil, err
		}
		return &BalanceResult{Company: cb}, nil
	}

	page, err := s.Balances.ListCompanyBalances(ctx, actor, core.CompanyFilter{
		Type:   req.Type,
		Search: req.Search,
		Page:   req.Page,
	})
	if err != nil {
		return nil, err
	}
	totals, err := s.Balances.GetTotals(ctx, actor, req.Type)
	if err != nil {
		return nil, err
	}
	return &BalanceResult{Balances: page, Totals: totals}, nil
}

// ── Finance ────────────────────────────────────────────────────────────────────

func (s *appService) RecordOtherTransaction(ctx context.Context, actor core.Actor, req core.RecordOtherInput) (*core.OtherTransaction, error) {
	return s.Finance.RecordOtherTransaction(ctx, actor, req)
}

func (s *appService) ListOtherTransactions(ctx context.Context, actor core.Actor, req ListOtherTransactionsRequest) (*core.Page[core.OtherTransaction], error) {
	period, err := req.Dates.period()
	if err != nil {
		return nil, err
	}
	return s.Finance.ListOtherTransactions(ctx, actor, core.OtherFilter{
		Kind:   req.Kind,
		Period: period,
		Page:   req.Page,
	})
}

func (s *appService) DeleteOtherTransaction(ctx context.Context, actor core.Actor, id int) error {
	return s.Finance.DeleteOtherTransaction(ctx, actor, id)
}

func (s *appService) GetProfitStatistics(ctx context.Context, actor core.Actor, req DateRange) (*core.CashProfit, error) {
	period, err := req.period()
	if err != nil {
		return nil, err
	}
	return s.Finance.GetProfitStatistics(ctx, actor, period)
}

// ── Audit ──────────────────────────────────────────────────────────────────────

func (s *appService) ListOperationLogs(ctx context.Context, actor core.Actor, req ListOperationLogsRequest) (*core.Page[core.AuditRecord], error) {
	period, err := req.Dates.period()
	if err != nil {
		return nil, err
	}
	return s.Audit.List(ctx, actor, core.AuditFilter{
		OperationType: req.OperationType,
		Period:        period,
		Page:          req.Page,
	})
}
