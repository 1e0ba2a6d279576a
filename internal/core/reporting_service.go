package core

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// ── Report types ──────────────────────────────────────────────────────────────

// InventoryStats is the dashboard view of a store's stock.
// TotalValue values the units on hand at their FIFO lot prices.
type InventoryStats struct {
	TotalItems    int             `json:"total_items"`
	ActiveItems   int             `json:"active_items"`
	LowStockCount int             `json:"low_stock_count"`
	LowStockItems []Item          `json:"low_stock_items"`
	TotalQuantity int64           `json:"total_quantity"`
	TotalValue    decimal.Decimal `json:"total_value"`
	TodaySales    decimal.Decimal `json:"today_sales"`
	WeekSales     decimal.Decimal `json:"week_sales"`
	HotProducts   []SalesRanking  `json:"hot_products"`
}

const (
	lowStockListLimit = 20
	hotProductsLimit  = 5
)

// ReportingService provides read-only derived views over the ledger.
// Every report reads one consistent snapshot and never mutates state.
type ReportingService interface {
	// GetPerformanceStats prices sales in the period at FIFO cost and ranks items
	// by profit and by revenue. limit caps the rankings; 0 returns every item sold.
	GetPerformanceStats(ctx context.Context, actor Actor, period Period, limit int) (*PerformanceReport, error)
	GetInventoryStats(ctx context.Context, actor Actor) (*InventoryStats, error)
}

type reportingService struct {
	runner *TxRunner
	now    func() time.Time
}

func NewReportingService(runner *TxRunner) ReportingService {
	return &reportingService{runner: runner, now: time.Now}
}

// loadMovementsTx reads every ledger entry in scope up to the given instant
// (unbounded when zero), ordered for FIFO consumption.
func loadMovementsTx(ctx context.Context, tx pgx.Tx, storeID int, upTo time.Time) ([]Movement, error) {
	var bound *time.Time
	if !upTo.IsZero() {
		bound = &upTo
	}
	rows, err := tx.Query(ctx, `
		SELECT t.id, t.item_id, i.barcode, i.name, t.direction, t.quantity, t.price, t.total, t.created_at
		FROM transactions t
		JOIN items i ON i.id = t.item_id
		WHERE t.store_id = $1
		  AND ($2::timestamptz IS NULL OR t.created_at <= $2)
		ORDER BY t.item_id, t.created_at, t.id
	`, storeID, bound)
	if err != nil {
		return nil, fmt.Errorf("failed to query ledger movements: %w", err)
	}
	defer rows.Close()

	var out []Movement
	for rows.Next() {
		var m Movement
		var dir string
		if err := rows.Scan(&m.ID, &m.ItemID, &m.Barcode, &m.Name, &dir, &m.Quantity, &m.Price, &m.Total, &m.At); err != nil {
			return nil, fmt.Errorf("failed to scan ledger movement: %w", err)
		}
		m.Direction = Direction(dir)
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *reportingService) GetPerformanceStats(ctx context.Context, actor Actor, period Period, limit int) (*PerformanceReport, error) {
	if err := period.validate(); err != nil {
		return nil, err
	}
	var report PerformanceReport
	err := s.runner.InReadTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		movements, err := loadMovementsTx(ctx, tx, actor.StoreID, period.To)
		if err != nil {
			return err
		}
		report = BuildPerformance(movements, period, limit)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &report, nil
}

func (s *reportingService) GetInventoryStats(ctx context.Context, actor Actor) (*InventoryStats, error) {
	now := s.now()
	startOfDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	weekAgo := startOfDay.AddDate(0, 0, -6)

	stats := &InventoryStats{
		LowStockItems: []Item{},
		TotalValue:    decimal.Zero,
		TodaySales:    decimal.Zero,
		WeekSales:     decimal.Zero,
		HotProducts:   []SalesRanking{},
	}
	err := s.runner.InReadTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		if err := tx.QueryRow(ctx, `
			SELECT count(*),
			       count(*) FILTER (WHERE is_active),
			       count(*) FILTER (WHERE is_active AND quantity <= warning_threshold)
			FROM items
			WHERE store_id = $1
		`, actor.StoreID).Scan(&stats.TotalItems, &stats.ActiveItems, &stats.LowStockCount); err != nil {
			return fmt.Errorf("failed to count items: %w", err)
		}

		rows, err := tx.Query(ctx, "SELECT "+itemColumns+` FROM items
			WHERE store_id = $1 AND is_active AND quantity <= warning_threshold
			ORDER BY quantity, barcode
			LIMIT $2`, actor.StoreID, lowStockListLimit)
		if err != nil {
			return fmt.Errorf("failed to query low stock items: %w", err)
		}
		for rows.Next() {
			it, err := scanItem(rows)
			if err != nil {
				rows.Close()
				return fmt.Errorf("failed to scan item: %w", err)
			}
			stats.LowStockItems = append(stats.LowStockItems, *it)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return fmt.Errorf("failed to read low stock items: %w", err)
		}

		movements, err := loadMovementsTx(ctx, tx, actor.StoreID, time.Time{})
		if err != nil {
			return err
		}
		for _, g := range groupMovements(movements) {
			qty, value := StockValuation(g)
			stats.TotalQuantity += qty
			stats.TotalValue = stats.TotalValue.Add(value)
		}
		for _, m := range movements {
			if m.Direction != DirectionOut {
				continue
			}
			if !m.At.Before(startOfDay) {
				stats.TodaySales = stats.TodaySales.Add(m.Total)
			}
			if !m.At.Before(weekAgo) {
				stats.WeekSales = stats.WeekSales.Add(m.Total)
			}
		}

		week := BuildPerformance(movements, Period{From: weekAgo}, hotProductsLimit)
		stats.HotProducts = week.SalesRanking
		return nil
	})
	if err != nil {
		return nil, err
	}
	return stats, nil
}
