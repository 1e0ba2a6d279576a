package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"stock-ledger/internal/metrics"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// StockOrderService manages the stock order lifecycle. Confirmation is the
// only transition that touches stock: it applies every line and appends every
// ledger entry in one unit of work, or none of them.
type StockOrderService interface {
	CreateOrder(ctx context.Context, actor Actor, in CreateOrderInput) (*StockOrder, error)
	// UpdateOrder edits a draft. Every change increments the order's version.
	UpdateOrder(ctx context.Context, actor Actor, orderID int, in UpdateOrderInput) (*StockOrder, error)
	// ConfirmOrder transitions draft → confirmed. Any failing line aborts the
	// whole confirmation and the order stays draft.
	ConfirmOrder(ctx context.Context, actor Actor, orderID int) (*StockOrder, error)
	// CancelOrder transitions draft → cancelled. It never touches stock.
	CancelOrder(ctx context.Context, actor Actor, orderID int) (*StockOrder, error)

	GetOrder(ctx context.Context, actor Actor, orderID int) (*StockOrder, error)
	ListOrders(ctx context.Context, actor Actor, filter OrderFilter) (*Page[StockOrder], error)
}

type stockOrderService struct {
	runner *TxRunner
	ledger *Ledger
	audit  *AuditLog
	log    *zap.Logger
	now    func() time.Time
}

func NewStockOrderService(runner *TxRunner, ledger *Ledger, audit *AuditLog, log *zap.Logger) StockOrderService {
	if log == nil {
		log = zap.NewNop()
	}
	return &stockOrderService{runner: runner, ledger: ledger, audit: audit, log: log, now: time.Now}
}

const orderSelect = `
	SELECT o.id, o.store_id, o.order_no, o.direction, o.company_id, COALESCE(c.name, ''),
	       o.operator_id, COALESCE(u.name, ''), o.status, o.total_amount, o.notes, o.version,
	       o.created_at, o.updated_at, o.confirmed_at, o.cancelled_at
	FROM stock_orders o
	LEFT JOIN companies c ON c.id = o.company_id
	LEFT JOIN users u ON u.id = o.operator_id
`

func scanOrder(row pgx.Row) (*StockOrder, error) {
	var o StockOrder
	var dir, status string
	if err := row.Scan(&o.ID, &o.StoreID, &o.OrderNo, &dir, &o.CompanyID, &o.CompanyName,
		&o.OperatorID, &o.OperatorName, &status, &o.TotalAmount, &o.Notes, &o.Version,
		&o.CreatedAt, &o.UpdatedAt, &o.ConfirmedAt, &o.CancelledAt); err != nil {
		return nil, err
	}
	o.Direction = Direction(dir)
	o.Status = OrderStatus(status)
	return &o, nil
}

// loadOrderTx reads an order and its lines. With forUpdate the order row stays
// locked until the transaction ends, serializing edits, confirmation and cancellation.
func loadOrderTx(ctx context.Context, tx pgx.Tx, storeID, orderID int, forUpdate bool) (*StockOrder, error) {
	var o *StockOrder
	var err error
	if forUpdate {
		// Lock only the order row; the joins are for display.
		var locked int
		if err = tx.QueryRow(ctx, "SELECT id FROM stock_orders WHERE id = $1 AND store_id = $2 FOR UPDATE",
			orderID, storeID).Scan(&locked); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, notFound("stock order %d not found", orderID)
			}
			return nil, fmt.Errorf("failed to lock stock order %d: %w", orderID, err)
		}
	}
	o, err = scanOrder(tx.QueryRow(ctx, orderSelect+" WHERE o.id = $1 AND o.store_id = $2", orderID, storeID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, notFound("stock order %d not found", orderID)
		}
		return nil, fmt.Errorf("failed to fetch stock order %d: %w", orderID, err)
	}

	rows, err := tx.Query(ctx, `
		SELECT l.id, l.order_id, l.item_id, l.barcode, i.name, i.unit, l.quantity, l.price, l.total, l.notes
		FROM stock_order_lines l
		JOIN items i ON i.id = l.item_id
		WHERE l.order_id = $1
		ORDER BY l.id
	`, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to query lines of stock order %d: %w", orderID, err)
	}
	defer rows.Close()
	for rows.Next() {
		var l StockOrderLine
		if err := rows.Scan(&l.ID, &l.OrderID, &l.ItemID, &l.Barcode, &l.ItemName, &l.Unit,
			&l.Quantity, &l.Price, &l.Total, &l.Notes); err != nil {
			return nil, fmt.Errorf("failed to scan stock order line: %w", err)
		}
		o.Lines = append(o.Lines, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read lines of stock order %d: %w", orderID, err)
	}
	return o, nil
}

// insertLinesTx resolves each line's item in scope and inserts the lines.
func insertLinesTx(ctx context.Context, tx pgx.Tx, storeID, orderID int, lines []OrderLineInput, totals []decimal.Decimal) error {
	for i, l := range lines {
		var itemID int
		if err := tx.QueryRow(ctx, "SELECT id FROM items WHERE store_id = $1 AND barcode = $2",
			storeID, l.Barcode).Scan(&itemID); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return notFound("line %d: item with barcode %s not found", i+1, l.Barcode)
			}
			return fmt.Errorf("failed to resolve item %s: %w", l.Barcode, err)
		}
		if _, err := tx.Exec(ctx, `
			INSERT INTO stock_order_lines (order_id, item_id, barcode, quantity, price, total, notes)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, orderID, itemID, l.Barcode, l.Quantity, l.Price, totals[i], l.Notes); err != nil {
			return fmt.Errorf("failed to insert line %d: %w", i+1, err)
		}
	}
	return nil
}

func (s *stockOrderService) CreateOrder(ctx context.Context, actor Actor, in CreateOrderInput) (*StockOrder, error) {
	if err := actor.validate(); err != nil {
		return nil, err
	}
	if !in.Direction.Valid() {
		return nil, validation("order direction must be in or out, got %q", in.Direction)
	}
	totals, sum, err := lineTotals(in.Lines)
	if err != nil {
		return nil, err
	}

	var order *StockOrder
	err = s.runner.InTx(ctx, "create_order", func(ctx context.Context, tx pgx.Tx) error {
		if _, err := getCompanyTx(ctx, tx, actor.StoreID, in.CompanyID); err != nil {
			return err
		}
		orderNo, err := nextOrderNumberTx(ctx, tx, in.Direction, s.now())
		if err != nil {
			return err
		}

		var orderID int
		if err := tx.QueryRow(ctx, `
			INSERT INTO stock_orders (store_id, order_no, direction, company_id, operator_id, status, total_amount, notes)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			RETURNING id
		`, actor.StoreID, orderNo, string(in.Direction), in.CompanyID, actor.OperatorID,
			string(OrderDraft), sum, in.Notes).Scan(&orderID); err != nil {
			return fmt.Errorf("failed to insert stock order: %w", err)
		}

		if err := insertLinesTx(ctx, tx, actor.StoreID, orderID, in.Lines, totals); err != nil {
			return err
		}

		order, err = loadOrderTx(ctx, tx, actor.StoreID, orderID, false)
		return err
	})
	if err != nil {
		return nil, err
	}
	metrics.RecordOrderTransition(string(order.Direction), string(OrderDraft))
	return order, nil
}

func (s *stockOrderService) UpdateOrder(ctx context.Context, actor Actor, orderID int, in UpdateOrderInput) (*StockOrder, error) {
	if err := actor.validate(); err != nil {
		return nil, err
	}
	var totals []decimal.Decimal
	var sum decimal.Decimal
	if in.Lines != nil {
		var err error
		if totals, sum, err = lineTotals(in.Lines); err != nil {
			return nil, err
		}
	}

	var order *StockOrder
	err := s.runner.InTx(ctx, "update_order", func(ctx context.Context, tx pgx.Tx) error {
		current, err := loadOrderTx(ctx, tx, actor.StoreID, orderID, true)
		if err != nil {
			return err
		}
		if current.Status != OrderDraft {
			return invalidState("stock order %s is %s; only draft orders can be edited", current.OrderNo, current.Status)
		}
		if in.ExpectedVersion != nil && *in.ExpectedVersion != current.Version {
			return &Error{Kind: KindConcurrencyConflict, Code: ErrStaleVersion.Code,
				Message: fmt.Sprintf("stock order %s was modified: expected version %d, found %d",
					current.OrderNo, *in.ExpectedVersion, current.Version)}
		}
		if in.CompanyID != nil {
			if _, err := getCompanyTx(ctx, tx, actor.StoreID, *in.CompanyID); err != nil {
				return err
			}
		}

		total := current.TotalAmount
		if in.Lines != nil {
			if _, err := tx.Exec(ctx, "DELETE FROM stock_order_lines WHERE order_id = $1", orderID); err != nil {
				return fmt.Errorf("failed to replace lines of stock order %d: %w", orderID, err)
			}
			if err := insertLinesTx(ctx, tx, actor.StoreID, orderID, in.Lines, totals); err != nil {
				return err
			}
			total = sum
		}

		if _, err := tx.Exec(ctx, `
			UPDATE stock_orders SET
				company_id = COALESCE($2, company_id),
				notes = COALESCE($3, notes),
				total_amount = $4,
				version = version + 1,
				updated_at = NOW()
			WHERE id = $1
		`, orderID, in.CompanyID, in.Notes, total); err != nil {
			return fmt.Errorf("failed to update stock order %d: %w", orderID, err)
		}

		order, err = loadOrderTx(ctx, tx, actor.StoreID, orderID, false)
		return err
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

func (s *stockOrderService) ConfirmOrder(ctx context.Context, actor Actor, orderID int) (*StockOrder, error) {
	if err := actor.validate(); err != nil {
		return nil, err
	}

	var order *StockOrder
	err := s.runner.InTx(ctx, "confirm_order", func(ctx context.Context, tx pgx.Tx) error {
		current, err := loadOrderTx(ctx, tx, actor.StoreID, orderID, true)
		if err != nil {
			return err
		}
		if current.Status != OrderDraft {
			return invalidState("stock order %s is %s; only draft orders can be confirmed", current.OrderNo, current.Status)
		}
		if len(current.Lines) == 0 {
			return validation("stock order %s has no lines", current.OrderNo)
		}

		sum := decimal.Zero
		itemIDs := make([]int, 0, len(current.Lines))
		for _, l := range current.Lines {
			sum = sum.Add(l.Total)
			itemIDs = append(itemIDs, l.ItemID)
		}
		if !sum.Equal(current.TotalAmount) {
			return integrityViolation("stock order %s total %s does not match its lines %s",
				current.OrderNo, current.TotalAmount, sum)
		}

		locked, err := lockItemsTx(ctx, tx, actor.StoreID, itemIDs)
		if err != nil {
			return err
		}

		companyID := current.CompanyID
		orderNo := current.OrderNo
		for i, l := range current.Lines {
			if _, err := locked[l.ItemID].apply(ctx, tx, current.Direction, l.Quantity); err != nil {
				return fmt.Errorf("stock order %s line %d (%s): %w", orderNo, i+1, l.Barcode, err)
			}
			if _, err := s.ledger.AppendTx(ctx, tx, actor, NewTransaction{
				ItemID:    l.ItemID,
				Direction: current.Direction,
				Quantity:  l.Quantity,
				Price:     l.Price,
				CompanyID: &companyID,
				OrderID:   &current.ID,
				OrderNo:   &orderNo,
				Notes:     l.Notes,
				Source:    "order",
			}); err != nil {
				return err
			}
		}

		if _, err := tx.Exec(ctx, `
			UPDATE stock_orders
			SET status = $2, confirmed_at = NOW(), updated_at = NOW(), version = version + 1
			WHERE id = $1
		`, orderID, string(OrderConfirmed)); err != nil {
			return fmt.Errorf("failed to confirm stock order %d: %w", orderID, err)
		}

		order, err = loadOrderTx(ctx, tx, actor.StoreID, orderID, false)
		return err
	})
	if err != nil {
		return nil, err
	}

	metrics.RecordOrderTransition(string(order.Direction), string(OrderConfirmed))
	s.log.Info("stock order confirmed",
		zap.Int("store_id", actor.StoreID),
		zap.String("order_no", order.OrderNo),
		zap.String("direction", string(order.Direction)),
		zap.Int("lines", len(order.Lines)),
		zap.String("total", order.TotalAmount.StringFixed(2)),
	)
	return order, nil
}

func (s *stockOrderService) CancelOrder(ctx context.Context, actor Actor, orderID int) (*StockOrder, error) {
	if err := actor.validate(); err != nil {
		return nil, err
	}

	var order *StockOrder
	err := s.runner.InTx(ctx, "cancel_order", func(ctx context.Context, tx pgx.Tx) error {
		current, err := loadOrderTx(ctx, tx, actor.StoreID, orderID, true)
		if err != nil {
			return err
		}
		if current.Status != OrderDraft {
			return invalidState("stock order %s is %s; only draft orders can be cancelled", current.OrderNo, current.Status)
		}

		if _, err := tx.Exec(ctx, `
			UPDATE stock_orders
			SET status = $2, cancelled_at = NOW(), updated_at = NOW(), version = version + 1
			WHERE id = $1
		`, orderID, string(OrderCancelled)); err != nil {
			return fmt.Errorf("failed to cancel stock order %d: %w", orderID, err)
		}
		if err := s.audit.RecordTx(ctx, tx, actor, OpCancelOrder, map[string]any{
			"order_id":     current.ID,
			"order_no":     current.OrderNo,
			"direction":    current.Direction,
			"company_id":   current.CompanyID,
			"total_amount": current.TotalAmount,
			"lines":        len(current.Lines),
		}); err != nil {
			return err
		}

		order, err = loadOrderTx(ctx, tx, actor.StoreID, orderID, false)
		return err
	})
	if err != nil {
		return nil, err
	}

	metrics.RecordOrderTransition(string(order.Direction), string(OrderCancelled))
	s.log.Info("stock order cancelled",
		zap.Int("store_id", actor.StoreID),
		zap.String("order_no", order.OrderNo),
	)
	return order, nil
}

func (s *stockOrderService) GetOrder(ctx context.Context, actor Actor, orderID int) (*StockOrder, error) {
	var order *StockOrder
	err := s.runner.InReadTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		var err error
		order, err = loadOrderTx(ctx, tx, actor.StoreID, orderID, false)
		return err
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

func (s *stockOrderService) ListOrders(ctx context.Context, actor Actor, filter OrderFilter) (*Page[StockOrder], error) {
	if filter.Direction != "" && !filter.Direction.Valid() {
		return nil, validation("unknown direction %q", filter.Direction)
	}
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, validation("unknown order status %q", filter.Status)
	}
	page := filter.Page.normalize()

	const where = `
		WHERE o.store_id = $1
		  AND ($2 = '' OR o.order_no ILIKE '%' || $2 || '%' OR c.name ILIKE '%' || $2 || '%')
		  AND ($3 = '' OR o.direction = $3)
		  AND ($4 = '' OR o.status = $4)
	`
	args := []any{actor.StoreID, strings.TrimSpace(filter.Search), string(filter.Direction), string(filter.Status)}

	result := &Page[StockOrder]{Items: []StockOrder{}, Offset: page.Offset, Limit: page.Limit}
	err := s.runner.InReadTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		if err := tx.QueryRow(ctx, `
			SELECT count(*) FROM stock_orders o LEFT JOIN companies c ON c.id = o.company_id
		`+where, args...).Scan(&result.Total); err != nil {
			return fmt.Errorf("failed to count stock orders: %w", err)
		}
		rows, err := tx.Query(ctx, orderSelect+where+" ORDER BY o.created_at DESC, o.id DESC OFFSET $5 LIMIT $6",
			append(args, page.Offset, page.Limit)...)
		if err != nil {
			return fmt.Errorf("failed to query stock orders: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			o, err := scanOrder(rows)
			if err != nil {
				return fmt.Errorf("failed to scan stock order: %w", err)
			}
			result.Items = append(result.Items, *o)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
