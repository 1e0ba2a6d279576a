package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"stock-ledger/internal/metrics"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Transaction is an immutable ledger entry for one stock movement.
type Transaction struct {
	ID         int             `json:"id"`
	StoreID    int             `json:"store_id"`
	ItemID     int             `json:"item_id"`
	Direction  Direction       `json:"direction"`
	Quantity   int64           `json:"quantity"`
	Price      decimal.Decimal `json:"price"`
	Total      decimal.Decimal `json:"total"`
	OperatorID int             `json:"operator_id"`
	CompanyID  *int            `json:"company_id,omitempty"`
	OrderID    *int            `json:"order_id,omitempty"`
	OrderNo    *string         `json:"order_no,omitempty"`
	Notes      string          `json:"notes"`
	CreatedAt  time.Time       `json:"created_at"`
}

// TransactionView is a ledger entry joined with item, operator and partner display data.
type TransactionView struct {
	Transaction
	Barcode      string  `json:"barcode"`
	ItemName     string  `json:"item_name"`
	Unit         string  `json:"unit"`
	OperatorName string  `json:"operator_name"`
	CompanyName  *string `json:"company_name,omitempty"`
}

// NewTransaction is the input to Ledger.AppendTx. Total is always derived.
type NewTransaction struct {
	ItemID    int
	Direction Direction
	Quantity  int64
	Price     decimal.Decimal
	CompanyID *int
	OrderID   *int
	OrderNo   *string
	Notes     string
	// Source labels the movement for metrics: "direct" or "order".
	Source string
}

// TransactionFilter narrows Ledger.Query. Zero values do not filter.
type TransactionFilter struct {
	Barcode   string
	ItemID    int
	Direction Direction
	CompanyID int
	OrderID   int
	Period    Period
	Page      PageRequest
}

// CancelResult reports the item state after a ledger entry was reversed.
type CancelResult struct {
	Cancelled      Transaction `json:"cancelled"`
	Barcode        string      `json:"barcode"`
	ItemName       string      `json:"item_name"`
	BeforeQuantity int64       `json:"before_quantity"`
	AfterQuantity  int64       `json:"after_quantity"`
}

// Ledger is the append-only record of stock movements. Entries are only
// ever inserted inside the unit of work that changes the item quantity, and
// only ever removed by Cancel, which reverses the quantity effect and audits it.
type Ledger struct {
	runner *TxRunner
	audit  *AuditLog
	log    *zap.Logger
}

func NewLedger(runner *TxRunner, audit *AuditLog, log *zap.Logger) *Ledger {
	if log == nil {
		log = zap.NewNop()
	}
	return &Ledger{runner: runner, audit: audit, log: log}
}

// AppendTx inserts one entry inside the caller's transaction. The caller must
// already hold the item's row lock and have applied the quantity change.
func (l *Ledger) AppendTx(ctx context.Context, tx pgx.Tx, actor Actor, in NewTransaction) (*Transaction, error) {
	if !in.Direction.Valid() {
		return nil, validation("unknown direction %q", in.Direction)
	}
	if in.Quantity <= 0 {
		return nil, validation("quantity must be positive, got %d", in.Quantity)
	}
	if err := validatePrice("price", in.Price); err != nil {
		return nil, err
	}
	total, err := lineTotal("total", in.Quantity, in.Price)
	if err != nil {
		return nil, err
	}

	t := Transaction{
		StoreID:    actor.StoreID,
		ItemID:     in.ItemID,
		Direction:  in.Direction,
		Quantity:   in.Quantity,
		Price:      in.Price,
		Total:      total,
		OperatorID: actor.OperatorID,
		CompanyID:  in.CompanyID,
		OrderID:    in.OrderID,
		OrderNo:    in.OrderNo,
		Notes:      in.Notes,
	}
	err = tx.QueryRow(ctx, `
		INSERT INTO transactions (store_id, item_id, direction, quantity, price, total,
		                          operator_id, company_id, order_id, order_no, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id, created_at
	`, t.StoreID, t.ItemID, string(t.Direction), t.Quantity, t.Price, t.Total,
		t.OperatorID, t.CompanyID, t.OrderID, t.OrderNo, t.Notes,
	).Scan(&t.ID, &t.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to append ledger entry: %w", err)
	}

	source := in.Source
	if source == "" {
		source = "direct"
	}
	metrics.RecordStockMovement(string(t.Direction), source, t.Quantity)
	return &t, nil
}

// Cancel reverses the quantity effect of a ledger entry through the locked
// adjust path, audits the reversal, and deletes the entry, all in one unit of work.
// Reversing an "in" whose units were already sold fails with INSUFFICIENT_STOCK.
// Entries of retired items can be cancelled; the item stays inactive.
func (l *Ledger) Cancel(ctx context.Context, actor Actor, transactionID int) (*CancelResult, error) {
	if err := actor.validate(); err != nil {
		return nil, err
	}

	var result *CancelResult
	err := l.runner.InTx(ctx, "cancel_transaction", func(ctx context.Context, tx pgx.Tx) error {
		var t Transaction
		var dir string
		err := tx.QueryRow(ctx, `
			SELECT id, store_id, item_id, direction, quantity, price, total,
			       operator_id, company_id, order_id, order_no, notes, created_at
			FROM transactions
			WHERE id = $1 AND store_id = $2
			FOR UPDATE
		`, transactionID, actor.StoreID).Scan(
			&t.ID, &t.StoreID, &t.ItemID, &dir, &t.Quantity, &t.Price, &t.Total,
			&t.OperatorID, &t.CompanyID, &t.OrderID, &t.OrderNo, &t.Notes, &t.CreatedAt,
		)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return notFound("transaction %d not found", transactionID)
			}
			return fmt.Errorf("failed to load transaction %d: %w", transactionID, err)
		}
		t.Direction = Direction(dir)

		items, err := lockItemsTx(ctx, tx, actor.StoreID, []int{t.ItemID})
		if err != nil {
			return err
		}
		item := items[t.ItemID]
		before := item.Quantity

		after, err := item.reverse(ctx, tx, t.Direction, t.Quantity)
		if err != nil {
			if errors.Is(err, ErrInsufficientStock) {
				return &Error{
					Kind: KindInsufficientStock,
					Message: fmt.Sprintf("cannot cancel transaction %d: %d of %d units of %s already consumed",
						t.ID, t.Quantity-before, t.Quantity, item.Barcode),
				}
			}
			return err
		}

		if err := l.audit.RecordTx(ctx, tx, actor, OpCancelTransaction, map[string]any{
			"transaction_id":  t.ID,
			"item_id":         t.ItemID,
			"barcode":         item.Barcode,
			"item_name":       item.Name,
			"direction":       t.Direction,
			"quantity":        t.Quantity,
			"price":           t.Price,
			"total":           t.Total,
			"company_id":      t.CompanyID,
			"order_no":        t.OrderNo,
			"notes":           t.Notes,
			"created_at":      t.CreatedAt,
			"operator_id":     t.OperatorID,
			"before_quantity": before,
			"after_quantity":  after,
		}); err != nil {
			return err
		}

		if _, err := tx.Exec(ctx, "DELETE FROM transactions WHERE id = $1", t.ID); err != nil {
			return fmt.Errorf("failed to delete transaction %d: %w", t.ID, err)
		}

		result = &CancelResult{
			Cancelled:      t,
			Barcode:        item.Barcode,
			ItemName:       item.Name,
			BeforeQuantity: before,
			AfterQuantity:  after,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	l.log.Info("ledger entry cancelled",
		zap.Int("store_id", actor.StoreID),
		zap.Int("transaction_id", transactionID),
		zap.String("barcode", result.Barcode),
		zap.Int64("before", result.BeforeQuantity),
		zap.Int64("after", result.AfterQuantity),
	)
	return result, nil
}

// Query returns ledger entries in scope, newest first.
func (l *Ledger) Query(ctx context.Context, actor Actor, filter TransactionFilter) (*Page[TransactionView], error) {
	if err := filter.Period.validate(); err != nil {
		return nil, err
	}
	if filter.Direction != "" && !filter.Direction.Valid() {
		return nil, validation("unknown direction %q", filter.Direction)
	}
	page := filter.Page.normalize()
	from, to := filter.Period.args()

	const where = `
		WHERE t.store_id = $1
		  AND ($2 = '' OR i.barcode = $2)
		  AND ($3 = 0 OR t.item_id = $3)
		  AND ($4 = '' OR t.direction = $4)
		  AND ($5 = 0 OR t.company_id = $5)
		  AND ($6 = 0 OR t.order_id = $6)
		  AND ($7::timestamptz IS NULL OR t.created_at >= $7)
		  AND ($8::timestamptz IS NULL OR t.created_at <= $8)
	`
	const joins = `
		FROM transactions t
		JOIN items i ON i.id = t.item_id
		LEFT JOIN users u ON u.id = t.operator_id
		LEFT JOIN companies c ON c.id = t.company_id
	`
	args := []any{actor.StoreID, filter.Barcode, filter.ItemID, string(filter.Direction),
		filter.CompanyID, filter.OrderID, from, to}

	result := &Page[TransactionView]{Items: []TransactionView{}, Offset: page.Offset, Limit: page.Limit}
	err := l.runner.InReadTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		if err := tx.QueryRow(ctx, "SELECT count(*)"+joins+where, args...).Scan(&result.Total); err != nil {
			return fmt.Errorf("failed to count transactions: %w", err)
		}

		rows, err := tx.Query(ctx, `
			SELECT t.id, t.store_id, t.item_id, t.direction, t.quantity, t.price, t.total,
			       t.operator_id, t.company_id, t.order_id, t.order_no, t.notes, t.created_at,
			       i.barcode, i.name, i.unit, COALESCE(u.name, ''), c.name
		`+joins+where+`
			ORDER BY t.created_at DESC, t.id DESC
			OFFSET $9 LIMIT $10
		`, append(args, page.Offset, page.Limit)...)
		if err != nil {
			return fmt.Errorf("failed to query transactions: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			var v TransactionView
			var dir string
			if err := rows.Scan(
				&v.ID, &v.StoreID, &v.ItemID, &dir, &v.Quantity, &v.Price, &v.Total,
				&v.OperatorID, &v.CompanyID, &v.OrderID, &v.OrderNo, &v.Notes, &v.CreatedAt,
				&v.Barcode, &v.ItemName, &v.Unit, &v.OperatorName, &v.CompanyName,
			); err != nil {
				return fmt.Errorf("failed to scan transaction: %w", err)
			}
			v.Direction = Direction(dir)
			result.Items = append(result.Items, v)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
