package core

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
)

// InventoryService holds per-item quantity and metadata. Quantity changes only
// through operations that append to the Ledger in the same unit of work.
type InventoryService interface {
	RegisterItem(ctx context.Context, actor Actor, in RegisterItemInput) (*Item, error)
	UpdateItem(ctx context.Context, actor Actor, barcode string, in UpdateItemInput) (*Item, error)
	GetItem(ctx context.Context, actor Actor, barcode string) (*Item, error)
	ListItems(ctx context.Context, actor Actor, filter ItemFilter) (*Page[Item], error)
	ToggleActive(ctx context.Context, actor Actor, barcode string) (*Item, error)
	// Retire disables an item. History is kept; the item can be re-enabled with ToggleActive.
	Retire(ctx context.Context, actor Actor, barcode string) (*Item, error)
	// Purge irreversibly deletes an item. It fails with HAS_HISTORY when ledger entries
	// exist and purgeHistory is false, or when any stock order references the item.
	Purge(ctx context.Context, actor Actor, barcode string, purgeHistory bool) (*PurgeResult, error)

	StockIn(ctx context.Context, actor Actor, in StockMovementInput) (*StockMovementResult, error)
	StockOut(ctx context.Context, actor Actor, in StockMovementInput) (*StockMovementResult, error)

	// AdjustTx applies a quantity change within a caller-provided transaction,
	// holding the item's row lock until that transaction ends. It does not write
	// the ledger; callers pair it with Ledger.AppendTx.
	AdjustTx(ctx context.Context, tx pgx.Tx, storeID int, barcode string, dir Direction, qty int64) (int64, error)
}

type inventoryService struct {
	runner *TxRunner
	ledger *Ledger
	audit  *AuditLog
	log    *zap.Logger
}

func NewInventoryService(runner *TxRunner, ledger *Ledger, audit *AuditLog, log *zap.Logger) InventoryService {
	if log == nil {
		log = zap.NewNop()
	}
	return &inventoryService{runner: runner, ledger: ledger, audit: audit, log: log}
}

const itemColumns = `id, store_id, barcode, name, unit, quantity, warning_threshold, is_active, created_at, updated_at`

func scanItem(row pgx.Row) (*Item, error) {
	var it Item
	if err := row.Scan(&it.ID, &it.StoreID, &it.Barcode, &it.Name, &it.Unit, &it.Quantity,
		&it.WarningThreshold, &it.IsActive, &it.CreatedAt, &it.UpdatedAt); err != nil {
		return nil, err
	}
	return &it, nil
}

func getItemTx(ctx context.Context, q pgxQuerier, storeID int, barcode string) (*Item, error) {
	it, err := scanItem(q.QueryRow(ctx,
		"SELECT "+itemColumns+" FROM items WHERE store_id = $1 AND barcode = $2", storeID, barcode))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, notFound("item with barcode %s not found", barcode)
		}
		return nil, fmt.Errorf("failed to fetch item %s: %w", barcode, err)
	}
	return it, nil
}

// itemUniqueViolation maps unique-constraint failures on items to specific codes.
func itemUniqueViolation(err error, barcode, name string) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != sqlStateUniqueViolation {
		return err
	}
	if strings.Contains(pgErr.ConstraintName, "barcode") {
		return &Error{Kind: KindValidation, Code: ErrDuplicateBarcode.Code, Message: fmt.Sprintf("barcode %s is already registered", barcode), Err: err}
	}
	return &Error{Kind: KindValidation, Code: ErrDuplicateName.Code, Message: fmt.Sprintf("item name %q is already in use", name), Err: err}
}

func (s *inventoryService) RegisterItem(ctx context.Context, actor Actor, in RegisterItemInput) (*Item, error) {
	if err := actor.validate(); err != nil {
		return nil, err
	}
	in.Barcode = strings.TrimSpace(in.Barcode)
	in.Name = strings.TrimSpace(in.Name)
	if in.Barcode == "" {
		return nil, validation("barcode is required")
	}
	if in.Name == "" {
		return nil, validation("name is required")
	}
	if in.WarningThreshold < 0 {
		return nil, validation("warning threshold cannot be negative, got %d", in.WarningThreshold)
	}

	var item *Item
	err := s.runner.InTx(ctx, "register_item", func(ctx context.Context, tx pgx.Tx) error {
		var barcodeTaken, nameTaken bool
		if err := tx.QueryRow(ctx, `
			SELECT
				EXISTS (SELECT 1 FROM items WHERE store_id = $1 AND barcode = $2),
				EXISTS (SELECT 1 FROM items WHERE store_id = $1 AND name = $3)
		`, actor.StoreID, in.Barcode, in.Name).Scan(&barcodeTaken, &nameTaken); err != nil {
			return fmt.Errorf("failed to check item uniqueness: %w", err)
		}
		if barcodeTaken {
			return &Error{Kind: KindValidation, Code: ErrDuplicateBarcode.Code, Message: fmt.Sprintf("barcode %s is already registered", in.Barcode)}
		}
		if nameTaken {
			return &Error{Kind: KindValidation, Code: ErrDuplicateName.Code, Message: fmt.Sprintf("item name %q is already in use", in.Name)}
		}

		var err error
		item, err = scanItem(tx.QueryRow(ctx, `
			INSERT INTO items (store_id, barcode, name, unit, warning_threshold)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING `+itemColumns,
			actor.StoreID, in.Barcode, in.Name, in.Unit, in.WarningThreshold))
		if err != nil {
			return itemUniqueViolation(err, in.Barcode, in.Name)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return item, nil
}

func (s *inventoryService) UpdateItem(ctx context.Context, actor Actor, barcode string, in UpdateItemInput) (*Item, error) {
	if err := actor.validate(); err != nil {
		return nil, err
	}
	if in.Name != nil {
		trimmed := strings.TrimSpace(*in.Name)
		if trimmed == "" {
			return nil, validation("name cannot be empty")
		}
		in.Name = &trimmed
	}
	if in.WarningThreshold != nil && *in.WarningThreshold < 0 {
		return nil, validation("warning threshold cannot be negative, got %d", *in.WarningThreshold)
	}

	var item *Item
	err := s.runner.InTx(ctx, "update_item", func(ctx context.Context, tx pgx.Tx) error {
		locked, err := lockItemByBarcodeTx(ctx, tx, actor.StoreID, barcode)
		if err != nil {
			return err
		}
		if in.Name != nil && *in.Name != locked.Name {
			var taken bool
			if err := tx.QueryRow(ctx,
				"SELECT EXISTS (SELECT 1 FROM items WHERE store_id = $1 AND name = $2 AND id <> $3)",
				actor.StoreID, *in.Name, locked.ID,
			).Scan(&taken); err != nil {
				return fmt.Errorf("failed to check item name: %w", err)
			}
			if taken {
				return &Error{Kind: KindValidation, Code: ErrDuplicateName.Code, Message: fmt.Sprintf("item name %q is already in use", *in.Name)}
			}
		}

		item, err = scanItem(tx.QueryRow(ctx, `
			UPDATE items SET
				name = COALESCE($2, name),
				unit = COALESCE($3, unit),
				warning_threshold = COALESCE($4, warning_threshold),
				updated_at = NOW()
			WHERE id = $1
			RETURNING `+itemColumns,
			locked.ID, in.Name, in.Unit, in.WarningThreshold))
		if err != nil {
			name := locked.Name
			if in.Name != nil {
				name = *in.Name
			}
			return itemUniqueViolation(err, barcode, name)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return item, nil
}

func (s *inventoryService) GetItem(ctx context.Context, actor Actor, barcode string) (*Item, error) {
	return getItemTx(ctx, s.runner.Pool(), actor.StoreID, barcode)
}

func (s *inventoryService) ListItems(ctx context.Context, actor Actor, filter ItemFilter) (*Page[Item], error) {
	page := filter.Page.normalize()
	search := strings.TrimSpace(filter.Search)

	const where = `
		WHERE store_id = $1
		  AND ($2 = '' OR barcode ILIKE '%' || $2 || '%' OR name ILIKE '%' || $2 || '%')
		  AND ($3::boolean IS NULL OR is_active = $3)
		  AND (NOT $4 OR quantity <= warning_threshold)
	`
	args := []any{actor.StoreID, search, filter.Active, filter.LowStock}

	result := &Page[Item]{Items: []Item{}, Offset: page.Offset, Limit: page.Limit}
	err := s.runner.InReadTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		if err := tx.QueryRow(ctx, "SELECT count(*) FROM items"+where, args...).Scan(&result.Total); err != nil {
			return fmt.Errorf("failed to count items: %w", err)
		}
		rows, err := tx.Query(ctx, "SELECT "+itemColumns+" FROM items"+where+
			" ORDER BY barcode OFFSET $5 LIMIT $6", append(args, page.Offset, page.Limit)...)
		if err != nil {
			return fmt.Errorf("failed to query items: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			it, err := scanItem(rows)
			if err != nil {
				return fmt.Errorf("failed to scan item: %w", err)
			}
			result.Items = append(result.Items, *it)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *inventoryService) ToggleActive(ctx context.Context, actor Actor, barcode string) (*Item, error) {
	return s.setActive(ctx, actor, "toggle_item", barcode, nil)
}

func (s *inventoryService) Retire(ctx context.Context, actor Actor, barcode string) (*Item, error) {
	inactive := false
	return s.setActive(ctx, actor, "retire_item", barcode, &inactive)
}

// setActive sets is_active to *value, or flips it when value is nil.
func (s *inventoryService) setActive(ctx context.Context, actor Actor, op, barcode string, value *bool) (*Item, error) {
	if err := actor.validate(); err != nil {
		return nil, err
	}
	var item *Item
	err := s.runner.InTx(ctx, op, func(ctx context.Context, tx pgx.Tx) error {
		locked, err := lockItemByBarcodeTx(ctx, tx, actor.StoreID, barcode)
		if err != nil {
			return err
		}
		next := !locked.IsActive
		if value != nil {
			next = *value
		}
		item, err = scanItem(tx.QueryRow(ctx,
			"UPDATE items SET is_active = $2, updated_at = NOW() WHERE id = $1 RETURNING "+itemColumns,
			locked.ID, next))
		if err != nil {
			return fmt.Errorf("failed to update item %s: %w", barcode, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return item, nil
}

func (s *inventoryService) Purge(ctx context.Context, actor Actor, barcode string, purgeHistory bool) (*PurgeResult, error) {
	if err := actor.validate(); err != nil {
		return nil, err
	}

	var result *PurgeResult
	err := s.runner.InTx(ctx, "purge_item", func(ctx context.Context, tx pgx.Tx) error {
		if _, err := lockItemByBarcodeTx(ctx, tx, actor.StoreID, barcode); err != nil {
			return err
		}
		item, err := getItemTx(ctx, tx, actor.StoreID, barcode)
		if err != nil {
			return err
		}

		var txCount, lineCount int
		if err := tx.QueryRow(ctx, `
			SELECT
				(SELECT count(*) FROM transactions WHERE item_id = $1),
				(SELECT count(*) FROM stock_order_lines WHERE item_id = $1)
		`, item.ID).Scan(&txCount, &lineCount); err != nil {
			return fmt.Errorf("failed to count history of %s: %w", barcode, err)
		}
		if lineCount > 0 {
			return &Error{Kind: KindValidation, Code: ErrHasHistory.Code,
				Message: fmt.Sprintf("item %s is referenced by %d stock order lines", barcode, lineCount)}
		}
		if txCount > 0 && !purgeHistory {
			return &Error{Kind: KindValidation, Code: ErrHasHistory.Code,
				Message: fmt.Sprintf("item %s has %d ledger entries; retire it or purge its history", barcode, txCount)}
		}

		if err := s.audit.RecordTx(ctx, tx, actor, OpPurgeItem, map[string]any{
			"item":                item,
			"purged_transactions": txCount,
		}); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, "DELETE FROM transactions WHERE item_id = $1", item.ID); err != nil {
			return fmt.Errorf("failed to purge history of %s: %w", barcode, err)
		}
		if _, err := tx.Exec(ctx, "DELETE FROM items WHERE id = $1", item.ID); err != nil {
			return fmt.Errorf("failed to delete item %s: %w", barcode, err)
		}
		result = &PurgeResult{Item: *item, PurgedTransactions: txCount}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("item purged",
		zap.Int("store_id", actor.StoreID),
		zap.String("barcode", barcode),
		zap.Int("purged_transactions", result.PurgedTransactions),
	)
	return result, nil
}

func (s *inventoryService) StockIn(ctx context.Context, actor Actor, in StockMovementInput) (*StockMovementResult, error) {
	return s.move(ctx, actor, DirectionIn, in)
}

func (s *inventoryService) StockOut(ctx context.Context, actor Actor, in StockMovementInput) (*StockMovementResult, error) {
	return s.move(ctx, actor, DirectionOut, in)
}

// move adjusts the item and appends the ledger entry in one unit of work.
func (s *inventoryService) move(ctx context.Context, actor Actor, dir Direction, in StockMovementInput) (*StockMovementResult, error) {
	if err := actor.validate(); err != nil {
		return nil, err
	}
	if in.Quantity <= 0 {
		return nil, validation("quantity must be positive, got %d", in.Quantity)
	}
	if err := validatePrice("price", in.Price); err != nil {
		return nil, err
	}
	if _, err := lineTotal("total", in.Quantity, in.Price); err != nil {
		return nil, err
	}

	var result *StockMovementResult
	err := s.runner.InTx(ctx, "stock_"+string(dir), func(ctx context.Context, tx pgx.Tx) error {
		if in.CompanyID != nil {
			if _, err := getCompanyTx(ctx, tx, actor.StoreID, *in.CompanyID); err != nil {
				return err
			}
		}

		if _, err := s.AdjustTx(ctx, tx, actor.StoreID, in.Barcode, dir, in.Quantity); err != nil {
			return err
		}

		// Still locked by AdjustTx until the unit of work ends.
		item, err := getItemTx(ctx, tx, actor.StoreID, in.Barcode)
		if err != nil {
			return err
		}

		t, err := s.ledger.AppendTx(ctx, tx, actor, NewTransaction{
			ItemID:    item.ID,
			Direction: dir,
			Quantity:  in.Quantity,
			Price:     in.Price,
			CompanyID: in.CompanyID,
			Notes:     in.Notes,
			Source:    "direct",
		})
		if err != nil {
			return err
		}
		result = &StockMovementResult{Item: *item, Transaction: *t}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *inventoryService) AdjustTx(ctx context.Context, tx pgx.Tx, storeID int, barcode string, dir Direction, qty int64) (int64, error) {
	if !dir.Valid() {
		return 0, validation("unknown direction %q", dir)
	}
	locked, err := lockItemByBarcodeTx(ctx, tx, storeID, barcode)
	if err != nil {
		return 0, err
	}
	return locked.apply(ctx, tx, dir, qty)
}

// pgxQuerier is satisfied by both *pgxpool.Pool and pgx.Tx, enabling shared query helpers.
type pgxQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}
