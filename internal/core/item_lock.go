package core

import (
	"context"
	"errors"
	"fmt"
	"math"
	"slices"

	"github.com/jackc/pgx/v5"
)

// lockedItem is an item row held under FOR UPDATE for the rest of the
// enclosing transaction. Quantity tracks writes made through apply.
type lockedItem struct {
	ID       int
	Barcode  string
	Name     string
	Unit     string
	Quantity int64
	IsActive bool
}

// lockOrder returns ids de-duplicated and sorted ascending. Every multi-item
// lock acquisition goes through it so concurrent units of work always take
// row locks in the same order.
func lockOrder(ids []int) []int {
	out := slices.Clone(ids)
	slices.Sort(out)
	return slices.Compact(out)
}

const lockItemSQL = `
	SELECT id, barcode, name, unit, quantity, is_active
	FROM items
	WHERE store_id = $1 AND %s
	FOR UPDATE
`

// lockItemsTx locks the given items in canonical id order and returns them keyed by id.
func lockItemsTx(ctx context.Context, tx pgx.Tx, storeID int, ids []int) (map[int]*lockedItem, error) {
	locked := make(map[int]*lockedItem, len(ids))
	for _, id := range lockOrder(ids) {
		it, err := scanLockedItem(tx.QueryRow(ctx, fmt.Sprintf(lockItemSQL, "id = $2"), storeID, id))
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, notFound("item %d not found", id)
			}
			return nil, fmt.Errorf("failed to lock item %d: %w", id, err)
		}
		locked[id] = it
	}
	return locked, nil
}

// lockItemByBarcodeTx locks a single item identified by barcode.
func lockItemByBarcodeTx(ctx context.Context, tx pgx.Tx, storeID int, barcode string) (*lockedItem, error) {
	it, err := scanLockedItem(tx.QueryRow(ctx, fmt.Sprintf(lockItemSQL, "barcode = $2"), storeID, barcode))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, notFound("item with barcode %s not found", barcode)
		}
		return nil, fmt.Errorf("failed to lock item %s: %w", barcode, err)
	}
	return it, nil
}

func scanLockedItem(row pgx.Row) (*lockedItem, error) {
	var it lockedItem
	if err := row.Scan(&it.ID, &it.Barcode, &it.Name, &it.Unit, &it.Quantity, &it.IsActive); err != nil {
		return nil, err
	}
	return &it, nil
}

// nextQuantity computes the quantity after moving qty units in dir.
func (it *lockedItem) nextQuantity(dir Direction, qty int64) (int64, error) {
	if !it.IsActive {
		return 0, &Error{Kind: KindInactiveItem, Message: fmt.Sprintf("item %s is inactive", it.Barcode)}
	}
	return it.step(dir, qty)
}

// step is nextQuantity without the active check.
func (it *lockedItem) step(dir Direction, qty int64) (int64, error) {
	if qty <= 0 {
		return 0, validation("quantity must be positive, got %d", qty)
	}
	switch dir {
	case DirectionIn:
		if qty > math.MaxInt64-it.Quantity {
			return 0, validation("quantity of %s would exceed %d: have %d, adding %d", it.Barcode, int64(math.MaxInt64), it.Quantity, qty)
		}
		return it.Quantity + qty, nil
	case DirectionOut:
		if it.Quantity < qty {
			return 0, &Error{
				Kind:    KindInsufficientStock,
				Message: fmt.Sprintf("insufficient stock for %s: have %d, need %d", it.Barcode, it.Quantity, qty),
			}
		}
		return it.Quantity - qty, nil
	}
	return 0, validation("unknown direction %q", dir)
}

// apply writes the quantity change for a locked item and returns the new quantity.
func (it *lockedItem) apply(ctx context.Context, tx pgx.Tx, dir Direction, qty int64) (int64, error) {
	next, err := it.nextQuantity(dir, qty)
	if err != nil {
		return 0, err
	}
	return it.write(ctx, tx, next)
}

// reverse undoes a recorded movement of qty units in dir. Inactive items
// accept reversals so retired items keep a correctable history.
func (it *lockedItem) reverse(ctx context.Context, tx pgx.Tx, dir Direction, qty int64) (int64, error) {
	next, err := it.step(dir.Reverse(), qty)
	if err != nil {
		return 0, err
	}
	return it.write(ctx, tx, next)
}

func (it *lockedItem) write(ctx context.Context, tx pgx.Tx, next int64) (int64, error) {
	if _, err := tx.Exec(ctx,
		"UPDATE items SET quantity = $1, updated_at = NOW() WHERE id = $2",
		next, it.ID,
	); err != nil {
		return 0, fmt.Errorf("failed to update quantity of %s: %w", it.Barcode, err)
	}
	it.Quantity = next
	return next, nil
}
