package core

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

func orderPrefix(dir Direction) string {
	if dir == DirectionIn {
		return "I"
	}
	return "O"
}

// formatOrderNumber renders prefix + YYYYMMDD + sequence, e.g. I202610170001.
// Sequences past 9999 widen rather than wrap.
func formatOrderNumber(dir Direction, day time.Time, seq int64) string {
	return fmt.Sprintf("%s%s%04d", orderPrefix(dir), day.Format("20060102"), seq)
}

// nextOrderNumberTx allocates the next per-day order number for dir.
// The upsert takes a row lock on the day's sequence, so concurrent creators
// serialize and never observe the same number.
func nextOrderNumberTx(ctx context.Context, tx pgx.Tx, dir Direction, now time.Time) (string, error) {
	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	var seq int64
	err := tx.QueryRow(ctx, `
		INSERT INTO order_sequences (prefix, day, last_number)
		VALUES ($1, $2, 1)
		ON CONFLICT (prefix, day)
		DO UPDATE SET last_number = order_sequences.last_number + 1
		RETURNING last_number
	`, orderPrefix(dir), day).Scan(&seq)
	if err != nil {
		return "", fmt.Errorf("failed to allocate order number: %w", err)
	}
	return formatOrderNumber(dir, now, seq), nil
}
