package core

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

// Operation types written to the audit log.
const (
	OpCancelTransaction      = "cancel_transaction"
	OpPurgeItem              = "purge_item"
	OpCancelOrder            = "cancel_order"
	OpRecordPayment          = "record_payment"
	OpDeleteOtherTransaction = "delete_other_transaction"
)

// AuditRecord is one entry of the operation log.
type AuditRecord struct {
	ID            int             `json:"id"`
	StoreID       int             `json:"store_id"`
	OperatorID    int             `json:"operator_id"`
	OperatorName  string          `json:"operator_name"`
	OperationType string          `json:"operation_type"`
	Details       json.RawMessage `json:"details"`
	CreatedAt     time.Time       `json:"created_at"`
}

// AuditFilter narrows AuditLog.List.
type AuditFilter struct {
	OperationType string
	Period        Period
	Page          PageRequest
}

// AuditLog records administrative and corrective actions. Records are
// written inside the unit of work they describe.
type AuditLog struct {
	runner *TxRunner
}

func NewAuditLog(runner *TxRunner) *AuditLog {
	return &AuditLog{runner: runner}
}

// RecordTx appends an audit record within tx. details is stored as JSON.
func (a *AuditLog) RecordTx(ctx context.Context, tx pgx.Tx, actor Actor, operationType string, details any) error {
	payload, err := json.Marshal(details)
	if err != nil {
		return fmt.Errorf("failed to encode audit details: %w", err)
	}
	if _, err := tx.Exec(ctx, `
		INSERT INTO operation_logs (store_id, operator_id, operation_type, details)
		VALUES ($1, $2, $3, $4)
	`, actor.StoreID, actor.OperatorID, operationType, payload); err != nil {
		return fmt.Errorf("failed to write audit record: %w", err)
	}
	return nil
}

// List returns audit records in scope, newest first.
func (a *AuditLog) List(ctx context.Context, actor Actor, filter AuditFilter) (*Page[AuditRecord], error) {
	if err := filter.Period.validate(); err != nil {
		return nil, err
	}
	page := filter.Page.normalize()
	from, to := filter.Period.args()

	const where = `
		WHERE l.store_id = $1
		  AND ($2 = '' OR l.operation_type = $2)
		  AND ($3::timestamptz IS NULL OR l.created_at >= $3)
		  AND ($4::timestamptz IS NULL OR l.created_at <= $4)
	`
	result := &Page[AuditRecord]{Items: []AuditRecord{}, Offset: page.Offset, Limit: page.Limit}
	err := a.runner.InReadTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		if err := tx.QueryRow(ctx, "SELECT count(*) FROM operation_logs l"+where,
			actor.StoreID, filter.OperationType, from, to,
		).Scan(&result.Total); err != nil {
			return fmt.Errorf("failed to count audit records: %w", err)
		}

		rows, err := tx.Query(ctx, `
			SELECT l.id, l.store_id, l.operator_id, COALESCE(u.name, ''), l.operation_type, l.details, l.created_at
			FROM operation_logs l
			LEFT JOIN users u ON u.id = l.operator_id
		`+where+`
			ORDER BY l.created_at DESC, l.id DESC
			OFFSET $5 LIMIT $6
		`, actor.StoreID, filter.OperationType, from, to, page.Offset, page.Limit)
		if err != nil {
			return fmt.Errorf("failed to query audit records: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			var r AuditRecord
			if err := rows.Scan(&r.ID, &r.StoreID, &r.OperatorID, &r.OperatorName, &r.OperationType, &r.Details, &r.CreatedAt); err != nil {
				return fmt.Errorf("failed to scan audit record: %w", err)
			}
			result.Items = append(result.Items, r)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
