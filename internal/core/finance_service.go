package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// OtherKind classifies money movements not tied to stock or partners.
type OtherKind string

const (
	OtherIncome  OtherKind = "income"
	OtherExpense OtherKind = "expense"
)

func (k OtherKind) Valid() bool { return k == OtherIncome || k == OtherExpense }

// OtherTransaction is income or expense outside the stock ledger (rent, fees, ...).
type OtherTransaction struct {
	ID              int             `json:"id"`
	StoreID         int             `json:"store_id"`
	Kind            OtherKind       `json:"kind"`
	Amount          decimal.Decimal `json:"amount"`
	TransactionDate time.Time       `json:"transaction_date"`
	Notes           string          `json:"notes"`
	OperatorID      int             `json:"operator_id"`
	OperatorName    string          `json:"operator_name"`
	CreatedAt       time.Time       `json:"created_at"`
}

type RecordOtherInput struct {
	Kind            OtherKind       `json:"kind"`
	Amount          decimal.Decimal `json:"amount"`
	TransactionDate time.Time       `json:"transaction_date"`
	Notes           string          `json:"notes"`
}

type OtherFilter struct {
	Kind   OtherKind
	Period Period
	Page   PageRequest
}

// CashProfit is the cash-basis result of a period:
// received + other income − paid − other expense.
type CashProfit struct {
	Period       Period          `json:"period"`
	Received     decimal.Decimal `json:"received"`
	Paid         decimal.Decimal `json:"paid"`
	OtherIncome  decimal.Decimal `json:"other_income"`
	OtherExpense decimal.Decimal `json:"other_expense"`
	NetProfit    decimal.Decimal `json:"net_profit"`
}

// FinanceService records money movements outside the stock ledger and
// reports cash-basis profit.
type FinanceService interface {
	RecordOtherTransaction(ctx context.Context, actor Actor, in RecordOtherInput) (*OtherTransaction, error)
	ListOtherTransactions(ctx context.Context, actor Actor, filter OtherFilter) (*Page[OtherTransaction], error)
	DeleteOtherTransaction(ctx context.Context, actor Actor, id int) error
	GetProfitStatistics(ctx context.Context, actor Actor, period Period) (*CashProfit, error)
}

type financeService struct {
	runner *TxRunner
	audit  *AuditLog
}

func NewFinanceService(runner *TxRunner, audit *AuditLog) FinanceService {
	return &financeService{runner: runner, audit: audit}
}

func (s *financeService) RecordOtherTransaction(ctx context.Context, actor Actor, in RecordOtherInput) (*OtherTransaction, error) {
	if err := actor.validate(); err != nil {
		return nil, err
	}
	if !in.Kind.Valid() {
		return nil, validation("kind must be income or expense, got %q", in.Kind)
	}
	if err := validatePrice("amount", in.Amount); err != nil {
		return nil, err
	}
	if !in.Amount.IsPositive() {
		return nil, validation("amount must be positive, got %s", in.Amount)
	}
	if in.TransactionDate.IsZero() {
		in.TransactionDate = time.Now()
	}

	ot := OtherTransaction{StoreID: actor.StoreID, Kind: in.Kind, Amount: in.Amount, Notes: in.Notes, OperatorID: actor.OperatorID}
	err := s.runner.InTx(ctx, "record_other_transaction", func(ctx context.Context, tx pgx.Tx) error {
		return tx.QueryRow(ctx, `
			INSERT INTO other_transactions (store_id, kind, amount, transaction_date, notes, operator_id)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING id, transaction_date, created_at
		`, actor.StoreID, string(in.Kind), in.Amount, in.TransactionDate, in.Notes, actor.OperatorID,
		).Scan(&ot.ID, &ot.TransactionDate, &ot.CreatedAt)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to record %s: %w", in.Kind, err)
	}
	return &ot, nil
}

func (s *financeService) ListOtherTransactions(ctx context.Context, actor Actor, filter OtherFilter) (*Page[OtherTransaction], error) {
	if err := filter.Period.validate(); err != nil {
		return nil, err
	}
	if filter.Kind != "" && !filter.Kind.Valid() {
		return nil, validation("unknown kind %q", filter.Kind)
	}
	page := filter.Page.normalize()
	from, to := filter.Period.args()

	const where = `
		FROM other_transactions o
		LEFT JOIN users u ON u.id = o.operator_id
		WHERE o.store_id = $1
		  AND ($2 = '' OR o.kind = $2)
		  AND ($3::timestamptz IS NULL OR o.transaction_date >= $3::date)
		  AND ($4::timestamptz IS NULL OR o.transaction_date <= $4::date)
	`
	args := []any{actor.StoreID, string(filter.Kind), from, to}

	result := &Page[OtherTransaction]{Items: []OtherTransaction{}, Offset: page.Offset, Limit: page.Limit}
	err := s.runner.InReadTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		if err := tx.QueryRow(ctx, "SELECT count(*)"+where, args...).Scan(&result.Total); err != nil {
			return fmt.Errorf("failed to count other transactions: %w", err)
		}
		rows, err := tx.Query(ctx, `
			SELECT o.id, o.store_id, o.kind, o.amount, o.transaction_date, o.notes, o.operator_id,
			       COALESCE(u.name, ''), o.created_at
		`+where+`
			ORDER BY o.transaction_date DESC, o.id DESC
			OFFSET $5 LIMIT $6
		`, append(args, page.Offset, page.Limit)...)
		if err != nil {
			return fmt.Errorf("failed to query other transactions: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			var ot OtherTransaction
			var kind string
			if err := rows.Scan(&ot.ID, &ot.StoreID, &kind, &ot.Amount, &ot.TransactionDate, &ot.Notes,
				&ot.OperatorID, &ot.OperatorName, &ot.CreatedAt); err != nil {
				return fmt.Errorf("failed to scan other transaction: %w", err)
			}
			ot.Kind = OtherKind(kind)
			result.Items = append(result.Items, ot)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *financeService) DeleteOtherTransaction(ctx context.Context, actor Actor, id int) error {
	if err := actor.validate(); err != nil {
		return err
	}
	return s.runner.InTx(ctx, "delete_other_transaction", func(ctx context.Context, tx pgx.Tx) error {
		var kind string
		var amount decimal.Decimal
		var date time.Time
		err := tx.QueryRow(ctx, `
			DELETE FROM other_transactions
			WHERE id = $1 AND store_id = $2
			RETURNING kind, amount, transaction_date
		`, id, actor.StoreID).Scan(&kind, &amount, &date)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return notFound("other transaction %d not found", id)
			}
			return fmt.Errorf("failed to delete other transaction %d: %w", id, err)
		}
		return s.audit.RecordTx(ctx, tx, actor, OpDeleteOtherTransaction, map[string]any{
			"id":               id,
			"kind":             kind,
			"amount":           amount,
			"transaction_date": date.Format(time.DateOnly),
		})
	})
}

func (s *financeService) GetProfitStatistics(ctx context.Context, actor Actor, period Period) (*CashProfit, error) {
	if err := period.validate(); err != nil {
		return nil, err
	}
	from, to := period.args()

	res := &CashProfit{Period: period}
	err := s.runner.InReadTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		if err := tx.QueryRow(ctx, `
			SELECT
				COALESCE(SUM(amount) FILTER (WHERE kind = 'receive'), 0),
				COALESCE(SUM(amount) FILTER (WHERE kind = 'pay'), 0)
			FROM payments
			WHERE store_id = $1
			  AND ($2::timestamptz IS NULL OR created_at >= $2)
			  AND ($3::timestamptz IS NULL OR created_at <= $3)
		`, actor.StoreID, from, to).Scan(&res.Received, &res.Paid); err != nil {
			return fmt.Errorf("failed to sum payments: %w", err)
		}
		if err := tx.QueryRow(ctx, `
			SELECT
				COALESCE(SUM(amount) FILTER (WHERE kind = 'income'), 0),
				COALESCE(SUM(amount) FILTER (WHERE kind = 'expense'), 0)
			FROM other_transactions
			WHERE store_id = $1
			  AND ($2::timestamptz IS NULL OR transaction_date >= $2::date)
			  AND ($3::timestamptz IS NULL OR transaction_date <= $3::date)
		`, actor.StoreID, from, to).Scan(&res.OtherIncome, &res.OtherExpense); err != nil {
			return fmt.Errorf("failed to sum other transactions: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	res.NetProfit = res.Received.Add(res.OtherIncome).Sub(res.Paid).Sub(res.OtherExpense)
	return res, nil
}
