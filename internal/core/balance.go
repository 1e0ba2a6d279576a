package core

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// BalanceInputs are the aggregates a partner's position is derived from.
type BalanceInputs struct {
	OpeningReceivable decimal.Decimal `json:"opening_receivable"`
	OpeningPayable    decimal.Decimal `json:"opening_payable"`
	OutTotal          decimal.Decimal `json:"out_total"`
	InTotal           decimal.Decimal `json:"in_total"`
	Received          decimal.Decimal `json:"received"`
	Paid              decimal.Decimal `json:"paid"`
}

// Balance is a partner's derived position. Positive Net means the partner owes the store.
type Balance struct {
	Receivable decimal.Decimal `json:"receivable"`
	Payable    decimal.Decimal `json:"payable"`
	Net        decimal.Decimal `json:"net"`
}

// Reconcile derives receivable, payable and net from the aggregates:
//
//	receivable = opening receivable + Σ out totals − Σ received
//	payable    = opening payable    + Σ in totals  − Σ paid
//	net        = receivable − payable
func Reconcile(in BalanceInputs) Balance {
	receivable := in.OpeningReceivable.Add(in.OutTotal).Sub(in.Received)
	payable := in.OpeningPayable.Add(in.InTotal).Sub(in.Paid)
	return Balance{
		Receivable: receivable,
		Payable:    payable,
		Net:        receivable.Sub(payable),
	}
}

// CompanyBalance is a partner with its aggregates and derived position.
type CompanyBalance struct {
	Company Company       `json:"company"`
	Inputs  BalanceInputs `json:"inputs"`
	Balance Balance       `json:"balance"`
}

// BalanceTotals aggregates the positions of every partner in scope.
type BalanceTotals struct {
	CompanyCount    int             `json:"company_count"`
	TotalReceivable decimal.Decimal `json:"total_receivable"`
	TotalPayable    decimal.Decimal `json:"total_payable"`
	Net             decimal.Decimal `json:"net"`
}

// BalanceService computes partner positions on read from ledger entries and payments.
type BalanceService interface {
	GetCompanyBalance(ctx context.Context, actor Actor, companyID int) (*CompanyBalance, error)
	ListCompanyBalances(ctx context.Context, actor Actor, filter CompanyFilter) (*Page[CompanyBalance], error)
	GetTotals(ctx context.Context, actor Actor, companyType CompanyType) (*BalanceTotals, error)
}

type balanceService struct {
	runner *TxRunner
}

func NewBalanceService(runner *TxRunner) BalanceService {
	return &balanceService{runner: runner}
}

const balanceSelect = `
	SELECT c.id, c.store_id, c.name, c.type, c.contact, c.phone, c.address, c.created_at,
		COALESCE((SELECT SUM(amount) FROM payments p WHERE p.company_id = c.id AND p.kind = 'opening_receivable'), 0),
		COALESCE((SELECT SUM(amount) FROM payments p WHERE p.company_id = c.id AND p.kind = 'opening_payable'), 0),
		COALESCE((SELECT SUM(total) FROM transactions t WHERE t.company_id = c.id AND t.direction = 'out'), 0),
		COALESCE((SELECT SUM(total) FROM transactions t WHERE t.company_id = c.id AND t.direction = 'in'), 0),
		COALESCE((SELECT SUM(amount) FROM payments p WHERE p.company_id = c.id AND p.kind = 'receive'), 0),
		COALESCE((SELECT SUM(amount) FROM payments p WHERE p.company_id = c.id AND p.kind = 'pay'), 0)
	FROM companies c
`

func scanCompanyBalance(row pgx.Row) (*CompanyBalance, error) {
	var cb CompanyBalance
	var typ string
	c := &cb.Company
	in := &cb.Inputs
	if err := row.Scan(&c.ID, &c.StoreID, &c.Name, &typ, &c.Contact, &c.Phone, &c.Address, &c.CreatedAt,
		&in.OpeningReceivable, &in.OpeningPayable, &in.OutTotal, &in.InTotal, &in.Received, &in.Paid); err != nil {
		return nil, err
	}
	c.Type = CompanyType(typ)
	cb.Balance = Reconcile(cb.Inputs)
	return &cb, nil
}

func (s *balanceService) GetCompanyBalance(ctx context.Context, actor Actor, companyID int) (*CompanyBalance, error) {
	var cb *CompanyBalance
	err := s.runner.InReadTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		if _, err := getCompanyTx(ctx, tx, actor.StoreID, companyID); err != nil {
			return err
		}
		var err error
		cb, err = scanCompanyBalance(tx.QueryRow(ctx, balanceSelect+" WHERE c.id = $1 AND c.store_id = $2", companyID, actor.StoreID))
		if err != nil {
			return fmt.Errorf("failed to compute balance of company %d: %w", companyID, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return cb, nil
}

const balanceWhere = `
	WHERE c.store_id = $1
	  AND ($2 = '' OR c.type = $2)
	  AND ($3 = '' OR c.name ILIKE '%' || $3 || '%' OR c.contact ILIKE '%' || $3 || '%')
`

func (s *balanceService) ListCompanyBalances(ctx context.Context, actor Actor, filter CompanyFilter) (*Page[CompanyBalance], error) {
	if filter.Type != "" && !filter.Type.Valid() {
		return nil, validation("unknown company type %q", filter.Type)
	}
	page := filter.Page.normalize()
	args := []any{actor.StoreID, string(filter.Type), strings.TrimSpace(filter.Search)}

	result := &Page[CompanyBalance]{Items: []CompanyBalance{}, Offset: page.Offset, Limit: page.Limit}
	err := s.runner.InReadTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		if err := tx.QueryRow(ctx, "SELECT count(*) FROM companies c"+balanceWhere, args...).Scan(&result.Total); err != nil {
			return fmt.Errorf("failed to count companies: %w", err)
		}
		rows, err := tx.Query(ctx, balanceSelect+balanceWhere+" ORDER BY c.name OFFSET $4 LIMIT $5",
			append(args, page.Offset, page.Limit)...)
		if err != nil {
			return fmt.Errorf("failed to query company balances: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			cb, err := scanCompanyBalance(rows)
			if err != nil {
				return fmt.Errorf("failed to scan company balance: %w", err)
			}
			result.Items = append(result.Items, *cb)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *balanceService) GetTotals(ctx context.Context, actor Actor, companyType CompanyType) (*BalanceTotals, error) {
	if companyType != "" && !companyType.Valid() {
		return nil, validation("unknown company type %q", companyType)
	}

	totals := &BalanceTotals{TotalReceivable: decimal.Zero, TotalPayable: decimal.Zero, Net: decimal.Zero}
	err := s.runner.InReadTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		rows, err := tx.Query(ctx, balanceSelect+balanceWhere, actor.StoreID, string(companyType), "")
		if err != nil {
			return fmt.Errorf("failed to query company balances: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			cb, err := scanCompanyBalance(rows)
			if err != nil {
				return fmt.Errorf("failed to scan company balance: %w", err)
			}
			totals.CompanyCount++
			totals.TotalReceivable = totals.TotalReceivable.Add(cb.Balance.Receivable)
			totals.TotalPayable = totals.TotalPayable.Add(cb.Balance.Payable)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	totals.Net = totals.TotalReceivable.Sub(totals.TotalPayable)
	return totals, nil
}
