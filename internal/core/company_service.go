package core

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
)

// CompanyService manages trading partners and the payments exchanged with them.
type CompanyService interface {
	// CreateCompany registers a partner. Non-zero opening balances are recorded
	// as opening payments in the same unit of work.
	CreateCompany(ctx context.Context, actor Actor, in CreateCompanyInput) (*Company, error)
	UpdateCompany(ctx context.Context, actor Actor, companyID int, in UpdateCompanyInput) (*Company, error)
	GetCompany(ctx context.Context, actor Actor, companyID int) (*Company, error)
	ListCompanies(ctx context.Context, actor Actor, filter CompanyFilter) (*Page[Company], error)

	// RecordPayment stores money received from (receive) or paid to (pay) a partner.
	RecordPayment(ctx context.Context, actor Actor, in RecordPaymentInput) (*Payment, error)
	ListPayments(ctx context.Context, actor Actor, filter PaymentFilter) (*Page[Payment], error)
	// ListActivity merges a partner's ledger entries and payments, newest first.
	ListActivity(ctx context.Context, actor Actor, companyID int, page PageRequest) (*Page[CompanyActivity], error)
}

type companyService struct {
	runner *TxRunner
	audit  *AuditLog
}

func NewCompanyService(runner *TxRunner, audit *AuditLog) CompanyService {
	return &companyService{runner: runner, audit: audit}
}

const companyColumns = `id, store_id, name, type, contact, phone, address, created_at`

func scanCompany(row pgx.Row) (*Company, error) {
	var c Company
	var typ string
	if err := row.Scan(&c.ID, &c.StoreID, &c.Name, &typ, &c.Contact, &c.Phone, &c.Address, &c.CreatedAt); err != nil {
		return nil, err
	}
	c.Type = CompanyType(typ)
	return &c, nil
}

// getCompanyTx loads a partner, confined to the store scope.
func getCompanyTx(ctx context.Context, q pgxQuerier, storeID, companyID int) (*Company, error) {
	c, err := scanCompany(q.QueryRow(ctx,
		"SELECT "+companyColumns+" FROM companies WHERE id = $1 AND store_id = $2", companyID, storeID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, notFound("company %d not found", companyID)
		}
		return nil, fmt.Errorf("failed to fetch company %d: %w", companyID, err)
	}
	return c, nil
}

func duplicateCompanyName(err error, name string) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == sqlStateUniqueViolation {
		return &Error{Kind: KindValidation, Code: ErrDuplicateName.Code, Message: fmt.Sprintf("company name %q is already in use", name), Err: err}
	}
	return err
}

func (s *companyService) CreateCompany(ctx context.Context, actor Actor, in CreateCompanyInput) (*Company, error) {
	if err := actor.validate(); err != nil {
		return nil, err
	}
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" {
		return nil, validation("company name is required")
	}
	if !in.Type.Valid() {
		return nil, validation("company type must be SUPPLIER or CUSTOMER, got %q", in.Type)
	}
	if err := validatePrice("opening receivable", in.OpeningReceivable); err != nil {
		return nil, err
	}
	if err := validatePrice("opening payable", in.OpeningPayable); err != nil {
		return nil, err
	}

	var company *Company
	err := s.runner.InTx(ctx, "create_company", func(ctx context.Context, tx pgx.Tx) error {
		var err error
		company, err = scanCompany(tx.QueryRow(ctx, `
			INSERT INTO companies (store_id, name, type, contact, phone, address)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING `+companyColumns,
			actor.StoreID, in.Name, string(in.Type), in.Contact, in.Phone, in.Address))
		if err != nil {
			return duplicateCompanyName(err, in.Name)
		}

		openings := []struct {
			kind   PaymentKind
			amount decimal.Decimal
		}{
			{PaymentOpeningReceivable, in.OpeningReceivable},
			{PaymentOpeningPayable, in.OpeningPayable},
		}
		for _, o := range openings {
			if o.amount.IsZero() {
				continue
			}
			if _, err := insertPaymentTx(ctx, tx, actor, company.ID, o.kind, o.amount, "opening balance"); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return company, nil
}

func (s *companyService) UpdateCompany(ctx context.Context, actor Actor, companyID int, in UpdateCompanyInput) (*Company, error) {
	if err := actor.validate(); err != nil {
		return nil, err
	}
	if in.Name != nil {
		trimmed := strings.TrimSpace(*in.Name)
		if trimmed == "" {
			return nil, validation("company name cannot be empty")
		}
		in.Name = &trimmed
	}

	var company *Company
	err := s.runner.InTx(ctx, "update_company", func(ctx context.Context, tx pgx.Tx) error {
		var err error
		company, err = scanCompany(tx.QueryRow(ctx, `
			UPDATE companies SET
				name = COALESCE($3, name),
				contact = COALESCE($4, contact),
				phone = COALESCE($5, phone),
				address = COALESCE($6, address)
			WHERE id = $1 AND store_id = $2
			RETURNING `+companyColumns,
			companyID, actor.StoreID, in.Name, in.Contact, in.Phone, in.Address))
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return notFound("company %d not found", companyID)
			}
			name := ""
			if in.Name != nil {
				name = *in.Name
			}
			return duplicateCompanyName(err, name)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return company, nil
}

func (s *companyService) GetCompany(ctx context.Context, actor Actor, companyID int) (*Company, error) {
	return getCompanyTx(ctx, s.runner.Pool(), actor.StoreID, companyID)
}

func (s *companyService) ListCompanies(ctx context.Context, actor Actor, filter CompanyFilter) (*Page[Company], error) {
	if filter.Type != "" && !filter.Type.Valid() {
		return nil, validation("unknown company type %q", filter.Type)
	}
	page := filter.Page.normalize()

	const where = `
		WHERE store_id = $1
		  AND ($2 = '' OR type = $2)
		  AND ($3 = '' OR name ILIKE '%' || $3 || '%' OR contact ILIKE '%' || $3 || '%')
	`
	args := []any{actor.StoreID, string(filter.Type), strings.TrimSpace(filter.Search)}

	result := &Page[Company]{Items: []Company{}, Offset: page.Offset, Limit: page.Limit}
	err := s.runner.InReadTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		if err := tx.QueryRow(ctx, "SELECT count(*) FROM companies"+where, args...).Scan(&result.Total); err != nil {
			return fmt.Errorf("failed to count companies: %w", err)
		}
		rows, err := tx.Query(ctx, "SELECT "+companyColumns+" FROM companies"+where+
			" ORDER BY name OFFSET $4 LIMIT $5", append(args, page.Offset, page.Limit)...)
		if err != nil {
			return fmt.Errorf("failed to query companies: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			c, err := scanCompany(rows)
			if err != nil {
				return fmt.Errorf("failed to scan company: %w", err)
			}
			result.Items = append(result.Items, *c)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func insertPaymentTx(ctx context.Context, tx pgx.Tx, actor Actor, companyID int, kind PaymentKind, amount decimal.Decimal, notes string) (*Payment, error) {
	p := Payment{StoreID: actor.StoreID, CompanyID: companyID, Amount: amount, Kind: kind, Notes: notes, OperatorID: actor.OperatorID}
	err := tx.QueryRow(ctx, `
		INSERT INTO payments (store_id, company_id, amount, kind, notes, operator_id)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at
	`, p.StoreID, p.CompanyID, p.Amount, string(p.Kind), p.Notes, p.OperatorID).Scan(&p.ID, &p.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to record %s payment: %w", kind, err)
	}
	return &p, nil
}

func (s *companyService) RecordPayment(ctx context.Context, actor Actor, in RecordPaymentInput) (*Payment, error) {
	if err := actor.validate(); err != nil {
		return nil, err
	}
	if in.Kind != PaymentReceive && in.Kind != PaymentPay {
		return nil, validation("payment kind must be receive or pay, got %q", in.Kind)
	}
	if err := validatePrice("amount", in.Amount); err != nil {
		return nil, err
	}
	if !in.Amount.IsPositive() {
		return nil, validation("amount must be positive, got %s", in.Amount)
	}

	var payment *Payment
	err := s.runner.InTx(ctx, "record_payment", func(ctx context.Context, tx pgx.Tx) error {
		company, err := getCompanyTx(ctx, tx, actor.StoreID, in.CompanyID)
		if err != nil {
			return err
		}
		payment, err = insertPaymentTx(ctx, tx, actor, company.ID, in.Kind, in.Amount, in.Notes)
		if err != nil {
			return err
		}
		payment.CompanyName = company.Name
		payment.CompanyType = company.Type
		return s.audit.RecordTx(ctx, tx, actor, OpRecordPayment, map[string]any{
			"payment_id":   payment.ID,
			"company_id":   company.ID,
			"company_name": company.Name,
			"kind":         payment.Kind,
			"amount":       payment.Amount,
		})
	})
	if err != nil {
		return nil, err
	}
	return payment, nil
}

func (s *companyService) ListPayments(ctx context.Context, actor Actor, filter PaymentFilter) (*Page[Payment], error) {
	if err := filter.Period.validate(); err != nil {
		return nil, err
	}
	if filter.Kind != "" && !filter.Kind.Valid() {
		return nil, validation("unknown payment kind %q", filter.Kind)
	}
	if filter.CompanyType != "" && !filter.CompanyType.Valid() {
		return nil, validation("unknown company type %q", filter.CompanyType)
	}
	page := filter.Page.normalize()
	from, to := filter.Period.args()

	const where = `
		FROM payments p
		JOIN companies c ON c.id = p.company_id
		WHERE p.store_id = $1
		  AND ($2 = 0 OR p.company_id = $2)
		  AND ($3 = '' OR c.type = $3)
		  AND ($4 = '' OR p.kind = $4)
		  AND ($5::timestamptz IS NULL OR p.created_at >= $5)
		  AND ($6::timestamptz IS NULL OR p.created_at <= $6)
	`
	args := []any{actor.StoreID, filter.CompanyID, string(filter.CompanyType), string(filter.Kind), from, to}

	result := &Page[Payment]{Items: []Payment{}, Offset: page.Offset, Limit: page.Limit}
	err := s.runner.InReadTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		if err := tx.QueryRow(ctx, "SELECT count(*)"+where, args...).Scan(&result.Total); err != nil {
			return fmt.Errorf("failed to count payments: %w", err)
		}
		rows, err := tx.Query(ctx, `
			SELECT p.id, p.store_id, p.company_id, c.name, c.type, p.amount, p.kind, p.notes, p.operator_id, p.created_at
		`+where+`
			ORDER BY p.created_at DESC, p.id DESC
			OFFSET $7 LIMIT $8
		`, append(args, page.Offset, page.Limit)...)
		if err != nil {
			return fmt.Errorf("failed to query payments: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			var p Payment
			var typ, kind string
			if err := rows.Scan(&p.ID, &p.StoreID, &p.CompanyID, &p.CompanyName, &typ, &p.Amount,
				&kind, &p.Notes, &p.OperatorID, &p.CreatedAt); err != nil {
				return fmt.Errorf("failed to scan payment: %w", err)
			}
			p.CompanyType = CompanyType(typ)
			p.Kind = PaymentKind(kind)
			result.Items = append(result.Items, p)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *companyService) ListActivity(ctx context.Context, actor Actor, companyID int, pageReq PageRequest) (*Page[CompanyActivity], error) {
	page := pageReq.normalize()

	const union = `
		SELECT 'transaction' AS kind, t.id, t.direction AS type, i.barcode, i.name AS item_name,
		       t.quantity, t.price, t.total AS amount, t.order_no, t.notes, t.created_at
		FROM transactions t
		JOIN items i ON i.id = t.item_id
		WHERE t.company_id = $1 AND t.store_id = $2
		UNION ALL
		SELECT 'payment', p.id, p.kind, NULL, NULL, NULL, NULL, p.amount, NULL, p.notes, p.created_at
		FROM payments p
		WHERE p.company_id = $1 AND p.store_id = $2
	`

	result := &Page[CompanyActivity]{Items: []CompanyActivity{}, Offset: page.Offset, Limit: page.Limit}
	err := s.runner.InReadTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		if _, err := getCompanyTx(ctx, tx, actor.StoreID, companyID); err != nil {
			return err
		}
		if err := tx.QueryRow(ctx, "SELECT count(*) FROM ("+union+") a", companyID, actor.StoreID).Scan(&result.Total); err != nil {
			return fmt.Errorf("failed to count company activity: %w", err)
		}
		rows, err := tx.Query(ctx, "SELECT * FROM ("+union+") a ORDER BY created_at DESC, kind, id DESC OFFSET $3 LIMIT $4",
			companyID, actor.StoreID, page.Offset, page.Limit)
		if err != nil {
			return fmt.Errorf("failed to query company activity: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			var a CompanyActivity
			var kind string
			var price decimal.NullDecimal
			if err := rows.Scan(&kind, &a.ID, &a.Type, &a.Barcode, &a.ItemName, &a.Quantity,
				&price, &a.Amount, &a.OrderNo, &a.Notes, &a.CreatedAt); err != nil {
				return fmt.Errorf("failed to scan company activity: %w", err)
			}
			a.Kind = ActivityKind(kind)
			if price.Valid {
				a.Price = &price.Decimal
			}
			result.Items = append(result.Items, a)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
