package core

import (
	"time"

	"github.com/shopspring/decimal"
)

// CompanyType distinguishes suppliers from customers.
type CompanyType string

const (
	CompanySupplier CompanyType = "SUPPLIER"
	CompanyCustomer CompanyType = "CUSTOMER"
)

func (t CompanyType) Valid() bool {
	return t == CompanySupplier || t == CompanyCustomer
}

// Company is a trading partner: a supplier or customer of the store.
type Company struct {
	ID        int         `json:"id"`
	StoreID   int         `json:"store_id"`
	Name      string      `json:"name"`
	Type      CompanyType `json:"type"`
	Contact   string      `json:"contact"`
	Phone     string      `json:"phone"`
	Address   string      `json:"address"`
	CreatedAt time.Time   `json:"created_at"`
}

// PaymentKind is the sense of a money movement with a partner.
type PaymentKind string

const (
	PaymentReceive           PaymentKind = "receive"
	PaymentPay               PaymentKind = "pay"
	PaymentOpeningReceivable PaymentKind = "opening_receivable"
	PaymentOpeningPayable    PaymentKind = "opening_payable"
)

func (k PaymentKind) Valid() bool {
	switch k {
	case PaymentReceive, PaymentPay, PaymentOpeningReceivable, PaymentOpeningPayable:
		return true
	}
	return false
}

// Payment is an immutable money movement with a partner.
type Payment struct {
	ID          int             `json:"id"`
	StoreID     int             `json:"store_id"`
	CompanyID   int             `json:"company_id"`
	CompanyName string          `json:"company_name"`
	CompanyType CompanyType     `json:"company_type"`
	Amount      decimal.Decimal `json:"amount"`
	Kind        PaymentKind     `json:"kind"`
	Notes       string          `json:"notes"`
	OperatorID  int             `json:"operator_id"`
	CreatedAt   time.Time       `json:"created_at"`
}

// CreateCompanyInput holds a new partner and its optional opening balances.
type CreateCompanyInput struct {
	Name              string          `json:"name"`
	Type              CompanyType     `json:"type"`
	Contact           string          `json:"contact"`
	Phone             string          `json:"phone"`
	Address           string          `json:"address"`
	OpeningReceivable decimal.Decimal `json:"opening_receivable"`
	OpeningPayable    decimal.Decimal `json:"opening_payable"`
}

// UpdateCompanyInput holds editable partner attributes. Nil fields are left unchanged.
type UpdateCompanyInput struct {
	Name    *string `json:"name,omitempty"`
	Contact *string `json:"contact,omitempty"`
	Phone   *string `json:"phone,omitempty"`
	Address *string `json:"address,omitempty"`
}

// CompanyFilter narrows company listings.
type CompanyFilter struct {
	Type   CompanyType
	Search string
	Page   PageRequest
}

// RecordPaymentInput is money received from or paid to a partner.
type RecordPaymentInput struct {
	CompanyID int             `json:"company_id"`
	Kind      PaymentKind     `json:"kind"`
	Amount    decimal.Decimal `json:"amount"`
	Notes     string          `json:"notes"`
}

// PaymentFilter narrows payment listings.
type PaymentFilter struct {
	CompanyID   int
	CompanyType CompanyType
	Kind        PaymentKind
	Period      Period
	Page        PageRequest
}

// ActivityKind labels a row of a partner's activity history.
type ActivityKind string

const (
	ActivityTransaction ActivityKind = "transaction"
	ActivityPayment     ActivityKind = "payment"
)

// CompanyActivity is one ledger entry or payment involving a partner.
// Type is the transaction direction or the payment kind.
type CompanyActivity struct {
	Kind      ActivityKind     `json:"kind"`
	ID        int              `json:"id"`
	Type      string           `json:"type"`
	Barcode   *string          `json:"barcode,omitempty"`
	ItemName  *string          `json:"item_name,omitempty"`
	Quantity  *int64           `json:"quantity,omitempty"`
	Price     *decimal.Decimal `json:"price,omitempty"`
	Amount    decimal.Decimal  `json:"amount"`
	OrderNo   *string          `json:"order_no,omitempty"`
	Notes     string           `json:"notes"`
	CreatedAt time.Time        `json:"created_at"`
}
