package app

import (
	"fmt"
	"time"

	"stock-ledger/internal/core"
)

// DateRange is an inclusive range of dates as received from adapters.
// Each bound is empty (unbounded), YYYY-MM-DD, or RFC 3339. A date-only
// upper bound covers the whole day.
type DateRange struct {
	From string
	To   string
}

func (d DateRange) period() (core.Period, error) {
	var p core.Period
	if d.From != "" {
		from, _, err := parseBound("from", d.From)
		if err != nil {
			return p, err
		}
		p.From = from
	}
	if d.To != "" {
		to, dateOnly, err := parseBound("to", d.To)
		if err != nil {
			return p, err
		}
		if dateOnly {
			to = to.AddDate(0, 0, 1).Add(-time.Nanosecond)
		}
		p.To = to
	}
	return p, nil
}

func parseBound(field, v string) (time.Time, bool, error) {
	if t, err := time.ParseInLocation(time.DateOnly, v, time.Local); err == nil {
		return t, true, nil
	}
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t, false, nil
	}
	return time.Time{}, false, &core.Error{
		Kind:    core.KindValidation,
		Message: fmt.Sprintf("%s must be YYYY-MM-DD or RFC 3339, got %q", field, v),
	}
}

// ListItemsRequest is the input for ListItems.
type ListItemsRequest struct {
	Search   string
	Active   *bool
	LowStock bool
	Page     core.PageRequest
}

// ListTransactionsRequest is the input for ListTransactions.
type ListTransactionsRequest struct {
	Barcode   string
	ItemID    int
	Direction core.Direction
	CompanyID int
	OrderID   int
	Dates     DateRange
	Page      core.PageRequest
}

// PerformanceRequest is the input for GetPerformanceStats. Limit caps each
// ranking; zero means every item sold.
type PerformanceRequest struct {
	Dates DateRange
	Limit int
}

// ListPaymentsRequest is the input for ListPayments.
type ListPaymentsRequest struct {
	CompanyID   int
	CompanyType core.CompanyType
	Kind        core.PaymentKind
	Dates       DateRange
	Page        core.PageRequest
}

// BalanceRequest selects a single partner (CompanyID) or a filtered list.
type BalanceRequest struct {
	CompanyID *int
	Type      core.CompanyType
	Search    string
	Page      core.PageRequest
}

// ListOtherTransactionsRequest is the input for ListOtherTransactions.
type ListOtherTransactionsRequest struct {
	Kind  core.OtherKind
	Dates DateRange
	Page  core.PageRequest
}

// ListOperationLogsRequest is the input for ListOperationLogs.
type ListOperationLogsRequest struct {
	OperationType string
	Dates         DateRange
	Page          core.PageRequest
}
