package app

import "stock-ledger/internal/core"

// BalanceResult is returned by GetCompanyBalance. Exactly one of Company or
// Balances is set; Totals accompanies the list form.
type BalanceResult struct {
	Company  *core.CompanyBalance            `json:"company,omitempty"`
	Balances *core.Page[core.CompanyBalance] `json:"balances,omitempty"`
	Totals   *core.BalanceTotals             `json:"totals,omitempty"`
}
