package core

import (
	"cmp"
	"slices"
	"time"

	"github.com/shopspring/decimal"
)

// Lot is an inbound ledger entry seen as a FIFO cost layer.
type Lot struct {
	Quantity int64
	Price    decimal.Decimal
}

// CostResult is the FIFO cost of a quantity sold. Uncovered counts units
// sold beyond every available lot; they carry no cost.
type CostResult struct {
	Cost      decimal.Decimal
	Covered   int64
	Uncovered int64
}

// FIFOCost values quantity units at the oldest unconsumed lots. The first
// consumedBefore units of the lots were already sold and are skipped.
// Lots must be in arrival order.
func FIFOCost(lots []Lot, consumedBefore, quantity int64) CostResult {
	res := CostResult{Cost: decimal.Zero}
	skip, need := consumedBefore, quantity
	for _, lot := range lots {
		if need <= 0 {
			break
		}
		avail := lot.Quantity
		if skip > 0 {
			used := min(skip, avail)
			skip -= used
			avail -= used
		}
		if avail <= 0 {
			continue
		}
		take := min(need, avail)
		res.Cost = res.Cost.Add(lot.Price.Mul(decimal.NewFromInt(take)))
		res.Covered += take
		need -= take
	}
	if need > 0 {
		res.Uncovered = need
	}
	return res
}

// RemainingLots returns the lots left after the first consumed units are sold.
func RemainingLots(lots []Lot, consumed int64) []Lot {
	var out []Lot
	for _, lot := range lots {
		avail := lot.Quantity
		if consumed > 0 {
			used := min(consumed, avail)
			consumed -= used
			avail -= used
		}
		if avail > 0 {
			out = append(out, Lot{Quantity: avail, Price: lot.Price})
		}
	}
	return out
}

// ProfitRate is profit / cost × 100 rounded to two places, or 0 when cost is 0.
func ProfitRate(profit, cost decimal.Decimal) decimal.Decimal {
	if cost.IsZero() {
		return decimal.Zero
	}
	return profit.Div(cost).Mul(decimal.NewFromInt(100)).Round(2)
}

// Movement is a ledger entry as seen by the costing engine.
type Movement struct {
	ID        int
	ItemID    int
	Barcode   string
	Name      string
	Direction Direction
	Quantity  int64
	Price     decimal.Decimal
	Total     decimal.Decimal
	At        time.Time
}

// ItemPerformance is the costed result for one item over a period.
type ItemPerformance struct {
	ItemID            int             `json:"item_id"`
	Barcode           string          `json:"barcode"`
	Name              string          `json:"name"`
	QuantitySold      int64           `json:"quantity_sold"`
	Revenue           decimal.Decimal `json:"revenue"`
	Cost              decimal.Decimal `json:"cost"`
	Profit            decimal.Decimal `json:"profit"`
	ProfitRate        decimal.Decimal `json:"profit_rate"`
	Purchased         decimal.Decimal `json:"purchased"`
	UncoveredQuantity int64           `json:"uncovered_quantity"`
}

type ProfitRanking struct {
	Barcode      string          `json:"barcode"`
	Name         string          `json:"name"`
	TotalCost    decimal.Decimal `json:"total_cost"`
	TotalRevenue decimal.Decimal `json:"total_revenue"`
	Profit       decimal.Decimal `json:"profit"`
	ProfitRate   decimal.Decimal `json:"profit_rate"`
}

type SalesRanking struct {
	Barcode  string          `json:"barcode"`
	Name     string          `json:"name"`
	Quantity int64           `json:"quantity"`
	Revenue  decimal.Decimal `json:"revenue"`
}

type PerformanceSummary struct {
	TotalPurchase decimal.Decimal `json:"total_purchase"`
	TotalSales    decimal.Decimal `json:"total_sales"`
	TotalCost     decimal.Decimal `json:"total_cost"`
	TotalProfit   decimal.Decimal `json:"total_profit"`
	ProfitRate    decimal.Decimal `json:"profit_rate"`
}

// PerformanceReport is the profit and sales picture of a period.
type PerformanceReport struct {
	Period        Period             `json:"period"`
	ProfitRanking []ProfitRanking    `json:"profit_rankings"`
	SalesRanking  []SalesRanking     `json:"sales_rankings"`
	Summary       PerformanceSummary `json:"summary"`
	Items         []ItemPerformance  `json:"-"`
}

func inPeriod(at time.Time, p Period) bool {
	if !p.From.IsZero() && at.Before(p.From) {
		return false
	}
	if !p.To.IsZero() && at.After(p.To) {
		return false
	}
	return true
}

// groupMovements splits movements per item, each group in (time, id) order.
func groupMovements(movements []Movement) [][]Movement {
	byItem := make(map[int][]Movement)
	var order []int
	for _, m := range movements {
		if _, ok := byItem[m.ItemID]; !ok {
			order = append(order, m.ItemID)
		}
		byItem[m.ItemID] = append(byItem[m.ItemID], m)
	}
	slices.Sort(order)

	groups := make([][]Movement, 0, len(order))
	for _, id := range order {
		g := byItem[id]
		slices.SortStableFunc(g, func(a, b Movement) int {
			if c := a.At.Compare(b.At); c != 0 {
				return c
			}
			return cmp.Compare(a.ID, b.ID)
		})
		groups = append(groups, g)
	}
	return groups
}

// costItem prices one item's sales within p at FIFO. Units sold before p
// first deplete the oldest lots.
func costItem(ms []Movement, p Period) ItemPerformance {
	ip := ItemPerformance{
		ItemID: ms[0].ItemID, Barcode: ms[0].Barcode, Name: ms[0].Name,
		Revenue: decimal.Zero, Cost: decimal.Zero, Profit: decimal.Zero,
		ProfitRate: decimal.Zero, Purchased: decimal.Zero,
	}
	var lots []Lot
	var soldBefore int64
	for _, m := range ms {
		if !p.To.IsZero() && m.At.After(p.To) {
			continue
		}
		switch m.Direction {
		case DirectionIn:
			lots = append(lots, Lot{Quantity: m.Quantity, Price: m.Price})
			if inPeriod(m.At, p) {
				ip.Purchased = ip.Purchased.Add(m.Total)
			}
		case DirectionOut:
			if !p.From.IsZero() && m.At.Before(p.From) {
				soldBefore += m.Quantity
				continue
			}
			ip.QuantitySold += m.Quantity
			ip.Revenue = ip.Revenue.Add(m.Total)
		}
	}
	cost := FIFOCost(lots, soldBefore, ip.QuantitySold)
	ip.Cost = cost.Cost
	ip.UncoveredQuantity = cost.Uncovered
	ip.Profit = ip.Revenue.Sub(ip.Cost)
	ip.ProfitRate = ProfitRate(ip.Profit, ip.Cost)
	return ip
}

// BuildPerformance computes per-item FIFO profit and the rankings over p.
// limit caps each ranking; limit <= 0 keeps every item with sales.
func BuildPerformance(movements []Movement, p Period, limit int) PerformanceReport {
	report := PerformanceReport{
		Period:        p,
		ProfitRanking: []ProfitRanking{},
		SalesRanking:  []SalesRanking{},
		Summary: PerformanceSummary{
			TotalPurchase: decimal.Zero, TotalSales: decimal.Zero, TotalCost: decimal.Zero,
			TotalProfit: decimal.Zero, ProfitRate: decimal.Zero,
		},
	}

	var sold []ItemPerformance
	for _, g := range groupMovements(movements) {
		ip := costItem(g, p)
		report.Items = append(report.Items, ip)
		report.Summary.TotalPurchase = report.Summary.TotalPurchase.Add(ip.Purchased)
		report.Summary.TotalSales = report.Summary.TotalSales.Add(ip.Revenue)
		report.Summary.TotalCost = report.Summary.TotalCost.Add(ip.Cost)
		if ip.QuantitySold > 0 {
			sold = append(sold, ip)
		}
	}
	report.Summary.TotalProfit = report.Summary.TotalSales.Sub(report.Summary.TotalCost)
	report.Summary.ProfitRate = ProfitRate(report.Summary.TotalProfit, report.Summary.TotalCost)

	byProfit := slices.Clone(sold)
	slices.SortStableFunc(byProfit, func(a, b ItemPerformance) int {
		if c := b.Profit.Cmp(a.Profit); c != 0 {
			return c
		}
		return cmp.Compare(a.Barcode, b.Barcode)
	})
	byRevenue := slices.Clone(sold)
	slices.SortStableFunc(byRevenue, func(a, b ItemPerformance) int {
		if c := b.Revenue.Cmp(a.Revenue); c != 0 {
			return c
		}
		return cmp.Compare(a.Barcode, b.Barcode)
	})
	if limit > 0 {
		byProfit = byProfit[:min(limit, len(byProfit))]
		byRevenue = byRevenue[:min(limit, len(byRevenue))]
	}

	for _, ip := range byProfit {
		report.ProfitRanking = append(report.ProfitRanking, ProfitRanking{
			Barcode: ip.Barcode, Name: ip.Name, TotalCost: ip.Cost, TotalRevenue: ip.Revenue,
			Profit: ip.Profit, ProfitRate: ip.ProfitRate,
		})
	}
	for _, ip := range byRevenue {
		report.SalesRanking = append(report.SalesRanking, SalesRanking{
			Barcode: ip.Barcode, Name: ip.Name, Quantity: ip.QuantitySold, Revenue: ip.Revenue,
		})
	}
	return report
}

// StockValuation values the units still on hand at their FIFO lot prices.
func StockValuation(ms []Movement) (quantity int64, value decimal.Decimal) {
	var lots []Lot
	var out int64
	for _, m := range ms {
		switch m.Direction {
		case DirectionIn:
			lots = append(lots, Lot{Quantity: m.Quantity, Price: m.Price})
		case DirectionOut:
			out += m.Quantity
		}
	}
	value = decimal.Zero
	for _, lot := range RemainingLots(lots, out) {
		quantity += lot.Quantity
		value = value.Add(lot.Price.Mul(decimal.NewFromInt(lot.Quantity)))
	}
	return quantity, value
}
