package core

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"pgregory.net/rapid"
)

func TestFIFOCost_ScriptedSequence(t *testing.T) {
	lots := []Lot{{Quantity: 10, Price: d("5")}, {Quantity: 10, Price: d("7")}}

	res := FIFOCost(lots, 0, 12)
	if !res.Cost.Equal(d("64")) {
		t.Errorf("cost = %s, want 64", res.Cost)
	}
	if res.Covered != 12 || res.Uncovered != 0 {
		t.Errorf("covered/uncovered = %d/%d, want 12/0", res.Covered, res.Uncovered)
	}
}

func TestFIFOCost_SkipsUnitsSoldEarlier(t *testing.T) {
	lots := []Lot{{Quantity: 10, Price: d("5")}, {Quantity: 10, Price: d("7")}}

	// 8 units already consumed: 2 left at 5, then 7s.
	res := FIFOCost(lots, 8, 5)
	if !res.Cost.Equal(d("31")) {
		t.Errorf("cost = %s, want 31", res.Cost)
	}
}

func TestFIFOCost_Uncovered(t *testing.T) {
	res := FIFOCost([]Lot{{Quantity: 3, Price: d("2.50")}}, 0, 5)
	if !res.Cost.Equal(d("7.5")) {
		t.Errorf("cost = %s, want 7.5", res.Cost)
	}
	if res.Uncovered != 2 {
		t.Errorf("uncovered = %d, want 2", res.Uncovered)
	}
}

func TestProfitRate(t *testing.T) {
	if r := ProfitRate(d("50"), decimal.Zero); !r.IsZero() {
		t.Errorf("rate with zero cost = %s, want 0", r)
	}
	if r := ProfitRate(d("36"), d("64")); !r.Equal(d("56.25")) {
		t.Errorf("rate = %s, want 56.25", r)
	}
}

var base = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func mv(id, item int, barcode string, dir Direction, qty int64, price string, day int) Movement {
	p := d(price)
	return Movement{
		ID: id, ItemID: item, Barcode: barcode, Name: "item " + barcode,
		Direction: dir, Quantity: qty, Price: p, Total: p.Mul(decimal.NewFromInt(qty)),
		At: base.AddDate(0, 0, day),
	}
}

func TestBuildPerformance_RangeAndRankings(t *testing.T) {
	movements := []Movement{
		mv(1, 1, "A", DirectionIn, 10, "5", 0),
		mv(2, 1, "A", DirectionIn, 10, "7", 1),
		mv(3, 1, "A", DirectionOut, 4, "9", 2), // before range
		mv(4, 1, "A", DirectionOut, 8, "10", 10),
		mv(5, 2, "B", DirectionIn, 5, "1", 0),
		mv(6, 2, "B", DirectionOut, 5, "3", 11),
		mv(7, 3, "C", DirectionIn, 2, "4", 12),
	}
	period := Period{From: base.AddDate(0, 0, 5), To: base.AddDate(0, 0, 20)}

	r := BuildPerformance(movements, period, 0)

	// A: 8 sold in range after 4 earlier; 6 left at 5, 2 at 7 → 44. Revenue 80.
	// B: 5 sold at cost 1 → 5. Revenue 15.
	if len(r.ProfitRanking) != 2 {
		t.Fatalf("profit ranking has %d rows, want 2", len(r.ProfitRanking))
	}
	a := r.ProfitRanking[0]
	if a.Barcode != "A" || !a.TotalCost.Equal(d("44")) || !a.Profit.Equal(d("36")) {
		t.Errorf("top profit row = %+v, want A cost 44 profit 36", a)
	}
	if r.SalesRanking[0].Barcode != "A" || r.SalesRanking[0].Quantity != 8 {
		t.Errorf("top sales row = %+v, want A x8", r.SalesRanking[0])
	}

	s := r.Summary
	if !s.TotalPurchase.Equal(d("8")) {
		t.Errorf("total purchase = %s, want 8 (only C bought in range)", s.TotalPurchase)
	}
	if !s.TotalSales.Equal(d("95")) {
		t.Errorf("total sales = %s, want 95", s.TotalSales)
	}
	if !s.TotalCost.Equal(d("49")) {
		t.Errorf("total cost = %s, want 49", s.TotalCost)
	}
	if !s.TotalProfit.Equal(d("46")) {
		t.Errorf("total profit = %s, want 46", s.TotalProfit)
	}
	if !s.ProfitRate.Equal(ProfitRate(d("46"), d("49"))) {
		t.Errorf("profit rate = %s", s.ProfitRate)
	}
}

func TestBuildPerformance_Limit(t *testing.T) {
	var ms []Movement
	for i := 1; i <= 5; i++ {
		ms = append(ms, mv(i*2, i, string(rune('A'+i)), DirectionIn, 10, "1", 0))
		ms = append(ms, mv(i*2+1, i, string(rune('A'+i)), DirectionOut, int64(i), "2", 1))
	}
	r := BuildPerformance(ms, Period{}, 3)
	if len(r.ProfitRanking) != 3 || len(r.SalesRanking) != 3 {
		t.Fatalf("rankings = %d/%d rows, want 3/3", len(r.ProfitRanking), len(r.SalesRanking))
	}
	if r.SalesRanking[0].Quantity != 5 {
		t.Errorf("top seller quantity = %d, want 5", r.SalesRanking[0].Quantity)
	}
}

func TestStockValuation(t *testing.T) {
	qty, value := StockValuation([]Movement{
		mv(1, 1, "A", DirectionIn, 10, "5", 0),
		mv(2, 1, "A", DirectionIn, 10, "7", 1),
		mv(3, 1, "A", DirectionOut, 12, "9", 2),
	})
	if qty != 8 || !value.Equal(d("56")) {
		t.Errorf("valuation = %d units / %s, want 8 / 56", qty, value)
	}
}

// unitPrices expands lots into one price per unit, in arrival order.
func unitPrices(lots []Lot) []decimal.Decimal {
	var out []decimal.Decimal
	for _, l := range lots {
		for i := int64(0); i < l.Quantity; i++ {
			out = append(out, l.Price)
		}
	}
	return out
}

func TestFIFOCost_MatchesUnitModel(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(0, 8).Draw(t, "lots")
		lots := make([]Lot, n)
		for i := range lots {
			lots[i] = Lot{
				Quantity: rapid.Int64Range(0, 15).Draw(t, "qty"),
				Price:    decimal.New(rapid.Int64Range(0, 5000).Draw(t, "cents"), -2),
			}
		}
		before := rapid.Int64Range(0, 60).Draw(t, "before")
		quantity := rapid.Int64Range(0, 60).Draw(t, "quantity")

		res := FIFOCost(lots, before, quantity)

		units := unitPrices(lots)
		want := decimal.Zero
		var covered int64
		for i := before; i < before+quantity && i < int64(len(units)); i++ {
			want = want.Add(units[i])
			covered++
		}
		if !res.Cost.Equal(want) {
			t.Fatalf("cost = %s, want %s", res.Cost, want)
		}
		if res.Covered != covered || res.Covered+res.Uncovered != quantity {
			t.Fatalf("covered %d uncovered %d, want covered %d of %d", res.Covered, res.Uncovered, covered, quantity)
		}
	})
}

func TestBuildPerformance_SummaryMatchesItems(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		var ms []Movement
		stock := map[int]int64{}
		steps := rapid.IntRange(1, 40).Draw(t, "steps")
		for i := 0; i < steps; i++ {
			item := rapid.IntRange(1, 4).Draw(t, "item")
			qty := rapid.Int64Range(1, 10).Draw(t, "qty")
			dir := DirectionIn
			if stock[item] >= qty && rapid.Bool().Draw(t, "sell") {
				dir = DirectionOut
				stock[item] -= qty
			} else {
				stock[item] += qty
			}
			price := decimal.New(rapid.Int64Range(0, 2000).Draw(t, "cents"), -2)
			ms = append(ms, Movement{
				ID: i + 1, ItemID: item, Barcode: string(rune('A' + item)), Direction: dir,
				Quantity: qty, Price: price, Total: price.Mul(decimal.NewFromInt(qty)),
				At: base.Add(time.Duration(i) * time.Hour),
			})
		}
		from := base.Add(time.Duration(rapid.IntRange(0, steps).Draw(t, "from")) * time.Hour)
		r := BuildPerformance(ms, Period{From: from}, 0)

		cost, sales := decimal.Zero, decimal.Zero
		for _, ip := range r.Items {
			if ip.UncoveredQuantity != 0 {
				t.Fatalf("item %s has %d uncovered units despite non-negative stock", ip.Barcode, ip.UncoveredQuantity)
			}
			cost = cost.Add(ip.Cost)
			sales = sales.Add(ip.Revenue)
		}
		if !cost.Equal(r.Summary.TotalCost) || !sales.Equal(r.Summary.TotalSales) {
			t.Fatalf("summary %s/%s disagrees with items %s/%s", r.Summary.TotalCost, r.Summary.TotalSales, cost, sales)
		}
		if !r.Summary.TotalProfit.Equal(sales.Sub(cost)) {
			t.Fatal("total profit is not sales minus cost")
		}
		for i := 1; i < len(r.ProfitRanking); i++ {
			if r.ProfitRanking[i].Profit.GreaterThan(r.ProfitRanking[i-1].Profit) {
				t.Fatal("profit ranking is not descending")
			}
		}
	})
}
