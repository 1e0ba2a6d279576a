package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"

	"stock-ledger/internal/app"
	"stock-ledger/internal/core"
)

// Usage lists the available commands.
const Usage = `Usage: stockctl [-store N -operator N] <command> [flags]

Commands:
  schema                               apply the database schema
  stats                                inventory statistics
  perf [-from D] [-to D] [-limit N]    FIFO profit and sales rankings
  balances [-type T] [-company N]      partner receivables and payables`

// ErrUsage is returned for unknown commands or malformed flags.
var ErrUsage = errors.New("invalid usage")

// Run executes a one-shot CLI command, writing human-readable output to out.
// args[0] is the subcommand name. actor is resolved against the users table
// for every command that reads store data.
func Run(ctx context.Context, svc app.ApplicationService, actor core.Actor, args []string, out io.Writer) error {
	if len(args) == 0 {
		return fmt.Errorf("%w: no command\n%s", ErrUsage, Usage)
	}

	if args[0] == "schema" {
		if err := svc.ApplySchema(ctx); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
		fmt.Fprintln(out, "Schema applied.")
		return nil
	}

	user, err := svc.Me(ctx, actor)
	if err != nil {
		return fmt.Errorf("failed to resolve operator %d in store %d: %w", actor.OperatorID, actor.StoreID, err)
	}
	actor = user.Actor()

	switch args[0] {
	case "stats", "st":
		stats, err := svc.GetInventoryStats(ctx, actor)
		if err != nil {
			return fmt.Errorf("failed to get inventory stats: %w", err)
		}
		printInventoryStats(out, user, stats)

	case "perf", "performance":
		fs := flag.NewFlagSet("perf", flag.ContinueOnError)
		fs.SetOutput(io.Discard)
		from := fs.String("from", "", "start date (YYYY-MM-DD)")
		to := fs.String("to", "", "end date (YYYY-MM-DD)")
		limit := fs.Int("limit", 10, "ranking length, 0 for all")
		if err := fs.Parse(args[1:]); err != nil {
			return fmt.Errorf("%w: %v", ErrUsage, err)
		}
		report, err := svc.GetPerformanceStats(ctx, actor, app.PerformanceRequest{
			Dates: app.DateRange{From: *from, To: *to},
			Limit: *limit,
		})
		if err != nil {
			return fmt.Errorf("failed to get performance stats: %w", err)
		}
		printPerformance(out, report)

	case "balances", "bal":
		fs := flag.NewFlagSet("balances", flag.ContinueOnError)
		fs.SetOutput(io.Discard)
		typ := fs.String("type", "", "SUPPLIER or CUSTOMER")
		companyID := fs.Int("company", 0, "single partner id")
		if err := fs.Parse(args[1:]); err != nil {
			return fmt.Errorf("%w: %v", ErrUsage, err)
		}
		req := app.BalanceRequest{Type: core.CompanyType(strings.ToUpper(*typ)), Page: core.PageRequest{Limit: 200}}
		if *companyID > 0 {
			req.CompanyID = companyID
		}
		result, err := svc.GetCompanyBalance(ctx, actor, req)
		if err != nil {
			return fmt.Errorf("failed to get balances: %w", err)
		}
		printBalances(out, result)

	default:
		return fmt.Errorf("%w: unknown command %q\n%s", ErrUsage, args[0], Usage)
	}
	return nil
}

func printInventoryStats(out io.Writer, user *core.User, s *core.InventoryStats) {
	fmt.Fprintln(out)
	fmt.Fprintln(out, strings.Repeat("=", 62))
	fmt.Fprintf(out, "  %-58s\n", "INVENTORY")
	fmt.Fprintf(out, "  Store    : %s\n", user.StoreName)
	fmt.Fprintln(out, strings.Repeat("=", 62))
	fmt.Fprintf(out, "  %-30s %29d\n", "Items (active)", s.ActiveItems)
	fmt.Fprintf(out, "  %-30s %29d\n", "Items (total)", s.TotalItems)
	fmt.Fprintf(out, "  %-30s %29d\n", "Units on hand", s.TotalQuantity)
	fmt.Fprintf(out, "  %-30s %29s\n", "Stock value (FIFO)", s.TotalValue.StringFixed(2))
	fmt.Fprintf(out, "  %-30s %29s\n", "Sales today", s.TodaySales.StringFixed(2))
	fmt.Fprintf(out, "  %-30s %29s\n", "Sales last 7 days", s.WeekSales.StringFixed(2))
	fmt.Fprintf(out, "  %-30s %29d\n", "Low stock", s.LowStockCount)

	if len(s.LowStockItems) > 0 {
		fmt.Fprintln(out, strings.Repeat("-", 62))
		fmt.Fprintf(out, "  %-16s %-32s %10s\n", "BARCODE", "NAME", "QTY")
		for _, it := range s.LowStockItems {
			fmt.Fprintf(out, "  %-16s %-32s %10d\n", it.Barcode, it.Name, it.Quantity)
		}
	}
	if len(s.HotProducts) > 0 {
		fmt.Fprintln(out, strings.Repeat("-", 62))
		fmt.Fprintf(out, "  %-16s %-24s %6s %12s\n", "HOT (7 DAYS)", "NAME", "QTY", "REVENUE")
		for _, p := range s.HotProducts {
			fmt.Fprintf(out, "  %-16s %-24s %6d %12s\n", p.Barcode, p.Name, p.Quantity, p.Revenue.StringFixed(2))
		}
	}
	fmt.Fprintln(out, strings.Repeat("=", 62))
}

func printPerformance(out io.Writer, r *core.PerformanceReport) {
	fmt.Fprintln(out)
	fmt.Fprintln(out, strings.Repeat("=", 62))
	fmt.Fprintf(out, "  %-58s\n", "PERFORMANCE (FIFO COST)")
	fmt.Fprintln(out, strings.Repeat("=", 62))
	fmt.Fprintf(out, "  %-14s %-16s %9s %9s %9s\n", "BARCODE", "NAME", "COST", "PROFIT", "RATE %")
	fmt.Fprintln(out, strings.Repeat("-", 62))
	for _, p := range r.ProfitRanking {
		fmt.Fprintf(out, "  %-14s %-16s %9s %9s %9s\n", p.Barcode, p.Name,
			p.TotalCost.StringFixed(2), p.Profit.StringFixed(2), p.ProfitRate.StringFixed(2))
	}
	fmt.Fprintln(out, strings.Repeat("-", 62))
	fmt.Fprintf(out, "  %-30s %29s\n", "Total purchases", r.Summary.TotalPurchase.StringFixed(2))
	fmt.Fprintf(out, "  %-30s %29s\n", "Total sales", r.Summary.TotalSales.StringFixed(2))
	fmt.Fprintf(out, "  %-30s %29s\n", "Cost of sales", r.Summary.TotalCost.StringFixed(2))
	fmt.Fprintf(out, "  %-30s %29s\n", "Profit", r.Summary.TotalProfit.StringFixed(2))
	fmt.Fprintf(out, "  %-30s %28s%%\n", "Profit rate", r.Summary.ProfitRate.StringFixed(2))
	fmt.Fprintln(out, strings.Repeat("=", 62))
}

func printBalances(out io.Writer, r *app.BalanceResult) {
	rows := []core.CompanyBalance{}
	if r.Company != nil {
		rows = append(rows, *r.Company)
	} else if r.Balances != nil {
		rows = r.Balances.Items
	}

	fmt.Fprintln(out)
	fmt.Fprintln(out, strings.Repeat("=", 62))
	fmt.Fprintf(out, "  %-58s\n", "PARTNER BALANCES")
	fmt.Fprintln(out, strings.Repeat("=", 62))
	fmt.Fprintf(out, "  %-22s %-8s %9s %9s %9s\n", "NAME", "TYPE", "RECEIV.", "PAYABLE", "NET")
	fmt.Fprintln(out, strings.Repeat("-", 62))
	for _, cb := range rows {
		fmt.Fprintf(out, "  %-22s %-8s %9s %9s %9s\n", cb.Company.Name, cb.Company.Type,
			cb.Balance.Receivable.StringFixed(2), cb.Balance.Payable.StringFixed(2), cb.Balance.Net.StringFixed(2))
	}
	if r.Totals != nil {
		fmt.Fprintln(out, strings.Repeat("-", 62))
		fmt.Fprintf(out, "  %-31s %9s %9s %9s\n", fmt.Sprintf("TOTAL (%d)", r.Totals.CompanyCount),
			r.Totals.TotalReceivable.StringFixed(2), r.Totals.TotalPayable.StringFixed(2), r.Totals.Net.StringFixed(2))
	}
	fmt.Fprintln(out, strings.Repeat("=", 62))
}
