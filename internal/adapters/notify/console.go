package notify

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/olekukonko/tablewriter"

	"github.com/alejandrodnm/cardplanner/internal/domain"
)

// Console implements ports.Notifier.
type Console struct {
	out   io.Writer
	table bool
}

// NewConsole creates a notifier that writes to stdout.
func NewConsole(table bool) *Console {
	return &Console{out: os.Stdout, table: table}
}

// NewConsoleWriter creates a notifier for tests.
func NewConsoleWriter(w io.Writer, table bool) *Console {
	return &Console{out: w, table: table}
}

// Notify prints the plan in the configured mode.
func (c *Console) Notify(_ context.Context, plan *domain.PurchasePlan) error {
	if plan == nil || len(plan.Baskets) == 0 {
		ts := ""
		if plan != nil {
			ts = plan.Meta.GeneratedAt.Format("15:04:05")
		}
		fmt.Fprintf(c.out, "[%s] no baskets planned\n", ts)
		if plan != nil {
			c.printUnmet(plan.Unmet)
		}
		return nil
	}

	if c.table {
		c.printFull(plan)
	} else {
		c.printCompact(plan)
	}
	return nil
}

// printCompact prints the essentials on one line.
func (c *Console) printCompact(plan *domain.PurchasePlan) {
	s := plan.Summary
	var sb strings.Builder
	fmt.Fprintf(&sb, "[%s] %s: %d baskets, %d units, $%.2f (cards $%.2f + ship $%.2f)",
		plan.Meta.GeneratedAt.Format("15:04:05"), plan.Meta.RunID,
		s.BasketCount, s.UnitCount, s.OverallTotal, s.CardTotal, s.ShippingTotal)

	if n := plan.UnmetUnits(); n > 0 {
		fmt.Fprintf(&sb, " | unmet:%d", n)
	}
	if plan.Budget != nil {
		fmt.Fprintf(&sb, " | budget %.1f%%", plan.Budget.BudgetUtilization*100)
		if plan.Budget.HardBudgetExceeded {
			sb.WriteString(" EXCEEDED")
		}
	}
	fmt.Fprintln(c.out, sb.String())
}

// printFull prints one table with every planned line, then the totals.
func (c *Console) printFull(plan *domain.PurchasePlan) {
	s := plan.Summary
	fmt.Fprintf(c.out, "\n[%s] run %s (%s): %d baskets, %d units\n",
		plan.Meta.GeneratedAt.Format("15:04:05"), plan.Meta.RunID, plan.Meta.Mode,
		s.BasketCount, s.UnitCount)

	table := tablewriter.NewWriter(c.out)
	table.Header("Seller", "Market", "Card", "Qty", "Unit", "Line", "Reasons")
	for _, b := range plan.Baskets {
		for _, it := range b.Items {
			table.Append(
				b.SellerID,
				b.Marketplace,
				truncate(it.CardID, 32),
				fmt.Sprintf("%d", it.Quantity),
				fmt.Sprintf("$%.2f", it.UnitPrice),
				fmt.Sprintf("$%.2f", it.LineTotal),
				strings.Join(it.Reasons, " "),
			)
		}
	}
	table.Render()

	c.printBaskets(plan.Baskets)
	fmt.Fprintf(c.out, "\n  TOTAL: $%.2f  (cards $%.2f + shipping $%.2f)\n",
		s.OverallTotal, s.CardTotal, s.ShippingTotal)

	c.printUnmet(plan.Unmet)
	if plan.Budget != nil {
		c.printBudget(plan.Budget)
	}
	fmt.Fprintln(c.out)
}

func (c *Console) printBaskets(baskets []domain.PlanBasket) {
	fmt.Fprintln(c.out, "\n=== BASKETS ===")
	for _, b := range baskets {
		ship := fmt.Sprintf("ship $%.2f", b.ShippingCost)
		if b.FreeShippingTriggered {
			ship = "free shipping"
		}
		line := fmt.Sprintf("  %-20s %3d units  cards $%.2f  %s  total $%.2f",
			truncate(b.SellerID, 20), b.Units(), b.CardSubtotal, ship, b.TotalCost)
		if b.CostRatio != nil {
			verdict := "over ratio"
			if b.IsProfitable != nil && *b.IsProfitable {
				verdict = "profitable"
			}
			line += fmt.Sprintf("  ratio %.2f %s", *b.CostRatio, verdict)
		}
		fmt.Fprintln(c.out, line)
	}
}

func (c *Console) printUnmet(unmet []domain.Demand) {
	if len(unmet) == 0 {
		return
	}
	fmt.Fprintln(c.out, "\n  Unmet demand:")
	for _, d := range unmet {
		fmt.Fprintf(c.out, "    %-32s x%d\n", truncate(d.CardID, 32), d.Quantity)
	}
}

func (c *Console) printBudget(b *domain.BudgetResult) {
	fmt.Fprintf(c.out, "\n=== BUDGET (%s) ===\n", b.Mode)
	fmt.Fprintf(c.out, "  Max:         $%.2f (reserve $%.2f)\n", b.MaxTotalSpend, b.ReservedBudget)
	fmt.Fprintf(c.out, "  Spent:       $%.2f  (%.1f%%)\n", b.TotalSpend, b.BudgetUtilization*100)
	fmt.Fprintf(c.out, "  Demand:      $%.2f\n", b.DemandSpend)
	fmt.Fprintf(c.out, "  Speculative: $%.2f\n", b.SpeculativeSpend)
	fmt.Fprintf(c.out, "  Shipping:    $%.2f\n", b.ShippingSpend)
	for _, w := range b.Warnings {
		fmt.Fprintf(c.out, "  ! %s\n", w)
	}
	if b.HardBudgetExceeded {
		fmt.Fprintln(c.out, "  HARD BUDGET EXCEEDED")
	}
}

// PrintHotList prints the ranked hot list.
func (c *Console) PrintHotList(results []domain.IPSResult) {
	if len(results) == 0 {
		fmt.Fprintln(c.out, "  No cards in the hot list.")
		return
	}

	table := tablewriter.NewWriter(c.out)
	table.Header("#", "Card", "Tier", "IPS", "Inv", "Target", "Deficit", "Season", "Reasons")
	for i, r := range results {
		name := r.Name
		if name == "" {
			name = r.CardID
		}
		table.Append(
			fmt.Sprintf("%d", i+1),
			truncate(name, 32),
			string(r.Tier),
			fmt.Sprintf("%.3f", r.IPS),
			fmt.Sprintf("%d", r.CurrentInventory),
			fmt.Sprintf("%d", r.TargetInventory),
			fmt.Sprintf("%d", r.Deficit),
			fmt.Sprintf("x%.2f", r.Components.SeasonalityFactor),
			strings.Join(r.Reasons, "; "),
		)
	}
	table.Render()
}

// PrintRunReport prints predicted against realized spend for a recorded run.
func (c *Console) PrintRunReport(rep domain.RunReport) {
	fmt.Fprintf(c.out, "\n=== RUN %s (%s) ===\n", rep.Run.RunID, rep.Run.Status)

	table := tablewriter.NewWriter(c.out)
	table.Header("Seller", "Card", "Qty", "Predicted", "Realized", "Bought")
	for _, it := range rep.Items {
		realized := "-"
		if it.RealizedUnitPrice != nil {
			realized = fmt.Sprintf("$%.2f", *it.RealizedUnitPrice)
		}
		bought := ""
		if it.Purchased {
			bought = "yes"
		}
		table.Append(
			it.SellerID,
			truncate(it.CardID, 32),
			fmt.Sprintf("%d", it.Quantity),
			fmt.Sprintf("$%.2f", it.PredictedUnitPrice),
			realized,
			bought,
		)
	}
	table.Render()

	fmt.Fprintf(c.out, "  Predicted cards: $%.2f | Realized: $%.2f over %d/%d lines\n",
		rep.PredictedCards, rep.RealizedCards, rep.PurchasedItems, len(rep.Items))
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
