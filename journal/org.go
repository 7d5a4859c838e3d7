package journal

import (
	"fmt"
	"strings"

	"github.com/rustyeddy/tradebook/risk"
)

// FormatTradeOrg renders a trade as an Org-mode block. Structured facts go in
// a PROPERTIES drawer; notes land under Review.
func FormatTradeOrg(t Trade) string {
	heading := fmt.Sprintf("** Trade #%d: %s %s (%s)", t.TradeNumber, t.Symbol, t.Side, shortID(t.ID))

	var b strings.Builder
	b.WriteString(heading)
	b.WriteString("\n")
	b.WriteString(":PROPERTIES:\n")
	fmt.Fprintf(&b, ":ID: %s\n", t.ID)
	fmt.Fprintf(&b, ":DATE: %s\n", t.Date)
	if t.Time != "" {
		fmt.Fprintf(&b, ":TIME: %s\n", t.Time)
	}
	fmt.Fprintf(&b, ":SYMBOL: %s\n", t.Symbol)
	fmt.Fprintf(&b, ":SIDE: %s\n", t.Side)
	fmt.Fprintf(&b, ":CONTRACTS: %s\n", f(t.Contracts.Value()))
	fmt.Fprintf(&b, ":ENTRY: %s\n", f(t.Entry.Value()))
	fmt.Fprintf(&b, ":EXIT: %s\n", f(t.Exit.Value()))
	if s := opt(t.Stop); s != "" {
		fmt.Fprintf(&b, ":STOP: %s\n", s)
	}
	fmt.Fprintf(&b, ":PNL: %.2f\n", t.PnL)
	fmt.Fprintf(&b, ":RISK: %.2f\n", t.TotalRisk)
	fmt.Fprintf(&b, ":R: %s\n", risk.FormatR(t.RMultiple, t.TotalRisk))
	if t.Strategy != "" {
		fmt.Fprintf(&b, ":STRATEGY: %s\n", t.Strategy)
	}
	if t.Session != "" {
		fmt.Fprintf(&b, ":SESSION: %s\n", t.Session)
	}
	if t.MentalState != Unset {
		fmt.Fprintf(&b, ":MENTAL_STATE: %s\n", t.MentalState)
	}
	b.WriteString(":END:\n")
	b.WriteString("\n")
	b.WriteString("*** Thesis\n- \n\n")
	b.WriteString("*** Execution\n- \n\n")
	b.WriteString("*** Review\n")
	if notes := strings.TrimSpace(t.Notes); notes != "" {
		for _, line := range strings.Split(notes, "\n") {
			b.WriteString("- " + strings.TrimSpace(line) + "\n")
		}
	} else {
		b.WriteString("- \n")
	}

	return b.String()
}

// FormatTradesOrg renders multiple trades separated by blank lines.
func FormatTradesOrg(trades []Trade) string {
	var b strings.Builder
	for i, t := range trades {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(FormatTradeOrg(t))
	}
	return b.String()
}

func shortID(full string) string {
	if len(full) <= 8 {
		return full
	}
	return full[:8]
}
