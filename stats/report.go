package stats

import (
	"fmt"
	"io"
	"strings"
)

func PrintSummary(w io.Writer, title string, s Summary) {
	fmt.Fprintln(w, "==================================================")
	fmt.Fprintf(w, " %s\n", title)
	fmt.Fprintln(w, "==================================================")

	fmt.Fprintln(w)
	fmt.Fprintln(w, "Trade Statistics")
	fmt.Fprintln(w, "--------------------------------------------------")
	fmt.Fprintf(w, "Trades:        %d\n", s.Count)
	fmt.Fprintf(w, "Wins:          %d\n", s.Wins)
	fmt.Fprintf(w, "Losses:        %d\n", s.Losses)
	fmt.Fprintf(w, "Win Rate:      %.2f%%\n", s.WinRate)
	fmt.Fprintf(w, "Avg P/L:       %.2f\n", s.AvgPnL)
	fmt.Fprintf(w, "Avg R:         %.2f\n", s.AvgR)
	fmt.Fprintf(w, "Largest Win:   %.2f\n", s.LargestWin)
	fmt.Fprintf(w, "Largest Loss:  %.2f\n", s.LargestLoss)

	fmt.Fprintln(w)
	fmt.Fprintln(w, "Account Performance")
	fmt.Fprintln(w, "--------------------------------------------------")
	fmt.Fprintf(w, "Start Capital: %.2f\n", s.StartingCapital)
	fmt.Fprintf(w, "End Equity:    %.2f\n", s.EndingEquity)
	fmt.Fprintf(w, "Gross Profit:  %.2f\n", s.GrossProfit)
	fmt.Fprintf(w, "Gross Loss:    %.2f\n", s.GrossLoss)
	fmt.Fprintf(w, "Net P/L:       %.2f\n", s.NetPnL)

	if s.ProfitFactor > 0 {
		fmt.Fprintf(w, "Profit Factor: %.2f\n", s.ProfitFactor)
	}
	if s.MaxDrawdown > 0 {
		fmt.Fprintf(w, "Max Drawdown:  %.2f (%.2f%%)\n", s.MaxDrawdown, s.MaxDrawdownPct)
	}
	fmt.Fprintln(w, "==================================================")
}

func PrintGroups(w io.Writer, title string, groups []Group) {
	fmt.Fprintf(w, "%s\n", title)
	fmt.Fprintln(w, "--------------------------------------------------")
	fmt.Fprintf(w, "%-20s %6s %6s %8s %12s\n", "KEY", "TRADES", "WINS", "WIN%", "P/L")
	for _, g := range groups {
		fmt.Fprintf(w, "%-20s %6d %6d %7.2f%% %12.2f\n", truncate(g.Key, 20), g.Count, g.Wins, g.WinRate, g.PnL)
	}
	if best, ok := Best(groups, MinSample); ok {
		fmt.Fprintf(w, "Best: %s (%.2f%% over %d trades)\n", best.Key, best.WinRate, best.Count)
	}
}

func PrintGoals(w io.Writer, p Progress) {
	fmt.Fprintln(w, "Goals")
	fmt.Fprintln(w, "--------------------------------------------------")
	for _, row := range []struct {
		name string
		gs   GoalStatus
	}{{"Daily", p.Daily}, {"Weekly", p.Weekly}, {"Monthly", p.Monthly}, {"Yearly", p.Yearly}} {
		fmt.Fprintf(w, "%-8s %12.2f / %-12.2f %7.2f%%\n", row.name+":", row.gs.Actual, row.gs.Target, row.gs.Percent)
	}
}

func PrintCalendar(w io.Writer, v MonthView) {
	fmt.Fprintf(w, "%s %d\n", v.Month, v.Year)
	fmt.Fprintln(w, "--------------------------------------------------")
	for _, d := range v.Days {
		if d.Count == 0 {
			continue
		}
		fmt.Fprintf(w, "%s  %3d trades  %12.2f\n", d.Date, d.Count, d.PnL)
	}
	fmt.Fprintln(w, strings.Repeat("-", 50))
	fmt.Fprintf(w, "Active days:   %d\n", v.ActiveDays)
	fmt.Fprintf(w, "Total:         %.2f\n", v.Total)
	fmt.Fprintf(w, "Avg per day:   %.2f\n", v.AvgDailyPnL)
	if v.BestDay != nil {
		fmt.Fprintf(w, "Best day:      %s %.2f\n", v.BestDay.Date, v.BestDay.PnL)
	}
	if v.WorstDay != nil {
		fmt.Fprintf(w, "Worst day:     %s %.2f\n", v.WorstDay.Date, v.WorstDay.PnL)
	}
	if v.BestWeek != nil {
		fmt.Fprintf(w, "Best week:     %s..%s %.2f\n", v.BestWeek.Start, v.BestWeek.End, v.BestWeek.PnL)
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-1] + "…"
}
