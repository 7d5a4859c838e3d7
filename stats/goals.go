package stats

import (
	"time"

	"github.com/rustyeddy/tradebook/journal"
	"github.com/rustyeddy/tradebook/risk"
)

type GoalStatus struct {
	Target  float64 `json:"target"`
	Actual  float64 `json:"actual"`
	Percent float64 `json:"percent"`
}

type Progress struct {
	Daily   GoalStatus `json:"daily"`
	Weekly  GoalStatus `json:"weekly"`
	Monthly GoalStatus `json:"monthly"`
	Yearly  GoalStatus `json:"yearly"`
}

// GoalProgress measures P/L against each goal over the day, week, month and
// year containing now, whatever period is being browsed.
func GoalProgress(trades []journal.Trade, goals journal.Goals, now time.Time, weekStartsOnSunday bool) Progress {
	status := func(mode Mode, target journal.Num) GoalStatus {
		p := Period{Mode: mode, Anchor: now, WeekStartsOnSunday: weekStartsOnSunday}
		var pnls []float64
		for _, t := range Filter(trades, p) {
			pnls = append(pnls, t.PnL)
		}
		gs := GoalStatus{Target: target.Value(), Actual: risk.Round2(sum(pnls))}
		if !finite(gs.Target) {
			gs.Target = 0
		}
		gs.Percent = risk.Round2(ratio(gs.Actual, gs.Target) * 100)
		return gs
	}

	return Progress{
		Daily:   status(Day, goals.Daily),
		Weekly:  status(Week, goals.Weekly),
		Monthly: status(Month, goals.Monthly),
		Yearly:  status(Year, goals.Yearly),
	}
}
