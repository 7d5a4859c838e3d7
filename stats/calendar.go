package stats

import (
	"math"
	"time"

	"github.com/rustyeddy/tradebook/journal"
	"github.com/rustyeddy/tradebook/risk"
)

type DayBucket struct {
	Day   int     `json:"day"`
	Date  string  `json:"date"`
	PnL   float64 `json:"pnl"`
	Count int     `json:"count"`
}

// WeekBucket is an ISO week, Monday to Sunday, clipped to the month.
type WeekBucket struct {
	Start string  `json:"start"`
	End   string  `json:"end"`
	PnL   float64 `json:"pnl"`
	Count int     `json:"count"`
}

type MonthView struct {
	Year        int          `json:"year"`
	Month       time.Month   `json:"month"`
	Days        []DayBucket  `json:"days"`
	Weeks       []WeekBucket `json:"weeks"`
	BestDay     *DayBucket   `json:"bestDay,omitempty"`
	WorstDay    *DayBucket   `json:"worstDay,omitempty"`
	BestWeek    *WeekBucket  `json:"bestWeek,omitempty"`
	ActiveDays  int          `json:"activeDays"`
	Trades      int          `json:"trades"`
	Total       float64      `json:"total"`
	AvgDailyPnL float64      `json:"avgDailyPnl"`
}

func finite(x float64) bool {
	return !math.IsNaN(x) && !math.IsInf(x, 0)
}

// Calendar buckets one month of trades by day and week.
func Calendar(trades []journal.Trade, year int, month time.Month) MonthView {
	first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	last := first.AddDate(0, 1, -1)
	v := MonthView{Year: year, Month: month}

	pnls := make([][]float64, last.Day()+1)
	v.Days = make([]DayBucket, last.Day())
	for i := range v.Days {
		v.Days[i] = DayBucket{Day: i + 1, Date: first.AddDate(0, 0, i).Format(journal.DateLayout)}
	}

	for _, t := range Filter(trades, Period{Mode: Month, Anchor: first}) {
		d, _ := t.Day()
		v.Days[d.Day()-1].Count++
		pnls[d.Day()] = append(pnls[d.Day()], t.PnL)
	}

	var active []float64
	for i := range v.Days {
		b := &v.Days[i]
		b.PnL = risk.Round2(sum(pnls[b.Day]))
		v.Trades += b.Count
		if b.Count == 0 {
			continue
		}
		v.ActiveDays++
		active = append(active, b.PnL)
		if v.BestDay == nil || b.PnL > v.BestDay.PnL {
			best := *b
			v.BestDay = &best
		}
		if v.WorstDay == nil || b.PnL < v.WorstDay.PnL {
			worst := *b
			v.WorstDay = &worst
		}
	}
	v.Total = risk.Round2(sum(active))
	v.AvgDailyPnL = risk.Round2(ratio(v.Total, float64(v.ActiveDays)))

	for start := first; !start.After(last); {
		end := WeekStart(start, false).AddDate(0, 0, 6)
		if end.After(last) {
			end = last
		}
		w := WeekBucket{Start: start.Format(journal.DateLayout), End: end.Format(journal.DateLayout)}
		var weekPnls []float64
		for d := start.Day(); d <= end.Day(); d++ {
			w.Count += v.Days[d-1].Count
			weekPnls = append(weekPnls, v.Days[d-1].PnL)
		}
		w.PnL = risk.Round2(sum(weekPnls))
		v.Weeks = append(v.Weeks, w)
		start = end.AddDate(0, 0, 1)
	}
	for i := range v.Weeks {
		w := v.Weeks[i]
		if w.Count == 0 {
			continue
		}
		if v.BestWeek == nil || w.PnL > v.BestWeek.PnL {
			v.BestWeek = &w
		}
	}
	return v
}
