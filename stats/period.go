package stats

import (
	"fmt"
	"strings"
	"time"

	"github.com/rustyeddy/tradebook/journal"
)

// Mode selects the span a Period covers.
type Mode string

const (
	Day   Mode = "day"
	Week  Mode = "week"
	Month Mode = "month"
	Year  Mode = "year"
	All   Mode = "all"
	Range Mode = "range"
)

func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case Day, Week, Month, Year, All, Range:
		return m, nil
	case "":
		return All, nil
	}
	return "", fmt.Errorf("unknown period %q", s)
}

// Period is a calendar span anchored at a date. From and To are only read
// in Range mode; either may be zero to leave that end open.
type Period struct {
	Mode               Mode
	Anchor             time.Time
	From, To           time.Time
	WeekStartsOnSunday bool
}

func dateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// WeekStart is the first day of the week containing anchor.
func WeekStart(anchor time.Time, sundayFirst bool) time.Time {
	first := int(time.Monday)
	if sundayFirst {
		first = int(time.Sunday)
	}
	day := dateOf(anchor)
	offset := (int(day.Weekday()) - first + 7) % 7
	return day.AddDate(0, 0, -offset)
}

// Bounds returns the inclusive first and last day of the period. ok is false
// for All, which is unbounded.
func (p Period) Bounds() (from, to time.Time, ok bool) {
	a := dateOf(p.Anchor)
	switch p.Mode {
	case Day:
		return a, a, true
	case Week:
		start := WeekStart(a, p.WeekStartsOnSunday)
		return start, start.AddDate(0, 0, 6), true
	case Month:
		start := time.Date(a.Year(), a.Month(), 1, 0, 0, 0, 0, time.UTC)
		return start, start.AddDate(0, 1, -1), true
	case Year:
		start := time.Date(a.Year(), time.January, 1, 0, 0, 0, 0, time.UTC)
		return start, time.Date(a.Year(), time.December, 31, 0, 0, 0, 0, time.UTC), true
	case Range:
		from, to = p.From, p.To
		if !from.IsZero() {
			from = dateOf(from)
		}
		if !to.IsZero() {
			to = dateOf(to)
		}
		return from, to, true
	}
	return time.Time{}, time.Time{}, false
}

// Contains reports whether a calendar day falls in the period.
func (p Period) Contains(day time.Time) bool {
	from, to, bounded := p.Bounds()
	if !bounded {
		return true
	}
	d := dateOf(day)
	if !from.IsZero() && d.Before(from) {
		return false
	}
	if !to.IsZero() && d.After(to) {
		return false
	}
	return true
}

// Filter returns the trades inside p, newest first. Trades with an
// unreadable date only appear in All.
func Filter(trades []journal.Trade, p Period) []journal.Trade {
	out := make([]journal.Trade, 0, len(trades))
	for _, t := range trades {
		if p.Mode == All || p.Mode == "" {
			out = append(out, t)
			continue
		}
		day, ok := t.Day()
		if !ok {
			continue
		}
		if p.Contains(day) {
			out = append(out, t)
		}
	}
	journal.SortTrades(out)
	return out
}
