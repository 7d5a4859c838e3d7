package stats

import (
	"cmp"
	"fmt"
	"slices"
	"strings"

	"github.com/rustyeddy/tradebook/journal"
	"github.com/rustyeddy/tradebook/risk"
)

// MinSample is the fewest trades a group needs before it can rank as best.
const MinSample = 2

// Unspecified collects trades with no value for the grouping key.
const Unspecified = "unspecified"

type Group struct {
	Key     string  `json:"key"`
	Count   int     `json:"count"`
	Wins    int     `json:"wins"`
	PnL     float64 `json:"pnl"`
	WinRate float64 `json:"winRate"`
}

type KeyFunc func(journal.Trade) string

func orUnspecified(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return Unspecified
	}
	return s
}

func ByStrategy(t journal.Trade) string { return orUnspecified(t.Strategy) }

func BySymbol(t journal.Trade) string { return orUnspecified(strings.ToUpper(t.Symbol)) }

func BySession(t journal.Trade) string { return orUnspecified(t.Session) }

func ByMentalState(t journal.Trade) string { return orUnspecified(string(t.MentalState)) }

func ByWeekday(t journal.Trade) string {
	d, ok := t.Day()
	if !ok {
		return Unspecified
	}
	return d.Weekday().String()
}

func ByHour(t journal.Trade) string {
	h, ok := t.Hour()
	if !ok {
		return Unspecified
	}
	return fmt.Sprintf("%02d:00", h)
}

var keyFuncs = map[string]KeyFunc{
	"strategy": ByStrategy,
	"symbol":   BySymbol,
	"session":  BySession,
	"weekday":  ByWeekday,
	"hour":     ByHour,
	"mental":   ByMentalState,
}

// KeyFuncFor looks up a grouping by name.
func KeyFuncFor(name string) (KeyFunc, bool) {
	fn, ok := keyFuncs[strings.ToLower(strings.TrimSpace(name))]
	return fn, ok
}

// GroupBy rolls trades up by key, ordered by key.
func GroupBy(trades []journal.Trade, key KeyFunc) []Group {
	idx := map[string]int{}
	groups := []Group{}
	pnls := map[string][]float64{}

	for _, t := range trades {
		k := key(t)
		i, ok := idx[k]
		if !ok {
			i = len(groups)
			idx[k] = i
			groups = append(groups, Group{Key: k})
		}
		groups[i].Count++
		if t.PnL > 0 {
			groups[i].Wins++
		}
		pnls[k] = append(pnls[k], t.PnL)
	}

	for i := range groups {
		g := &groups[i]
		g.PnL = risk.Round2(sum(pnls[g.Key]))
		g.WinRate = risk.Round2(ratio(float64(g.Wins), float64(g.Count)) * 100)
	}
	slices.SortFunc(groups, func(a, b Group) int { return cmp.Compare(a.Key, b.Key) })
	return groups
}

// Rank orders groups best first: win rate, then P/L, both descending, then
// key.
func Rank(groups []Group) []Group {
	out := slices.Clone(groups)
	slices.SortStableFunc(out, func(a, b Group) int {
		if c := cmp.Compare(b.WinRate, a.WinRate); c != 0 {
			return c
		}
		if c := cmp.Compare(b.PnL, a.PnL); c != 0 {
			return c
		}
		return cmp.Compare(a.Key, b.Key)
	})
	return out
}

// Best is the top ranked group with at least minSamples trades.
func Best(groups []Group, minSamples int) (Group, bool) {
	for _, g := range Rank(groups) {
		if g.Count >= minSamples {
			return g, true
		}
	}
	return Group{}, false
}
