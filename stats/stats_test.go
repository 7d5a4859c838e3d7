package stats

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/tradebook/journal"
)

func day(s string) time.Time {
	d, err := time.Parse(journal.DateLayout, s)
	if err != nil {
		panic(err)
	}
	return d
}

func trade(id, date, tod string, pnl float64) journal.Trade {
	return journal.Trade{ID: id, Symbol: "ES", Date: date, Time: tod, PnL: pnl}
}

func ids(trades []journal.Trade) []string {
	out := []string{}
	for _, t := range trades {
		out = append(out, t.ID)
	}
	return out
}

func weekOfTrades() []journal.Trade {
	var trades []journal.Trade
	for i, d := range []string{"2024-01-01", "2024-01-02", "2024-01-03", "2024-01-04", "2024-01-05", "2024-01-06", "2024-01-07"} {
		trades = append(trades, trade(d, d, "10:00", float64(i)))
	}
	return trades
}

func TestFilterWeekSundayStart(t *testing.T) {
	t.Parallel()

	got := Filter(weekOfTrades(), Period{Mode: Week, Anchor: day("2024-01-03"), WeekStartsOnSunday: true})
	assert.Equal(t, []string{"2024-01-06", "2024-01-05", "2024-01-04", "2024-01-03", "2024-01-02", "2024-01-01"}, ids(got))
}

func TestFilterWeekMondayStart(t *testing.T) {
	t.Parallel()

	got := Filter(weekOfTrades(), Period{Mode: Week, Anchor: day("2024-01-03")})
	assert.Len(t, got, 7)
	assert.Equal(t, "2024-01-07", got[0].ID)
}

func TestFilterModes(t *testing.T) {
	t.Parallel()

	trades := []journal.Trade{
		trade("a", "2023-12-31", "", 1),
		trade("b", "2024-01-15", "09:30", 1),
		trade("c", "2024-01-15", "14:00", 1),
		trade("d", "2024-02-01", "", 1),
		trade("e", "not a date", "", 1),
	}

	tests := []struct {
		name string
		p    Period
		want []string
	}{
		{"day", Period{Mode: Day, Anchor: day("2024-01-15")}, []string{"c", "b"}},
		{"month", Period{Mode: Month, Anchor: day("2024-01-20")}, []string{"c", "b"}},
		{"year", Period{Mode: Year, Anchor: day("2024-06-01")}, []string{"d", "c", "b"}},
		{"all", Period{Mode: All}, []string{"e", "d", "c", "b", "a"}},
		{"range", Period{Mode: Range, From: day("2024-01-01"), To: day("2024-01-31")}, []string{"c", "b"}},
		{"open range", Period{Mode: Range, From: day("2024-01-16")}, []string{"d"}},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, ids(Filter(trades, tt.p)))
		})
	}
}

func TestParseMode(t *testing.T) {
	t.Parallel()

	m, err := ParseMode("WEEK")
	require.NoError(t, err)
	assert.Equal(t, Week, m)

	m, err = ParseMode("")
	require.NoError(t, err)
	assert.Equal(t, All, m)

	_, err = ParseMode("fortnight")
	assert.Error(t, err)
}

func TestWeekStart(t *testing.T) {
	t.Parallel()

	assert.Equal(t, day("2023-12-31"), WeekStart(day("2024-01-03"), true))
	assert.Equal(t, day("2024-01-01"), WeekStart(day("2024-01-03"), false))
	assert.Equal(t, day("2024-01-07"), WeekStart(day("2024-01-07"), true))
	assert.Equal(t, day("2024-01-01"), WeekStart(day("2024-01-07"), false))
}

func TestSummarize(t *testing.T) {
	t.Parallel()

	trades := []journal.Trade{
		{ID: "3", Date: "2024-01-03", PnL: 0},
		{ID: "1", Date: "2024-01-01", PnL: 990, TotalRisk: 500, RMultiple: 1.98},
		{ID: "4", Date: "2024-01-04", PnL: 500.5, TotalRisk: 100, RMultiple: 5},
		{ID: "2", Date: "2024-01-02", PnL: -200.5},
	}

	s := Summarize(trades, 10000)
	assert.Equal(t, 4, s.Count)
	assert.Equal(t, 2, s.Wins)
	assert.Equal(t, 2, s.Losses)
	assert.Equal(t, 1490.5, s.GrossProfit)
	assert.Equal(t, -200.5, s.GrossLoss)
	assert.Equal(t, 1290.0, s.NetPnL)
	assert.Equal(t, 50.0, s.WinRate)
	assert.Equal(t, 322.5, s.AvgPnL)
	assert.Equal(t, 3.49, s.AvgR)
	assert.Equal(t, 7.43, s.ProfitFactor)
	assert.Equal(t, 990.0, s.LargestWin)
	assert.Equal(t, -200.5, s.LargestLoss)

	require.Len(t, s.Equity, 4)
	var curve []float64
	for _, p := range s.Equity {
		curve = append(curve, p.Equity)
	}
	assert.Equal(t, []float64{10990, 10789.5, 10789.5, 11290}, curve)
	assert.Equal(t, "1", s.Equity[0].TradeID)
	assert.Equal(t, 11290.0, s.EndingEquity)
	assert.Equal(t, 200.5, s.MaxDrawdown)
	assert.Equal(t, 1.82, s.MaxDrawdownPct)
}

func TestSummarizeEmpty(t *testing.T) {
	t.Parallel()

	s := Summarize(nil, 500)
	assert.Equal(t, 0, s.Count)
	assert.Equal(t, 0.0, s.WinRate)
	assert.Equal(t, 0.0, s.AvgPnL)
	assert.Equal(t, 0.0, s.AvgR)
	assert.Equal(t, 0.0, s.ProfitFactor)
	assert.Equal(t, 500.0, s.EndingEquity)
	assert.Empty(t, s.Equity)
}

func TestSummarizeWinRateBounds(t *testing.T) {
	t.Parallel()

	for _, pnls := range [][]float64{{1, 2, 3}, {-1, -2}, {0}, {1, -1, 0}} {
		var trades []journal.Trade
		for _, p := range pnls {
			trades = append(trades, journal.Trade{PnL: p, Date: "2024-01-01"})
		}
		s := Summarize(trades, 0)
		assert.GreaterOrEqual(t, s.WinRate, 0.0)
		assert.LessOrEqual(t, s.WinRate, 100.0)
	}
}

func TestGroupByAndBest(t *testing.T) {
	t.Parallel()

	trades := []journal.Trade{
		{Strategy: "ORB", PnL: 100},
		{Strategy: "ORB", PnL: -50},
		{Strategy: "VWAP", PnL: 20},
		{Strategy: "VWAP", PnL: 30},
		{Strategy: "Scalp", PnL: 500},
		{Strategy: "", PnL: -10},
	}

	groups := GroupBy(trades, ByStrategy)
	require.Len(t, groups, 4)
	assert.Equal(t, Group{Key: "ORB", Count: 2, Wins: 1, PnL: 50, WinRate: 50}, groups[0])
	assert.Equal(t, "Scalp", groups[1].Key)
	assert.Equal(t, "VWAP", groups[2].Key)
	assert.Equal(t, Unspecified, groups[3].Key)

	best, ok := Best(groups, MinSample)
	require.True(t, ok)
	assert.Equal(t, "VWAP", best.Key)

	_, ok = Best(GroupBy(trades[4:5], ByStrategy), MinSample)
	assert.False(t, ok)
}

func TestRankTieBreaks(t *testing.T) {
	t.Parallel()

	ranked := Rank([]Group{
		{Key: "b", Count: 2, WinRate: 50, PnL: 10},
		{Key: "a", Count: 2, WinRate: 50, PnL: 10},
		{Key: "c", Count: 2, WinRate: 50, PnL: 40},
		{Key: "d", Count: 2, WinRate: 100, PnL: 1},
	})
	var keys []string
	for _, g := range ranked {
		keys = append(keys, g.Key)
	}
	assert.Equal(t, []string{"d", "c", "a", "b"}, keys)
}

func TestKeyFuncs(t *testing.T) {
	t.Parallel()

	tr := journal.Trade{Symbol: "es", Date: "2024-01-03", Time: "09:35", MentalState: journal.Emotional}
	assert.Equal(t, "ES", BySymbol(tr))
	assert.Equal(t, "Wednesday", ByWeekday(tr))
	assert.Equal(t, "09:00", ByHour(tr))
	assert.Equal(t, "emotional", ByMentalState(tr))
	assert.Equal(t, Unspecified, BySession(tr))

	tr.Time = ""
	assert.Equal(t, Unspecified, ByHour(tr))

	fn, ok := KeyFuncFor("Weekday")
	require.True(t, ok)
	assert.Equal(t, "Wednesday", fn(tr))
	_, ok = KeyFuncFor("color")
	assert.False(t, ok)
}

func TestGoalProgress(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 1, 3, 15, 0, 0, 0, time.UTC)
	trades := []journal.Trade{
		trade("a", "2024-01-03", "", 100),
		trade("b", "2024-01-01", "", 50),
		trade("c", "2023-12-31", "", 25),
		trade("d", "2023-06-01", "", 1000),
	}
	goals := journal.Goals{Daily: 200, Weekly: 0, Monthly: 300, Yearly: 600}

	p := GoalProgress(trades, goals, now, true)
	assert.Equal(t, GoalStatus{Target: 200, Actual: 100, Percent: 50}, p.Daily)
	assert.Equal(t, GoalStatus{Target: 0, Actual: 175, Percent: 0}, p.Weekly)
	assert.Equal(t, GoalStatus{Target: 300, Actual: 150, Percent: 50}, p.Monthly)
	assert.Equal(t, GoalStatus{Target: 600, Actual: 150, Percent: 25}, p.Yearly)

	p = GoalProgress(trades, goals, now, false)
	assert.Equal(t, 150.0, p.Weekly.Actual)
}

func TestCalendar(t *testing.T) {
	t.Parallel()

	trades := []journal.Trade{
		trade("a", "2024-01-02", "", 100),
		trade("b", "2024-01-02", "", 50),
		trade("c", "2024-01-05", "", -30),
		trade("d", "2024-01-10", "", 500),
		trade("e", "2024-01-30", "", -100),
		trade("f", "2024-02-01", "", 999),
	}

	v := Calendar(trades, 2024, time.January)
	require.Len(t, v.Days, 31)
	assert.Equal(t, DayBucket{Day: 2, Date: "2024-01-02", PnL: 150, Count: 2}, v.Days[1])
	assert.Equal(t, 4, v.ActiveDays)
	assert.Equal(t, 5, v.Trades)
	assert.Equal(t, 520.0, v.Total)
	assert.Equal(t, 130.0, v.AvgDailyPnL)

	require.NotNil(t, v.BestDay)
	assert.Equal(t, "2024-01-10", v.BestDay.Date)
	require.NotNil(t, v.WorstDay)
	assert.Equal(t, "2024-01-30", v.WorstDay.Date)

	require.Len(t, v.Weeks, 5)
	assert.Equal(t, WeekBucket{Start: "2024-01-01", End: "2024-01-07", PnL: 120, Count: 3}, v.Weeks[0])
	assert.Equal(t, WeekBucket{Start: "2024-01-29", End: "2024-01-31", PnL: -100, Count: 1}, v.Weeks[4])
	require.NotNil(t, v.BestWeek)
	assert.Equal(t, "2024-01-08", v.BestWeek.Start)
}

func TestCalendarClipsWeeksToMonth(t *testing.T) {
	t.Parallel()

	v := Calendar(nil, 2024, time.February)
	require.Len(t, v.Days, 29)
	assert.Equal(t, "2024-02-01", v.Weeks[0].Start)
	assert.Equal(t, "2024-02-04", v.Weeks[0].End)
	assert.Equal(t, "2024-02-26", v.Weeks[len(v.Weeks)-1].Start)
	assert.Equal(t, "2024-02-29", v.Weeks[len(v.Weeks)-1].End)
	assert.Nil(t, v.BestDay)
	assert.Nil(t, v.BestWeek)
	assert.Equal(t, 0.0, v.AvgDailyPnL)
}

func TestPrintSummary(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	PrintSummary(&buf, "Futures: all", Summarize([]journal.Trade{
		{Date: "2024-01-01", PnL: 100},
		{Date: "2024-01-02", PnL: -40},
	}, 1000))

	out := buf.String()
	assert.Contains(t, out, " Futures: all")
	assert.Contains(t, out, "Win Rate:      50.00%")
	assert.Contains(t, out, "Net P/L:       60.00")
	assert.Contains(t, out, "Profit Factor: 2.50")
	assert.Contains(t, out, "Max Drawdown:  40.00")
}

func TestPrintGroups(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	PrintGroups(&buf, "By strategy", GroupBy([]journal.Trade{{Strategy: "ORB", PnL: 1}, {Strategy: "ORB", PnL: 2}}, ByStrategy))
	assert.Contains(t, buf.String(), "Best: ORB (100.00% over 2 trades)")
}
