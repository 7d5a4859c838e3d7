package stats

import (
	"github.com/shopspring/decimal"

	"github.com/rustyeddy/tradebook/journal"
	"github.com/rustyeddy/tradebook/risk"
)

// Summary is the rollup of a set of trades.
type Summary struct {
	Count        int     `json:"count"`
	Wins         int     `json:"wins"`
	Losses       int     `json:"losses"`
	GrossProfit  float64 `json:"grossProfit"`
	GrossLoss    float64 `json:"grossLoss"`
	NetPnL       float64 `json:"netPnl"`
	WinRate      float64 `json:"winRate"`
	AvgPnL       float64 `json:"avgPnl"`
	AvgR         float64 `json:"avgR"`
	ProfitFactor float64 `json:"profitFactor"`
	LargestWin   float64 `json:"largestWin"`
	LargestLoss  float64 `json:"largestLoss"`

	StartingCapital float64               `json:"startingCapital"`
	EndingEquity    float64               `json:"endingEquity"`
	MaxDrawdown     float64               `json:"maxDrawdown"`
	MaxDrawdownPct  float64               `json:"maxDrawdownPct"`
	Equity          []journal.EquityPoint `json:"equity"`
}

func ratio(num, den float64) float64 {
	if den == 0 {
		return 0
	}
	return num / den
}

func sum(xs []float64) float64 {
	total := decimal.Zero
	for _, x := range xs {
		if !finite(x) {
			continue
		}
		total = total.Add(decimal.NewFromFloat(x))
	}
	return total.InexactFloat64()
}

// Summarize computes counts, win rate, P/L totals and the equity curve.
// A trade with pnl > 0 is a win; everything else is a loss.
func Summarize(trades []journal.Trade, startingCapital float64) Summary {
	s := Summary{Count: len(trades), StartingCapital: startingCapital, Equity: []journal.EquityPoint{}}

	var profits, losses, all, rs []float64
	for _, t := range trades {
		all = append(all, t.PnL)
		if t.PnL > 0 {
			s.Wins++
			profits = append(profits, t.PnL)
			if t.PnL > s.LargestWin {
				s.LargestWin = t.PnL
			}
		} else {
			s.Losses++
			losses = append(losses, t.PnL)
			if t.PnL < s.LargestLoss {
				s.LargestLoss = t.PnL
			}
		}
		if t.TotalRisk > 0 {
			rs = append(rs, t.RMultiple)
		}
	}

	s.GrossProfit = risk.Round2(sum(profits))
	s.GrossLoss = risk.Round2(sum(losses))
	s.NetPnL = risk.Round2(sum(all))
	s.WinRate = risk.Round2(ratio(float64(s.Wins), float64(s.Count)) * 100)
	s.AvgPnL = risk.Round2(ratio(sum(all), float64(s.Count)))
	s.AvgR = risk.Round2(ratio(sum(rs), float64(len(rs))))
	if s.GrossLoss < 0 {
		s.ProfitFactor = risk.Round2(s.GrossProfit / -s.GrossLoss)
	}

	if !finite(startingCapital) {
		startingCapital = 0
		s.StartingCapital = 0
	}
	equity := decimal.NewFromFloat(startingCapital)
	peak := startingCapital
	for _, t := range journal.Chronological(trades) {
		if finite(t.PnL) {
			equity = equity.Add(decimal.NewFromFloat(t.PnL))
		}
		at, _ := t.When()
		e := risk.Round2(equity.InexactFloat64())
		s.Equity = append(s.Equity, journal.EquityPoint{Time: at, TradeID: t.ID, PnL: t.PnL, Equity: e})

		if e > peak {
			peak = e
		}
		if dd := peak - e; dd > s.MaxDrawdown {
			s.MaxDrawdown = risk.Round2(dd)
			if peak > 0 {
				s.MaxDrawdownPct = risk.Round2(dd / peak * 100)
			}
		}
	}
	s.EndingEquity = risk.Round2(equity.InexactFloat64())
	return s
}
