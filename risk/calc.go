package risk

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"
)

// Side is the direction of a position.
type Side string

const (
	Long  Side = "Long"
	Short Side = "Short"
)

// Inputs are the authoritative fields a trade's derived values come from.
// Stop and Fee are optional.
type Inputs struct {
	Side       Side
	Entry      float64
	Exit       float64
	Size       float64 // contracts or shares
	PointValue float64 // 1 for equities
	Stop       *float64
	Fee        *float64
}

// Result holds the derived values for a single trade.
type Result struct {
	PnL       float64
	TotalRisk float64
	RMultiple float64
}

// Fill is one layer of a position built or unwound in parts.
type Fill struct {
	Price float64
	Qty   float64
}

func finite(x float64) bool {
	return !math.IsNaN(x) && !math.IsInf(x, 0)
}

// Round2 rounds half away from zero to two decimal places.
func Round2(x float64) float64 {
	if !finite(x) {
		return 0
	}
	return decimal.NewFromFloat(x).Round(2).InexactFloat64()
}

// Compute derives P/L, gross risk and the risk multiple. Non-finite price,
// size or point value inputs yield a zero Result.
func Compute(in Inputs) Result {
	if !finite(in.Entry) || !finite(in.Exit) || !finite(in.Size) || !finite(in.PointValue) {
		return Result{}
	}

	points := in.Exit - in.Entry
	if in.Side == Short {
		points = in.Entry - in.Exit
	}

	fee := 0.0
	if in.Fee != nil && finite(*in.Fee) {
		fee = *in.Fee
	}
	pnl := points*in.Size*in.PointValue - fee

	totalRisk := 0.0
	if in.Stop != nil && finite(*in.Stop) {
		totalRisk = math.Abs(in.Entry-*in.Stop) * in.Size * in.PointValue
	}

	r := 0.0
	if totalRisk > 0 {
		r = pnl / totalRisk
	}

	return Result{
		PnL:       Round2(pnl),
		TotalRisk: Round2(totalRisk),
		RMultiple: Round2(r),
	}
}

// WeightedAverage returns the volume-weighted average price and total
// quantity over fills that have both a finite price and a positive finite
// quantity. ok is false when no fill qualifies.
func WeightedAverage(fills []Fill) (avg, qty float64, ok bool) {
	var notional float64
	for _, f := range fills {
		if !finite(f.Price) || !finite(f.Qty) || f.Qty <= 0 {
			continue
		}
		notional += f.Price * f.Qty
		qty += f.Qty
	}
	if qty == 0 {
		return 0, 0, false
	}
	return notional / qty, qty, true
}

// FormatR renders a risk multiple for display, "-" when the trade carried no
// measurable risk.
func FormatR(r, totalRisk float64) string {
	if totalRisk <= 0 {
		return "-"
	}
	return fmt.Sprintf("%.2fR", r)
}

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}

// RR is the planned reward:risk ratio for a target price.
func RR(entry, stop, target float64) float64 {
	risk := abs(entry - stop)
	reward := abs(target - entry)
	if risk == 0 || !finite(risk) || !finite(reward) {
		return 0
	}
	return reward / risk
}

// RiskPct is the fraction of equity put at risk. Zero or negative equity
// reports 0 rather than an infinite ratio.
func RiskPct(totalRisk, equity float64) float64 {
	if equity <= 0 {
		return 0
	}
	return totalRisk / equity
}
