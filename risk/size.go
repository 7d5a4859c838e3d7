package risk

import "math"

// SizeInputs describe a planned trade for position sizing.
type SizeInputs struct {
	Equity     float64
	RiskPct    float64 // 0.01 risks 1% of equity
	Entry      float64
	Stop       float64
	PointValue float64 // 1 for equities
}

// Sizing is how many whole contracts or shares fit the risk budget.
type Sizing struct {
	Units         float64 `json:"units"`
	StopPoints    float64 `json:"stopPoints"`
	RiskAmount    float64 `json:"riskAmount"` // equity × risk pct
	RiskPerUnit   float64 `json:"riskPerUnit"`
	ActualRisk    float64 `json:"actualRisk"` // units × risk per unit
	ActualRiskPct float64 `json:"actualRiskPct"`
}

// Size returns the largest whole position whose loss at the stop stays
// within Equity × RiskPct. A zero or non-finite stop distance sizes to zero.
func Size(in SizeInputs) Sizing {
	if !finite(in.Equity) || !finite(in.RiskPct) || !finite(in.Entry) || !finite(in.Stop) || !finite(in.PointValue) {
		return Sizing{}
	}
	stopPoints := math.Abs(in.Entry - in.Stop)
	perUnit := stopPoints * in.PointValue
	budget := in.Equity * in.RiskPct
	if perUnit <= 0 || budget <= 0 {
		return Sizing{StopPoints: stopPoints, RiskPerUnit: Round2(perUnit), RiskAmount: Round2(math.Max(budget, 0))}
	}

	units := math.Floor(budget/perUnit + 1e-9)
	actual := units * perUnit
	return Sizing{
		Units:         units,
		StopPoints:    stopPoints,
		RiskAmount:    Round2(budget),
		RiskPerUnit:   Round2(perUnit),
		ActualRisk:    Round2(actual),
		ActualRiskPct: RiskPct(actual, in.Equity),
	}
}
