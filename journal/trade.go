package journal

import (
	"cmp"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/rustyeddy/tradebook/risk"
)

const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04"
)

// Side is stored under the "type" field. Parsing ignores case; anything
// unrecognized reads as Long.
type Side string

const (
	Long  Side = "Long"
	Short Side = "Short"
)

func ParseSide(s string) (Side, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "long", "buy":
		return Long, true
	case "short", "sell":
		return Short, true
	}
	return Long, false
}

func (s *Side) UnmarshalJSON(b []byte) error {
	var raw string
	if err := json.Unmarshal(b, &raw); err != nil {
		*s = Long
		return nil
	}
	*s, _ = ParseSide(raw)
	return nil
}

// Fill is one entry or exit part of a layered position.
type Fill struct {
	Price Num `json:"price"`
	Qty   Num `json:"qty"`
}

type Trade struct {
	ID          string      `json:"id"`
	TradeNumber int         `json:"tradeNumber"`
	Symbol      string      `json:"symbol"`
	Side        Side        `json:"type"`
	Contracts   Num         `json:"contracts"`
	PointValue  Num         `json:"pointValue"`
	Entry       Num         `json:"entry"`
	Exit        Num         `json:"exit"`
	Stop        *Num        `json:"stop,omitempty"`
	Fees        *Num        `json:"fees,omitempty"`
	Target      *Num        `json:"target,omitempty"`
	Entries     []Fill      `json:"entries,omitempty"`
	Exits       []Fill      `json:"exits,omitempty"`
	Date        string      `json:"date"`
	Time        string      `json:"time,omitempty"`
	Strategy    string      `json:"strategy,omitempty"`
	Session     string      `json:"session,omitempty"`
	Timeframe   string      `json:"timeframe,omitempty"`
	Notes       string      `json:"notes,omitempty"`
	Tags        string      `json:"tags,omitempty"`
	Image       string      `json:"image,omitempty"`
	MentalState MentalState `json:"mentalState,omitempty"`

	// Derived by Recompute.
	PnL              float64 `json:"pnl"`
	TotalRisk        float64 `json:"totalRisk"`
	RMultiple        float64 `json:"rMultiple"`
	RMultipleDisplay string  `json:"rMultipleDisplay"`
	AvgEntry         float64 `json:"avgEntry,omitempty"`
	AvgExit          float64 `json:"avgExit,omitempty"`
	PlannedRR        float64 `json:"plannedRR,omitempty"`
}

func fills(parts []Fill) []risk.Fill {
	out := make([]risk.Fill, 0, len(parts))
	for _, p := range parts {
		out = append(out, risk.Fill{Price: p.Price.Value(), Qty: p.Qty.Value()})
	}
	return out
}

// Recompute rebuilds every derived field from the trade's inputs. Entry parts
// replace the entry price and contract count with their weighted average and
// total; exit parts replace the exit price.
func (t *Trade) Recompute(kind Kind) {
	if kind == Stocks && (!t.PointValue.finite() || t.PointValue == 0) {
		t.PointValue = 1
	}
	if t.Side != Short {
		t.Side = Long
	}

	t.AvgEntry, t.AvgExit = 0, 0
	if avg, qty, ok := risk.WeightedAverage(fills(t.Entries)); ok {
		t.Entry, t.Contracts = Num(avg), Num(qty)
		t.AvgEntry = avg
	}
	if avg, _, ok := risk.WeightedAverage(fills(t.Exits)); ok {
		t.Exit = Num(avg)
		t.AvgExit = avg
	}

	side := risk.Long
	if t.Side == Short {
		side = risk.Short
	}
	res := risk.Compute(risk.Inputs{
		Side:       side,
		Entry:      t.Entry.Value(),
		Exit:       t.Exit.Value(),
		Size:       t.Contracts.Value(),
		PointValue: t.PointValue.Value(),
		Stop:       optional(t.Stop),
		Fee:        optional(t.Fees),
	})
	t.PnL = res.PnL
	t.TotalRisk = res.TotalRisk
	t.RMultiple = res.RMultiple
	t.RMultipleDisplay = risk.FormatR(res.RMultiple, res.TotalRisk)

	t.PlannedRR = 0
	stop, target := optional(t.Stop), optional(t.Target)
	if stop != nil && target != nil && t.Entry.finite() {
		t.PlannedRR = risk.Round2(risk.RR(t.Entry.Value(), *stop, *target))
	}
}

// Validate checks the fields a new or edited trade must carry.
func (t Trade) Validate() error {
	if strings.TrimSpace(t.Symbol) == "" {
		return fmt.Errorf("%w: symbol is required", ErrInvalidTrade)
	}
	if _, ok := t.Day(); !ok {
		return fmt.Errorf("%w: date %q is not YYYY-MM-DD", ErrInvalidTrade, t.Date)
	}
	if t.Time != "" {
		if _, err := time.Parse(TimeLayout, t.Time); err != nil {
			return fmt.Errorf("%w: time %q is not HH:MM", ErrInvalidTrade, t.Time)
		}
	}
	if len(t.Entries) == 0 && (!t.Entry.finite() || !t.Contracts.finite()) {
		return fmt.Errorf("%w: entry and contracts must be numbers", ErrInvalidTrade)
	}
	if len(t.Exits) == 0 && !t.Exit.finite() {
		return fmt.Errorf("%w: exit must be a number", ErrInvalidTrade)
	}
	if !t.MentalState.Valid() {
		return fmt.Errorf("%w: mental state %q", ErrInvalidTrade, t.MentalState)
	}
	return nil
}

// Day is the trade's calendar date in UTC.
func (t Trade) Day() (time.Time, bool) {
	d, err := time.ParseInLocation(DateLayout, strings.TrimSpace(t.Date), time.UTC)
	if err != nil {
		return time.Time{}, false
	}
	return d, true
}

// When combines date and time of day. A missing or bad time reads as
// midnight.
func (t Trade) When() (time.Time, bool) {
	d, ok := t.Day()
	if !ok {
		return time.Time{}, false
	}
	if tod, err := time.Parse(TimeLayout, strings.TrimSpace(t.Time)); err == nil {
		d = d.Add(time.Duration(tod.Hour())*time.Hour + time.Duration(tod.Minute())*time.Minute)
	}
	return d, true
}

// Hour is the hour of day the trade was taken; ok is false without a time.
func (t Trade) Hour() (int, bool) {
	tod, err := time.Parse(TimeLayout, strings.TrimSpace(t.Time))
	if err != nil {
		return 0, false
	}
	return tod.Hour(), true
}

// SortTrades orders trades for display: newest date and time first, ties by
// trade number descending.
func SortTrades(trades []Trade) {
	slices.SortStableFunc(trades, func(a, b Trade) int {
		if c := cmp.Compare(b.Date, a.Date); c != 0 {
			return c
		}
		if c := cmp.Compare(b.Time, a.Time); c != 0 {
			return c
		}
		return cmp.Compare(b.TradeNumber, a.TradeNumber)
	})
}

// Chronological orders trades oldest first, the order equity accrues in.
func Chronological(trades []Trade) []Trade {
	out := slices.Clone(trades)
	SortTrades(out)
	slices.Reverse(out)
	return out
}
