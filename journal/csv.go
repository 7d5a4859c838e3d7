package journal

import (
	"encoding/csv"
	"os"
	"strconv"
	"time"
)

// EquityPoint is the account value after one trade closes.
type EquityPoint struct {
	Time    time.Time
	TradeID string
	PnL     float64
	Equity  float64
}

// CSVWriter writes trades.csv and equity.csv side by side.
type CSVWriter struct {
	trades *csv.Writer
	equity *csv.Writer
	tf, ef *os.File
}

func NewCSV(tradesPath, equityPath string) (*CSVWriter, error) {
	tf, err := os.Create(tradesPath)
	if err != nil {
		return nil, err
	}
	ef, err := os.Create(equityPath)
	if err != nil {
		_ = tf.Close()
		return nil, err
	}

	tw := csv.NewWriter(tf)
	ew := csv.NewWriter(ef)

	if err := tw.Write([]string{"id", "trade_number", "date", "time", "symbol", "side", "contracts", "point_value", "entry", "exit", "stop", "fees", "pnl", "total_risk", "r_multiple", "strategy", "session", "mental_state"}); err != nil {
		return nil, err
	}
	if err := ew.Write([]string{"time", "trade_id", "pnl", "equity"}); err != nil {
		return nil, err
	}

	tw.Flush()
	if err := tw.Error(); err != nil {
		return nil, err
	}
	ew.Flush()
	if err := ew.Error(); err != nil {
		return nil, err
	}

	return &CSVWriter{tw, ew, tf, ef}, nil
}

func (w *CSVWriter) RecordTrade(t Trade) error {
	err := w.trades.Write([]string{
		t.ID,
		strconv.Itoa(t.TradeNumber),
		t.Date,
		t.Time,
		t.Symbol,
		string(t.Side),
		f(t.Contracts.Value()),
		f(t.PointValue.Value()),
		f(t.Entry.Value()),
		f(t.Exit.Value()),
		opt(t.Stop),
		opt(t.Fees),
		money(t.PnL),
		money(t.TotalRisk),
		money(t.RMultiple),
		t.Strategy,
		t.Session,
		string(t.MentalState),
	})
	if err != nil {
		return err
	}
	w.trades.Flush()
	return w.trades.Error()
}

func (w *CSVWriter) RecordEquity(e EquityPoint) error {
	err := w.equity.Write([]string{
		e.Time.UTC().Format(time.RFC3339),
		e.TradeID,
		money(e.PnL),
		money(e.Equity),
	})
	if err != nil {
		return err
	}

	w.equity.Flush()
	return w.equity.Error()
}

func (w *CSVWriter) Close() error {
	w.trades.Flush()
	if err := w.trades.Error(); err != nil {
		return err
	}
	w.equity.Flush()
	if err := w.equity.Error(); err != nil {
		return err
	}

	if err := w.tf.Close(); err != nil {
		return err
	}
	if err := w.ef.Close(); err != nil {
		return err
	}
	return nil
}

func f(x float64) string {
	if !finite(x) {
		return ""
	}
	return strconv.FormatFloat(x, 'f', -1, 64)
}

func money(x float64) string {
	return strconv.FormatFloat(x, 'f', 2, 64)
}

func opt(n *Num) string {
	if n == nil {
		return ""
	}
	return f(n.Value())
}
