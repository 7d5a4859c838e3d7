package journal

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNumUnmarshal(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want float64
		nan  bool
	}{
		{`12.5`, 12.5, false},
		{`"4500.25"`, 4500.25, false},
		{`" 3 "`, 3, false},
		{`""`, 0, true},
		{`null`, 0, true},
		{`"abc"`, 0, true},
		{`true`, 0, true},
	}

	for _, tt := range tests {
		var n Num
		require.NoError(t, json.Unmarshal([]byte(tt.in), &n), tt.in)
		if tt.nan {
			assert.True(t, math.IsNaN(n.Value()), tt.in)
		} else {
			assert.Equal(t, tt.want, n.Value(), tt.in)
		}
	}
}

func TestNumMarshal(t *testing.T) {
	t.Parallel()

	out, err := json.Marshal(struct {
		A Num  `json:"a"`
		B Num  `json:"b"`
		C *Num `json:"c,omitempty"`
	}{A: 1.25, B: Num(math.Inf(1))})
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":1.25,"b":null}`, string(out))
}

func TestLegacyTradeDecodes(t *testing.T) {
	t.Parallel()

	var tr Trade
	err := json.Unmarshal([]byte(`{
		"id": "legacy-1", "symbol": "ES", "type": "long",
		"entry": "100", "exit": "110", "contracts": "2", "pointValue": 50,
		"stop": "", "fees": null, "pnl": 123456
	}`), &tr)
	require.NoError(t, err)

	tr.Recompute(Futures)
	assert.Equal(t, Long, tr.Side)
	assert.InDelta(t, 1000.0, tr.PnL, 1e-9)
	assert.Equal(t, 0.0, tr.TotalRisk)
	assert.Equal(t, "-", tr.RMultipleDisplay)
}
