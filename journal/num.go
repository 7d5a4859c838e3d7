package journal

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Num is a float that tolerates the loose numbers found in older documents:
// JSON numbers, numeric strings, empty strings and null all decode, the last
// two (and anything unparseable) as NaN. Non-finite values encode as null.
type Num float64

func (n Num) Value() float64 { return float64(n) }

func (n Num) finite() bool { return finite(float64(n)) }

// Ptr returns a pointer to a copy of n, for optional fields.
func (n Num) Ptr() *Num { return &n }

func (n Num) MarshalJSON() ([]byte, error) {
	if !n.finite() {
		return []byte("null"), nil
	}
	return []byte(strconv.FormatFloat(float64(n), 'f', -1, 64)), nil
}

func (n *Num) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			*n = Num(math.NaN())
			return nil
		}
		*n = parseNum(s)
		return nil
	}
	*n = parseNum(string(b))
	return nil
}

func parseNum(s string) Num {
	s = strings.TrimSpace(s)
	if s == "" || s == "null" {
		return Num(math.NaN())
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return Num(math.NaN())
	}
	return Num(f)
}

// optional turns a nil or non-finite optional field into nil.
func optional(n *Num) *float64 {
	if n == nil || !n.finite() {
		return nil
	}
	f := n.Value()
	return &f
}

func finite(x float64) bool {
	return !math.IsNaN(x) && !math.IsInf(x, 0)
}
