package snapshot

import (
	"bytes"
	"math"
	"strconv"
)

// Number is a JSON number that may be absent, null, or not a number at all.
// Anything other than a finite JSON number decodes as invalid instead of
// failing the whole snapshot.
type Number struct {
	Value float64
	Valid bool
}

// Num returns a valid Number holding v.
func Num(v float64) Number {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return Number{}
	}
	return Number{Value: v, Valid: true}
}

// Finite reports the value and whether it is usable.
func (n Number) Finite() (float64, bool) {
	if !n.Valid || math.IsNaN(n.Value) || math.IsInf(n.Value, 0) {
		return 0, false
	}
	return n.Value, true
}

// Or returns the value when finite, fallback otherwise.
func (n Number) Or(fallback float64) float64 {
	if v, ok := n.Finite(); ok {
		return v
	}
	return fallback
}

func (n *Number) UnmarshalJSON(data []byte) error {
	*n = Number{}
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil
	}
	// Strings, booleans and objects leave the field invalid.
	v, err := strconv.ParseFloat(string(trimmed), 64)
	if err != nil {
		return nil
	}
	*n = Num(v)
	return nil
}

func (n Number) MarshalJSON() ([]byte, error) {
	v, ok := n.Finite()
	if !ok {
		return []byte("null"), nil
	}
	return strconv.AppendFloat(nil, v, 'f', -1, 64), nil
}
