package plugin

import (
	"encoding/json"
	"maps"
	"math"
	"strconv"
)

// Params maps parameter names to numeric, boolean or string values.
type Params map[string]any

// EnabledKey is the param carrying a node's enabled state.
const EnabledKey = "isEnabled"

// Clone returns a shallow copy.
func (p Params) Clone() Params {
	out := make(Params, len(p))
	maps.Copy(out, p)

	return out
}

// Merge copies update into p, allocating p when nil, and returns it.
func (p Params) Merge(update Params) Params {
	if p == nil {
		p = make(Params, len(update))
	}

	maps.Copy(p, update)

	return p
}

// Float extracts a numeric parameter, returning def if missing or invalid.
// Booleans read as 0 or 1 and numeric strings are parsed.
func (p Params) Float(key string, def float64) float64 {
	v, ok := p[key]
	if !ok {
		return def
	}

	var f float64
	switch x := v.(type) {
	case float64:
		f = x
	case float32:
		f = float64(x)
	case int:
		f = float64(x)
	case int64:
		f = float64(x)
	case json.Number:
		parsed, err := x.Float64()
		if err != nil {
			return def
		}

		f = parsed
	case bool:
		if x {
			return 1
		}

		return 0
	case string:
		parsed, err := strconv.ParseFloat(x, 64)
		if err != nil {
			return def
		}

		f = parsed
	default:
		return def
	}

	if math.IsNaN(f) || math.IsInf(f, 0) {
		return def
	}

	return f
}

// Bool extracts a boolean parameter. Numbers read as true when non-zero.
func (p Params) Bool(key string, def bool) bool {
	v, ok := p[key]
	if !ok {
		return def
	}

	switch x := v.(type) {
	case bool:
		return x
	case string:
		b, err := strconv.ParseBool(x)
		if err != nil {
			return def
		}

		return b
	default:
		f := p.Float(key, math.NaN())
		if math.IsNaN(f) {
			return def
		}

		return f != 0
	}
}

// String extracts a string parameter. Numbers are formatted.
func (p Params) String(key, def string) string {
	v, ok := p[key]
	if !ok {
		return def
	}

	switch x := v.(type) {
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case int:
		return strconv.Itoa(x)
	default:
		return def
	}
}

// Int extracts an integer parameter, truncating toward zero.
func (p Params) Int(key string, def int) int {
	f := p.Float(key, math.NaN())
	if math.IsNaN(f) {
		return def
	}

	return int(f)
}
