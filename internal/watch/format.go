package watch

import (
	"encoding/json"
	"fmt"
	"math"
	"unicode/utf8"
)

// FormatNumber renders x in the compact "%.6g" form used by every display.
func FormatNumber(x float64) string {
	return fmt.Sprintf("%.6g", x)
}

// FormatValue renders one document node the way pin results display it.
func FormatValue(v any) string {
	return scalar(v, DefaultEvalOptions().MaxPreviewChars).Display
}

func trimPreview(s string, maxChars int) string {
	if maxChars <= 0 {
		return ""
	}
	if len(s) <= maxChars {
		return s
	}
	cut := max(0, maxChars-3)
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}

// asNumber reports the numeric value of JSON numbers, including json.Number
// and Go numeric kinds from hand-built documents.
func asNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case uint32:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		if err != nil {
			return math.NaN(), true
		}
		return f, true
	}
	return 0, false
}

// coerce maps a node to a number for aggregation: numbers as-is, booleans to
// 1/0, arrays and objects to their size. Null and strings are not numeric.
func coerce(v any) (float64, bool) {
	if f, ok := asNumber(v); ok {
		return f, true
	}
	switch n := v.(type) {
	case bool:
		if n {
			return 1, true
		}
		return 0, true
	case []any:
		return float64(len(n)), true
	case map[string]any:
		return float64(len(n)), true
	}
	return 0, false
}

// scalar evaluates a single node into a display and optional numeric value.
func scalar(v any, maxPreview int) Result {
	r := Result{OK: true}
	if f, ok := asNumber(v); ok {
		r.Numeric, r.Value, r.Display = true, f, FormatNumber(f)
		return r
	}
	switch n := v.(type) {
	case nil:
		r.Display = "null"
	case bool:
		r.Numeric = true
		if n {
			r.Value, r.Display = 1, "true"
		} else {
			r.Value, r.Display = 0, "false"
		}
	case string:
		r.Display = `"` + trimPreview(n, maxPreview) + `"`
	case []any:
		r.Numeric, r.Value = true, float64(len(n))
		r.Display = fmt.Sprintf("[%d items]", len(n))
	case map[string]any:
		r.Numeric, r.Value = true, float64(len(n))
		r.Display = fmt.Sprintf("{%d keys}", len(n))
	default:
		r.Display = "(unknown)"
	}
	return r
}
