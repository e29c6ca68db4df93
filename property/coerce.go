package property

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// toNumber follows the host scripting runtime's Number() conversion.
// The bool result is false when the value converts to NaN.
func toNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case nil:
		return 0, true
	case float64:
		return n, !math.IsNaN(n)
	case float32:
		return float64(n), !math.IsNaN(float64(n))
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case bool:
		if n {
			return 1, true
		}
		return 0, true
	case string:
		s := strings.TrimSpace(n)
		if s == "" {
			return 0, true
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil || math.IsNaN(f) {
			return 0, false
		}
		return f, true
	case []any:
		switch len(n) {
		case 0:
			return 0, true
		case 1:
			return toNumber(toString(n[0]))
		}
		return 0, false
	default:
		return 0, false
	}
}

// numberOrZero is Number(v) || 0.
func numberOrZero(v any) float64 {
	if f, ok := toNumber(v); ok {
		return f
	}
	return 0
}

// toString follows the host scripting runtime's String() conversion.
func toString(v any) string {
	switch s := v.(type) {
	case nil:
		return "null"
	case string:
		return s
	case bool:
		return strconv.FormatBool(s)
	case json.Number:
		return s.String()
	case []any:
		parts := make([]string, len(s))
		for i, item := range s {
			if item != nil {
				parts[i] = toString(item)
			}
		}
		return strings.Join(parts, ",")
	case map[string]any:
		return "[object Object]"
	}
	if f, ok := toNumber(v); ok {
		return formatNumber(f)
	}
	return "NaN"
}

func formatNumber(f float64) string {
	if math.IsInf(f, 1) {
		return "Infinity"
	}
	if math.IsInf(f, -1) {
		return "-Infinity"
	}
	if math.Abs(f) >= 1e21 {
		return strconv.FormatFloat(f, 'g', -1, 64)
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// typeOf mirrors the runtime's typeof operator for decoded JSON values.
func typeOf(v any) string {
	switch v.(type) {
	case string:
		return "string"
	case bool:
		return "boolean"
	case float64, float32, int, int32, int64, uint, uint32, uint64, json.Number:
		return "number"
	default:
		return "object"
	}
}

func isPrimitive(v any) bool {
	switch v.(type) {
	case string, bool, float64, float32, int, int32, int64, uint, uint32, uint64, json.Number:
		return true
	}
	return false
}

func hasKeys(m map[string]any, keys ...string) bool {
	for _, key := range keys {
		if _, ok := m[key]; !ok {
			return false
		}
	}
	return true
}
