package property

import (
	"strconv"
	"strings"
)

const colorShape = "#RRGGBB, #RRGGBBAA or {r, g, b[, a]}"

// White is the substitute for malformed entries in color arrays.
func White() map[string]any {
	return map[string]any{"r": 255.0, "g": 255.0, "b": 255.0, "a": 255.0}
}

func clampChannel(v any) float64 {
	return min(255, max(0, numberOrZero(v)))
}

func encodeColor(kind Kind, value any) (map[string]any, error) {
	switch v := value.(type) {
	case string:
		return parseHexColor(kind, v)
	case map[string]any:
		if !hasKeys(v, "r", "g", "b") {
			return nil, mismatch(kind, colorShape, value, "object is missing r, g or b")
		}
		alpha := 255.0
		if a, ok := v["a"]; ok {
			alpha = clampChannel(a)
		}
		return map[string]any{
			"r": clampChannel(v["r"]),
			"g": clampChannel(v["g"]),
			"b": clampChannel(v["b"]),
			"a": alpha,
		}, nil
	default:
		return nil, mismatch(kind, colorShape, value, "unsupported color value of type %s", typeOf(value))
	}
}

// parseHexColor accepts #RRGGBB and #RRGGBBAA only. Named colors and rgb()
// notation are rejected.
func parseHexColor(kind Kind, s string) (map[string]any, error) {
	hex := strings.TrimSpace(s)
	if !strings.HasPrefix(hex, "#") || (len(hex) != 7 && len(hex) != 9) {
		return nil, mismatch(kind, colorShape, s, "%q is not a hex color", s)
	}
	channels := make([]float64, 0, 4)
	for i := 1; i < len(hex); i += 2 {
		n, err := strconv.ParseUint(hex[i:i+2], 16, 8)
		if err != nil {
			return nil, mismatch(kind, colorShape, s, "%q is not a hex color", s)
		}
		channels = append(channels, float64(n))
	}
	if len(channels) == 3 {
		channels = append(channels, 255)
	}
	return map[string]any{"r": channels[0], "g": channels[1], "b": channels[2], "a": channels[3]}, nil
}

func isColorShaped(v any) bool {
	m, ok := v.(map[string]any)
	return ok && hasKeys(m, "r", "g", "b")
}
