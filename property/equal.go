package property

import (
	"bytes"
	"encoding/json"
	"reflect"

	"github.com/gowebpki/jcs"
)

// Equal decides whether a value read back from the host matches the value
// that was written.
//
//   - A reference wrapper compares identifiers, and an empty expected
//     identifier never matches.
//   - Two non-null objects of the same type compare structurally.
//   - Two primitives of the same type compare strictly.
//   - Values of different types match when either their string or their
//     numeric conversions are equal.
func Equal(expected, actual any) bool {
	if ref, ok := expected.(map[string]any); ok {
		if rawID, isRef := ref["uuid"]; isRef {
			want, _ := rawID.(string)
			if want == "" {
				return false
			}
			got, ok := Unwrap(actual)
			return ok && got == want
		}
	}

	expectedType, actualType := typeOf(expected), typeOf(actual)
	if expectedType == actualType {
		if expectedType == "object" && expected != nil && actual != nil {
			return canonicalEqual(expected, actual)
		}
		return strictEqual(expected, actual)
	}

	if toString(expected) == toString(actual) {
		return true
	}
	en, eok := toNumber(expected)
	an, aok := toNumber(actual)
	return eok && aok && en == an
}

func strictEqual(expected, actual any) bool {
	if expected == nil || actual == nil {
		return expected == nil && actual == nil
	}
	if typeOf(expected) == "number" {
		en, eok := toNumber(expected)
		an, aok := toNumber(actual)
		return eok && aok && en == an
	}
	return expected == actual
}

// canonicalEqual compares two JSON-compatible values by their RFC 8785
// canonical encoding, so key order and number formatting do not matter.
func canonicalEqual(a, b any) bool {
	ca, errA := canonicalJSON(a)
	cb, errB := canonicalJSON(b)
	if errA != nil || errB != nil {
		return reflect.DeepEqual(a, b)
	}
	return bytes.Equal(ca, cb)
}

func canonicalJSON(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return jcs.Transform(raw)
}
