package property

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Encode converts a caller value into the wire value for kind. It fails with
// a *ConversionError when the value's shape does not fit the kind.
func Encode(value any, kind Kind) (any, error) {
	switch kind.Tag {
	case String:
		if value == nil {
			return "", nil
		}
		return toString(value), nil
	case Number:
		if value == nil {
			return nil, mismatch(kind, "number", value, "value is required")
		}
		n, ok := toNumber(value)
		if !ok {
			return nil, mismatch(kind, "number", value, "%q is not numeric", toString(value))
		}
		return n, nil
	case Boolean:
		return encodeBool(kind, value)
	case Color:
		return encodeColor(kind, value)
	case Vec2:
		return encodeComposite(kind, value, "{x, y}", "x", "y")
	case Vec3:
		return encodeComposite(kind, value, "{x, y, z}", "x", "y", "z")
	case Size:
		return encodeComposite(kind, value, "{width, height}", "width", "height")
	case Node, Asset, Component:
		return encodeReference(kind, value)
	case Array:
		return encodeArray(kind, value)
	default:
		return nil, mismatch(kind, "a supported property type", value, "kind %s cannot be written", kind)
	}
}

func encodeBool(kind Kind, value any) (any, error) {
	switch v := value.(type) {
	case nil:
		return false, nil
	case bool:
		return v, nil
	case string:
		b, err := strconv.ParseBool(v)
		if err != nil {
			return nil, mismatch(kind, "true or false", value, "%q is not a boolean", v)
		}
		return b, nil
	}
	if n, ok := toNumber(value); ok && isPrimitive(value) {
		return n != 0, nil
	}
	return nil, mismatch(kind, "true or false", value, "unsupported boolean value of type %s", typeOf(value))
}

// encodeComposite fills every axis with Number(v)||0. Unlike color channels
// the values are not clamped.
func encodeComposite(kind Kind, value any, shape string, keys ...string) (any, error) {
	m, ok := value.(map[string]any)
	if !ok {
		return nil, mismatch(kind, shape, value, "expected an object, got %s", typeOf(value))
	}
	out := make(map[string]any, len(keys))
	for _, key := range keys {
		raw, present := m[key]
		if !present {
			return nil, mismatch(kind, shape, value, "missing field %q", key)
		}
		out[key] = numberOrZero(raw)
	}
	return out, nil
}

func encodeArray(kind Kind, value any) (any, error) {
	if kind.Elem == nil {
		return nil, mismatch(kind, "a typed array", value, "untyped arrays cannot be written")
	}
	items, ok := value.([]any)
	if !ok {
		return nil, mismatch(kind, "[...]", value, "expected an array, got %s", typeOf(value))
	}
	out := make([]any, 0, len(items))
	for i, item := range items {
		switch kind.Elem.Tag {
		case Node:
			id, ok := item.(string)
			if !ok {
				return nil, mismatch(kind, `["<uuid>", ...]`, value, "item %d is not a string", i)
			}
			out = append(out, Wrap(id))
		case Color:
			if !isColorShaped(item) {
				out = append(out, White())
				continue
			}
			c, err := encodeColor(*kind.Elem, item)
			if err != nil {
				return nil, err
			}
			out = append(out, c)
		case Number:
			n, ok := toNumber(item)
			if !ok || item == nil {
				return nil, mismatch(kind, "[number, ...]", value, "item %d is not numeric", i)
			}
			out = append(out, n)
		case String:
			out = append(out, toString(item))
		default:
			return nil, mismatch(kind, "a supported array type", value, "arrays of %s cannot be written", kind.Elem)
		}
	}
	return out, nil
}

// Decode converts a wire value back into caller form. References are
// unwrapped to their identifier; everything else is passed through.
func Decode(wire any, kind Kind) any {
	switch kind.Tag {
	case Node, Asset, Component:
		if id, ok := Unwrap(wire); ok {
			return id
		}
		return nil
	case Array:
		items, ok := wire.([]any)
		if !ok || kind.Elem == nil {
			return wire
		}
		out := make([]any, len(items))
		for i, item := range items {
			out[i] = Decode(item, *kind.Elem)
		}
		return out
	}
	return wire
}

// TypeTag returns the host type tag written next to a value of kind, or ""
// for primitives.
func TypeTag(kind Kind) string {
	switch kind.Tag {
	case Color:
		return TypeColor
	case Vec2:
		return TypeVec2
	case Vec3:
		return TypeVec3
	case Size:
		return TypeSize
	case Node:
		return TypeNode
	case Component:
		if kind.Type != "" {
			return kind.Type
		}
		return TypeComponent
	case Asset:
		if kind.Type != "" {
			return kind.Type
		}
		return TypeAsset
	case Array:
		if kind.Elem != nil {
			return TypeTag(*kind.Elem)
		}
	}
	return ""
}

// Dump builds the typed dump the set-property RPC expects.
func Dump(wire any, kind Kind) map[string]any {
	dump := map[string]any{"value": wire}
	if tag := TypeTag(kind); tag != "" {
		dump["type"] = tag
	}
	if kind.Tag == Array {
		dump["isArray"] = true
	}
	return dump
}

// Describe renders a wire value for log records and messages.
func Describe(wire any) string {
	if id, ok := Unwrap(wire); ok {
		return fmt.Sprintf("{uuid:%s}", id)
	}
	if isPrimitive(wire) || wire == nil {
		return toString(wire)
	}
	raw, err := json.Marshal(wire)
	if err != nil {
		return fmt.Sprint(wire)
	}
	return string(raw)
}
