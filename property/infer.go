package property

import (
	"sort"
	"strings"
)

// Inference is the outcome of looking a property up on a component.
type Inference struct {
	Exists          bool
	Kind            Kind
	AvailableFields []string
	RawValue        any
	// Meta is the property's descriptor when the host reported one.
	Meta map[string]any
}

// Infer finds name on the component and classifies its value. Lookup order:
// the component's own fields, then a descriptor inside a nested "value"
// bag. When neither matches, AvailableFields lists what the component offers.
func Infer(c ComponentSnapshot, name string) Inference {
	inf := Inference{AvailableFields: c.FieldNames()}

	if f, ok := c.Fields[name]; ok && name != "value" {
		inf.Exists = true
		inf.RawValue = f.Value
		inf.Meta = f.Meta
		inf.Kind = Classify(name, f.Value)
		return inf
	}

	if nested := nestedBag(c); nested != nil {
		if candidate, ok := nested[name]; ok && isValidPropertyDescriptor(candidate) {
			descriptor := candidate.(map[string]any)
			value, hasValue := descriptor["value"]
			if !hasValue {
				value = descriptor
			}
			inf.Exists = true
			inf.RawValue = value
			inf.Meta = descriptor
			inf.Kind = Classify(name, value)
			return inf
		}
		inf.AvailableFields = mergeNames(inf.AvailableFields, nested)
	}

	inf.Kind = Kind{Tag: Unknown}
	return inf
}

func nestedBag(c ComponentSnapshot) map[string]any {
	f, ok := c.Fields["value"]
	if !ok {
		return nil
	}
	nested, _ := f.Value.(map[string]any)
	if nested == nil || isValidPropertyDescriptor(nested) {
		return nil
	}
	return nested
}

func mergeNames(names []string, bag map[string]any) []string {
	seen := make(map[string]bool, len(names)+len(bag))
	out := make([]string, 0, len(names)+len(bag))
	for _, n := range names {
		if n == "value" || seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, n)
	}
	for key := range bag {
		if strings.HasPrefix(key, "_") || hiddenFields[key] || reservedKeys[key] || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, key)
	}
	sort.Strings(out)
	return out
}

// Classify decides the kind of a value from its shape, falling back to
// property-name heuristics for arrays, strings and null values.
func Classify(name string, value any) Kind {
	switch v := value.(type) {
	case []any:
		switch {
		case IsNodeName(name):
			return ArrayOf(Kind{Tag: Node, Type: TypeNode})
		case strings.Contains(strings.ToLower(name), "color"):
			return ArrayOf(Kind{Tag: Color})
		}
		return Kind{Tag: Array}
	case string:
		if IsAssetName(name) {
			return Kind{Tag: Asset, Type: AssetTypeTag(name)}
		}
		return Kind{Tag: String}
	case bool:
		return Kind{Tag: Boolean}
	case map[string]any:
		return classifyObject(name, v)
	case nil:
		switch {
		case IsAssetName(name):
			return Kind{Tag: Asset, Type: AssetTypeTag(name)}
		case IsNodeName(name):
			return Kind{Tag: Node, Type: TypeNode}
		case IsComponentName(name):
			return Kind{Tag: Component}
		}
		return Kind{Tag: Unknown}
	}
	if typeOf(value) == "number" {
		return Kind{Tag: Number}
	}
	return Kind{Tag: Unknown}
}

func classifyObject(name string, m map[string]any) Kind {
	switch {
	case hasKeys(m, "r", "g", "b"):
		return Kind{Tag: Color}
	case hasKeys(m, "x", "y", "z"):
		return Kind{Tag: Vec3}
	case hasKeys(m, "x", "y"):
		return Kind{Tag: Vec2}
	case hasKeys(m, "width", "height"):
		return Kind{Tag: Size}
	case hasKeys(m, "uuid") || hasKeys(m, "__uuid__"):
		if IsNodeName(name) {
			return Kind{Tag: Node, Type: TypeNode}
		}
		return Kind{Tag: Asset, Type: AssetTypeTag(name)}
	}
	return Kind{Tag: Object}
}
