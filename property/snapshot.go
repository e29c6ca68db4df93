package property

import (
	"sort"
	"strings"
)

// FieldForm distinguishes descriptor-wrapped values from bare ones.
type FieldForm int

const (
	Bare FieldForm = iota
	Descriptor
)

// Field is one property as reported by the host. For descriptors Value is the
// unwrapped value and Meta holds the whole descriptor; for bare fields Meta
// is nil.
type Field struct {
	Form  FieldForm
	Value any
	Type  string
	Meta  map[string]any
}

// ComponentSnapshot is one component entry of a node dump.
type ComponentSnapshot struct {
	Index    int
	Kind     string
	Identity string
	Enabled  bool
	Fields   map[string]Field
	Raw      map[string]any
}

// NodeDump is the parsed result of one query-node call.
type NodeDump struct {
	UUID       string
	Name       string
	Components []ComponentSnapshot
	Raw        map[string]any
}

// reserved keys of a raw component entry that are not properties.
var reservedKeys = map[string]bool{
	"__type__": true,
	"cid":      true,
	"type":     true,
	"uuid":     true,
	"enabled":  true,
	"value":    true,
	"readonly": true,
	"visible":  true,
	"extends":  true,
	"default":  true,
	"name":     true,
	"path":     true,
}

// hiddenFields are properties every component carries that are never
// offered as assignable.
var hiddenFields = map[string]bool{
	"uuid": true,
	"node": true,
}

// ParseNode parses a query-node result. The component list is read from
// __comps__; a missing list yields a node without components.
func ParseNode(raw map[string]any) NodeDump {
	node := NodeDump{
		UUID: stringField(raw["uuid"]),
		Name: stringField(raw["name"]),
		Raw:  raw,
	}
	entries, _ := raw["__comps__"].([]any)
	for i, entry := range entries {
		m, ok := entry.(map[string]any)
		if !ok {
			m = map[string]any{}
		}
		node.Components = append(node.Components, ParseComponent(i, m))
	}
	return node
}

// ParseComponent resolves a raw component entry into a snapshot.
func ParseComponent(index int, raw map[string]any) ComponentSnapshot {
	c := ComponentSnapshot{
		Index:    index,
		Kind:     ComponentKind(raw),
		Identity: ComponentIdentity(raw),
		Enabled:  true,
		Fields:   map[string]Field{},
		Raw:      raw,
	}

	props := componentProperties(raw)
	for name, value := range props {
		c.Fields[name] = newField(value)
	}
	if f, ok := c.Fields["enabled"]; ok {
		if enabled, ok := f.Value.(bool); ok {
			c.Enabled = enabled
		}
	} else if enabled, ok := raw["enabled"].(bool); ok {
		c.Enabled = enabled
	}
	if c.Identity == "" {
		if id, ok := raw["uuid"].(string); ok {
			c.Identity = id
		}
	}
	return c
}

// ComponentKind returns the first non-empty of __type__, cid and type.
func ComponentKind(raw map[string]any) string {
	for _, key := range []string{"__type__", "cid", "type"} {
		if s, ok := raw[key].(string); ok && s != "" {
			return s
		}
	}
	return "Unknown"
}

func componentProperties(raw map[string]any) map[string]any {
	if value, ok := raw["value"].(map[string]any); ok {
		return value
	}
	props := make(map[string]any, len(raw))
	for key, value := range raw {
		if !reservedKeys[key] {
			props[key] = value
		}
	}
	return props
}

func newField(value any) Field {
	m, ok := value.(map[string]any)
	if !ok || !isDumpDescriptor(m) {
		return Field{Form: Bare, Value: value}
	}
	t, _ := m["type"].(string)
	return Field{Form: Descriptor, Value: m["value"], Type: t, Meta: m}
}

// isDumpDescriptor recognizes the {value, type, ...} wrapper the host puts
// around every dumped property.
func isDumpDescriptor(m map[string]any) bool {
	if _, ok := m["value"]; !ok {
		return false
	}
	for _, key := range []string{"type", "displayName", "readonly", "default", "extends"} {
		if _, ok := m[key]; ok {
			return true
		}
	}
	return false
}

// isValidPropertyDescriptor guards nested lookups against leaf objects such
// as {width, height}: an object whose values are all primitives is never a
// descriptor, even if it happens to carry descriptor key names.
func isValidPropertyDescriptor(v any) bool {
	m, ok := v.(map[string]any)
	if !ok {
		return false
	}
	allPrimitive := true
	for _, value := range m {
		if !isPrimitive(value) {
			allPrimitive = false
			break
		}
	}
	if allPrimitive {
		return false
	}
	_, hasName := m["name"]
	_, hasValue := m["value"]
	_, hasType := m["type"]
	_, hasDisplayName := m["displayName"]
	_, hasReadonly := m["readonly"]
	return (hasName || hasValue) && (hasType || hasDisplayName || hasReadonly)
}

// ComponentKinds lists component kinds in node order.
func (n NodeDump) ComponentKinds() []string {
	kinds := make([]string, 0, len(n.Components))
	for _, c := range n.Components {
		kinds = append(kinds, c.Kind)
	}
	return kinds
}

// Find returns the first component of the given kind.
func (n NodeDump) Find(kind string) (ComponentSnapshot, bool) {
	for _, c := range n.Components {
		if c.Kind == kind {
			return c, true
		}
	}
	return ComponentSnapshot{}, false
}

// Count returns how many components of the given kind the node carries.
func (n NodeDump) Count(kind string) int {
	count := 0
	for _, c := range n.Components {
		if c.Kind == kind {
			count++
		}
	}
	return count
}

// Values flattens the snapshot's fields into plain values, dropping
// underscore-prefixed internals.
func (c ComponentSnapshot) Values() map[string]any {
	out := make(map[string]any, len(c.Fields))
	for name, f := range c.Fields {
		if strings.HasPrefix(name, "_") {
			continue
		}
		out[name] = f.Value
	}
	return out
}

// FieldNames lists non-underscore, non-reserved field names in sorted order.
func (c ComponentSnapshot) FieldNames() []string {
	names := make([]string, 0, len(c.Fields))
	for name := range c.Fields {
		if strings.HasPrefix(name, "_") || hiddenFields[name] {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func stringField(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case map[string]any:
		if inner, ok := s["value"].(string); ok {
			return inner
		}
	}
	return ""
}
