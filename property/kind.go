// Package property converts component property values between the JSON a
// caller supplies and the dump shapes the scene editor reads and writes.
package property

import (
	"fmt"
	"sort"
	"strings"
)

// Tag identifies one member of the closed set of value kinds.
type Tag int

const (
	Unknown Tag = iota
	String
	Number
	Boolean
	Color
	Vec2
	Vec3
	Size
	Node
	Component
	Asset
	Array
	Object
)

var tagNames = map[Tag]string{
	Unknown:   "unknown",
	String:    "string",
	Number:    "number",
	Boolean:   "boolean",
	Color:     "color",
	Vec2:      "vec2",
	Vec3:      "vec3",
	Size:      "size",
	Node:      "node",
	Component: "component",
	Asset:     "asset",
	Array:     "array",
	Object:    "object",
}

func (t Tag) String() string {
	if name, ok := tagNames[t]; ok {
		return name
	}
	return fmt.Sprintf("tag(%d)", int(t))
}

// Kind is a value kind. Type carries the host type tag for asset and
// component references; Elem is set for typed arrays.
type Kind struct {
	Tag  Tag
	Type string
	Elem *Kind
}

// ArrayOf returns an array kind whose items are elem.
func ArrayOf(elem Kind) Kind {
	return Kind{Tag: Array, Elem: &elem}
}

func (k Kind) String() string {
	switch k.Tag {
	case Array:
		if k.Elem == nil {
			return "array"
		}
		return k.Elem.String() + "Array"
	case Asset, Component:
		if k.Type != "" {
			return fmt.Sprintf("%s(%s)", k.Tag, k.Type)
		}
	}
	return k.Tag.String()
}

// Compatible reports whether k and other describe the same family of values.
// Asset subtypes and untyped arrays are treated as wildcards.
func (k Kind) Compatible(other Kind) bool {
	if k.Tag != other.Tag {
		return false
	}
	if k.Tag == Array && k.Elem != nil && other.Elem != nil {
		return k.Elem.Compatible(*other.Elem)
	}
	return true
}

var callerKinds = map[string]Kind{
	"string":      {Tag: String},
	"number":      {Tag: Number},
	"integer":     {Tag: Number},
	"float":       {Tag: Number},
	"boolean":     {Tag: Boolean},
	"color":       {Tag: Color},
	"vec2":        {Tag: Vec2},
	"vec3":        {Tag: Vec3},
	"size":        {Tag: Size},
	"node":        {Tag: Node, Type: TypeNode},
	"component":   {Tag: Component},
	"spriteframe": {Tag: Asset, Type: "cc.SpriteFrame"},
	"prefab":      {Tag: Asset, Type: "cc.Prefab"},
	"asset":       {Tag: Asset, Type: "cc.Asset"},
	"texture":     {Tag: Asset, Type: "cc.Texture2D"},
	"material":    {Tag: Asset, Type: "cc.Material"},
	"font":        {Tag: Asset, Type: "cc.Font"},
	"clip":        {Tag: Asset, Type: "cc.AudioClip"},
	"nodearray":   ArrayOf(Kind{Tag: Node, Type: TypeNode}),
	"colorarray":  ArrayOf(Kind{Tag: Color}),
	"numberarray": ArrayOf(Kind{Tag: Number}),
	"stringarray": ArrayOf(Kind{Tag: String}),
}

// CallerTypeNames lists the property type names accepted by ParseKind.
func CallerTypeNames() []string {
	names := []string{
		"string", "number", "integer", "float", "boolean", "color", "vec2", "vec3", "size",
		"node", "component", "spriteFrame", "prefab", "asset", "texture", "material", "font", "clip",
		"nodeArray", "colorArray", "numberArray", "stringArray",
	}
	sort.Strings(names)
	return names
}

// ParseKind maps a caller-facing property type name to a Kind.
func ParseKind(name string) (Kind, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	kind, ok := callerKinds[key]
	if !ok {
		return Kind{}, fmt.Errorf("unsupported property type %q", name)
	}
	return kind, nil
}
