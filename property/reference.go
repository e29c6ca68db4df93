package property

import "strings"

// Host type tags used in property dumps.
const (
	TypeNode      = "cc.Node"
	TypeColor     = "cc.Color"
	TypeVec2      = "cc.Vec2"
	TypeVec3      = "cc.Vec3"
	TypeSize      = "cc.Size"
	TypeAsset     = "cc.Asset"
	TypeComponent = "cc.Component"
)

var assetHints = []struct {
	hint string
	tag  string
}{
	{"spriteframe", "cc.SpriteFrame"},
	{"texture", "cc.Texture2D"},
	{"material", "cc.Material"},
	{"font", "cc.Font"},
	{"clip", "cc.AudioClip"},
	{"prefab", "cc.Prefab"},
}

var genericComponentTypes = map[string]bool{
	"cc.Component": true,
	"cc.Object":    true,
	"Object":       true,
}

// Wrap returns the wire form of a node, component or asset reference.
func Wrap(id string) map[string]any {
	return map[string]any{"uuid": id}
}

// Unwrap extracts the identifier from a reference wire value. Both the
// {uuid} and the serialized {__uuid__} forms are accepted.
func Unwrap(wire any) (string, bool) {
	m, ok := wire.(map[string]any)
	if !ok {
		return "", false
	}
	for _, key := range []string{"uuid", "__uuid__"} {
		if id, ok := m[key].(string); ok {
			return id, true
		}
	}
	return "", false
}

// AssetTypeTag picks the asset type tag implied by a property or subtype name.
func AssetTypeTag(name string) string {
	lower := strings.ToLower(name)
	for _, h := range assetHints {
		if strings.Contains(lower, h.hint) {
			return h.tag
		}
	}
	return TypeAsset
}

// IsAssetName reports whether a property name looks like an asset slot.
func IsAssetName(name string) bool {
	lower := strings.ToLower(name)
	for _, h := range assetHints {
		if strings.Contains(lower, h.hint) {
			return true
		}
	}
	return false
}

// IsNodeName reports whether a property name looks like a node slot.
func IsNodeName(name string) bool {
	lower := strings.ToLower(name)
	return strings.Contains(lower, "node") || strings.Contains(lower, "target")
}

// IsComponentName reports whether a property name looks like a component slot.
func IsComponentName(name string) bool {
	return strings.Contains(strings.ToLower(name), "component")
}

// ExpectedComponentType derives the component type a reference slot accepts
// from its descriptor metadata: type, then ctor, then the first non-generic
// cc.* entry of extends.
func ExpectedComponentType(meta map[string]any) (string, bool) {
	if meta == nil {
		return "", false
	}
	for _, key := range []string{"type", "ctor"} {
		if t, ok := meta[key].(string); ok && t != "" && !genericComponentTypes[t] {
			return t, true
		}
	}
	extends, _ := meta["extends"].([]any)
	for _, entry := range extends {
		name, ok := entry.(string)
		if ok && strings.HasPrefix(name, "cc.") && !genericComponentTypes[name] {
			return name, true
		}
	}
	return "", false
}

// ComponentIdentity reads a raw component entry's scene-local id from
// value.uuid.value.
func ComponentIdentity(raw map[string]any) string {
	value, _ := raw["value"].(map[string]any)
	uuid, _ := value["uuid"].(map[string]any)
	id, _ := uuid["value"].(string)
	return id
}

func encodeReference(kind Kind, value any) (any, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case string:
		if strings.TrimSpace(v) == "" {
			return nil, nil
		}
		return Wrap(v), nil
	case map[string]any:
		if id, ok := Unwrap(v); ok {
			if id == "" {
				return nil, nil
			}
			return Wrap(id), nil
		}
	}
	return nil, mismatch(kind, `"<uuid>" or {uuid: "<uuid>"}`, value, "unsupported reference value of type %s", typeOf(value))
}
