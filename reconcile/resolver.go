package reconcile

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/slighter12/cocos-mcp-go/property"
)

// compsKey is the node dump key holding the ordered component list.
const compsKey = "__comps__"

// queryNode reads a fresh dump of nodeID. Results are never cached; every
// caller queries again before it writes.
func (e *Engine) queryNode(ctx context.Context, nodeID string) (property.NodeDump, error) {
	raw, err := e.request(ctx, "query-node", map[string]any{"uuid": nodeID})
	if err != nil {
		return property.NodeDump{}, hostError(err, "query-node %s failed", nodeID)
	}
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return property.NodeDump{}, notFound(nil, "node %s not found", nodeID)
	}
	var dump map[string]any
	if err := json.Unmarshal(trimmed, &dump); err != nil {
		return property.NodeDump{}, &Error{Class: ClassHost, Message: fmt.Sprintf("query-node %s returned an unreadable dump", nodeID), Err: err}
	}
	if len(dump) == 0 {
		return property.NodeDump{}, notFound(nil, "node %s not found", nodeID)
	}
	node := property.ParseNode(dump)
	if node.UUID == "" {
		node.UUID = nodeID
	}
	return node, nil
}

// ResolveComponentIndex scans a raw node dump for the first component of kind
// and returns its position.
func ResolveComponentIndex(rawNode map[string]any, kind string) (int, bool) {
	entries, _ := rawNode[compsKey].([]any)
	for i, entry := range entries {
		m, _ := entry.(map[string]any)
		if property.ComponentKind(m) == kind {
			return i, true
		}
	}
	return -1, false
}

// PropertyPath builds the set-property path for a field of the component at
// index.
func PropertyPath(index int, field string) string {
	return fmt.Sprintf("%s.%d.%s", compsKey, index, field)
}

// locate re-reads nodeID and resolves the component of kind. A missing
// component reports the kinds the node does carry.
func (e *Engine) locate(ctx context.Context, nodeID, kind string) (property.NodeDump, property.ComponentSnapshot, error) {
	node, err := e.queryNode(ctx, nodeID)
	if err != nil {
		return property.NodeDump{}, property.ComponentSnapshot{}, err
	}
	index, ok := ResolveComponentIndex(node.Raw, kind)
	if !ok {
		available := node.ComponentKinds()
		return node, property.ComponentSnapshot{}, notFound(available, "component %s not found on node %s (available: %s)", kind, nodeID, listOrNone(available))
	}
	return node, node.Components[index], nil
}

// suggestAdd points a missing-component failure at add_component.
func suggestAdd(err error, nodeID, kind string) error {
	var e *Error
	if errors.As(err, &e) && e.Class == ClassNotFound && e.Available != nil {
		copied := *e
		copied.Instruction = fmt.Sprintf("Use add_component to add %s to node %s first.", kind, nodeID)
		return &copied
	}
	return err
}

func listOrNone(items []string) string {
	if len(items) == 0 {
		return "none"
	}
	return strings.Join(items, ", ")
}
