package reconcile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

type hostCall struct {
	Method  string
	Payload map[string]any
}

// fakeHost models the scene side of the bridge: node dumps keyed by uuid,
// set-property on __comps__ paths and the component lifecycle RPCs.
type fakeHost struct {
	mu        sync.Mutex
	nodes     map[string]map[string]any
	functions map[string]map[string][]string
	calls     []hostCall

	reject     map[string]error
	rejectPath map[string]error
	dropWrites bool
	noopRemove bool
	nextID     int
}

func newFakeHost() *fakeHost {
	return &fakeHost{
		nodes:      map[string]map[string]any{},
		functions:  map[string]map[string][]string{},
		reject:     map[string]error{},
		rejectPath: map[string]error{},
	}
}

func (h *fakeHost) addNode(id string, comps ...map[string]any) {
	entries := make([]any, 0, len(comps))
	for _, c := range comps {
		entries = append(entries, c)
	}
	h.nodes[id] = map[string]any{
		"uuid":      map[string]any{"value": id, "type": "String"},
		"name":      map[string]any{"value": "node-" + id, "type": "String"},
		"__comps__": entries,
	}
}

func desc(value any, typ string) map[string]any {
	return map[string]any{"value": value, "type": typ, "readonly": false}
}

// comp builds a dumped component entry. props must already be descriptors.
func comp(kind, id string, props map[string]any) map[string]any {
	bag := map[string]any{
		"uuid":    desc(id, "String"),
		"enabled": desc(true, "Boolean"),
	}
	for k, v := range props {
		bag[k] = v
	}
	return map[string]any{"__type__": kind, "type": kind, "value": bag}
}

func (h *fakeHost) Request(_ context.Context, domain, method string, payload map[string]any) (json.RawMessage, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.calls = append(h.calls, hostCall{Method: method, Payload: payload})
	if domain != SceneDomain {
		return nil, fmt.Errorf("unexpected domain %q", domain)
	}
	if err := h.reject[method]; err != nil {
		return nil, err
	}
	id, _ := payload["uuid"].(string)

	switch method {
	case "query-node":
		node, ok := h.nodes[id]
		if !ok {
			return json.RawMessage("null"), nil
		}
		return json.Marshal(node)

	case "set-property":
		path, _ := payload["path"].(string)
		if err := h.rejectPath[path]; err != nil {
			return nil, err
		}
		if h.dropWrites {
			return json.RawMessage("true"), nil
		}
		dump, _ := payload["dump"].(map[string]any)
		return json.RawMessage("true"), h.setProperty(id, path, dump["value"])

	case "create-component":
		name, _ := payload["component"].(string)
		h.nextID++
		h.appendComp(id, comp(name, "created-"+strconv.Itoa(h.nextID), nil))
		return json.RawMessage("true"), nil

	case "remove-array-element", "remove-component":
		if h.noopRemove {
			return json.RawMessage("true"), nil
		}
		if index, ok := payload["index"].(int); ok {
			return json.RawMessage("true"), h.removeAt(id, index)
		}
		name, _ := payload["component"].(string)
		return json.RawMessage("true"), h.removeKind(id, name)

	case "delete-component":
		if h.noopRemove {
			return json.RawMessage("true"), nil
		}
		name, _ := payload["component"].(string)
		return json.RawMessage("true"), h.removeKind(id, name)

	case "query-component-function-of-node":
		return json.Marshal(h.functions[id])
	}
	return nil, fmt.Errorf("unsupported method %s", method)
}

func (h *fakeHost) comps(id string) []any {
	node := h.nodes[id]
	if node == nil {
		return nil
	}
	entries, _ := node["__comps__"].([]any)
	return entries
}

func (h *fakeHost) appendComp(id string, c map[string]any) {
	h.nodes[id]["__comps__"] = append(h.comps(id), c)
}

func (h *fakeHost) removeAt(id string, index int) error {
	entries := h.comps(id)
	if index < 0 || index >= len(entries) {
		return fmt.Errorf("index %d out of range", index)
	}
	h.nodes[id]["__comps__"] = append(entries[:index:index], entries[index+1:]...)
	return nil
}

func (h *fakeHost) removeKind(id, kind string) error {
	for i, entry := range h.comps(id) {
		if entry.(map[string]any)["__type__"] == kind {
			return h.removeAt(id, i)
		}
	}
	return fmt.Errorf("no %s on %s", kind, id)
}

func (h *fakeHost) setProperty(id, path string, value any) error {
	parts := strings.SplitN(path, ".", 3)
	if len(parts) != 3 || parts[0] != "__comps__" {
		return fmt.Errorf("bad path %q", path)
	}
	index, err := strconv.Atoi(parts[1])
	if err != nil {
		return err
	}
	entries := h.comps(id)
	if index < 0 || index >= len(entries) {
		return fmt.Errorf("index %d out of range", index)
	}
	entry := entries[index].(map[string]any)
	bag := entry["value"].(map[string]any)
	field := parts[2]

	// UITransform exposes size and anchor as scalar sub-paths.
	if entry["__type__"] == "cc.UITransform" {
		composite := map[string][2]string{
			"width":   {"contentSize", "width"},
			"height":  {"contentSize", "height"},
			"anchorX": {"anchorPoint", "x"},
			"anchorY": {"anchorPoint", "y"},
		}
		if target, ok := composite[field]; ok {
			d := bag[target[0]].(map[string]any)
			d["value"].(map[string]any)[target[1]] = value
			return nil
		}
	}
	if d, ok := bag[field].(map[string]any); ok {
		if _, isDesc := d["value"]; isDesc {
			d["value"] = value
			return nil
		}
	}
	bag[field] = desc(value, "")
	return nil
}

// field reads a component field value straight from the host model,
// normalized through JSON.
func (h *fakeHost) field(t *testing.T, id string, index int, name string) any {
	t.Helper()
	h.mu.Lock()
	defer h.mu.Unlock()
	entry := h.comps(id)[index].(map[string]any)
	value := entry["value"].(map[string]any)[name].(map[string]any)["value"]
	raw, err := json.Marshal(value)
	require.NoError(t, err)
	var out any
	require.NoError(t, json.Unmarshal(raw, &out))
	return out
}

func (h *fakeHost) methods() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]string, 0, len(h.calls))
	for _, c := range h.calls {
		out = append(out, c.Method)
	}
	return out
}

func (h *fakeHost) callsOf(method string) []hostCall {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []hostCall
	for _, c := range h.calls {
		if c.Method == method {
			out = append(out, c)
		}
	}
	return out
}

func (h *fakeHost) resetCalls() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.calls = nil
}

func newTestEngine(host Host) *Engine {
	return NewEngine(host,
		WithTiming(Timing{}),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
}

var errRejected = errors.New("rejected by host")
