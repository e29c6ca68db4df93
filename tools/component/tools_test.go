package component

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"

	"github.com/slighter12/cocos-mcp-go/reconcile"
	tooltypes "github.com/slighter12/cocos-mcp-go/tools/types"
)

// staticHost serves one node holding a cc.Sprite and records methods.
type staticHost struct {
	methods []string
}

func (h *staticHost) Request(_ context.Context, _, method string, payload map[string]any) (json.RawMessage, error) {
	h.methods = append(h.methods, method)
	if method != "query-node" {
		return json.RawMessage("true"), nil
	}
	if payload["uuid"] != "node-1" {
		return json.RawMessage("null"), nil
	}
	return json.Marshal(map[string]any{
		"uuid": map[string]any{"value": "node-1", "type": "String"},
		"__comps__": []any{
			map[string]any{
				"__type__": "cc.Sprite",
				"type":     "cc.Sprite",
				"value": map[string]any{
					"uuid":    map[string]any{"value": "sprite-1", "type": "String"},
					"enabled": map[string]any{"value": true, "type": "Boolean"},
				},
			},
		},
	})
}

func newTools(host reconcile.Host) map[string]tooltypes.Tool {
	engine := reconcile.NewEngine(host,
		reconcile.WithTiming(reconcile.Timing{}),
		reconcile.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
	out := map[string]tooltypes.Tool{}
	for _, tool := range GetAllTools(engine) {
		out[tool.Name()] = tool
	}
	return out
}

func TestGetAllTools_Names(t *testing.T) {
	tools := newTools(&staticHost{})
	for _, name := range []string{
		"set_component_property",
		"get_components",
		"get_component_info",
		"add_component",
		"remove_component",
		"manage_click_events",
	} {
		if _, ok := tools[name]; !ok {
			t.Fatalf("expected tool %s", name)
		}
	}
}

func TestGetComponentsTool_ListsComponents(t *testing.T) {
	tools := newTools(&staticHost{})
	raw, err := tools["get_components"].Execute(context.Background(), json.RawMessage(`{"nodeUuid":"node-1"}`))
	if err != nil {
		t.Fatalf("execute get_components: %v", err)
	}

	var result struct {
		Success bool           `json:"success"`
		Data    map[string]any `json:"data"`
	}
	if err := json.Unmarshal(raw, &result); err != nil {
		t.Fatalf("unmarshal result: %v", err)
	}
	if !result.Success || result.Data["count"] != float64(1) {
		t.Fatalf("unexpected result: %s", raw)
	}
}

func TestAddComponentTool_AlreadyPresentSkipsWrite(t *testing.T) {
	host := &staticHost{}
	tools := newTools(host)
	if _, err := tools["add_component"].Execute(context.Background(), json.RawMessage(`{"nodeUuid":"node-1","componentType":"cc.Sprite"}`)); err != nil {
		t.Fatalf("execute add_component: %v", err)
	}
	for _, method := range host.methods {
		if method == "create-component" {
			t.Fatal("expected no create-component for an existing component")
		}
	}
}

func TestGetComponentInfoTool_MissingNodeIsSemanticError(t *testing.T) {
	tools := newTools(&staticHost{})
	_, err := tools["get_component_info"].Execute(context.Background(), json.RawMessage(`{"nodeUuid":"missing","componentType":"cc.Sprite"}`))
	semanticErr, ok := tooltypes.AsSemanticError(err)
	if !ok {
		t.Fatalf("expected semantic error, got %v", err)
	}
	if semanticErr.Kind != string(reconcile.ClassNotFound) {
		t.Fatalf("expected not_found, got %s", semanticErr.Kind)
	}
	if semanticErr.Data["success"] != false {
		t.Fatalf("expected result payload in data, got %v", semanticErr.Data)
	}
}

func TestSetComponentPropertyTool_MissingComponentCarriesInstruction(t *testing.T) {
	tools := newTools(&staticHost{})
	args := json.RawMessage(`{"nodeUuid":"node-1","componentType":"cc.Label","property":"string","propertyType":"string","value":"hi"}`)
	_, err := tools["set_component_property"].Execute(context.Background(), args)
	semanticErr, ok := tooltypes.AsSemanticError(err)
	if !ok {
		t.Fatalf("expected semantic error, got %v", err)
	}
	if semanticErr.Kind != string(reconcile.ClassNotFound) {
		t.Fatalf("expected not_found, got %s", semanticErr.Kind)
	}
	if instruction, _ := semanticErr.Data["instruction"].(string); instruction == "" {
		t.Fatalf("expected add_component instruction, got %v", semanticErr.Data)
	}
}

func TestManageClickEventsTool_RequiresButton(t *testing.T) {
	tools := newTools(&staticHost{})
	_, err := tools["manage_click_events"].Execute(context.Background(), json.RawMessage(`{"nodeUuid":"node-1","operation":"clear"}`))
	if _, ok := tooltypes.AsSemanticError(err); !ok {
		t.Fatalf("expected semantic error, got %v", err)
	}
}

func TestExecute_RejectsMalformedArguments(t *testing.T) {
	tools := newTools(&staticHost{})
	_, err := tools["get_components"].Execute(context.Background(), json.RawMessage(`[1,2]`))
	semanticErr, ok := tooltypes.AsSemanticError(err)
	if !ok || semanticErr.Kind != tooltypes.SemanticKindInvalidParams {
		t.Fatalf("expected invalid_params, got %v", err)
	}
}
