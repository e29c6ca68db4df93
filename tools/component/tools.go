// Package component exposes the reconciliation engine as MCP tools.
package component

import (
	"context"
	"encoding/json"

	"github.com/slighter12/cocos-mcp-go/mcp"
	"github.com/slighter12/cocos-mcp-go/reconcile"
	tooltypes "github.com/slighter12/cocos-mcp-go/tools/types"
)

var (
	nodeUUIDSchema      = map[string]any{"type": "string", "description": "UUID of the scene node"}
	componentTypeSchema = map[string]any{"type": "string", "description": "Component class name, e.g. cc.Sprite"}
)

// respond turns an engine Result into tool output. Failed results become
// semantic errors carrying the whole result as data.
func respond(res reconcile.Result) ([]byte, error) {
	raw, err := json.Marshal(res)
	if err != nil {
		return nil, err
	}
	if res.Success {
		return raw, nil
	}

	var data map[string]any
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, err
	}
	kind := string(res.Kind)
	if kind == "" {
		kind = string(reconcile.ClassInternal)
	}
	return nil, tooltypes.NewSemanticError(kind, res.Error, data)
}

// SetComponentPropertyTool writes one component field and verifies it.
type SetComponentPropertyTool struct {
	engine *reconcile.Engine
}

func (t *SetComponentPropertyTool) Name() string { return "set_component_property" }
func (t *SetComponentPropertyTool) Description() string {
	return "Sets a property on a node component, converting the value to the editor's wire form and verifying the write by reading it back"
}
func (t *SetComponentPropertyTool) InputSchema() mcp.InputSchema {
	return mcp.InputSchema{
		Type: "object",
		Properties: map[string]any{
			"nodeUuid":      nodeUUIDSchema,
			"componentType": componentTypeSchema,
			"property":      map[string]any{"type": "string", "description": "Component field name"},
			"propertyType": map[string]any{
				"type":        "string",
				"description": "Value kind: string, number, integer, float, boolean, color, vec2, vec3, size, node, component, spriteFrame, prefab, asset, texture, material, font, clip, nodeArray, colorArray, numberArray, stringArray",
			},
			"value": map[string]any{"description": "New value in the shape the property type expects"},
		},
		Required: []string{"nodeUuid", "componentType", "property", "propertyType", "value"},
		Title:    "Set Component Property",
	}
}
func (t *SetComponentPropertyTool) Execute(ctx context.Context, args json.RawMessage) ([]byte, error) {
	var req reconcile.SetPropertyRequest
	if err := tooltypes.DecodeArgs(args, &req); err != nil {
		return nil, err
	}
	return respond(t.engine.SetComponentProperty(ctx, req))
}

type nodeComponentArgs struct {
	NodeUUID      string `json:"nodeUuid"`
	ComponentType string `json:"componentType"`
}

// GetComponentsTool lists the components attached to a node.
type GetComponentsTool struct {
	engine *reconcile.Engine
}

func (t *GetComponentsTool) Name() string        { return "get_components" }
func (t *GetComponentsTool) Description() string { return "Lists the components attached to a node" }
func (t *GetComponentsTool) InputSchema() mcp.InputSchema {
	return mcp.InputSchema{
		Type:       "object",
		Properties: map[string]any{"nodeUuid": nodeUUIDSchema},
		Required:   []string{"nodeUuid"},
		Title:      "Get Components",
	}
}
func (t *GetComponentsTool) Execute(ctx context.Context, args json.RawMessage) ([]byte, error) {
	var req nodeComponentArgs
	if err := tooltypes.DecodeArgs(args, &req); err != nil {
		return nil, err
	}
	return respond(t.engine.GetComponents(ctx, req.NodeUUID))
}

// GetComponentInfoTool describes one component of a node.
type GetComponentInfoTool struct {
	engine *reconcile.Engine
}

func (t *GetComponentInfoTool) Name() string { return "get_component_info" }
func (t *GetComponentInfoTool) Description() string {
	return "Returns the properties of one component on a node"
}
func (t *GetComponentInfoTool) InputSchema() mcp.InputSchema {
	return mcp.InputSchema{
		Type:       "object",
		Properties: map[string]any{"nodeUuid": nodeUUIDSchema, "componentType": componentTypeSchema},
		Required:   []string{"nodeUuid", "componentType"},
		Title:      "Get Component Info",
	}
}
func (t *GetComponentInfoTool) Execute(ctx context.Context, args json.RawMessage) ([]byte, error) {
	var req nodeComponentArgs
	if err := tooltypes.DecodeArgs(args, &req); err != nil {
		return nil, err
	}
	return respond(t.engine.GetComponentInfo(ctx, req.NodeUUID, req.ComponentType))
}

// AddComponentTool attaches a component and confirms it appeared.
type AddComponentTool struct {
	engine *reconcile.Engine
}

func (t *AddComponentTool) Name() string        { return "add_component" }
func (t *AddComponentTool) Description() string { return "Adds a component to a node" }
func (t *AddComponentTool) InputSchema() mcp.InputSchema {
	return mcp.InputSchema{
		Type:       "object",
		Properties: map[string]any{"nodeUuid": nodeUUIDSchema, "componentType": componentTypeSchema},
		Required:   []string{"nodeUuid", "componentType"},
		Title:      "Add Component",
	}
}
func (t *AddComponentTool) Execute(ctx context.Context, args json.RawMessage) ([]byte, error) {
	var req nodeComponentArgs
	if err := tooltypes.DecodeArgs(args, &req); err != nil {
		return nil, err
	}
	return respond(t.engine.AddComponent(ctx, req.NodeUUID, req.ComponentType))
}

// RemoveComponentTool detaches a component and confirms it is gone.
type RemoveComponentTool struct {
	engine *reconcile.Engine
}

func (t *RemoveComponentTool) Name() string        { return "remove_component" }
func (t *RemoveComponentTool) Description() string { return "Removes a component from a node" }
func (t *RemoveComponentTool) InputSchema() mcp.InputSchema {
	return mcp.InputSchema{
		Type:       "object",
		Properties: map[string]any{"nodeUuid": nodeUUIDSchema, "componentType": componentTypeSchema},
		Required:   []string{"nodeUuid", "componentType"},
		Title:      "Remove Component",
	}
}
func (t *RemoveComponentTool) Execute(ctx context.Context, args json.RawMessage) ([]byte, error) {
	var req nodeComponentArgs
	if err := tooltypes.DecodeArgs(args, &req); err != nil {
		return nil, err
	}
	return respond(t.engine.RemoveComponent(ctx, req.NodeUUID, req.ComponentType))
}

// ManageClickEventsTool edits the click event list of a button.
type ManageClickEventsTool struct {
	engine *reconcile.Engine
}

func (t *ManageClickEventsTool) Name() string { return "manage_click_events" }
func (t *ManageClickEventsTool) Description() string {
	return "Adds, modifies, removes or clears the click events of a node's cc.Button"
}
func (t *ManageClickEventsTool) InputSchema() mcp.InputSchema {
	return mcp.InputSchema{
		Type: "object",
		Properties: map[string]any{
			"nodeUuid": nodeUUIDSchema,
			"operation": map[string]any{
				"type": "string",
				"enum": []string{reconcile.ClickAdd, reconcile.ClickModify, reconcile.ClickRemove, reconcile.ClickClear},
			},
			"index":           map[string]any{"type": "integer", "description": "Event position for modify and remove"},
			"targetNodeUuid":  map[string]any{"type": "string", "description": "Node holding the handler component"},
			"componentName":   map[string]any{"type": "string", "description": "Handler component class name"},
			"handler":         map[string]any{"type": "string", "description": "Handler method name"},
			"customEventData": map[string]any{"type": "string"},
		},
		Required: []string{"nodeUuid", "operation"},
		Title:    "Manage Click Events",
	}
}
func (t *ManageClickEventsTool) Execute(ctx context.Context, args json.RawMessage) ([]byte, error) {
	var req reconcile.ClickEventRequest
	if err := tooltypes.DecodeArgs(args, &req); err != nil {
		return nil, err
	}
	return respond(t.engine.ManageClickEvents(ctx, req))
}

// GetAllTools returns every component tool bound to engine.
func GetAllTools(engine *reconcile.Engine) []tooltypes.Tool {
	return []tooltypes.Tool{
		&SetComponentPropertyTool{engine: engine},
		&GetComponentsTool{engine: engine},
		&GetComponentInfoTool{engine: engine},
		&AddComponentTool{engine: engine},
		&RemoveComponentTool{engine: engine},
		&ManageClickEventsTool{engine: engine},
	}
}
