package utility

import (
	"context"
	"encoding/json"
	"time"

	"github.com/slighter12/cocos-mcp-go/logger"
	"github.com/slighter12/cocos-mcp-go/mcp"
	"github.com/slighter12/cocos-mcp-go/runtimebridge"
	tooltypes "github.com/slighter12/cocos-mcp-go/tools/types"
)

type syncEditorRuntimePayload struct {
	Editor  runtimebridge.EditorInfo `json:"editor"`
	Context tooltypes.MCPContext     `json:"_mcp"`
}

// SyncEditorRuntimeTool registers the calling session as the scene editor
// that receives scene commands.
type SyncEditorRuntimeTool struct{}

func NewSyncEditorRuntimeTool() *SyncEditorRuntimeTool {
	return &SyncEditorRuntimeTool{}
}

func (t *SyncEditorRuntimeTool) Name() string { return "sync-editor-runtime" }

func (t *SyncEditorRuntimeTool) Description() string {
	return "Registers the Cocos editor plugin session for scene commands (internal bridge tool)"
}

func (t *SyncEditorRuntimeTool) InputSchema() mcp.InputSchema {
	return mcp.InputSchema{
		Type: "object",
		Properties: map[string]any{
			"editor": map[string]any{
				"type":        "object",
				"description": "Editor identity reported by the plugin",
				"properties": map[string]any{
					"editor_version": map[string]any{"type": "string"},
					"plugin_version": map[string]any{"type": "string"},
					"project_path":   map[string]any{"type": "string"},
					"project_name":   map[string]any{"type": "string"},
					"active_scene":   map[string]any{"type": "string"},
				},
			},
		},
		Required: []string{"editor"},
		Title:    "Sync Editor Runtime",
	}
}

func (t *SyncEditorRuntimeTool) Execute(_ context.Context, args json.RawMessage) ([]byte, error) {
	var payload syncEditorRuntimePayload
	if err := tooltypes.DecodeArgs(args, &payload); err != nil {
		return nil, err
	}

	if err := requireSession(t.Name(), payload.Context, "Editor registration"); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	runtimebridge.DefaultStore().Register(payload.Context.SessionID, payload.Editor, now)
	logger.Info("Editor registered",
		"session_id", payload.Context.SessionID,
		"project", payload.Editor.ProjectName,
		"scene", payload.Editor.ActiveScene,
	)
	return json.Marshal(map[string]any{
		"synced":     true,
		"session_id": payload.Context.SessionID,
		"updated_at": timestamp(now),
	})
}
