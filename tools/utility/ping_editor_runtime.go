package utility

import (
	"context"
	"encoding/json"
	"time"

	"github.com/slighter12/cocos-mcp-go/mcp"
	"github.com/slighter12/cocos-mcp-go/runtimebridge"
	tooltypes "github.com/slighter12/cocos-mcp-go/tools/types"
)

type pingEditorRuntimePayload struct {
	Context tooltypes.MCPContext `json:"_mcp"`
}

// PingEditorRuntimeTool is the plugin heartbeat. It keeps an existing
// registration fresh and leaves the editor info alone.
type PingEditorRuntimeTool struct{}

func NewPingEditorRuntimeTool() *PingEditorRuntimeTool {
	return &PingEditorRuntimeTool{}
}

func (t *PingEditorRuntimeTool) Name() string { return "ping-editor-runtime" }

func (t *PingEditorRuntimeTool) Description() string {
	return "Heartbeat from the Cocos editor plugin; keeps its scene command registration fresh"
}

func (t *PingEditorRuntimeTool) InputSchema() mcp.InputSchema {
	return mcp.InputSchema{
		Type:       "object",
		Properties: map[string]any{},
		Title:      "Ping Editor Runtime",
	}
}

func (t *PingEditorRuntimeTool) Execute(_ context.Context, args json.RawMessage) ([]byte, error) {
	var payload pingEditorRuntimePayload
	if err := tooltypes.DecodeArgs(args, &payload); err != nil {
		return nil, err
	}
	if err := requireSession(t.Name(), payload.Context, "Editor heartbeat"); err != nil {
		return nil, err
	}

	store := runtimebridge.DefaultStore()
	now := time.Now().UTC()
	if !store.Touch(payload.Context.SessionID, now) {
		return nil, bridgeUnavailable(t.Name(), "editor_not_registered",
			"Editor heartbeat before sync-editor-runtime", "session_id", payload.Context.SessionID)
	}

	return json.Marshal(map[string]any{
		"pong":        true,
		"session_id":  payload.Context.SessionID,
		"updated_at":  timestamp(now),
		"fresh_until": timestamp(now.Add(store.StaleAfter())),
	})
}
