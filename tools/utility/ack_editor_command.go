package utility

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/slighter12/cocos-mcp-go/mcp"
	"github.com/slighter12/cocos-mcp-go/runtimebridge"
	tooltypes "github.com/slighter12/cocos-mcp-go/tools/types"
)

const defaultRejection = "editor reported failure without a message"

type ackEditorCommandPayload struct {
	CommandID string               `json:"command_id"`
	Success   *bool                `json:"success,omitempty"`
	Result    map[string]any       `json:"result,omitempty"`
	Error     string               `json:"error,omitempty"`
	Context   tooltypes.MCPContext `json:"_mcp"`
}

// ack converts the plugin payload into a broker ack. A missing success flag
// means the scene call returned normally.
func (p ackEditorCommandPayload) ack(now time.Time) runtimebridge.CommandAck {
	ack := runtimebridge.CommandAck{
		CommandID: strings.TrimSpace(p.CommandID),
		Success:   p.Success == nil || *p.Success,
		Result:    p.Result,
		Error:     strings.TrimSpace(p.Error),
		AckedAt:   now,
	}
	if !ack.Success && ack.Error == "" {
		ack.Error = defaultRejection
	}
	return ack
}

// AckEditorCommandTool completes a scene command the plugin received on its
// SSE stream.
type AckEditorCommandTool struct{}

func NewAckEditorCommandTool() *AckEditorCommandTool {
	return &AckEditorCommandTool{}
}

func (t *AckEditorCommandTool) Name() string { return "ack-editor-command" }

func (t *AckEditorCommandTool) Description() string {
	return "Reports the outcome of a scene command sent to the Cocos editor plugin (internal bridge tool)"
}

func (t *AckEditorCommandTool) InputSchema() mcp.InputSchema {
	return mcp.InputSchema{
		Type: "object",
		Properties: map[string]any{
			"command_id": map[string]any{"type": "string", "minLength": 1},
			"success":    map[string]any{"type": "boolean"},
			"result":     map[string]any{"type": "object", "description": "Scene call result wrapped as {value}"},
			"error":      map[string]any{"type": "string"},
		},
		Required: []string{"command_id"},
		Title:    "Ack Editor Command",
	}
}

func (t *AckEditorCommandTool) Execute(_ context.Context, args json.RawMessage) ([]byte, error) {
	var payload ackEditorCommandPayload
	if err := tooltypes.DecodeArgs(args, &payload); err != nil {
		return nil, err
	}

	ack := payload.ack(time.Now().UTC())
	if ack.CommandID == "" {
		return nil, bridgeUnavailable(t.Name(), "command_id_missing", "Command acknowledgement requires command_id")
	}
	if err := requireSession(t.Name(), payload.Context, "Command acknowledgement"); err != nil {
		return nil, err
	}

	if !runtimebridge.DefaultCommandBroker().Ack(payload.Context.SessionID, ack) {
		return nil, bridgeUnavailable(t.Name(), "unknown_or_expired_command",
			"Command acknowledgement rejected", "command_id", ack.CommandID)
	}

	return json.Marshal(map[string]any{
		"acknowledged": true,
		"command_id":   ack.CommandID,
		"success":      ack.Success,
	})
}
