package utility

import (
	"context"
	"encoding/json"
	"time"

	"github.com/slighter12/cocos-mcp-go/mcp"
	"github.com/slighter12/cocos-mcp-go/runtimebridge"
	"github.com/slighter12/cocos-mcp-go/tools/types"
)

// BridgeStatusTool reports which editor sessions can receive scene commands.
type BridgeStatusTool struct{}

func (t *BridgeStatusTool) Name() string { return "bridge-status" }
func (t *BridgeStatusTool) Description() string {
	return "Reports registered Cocos editor sessions and pending scene commands"
}
func (t *BridgeStatusTool) InputSchema() mcp.InputSchema {
	return mcp.InputSchema{Type: "object", Properties: map[string]any{}, Required: []string{}, Title: "Bridge Status"}
}
func (t *BridgeStatusTool) Execute(_ context.Context, _ json.RawMessage) ([]byte, error) {
	return json.Marshal(BridgeStatus(time.Now().UTC()))
}

// BridgeStatus summarizes the default store and broker at now.
func BridgeStatus(now time.Time) map[string]any {
	store := runtimebridge.DefaultStore()
	active, ok, reason := store.LatestFresh(now)
	status := map[string]any{
		"connected":       ok,
		"registrations":   store.Registrations(),
		"pendingCommands": runtimebridge.DefaultCommandBroker().Pending(),
		"staleAfterMs":    store.StaleAfter().Milliseconds(),
	}
	if ok {
		status["active"] = active
	} else {
		status["reason"] = reason
	}
	return status
}

func GetAllTools() []types.Tool {
	return []types.Tool{
		&BridgeStatusTool{},
		NewSyncEditorRuntimeTool(),
		NewPingEditorRuntimeTool(),
		NewAckEditorCommandTool(),
	}
}
