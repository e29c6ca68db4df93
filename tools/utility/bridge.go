package utility

import (
	"time"

	tooltypes "github.com/slighter12/cocos-mcp-go/tools/types"
)

// bridgeUnavailable builds the not_available error every bridge tool reports.
// extra is a flat list of key/value pairs merged into the error data.
func bridgeUnavailable(tool, reason, message string, extra ...any) error {
	data := map[string]any{
		"feature": "runtime_bridge",
		"reason":  reason,
		"tool":    tool,
	}
	for i := 0; i+1 < len(extra); i += 2 {
		if key, ok := extra[i].(string); ok {
			data[key] = extra[i+1]
		}
	}
	return tooltypes.NewNotAvailableError(message, data)
}

// requireSession rejects calls that did not come from an initialized HTTP session.
func requireSession(tool string, mcpCtx tooltypes.MCPContext, action string) error {
	if mcpCtx.Ready() {
		return nil
	}
	return bridgeUnavailable(tool, "session_not_initialized", action+" requires an initialized MCP HTTP session")
}

func timestamp(t time.Time) string {
	return t.Format(time.RFC3339Nano)
}
