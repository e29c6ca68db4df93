package types

import "strings"

// MCPContextKey is the tools/call argument the HTTP transport reserves for
// session metadata.
const MCPContextKey = "_mcp"

// MCPContext is the session metadata injected into bridge tool arguments.
type MCPContext struct {
	SessionID          string `json:"session_id"`
	SessionInitialized bool   `json:"session_initialized"`
}

// Ready reports whether the call came from an initialized HTTP session.
func (c MCPContext) Ready() bool {
	return strings.TrimSpace(c.SessionID) != "" && c.SessionInitialized
}

// Argument returns the context in its wire form.
func (c MCPContext) Argument() map[string]any {
	return map[string]any{
		"session_id":          c.SessionID,
		"session_initialized": c.SessionInitialized,
	}
}

func ExtractMCPContext(arguments map[string]any) MCPContext {
	raw, _ := arguments[MCPContextKey].(map[string]any)
	var ctx MCPContext
	if sessionID, ok := raw["session_id"].(string); ok {
		ctx.SessionID = strings.TrimSpace(sessionID)
	}
	ctx.SessionInitialized, _ = raw["session_initialized"].(bool)
	return ctx
}

// StripMCPContext returns a copy of arguments without the session metadata,
// so schemas never see it.
func StripMCPContext(arguments map[string]any) map[string]any {
	out := make(map[string]any, len(arguments))
	for key, value := range arguments {
		if key != MCPContextKey {
			out[key] = value
		}
	}
	return out
}
