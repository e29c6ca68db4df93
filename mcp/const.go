package mcp

// ProtocolVersion is the newest MCP revision the server speaks.
const ProtocolVersion = "2025-11-25"

// SupportedProtocolVersions lists every revision accepted in MCP-Protocol-Version
// and initialize negotiation, newest first.
var SupportedProtocolVersions = []string{
	"2025-11-25",
	"2025-06-18",
	"2025-03-26",
}

// JSON-RPC methods handled by the server.
const (
	MethodInitialize    = "initialize"
	MethodInitialized   = "notifications/initialized"
	MethodPing          = "ping"
	MethodToolsList     = "tools/list"
	MethodToolsCall     = "tools/call"
	MethodResourcesList = "resources/list"
	MethodResourcesRead = "resources/read"
)

// IsSupportedProtocolVersion reports whether v is a revision the server accepts.
func IsSupportedProtocolVersion(v string) bool {
	for _, supported := range SupportedProtocolVersions {
		if v == supported {
			return true
		}
	}
	return false
}
