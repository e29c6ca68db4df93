package shared

import (
	"fmt"
	"time"

	"github.com/slighter12/cocos-mcp-go/mcp"
	"github.com/slighter12/cocos-mcp-go/runtimebridge"
	"github.com/slighter12/cocos-mcp-go/tools/utility"
)

const (
	ResourceBridgeStatus = "cocos://bridge/status"
	ResourceEditorInfo   = "cocos://editor/info"
)

// Resources lists the read-only views the server exposes.
func Resources() []mcp.Resource {
	return []mcp.Resource{
		{
			URI:         ResourceBridgeStatus,
			Name:        "Bridge Status",
			Description: "Registered editor sessions and pending scene commands",
			MimeType:    "application/json",
		},
		{
			URI:         ResourceEditorInfo,
			Name:        "Editor Info",
			Description: "Version, project and active scene of the editor receiving scene commands",
			MimeType:    "application/json",
		},
	}
}

// ReadResource resolves one of Resources against the default bridge store.
func ReadResource(uri string) (any, error) {
	now := time.Now().UTC()
	switch uri {
	case ResourceBridgeStatus:
		return utility.BridgeStatus(now), nil
	case ResourceEditorInfo:
		reg, ok, reason := runtimebridge.DefaultStore().LatestFresh(now)
		if !ok {
			return nil, fmt.Errorf("editor info unavailable: %s", reason)
		}
		return map[string]any{
			"session_id": reg.SessionID,
			"editor":     reg.Editor,
			"updated_at": reg.UpdatedAt.Format(time.RFC3339Nano),
		}, nil
	default:
		return nil, fmt.Errorf("unknown resource uri: %s", uri)
	}
}
