package http

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/slighter12/cocos-mcp-go/mcp"
	"github.com/slighter12/cocos-mcp-go/mcp/jsonrpc"
	"github.com/slighter12/cocos-mcp-go/runtimebridge"
)

func TestInitializeNegotiatesProtocol(t *testing.T) {
	server := newTestHTTPServer(t)
	resp, sessionID, status := postMCP(t, server, map[string]any{
		"jsonrpc": jsonrpc.Version,
		"id":      "init",
		"method":  mcp.MethodInitialize,
		"params":  map[string]any{"protocolVersion": "2025-06-18"},
	}, "", "")
	if status != http.StatusOK || sessionID == "" {
		t.Fatalf("initialize failed, status=%d session=%q", status, sessionID)
	}
	result := mustMap(t, resp["result"])
	if result["protocolVersion"] != "2025-06-18" {
		t.Fatalf("expected negotiated 2025-06-18, got %v", result["protocolVersion"])
	}
	info := mustMap(t, result["serverInfo"])
	if info["name"] != "cocos-mcp-go" {
		t.Fatalf("unexpected server info: %v", info)
	}

	_, _, status = postMCP(t, server, map[string]any{
		"jsonrpc": jsonrpc.Version,
		"id":      "list",
		"method":  mcp.MethodToolsList,
	}, sessionID, mcp.ProtocolVersion)
	if status != http.StatusBadRequest {
		t.Fatalf("expected mismatched protocol header to be rejected, got %d", status)
	}
}

func TestRequestsRequireKnownSession(t *testing.T) {
	server := newTestHTTPServer(t)
	body := map[string]any{"jsonrpc": jsonrpc.Version, "id": 1, "method": mcp.MethodPing}

	if _, _, status := postMCP(t, server, body, "", mcp.ProtocolVersion); status != http.StatusBadRequest {
		t.Fatalf("expected missing session to be rejected, got %d", status)
	}
	if _, _, status := postMCP(t, server, body, "session_unknown", mcp.ProtocolVersion); status != http.StatusNotFound {
		t.Fatalf("expected unknown session to be rejected, got %d", status)
	}
}

func TestToolsListIncludesComponentTools(t *testing.T) {
	server := newTestHTTPServer(t)
	sessionID := initSession(t, server, "agent")

	resp, _, status := postMCP(t, server, map[string]any{
		"jsonrpc": jsonrpc.Version,
		"id":      "list",
		"method":  mcp.MethodToolsList,
	}, sessionID, mcp.ProtocolVersion)
	if status != http.StatusOK {
		t.Fatalf("tools/list failed, status=%d", status)
	}
	listed, _ := mustMap(t, resp["result"])["tools"].([]any)
	names := map[string]bool{}
	for _, entry := range listed {
		names[mustMap(t, entry)["name"].(string)] = true
	}
	for _, want := range []string{"set_component_property", "manage_click_events", "ack-editor-command"} {
		if !names[want] {
			t.Fatalf("expected %s in tools/list, got %v", want, names)
		}
	}
}

func TestComponentToolWithoutEditorIsInBandError(t *testing.T) {
	server := newTestHTTPServer(t)
	sessionID := initSession(t, server, "agent")

	result := callTool(t, server, sessionID, "get_components", map[string]any{"nodeUuid": "node-1"})
	if result["isError"] != true {
		t.Fatalf("expected isError result, got %v", result)
	}
	structured := mustMap(t, result["structuredContent"])
	if structured["errorKind"] != "host_error" {
		t.Fatalf("expected host_error, got %v", structured["errorKind"])
	}
}

func TestSchemaViolationIsInBandError(t *testing.T) {
	server := newTestHTTPServer(t)
	sessionID := initSession(t, server, "agent")

	result := callTool(t, server, sessionID, "get_components", map[string]any{"nodeUuid": 42})
	structured := mustMap(t, result["structuredContent"])
	if result["isError"] != true || structured["errorKind"] != "invalid_params" {
		t.Fatalf("expected invalid_params tool error, got %v", result)
	}
}

func TestSceneCommandRoundTripThroughEditorSession(t *testing.T) {
	server := newTestHTTPServer(t)
	plugin := initSession(t, server, "cocos-plugin")
	agent := initSession(t, server, "agent")

	synced := callTool(t, server, plugin, "sync-editor-runtime", map[string]any{
		"editor": map[string]any{"project_name": "demo", "active_scene": "db://assets/Main.scene"},
	})
	if synced["isError"] == true {
		t.Fatalf("sync-editor-runtime failed: %v", synced)
	}

	stream := newStreamWriter()
	transport := NewStreamableHTTPTransport(stream, stream)
	if !server.sessionManager.SetTransport(plugin, transport) {
		t.Fatal("expected plugin session to accept a stream")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	done := make(chan map[string]any, 1)
	go func() {
		done <- callTool(t, server, agent, "get_components", map[string]any{"nodeUuid": "node-1"})
	}()

	frame := stream.next(t, ctx)
	if frame["method"] != runtimebridge.CommandNotificationMethod {
		t.Fatalf("unexpected notification: %v", frame)
	}
	params := mustMap(t, frame["params"])
	arguments := mustMap(t, params["arguments"])
	if arguments["method"] != "query-node" || arguments["domain"] != "scene" {
		t.Fatalf("unexpected scene command: %v", arguments)
	}

	acked := callTool(t, server, plugin, "ack-editor-command", map[string]any{
		"command_id": params["commandId"],
		"success":    true,
		"result": map[string]any{"value": map[string]any{
			"uuid": map[string]any{"value": "node-1", "type": "String"},
			"__comps__": []any{map[string]any{
				"__type__": "cc.Label",
				"type":     "cc.Label",
				"value": map[string]any{
					"uuid":   map[string]any{"value": "label-1", "type": "String"},
					"string": map[string]any{"value": "hi", "type": "String"},
				},
			}},
		}},
	})
	if acked["isError"] == true {
		t.Fatalf("ack-editor-command failed: %v", acked)
	}

	select {
	case result := <-done:
		if result["isError"] == true {
			t.Fatalf("get_components failed: %v", result)
		}
		data := mustMap(t, mustMap(t, result["structuredContent"])["data"])
		if data["count"] != float64(1) {
			t.Fatalf("expected one component, got %v", data)
		}
	case <-ctx.Done():
		t.Fatal("timed out waiting for get_components")
	}
}

func TestDeleteSessionReleasesEditorRegistration(t *testing.T) {
	server := newTestHTTPServer(t)
	plugin := initSession(t, server, "cocos-plugin")
	callTool(t, server, plugin, "sync-editor-runtime", map[string]any{"editor": map[string]any{}})

	if _, ok, _ := runtimebridge.DefaultStore().LatestFresh(time.Now().UTC()); !ok {
		t.Fatal("expected editor registration")
	}

	server.sessionManager.RemoveSession(plugin)
	if _, ok, reason := runtimebridge.DefaultStore().LatestFresh(time.Now().UTC()); ok || reason != "editor_not_registered" {
		t.Fatalf("expected registration released, got ok=%v reason=%s", ok, reason)
	}
}
