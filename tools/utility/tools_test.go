package utility

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/slighter12/cocos-mcp-go/runtimebridge"
)

func TestBridgeStatusTool_ReportsActiveEditor(t *testing.T) {
	runtimebridge.ResetDefaultStoreForTests(10 * time.Second)
	runtimebridge.ResetDefaultCommandBrokerForTests(time.Second)

	raw, err := (&BridgeStatusTool{}).Execute(context.Background(), nil)
	if err != nil {
		t.Fatalf("execute bridge-status: %v", err)
	}
	var status map[string]any
	if err := json.Unmarshal(raw, &status); err != nil {
		t.Fatalf("unmarshal status: %v", err)
	}
	if status["connected"] != false || status["reason"] != "editor_not_registered" {
		t.Fatalf("unexpected empty status: %v", status)
	}

	runtimebridge.DefaultStore().Register("session-1", runtimebridge.EditorInfo{ProjectName: "demo"}, time.Now().UTC())
	got := BridgeStatus(time.Now().UTC())
	if got["connected"] != true {
		t.Fatalf("expected connected status, got %v", got)
	}
	active, _ := got["active"].(runtimebridge.Registration)
	if active.SessionID != "session-1" {
		t.Fatalf("unexpected active registration: %+v", got["active"])
	}
	if got["staleAfterMs"] != int64(10000) {
		t.Fatalf("unexpected stale window: %v", got["staleAfterMs"])
	}
}
