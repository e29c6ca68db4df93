package utility

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/slighter12/cocos-mcp-go/runtimebridge"
	tooltypes "github.com/slighter12/cocos-mcp-go/tools/types"
)

func TestAckEditorCommandTool_RequiresInitializedSession(t *testing.T) {
	tool := NewAckEditorCommandTool()
	raw, _ := json.Marshal(map[string]any{
		"command_id": "cmd-1",
		"success":    true,
	})
	_, err := tool.Execute(context.Background(), raw)
	if err == nil {
		t.Fatal("expected semantic error")
	}
	semanticErr, ok := tooltypes.AsSemanticError(err)
	if !ok {
		t.Fatalf("expected semantic error, got %T", err)
	}
	if semanticErr.Kind != tooltypes.SemanticKindNotAvailable {
		t.Fatalf("expected not_available kind, got %s", semanticErr.Kind)
	}
}

func TestAckEditorCommandTool_RejectsUnknownCommand(t *testing.T) {
	runtimebridge.ResetDefaultCommandBrokerForTests(time.Second)
	raw, _ := json.Marshal(map[string]any{
		"command_id": "cmd-unknown",
		"_mcp":       map[string]any{"session_id": "session-1", "session_initialized": true},
	})
	_, err := NewAckEditorCommandTool().Execute(context.Background(), raw)
	semanticErr, ok := tooltypes.AsSemanticError(err)
	if !ok {
		t.Fatalf("expected semantic error, got %T", err)
	}
	if semanticErr.Data["reason"] != "unknown_or_expired_command" {
		t.Fatalf("unexpected reason: %v", semanticErr.Data["reason"])
	}
}

func TestAckEditorCommandTool_AcknowledgesPendingCommand(t *testing.T) {
	runtimebridge.ResetDefaultCommandBrokerForTests(2 * time.Second)
	broker := runtimebridge.DefaultCommandBroker()

	var mu sync.Mutex
	capturedCommandID := ""
	runtimebridge.SetNotificationSender(func(sessionID string, message map[string]any) bool {
		params, _ := message["params"].(map[string]any)
		if id, ok := params["commandId"].(string); ok {
			mu.Lock()
			capturedCommandID = id
			mu.Unlock()
		}
		return true
	})
	defer runtimebridge.SetNotificationSender(nil)

	type dispatchResult struct {
		ack    runtimebridge.CommandAck
		ok     bool
		reason string
	}
	resultCh := make(chan dispatchResult, 1)
	go func() {
		ack, ok, reason := broker.DispatchAndWait(context.Background(), "session-1", runtimebridge.SceneRequestCommand, map[string]any{}, 2*time.Second)
		resultCh <- dispatchResult{ack: ack, ok: ok, reason: reason}
	}()

	commandID := ""
	deadline := time.Now().Add(300 * time.Millisecond)
	for commandID == "" && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
		mu.Lock()
		commandID = capturedCommandID
		mu.Unlock()
	}
	if commandID == "" {
		t.Fatal("expected command id to be captured from notification")
	}

	raw, _ := json.Marshal(map[string]any{
		"command_id": commandID,
		"success":    true,
		"result":     map[string]any{"value": map[string]any{"uuid": "node-1"}},
		"_mcp": map[string]any{
			"session_id":          "session-1",
			"session_initialized": true,
		},
	})
	if _, err := NewAckEditorCommandTool().Execute(context.Background(), raw); err != nil {
		t.Fatalf("execute ack-editor-command: %v", err)
	}

	select {
	case dispatch := <-resultCh:
		if !dispatch.ok {
			t.Fatalf("expected command dispatch success, reason=%s", dispatch.reason)
		}
		if !dispatch.ack.Success {
			t.Fatalf("expected ack success, got %+v", dispatch.ack)
		}
	case <-time.After(500 * time.Millisecond):
		t.Fatal("timed out waiting for dispatch result")
	}
}

func TestAckPayloadDefaults(t *testing.T) {
	now := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)

	ack := ackEditorCommandPayload{CommandID: " cmd-1 "}.ack(now)
	if !ack.Success || ack.CommandID != "cmd-1" {
		t.Fatalf("expected implicit success for cmd-1, got %+v", ack)
	}

	failed := false
	ack = ackEditorCommandPayload{CommandID: "cmd-2", Success: &failed}.ack(now)
	if ack.Success || ack.Error != defaultRejection {
		t.Fatalf("expected default rejection message, got %+v", ack)
	}
}
