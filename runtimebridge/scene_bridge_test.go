package runtimebridge

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func TestSceneBridgeRequestRoundTrip(t *testing.T) {
	store := NewStore(time.Minute)
	store.Register("plugin", EditorInfo{}, time.Time{})
	broker := NewCommandBroker(time.Second)

	var args map[string]any
	SetNotificationSender(func(sessionID string, message map[string]any) bool {
		params, _ := message["params"].(map[string]any)
		args, _ = params["arguments"].(map[string]any)
		return ackingSender(broker, true, map[string]any{"value": map[string]any{"uuid": "n1"}}, "")(sessionID, message)
	})
	defer SetNotificationSender(nil)

	bridge := NewSceneBridge(store, broker, WithRateLimit(100, 10), WithCommandTimeout(time.Second))
	raw, err := bridge.Request(context.Background(), "scene", "query-node", map[string]any{"uuid": "n1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var got map[string]any
	if err := json.Unmarshal(raw, &got); err != nil {
		t.Fatalf("unexpected result %s: %v", raw, err)
	}
	if got["uuid"] != "n1" {
		t.Fatalf("unexpected result: %v", got)
	}
	if args["domain"] != "scene" || args["method"] != "query-node" {
		t.Fatalf("unexpected command arguments: %v", args)
	}
}

func TestSceneBridgeEditorRejection(t *testing.T) {
	store := NewStore(time.Minute)
	store.Register("plugin", EditorInfo{}, time.Time{})
	broker := NewCommandBroker(time.Second)
	SetNotificationSender(ackingSender(broker, false, nil, "no such component"))
	defer SetNotificationSender(nil)

	_, err := NewSceneBridge(store, broker).Request(context.Background(), "scene", "remove-component", nil)
	var hostErr *HostError
	if !errors.As(err, &hostErr) {
		t.Fatalf("expected HostError, got %v", err)
	}
	if hostErr.Reason != "editor_rejected" || hostErr.Message != "no such component" {
		t.Fatalf("unexpected host error: %+v", hostErr)
	}
}

func TestSceneBridgeWithoutEditor(t *testing.T) {
	_, err := NewSceneBridge(NewStore(time.Minute), NewCommandBroker(time.Second)).
		Request(context.Background(), "scene", "query-node", nil)
	var hostErr *HostError
	if !errors.As(err, &hostErr) || hostErr.Reason != "editor_not_registered" {
		t.Fatalf("expected editor_not_registered, got %v", err)
	}
}

func TestSceneBridgeNullResult(t *testing.T) {
	store := NewStore(time.Minute)
	store.Register("plugin", EditorInfo{}, time.Time{})
	broker := NewCommandBroker(time.Second)
	SetNotificationSender(ackingSender(broker, true, nil, ""))
	defer SetNotificationSender(nil)

	raw, err := NewSceneBridge(store, broker).Request(context.Background(), "scene", "query-node", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(raw) != "null" {
		t.Fatalf("expected null, got %s", raw)
	}
}
