package runtimebridge

import (
	"context"
	"testing"
	"time"
)

// ackingSender acks every command on a goroutine with the given result.
func ackingSender(broker *CommandBroker, success bool, result map[string]any, errMsg string) NotificationSender {
	return func(sessionID string, message map[string]any) bool {
		params, _ := message["params"].(map[string]any)
		commandID, _ := params["commandId"].(string)
		go broker.Ack(sessionID, CommandAck{
			CommandID: commandID,
			Success:   success,
			Result:    result,
			Error:     errMsg,
		})
		return true
	}
}

func TestCommandBrokerDispatchAndAck(t *testing.T) {
	ResetDefaultCommandBrokerForTests(2 * time.Second)
	broker := DefaultCommandBroker()
	var method string
	SetNotificationSender(func(sessionID string, message map[string]any) bool {
		method, _ = message["method"].(string)
		return ackingSender(broker, true, map[string]any{"ok": true}, "")(sessionID, message)
	})
	defer SetNotificationSender(nil)

	ack, ok, reason := broker.DispatchAndWait(context.Background(), "session-1", "scene-request", nil, 2*time.Second)
	if !ok {
		t.Fatalf("expected command ack, reason=%s", reason)
	}
	if !ack.Success || ack.Result["ok"] != true {
		t.Fatalf("expected success ack, got %+v", ack)
	}
	if method != CommandNotificationMethod {
		t.Fatalf("expected %s, got %s", CommandNotificationMethod, method)
	}
	if broker.Pending() != 0 {
		t.Fatalf("expected no pending commands, got %d", broker.Pending())
	}
}

func TestCommandBrokerDispatchWithoutSender(t *testing.T) {
	ResetDefaultCommandBrokerForTests(2 * time.Second)
	SetNotificationSender(nil)

	_, ok, reason := DefaultCommandBroker().DispatchAndWait(context.Background(), "session-1", "scene-request", nil, 0)
	if ok {
		t.Fatal("expected dispatch failure without notification sender")
	}
	if reason != "command_transport_unavailable" {
		t.Fatalf("expected command_transport_unavailable, got %s", reason)
	}
}

func TestCommandBrokerTimeoutAndCancel(t *testing.T) {
	broker := NewCommandBroker(time.Second)
	SetNotificationSender(func(string, map[string]any) bool { return true })
	defer SetNotificationSender(nil)

	_, ok, reason := broker.DispatchAndWait(context.Background(), "session-1", "scene-request", nil, 20*time.Millisecond)
	if ok || reason != "command_ack_timeout" {
		t.Fatalf("expected command_ack_timeout, got ok=%v reason=%s", ok, reason)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, ok, reason = broker.DispatchAndWait(ctx, "session-1", "scene-request", nil, time.Second)
	if ok || reason != "command_cancelled" {
		t.Fatalf("expected command_cancelled, got ok=%v reason=%s", ok, reason)
	}
	if broker.Pending() != 0 {
		t.Fatalf("expected abandoned commands to be removed, got %d", broker.Pending())
	}
}

func TestCommandBrokerAckRejectsForeignSession(t *testing.T) {
	broker := NewCommandBroker(time.Second)
	commands := make(chan string, 1)
	SetNotificationSender(func(_ string, message map[string]any) bool {
		params, _ := message["params"].(map[string]any)
		id, _ := params["commandId"].(string)
		commands <- id
		return true
	})
	defer SetNotificationSender(nil)

	done := make(chan bool, 1)
	go func() {
		_, ok, _ := broker.DispatchAndWait(context.Background(), "owner", "scene-request", nil, time.Second)
		done <- ok
	}()

	id := <-commands
	if broker.Ack("intruder", CommandAck{CommandID: id, Success: true}) {
		t.Fatal("expected ack from another session to be rejected")
	}
	if !broker.Ack("owner", CommandAck{CommandID: id, Success: true}) {
		t.Fatal("expected owner ack to be accepted")
	}
	if broker.Ack("owner", CommandAck{CommandID: id, Success: true}) {
		t.Fatal("expected duplicate ack to be rejected")
	}
	if !<-done {
		t.Fatal("expected dispatch to complete")
	}
}

func TestCommandBrokerDropSession(t *testing.T) {
	broker := NewCommandBroker(time.Second)
	owned := newPendingCommand("s1", SceneRequestCommand)
	broker.pending["a"] = owned
	broker.pending["b"] = newPendingCommand("s2", SceneRequestCommand)

	if dropped := broker.DropSession("s1"); dropped != 1 {
		t.Fatalf("expected 1 dropped command, got %d", dropped)
	}
	if broker.Pending() != 1 {
		t.Fatalf("expected 1 pending command, got %d", broker.Pending())
	}
	if o := <-owned.done; o.reason != ReasonSessionClosed {
		t.Fatalf("expected %s, got %+v", ReasonSessionClosed, o)
	}
}

func TestCommandBrokerDropSessionWakesWaiter(t *testing.T) {
	broker := NewCommandBroker(time.Second)
	sent := make(chan struct{}, 1)
	SetNotificationSender(func(string, map[string]any) bool {
		sent <- struct{}{}
		return true
	})
	defer SetNotificationSender(nil)

	reasons := make(chan string, 1)
	go func() {
		_, _, reason := broker.DispatchAndWait(context.Background(), "plugin", SceneRequestCommand, nil, 5*time.Second)
		reasons <- reason
	}()

	<-sent
	broker.DropSession("plugin")
	select {
	case reason := <-reasons:
		if reason != ReasonSessionClosed {
			t.Fatalf("expected %s, got %s", ReasonSessionClosed, reason)
		}
	case <-time.After(time.Second):
		t.Fatal("waiter was not released by DropSession")
	}
}
