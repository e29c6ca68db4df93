package runtimebridge

import (
	"context"
	"maps"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/slighter12/cocos-mcp-go/mcp/jsonrpc"
)

const defaultCommandTimeout = 8 * time.Second

// Failure reasons reported by DispatchAndWait.
const (
	ReasonBrokerUnavailable    = "command_broker_unavailable"
	ReasonSessionMissing       = "session_missing"
	ReasonCommandNameMissing   = "command_name_missing"
	ReasonTransportUnavailable = "command_transport_unavailable"
	ReasonAckTimeout           = "command_ack_timeout"
	ReasonCancelled            = "command_cancelled"
	ReasonSessionClosed        = "editor_session_closed"
)

var defaultCommandBroker = NewCommandBroker(defaultCommandTimeout)

// CommandAck is the plugin's answer to one command.
type CommandAck struct {
	CommandID string
	Success   bool
	Result    map[string]any
	Error     string
	AckedAt   time.Time
}

// outcome ends a wait: either an ack or a failure reason.
type outcome struct {
	ack    CommandAck
	reason string
}

type pendingCommand struct {
	sessionID string
	name      string
	sentAt    time.Time
	done      chan outcome
}

func newPendingCommand(sessionID, name string) pendingCommand {
	return pendingCommand{
		sessionID: sessionID,
		name:      name,
		sentAt:    time.Now().UTC(),
		done:      make(chan outcome, 1),
	}
}

// finish delivers o unless the command already finished.
func (p pendingCommand) finish(o outcome) bool {
	select {
	case p.done <- o:
		return true
	default:
		return false
	}
}

// CommandBroker pairs commands sent to a plugin session with their acks.
type CommandBroker struct {
	mu             sync.Mutex
	defaultTimeout time.Duration
	pending        map[string]pendingCommand
}

func NewCommandBroker(defaultTimeout time.Duration) *CommandBroker {
	if defaultTimeout <= 0 {
		defaultTimeout = defaultCommandTimeout
	}
	return &CommandBroker{
		defaultTimeout: defaultTimeout,
		pending:        make(map[string]pendingCommand),
	}
}

func DefaultCommandBroker() *CommandBroker {
	return defaultCommandBroker
}

// SetDefaultCommandBroker replaces the package singleton.
func SetDefaultCommandBroker(b *CommandBroker) {
	if b != nil {
		defaultCommandBroker = b
	}
}

func ResetDefaultCommandBrokerForTests(defaultTimeout time.Duration) {
	defaultCommandBroker = NewCommandBroker(defaultTimeout)
}

// commandNotification is the notifications/cocos/command frame.
func commandNotification(commandID, name string, arguments map[string]any) map[string]any {
	return map[string]any{
		"jsonrpc": jsonrpc.Version,
		"method":  CommandNotificationMethod,
		"params": map[string]any{
			"commandId": commandID,
			"name":      name,
			"arguments": arguments,
		},
	}
}

// DispatchAndWait notifies sessionID of a command and blocks until the
// plugin acks it, the timeout fires, ctx ends or the session is dropped.
// On failure the reason is one of the Reason constants.
func (b *CommandBroker) DispatchAndWait(ctx context.Context, sessionID, commandName string, arguments map[string]any, timeout time.Duration) (CommandAck, bool, string) {
	switch {
	case b == nil:
		return CommandAck{}, false, ReasonBrokerUnavailable
	case strings.TrimSpace(sessionID) == "":
		return CommandAck{}, false, ReasonSessionMissing
	case strings.TrimSpace(commandName) == "":
		return CommandAck{}, false, ReasonCommandNameMissing
	}
	if timeout <= 0 {
		timeout = b.defaultTimeout
	}
	if arguments == nil {
		arguments = map[string]any{}
	}

	commandID := "cmd_" + uuid.NewString()
	waiter := newPendingCommand(sessionID, commandName)
	b.mu.Lock()
	b.pending[commandID] = waiter
	b.mu.Unlock()

	if !notify(sessionID, commandNotification(commandID, commandName, arguments)) {
		b.remove(commandID)
		return CommandAck{}, false, ReasonTransportUnavailable
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case o := <-waiter.done:
		if o.reason != "" {
			return CommandAck{}, false, o.reason
		}
		return o.ack, true, ""
	case <-timer.C:
		b.remove(commandID)
		return CommandAck{}, false, ReasonAckTimeout
	case <-ctx.Done():
		b.remove(commandID)
		return CommandAck{}, false, ReasonCancelled
	}
}

// Ack delivers a plugin acknowledgement. It is rejected when the command is
// unknown, already answered or owned by another session.
func (b *CommandBroker) Ack(sessionID string, ack CommandAck) bool {
	if b == nil {
		return false
	}
	commandID := strings.TrimSpace(ack.CommandID)
	if commandID == "" {
		return false
	}

	b.mu.Lock()
	waiter, ok := b.pending[commandID]
	if !ok || waiter.sessionID != sessionID {
		b.mu.Unlock()
		return false
	}
	delete(b.pending, commandID)
	b.mu.Unlock()

	ack.CommandID = commandID
	ack.Result = maps.Clone(ack.Result)
	if ack.Result == nil {
		ack.Result = map[string]any{}
	}
	if ack.AckedAt.IsZero() {
		ack.AckedAt = time.Now().UTC()
	}
	return waiter.finish(outcome{ack: ack})
}

// Pending reports how many commands are awaiting an ack.
func (b *CommandBroker) Pending() int {
	if b == nil {
		return 0
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pending)
}

// DropSession fails every command waiting on sessionID and returns how many
// there were.
func (b *CommandBroker) DropSession(sessionID string) int {
	if b == nil {
		return 0
	}
	b.mu.Lock()
	var dropped []pendingCommand
	for id, waiter := range b.pending {
		if waiter.sessionID == sessionID {
			delete(b.pending, id)
			dropped = append(dropped, waiter)
		}
	}
	b.mu.Unlock()

	for _, waiter := range dropped {
		waiter.finish(outcome{reason: ReasonSessionClosed})
	}
	return len(dropped)
}

func (b *CommandBroker) remove(commandID string) {
	b.mu.Lock()
	delete(b.pending, commandID)
	b.mu.Unlock()
}
