package runtimebridge

import "sync"

// CommandNotificationMethod is the server notification carrying a command to
// the editor plugin.
const CommandNotificationMethod = "notifications/cocos/command"

// NotificationSender pushes a server notification to one MCP session and
// reports whether a live stream took it.
type NotificationSender func(sessionID string, message map[string]any) bool

var (
	senderMu sync.RWMutex
	sender   NotificationSender
)

func SetNotificationSender(s NotificationSender) {
	senderMu.Lock()
	sender = s
	senderMu.Unlock()
}

func notify(sessionID string, message map[string]any) bool {
	senderMu.RLock()
	send := sender
	senderMu.RUnlock()
	return send != nil && send(sessionID, message)
}
