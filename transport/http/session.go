package http

import (
	"sync"
	"time"
)

// SessionManager manages MCP sessions for Streamable HTTP
type SessionManager struct {
	sessions map[string]*Session
	mu       sync.RWMutex
	onRemove func(sessionID string)
}

// Session represents an MCP session
type Session struct {
	ID              string
	Created         time.Time
	LastSeen        time.Time
	Initialized     bool
	ProtocolVersion string
	Transport       *StreamableHTTPTransport
}

// NewSessionManager creates a new session manager. onRemove, when set, runs
// after a session is deleted or expires.
func NewSessionManager(onRemove ...func(sessionID string)) *SessionManager {
	sm := &SessionManager{
		sessions: make(map[string]*Session),
	}
	if len(onRemove) > 0 {
		sm.onRemove = onRemove[0]
	}
	return sm
}

// CreateSession creates a new session, or refreshes an existing one.
func (sm *SessionManager) CreateSession(sessionID string) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	now := time.Now()
	if session, exists := sm.sessions[sessionID]; exists {
		session.LastSeen = now
		return
	}
	sm.sessions[sessionID] = &Session{
		ID:       sessionID,
		Created:  now,
		LastSeen: now,
	}
}

// HasSession reports whether sessionID is known without touching it.
func (sm *SessionManager) HasSession(sessionID string) bool {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	_, exists := sm.sessions[sessionID]
	return exists
}

// TouchSession refreshes LastSeen and reports whether the session exists.
func (sm *SessionManager) TouchSession(sessionID string) bool {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	session, exists := sm.sessions[sessionID]
	if exists {
		session.LastSeen = time.Now()
	}
	return exists
}

func (sm *SessionManager) MarkInitialized(sessionID string) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	if session, exists := sm.sessions[sessionID]; exists {
		session.Initialized = true
	}
}

func (sm *SessionManager) IsInitialized(sessionID string) bool {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	session, exists := sm.sessions[sessionID]
	return exists && session.Initialized
}

func (sm *SessionManager) SetProtocolVersion(sessionID, version string) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	if session, exists := sm.sessions[sessionID]; exists {
		session.ProtocolVersion = version
	}
}

func (sm *SessionManager) GetProtocolVersion(sessionID string) (string, bool) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	session, exists := sm.sessions[sessionID]
	if !exists {
		return "", false
	}
	return session.ProtocolVersion, true
}

// SetTransport binds the SSE stream of a session, closing any previous one.
func (sm *SessionManager) SetTransport(sessionID string, transport *StreamableHTTPTransport) bool {
	sm.mu.Lock()
	session, exists := sm.sessions[sessionID]
	var previous *StreamableHTTPTransport
	if exists {
		previous = session.Transport
		session.Transport = transport
	}
	sm.mu.Unlock()

	if previous != nil && previous != transport {
		previous.Close()
	}
	return exists
}

// ClearTransportIfMatch unbinds transport if it is still the session's stream.
func (sm *SessionManager) ClearTransportIfMatch(sessionID string, transport *StreamableHTTPTransport) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	if session, exists := sm.sessions[sessionID]; exists && session.Transport == transport {
		session.Transport = nil
	}
}

// Send writes a JSON-RPC notification to the session's SSE stream.
func (sm *SessionManager) Send(sessionID string, message map[string]any) bool {
	sm.mu.RLock()
	session, exists := sm.sessions[sessionID]
	var transport *StreamableHTTPTransport
	if exists {
		transport = session.Transport
	}
	sm.mu.RUnlock()

	if transport == nil {
		return false
	}
	return transport.Notify(message) == nil
}

// RemoveSession removes a session
func (sm *SessionManager) RemoveSession(sessionID string) {
	sm.mu.Lock()
	session, exists := sm.sessions[sessionID]
	if exists {
		delete(sm.sessions, sessionID)
	}
	sm.mu.Unlock()

	if exists {
		sm.closed(session)
	}
}

// CleanupSessions removes sessions idle for longer than timeout and returns
// how many were removed.
func (sm *SessionManager) CleanupSessions(timeout time.Duration) int {
	sm.mu.Lock()
	now := time.Now()
	expired := make([]*Session, 0)
	for sessionID, session := range sm.sessions {
		if now.Sub(session.LastSeen) > timeout {
			expired = append(expired, session)
			delete(sm.sessions, sessionID)
		}
	}
	sm.mu.Unlock()

	for _, session := range expired {
		sm.closed(session)
	}
	return len(expired)
}

func (sm *SessionManager) closed(session *Session) {
	if session.Transport != nil {
		session.Transport.Close()
	}
	if sm.onRemove != nil {
		sm.onRemove(session.ID)
	}
}
