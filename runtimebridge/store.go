package runtimebridge

import (
	"sort"
	"sync"
	"time"
)

const defaultStaleAfter = 30 * time.Second

var defaultStore = NewStore(defaultStaleAfter)

// Store tracks registered editor plugins by MCP session. The most recently
// refreshed registration is the one scene requests are routed to.
type Store struct {
	mu          sync.RWMutex
	staleAfter  time.Duration
	latestID    string
	bySessionID map[string]Registration
}

func NewStore(staleAfter time.Duration) *Store {
	if staleAfter <= 0 {
		staleAfter = defaultStaleAfter
	}
	return &Store{
		staleAfter:  staleAfter,
		bySessionID: make(map[string]Registration),
	}
}

func DefaultStore() *Store {
	return defaultStore
}

// Register records or replaces the editor registration of a session.
func (s *Store) Register(sessionID string, info EditorInfo, now time.Time) {
	if s == nil || sessionID == "" {
		return
	}
	now = normalizeNow(now)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.bySessionID[sessionID] = Registration{
		SessionID: sessionID,
		Editor:    info,
		UpdatedAt: now,
	}
	s.latestID = sessionID
}

// Touch refreshes a registration's heartbeat without changing its payload.
func (s *Store) Touch(sessionID string, now time.Time) bool {
	if s == nil || sessionID == "" {
		return false
	}
	now = normalizeNow(now)

	s.mu.Lock()
	defer s.mu.Unlock()
	reg, ok := s.bySessionID[sessionID]
	if !ok {
		return false
	}
	reg.UpdatedAt = now
	s.bySessionID[sessionID] = reg
	s.latestID = sessionID
	return true
}

func (s *Store) RemoveSession(sessionID string) {
	if s == nil || sessionID == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.bySessionID, sessionID)
	if s.latestID != sessionID {
		return
	}
	s.latestID = ""
	var newest time.Time
	for id, candidate := range s.bySessionID {
		if s.latestID == "" || candidate.UpdatedAt.After(newest) {
			s.latestID = id
			newest = candidate.UpdatedAt
		}
	}
}

// LatestFresh returns the most recent registration if its heartbeat is
// within the stale window. The string is a machine-readable reason on
// failure.
func (s *Store) LatestFresh(now time.Time) (Registration, bool, string) {
	if s == nil {
		return Registration{}, false, "editor_bridge_store_unavailable"
	}
	now = normalizeNow(now)

	s.mu.RLock()
	defer s.mu.RUnlock()
	reg, ok := s.bySessionID[s.latestID]
	if s.latestID == "" || !ok {
		return Registration{}, false, "editor_not_registered"
	}
	return s.checkFreshLocked(reg, now)
}

// FreshForSession returns the registration of one session if it is fresh.
func (s *Store) FreshForSession(sessionID string, now time.Time) (Registration, bool, string) {
	if s == nil {
		return Registration{}, false, "editor_bridge_store_unavailable"
	}
	if sessionID == "" {
		return Registration{}, false, ReasonSessionMissing
	}
	now = normalizeNow(now)

	s.mu.RLock()
	defer s.mu.RUnlock()
	reg, ok := s.bySessionID[sessionID]
	if !ok {
		return Registration{}, false, "editor_not_registered"
	}
	return s.checkFreshLocked(reg, now)
}

// Registrations lists every known registration, newest first.
func (s *Store) Registrations() []Registration {
	if s == nil {
		return nil
	}
	s.mu.RLock()
	out := make([]Registration, 0, len(s.bySessionID))
	for _, reg := range s.bySessionID {
		out = append(out, reg)
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out
}

func (s *Store) StaleAfter() time.Duration {
	if s == nil {
		return defaultStaleAfter
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.staleAfter
}

// ResetDefaultStoreForTests resets the package singleton for deterministic tests.
func ResetDefaultStoreForTests(staleAfter time.Duration) {
	defaultStore = NewStore(staleAfter)
}

// SetDefaultStore replaces the package singleton; main uses it to apply the
// configured stale window.
func SetDefaultStore(store *Store) {
	if store != nil {
		defaultStore = store
	}
}

func (s *Store) checkFreshLocked(reg Registration, now time.Time) (Registration, bool, string) {
	if now.Sub(reg.UpdatedAt) > s.staleAfter {
		return Registration{}, false, "editor_registration_stale"
	}
	return reg, true, ""
}

func normalizeNow(now time.Time) time.Time {
	if now.IsZero() {
		return time.Now().UTC()
	}
	return now.UTC()
}
