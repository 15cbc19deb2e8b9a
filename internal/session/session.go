// Package session provides an in-memory conversation store with TTL expiry.
//
// Sessions exist so the HTTP layer can thread conversation history through
// the stateless answer pipeline. Stale sessions are swept lazily on access;
// there is no background goroutine to manage.
package session

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/askdocs/askdocs/internal/rag"
)

// Session is one conversation. Snapshot semantics: callers never receive a
// reference to the live history slice.
type Session struct {
	ID           string
	history      []rag.Turn
	lastAccessed time.Time
}

// Manager stores sessions with idle-TTL expiry.
// Safe for concurrent use.
type Manager struct {
	mu       sync.Mutex
	sessions map[string]*Session
	ttl      time.Duration
	now      func() time.Time // injectable clock for tests
}

// NewManager creates a Manager with the given idle TTL.
func NewManager(ttl time.Duration) *Manager {
	return &Manager{
		sessions: make(map[string]*Session),
		ttl:      ttl,
		now:      time.Now,
	}
}

// GetOrCreate returns the session with the given id, creating it when id is
// empty or unknown. Accessing a session refreshes its TTL.
func (m *Manager) GetOrCreate(id string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sweep()

	if id != "" {
		if s, ok := m.sessions[id]; ok {
			s.lastAccessed = m.now()
			return s.ID
		}
	}

	newID := id
	if newID == "" {
		newID = uuid.NewString()
	}
	m.sessions[newID] = &Session{ID: newID, lastAccessed: m.now()}
	return newID
}

// Append adds a turn to a session's history. Unknown sessions are ignored
// (they may have expired between the request's lookup and completion).
func (m *Manager) Append(id, role, content string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[id]
	if !ok {
		return
	}
	s.history = append(s.history, rag.Turn{Role: role, Content: content})
	s.lastAccessed = m.now()
}

// History returns a copy of the last 2*maxTurns messages of a session.
// Unknown or expired sessions yield nil.
func (m *Manager) History(id string, maxTurns int) []rag.Turn {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sweep()

	s, ok := m.sessions[id]
	if !ok {
		return nil
	}
	s.lastAccessed = m.now()

	h := s.history
	if maxMessages := 2 * maxTurns; maxTurns > 0 && len(h) > maxMessages {
		h = h[len(h)-maxMessages:]
	}

	out := make([]rag.Turn, len(h))
	copy(out, h)
	return out
}

// Delete removes a session. Reports whether it existed.
func (m *Manager) Delete(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.sessions[id]; !ok {
		return false
	}
	delete(m.sessions, id)
	return true
}

// Len returns the number of live sessions.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sweep()
	return len(m.sessions)
}

// sweep removes sessions idle past the TTL. Caller must hold mu.
func (m *Manager) sweep() {
	cutoff := m.now().Add(-m.ttl)
	for id, s := range m.sessions {
		if s.lastAccessed.Before(cutoff) {
			delete(m.sessions, id)
		}
	}
}
