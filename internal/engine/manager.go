package engine

import (
	"context"
	"sync"
	"time"
)

// Manager owns the live sessions, keyed by attempt ID. It hands sessions out
// to the HTTP layer, evicts them on completion and reaps idle ones.
type Manager struct {
	mu       sync.RWMutex
	sessions map[uint]*Session

	onCount func(int)
}

func NewManager() *Manager {
	return &Manager{sessions: make(map[uint]*Session)}
}

// OnCountChange registers an observer of the live-session count (metrics).
func (m *Manager) OnCountChange(fn func(int)) {
	m.mu.Lock()
	m.onCount = fn
	m.mu.Unlock()
}

func (m *Manager) Get(attemptID uint) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[attemptID]
	return s, ok
}

// Put registers a session, replacing (and closing) a previous one for the
// same attempt.
func (m *Manager) Put(s *Session) {
	m.mu.Lock()
	old := m.sessions[s.AttemptID]
	m.sessions[s.AttemptID] = s
	count := len(m.sessions)
	onCount := m.onCount
	m.mu.Unlock()

	if old != nil && old != s {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_ = old.Close(ctx)
		cancel()
	}
	if onCount != nil {
		onCount(count)
	}
}

// Remove evicts without closing; callers close the session themselves.
func (m *Manager) Remove(attemptID uint) {
	m.mu.Lock()
	delete(m.sessions, attemptID)
	count := len(m.sessions)
	onCount := m.onCount
	m.mu.Unlock()

	if onCount != nil {
		onCount(count)
	}
}

// ReapIdle closes and evicts sessions with no interaction since the cutoff.
// Their state stays recoverable: the close flushes a final snapshot, and a
// later resume rebuilds the session from it.
func (m *Manager) ReapIdle(maxIdle time.Duration, closeTimeout time.Duration) int {
	cutoff := time.Now().Add(-maxIdle)

	m.mu.Lock()
	var idle []*Session
	for id, s := range m.sessions {
		if s.IdleSince(cutoff) {
			idle = append(idle, s)
			delete(m.sessions, id)
		}
	}
	count := len(m.sessions)
	onCount := m.onCount
	m.mu.Unlock()

	for _, s := range idle {
		ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
		_ = s.Close(ctx)
		cancel()
	}
	if onCount != nil && len(idle) > 0 {
		onCount(count)
	}
	return len(idle)
}
