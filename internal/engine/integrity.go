package engine

import "sync"

// VisibilityState mirrors the page-visibility states reported by the client.
type VisibilityState string

const (
	VisibilityHidden  VisibilityState = "hidden"
	VisibilityVisible VisibilityState = "visible"
)

// IntegrityMonitor tracks page-visibility transitions for one session. A
// hidden-then-visible transition (the participant left the tab and came back)
// raises a non-blocking warning. Purely advisory: it never discards answers,
// never stops the timer and never auto-submits.
type IntegrityMonitor struct {
	mu       sync.Mutex
	hidden   bool
	warnings int
	pending  bool
}

func NewIntegrityMonitor() *IntegrityMonitor {
	return &IntegrityMonitor{}
}

// Observe records a visibility transition and reports whether it raised a new
// warning. Repeated reports of the same state are ignored.
func (m *IntegrityMonitor) Observe(state VisibilityState) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch state {
	case VisibilityHidden:
		m.hidden = true
	case VisibilityVisible:
		if m.hidden {
			m.hidden = false
			m.warnings++
			m.pending = true
			return true
		}
	}
	return false
}

// Warnings is the total number of leave-and-return transitions observed.
func (m *IntegrityMonitor) Warnings() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.warnings
}

// ConsumeWarning returns whether an unacknowledged warning is pending and
// clears it, so the consuming view shows each warning once.
func (m *IntegrityMonitor) ConsumeWarning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := m.pending
	m.pending = false
	return p
}
