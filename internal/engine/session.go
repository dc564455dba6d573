package engine

import (
	"context"
	"encoding/json"
	"math/rand"
	"sync"
	"time"

	"tryout_backend/internal/model"
	"tryout_backend/internal/util"
)

// ExpireFunc is invoked (on its own goroutine, without the session lock) when
// a section countdown reaches zero. It carries the section the countdown
// belonged to, so a dispatch that lost the race against a user-triggered
// finish can be recognized as stale and dropped.
type ExpireFunc func(attemptID uint, subtes string)

// SessionConfig carries the collaborators a session needs at construction.
type SessionConfig struct {
	AttemptID uint
	UserID    uint
	TryoutID  uint

	// OnExpire is the automatic section-finish trigger.
	OnExpire ExpireFunc

	// TickInterval defaults to one second; tests shorten it.
	TickInterval time.Duration

	Save             SaveFunc
	SaveTimeout      time.Duration
	AutosaveInterval time.Duration
}

// Session is the per-attempt runtime: the current question index, the section
// countdown, the answer store and the attached autosave agent and integrity
// monitor. One participant writes to it; the HTTP layer may carry requests on
// different goroutines, so access is serialized with a mutex.
type Session struct {
	AttemptID uint
	UserID    uint
	TryoutID  uint

	mu         sync.Mutex
	subtes     string
	questions  []model.Question
	byID       map[uint]*model.Question
	idx        int
	remaining  int
	seq        int
	timerStop  chan struct{}
	closed     bool
	lastActive time.Time

	store     *AnswerStore
	autosave  *Autosave
	integrity *IntegrityMonitor

	tick     time.Duration
	onExpire ExpireFunc
}

// SessionState is the snapshot served to the consuming view.
type SessionState struct {
	AttemptID        uint                     `json:"attemptId"`
	Subtes           string                   `json:"subtes"`
	QuestionIndex    int                      `json:"questionIndex"`
	RemainingSeconds int                      `json:"remainingSeconds"`
	Answered         map[uint]bool            `json:"answered"`
	Flagged          []uint                   `json:"flagged"`
	Saving           bool                     `json:"saving"`
	SaveFailed       bool                     `json:"saveFailed"`
	TabLeftWarning   bool                     `json:"tabLeftWarning"`
	WarningCount     int                      `json:"warningCount"`
	Answers          map[uint]json.RawMessage `json:"answers"`
}

func NewSession(cfg SessionConfig, store *AnswerStore) *Session {
	s := &Session{
		AttemptID:  cfg.AttemptID,
		UserID:     cfg.UserID,
		TryoutID:   cfg.TryoutID,
		store:      store,
		integrity:  NewIntegrityMonitor(),
		tick:       cfg.TickInterval,
		onExpire:   cfg.OnExpire,
		lastActive: time.Now(),
	}
	if s.tick <= 0 {
		s.tick = time.Second
	}
	if s.store == nil {
		s.store = NewAnswerStore()
	}
	if cfg.Save != nil {
		s.autosave = NewAutosave(s.Snapshot, cfg.Save, cfg.SaveTimeout, cfg.AutosaveInterval)
	}
	return s
}

// Autosave exposes the attached agent, nil when the session was built without
// a saver (tests).
func (s *Session) Autosave() *Autosave {
	return s.autosave
}

// StartSection swaps in a new active section and (re)starts the countdown.
// The previous section's timer, if any, is cancelled first so it can never
// fire against a stale section.
func (s *Session) StartSection(subtes string, questions []model.Question, seconds int) {
	s.mu.Lock()
	s.stopTimerLocked()

	s.subtes = subtes
	s.questions = questions
	s.byID = make(map[uint]*model.Question, len(questions))
	for i := range questions {
		s.byID[questions[i].ID] = &questions[i]
	}
	s.idx = 0
	s.remaining = seconds
	s.seq++
	seq := s.seq

	stop := make(chan struct{})
	s.timerStop = stop
	s.mu.Unlock()

	if seconds > 0 {
		go s.runTimer(seq, stop, subtes)
	}
}

func (s *Session) runTimer(seq int, stop chan struct{}, subtes string) {
	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			s.mu.Lock()
			if s.closed || s.seq != seq {
				s.mu.Unlock()
				return
			}
			if s.remaining > 0 {
				s.remaining--
			}
			expired := s.remaining <= 0
			s.mu.Unlock()

			if expired {
				if s.onExpire != nil {
					go s.onExpire(s.AttemptID, subtes)
				}
				return
			}
		}
	}
}

func (s *Session) stopTimerLocked() {
	if s.timerStop != nil {
		close(s.timerStop)
		s.timerStop = nil
	}
}

// Navigate moves the current question index. Out-of-range indices are a no-op;
// the countdown is unaffected either way.
func (s *Session) Navigate(index int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if index < 0 || index >= len(s.questions) {
		return false
	}
	s.idx = index
	s.lastActive = time.Now()
	return true
}

// Answer validates and writes a value into the answer store and triggers an
// autosave. The question must belong to the active section.
func (s *Session) Answer(questionID uint, value json.RawMessage, toggle bool) error {
	s.mu.Lock()
	q, ok := s.byID[questionID]
	if !ok {
		s.mu.Unlock()
		return util.ErrSectionMismatch
	}
	err := s.store.Set(q, value, toggle)
	s.lastActive = time.Now()
	s.mu.Unlock()

	if err != nil {
		return err
	}
	if s.autosave != nil {
		s.autosave.Trigger()
	}
	return nil
}

// ToggleFlag flips the advisory review flag and triggers an autosave.
func (s *Session) ToggleFlag(questionID uint) bool {
	s.mu.Lock()
	flagged := s.store.ToggleFlag(questionID)
	s.lastActive = time.Now()
	s.mu.Unlock()

	if s.autosave != nil {
		s.autosave.Trigger()
	}
	return flagged
}

// Visibility feeds a page-visibility transition to the integrity monitor.
func (s *Session) Visibility(state VisibilityState) bool {
	s.mu.Lock()
	s.lastActive = time.Now()
	s.mu.Unlock()
	return s.integrity.Observe(state)
}

// CurrentSubtes returns the active section code.
func (s *Session) CurrentSubtes() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.subtes
}

// Remaining returns the countdown in whole seconds.
func (s *Session) Remaining() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.remaining
}

// Questions returns the pinned question list of the active section.
func (s *Session) Questions() []model.Question {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.questions
}

// IdleSince reports whether the session saw no interaction since the cutoff.
func (s *Session) IdleSince(cutoff time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActive.Before(cutoff)
}

// ScoreCurrent grades the active section with the shared scoring engine.
func (s *Session) ScoreCurrent(rng *rand.Rand) model.SectionResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	return ScoreSection(s.subtes, s.questions, s.store, rng)
}

// Snapshot captures the persisted slice of the session for the autosave agent.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	answers, flagged := s.store.Snapshot()
	return Snapshot{
		AttemptID:        s.AttemptID,
		Subtes:           s.subtes,
		RemainingSeconds: s.remaining,
		Answers:          answers,
		Flagged:          flagged,
	}
}

// State builds the view-facing snapshot. Consuming it acknowledges a pending
// tab-left warning.
func (s *Session) State() SessionState {
	s.mu.Lock()
	answers, flagged := s.store.Snapshot()
	answered := make(map[uint]bool, len(s.questions))
	for i := range s.questions {
		q := &s.questions[i]
		answered[q.ID] = s.store.Answered(q)
	}
	state := SessionState{
		AttemptID:        s.AttemptID,
		Subtes:           s.subtes,
		QuestionIndex:    s.idx,
		RemainingSeconds: s.remaining,
		Answered:         answered,
		Flagged:          flagged,
		Answers:          answers,
	}
	s.mu.Unlock()

	if s.autosave != nil {
		state.Saving = s.autosave.Saving()
		state.SaveFailed = s.autosave.LastErr() != nil
	}
	state.TabLeftWarning = s.integrity.ConsumeWarning()
	state.WarningCount = s.integrity.Warnings()
	return state
}

// Discard tears the session down without a final save: the timer is cancelled
// and the autosave agent stopped. Used once the attempt row is finalized and
// any further snapshot write would be rejected anyway.
func (s *Session) Discard() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.stopTimerLocked()
	s.mu.Unlock()

	if s.autosave != nil {
		s.autosave.Close()
	}
}

// Close cancels the timer, performs one best-effort final save and stops the
// autosave agent. Safe to call once per session.
func (s *Session) Close(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.stopTimerLocked()
	s.mu.Unlock()

	if s.autosave == nil {
		return nil
	}
	err := s.autosave.Flush(ctx)
	s.autosave.Close()
	return err
}
