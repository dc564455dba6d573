package service

import (
	"context"
	"encoding/json"
	"math/rand"
	"sync"
	"time"

	"tryout_backend/internal/config"
	"tryout_backend/internal/engine"
	"tryout_backend/internal/model"
	"tryout_backend/internal/util"
	"tryout_backend/pkg/logger"
	"tryout_backend/pkg/monitoring"

	"go.uber.org/zap"
)

// Narrow store interfaces so the lifecycle can be exercised against fakes;
// the gorm repositories satisfy them.
type TryoutStore interface {
	FindByID(id uint) (*model.Tryout, error)
}

type QuestionStore interface {
	ListBySection(tryoutID uint, subtes string) ([]model.Question, error)
}

type AttemptStore interface {
	Create(attempt *model.Attempt) error
	FindByID(id uint) (*model.Attempt, error)
	FindInProgress(userID, tryoutID uint) (*model.Attempt, error)
	FindByUserAndTryout(userID, tryoutID uint) (*model.Attempt, error)
	SaveSnapshot(ctx context.Context, attemptID uint, subtes string, remaining int, answers map[uint]json.RawMessage, flagged []uint) error
	StoreSectionResult(ctx context.Context, attempt *model.Attempt, results map[string]model.SectionResult, nextSubtes string, nextRemaining int) error
	Finalize(ctx context.Context, attempt *model.Attempt, totalScore float64, completedAt time.Time) error
}

type SnapshotStore interface {
	Put(ctx context.Context, snap engine.Snapshot) error
	Get(ctx context.Context, attemptID uint) (*engine.Snapshot, error)
	Delete(ctx context.Context, attemptID uint) error
}

// AttemptService orchestrates the attempt lifecycle: start/resume, per-section
// finish, and completion. It owns the live sessions through the engine manager
// and wires each session's autosave and expiry callback.
type AttemptService struct {
	Tryouts   TryoutStore
	Questions QuestionStore
	Attempts  AttemptStore
	Cache     SnapshotStore // optional hot snapshot layer
	Sessions  *engine.Manager
	TryoutSvc *TryoutService
	Exam      config.ExamConfig

	// Section transitions are serialized so a user-triggered finish and a
	// timer expiry can never double-score a section. This also keeps the
	// shared rand source single-threaded.
	finishMu sync.Mutex
	rng      *rand.Rand

	tickInterval time.Duration // test hook; zero means one second
}

// NewAttemptService builds the lifecycle manager. rng may be nil, in which
// case a time-seeded source is used; tests inject a fixed one so scoring
// jitter is deterministic.
func NewAttemptService(tryouts TryoutStore, questions QuestionStore, attempts AttemptStore,
	cache SnapshotStore, sessions *engine.Manager, tryoutSvc *TryoutService,
	examCfg config.ExamConfig, rng *rand.Rand) *AttemptService {

	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	s := &AttemptService{
		Tryouts:   tryouts,
		Questions: questions,
		Attempts:  attempts,
		Cache:     cache,
		Sessions:  sessions,
		TryoutSvc: tryoutSvc,
		Exam:      examCfg,
		rng:       rng,
	}
	sessions.OnCountChange(func(n int) {
		monitoring.ActiveSessions.Set(float64(n))
	})
	return s
}

// StartView is returned by Start: the attempt plus the live session state and
// the active section's question list.
type StartView struct {
	Attempt *model.Attempt      `json:"attempt"`
	Session engine.SessionState `json:"session"`
	Section SectionView         `json:"section"`
	Resumed bool                `json:"resumed"`
}

// SectionView describes the active section for the consuming view.
type SectionView struct {
	Subtes          string           `json:"subtes"`
	Name            string           `json:"name"`
	Order           int              `json:"order"`
	DurationMinutes int              `json:"durationMinutes"`
	Questions       []model.Question `json:"questions"`
}

// Start creates a participant's attempt or resumes the in-progress one; a new
// attempt is never created while an old one is open, and a completed attempt
// cannot be reopened.
func (s *AttemptService) Start(userID, tryoutID uint, password string) (*StartView, error) {
	tryout, err := s.Tryouts.FindByID(tryoutID)
	if err != nil {
		return nil, util.ErrTryoutNotFound
	}
	if err := s.TryoutSvc.CheckAccess(tryout, password); err != nil {
		return nil, err
	}
	if len(tryout.Sections) == 0 {
		return nil, util.ErrEmptyTryout
	}

	attempt, err := s.Attempts.FindInProgress(userID, tryoutID)
	if err != nil {
		return nil, err
	}

	resumed := attempt != nil
	if attempt == nil {
		// One attempt per (user, tryout): a completed one blocks re-entry.
		if prior, err := s.Attempts.FindByUserAndTryout(userID, tryoutID); err == nil && prior.Completed() {
			return nil, util.ErrClosedAttempt
		}

		first := tryout.Sections[0]
		attempt = &model.Attempt{
			TryoutID:         tryoutID,
			UserID:           userID,
			StartedAt:        time.Now(),
			CurrentSubtes:    first.Subtes,
			RemainingSeconds: first.DurationSeconds(),
			Status:           model.AttemptInProgress,
		}
		if err := s.Attempts.Create(attempt); err != nil {
			return nil, err
		}
	}

	session, err := s.buildSession(attempt, tryout)
	if err != nil {
		return nil, err
	}

	section := s.sectionView(tryout, session)
	return &StartView{
		Attempt: attempt,
		Session: session.State(),
		Section: section,
		Resumed: resumed,
	}, nil
}

// buildSession reconstructs the runtime for an in-progress attempt from the
// freshest snapshot available (Redis first, the attempt row as fallback) and
// registers it with the manager.
func (s *AttemptService) buildSession(attempt *model.Attempt, tryout *model.Tryout) (*engine.Session, error) {
	if existing, ok := s.Sessions.Get(attempt.ID); ok {
		return existing, nil
	}

	subtes := attempt.CurrentSubtes
	remaining := attempt.RemainingSeconds
	answers, err := attempt.AnswerMap()
	if err != nil {
		return nil, err
	}
	flagged, err := attempt.FlaggedIDs()
	if err != nil {
		return nil, err
	}

	if s.Cache != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		snap, err := s.Cache.Get(ctx, attempt.ID)
		cancel()
		if err != nil {
			logger.Log.Warn("snapshot cache read failed", zap.Uint("attemptId", attempt.ID), zap.Error(err))
		} else if snap != nil && snap.Subtes == subtes {
			remaining = snap.RemainingSeconds
			answers = snap.Answers
			flagged = snap.Flagged
		}
	}

	section := findSection(tryout, subtes)
	if section == nil {
		return nil, util.ErrSectionMismatch
	}
	if remaining <= 0 {
		remaining = section.DurationSeconds()
	}

	questions, err := s.Questions.ListBySection(tryout.ID, subtes)
	if err != nil {
		return nil, err
	}

	store := engine.RestoreAnswerStore(answers, flagged)
	session := engine.NewSession(engine.SessionConfig{
		AttemptID:        attempt.ID,
		UserID:           attempt.UserID,
		TryoutID:         tryout.ID,
		OnExpire:         s.onSectionExpired,
		TickInterval:     s.tickInterval,
		Save:             s.saveFunc(),
		SaveTimeout:      s.Exam.SaveTimeout(),
		AutosaveInterval: s.Exam.AutosaveInterval(),
	}, store)
	session.Autosave().OnError(func(err error) {
		monitoring.AutosaveFailures.Inc()
		logger.Log.Warn("attempt autosave failed", zap.Uint("attemptId", attempt.ID), zap.Error(err))
	})
	session.StartSection(subtes, questions, remaining)
	s.Sessions.Put(session)
	return session, nil
}

// saveFunc is the autosave sink: the attempt row is the source of truth, the
// Redis snapshot a hot copy for fast resume. A cache failure alone does not
// fail the save.
func (s *AttemptService) saveFunc() engine.SaveFunc {
	return func(ctx context.Context, snap engine.Snapshot) error {
		if err := s.Attempts.SaveSnapshot(ctx, snap.AttemptID, snap.Subtes, snap.RemainingSeconds,
			snap.Answers, snap.Flagged); err != nil {
			return err
		}
		if s.Cache != nil {
			if err := s.Cache.Put(ctx, snap); err != nil {
				logger.Log.Warn("snapshot cache write failed", zap.Uint("attemptId", snap.AttemptID), zap.Error(err))
			}
		}
		return nil
	}
}

// session returns the live session for an attempt, rebuilding it from the last
// snapshot when the server no longer holds it (restart, idle reap).
func (s *AttemptService) session(userID, attemptID uint) (*engine.Session, error) {
	if sess, ok := s.Sessions.Get(attemptID); ok {
		if sess.UserID != userID {
			return nil, util.ErrAttemptNotFound
		}
		return sess, nil
	}

	attempt, err := s.Attempts.FindByID(attemptID)
	if err != nil {
		return nil, err
	}
	if attempt.UserID != userID {
		return nil, util.ErrAttemptNotFound
	}
	if attempt.Completed() {
		return nil, util.ErrClosedAttempt
	}
	tryout, err := s.Tryouts.FindByID(attempt.TryoutID)
	if err != nil {
		return nil, err
	}
	return s.buildSession(attempt, tryout)
}

// Answer writes one answer value into the attempt's answer store. Malformed
// values are rejected without touching existing state.
func (s *AttemptService) Answer(userID, attemptID, questionID uint, value json.RawMessage, toggle bool) error {
	sess, err := s.session(userID, attemptID)
	if err != nil {
		return err
	}
	return sess.Answer(questionID, value, toggle)
}

// ToggleFlag flips the advisory review flag on a question.
func (s *AttemptService) ToggleFlag(userID, attemptID, questionID uint) (bool, error) {
	sess, err := s.session(userID, attemptID)
	if err != nil {
		return false, err
	}
	return sess.ToggleFlag(questionID), nil
}

// Navigate moves the current question pointer; out-of-range is a no-op.
func (s *AttemptService) Navigate(userID, attemptID uint, index int) (bool, error) {
	sess, err := s.session(userID, attemptID)
	if err != nil {
		return false, err
	}
	return sess.Navigate(index), nil
}

// Visibility feeds a page-visibility transition into the integrity monitor
// and reports whether it raised a new tab-left warning.
func (s *AttemptService) Visibility(userID, attemptID uint, state engine.VisibilityState) (bool, error) {
	sess, err := s.session(userID, attemptID)
	if err != nil {
		return false, err
	}
	return sess.Visibility(state), nil
}

// State serves the session snapshot for the consuming view.
func (s *AttemptService) State(userID, attemptID uint) (*engine.SessionState, *SectionView, error) {
	sess, err := s.session(userID, attemptID)
	if err != nil {
		return nil, nil, err
	}
	tryout, err := s.Tryouts.FindByID(sess.TryoutID)
	if err != nil {
		return nil, nil, err
	}
	state := sess.State()
	section := s.sectionView(tryout, sess)
	return &state, &section, nil
}

// FinishSection ends the active section on user confirmation: scores it,
// stores the SectionResult, and advances to the next section or completes the
// attempt.
func (s *AttemptService) FinishSection(userID, attemptID uint) (*model.Attempt, error) {
	sess, err := s.session(userID, attemptID)
	if err != nil {
		return nil, err
	}
	return s.finishSection(sess, "user", "")
}

// onSectionExpired is the countdown callback: the section named by the expired
// timer finishes without user confirmation.
func (s *AttemptService) onSectionExpired(attemptID uint, subtes string) {
	sess, ok := s.Sessions.Get(attemptID)
	if !ok {
		return
	}
	if _, err := s.finishSection(sess, "timer", subtes); err != nil {
		logger.Log.Error("auto-finish on expiry failed",
			zap.Uint("attemptId", attemptID), zap.Error(err))
	}
}

// finishSection scores the active section and advances the attempt. expected
// names the section the trigger belongs to; "" means the active one. A timer
// dispatch that arrives after the user already finished its section carries
// the old name, so it is dropped here instead of scoring the next section.
func (s *AttemptService) finishSection(sess *engine.Session, trigger, expected string) (*model.Attempt, error) {
	s.finishMu.Lock()
	defer s.finishMu.Unlock()

	attempt, err := s.Attempts.FindByID(sess.AttemptID)
	if err != nil {
		return nil, err
	}
	if attempt.Completed() {
		return nil, util.ErrClosedAttempt
	}

	results, err := attempt.ResultMap()
	if err != nil {
		return nil, err
	}

	subtes := sess.CurrentSubtes()
	if expected != "" && expected != subtes {
		// Stale trigger for a section that already finished.
		return attempt, nil
	}
	if _, done := results[subtes]; done {
		// Raced with the other trigger; the section was already scored.
		return attempt, nil
	}

	results[subtes] = sess.ScoreCurrent(s.randSource())
	monitoring.SectionsFinished.WithLabelValues(trigger).Inc()

	tryout, err := s.Tryouts.FindByID(sess.TryoutID)
	if err != nil {
		return nil, err
	}
	next := nextSection(tryout, subtes)

	ctx, cancel := context.WithTimeout(context.Background(), s.Exam.SaveTimeout())
	defer cancel()

	if next != nil {
		if err := s.Attempts.StoreSectionResult(ctx, attempt, results, next.Subtes, next.DurationSeconds()); err != nil {
			return nil, err
		}
		questions, err := s.Questions.ListBySection(tryout.ID, next.Subtes)
		if err != nil {
			return nil, err
		}
		sess.StartSection(next.Subtes, questions, next.DurationSeconds())
		if sess.Autosave() != nil {
			sess.Autosave().Trigger()
		}
		logger.Log.Info("section finished",
			zap.Uint("attemptId", attempt.ID),
			zap.String("subtes", subtes),
			zap.String("next", next.Subtes),
			zap.String("trigger", trigger))
		return attempt, nil
	}

	// Last section: aggregate and complete.
	if err := s.Attempts.StoreSectionResult(ctx, attempt, results, subtes, 0); err != nil {
		return nil, err
	}
	total := engine.AggregateScore(results)
	now := time.Now()
	if err := s.Attempts.Finalize(ctx, attempt, total, now); err != nil {
		return nil, err
	}

	s.Sessions.Remove(attempt.ID)
	// The attempt row already holds the final state, so the session is torn
	// down without a last flush.
	sess.Discard()
	if s.Cache != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		_ = s.Cache.Delete(ctx, attempt.ID)
		cancel()
	}

	logger.Log.Info("attempt completed",
		zap.Uint("attemptId", attempt.ID),
		zap.Float64("totalScore", total),
		zap.String("trigger", trigger))
	return attempt, nil
}

// LeaveSession closes the live session with one best-effort save, keeping the
// attempt resumable. Used when the participant navigates away.
func (s *AttemptService) LeaveSession(userID, attemptID uint) error {
	sess, ok := s.Sessions.Get(attemptID)
	if !ok {
		return nil
	}
	if sess.UserID != userID {
		return util.ErrAttemptNotFound
	}
	s.Sessions.Remove(attemptID)
	ctx, cancel := context.WithTimeout(context.Background(), s.Exam.SaveTimeout())
	defer cancel()
	if err := sess.Close(ctx); err != nil {
		// The next resume falls back to the last persisted snapshot.
		logger.Log.Warn("final save on leave failed", zap.Uint("attemptId", attemptID), zap.Error(err))
	}
	return nil
}

// Result returns the completed attempt with its per-section results.
func (s *AttemptService) Result(userID, attemptID uint) (*model.Attempt, map[string]model.SectionResult, error) {
	attempt, err := s.Attempts.FindByID(attemptID)
	if err != nil {
		return nil, nil, err
	}
	if attempt.UserID != userID {
		return nil, nil, util.ErrAttemptNotFound
	}
	if !attempt.Completed() {
		return nil, nil, util.ErrAttemptNotFinished
	}
	results, err := attempt.ResultMap()
	if err != nil {
		return nil, nil, err
	}
	return attempt, results, nil
}

// ReapIdleSessions is run by the background scheduler.
func (s *AttemptService) ReapIdleSessions() int {
	return s.Sessions.ReapIdle(s.Exam.SessionIdle(), s.Exam.SaveTimeout())
}

func (s *AttemptService) randSource() *rand.Rand {
	return s.rng
}

func (s *AttemptService) sectionView(tryout *model.Tryout, sess *engine.Session) SectionView {
	subtes := sess.CurrentSubtes()
	view := SectionView{
		Subtes:    subtes,
		Questions: sess.Questions(),
	}
	if sec := findSection(tryout, subtes); sec != nil {
		view.Name = sec.Name
		view.Order = sec.Order
		view.DurationMinutes = sec.DurationMinutes
	}
	return view
}

func findSection(tryout *model.Tryout, subtes string) *model.TryoutSection {
	for i := range tryout.Sections {
		if tryout.Sections[i].Subtes == subtes {
			return &tryout.Sections[i]
		}
	}
	return nil
}

// nextSection returns the section after subtes in the tryout's fixed ordering,
// nil when subtes is the last one.
func nextSection(tryout *model.Tryout, subtes string) *model.TryoutSection {
	for i := range tryout.Sections {
		if tryout.Sections[i].Subtes == subtes && i+1 < len(tryout.Sections) {
			return &tryout.Sections[i+1]
		}
	}
	return nil
}
