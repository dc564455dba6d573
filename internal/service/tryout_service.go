package service

import (
	"errors"
	"time"

	"tryout_backend/internal/model"
	"tryout_backend/internal/repository"
	"tryout_backend/internal/util"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type TryoutService struct {
	TryoutRepo   *repository.TryoutRepository
	QuestionRepo *repository.QuestionRepository
	AttemptRepo  *repository.AttemptRepository
}

func NewTryoutService(tryoutRepo *repository.TryoutRepository, questionRepo *repository.QuestionRepository,
	attemptRepo *repository.AttemptRepository) *TryoutService {
	return &TryoutService{TryoutRepo: tryoutRepo, QuestionRepo: questionRepo, AttemptRepo: attemptRepo}
}

// TryoutView is the directory listing entry: the tryout plus its computed
// availability at request time. QuestionCounts is only filled on the detail
// view, keyed by subtes.
type TryoutView struct {
	model.Tryout
	Availability   model.Availability `json:"availability"`
	NeedPassword   bool               `json:"needPassword"`
	QuestionCounts map[string]int64   `json:"questionCounts,omitempty"`
}

func (s *TryoutService) ListReleased() ([]TryoutView, error) {
	now := time.Now()
	tryouts, err := s.TryoutRepo.ListReleased(now)
	if err != nil {
		return nil, err
	}

	views := make([]TryoutView, 0, len(tryouts))
	for _, t := range tryouts {
		views = append(views, TryoutView{
			Tryout:       t,
			Availability: t.AvailabilityAt(now),
			NeedPassword: t.HasPassword(),
		})
	}
	return views, nil
}

func (s *TryoutService) Get(id uint) (*TryoutView, error) {
	t, err := s.TryoutRepo.FindByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrTryoutNotFound
		}
		return nil, err
	}
	now := time.Now()
	if !t.Released(now) {
		return nil, util.ErrTryoutNotFound
	}
	counts := make(map[string]int64, len(t.Sections))
	for _, section := range t.Sections {
		n, err := s.QuestionRepo.CountBySection(t.ID, section.Subtes)
		if err != nil {
			return nil, err
		}
		counts[section.Subtes] = n
	}
	return &TryoutView{
		Tryout:         *t,
		Availability:   t.AvailabilityAt(now),
		NeedPassword:   t.HasPassword(),
		QuestionCounts: counts,
	}, nil
}

// CheckAccess verifies the tryout is open and, when protected, that the given
// password matches.
func (s *TryoutService) CheckAccess(t *model.Tryout, password string) error {
	if t.AvailabilityAt(time.Now()) != model.AvailabilityOpen {
		return util.ErrTryoutNotAvailable
	}
	if !t.HasPassword() {
		return nil
	}
	if bcrypt.CompareHashAndPassword([]byte(t.PasswordHash), []byte(password)) != nil {
		return util.ErrWrongPassword
	}
	return nil
}

// Results lists a tryout's completed attempts, best score first.
func (s *TryoutService) Results(tryoutID uint, limit int) ([]repository.LeaderboardRow, error) {
	if _, err := s.TryoutRepo.FindByID(tryoutID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrTryoutNotFound
		}
		return nil, err
	}
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	return s.AttemptRepo.Leaderboard(tryoutID, limit)
}

// CompletedAttempts lists the full completed-attempt rows of a tryout for the
// admin view, highest score first.
func (s *TryoutService) CompletedAttempts(tryoutID uint, limit int) ([]model.Attempt, error) {
	if _, err := s.TryoutRepo.FindByID(tryoutID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrTryoutNotFound
		}
		return nil, err
	}
	if limit <= 0 || limit > 200 {
		limit = 100
	}
	return s.AttemptRepo.ListCompleted(tryoutID, limit)
}

// SweepManualModes is run by the background scheduler; it expires stale
// manually-opened overrides.
func (s *TryoutService) SweepManualModes() (int64, error) {
	return s.TryoutRepo.SweepScheduled(time.Now())
}
