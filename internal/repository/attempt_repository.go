package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"tryout_backend/internal/model"
	"tryout_backend/internal/util"

	"gorm.io/gorm"
)

type AttemptRepository struct {
	DB *gorm.DB
}

func NewAttemptRepository(db *gorm.DB) *AttemptRepository {
	return &AttemptRepository{DB: db}
}

func (r *AttemptRepository) Create(attempt *model.Attempt) error {
	return r.DB.Create(attempt).Error
}

func (r *AttemptRepository) FindByID(id uint) (*model.Attempt, error) {
	var a model.Attempt
	if err := r.DB.First(&a, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrAttemptNotFound
		}
		return nil, err
	}
	return &a, nil
}

// FindInProgress returns the open attempt for a (user, tryout) pair, nil when
// none exists.
func (r *AttemptRepository) FindInProgress(userID, tryoutID uint) (*model.Attempt, error) {
	var a model.Attempt
	err := r.DB.Where("user_id = ? AND tryout_id = ? AND status = ?",
		userID, tryoutID, model.AttemptInProgress).First(&a).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *AttemptRepository) FindByUserAndTryout(userID, tryoutID uint) (*model.Attempt, error) {
	var a model.Attempt
	err := r.DB.Where("user_id = ? AND tryout_id = ?", userID, tryoutID).First(&a).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, util.ErrAttemptNotFound
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// SaveSnapshot upserts the progress slice of an attempt: answer store, flagged
// set, active section and its remaining seconds. The write is bounded by ctx
// so a hung database cannot stall the autosave worker. Updates against a
// completed attempt are rejected, never silently accepted.
func (r *AttemptRepository) SaveSnapshot(ctx context.Context, attemptID uint, subtes string, remaining int,
	answers map[uint]json.RawMessage, flagged []uint) error {

	answersJSON, err := json.Marshal(answers)
	if err != nil {
		return err
	}
	flaggedJSON, err := json.Marshal(flagged)
	if err != nil {
		return err
	}

	res := r.DB.WithContext(ctx).Model(&model.Attempt{}).
		Where("id = ? AND status = ?", attemptID, model.AttemptInProgress).
		Updates(map[string]interface{}{
			"current_subtes":    subtes,
			"remaining_seconds": remaining,
			"answers":           json.RawMessage(answersJSON),
			"flagged":           json.RawMessage(flaggedJSON),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		var count int64
		r.DB.Model(&model.Attempt{}).Where("id = ?", attemptID).Count(&count)
		if count == 0 {
			return util.ErrAttemptNotFound
		}
		return util.ErrClosedAttempt
	}
	return nil
}

// StoreSectionResult writes one section's result and the advanced section
// pointer in a single update. Rejected for completed attempts.
func (r *AttemptRepository) StoreSectionResult(ctx context.Context, attempt *model.Attempt, results map[string]model.SectionResult,
	nextSubtes string, nextRemaining int) error {

	resultsJSON, err := json.Marshal(results)
	if err != nil {
		return err
	}

	res := r.DB.WithContext(ctx).Model(&model.Attempt{}).
		Where("id = ? AND status = ?", attempt.ID, model.AttemptInProgress).
		Updates(map[string]interface{}{
			"section_results":   json.RawMessage(resultsJSON),
			"current_subtes":    nextSubtes,
			"remaining_seconds": nextRemaining,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return util.ErrClosedAttempt
	}
	attempt.SectionResults = resultsJSON
	attempt.CurrentSubtes = nextSubtes
	attempt.RemainingSeconds = nextRemaining
	return nil
}

// Finalize marks the attempt completed with its aggregate score. The status
// guard makes completion idempotent-safe: a second finalize fails with
// ErrClosedAttempt.
func (r *AttemptRepository) Finalize(ctx context.Context, attempt *model.Attempt, totalScore float64, completedAt time.Time) error {
	res := r.DB.WithContext(ctx).Model(&model.Attempt{}).
		Where("id = ? AND status = ?", attempt.ID, model.AttemptInProgress).
		Updates(map[string]interface{}{
			"status":       model.AttemptCompleted,
			"total_score":  totalScore,
			"completed_at": completedAt,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return util.ErrClosedAttempt
	}
	attempt.Status = model.AttemptCompleted
	attempt.TotalScore = totalScore
	attempt.CompletedAt = &completedAt
	return nil
}

// LeaderboardRow is one entry of a tryout's completed-attempt ranking.
type LeaderboardRow struct {
	UserID      uint      `json:"userId"`
	Name        string    `json:"name"`
	School      string    `json:"school"`
	TotalScore  float64   `json:"totalScore"`
	CompletedAt time.Time `json:"completedAt"`
}

// Leaderboard ranks a tryout's completed attempts by score.
func (r *AttemptRepository) Leaderboard(tryoutID uint, limit int) ([]LeaderboardRow, error) {
	var rows []LeaderboardRow
	err := r.DB.Table("attempts").
		Select("attempts.user_id, users.name, users.school, attempts.total_score, attempts.completed_at").
		Joins("JOIN users ON users.id = attempts.user_id").
		Where("attempts.tryout_id = ? AND attempts.status = ?", tryoutID, model.AttemptCompleted).
		Order("attempts.total_score DESC").
		Limit(limit).
		Scan(&rows).Error
	return rows, err
}

// ListCompleted returns a tryout's completed attempts, highest score first.
func (r *AttemptRepository) ListCompleted(tryoutID uint, limit int) ([]model.Attempt, error) {
	var attempts []model.Attempt
	q := r.DB.Where("tryout_id = ? AND status = ?", tryoutID, model.AttemptCompleted).
		Order("total_score DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&attempts).Error
	return attempts, err
}
