package repository

import (
	"time"

	"tryout_backend/internal/model"

	"gorm.io/gorm"
)

type TryoutRepository struct {
	DB *gorm.DB
}

func NewTryoutRepository(db *gorm.DB) *TryoutRepository {
	return &TryoutRepository{DB: db}
}

func (r *TryoutRepository) FindByID(id uint) (*model.Tryout, error) {
	var t model.Tryout
	err := r.DB.Preload("Sections", func(db *gorm.DB) *gorm.DB {
		return db.Order("tryout_sections.order ASC")
	}).First(&t, id).Error
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// ListReleased returns tryouts whose release time has passed, newest first.
func (r *TryoutRepository) ListReleased(now time.Time) ([]model.Tryout, error) {
	var tryouts []model.Tryout
	err := r.DB.Preload("Sections", func(db *gorm.DB) *gorm.DB {
		return db.Order("tryout_sections.order ASC")
	}).Where("release_at <= ?", now).Order("start_at DESC").Find(&tryouts).Error
	return tryouts, err
}

// SweepScheduled flips manually-opened tryouts back to scheduled once their
// window is over, so stale manual overrides do not outlive the schedule.
func (r *TryoutRepository) SweepScheduled(now time.Time) (int64, error) {
	res := r.DB.Model(&model.Tryout{}).
		Where("access_mode = ? AND end_at IS NOT NULL AND end_at < ?", model.AccessManualOpened, now).
		Update("access_mode", model.AccessScheduled)
	return res.RowsAffected, res.Error
}
