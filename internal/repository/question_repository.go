package repository

import (
	"tryout_backend/internal/model"

	"gorm.io/gorm"
)

type QuestionRepository struct {
	DB *gorm.DB
}

func NewQuestionRepository(db *gorm.DB) *QuestionRepository {
	return &QuestionRepository{DB: db}
}

// ListBySection returns the ordered question list of one section, including
// shared-passage grouping metadata.
func (r *QuestionRepository) ListBySection(tryoutID uint, subtes string) ([]model.Question, error) {
	var questions []model.Question
	err := r.DB.Where("tryout_id = ? AND subtes = ?", tryoutID, subtes).
		Order("number ASC").Find(&questions).Error
	return questions, err
}

// CountBySection reports how many questions one section holds; the detail
// view shows this without loading the question bodies.
func (r *QuestionRepository) CountBySection(tryoutID uint, subtes string) (int64, error) {
	var count int64
	err := r.DB.Model(&model.Question{}).
		Where("tryout_id = ? AND subtes = ?", tryoutID, subtes).Count(&count).Error
	return count, err
}
