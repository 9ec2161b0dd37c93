package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/aulavirtual/cursos-api/internal/models"
)

// ResultFilter narrows result queries.
type ResultFilter struct {
	ExamID    *uint
	StudentID *uint
}

// ResultRepository defines data operations for exam results. Results are
// append-only: there is no delete, and the only mutation is attaching review
// text.
type ResultRepository interface {
	List(ctx context.Context, filter ResultFilter) ([]models.ExamResult, error)
	GetByID(ctx context.Context, id uint) (models.ExamResult, error)
	GetByAttemptID(ctx context.Context, attemptID uint) (models.ExamResult, error)
	Create(ctx context.Context, result *models.ExamResult) error
	AttachReview(ctx context.Context, id uint, review string) error
}

type resultRepository struct {
	db *gorm.DB
}

// NewResultRepository instantiates the repository.
func NewResultRepository(db *gorm.DB) ResultRepository {
	return &resultRepository{db: db}
}

func (r *resultRepository) List(ctx context.Context, filter ResultFilter) ([]models.ExamResult, error) {
	query := r.db.WithContext(ctx).Model(&models.ExamResult{}).Preload("Student")

	if filter.ExamID != nil {
		query = query.Where("exam_id = ?", *filter.ExamID)
	}

	if filter.StudentID != nil {
		query = query.Where("student_id = ?", *filter.StudentID)
	}

	var results []models.ExamResult
	if err := query.Order("completed_at DESC").Find(&results).Error; err != nil {
		return nil, err
	}

	return results, nil
}

func (r *resultRepository) GetByID(ctx context.Context, id uint) (models.ExamResult, error) {
	var result models.ExamResult
	if err := r.db.WithContext(ctx).First(&result, id).Error; err != nil {
		return models.ExamResult{}, err
	}

	return result, nil
}

func (r *resultRepository) GetByAttemptID(ctx context.Context, attemptID uint) (models.ExamResult, error) {
	var result models.ExamResult
	if err := r.db.WithContext(ctx).
		Where("attempt_id = ?", attemptID).
		First(&result).Error; err != nil {
		return models.ExamResult{}, err
	}

	return result, nil
}

func (r *resultRepository) Create(ctx context.Context, result *models.ExamResult) error {
	return r.db.WithContext(ctx).Create(result).Error
}

func (r *resultRepository) AttachReview(ctx context.Context, id uint, review string) error {
	return r.db.WithContext(ctx).
		Model(&models.ExamResult{}).
		Where("id = ?", id).
		Update("ai_feedback", review).Error
}
