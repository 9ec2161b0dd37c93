package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/aulavirtual/cursos-api/internal/models"
)

// ErrDuplicateAttempt is returned when creating an in-progress attempt
// violates the one-in-progress-per-(exam,student) uniqueness constraint.
// Callers reconcile by re-fetching the pre-existing attempt.
var ErrDuplicateAttempt = errors.New("an in-progress attempt already exists")

// AttemptRepository defines data operations for exam attempts.
type AttemptRepository interface {
	ListByExamAndStudent(ctx context.Context, examID, studentID uint) ([]models.ExamAttempt, error)
	GetByID(ctx context.Context, id uint) (models.ExamAttempt, error)
	LatestByExamAndStudent(ctx context.Context, examID, studentID uint) (models.ExamAttempt, error)
	CountSubmitted(ctx context.Context, examID, studentID uint) (int64, error)
	Create(ctx context.Context, attempt *models.ExamAttempt) error
	Update(ctx context.Context, attempt *models.ExamAttempt) error
	// FinalizeSubmission persists the submitted attempt and inserts its result
	// row inside a single transaction, so a crash can never leave a submitted
	// attempt without a result.
	FinalizeSubmission(ctx context.Context, attempt *models.ExamAttempt, result *models.ExamResult) error
}

type attemptRepository struct {
	db *gorm.DB
}

// NewAttemptRepository instantiates the repository.
func NewAttemptRepository(db *gorm.DB) AttemptRepository {
	return &attemptRepository{db: db}
}

func (r *attemptRepository) ListByExamAndStudent(ctx context.Context, examID, studentID uint) ([]models.ExamAttempt, error) {
	var attempts []models.ExamAttempt
	if err := r.db.WithContext(ctx).
		Where("exam_id = ?", examID).
		Where("student_id = ?", studentID).
		Order("started_at DESC").
		Find(&attempts).Error; err != nil {
		return nil, err
	}

	return attempts, nil
}

func (r *attemptRepository) GetByID(ctx context.Context, id uint) (models.ExamAttempt, error) {
	var attempt models.ExamAttempt
	if err := r.db.WithContext(ctx).First(&attempt, id).Error; err != nil {
		return models.ExamAttempt{}, err
	}

	return attempt, nil
}

func (r *attemptRepository) LatestByExamAndStudent(ctx context.Context, examID, studentID uint) (models.ExamAttempt, error) {
	var attempt models.ExamAttempt
	if err := r.db.WithContext(ctx).
		Where("exam_id = ?", examID).
		Where("student_id = ?", studentID).
		Order("started_at DESC").
		First(&attempt).Error; err != nil {
		return models.ExamAttempt{}, err
	}

	return attempt, nil
}

func (r *attemptRepository) CountSubmitted(ctx context.Context, examID, studentID uint) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.ExamAttempt{}).
		Where("exam_id = ?", examID).
		Where("student_id = ?", studentID).
		Where("status = ?", models.AttemptStatusSubmitted).
		Count(&count).Error; err != nil {
		return 0, err
	}

	return count, nil
}

func (r *attemptRepository) Create(ctx context.Context, attempt *models.ExamAttempt) error {
	if err := r.db.WithContext(ctx).Create(attempt).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrDuplicateAttempt
		}
		return err
	}

	return nil
}

func (r *attemptRepository) Update(ctx context.Context, attempt *models.ExamAttempt) error {
	return r.db.WithContext(ctx).Save(attempt).Error
}

func (r *attemptRepository) FinalizeSubmission(ctx context.Context, attempt *models.ExamAttempt, result *models.ExamResult) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Save(attempt).Error; err != nil {
			return err
		}
		return tx.Create(result).Error
	})
}
