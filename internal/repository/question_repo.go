package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/aulavirtual/cursos-api/internal/models"
)

// QuestionRepository defines data operations for exam questions.
type QuestionRepository interface {
	ListByExam(ctx context.Context, examID uint) ([]models.ExamQuestion, error)
	GetByID(ctx context.Context, id uint) (models.ExamQuestion, error)
	Create(ctx context.Context, question *models.ExamQuestion) error
	Update(ctx context.Context, question *models.ExamQuestion) error
	Delete(ctx context.Context, id uint) error
}

type questionRepository struct {
	db *gorm.DB
}

// NewQuestionRepository instantiates the repository.
func NewQuestionRepository(db *gorm.DB) QuestionRepository {
	return &questionRepository{db: db}
}

func (r *questionRepository) ListByExam(ctx context.Context, examID uint) ([]models.ExamQuestion, error) {
	var questions []models.ExamQuestion
	if err := r.db.WithContext(ctx).
		Where("exam_id = ?", examID).
		Order("question_order ASC").
		Find(&questions).Error; err != nil {
		return nil, err
	}

	return questions, nil
}

func (r *questionRepository) GetByID(ctx context.Context, id uint) (models.ExamQuestion, error) {
	var question models.ExamQuestion
	if err := r.db.WithContext(ctx).First(&question, id).Error; err != nil {
		return models.ExamQuestion{}, err
	}

	return question, nil
}

func (r *questionRepository) Create(ctx context.Context, question *models.ExamQuestion) error {
	return r.db.WithContext(ctx).Create(question).Error
}

func (r *questionRepository) Update(ctx context.Context, question *models.ExamQuestion) error {
	return r.db.WithContext(ctx).Save(question).Error
}

func (r *questionRepository) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Delete(&models.ExamQuestion{}, id).Error
}
