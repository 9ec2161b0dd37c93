package service

import (
	"context"
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/aulavirtual/cursos-api/internal/dto"
	"github.com/aulavirtual/cursos-api/internal/repository"
)

// ErrResultNotFound indicates the result does not exist.
var ErrResultNotFound = errors.New("result not found")

// ResultService exposes the durable scoring records: listing, aggregate stats
// for the teacher view, and attaching supplementary review text. Score and
// passed are immutable after insertion; a review only fills the free-form
// feedback column.
type ResultService interface {
	ListByExam(ctx context.Context, examID uint) ([]dto.ResultResponse, error)
	ListByStudent(ctx context.Context, studentID uint) ([]dto.ResultResponse, error)
	Get(ctx context.Context, id uint) (dto.ResultResponse, error)
	Stats(ctx context.Context, examID uint) (dto.ExamStatsResponse, error)
	AttachReview(ctx context.Context, id uint, payload dto.ResultReviewRequest) (dto.ResultResponse, error)
	AttachReviewByAttempt(ctx context.Context, attemptID uint, review string) error
}

type resultService struct {
	results   repository.ResultRepository
	validator *validator.Validate
	logger    zerolog.Logger
}

// NewResultService constructs the result service.
func NewResultService(results repository.ResultRepository, validate *validator.Validate, logger zerolog.Logger) ResultService {
	return &resultService{
		results:   results,
		validator: validate,
		logger:    logger.With().Str("component", "result_service").Logger(),
	}
}

func (s *resultService) ListByExam(ctx context.Context, examID uint) ([]dto.ResultResponse, error) {
	results, err := s.results.List(ctx, repository.ResultFilter{ExamID: &examID})
	if err != nil {
		return nil, err
	}

	return dto.NewResultResponseSlice(results), nil
}

func (s *resultService) ListByStudent(ctx context.Context, studentID uint) ([]dto.ResultResponse, error) {
	results, err := s.results.List(ctx, repository.ResultFilter{StudentID: &studentID})
	if err != nil {
		return nil, err
	}

	return dto.NewResultResponseSlice(results), nil
}

func (s *resultService) Get(ctx context.Context, id uint) (dto.ResultResponse, error) {
	result, err := s.results.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.ResultResponse{}, ErrResultNotFound
		}
		return dto.ResultResponse{}, err
	}

	return dto.NewResultResponse(result), nil
}

func (s *resultService) Stats(ctx context.Context, examID uint) (dto.ExamStatsResponse, error) {
	results, err := s.results.List(ctx, repository.ResultFilter{ExamID: &examID})
	if err != nil {
		return dto.ExamStatsResponse{}, err
	}

	stats := dto.ExamStatsResponse{ExamID: examID, TotalResults: len(results)}
	if len(results) == 0 {
		return stats, nil
	}

	var sum float64
	var passed int
	stats.HighestScore = results[0].Score
	stats.LowestScore = results[0].Score

	for _, result := range results {
		sum += result.Score
		if result.Passed {
			passed++
		}
		if result.Score > stats.HighestScore {
			stats.HighestScore = result.Score
		}
		if result.Score < stats.LowestScore {
			stats.LowestScore = result.Score
		}
	}

	stats.AverageScore = sum / float64(len(results))
	stats.PassRate = float64(passed) / float64(len(results)) * 100

	return stats, nil
}

func (s *resultService) AttachReview(ctx context.Context, id uint, payload dto.ResultReviewRequest) (dto.ResultResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.ResultResponse{}, err
	}

	result, err := s.results.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.ResultResponse{}, ErrResultNotFound
		}
		return dto.ResultResponse{}, err
	}

	if err := s.results.AttachReview(ctx, result.ID, payload.Review); err != nil {
		return dto.ResultResponse{}, err
	}

	s.logger.Info().Uint("result_id", result.ID).Msg("review attached to result")

	result.AIFeedback = payload.Review
	return dto.NewResultResponse(result), nil
}

func (s *resultService) AttachReviewByAttempt(ctx context.Context, attemptID uint, review string) error {
	if review == "" {
		return nil
	}

	result, err := s.results.GetByAttemptID(ctx, attemptID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrResultNotFound
		}
		return err
	}

	return s.results.AttachReview(ctx, result.ID, review)
}
