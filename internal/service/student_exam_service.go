package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/aulavirtual/cursos-api/internal/dto"
	"github.com/aulavirtual/cursos-api/internal/models"
	"github.com/aulavirtual/cursos-api/internal/repository"
)

// StudentExamService produces the per-student exam list: availability,
// attempts used and the latest outcome of each exam. Responses are cached in
// redis and invalidated whenever the student submits an attempt.
type StudentExamService interface {
	Overview(ctx context.Context, studentID uint) ([]dto.StudentExamOverview, error)
	InvalidateStudent(ctx context.Context, studentID uint) error
}

type studentExamService struct {
	exams    repository.ExamRepository
	attempts repository.AttemptRepository
	cache    *redis.Client
	cacheTTL time.Duration
	logger   zerolog.Logger
	now      func() time.Time
}

// NewStudentExamService builds the overview aggregator. The cache client may
// be nil, in which case every call recomputes.
func NewStudentExamService(exams repository.ExamRepository, attempts repository.AttemptRepository, cache *redis.Client, ttl time.Duration, logger zerolog.Logger) StudentExamService {
	return &studentExamService{
		exams:    exams,
		attempts: attempts,
		cache:    cache,
		cacheTTL: ttl,
		logger:   logger.With().Str("component", "student_exam_service").Logger(),
		now:      time.Now,
	}
}

func overviewCacheKey(studentID uint) string {
	return fmt.Sprintf("exams:overview:student:%d", studentID)
}

func (s *studentExamService) Overview(ctx context.Context, studentID uint) ([]dto.StudentExamOverview, error) {
	cacheKey := overviewCacheKey(studentID)

	if s.cache != nil {
		if cached, err := s.cache.Get(ctx, cacheKey).Result(); err == nil {
			var overview []dto.StudentExamOverview
			if unmarshalErr := json.Unmarshal([]byte(cached), &overview); unmarshalErr == nil {
				s.logger.Debug().Uint("student_id", studentID).Msg("exam overview cache hit")
				return overview, nil
			}
		} else if err != redis.Nil {
			s.logger.Warn().Err(err).Msg("failed to read exam overview cache")
		}
	}

	exams, err := s.exams.List(ctx, repository.ExamFilter{})
	if err != nil {
		return nil, err
	}

	overview := make([]dto.StudentExamOverview, 0, len(exams))
	now := s.now()

	for _, exam := range exams {
		attempts, err := s.attempts.ListByExamAndStudent(ctx, exam.ID, studentID)
		if err != nil {
			return nil, err
		}

		overview = append(overview, buildOverviewEntry(exam, attempts, now))
	}

	if s.cache != nil {
		if payload, err := json.Marshal(overview); err == nil {
			if err := s.cache.Set(ctx, cacheKey, payload, s.cacheTTL).Err(); err != nil {
				s.logger.Warn().Err(err).Msg("failed to store exam overview cache")
			}
		}
	}

	return overview, nil
}

func (s *studentExamService) InvalidateStudent(ctx context.Context, studentID uint) error {
	if s.cache == nil {
		return nil
	}
	return s.cache.Del(ctx, overviewCacheKey(studentID)).Err()
}

func buildOverviewEntry(exam models.Exam, attempts []models.ExamAttempt, now time.Time) dto.StudentExamOverview {
	entry := dto.StudentExamOverview{
		ExamID:           exam.ID,
		Title:            exam.Title,
		PassingScore:     exam.PassingScore,
		TimeLimitMinutes: exam.TimeLimitMinutes,
		MaxAttempts:      exam.MaxAttempts,
		ActivationDate:   exam.ActivationDate,
	}

	for _, attempt := range attempts {
		switch attempt.Status {
		case models.AttemptStatusInProgress:
			entry.InProgress = true
		case models.AttemptStatusSubmitted:
			entry.AttemptsUsed++
			// Attempts are ordered newest first; keep the first submitted one.
			if entry.LastScore == nil {
				entry.LastScore = attempt.Score
				entry.LastPassed = attempt.Passed
			}
		}
	}

	entry.AttemptsRemaining = exam.MaxAttempts - entry.AttemptsUsed
	if entry.AttemptsRemaining < 0 {
		entry.AttemptsRemaining = 0
	}

	switch {
	case !exam.IsOpenAt(now):
		entry.Reason = reasonNotYetOpen
	case entry.AttemptsUsed >= exam.MaxAttempts:
		entry.Reason = reasonAttemptsReached
	default:
		entry.Available = true
	}

	return entry
}
