package service

import (
	"context"
	"encoding/json"
	"errors"
	"html"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/aulavirtual/cursos-api/internal/dto"
	"github.com/aulavirtual/cursos-api/internal/middleware"
	"github.com/aulavirtual/cursos-api/internal/models"
	"github.com/aulavirtual/cursos-api/internal/repository"
)

// ErrExamNotFound indicates the exam does not exist.
var ErrExamNotFound = errors.New("exam not found")

// ErrExamNotYetAvailable indicates the exam's activation date has not passed.
var ErrExamNotYetAvailable = errors.New("exam is not yet available")

// ErrAttemptLimitExceeded indicates the student exhausted the allowed attempts.
var ErrAttemptLimitExceeded = errors.New("attempt limit exceeded")

// ErrAttemptNotFound indicates the attempt does not exist.
var ErrAttemptNotFound = errors.New("attempt not found")

// ErrAttemptForbidden indicates the attempt belongs to another student.
var ErrAttemptForbidden = errors.New("attempt belongs to another student")

// ErrAlreadySubmitted indicates a mutation was requested on a terminal attempt.
var ErrAlreadySubmitted = errors.New("attempt already submitted")

const (
	reasonNotYetOpen      = "not yet open"
	reasonAttemptsReached = "attempt limit reached"
)

// CorrectionNotifier dispatches a best-effort grading event to the external
// corrector. Failures are logged by the caller, never propagated; the engine's
// own rule-based score stays authoritative.
type CorrectionNotifier interface {
	Notify(ctx context.Context, event string, payload map[string]interface{}) error
}

// OverviewInvalidator drops cached student exam overviews after a submission.
type OverviewInvalidator interface {
	InvalidateStudent(ctx context.Context, studentID uint) error
}

// AttemptService owns the exam attempt lifecycle: start-or-resume with
// duplicate-start reconciliation, progress autosave, cooperative time-limit
// checks, submission with immediate scoring, and the availability predicate.
type AttemptService interface {
	StartOrResume(ctx context.Context, examID, studentID uint) (dto.AttemptResponse, error)
	SaveProgress(ctx context.Context, attemptID, studentID uint, payload dto.SaveProgressRequest) (dto.AttemptResponse, error)
	TimeRemaining(ctx context.Context, attemptID, studentID uint) (dto.TimeRemainingResponse, error)
	Submit(ctx context.Context, attemptID, studentID uint, payload dto.SubmitRequest) (dto.ResultResponse, error)
	Availability(ctx context.Context, examID, studentID uint) (dto.AvailabilityResponse, error)
	History(ctx context.Context, examID, studentID uint) ([]dto.AttemptResponse, error)
}

type attemptService struct {
	attempts      repository.AttemptRepository
	exams         repository.ExamRepository
	results       repository.ResultRepository
	validator     *validator.Validate
	notifier      CorrectionNotifier
	notifyTimeout time.Duration
	overviewCache OverviewInvalidator
	sanitizer     *bluemonday.Policy
	logger        zerolog.Logger
	tracer        trace.Tracer
	now           func() time.Time
}

// NewAttemptService constructs the attempt lifecycle service. Notifier and
// cache may be nil; both are best-effort collaborators.
func NewAttemptService(
	attempts repository.AttemptRepository,
	exams repository.ExamRepository,
	results repository.ResultRepository,
	validate *validator.Validate,
	notifier CorrectionNotifier,
	notifyTimeout time.Duration,
	overviewCache OverviewInvalidator,
	logger zerolog.Logger,
) AttemptService {
	if notifyTimeout <= 0 {
		notifyTimeout = 30 * time.Second
	}

	return &attemptService{
		attempts:      attempts,
		exams:         exams,
		results:       results,
		validator:     validate,
		notifier:      notifier,
		notifyTimeout: notifyTimeout,
		overviewCache: overviewCache,
		sanitizer:     bluemonday.StrictPolicy(),
		logger:        logger.With().Str("component", "attempt_service").Logger(),
		tracer:        otel.Tracer("github.com/aulavirtual/cursos-api/internal/service/attempt"),
		now:           time.Now,
	}
}

func (s *attemptService) StartOrResume(ctx context.Context, examID, studentID uint) (dto.AttemptResponse, error) {
	exam, err := s.exams.GetByID(ctx, examID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.AttemptResponse{}, ErrExamNotFound
		}
		return dto.AttemptResponse{}, err
	}

	now := s.now()
	if !exam.IsOpenAt(now) {
		return dto.AttemptResponse{}, ErrExamNotYetAvailable
	}

	existing, err := s.attempts.ListByExamAndStudent(ctx, examID, studentID)
	if err != nil {
		return dto.AttemptResponse{}, err
	}

	submitted := 0
	for _, attempt := range existing {
		if attempt.IsInProgress() {
			s.logger.Debug().Uint("attempt_id", attempt.ID).Msg("resuming in-progress attempt")
			return dto.NewAttemptResponse(attempt, true), nil
		}
		if attempt.Status == models.AttemptStatusSubmitted {
			submitted++
		}
	}

	if submitted >= exam.MaxAttempts {
		return dto.AttemptResponse{}, ErrAttemptLimitExceeded
	}

	attempt := models.ExamAttempt{
		ExamID:    examID,
		StudentID: studentID,
		Status:    models.AttemptStatusInProgress,
		StartedAt: now,
	}

	if err := s.attempts.Create(ctx, &attempt); err != nil {
		if errors.Is(err, repository.ErrDuplicateAttempt) {
			// Two near-simultaneous starts (UI double-submit, second browser
			// tab) must converge to one attempt: re-fetch instead of erroring.
			return s.recoverExistingAttempt(ctx, examID, studentID)
		}
		return dto.AttemptResponse{}, err
	}

	attemptsStarted.Inc()
	s.logger.Info().Uint("exam_id", examID).Uint("student_id", studentID).Uint("attempt_id", attempt.ID).Msg("attempt started")

	return dto.NewAttemptResponse(attempt, false), nil
}

func (s *attemptService) recoverExistingAttempt(ctx context.Context, examID, studentID uint) (dto.AttemptResponse, error) {
	attempt, err := s.attempts.LatestByExamAndStudent(ctx, examID, studentID)
	if err != nil {
		return dto.AttemptResponse{}, err
	}

	s.logger.Warn().
		Uint("exam_id", examID).
		Uint("student_id", studentID).
		Uint("attempt_id", attempt.ID).
		Msg("duplicate attempt insert reconciled to existing attempt")

	return dto.NewAttemptResponse(attempt, true), nil
}

func (s *attemptService) SaveProgress(ctx context.Context, attemptID, studentID uint, payload dto.SaveProgressRequest) (dto.AttemptResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.AttemptResponse{}, err
	}

	attempt, err := s.ownedAttempt(ctx, attemptID, studentID)
	if err != nil {
		return dto.AttemptResponse{}, err
	}

	if !attempt.IsInProgress() {
		return dto.AttemptResponse{}, ErrAlreadySubmitted
	}

	if err := attempt.SetAnswers(s.sanitizeAnswers(payload.Answers)); err != nil {
		return dto.AttemptResponse{}, err
	}

	if err := s.attempts.Update(ctx, &attempt); err != nil {
		return dto.AttemptResponse{}, err
	}

	return dto.NewAttemptResponse(attempt, false), nil
}

func (s *attemptService) TimeRemaining(ctx context.Context, attemptID, studentID uint) (dto.TimeRemainingResponse, error) {
	attempt, err := s.ownedAttempt(ctx, attemptID, studentID)
	if err != nil {
		return dto.TimeRemainingResponse{}, err
	}

	exam, err := s.exams.GetByID(ctx, attempt.ExamID)
	if err != nil {
		return dto.TimeRemainingResponse{}, err
	}

	remaining, timed := attempt.TimeRemaining(exam, s.now())
	if !timed {
		return dto.TimeRemainingResponse{Unlimited: true}, nil
	}

	limit, _ := exam.TimeLimit()
	deadline := attempt.StartedAt.Add(limit)

	return dto.TimeRemainingResponse{
		RemainingSeconds: int64(remaining / time.Second),
		Deadline:         &deadline,
		Expired:          remaining <= 0,
	}, nil
}

func (s *attemptService) Submit(ctx context.Context, attemptID, studentID uint, payload dto.SubmitRequest) (dto.ResultResponse, error) {
	ctx, span := s.tracer.Start(ctx, "attempt.submit", trace.WithAttributes(
		attribute.Int64("attempt.id", int64(attemptID)),
		attribute.Int64("attempt.student_id", int64(studentID)),
	))
	defer span.End()

	if err := s.validator.Struct(payload); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "validation_failed")
		return dto.ResultResponse{}, err
	}

	attempt, err := s.ownedAttempt(ctx, attemptID, studentID)
	if err != nil {
		span.RecordError(err)
		return dto.ResultResponse{}, err
	}

	if !attempt.IsInProgress() {
		span.SetStatus(codes.Error, "already_submitted")
		return dto.ResultResponse{}, ErrAlreadySubmitted
	}

	exam, err := s.exams.GetByID(ctx, attempt.ExamID)
	if err != nil {
		span.RecordError(err)
		return dto.ResultResponse{}, err
	}

	answers := s.sanitizeAnswers(payload.Answers)
	if err := attempt.SetAnswers(answers); err != nil {
		return dto.ResultResponse{}, err
	}

	start := s.now()
	summary := ScoreExam(exam, exam.Questions, answers)
	scoringDuration.Observe(time.Since(start).Seconds())
	span.SetAttributes(
		attribute.Float64("attempt.score", summary.Score),
		attribute.Bool("attempt.passed", summary.Passed),
	)

	submittedAt := s.now()
	attempt.Status = models.AttemptStatusSubmitted
	attempt.SubmittedAt = &submittedAt
	attempt.Score = &summary.Score
	attempt.Passed = &summary.Passed

	result, err := buildResult(attempt, exam, summary, submittedAt)
	if err != nil {
		span.RecordError(err)
		return dto.ResultResponse{}, err
	}

	// Attempt update and result insert share one transaction: a crash can
	// never leave a submitted attempt without its result row.
	if err := s.attempts.FinalizeSubmission(ctx, &attempt, &result); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "finalize_failed")
		return dto.ResultResponse{}, err
	}

	attemptsSubmitted.WithLabelValues(strconv.FormatBool(summary.Passed)).Inc()
	s.logger.Info().
		Uint("attempt_id", attempt.ID).
		Uint("exam_id", exam.ID).
		Float64("score", summary.Score).
		Bool("passed", summary.Passed).
		Msg("attempt submitted and scored")

	s.notifyCorrector(ctx, exam, attempt, result, summary)
	s.invalidateOverview(ctx, studentID)

	response := dto.NewResultResponse(result)
	response.Summary = summary.Summary

	return response, nil
}

func (s *attemptService) Availability(ctx context.Context, examID, studentID uint) (dto.AvailabilityResponse, error) {
	exam, err := s.exams.GetByID(ctx, examID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.AvailabilityResponse{}, ErrExamNotFound
		}
		return dto.AvailabilityResponse{}, err
	}

	if !exam.IsOpenAt(s.now()) {
		return dto.AvailabilityResponse{Available: false, Reason: reasonNotYetOpen}, nil
	}

	submitted, err := s.attempts.CountSubmitted(ctx, examID, studentID)
	if err != nil {
		return dto.AvailabilityResponse{}, err
	}

	if submitted >= int64(exam.MaxAttempts) {
		return dto.AvailabilityResponse{Available: false, Reason: reasonAttemptsReached}, nil
	}

	return dto.AvailabilityResponse{Available: true}, nil
}

func (s *attemptService) History(ctx context.Context, examID, studentID uint) ([]dto.AttemptResponse, error) {
	attempts, err := s.attempts.ListByExamAndStudent(ctx, examID, studentID)
	if err != nil {
		return nil, err
	}

	return dto.NewAttemptResponseSlice(attempts), nil
}

func (s *attemptService) ownedAttempt(ctx context.Context, attemptID, studentID uint) (models.ExamAttempt, error) {
	attempt, err := s.attempts.GetByID(ctx, attemptID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.ExamAttempt{}, ErrAttemptNotFound
		}
		return models.ExamAttempt{}, err
	}

	if attempt.StudentID != studentID {
		return models.ExamAttempt{}, ErrAttemptForbidden
	}

	return attempt, nil
}

func (s *attemptService) sanitizeAnswers(answers map[string]string) map[string]string {
	sanitized := make(map[string]string, len(answers))
	for questionID, answer := range answers {
		// The strict policy strips markup but escapes plain text (& becomes
		// &amp;). Unescape afterwards so answers keep their literal text and
		// compare equal against option and expected-answer strings.
		sanitized[questionID] = html.UnescapeString(s.sanitizer.Sanitize(answer))
	}
	return sanitized
}

func (s *attemptService) notifyCorrector(ctx context.Context, exam models.Exam, attempt models.ExamAttempt, result models.ExamResult, summary ScoreSummary) {
	if s.notifier == nil {
		return
	}

	notifyCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.notifyTimeout)
	defer cancel()

	payload := correctionPayload(exam, attempt, result, summary)
	if correlationID := middleware.CorrelationIDFromContext(ctx); correlationID != "" {
		payload["correlation_id"] = correlationID
	}

	if err := s.notifier.Notify(notifyCtx, "exam_correction", payload); err != nil {
		// Supplementary, not authoritative: scoring already happened locally.
		s.logger.Warn().Err(err).Uint("attempt_id", attempt.ID).Msg("corrector notification failed")
	}
}

func (s *attemptService) invalidateOverview(ctx context.Context, studentID uint) {
	if s.overviewCache == nil {
		return
	}
	if err := s.overviewCache.InvalidateStudent(ctx, studentID); err != nil {
		s.logger.Warn().Err(err).Uint("student_id", studentID).Msg("failed to invalidate exam overview cache")
	}
}

func correctionPayload(exam models.Exam, attempt models.ExamAttempt, result models.ExamResult, summary ScoreSummary) map[string]interface{} {
	submission := make([]map[string]interface{}, 0, len(summary.Feedback))
	for _, item := range summary.Feedback {
		submission = append(submission, map[string]interface{}{
			"question_number": item.QuestionNumber,
			"question_text":   item.QuestionText,
			"question_type":   item.QuestionType,
			"student_answer":  item.StudentAnswer,
			"correct_answer":  item.CorrectAnswer,
			"points":          item.Points,
			"earned_points":   item.EarnedPoints,
		})
	}

	return map[string]interface{}{
		"exam_attempt_id": attempt.ID,
		"exam_id":         exam.ID,
		"student_id":      attempt.StudentID,
		"result_id":       result.ID,
		"passing_score":   exam.PassingScore,
		"score":           summary.Score,
		"passed":          summary.Passed,
		"submission":      submission,
	}
}

func buildResult(attempt models.ExamAttempt, exam models.Exam, summary ScoreSummary, completedAt time.Time) (models.ExamResult, error) {
	feedback, err := json.Marshal(summary.Feedback)
	if err != nil {
		return models.ExamResult{}, err
	}

	return models.ExamResult{
		ExamID:         exam.ID,
		StudentID:      attempt.StudentID,
		AttemptID:      attempt.ID,
		Score:          summary.Score,
		Passed:         summary.Passed,
		CompletedAt:    completedAt,
		Feedback:       datatypes.JSON(feedback),
		Answers:        attempt.AnswersData,
		TotalQuestions: len(summary.Feedback),
		CorrectAnswers: summary.CorrectCount,
	}, nil
}
