package service

import (
	"context"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/aulavirtual/cursos-api/internal/dto"
	"github.com/aulavirtual/cursos-api/internal/models"
)

func newResultFixture(t *testing.T) (ResultService, *fakeResultRepo) {
	t.Helper()

	results := newFakeResultRepo()
	svc := NewResultService(results, validator.New(validator.WithRequiredStructEnabled()), zerolog.Nop())

	return svc, results
}

func seedResult(t *testing.T, repo *fakeResultRepo, examID, studentID, attemptID uint, score float64, passed bool) models.ExamResult {
	t.Helper()

	result := models.ExamResult{
		ExamID:      examID,
		StudentID:   studentID,
		AttemptID:   attemptID,
		Score:       score,
		Passed:      passed,
		CompletedAt: time.Date(2026, time.March, 10, 12, 0, 0, 0, time.UTC),
	}
	require.NoError(t, repo.Create(context.Background(), &result))
	return result
}

func TestResultStatsAggregates(t *testing.T) {
	svc, repo := newResultFixture(t)

	seedResult(t, repo, 1, 7, 1, 20, true)
	seedResult(t, repo, 1, 8, 2, 10, false)
	seedResult(t, repo, 1, 9, 3, 15, true)
	seedResult(t, repo, 2, 7, 4, 5, false)

	stats, err := svc.Stats(context.Background(), 1)
	require.NoError(t, err)
	require.Equal(t, uint(1), stats.ExamID)
	require.Equal(t, 3, stats.TotalResults)
	require.Equal(t, 15.0, stats.AverageScore)
	require.InDelta(t, 66.67, stats.PassRate, 0.01)
	require.Equal(t, 20.0, stats.HighestScore)
	require.Equal(t, 10.0, stats.LowestScore)
}

func TestResultStatsEmptyExam(t *testing.T) {
	svc, _ := newResultFixture(t)

	stats, err := svc.Stats(context.Background(), 1)
	require.NoError(t, err)
	require.Equal(t, 0, stats.TotalResults)
	require.Equal(t, 0.0, stats.AverageScore)
}

func TestListByStudentFiltersOwnResults(t *testing.T) {
	svc, repo := newResultFixture(t)

	seedResult(t, repo, 1, 7, 1, 20, true)
	seedResult(t, repo, 1, 8, 2, 10, false)

	results, err := svc.ListByStudent(context.Background(), 7)
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, uint(7), results[0].StudentID)
}

func TestAttachReviewNeverTouchesScore(t *testing.T) {
	svc, repo := newResultFixture(t)

	seeded := seedResult(t, repo, 1, 7, 1, 16, true)

	updated, err := svc.AttachReview(context.Background(), seeded.ID, dto.ResultReviewRequest{Review: "Buen desarrollo del tema."})
	require.NoError(t, err)
	require.Equal(t, "Buen desarrollo del tema.", updated.AIFeedback)
	require.Equal(t, 16.0, updated.Score)
	require.True(t, updated.Passed)

	stored := repo.results[seeded.ID]
	require.Equal(t, 16.0, stored.Score)
	require.True(t, stored.Passed)
	require.Equal(t, "Buen desarrollo del tema.", stored.AIFeedback)
}

func TestAttachReviewRequiresText(t *testing.T) {
	svc, repo := newResultFixture(t)

	seeded := seedResult(t, repo, 1, 7, 1, 16, true)

	_, err := svc.AttachReview(context.Background(), seeded.ID, dto.ResultReviewRequest{})
	require.Error(t, err)

	var validationErrors validator.ValidationErrors
	require.ErrorAs(t, err, &validationErrors)
}

func TestAttachReviewUnknownResult(t *testing.T) {
	svc, _ := newResultFixture(t)

	_, err := svc.AttachReview(context.Background(), 99, dto.ResultReviewRequest{Review: "texto"})
	require.ErrorIs(t, err, ErrResultNotFound)
}

func TestAttachReviewByAttemptResolvesResult(t *testing.T) {
	svc, repo := newResultFixture(t)

	seeded := seedResult(t, repo, 1, 7, 42, 16, true)

	require.NoError(t, svc.AttachReviewByAttempt(context.Background(), 42, "Revisión del corrector."))
	require.Equal(t, "Revisión del corrector.", repo.results[seeded.ID].AIFeedback)

	// Empty reviews are dropped silently.
	require.NoError(t, svc.AttachReviewByAttempt(context.Background(), 42, ""))

	require.ErrorIs(t, svc.AttachReviewByAttempt(context.Background(), 99, "texto"), ErrResultNotFound)
}
