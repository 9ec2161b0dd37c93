package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/aulavirtual/cursos-api/internal/models"
)

func TestResultRepositoryListFiltersByExamAndStudent(t *testing.T) {
	db := setupTestDB(t)
	repo := NewResultRepository(db)
	exam := seedExam(t, db)

	first := models.ExamResult{ExamID: exam.ID, StudentID: 7, AttemptID: 1, Score: 20, Passed: true, CompletedAt: time.Now().Add(-time.Hour)}
	require.NoError(t, repo.Create(context.Background(), &first))
	second := models.ExamResult{ExamID: exam.ID, StudentID: 8, AttemptID: 2, Score: 10, Passed: false, CompletedAt: time.Now()}
	require.NoError(t, repo.Create(context.Background(), &second))

	all, err := repo.List(context.Background(), ResultFilter{ExamID: &exam.ID})
	require.NoError(t, err)
	require.Len(t, all, 2)
	require.Equal(t, second.ID, all[0].ID, "expected newest completion first")

	studentID := uint(7)
	mine, err := repo.List(context.Background(), ResultFilter{StudentID: &studentID})
	require.NoError(t, err)
	require.Len(t, mine, 1)
	require.Equal(t, uint(7), mine[0].StudentID)
}

func TestResultRepositoryAttachReviewUpdatesOnlyFeedback(t *testing.T) {
	db := setupTestDB(t)
	repo := NewResultRepository(db)
	exam := seedExam(t, db)

	result := models.ExamResult{ExamID: exam.ID, StudentID: 7, AttemptID: 1, Score: 16, Passed: true, CompletedAt: time.Now()}
	require.NoError(t, repo.Create(context.Background(), &result))

	require.NoError(t, repo.AttachReview(context.Background(), result.ID, "Revisión cualitativa."))

	stored, err := repo.GetByID(context.Background(), result.ID)
	require.NoError(t, err)
	require.Equal(t, "Revisión cualitativa.", stored.AIFeedback)
	require.Equal(t, 16.0, stored.Score)
	require.True(t, stored.Passed)
}

func TestResultRepositoryGetByAttemptID(t *testing.T) {
	db := setupTestDB(t)
	repo := NewResultRepository(db)
	exam := seedExam(t, db)

	result := models.ExamResult{ExamID: exam.ID, StudentID: 7, AttemptID: 42, Score: 16, Passed: true, CompletedAt: time.Now()}
	require.NoError(t, repo.Create(context.Background(), &result))

	found, err := repo.GetByAttemptID(context.Background(), 42)
	require.NoError(t, err)
	require.Equal(t, result.ID, found.ID)

	_, err = repo.GetByAttemptID(context.Background(), 99)
	require.Error(t, err)
}
