package repository

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/aulavirtual/cursos-api/internal/models"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	// One shared in-memory database per test so every pooled connection sees
	// the same schema.
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Student{}, &models.Exam{}, &models.ExamQuestion{}, &models.ExamAttempt{}, &models.ExamResult{}))
	return db
}

func seedExam(t *testing.T, db *gorm.DB) models.Exam {
	t.Helper()
	exam := models.Exam{Title: "Parcial", PassingScore: 14, MaxAttempts: 2}
	require.NoError(t, db.Create(&exam).Error)
	return exam
}

func TestAttemptRepositoryRejectsSecondInProgressAttempt(t *testing.T) {
	db := setupTestDB(t)
	repo := NewAttemptRepository(db)
	exam := seedExam(t, db)

	first := models.ExamAttempt{ExamID: exam.ID, StudentID: 7, Status: models.AttemptStatusInProgress, StartedAt: time.Now()}
	require.NoError(t, repo.Create(context.Background(), &first))

	second := models.ExamAttempt{ExamID: exam.ID, StudentID: 7, Status: models.AttemptStatusInProgress, StartedAt: time.Now()}
	require.ErrorIs(t, repo.Create(context.Background(), &second), ErrDuplicateAttempt)

	// A different student is unaffected.
	other := models.ExamAttempt{ExamID: exam.ID, StudentID: 8, Status: models.AttemptStatusInProgress, StartedAt: time.Now()}
	require.NoError(t, repo.Create(context.Background(), &other))
}

func TestAttemptRepositoryAllowsNewAttemptAfterSubmission(t *testing.T) {
	db := setupTestDB(t)
	repo := NewAttemptRepository(db)
	exam := seedExam(t, db)

	first := models.ExamAttempt{ExamID: exam.ID, StudentID: 7, Status: models.AttemptStatusInProgress, StartedAt: time.Now()}
	require.NoError(t, repo.Create(context.Background(), &first))

	first.Status = models.AttemptStatusSubmitted
	require.NoError(t, repo.Update(context.Background(), &first))

	// Only in-progress rows participate in the partial unique index.
	second := models.ExamAttempt{ExamID: exam.ID, StudentID: 7, Status: models.AttemptStatusInProgress, StartedAt: time.Now()}
	require.NoError(t, repo.Create(context.Background(), &second))
}

func TestAttemptRepositoryFinalizeSubmissionIsAtomic(t *testing.T) {
	db := setupTestDB(t)
	repo := NewAttemptRepository(db)
	results := NewResultRepository(db)
	exam := seedExam(t, db)

	attempt := models.ExamAttempt{ExamID: exam.ID, StudentID: 7, Status: models.AttemptStatusInProgress, StartedAt: time.Now()}
	require.NoError(t, repo.Create(context.Background(), &attempt))

	score := 15.0
	passed := true
	submittedAt := time.Now()
	attempt.Status = models.AttemptStatusSubmitted
	attempt.SubmittedAt = &submittedAt
	attempt.Score = &score
	attempt.Passed = &passed

	result := models.ExamResult{
		ExamID:      exam.ID,
		StudentID:   7,
		AttemptID:   attempt.ID,
		Score:       score,
		Passed:      passed,
		CompletedAt: submittedAt,
	}
	require.NoError(t, repo.FinalizeSubmission(context.Background(), &attempt, &result))
	require.NotZero(t, result.ID)

	stored, err := repo.GetByID(context.Background(), attempt.ID)
	require.NoError(t, err)
	require.Equal(t, models.AttemptStatusSubmitted, stored.Status)

	storedResult, err := results.GetByAttemptID(context.Background(), attempt.ID)
	require.NoError(t, err)
	require.Equal(t, 15.0, storedResult.Score)

	// A second result for the same attempt violates the unique index and
	// must roll the whole submission back.
	duplicate := models.ExamResult{ExamID: exam.ID, StudentID: 7, AttemptID: attempt.ID, Score: score, Passed: passed, CompletedAt: submittedAt}
	require.Error(t, repo.FinalizeSubmission(context.Background(), &stored, &duplicate))
}

func TestAttemptRepositoryCountsOnlySubmitted(t *testing.T) {
	db := setupTestDB(t)
	repo := NewAttemptRepository(db)
	exam := seedExam(t, db)

	submitted := models.ExamAttempt{ExamID: exam.ID, StudentID: 7, Status: models.AttemptStatusSubmitted, StartedAt: time.Now().Add(-time.Hour)}
	require.NoError(t, repo.Create(context.Background(), &submitted))
	inProgress := models.ExamAttempt{ExamID: exam.ID, StudentID: 7, Status: models.AttemptStatusInProgress, StartedAt: time.Now()}
	require.NoError(t, repo.Create(context.Background(), &inProgress))

	count, err := repo.CountSubmitted(context.Background(), exam.ID, 7)
	require.NoError(t, err)
	require.Equal(t, int64(1), count)
}

func TestAttemptRepositoryLatestOrdersByStart(t *testing.T) {
	db := setupTestDB(t)
	repo := NewAttemptRepository(db)
	exam := seedExam(t, db)

	older := models.ExamAttempt{ExamID: exam.ID, StudentID: 7, Status: models.AttemptStatusSubmitted, StartedAt: time.Now().Add(-2 * time.Hour)}
	require.NoError(t, repo.Create(context.Background(), &older))
	newer := models.ExamAttempt{ExamID: exam.ID, StudentID: 7, Status: models.AttemptStatusSubmitted, StartedAt: time.Now().Add(-time.Hour)}
	require.NoError(t, repo.Create(context.Background(), &newer))

	latest, err := repo.LatestByExamAndStudent(context.Background(), exam.ID, 7)
	require.NoError(t, err)
	require.Equal(t, newer.ID, latest.ID)

	attempts, err := repo.ListByExamAndStudent(context.Background(), exam.ID, 7)
	require.NoError(t, err)
	require.Len(t, attempts, 2)
	require.Equal(t, newer.ID, attempts[0].ID, "expected newest attempt first")
}
