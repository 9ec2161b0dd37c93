package handler_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/aulavirtual/cursos-api/internal/config"
	"github.com/aulavirtual/cursos-api/internal/dto"
	"github.com/aulavirtual/cursos-api/internal/handler"
	"github.com/aulavirtual/cursos-api/internal/models"
	"github.com/aulavirtual/cursos-api/internal/repository"
	"github.com/aulavirtual/cursos-api/internal/router"
	"github.com/aulavirtual/cursos-api/internal/service"
)

type testIdentity struct {
	userID uint
	role   string
}

func setupExamApp(t *testing.T, identity *testIdentity) (*fiber.App, *gorm.DB) {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Student{}, &models.Exam{}, &models.ExamQuestion{}, &models.ExamAttempt{}, &models.ExamResult{}))

	validate := validator.New(validator.WithRequiredStructEnabled())
	logger := zerolog.New(io.Discard)

	examRepo := repository.NewExamRepository(db)
	questionRepo := repository.NewQuestionRepository(db)
	attemptRepo := repository.NewAttemptRepository(db)
	resultRepo := repository.NewResultRepository(db)

	examService := service.NewExamService(examRepo, questionRepo, validate, logger)
	resultService := service.NewResultService(resultRepo, validate, logger)
	overviewService := service.NewStudentExamService(examRepo, attemptRepo, nil, 0, logger)
	attemptService := service.NewAttemptService(attemptRepo, examRepo, resultRepo, validate, nil, 0, overviewService, logger)

	app := fiber.New()
	router.Register(app, config.Config{AppName: "Test", JWTSecret: "secret"}, router.Dependencies{
		ExamHandler:    handler.NewExamHandler(examService, logger),
		AttemptHandler: handler.NewAttemptHandler(attemptService, examService, overviewService, logger),
		ResultHandler:  handler.NewResultHandler(resultService, logger),
		JWTMiddleware: func(c *fiber.Ctx) error {
			c.Locals("user_id", identity.userID)
			c.Locals("user_role", identity.role)
			return c.Next()
		},
	})

	return app, db
}

func seedExamWithQuestions(t *testing.T, db *gorm.DB) models.Exam {
	t.Helper()

	exam := models.Exam{Title: "Parcial", PassingScore: 14, MaxAttempts: 2}
	require.NoError(t, db.Create(&exam).Error)

	questions := []models.ExamQuestion{
		{
			ExamID:        exam.ID,
			QuestionType:  models.QuestionTypeMultipleChoice,
			QuestionText:  "¿Capital de Francia?",
			Points:        1,
			QuestionOrder: 1,
			CorrectAnswer: `[{"text":"París","is_correct":true},{"text":"Madrid","is_correct":false}]`,
		},
		{
			ExamID:        exam.ID,
			QuestionType:  models.QuestionTypeTrueFalse,
			QuestionText:  "La Tierra es redonda.",
			Points:        1,
			QuestionOrder: 2,
			CorrectAnswer: "true",
		},
	}
	require.NoError(t, db.Create(&questions).Error)

	return exam
}

func doJSON(t *testing.T, app *fiber.App, method, path string, body interface{}) *http.Response {
	t.Helper()

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(encoded)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func decodeData(t *testing.T, resp *http.Response, target interface{}) {
	t.Helper()
	defer resp.Body.Close()

	var envelope struct {
		Success bool            `json:"success"`
		Message string          `json:"message"`
		Data    json.RawMessage `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&envelope))
	require.True(t, envelope.Success, envelope.Message)
	if target != nil {
		require.NoError(t, json.Unmarshal(envelope.Data, target))
	}
}

func TestAttemptLifecycleOverHTTP(t *testing.T) {
	app, db := setupExamApp(t, &testIdentity{userID: 7, role: "student"})
	exam := seedExamWithQuestions(t, db)
	base := fmt.Sprintf("/api/v1/student/exams/%d", exam.ID)

	// Availability before any attempt.
	resp := doJSON(t, app, http.MethodGet, base+"/availability", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var availability dto.AvailabilityResponse
	decodeData(t, resp, &availability)
	require.True(t, availability.Available)

	// Questions never expose the correct answers.
	resp = doJSON(t, app, http.MethodGet, base+"/questions", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	resp.Body.Close()
	require.NotContains(t, string(raw), "correct_answer")
	require.NotContains(t, string(raw), "is_correct")
	require.Contains(t, string(raw), "Madrid")

	// Start.
	resp = doJSON(t, app, http.MethodPost, base+"/attempts", nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var attempt dto.AttemptResponse
	decodeData(t, resp, &attempt)
	require.False(t, attempt.Resumed)

	// Starting again resumes.
	resp = doJSON(t, app, http.MethodPost, base+"/attempts", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var resumed dto.AttemptResponse
	decodeData(t, resp, &resumed)
	require.True(t, resumed.Resumed)
	require.Equal(t, attempt.ID, resumed.ID)

	attemptPath := "/api/v1/student/attempts/" + strconv.FormatUint(uint64(attempt.ID), 10)

	// Autosave.
	questions := questionIDs(t, db, exam.ID)
	resp = doJSON(t, app, http.MethodPatch, attemptPath+"/answers", dto.SaveProgressRequest{
		Answers: map[string]string{questions[0]: "París"},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// Untimed exam reports unlimited time.
	resp = doJSON(t, app, http.MethodGet, attemptPath+"/time", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var remaining dto.TimeRemainingResponse
	decodeData(t, resp, &remaining)
	require.True(t, remaining.Unlimited)

	// Submit.
	resp = doJSON(t, app, http.MethodPost, attemptPath+"/submit", dto.SubmitRequest{
		Answers: map[string]string{questions[0]: "París", questions[1]: "verdadero"},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var result dto.ResultResponse
	decodeData(t, resp, &result)
	require.Equal(t, 20.0, result.Score)
	require.True(t, result.Passed)
	require.Len(t, result.Feedback, 2)

	// Submitting again conflicts.
	resp = doJSON(t, app, http.MethodPost, attemptPath+"/submit", dto.SubmitRequest{
		Answers: map[string]string{questions[0]: "París"},
	})
	require.Equal(t, http.StatusConflict, resp.StatusCode)

	// The result shows up in the student listing.
	resp = doJSON(t, app, http.MethodGet, "/api/v1/student/results", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var results []dto.ResultResponse
	decodeData(t, resp, &results)
	require.Len(t, results, 1)
	require.Equal(t, result.ID, results[0].ID)
}

func TestAttemptEndpointsRejectForeignAttempt(t *testing.T) {
	app, db := setupExamApp(t, &testIdentity{userID: 7, role: "student"})
	exam := seedExamWithQuestions(t, db)

	foreign := models.ExamAttempt{ExamID: exam.ID, StudentID: 8, Status: models.AttemptStatusInProgress, StartedAt: exam.CreatedAt}
	require.NoError(t, db.Create(&foreign).Error)

	path := "/api/v1/student/attempts/" + strconv.FormatUint(uint64(foreign.ID), 10)

	resp := doJSON(t, app, http.MethodPatch, path+"/answers", dto.SaveProgressRequest{Answers: map[string]string{"1": "x"}})
	require.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = doJSON(t, app, http.MethodPost, path+"/submit", dto.SubmitRequest{Answers: map[string]string{"1": "x"}})
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestAttemptStartUnknownExamReturnsNotFound(t *testing.T) {
	app, _ := setupExamApp(t, &testIdentity{userID: 7, role: "student"})

	resp := doJSON(t, app, http.MethodPost, "/api/v1/student/exams/999/attempts", nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestStudentOverviewEndpoint(t *testing.T) {
	app, db := setupExamApp(t, &testIdentity{userID: 7, role: "student"})
	seedExamWithQuestions(t, db)

	resp := doJSON(t, app, http.MethodGet, "/api/v1/student/exams", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var overview []dto.StudentExamOverview
	decodeData(t, resp, &overview)
	require.Len(t, overview, 1)
	require.True(t, overview[0].Available)
	require.Equal(t, 2, overview[0].AttemptsRemaining)
}

func questionIDs(t *testing.T, db *gorm.DB, examID uint) []string {
	t.Helper()

	var questions []models.ExamQuestion
	require.NoError(t, db.Where("exam_id = ?", examID).Order("question_order ASC").Find(&questions).Error)

	ids := make([]string, 0, len(questions))
	for _, question := range questions {
		ids = append(ids, strconv.FormatUint(uint64(question.ID), 10))
	}
	return ids
}
