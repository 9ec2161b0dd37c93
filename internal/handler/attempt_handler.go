package handler

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/aulavirtual/cursos-api/internal/dto"
	"github.com/aulavirtual/cursos-api/internal/service"
	"github.com/aulavirtual/cursos-api/internal/utils"
)

// AttemptHandler manages the student-facing attempt lifecycle endpoints.
type AttemptHandler struct {
	attempts service.AttemptService
	exams    service.ExamService
	overview service.StudentExamService
	logger   zerolog.Logger
}

// NewAttemptHandler builds an attempt handler instance.
func NewAttemptHandler(attempts service.AttemptService, exams service.ExamService, overview service.StudentExamService, logger zerolog.Logger) *AttemptHandler {
	return &AttemptHandler{
		attempts: attempts,
		exams:    exams,
		overview: overview,
		logger:   logger.With().Str("component", "attempt_handler").Logger(),
	}
}

// Register attaches the student routes to the provided router group.
func (h *AttemptHandler) Register(router fiber.Router) {
	router.Get("/exams", h.listExams)
	router.Get("/exams/:examId/availability", h.availability)
	router.Get("/exams/:examId/questions", h.questions)
	router.Post("/exams/:examId/attempts", h.start)
	router.Get("/exams/:examId/attempts", h.history)
	router.Patch("/attempts/:id/answers", h.saveProgress)
	router.Get("/attempts/:id/time", h.timeRemaining)
	router.Post("/attempts/:id/submit", h.submit)
}

func (h *AttemptHandler) listExams(c *fiber.Ctx) error {
	studentID := userIDFromContext(c)
	overview, err := h.overview.Overview(c.Context(), studentID)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "exams retrieved", overview)
}

func (h *AttemptHandler) availability(c *fiber.Ctx) error {
	examID, err := parseUintParam(c, "examId")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid exam id")
	}

	availability, err := h.attempts.Availability(c.Context(), examID, userIDFromContext(c))
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "availability computed", availability)
}

func (h *AttemptHandler) questions(c *fiber.Ctx) error {
	examID, err := parseUintParam(c, "examId")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid exam id")
	}

	questions, err := h.exams.QuestionsForStudent(c.Context(), examID)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "questions retrieved", questions)
}

func (h *AttemptHandler) start(c *fiber.Ctx) error {
	examID, err := parseUintParam(c, "examId")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid exam id")
	}

	attempt, err := h.attempts.StartOrResume(c.Context(), examID, userIDFromContext(c))
	if err != nil {
		return h.handleError(c, err)
	}

	if attempt.Resumed {
		return utils.SendSuccess(c, "attempt resumed", attempt)
	}
	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "attempt started", attempt)
}

func (h *AttemptHandler) history(c *fiber.Ctx) error {
	examID, err := parseUintParam(c, "examId")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid exam id")
	}

	attempts, err := h.attempts.History(c.Context(), examID, userIDFromContext(c))
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "attempts retrieved", attempts)
}

func (h *AttemptHandler) saveProgress(c *fiber.Ctx) error {
	attemptID, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid attempt id")
	}

	var payload dto.SaveProgressRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	attempt, err := h.attempts.SaveProgress(c.Context(), attemptID, userIDFromContext(c), payload)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "progress saved", attempt)
}

func (h *AttemptHandler) timeRemaining(c *fiber.Ctx) error {
	attemptID, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid attempt id")
	}

	remaining, err := h.attempts.TimeRemaining(c.Context(), attemptID, userIDFromContext(c))
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "time remaining computed", remaining)
}

func (h *AttemptHandler) submit(c *fiber.Ctx) error {
	attemptID, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid attempt id")
	}

	var payload dto.SubmitRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	result, err := h.attempts.Submit(c.Context(), attemptID, userIDFromContext(c), payload)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "attempt submitted", result)
}

func (h *AttemptHandler) handleError(c *fiber.Ctx, err error) error {
	var validationErrors validator.ValidationErrors
	switch {
	case errors.Is(err, service.ErrExamNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "exam not found")
	case errors.Is(err, service.ErrAttemptNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "attempt not found")
	case errors.Is(err, service.ErrAttemptForbidden):
		return utils.SendError(c, fiber.StatusForbidden, "attempt belongs to another student")
	case errors.Is(err, service.ErrExamNotYetAvailable):
		return utils.SendError(c, fiber.StatusConflict, "exam is not yet available")
	case errors.Is(err, service.ErrAttemptLimitExceeded):
		return utils.SendError(c, fiber.StatusConflict, "attempt limit reached")
	case errors.Is(err, service.ErrAlreadySubmitted):
		return utils.SendError(c, fiber.StatusConflict, "attempt already submitted")
	case errors.As(err, &validationErrors):
		return utils.SendError(c, fiber.StatusBadRequest, validationErrors.Error())
	default:
		requestLogger(h.logger, c).Error().Err(err).Msg("internal server error")
		return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
	}
}
