package handler

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/aulavirtual/cursos-api/internal/dto"
	"github.com/aulavirtual/cursos-api/internal/middleware"
	"github.com/aulavirtual/cursos-api/internal/service"
	"github.com/aulavirtual/cursos-api/internal/utils"
)

// ResultHandler manages the teacher-facing result endpoints.
type ResultHandler struct {
	service service.ResultService
	logger  zerolog.Logger
}

// NewResultHandler builds a result handler instance.
func NewResultHandler(service service.ResultService, logger zerolog.Logger) *ResultHandler {
	return &ResultHandler{
		service: service,
		logger:  logger.With().Str("component", "result_handler").Logger(),
	}
}

// Register attaches the result routes to the provided router group.
func (h *ResultHandler) Register(router fiber.Router) {
	router.Get("/exams/:examId/results", h.listByExam)
	router.Get("/exams/:examId/stats", h.stats)
	router.Get("/results/:id", h.get)
	router.Post("/results/:id/review", h.attachReview)
}

// RegisterStudent attaches the student-visible result routes.
func (h *ResultHandler) RegisterStudent(router fiber.Router) {
	router.Get("/results", h.listMine)
	router.Get("/results/:id", h.get)
}

func (h *ResultHandler) listByExam(c *fiber.Ctx) error {
	examID, err := parseUintParam(c, "examId")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid exam id")
	}

	results, err := h.service.ListByExam(c.Context(), examID)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "results retrieved", results)
}

func (h *ResultHandler) listMine(c *fiber.Ctx) error {
	results, err := h.service.ListByStudent(c.Context(), userIDFromContext(c))
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "results retrieved", results)
}

func (h *ResultHandler) stats(c *fiber.Ctx) error {
	examID, err := parseUintParam(c, "examId")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid exam id")
	}

	stats, err := h.service.Stats(c.Context(), examID)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "stats computed", stats)
}

func (h *ResultHandler) get(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid result id")
	}

	result, err := h.service.Get(c.Context(), id)
	if err != nil {
		return h.handleError(c, err)
	}

	if role := userRoleFromContext(c); role == middleware.RoleStudent && result.StudentID != userIDFromContext(c) {
		return utils.SendError(c, fiber.StatusForbidden, "result belongs to another student")
	}

	return utils.SendSuccess(c, "result retrieved", result)
}

func (h *ResultHandler) attachReview(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid result id")
	}

	var payload dto.ResultReviewRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	result, err := h.service.AttachReview(c.Context(), id, payload)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "review attached", result)
}

func (h *ResultHandler) handleError(c *fiber.Ctx, err error) error {
	var validationErrors validator.ValidationErrors
	switch {
	case errors.Is(err, service.ErrResultNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "result not found")
	case errors.As(err, &validationErrors):
		return utils.SendError(c, fiber.StatusBadRequest, validationErrors.Error())
	default:
		requestLogger(h.logger, c).Error().Err(err).Msg("internal server error")
		return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
	}
}
