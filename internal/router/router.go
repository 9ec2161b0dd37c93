package router

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/aulavirtual/cursos-api/internal/config"
	"github.com/aulavirtual/cursos-api/internal/handler"
	"github.com/aulavirtual/cursos-api/internal/middleware"
	"github.com/aulavirtual/cursos-api/internal/observability"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	ExamHandler    *handler.ExamHandler
	AttemptHandler *handler.AttemptHandler
	ResultHandler  *handler.ResultHandler
	JWTMiddleware  fiber.Handler
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	// Common v1 group for health & headers
	api := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	api.Get("/health", handler.HealthCheck(cfg))

	app.Get("/metrics", observability.MetricsHandler())

	// Use provided JWT middleware, or a no-op if nil
	jwtMiddleware := deps.JWTMiddleware
	if jwtMiddleware == nil {
		jwtMiddleware = func(c *fiber.Ctx) error { return c.Next() }
	}

	// Exam authoring and result review (teacher/admin)
	if deps.ExamHandler != nil {
		teacher := app.Group("/api/v1/teacher", jwtMiddleware, middleware.RequireRole(middleware.RoleTeacher, middleware.RoleAdmin))

		examGroup := teacher.Group("/exams")
		deps.ExamHandler.Register(examGroup)

		if deps.ResultHandler != nil {
			deps.ResultHandler.Register(teacher)
		}
	}

	// Attempt lifecycle (student)
	if deps.AttemptHandler != nil {
		student := app.Group("/api/v1/student", jwtMiddleware)
		student.Use("/attempts", middleware.RateLimit("exam_attempts", 120, time.Minute))
		deps.AttemptHandler.Register(student)

		if deps.ResultHandler != nil {
			deps.ResultHandler.RegisterStudent(student)
		}
	}
}
