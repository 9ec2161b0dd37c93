package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/aulavirtual/cursos-api/internal/config"
	"github.com/aulavirtual/cursos-api/internal/database"
	"github.com/aulavirtual/cursos-api/internal/handler"
	"github.com/aulavirtual/cursos-api/internal/middleware"
	"github.com/aulavirtual/cursos-api/internal/models"
	"github.com/aulavirtual/cursos-api/internal/repository"
	"github.com/aulavirtual/cursos-api/internal/router"
	"github.com/aulavirtual/cursos-api/internal/service"
	"github.com/aulavirtual/cursos-api/pkg/corrector"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	db, err := database.ConnectPostgres(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}

	if err := db.AutoMigrate(&models.Student{}, &models.Exam{}, &models.ExamQuestion{}, &models.ExamAttempt{}, &models.ExamResult{}); err != nil {
		log.Fatalf("failed to migrate database: %v", err)
	}

	redisClient, err := database.ConnectRedis(cfg.RedisURL)
	if err != nil {
		logger.Warn().Err(err).Msg("redis unavailable, overview caching disabled")
		redisClient = nil
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	validate := validator.New(validator.WithRequiredStructEnabled())

	examRepo := repository.NewExamRepository(db)
	questionRepo := repository.NewQuestionRepository(db)
	attemptRepo := repository.NewAttemptRepository(db)
	resultRepo := repository.NewResultRepository(db)

	examService := service.NewExamService(examRepo, questionRepo, validate, logger)
	resultService := service.NewResultService(resultRepo, validate, logger)
	overviewService := service.NewStudentExamService(examRepo, attemptRepo, redisClient, cfg.OverviewCacheTTL, logger)

	notifier := buildCorrector(cfg, resultService, logger)

	attemptService := service.NewAttemptService(
		attemptRepo,
		examRepo,
		resultRepo,
		validate,
		notifier,
		cfg.CorrectorTimeout,
		overviewService,
		logger,
	)

	examHandler := handler.NewExamHandler(examService, logger)
	attemptHandler := handler.NewAttemptHandler(attemptService, examService, overviewService, logger)
	resultHandler := handler.NewResultHandler(resultService, logger)

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
	})

	middleware.Register(app, middleware.Config{Logger: &logger})
	router.Register(app, cfg, router.Dependencies{
		ExamHandler:    examHandler,
		AttemptHandler: attemptHandler,
		ResultHandler:  resultHandler,
		JWTMiddleware:  middleware.JWTProtected(cfg.JWTSecret),
	})

	go func() {
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	waitForShutdown(app)
}

// buildCorrector assembles the post-submission notification fan-out from the
// configured transports. Any transport may be absent; with none configured the
// dispatcher is a no-op.
func buildCorrector(cfg config.Config, results service.ResultService, logger zerolog.Logger) *corrector.Dispatcher {
	var targets []corrector.Notifier

	if cfg.CorrectorWebhookURL != "" {
		webhook, err := corrector.NewWebhookClient(corrector.WebhookConfig{
			URL:     cfg.CorrectorWebhookURL,
			Timeout: cfg.CorrectorTimeout,
			Logger:  logger,
		})
		if err != nil {
			logger.Warn().Err(err).Msg("corrector webhook disabled")
		} else {
			targets = append(targets, webhook)
		}
	}

	if cfg.NATSURL != "" {
		conn, err := database.ConnectNATS(cfg.NATSURL)
		if err != nil {
			logger.Warn().Err(err).Msg("nats unavailable, correction events not published")
		} else {
			publisher, err := corrector.NewNATSPublisher(conn, cfg.NATSSubject, logger)
			if err != nil {
				logger.Warn().Err(err).Msg("nats publisher disabled")
			} else {
				targets = append(targets, publisher)
			}
		}
	}

	if cfg.OpenAIAPIKey != "" {
		reviewer, err := corrector.NewReviewer(corrector.ReviewerConfig{
			APIKey: cfg.OpenAIAPIKey,
			Model:  cfg.OpenAIModel,
			Logger: logger,
		}, results.AttachReviewByAttempt)
		if err != nil {
			logger.Warn().Err(err).Msg("ai reviewer disabled")
		} else {
			targets = append(targets, reviewer)
		}
	}

	return corrector.NewDispatcher(logger, targets...)
}

func waitForShutdown(app *fiber.App) {
	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-shutdownCtx.Done()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}

	log.Println("server stopped")
}
