package corrector

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var reviewDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Namespace: "cursos",
	Subsystem: "corrector",
	Name:      "review_duration_seconds",
	Help:      "Duration of AI review requests for open-ended answers.",
}, []string{"model"})

// AttachFunc persists qualitative review text for the attempt's result. It
// must never alter score or passed.
type AttachFunc func(ctx context.Context, attemptID uint, review string) error

// ReviewerConfig configures the in-process AI reviewer.
type ReviewerConfig struct {
	APIKey      string
	Model       string
	MaxTokens   int
	Temperature float32
	Logger      zerolog.Logger
}

// Reviewer asks an OpenAI model for qualitative feedback on open-ended
// answers and attaches it to the submitted attempt's result. It implements
// Notifier so it can be fanned out alongside webhook/NATS transports; events
// without open-ended answers are ignored.
type Reviewer struct {
	client *openai.Client
	cfg    ReviewerConfig
	attach AttachFunc
	logger zerolog.Logger
	tracer trace.Tracer
}

// NewReviewer constructs the reviewer.
func NewReviewer(cfg ReviewerConfig, attach AttachFunc) (*Reviewer, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai api key is required")
	}
	if attach == nil {
		return nil, fmt.Errorf("attach callback is required")
	}
	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = 512
	}

	return &Reviewer{
		client: openai.NewClientWithConfig(openai.DefaultConfig(cfg.APIKey)),
		cfg:    cfg,
		attach: attach,
		logger: cfg.Logger.With().Str("component", "corrector_reviewer").Logger(),
		tracer: otel.Tracer("github.com/aulavirtual/cursos-api/pkg/corrector/reviewer"),
	}, nil
}

// Notify implements Notifier.
func (r *Reviewer) Notify(parent context.Context, event string, payload map[string]interface{}) error {
	if event != EventExamCorrection {
		return nil
	}

	attemptID, ok := attemptIDFromPayload(payload)
	if !ok {
		return fmt.Errorf("correction payload missing exam_attempt_id")
	}

	openEnded := openEndedEntries(payload)
	if len(openEnded) == 0 {
		return nil
	}

	ctx, span := r.tracer.Start(parent, "corrector.review", trace.WithAttributes(
		attribute.String("model", r.cfg.Model),
		attribute.Int("answers", len(openEnded)),
	))
	defer span.End()

	start := time.Now()
	response, err := r.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       r.cfg.Model,
		MaxTokens:   r.cfg.MaxTokens,
		Temperature: r.cfg.Temperature,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: reviewerSystemPrompt()},
			{Role: openai.ChatMessageRoleUser, Content: buildReviewPrompt(openEnded)},
		},
	})
	reviewDuration.WithLabelValues(r.cfg.Model).Observe(time.Since(start).Seconds())
	if err != nil {
		notifyFailures.WithLabelValues("reviewer").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("request review: %w", err)
	}

	if len(response.Choices) == 0 {
		notifyFailures.WithLabelValues("reviewer").Inc()
		return fmt.Errorf("no choices returned from reviewer model")
	}

	review := strings.TrimSpace(response.Choices[0].Message.Content)
	if review == "" {
		return nil
	}

	if err := r.attach(ctx, attemptID, review); err != nil {
		span.RecordError(err)
		return fmt.Errorf("attach review: %w", err)
	}

	r.logger.Info().Uint("attempt_id", attemptID).Msg("qualitative review attached")

	return nil
}

func reviewerSystemPrompt() string {
	return "Eres un corrector académico. Recibirás preguntas abiertas de un examen junto con la respuesta modelo y la respues" +
		"ta del estudiante. Devuelve una retroalimentación breve y constructiva en español, pregunta por pregunta. No asignes " +
		"puntajes: la calificación ya fue decidida."
}

func buildReviewPrompt(entries []map[string]interface{}) string {
	builder := strings.Builder{}
	for i, entry := range entries {
		builder.WriteString(fmt.Sprintf("## Pregunta %d\n", i+1))
		builder.WriteString(fmt.Sprintf("Enunciado: %v\n", entry["question_text"]))
		builder.WriteString(fmt.Sprintf("Respuesta modelo: %v\n", entry["correct_answer"]))
		builder.WriteString(fmt.Sprintf("Respuesta del estudiante: %v\n\n", entry["student_answer"]))
	}
	return builder.String()
}

func attemptIDFromPayload(payload map[string]interface{}) (uint, bool) {
	switch value := payload["exam_attempt_id"].(type) {
	case uint:
		return value, true
	case int:
		if value < 0 {
			return 0, false
		}
		return uint(value), true
	case float64:
		if value < 0 {
			return 0, false
		}
		return uint(value), true
	default:
		return 0, false
	}
}

func openEndedEntries(payload map[string]interface{}) []map[string]interface{} {
	submission, ok := payload["submission"].([]map[string]interface{})
	if !ok {
		// Payloads that travelled through JSON decode as []interface{}.
		raw, ok := payload["submission"].([]interface{})
		if !ok {
			return nil
		}
		for _, item := range raw {
			if entry, ok := item.(map[string]interface{}); ok {
				submission = append(submission, entry)
			}
		}
	}

	var openEnded []map[string]interface{}
	for _, entry := range submission {
		if entry["question_type"] == "open_ended" {
			openEnded = append(openEnded, entry)
		}
	}

	return openEnded
}
