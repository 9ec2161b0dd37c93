package corrector

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// WebhookConfig configures the workflow-webhook transport.
type WebhookConfig struct {
	URL     string
	Timeout time.Duration
	Logger  zerolog.Logger
}

// WebhookClient posts correction events to an external workflow webhook
// (n8n-compatible). Deliveries are fire-and-forget with a bounded timeout.
type WebhookClient struct {
	url    string
	client *http.Client
	logger zerolog.Logger
	tracer trace.Tracer
}

type webhookEnvelope struct {
	EventID   string                 `json:"event_id"`
	EventType string                 `json:"event_type"`
	SentAt    time.Time              `json:"sent_at"`
	Payload   map[string]interface{} `json:"payload"`
}

// NewWebhookClient constructs the webhook transport.
func NewWebhookClient(cfg WebhookConfig) (*WebhookClient, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("webhook url is required")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &WebhookClient{
		url:    cfg.URL,
		client: &http.Client{Timeout: timeout},
		logger: cfg.Logger.With().Str("component", "corrector_webhook").Logger(),
		tracer: otel.Tracer("github.com/aulavirtual/cursos-api/pkg/corrector/webhook"),
	}, nil
}

// Notify implements Notifier.
func (w *WebhookClient) Notify(parent context.Context, event string, payload map[string]interface{}) error {
	ctx, span := w.tracer.Start(parent, "corrector.webhook", trace.WithAttributes(
		attribute.String("event", event),
	))
	defer span.End()

	envelope := webhookEnvelope{
		EventID:   uuid.NewString(),
		EventType: event,
		SentAt:    time.Now().UTC(),
		Payload:   payload,
	}

	body, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("encode webhook payload: %w", err)
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build webhook request: %w", err)
	}
	request.Header.Set("Content-Type", "application/json")

	response, err := w.client.Do(request)
	if err != nil {
		notifyFailures.WithLabelValues("webhook").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("deliver webhook: %w", err)
	}
	defer response.Body.Close()

	if response.StatusCode >= http.StatusBadRequest {
		notifyFailures.WithLabelValues("webhook").Inc()
		err := fmt.Errorf("webhook responded with status %d", response.StatusCode)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	w.logger.Debug().Str("event", event).Str("event_id", envelope.EventID).Msg("correction event delivered")

	return nil
}
