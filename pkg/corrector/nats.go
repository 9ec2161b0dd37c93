package corrector

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
)

// NATSPublisher publishes correction events on a NATS subject for in-cluster
// consumers (grading workers, audit sinks).
type NATSPublisher struct {
	conn    *nats.Conn
	subject string
	logger  zerolog.Logger
}

// NewNATSPublisher constructs the NATS transport.
func NewNATSPublisher(conn *nats.Conn, subject string, logger zerolog.Logger) (*NATSPublisher, error) {
	if conn == nil {
		return nil, fmt.Errorf("nats connection is required")
	}
	if subject == "" {
		subject = "cursos.exam.correction"
	}

	return &NATSPublisher{
		conn:    conn,
		subject: subject,
		logger:  logger.With().Str("component", "corrector_nats").Logger(),
	}, nil
}

// Notify implements Notifier.
func (p *NATSPublisher) Notify(_ context.Context, event string, payload map[string]interface{}) error {
	message, err := json.Marshal(map[string]interface{}{
		"event_type": event,
		"sent_at":    time.Now().UTC(),
		"payload":    payload,
	})
	if err != nil {
		return fmt.Errorf("encode nats payload: %w", err)
	}

	if err := p.conn.Publish(p.subject, message); err != nil {
		notifyFailures.WithLabelValues("nats").Inc()
		return fmt.Errorf("publish correction event: %w", err)
	}

	p.logger.Debug().Str("event", event).Str("subject", p.subject).Msg("correction event published")

	return nil
}
