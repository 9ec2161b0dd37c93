// Package corrector dispatches best-effort "grade this attempt" events to the
// external correction pipeline. The engine's own rule-based score is
// authoritative; everything in this package is supplementary and failures are
// never fatal to a submission.
package corrector

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// EventExamCorrection is the event type emitted after a scored submission.
const EventExamCorrection = "exam_correction"

var notifyFailures = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "cursos",
	Subsystem: "corrector",
	Name:      "notify_failures_total",
	Help:      "Number of failed corrector notifications.",
}, []string{"transport"})

// Notifier delivers a correction event over one transport.
type Notifier interface {
	Notify(ctx context.Context, event string, payload map[string]interface{}) error
}

// Dispatcher fans a correction event out to every configured transport. Each
// transport is tried independently; the dispatcher only reports an error when
// every transport failed, since a single successful delivery is enough for a
// supplementary corrector.
type Dispatcher struct {
	targets []Notifier
	logger  zerolog.Logger
}

// NewDispatcher builds a dispatcher over the given transports. Nil entries
// are skipped.
func NewDispatcher(logger zerolog.Logger, targets ...Notifier) *Dispatcher {
	filtered := make([]Notifier, 0, len(targets))
	for _, target := range targets {
		if target != nil {
			filtered = append(filtered, target)
		}
	}

	return &Dispatcher{
		targets: filtered,
		logger:  logger.With().Str("component", "corrector_dispatcher").Logger(),
	}
}

// Notify implements Notifier.
func (d *Dispatcher) Notify(ctx context.Context, event string, payload map[string]interface{}) error {
	if len(d.targets) == 0 {
		return nil
	}

	var lastErr error
	delivered := false

	for _, target := range d.targets {
		if err := target.Notify(ctx, event, payload); err != nil {
			lastErr = err
			d.logger.Warn().Err(err).Str("event", event).Msg("corrector transport failed")
			continue
		}
		delivered = true
	}

	if !delivered {
		return lastErr
	}

	return nil
}
