package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	attemptsStarted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "cursos",
		Subsystem: "exam",
		Name:      "attempts_started_total",
		Help:      "Number of exam attempts created.",
	})

	attemptsSubmitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "cursos",
		Subsystem: "exam",
		Name:      "attempts_submitted_total",
		Help:      "Number of exam attempts submitted and scored.",
	}, []string{"passed"})

	scoringDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "cursos",
		Subsystem: "exam",
		Name:      "scoring_duration_seconds",
		Help:      "Duration of immediate submission scoring.",
		Buckets:   prometheus.DefBuckets,
	})
)
