package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("veracity.engine")

var (
	recalculationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "veracity_recalculations_total",
		Help: "Credibility recalculations by result",
	}, []string{"result"})

	recalculationDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "veracity_recalculation_duration_seconds",
		Help:    "Time to recompute and persist one claim's credibility",
		Buckets: prometheus.DefBuckets,
	})

	votesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "veracity_votes_total",
		Help: "Consensus votes recorded by subject type",
	}, []string{"subject_type"})

	promotionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "veracity_promotions_total",
		Help: "Promotion requests by result (promoted, ineligible, conflict)",
	}, []string{"result"})

	amendmentsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "veracity_amendments_total",
		Help: "Amendment transitions by result",
	}, []string{"result"})

	duplicateChecksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "veracity_duplicate_checks_total",
		Help: "Duplicate inquiry checks by result (clear, match, degraded)",
	}, []string{"result"})

	positionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "veracity_position_evaluations_total",
		Help: "Position evaluations by final status",
	}, []string{"status"})

	// EventsDropped counts events the async publisher discarded
	EventsDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "veracity_events_dropped_total",
		Help: "Events dropped because the publish buffer was full",
	})
)
