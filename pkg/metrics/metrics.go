// Package metrics provides Prometheus metrics for the clover consumer.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// MessagesTotal tracks handled messages by event kind and outcome
	// (committed, rejected, ignored, failed).
	MessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "clover",
			Subsystem: "pipeline",
			Name:      "messages_total",
			Help:      "Total number of handled messages by event kind and outcome",
		},
		[]string{"event", "outcome"},
	)

	// StepDuration tracks the duration of each dispatcher step
	StepDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "clover",
			Subsystem: "pipeline",
			Name:      "step_duration_seconds",
			Help:      "Duration of dispatcher steps in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		},
		[]string{"event", "step"},
	)

	// HookFailuresTotal tracks isolated hook callback failures
	HookFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "clover",
			Subsystem: "hooks",
			Name:      "failures_total",
			Help:      "Total number of failed hook callbacks",
		},
		[]string{"event", "hook"},
	)

	// CacheLookupsTotal tracks read-through cache lookups
	CacheLookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "clover",
			Subsystem: "cache",
			Name:      "lookups_total",
			Help:      "Total number of cache lookups by entity and result",
		},
		[]string{"entity", "result"},
	)

	// EntitiesCreatedTotal tracks entities created by the resolvers
	EntitiesCreatedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "clover",
			Subsystem: "resolver",
			Name:      "entities_created_total",
			Help:      "Total number of entities created on first sighting",
		},
		[]string{"entity"},
	)

	// EntityUpdatesTotal tracks partial updates issued for products and pages
	EntityUpdatesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "clover",
			Subsystem: "resolver",
			Name:      "entity_updates_total",
			Help:      "Total number of partial attribute updates",
		},
		[]string{"entity"},
	)

	// DeadLetteredTotal tracks envelopes published to the dead-letter topic
	DeadLetteredTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "clover",
			Subsystem: "kafka",
			Name:      "dead_lettered_total",
			Help:      "Total number of malformed envelopes sent to the dead-letter topic",
		},
	)

	// SkippedTotal tracks malformed envelopes dropped without a dead-letter topic
	SkippedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "clover",
			Subsystem: "kafka",
			Name:      "skipped_total",
			Help:      "Total number of malformed envelopes skipped with no dead-letter topic configured",
		},
	)

	// FetchErrorsTotal tracks failed fetches from the input topic
	FetchErrorsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "clover",
			Subsystem: "kafka",
			Name:      "fetch_errors_total",
			Help:      "Total number of failed message fetches",
		},
	)
)

// RecordMessage records a handled message
func RecordMessage(event, outcome string) {
	MessagesTotal.WithLabelValues(event, outcome).Inc()
}

// RecordStep records a dispatcher step duration
func RecordStep(event, step string, durationSeconds float64) {
	StepDuration.WithLabelValues(event, step).Observe(durationSeconds)
}

// RecordHookFailure records a failed hook callback
func RecordHookFailure(event, hook string) {
	HookFailuresTotal.WithLabelValues(event, hook).Inc()
}

// RecordCacheLookup records a cache hit or miss
func RecordCacheLookup(entity string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	CacheLookupsTotal.WithLabelValues(entity, result).Inc()
}

// RecordCreated records an entity created on first sighting
func RecordCreated(entity string) {
	EntitiesCreatedTotal.WithLabelValues(entity).Inc()
}

// RecordUpdated records a partial attribute update
func RecordUpdated(entity string) {
	EntityUpdatesTotal.WithLabelValues(entity).Inc()
}
