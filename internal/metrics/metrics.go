// Deckd - Candidate Deck Recommendation Service
// Copyright 2026 Swipedeck
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/swipedeck/deckd

// Package metrics provides Prometheus instrumentation for the deck pipeline:
// resilience primitives (circuit breaker, bulkhead, retry), deck builds,
// cache operations, and invalidation event processing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Circuit breaker metrics, labeled by dependency name.

	// CircuitBreakerState is 0=closed, 1=half-open, 2=open.
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "deckd_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"dependency"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "deckd_circuit_breaker_transitions_total",
			Help: "Total circuit breaker state transitions",
		},
		[]string{"dependency", "from", "to"},
	)

	// DependencyCalls counts outcomes of resilient calls: success, failure,
	// rejected (breaker open or bulkhead full).
	DependencyCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "deckd_dependency_calls_total",
			Help: "Total dependency calls by outcome",
		},
		[]string{"dependency", "outcome"},
	)

	DependencyCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "deckd_dependency_call_duration_seconds",
			Help:    "Duration of dependency calls in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"dependency"},
	)

	SlowCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "deckd_slow_calls_total",
			Help: "Successful dependency calls that exceeded the slow-call duration",
		},
		[]string{"dependency"},
	)

	RetryAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "deckd_retry_attempts_total",
			Help: "Total retry attempts beyond the first call",
		},
		[]string{"dependency"},
	)

	BulkheadInFlight = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "deckd_bulkhead_in_flight",
			Help: "Calls currently holding a bulkhead permit",
		},
		[]string{"dependency"},
	)

	BulkheadRejections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "deckd_bulkhead_rejections_total",
			Help: "Calls rejected waiting for a bulkhead permit",
		},
		[]string{"dependency"},
	)

	// Deck build metrics.

	DeckBuilds = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "deckd_deck_builds_total",
			Help: "Deck rebuilds by trigger (scheduled, on_demand, admin) and outcome",
		},
		[]string{"trigger", "outcome"},
	)

	DeckBuildDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "deckd_deck_build_duration_seconds",
			Help:    "Duration of single-viewer deck rebuilds in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	DeckSize = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "deckd_deck_size",
			Help:    "Number of candidates written per deck populate",
			Buckets: []float64{0, 5, 10, 25, 50, 100, 250, 500},
		},
	)

	// Deck cache metrics.

	CacheOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "deckd_cache_operations_total",
			Help: "Deck cache operations by type and outcome",
		},
		[]string{"operation", "outcome"},
	)

	CacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "deckd_cache_misses_total",
			Help: "Deck reads that found no cached deck",
		},
	)

	// Invalidation event metrics.

	EventsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "deckd_events_processed_total",
			Help: "Invalidation events processed by topic and outcome",
		},
		[]string{"topic", "outcome"},
	)

	EventProcessingDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "deckd_event_processing_duration_seconds",
			Help:    "Duration of invalidation event handling in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"topic"},
	)
)

// ObserveDependencyCall records duration and outcome for one resilient call.
func ObserveDependencyCall(dependency, outcome string, start time.Time) {
	DependencyCalls.WithLabelValues(dependency, outcome).Inc()
	DependencyCallDuration.WithLabelValues(dependency).Observe(time.Since(start).Seconds())
}

// ObserveEvent records one handled invalidation event.
func ObserveEvent(topic, outcome string, start time.Time) {
	EventsProcessed.WithLabelValues(topic, outcome).Inc()
	EventProcessingDuration.WithLabelValues(topic).Observe(time.Since(start).Seconds())
}
