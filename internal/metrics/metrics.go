// tvseri.es - Social TV Tracking and Watch-State Reconciliation
// Copyright 2026 Koen E. (koenoe)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/koenoe/tvseri.es

// Package metrics provides Prometheus instrumentation for the watch-state
// pipeline: reconciliation classifications, scrobble resolution outcomes,
// CDC consumption, catalog client behavior and cache efficiency.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Reconciliation metrics
	ReconcileClassifications = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reconcile_classifications_total",
			Help: "Total membership classifications applied, by source and target state",
		},
		[]string{"source", "target"}, // source: "stream", "sweep"; target: "none", "in_progress", "watched"
	)

	ReconcileSkippedRecords = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reconcile_skipped_records_total",
			Help: "Change events skipped due to malformed or missing images",
		},
		[]string{"reason"},
	)

	ReconcileCoalescedEvents = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "reconcile_coalesced_events_total",
			Help: "Consecutive same-key change events coalesced within a batch",
		},
	)

	SweepRunsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sweep_runs_total",
			Help: "Total sweep fan-out passes started",
		},
	)

	SweepUsersEnqueued = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sweep_users_enqueued_total",
			Help: "Total per-user sweep tasks enqueued",
		},
	)

	SweepDriftCorrected = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sweep_drift_corrected_total",
			Help: "Series whose membership the sweep reconciler had to move",
		},
	)

	// Scrobble resolution metrics
	ScrobbleResolutions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scrobble_resolutions_total",
			Help: "Scrobble resolution outcomes by strategy",
		},
		[]string{"strategy"}, // "external_id", "fuzzy_search", "unresolved"
	)

	ScrobbleDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "scrobble_dropped_total",
			Help: "Scrobble events dropped after all resolution strategies failed",
		},
	)

	// Follow counter metrics. Deltas are observable here because
	// delta-based maintenance has no self-healing under redelivery.
	FollowCounterEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "follow_counter_events_total",
			Help: "Follow-edge change events applied to counters",
		},
		[]string{"type"}, // "INSERT", "REMOVE"
	)

	// CDC / event pipeline metrics
	ChangeEventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "change_events_published_total",
			Help: "Change events published to the stream, by topic",
		},
		[]string{"topic"},
	)

	ChangeEventsConsumed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "change_events_consumed_total",
			Help: "Change events consumed from the stream, by handler",
		},
		[]string{"handler"},
	)

	PipelineProcessingDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pipeline_processing_duration_seconds",
			Help:    "Per-message processing duration by handler",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"handler"},
	)

	// Catalog client metrics
	CatalogRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "catalog_request_duration_seconds",
			Help:    "Catalog API call duration by operation",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	CatalogRequestErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catalog_request_errors_total",
			Help: "Catalog API call failures by operation",
		},
		[]string{"operation"},
	)

	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_transitions_total",
			Help: "Circuit breaker state transitions",
		},
		[]string{"name", "from", "to"},
	)

	// Series cache metrics
	SeriesCacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "series_cache_hits_total",
			Help: "Series-facts cache hits by tier",
		},
		[]string{"tier"}, // "lru", "badger"
	)

	SeriesCacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "series_cache_misses_total",
			Help: "Series-facts cache misses (catalog fetch required)",
		},
	)

	// HTTP API metrics
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration by method, route pattern and status",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_requests_in_flight",
			Help: "HTTP requests currently being served",
		},
	)

	WebhooksReceived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webhooks_received_total",
			Help: "Media-server webhooks received, by event disposition",
		},
		[]string{"disposition"}, // "forwarded", "ignored", "rejected"
	)

	// Ledger metrics
	LedgerWrites = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledger_writes_total",
			Help: "Watched ledger writes by operation",
		},
		[]string{"operation"}, // "upsert", "delete"
	)

	LedgerCountQueries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ledger_count_queries_total",
			Help: "Authoritative watched-count queries issued by reconcilers",
		},
	)
)

// ObservePipelineDuration records one handler invocation's duration.
func ObservePipelineDuration(handler string, d time.Duration) {
	PipelineProcessingDuration.WithLabelValues(handler).Observe(d.Seconds())
}

// ObserveHTTPRequest records one served HTTP request.
func ObserveHTTPRequest(method, route string, status int, d time.Duration) {
	HTTPRequestDuration.WithLabelValues(method, route, strconv.Itoa(status)).Observe(d.Seconds())
}

// ObserveCatalogRequest records one catalog call's duration and outcome.
func ObserveCatalogRequest(operation string, d time.Duration, err error) {
	CatalogRequestDuration.WithLabelValues(operation).Observe(d.Seconds())
	if err != nil {
		CatalogRequestErrors.WithLabelValues(operation).Inc()
	}
}
