// Package metrics provides Prometheus metrics for the Verity validation engine.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Default metrics configuration constants.
const (
	defaultRefreshInterval = 10 * time.Second
)

// Manager manages all Prometheus metrics for the Verity service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	enabled          bool
	refreshInterval  time.Duration
	customLabels     map[string]string
	metricPrefix     string
	registry         prometheus.Registerer

	// Core business metrics - evidence flow
	evidenceSubmitted prometheus.Counter
	evidenceDecided   *prometheus.CounterVec // labeled by outcome
	evidenceCancelled prometheus.Counter
	lateCompletions   prometheus.Counter
	quorumSize        prometheus.Histogram

	// Assignment metrics
	assignmentsCreated   prometheus.Counter
	assignmentsCompleted prometheus.Counter
	assignmentsExpired   prometheus.Counter
	assignmentsCancelled prometheus.Counter
	reassignments        prometheus.Counter
	activeAssignments    prometheus.Gauge

	// Matching metrics
	matchLatency     prometheus.Histogram
	candidatesRanked prometheus.Histogram
	capacitySkips    prometheus.Counter
	poolExhaustions  prometheus.Counter

	// SLA metrics
	slaWarnings   prometheus.Counter
	slaBreaches   prometheus.Counter
	escalations   prometheus.Counter
	sweepDuration prometheus.Histogram
	trackedTimers prometheus.Gauge

	// Validator pool metrics
	validatorPoolSize prometheus.Gauge
	workloadRatio     *prometheus.GaugeVec // labeled by validator

	// Notification pipeline metrics
	notificationQueueDepth      prometheus.Gauge
	notificationQueueCapacity   prometheus.Gauge
	notificationsEnqueued       prometheus.Counter
	notificationsDropped        prometheus.Counter
	notificationDispatchLatency prometheus.Histogram
	notificationDispatchers     prometheus.Gauge

	// HTTP performance metrics
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Error metrics
	errorRateByComponent *prometheus.CounterVec
	errorRateByEndpoint  *prometheus.CounterVec

	// System metrics
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

// Initialize global metrics.
func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "verity",
		subsystem:        "validation",
		histogramBuckets: prometheus.DefBuckets,
		enabled:          true,
		refreshInterval:  defaultRefreshInterval,
		customLabels:     make(map[string]string),
		metricPrefix:     "",
		registry:         prometheus.DefaultRegisterer,
	}

	// Apply all options
	for _, opt := range opts {
		opt(m)
	}

	// Initialize metrics
	m.initializeMetrics()

	return m
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() { //nolint:funlen // long function required for comprehensive metrics initialization
	// Ensure metrics are registered on the configured registry (custom by default)
	auto := promauto.With(m.registry)

	// Evidence flow
	m.evidenceSubmitted = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "evidence_submitted_total",
		Help:      "Total number of evidence items submitted for validation",
	})

	m.evidenceDecided = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "evidence_decided_total",
			Help:      "Total number of evidence decisions by outcome",
		},
		[]string{"outcome"},
	)

	m.evidenceCancelled = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "evidence_cancelled_total",
		Help:      "Total number of evidence items cancelled by the submitter",
	})

	m.lateCompletions = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "late_completions_total",
		Help:      "Completions that arrived after the evidence was already decided",
	})

	m.quorumSize = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "quorum_size",
		Help:      "Number of scores collected when a decision was reached",
		Buckets:   []float64{1, 2, 3, 4, 5, 7, 10},
	})

	// Assignments
	m.assignmentsCreated = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "assignments_created_total",
		Help:      "Total number of review assignments created",
	})

	m.assignmentsCompleted = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "assignments_completed_total",
		Help:      "Total number of review assignments completed by validators",
	})

	m.assignmentsExpired = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "assignments_expired_total",
		Help:      "Total number of review assignments expired past their SLA deadline",
	})

	m.assignmentsCancelled = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "assignments_cancelled_total",
		Help:      "Total number of review assignments cancelled",
	})

	m.reassignments = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "reassignments_total",
		Help:      "Replacement assignments created after an SLA breach",
	})

	m.activeAssignments = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "active_assignments",
		Help:      "Current number of assignments awaiting validator action",
	})

	// Matching
	m.matchLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "match_latency_milliseconds",
		Help:      "Histogram of validator matching latency in milliseconds",
		Buckets:   m.histogramBuckets,
	})

	m.candidatesRanked = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "candidates_ranked",
		Help:      "Number of candidates considered per matching round",
		Buckets:   []float64{1, 2, 5, 10, 25, 50, 100, 250},
	})

	m.capacitySkips = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "capacity_skips_total",
		Help:      "Candidates skipped during matching because their capacity was exhausted",
	})

	m.poolExhaustions = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "pool_exhaustions_total",
		Help:      "Matching rounds that could not reserve enough validators",
	})

	// SLA
	m.slaWarnings = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "sla_warnings_total",
		Help:      "SLA warning notifications emitted",
	})

	m.slaBreaches = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "sla_breaches_total",
		Help:      "SLA breach notifications emitted",
	})

	m.escalations = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "escalations_total",
		Help:      "Evidence items escalated to the moderator pool",
	})

	m.sweepDuration = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "sla_sweep_duration_milliseconds",
		Help:      "Duration of one SLA supervisor sweep in milliseconds",
		Buckets:   m.histogramBuckets,
	})

	m.trackedTimers = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "tracked_timers",
		Help:      "Current number of deadline entries tracked by the SLA supervisor",
	})

	// Validator pool
	m.validatorPoolSize = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "validator_pool_size",
		Help:      "Number of registered validator profiles",
	})

	m.workloadRatio = auto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "validator_workload_ratio",
			Help:      "Current load over capacity per validator",
		},
		[]string{"validator"},
	)

	// Notification pipeline
	m.notificationQueueDepth = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "notification_queue_depth",
		Help:      "Current number of notifications waiting for dispatch",
	})

	m.notificationQueueCapacity = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "notification_queue_capacity",
		Help:      "Configured capacity of the notification queue",
	})

	m.notificationsEnqueued = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "notifications_enqueued_total",
		Help:      "Total notifications accepted into the dispatch queue",
	})

	m.notificationsDropped = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "notifications_dropped_total",
		Help:      "Notifications dropped because the dispatch queue was full or closed",
	})

	m.notificationDispatchLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "notification_dispatch_milliseconds",
		Help:      "Latency of delivering one notification to its sink in milliseconds",
		Buckets:   m.histogramBuckets,
	})

	m.notificationDispatchers = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "notification_dispatchers",
		Help:      "Number of running notification dispatcher goroutines",
	})

	// HTTP performance
	m.httpRequests = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests by endpoint and method",
		},
		[]string{"endpoint", "method", "status_code"},
	)

	m.httpRequestDuration = auto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "http_request_duration_milliseconds",
			Help:      "HTTP request duration in milliseconds",
			Buckets:   m.histogramBuckets,
		},
		[]string{"endpoint", "method", "status_code"},
	)

	// Errors
	m.errorRateByComponent = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "errors_by_component_total",
			Help:      "Errors by component and error type",
		},
		[]string{"component", "error_type"},
	)

	m.errorRateByEndpoint = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "errors_by_endpoint_total",
			Help:      "Errors by HTTP endpoint, method and error type",
		},
		[]string{"endpoint", "method", "error_type"},
	)

	// System
	m.systemMemoryUsage = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "system_memory_bytes",
		Help:      "Current allocated heap memory in bytes",
	})

	m.systemGoroutineCount = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "system_goroutines",
		Help:      "Current number of goroutines",
	})

	m.systemGCPauseTime = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "system_gc_pause_milliseconds",
		Help:      "Average GC pause time in milliseconds",
		Buckets:   m.histogramBuckets,
	})
}

// UpdateSystemMemoryUsage sets the allocated heap gauge.
func UpdateSystemMemoryUsage(bytes uint64) {
	globalManager.systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount sets the goroutine gauge.
func UpdateSystemGoroutineCount(n int) {
	globalManager.systemGoroutineCount.Set(float64(n))
}

// RecordSystemGCPauseTime observes one GC pause sample in milliseconds.
func RecordSystemGCPauseTime(ms float64) {
	globalManager.systemGCPauseTime.Observe(ms)
}

// RecordEvidenceSubmitted increments the submitted evidence counter.
func RecordEvidenceSubmitted() {
	globalManager.evidenceSubmitted.Inc()
}

// RecordEvidenceDecided increments the decision counter for an outcome.
func RecordEvidenceDecided(outcome string) {
	globalManager.evidenceDecided.WithLabelValues(outcome).Inc()
}

// RecordEvidenceCancelled increments the cancelled evidence counter.
func RecordEvidenceCancelled() {
	globalManager.evidenceCancelled.Inc()
}

// RecordLateCompletion increments the late completion counter.
func RecordLateCompletion() {
	globalManager.lateCompletions.Inc()
}

// RecordQuorumSize records how many scores formed a decision.
func RecordQuorumSize(n int) {
	globalManager.quorumSize.Observe(float64(n))
}

// RecordAssignmentCreated increments the created assignments counter.
func RecordAssignmentCreated() {
	globalManager.assignmentsCreated.Inc()
}

// RecordAssignmentCompleted increments the completed assignments counter.
func RecordAssignmentCompleted() {
	globalManager.assignmentsCompleted.Inc()
}

// RecordAssignmentExpired increments the expired assignments counter.
func RecordAssignmentExpired() {
	globalManager.assignmentsExpired.Inc()
}

// RecordAssignmentCancelled increments the cancelled assignments counter.
func RecordAssignmentCancelled() {
	globalManager.assignmentsCancelled.Inc()
}

// RecordReassignment increments the reassignment counter.
func RecordReassignment() {
	globalManager.reassignments.Inc()
}

// UpdateActiveAssignments sets the active assignments gauge.
func UpdateActiveAssignments(n int) {
	globalManager.activeAssignments.Set(float64(n))
}

// RecordMatchLatency records matching latency in milliseconds.
func RecordMatchLatency(latencyMs float64) {
	globalManager.matchLatency.Observe(latencyMs)
}

// RecordCandidatesRanked records how many candidates a matching round ranked.
func RecordCandidatesRanked(n int) {
	globalManager.candidatesRanked.Observe(float64(n))
}

// RecordCapacitySkip increments the capacity skip counter.
func RecordCapacitySkip() {
	globalManager.capacitySkips.Inc()
}

// RecordPoolExhaustion increments the pool exhaustion counter.
func RecordPoolExhaustion() {
	globalManager.poolExhaustions.Inc()
}

// RecordSLAWarning increments the SLA warning counter.
func RecordSLAWarning() {
	globalManager.slaWarnings.Inc()
}

// RecordSLABreach increments the SLA breach counter.
func RecordSLABreach() {
	globalManager.slaBreaches.Inc()
}

// RecordEscalation increments the escalation counter.
func RecordEscalation() {
	globalManager.escalations.Inc()
}

// RecordSweepDuration records the duration of one supervisor sweep.
func RecordSweepDuration(latencyMs float64) {
	globalManager.sweepDuration.Observe(latencyMs)
}

// UpdateTrackedTimers sets the tracked timer entries gauge.
func UpdateTrackedTimers(n int) {
	globalManager.trackedTimers.Set(float64(n))
}

// UpdateValidatorPoolSize sets the registered validator count.
func UpdateValidatorPoolSize(n int) {
	globalManager.validatorPoolSize.Set(float64(n))
}

// UpdateWorkloadRatio sets the load/capacity ratio for a validator.
func UpdateWorkloadRatio(validatorID string, ratio float64) {
	globalManager.workloadRatio.WithLabelValues(validatorID).Set(ratio)
}

// UpdateNotificationQueueDepth sets the notification queue depth gauge.
func UpdateNotificationQueueDepth(n int) {
	globalManager.notificationQueueDepth.Set(float64(n))
}

// UpdateNotificationQueueCapacity sets the notification queue capacity gauge.
func UpdateNotificationQueueCapacity(n int) {
	globalManager.notificationQueueCapacity.Set(float64(n))
}

// RecordNotificationEnqueued increments the enqueued notification counter.
func RecordNotificationEnqueued() {
	globalManager.notificationsEnqueued.Inc()
}

// RecordNotificationDropped increments the dropped notification counter.
func RecordNotificationDropped() {
	globalManager.notificationsDropped.Inc()
}

// RecordNotificationDispatchLatency observes one dispatch latency sample.
func RecordNotificationDispatchLatency(latencyMs float64) {
	globalManager.notificationDispatchLatency.Observe(latencyMs)
}

// UpdateNotificationDispatchers sets the running dispatcher gauge.
func UpdateNotificationDispatchers(n int) {
	globalManager.notificationDispatchers.Set(float64(n))
}

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// RecordErrorByComponent records an error with component and type labels.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorRateByComponent.WithLabelValues(component, errorType).Inc()
}

// RecordErrorByEndpoint records an error with endpoint, method, and error type labels.
func RecordErrorByEndpoint(endpoint, method, errorType string) {
	globalManager.errorRateByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
