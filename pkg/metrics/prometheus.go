// Package metrics provides Prometheus metrics for the matchbar service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager manages all Prometheus metrics for the matchbar service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	registry         prometheus.Registerer

	// Feed metrics
	snapshotsReceived  *prometheus.CounterVec
	snapshotsDropped   *prometheus.CounterVec
	snapshotsMalformed prometheus.Counter
	parseLatency       prometheus.Histogram

	// Subscription metrics
	activeSubscriptions prometheus.Gauge
	subscriptionChanges *prometheus.CounterVec
	cachedSnapshots     prometheus.Gauge

	// Reconciliation metrics
	reconcileOps     *prometheus.CounterVec
	reconcileLatency prometheus.Histogram
	surfacesAttached prometheus.Gauge
	surfaceFailures  prometheus.Counter

	// Follow metrics
	followedTeams        prometheus.Gauge
	followPersistErrors  prometheus.Counter
	followRejectedInputs prometheus.Counter

	// Inbox metrics
	inboxSize           prometheus.Gauge
	inboxCapacity       prometheus.Gauge
	inboxEnqueueErrors  *prometheus.CounterVec
	loopHandlingLatency *prometheus.HistogramVec
	deliveriesDuplicate prometheus.Counter
	dedupeEntries       prometheus.Gauge

	// HTTP metrics
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Error metrics
	errorRateByComponent *prometheus.CounterVec

	// System metrics
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "matchbar",
		subsystem:        "",
		histogramBuckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 25, 50, 100},
		registry:         prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()
	return m
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() { //nolint:funlen // long function required for comprehensive metrics initialization
	auto := promauto.With(m.registry)

	m.snapshotsReceived = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "snapshots_received_total",
		Help:      "Snapshots delivered by the feed, by parse state",
	}, []string{"state"})

	m.snapshotsDropped = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "snapshots_dropped_total",
		Help:      "Snapshots ignored before reconciliation, by reason",
	}, []string{"reason"})

	m.snapshotsMalformed = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "snapshots_malformed_total",
		Help:      "Snapshots rendered as placeholders because they could not be parsed",
	})

	m.parseLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "snapshot_parse_latency_milliseconds",
		Help:      "Time spent categorising a snapshot",
		Buckets:   m.histogramBuckets,
	})

	m.activeSubscriptions = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "active_subscriptions",
		Help:      "Event keys with a live feed subscription",
	})

	m.subscriptionChanges = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "subscription_changes_total",
		Help:      "Subscriptions opened, released or failed",
	}, []string{"change"})

	m.cachedSnapshots = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "cached_snapshots",
		Help:      "Active event keys holding a last-seen snapshot",
	})

	m.reconcileOps = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "reconcile_ops_total",
		Help:      "Render operations emitted to surfaces, by kind",
	}, []string{"op"})

	m.reconcileLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "reconcile_latency_milliseconds",
		Help:      "Time spent reconciling one surface",
		Buckets:   m.histogramBuckets,
	})

	m.surfacesAttached = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "surfaces_attached",
		Help:      "Surfaces currently registered by host pages",
	})

	m.surfaceFailures = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "surface_failures_total",
		Help:      "Surfaces detached because their renderer failed",
	})

	m.followedTeams = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "followed_teams",
		Help:      "Teams in the follow set",
	})

	m.followPersistErrors = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "follow_persist_errors_total",
		Help:      "Failed follow-set persistence writes",
	})

	m.followRejectedInputs = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "follow_rejected_inputs_total",
		Help:      "Follow requests rejected for non-numeric team input",
	})

	m.inboxSize = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "inbox_size",
		Help:      "Messages waiting for the event loop",
	})

	m.inboxCapacity = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "inbox_capacity",
		Help:      "Maximum inbox capacity",
	})

	m.inboxEnqueueErrors = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "inbox_enqueue_errors_total",
		Help:      "Messages that could not be placed on the inbox, by reason",
	}, []string{"reason"})

	m.loopHandlingLatency = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "loop_handling_latency_milliseconds",
		Help:      "Time the event loop spent on one message, by message kind",
		Buckets:   m.histogramBuckets,
	}, []string{"kind"})

	m.deliveriesDuplicate = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "deliveries_duplicate_total",
		Help:      "Feed redeliveries dropped by delivery id",
	})

	m.dedupeEntries = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "dedupe_entries",
		Help:      "Delivery ids held by the deduper",
	})

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

	m.errorRateByComponent = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "errors_by_component_total",
			Help:      "Total number of errors by component",
		},
		[]string{"component", "error_type"},
	)

	m.systemMemoryUsage = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "system_memory_usage_bytes",
		Help:      "Heap bytes allocated",
	})

	m.systemGoroutineCount = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "system_goroutines",
		Help:      "Number of goroutines",
	})

	m.systemGCPauseTime = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "system_gc_pause_milliseconds",
		Help:      "Average GC pause time in milliseconds",
		Buckets:   m.histogramBuckets,
	})
}

// RecordSnapshotReceived counts a delivered snapshot by its parse state.
func RecordSnapshotReceived(state string) {
	globalManager.snapshotsReceived.WithLabelValues(state).Inc()
}

// RecordSnapshotDropped counts a snapshot ignored before reconciliation.
func RecordSnapshotDropped(reason string) {
	globalManager.snapshotsDropped.WithLabelValues(reason).Inc()
}

// RecordSnapshotMalformed counts a snapshot that fell back to the placeholder.
func RecordSnapshotMalformed() {
	globalManager.snapshotsMalformed.Inc()
}

// RecordParseLatency records parse latency in milliseconds.
func RecordParseLatency(latencyMs float64) {
	globalManager.parseLatency.Observe(latencyMs)
}

// UpdateActiveSubscriptions sets the number of live subscriptions.
func UpdateActiveSubscriptions(count int) {
	globalManager.activeSubscriptions.Set(float64(count))
}

// RecordSubscriptionChange counts opened, released and failed subscriptions.
func RecordSubscriptionChange(change string) {
	globalManager.subscriptionChanges.WithLabelValues(change).Inc()
}

// UpdateCachedSnapshots sets the number of cached snapshots.
func UpdateCachedSnapshots(count int) {
	globalManager.cachedSnapshots.Set(float64(count))
}

// RecordReconcileOps adds n emitted operations of the given kind.
func RecordReconcileOps(op string, n int) {
	if n <= 0 {
		return
	}
	globalManager.reconcileOps.WithLabelValues(op).Add(float64(n))
}

// RecordReconcileLatency records reconcile latency in milliseconds.
func RecordReconcileLatency(latencyMs float64) {
	globalManager.reconcileLatency.Observe(latencyMs)
}

// UpdateSurfacesAttached sets the number of registered surfaces.
func UpdateSurfacesAttached(count int) {
	globalManager.surfacesAttached.Set(float64(count))
}

// RecordSurfaceFailure counts a surface dropped after a renderer error.
func RecordSurfaceFailure() {
	globalManager.surfaceFailures.Inc()
}

// UpdateFollowedTeams sets the follow set size.
func UpdateFollowedTeams(count int) {
	globalManager.followedTeams.Set(float64(count))
}

// RecordFollowPersistError counts a failed persistence write.
func RecordFollowPersistError() {
	globalManager.followPersistErrors.Inc()
}

// RecordFollowRejected counts a rejected follow input.
func RecordFollowRejected() {
	globalManager.followRejectedInputs.Inc()
}

// UpdateInboxSize sets the current inbox backlog.
func UpdateInboxSize(size int) {
	globalManager.inboxSize.Set(float64(size))
}

// UpdateInboxCapacity sets the inbox capacity.
func UpdateInboxCapacity(capacity int) {
	globalManager.inboxCapacity.Set(float64(capacity))
}

// RecordInboxEnqueueError counts a failed enqueue.
func RecordInboxEnqueueError(reason string) {
	globalManager.inboxEnqueueErrors.WithLabelValues(reason).Inc()
}

// RecordLoopHandlingLatency records how long the loop spent on one message.
func RecordLoopHandlingLatency(kind string, latencyMs float64) {
	globalManager.loopHandlingLatency.WithLabelValues(kind).Observe(latencyMs)
}

// RecordDeliveryDuplicate counts a dropped redelivery.
func RecordDeliveryDuplicate() {
	globalManager.deliveriesDuplicate.Inc()
}

// UpdateDedupeEntries sets the deduper size.
func UpdateDedupeEntries(count int64) {
	globalManager.dedupeEntries.Set(float64(count))
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

// UpdateSystemMemoryUsage sets allocated heap bytes.
func UpdateSystemMemoryUsage(bytes uint64) {
	globalManager.systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount sets the goroutine count.
func UpdateSystemGoroutineCount(count int) {
	globalManager.systemGoroutineCount.Set(float64(count))
}

// RecordSystemGCPauseTime records the average GC pause.
func RecordSystemGCPauseTime(pauseMs float64) {
	globalManager.systemGCPauseTime.Observe(pauseMs)
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
