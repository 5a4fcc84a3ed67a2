package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager owns every Prometheus collector of the service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	registry         prometheus.Registerer

	// Demand ledger
	interactions       *prometheus.CounterVec
	duplicates         prometheus.Counter
	rejected           prometheus.Counter
	ledgerLatency      prometheus.Histogram
	trackedOpportunity prometheus.Gauge

	// Ranking and allocation
	rankLatency       prometheus.Histogram
	ineligible        *prometheus.CounterVec
	rebalanceDuration prometheus.Histogram
	assigned          prometheus.Counter
	unassigned        prometheus.Counter
	grants            *prometheus.CounterVec
	modelFallback     *prometheus.CounterVec

	// Ingestion
	queueSize     prometheus.Gauge
	queueCapacity prometheus.Gauge
	queueEnqueued prometheus.Counter
	queueRejected prometheus.Counter
	workerCount   prometheus.Gauge
	workerErrors  prometheus.Counter
	workerLatency prometheus.Histogram
	auditErrors   prometheus.Counter

	// System
	memoryUsage    prometheus.Gauge
	goroutineCount prometheus.Gauge
	gcPause        prometheus.Histogram

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
}

var globalManager *Manager //nolint:gochecknoglobals // singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // metrics registry

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a metrics manager and registers its collectors.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "flok",
		subsystem:        "core",
		histogramBuckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 25, 50, 100, 250, 500, 1000},
		registry:         prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) counter(name, help string) prometheus.Counter {
	return promauto.With(m.registry).NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help,
	})
}

func (m *Manager) gauge(name, help string) prometheus.Gauge {
	return promauto.With(m.registry).NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help,
	})
}

func (m *Manager) histogram(name, help string) prometheus.Histogram {
	return promauto.With(m.registry).NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help,
		Buckets: m.histogramBuckets,
	})
}

func (m *Manager) counterVec(name, help string, labels ...string) *prometheus.CounterVec {
	return promauto.With(m.registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help,
	}, labels)
}

func (m *Manager) initializeMetrics() {
	m.interactions = m.counterVec("interactions_total", "Interactions applied to the demand ledger by kind", "kind")
	m.duplicates = m.counter("interactions_duplicate_total", "Interactions dropped because their id was already applied")
	m.rejected = m.counter("interactions_rejected_total", "Interactions rejected as invalid")
	m.ledgerLatency = m.histogram("ledger_update_latency_milliseconds", "Latency of one decay-then-delta ledger update")
	m.trackedOpportunity = m.gauge("ledger_opportunities", "Opportunities with a demand state")

	m.rankLatency = m.histogram("rank_latency_milliseconds", "Latency of ranking one user's candidates")
	m.ineligible = m.counterVec("ineligible_total", "Ranked candidates that failed an eligibility rule", "reason")
	m.rebalanceDuration = m.histogram("rebalance_duration_milliseconds", "Duration of a batch rebalance including solving")
	m.assigned = m.counter("rebalance_assigned_total", "Users assigned a seat by the solver")
	m.unassigned = m.counter("rebalance_unassigned_total", "Users the solver left unassigned")
	m.grants = m.counterVec("grants_total", "Committed seat grants by outcome", "outcome")
	m.modelFallback = m.counterVec("model_fallback_total", "Times the fit model fell back to neutral weights", "reason")

	m.queueSize = m.gauge("queue_size", "Interactions waiting in the ingestion queue")
	m.queueCapacity = m.gauge("queue_capacity", "Capacity of the ingestion queue")
	m.queueEnqueued = m.counter("queue_enqueued_total", "Interactions accepted into the ingestion queue")
	m.queueRejected = m.counter("queue_rejected_total", "Interactions refused because the queue was full")
	m.workerCount = m.gauge("worker_count", "Running ingestion workers")
	m.workerErrors = m.counter("worker_errors_total", "Interactions a worker failed to apply")
	m.workerLatency = m.histogram("worker_processing_latency_milliseconds", "Time a worker spends applying one interaction")
	m.auditErrors = m.counter("audit_errors_total", "Failed writes to the interaction log")

	m.memoryUsage = m.gauge("system_memory_bytes", "Heap bytes allocated")
	m.goroutineCount = m.gauge("system_goroutines", "Live goroutines")
	m.gcPause = m.histogram("system_gc_pause_milliseconds", "Average GC pause")

	m.httpRequests = m.counterVec("http_requests_total", "HTTP requests by route, method and status", "endpoint", "method", "status_code")
	m.httpRequestDuration = promauto.With(m.registry).NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "http_request_duration_milliseconds",
		Help:      "HTTP request duration in milliseconds",
		Buckets:   m.histogramBuckets,
	}, []string{"endpoint", "method", "status_code"})
}

// RecordInteraction counts an applied interaction of the given kind.
func RecordInteraction(kind string) {
	globalManager.interactions.WithLabelValues(kind).Inc()
}

// RecordDuplicate counts an interaction dropped by the deduper.
func RecordDuplicate() {
	globalManager.duplicates.Inc()
}

// RecordRejected counts an invalid interaction.
func RecordRejected() {
	globalManager.rejected.Inc()
}

// RecordLedgerLatency records one ledger update in milliseconds.
func RecordLedgerLatency(latencyMs float64) {
	globalManager.ledgerLatency.Observe(latencyMs)
}

// UpdateTrackedOpportunities sets the number of opportunities with demand state.
func UpdateTrackedOpportunities(count int) {
	globalManager.trackedOpportunity.Set(float64(count))
}

// RecordRankLatency records one ranking call in milliseconds.
func RecordRankLatency(latencyMs float64) {
	globalManager.rankLatency.Observe(latencyMs)
}

// RecordIneligible counts a candidate that failed the given rule.
func RecordIneligible(reason string) {
	globalManager.ineligible.WithLabelValues(reason).Inc()
}

// RecordRebalance records a rebalance run and its outcome sizes.
func RecordRebalance(durationMs float64, assigned, unassigned int) {
	globalManager.rebalanceDuration.Observe(durationMs)
	globalManager.assigned.Add(float64(assigned))
	globalManager.unassigned.Add(float64(unassigned))
}

// RecordGrant counts a committed grant; outcome is "granted" or "rejected".
func RecordGrant(outcome string) {
	globalManager.grants.WithLabelValues(outcome).Inc()
}

// RecordModelFallback counts a fall back to the neutral fit model.
func RecordModelFallback(reason string) {
	globalManager.modelFallback.WithLabelValues(reason).Inc()
}

// UpdateQueueSize sets the current queue depth.
func UpdateQueueSize(size int) {
	globalManager.queueSize.Set(float64(size))
}

// UpdateQueueCapacity sets the queue capacity.
func UpdateQueueCapacity(capacity int) {
	globalManager.queueCapacity.Set(float64(capacity))
}

// RecordQueueEnqueue counts an accepted enqueue.
func RecordQueueEnqueue() {
	globalManager.queueEnqueued.Inc()
}

// RecordQueueRejected counts an enqueue refused by backpressure.
func RecordQueueRejected() {
	globalManager.queueRejected.Inc()
}

// UpdateWorkerCount sets the number of running workers.
func UpdateWorkerCount(count int) {
	globalManager.workerCount.Set(float64(count))
}

// RecordWorkerError counts an interaction a worker failed to apply.
func RecordWorkerError() {
	globalManager.workerErrors.Inc()
}

// RecordWorkerProcessingLatency records worker latency in milliseconds.
func RecordWorkerProcessingLatency(latencyMs float64) {
	globalManager.workerLatency.Observe(latencyMs)
}

// RecordAuditError counts a failed interaction log write.
func RecordAuditError() {
	globalManager.auditErrors.Inc()
}

// RecordHTTPRequest counts an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration in milliseconds.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// UpdateSystemMemoryUsage sets the allocated heap size.
func UpdateSystemMemoryUsage(bytes uint64) {
	globalManager.memoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount sets the goroutine count.
func UpdateSystemGoroutineCount(n int) {
	globalManager.goroutineCount.Set(float64(n))
}

// RecordSystemGCPauseTime observes the average GC pause.
func RecordSystemGCPauseTime(ms float64) {
	globalManager.gcPause.Observe(ms)
}

// GetRegistry returns the registry the global manager reports to.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
