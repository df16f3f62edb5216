// Package metrics provides Prometheus metrics for the AURA motor telemetry service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager owns every collector the service exports.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	constLabels      prometheus.Labels
	registry         prometheus.Registerer

	// Ingestion
	samplesIngested      prometheus.Counter
	attemptsIngested     prometheus.Counter
	interactionsIngested prometheus.Counter
	itemsRejected        *prometheus.CounterVec
	batchesDuplicate     *prometheus.CounterVec

	// Enrichment
	extractionLatency prometheus.Histogram
	enrichments       *prometheus.CounterVec

	// Storage
	bucketRollovers         *prometheus.CounterVec
	retentionPurged         prometheus.Counter
	repositoryAppendLatency prometheus.Histogram
	repositoryQueryLatency  prometheus.Histogram
	repositorySubjects      prometheus.Gauge
	repositoryShardCount    prometheus.Gauge
	repositoryShardSubjects *prometheus.GaugeVec

	// Summaries
	summaryLatency *prometheus.HistogramVec
	summaryNoData  prometheus.Counter

	// Queue
	queueCapacity       prometheus.Gauge
	queueSize           prometheus.Gauge
	queueUtilization    prometheus.Gauge
	queueEnqueued       prometheus.Counter
	queueDequeued       prometheus.Counter
	queueEnqueueErrors  prometheus.Counter
	queueInlineFallback prometheus.Counter

	// Workers
	workerCount             prometheus.Gauge
	workerBusy              prometheus.Gauge
	workerJobsPerSecond     prometheus.Gauge
	workerProcessingLatency prometheus.Histogram
	workerErrors            prometheus.Counter

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Errors
	errorsByComponent *prometheus.CounterVec
	errorsByEndpoint  *prometheus.CounterVec

	// System
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

var globalManager *Manager //nolint:gochecknoglobals // singleton metrics manager

// customRegistry keeps the default Go collectors out of /healthz.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // metrics registry

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a metrics manager and registers its collectors.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "aura",
		subsystem:        "motor",
		histogramBuckets: prometheus.DefBuckets,
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
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	})
}

func (m *Manager) counterVec(name, help string, labels ...string) *prometheus.CounterVec {
	return promauto.With(m.registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	}, labels)
}

func (m *Manager) gauge(name, help string) prometheus.Gauge {
	return promauto.With(m.registry).NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	})
}

func (m *Manager) gaugeVec(name, help string, labels ...string) *prometheus.GaugeVec {
	return promauto.With(m.registry).NewGaugeVec(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	}, labels)
}

func (m *Manager) histogram(name, help string) prometheus.Histogram {
	return promauto.With(m.registry).NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
		Buckets: m.histogramBuckets,
	})
}

func (m *Manager) histogramVec(name, help string, labels ...string) *prometheus.HistogramVec {
	return promauto.With(m.registry).NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
		Buckets: m.histogramBuckets,
	}, labels)
}

func (m *Manager) initializeMetrics() { //nolint:funlen // one place for every collector
	m.samplesIngested = m.counter("samples_ingested_total", "Pointer samples appended to the sample store")
	m.attemptsIngested = m.counter("attempts_ingested_total", "Attempts appended to the attempt store")
	m.interactionsIngested = m.counter("interactions_ingested_total", "Global interactions appended to the interaction store")
	m.itemsRejected = m.counterVec("items_rejected_total", "Batch items rejected by validation", "kind")
	m.batchesDuplicate = m.counterVec("batches_duplicate_total", "Batches acknowledged as duplicates by batch id", "kind")

	m.extractionLatency = m.histogram("extraction_latency_milliseconds", "Per-attempt feature extraction latency")
	m.enrichments = m.counterVec("enrichments_total", "Attempt enrichment outcomes", "status")

	m.bucketRollovers = m.counterVec("bucket_rollovers_total", "New buckets opened because the previous one was full", "kind")
	m.retentionPurged = m.counter("retention_purged_buckets_total", "Buckets deleted by the retention sweeper")
	m.repositoryAppendLatency = m.histogram("repository_append_latency_milliseconds", "Store append latency")
	m.repositoryQueryLatency = m.histogram("repository_query_latency_milliseconds", "Store query latency")
	m.repositorySubjects = m.gauge("repository_subjects", "Subjects with at least one bucket")
	m.repositoryShardCount = m.gauge("repository_shard_count", "Number of in-memory store shards")
	m.repositoryShardSubjects = m.gaugeVec("repository_shard_subjects", "Subjects held per shard", "shard_id")

	m.summaryLatency = m.histogramVec("summary_latency_milliseconds", "Round and session summary latency", "scope")
	m.summaryNoData = m.counter("summary_no_data_total", "Summary requests for rounds without attempts")

	m.queueCapacity = m.gauge("queue_capacity", "Enrichment queue capacity")
	m.queueSize = m.gauge("queue_size", "Jobs waiting in the enrichment queue")
	m.queueUtilization = m.gauge("queue_utilization_ratio", "Enrichment queue fill ratio")
	m.queueEnqueued = m.counter("queue_enqueued_total", "Jobs enqueued")
	m.queueDequeued = m.counter("queue_dequeued_total", "Jobs dequeued")
	m.queueEnqueueErrors = m.counter("queue_enqueue_errors_total", "Jobs refused by the queue")
	m.queueInlineFallback = m.counter("queue_inline_fallback_total", "Jobs executed inline because the queue refused them")

	m.workerCount = m.gauge("worker_count", "Extractor workers in the pool")
	m.workerBusy = m.gauge("worker_busy", "Workers currently running a job")
	m.workerJobsPerSecond = m.gauge("worker_jobs_per_second", "Jobs completed per second over the last interval")
	m.workerProcessingLatency = m.histogram("worker_processing_latency_milliseconds", "Worker job latency")
	m.workerErrors = m.counter("worker_errors_total", "Jobs that ended with an error")

	m.httpRequests = m.counterVec("http_requests_total", "HTTP requests by endpoint and method", "endpoint", "method", "status_code")
	m.httpRequestDuration = m.histogramVec("http_request_duration_milliseconds", "HTTP request duration", "endpoint", "method", "status_code")

	m.errorsByComponent = m.counterVec("errors_by_component_total", "Errors by component and type", "component", "error_type")
	m.errorsByEndpoint = m.counterVec("errors_by_endpoint_total", "HTTP errors by endpoint", "endpoint", "method", "error_type")

	m.systemMemoryUsage = m.gauge("system_memory_bytes", "Heap bytes allocated")
	m.systemGoroutineCount = m.gauge("system_goroutines", "Live goroutines")
	m.systemGCPauseTime = m.histogram("system_gc_pause_milliseconds", "Average GC pause")
}

// Ingestion.

// RecordSamplesIngested adds n stored pointer samples.
func RecordSamplesIngested(n int) { globalManager.samplesIngested.Add(float64(n)) }

// RecordAttemptsIngested adds n stored attempts.
func RecordAttemptsIngested(n int) { globalManager.attemptsIngested.Add(float64(n)) }

// RecordInteractionsIngested adds n stored interactions.
func RecordInteractionsIngested(n int) { globalManager.interactionsIngested.Add(float64(n)) }

// RecordItemsRejected adds n rejected items of the given kind.
func RecordItemsRejected(kind string, n int) {
	globalManager.itemsRejected.WithLabelValues(kind).Add(float64(n))
}

// RecordBatchDuplicate counts a replayed batch.
func RecordBatchDuplicate(kind string) { globalManager.batchesDuplicate.WithLabelValues(kind).Inc() }

// Enrichment.

// RecordExtractionLatency observes one extraction.
func RecordExtractionLatency(ms float64) { globalManager.extractionLatency.Observe(ms) }

// RecordEnrichment counts an enrichment outcome (ok, degraded, failed, skipped).
func RecordEnrichment(status string) { globalManager.enrichments.WithLabelValues(status).Inc() }

// Storage.

// RecordBucketRollover counts a bucket opened after the previous one filled up.
func RecordBucketRollover(kind string) { globalManager.bucketRollovers.WithLabelValues(kind).Inc() }

// RecordRetentionPurged adds n buckets deleted by retention.
func RecordRetentionPurged(n int) { globalManager.retentionPurged.Add(float64(n)) }

// RecordRepositoryAppendLatency observes a store append.
func RecordRepositoryAppendLatency(ms float64) { globalManager.repositoryAppendLatency.Observe(ms) }

// RecordRepositoryQueryLatency observes a store query.
func RecordRepositoryQueryLatency(ms float64) { globalManager.repositoryQueryLatency.Observe(ms) }

// UpdateRepositorySubjects sets the number of subjects in the store.
func UpdateRepositorySubjects(n int) { globalManager.repositorySubjects.Set(float64(n)) }

// UpdateRepositoryShardCount sets the number of shards.
func UpdateRepositoryShardCount(n int) { globalManager.repositoryShardCount.Set(float64(n)) }

// UpdateRepositoryShardSubjects sets the subject count for one shard.
func UpdateRepositoryShardSubjects(shardID string, n int) {
	globalManager.repositoryShardSubjects.WithLabelValues(shardID).Set(float64(n))
}

// Summaries.

// RecordSummaryLatency observes a summary computation; scope is "round" or "session".
func RecordSummaryLatency(scope string, ms float64) {
	globalManager.summaryLatency.WithLabelValues(scope).Observe(ms)
}

// RecordSummaryNoData counts a round summary requested without attempts.
func RecordSummaryNoData() { globalManager.summaryNoData.Inc() }

// Queue.

func UpdateQueueCapacity(capacity int)     { globalManager.queueCapacity.Set(float64(capacity)) }
func UpdateQueueSize(size int)             { globalManager.queueSize.Set(float64(size)) }
func UpdateQueueUtilization(ratio float64) { globalManager.queueUtilization.Set(ratio) }
func RecordQueueEnqueue()                  { globalManager.queueEnqueued.Inc() }
func RecordQueueDequeue()                  { globalManager.queueDequeued.Inc() }
func RecordQueueEnqueueError()             { globalManager.queueEnqueueErrors.Inc() }
func RecordQueueInlineFallback()           { globalManager.queueInlineFallback.Inc() }

// Workers.

func UpdateWorkerCount(count int)              { globalManager.workerCount.Set(float64(count)) }
func UpdateWorkerBusy(count int)               { globalManager.workerBusy.Set(float64(count)) }
func UpdateWorkerJobsPerSecond(rate float64)   { globalManager.workerJobsPerSecond.Set(rate) }
func RecordWorkerProcessingLatency(ms float64) { globalManager.workerProcessingLatency.Observe(ms) }
func RecordWorkerError()                       { globalManager.workerErrors.Inc() }

// HTTP.

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, ms float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(ms)
}

// Errors.

// RecordErrorByComponent records an error with component and type labels.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorsByComponent.WithLabelValues(component, errorType).Inc()
}

// RecordErrorByEndpoint records an error with endpoint, method, and error type labels.
func RecordErrorByEndpoint(endpoint, method, errorType string) {
	globalManager.errorsByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
}

// System.

func UpdateSystemMemoryUsage(bytes uint64)  { globalManager.systemMemoryUsage.Set(float64(bytes)) }
func UpdateSystemGoroutineCount(count int)  { globalManager.systemGoroutineCount.Set(float64(count)) }
func RecordSystemGCPauseTime(pause float64) { globalManager.systemGCPauseTime.Observe(pause) }

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
