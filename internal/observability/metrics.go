package observability

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics.
type Metrics struct {
	// Consumer metrics
	MessagesConsumed   *prometheus.CounterVec
	ConsumerLag        *prometheus.GaugeVec
	OffsetCommits      *prometheus.CounterVec
	Rebalances         *prometheus.CounterVec
	RebalanceDuration  *prometheus.HistogramVec
	PartitionsAssigned *prometheus.GaugeVec
	CommitLatency      *prometheus.HistogramVec

	// Cache metrics
	CacheRecords   *prometheus.CounterVec
	CacheSwaps     *prometheus.CounterVec
	CacheSwapWait  *prometheus.HistogramVec
	CacheOccupancy *prometheus.GaugeVec
	CacheDropped   *prometheus.GaugeVec

	// Processing metrics
	EventsProcessed    *prometheus.CounterVec
	ProcessingDuration *prometheus.HistogramVec
	DLQMessages        *prometheus.CounterVec
	FlushDuration      *prometheus.HistogramVec
	FlushBatches       *prometheus.CounterVec

	// Storage metrics
	FilesWritten         *prometheus.CounterVec
	FileWriteDuration    *prometheus.HistogramVec
	StorageWriteDuration *prometheus.HistogramVec
	FileSize             *prometheus.HistogramVec
	StorageErrors        *prometheus.CounterVec

	// Load generator metrics
	EventsProduced *prometheus.CounterVec
}

// NewMetrics creates and registers all Prometheus metrics.
func NewMetrics(registry prometheus.Registerer) *Metrics {
	factory := promauto.With(registry)

	return &Metrics{
		// Consumer metrics
		MessagesConsumed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kafka_messages_consumed_total",
				Help: "Total number of messages consumed from Kafka",
			},
			[]string{"topic", "partition"},
		),
		ConsumerLag: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "kafka_consumer_lag",
				Help: "Current consumer lag",
			},
			[]string{"topic", "partition"},
		),
		OffsetCommits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kafka_offset_commit_total",
				Help: "Total number of offset commits",
			},
			[]string{"topic", "partition", "status"},
		),
		Rebalances: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kafka_rebalance_total",
				Help: "Total number of consumer group rebalances",
			},
			[]string{"group"},
		),
		RebalanceDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "kafka_rebalance_duration_seconds",
				Help:    "Duration of consumer group rebalances",
				Buckets: []float64{0.1, 0.5, 1.0, 2.0, 5.0, 10.0, 30.0, 60.0},
			},
			[]string{"group"},
		),
		PartitionsAssigned: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "kafka_partitions_assigned",
				Help: "Number of partitions currently assigned to this consumer",
			},
			[]string{"topic"},
		),
		CommitLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "kafka_commit_latency_seconds",
				Help:    "Latency of offset commit operations",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
			},
			[]string{"topic", "partition"},
		),

		// Cache metrics
		CacheRecords: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cache_records_total",
				Help: "Total number of records pushed into the cache by outcome",
			},
			[]string{"cache", "status"},
		),
		CacheSwaps: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cache_swaps_total",
				Help: "Total number of buffer role swaps",
			},
			[]string{"cache"},
		),
		CacheSwapWait: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "cache_swap_wait_seconds",
				Help:    "Time the consumer waited for a swap to become possible",
				Buckets: []float64{0.0001, 0.001, 0.01, 0.1, 0.5, 1.0, 5.0, 30.0},
			},
			[]string{"cache"},
		),
		CacheOccupancy: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "cache_occupancy_bytes",
				Help: "Bytes currently held by a cache buffer",
			},
			[]string{"cache", "role"},
		),
		CacheDropped: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "cache_dropped_records",
				Help: "Records dropped by the cache as of its shutdown report",
			},
			[]string{"cache"},
		),

		// Processing metrics
		EventsProcessed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "events_processed_total",
				Help: "Total number of events processed",
			},
			[]string{"topic", "partition", "status"},
		),
		ProcessingDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "processing_duration_seconds",
				Help:    "Duration of event processing operations",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"topic", "operation"},
		),
		DLQMessages: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dlq_messages_total",
				Help: "Total number of messages published to the dead letter queue",
			},
			[]string{"topic", "reason", "status"},
		),
		FlushDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "flush_duration_seconds",
				Help:    "Duration of persisting one consumer-side buffer",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"cache"},
		),
		FlushBatches: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "flush_batches_total",
				Help: "Total number of per-partition batches flushed to storage",
			},
			[]string{"topic", "partition", "status"},
		),

		// Storage metrics
		FilesWritten: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "files_written_total",
				Help: "Total number of files written to storage",
			},
			[]string{"topic", "partition", "format", "status"},
		),
		FileWriteDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "file_write_duration_seconds",
				Help:    "Duration of file write operations",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"backend", "format"},
		),
		StorageWriteDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "storage_write_duration_seconds",
				Help:    "Duration of complete storage write operations including encoding",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"topic", "partition"},
		),
		FileSize: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "file_size_bytes",
				Help:    "Size of files written to storage",
				Buckets: prometheus.ExponentialBuckets(1024, 4, 10), // 1KB to 256MB
			},
			[]string{"topic", "partition", "format"},
		),
		StorageErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "storage_errors_total",
				Help: "Total number of storage errors",
			},
			[]string{"backend", "error_type"},
		),

		// Load generator metrics
		EventsProduced: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "loadgen_events_produced_total",
				Help: "Total number of log events produced by the load generator",
			},
			[]string{"topic", "status"},
		),
	}
}

func partitionLabel(partition int32) string {
	return strconv.FormatInt(int64(partition), 10)
}

// IncMessagesConsumed increments messages consumed counter.
func (m *Metrics) IncMessagesConsumed(topic string, partition int32) {
	m.MessagesConsumed.WithLabelValues(topic, partitionLabel(partition)).Inc()
}

// SetConsumerLag sets the lag gauge for a partition.
func (m *Metrics) SetConsumerLag(topic string, partition int32, lag float64) {
	m.ConsumerLag.WithLabelValues(topic, partitionLabel(partition)).Set(lag)
}

// IncRebalances increments rebalances counter.
func (m *Metrics) IncRebalances(groupID string) {
	m.Rebalances.WithLabelValues(groupID).Inc()
}

// IncOffsetCommits increments offset commits counter.
func (m *Metrics) IncOffsetCommits(topic string, partition int32, status string) {
	m.OffsetCommits.WithLabelValues(topic, partitionLabel(partition), status).Inc()
}

// ObserveRebalanceDuration observes rebalance duration.
func (m *Metrics) ObserveRebalanceDuration(groupID string, duration float64) {
	m.RebalanceDuration.WithLabelValues(groupID).Observe(duration)
}

// ObserveCommitLatency observes commit latency.
func (m *Metrics) ObserveCommitLatency(topic string, partition int32, duration float64) {
	m.CommitLatency.WithLabelValues(topic, partitionLabel(partition)).Observe(duration)
}

// SetPartitionsAssigned sets partitions assigned gauge.
func (m *Metrics) SetPartitionsAssigned(topic string, count float64) {
	m.PartitionsAssigned.WithLabelValues(topic).Set(count)
}

// IncCacheRecords counts a push outcome ("accepted" or "dropped").
func (m *Metrics) IncCacheRecords(cache string, status string) {
	m.CacheRecords.WithLabelValues(cache, status).Inc()
}

// IncCacheSwaps increments the swap counter.
func (m *Metrics) IncCacheSwaps(cache string) {
	m.CacheSwaps.WithLabelValues(cache).Inc()
}

// ObserveCacheSwapWait observes how long a swap request blocked.
func (m *Metrics) ObserveCacheSwapWait(cache string, duration float64) {
	m.CacheSwapWait.WithLabelValues(cache).Observe(duration)
}

// SetCacheOccupancy sets the occupied bytes of the producer or consumer buffer.
func (m *Metrics) SetCacheOccupancy(cache string, role string, bytes float64) {
	m.CacheOccupancy.WithLabelValues(cache, role).Set(bytes)
}

// SetCacheDropped records the dropped total reported at shutdown.
func (m *Metrics) SetCacheDropped(cache string, dropped float64) {
	m.CacheDropped.WithLabelValues(cache).Set(dropped)
}

// IncEventsProcessed increments the processed events counter.
func (m *Metrics) IncEventsProcessed(topic string, partition int32, status string) {
	m.EventsProcessed.WithLabelValues(topic, partitionLabel(partition), status).Inc()
}

// ObserveProcessingDuration observes the duration of a processing operation.
func (m *Metrics) ObserveProcessingDuration(topic string, operation string, duration float64) {
	m.ProcessingDuration.WithLabelValues(topic, operation).Observe(duration)
}

// IncDLQMessages counts a dead letter publish attempt.
func (m *Metrics) IncDLQMessages(topic string, reason string, status string) {
	m.DLQMessages.WithLabelValues(topic, reason, status).Inc()
}

// ObserveFlushDuration observes the time spent flushing a consumer-side buffer.
func (m *Metrics) ObserveFlushDuration(cache string, duration float64) {
	m.FlushDuration.WithLabelValues(cache).Observe(duration)
}

// IncFlushBatches counts a flushed partition batch.
func (m *Metrics) IncFlushBatches(topic string, partition int32, status string) {
	m.FlushBatches.WithLabelValues(topic, partitionLabel(partition), status).Inc()
}

// IncFilesWritten increments files written counter.
func (m *Metrics) IncFilesWritten(topic string, partition int32, format string, status string) {
	m.FilesWritten.WithLabelValues(topic, partitionLabel(partition), format, status).Inc()
}

// ObserveFileWriteDuration observes the backend write duration.
func (m *Metrics) ObserveFileWriteDuration(backend string, format string, duration float64) {
	m.FileWriteDuration.WithLabelValues(backend, format).Observe(duration)
}

// ObserveFileSize observes file size.
func (m *Metrics) ObserveFileSize(topic string, partition int32, format string, size float64) {
	m.FileSize.WithLabelValues(topic, partitionLabel(partition), format).Observe(size)
}

// ObserveStorageWriteDuration observes storage write duration.
func (m *Metrics) ObserveStorageWriteDuration(topic string, partition int32, duration float64) {
	m.StorageWriteDuration.WithLabelValues(topic, partitionLabel(partition)).Observe(duration)
}

// IncStorageErrors increments storage errors counter.
func (m *Metrics) IncStorageErrors(backend string, operation string) {
	m.StorageErrors.WithLabelValues(backend, operation).Inc()
}

// IncEventsProduced counts a load generator publish.
func (m *Metrics) IncEventsProduced(topic string, status string) {
	m.EventsProduced.WithLabelValues(topic, status).Inc()
}
