// Package flusher is the single consumer of the write-behind cache.
//
// The Flusher decides when to swap the cache buffers, persists the swapped
// records one partition batch at a time and commits each batch's last
// offset once the batch is stored or dead-lettered.
package flusher

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/jittakal/kaflogcache/internal/cache"
	"github.com/jittakal/kaflogcache/internal/config/dto"
	"github.com/jittakal/kaflogcache/internal/errors"
	"github.com/jittakal/kaflogcache/internal/kafka"
	"github.com/jittakal/kaflogcache/pkg/consumer"
	"github.com/jittakal/kaflogcache/pkg/event"
	"github.com/jittakal/kaflogcache/pkg/storage"
)

const (
	defaultFlushInterval = 30 * time.Second
	defaultCheckInterval = time.Second
	defaultDrainTimeout  = 30 * time.Second
	defaultUploads       = 4
)

// Batch outcomes reported through MetricsCollector.
const (
	StatusStored       = "stored"
	StatusDeadLettered = "dead_lettered"
)

// MetricsCollector defines metrics operations for the flusher.
type MetricsCollector interface {
	ObserveFlushDuration(cache string, duration float64)
	IncFlushBatches(topic string, partition int32, status string)
	SetCacheOccupancy(cache string, role string, bytes float64)
	SetCacheDropped(cache string, dropped float64)
}

// Config controls when and how the flusher persists the cache.
type Config struct {
	Format               event.FileFormat
	FlushInterval        time.Duration
	CheckInterval        time.Duration
	MaxConcurrentUploads int
	DrainTimeout         time.Duration
}

// ConfigFrom builds a Config from the application configuration.
func ConfigFrom(cfg *dto.ApplicationConfig) Config {
	return Config{
		Format:               event.ParseFileFormat(cfg.Storage.Format),
		FlushInterval:        cfg.Processing.FlushInterval(),
		CheckInterval:        cfg.Processing.FlushCheckInterval(),
		MaxConcurrentUploads: cfg.Processing.MaxConcurrentUploads,
		DrainTimeout:         cfg.Processing.DrainTimeout(),
	}
}

func (c Config) withDefaults() Config {
	if c.Format == "" {
		c.Format = event.FormatParquet
	}
	if c.FlushInterval <= 0 {
		c.FlushInterval = defaultFlushInterval
	}
	if c.CheckInterval <= 0 {
		c.CheckInterval = defaultCheckInterval
	}
	if c.MaxConcurrentUploads <= 0 {
		c.MaxConcurrentUploads = defaultUploads
	}
	if c.DrainTimeout <= 0 {
		c.DrainTimeout = defaultDrainTimeout
	}
	return c
}

// Flusher drains a DoubleBufferCache into a storage.Writer.
// Only one Flusher may run against a cache.
type Flusher struct {
	cache   *cache.DoubleBufferCache[event.Record]
	writer  storage.Writer
	router  storage.Router
	policy  storage.RotationPolicy
	dlq     consumer.DLQPublisher
	config  Config
	logger  *zap.Logger
	metrics MetricsCollector
	now     func() time.Time
}

// New creates a Flusher. dlq and metrics may be nil.
func New(
	c *cache.DoubleBufferCache[event.Record],
	writer storage.Writer,
	router storage.Router,
	policy storage.RotationPolicy,
	dlq consumer.DLQPublisher,
	config Config,
	logger *zap.Logger,
	metrics MetricsCollector,
) *Flusher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Flusher{
		cache:   c,
		writer:  writer,
		router:  router,
		policy:  policy,
		dlq:     dlq,
		config:  config.withDefaults(),
		logger:  logger.With(zap.String("cache", c.Name())),
		metrics: metrics,
		now:     time.Now,
	}
}

// Run flushes the cache whenever the rotation policy fires or the flush
// interval has elapsed, until ctx ends. It then drains the cache until it
// is closed or the drain timeout expires.
func (f *Flusher) Run(ctx context.Context) error {
	ticker := time.NewTicker(f.config.CheckInterval)
	defer ticker.Stop()

	f.logger.Info("flusher started",
		zap.Duration("flush_interval", f.config.FlushInterval),
		zap.Duration("check_interval", f.config.CheckInterval),
		zap.Int("max_concurrent_uploads", f.config.MaxConcurrentUploads),
	)

	lastFlush := f.now()
	for {
		select {
		case <-ctx.Done():
			return f.drain(ctx)

		case <-ticker.C:
			if !f.due(lastFlush) {
				continue
			}
			if err := f.cache.RequestSwap(ctx); err != nil {
				if errors.Is(err, errors.ErrCacheClosed) {
					return nil
				}
				return f.drain(ctx)
			}
			f.flush(context.WithoutCancel(ctx))
			lastFlush = f.now()
		}
	}
}

// due reports whether the producer-facing buffer should be swapped out.
func (f *Flusher) due(lastFlush time.Time) bool {
	stats := f.cache.ProducerStats()
	if stats.RecordCount == 0 {
		return false
	}
	if f.policy != nil && f.policy.ShouldRotate(stats) {
		return true
	}
	return f.now().Sub(lastFlush) >= f.config.FlushInterval
}

// drain swaps and flushes until the cache reports it is closed and empty.
func (f *Flusher) drain(ctx context.Context) error {
	drainCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), f.config.DrainTimeout)
	defer cancel()

	f.logger.Info("draining cache", zap.Duration("timeout", f.config.DrainTimeout))
	for {
		err := f.cache.RequestSwap(drainCtx)
		if errors.Is(err, errors.ErrCacheClosed) {
			f.logger.Info("cache drained")
			return nil
		}
		if err != nil {
			f.logger.Warn("cache drain interrupted", zap.Error(err))
			return err
		}
		f.flush(drainCtx)
	}
}

type batch struct {
	partition event.PartitionID
	records   []event.Record
}

// groupByPartition splits records into per-partition batches. Batches come
// out in order of first appearance and keep the records' relative order.
func groupByPartition(records []event.Record) []*batch {
	index := make(map[event.PartitionID]*batch)
	var batches []*batch
	for _, record := range records {
		pid := record.Partition()
		b, ok := index[pid]
		if !ok {
			b = &batch{partition: pid}
			index[pid] = b
			batches = append(batches, b)
		}
		b.records = append(b.records, record)
	}
	return batches
}

// flush persists the consumer view and releases it.
func (f *Flusher) flush(ctx context.Context) {
	start := f.now()
	view := f.cache.ConsumerView()
	stats := view.Stats()

	batches := groupByPartition(view.Records())

	var g errgroup.Group
	g.SetLimit(f.config.MaxConcurrentUploads)
	for _, b := range batches {
		g.Go(func() error {
			f.writeBatch(ctx, b)
			return nil
		})
	}
	_ = g.Wait()

	f.cache.Release()

	elapsed := f.now().Sub(start)
	f.logger.Info("flushed cache buffer",
		zap.Int("records", stats.RecordCount),
		zap.Int64("bytes", stats.SizeBytes),
		zap.Int("batches", len(batches)),
		zap.Duration("duration", elapsed),
	)

	if f.metrics != nil {
		f.metrics.ObserveFlushDuration(f.cache.Name(), elapsed.Seconds())
		f.reportOccupancy()
	}
}

func (f *Flusher) reportOccupancy() {
	s := f.cache.Stats()
	f.metrics.SetCacheOccupancy(s.Name, "producer", float64(s.ProducerBytes))
	f.metrics.SetCacheOccupancy(s.Name, "consumer", float64(s.ConsumerBytes))
	f.metrics.SetCacheDropped(s.Name, float64(s.Dropped))
}

// writeBatch stores one partition batch. A batch that cannot be stored is
// dead-lettered record by record. Either way the batch's last offset is
// committed.
func (f *Flusher) writeBatch(ctx context.Context, b *batch) {
	first := b.records[0]
	specVersion := ""
	if first.Event != nil {
		specVersion = first.Event.SpecVersion
	}
	path := f.router.Route(b.partition, first.GetEventTimeUnix(), specVersion)

	logger := f.logger.With(
		zap.String("topic", b.partition.Topic),
		zap.Int32("partition", b.partition.Partition),
	)

	written, err := f.writer.Write(ctx, b.records, path, f.config.Format)
	last := b.records[len(b.records)-1]

	status := StatusStored
	if err != nil {
		status = StatusDeadLettered
		err = &errors.ProcessingError{
			PartitionID: b.partition,
			Offset:      last.Offset,
			EventID:     eventID(last),
			Err:         err,
		}
		logger.Error("failed to write batch to storage",
			zap.String("path", path),
			zap.Int("records", len(b.records)),
			zap.Bool("retryable", errors.IsRetryable(err)),
			zap.Error(err),
		)
		f.deadLetter(ctx, b, logger)
	} else {
		logger.Debug("wrote batch to storage",
			zap.String("path", path),
			zap.Int("records", len(b.records)),
			zap.Int64("bytes", written),
		)
	}

	if f.metrics != nil {
		f.metrics.IncFlushBatches(b.partition.Topic, b.partition.Partition, status)
	}

	if last.Commit == nil {
		return
	}
	if err := last.Commit(); err != nil {
		logger.Error("failed to commit offset",
			zap.Error(&errors.CommitError{PartitionID: b.partition, Offset: last.Offset, Err: err}),
		)
	}
}

func eventID(record event.Record) string {
	if record.Event == nil {
		return ""
	}
	return record.Event.ID
}

func (f *Flusher) deadLetter(ctx context.Context, b *batch, logger *zap.Logger) {
	if f.dlq == nil {
		return
	}
	for _, record := range b.records {
		if err := f.dlq.Publish(ctx, record.Event, record.Kafka, kafka.ReasonStorageFailed); err != nil {
			logger.Error("failed to dead-letter record",
				zap.Int64("offset", record.Offset),
				zap.Error(err),
			)
		}
	}
}
