package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/jittakal/kaflogcache/internal/errors"
	pkgcache "github.com/jittakal/kaflogcache/pkg/cache"
	"github.com/jittakal/kaflogcache/pkg/event"
)

// Ensure implementation satisfies interface at compile time.
var _ pkgcache.Pusher[event.Record] = (*DoubleBufferCache[event.Record])(nil)

// MetricsCollector defines metrics operations for the cache.
type MetricsCollector interface {
	IncCacheRecords(cache string, status string)
	IncCacheSwaps(cache string)
	ObserveCacheSwapWait(cache string, duration float64)
}

// Report is the end-of-life summary of a cache.
type Report struct {
	Dropped         uint64
	ResidualRecords int
	ResidualBytes   int64
}

// Stats is a point-in-time view of both buffers.
type Stats struct {
	Name            string
	Capacity        int64
	ProducerRecords int
	ProducerBytes   int64
	ConsumerRecords int
	ConsumerBytes   int64
	Dropped         uint64
	Swaps           uint64
	Closed          bool
}

// Option configures a DoubleBufferCache.
type Option func(*options)

type options struct {
	name    string
	logger  *zap.Logger
	metrics MetricsCollector
}

// WithName labels the cache in logs and metrics.
func WithName(name string) Option {
	return func(o *options) { o.name = name }
}

// WithLogger sets the logger receiving drop notifications and the shutdown report.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithMetrics sets the metrics collector.
func WithMetrics(metrics MetricsCollector) Option {
	return func(o *options) { o.metrics = metrics }
}

// DoubleBufferCache hands records from many producers to a single consumer
// through two bounded buffers that swap roles.
//
// Producers only ever touch the producer-facing buffer, and only while holding
// the lock for a single append. The consumer takes ownership of the other
// buffer through RequestSwap and drains it without holding the lock.
type DoubleBufferCache[T pkgcache.Sizer] struct {
	name    string
	logger  *zap.Logger
	metrics MetricsCollector

	mu        sync.Mutex
	swapReady *sync.Cond
	buffers   [2]*BoundedBuffer[T]
	producer  int // index of the producer-facing buffer
	pending   bool
	closed    bool
	swaps     uint64

	dropped atomic.Uint64
}

// New creates a cache whose two buffers each hold capacity units.
func New[T pkgcache.Sizer](capacity int64, opts ...Option) *DoubleBufferCache[T] {
	o := options{name: "default", logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}

	c := &DoubleBufferCache[T]{
		name:    o.name,
		logger:  o.logger,
		metrics: o.metrics,
		buffers: [2]*BoundedBuffer[T]{
			NewBoundedBuffer[T](capacity),
			NewBoundedBuffer[T](capacity),
		},
	}
	c.swapReady = sync.NewCond(&c.mu)
	return c
}

// Name returns the cache label.
func (c *DoubleBufferCache[T]) Name() string {
	return c.name
}

// Push appends record to the producer-facing buffer.
// A record that does not fit, or that arrives after Close, is dropped and counted.
func (c *DoubleBufferCache[T]) Push(record T) bool {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		c.recordDrop(record)
		return false
	}
	accepted := c.buffers[c.producer].Append(record)
	c.pending = true
	c.mu.Unlock()

	c.swapReady.Signal()

	if !accepted {
		c.recordDrop(record)
		return false
	}
	if c.metrics != nil {
		c.metrics.IncCacheRecords(c.name, "accepted")
	}
	return true
}

func (c *DoubleBufferCache[T]) recordDrop(record T) {
	total := c.dropped.Add(1)
	if c.metrics != nil {
		c.metrics.IncCacheRecords(c.name, "dropped")
	}
	c.logger.Debug("cache buffer full, record dropped",
		zap.String("cache", c.name),
		zap.Int64("record_size", record.Size()),
		zap.Uint64("dropped_total", total),
	)
}

// RequestSwap waits until producers have pushed since the previous swap and
// then exchanges the buffer roles. The buffer that becomes producer-facing
// starts empty.
//
// It returns ctx.Err() if ctx ends first, and errors.ErrCacheClosed once the
// cache is closed and nothing is left to hand over.
func (c *DoubleBufferCache[T]) RequestSwap(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		c.swapReady.Broadcast()
	})
	defer stop()

	start := time.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	for !c.pending {
		if c.closed {
			return errors.ErrCacheClosed
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		c.swapReady.Wait()
	}

	c.producer ^= 1
	c.buffers[c.producer].reset()
	c.pending = false
	c.swaps++

	if c.metrics != nil {
		c.metrics.IncCacheSwaps(c.name)
		c.metrics.ObserveCacheSwapWait(c.name, time.Since(start).Seconds())
	}
	return nil
}

// ConsumerView returns the buffer currently owned by the consumer.
// The result must be fetched again after every RequestSwap.
func (c *DoubleBufferCache[T]) ConsumerView() *BoundedBuffer[T] {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.buffers[c.producer^1]
}

// Release empties the consumer-facing buffer after its records were persisted.
func (c *DoubleBufferCache[T]) Release() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.buffers[c.producer^1].reset()
}

// ProducerStats reports the contents of the producer-facing buffer.
func (c *DoubleBufferCache[T]) ProducerStats() event.FileStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.buffers[c.producer].Stats()
}

// Dropped returns the number of records rejected so far.
func (c *DoubleBufferCache[T]) Dropped() uint64 {
	return c.dropped.Load()
}

// Stats returns a snapshot of both buffers and the counters.
func (c *DoubleBufferCache[T]) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	producer := c.buffers[c.producer]
	consumer := c.buffers[c.producer^1]
	return Stats{
		Name:            c.name,
		Capacity:        producer.Capacity(),
		ProducerRecords: producer.Len(),
		ProducerBytes:   producer.OccupiedSize(),
		ConsumerRecords: consumer.Len(),
		ConsumerBytes:   consumer.OccupiedSize(),
		Dropped:         c.dropped.Load(),
		Swaps:           c.swaps,
		Closed:          c.closed,
	}
}

// Close rejects further pushes and wakes a consumer blocked in RequestSwap.
func (c *DoubleBufferCache[T]) Close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	c.swapReady.Broadcast()
}

// ShutdownReport logs the dropped count together with the records still held
// by either buffer. Nothing is logged while no record has been dropped.
func (c *DoubleBufferCache[T]) ShutdownReport() Report {
	c.mu.Lock()
	report := Report{
		Dropped:         c.dropped.Load(),
		ResidualRecords: c.buffers[0].Len() + c.buffers[1].Len(),
		ResidualBytes:   c.buffers[0].OccupiedSize() + c.buffers[1].OccupiedSize(),
	}
	c.mu.Unlock()

	if report.Dropped > 0 {
		c.logger.Warn("cache buffers total lost messages",
			zap.String("cache", c.name),
			zap.Uint64("dropped", report.Dropped),
			zap.Int("left_in_buffers", report.ResidualRecords),
			zap.Int64("left_in_buffers_bytes", report.ResidualBytes),
		)
	}
	return report
}
