// Package pipeline assembles the write-behind log cache service:
// Kafka consumer, ingestor, double-buffer cache, flusher and storage writer.
package pipeline

import (
	"context"
	stderrors "errors"
	"strconv"
	"sync"

	"github.com/hyp3rd/ewrap"
	"go.uber.org/zap"

	"github.com/jittakal/kaflogcache/internal/cache"
	"github.com/jittakal/kaflogcache/internal/config/dto"
	"github.com/jittakal/kaflogcache/internal/flusher"
	"github.com/jittakal/kaflogcache/internal/ingest"
	"github.com/jittakal/kaflogcache/internal/kafka"
	"github.com/jittakal/kaflogcache/internal/observability"
	"github.com/jittakal/kaflogcache/internal/server"
	internalstorage "github.com/jittakal/kaflogcache/internal/storage"
	"github.com/jittakal/kaflogcache/internal/validator"
	"github.com/jittakal/kaflogcache/pkg/consumer"
	"github.com/jittakal/kaflogcache/pkg/event"
	"github.com/jittakal/kaflogcache/pkg/storage"
)

// Ensure implementation satisfies interface at compile time.
var _ server.HealthChecker = (*Pipeline)(nil)

// MetricsCollector is the metrics surface used by the ingest and flush stages.
type MetricsCollector interface {
	ingest.MetricsCollector
	flusher.MetricsCollector
}

// Components are the collaborators a Pipeline drives.
type Components struct {
	Consumer  consumer.Consumer
	Cache     *cache.DoubleBufferCache[event.Record]
	Writer    storage.Writer
	Router    storage.Router
	Policy    storage.RotationPolicy
	DLQ       consumer.DLQPublisher
	Validator event.Validator
}

// Pipeline moves log records from Kafka through the cache into storage.
type Pipeline struct {
	consumer consumer.Consumer
	cache    *cache.DoubleBufferCache[event.Record]
	ingestor *ingest.Ingestor
	flusher  *flusher.Flusher
	dlq      consumer.DLQPublisher
	writer   storage.Writer
	topics   []string
	logger   *zap.Logger

	mu      sync.RWMutex
	stopped bool
	report  cache.Report
}

// New builds a Pipeline and all of its components from cfg.
func New(
	ctx context.Context,
	cfg *dto.ApplicationConfig,
	logger *zap.Logger,
	metrics *observability.Metrics,
) (*Pipeline, error) {
	security := kafka.SecurityFromConfig(cfg.Kafka)

	kafkaConsumer, err := kafka.NewSaramaConsumer(kafka.ConsumerConfig{
		BootstrapServers:    cfg.Kafka.BootstrapServers,
		GroupID:             cfg.Kafka.Consumer.GroupID,
		Security:            security,
		AutoOffsetReset:     cfg.Kafka.Consumer.AutoOffsetReset,
		EnableAutoCommit:    cfg.Kafka.Consumer.EnableAutoCommit,
		MaxPollIntervalMS:   cfg.Kafka.Consumer.MaxPollIntervalMS,
		SessionTimeoutMS:    cfg.Kafka.Consumer.SessionTimeoutMS,
		HeartbeatIntervalMS: cfg.Kafka.Consumer.HeartbeatIntervalMS,
	}, logger, metrics)
	if err != nil {
		return nil, ewrap.Wrap(err, "failed to create consumer")
	}

	dlq, err := kafka.NewDLQPublisher(cfg.Kafka.BootstrapServers, security, kafka.DLQConfig{
		Enabled:     cfg.Kafka.DLQ.Enabled,
		TopicSuffix: cfg.Kafka.DLQ.TopicSuffix,
		MaxRetries:  cfg.Kafka.DLQ.MaxRetries,
	}, logger, metrics, cfg.Application.Name)
	if err != nil {
		_ = kafkaConsumer.Close()
		return nil, ewrap.Wrap(err, "failed to create DLQ publisher")
	}

	writer, err := internalstorage.NewWriter(ctx, cfg, logger, metrics)
	if err != nil {
		_ = kafkaConsumer.Close()
		_ = dlq.Close()
		return nil, ewrap.Wrap(err, "failed to create storage writer").
			WithMetadata("backend", cfg.Storage.Backend)
	}

	logCache := cache.New[event.Record](
		cfg.Cache.CapacityBytes(),
		cache.WithName(cfg.Cache.Name),
		cache.WithLogger(logger),
		cache.WithMetrics(metrics),
	)

	return Assemble(Components{
		Consumer:  kafkaConsumer,
		Cache:     logCache,
		Writer:    writer,
		Router:    internalstorage.NewRouterFor(cfg),
		Policy:    internalstorage.NewPolicyFor(cfg),
		DLQ:       dlq,
		Validator: validator.NewCloudEventsValidator(validator.WithLogPayload()),
	}, cfg.Kafka.Consumer.Topics, flusher.ConfigFrom(cfg), logger, metrics), nil
}

// Assemble wires already constructed components into a Pipeline.
// metrics may be nil.
func Assemble(
	components Components,
	topics []string,
	flushConfig flusher.Config,
	logger *zap.Logger,
	metrics MetricsCollector,
) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}

	var (
		ingestMetrics ingest.MetricsCollector
		flushMetrics  flusher.MetricsCollector
	)
	if metrics != nil {
		ingestMetrics, flushMetrics = metrics, metrics
	}

	flush := flusher.New(
		components.Cache,
		components.Writer,
		components.Router,
		components.Policy,
		components.DLQ,
		flushConfig,
		logger,
		flushMetrics,
	)

	return &Pipeline{
		consumer: components.Consumer,
		cache:    components.Cache,
		ingestor: ingest.New(components.Cache, components.Validator, components.DLQ, logger, ingestMetrics),
		flusher:  flush,
		dlq:      components.DLQ,
		writer:   components.Writer,
		topics:   topics,
		logger:   logger,
	}
}

// Run consumes until ctx ends or the consumer fails, then shuts down in order:
// stop consuming, close the cache, let the flusher drain it, report what was
// lost and close the remaining resources.
func (p *Pipeline) Run(ctx context.Context) error {
	if err := p.consumer.Subscribe(ctx, p.topics); err != nil {
		return ewrap.Wrap(err, "failed to subscribe to topics")
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	flushDone := make(chan error, 1)
	go func() { flushDone <- p.flusher.Run(runCtx) }()

	p.logger.Info("pipeline started", zap.Strings("topics", p.topics))

	consumeErr := p.consumer.Run(runCtx, p.ingestor)
	if consumeErr != nil {
		p.logger.Error("consumer stopped with error", zap.Error(consumeErr))
	}

	p.logger.Info("stopping pipeline")
	p.cache.Close()
	cancel()

	flushErr := <-flushDone
	if flushErr != nil {
		p.logger.Warn("flusher did not drain the cache", zap.Error(flushErr))
	}

	report := p.cache.ShutdownReport()
	p.mu.Lock()
	p.stopped = true
	p.report = report
	p.mu.Unlock()

	p.logger.Info("pipeline stopped",
		zap.Uint64("dropped", report.Dropped),
		zap.Int("residual_records", report.ResidualRecords),
	)

	return stderrors.Join(consumeErr, p.close())
}

// close releases the consumer, the DLQ publisher and the storage writer.
func (p *Pipeline) close() error {
	var errs []error
	if err := p.consumer.Close(); err != nil {
		errs = append(errs, ewrap.Wrap(err, "failed to close consumer"))
	}
	if p.dlq != nil {
		if err := p.dlq.Close(); err != nil {
			errs = append(errs, ewrap.Wrap(err, "failed to close DLQ publisher"))
		}
	}
	if err := p.writer.Close(); err != nil {
		errs = append(errs, ewrap.Wrap(err, "failed to close storage writer"))
	}
	return stderrors.Join(errs...)
}

// Report returns the cache shutdown report. It is zero until Run has returned.
func (p *Pipeline) Report() cache.Report {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.report
}

// Liveness reports whether the pipeline is still running.
func (p *Pipeline) Liveness() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return !p.stopped
}

// Readiness reports whether the consumer has joined its group and the cache
// still accepts records.
func (p *Pipeline) Readiness(ctx context.Context) bool {
	select {
	case <-p.consumer.Ready():
	case <-ctx.Done():
		return false
	default:
		return false
	}
	return !p.cache.Stats().Closed
}

// Status describes the cache for the health endpoints.
func (p *Pipeline) Status() map[string]string {
	s := p.cache.Stats()
	return map[string]string{
		"cache":            s.Name,
		"capacity_bytes":   strconv.FormatInt(s.Capacity, 10),
		"producer_records": strconv.Itoa(s.ProducerRecords),
		"producer_bytes":   strconv.FormatInt(s.ProducerBytes, 10),
		"consumer_records": strconv.Itoa(s.ConsumerRecords),
		"consumer_bytes":   strconv.FormatInt(s.ConsumerBytes, 10),
		"dropped":          strconv.FormatUint(s.Dropped, 10),
		"swaps":            strconv.FormatUint(s.Swaps, 10),
		"closed":           strconv.FormatBool(s.Closed),
	}
}
