package loadgen

import (
	"context"
	"time"

	cloudevents "github.com/cloudevents/sdk-go/v2"
	"go.uber.org/zap"

	"github.com/jittakal/kaflogcache/internal/config/dto"
)

const (
	defaultInterval  = time.Second
	defaultBatchSize = 10
)

// Producer publishes batches of CloudEvents to a topic.
type Producer interface {
	ProduceBatch(ctx context.Context, topic string, events []cloudevents.Event) error
}

// Config controls the pace and volume of generated load.
type Config struct {
	Topic     string
	Interval  time.Duration
	BatchSize int
	// MaxEvents stops the runner after that many events were produced.
	// Zero means no limit.
	MaxEvents int
}

// ConfigFrom builds a Config from the loadgen configuration section.
func ConfigFrom(cfg dto.LoadGenConfig) Config {
	return Config{
		Topic:     cfg.Topic,
		Interval:  cfg.Interval(),
		BatchSize: cfg.BatchSize,
		MaxEvents: cfg.MaxEvents,
	}
}

// Runner sends generated batches to a producer on a fixed interval.
type Runner struct {
	producer  Producer
	generator *Generator
	config    Config
	logger    *zap.Logger
}

// NewRunner creates a Runner.
func NewRunner(producer Producer, generator *Generator, config Config, logger *zap.Logger) *Runner {
	if config.Interval <= 0 {
		config.Interval = defaultInterval
	}
	if config.BatchSize <= 0 {
		config.BatchSize = defaultBatchSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		producer:  producer,
		generator: generator,
		config:    config,
		logger:    logger,
	}
}

// Run produces one batch per interval until ctx ends or MaxEvents is reached.
// It returns the number of events produced. A failed batch is logged and
// does not stop the run.
func (r *Runner) Run(ctx context.Context) int {
	ticker := time.NewTicker(r.config.Interval)
	defer ticker.Stop()

	r.logger.Info("load generator started",
		zap.String("topic", r.config.Topic),
		zap.Duration("interval", r.config.Interval),
		zap.Int("batch_size", r.config.BatchSize),
	)

	produced := 0
	for {
		select {
		case <-ctx.Done():
			r.logger.Info("stopping event production", zap.Int("produced", produced))
			return produced

		case <-ticker.C:
			n := r.config.BatchSize
			if r.config.MaxEvents > 0 {
				n = min(n, r.config.MaxEvents-produced)
			}

			batch := r.generator.Batch(n)
			if err := r.producer.ProduceBatch(ctx, r.config.Topic, batch); err != nil {
				r.logger.Error("failed to produce batch",
					zap.String("topic", r.config.Topic),
					zap.Int("events", len(batch)),
					zap.Error(err),
				)
				continue
			}
			produced += len(batch)
			r.logger.Debug("produced batch", zap.Int("events", len(batch)), zap.Int("total", produced))

			if r.config.MaxEvents > 0 && produced >= r.config.MaxEvents {
				r.logger.Info("event limit reached", zap.Int("produced", produced))
				return produced
			}
		}
	}
}
