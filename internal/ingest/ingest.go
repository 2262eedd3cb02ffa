// Package ingest turns consumed Kafka messages into cache records.
//
// An Ingestor runs on the consumer goroutine that owns a partition, which
// makes each of those goroutines a producer into the write-behind cache.
package ingest

import (
	"context"
	"time"

	"github.com/hyp3rd/ewrap"
	"go.uber.org/zap"

	"github.com/jittakal/kaflogcache/internal/errors"
	"github.com/jittakal/kaflogcache/internal/kafka"
	pkgcache "github.com/jittakal/kaflogcache/pkg/cache"
	"github.com/jittakal/kaflogcache/pkg/consumer"
	"github.com/jittakal/kaflogcache/pkg/event"
)

// Ensure implementation satisfies interface at compile time.
var _ consumer.EventHandler = (*Ingestor)(nil)

// Processing outcomes reported through MetricsCollector.
const (
	StatusAccepted    = "accepted"
	StatusDropped     = "dropped"
	StatusInvalid     = "invalid"
	StatusParseFailed = "parse_failed"
)

// MetricsCollector defines metrics operations for ingestion.
type MetricsCollector interface {
	IncEventsProcessed(topic string, partition int32, status string)
	ObserveProcessingDuration(topic string, operation string, duration float64)
}

// Ingestor validates consumed events and pushes the valid ones into a cache.
// Events that cannot be cached are dead-lettered and committed right away.
type Ingestor struct {
	cache     pkgcache.Pusher[event.Record]
	validator event.Validator
	dlq       consumer.DLQPublisher
	logger    *zap.Logger
	metrics   MetricsCollector
	now       func() time.Time
}

// New creates an Ingestor. dlq and metrics may be nil.
func New(
	cache pkgcache.Pusher[event.Record],
	validator event.Validator,
	dlq consumer.DLQPublisher,
	logger *zap.Logger,
	metrics MetricsCollector,
) *Ingestor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Ingestor{
		cache:     cache,
		validator: validator,
		dlq:       dlq,
		logger:    logger,
		metrics:   metrics,
		now:       time.Now,
	}
}

// Handle processes one consumed event.
//
// Events the validator rejects as invalid are dead-lettered and committed.
// Any other validator failure is returned and the event is left uncommitted.
// Accepted records are committed later by the flusher, once persisted.
// A record the cache rejects is counted and left behind: its offset is
// covered by the next commit on the same partition.
func (i *Ingestor) Handle(ctx context.Context, consumed *event.ConsumedEvent) error {
	start := i.now()
	meta := consumed.Metadata
	defer func() {
		if i.metrics != nil {
			i.metrics.ObserveProcessingDuration(meta.Topic, "ingest", i.now().Sub(start).Seconds())
		}
	}()

	if consumed.ParseErr != nil {
		i.count(meta, StatusParseFailed)
		if err := i.deadLetterRaw(ctx, consumed); err != nil {
			return err
		}
		return i.commit(consumed)
	}

	if err := i.validator.Validate(consumed.Event); err != nil {
		if !errors.Is(err, errors.ErrInvalidEvent) {
			return ewrap.Wrap(err, "failed to validate event").
				WithMetadata("topic", meta.Topic).
				WithMetadata("offset", meta.Offset)
		}
		i.logger.Warn("invalid cloud event",
			zap.String("topic", meta.Topic),
			zap.Int32("partition", meta.Partition),
			zap.Int64("offset", meta.Offset),
			zap.Error(err),
		)
		i.count(meta, StatusInvalid)
		if err := i.deadLetter(ctx, consumed); err != nil {
			return err
		}
		return i.commit(consumed)
	}

	record := event.Record{
		Event:       consumed.Event,
		Kafka:       meta,
		Offset:      meta.Offset,
		ProcessedAt: i.now(),
		Commit:      consumed.CommitFunc,
	}

	if !i.cache.Push(record) {
		i.count(meta, StatusDropped)
		return nil
	}
	i.count(meta, StatusAccepted)
	return nil
}

func (i *Ingestor) deadLetter(ctx context.Context, consumed *event.ConsumedEvent) error {
	if i.dlq == nil {
		return nil
	}
	if err := i.dlq.Publish(ctx, consumed.Event, consumed.Metadata, kafka.ReasonValidationFailed); err != nil {
		return ewrap.Wrap(err, "failed to dead-letter invalid event").
			WithMetadata("topic", consumed.Metadata.Topic).
			WithMetadata("offset", consumed.Metadata.Offset)
	}
	return nil
}

func (i *Ingestor) deadLetterRaw(ctx context.Context, consumed *event.ConsumedEvent) error {
	if i.dlq == nil {
		return nil
	}
	if err := i.dlq.PublishRaw(ctx, consumed.Raw, consumed.Metadata, kafka.ReasonParseFailed); err != nil {
		return ewrap.Wrap(err, "failed to dead-letter unparsable message").
			WithMetadata("topic", consumed.Metadata.Topic).
			WithMetadata("offset", consumed.Metadata.Offset)
	}
	return nil
}

func (i *Ingestor) commit(consumed *event.ConsumedEvent) error {
	if consumed.CommitFunc == nil {
		return nil
	}
	if err := consumed.CommitFunc(); err != nil {
		return &errors.CommitError{
			PartitionID: event.PartitionID{Topic: consumed.Metadata.Topic, Partition: consumed.Metadata.Partition},
			Offset:      consumed.Metadata.Offset,
			Err:         err,
		}
	}
	return nil
}

func (i *Ingestor) count(meta event.KafkaMetadata, status string) {
	if i.metrics != nil {
		i.metrics.IncEventsProcessed(meta.Topic, meta.Partition, status)
	}
}
