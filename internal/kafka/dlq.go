package kafka

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/IBM/sarama"
	"github.com/hyp3rd/ewrap"
	"go.uber.org/zap"

	"github.com/jittakal/kaflogcache/internal/errors"
	"github.com/jittakal/kaflogcache/pkg/consumer"
	"github.com/jittakal/kaflogcache/pkg/event"
)

// Ensure implementation satisfies interface at compile time.
var _ consumer.DLQPublisher = (*DLQPublisher)(nil)

// Failure reasons attached to dead-lettered events.
const (
	ReasonValidationFailed = "validation_failed"
	ReasonParseFailed      = "parse_failed"
	ReasonStorageFailed    = "storage_failed"
)

// DLQEvent is the envelope published to the dead letter queue.
type DLQEvent struct {
	OriginalEvent     json.RawMessage `json:"original_event"`
	OriginalTopic     string          `json:"original_topic"`
	OriginalPartition int32           `json:"original_partition"`
	OriginalOffset    int64           `json:"original_offset"`
	FailureReason     string          `json:"failure_reason"`
	FailureTimestamp  time.Time       `json:"failure_timestamp"`
	ProcessorID       string          `json:"processor_id"`
}

// DLQConfig contains DLQ configuration.
type DLQConfig struct {
	Enabled     bool
	TopicSuffix string
	MaxRetries  int
}

// DLQMetricsCollector defines metrics operations for DLQ publishing.
type DLQMetricsCollector interface {
	IncDLQMessages(topic string, reason string, status string)
}

// DLQPublisher publishes failed events to <topic><suffix>.
// A disabled publisher accepts every event and sends nothing.
type DLQPublisher struct {
	producer    sarama.SyncProducer
	config      DLQConfig
	logger      *zap.Logger
	metrics     DLQMetricsCollector
	processorID string

	mu     sync.RWMutex
	closed bool
}

// NewDLQPublisher creates a DLQ publisher with its own idempotent producer.
func NewDLQPublisher(
	bootstrapServers []string,
	security SecurityConfig,
	dlqConfig DLQConfig,
	logger *zap.Logger,
	metrics DLQMetricsCollector,
	processorID string,
) (*DLQPublisher, error) {
	if !dlqConfig.Enabled {
		return NewDLQPublisherWithProducer(nil, dlqConfig, logger, metrics, processorID), nil
	}

	saramaConfig := sarama.NewConfig()
	saramaConfig.Version = sarama.V2_8_0_0
	saramaConfig.Producer.RequiredAcks = sarama.WaitForAll
	saramaConfig.Producer.Retry.Max = max(dlqConfig.MaxRetries, 1)
	saramaConfig.Producer.Return.Successes = true
	saramaConfig.Producer.Return.Errors = true
	saramaConfig.Producer.Compression = sarama.CompressionSnappy
	saramaConfig.Producer.Idempotent = true
	saramaConfig.Net.MaxOpenRequests = 1

	if err := configureSecurity(saramaConfig, security); err != nil {
		return nil, ewrap.Wrap(err, "failed to configure security")
	}

	producer, err := sarama.NewSyncProducer(bootstrapServers, saramaConfig)
	if err != nil {
		return nil, ewrap.Wrap(err, "failed to create DLQ producer")
	}

	p := NewDLQPublisherWithProducer(producer, dlqConfig, logger, metrics, processorID)
	p.logger.Info("DLQ publisher created",
		zap.Strings("bootstrap_servers", bootstrapServers),
		zap.String("topic_suffix", dlqConfig.TopicSuffix),
	)
	return p, nil
}

// NewDLQPublisherWithProducer creates a DLQ publisher on top of producer.
func NewDLQPublisherWithProducer(
	producer sarama.SyncProducer,
	dlqConfig DLQConfig,
	logger *zap.Logger,
	metrics DLQMetricsCollector,
	processorID string,
) *DLQPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if !dlqConfig.Enabled {
		logger.Info("DLQ is disabled")
	}
	return &DLQPublisher{
		producer:    producer,
		config:      dlqConfig,
		logger:      logger,
		metrics:     metrics,
		processorID: processorID,
	}
}

// Enabled reports whether events are actually published.
func (p *DLQPublisher) Enabled() bool {
	return p.config.Enabled && p.producer != nil
}

// Publish publishes a failed event to the DLQ.
func (p *DLQPublisher) Publish(
	ctx context.Context,
	cloudEvent *event.CloudEvent,
	metadata event.KafkaMetadata,
	reason string,
) error {
	if !p.Enabled() {
		return nil
	}

	eventData, err := json.Marshal(cloudEvent)
	if err != nil {
		return ewrap.Wrap(err, "failed to marshal event")
	}

	var key string
	if cloudEvent != nil {
		key = cloudEvent.ID
	}
	return p.publish(ctx, eventData, key, metadata, reason)
}

// PublishRaw publishes a message value that could not be decoded.
// Values that are not valid JSON are embedded as a JSON string.
func (p *DLQPublisher) PublishRaw(
	ctx context.Context,
	value []byte,
	metadata event.KafkaMetadata,
	reason string,
) error {
	if !p.Enabled() {
		return nil
	}

	original := json.RawMessage(value)
	if !json.Valid(value) {
		quoted, err := json.Marshal(string(value))
		if err != nil {
			return ewrap.Wrap(err, "failed to marshal raw value")
		}
		original = quoted
	}
	return p.publish(ctx, original, string(metadata.Key), metadata, reason)
}

func (p *DLQPublisher) publish(
	ctx context.Context,
	original json.RawMessage,
	key string,
	metadata event.KafkaMetadata,
	reason string,
) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return errors.ErrWriterClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	dlqTopic := metadata.Topic + p.config.TopicSuffix

	dlqData, err := json.Marshal(DLQEvent{
		OriginalEvent:     original,
		OriginalTopic:     metadata.Topic,
		OriginalPartition: metadata.Partition,
		OriginalOffset:    metadata.Offset,
		FailureReason:     reason,
		FailureTimestamp:  time.Now().UTC(),
		ProcessorID:       p.processorID,
	})
	if err != nil {
		return ewrap.Wrap(err, "failed to marshal DLQ event")
	}

	msg := &sarama.ProducerMessage{
		Topic: dlqTopic,
		Value: sarama.ByteEncoder(dlqData),
		Headers: []sarama.RecordHeader{
			{Key: []byte("failure_reason"), Value: []byte(reason)},
			{Key: []byte("original_topic"), Value: []byte(metadata.Topic)},
			{Key: []byte("processor_id"), Value: []byte(p.processorID)},
		},
		Timestamp: time.Now(),
	}
	if key != "" {
		msg.Key = sarama.StringEncoder(key)
	}

	partition, offset, err := p.producer.SendMessage(msg)
	if err != nil {
		p.incMessages(metadata.Topic, reason, "error")
		p.logger.Error("failed to publish to DLQ",
			zap.String("dlq_topic", dlqTopic),
			zap.String("key", key),
			zap.Error(err),
		)
		return ewrap.Wrap(err, "failed to send message to DLQ").
			WithMetadata("dlq_topic", dlqTopic)
	}

	p.incMessages(metadata.Topic, reason, "success")
	p.logger.Info("published event to DLQ",
		zap.String("dlq_topic", dlqTopic),
		zap.Int32("partition", partition),
		zap.Int64("offset", offset),
		zap.String("key", key),
		zap.String("reason", reason),
	)
	return nil
}

func (p *DLQPublisher) incMessages(topic, reason, status string) {
	if p.metrics != nil {
		p.metrics.IncDLQMessages(topic, reason, status)
	}
}

// Close closes the DLQ publisher.
func (p *DLQPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true

	if p.producer == nil {
		return nil
	}

	p.logger.Info("closing DLQ publisher")
	if err := p.producer.Close(); err != nil {
		p.logger.Error("error closing producer", zap.Error(err))
		return ewrap.Wrap(err, "failed to close DLQ producer")
	}
	return nil
}
