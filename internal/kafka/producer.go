package kafka

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/IBM/sarama"
	cloudevents "github.com/cloudevents/sdk-go/v2"
	"github.com/hyp3rd/ewrap"
	"go.uber.org/zap"

	"github.com/jittakal/kaflogcache/internal/errors"
)

// ProducerConfig contains Kafka producer configuration.
type ProducerConfig struct {
	BootstrapServers []string
	Security         SecurityConfig
	ClientID         string
	Compression      string
	RequiredAcks     string
	MaxRetries       int
}

// ProducerMetricsCollector defines metrics operations for the event producer.
type ProducerMetricsCollector interface {
	IncEventsProduced(topic string, status string)
}

// EventProducer publishes CloudEvents as JSON with ce_* headers.
type EventProducer struct {
	producer sarama.SyncProducer
	logger   *zap.Logger
	metrics  ProducerMetricsCollector

	mu     sync.RWMutex
	closed bool
}

// NewEventProducer creates a producer connected to the configured brokers.
func NewEventProducer(cfg ProducerConfig, logger *zap.Logger, metrics ProducerMetricsCollector) (*EventProducer, error) {
	saramaConfig := sarama.NewConfig()
	saramaConfig.Version = sarama.V2_8_0_0
	if cfg.ClientID != "" {
		saramaConfig.ClientID = cfg.ClientID
	}
	saramaConfig.Producer.Return.Successes = true
	saramaConfig.Producer.Return.Errors = true
	saramaConfig.Producer.RequiredAcks = requiredAcks(cfg.RequiredAcks)
	saramaConfig.Producer.Compression = compressionCodec(cfg.Compression)
	if cfg.MaxRetries > 0 {
		saramaConfig.Producer.Retry.Max = cfg.MaxRetries
	}

	if err := configureSecurity(saramaConfig, cfg.Security); err != nil {
		return nil, ewrap.Wrap(err, "failed to configure security")
	}

	producer, err := sarama.NewSyncProducer(cfg.BootstrapServers, saramaConfig)
	if err != nil {
		return nil, ewrap.Wrap(err, "failed to create Kafka producer")
	}

	p := NewEventProducerWithProducer(producer, logger, metrics)
	p.logger.Info("Kafka producer created",
		zap.Strings("bootstrap_servers", cfg.BootstrapServers),
		zap.String("security_protocol", cfg.Security.Protocol),
	)
	return p, nil
}

// NewEventProducerWithProducer creates an EventProducer on top of producer.
func NewEventProducerWithProducer(producer sarama.SyncProducer, logger *zap.Logger, metrics ProducerMetricsCollector) *EventProducer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EventProducer{producer: producer, logger: logger, metrics: metrics}
}

// ProduceEvent sends one CloudEvent to topic.
func (p *EventProducer) ProduceEvent(ctx context.Context, topic string, evt cloudevents.Event) error {
	return p.ProduceBatch(ctx, topic, []cloudevents.Event{evt})
}

// ProduceBatch sends events to topic in a single request.
func (p *EventProducer) ProduceBatch(ctx context.Context, topic string, events []cloudevents.Event) error {
	if len(events) == 0 {
		return nil
	}

	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return errors.ErrWriterClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	msgs := make([]*sarama.ProducerMessage, 0, len(events))
	for _, evt := range events {
		msg, err := newProducerMessage(topic, evt)
		if err != nil {
			return err
		}
		msgs = append(msgs, msg)
	}

	if err := p.producer.SendMessages(msgs); err != nil {
		failed := len(msgs)
		var produceErrs sarama.ProducerErrors
		if errors.As(err, &produceErrs) {
			failed = len(produceErrs)
		}
		p.count(topic, "error", failed)
		p.count(topic, "success", len(msgs)-failed)
		return ewrap.Wrap(err, "failed to send messages to Kafka").
			WithMetadata("topic", topic).
			WithMetadata("failed", failed)
	}

	p.count(topic, "success", len(msgs))
	p.logger.Debug("events produced",
		zap.String("topic", topic),
		zap.Int("count", len(msgs)),
	)
	return nil
}

func (p *EventProducer) count(topic, status string, n int) {
	if p.metrics == nil {
		return
	}
	for range n {
		p.metrics.IncEventsProduced(topic, status)
	}
}

func newProducerMessage(topic string, evt cloudevents.Event) (*sarama.ProducerMessage, error) {
	payload, err := json.Marshal(evt)
	if err != nil {
		return nil, ewrap.Wrap(err, "failed to marshal CloudEvent").
			WithMetadata("event_id", evt.ID())
	}

	key := evt.ID()
	if subject := evt.Subject(); subject != "" {
		key = subject
	}

	return &sarama.ProducerMessage{
		Topic: topic,
		Key:   sarama.StringEncoder(key),
		Value: sarama.ByteEncoder(payload),
		Headers: []sarama.RecordHeader{
			{Key: []byte("ce_specversion"), Value: []byte(evt.SpecVersion())},
			{Key: []byte("ce_type"), Value: []byte(evt.Type())},
			{Key: []byte("ce_source"), Value: []byte(evt.Source())},
			{Key: []byte("ce_id"), Value: []byte(evt.ID())},
		},
	}, nil
}

// Close closes the producer.
func (p *EventProducer) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true

	if err := p.producer.Close(); err != nil {
		return ewrap.Wrap(err, "failed to close Kafka producer")
	}
	return nil
}
