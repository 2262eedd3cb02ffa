// Package kafka implements Kafka consumer and producer functionality.
package kafka

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"sync"
	"time"

	"github.com/IBM/sarama"
	"github.com/hyp3rd/ewrap"
	"go.uber.org/zap"

	"github.com/jittakal/kaflogcache/internal/errors"
	"github.com/jittakal/kaflogcache/pkg/consumer"
	"github.com/jittakal/kaflogcache/pkg/event"
)

// Ensure implementation satisfies interfaces at compile time.
var (
	_ consumer.Consumer            = (*SaramaConsumer)(nil)
	_ sarama.ConsumerGroupHandler = (*groupHandler)(nil)
)

// ConsumerConfig contains Kafka consumer configuration.
type ConsumerConfig struct {
	BootstrapServers    []string
	GroupID             string
	Security            SecurityConfig
	AutoOffsetReset     string
	EnableAutoCommit    bool
	MaxPollIntervalMS   int
	SessionTimeoutMS    int
	HeartbeatIntervalMS int
}

// MetricsCollector defines metrics operations for Kafka consumer.
type MetricsCollector interface {
	IncMessagesConsumed(topic string, partition int32)
	SetConsumerLag(topic string, partition int32, lag float64)
	IncRebalances(groupID string)
	IncOffsetCommits(topic string, partition int32, status string)
	ObserveRebalanceDuration(groupID string, duration float64)
	ObserveCommitLatency(topic string, partition int32, duration float64)
	SetPartitionsAssigned(topic string, count float64)
}

// SaramaConsumer implements consumer.Consumer on a Sarama consumer group.
//
// Sarama runs one ConsumeClaim goroutine per assigned partition; each of
// them hands its messages to the handler in offset order.
type SaramaConsumer struct {
	group   sarama.ConsumerGroup
	config  ConsumerConfig
	logger  *zap.Logger
	metrics MetricsCollector

	mu     sync.RWMutex
	topics []string
	closed bool

	ready     chan struct{}
	readyOnce sync.Once
	drainOnce sync.Once
}

// NewSaramaConsumer creates a new Kafka consumer group client.
func NewSaramaConsumer(
	config ConsumerConfig,
	logger *zap.Logger,
	metrics MetricsCollector,
) (*SaramaConsumer, error) {
	saramaConfig, err := newConsumerSaramaConfig(config)
	if err != nil {
		return nil, err
	}

	group, err := sarama.NewConsumerGroup(config.BootstrapServers, config.GroupID, saramaConfig)
	if err != nil {
		return nil, ewrap.Wrap(err, "failed to create consumer group").
			WithMetadata("group_id", config.GroupID)
	}

	c := newSaramaConsumer(group, config, logger, metrics)
	c.logger.Info("kafka consumer created",
		zap.String("group_id", config.GroupID),
		zap.Strings("bootstrap_servers", config.BootstrapServers),
		zap.Int("session_timeout_ms", config.SessionTimeoutMS),
		zap.Int("max_poll_interval_ms", config.MaxPollIntervalMS),
	)
	return c, nil
}

func newSaramaConsumer(
	group sarama.ConsumerGroup,
	config ConsumerConfig,
	logger *zap.Logger,
	metrics MetricsCollector,
) *SaramaConsumer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SaramaConsumer{
		group:   group,
		config:  config,
		logger:  logger,
		metrics: metrics,
		ready:   make(chan struct{}),
	}
}

func newConsumerSaramaConfig(config ConsumerConfig) (*sarama.Config, error) {
	saramaConfig := sarama.NewConfig()
	saramaConfig.Version = sarama.V2_8_0_0
	saramaConfig.Consumer.Group.Rebalance.GroupStrategies = []sarama.BalanceStrategy{sarama.NewBalanceStrategyRoundRobin()}
	saramaConfig.Consumer.Offsets.Initial = offsetInitial(config.AutoOffsetReset)
	saramaConfig.Consumer.Offsets.AutoCommit.Enable = config.EnableAutoCommit
	saramaConfig.Consumer.Return.Errors = true

	if config.SessionTimeoutMS > 0 {
		saramaConfig.Consumer.Group.Session.Timeout = time.Duration(config.SessionTimeoutMS) * time.Millisecond
	}
	if config.HeartbeatIntervalMS > 0 {
		saramaConfig.Consumer.Group.Heartbeat.Interval = time.Duration(config.HeartbeatIntervalMS) * time.Millisecond
	}
	if config.MaxPollIntervalMS > 0 {
		saramaConfig.Consumer.MaxProcessingTime = time.Duration(config.MaxPollIntervalMS) * time.Millisecond
	}

	if err := configureSecurity(saramaConfig, config.Security); err != nil {
		return nil, ewrap.Wrap(err, "failed to configure security")
	}
	if err := saramaConfig.Validate(); err != nil {
		return nil, ewrap.Wrap(err, "invalid consumer configuration")
	}
	return saramaConfig, nil
}

// Subscribe sets the topics consumed by Run.
func (c *SaramaConsumer) Subscribe(_ context.Context, topics []string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return errors.ErrConsumerClosed
	}

	c.topics = topics
	c.logger.Info("subscribed to topics", zap.Strings("topics", topics))
	return nil
}

// Ready is closed once the first group session has been set up.
func (c *SaramaConsumer) Ready() <-chan struct{} {
	return c.ready
}

// Run joins the consumer group and keeps rejoining after every rebalance
// until ctx ends or the consumer is closed.
func (c *SaramaConsumer) Run(ctx context.Context, handler consumer.EventHandler) error {
	c.mu.RLock()
	closed, topics := c.closed, c.topics
	c.mu.RUnlock()

	if closed {
		return errors.ErrConsumerClosed
	}
	if len(topics) == 0 {
		return ewrap.New("no topics subscribed")
	}

	c.drainOnce.Do(func() { go c.drainErrors() })

	h := &groupHandler{consumer: c, handler: handler}
	for {
		if err := c.group.Consume(ctx, topics, h); err != nil {
			if stderrors.Is(err, sarama.ErrClosedConsumerGroup) {
				return nil
			}
			if stderrors.Is(err, sarama.ErrOutOfBrokers) {
				return ewrap.Wrap(errors.ErrConnectionLost, "no kafka broker reachable").
					WithMetadata("group_id", c.config.GroupID)
			}
			return ewrap.Wrap(err, "consumer group error").
				WithMetadata("group_id", c.config.GroupID)
		}
		if ctx.Err() != nil {
			c.logger.Info("consumer context cancelled")
			return nil
		}
	}
}

// drainErrors logs asynchronous group errors until the group is closed.
func (c *SaramaConsumer) drainErrors() {
	for err := range c.group.Errors() {
		c.logger.Error("consumer group error", zap.Error(err))
	}
}

// Close leaves the consumer group and releases resources.
func (c *SaramaConsumer) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}

	c.closed = true
	c.logger.Info("closing kafka consumer")

	if err := c.group.Close(); err != nil {
		c.logger.Error("error closing consumer group", zap.Error(err))
		return ewrap.Wrap(err, "failed to close consumer group")
	}

	c.logger.Info("kafka consumer closed")
	return nil
}

// groupHandler implements sarama.ConsumerGroupHandler.
type groupHandler struct {
	consumer *SaramaConsumer
	handler  consumer.EventHandler

	mu             sync.Mutex
	rebalanceStart time.Time
}

// Setup is run at the beginning of a new session, before ConsumeClaim.
func (h *groupHandler) Setup(session sarama.ConsumerGroupSession) error {
	h.mu.Lock()
	h.rebalanceStart = time.Now()
	h.mu.Unlock()

	c := h.consumer
	c.logger.Info("consumer group session setup",
		zap.String("member_id", session.MemberID()),
		zap.Int32("generation_id", session.GenerationID()),
		zap.Any("claims", session.Claims()),
	)

	if c.metrics != nil {
		c.metrics.IncRebalances(c.config.GroupID)
		for topic, partitions := range session.Claims() {
			c.metrics.SetPartitionsAssigned(topic, float64(len(partitions)))
		}
	}

	c.readyOnce.Do(func() { close(c.ready) })
	return nil
}

// Cleanup is run at the end of a session, once all ConsumeClaim goroutines have exited.
func (h *groupHandler) Cleanup(session sarama.ConsumerGroupSession) error {
	h.mu.Lock()
	start := h.rebalanceStart
	h.mu.Unlock()

	c := h.consumer
	if c.metrics != nil && !start.IsZero() {
		c.metrics.ObserveRebalanceDuration(c.config.GroupID, time.Since(start).Seconds())
	}

	c.logger.Info("consumer group session cleanup", zap.String("member_id", session.MemberID()))
	return nil
}

// ConsumeClaim feeds the messages of one partition to the handler.
func (h *groupHandler) ConsumeClaim(
	session sarama.ConsumerGroupSession,
	claim sarama.ConsumerGroupClaim,
) error {
	logger := h.consumer.logger.With(
		zap.String("topic", claim.Topic()),
		zap.Int32("partition", claim.Partition()),
	)
	logger.Info("started consuming partition", zap.Int64("initial_offset", claim.InitialOffset()))

	for {
		select {
		case message, ok := <-claim.Messages():
			if !ok {
				return nil
			}
			h.handleMessage(session, claim, message, logger)

		case <-session.Context().Done():
			logger.Info("session context done, stopping partition consumption")
			return nil
		}
	}
}

func (h *groupHandler) handleMessage(
	session sarama.ConsumerGroupSession,
	claim sarama.ConsumerGroupClaim,
	message *sarama.ConsumerMessage,
	logger *zap.Logger,
) {
	c := h.consumer
	if c.metrics != nil {
		c.metrics.IncMessagesConsumed(message.Topic, message.Partition)
		lag := claim.HighWaterMarkOffset() - message.Offset - 1
		c.metrics.SetConsumerLag(message.Topic, message.Partition, float64(max(lag, 0)))
	}

	consumed := &event.ConsumedEvent{
		Metadata: event.KafkaMetadata{
			Topic:     message.Topic,
			Partition: message.Partition,
			Offset:    message.Offset,
			Key:       message.Key,
			Timestamp: message.Timestamp,
			Headers:   extractHeaders(message.Headers),
		},
		CommitFunc: h.commitFunc(session, message),
		Raw:        message.Value,
	}

	cloudEvent, err := parseCloudEvent(message.Value)
	if err != nil {
		logger.Warn("failed to parse cloud event",
			zap.Int64("offset", message.Offset),
			zap.Error(err),
		)
		consumed.ParseErr = err
	} else {
		consumed.Event = cloudEvent
	}

	if err := h.handler.Handle(session.Context(), consumed); err != nil {
		logger.Error("event handler failed",
			zap.Int64("offset", message.Offset),
			zap.Error(err),
		)
	}
}

// commitFunc marks message as consumed. Without auto-commit the marked
// offsets are committed synchronously.
func (h *groupHandler) commitFunc(session sarama.ConsumerGroupSession, message *sarama.ConsumerMessage) func() error {
	c := h.consumer
	return func() error {
		start := time.Now()

		session.MarkMessage(message, "")
		if !c.config.EnableAutoCommit {
			session.Commit()
		}

		if c.metrics != nil {
			c.metrics.ObserveCommitLatency(message.Topic, message.Partition, time.Since(start).Seconds())
			c.metrics.IncOffsetCommits(message.Topic, message.Partition, "success")
		}
		return nil
	}
}

// parseCloudEvent decodes a message value into a CloudEvent.
// Spec version 0.1 is normalized to 1.0.
func parseCloudEvent(value []byte) (*event.CloudEvent, error) {
	var cloudEvent event.CloudEvent
	if err := json.Unmarshal(value, &cloudEvent); err != nil {
		return nil, ewrap.Wrap(err, "failed to unmarshal cloud event")
	}

	if cloudEvent.SpecVersion == "0.1" {
		cloudEvent.SpecVersion = "1.0"
	}
	return &cloudEvent, nil
}

func extractHeaders(headers []*sarama.RecordHeader) map[string]string {
	result := make(map[string]string, len(headers))
	for _, header := range headers {
		if header == nil {
			continue
		}
		result[string(header.Key)] = string(header.Value)
	}
	return result
}
