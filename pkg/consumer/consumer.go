// Package consumer defines interfaces for Kafka event consumption.
//
// A Consumer feeds every consumed message to an EventHandler from the
// goroutine that owns the message's partition, so handlers see each
// partition in offset order.
package consumer

import (
	"context"

	"github.com/jittakal/kaflogcache/pkg/event"
)

// EventHandler processes one consumed event.
type EventHandler interface {
	// Handle is called once per message. It must not block for long: the
	// partition makes no progress until it returns.
	Handle(ctx context.Context, event *event.ConsumedEvent) error
}

// HandlerFunc adapts a function to EventHandler.
type HandlerFunc func(ctx context.Context, event *event.ConsumedEvent) error

// Handle calls f.
func (f HandlerFunc) Handle(ctx context.Context, event *event.ConsumedEvent) error {
	return f(ctx, event)
}

// Consumer reads events from Kafka topics.
type Consumer interface {
	// Subscribe sets the topics consumed by Run.
	Subscribe(ctx context.Context, topics []string) error

	// Run consumes until ctx ends or the consumer is closed.
	Run(ctx context.Context, handler EventHandler) error

	// Ready is closed once the first group session has been set up.
	Ready() <-chan struct{}

	// Close closes the consumer and releases resources.
	Close() error
}

// DLQPublisher publishes failed events to a dead letter queue.
type DLQPublisher interface {
	// Publish sends an event to the DLQ with error information.
	Publish(ctx context.Context, event *event.CloudEvent, metadata event.KafkaMetadata, reason string) error

	// PublishRaw sends a message value that never decoded into an event.
	PublishRaw(ctx context.Context, value []byte, metadata event.KafkaMetadata, reason string) error

	// Close closes the publisher and releases resources.
	Close() error
}
