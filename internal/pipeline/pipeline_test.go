package pipeline

import (
	"context"
	stderrors "errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/jittakal/kaflogcache/internal/cache"
	"github.com/jittakal/kaflogcache/internal/flusher"
	internalstorage "github.com/jittakal/kaflogcache/internal/storage"
	"github.com/jittakal/kaflogcache/internal/validator"
	"github.com/jittakal/kaflogcache/pkg/consumer"
	"github.com/jittakal/kaflogcache/pkg/event"
)

// fakeConsumer hands a fixed set of messages to the handler and then waits
// for ctx to end, or fails with runErr once the messages are delivered.
type fakeConsumer struct {
	messages []*event.ConsumedEvent
	runErr   error

	ready      chan struct{}
	mu         sync.Mutex
	subscribed []string
	closed     bool
}

func newFakeConsumer(messages ...*event.ConsumedEvent) *fakeConsumer {
	return &fakeConsumer{messages: messages, ready: make(chan struct{})}
}

func (c *fakeConsumer) Subscribe(_ context.Context, topics []string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.subscribed = topics
	return nil
}

func (c *fakeConsumer) Run(ctx context.Context, handler consumer.EventHandler) error {
	close(c.ready)
	for _, msg := range c.messages {
		if err := handler.Handle(ctx, msg); err != nil {
			return err
		}
	}
	if c.runErr != nil {
		return c.runErr
	}
	<-ctx.Done()
	return nil
}

func (c *fakeConsumer) Ready() <-chan struct{} { return c.ready }

func (c *fakeConsumer) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

type fakeWriter struct {
	mu      sync.Mutex
	offsets []int64
	closed  bool
}

func (w *fakeWriter) Write(_ context.Context, records []event.Record, _ string, _ event.FileFormat) (int64, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, r := range records {
		w.offsets = append(w.offsets, r.Offset)
	}
	return int64(len(records)), nil
}

func (w *fakeWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed = true
	return nil
}

func (w *fakeWriter) stored() []int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]int64(nil), w.offsets...)
}

type fakeDLQ struct {
	mu      sync.Mutex
	reasons []string
	closed  bool
}

func (d *fakeDLQ) Publish(_ context.Context, _ *event.CloudEvent, _ event.KafkaMetadata, reason string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.reasons = append(d.reasons, reason)
	return nil
}

func (d *fakeDLQ) PublishRaw(_ context.Context, _ []byte, _ event.KafkaMetadata, reason string) error {
	return d.Publish(context.Background(), nil, event.KafkaMetadata{}, reason)
}

func (d *fakeDLQ) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	return nil
}

type offsetLog struct {
	mu      sync.Mutex
	offsets []int64
}

func (l *offsetLog) commitFunc(offset int64) func() error {
	return func() error {
		l.mu.Lock()
		defer l.mu.Unlock()
		l.offsets = append(l.offsets, offset)
		return nil
	}
}

func (l *offsetLog) committed() []int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]int64(nil), l.offsets...)
}

func message(offset int64, id string, commits *offsetLog) *event.ConsumedEvent {
	return &event.ConsumedEvent{
		Event: &event.CloudEvent{
			ID:          id,
			Source:      "/services/billing",
			SpecVersion: "1.0",
			Type:        "com.kaflogcache.log.record",
			Data:        []byte(`{"level":"WARN","message":"retrying charge"}`),
		},
		Metadata:   event.KafkaMetadata{Topic: "app-logs", Partition: 0, Offset: offset},
		CommitFunc: commits.commitFunc(offset),
	}
}

type fixture struct {
	pipeline *Pipeline
	consumer *fakeConsumer
	cache    *cache.DoubleBufferCache[event.Record]
	writer   *fakeWriter
	dlq      *fakeDLQ
}

func newFixture(t *testing.T, capacity int64, c *fakeConsumer) *fixture {
	t.Helper()
	f := &fixture{
		consumer: c,
		cache:    cache.New[event.Record](capacity, cache.WithName("logs")),
		writer:   &fakeWriter{},
		dlq:      &fakeDLQ{},
	}
	f.pipeline = Assemble(Components{
		Consumer:  f.consumer,
		Cache:     f.cache,
		Writer:    f.writer,
		Router:    internalstorage.NewRouter("file", "local", "", "v1"),
		Policy:    internalstorage.NewPolicy(internalstorage.PolicyConfig{MaxRecordsPerFile: 1000}),
		DLQ:       f.dlq,
		Validator: validator.NewCloudEventsValidator(),
	}, []string{"app-logs"}, flusher.Config{
		FlushInterval: time.Hour,
		CheckInterval: 10 * time.Millisecond,
		DrainTimeout:  time.Second,
	}, zaptest.NewLogger(t), nil)
	return f
}

func TestPipeline_RunDrainsOnShutdown(t *testing.T) {
	commits := &offsetLog{}
	c := newFakeConsumer(
		message(0, "evt-0", commits),
		message(1, "", commits),
		message(2, "evt-2", commits),
	)
	f := newFixture(t, 1<<20, c)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.pipeline.Run(ctx) }()

	<-c.Ready()
	require.Eventually(t, func() bool {
		return f.cache.ProducerStats().RecordCount == 2
	}, 2*time.Second, 5*time.Millisecond)
	assert.True(t, f.pipeline.Readiness(context.Background()))

	cancel()
	require.NoError(t, <-done)

	assert.Equal(t, []int64{0, 2}, f.writer.stored())
	assert.Equal(t, []int64{1, 2}, commits.committed(), "invalid event commits at once, the batch commits its last offset")
	assert.Equal(t, []string{"validation_failed"}, f.dlq.reasons)

	assert.Equal(t, []string{"app-logs"}, c.subscribed)
	assert.True(t, c.closed)
	assert.True(t, f.writer.closed)
	assert.True(t, f.dlq.closed)

	assert.Equal(t, cache.Report{}, f.pipeline.Report())
	assert.False(t, f.pipeline.Liveness())
	assert.False(t, f.pipeline.Readiness(context.Background()))
}

func TestPipeline_ReportsDroppedRecords(t *testing.T) {
	commits := &offsetLog{}
	first := message(0, "evt-0", commits)
	size := event.Record{Event: first.Event, Kafka: first.Metadata}.Size()

	c := newFakeConsumer(first, message(1, "evt-1", commits))
	f := newFixture(t, size, c)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.pipeline.Run(ctx) }()

	require.Eventually(t, func() bool { return f.cache.Dropped() == 1 }, 2*time.Second, 5*time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	assert.Equal(t, []int64{0}, f.writer.stored())
	assert.Equal(t, cache.Report{Dropped: 1}, f.pipeline.Report())
}

func TestPipeline_ConsumerFailureStopsPipeline(t *testing.T) {
	commits := &offsetLog{}
	c := newFakeConsumer(message(5, "evt-5", commits))
	c.runErr = stderrors.New("group coordinator unavailable")
	f := newFixture(t, 1<<20, c)

	err := f.pipeline.Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, c.runErr)

	assert.Equal(t, []int64{5}, f.writer.stored(), "records cached before the failure are drained")
	assert.Equal(t, []int64{5}, commits.committed())
	assert.True(t, c.closed)
}

func TestPipeline_Status(t *testing.T) {
	commits := &offsetLog{}
	f := newFixture(t, 4096, newFakeConsumer())

	require.True(t, f.cache.Push(event.Record{
		Event: message(0, "evt-0", commits).Event,
		Kafka: event.KafkaMetadata{Topic: "app-logs"},
	}))

	status := f.pipeline.Status()
	assert.Equal(t, "logs", status["cache"])
	assert.Equal(t, "4096", status["capacity_bytes"])
	assert.Equal(t, "1", status["producer_records"])
	assert.Equal(t, "0", status["dropped"])
	assert.Equal(t, "false", status["closed"])

	assert.True(t, f.pipeline.Liveness())
	assert.False(t, f.pipeline.Readiness(context.Background()), "not ready before the consumer joins")
}
