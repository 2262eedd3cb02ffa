// Package loadgen produces synthetic log record events for exercising the
// cache end to end.
package loadgen

import (
	"fmt"
	"strings"
	"time"

	cloudevents "github.com/cloudevents/sdk-go/v2"
	"github.com/google/uuid"
	"github.com/jaswdr/faker"
	"go.uber.org/zap"

	"github.com/jittakal/kaflogcache/pkg/event"
)

const (
	// EventType is the CloudEvents type of generated log records.
	EventType = "com.kaflogcache.log.record"

	contentTypeJSON = "application/json"
	defaultSource   = "/kaflogcache/loadgen"
)

var defaultServices = []string{"checkout", "billing", "inventory", "shipping", "auth"}

// levelWeights is the share, out of 100, of each generated log level.
var levelWeights = []struct {
	level  string
	weight int
}{
	{event.LevelDebug, 20},
	{event.LevelInfo, 60},
	{event.LevelWarn, 15},
	{event.LevelError, 5},
}

// Generator builds fake log record CloudEvents.
type Generator struct {
	faker    faker.Faker
	source   string
	services []string
	logger   *zap.Logger
	now      func() time.Time
}

// NewGenerator creates a generator emitting events from source on behalf of
// services. Empty arguments fall back to built-in defaults.
func NewGenerator(source string, services []string, logger *zap.Logger) *Generator {
	if source == "" {
		source = defaultSource
	}
	if len(services) == 0 {
		services = defaultServices
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Generator{
		faker:    faker.New(),
		source:   source,
		services: services,
		logger:   logger,
		now:      time.Now,
	}
}

// LogEvent generates one log record event.
func (g *Generator) LogEvent() cloudevents.Event {
	now := g.now().UTC()
	service := g.services[g.faker.IntBetween(0, len(g.services)-1)]
	level := pickLevel(g.faker.IntBetween(1, 100))

	data := event.LogRecordData{
		Level:   level,
		Service: service,
		Host:    fmt.Sprintf("%s-%d", service, g.faker.IntBetween(1, 12)),
		Message: g.faker.Lorem().Sentence(8),
		TraceID: strings.ReplaceAll(uuid.New().String(), "-", ""),
		Attributes: map[string]string{
			"user":      g.faker.Internet().Email(),
			"client_ip": g.faker.Internet().Ipv4(),
		},
		EmittedAt: now,
	}
	if level == event.LevelError {
		data.Attributes["error_code"] = "E" + g.faker.RandomStringWithLength(4)
	}

	evt := cloudevents.NewEvent()
	evt.SetSpecVersion(cloudevents.VersionV1)
	evt.SetID(uuid.New().String())
	evt.SetType(EventType)
	evt.SetSource(g.source)
	evt.SetSubject(service)
	evt.SetTime(now)

	if err := evt.SetData(contentTypeJSON, data); err != nil {
		g.logger.Error("failed to set event data", zap.Error(err))
	}
	return evt
}

// Batch generates n log record events.
func (g *Generator) Batch(n int) []cloudevents.Event {
	events := make([]cloudevents.Event, 0, n)
	for range n {
		events = append(events, g.LogEvent())
	}
	return events
}

// pickLevel maps roll, in [1, 100], onto levelWeights.
func pickLevel(roll int) string {
	cumulative := 0
	for _, lw := range levelWeights {
		cumulative += lw.weight
		if roll <= cumulative {
			return lw.level
		}
	}
	return event.LevelInfo
}
