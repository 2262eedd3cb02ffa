package cache_test

import (
	"context"
	"fmt"

	"github.com/jittakal/kaflogcache/internal/cache"
	"github.com/jittakal/kaflogcache/pkg/event"
)

func ExampleDoubleBufferCache() {
	c := cache.New[event.Record](1024, cache.WithName("app-logs"))

	for i := range 3 {
		c.Push(event.Record{
			Event: &event.CloudEvent{
				ID:          fmt.Sprintf("log-%d", i),
				Source:      "checkout",
				SpecVersion: "1.0",
				Type:        "log.record",
			},
			Kafka: event.KafkaMetadata{Topic: "app-logs", Offset: int64(i)},
		})
	}

	if err := c.RequestSwap(context.Background()); err != nil {
		fmt.Println("swap failed:", err)
		return
	}

	for rec := range c.ConsumerView().All() {
		fmt.Println(rec.Event.ID)
	}
	c.Release()

	c.Close()
	report := c.ShutdownReport()
	fmt.Printf("dropped=%d residual=%d\n", report.Dropped, report.ResidualRecords)

	// Output:
	// log-0
	// log-1
	// log-2
	// dropped=0 residual=0
}

func ExampleBoundedBuffer_Append() {
	buf := cache.NewBoundedBuffer[event.Record](40)

	rec := event.Record{Event: &event.CloudEvent{ID: "0123456789", Source: "svc"}}
	fmt.Println(rec.Size(), buf.Append(rec), buf.Append(rec), buf.Append(rec), buf.Append(rec))
	fmt.Println(buf.OccupiedSize())

	// Output:
	// 13 true true true false
	// 39
}
