package event_test

import (
	"fmt"
	"time"

	"github.com/jittakal/kaflogcache/pkg/event"
)

func ExamplePartitionID_String() {
	fmt.Println(event.PartitionID{Topic: "app-logs", Partition: 5})
	// Output: app-logs-5
}

func ExampleRecord_GetEventTime() {
	emitted := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
	received := emitted.Add(2 * time.Second)

	withTime := event.Record{
		Event: &event.CloudEvent{ID: "a", Time: &emitted},
		Kafka: event.KafkaMetadata{Timestamp: received},
	}
	withoutTime := event.Record{
		Event: &event.CloudEvent{ID: "b"},
		Kafka: event.KafkaMetadata{Timestamp: received},
	}

	fmt.Println(withTime.GetEventTime().Format(time.TimeOnly))
	fmt.Println(withoutTime.GetEventTime().Format(time.TimeOnly))
	fmt.Println(withoutTime.GetEventTimeUnix())
	// Output:
	// 09:30:00
	// 09:30:02
	// 1773480602
}

func ExampleRecord_Size() {
	record := event.Record{
		Event: &event.CloudEvent{
			ID:          "evt-1",
			Source:      "api",
			SpecVersion: "1.0",
			Type:        "log",
			Data:        []byte(`{"level":"INFO"}`),
		},
		Kafka: event.KafkaMetadata{Topic: "app-logs"},
	}

	fmt.Println(record.Size())
	// Output: 38
}

func ExampleParseFileFormat() {
	fmt.Println(event.ParseFileFormat("avro"))
	fmt.Println(event.ParseFileFormat("csv"))
	// Output:
	// avro
	// parquet
}
