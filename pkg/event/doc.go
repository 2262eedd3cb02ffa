// Package event defines the record types that flow through the log cache.
//
// Log records arrive from Kafka as CloudEvents 1.0 envelopes whose data is a
// LogRecordData payload:
//
//	evt := &event.CloudEvent{
//	    ID:          "0f8e4c1a",
//	    Source:      "/services/checkout",
//	    SpecVersion: "1.0",
//	    Type:        "com.kaflogcache.log.record",
//	    Time:        &now,
//	    Data:        []byte(`{"level":"INFO","message":"order placed"}`),
//	}
//
// # Records
//
// Record pairs a CloudEvent with its Kafka metadata and the callback that
// commits its offset. Records measure themselves through Size, which makes
// them usable as cache entries:
//
//	record := event.Record{Event: evt, Kafka: event.KafkaMetadata{Topic: "logs"}}
//	n := record.Size() // estimated bytes
//
// # Partition Identification
//
// PartitionID uniquely identifies a Kafka topic partition:
//
//	pid := event.PartitionID{Topic: "logs", Partition: 5}
//	key := pid.String() // "logs-5"
//
// # File Formats
//
//	event.FormatParquet  // Columnar format for analytics
//	event.FormatAvro     // Row-based format with schema
//
// # Time Utilities
//
// GetEventTime and GetEventTimeUnix return CloudEvent.Time, falling back to
// the Kafka message timestamp when the event carries no time.
package event
