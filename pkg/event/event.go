package event

import (
	"encoding/json"
	"fmt"
	"time"
)

// CloudEvent represents a CloudEvents 1.0 event.
// See https://github.com/cloudevents/spec/blob/v1.0/spec.md
type CloudEvent struct {
	// Required attributes
	ID          string `json:"id"`
	Source      string `json:"source"`
	SpecVersion string `json:"specversion"`
	Type        string `json:"type"`

	// Optional attributes
	DataContentType *string    `json:"datacontenttype,omitempty"`
	DataSchema      *string    `json:"dataschema,omitempty"`
	Subject         *string    `json:"subject,omitempty"`
	Time            *time.Time `json:"time,omitempty"`

	Data json.RawMessage `json:"data,omitempty"`

	Extensions map[string]interface{} `json:"-"`
}

// KafkaMetadata contains Kafka-specific metadata for an event.
type KafkaMetadata struct {
	Topic     string
	Partition int32
	Offset    int64
	Key       []byte
	Headers   map[string]string
	Timestamp time.Time
}

// PartitionID uniquely identifies a Kafka partition.
type PartitionID struct {
	Topic     string
	Partition int32
}

// String returns a string representation of the partition ID in the format "topic-partition".
func (p PartitionID) String() string {
	return fmt.Sprintf("%s-%d", p.Topic, p.Partition)
}

// Record is a log event held in the write-behind cache until it is persisted.
type Record struct {
	Event       *CloudEvent
	Kafka       KafkaMetadata
	Offset      int64
	ProcessedAt time.Time

	// Commit marks the record's offset as consumed. Nil when the record
	// did not come from Kafka.
	Commit func() error `json:"-"`
}

// Partition returns the Kafka partition the record was read from.
func (r Record) Partition() PartitionID {
	return PartitionID{Topic: r.Kafka.Topic, Partition: r.Kafka.Partition}
}

// Size estimates the number of bytes the record occupies in a cache buffer.
func (r Record) Size() int64 {
	size := len(r.Kafka.Topic) + len(r.Kafka.Key)
	for k, v := range r.Kafka.Headers {
		size += len(k) + len(v)
	}

	if r.Event == nil {
		return int64(size)
	}

	size += len(r.Event.ID)
	size += len(r.Event.Source)
	size += len(r.Event.SpecVersion)
	size += len(r.Event.Type)
	size += len(r.Event.Data)

	if r.Event.DataContentType != nil {
		size += len(*r.Event.DataContentType)
	}
	if r.Event.DataSchema != nil {
		size += len(*r.Event.DataSchema)
	}
	if r.Event.Subject != nil {
		size += len(*r.Event.Subject)
	}

	return int64(size)
}

// GetEventTime returns the event's timestamp.
// It returns the CloudEvent.Time if present, otherwise falls back to Kafka message timestamp.
func (r Record) GetEventTime() time.Time {
	if r.Event != nil && r.Event.Time != nil {
		return *r.Event.Time
	}
	return r.Kafka.Timestamp
}

// GetEventTimeUnix returns the event's timestamp as Unix seconds.
func (r Record) GetEventTimeUnix() int64 {
	return r.GetEventTime().Unix()
}

// FileStats contains statistics about buffered or encoded records.
type FileStats struct {
	RecordCount    int
	SizeBytes      int64
	FirstWriteTime time.Time
	LastWriteTime  time.Time
}

// FileFormat represents the storage file format.
type FileFormat string

const (
	FormatParquet FileFormat = "parquet"
	FormatAvro    FileFormat = "avro"
)

// ParseFileFormat maps a configured format name to a FileFormat.
// Unknown names fall back to Parquet.
func ParseFileFormat(name string) FileFormat {
	if FileFormat(name) == FormatAvro {
		return FormatAvro
	}
	return FormatParquet
}

// Validator validates CloudEvents.
type Validator interface {
	Validate(event *CloudEvent) error
}

// ConsumedEvent represents an event consumed from Kafka.
type ConsumedEvent struct {
	Event      *CloudEvent
	Metadata   KafkaMetadata
	CommitFunc func() error

	// Raw is the message value as received.
	Raw []byte
	// ParseErr is set when Raw could not be decoded into a CloudEvent.
	// Event is nil in that case.
	ParseErr error
}

// Log levels carried in LogRecordData.
const (
	LevelDebug = "DEBUG"
	LevelInfo  = "INFO"
	LevelWarn  = "WARN"
	LevelError = "ERROR"
)

// LogRecordData is the payload of a log record event.
type LogRecordData struct {
	Level      string            `json:"level"`
	Service    string            `json:"service"`
	Host       string            `json:"host"`
	Message    string            `json:"message"`
	TraceID    string            `json:"traceId,omitempty"`
	Attributes map[string]string `json:"attributes,omitempty"`
	EmittedAt  time.Time         `json:"emittedAt"`
}
