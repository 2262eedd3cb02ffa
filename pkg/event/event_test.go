package event

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPartitionID_String(t *testing.T) {
	tests := []struct {
		name      string
		partition PartitionID
		want      string
	}{
		{name: "partition 0", partition: PartitionID{Topic: "logs", Partition: 0}, want: "logs-0"},
		{name: "partition 10", partition: PartitionID{Topic: "app-logs", Partition: 10}, want: "app-logs-10"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.partition.String())
		})
	}
}

func TestRecord_Size(t *testing.T) {
	contentType := "application/json"
	subject := "svc"

	tests := []struct {
		name   string
		record Record
		want   int64
	}{
		{
			name:   "nil event counts kafka metadata only",
			record: Record{Kafka: KafkaMetadata{Topic: "logs", Key: []byte("k1")}},
			want:   6,
		},
		{
			name: "required attributes and data",
			record: Record{
				Event: &CloudEvent{ID: "id", Source: "src", SpecVersion: "1.0", Type: "t", Data: []byte(`{}`)},
				Kafka: KafkaMetadata{Topic: "logs"},
			},
			want: 2 + 3 + 3 + 1 + 2 + 4,
		},
		{
			name: "optional attributes and headers",
			record: Record{
				Event: &CloudEvent{
					ID:              "id",
					DataContentType: &contentType,
					Subject:         &subject,
				},
				Kafka: KafkaMetadata{Headers: map[string]string{"ce_id": "id"}},
			},
			want: 2 + int64(len(contentType)) + int64(len(subject)) + 5 + 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.record.Size())
		})
	}
}

func TestRecord_Partition(t *testing.T) {
	r := Record{Kafka: KafkaMetadata{Topic: "logs", Partition: 3}}
	assert.Equal(t, PartitionID{Topic: "logs", Partition: 3}, r.Partition())
}

func TestRecord_GetEventTime(t *testing.T) {
	kafkaTime := time.Date(2025, 12, 18, 10, 0, 0, 0, time.UTC)
	eventTime := time.Date(2025, 12, 18, 9, 30, 0, 0, time.UTC)

	tests := []struct {
		name   string
		record Record
		want   time.Time
	}{
		{
			name: "uses CloudEvent.Time when present",
			record: Record{
				Event: &CloudEvent{ID: "1", Time: &eventTime},
				Kafka: KafkaMetadata{Timestamp: kafkaTime},
			},
			want: eventTime,
		},
		{
			name: "falls back to Kafka timestamp when CloudEvent.Time is nil",
			record: Record{
				Event: &CloudEvent{ID: "2"},
				Kafka: KafkaMetadata{Timestamp: kafkaTime},
			},
			want: kafkaTime,
		},
		{
			name:   "falls back to Kafka timestamp when Event is nil",
			record: Record{Kafka: KafkaMetadata{Timestamp: kafkaTime}},
			want:   kafkaTime,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, tt.record.GetEventTime().Equal(tt.want))
			assert.Equal(t, tt.want.Unix(), tt.record.GetEventTimeUnix())
		})
	}
}

func TestParseFileFormat(t *testing.T) {
	assert.Equal(t, FormatAvro, ParseFileFormat("avro"))
	assert.Equal(t, FormatParquet, ParseFileFormat("parquet"))
	assert.Equal(t, FormatParquet, ParseFileFormat("csv"))
}
