// Package encoder implements file format encoders.
package encoder

import (
	"encoding/json"
	"io"
	"time"

	"github.com/hyp3rd/ewrap"
	"github.com/parquet-go/parquet-go"

	"github.com/jittakal/kaflogcache/internal/errors"
	"github.com/jittakal/kaflogcache/pkg/encoder"
	"github.com/jittakal/kaflogcache/pkg/event"
)

// Ensure implementation satisfies interface at compile time.
var _ encoder.Encoder = (*ParquetEncoder)(nil)

// LogEventParquet is the Parquet row for a stored log event.
// Time columns use TIMESTAMP_MICROS for Athena compatibility.
type LogEventParquet struct {
	// CloudEvent fields - required
	SpecVersion string `parquet:"spec_version,dict"`
	ID          string `parquet:"id"`
	Source      string `parquet:"source,dict"`
	Type        string `parquet:"type,dict"`
	Data        string `parquet:"data"`

	// CloudEvent fields - optional
	Subject         *string    `parquet:"subject,dict,optional"`
	DataContentType *string    `parquet:"data_content_type,dict,optional"`
	DataSchema      *string    `parquet:"data_schema,dict,optional"`
	Time            *time.Time `parquet:"time,timestamp(microsecond),optional"`

	// Log record fields, present when the payload is a log record
	Level   *string `parquet:"log_level,dict,optional"`
	Service *string `parquet:"log_service,dict,optional"`
	Message *string `parquet:"log_message,optional"`

	// Kafka metadata fields
	KafkaTopic     string    `parquet:"kafka_topic,dict"`
	KafkaPartition int32     `parquet:"kafka_partition"`
	KafkaOffset    int64     `parquet:"kafka_offset"`
	KafkaTimestamp time.Time `parquet:"kafka_timestamp,timestamp(microsecond)"`

	IngestedAt time.Time `parquet:"ingested_at,timestamp(microsecond)"`
}

// ParquetEncoder implements encoder.Encoder for Apache Parquet.
type ParquetEncoder struct {
	compressionName string
	options         []parquet.WriterOption
}

// NewParquetEncoder creates a Parquet encoder from opts.
func NewParquetEncoder(opts Options) *ParquetEncoder {
	writerOptions := []parquet.WriterOption{
		compressionCodec(opts.ParquetCompression),
		parquet.CreatedBy("kaflogcache", "1.0", "0"),
		parquet.DataPageStatistics(opts.EnableStatistics),
	}
	if opts.PageBufferSize > 0 {
		writerOptions = append(writerOptions, parquet.PageBufferSize(opts.PageBufferSize))
	}
	if opts.MaxRowsPerRowGroup > 0 {
		writerOptions = append(writerOptions, parquet.MaxRowsPerRowGroup(opts.MaxRowsPerRowGroup))
	}

	return &ParquetEncoder{
		compressionName: opts.ParquetCompression,
		options:         writerOptions,
	}
}

// compressionCodec converts string compression name to parquet WriterOption.
func compressionCodec(compression string) parquet.WriterOption {
	switch compression {
	case "snappy", "SNAPPY":
		return parquet.Compression(&parquet.Snappy)
	case "gzip", "GZIP":
		return parquet.Compression(&parquet.Gzip)
	case "lz4", "LZ4":
		return parquet.Compression(&parquet.Lz4Raw)
	case "zstd", "ZSTD":
		return parquet.Compression(&parquet.Zstd)
	case "uncompressed", "UNCOMPRESSED", "none", "NONE":
		return parquet.Compression(&parquet.Uncompressed)
	default:
		return parquet.Compression(&parquet.Snappy)
	}
}

// Encode writes records to w as a single Parquet file.
func (e *ParquetEncoder) Encode(w io.Writer, records []event.Record) (*event.FileStats, error) {
	if len(records) == 0 {
		return nil, errors.ErrNoRecords
	}

	rows := make([]LogEventParquet, 0, len(records))
	for _, record := range records {
		if record.Event == nil {
			return nil, ewrap.New("record has no event").
				WithMetadata("topic", record.Kafka.Topic).
				WithMetadata("offset", record.Kafka.Offset)
		}
		rows = append(rows, toParquetRow(record))
	}

	counter := &countingWriter{w: w}
	options := append([]parquet.WriterOption{parquet.SchemaOf(new(LogEventParquet))}, e.options...)
	writer := parquet.NewGenericWriter[LogEventParquet](counter, options...)

	if _, err := writer.Write(rows); err != nil {
		_ = writer.Close()
		return nil, ewrap.Wrap(err, "failed to write parquet rows")
	}
	if err := writer.Close(); err != nil {
		return nil, ewrap.Wrap(err, "failed to close parquet writer")
	}

	return encodedStats(records, counter.n), nil
}

func toParquetRow(record event.Record) LogEventParquet {
	row := LogEventParquet{
		SpecVersion:     record.Event.SpecVersion,
		ID:              record.Event.ID,
		Source:          record.Event.Source,
		Type:            record.Event.Type,
		Data:            string(record.Event.Data),
		Subject:         record.Event.Subject,
		DataContentType: record.Event.DataContentType,
		DataSchema:      record.Event.DataSchema,
		Time:            record.Event.Time,
		KafkaTopic:      record.Kafka.Topic,
		KafkaPartition:  record.Kafka.Partition,
		KafkaOffset:     record.Kafka.Offset,
		KafkaTimestamp:  record.Kafka.Timestamp,
		IngestedAt:      record.ProcessedAt,
	}

	if data, ok := logRecord(record.Event); ok {
		row.Level = &data.Level
		row.Service = &data.Service
		row.Message = &data.Message
	}
	return row
}

// logRecord decodes the event payload when it is a log record.
func logRecord(ev *event.CloudEvent) (event.LogRecordData, bool) {
	var data event.LogRecordData
	if len(ev.Data) == 0 || ev.Data[0] != '{' {
		return data, false
	}
	if err := json.Unmarshal(ev.Data, &data); err != nil || data.Level == "" {
		return data, false
	}
	return data, true
}

// Format returns the file format.
func (e *ParquetEncoder) Format() event.FileFormat {
	return event.FormatParquet
}

// FileExtension returns the file extension.
func (e *ParquetEncoder) FileExtension() string {
	return ".parquet"
}
