package encoder

import (
	"io"
	"time"

	"github.com/hyp3rd/ewrap"
	"github.com/klauspost/compress/gzip"
	"github.com/linkedin/goavro/v2"

	"github.com/jittakal/kaflogcache/internal/errors"
	"github.com/jittakal/kaflogcache/pkg/encoder"
	"github.com/jittakal/kaflogcache/pkg/event"
)

// Ensure implementation satisfies interface at compile time.
var _ encoder.Encoder = (*AvroEncoder)(nil)

const defaultAvroBlockSize = 16000

// AvroEncoder implements encoder.Encoder for Avro Object Container Files.
// Blocks inside the container use the configured OCF codec; the whole file
// can additionally be gzip-wrapped.
type AvroEncoder struct {
	codec     *goavro.Codec
	ocfCodec  string
	blockSize int
	gzip      bool
}

// NewAvroEncoder creates an Avro encoder from opts.
func NewAvroEncoder(opts Options) (*AvroEncoder, error) {
	codec, err := goavro.NewCodec(avroSchema())
	if err != nil {
		return nil, ewrap.Wrap(err, "failed to create avro codec")
	}

	ocfCodec, err := ocfCompression(opts.AvroCodec)
	if err != nil {
		return nil, err
	}

	blockSize := opts.AvroBlockSize
	if blockSize <= 0 {
		blockSize = defaultAvroBlockSize
	}

	return &AvroEncoder{
		codec:     codec,
		ocfCodec:  ocfCodec,
		blockSize: blockSize,
		gzip:      opts.AvroGzip,
	}, nil
}

func ocfCompression(name string) (string, error) {
	switch name {
	case "", "null", "none", "uncompressed":
		return goavro.CompressionNullLabel, nil
	case "deflate":
		return goavro.CompressionDeflateLabel, nil
	case "snappy":
		return goavro.CompressionSnappyLabel, nil
	default:
		return "", ewrap.Wrapf(errors.ErrUnsupportedFormat, "avro codec %q", name)
	}
}

// avroSchema returns the Avro schema for stored log events.
func avroSchema() string {
	return `{
		"type": "record",
		"name": "LogEvent",
		"namespace": "io.kaflogcache",
		"fields": [
			{"name": "spec_version", "type": "string"},
			{"name": "id", "type": "string"},
			{"name": "source", "type": "string"},
			{"name": "type", "type": "string"},
			{"name": "subject", "type": ["null", "string"], "default": null},
			{"name": "data_content_type", "type": ["null", "string"], "default": null},
			{"name": "data_schema", "type": ["null", "string"], "default": null},
			{"name": "time", "type": ["null", "string"], "default": null},
			{"name": "data", "type": "string"},
			{"name": "log_level", "type": ["null", "string"], "default": null},
			{"name": "log_service", "type": ["null", "string"], "default": null},
			{"name": "kafka_topic", "type": "string"},
			{"name": "kafka_partition", "type": "int"},
			{"name": "kafka_offset", "type": "long"},
			{"name": "kafka_timestamp", "type": "string"},
			{"name": "ingested_at", "type": "string"}
		]
	}`
}

// Encode writes records to w as an Avro OCF, gzip-wrapped when configured.
func (e *AvroEncoder) Encode(w io.Writer, records []event.Record) (*event.FileStats, error) {
	if len(records) == 0 {
		return nil, errors.ErrNoRecords
	}

	counter := &countingWriter{w: w}
	var out io.Writer = counter

	var gz *gzip.Writer
	if e.gzip {
		gz = gzip.NewWriter(counter)
		out = gz
	}

	ocfWriter, err := goavro.NewOCFWriter(goavro.OCFConfig{
		W:               out,
		Codec:           e.codec,
		CompressionName: e.ocfCodec,
	})
	if err != nil {
		return nil, ewrap.Wrap(err, "failed to create OCF writer")
	}

	block := make([]any, 0, min(len(records), e.blockSize))
	for _, record := range records {
		if record.Event == nil {
			return nil, ewrap.New("record has no event").
				WithMetadata("topic", record.Kafka.Topic).
				WithMetadata("offset", record.Kafka.Offset)
		}

		block = append(block, toAvroMap(record))
		if len(block) == e.blockSize {
			if err := ocfWriter.Append(block); err != nil {
				return nil, ewrap.Wrap(err, "failed to append avro block")
			}
			block = block[:0]
		}
	}
	if len(block) > 0 {
		if err := ocfWriter.Append(block); err != nil {
			return nil, ewrap.Wrap(err, "failed to append avro block")
		}
	}

	if gz != nil {
		if err := gz.Close(); err != nil {
			return nil, ewrap.Wrap(err, "failed to close gzip writer")
		}
	}

	return encodedStats(records, counter.n), nil
}

func optionalString(s *string) any {
	if s == nil || *s == "" {
		return nil
	}
	return goavro.Union("string", *s)
}

// toAvroMap converts a Record to its Avro map representation.
func toAvroMap(record event.Record) map[string]any {
	avroMap := map[string]any{
		"spec_version":      record.Event.SpecVersion,
		"id":                record.Event.ID,
		"source":            record.Event.Source,
		"type":              record.Event.Type,
		"subject":           optionalString(record.Event.Subject),
		"data_content_type": optionalString(record.Event.DataContentType),
		"data_schema":       optionalString(record.Event.DataSchema),
		"time":              nil,
		"data":              string(record.Event.Data),
		"log_level":         nil,
		"log_service":       nil,
		"kafka_topic":       record.Kafka.Topic,
		"kafka_partition":   record.Kafka.Partition,
		"kafka_offset":      record.Kafka.Offset,
		"kafka_timestamp":   record.Kafka.Timestamp.Format(time.RFC3339Nano),
		"ingested_at":       record.ProcessedAt.Format(time.RFC3339Nano),
	}

	if record.Event.Time != nil {
		avroMap["time"] = goavro.Union("string", record.Event.Time.Format(time.RFC3339Nano))
	}
	if data, ok := logRecord(record.Event); ok {
		avroMap["log_level"] = optionalString(&data.Level)
		avroMap["log_service"] = optionalString(&data.Service)
	}

	return avroMap
}

// Format returns the file format.
func (e *AvroEncoder) Format() event.FileFormat {
	return event.FormatAvro
}

// FileExtension returns the file extension.
func (e *AvroEncoder) FileExtension() string {
	if e.gzip {
		return ".avro.gz"
	}
	return ".avro"
}
