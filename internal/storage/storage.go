// Package storage implements the storage backends the flusher writes to.
package storage

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hyp3rd/ewrap"
	"go.uber.org/zap"

	"github.com/jittakal/kaflogcache/internal/encoder"
	"github.com/jittakal/kaflogcache/internal/errors"
	pkgencoder "github.com/jittakal/kaflogcache/pkg/encoder"
	"github.com/jittakal/kaflogcache/pkg/event"
)

// MetricsCollector defines metrics operations for storage.
type MetricsCollector interface {
	IncFilesWritten(topic string, partition int32, format string, status string)
	ObserveFileSize(topic string, partition int32, format string, size float64)
	ObserveFileWriteDuration(backend string, format string, duration float64)
	ObserveStorageWriteDuration(topic string, partition int32, duration float64)
	IncStorageErrors(backend string, operation string)
}

// objectName returns a unique file name for a new object.
// Format: events_YYYYMMDD_HHMMSS_<8 hex chars><ext>
func objectName(now time.Time, ext string) string {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	return fmt.Sprintf("events_%s_%s%s", now.UTC().Format("20060102_150405"), id[:8], ext)
}

// objectKey strips the scheme and the bucket or container from a routed path.
// Paths without the scheme are returned unchanged apart from a leading slash.
func objectKey(path, scheme string) string {
	prefix := scheme + "://"
	if !strings.HasPrefix(path, prefix) {
		return strings.TrimPrefix(path, "/")
	}

	_, key, found := strings.Cut(strings.TrimPrefix(path, prefix), "/")
	if !found {
		return ""
	}
	return strings.TrimPrefix(key, "/")
}

// contentType returns the MIME type stored with uploaded objects.
func contentType(format event.FileFormat) string {
	if format == event.FormatAvro {
		return "application/avro"
	}
	return "application/octet-stream"
}

// baseWriter carries what every backend shares: encoders, logging and metrics.
type baseWriter struct {
	backend  string
	encoders *encoder.Factory
	logger   *zap.Logger
	metrics  MetricsCollector
}

func newBaseWriter(backend string, opts encoder.Options, logger *zap.Logger, metrics MetricsCollector) (baseWriter, error) {
	encoders := encoder.NewFactory(opts)
	if _, err := encoders.CreateEncoder(); err != nil {
		return baseWriter{}, ewrap.Wrap(err, "failed to create encoder").
			WithMetadata("backend", backend)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return baseWriter{
		backend:  backend,
		encoders: encoders,
		logger:   logger.With(zap.String("backend", backend)),
		metrics:  metrics,
	}, nil
}

// encoderFor returns an encoder for format.
func (b *baseWriter) encoderFor(format event.FileFormat) (pkgencoder.Encoder, error) {
	enc, err := b.encoders.CreateEncoderFor(format)
	if err != nil {
		b.fail("encoder_create")
		return nil, err
	}
	return enc, nil
}

// encode renders records into an in-memory object body.
func (b *baseWriter) encode(records []event.Record, enc pkgencoder.Encoder, path string) (*bytes.Buffer, *event.FileStats, error) {
	var buf bytes.Buffer
	stats, err := enc.Encode(&buf, records)
	if err != nil {
		b.fail("encode")
		return nil, nil, &errors.StorageError{Backend: b.backend, Operation: "encode", Path: path, Err: err}
	}
	return &buf, stats, nil
}

func (b *baseWriter) fail(operation string) {
	if b.metrics != nil {
		b.metrics.IncStorageErrors(b.backend, operation)
	}
}

// written logs and records metrics for a successful write.
func (b *baseWriter) written(records []event.Record, format event.FileFormat, location string, stats *event.FileStats, start time.Time) {
	duration := time.Since(start)

	b.logger.Info("wrote records",
		zap.String("location", location),
		zap.Int("record_count", stats.RecordCount),
		zap.Int64("file_size", stats.SizeBytes),
		zap.String("format", string(format)),
		zap.Int64("total_duration_ms", duration.Milliseconds()),
	)

	if b.metrics == nil || len(records) == 0 {
		return
	}
	topic := records[0].Kafka.Topic
	partition := records[0].Kafka.Partition
	b.metrics.IncFilesWritten(topic, partition, string(format), "success")
	b.metrics.ObserveFileSize(topic, partition, string(format), float64(stats.SizeBytes))
	b.metrics.ObserveFileWriteDuration(b.backend, string(format), duration.Seconds())
	b.metrics.ObserveStorageWriteDuration(topic, partition, duration.Seconds())
}
