package encoder

import (
	"io"

	"github.com/jittakal/kaflogcache/internal/config/dto"
	"github.com/jittakal/kaflogcache/pkg/event"
)

// Options configures the encoders built by a Factory.
type Options struct {
	Format event.FileFormat

	// Parquet
	ParquetCompression string
	PageBufferSize     int
	MaxRowsPerRowGroup int64
	EnableStatistics   bool

	// Avro
	AvroCodec     string
	AvroBlockSize int
	AvroGzip      bool
}

// OptionsFromConfig maps the application configuration to encoder options.
func OptionsFromConfig(cfg *dto.ApplicationConfig) Options {
	return Options{
		Format:             event.ParseFileFormat(cfg.Storage.Format),
		ParquetCompression: cfg.Parquet.Compression,
		PageBufferSize:     cfg.Parquet.PageSizeKB * 1024,
		MaxRowsPerRowGroup: cfg.Parquet.MaxRowsPerRowGroup,
		EnableStatistics:   cfg.Parquet.EnableStatistics,
		AvroCodec:          cfg.Avro.Codec,
		AvroBlockSize:      cfg.Avro.SyncInterval,
		AvroGzip:           cfg.Avro.Gzip,
	}
}

// countingWriter counts the bytes passed through to w.
type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}

// encodedStats builds stats for a finished encode. First and last write
// times span the event times of the records.
func encodedStats(records []event.Record, written int64) *event.FileStats {
	stats := &event.FileStats{
		RecordCount: len(records),
		SizeBytes:   written,
	}
	for _, r := range records {
		t := r.GetEventTime()
		if stats.FirstWriteTime.IsZero() || t.Before(stats.FirstWriteTime) {
			stats.FirstWriteTime = t
		}
		if t.After(stats.LastWriteTime) {
			stats.LastWriteTime = t
		}
	}
	return stats
}
