// Package encoder defines interfaces for encoding events to various file formats.
package encoder

import (
	"io"

	"github.com/jittakal/kaflogcache/pkg/event"
)

// Encoder encodes records to a specific file format.
type Encoder interface {
	// Encode writes records to w and returns statistics about the written
	// output. SizeBytes is the number of bytes written to w.
	Encode(w io.Writer, records []event.Record) (*event.FileStats, error)

	// Format returns the file format this encoder produces.
	Format() event.FileFormat

	// FileExtension returns the file extension (e.g., ".parquet", ".avro").
	FileExtension() string
}
