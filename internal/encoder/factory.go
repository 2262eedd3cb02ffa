package encoder

import (
	"github.com/hyp3rd/ewrap"

	"github.com/jittakal/kaflogcache/internal/errors"
	"github.com/jittakal/kaflogcache/pkg/encoder"
	"github.com/jittakal/kaflogcache/pkg/event"
)

// Factory creates encoders based on format and configuration.
type Factory struct {
	opts Options
}

// NewFactory creates a new encoder factory.
func NewFactory(opts Options) *Factory {
	return &Factory{opts: opts}
}

// Format returns the format the factory produces.
func (f *Factory) Format() event.FileFormat {
	return f.opts.Format
}

// CreateEncoder creates an encoder based on the configured format.
func (f *Factory) CreateEncoder() (encoder.Encoder, error) {
	return f.CreateEncoderFor(f.opts.Format)
}

// CreateEncoderFor creates an encoder for format using the factory options.
func (f *Factory) CreateEncoderFor(format event.FileFormat) (encoder.Encoder, error) {
	switch format {
	case event.FormatParquet:
		return NewParquetEncoder(f.opts), nil
	case event.FormatAvro:
		return NewAvroEncoder(f.opts)
	default:
		return nil, ewrap.Wrapf(errors.ErrUnsupportedFormat, "format %q", format)
	}
}

// SupportedFormats returns a list of supported file formats.
func SupportedFormats() []event.FileFormat {
	return []event.FileFormat{
		event.FormatParquet,
		event.FormatAvro,
	}
}

// SupportedCompressions returns supported compression codecs for a given format.
func SupportedCompressions(format event.FileFormat) []string {
	switch format {
	case event.FormatParquet:
		return []string{"uncompressed", "snappy", "gzip", "lz4", "zstd"}
	case event.FormatAvro:
		return []string{"null", "deflate", "snappy"}
	default:
		return []string{}
	}
}

// DefaultCompression returns the default compression for a format.
func DefaultCompression(format event.FileFormat) string {
	switch format {
	case event.FormatParquet, event.FormatAvro:
		return "snappy"
	default:
		return "uncompressed"
	}
}
