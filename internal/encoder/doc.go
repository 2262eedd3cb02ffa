// Package encoder provides event encoding to various file formats.
//
// Encoders turn a batch of cached log records into a single file body and
// stream it to any io.Writer, so storage backends can target a local file
// or an in-memory upload buffer alike.
//
// # Supported Formats
//
//   - Parquet: columnar format optimized for analytics and Athena queries
//   - Avro: row-based Object Container File with embedded schema
//
// # Encoder Factory
//
//	factory := encoder.NewFactory(encoder.OptionsFromConfig(cfg))
//	enc, err := factory.CreateEncoder()
//	if err != nil {
//	    return err
//	}
//
//	var buf bytes.Buffer
//	stats, err := enc.Encode(&buf, records)
//
// Stats.SizeBytes is the number of bytes written to the writer.
//
// # Compression
//
//	Parquet page codec: "snappy" (default), "gzip", "lz4", "zstd", "uncompressed"
//	Avro block codec:   "null", "deflate", "snappy"
//
// Setting Options.AvroGzip wraps the whole Avro file in gzip and changes the
// extension to ".avro.gz".
//
// # Log record columns
//
// When an event payload decodes as a log record (level, service, message),
// those fields are also written to dedicated nullable columns.
//
// # Thread Safety
//
// Encoders hold no per-call state and are safe for concurrent use.
package encoder
