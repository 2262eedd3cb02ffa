package storage

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/hyp3rd/ewrap"
	"go.uber.org/zap"

	"github.com/jittakal/kaflogcache/internal/encoder"
	"github.com/jittakal/kaflogcache/internal/errors"
	pkgencoder "github.com/jittakal/kaflogcache/pkg/encoder"
	"github.com/jittakal/kaflogcache/pkg/event"
	"github.com/jittakal/kaflogcache/pkg/storage"
)

// Ensure implementation satisfies interface at compile time.
var _ storage.Writer = (*FileWriter)(nil)

// FileConfig contains local filesystem configuration.
type FileConfig struct {
	BasePath string
}

// FileWriter implements storage.Writer for local filesystem storage.
// Each Write produces one file below BasePath; the file only appears under
// its final name once fully written.
type FileWriter struct {
	baseWriter
	basePath string
}

// NewFileWriter creates a new filesystem storage writer.
func NewFileWriter(
	config FileConfig,
	opts encoder.Options,
	logger *zap.Logger,
	metrics MetricsCollector,
) (*FileWriter, error) {
	if err := os.MkdirAll(config.BasePath, 0o755); err != nil {
		return nil, ewrap.Wrap(err, "failed to create base path").
			WithMetadata("base_path", config.BasePath)
	}

	base, err := newBaseWriter("file", opts, logger, metrics)
	if err != nil {
		return nil, err
	}

	base.logger.Info("filesystem writer created",
		zap.String("base_path", config.BasePath),
		zap.String("format", string(opts.Format)),
	)

	return &FileWriter{baseWriter: base, basePath: config.BasePath}, nil
}

// Write writes records to a new file below path.
func (w *FileWriter) Write(
	ctx context.Context,
	records []event.Record,
	path string,
	format event.FileFormat,
) (int64, error) {
	if len(records) == 0 {
		return 0, errors.ErrNoRecords
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	start := time.Now()

	fileEncoder, err := w.encoderFor(format)
	if err != nil {
		return 0, err
	}

	dir := filepath.Join(w.basePath, filepath.FromSlash(objectKey(path, "file")))
	fullPath := filepath.Join(dir, objectName(start, fileEncoder.FileExtension()))

	if err := os.MkdirAll(dir, 0o755); err != nil {
		w.fail("mkdir")
		return 0, &errors.StorageError{Backend: w.backend, Operation: "create", Path: dir, Err: err}
	}

	stats, err := w.writeFile(fullPath, fileEncoder, records)
	if err != nil {
		return 0, err
	}

	w.written(records, format, fullPath, stats, start)
	return stats.SizeBytes, nil
}

// writeFile encodes into a temporary sibling and renames it into place.
func (w *FileWriter) writeFile(fullPath string, enc pkgencoder.Encoder, records []event.Record) (*event.FileStats, error) {
	tmpPath := fullPath + ".tmp"

	file, err := os.Create(tmpPath)
	if err != nil {
		w.fail("create")
		return nil, &errors.StorageError{Backend: w.backend, Operation: "create", Path: fullPath, Err: err}
	}

	stats, err := enc.Encode(file, records)
	closeErr := file.Close()
	switch {
	case err != nil:
		w.fail("encode")
		err = &errors.StorageError{Backend: w.backend, Operation: "encode", Path: fullPath, Err: err}
	case closeErr != nil:
		w.fail("write")
		err = &errors.StorageError{Backend: w.backend, Operation: "write", Path: fullPath, Err: closeErr}
	}
	if err != nil {
		_ = os.Remove(tmpPath)
		return nil, err
	}

	if err := os.Rename(tmpPath, fullPath); err != nil {
		w.fail("write")
		_ = os.Remove(tmpPath)
		return nil, &errors.StorageError{Backend: w.backend, Operation: "write", Path: fullPath, Err: err}
	}

	return stats, nil
}

// Close closes the writer.
func (w *FileWriter) Close() error {
	w.logger.Info("closing filesystem writer")
	return nil
}
