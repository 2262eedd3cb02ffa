package storage

import (
	"bytes"
	"context"
	"io"
	"time"

	gcs "cloud.google.com/go/storage"
	"github.com/hyp3rd/ewrap"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"github.com/jittakal/kaflogcache/internal/encoder"
	"github.com/jittakal/kaflogcache/internal/errors"
	"github.com/jittakal/kaflogcache/pkg/event"
	"github.com/jittakal/kaflogcache/pkg/storage"
)

// Ensure implementation satisfies interface at compile time.
var _ storage.Writer = (*GCSWriter)(nil)

// GCSConfig contains Google Cloud Storage configuration.
type GCSConfig struct {
	Bucket               string
	ProjectID            string
	CredentialsFile      string
	CredentialsJSON      string
	Endpoint             string
	UseDefaultCredential bool
}

// gcsObjectOpener opens a writer for a new object.
type gcsObjectOpener func(ctx context.Context, bucket, name, contentType string) io.WriteCloser

// GCSWriter implements storage.Writer for Google Cloud Storage.
type GCSWriter struct {
	baseWriter
	client *gcs.Client
	open   gcsObjectOpener
	bucket string
}

// NewGCSWriter creates a new GCS storage writer.
func NewGCSWriter(
	ctx context.Context,
	cfg GCSConfig,
	opts encoder.Options,
	logger *zap.Logger,
	metrics MetricsCollector,
) (*GCSWriter, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	var clientOpts []option.ClientOption
	if cfg.Endpoint != "" {
		clientOpts = append(clientOpts, option.WithEndpoint(cfg.Endpoint))
	}

	switch {
	case cfg.UseDefaultCredential:
		logger.Info("using default GCP credentials")
	case cfg.CredentialsJSON != "":
		clientOpts = append(clientOpts, option.WithCredentialsJSON([]byte(cfg.CredentialsJSON)))
		logger.Info("using GCP credentials from JSON string")
	case cfg.CredentialsFile != "":
		clientOpts = append(clientOpts, option.WithCredentialsFile(cfg.CredentialsFile))
		logger.Info("using GCP credentials from file", zap.String("file", cfg.CredentialsFile))
	default:
		logger.Info("no explicit credentials provided, using default GCP credentials")
	}

	client, err := gcs.NewClient(ctx, clientOpts...)
	if err != nil {
		return nil, ewrap.Wrap(err, "failed to create GCS client")
	}

	open := func(ctx context.Context, bucket, name, contentType string) io.WriteCloser {
		w := client.Bucket(bucket).Object(name).NewWriter(ctx)
		w.ContentType = contentType
		return w
	}

	w, err := newGCSWriter(cfg, open, opts, logger, metrics)
	if err != nil {
		_ = client.Close()
		return nil, err
	}
	w.client = client
	return w, nil
}

func newGCSWriter(
	cfg GCSConfig,
	open gcsObjectOpener,
	opts encoder.Options,
	logger *zap.Logger,
	metrics MetricsCollector,
) (*GCSWriter, error) {
	base, err := newBaseWriter("gcs", opts, logger, metrics)
	if err != nil {
		return nil, err
	}

	base.logger.Info("GCS writer created",
		zap.String("bucket", cfg.Bucket),
		zap.String("project_id", cfg.ProjectID),
		zap.String("format", string(opts.Format)),
	)

	return &GCSWriter{baseWriter: base, open: open, bucket: cfg.Bucket}, nil
}

// Write encodes records and uploads them as one object below path.
func (w *GCSWriter) Write(
	ctx context.Context,
	records []event.Record,
	path string,
	format event.FileFormat,
) (int64, error) {
	if len(records) == 0 {
		return 0, errors.ErrNoRecords
	}

	start := time.Now()

	fileEncoder, err := w.encoderFor(format)
	if err != nil {
		return 0, err
	}

	name := objectKey(path, "gs") + objectName(start, fileEncoder.FileExtension())

	body, stats, err := w.encode(records, fileEncoder, name)
	if err != nil {
		return 0, err
	}

	objectWriter := w.open(ctx, w.bucket, name, contentType(format))
	if _, err := io.Copy(objectWriter, bytes.NewReader(body.Bytes())); err != nil {
		w.fail("upload")
		_ = objectWriter.Close()
		return 0, &errors.StorageError{Backend: w.backend, Operation: "upload", Path: name, Err: err}
	}

	// The object is only committed once the writer is closed.
	if err := objectWriter.Close(); err != nil {
		w.fail("upload")
		return 0, &errors.StorageError{Backend: w.backend, Operation: "upload", Path: name, Err: err}
	}

	w.written(records, format, "gs://"+w.bucket+"/"+name, stats, start)
	return stats.SizeBytes, nil
}

// Close closes the GCS writer.
func (w *GCSWriter) Close() error {
	w.logger.Info("closing GCS writer")
	if w.client != nil {
		return w.client.Close()
	}
	return nil
}
