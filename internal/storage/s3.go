package storage

import (
	"bytes"
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/hyp3rd/ewrap"
	"go.uber.org/zap"

	"github.com/jittakal/kaflogcache/internal/encoder"
	"github.com/jittakal/kaflogcache/internal/errors"
	"github.com/jittakal/kaflogcache/pkg/event"
	"github.com/jittakal/kaflogcache/pkg/storage"
)

// Ensure implementation satisfies interface at compile time.
var _ storage.Writer = (*S3Writer)(nil)

// S3Config contains AWS S3 configuration.
type S3Config struct {
	Bucket       string
	Region       string
	Endpoint     string
	UsePathStyle bool
	SSEEnabled   bool
	SSEKMSKeyID  string
}

// s3Uploader is the part of manager.Uploader the writer uses.
type s3Uploader interface {
	Upload(ctx context.Context, input *s3.PutObjectInput, opts ...func(*manager.Uploader)) (*manager.UploadOutput, error)
}

// S3Writer implements storage.Writer for AWS S3.
// Objects are encoded in memory and uploaded with the multipart uploader.
type S3Writer struct {
	baseWriter
	uploader    s3Uploader
	bucket      string
	sseEnabled  bool
	sseKMSKeyID string
}

// NewS3Writer creates a new S3 storage writer.
func NewS3Writer(
	ctx context.Context,
	cfg S3Config,
	opts encoder.Options,
	logger *zap.Logger,
	metrics MetricsCollector,
) (*S3Writer, error) {
	awsConfig, err := config.LoadDefaultConfig(ctx, config.WithRegion(cfg.Region))
	if err != nil {
		return nil, ewrap.Wrap(err, "failed to load AWS config")
	}

	client := s3.NewFromConfig(awsConfig, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	})

	uploader := manager.NewUploader(client, func(u *manager.Uploader) {
		u.PartSize = 10 * 1024 * 1024
		u.Concurrency = 5
	})

	return newS3Writer(cfg, uploader, opts, logger, metrics)
}

func newS3Writer(
	cfg S3Config,
	uploader s3Uploader,
	opts encoder.Options,
	logger *zap.Logger,
	metrics MetricsCollector,
) (*S3Writer, error) {
	base, err := newBaseWriter("s3", opts, logger, metrics)
	if err != nil {
		return nil, err
	}

	base.logger.Info("S3 writer created",
		zap.String("bucket", cfg.Bucket),
		zap.String("region", cfg.Region),
		zap.String("format", string(opts.Format)),
		zap.Bool("sse_enabled", cfg.SSEEnabled),
	)

	return &S3Writer{
		baseWriter:  base,
		uploader:    uploader,
		bucket:      cfg.Bucket,
		sseEnabled:  cfg.SSEEnabled,
		sseKMSKeyID: cfg.SSEKMSKeyID,
	}, nil
}

// Write encodes records and uploads them as one object below path.
func (w *S3Writer) Write(
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

	key := objectKey(path, "s3") + objectName(start, fileEncoder.FileExtension())

	body, stats, err := w.encode(records, fileEncoder, key)
	if err != nil {
		return 0, err
	}

	input := &s3.PutObjectInput{
		Bucket:      aws.String(w.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body.Bytes()),
		ContentType: aws.String(contentType(format)),
	}
	if w.sseEnabled {
		if w.sseKMSKeyID != "" {
			input.ServerSideEncryption = types.ServerSideEncryptionAwsKms
			input.SSEKMSKeyId = aws.String(w.sseKMSKeyID)
		} else {
			input.ServerSideEncryption = types.ServerSideEncryptionAes256
		}
	}

	result, err := w.uploader.Upload(ctx, input)
	if err != nil {
		w.fail("upload")
		return 0, &errors.StorageError{Backend: w.backend, Operation: "upload", Path: key, Err: err}
	}

	location := "s3://" + w.bucket + "/" + key
	if result != nil && result.Location != "" {
		location = result.Location
	}
	w.written(records, format, location, stats, start)

	return stats.SizeBytes, nil
}

// Close closes the S3 writer.
func (w *S3Writer) Close() error {
	w.logger.Info("closing S3 writer")
	return nil
}
