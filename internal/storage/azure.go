package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blob"
	"github.com/hyp3rd/ewrap"
	"go.uber.org/zap"

	"github.com/jittakal/kaflogcache/internal/encoder"
	"github.com/jittakal/kaflogcache/internal/errors"
	"github.com/jittakal/kaflogcache/pkg/event"
	"github.com/jittakal/kaflogcache/pkg/storage"
)

// Ensure implementation satisfies interface at compile time.
var _ storage.Writer = (*AzureWriter)(nil)

// AzureConfig contains Azure Blob Storage configuration.
type AzureConfig struct {
	AccountName   string
	AccountKey    string
	ContainerName string
	Endpoint      string
}

// azureUploader is the part of azblob.Client the writer uses.
type azureUploader interface {
	UploadBuffer(ctx context.Context, containerName, blobName string, buffer []byte, o *azblob.UploadBufferOptions) (azblob.UploadBufferResponse, error)
}

// AzureWriter implements storage.Writer for Azure Blob Storage using
// shared key authentication.
type AzureWriter struct {
	baseWriter
	client        azureUploader
	containerName string
}

// NewAzureWriter creates a new Azure Blob storage writer.
func NewAzureWriter(
	cfg AzureConfig,
	opts encoder.Options,
	logger *zap.Logger,
	metrics MetricsCollector,
) (*AzureWriter, error) {
	var connectionString string
	if cfg.Endpoint != "" {
		connectionString = fmt.Sprintf("DefaultEndpointsProtocol=https;AccountName=%s;AccountKey=%s;BlobEndpoint=%s",
			cfg.AccountName, cfg.AccountKey, cfg.Endpoint)
	} else {
		connectionString = fmt.Sprintf("DefaultEndpointsProtocol=https;AccountName=%s;AccountKey=%s;EndpointSuffix=core.windows.net",
			cfg.AccountName, cfg.AccountKey)
	}

	client, err := azblob.NewClientFromConnectionString(connectionString, nil)
	if err != nil {
		return nil, ewrap.Wrap(err, "failed to create Azure client")
	}

	return newAzureWriter(cfg, client, opts, logger, metrics)
}

func newAzureWriter(
	cfg AzureConfig,
	client azureUploader,
	opts encoder.Options,
	logger *zap.Logger,
	metrics MetricsCollector,
) (*AzureWriter, error) {
	base, err := newBaseWriter("azure", opts, logger, metrics)
	if err != nil {
		return nil, err
	}

	base.logger.Info("Azure writer created",
		zap.String("container", cfg.ContainerName),
		zap.String("account", cfg.AccountName),
		zap.String("format", string(opts.Format)),
	)

	return &AzureWriter{baseWriter: base, client: client, containerName: cfg.ContainerName}, nil
}

// Write encodes records and uploads them as one blob below path.
func (w *AzureWriter) Write(
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

	blobPath := objectKey(path, "wasbs") + objectName(start, fileEncoder.FileExtension())

	body, stats, err := w.encode(records, fileEncoder, blobPath)
	if err != nil {
		return 0, err
	}

	ct := contentType(format)
	_, err = w.client.UploadBuffer(ctx, w.containerName, blobPath, body.Bytes(), &azblob.UploadBufferOptions{
		HTTPHeaders: &blob.HTTPHeaders{BlobContentType: &ct},
	})
	if err != nil {
		w.fail("upload")
		return 0, &errors.StorageError{Backend: w.backend, Operation: "upload", Path: blobPath, Err: err}
	}

	w.written(records, format, "wasbs://"+w.containerName+"/"+blobPath, stats, start)
	return stats.SizeBytes, nil
}

// Close closes the Azure writer.
func (w *AzureWriter) Close() error {
	w.logger.Info("Azure writer closed")
	return nil
}
