package storage

import (
	"context"

	"go.uber.org/zap"

	"github.com/jittakal/kaflogcache/internal/config/dto"
	"github.com/jittakal/kaflogcache/internal/encoder"
	"github.com/jittakal/kaflogcache/internal/errors"
	"github.com/jittakal/kaflogcache/pkg/storage"
)

// NewWriter creates the storage writer for the configured backend.
func NewWriter(ctx context.Context, cfg *dto.ApplicationConfig, logger *zap.Logger, metrics MetricsCollector) (storage.Writer, error) {
	opts := encoder.OptionsFromConfig(cfg)

	switch cfg.Storage.Backend {
	case "s3":
		s3Cfg := cfg.Storage.S3
		return NewS3Writer(ctx, S3Config{
			Bucket:       s3Cfg.Bucket,
			Region:       s3Cfg.Region,
			Endpoint:     s3Cfg.Endpoint,
			UsePathStyle: s3Cfg.UsePathStyle,
			SSEEnabled:   s3Cfg.SSEEnabled,
			SSEKMSKeyID:  s3Cfg.SSEKMSKeyID,
		}, opts, logger, metrics)
	case "azure":
		azCfg := cfg.Storage.Azure
		return NewAzureWriter(AzureConfig{
			AccountName:   azCfg.AccountName,
			AccountKey:    azCfg.AccountKey,
			ContainerName: azCfg.Container,
			Endpoint:      azCfg.Endpoint,
		}, opts, logger, metrics)
	case "gcs":
		gcsCfg := cfg.Storage.GCS
		return NewGCSWriter(ctx, GCSConfig{
			Bucket:               gcsCfg.Bucket,
			ProjectID:            gcsCfg.ProjectID,
			CredentialsFile:      gcsCfg.CredentialsFile,
			CredentialsJSON:      gcsCfg.CredentialsJSON,
			Endpoint:             gcsCfg.Endpoint,
			UseDefaultCredential: gcsCfg.UseDefaultCredential,
		}, opts, logger, metrics)
	case "file":
		return NewFileWriter(FileConfig{BasePath: cfg.Storage.File.BasePath}, opts, logger, metrics)
	default:
		return nil, errors.ErrUnsupportedBackend
	}
}

// NewRouterFor creates a router whose paths match the configured backend.
func NewRouterFor(cfg *dto.ApplicationConfig) *DefaultRouter {
	return NewRouter(protocol(cfg.Storage.Backend), bucket(cfg), basePath(cfg), "v1")
}

// NewPolicyFor creates the rotation policy from the file rotation settings.
func NewPolicyFor(cfg *dto.ApplicationConfig) *CompositePolicy {
	return NewPolicy(PolicyConfig{
		MaxFileSizeMB:      cfg.FileRotation.MaxFileSizeMB,
		MaxRecordsPerFile:  cfg.FileRotation.MaxRecordsPerFile,
		MaxDurationSeconds: cfg.FileRotation.MaxDurationSeconds,
		Strategy:           cfg.FileRotation.Strategy,
	})
}

func protocol(backend string) string {
	switch backend {
	case "s3":
		return "s3"
	case "azure":
		return "wasbs"
	case "gcs":
		return "gs"
	default:
		return "file"
	}
}

func bucket(cfg *dto.ApplicationConfig) string {
	switch cfg.Storage.Backend {
	case "s3":
		return cfg.Storage.S3.Bucket
	case "azure":
		return cfg.Storage.Azure.Container
	case "gcs":
		return cfg.Storage.GCS.Bucket
	default:
		return "local"
	}
}

func basePath(cfg *dto.ApplicationConfig) string {
	switch cfg.Storage.Backend {
	case "s3":
		return cfg.Storage.S3.BasePath
	case "azure":
		return cfg.Storage.Azure.BasePath
	case "gcs":
		return cfg.Storage.GCS.BasePath
	default:
		// FileWriter already roots every path at storage.file.base_path.
		return ""
	}
}
