package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/jittakal/kaflogcache/internal/config/dto"
	"github.com/jittakal/kaflogcache/internal/errors"
	"github.com/jittakal/kaflogcache/pkg/event"
)

func TestNewRouterFor(t *testing.T) {
	ts := time.Date(2025, 12, 18, 0, 0, 0, 0, time.UTC).Unix()
	pid := event.PartitionID{Topic: "app-logs", Partition: 1}

	tests := []struct {
		name    string
		storage dto.StorageConfig
		want    string
	}{
		{
			name:    "s3",
			storage: dto.StorageConfig{Backend: "s3", S3: dto.S3Config{Bucket: "b", BasePath: "raw"}},
			want:    "s3://b/raw/app-logs/v10/dt=2025-12-18/pid=1/",
		},
		{
			name:    "azure",
			storage: dto.StorageConfig{Backend: "azure", Azure: dto.AzureConfig{Container: "c", BasePath: "raw"}},
			want:    "wasbs://c/raw/app-logs/v10/dt=2025-12-18/pid=1/",
		},
		{
			name:    "gcs",
			storage: dto.StorageConfig{Backend: "gcs", GCS: dto.GCSConfig{Bucket: "g"}},
			want:    "gs://g/app-logs/v10/dt=2025-12-18/pid=1/",
		},
		{
			name:    "file",
			storage: dto.StorageConfig{Backend: "file", File: dto.FileConfig{BasePath: "./data"}},
			want:    "file://local/app-logs/v10/dt=2025-12-18/pid=1/",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &dto.ApplicationConfig{Storage: tt.storage}
			assert.Equal(t, tt.want, NewRouterFor(cfg).Route(pid, ts, "1.0"))
		})
	}
}

func TestNewWriter(t *testing.T) {
	t.Run("file backend", func(t *testing.T) {
		cfg := &dto.ApplicationConfig{Storage: dto.StorageConfig{
			Backend: "file",
			Format:  "parquet",
			File:    dto.FileConfig{BasePath: t.TempDir()},
		}}

		w, err := NewWriter(context.Background(), cfg, zap.NewNop(), nil)
		require.NoError(t, err)
		assert.IsType(t, &FileWriter{}, w)
		assert.NoError(t, w.Close())
	})

	t.Run("unknown backend", func(t *testing.T) {
		cfg := &dto.ApplicationConfig{Storage: dto.StorageConfig{Backend: "ftp"}}

		_, err := NewWriter(context.Background(), cfg, zap.NewNop(), nil)
		assert.ErrorIs(t, err, errors.ErrUnsupportedBackend)
	})
}

func TestNewPolicyFor(t *testing.T) {
	cfg := &dto.ApplicationConfig{FileRotation: dto.FileRotationConfig{MaxRecordsPerFile: 2, Strategy: "any"}}

	policy := NewPolicyFor(cfg)
	assert.True(t, policy.ShouldRotate(event.FileStats{RecordCount: 2}))
	assert.False(t, policy.ShouldRotate(event.FileStats{RecordCount: 1}))
}
