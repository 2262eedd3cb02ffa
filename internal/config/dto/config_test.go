package dto

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func validConfig() ApplicationConfig {
	return ApplicationConfig{
		Application: ApplicationInfo{Name: "kaflogcache"},
		Kafka: KafkaConfig{
			BootstrapServers: []string{"localhost:9092"},
			Consumer:         ConsumerConfig{GroupID: "kaflogcache", Topics: []string{"app-logs"}},
		},
		Cache: CacheConfig{Name: "app-logs", CapacityMB: 64},
		Storage: StorageConfig{
			Backend: "file",
			Format:  "parquet",
			File:    FileConfig{BasePath: "./data"},
		},
		FileRotation:  FileRotationConfig{MaxFileSizeMB: 32, Strategy: "any"},
		Processing:    ProcessingConfig{MaxConcurrentUploads: 4, FlushCheckIntervalMS: 500},
		Observability: ObservabilityConfig{Metrics: MetricsConfig{Port: 9090}, Health: HealthConfig{Port: 8080}},
	}
}

func TestApplicationConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*ApplicationConfig)
		wantErr string
	}{
		{name: "valid", mutate: func(*ApplicationConfig) {}},
		{
			name:    "missing name",
			mutate:  func(c *ApplicationConfig) { c.Application.Name = "" },
			wantErr: "application.name is required",
		},
		{
			name:    "missing brokers",
			mutate:  func(c *ApplicationConfig) { c.Kafka.BootstrapServers = nil },
			wantErr: "kafka.bootstrap_servers is required",
		},
		{
			name:    "missing topics",
			mutate:  func(c *ApplicationConfig) { c.Kafka.Consumer.Topics = nil },
			wantErr: "kafka.consumer.topics is required",
		},
		{
			name:    "missing group",
			mutate:  func(c *ApplicationConfig) { c.Kafka.Consumer.GroupID = "" },
			wantErr: "kafka.consumer.group_id is required",
		},
		{
			name:    "missing backend",
			mutate:  func(c *ApplicationConfig) { c.Storage.Backend = "" },
			wantErr: "unsupported storage backend",
		},
		{
			name:    "backend settings incomplete",
			mutate:  func(c *ApplicationConfig) { c.Storage.File.BasePath = "" },
			wantErr: "storage.file.base_path is required",
		},
		{
			name:    "zero cache capacity",
			mutate:  func(c *ApplicationConfig) { c.Cache.CapacityMB = 0 },
			wantErr: "cache.capacity_mb must be positive",
		},
		{
			name:    "rotation size not below capacity",
			mutate:  func(c *ApplicationConfig) { c.FileRotation.MaxFileSizeMB = 64 },
			wantErr: "file_rotation.max_file_size_mb (64) must be below cache.capacity_mb (64)",
		},
		{
			name:    "zero upload concurrency",
			mutate:  func(c *ApplicationConfig) { c.Processing.MaxConcurrentUploads = 0 },
			wantErr: "processing.max_concurrent_uploads must be at least 1",
		},
		{
			name:    "invalid metrics port",
			mutate:  func(c *ApplicationConfig) { c.Observability.Metrics.Port = 0 },
			wantErr: "invalid metrics port",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestKafkaConfig_Validate(t *testing.T) {
	assert.NoError(t, (&KafkaConfig{BootstrapServers: []string{"localhost:9092"}}).Validate())
	assert.NoError(t, (&KafkaConfig{BootstrapServers: []string{"b-1:9098"}, SecurityProtocol: "SASL_SSL"}).Validate())
	assert.Error(t, (&KafkaConfig{}).Validate())
	assert.ErrorContains(t,
		(&KafkaConfig{BootstrapServers: []string{"localhost:9092"}, SecurityProtocol: "TLS"}).Validate(),
		"unsupported security protocol: TLS")
}

func TestStorageConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		config  StorageConfig
		wantErr string
	}{
		{name: "s3", config: StorageConfig{Backend: "s3", Format: "parquet", S3: S3Config{Bucket: "logs", Region: "us-east-1"}}},
		{name: "s3 without region", config: StorageConfig{Backend: "s3", Format: "parquet", S3: S3Config{Bucket: "logs"}}, wantErr: "storage.s3.region"},
		{name: "s3 without bucket", config: StorageConfig{Backend: "s3", Format: "parquet", S3: S3Config{Region: "us-east-1"}}, wantErr: "storage.s3.bucket"},
		{name: "azure", config: StorageConfig{Backend: "azure", Format: "avro", Azure: AzureConfig{AccountName: "acct", Container: "logs"}}},
		{name: "azure without container", config: StorageConfig{Backend: "azure", Format: "avro", Azure: AzureConfig{AccountName: "acct"}}, wantErr: "storage.azure.container"},
		{name: "gcs", config: StorageConfig{Backend: "gcs", Format: "parquet", GCS: GCSConfig{Bucket: "logs"}}},
		{name: "gcs without bucket", config: StorageConfig{Backend: "gcs", Format: "parquet"}, wantErr: "storage.gcs.bucket"},
		{name: "unknown backend", config: StorageConfig{Backend: "ftp", Format: "parquet"}, wantErr: "unsupported storage backend: ftp"},
		{name: "unknown format", config: StorageConfig{Backend: "file", Format: "csv", File: FileConfig{BasePath: "./data"}}, wantErr: "unsupported storage format: csv"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestFileRotationConfig_Validate(t *testing.T) {
	cache := CacheConfig{CapacityMB: 64}

	assert.NoError(t, (&FileRotationConfig{Strategy: "any", MaxFileSizeMB: 32}).Validate(cache))
	assert.NoError(t, (&FileRotationConfig{Strategy: "all", MaxRecordsPerFile: 1000}).Validate(cache), "size rotation disabled")
	assert.Error(t, (&FileRotationConfig{Strategy: "any", MaxFileSizeMB: 64}).Validate(cache))
	assert.Error(t, (&FileRotationConfig{Strategy: "any", MaxFileSizeMB: 128}).Validate(cache))
	assert.ErrorContains(t, (&FileRotationConfig{Strategy: "some"}).Validate(cache), "unsupported rotation strategy")
}

func TestLoadGenConfig_Validate(t *testing.T) {
	assert.NoError(t, (&LoadGenConfig{Topic: "app-logs", BatchSize: 10, IntervalMS: 1000}).Validate())
	assert.ErrorContains(t, (&LoadGenConfig{BatchSize: 10, IntervalMS: 1000}).Validate(), "loadgen.topic")
	assert.ErrorContains(t, (&LoadGenConfig{Topic: "app-logs", IntervalMS: 1000}).Validate(), "loadgen.batch_size")
	assert.ErrorContains(t, (&LoadGenConfig{Topic: "app-logs", BatchSize: 10}).Validate(), "loadgen.interval_ms")
}

func TestCacheConfig(t *testing.T) {
	cfg := CacheConfig{Name: "app-logs", CapacityMB: 64}

	assert.Equal(t, int64(64*1024*1024), cfg.CapacityBytes())
	assert.NoError(t, cfg.Validate())

	cfg.CapacityMB = 0
	assert.Error(t, cfg.Validate())
}

func TestDurations(t *testing.T) {
	processing := ProcessingConfig{
		FlushIntervalSeconds: 60,
		FlushCheckIntervalMS: 250,
		DrainTimeoutSeconds:  30,
	}
	assert.Equal(t, time.Minute, processing.FlushInterval())
	assert.Equal(t, 250*time.Millisecond, processing.FlushCheckInterval())
	assert.Equal(t, 30*time.Second, processing.DrainTimeout())

	assert.Equal(t, 100*time.Millisecond, LoadGenConfig{IntervalMS: 100}.Interval())
	assert.Equal(t, 15*time.Second, ShutdownConfig{GracePeriodSeconds: 15}.GracePeriod())
}
