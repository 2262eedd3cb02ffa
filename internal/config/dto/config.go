package dto

import (
	"time"

	"github.com/hyp3rd/ewrap"
)

// ApplicationConfig is the root configuration structure
type ApplicationConfig struct {
	Application   ApplicationInfo     `mapstructure:"application"`
	Kafka         KafkaConfig         `mapstructure:"kafka"`
	Cache         CacheConfig         `mapstructure:"cache"`
	Storage       StorageConfig       `mapstructure:"storage"`
	FileRotation  FileRotationConfig  `mapstructure:"file_rotation"`
	Parquet       ParquetConfig       `mapstructure:"parquet"`
	Avro          AvroConfig          `mapstructure:"avro"`
	Processing    ProcessingConfig    `mapstructure:"processing"`
	LoadGen       LoadGenConfig       `mapstructure:"loadgen"`
	Observability ObservabilityConfig `mapstructure:"observability"`
	Shutdown      ShutdownConfig      `mapstructure:"shutdown"`
}

// ApplicationInfo contains application metadata
type ApplicationInfo struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

// KafkaConfig contains Kafka-related configuration
type KafkaConfig struct {
	BootstrapServers []string       `mapstructure:"bootstrap_servers"`
	SecurityProtocol string         `mapstructure:"security_protocol"`
	SASLMechanism    string         `mapstructure:"sasl_mechanism"`
	SASLUsername     string         `mapstructure:"sasl_username"`
	SASLPassword     string         `mapstructure:"sasl_password"`
	AWSRegion        string         `mapstructure:"aws_region"`
	Consumer         ConsumerConfig `mapstructure:"consumer"`
	Producer         ProducerConfig `mapstructure:"producer"`
	DLQ              DLQConfig      `mapstructure:"dlq"`
}

// ConsumerConfig contains Kafka consumer configuration
type ConsumerConfig struct {
	GroupID             string   `mapstructure:"group_id"`
	Topics              []string `mapstructure:"topics"`
	AutoOffsetReset     string   `mapstructure:"auto_offset_reset"`
	EnableAutoCommit    bool     `mapstructure:"enable_auto_commit"`
	MaxPollRecords      int      `mapstructure:"max_poll_records"`
	MaxPollIntervalMS   int      `mapstructure:"max_poll_interval_ms"`
	SessionTimeoutMS    int      `mapstructure:"session_timeout_ms"`
	HeartbeatIntervalMS int      `mapstructure:"heartbeat_interval_ms"`
}

// ProducerConfig contains Kafka producer configuration for the load generator
type ProducerConfig struct {
	ClientID     string `mapstructure:"client_id"`
	Compression  string `mapstructure:"compression"`
	RequiredAcks string `mapstructure:"required_acks"`
	MaxRetries   int    `mapstructure:"max_retries"`
}

// DLQConfig contains dead letter queue configuration
type DLQConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	TopicSuffix string `mapstructure:"topic_suffix"`
	MaxRetries  int    `mapstructure:"max_retries"`
}

// CacheConfig contains the write-behind cache configuration
type CacheConfig struct {
	Name       string `mapstructure:"name"`
	CapacityMB int64  `mapstructure:"capacity_mb"`
}

// CapacityBytes returns the per-buffer capacity in bytes.
func (c CacheConfig) CapacityBytes() int64 {
	return c.CapacityMB * 1024 * 1024
}

// StorageConfig contains storage backend configuration
type StorageConfig struct {
	Backend string      `mapstructure:"backend"`
	Format  string      `mapstructure:"format"`
	S3      S3Config    `mapstructure:"s3"`
	Azure   AzureConfig `mapstructure:"azure"`
	GCS     GCSConfig   `mapstructure:"gcs"`
	File    FileConfig  `mapstructure:"file"`
}

// S3Config contains AWS S3 configuration
type S3Config struct {
	Bucket       string `mapstructure:"bucket"`
	Region       string `mapstructure:"region"`
	BasePath     string `mapstructure:"base_path"`
	Endpoint     string `mapstructure:"endpoint"`
	UsePathStyle bool   `mapstructure:"use_path_style"`
	SSEEnabled   bool   `mapstructure:"sse_enabled"`
	SSEKMSKeyID  string `mapstructure:"sse_kms_key_id"`
}

// AzureConfig contains Azure Blob Storage configuration
type AzureConfig struct {
	AccountName string `mapstructure:"account_name"`
	AccountKey  string `mapstructure:"account_key"`
	Container   string `mapstructure:"container"`
	BasePath    string `mapstructure:"base_path"`
	Endpoint    string `mapstructure:"endpoint"`
}

// GCSConfig contains Google Cloud Storage configuration
type GCSConfig struct {
	Bucket               string `mapstructure:"bucket"`
	ProjectID            string `mapstructure:"project_id"`
	BasePath             string `mapstructure:"base_path"`
	CredentialsFile      string `mapstructure:"credentials_file"`
	CredentialsJSON      string `mapstructure:"credentials_json"`
	Endpoint             string `mapstructure:"endpoint"`
	UseDefaultCredential bool   `mapstructure:"use_default_credential"`
}

// FileConfig contains local filesystem configuration
type FileConfig struct {
	BasePath string `mapstructure:"base_path"`
}

// FileRotationConfig contains file rotation settings
type FileRotationConfig struct {
	MaxFileSizeMB      int64  `mapstructure:"max_file_size_mb"`
	MaxRecordsPerFile  int    `mapstructure:"max_records_per_file"`
	MaxDurationSeconds int    `mapstructure:"max_duration_seconds"`
	Strategy           string `mapstructure:"strategy"`
}

// ParquetConfig contains Parquet format settings
type ParquetConfig struct {
	Compression        string `mapstructure:"compression"`
	MaxRowsPerRowGroup int64  `mapstructure:"max_rows_per_row_group"`
	PageSizeKB         int    `mapstructure:"page_size_kb"`
	EnableStatistics   bool   `mapstructure:"enable_statistics"`
}

// AvroConfig contains Avro format settings
type AvroConfig struct {
	Codec        string `mapstructure:"codec"`
	SyncInterval int    `mapstructure:"sync_interval"`
	Gzip         bool   `mapstructure:"gzip"`
}

// ProcessingConfig contains processing settings
type ProcessingConfig struct {
	FlushIntervalSeconds int `mapstructure:"flush_interval_seconds"`
	FlushCheckIntervalMS int `mapstructure:"flush_check_interval_ms"`
	MaxConcurrentUploads int `mapstructure:"max_concurrent_uploads"`
	DrainTimeoutSeconds  int `mapstructure:"drain_timeout_seconds"`
}

// FlushInterval returns the maximum time between flushes.
func (c ProcessingConfig) FlushInterval() time.Duration {
	return time.Duration(c.FlushIntervalSeconds) * time.Second
}

// FlushCheckInterval returns how often the flusher inspects the cache.
func (c ProcessingConfig) FlushCheckInterval() time.Duration {
	return time.Duration(c.FlushCheckIntervalMS) * time.Millisecond
}

// DrainTimeout returns the time allowed for the final drain at shutdown.
func (c ProcessingConfig) DrainTimeout() time.Duration {
	return time.Duration(c.DrainTimeoutSeconds) * time.Second
}

// LoadGenConfig contains load generator settings
type LoadGenConfig struct {
	Topic      string   `mapstructure:"topic"`
	Source     string   `mapstructure:"source"`
	IntervalMS int      `mapstructure:"interval_ms"`
	BatchSize  int      `mapstructure:"batch_size"`
	Services   []string `mapstructure:"services"`
	MaxEvents  int      `mapstructure:"max_events"`
}

// Interval returns the pause between batches.
func (c LoadGenConfig) Interval() time.Duration {
	return time.Duration(c.IntervalMS) * time.Millisecond
}

// ObservabilityConfig contains observability settings
type ObservabilityConfig struct {
	Logging LoggingConfig `mapstructure:"logging"`
	Metrics MetricsConfig `mapstructure:"metrics"`
	Health  HealthConfig  `mapstructure:"health"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

// MetricsConfig contains metrics settings
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Port    int    `mapstructure:"port"`
	Path    string `mapstructure:"path"`
}

// HealthConfig contains health check settings
type HealthConfig struct {
	Port          int    `mapstructure:"port"`
	LivenessPath  string `mapstructure:"liveness_path"`
	ReadinessPath string `mapstructure:"readiness_path"`
}

// ShutdownConfig contains shutdown settings
type ShutdownConfig struct {
	GracePeriodSeconds  int `mapstructure:"grace_period_seconds"`
	ForceTimeoutSeconds int `mapstructure:"force_timeout_seconds"`
}

// GracePeriod returns the time allowed for HTTP servers to stop.
func (c ShutdownConfig) GracePeriod() time.Duration {
	return time.Duration(c.GracePeriodSeconds) * time.Second
}

// Validate validates the configuration of the cache service.
func (c *ApplicationConfig) Validate() error {
	if c.Application.Name == "" {
		return ewrap.New("application.name is required")
	}
	if err := c.Kafka.Validate(); err != nil {
		return err
	}
	if len(c.Kafka.Consumer.Topics) == 0 {
		return ewrap.New("kafka.consumer.topics is required")
	}
	if c.Kafka.Consumer.GroupID == "" {
		return ewrap.New("kafka.consumer.group_id is required")
	}
	if err := c.Cache.Validate(); err != nil {
		return err
	}
	if err := c.Storage.Validate(); err != nil {
		return err
	}
	if err := c.FileRotation.Validate(c.Cache); err != nil {
		return err
	}
	if err := c.Processing.Validate(); err != nil {
		return err
	}
	return c.Observability.Validate()
}

// Validate validates the broker connection settings shared by both binaries.
func (c *KafkaConfig) Validate() error {
	if len(c.BootstrapServers) == 0 {
		return ewrap.New("kafka.bootstrap_servers is required")
	}
	switch c.SecurityProtocol {
	case "", "PLAINTEXT", "SSL", "SASL_PLAINTEXT", "SASL_SSL":
	default:
		return ewrap.Newf("unsupported security protocol: %s", c.SecurityProtocol)
	}
	return nil
}

// Validate validates cache configuration.
func (c *CacheConfig) Validate() error {
	if c.CapacityMB <= 0 {
		return ewrap.Newf("cache.capacity_mb must be positive: %d", c.CapacityMB)
	}
	return nil
}

// Validate validates the selected storage backend and the file format.
func (c *StorageConfig) Validate() error {
	var err error
	switch c.Backend {
	case "s3":
		err = c.S3.Validate()
	case "azure":
		err = c.Azure.Validate()
	case "gcs":
		err = c.GCS.Validate()
	case "file":
		err = c.File.Validate()
	default:
		err = ewrap.Newf("unsupported storage backend: %s", c.Backend)
	}
	if err != nil {
		return err
	}

	if c.Format != "parquet" && c.Format != "avro" {
		return ewrap.Newf("unsupported storage format: %s", c.Format)
	}
	return nil
}

// Validate validates S3 configuration.
func (c *S3Config) Validate() error {
	if c.Bucket == "" {
		return ewrap.New("storage.s3.bucket is required for S3 backend")
	}
	if c.Region == "" {
		return ewrap.New("storage.s3.region is required for S3 backend")
	}
	return nil
}

// Validate validates Azure configuration.
func (c *AzureConfig) Validate() error {
	if c.AccountName == "" {
		return ewrap.New("storage.azure.account_name is required for Azure backend")
	}
	if c.Container == "" {
		return ewrap.New("storage.azure.container is required for Azure backend")
	}
	return nil
}

// Validate validates GCS configuration.
func (c *GCSConfig) Validate() error {
	if c.Bucket == "" {
		return ewrap.New("storage.gcs.bucket is required for GCS backend")
	}
	return nil
}

// Validate validates file configuration.
func (c *FileConfig) Validate() error {
	if c.BasePath == "" {
		return ewrap.New("storage.file.base_path is required for file backend")
	}
	return nil
}

// Validate validates the rotation strategy against the cache it drains.
// A size limit must stay below the cache capacity, otherwise the buffer
// fills and drops records before size-based rotation can fire.
func (c *FileRotationConfig) Validate(cache CacheConfig) error {
	if c.Strategy != "any" && c.Strategy != "all" {
		return ewrap.Newf("unsupported rotation strategy: %s", c.Strategy)
	}
	if c.MaxFileSizeMB > 0 && c.MaxFileSizeMB >= cache.CapacityMB {
		return ewrap.Newf("file_rotation.max_file_size_mb (%d) must be below cache.capacity_mb (%d)",
			c.MaxFileSizeMB, cache.CapacityMB)
	}
	return nil
}

// Validate validates processing configuration.
func (c *ProcessingConfig) Validate() error {
	if c.MaxConcurrentUploads < 1 {
		return ewrap.Newf("processing.max_concurrent_uploads must be at least 1: %d", c.MaxConcurrentUploads)
	}
	if c.FlushCheckIntervalMS < 1 {
		return ewrap.Newf("processing.flush_check_interval_ms must be positive: %d", c.FlushCheckIntervalMS)
	}
	return nil
}

// Validate validates the HTTP server ports.
func (c *ObservabilityConfig) Validate() error {
	if c.Metrics.Port < 1 || c.Metrics.Port > 65535 {
		return ewrap.Newf("invalid metrics port: %d", c.Metrics.Port)
	}
	if c.Health.Port < 1 || c.Health.Port > 65535 {
		return ewrap.Newf("invalid health port: %d", c.Health.Port)
	}
	return nil
}

// Validate validates the load generator configuration.
func (c *LoadGenConfig) Validate() error {
	if c.Topic == "" {
		return ewrap.New("loadgen.topic is required")
	}
	if c.BatchSize < 1 {
		return ewrap.Newf("loadgen.batch_size must be at least 1: %d", c.BatchSize)
	}
	if c.IntervalMS < 1 {
		return ewrap.Newf("loadgen.interval_ms must be positive: %d", c.IntervalMS)
	}
	return nil
}
