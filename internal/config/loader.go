package config

import (
	"errors"
	"os"
	"strings"

	"github.com/hyp3rd/ewrap"
	"github.com/spf13/viper"

	"github.com/jittakal/kaflogcache/internal/config/dto"
)

// DefaultConfigPath is used when neither a flag nor CONFIG_PATH names a file.
const DefaultConfigPath = "config/application.yaml"

// ResolvePath picks the configuration file: the flag value, then the
// CONFIG_PATH environment variable, then DefaultConfigPath.
func ResolvePath(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if env := os.Getenv("CONFIG_PATH"); env != "" {
		return env
	}
	return DefaultConfigPath
}

// Loader handles configuration loading and validation
type Loader struct {
	v *viper.Viper
}

// NewLoader creates a new configuration loader
func NewLoader() *Loader {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix("APP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return &Loader{v: v}
}

// Load loads the service configuration from file and environment variables
// and validates it for the cache service.
func (l *Loader) Load(path string) (*dto.ApplicationConfig, error) {
	config, err := l.read(path)
	if err != nil {
		return nil, err
	}

	if err := l.Validate(config); err != nil {
		return nil, ewrap.Wrap(err, "config validation failed")
	}

	return config, nil
}

// LoadProducer loads the configuration for the load generator, which only
// needs the Kafka connection and the loadgen section.
func (l *Loader) LoadProducer(path string) (*dto.ApplicationConfig, error) {
	config, err := l.read(path)
	if err != nil {
		return nil, err
	}

	if err := l.ValidateProducer(config); err != nil {
		return nil, ewrap.Wrap(err, "config validation failed")
	}

	return config, nil
}

func (l *Loader) read(path string) (*dto.ApplicationConfig, error) {
	l.setDefaults()

	if path != "" {
		l.v.SetConfigFile(path)
		if err := l.v.ReadInConfig(); err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				return nil, ewrap.Wrap(err, "failed to read config file").
					WithMetadata("path", path)
			}
		}
	}

	// Expand environment variables in values containing ${...}
	for _, key := range l.v.AllKeys() {
		value := l.v.GetString(key)
		if strings.Contains(value, "${") {
			l.v.Set(key, os.ExpandEnv(value))
		}
	}

	var config dto.ApplicationConfig
	if err := l.v.Unmarshal(&config); err != nil {
		return nil, ewrap.Wrap(err, "failed to unmarshal config")
	}

	return &config, nil
}

// setDefaults sets default configuration values
func (l *Loader) setDefaults() {
	// Application defaults
	l.v.SetDefault("application.name", "kaflogcache")
	l.v.SetDefault("application.version", "1.0.0")
	l.v.SetDefault("application.environment", "development")

	// Kafka defaults
	l.v.SetDefault("kafka.security_protocol", "PLAINTEXT")
	l.v.SetDefault("kafka.sasl_mechanism", "PLAIN")
	l.v.SetDefault("kafka.aws_region", "us-east-1")
	l.v.SetDefault("kafka.consumer.group_id", "kaflogcache")
	l.v.SetDefault("kafka.consumer.auto_offset_reset", "earliest")
	l.v.SetDefault("kafka.consumer.enable_auto_commit", false)
	l.v.SetDefault("kafka.consumer.max_poll_records", 1000)
	l.v.SetDefault("kafka.consumer.max_poll_interval_ms", 300000)
	l.v.SetDefault("kafka.consumer.session_timeout_ms", 30000)
	l.v.SetDefault("kafka.consumer.heartbeat_interval_ms", 10000)
	l.v.SetDefault("kafka.producer.client_id", "kaflogload")
	l.v.SetDefault("kafka.producer.compression", "snappy")
	l.v.SetDefault("kafka.producer.required_acks", "all")
	l.v.SetDefault("kafka.producer.max_retries", 3)
	l.v.SetDefault("kafka.dlq.enabled", true)
	l.v.SetDefault("kafka.dlq.topic_suffix", "-dlq")
	l.v.SetDefault("kafka.dlq.max_retries", 3)

	// Cache defaults
	l.v.SetDefault("cache.name", "app-logs")
	l.v.SetDefault("cache.capacity_mb", 64)

	// Storage defaults
	l.v.SetDefault("storage.backend", "file")
	l.v.SetDefault("storage.format", "parquet")
	l.v.SetDefault("storage.file.base_path", "./data")
	l.v.SetDefault("storage.s3.use_path_style", false)
	l.v.SetDefault("storage.s3.sse_enabled", true)

	// File rotation defaults
	l.v.SetDefault("file_rotation.max_file_size_mb", 32)
	l.v.SetDefault("file_rotation.max_records_per_file", 100000)
	l.v.SetDefault("file_rotation.max_duration_seconds", 300)
	l.v.SetDefault("file_rotation.strategy", "any")

	// Parquet defaults
	l.v.SetDefault("parquet.compression", "snappy")
	l.v.SetDefault("parquet.max_rows_per_row_group", 100000)
	l.v.SetDefault("parquet.page_size_kb", 1024)
	l.v.SetDefault("parquet.enable_statistics", true)

	// Avro defaults
	l.v.SetDefault("avro.codec", "snappy")
	l.v.SetDefault("avro.sync_interval", 16000)
	l.v.SetDefault("avro.gzip", false)

	// Processing defaults
	l.v.SetDefault("processing.flush_interval_seconds", 60)
	l.v.SetDefault("processing.flush_check_interval_ms", 500)
	l.v.SetDefault("processing.max_concurrent_uploads", 5)
	l.v.SetDefault("processing.drain_timeout_seconds", 30)

	// Load generator defaults
	l.v.SetDefault("loadgen.topic", "app-logs")
	l.v.SetDefault("loadgen.source", "kaflogload")
	l.v.SetDefault("loadgen.interval_ms", 1000)
	l.v.SetDefault("loadgen.batch_size", 10)
	l.v.SetDefault("loadgen.services", []string{"checkout", "payments", "inventory"})
	l.v.SetDefault("loadgen.max_events", 0)

	// Observability defaults
	l.v.SetDefault("observability.logging.level", "info")
	l.v.SetDefault("observability.logging.format", "json")
	l.v.SetDefault("observability.logging.output", "stdout")
	l.v.SetDefault("observability.metrics.enabled", true)
	l.v.SetDefault("observability.metrics.port", 9090)
	l.v.SetDefault("observability.metrics.path", "/metrics")
	l.v.SetDefault("observability.health.port", 8080)
	l.v.SetDefault("observability.health.liveness_path", "/health/live")
	l.v.SetDefault("observability.health.readiness_path", "/health/ready")

	// Shutdown defaults
	l.v.SetDefault("shutdown.grace_period_seconds", 30)
	l.v.SetDefault("shutdown.force_timeout_seconds", 60)
}

// Validate validates the service configuration
func (l *Loader) Validate(config *dto.ApplicationConfig) error {
	return config.Validate()
}

// ValidateProducer validates the load generator configuration
func (l *Loader) ValidateProducer(config *dto.ApplicationConfig) error {
	if err := config.Kafka.Validate(); err != nil {
		return err
	}
	return config.LoadGen.Validate()
}
