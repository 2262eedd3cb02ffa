package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/hyp3rd/ewrap"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/jittakal/kaflogcache/internal/config"
	"github.com/jittakal/kaflogcache/internal/kafka"
	"github.com/jittakal/kaflogcache/internal/loadgen"
	"github.com/jittakal/kaflogcache/internal/observability"
)

var (
	// Version information (set during build)
	version   = "dev"
	commit    = "none"
	buildTime = "unknown"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("load generator error: %v", err)
	}
}

func run() error {
	configPath := flag.String("config", "", "path to configuration file")
	flag.Parse()

	cfg, err := config.NewLoader().LoadProducer(config.ResolvePath(*configPath))
	if err != nil {
		return ewrap.Wrap(err, "failed to load configuration")
	}

	logger, err := observability.NewLogger(observability.LoggingConfig{
		Level:  cfg.Observability.Logging.Level,
		Format: cfg.Observability.Logging.Format,
		Output: cfg.Observability.Logging.Output,
	})
	if err != nil {
		return ewrap.Wrap(err, "failed to create logger")
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("starting kaflogload",
		zap.String("version", version),
		zap.String("commit", commit),
		zap.String("build_time", buildTime),
		zap.Strings("brokers", cfg.Kafka.BootstrapServers),
	)

	metrics := observability.NewMetrics(prometheus.NewRegistry())

	producer, err := kafka.NewEventProducer(kafka.ProducerConfig{
		BootstrapServers: cfg.Kafka.BootstrapServers,
		Security:         kafka.SecurityFromConfig(cfg.Kafka),
		ClientID:         cfg.Kafka.Producer.ClientID,
		Compression:      cfg.Kafka.Producer.Compression,
		RequiredAcks:     cfg.Kafka.Producer.RequiredAcks,
		MaxRetries:       cfg.Kafka.Producer.MaxRetries,
	}, logger, metrics)
	if err != nil {
		return ewrap.Wrap(err, "failed to create producer")
	}
	defer func() {
		if err := producer.Close(); err != nil {
			logger.Error("failed to close producer", zap.Error(err))
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	generator := loadgen.NewGenerator(cfg.LoadGen.Source, cfg.LoadGen.Services, logger)
	produced := loadgen.NewRunner(producer, generator, loadgen.ConfigFrom(cfg.LoadGen), logger).Run(ctx)

	logger.Info("shutdown complete", zap.Int("produced", produced))
	return nil
}
