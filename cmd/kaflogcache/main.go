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
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/jittakal/kaflogcache/internal/config"
	"github.com/jittakal/kaflogcache/internal/observability"
	"github.com/jittakal/kaflogcache/internal/pipeline"
	"github.com/jittakal/kaflogcache/internal/server"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("application error: %v", err)
	}
}

func run() error {
	configPath := flag.String("config", "", "path to configuration file")
	flag.Parse()

	cfg, err := config.NewLoader().Load(config.ResolvePath(*configPath))
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

	logger.Info("starting kaflogcache",
		zap.String("version", cfg.Application.Version),
		zap.String("environment", cfg.Application.Environment),
		zap.String("backend", cfg.Storage.Backend),
		zap.String("format", cfg.Storage.Format),
		zap.Int64("cache_capacity_bytes", cfg.Cache.CapacityBytes()),
	)

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := observability.NewMetrics(registry)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	p, err := pipeline.New(ctx, cfg, logger, metrics)
	if err != nil {
		return ewrap.Wrap(err, "failed to build pipeline")
	}

	httpServer := server.NewServer(server.ConfigFrom(cfg.Observability), p, registry, logger)
	if err := httpServer.Start(); err != nil {
		return ewrap.Wrap(err, "failed to start HTTP server")
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Shutdown.GracePeriod())
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("failed to shut down HTTP server", zap.Error(err))
		}
	}()

	logger.Info("application started", zap.Strings("http_addrs", httpServer.Addrs()))

	if err := p.Run(ctx); err != nil {
		return ewrap.Wrap(err, "pipeline stopped with error")
	}

	report := p.Report()
	logger.Info("application stopped",
		zap.Uint64("dropped", report.Dropped),
		zap.Int("residual_records", report.ResidualRecords),
	)
	return nil
}
