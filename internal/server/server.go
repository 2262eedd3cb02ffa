// Package server implements the HTTP servers for health checks and metrics.
package server

import (
	"context"
	stderrors "errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/hyp3rd/ewrap"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/jittakal/kaflogcache/internal/config/dto"
)

// HealthChecker reports component health.
type HealthChecker interface {
	Liveness() bool
	Readiness(ctx context.Context) bool
	Status() map[string]string
}

// Config selects ports and paths for both servers.
type Config struct {
	HealthPort     int
	LivenessPath   string
	ReadinessPath  string
	MetricsEnabled bool
	MetricsPort    int
	MetricsPath    string
}

// ConfigFrom maps the observability settings to a server Config.
func ConfigFrom(cfg dto.ObservabilityConfig) Config {
	return Config{
		HealthPort:     cfg.Health.Port,
		LivenessPath:   cfg.Health.LivenessPath,
		ReadinessPath:  cfg.Health.ReadinessPath,
		MetricsEnabled: cfg.Metrics.Enabled,
		MetricsPort:    cfg.Metrics.Port,
		MetricsPath:    cfg.Metrics.Path,
	}
}

// Server runs the health server and, when enabled, the metrics server.
type Server struct {
	servers   []*http.Server
	listeners []net.Listener
	logger    *zap.Logger
}

// NewServer creates the HTTP servers. Nothing listens until Start.
func NewServer(
	cfg Config,
	healthChecker HealthChecker,
	gatherer prometheus.Gatherer,
	logger *zap.Logger,
) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}

	healthMux := http.NewServeMux()
	healthMux.HandleFunc(orDefault(cfg.LivenessPath, "/health/live"), LivenessHandler(healthChecker, logger))
	healthMux.HandleFunc(orDefault(cfg.ReadinessPath, "/health/ready"), ReadinessHandler(healthChecker, logger))

	s := &Server{logger: logger}
	s.servers = append(s.servers, newHTTPServer(cfg.HealthPort, healthMux))

	if cfg.MetricsEnabled {
		metricsMux := http.NewServeMux()
		metricsMux.Handle(orDefault(cfg.MetricsPath, "/metrics"), promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
		s.servers = append(s.servers, newHTTPServer(cfg.MetricsPort, metricsMux))
	}

	return s
}

func newHTTPServer(port int, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      10 * time.Second,
	}
}

func orDefault(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}

// Start binds every server and serves in the background.
// Bind failures are returned before anything is served.
func (s *Server) Start() error {
	for _, srv := range s.servers {
		ln, err := net.Listen("tcp", srv.Addr)
		if err != nil {
			for _, open := range s.listeners {
				_ = open.Close()
			}
			s.listeners = nil
			return ewrap.Wrap(err, "failed to listen").WithMetadata("addr", srv.Addr)
		}
		s.listeners = append(s.listeners, ln)
	}

	for i, srv := range s.servers {
		ln := s.listeners[i]
		s.logger.Info("starting HTTP server", zap.String("addr", ln.Addr().String()))
		go func() {
			if err := srv.Serve(ln); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
				s.logger.Error("HTTP server failed", zap.String("addr", ln.Addr().String()), zap.Error(err))
			}
		}()
	}
	return nil
}

// Addrs returns the bound addresses, health server first.
func (s *Server) Addrs() []string {
	addrs := make([]string, 0, len(s.listeners))
	for _, ln := range s.listeners {
		addrs = append(addrs, ln.Addr().String())
	}
	return addrs
}

// Shutdown gracefully shuts down all servers.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP servers")

	errChan := make(chan error, len(s.servers))
	for _, srv := range s.servers {
		go func() { errChan <- srv.Shutdown(ctx) }()
	}

	var errs []error
	for range s.servers {
		if err := <-errChan; err != nil {
			s.logger.Error("error shutting down server", zap.Error(err))
			errs = append(errs, err)
		}
	}
	return stderrors.Join(errs...)
}
