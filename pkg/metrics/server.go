package metrics

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/marmos91/tasklease/internal/logger"
)

// Config configures the metrics endpoint.
type Config struct {
	// Enabled controls whether the metrics server is started.
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Port is the HTTP port for the /metrics endpoint.
	// Default: 9090
	Port int `mapstructure:"port" validate:"omitempty,min=1,max=65535" yaml:"port"`
}

// ApplyDefaults fills in zero values with sensible defaults.
func (c *Config) ApplyDefaults() {
	if c.Port <= 0 {
		c.Port = 9090
	}
}

// Result bundles everything produced by Init.
type Result struct {
	// Registry collects all service metrics, plus Go runtime and process
	// collectors.
	Registry *prometheus.Registry

	// Metrics is nil when metrics are disabled; all its observers are
	// nil-safe, so callers instrument unconditionally.
	Metrics *Metrics

	// Server is nil when metrics are disabled.
	Server *Server
}

// Init builds the metrics registry and server according to cfg.
// When disabled it returns an empty Result whose nil Metrics silently
// drops every observation.
func Init(cfg Config) *Result {
	if !cfg.Enabled {
		return &Result{}
	}

	cfg.ApplyDefaults()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return &Result{
		Registry: registry,
		Metrics:  NewMetrics(registry),
		Server:   NewServer(cfg, registry),
	}
}

// Server serves the Prometheus scrape endpoint on its own port, away from
// the service API.
type Server struct {
	server       *http.Server
	port         int
	shutdownOnce sync.Once
}

// NewServer creates the metrics HTTP server. Call Start() to begin serving.
func NewServer(cfg Config, registry *prometheus.Registry) *Server {
	cfg.ApplyDefaults()

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	return &Server{
		server: &http.Server{
			Addr:         fmt.Sprintf(":%d", cfg.Port),
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
		},
		port: cfg.Port,
	}
}

// Start serves /metrics until the context is cancelled.
func (s *Server) Start(ctx context.Context) error {
	errChan := make(chan error, 1)
	go func() {
		logger.Info("Metrics server listening", "port", s.port)
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			select {
			case errChan <- err:
			default:
			}
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.Stop(shutdownCtx)
	case err := <-errChan:
		return fmt.Errorf("metrics server failed: %w", err)
	}
}

// Stop initiates graceful shutdown. Safe to call multiple times.
func (s *Server) Stop(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		if err := s.server.Shutdown(ctx); err != nil {
			shutdownErr = fmt.Errorf("metrics server shutdown error: %w", err)
		} else {
			logger.Debug("Metrics server stopped")
		}
	})
	return shutdownErr
}
