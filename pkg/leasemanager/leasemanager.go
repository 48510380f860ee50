// Package leasemanager implements the lease issuing service: an HTTP API
// granting time-bounded exclusive leases on named resources.
//
// A lease grants its holder exclusive use of a resource until it expires or
// is released. Expiry is passive: no sweeper runs, a lease simply stops
// being active once the database clock passes expires_at. Acquiring a
// resource again inserts a fresh row, so the table keeps the grant history.
package leasemanager

import (
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/marmos91/tasklease/pkg/api"
	"github.com/marmos91/tasklease/pkg/metrics"
	"github.com/marmos91/tasklease/pkg/store"
)

// Config configures the lease manager service.
type Config struct {
	// API configures the HTTP server.
	API api.Config `mapstructure:"api" yaml:"api"`

	// TTL is how long a lease stays active after acquire or renew.
	// Default: 30s
	TTL time.Duration `mapstructure:"ttl" validate:"omitempty,gt=0" yaml:"ttl"`

	// MonitorInterval is how often the state monitor samples lease counts
	// for the by-state gauge.
	// Default: 15s
	MonitorInterval time.Duration `mapstructure:"monitor_interval" yaml:"monitor_interval"`
}

// ApplyDefaults fills in zero values with production defaults.
func (c *Config) ApplyDefaults() {
	if c.API.Port <= 0 {
		c.API.Port = 9000
	}
	if c.TTL == 0 {
		c.TTL = 30 * time.Second
	}
	if c.MonitorInterval == 0 {
		c.MonitorInterval = 15 * time.Second
	}
}

// Service wires the lease half of the store to its HTTP handlers.
type Service struct {
	store   store.Store
	ttl     time.Duration
	metrics *metrics.Metrics
}

// New creates a lease manager service. m may be nil, in which case no
// metrics are recorded.
func New(st store.Store, cfg Config, m *metrics.Metrics) *Service {
	cfg.ApplyDefaults()
	return &Service{
		store:   st,
		ttl:     cfg.TTL,
		metrics: m,
	}
}

// TTL returns the configured lease duration.
func (s *Service) TTL() time.Duration {
	return s.ttl
}

// Router returns the service routes mounted on the shared middleware stack.
func (s *Service) Router() *chi.Mux {
	r := api.NewRouter("leasemanager", s.metrics)

	r.Route("/leases", func(r chi.Router) {
		r.Post("/", s.handleAcquire)
		r.Get("/", s.handleList)
		r.Put("/renew", s.handleRenew)
		r.Put("/release", s.handleRelease)
		r.Delete("/{id}", s.handleReleaseByID)
	})

	return r
}
