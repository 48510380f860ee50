// Package dispatcher implements the task dispatching service: an HTTP API
// handing out queued tasks to competing processors.
//
// Every claim is guarded by a lease on the synthetic resource "task:<id>",
// acquired from the lease manager inside the claiming transaction. If the
// lease cannot be acquired the claim rolls back and the task stays
// claimable, so two dispatcher replicas sharing one database can never hand
// the same task to two processors. Heartbeats renew the lease and push out
// the task deadline in one transaction, keeping both in step.
package dispatcher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/marmos91/tasklease/internal/logger"
	"github.com/marmos91/tasklease/pkg/api"
	"github.com/marmos91/tasklease/pkg/apiclient"
	"github.com/marmos91/tasklease/pkg/metrics"
	"github.com/marmos91/tasklease/pkg/models"
	"github.com/marmos91/tasklease/pkg/store"
)

// ErrTaskClaimConflict means the lease guarding the claim was already held,
// so another processor won the race for this task.
var ErrTaskClaimConflict = errors.New("task claim lost the lease race")

// LeaseService is the slice of the lease manager API the dispatcher uses.
// *apiclient.Client satisfies it.
type LeaseService interface {
	AcquireLease(ctx context.Context, resource, holder string) (*models.Lease, error)
	RenewLease(ctx context.Context, resource, holder string) (*models.Lease, error)
	ReleaseHolderLease(ctx context.Context, resource, holder string) (*models.Lease, error)
}

// Config configures the task dispatcher service.
type Config struct {
	// API configures the HTTP server.
	API api.Config `mapstructure:"api" yaml:"api"`

	// LeasesURL is the lease manager base URL.
	// Default: http://localhost:9000
	LeasesURL string `mapstructure:"leases_url" validate:"omitempty,url" yaml:"leases_url"`

	// TTL is the heartbeat deadline extension granted by claims and
	// heartbeats. It must match the lease manager's TTL so the task
	// deadline and the guarding lease expire together.
	// Default: 30s
	TTL time.Duration `mapstructure:"ttl" validate:"omitempty,gt=0" yaml:"ttl"`

	// ClientTimeout bounds each call to the lease manager. Keep it well
	// under half the TTL so a slow lease call cannot eat the renewal
	// window.
	// Default: 10s
	ClientTimeout time.Duration `mapstructure:"client_timeout" yaml:"client_timeout"`

	// MonitorInterval is how often the backlog monitor samples the count
	// of unfinished tasks.
	// Default: 15s
	MonitorInterval time.Duration `mapstructure:"monitor_interval" yaml:"monitor_interval"`
}

// ApplyDefaults fills in zero values with production defaults.
func (c *Config) ApplyDefaults() {
	if c.API.Port <= 0 {
		c.API.Port = 9001
	}
	if c.LeasesURL == "" {
		c.LeasesURL = "http://localhost:9000"
	}
	if c.TTL == 0 {
		c.TTL = 30 * time.Second
	}
	if c.ClientTimeout == 0 {
		c.ClientTimeout = 10 * time.Second
	}
	if c.MonitorInterval == 0 {
		c.MonitorInterval = 15 * time.Second
	}
}

// Service wires the task half of the store to the lease manager and the
// HTTP handlers.
type Service struct {
	store   store.Store
	leases  LeaseService
	ttl     time.Duration
	metrics *metrics.Metrics
}

// New creates a task dispatcher service. m may be nil, in which case no
// metrics are recorded.
func New(st store.Store, leases LeaseService, cfg Config, m *metrics.Metrics) *Service {
	cfg.ApplyDefaults()
	return &Service{
		store:   st,
		leases:  leases,
		ttl:     cfg.TTL,
		metrics: m,
	}
}

// taskResource names the lease guarding a task claim.
func taskResource(id uint) string {
	return fmt.Sprintf("task:%d", id)
}

// Router returns the service routes mounted on the shared middleware stack.
func (s *Service) Router() *chi.Mux {
	r := api.NewRouter("dispatcher", s.metrics)

	r.Route("/tasks", func(r chi.Router) {
		r.Post("/", s.handleCreate)
		r.Get("/", s.handleList)
		r.Post("/next", s.handleClaimNext)
		r.Get("/started", s.handleListStarted)
		r.Get("/processed", s.handleListProcessed)
		r.Get("/{id}", s.handleGet)
		r.Put("/{id}/heartbeat", s.handleHeartbeat)
		r.Put("/{id}/complete", s.handleComplete)
		r.Put("/{id}/abandon", s.handleAbandon)
	})

	return r
}

// ClaimNext assigns the oldest runnable task to processor, guarded by a
// lease on "task:<id>" acquired inside the claiming transaction.
// Returns (nil, nil) when nothing is runnable and ErrTaskClaimConflict when
// the lease race was lost; the task then stays claimable for the next call.
func (s *Service) ClaimNext(ctx context.Context, processor string) (*models.Task, error) {
	task, err := s.store.ClaimNextTask(ctx, processor, s.ttl, func(ctx context.Context, taskID uint, proc string) error {
		_, err := s.leases.AcquireLease(ctx, taskResource(taskID), proc)
		return err
	})
	if err != nil {
		if apiclient.IsConflict(err) {
			return nil, ErrTaskClaimConflict
		}
		return nil, err
	}
	return task, nil
}

// Heartbeat pushes out the task deadline and renews the guarding lease in
// one transaction. Any lease-side refusal means ownership is gone and maps
// to models.ErrTaskNotOwned.
func (s *Service) Heartbeat(ctx context.Context, id uint, processor string) (*models.Task, error) {
	task, err := s.store.HeartbeatTask(ctx, id, processor, s.ttl, func(ctx context.Context, taskID uint, proc string) error {
		_, err := s.leases.RenewLease(ctx, taskResource(taskID), proc)
		return err
	})
	if err != nil {
		if apiclient.IsConflict(err) || apiclient.IsNotFound(err) {
			return nil, models.ErrTaskNotOwned
		}
		return nil, err
	}
	return task, nil
}

// Complete marks the task processed and records its output, then releases
// the guarding lease. The release is best effort: the completion stands
// even if it fails, and the orphaned lease just expires.
func (s *Service) Complete(ctx context.Context, id uint, processor string, output json.RawMessage) (*models.Task, error) {
	task, err := s.store.CompleteTask(ctx, id, processor, output)
	if err != nil {
		return nil, err
	}

	s.releaseTaskLease(ctx, id, processor)
	return task, nil
}

// Abandon clears the task's processor so it is immediately claimable again,
// then releases the guarding lease best effort.
func (s *Service) Abandon(ctx context.Context, id uint, processor string) (*models.Task, error) {
	task, err := s.store.AbandonTask(ctx, id, processor)
	if err != nil {
		return nil, err
	}

	s.releaseTaskLease(ctx, id, processor)
	return task, nil
}

func (s *Service) releaseTaskLease(ctx context.Context, id uint, processor string) {
	if _, err := s.leases.ReleaseHolderLease(ctx, taskResource(id), processor); err != nil {
		logger.Warn("task lease release failed, lease will expire on its own",
			"task_id", id,
			"processor", processor,
			"error", err,
		)
	}
}

// Create enqueues a new task due immediately.
func (s *Service) Create(ctx context.Context, taskData json.RawMessage) (*models.Task, error) {
	return s.store.CreateTask(ctx, taskData, nil)
}

// Get returns a task by id.
func (s *Service) Get(ctx context.Context, id uint) (*models.Task, error) {
	return s.store.GetTask(ctx, id)
}

// List returns every task.
func (s *Service) List(ctx context.Context) ([]*models.Task, error) {
	return s.store.ListTasks(ctx)
}

// ListStarted returns tasks claimed but not yet completed.
func (s *Service) ListStarted(ctx context.Context) ([]*models.Task, error) {
	return s.store.ListStartedTasks(ctx)
}

// ListProcessed returns completed tasks.
func (s *Service) ListProcessed(ctx context.Context) ([]*models.Task, error) {
	return s.store.ListProcessedTasks(ctx)
}
