// Package worker runs the claim-work-complete loop against the task
// dispatcher.
//
// A worker polls for runnable tasks, runs the configured handler on each
// claim, and keeps the claim alive by heartbeating through the dispatcher
// while the handler runs. Every exit path, including handler panics, goes
// through one deferred cleanup: stop heartbeating, then either the task was
// completed, or ownership was lost (another processor may already own it,
// so the worker goes silent), or the task is abandoned so someone else can
// pick it up immediately.
package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/marmos91/tasklease/internal/logger"
	"github.com/marmos91/tasklease/pkg/apiclient"
	"github.com/marmos91/tasklease/pkg/models"
)

// Handler processes one claimed task and returns its output. The context
// is cancelled when task ownership is lost; a handler that checks it can
// stop wasted work early.
type Handler func(ctx context.Context, task *models.Task) (json.RawMessage, error)

// TaskAPI is the slice of the dispatcher client the worker uses.
// *apiclient.Client satisfies it.
type TaskAPI interface {
	ClaimNext(ctx context.Context, processor string) (*models.Task, error)
	Heartbeat(ctx context.Context, id uint, processor string) (*apiclient.HeartbeatResponse, error)
	Complete(ctx context.Context, id uint, processor string, output json.RawMessage) (*models.Task, error)
	Abandon(ctx context.Context, id uint, processor string) error
}

// Config configures a worker.
type Config struct {
	// TasksURL is the task dispatcher base URL.
	// Default: http://localhost:9001
	TasksURL string `mapstructure:"tasks_url" validate:"omitempty,url" yaml:"tasks_url"`

	// Processor is this worker's identity. Defaults to hostname plus a
	// random suffix so replicas never collide.
	Processor string `mapstructure:"processor" yaml:"processor"`

	// HeartbeatInterval is how often a claimed task is heartbeated. It
	// must stay strictly under half the lease TTL so one missed beat
	// still leaves time to save the claim.
	// Default: 15s
	HeartbeatInterval time.Duration `mapstructure:"heartbeat_interval" validate:"omitempty,gt=0" yaml:"heartbeat_interval"`

	// PollInterval is how often the worker asks for the next task.
	// Default: 1s
	PollInterval time.Duration `mapstructure:"poll_interval" validate:"omitempty,gt=0" yaml:"poll_interval"`

	// ClientTimeout bounds each call to the dispatcher.
	// Default: 10s
	ClientTimeout time.Duration `mapstructure:"client_timeout" yaml:"client_timeout"`
}

// ApplyDefaults fills in zero values with production defaults.
func (c *Config) ApplyDefaults() {
	if c.TasksURL == "" {
		c.TasksURL = "http://localhost:9001"
	}
	if c.Processor == "" {
		c.Processor = DefaultProcessorID()
	}
	if c.HeartbeatInterval == 0 {
		c.HeartbeatInterval = 15 * time.Second
	}
	if c.PollInterval == 0 {
		c.PollInterval = time.Second
	}
	if c.ClientTimeout == 0 {
		c.ClientTimeout = 10 * time.Second
	}
}

// DefaultProcessorID returns "<hostname>-<8 random hex chars>".
func DefaultProcessorID() string {
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "worker"
	}
	return fmt.Sprintf("%s-%s", hostname, uuid.NewString()[:8])
}

// Worker claims and processes tasks until its context is cancelled.
type Worker struct {
	tasks             TaskAPI
	handler           Handler
	processor         string
	heartbeatInterval time.Duration
	pollInterval      time.Duration
	clientTimeout     time.Duration
}

// New creates a worker running handler on every claimed task.
func New(tasks TaskAPI, handler Handler, cfg Config) *Worker {
	cfg.ApplyDefaults()
	return &Worker{
		tasks:             tasks,
		handler:           handler,
		processor:         cfg.Processor,
		heartbeatInterval: cfg.HeartbeatInterval,
		pollInterval:      cfg.PollInterval,
		clientTimeout:     cfg.ClientTimeout,
	}
}

// Processor returns the worker's identity.
func (w *Worker) Processor() string {
	return w.processor
}

// Run polls for tasks until the context is cancelled. Claim races and
// transient dispatcher failures are logged and retried on the next poll;
// they never stop the loop.
func (w *Worker) Run(ctx context.Context) error {
	logger.Info("worker started",
		"processor", w.processor,
		"poll_interval", w.pollInterval.String(),
		"heartbeat_interval", w.heartbeatInterval.String(),
	)

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("worker stopped", "processor", w.processor)
			return nil
		case <-ticker.C:
			task, err := w.tasks.ClaimNext(ctx, w.processor)
			if err != nil {
				if apiclient.IsConflict(err) {
					logger.Debug("claim race lost, polling again", "processor", w.processor)
					continue
				}
				if ctx.Err() != nil {
					continue
				}
				logger.Warn("task claim failed", "processor", w.processor, "error", err)
				continue
			}
			if task == nil {
				continue
			}
			w.process(ctx, task)
		}
	}
}

// process runs the handler on one claimed task under scoped cleanup.
func (w *Worker) process(ctx context.Context, task *models.Task) {
	logger.Info("task started", "task_id", task.ID, "processor", w.processor)

	taskCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	hb := newHeartbeater(w.tasks, task.ID, w.processor, w.heartbeatInterval, cancel)
	hb.start()

	var completed bool

	defer func() {
		hb.stop()

		if r := recover(); r != nil {
			logger.Error("task handler panicked", "task_id", task.ID, "processor", w.processor, "panic", r)
		}

		if completed || hb.lost() {
			return
		}

		// Hand the task back so another processor picks it up right away
		// instead of waiting out the heartbeat deadline. Uses a fresh
		// context so a shutting-down worker still returns its task.
		abandonCtx, cancelAbandon := context.WithTimeout(context.Background(), w.clientTimeout)
		defer cancelAbandon()
		if err := w.tasks.Abandon(abandonCtx, task.ID, w.processor); err != nil {
			logger.Warn("task abandon failed", "task_id", task.ID, "processor", w.processor, "error", err)
			return
		}
		logger.Info("task abandoned", "task_id", task.ID, "processor", w.processor)
	}()

	output, err := w.handler(taskCtx, task)
	if err != nil {
		logger.Warn("task handler failed", "task_id", task.ID, "processor", w.processor, "error", err)
		return
	}

	if hb.lost() {
		logger.Warn("task ownership lost during processing, discarding result", "task_id", task.ID, "processor", w.processor)
		return
	}

	completeCtx, cancelComplete := context.WithTimeout(context.Background(), w.clientTimeout)
	defer cancelComplete()

	if _, err := w.tasks.Complete(completeCtx, task.ID, w.processor, output); err != nil {
		if apiclient.IsConflict(err) {
			// Ownership is gone; the deferred cleanup must not abandon a
			// task that may already belong to someone else.
			hb.markLost()
			logger.Warn("task completion refused, ownership lost", "task_id", task.ID, "processor", w.processor, "error", err)
			return
		}
		logger.Warn("task complete failed", "task_id", task.ID, "processor", w.processor, "error", err)
		return
	}

	completed = true
	logger.Info("task completed", "task_id", task.ID, "processor", w.processor)
}
