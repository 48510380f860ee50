package commands

import (
	"context"
	"encoding/json"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/marmos91/tasklease/internal/logger"
	"github.com/marmos91/tasklease/pkg/apiclient"
	"github.com/marmos91/tasklease/pkg/models"
	"github.com/marmos91/tasklease/pkg/worker"
	"github.com/spf13/cobra"
)

var (
	workerProcessor string
	workDuration    time.Duration
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Run a worker loop against the task dispatcher",
	Long: `Run a worker loop: claim tasks from the dispatcher, heartbeat them while
they run, and complete them.

This command runs the built-in echo handler, which holds each task for
--work-duration and then completes it with the task data as output. It is
meant for deployment checks and load drills; real processing embeds
pkg/worker with an application handler.

The process runs in the foreground until SIGINT or SIGTERM. On shutdown an
in-flight task is abandoned so another worker picks it up immediately.

Examples:
  # Run a worker against the local dispatcher
  taskleased worker

  # Simulate 5 seconds of work per task
  taskleased worker --work-duration 5s

  # Run with a fixed identity against a remote dispatcher
  TASK_SERVICE_URL=http://tasks.internal:9001 taskleased worker --processor batch-1`,
	RunE: runWorker,
}

func init() {
	workerCmd.Flags().StringVar(&workerProcessor, "processor", "", "Worker identity (default: <hostname>-<random suffix>)")
	workerCmd.Flags().DurationVar(&workDuration, "work-duration", 0, "How long the echo handler holds each task")
}

func runWorker(cmd *cobra.Command, args []string) error {
	// Create cancellable context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, teardown, err := setupRuntime(ctx, "taskleased-worker")
	if err != nil {
		return err
	}
	defer teardown()

	if workerProcessor != "" {
		cfg.Worker.Processor = workerProcessor
	}

	tasks := apiclient.New(cfg.Worker.TasksURL).WithTimeout(cfg.Worker.ClientTimeout)
	w := worker.New(tasks, echoHandler(workDuration), cfg.Worker)
	logger.Info("Worker configured",
		"processor", w.Processor(),
		"tasks_url", cfg.Worker.TasksURL,
		"heartbeat_interval", cfg.Worker.HeartbeatInterval.String(),
		"work_duration", workDuration.String())

	workerDone := make(chan error, 1)
	go func() {
		workerDone <- w.Run(ctx)
	}()

	// Wait for interrupt signal or worker exit
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigChan:
		signal.Stop(sigChan)
		logger.Info("Shutdown signal received, initiating graceful shutdown")
		cancel()

		if err := <-workerDone; err != nil {
			logger.Error("Worker shutdown error", "error", err)
			return err
		}
		logger.Info("Worker stopped gracefully")

	case err := <-workerDone:
		signal.Stop(sigChan)
		if err != nil {
			logger.Error("Worker error", "error", err)
			return err
		}
		logger.Info("Worker stopped")
	}

	return nil
}

// echoHandler holds each task for the given duration and completes it with
// its own task data as output. The wait aborts as soon as ownership is lost.
func echoHandler(d time.Duration) worker.Handler {
	return func(ctx context.Context, task *models.Task) (json.RawMessage, error) {
		if d > 0 {
			timer := time.NewTimer(d)
			defer timer.Stop()

			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-timer.C:
			}
		}
		return task.TaskData, nil
	}
}
