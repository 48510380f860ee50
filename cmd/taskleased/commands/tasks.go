package commands

import (
	"context"
	"fmt"

	"github.com/marmos91/tasklease/internal/logger"
	"github.com/marmos91/tasklease/pkg/api"
	"github.com/marmos91/tasklease/pkg/apiclient"
	"github.com/marmos91/tasklease/pkg/dispatcher"
	"github.com/marmos91/tasklease/pkg/metrics"
	"github.com/marmos91/tasklease/pkg/store"
	"github.com/spf13/cobra"
)

var tasksCmd = &cobra.Command{
	Use:   "tasks",
	Short: "Serve the task dispatcher API",
	Long: `Serve the task dispatcher: the HTTP API workers claim tasks from and
report progress to.

Every claim is guarded by a lease acquired from the lease manager, so the
dispatcher needs a running lease manager to hand out work. Point leases_url
(or SERVICE_LEASES_URL) at it.

The process runs in the foreground until SIGINT or SIGTERM. Use --config to
specify a custom configuration file, or it will use the default location at
$XDG_CONFIG_HOME/tasklease/config.yaml.

Examples:
  # Serve with the default config location
  taskleased tasks

  # Serve against a remote lease manager
  SERVICE_LEASES_URL=http://leases.internal:9000 taskleased tasks`,
	RunE: runTasks,
}

func runTasks(cmd *cobra.Command, args []string) error {
	// Create cancellable context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, teardown, err := setupRuntime(ctx, "taskleased-tasks")
	if err != nil {
		return err
	}
	defer teardown()

	// Initialize metrics (if enabled)
	metricsResult := metrics.Init(cfg.Metrics)

	// Initialize the lease and task store
	st, err := store.New(&cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to initialize store: %w", err)
	}
	defer func() { _ = st.Close() }()
	logger.Info("Store initialized", "type", cfg.Database.Type)

	leases := apiclient.New(cfg.Dispatcher.LeasesURL).WithTimeout(cfg.Dispatcher.ClientTimeout)
	svc := dispatcher.New(st, leases, cfg.Dispatcher, metricsResult.Metrics)
	server := api.NewServer(cfg.Dispatcher.API, svc.Router())
	logger.Info("Task dispatcher configured",
		"port", server.Port(),
		"leases_url", cfg.Dispatcher.LeasesURL,
		"ttl", cfg.Dispatcher.TTL.String())

	if metricsResult.Server != nil {
		logger.Info("Metrics enabled", "port", cfg.Metrics.Port)
		go func() {
			if err := metricsResult.Server.Start(ctx); err != nil {
				logger.Error("Metrics server error", "error", err)
			}
		}()

		monitor := dispatcher.NewBacklogMonitor(st, metricsResult.Metrics, cfg.Dispatcher.MonitorInterval)
		go monitor.Run(ctx)
	} else {
		logger.Info("Metrics collection disabled")
	}

	return serveUntilSignal(ctx, cancel, server)
}
