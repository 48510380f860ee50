package commands

import (
	"context"
	"fmt"

	"github.com/marmos91/tasklease/internal/logger"
	"github.com/marmos91/tasklease/pkg/api"
	"github.com/marmos91/tasklease/pkg/leasemanager"
	"github.com/marmos91/tasklease/pkg/metrics"
	"github.com/marmos91/tasklease/pkg/store"
	"github.com/spf13/cobra"
)

var leasesCmd = &cobra.Command{
	Use:   "leases",
	Short: "Serve the lease manager API",
	Long: `Serve the lease manager: the HTTP API that grants time-bounded exclusive
leases on named resources.

The lease manager owns the database clock. Leases expire passively when the
database time passes their deadline; no background sweeper mutates rows.

The process runs in the foreground until SIGINT or SIGTERM. Use --config to
specify a custom configuration file, or it will use the default location at
$XDG_CONFIG_HOME/tasklease/config.yaml.

Examples:
  # Serve with the default config location
  taskleased leases

  # Serve with a custom config file
  taskleased leases --config /etc/tasklease/config.yaml

  # Serve against PostgreSQL with environment overrides
  DATABASE_URL=postgres://tasklease@db/tasklease taskleased leases`,
	RunE: runLeases,
}

func runLeases(cmd *cobra.Command, args []string) error {
	// Create cancellable context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, teardown, err := setupRuntime(ctx, "taskleased-leases")
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

	svc := leasemanager.New(st, cfg.LeaseManager, metricsResult.Metrics)
	server := api.NewServer(cfg.LeaseManager.API, svc.Router())
	logger.Info("Lease manager configured", "port", server.Port(), "ttl", svc.TTL().String())

	if metricsResult.Server != nil {
		logger.Info("Metrics enabled", "port", cfg.Metrics.Port)
		go func() {
			if err := metricsResult.Server.Start(ctx); err != nil {
				logger.Error("Metrics server error", "error", err)
			}
		}()

		// The state monitor only samples gauges; it never mutates leases.
		monitor := leasemanager.NewStateMonitor(st, metricsResult.Metrics, cfg.LeaseManager.MonitorInterval)
		go monitor.Run(ctx)
	} else {
		logger.Info("Metrics collection disabled")
	}

	return serveUntilSignal(ctx, cancel, server)
}
