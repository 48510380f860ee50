package config

import (
	"fmt"

	"github.com/marmos91/tasklease/pkg/config"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration file",
	Long: `Validate the tasklease configuration file.

Checks for syntax errors, missing required fields, invalid values, and
timing rules (a worker must fit two heartbeats into the task TTL, and
lease manager calls must not eat the renewal window).

Examples:
  # Validate default config
  taskleased config validate

  # Validate specific config file
  taskleased config validate --config /etc/tasklease/config.yaml`,
	RunE: runConfigValidate,
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	// Get config path from parent's persistent flag
	configPath, _ := cmd.Flags().GetString("config")

	// Load and validate configuration
	cfg, err := config.MustLoad(configPath)
	if err != nil {
		return err
	}

	// Determine path for display
	displayPath := configPath
	if displayPath == "" {
		displayPath = config.GetDefaultConfigPath()
	}

	// Additional validation checks
	var warnings []string

	// Mismatched TTLs mean a claimed task and its guarding lease stop
	// expiring together
	if cfg.LeaseManager.TTL != cfg.Dispatcher.TTL {
		warnings = append(warnings, fmt.Sprintf("lease manager ttl (%s) differs from dispatcher ttl (%s) - task deadlines and their leases will drift apart",
			cfg.LeaseManager.TTL, cfg.Dispatcher.TTL))
	}

	// Exactly two heartbeats per TTL passes validation but leaves no slack
	// for a single delayed beat
	if 2*cfg.Worker.HeartbeatInterval == cfg.Dispatcher.TTL {
		warnings = append(warnings, fmt.Sprintf("heartbeat_interval (%s) is exactly half the ttl (%s) - one delayed heartbeat loses the task",
			cfg.Worker.HeartbeatInterval, cfg.Dispatcher.TTL))
	}

	// Print results
	fmt.Printf("Configuration file: %s\n", displayPath)
	fmt.Println("Validation: OK")

	if len(warnings) > 0 {
		fmt.Println("\nWarnings:")
		for _, w := range warnings {
			fmt.Printf("  - %s\n", w)
		}
	}

	fmt.Printf("\nConfiguration summary:\n")
	fmt.Printf("  Database type:     %s\n", cfg.Database.Type)
	fmt.Printf("  Lease manager:     port %d, ttl %s\n", cfg.LeaseManager.API.Port, cfg.LeaseManager.TTL)
	fmt.Printf("  Task dispatcher:   port %d, ttl %s\n", cfg.Dispatcher.API.Port, cfg.Dispatcher.TTL)
	fmt.Printf("  Worker heartbeat:  %s\n", cfg.Worker.HeartbeatInterval)
	fmt.Printf("  Log level:         %s\n", cfg.Logging.Level)

	return nil
}
