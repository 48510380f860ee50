// Package lease implements lease management commands for tlctl.
package lease

import (
	"github.com/spf13/cobra"
)

// Cmd is the parent command for lease management.
var Cmd = &cobra.Command{
	Use:   "lease",
	Short: "Lease management",
	Long: `Manage leases on the lease manager.

Lease commands let you inspect grants, acquire and renew leases by hand,
release leases, and hold a resource for the duration of a maintenance
window.

Examples:
  # List active leases
  tlctl lease list

  # Acquire a lease on a resource
  tlctl lease acquire report:2025-08 --holder deploy-runbook

  # Hold a resource until Ctrl+C
  tlctl lease hold maintenance:db

  # Release a lease by id
  tlctl lease release 42`,
}

func init() {
	Cmd.AddCommand(listCmd)
	Cmd.AddCommand(acquireCmd)
	Cmd.AddCommand(renewCmd)
	Cmd.AddCommand(releaseCmd)
	Cmd.AddCommand(holdCmd)
}
