package lease

import (
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/marmos91/tasklease/cmd/tlctl/cmdutil"
	"github.com/marmos91/tasklease/internal/cli/timeutil"
	"github.com/spf13/cobra"
)

var acquireHolder string

var acquireCmd = &cobra.Command{
	Use:   "acquire <resource>",
	Short: "Acquire a lease on a resource",
	Long: `Acquire an exclusive lease on a named resource.

The lease lasts for the server's configured TTL and then expires unless
renewed. If the resource is already held, the command fails with a
conflict; the current grant shows up in 'tlctl lease list --state active'.

Without --holder a unique holder name is generated. Keep the printed
holder name: renewing or releasing by resource requires it.

Examples:
  # Acquire with a generated holder name
  tlctl lease acquire report:2025-08

  # Acquire as a specific holder
  tlctl lease acquire report:2025-08 --holder deploy-runbook`,
	Args: cobra.ExactArgs(1),
	RunE: runAcquire,
}

func init() {
	acquireCmd.Flags().StringVar(&acquireHolder, "holder", "", "Holder identity (default: generated)")
}

// defaultHolder generates a unique holder identity for one-off CLI grants.
func defaultHolder() string {
	return "tlctl-" + uuid.NewString()[:8]
}

func runAcquire(cmd *cobra.Command, args []string) error {
	resource := args[0]

	holder := acquireHolder
	if holder == "" {
		holder = defaultHolder()
	}

	client := cmdutil.GetLeaseClient()
	lease, err := client.AcquireLease(cmd.Context(), resource, holder)
	if err != nil {
		return fmt.Errorf("failed to acquire lease: %w", err)
	}

	msg := fmt.Sprintf("Lease %d acquired on '%s' as '%s' (expires in %s)",
		lease.ID, lease.Resource, lease.Holder, timeutil.FormatRemaining(lease.ExpiresAt, time.Now()))
	return cmdutil.PrintResourceWithSuccess(os.Stdout, lease, msg)
}
