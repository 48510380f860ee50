package lease

import (
	"fmt"
	"os"
	"time"

	"github.com/marmos91/tasklease/cmd/tlctl/cmdutil"
	"github.com/marmos91/tasklease/internal/cli/timeutil"
	"github.com/spf13/cobra"
)

var renewHolder string

var renewCmd = &cobra.Command{
	Use:   "renew <resource>",
	Short: "Renew a lease",
	Long: `Renew the active lease on a resource, extending it by the server's TTL.

Renewal only succeeds while the lease is still active and held by the
given holder. A lapsed lease cannot be revived; acquire it again instead.

Examples:
  # Renew the lease held by deploy-runbook
  tlctl lease renew report:2025-08 --holder deploy-runbook`,
	Args: cobra.ExactArgs(1),
	RunE: runRenew,
}

func init() {
	renewCmd.Flags().StringVar(&renewHolder, "holder", "", "Holder identity (required)")
	_ = renewCmd.MarkFlagRequired("holder")
}

func runRenew(cmd *cobra.Command, args []string) error {
	resource := args[0]

	client := cmdutil.GetLeaseClient()
	lease, err := client.RenewLease(cmd.Context(), resource, renewHolder)
	if err != nil {
		return fmt.Errorf("failed to renew lease: %w", err)
	}

	msg := fmt.Sprintf("Lease %d on '%s' renewed (expires in %s)",
		lease.ID, lease.Resource, timeutil.FormatRemaining(lease.ExpiresAt, time.Now()))
	return cmdutil.PrintResourceWithSuccess(os.Stdout, lease, msg)
}
