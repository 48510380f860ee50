package lease

import (
	"fmt"
	"strconv"

	"github.com/marmos91/tasklease/cmd/tlctl/cmdutil"
	"github.com/spf13/cobra"
)

var (
	releaseHolder string
	releaseForce  bool
)

var releaseCmd = &cobra.Command{
	Use:   "release <id|resource>",
	Short: "Release a lease",
	Long: `Release a lease, freeing its resource for other holders.

Pass a numeric lease id, or a resource name together with --holder to
release the active lease on that resource. Releasing a lease out from
under its holder takes the resource away from them, so you will be
prompted for confirmation unless --force is specified.

Releasing is idempotent: releasing an already-released lease succeeds.

Examples:
  # Release by lease id
  tlctl lease release 42

  # Release the active lease on a resource
  tlctl lease release report:2025-08 --holder deploy-runbook

  # Release without confirmation
  tlctl lease release 42 --force`,
	Args: cobra.ExactArgs(1),
	RunE: runRelease,
}

func init() {
	releaseCmd.Flags().StringVar(&releaseHolder, "holder", "", "Holder identity (required when releasing by resource)")
	releaseCmd.Flags().BoolVarP(&releaseForce, "force", "f", false, "Skip confirmation prompt")
}

func runRelease(cmd *cobra.Command, args []string) error {
	target := args[0]
	client := cmdutil.GetLeaseClient()

	if id, err := strconv.ParseUint(target, 10, 32); err == nil {
		if releaseHolder != "" {
			return fmt.Errorf("--holder only applies when releasing by resource name")
		}
		return cmdutil.RunConfirmed(
			fmt.Sprintf("Release lease %d", id),
			fmt.Sprintf("Lease %d released", id),
			releaseForce,
			func() error {
				if _, err := client.ReleaseLease(cmd.Context(), uint(id)); err != nil {
					return fmt.Errorf("failed to release lease: %w", err)
				}
				return nil
			})
	}

	if releaseHolder == "" {
		return fmt.Errorf("releasing by resource requires --holder")
	}

	return cmdutil.RunConfirmed(
		fmt.Sprintf("Release lease on '%s' held by '%s'", target, releaseHolder),
		fmt.Sprintf("Lease on '%s' released", target),
		releaseForce,
		func() error {
			if _, err := client.ReleaseHolderLease(cmd.Context(), target, releaseHolder); err != nil {
				return fmt.Errorf("failed to release lease: %w", err)
			}
			return nil
		})
}
