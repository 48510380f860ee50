package lease

import (
	"fmt"
	"os"
	"time"

	"github.com/marmos91/tasklease/cmd/tlctl/cmdutil"
	"github.com/marmos91/tasklease/internal/cli/timeutil"
	"github.com/marmos91/tasklease/pkg/models"
	"github.com/spf13/cobra"
)

var listState string

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List leases",
	Long: `List leases on the lease manager, filtered by derived state.

States are computed by the server against its own clock at listing time:
active, expired, released, renewed, or all.

Examples:
  # List every lease ever granted
  tlctl lease list

  # List only the leases currently blocking other holders
  tlctl lease list --state active

  # List as JSON
  tlctl lease list -o json`,
	RunE: runList,
}

func init() {
	listCmd.Flags().StringVar(&listState, "state", "all", "State filter (all|active|expired|released|renewed)")
}

// LeaseList is a list of leases for table rendering.
type LeaseList []models.Lease

// Headers implements TableRenderer.
func (ll LeaseList) Headers() []string {
	return []string{"ID", "RESOURCE", "HOLDER", "STATE", "CREATED", "EXPIRES"}
}

// Rows implements TableRenderer.
func (ll LeaseList) Rows() [][]string {
	now := time.Now()
	rows := make([][]string, 0, len(ll))
	for i := range ll {
		l := &ll[i]
		expires := timeutil.FormatTime(l.ExpiresAt)
		if l.ActiveAt(now) {
			expires = "in " + timeutil.FormatRemaining(l.ExpiresAt, now)
		}
		rows = append(rows, []string{
			fmt.Sprintf("%d", l.ID),
			l.Resource,
			l.Holder,
			string(l.StateAt(now)),
			timeutil.FormatTime(l.CreatedAt),
			expires,
		})
	}
	return rows
}

func runList(cmd *cobra.Command, args []string) error {
	state, err := models.ParseLeaseState(listState)
	if err != nil {
		return err
	}

	client := cmdutil.GetLeaseClient()
	leases, err := client.ListLeases(cmd.Context(), state)
	if err != nil {
		return fmt.Errorf("failed to list leases: %w", err)
	}

	return cmdutil.PrintOutput(os.Stdout, leases, len(leases) == 0, "No leases found.", LeaseList(leases))
}
