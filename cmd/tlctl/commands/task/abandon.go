package task

import (
	"fmt"
	"strconv"

	"github.com/marmos91/tasklease/cmd/tlctl/cmdutil"
	"github.com/spf13/cobra"
)

var (
	abandonProcessor string
	abandonForce     bool
)

var abandonCmd = &cobra.Command{
	Use:   "abandon <id>",
	Short: "Abandon a claimed task",
	Long: `Abandon a claimed task so another processor can pick it up immediately.

The dispatcher verifies that --processor matches the task's current owner,
so abandoning requires knowing who holds it ('tlctl task list --state
started' shows owners). The task keeps its started and heartbeat
timestamps for diagnostics; only the assignment is cleared.

This takes work away from a running processor, so you will be prompted
for confirmation unless --force is specified. Use it when a processor is
known dead and waiting out its heartbeat deadline is too slow.

Examples:
  # Abandon a task held by a crashed worker
  tlctl task abandon 42 --processor worker-a1b2c3d4

  # Abandon without confirmation
  tlctl task abandon 42 --processor worker-a1b2c3d4 --force`,
	Args: cobra.ExactArgs(1),
	RunE: runAbandon,
}

func init() {
	abandonCmd.Flags().StringVar(&abandonProcessor, "processor", "", "Current owner of the task (required)")
	abandonCmd.Flags().BoolVarP(&abandonForce, "force", "f", false, "Skip confirmation prompt")
	_ = abandonCmd.MarkFlagRequired("processor")
}

func runAbandon(cmd *cobra.Command, args []string) error {
	id, err := strconv.ParseUint(args[0], 10, 32)
	if err != nil {
		return fmt.Errorf("invalid task id %q", args[0])
	}

	client := cmdutil.GetTaskClient()
	return cmdutil.RunConfirmed(
		fmt.Sprintf("Abandon task %d owned by '%s'", id, abandonProcessor),
		fmt.Sprintf("Task %d abandoned", id),
		abandonForce,
		func() error {
			if err := client.Abandon(cmd.Context(), uint(id), abandonProcessor); err != nil {
				return fmt.Errorf("failed to abandon task: %w", err)
			}
			return nil
		})
}
