package task

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/marmos91/tasklease/cmd/tlctl/cmdutil"
	"github.com/marmos91/tasklease/internal/cli/timeutil"
	"github.com/marmos91/tasklease/pkg/models"
	"github.com/spf13/cobra"
)

var getCmd = &cobra.Command{
	Use:   "get <id>",
	Short: "Get task details",
	Long: `Get detailed information about a task, including its payload and output.

Examples:
  # Get task details as table
  tlctl task get 42

  # Get as JSON (full payload)
  tlctl task get 42 -o json`,
	Args: cobra.ExactArgs(1),
	RunE: runGet,
}

// payloadPreview renders an opaque JSON blob for one table cell, truncated
// so a large payload cannot wreck the layout. Use -o json for the full body.
func payloadPreview(data []byte) string {
	if len(data) == 0 {
		return "-"
	}
	const max = 60
	s := string(data)
	if len(s) > max {
		return s[:max-3] + "..."
	}
	return s
}

// SingleTaskList wraps a single task for table rendering.
type SingleTaskList []models.Task

// Headers implements TableRenderer.
func (tl SingleTaskList) Headers() []string {
	return []string{"FIELD", "VALUE"}
}

// Rows implements TableRenderer.
func (tl SingleTaskList) Rows() [][]string {
	if len(tl) == 0 {
		return nil
	}
	t := tl[0]
	processor := "-"
	if t.Processor != nil {
		processor = *t.Processor
	}

	return [][]string{
		{"ID", fmt.Sprintf("%d", t.ID)},
		{"State", displayState(&t, time.Now())},
		{"Processor", processor},
		{"Scheduled", timeutil.FormatTime(t.ScheduledAt)},
		{"Started", timeutil.FormatTimePtr(t.StartedAt)},
		{"Last heartbeat", timeutil.FormatTimePtr(t.LastHeartbeatAt)},
		{"Deadline", timeutil.FormatTimePtr(t.MustHeartbeatBefore)},
		{"Processed", timeutil.FormatTimePtr(t.ProcessedAt)},
		{"Data", payloadPreview(t.TaskData)},
		{"Output", payloadPreview(t.TaskOutput)},
	}
}

func runGet(cmd *cobra.Command, args []string) error {
	id, err := strconv.ParseUint(args[0], 10, 32)
	if err != nil {
		return fmt.Errorf("invalid task id %q", args[0])
	}

	client := cmdutil.GetTaskClient()
	task, err := client.GetTask(cmd.Context(), uint(id))
	if err != nil {
		return fmt.Errorf("failed to get task: %w", err)
	}

	return cmdutil.PrintResource(os.Stdout, task, SingleTaskList{*task})
}
