package task

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
	Short: "List tasks",
	Long: `List tasks on the task dispatcher.

The state filter selects which listing the dispatcher serves: all tasks,
started (claimed but not yet completed), or processed (completed).

Examples:
  # List every task
  tlctl task list

  # List tasks being worked on
  tlctl task list --state started

  # List completed tasks as JSON
  tlctl task list --state processed -o json`,
	RunE: runList,
}

func init() {
	listCmd.Flags().StringVar(&listState, "state", "all", "State filter (all|started|processed)")
}

// displayState renders a task's lifecycle phase for table output. The
// comparison against the local clock is display-only; the dispatcher makes
// all authoritative decisions against the database clock.
func displayState(t *models.Task, now time.Time) string {
	switch {
	case t.ProcessedAt != nil:
		return "completed"
	case t.StartedAt == nil:
		return "scheduled"
	case t.MustHeartbeatBefore != nil && t.MustHeartbeatBefore.After(now):
		return "processing"
	default:
		return "abandoned"
	}
}

// TaskList is a list of tasks for table rendering.
type TaskList []models.Task

// Headers implements TableRenderer.
func (tl TaskList) Headers() []string {
	return []string{"ID", "STATE", "PROCESSOR", "SCHEDULED", "STARTED", "DEADLINE"}
}

// Rows implements TableRenderer.
func (tl TaskList) Rows() [][]string {
	now := time.Now()
	rows := make([][]string, 0, len(tl))
	for i := range tl {
		t := &tl[i]
		processor := "-"
		if t.Processor != nil {
			processor = *t.Processor
		}
		rows = append(rows, []string{
			fmt.Sprintf("%d", t.ID),
			displayState(t, now),
			processor,
			timeutil.FormatTime(t.ScheduledAt),
			timeutil.FormatTimePtr(t.StartedAt),
			timeutil.FormatTimePtr(t.MustHeartbeatBefore),
		})
	}
	return rows
}

func runList(cmd *cobra.Command, args []string) error {
	client := cmdutil.GetTaskClient()

	var tasks []models.Task
	var err error

	switch listState {
	case "all":
		tasks, err = client.ListTasks(cmd.Context())
	case "started":
		tasks, err = client.ListStartedTasks(cmd.Context())
	case "processed":
		tasks, err = client.ListProcessedTasks(cmd.Context())
	default:
		return fmt.Errorf("invalid task state %q (expected all, started, or processed)", listState)
	}
	if err != nil {
		return fmt.Errorf("failed to list tasks: %w", err)
	}

	return cmdutil.PrintOutput(os.Stdout, tasks, len(tasks) == 0, "No tasks found.", TaskList(tasks))
}
