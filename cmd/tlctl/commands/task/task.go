// Package task implements task management commands for tlctl.
package task

import (
	"github.com/spf13/cobra"
)

// Cmd is the parent command for task management.
var Cmd = &cobra.Command{
	Use:   "task",
	Short: "Task management",
	Long: `Manage tasks on the task dispatcher.

Task commands let you enqueue work, inspect the queue and individual
tasks, and abandon a task that is stuck with an unresponsive processor.

Examples:
  # Enqueue a task
  tlctl task add --data '{"n": 42}'

  # List tasks being worked on right now
  tlctl task list --state started

  # Inspect one task
  tlctl task get 42

  # Take a task away from its processor
  tlctl task abandon 42 --processor worker-a1b2c3d4`,
}

func init() {
	Cmd.AddCommand(listCmd)
	Cmd.AddCommand(getCmd)
	Cmd.AddCommand(addCmd)
	Cmd.AddCommand(abandonCmd)
}
