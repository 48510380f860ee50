package task

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/marmos91/tasklease/cmd/tlctl/cmdutil"
	"github.com/marmos91/tasklease/internal/cli/prompt"
	"github.com/spf13/cobra"
)

var addData string

var addCmd = &cobra.Command{
	Use:   "add",
	Short: "Enqueue a task",
	Long: `Enqueue a new task with an opaque JSON payload.

The payload is stored as-is and handed to whichever processor claims the
task; the dispatcher never interprets it. Without --data the payload is
prompted for interactively.

Examples:
  # Enqueue with an inline payload
  tlctl task add --data '{"n": 42}'

  # Enqueue interactively
  tlctl task add`,
	RunE: runAdd,
}

func init() {
	addCmd.Flags().StringVar(&addData, "data", "", "Task payload as JSON (prompted for when omitted)")
}

func runAdd(cmd *cobra.Command, args []string) error {
	data := addData
	if data == "" {
		entered, err := prompt.InputWithValidation("Task payload (JSON)", func(s string) error {
			if !json.Valid([]byte(s)) {
				return fmt.Errorf("not valid JSON")
			}
			return nil
		})
		if err != nil {
			return cmdutil.HandleAbort(err)
		}
		data = entered
	}

	if !json.Valid([]byte(data)) {
		return fmt.Errorf("task payload must be valid JSON")
	}

	client := cmdutil.GetTaskClient()
	task, err := client.CreateTask(cmd.Context(), json.RawMessage(data))
	if err != nil {
		return fmt.Errorf("failed to add task: %w", err)
	}

	msg := fmt.Sprintf("Task %d enqueued", task.ID)
	return cmdutil.PrintResourceWithSuccess(os.Stdout, task, msg)
}
