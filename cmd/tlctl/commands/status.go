package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/marmos91/tasklease/cmd/tlctl/cmdutil"
	"github.com/marmos91/tasklease/internal/cli/output"
	"github.com/marmos91/tasklease/internal/cli/timeutil"
	"github.com/marmos91/tasklease/pkg/apiclient"
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show service status",
	Long: `Display the status of the lease manager and the task dispatcher.

This command checks the health endpoint of both services and displays
their status and server time.

Examples:
  # Check status of both services
  tlctl status

  # Output as JSON
  tlctl status -o json`,
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

// ServiceStatus represents one service's status for display.
type ServiceStatus struct {
	Service    string `json:"service" yaml:"service"`
	URL        string `json:"url" yaml:"url"`
	Status     string `json:"status" yaml:"status"`
	Healthy    bool   `json:"healthy" yaml:"healthy"`
	ServerTime string `json:"server_time,omitempty" yaml:"server_time,omitempty"`
	Error      string `json:"error,omitempty" yaml:"error,omitempty"`
}

func runStatus(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	statuses := []ServiceStatus{
		checkService(ctx, "lease manager", cmdutil.GetLeaseClient()),
		checkService(ctx, "task dispatcher", cmdutil.GetTaskClient()),
	}

	// Output based on format
	format, err := cmdutil.GetOutputFormatParsed()
	if err != nil {
		return err
	}

	switch format {
	case output.FormatJSON:
		return output.PrintJSON(os.Stdout, statuses)
	case output.FormatYAML:
		return output.PrintYAML(os.Stdout, statuses)
	default:
		printStatusTable(statuses)
	}

	return nil
}

func checkService(ctx context.Context, name string, client *apiclient.Client) ServiceStatus {
	status := ServiceStatus{
		Service: name,
		URL:     client.BaseURL(),
		Status:  "unreachable",
	}

	health, err := client.Healthz(ctx)
	if err != nil {
		status.Error = err.Error()
		return status
	}

	status.Status = health.Status
	status.Healthy = health.Status == "ok"
	status.ServerTime = timeutil.FormatTime(health.Timestamp)
	return status
}

func printStatusTable(statuses []ServiceStatus) {
	fmt.Println()
	fmt.Println("tasklease Service Status")
	fmt.Println("========================")

	for _, status := range statuses {
		fmt.Println()
		fmt.Printf("  Service:     %s\n", status.Service)
		fmt.Printf("  URL:         %s\n", status.URL)

		if status.Healthy {
			fmt.Printf("  Status:      \033[32m● %s\033[0m\n", status.Status)
		} else if status.Status == "unreachable" {
			fmt.Printf("  Status:      \033[31m○ %s\033[0m\n", status.Status)
		} else {
			fmt.Printf("  Status:      \033[33m● %s\033[0m\n", status.Status)
		}

		if status.ServerTime != "" {
			fmt.Printf("  Server time: %s\n", status.ServerTime)
		}
		if status.Error != "" {
			fmt.Printf("  Error:       %s\n", status.Error)
		}
	}
	fmt.Println()
}
