// Package cmdutil provides shared utilities for tlctl commands.
package cmdutil

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/marmos91/tasklease/internal/cli/output"
	"github.com/marmos91/tasklease/internal/cli/prompt"
	"github.com/marmos91/tasklease/pkg/apiclient"
)

// Default service endpoints, matching the serving defaults.
const (
	DefaultLeasesURL = "http://localhost:9000"
	DefaultTasksURL  = "http://localhost:9001"
)

// clientTimeout bounds every request a tlctl command makes.
const clientTimeout = 10 * time.Second

// Flags stores global flag values accessible by subcommands.
var Flags = &GlobalFlags{}

// GlobalFlags holds the global flag values.
type GlobalFlags struct {
	LeasesURL string
	TasksURL  string
	Output    string
	NoColor   bool
	Verbose   bool
}

// GetLeaseClient returns a client for the lease manager API.
// Resolution order: --leases flag, SERVICE_LEASES_URL, local default.
func GetLeaseClient() *apiclient.Client {
	url := Flags.LeasesURL
	if url == "" {
		url = os.Getenv("SERVICE_LEASES_URL")
	}
	if url == "" {
		url = DefaultLeasesURL
	}
	return apiclient.New(url).WithTimeout(clientTimeout)
}

// GetTaskClient returns a client for the task dispatcher API.
// Resolution order: --tasks flag, TASK_SERVICE_URL, local default.
func GetTaskClient() *apiclient.Client {
	url := Flags.TasksURL
	if url == "" {
		url = os.Getenv("TASK_SERVICE_URL")
	}
	if url == "" {
		url = DefaultTasksURL
	}
	return apiclient.New(url).WithTimeout(clientTimeout)
}

// GetOutputFormat returns the output format string.
func GetOutputFormat() string {
	return Flags.Output
}

// GetOutputFormatParsed returns the parsed output format.
func GetOutputFormatParsed() (output.Format, error) {
	return output.ParseFormat(Flags.Output)
}

// IsColorDisabled returns whether color output is disabled.
func IsColorDisabled() bool {
	return Flags.NoColor
}

// IsVerbose returns whether verbose output is enabled.
func IsVerbose() bool {
	return Flags.Verbose
}

// PrintOutput prints data in the specified format (JSON, YAML, or table).
// For table format, it displays emptyMsg if data is empty, otherwise uses the tableRenderer.
func PrintOutput(w io.Writer, data any, isEmpty bool, emptyMsg string, tableRenderer output.TableRenderer) error {
	format, err := GetOutputFormatParsed()
	if err != nil {
		return err
	}

	switch format {
	case output.FormatJSON:
		return output.PrintJSON(w, data)
	case output.FormatYAML:
		return output.PrintYAML(w, data)
	default:
		if isEmpty {
			_, _ = fmt.Fprintln(w, emptyMsg)
			return nil
		}
		return output.PrintTable(w, tableRenderer)
	}
}

// PrintSuccess prints a success message if the output format is table.
func PrintSuccess(msg string) {
	format, err := GetOutputFormatParsed()
	if err != nil || format != output.FormatTable {
		return
	}
	printer := output.NewPrinter(os.Stdout, format, !IsColorDisabled())
	printer.Success(msg)
}

// PrintResource prints a resource in the specified format.
// For table format, it uses the provided tableRenderer. For JSON/YAML, it outputs the resource.
func PrintResource(w io.Writer, data any, tableRenderer output.TableRenderer) error {
	format, err := GetOutputFormatParsed()
	if err != nil {
		return err
	}

	switch format {
	case output.FormatJSON:
		return output.PrintJSON(w, data)
	case output.FormatYAML:
		return output.PrintYAML(w, data)
	default:
		return output.PrintTable(w, tableRenderer)
	}
}

// PrintResourceWithSuccess prints a resource in the specified format.
// For table format, it displays a success message. For JSON/YAML, it outputs the resource.
// This is useful for acquire, add, and similar operations.
func PrintResourceWithSuccess(w io.Writer, data any, successMsg string) error {
	format, err := GetOutputFormatParsed()
	if err != nil {
		return err
	}

	switch format {
	case output.FormatJSON:
		return output.PrintJSON(w, data)
	case output.FormatYAML:
		return output.PrintYAML(w, data)
	default:
		PrintSuccess(successMsg)
		return nil
	}
}

// RunConfirmed prompts with question (unless force is true), runs fn, and
// prints successMsg. Used by the destructive commands: lease release and
// task abandon take work away from whoever holds it.
func RunConfirmed(question, successMsg string, force bool, fn func() error) error {
	confirmed, err := prompt.ConfirmWithForce(question, force)
	if err != nil {
		if prompt.IsAborted(err) {
			fmt.Println("\nAborted.")
			return nil
		}
		return err
	}
	if !confirmed {
		fmt.Println("Aborted.")
		return nil
	}

	if err := fn(); err != nil {
		return err
	}

	PrintSuccess(successMsg)
	return nil
}

// HandleAbort checks if error is an abort (Ctrl+C) and prints a message.
// Returns nil for abort (user cancelled), otherwise returns the original error.
func HandleAbort(err error) error {
	if prompt.IsAborted(err) {
		fmt.Println("\nAborted.")
		return nil
	}
	return err
}

// EmptyOr returns the value if not empty, otherwise returns the fallback.
// Useful for table display where empty fields should show "-".
func EmptyOr(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}
