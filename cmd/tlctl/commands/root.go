// Package commands implements the CLI commands for the tlctl client.
package commands

import (
	"github.com/marmos91/tasklease/cmd/tlctl/cmdutil"
	leasecmd "github.com/marmos91/tasklease/cmd/tlctl/commands/lease"
	taskcmd "github.com/marmos91/tasklease/cmd/tlctl/commands/task"
	"github.com/spf13/cobra"
)

var (
	// Version information injected at build time.
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "tlctl",
	Short: "tasklease control - remote operations client",
	Long: `tlctl is the command-line client for operating tasklease services remotely.

Use this tool to inspect and manage leases on the lease manager and tasks
on the task dispatcher through their REST APIs.

Use "tlctl [command] --help" for more information about a command.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// Sync flags to cmdutil.Flags for subcommands
		cmdutil.Flags.LeasesURL, _ = cmd.Flags().GetString("leases")
		cmdutil.Flags.TasksURL, _ = cmd.Flags().GetString("tasks")
		cmdutil.Flags.Output, _ = cmd.Flags().GetString("output")
		cmdutil.Flags.NoColor, _ = cmd.Flags().GetBool("no-color")
		cmdutil.Flags.Verbose, _ = cmd.Flags().GetBool("verbose")
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

// GetRootCmd returns the root command for testing purposes.
func GetRootCmd() *cobra.Command {
	return rootCmd
}

func init() {
	// Global persistent flags
	rootCmd.PersistentFlags().String("leases", "", "Lease manager URL (default: $SERVICE_LEASES_URL or "+cmdutil.DefaultLeasesURL+")")
	rootCmd.PersistentFlags().String("tasks", "", "Task dispatcher URL (default: $TASK_SERVICE_URL or "+cmdutil.DefaultTasksURL+")")
	rootCmd.PersistentFlags().StringP("output", "o", "table", "Output format (table|json|yaml)")
	rootCmd.PersistentFlags().Bool("no-color", false, "Disable colored output")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose output")

	// Add subcommands
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(leasecmd.Cmd)
	rootCmd.AddCommand(taskcmd.Cmd)
	rootCmd.AddCommand(completionCmd)

	// Hide the default completion command (we provide our own)
	rootCmd.CompletionOptions.DisableDefaultCmd = true
}
