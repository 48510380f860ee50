package commands

import (
	"fmt"

	"github.com/marmos91/tasklease/pkg/config"
	"github.com/spf13/cobra"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a sample configuration file",
	Long: `Initialize a sample tasklease configuration file.

By default, the configuration file is created at $XDG_CONFIG_HOME/tasklease/config.yaml.
Use --config to specify a custom path.

Examples:
  # Initialize with default location
  taskleased init

  # Initialize with custom path
  taskleased init --config /etc/tasklease/config.yaml

  # Force overwrite existing config
  taskleased init --force`,
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "Force overwrite existing config file")
}

func runInit(cmd *cobra.Command, args []string) error {
	configFile := GetConfigFile()

	var configPath string
	var err error

	if configFile != "" {
		// Use custom path
		err = config.InitConfigToPath(configFile, initForce)
		configPath = configFile
	} else {
		// Use default path
		configPath, err = config.InitConfig(initForce)
	}

	if err != nil {
		return fmt.Errorf("failed to initialize config: %w", err)
	}

	fmt.Printf("Configuration file created at: %s\n", configPath)
	fmt.Println("\nNext steps:")
	fmt.Println("  1. Edit the configuration file to customize your setup")
	fmt.Println("  2. Start the lease manager with: taskleased leases")
	fmt.Println("  3. Start the task dispatcher with: taskleased tasks")
	fmt.Printf("  4. Or specify custom config: taskleased leases --config %s\n", configPath)

	return nil
}
