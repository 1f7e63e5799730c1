package cmd

import (
	"fmt"
	"os"

	"github.com/abdul-hamid-achik/xmlhttp/packages/core/config"
	"github.com/spf13/cobra"
)

var forceInit bool

var initCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Write a default configuration file",
	Long: `Write a configuration file holding the default settings.

The file is written as YAML when the path ends in .yaml or .yml and as
JSON otherwise. Without a path it is .xmlhttp.yaml in the current
directory, which fetch picks up automatically.

Examples:
  xmlhttp init
  xmlhttp init xmlhttp.json
  xmlhttp init --force`,
	Args: cobra.MaximumNArgs(1),
	RunE: initCommand,
}

func init() {
	initCmd.Flags().BoolVarP(&forceInit, "force", "f", false, "Overwrite an existing file")
}

func initCommand(cmd *cobra.Command, args []string) error {
	path := ".xmlhttp.yaml"
	if len(args) > 0 {
		path = args[0]
	}

	if !forceInit {
		if _, err := os.Stat(path); err == nil {
			return withExit(ExitUsageError, fmt.Errorf("file already exists: %s (use --force to overwrite)", path))
		}
	}

	cfg := config.DefaultConfig()
	cfg.Headers = map[string]string{
		"X-Requested-With": "XMLHttpRequest",
	}
	if err := cfg.SaveConfig(path); err != nil {
		return withExit(ExitConfigError, fmt.Errorf("failed to create config file: %w", err))
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Created: %s\n", path)
	return nil
}
