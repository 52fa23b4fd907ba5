package config

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/marmos91/nfs4d/pkg/config"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a sample configuration file",
	Long: `Write a sample nfs4d configuration with one seeded in-memory export.

By default the file is created at $XDG_CONFIG_HOME/nfs4d/config.yaml.

Examples:
  nfs4d config init
  nfs4d config init --config /etc/nfs4d/config.yaml --force`,
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "Overwrite an existing config file")
}

func runInit(cmd *cobra.Command, args []string) error {
	path := configPath(cmd)

	var err error
	if path != "" {
		err = config.InitConfigToPath(path, initForce)
	} else {
		path, err = config.InitConfig(initForce)
	}
	if err != nil {
		return fmt.Errorf("failed to initialize config: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Configuration file created at: %s\n", path)
	fmt.Fprintln(out, "\nNext steps:")
	fmt.Fprintln(out, "  1. Edit the exports section to describe your namespace")
	fmt.Fprintf(out, "  2. Check it with: nfs4d config validate --config %s\n", path)
	fmt.Fprintf(out, "  3. Start the server with: nfs4d start --config %s\n", path)
	return nil
}
