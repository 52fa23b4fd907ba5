// Package commands implements the nfs4d command line.
package commands

import (
	"github.com/spf13/cobra"

	"github.com/marmos91/nfs4d/cmd/nfs4d/commands/config"
)

var (
	// Version information injected at build time.
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"

	// Global flags.
	cfgFile string
)

var rootCmd = &cobra.Command{
	Use:   "nfs4d",
	Short: "nfs4d - NFSv4.0/4.1 COMPOUND server",
	Long: `nfs4d executes NFSv4.0 and NFSv4.1 COMPOUND requests against a set of
exports mounted in a pseudo filesystem. Client and session state survive
restarts through the client database.

Use "nfs4d [command] --help" for more information about a command.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// GetRootCmd returns the root command for testing purposes.
func GetRootCmd() *cobra.Command {
	return rootCmd
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $XDG_CONFIG_HOME/nfs4d/config.yaml)")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(execCmd)
	rootCmd.AddCommand(decodeCmd)
	rootCmd.AddCommand(printfhCmd)
	rootCmd.AddCommand(config.Cmd)

	rootCmd.CompletionOptions.DisableDefaultCmd = true
}

// GetConfigFile returns the config file path from the global flag.
func GetConfigFile() string {
	return cfgFile
}
