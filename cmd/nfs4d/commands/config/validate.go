package config

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/marmos91/nfs4d/pkg/config"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check a configuration file",
	Long: `Load a configuration file and report the first problem found.

Besides field validation, every export backend is opened and seeded once,
so an unreadable badger directory or a conflicting seed is caught too.`,
	RunE: runValidate,
}

func runValidate(cmd *cobra.Command, args []string) error {
	cfg, err := config.MustLoad(configPath(cmd))
	if err != nil {
		return err
	}

	exps, err := config.InitializeExports(cfg)
	if err != nil {
		return err
	}
	if err := exps.Close(); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Configuration is valid (%d exports)\n", len(cfg.Exports))
	return nil
}
