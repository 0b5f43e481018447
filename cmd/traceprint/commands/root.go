// Package commands wires the traceprint CLI.
package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/traceprint/traceprint/pkg/config"
	"github.com/traceprint/traceprint/pkg/logging"
)

const cliExecutable = "traceprint"

// NewCommand constructs the top-level traceprint CLI command, wiring global
// flags and configuration loading.
func NewCommand() *cobra.Command {
	var (
		configFile string
		manager    = config.NewManager()
	)

	cmd := &cobra.Command{
		Use:   cliExecutable,
		Short: "Passive network client fingerprinting",
		Long: "traceprint extracts TCP, TLS and HTTP fingerprints from captured " +
			"traffic, matches them against known client profiles and audits the " +
			"layers against each other for identity inconsistencies.",
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := manager.Load(cmd.Flags(), configFile); err != nil {
				return fmt.Errorf("load configuration: %w", err)
			}
			cfg := manager.Get()
			if err := logging.Configure(cfg.Log.Level, cfg.Log.Format); err != nil {
				return fmt.Errorf("configure logging: %w", err)
			}
			return nil
		},
	}

	cmd.SilenceUsage = true

	cmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Configuration file path")
	config.BindFlags(cmd.PersistentFlags())

	cmd.AddCommand(newAnalyzeCommand(manager))
	cmd.AddCommand(newStatsCommand(manager))
	cmd.AddCommand(newVersionCommand())

	return cmd
}
