package main

import (
	"fmt"
	"log"

	"github.com/spf13/cobra"

	"github.com/banshee-data/flux.recovery/internal/config"
	"github.com/banshee-data/flux.recovery/internal/monitoring"
	"github.com/banshee-data/flux.recovery/internal/version"
)

// commandContext carries the persistent flags shared by every subcommand.
type commandContext struct {
	configPath string
	verbose    bool
	quiet      bool
}

// tuning loads the --config file, or an empty config whose getters supply
// the defaults.
func (c *commandContext) tuning() (*config.TuningConfig, error) {
	if c.configPath == "" {
		return config.EmptyTuningConfig(), nil
	}
	return config.LoadTuningConfig(c.configPath)
}

func (c *commandContext) setupLogging(cmd *cobra.Command) {
	logger := log.New(cmd.ErrOrStderr(), "", log.LstdFlags)
	switch {
	case c.quiet:
		monitoring.SetLogger(nil)
	default:
		monitoring.SetLogger(logger.Printf)
	}
	if c.verbose {
		monitoring.SetDebugLogger(logger.Printf)
	} else {
		monitoring.SetDebugLogger(nil)
	}
}

func newRootCommand() *cobra.Command {
	ctx := &commandContext{}

	rootCmd := &cobra.Command{
		Use:           "fluxrecover",
		Short:         "Recover verified sectors from floppy flux captures",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if ctx.verbose && ctx.quiet {
				return fmt.Errorf("--verbose and --quiet are mutually exclusive")
			}
			ctx.setupLogging(cmd)
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&ctx.configPath, "config", "c", "", "Tuning config JSON file")
	rootCmd.PersistentFlags().BoolVarP(&ctx.verbose, "verbose", "v", false, "Log per-revolution decoder diagnostics")
	rootCmd.PersistentFlags().BoolVarP(&ctx.quiet, "quiet", "q", false, "Suppress log output")

	rootCmd.AddCommand(newDecodeCommand(ctx))
	rootCmd.AddCommand(newSynthCommand())
	rootCmd.AddCommand(newPlotCommand(ctx))
	rootCmd.AddCommand(newPresetsCommand())
	rootCmd.AddCommand(newFormatsCommand())
	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version.String())
		},
	})

	return rootCmd
}
