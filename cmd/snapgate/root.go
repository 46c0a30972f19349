package main

import (
	"github.com/spf13/cobra"
)

type rootOptions struct {
	configPath string
	logLevel   string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:           "snapgate",
		Short:         "Replayable snapshot cache and readiness gate",
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "path to a YAML config file")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "override observe.log_level (debug|info|warn|error)")

	cmd.AddCommand(
		newRunCmd(opts),
		newStatsCmd(opts),
		newClearCmd(opts),
		newFreezeCmd(opts),
		newServeCmd(opts),
	)
	return cmd
}
