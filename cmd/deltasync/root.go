package main

import (
	"github.com/spf13/cobra"
)

var (
	configFile string
	logLevel   string
	devLog     bool
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "deltasync",
		Short:         "Delta synchronization engine",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&configFile, "config", "", "path to a YAML config file")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "override the configured log level")
	root.PersistentFlags().BoolVar(&devLog, "dev-log", false, "use a human-readable console log format")

	root.AddCommand(newRunCmd())
	root.AddCommand(newHistoryCmd())
	return root
}
