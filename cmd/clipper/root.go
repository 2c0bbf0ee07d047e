package main

import (
	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	var socketFlag string
	var configFlag string

	root := &cobra.Command{
		Use:           "clipper",
		Short:         "Turn stream highlights into platform-ready short clips",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&socketFlag, "socket", "", "Path to the daemon control socket")
	root.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "Path to the configuration file")

	ctx := newCommandContext(&socketFlag, &configFlag)

	root.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		if shouldSkipConfig(cmd) {
			return nil
		}
		_, err := ctx.ensureConfig()
		return err
	}
	root.RunE = func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	}

	root.AddCommand(newSubmitCommand(ctx))
	root.AddCommand(newShowCommand(ctx))
	root.AddCommand(newQueueCommand(ctx))
	for _, cmd := range newDaemonCommands(ctx) {
		root.AddCommand(cmd)
	}
	root.AddCommand(newConfigCommand())

	return root
}
