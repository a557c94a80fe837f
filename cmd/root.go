package cmd

import (
	"context"

	"github.com/spf13/cobra"
)

func Execute(ctx context.Context) error {
	return newRootCmd().ExecuteContext(ctx)
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "ghg",
		Short:         "GitHub commands gateway: device-flow auth and batched repository commands",
		Long:          "ghg authenticates against GitHub with the device-authorization grant, tracks one session per (user, repository) pair, and executes ordered command batches against a working copy. Run it as a multi-tenant HTTP service with 'serve', or as a standalone client with 'auth' and 'run'.",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	app, err := wireApp()
	if err != nil {
		rootCmd.RunE = func(_ *cobra.Command, _ []string) error {
			return err
		}
		return rootCmd
	}

	rootCmd.AddCommand(
		newVersionCmd(),
		newServeCmd(app),
		newAuthCmd(app),
		newRunCmd(app),
	)

	return rootCmd
}
