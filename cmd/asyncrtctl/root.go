package main

import (
	"github.com/spf13/cobra"
)

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "asyncrtctl",
		Short:         "Demonstration front-end for the asyncrt scheduler",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	cmd.AddCommand(demoCmd())
	return cmd
}
