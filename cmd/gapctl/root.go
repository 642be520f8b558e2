package main

import (
	"github.com/spf13/cobra"
)

func NewRoot() *cobra.Command {
	root := &cobra.Command{
		Use:           "gapctl",
		Short:         "Operator tooling for the GapWatch API",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(
		ValidateCmd(),
		TokenCmd(),
		ReplayCmd(),
	)
	return root
}
