package main

import (
	"fmt"

	"GapWatchAPI/internal/service"

	"github.com/spf13/cobra"
)

func ValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <monitors.yaml>",
		Short: "Check a monitors seed file without touching the database",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := service.LoadMonitorFile(args[0])
			if err != nil {
				return err
			}
			if err := f.Check(); err != nil {
				out := cmd.ErrOrStderr()
				for _, e := range unjoin(err) {
					fmt.Fprintln(out, "  -", e)
				}
				return fmt.Errorf("%s: invalid monitors file", args[0])
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %d monitors OK\n", args[0], len(f.Monitors))
			return nil
		},
	}
}

func unjoin(err error) []error {
	if j, ok := err.(interface{ Unwrap() []error }); ok {
		return j.Unwrap()
	}
	return []error{err}
}
