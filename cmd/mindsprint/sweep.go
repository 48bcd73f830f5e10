package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Complete every attempt whose time has run out, then exit",
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := openApp(cmd.Context(), cfg, lggr)
		if err != nil {
			return err
		}
		defer a.Close()

		n, err := a.engine.ExpireDue(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "completed %d expired attempts\n", n)
		return nil
	},
}
