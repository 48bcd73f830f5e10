package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mind-engage/mindsprint/internal/bank"
)

var importCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Import categories, questions, tests and quotas from a JSON or YAML file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer f.Close()
		doc, err := bank.Parse(f, bank.DetectFormat(args[0]))
		if err != nil {
			return err
		}

		a, err := openApp(cmd.Context(), cfg, lggr)
		if err != nil {
			return err
		}
		defer a.Close()

		rep, err := a.importer.Import(cmd.Context(), doc)
		if err != nil {
			return fmt.Errorf("import %s: %w", args[0], err)
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(rep)
	},
}
