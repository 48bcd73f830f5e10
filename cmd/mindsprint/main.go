// Command mindsprint runs the test platform and its maintenance tasks.
package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mind-engage/mindsprint/internal/config"
	"github.com/mind-engage/mindsprint/internal/logging"
)

var (
	configPath string
	envFile    string

	cfg  config.Config
	lggr *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:           "mindsprint",
	Short:         "Timed multiple-choice test platform",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", envFile, err)
		}
		var err error
		if cfg, err = config.Load(configPath); err != nil {
			return err
		}
		lggr, err = logging.New(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})
		return err
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if lggr != nil {
			_ = lggr.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file (default: ./mindsprint.yaml if present)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded before the config")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(userCmd)
	rootCmd.AddCommand(sweepCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
