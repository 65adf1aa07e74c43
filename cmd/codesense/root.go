package main

import (
	"fmt"

	"github.com/dpolishuk/codesense/internal/config"
	"github.com/dpolishuk/codesense/internal/logging"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	configPath string
	logLevel   string

	cfg    *config.Config
	logger *logrus.Logger
)

var rootCmd = &cobra.Command{
	Use:   "codesense",
	Short: "Find duplicated and similar code across a code base",
	Long: `codesense indexes a source tree into an entity forest, fingerprints every
function and method, and reports structurally or semantically similar code.

Configuration is read from codesense.yaml (or --config), .env files and
CODESENSE_* environment variables.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load(configPath)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		if logLevel != "" {
			loaded.Log.Level = logLevel
		}
		cfg = loaded
		logger = logging.New(cfg.Log.Level, cfg.Log.Format, cmd.ErrOrStderr())
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to a YAML config file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Override the log level (debug, info, warn, error)")
}
