package cmd

import (
	"os"

	"github.com/dt-pm-tools/board-sync/internal/config"
	"github.com/dt-pm-tools/board-sync/internal/logging"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	cfgFile   string
	appConfig config.Config
	appLog    *logrus.Entry
	version   = "0.1.0"
)

var rootCmd = &cobra.Command{
	Use:     "boardsync",
	Short:   "Keep client rank, SLA and revenue in sync across monday.com boards",
	Long:    `Receives column-change webhooks from a source board and mirrors rank, SLA and revenue onto the matching item of a target board. Also computes SLA deadlines from a client's severity table.`,
	Version: version,

	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ~/.board-sync.yaml)")
}

// loadConfig loads and validates configuration and builds the logger.
// Commands that need API access call this.
func loadConfig() error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return errors.Wrap(err, "loading config")
	}
	if err := cfg.Validate(); err != nil {
		return errors.Wrap(err, "invalid config\nRun 'boardsync config' to set up credentials")
	}
	log, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return errors.Wrap(err, "invalid config")
	}
	appConfig = cfg
	appLog = log
	return nil
}
