// Package cli implements the pipeweave command line: validate and plan
// workflow definitions, and inspect the runs recorded in the local store.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/me/pipeweave/internal/config"
	"github.com/me/pipeweave/internal/logging"
	"github.com/me/pipeweave/internal/store"
)

var (
	flagConfig    string
	flagDebug     bool
	flagLogLevel  string
	flagLogFormat string

	logger *slog.Logger
	cfg    config.Config
)

// NewRootCmd creates the root cobra command for the pipeweave CLI.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "pipeweave",
		Short: "pipeweave - declarative data pipeline planner",
		Long:  "pipeweave validates multi-stage pipeline definitions and plans them into ordered plugin batches.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			cfg, err = config.Load(flagConfig)
			if err != nil {
				return err
			}
			if flagLogLevel != "" {
				cfg.LogLevel = flagLogLevel
			}
			if flagLogFormat != "" {
				cfg.LogFormat = flagLogFormat
			}
			if flagDebug {
				cfg.LogLevel = "debug"
			}
			logger = logging.New(cfg.LogLevel, cfg.LogFormat)
			return nil
		},
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVar(&flagConfig, "config", "", "Path to config file")
	root.PersistentFlags().BoolVar(&flagDebug, "debug", false, "Shorthand for --log-level=debug")
	root.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "Log level (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&flagLogFormat, "log-format", "", "Log format (text, json)")

	root.AddCommand(
		newValidateCmd(),
		newPlanCmd(),
		newExpandCmd(),
		newStatusCmd(),
		newListCmd(),
	)

	return root
}

// openStore opens the run store at the configured path, defaulting to
// ~/.pipeweave/pipeweave.db, and runs migrations.
func openStore(ctx context.Context) (*store.SQLiteStore, error) {
	dbPath := cfg.DBPath
	if dbPath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("cannot determine home directory: %w", err)
		}
		dir := filepath.Join(home, ".pipeweave")
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("cannot create %s: %w", dir, err)
		}
		dbPath = filepath.Join(dir, "pipeweave.db")
	}

	st, err := store.NewSQLiteStore(dbPath, logger)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}
	return st, nil
}
