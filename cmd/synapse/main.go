// Command synapse runs multi-agent edits over a theme directory.
package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/prime30/synapse-sub013/internal/config"
	"github.com/prime30/synapse-sub013/internal/logging"
)

var (
	logLevel  string
	logFormat string
	configDir string
	storeFlag string

	// Set by the root command before any subcommand runs.
	userCfg    *config.Config
	cfgManager *config.Manager
	logger     = zap.NewNop()
)

var rootCmd = &cobra.Command{
	Use:           "synapse",
	Short:         "Coordinate LLM workers that edit a theme",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load .env: %w", err)
		}
		return loadUserConfig(cmd)
	},
	PersistentPostRun: func(*cobra.Command, []string) {
		_ = logger.Sync()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "debug, info, warn or error")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "console or json")
	rootCmd.PersistentFlags().StringVar(&configDir, "config-dir", "", "configuration directory (default $XDG_CONFIG_HOME/synapse)")
	rootCmd.PersistentFlags().StringVar(&storeFlag, "store", "", `file store: "dir" or "sqlite:PATH" (PATH relative to the project root)`)
}

func loadUserConfig(cmd *cobra.Command) error {
	if configDir != "" {
		cfgManager = config.NewManagerAt(configDir)
	} else {
		m, err := config.NewManager()
		if err != nil {
			return err
		}
		cfgManager = m
	}
	cfg, err := cfgManager.Load()
	if err != nil {
		return err
	}
	if err := cfg.ApplyEnv(nil); err != nil {
		return fmt.Errorf("environment: %w", err)
	}
	if cmd.Flags().Changed("log-level") {
		cfg.LogLevel = logLevel
	}
	if cmd.Flags().Changed("log-format") {
		cfg.LogFormat = logFormat
	}
	if cmd.Flags().Changed("store") {
		cfg.Store = storeFlag
	}
	l, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return err
	}
	userCfg, logger = cfg, l
	logger.Debug("configuration loaded", zap.String("path", cfgManager.Path()), zap.Bool("exists", cfgManager.Exists()))
	return nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "synapse: %v\n", err)
		stop()
		os.Exit(1)
	}
}
