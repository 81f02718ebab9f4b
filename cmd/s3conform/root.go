package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/aretw0/s3conform"
	"github.com/aretw0/s3conform/internal/logging"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "s3conform",
	Short: "s3conform runs data-driven conformance suites against S3-compatible storage",
	Long: `s3conform expands YAML or mind-map suite definitions into linear suites,
runs them concurrently against the configured endpoint and reports the outcome
as a summary table, a mind-map archive and stored run reports.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	// Persistent flags (available to all commands)
	rootCmd.PersistentFlags().StringP("config", "c", "", "Config file (default $S3CONFORM_CONFIG or ./config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: debug, info, warn, error (overrides log_level)")
}

// loadConfig reads the config file and builds the logger it asks for.
func loadConfig(cmd *cobra.Command) (*s3conform.Config, *slog.Logger, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := s3conform.LoadConfig(path)
	if err != nil {
		return nil, nil, err
	}
	levelName := cfg.LogLevel
	if flag, _ := cmd.Flags().GetString("log-level"); flag != "" {
		levelName = flag
	}
	level, err := logging.ParseLevel(levelName)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logging.New(level), nil
}
