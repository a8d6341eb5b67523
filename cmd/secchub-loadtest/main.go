// Package main is the entry point for secchub-loadtest.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"secchub-loadtest/internal/logger"
)

var (
	version = "dev"
)

// 合否条件を満たさなかったときの終了コード
const exitThresholdsFailed = 99

var errThresholdsFailed = errors.New("some thresholds have failed")

var (
	logLevel string
	envFile  string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		if errors.Is(err, errThresholdsFailed) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(exitThresholdsFailed)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "secchub-loadtest",
	Short: "Load test suite for the SecHub academic backend",
	Long: `secchub-loadtest drives weighted virtual-user traffic against a SecHub
backend across its seven API domains and checks the run against thresholds.

Running without a subcommand is the same as 'run'.

Environment (also read from .env):
  BASE_URL                  target API base URL
  LOADTEST_ADMIN_EMAIL      admin account used by setup
  LOADTEST_ADMIN_PASSWORD   admin password
  REDIS_ADDR                redis address for --registry redis

Examples:
  secchub-loadtest                              # quick preset against BASE_URL
  secchub-loadtest run --preset load            # 50 VU ramp over 85s
  secchub-loadtest run --config nightly.yaml    # stages and thresholds from a file
  secchub-loadtest serve --addr :8090           # HTTP control API
  secchub-loadtest history --limit 5            # recent runs`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return initialize()
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runScenario(cmd, runOpts)
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "secchub-loadtest version %s\n", version)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded before reading the environment")

	addRunFlags(rootCmd, &runOpts)
	addRunFlags(runCmd, &runOpts)

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(presetsCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(versionCmd)
}

// initialize はログレベルと .env を設定する
func initialize() error {
	level, err := logger.ParseLevel(logLevel)
	if err != nil {
		return err
	}
	logger.Default.SetLevel(level)

	if envFile == "" {
		return nil
	}
	if err := godotenv.Load(envFile); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to load %s: %w", envFile, err)
	}
	logger.Debug("", "Loaded environment from %s", envFile)
	return nil
}
