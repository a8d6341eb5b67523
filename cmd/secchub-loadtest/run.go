package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"secchub-loadtest/internal/config"
	"secchub-loadtest/internal/history"
	"secchub-loadtest/internal/logger"
	"secchub-loadtest/internal/scenario"
)

// 環境変数
const (
	envBaseURL       = "BASE_URL"
	envAdminEmail    = "LOADTEST_ADMIN_EMAIL"
	envAdminPassword = "LOADTEST_ADMIN_PASSWORD"
	envRedisAddr     = "REDIS_ADDR"
)

// runOptions は run コマンドのフラグ
type runOptions struct {
	configFile   string
	preset       string
	baseURL      string
	maxVUs       int
	gracefulStop time.Duration
	registry     string
	redisAddr    string
	historyPath  string
	summaryJSON  string
}

var runOpts runOptions

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a load test scenario",
	Long: `Run a load test scenario and print the report.

The scenario comes from --config, --preset, or the quick preset when neither is
given. Environment variables override the file and flags override both.
The command exits with status 99 when a threshold fails.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runScenario(cmd, runOpts)
	},
}

func addRunFlags(cmd *cobra.Command, opts *runOptions) {
	f := cmd.Flags()
	f.StringVarP(&opts.configFile, "config", "c", "", "scenario file (YAML/JSON)")
	f.StringVarP(&opts.preset, "preset", "p", "", "preset scenario (see 'presets')")
	f.StringVar(&opts.baseURL, "base-url", "", "target API base URL (overrides BASE_URL)")
	f.IntVar(&opts.maxVUs, "max-vus", 0, "cap on concurrent VUs (0 for no cap)")
	f.DurationVar(&opts.gracefulStop, "graceful-stop", 0, "time to let running iterations finish after the last stage")
	f.StringVar(&opts.registry, "registry", "", "created ID registry (memory, redis)")
	f.StringVar(&opts.redisAddr, "redis-addr", "", "redis address (overrides REDIS_ADDR)")
	f.StringVar(&opts.historyPath, "history", "", "sqlite file to record the run in")
	f.StringVar(&opts.summaryJSON, "summary-json", "", "write the result as JSON to this file")
	cmd.MarkFlagsMutuallyExclusive("config", "preset")
}

// buildScenarioConfig はシナリオ設定を構築する
// 優先順位は フラグ > 環境変数 > 設定ファイル/プリセット
func buildScenarioConfig(opts runOptions, getenv func(string) string) (scenario.Config, error) {
	var cfg scenario.Config

	switch {
	case opts.configFile != "":
		fileConfig, err := config.LoadFile(opts.configFile)
		if err != nil {
			return cfg, err
		}
		if err := fileConfig.Validate(); err != nil {
			return cfg, fmt.Errorf("invalid config file: %w", err)
		}
		cfg, err = fileConfig.ToScenarioConfig()
		if err != nil {
			return cfg, fmt.Errorf("invalid config file: %w", err)
		}
	case opts.preset != "":
		preset, ok := scenario.GetPreset(opts.preset)
		if !ok {
			return cfg, fmt.Errorf("unknown preset: %s (available: %v)", opts.preset, scenario.ListPresets())
		}
		cfg = preset
	default:
		cfg, _ = scenario.GetPreset(scenario.DefaultPreset)
	}

	if v := getenv(envBaseURL); v != "" {
		cfg.BaseURL = v
	}
	if v := getenv(envAdminEmail); v != "" {
		cfg.Credentials.Email = v
	}
	if v := getenv(envAdminPassword); v != "" {
		cfg.Credentials.Password = v
	}
	if v := getenv(envRedisAddr); v != "" {
		cfg.RedisAddr = v
	}

	if opts.baseURL != "" {
		cfg.BaseURL = opts.baseURL
	}
	if opts.maxVUs > 0 {
		cfg.MaxVUs = opts.maxVUs
	}
	if opts.gracefulStop > 0 {
		cfg.GracefulStop = opts.gracefulStop
	}
	if opts.registry != "" {
		cfg.RegistryBackend = opts.registry
	}
	if opts.redisAddr != "" {
		cfg.RedisAddr = opts.redisAddr
	}
	if opts.historyPath != "" {
		cfg.HistoryPath = opts.historyPath
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// runScenario はシナリオを実行してレポートを出力する
func runScenario(cmd *cobra.Command, opts runOptions) error {
	cfg, err := buildScenarioConfig(opts, os.Getenv)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	printBanner(out, cfg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	engine := scenario.New(cfg)
	result, err := engine.Run(ctx)
	if err != nil {
		return err
	}
	if ctx.Err() != nil {
		logger.Warn("", "Run was interrupted before the last stage finished")
	}

	fmt.Fprintln(out, result.Report())

	if cfg.HistoryPath != "" {
		if err := saveHistory(cfg.HistoryPath, result); err != nil {
			logger.Warn("", "Failed to record run: %v", err)
		}
	}
	if opts.summaryJSON != "" {
		if err := writeSummary(opts.summaryJSON, result); err != nil {
			return err
		}
	}

	if !result.Passed() {
		return errThresholdsFailed
	}
	return nil
}

func printBanner(out io.Writer, cfg scenario.Config) {
	fmt.Fprintln(out, "SecHub Load Test")
	fmt.Fprintln(out, "====================================================")
	fmt.Fprintf(out, "Scenario: %s\n", cfg.Name)
	fmt.Fprintf(out, "Target:   %s\n", cfg.BaseURL)
	fmt.Fprintf(out, "Duration: %v (%d stages)\n", cfg.TotalDuration(), len(cfg.Stages))
	fmt.Fprintf(out, "Peak VUs: %d\n", cfg.PeakVUs())
	fmt.Fprintln(out, "====================================================")
	fmt.Fprintln(out)
}

func saveHistory(path string, result *scenario.Result) error {
	store, err := history.Open(path)
	if err != nil {
		return err
	}
	defer store.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return store.Save(ctx, history.FromResult(result))
}

func writeSummary(path string, result *scenario.Result) error {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode summary: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write summary: %w", err)
	}
	return nil
}
