package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"secchub-loadtest/internal/api"
	"secchub-loadtest/internal/history"
	"secchub-loadtest/internal/logger"
	"secchub-loadtest/internal/scenario"
)

var presetsCmd = &cobra.Command{
	Use:   "presets",
	Short: "List preset scenarios",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		printPresets(cmd.OutOrStdout())
	},
}

// printPresets は利用可能なプリセットを表示する
func printPresets(out io.Writer) {
	fmt.Fprintln(out, "Available preset scenarios:")
	fmt.Fprintln(out)

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	for _, name := range scenario.ListPresets() {
		c, _ := scenario.GetPreset(name)
		desc := c.Description
		if name == scenario.DefaultPreset {
			desc += " (default)"
		}
		fmt.Fprintf(w, "  %s\t%v\t%d VUs\t%s\n", name, c.TotalDuration(), c.PeakVUs(), desc)
	}
	w.Flush()

	fmt.Fprintln(out)
	fmt.Fprintln(out, "Example: secchub-loadtest run --preset load")
}

var (
	serveAddr string
	serveOpts runOptions
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP control API",
	Long: `Start an HTTP server that starts and stops runs on request.

Endpoints:
  GET  /api/status      current run status
  GET  /api/metrics     live metric snapshot
  GET  /api/result      last finished run
  GET  /api/history     recorded runs (needs --history)
  GET  /api/presets     preset scenarios
  POST /api/run/start   start a run (body: scenario file fields as JSON)
  POST /api/run/stop    stop the current run
  GET  /metrics         Prometheus exposition
  GET  /ws              run events over WebSocket`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer(cmd, serveAddr, serveOpts)
	},
}

var (
	historyPath  string
	historyLimit int
	historyJSON  bool
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recorded runs",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return listHistory(cmd.Context(), cmd.OutOrStdout(), historyPath, historyLimit, historyJSON)
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", ":8090", "listen address")
	serveCmd.Flags().StringVar(&serveOpts.baseURL, "base-url", "", "default target API base URL (overrides BASE_URL)")
	serveCmd.Flags().StringVar(&serveOpts.registry, "registry", "", "created ID registry (memory, redis)")
	serveCmd.Flags().StringVar(&serveOpts.redisAddr, "redis-addr", "", "redis address (overrides REDIS_ADDR)")
	serveCmd.Flags().StringVar(&serveOpts.historyPath, "history", "", "sqlite file to record finished runs in")

	historyCmd.Flags().StringVar(&historyPath, "history", "secchub-loadtest.db", "sqlite history file")
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "number of runs to show (0 for all)")
	historyCmd.Flags().BoolVar(&historyJSON, "json", false, "print runs as JSON")
}

// runServer はAPIサーバーを起動する
func runServer(cmd *cobra.Command, addr string, opts runOptions) error {
	base, err := buildScenarioConfig(opts, os.Getenv)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "SecHub Load Test - API Server")
	fmt.Fprintln(out, "=============================")
	fmt.Fprintf(out, "Listening on %s, default target %s\n", addr, base.BaseURL)
	fmt.Fprintln(out, "Press Ctrl+C to stop")
	fmt.Fprintln(out)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	server := api.NewServer(addr, base)
	if base.HistoryPath != "" {
		store, err := history.Open(base.HistoryPath)
		if err != nil {
			return err
		}
		defer store.Close()
		server.SetHistory(store)
	}

	if err := server.Start(ctx); err != nil {
		return err
	}

	logger.Info("", "Waiting for the current run to finish...")
	return server.Wait(context.Background())
}

// listHistory は記録された実行を新しい順に表示する
func listHistory(ctx context.Context, out io.Writer, path string, limit int, asJSON bool) error {
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("no history at %s: %w", path, err)
	}

	store, err := history.Open(path)
	if err != nil {
		return err
	}
	defer store.Close()

	runs, err := store.List(ctx, limit)
	if err != nil {
		return err
	}

	if asJSON {
		if runs == nil {
			runs = []*history.Run{}
		}
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(runs)
	}

	if len(runs) == 0 {
		fmt.Fprintln(out, "No runs recorded.")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSTARTED\tSCENARIO\tDURATION\tVUS\tITERATIONS\tREQS\tERRORS\tP95 (ms)\tRESULT")
	for _, r := range runs {
		verdict := "PASSED"
		if !r.Passed {
			verdict = "FAILED"
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%v\t%d\t%d\t%d\t%.2f%%\t%.1f\t%s\n",
			r.ID,
			r.StartedAt.Format("2006-01-02 15:04:05"),
			r.Scenario,
			r.Duration().Round(time.Second),
			r.PeakVUs,
			r.Iterations,
			r.HTTPRequests,
			r.ErrorRate*100,
			r.P95,
			verdict,
		)
	}
	return w.Flush()
}
