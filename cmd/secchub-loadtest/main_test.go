package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"secchub-loadtest/internal/history"
	"secchub-loadtest/internal/scenario"
	"secchub-loadtest/internal/testbackend"
)

func envMap(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func TestBuildScenarioConfigDefault(t *testing.T) {
	cfg, err := buildScenarioConfig(runOptions{}, envMap(nil))
	require.NoError(t, err)
	assert.Equal(t, scenario.DefaultPreset, cfg.Name)
	assert.Equal(t, "http://localhost:8080", cfg.BaseURL)
}

func TestBuildScenarioConfigPrecedence(t *testing.T) {
	env := envMap(map[string]string{
		envBaseURL:       "http://from-env:8080",
		envAdminEmail:    "ops@secchub.com",
		envAdminPassword: "s3cret",
		envRedisAddr:     "redis:6379",
	})

	cfg, err := buildScenarioConfig(runOptions{preset: "load"}, env)
	require.NoError(t, err)
	assert.Equal(t, "load", cfg.Name)
	assert.Equal(t, "http://from-env:8080", cfg.BaseURL)
	assert.Equal(t, "ops@secchub.com", cfg.Credentials.Email)
	assert.Equal(t, "s3cret", cfg.Credentials.Password)
	assert.Equal(t, "redis:6379", cfg.RedisAddr)

	cfg, err = buildScenarioConfig(runOptions{
		preset:       "load",
		baseURL:      "http://from-flag:9000",
		maxVUs:       10,
		gracefulStop: 3 * time.Second,
		registry:     "redis",
		redisAddr:    "other:6379",
		historyPath:  "runs.db",
	}, env)
	require.NoError(t, err)
	assert.Equal(t, "http://from-flag:9000", cfg.BaseURL)
	assert.Equal(t, 10, cfg.MaxVUs)
	assert.Equal(t, 10, cfg.PeakVUs())
	assert.Equal(t, 3*time.Second, cfg.GracefulStop)
	assert.Equal(t, scenario.RegistryRedis, cfg.RegistryBackend)
	assert.Equal(t, "other:6379", cfg.RedisAddr)
	assert.Equal(t, "runs.db", cfg.HistoryPath)
}

func TestBuildScenarioConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
scenario:
  name: from-file
  base_url: http://from-file:8080
  stages:
    - duration: 2s
      target: 4
`), 0o644))

	cfg, err := buildScenarioConfig(runOptions{configFile: path}, envMap(nil))
	require.NoError(t, err)
	assert.Equal(t, "from-file", cfg.Name)
	assert.Equal(t, "http://from-file:8080", cfg.BaseURL)
	assert.Equal(t, 4, cfg.PeakVUs())

	cfg, err = buildScenarioConfig(runOptions{configFile: path}, envMap(map[string]string{envBaseURL: "http://env:1"}))
	require.NoError(t, err)
	assert.Equal(t, "http://env:1", cfg.BaseURL)
}

func TestBuildScenarioConfigErrors(t *testing.T) {
	_, err := buildScenarioConfig(runOptions{preset: "soak"}, envMap(nil))
	assert.ErrorContains(t, err, "unknown preset")

	_, err = buildScenarioConfig(runOptions{configFile: "/nonexistent.yaml"}, envMap(nil))
	assert.Error(t, err)

	_, err = buildScenarioConfig(runOptions{registry: "redis"}, envMap(nil))
	assert.Error(t, err, "redis registry without an address")

	_, err = buildScenarioConfig(runOptions{baseURL: "not a url"}, envMap(nil))
	assert.Error(t, err)
}

func TestPrintPresets(t *testing.T) {
	var buf bytes.Buffer
	printPresets(&buf)

	out := buf.String()
	for _, name := range scenario.ListPresets() {
		assert.Contains(t, out, name)
	}
	assert.Contains(t, out, "(default)")
	assert.Contains(t, out, "1m25s")
}

func TestListHistory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	ctx := context.Background()

	assert.Error(t, listHistory(ctx, &bytes.Buffer{}, path, 10, false), "missing file")

	store, err := history.Open(path)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, listHistory(ctx, &buf, path, 10, false))
	assert.Contains(t, buf.String(), "No runs recorded.")

	start := time.Now().Add(-time.Minute)
	require.NoError(t, store.Save(ctx, &history.Run{
		RunID:     "r1",
		Scenario:  "load",
		BaseURL:   "http://localhost:8080",
		StartedAt: start,
		EndedAt:   start.Add(85 * time.Second),
		PeakVUs:   50,
		Passed:    false,
		Created:   map[string]int{"courses": 3},
	}))
	require.NoError(t, store.Close())

	buf.Reset()
	require.NoError(t, listHistory(ctx, &buf, path, 10, false))
	assert.Contains(t, buf.String(), "load")
	assert.Contains(t, buf.String(), "FAILED")
	assert.Contains(t, buf.String(), "1m25s")

	buf.Reset()
	require.NoError(t, listHistory(ctx, &buf, path, 10, true))
	var runs []history.Run
	require.NoError(t, json.Unmarshal(buf.Bytes(), &runs))
	require.Len(t, runs, 1)
	assert.Equal(t, "r1", runs[0].RunID)
}

func TestRunScenarioAgainstBackend(t *testing.T) {
	backend := testbackend.New()
	defer backend.Close()

	dir := t.TempDir()
	configPath := filepath.Join(dir, "run.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte(`
scenario:
  name: cli-test
  stages:
    - duration: 200ms
      target: 2
  graceful_stop: 5s
  think_time:
    min: 1ms
    max: 2ms
  thresholds:
    http_reqs:
      - count>0
`), 0o644))

	opts := runOptions{
		configFile:  configPath,
		baseURL:     backend.URL(),
		historyPath: filepath.Join(dir, "history.db"),
		summaryJSON: filepath.Join(dir, "summary.json"),
	}

	var out bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetOut(&out)
	require.NoError(t, runScenario(cmd, opts))

	assert.Contains(t, out.String(), "Scenario: cli-test")
	assert.Contains(t, out.String(), "SCENARIO REPORT: cli-test")
	assert.Contains(t, out.String(), "RESULT: PASSED")

	data, err := os.ReadFile(opts.summaryJSON)
	require.NoError(t, err)
	var result scenario.Result
	require.NoError(t, json.Unmarshal(data, &result))
	assert.Equal(t, "cli-test", result.ScenarioName)

	store, err := history.Open(opts.historyPath)
	require.NoError(t, err)
	defer store.Close()
	runs, err := store.List(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, result.RunID, runs[0].RunID)
	assert.True(t, runs[0].Passed)
}

func TestRunScenarioThresholdFailure(t *testing.T) {
	backend := testbackend.New()
	defer backend.Close()

	configPath := filepath.Join(t.TempDir(), "run.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte(`
scenario:
  stages:
    - duration: 100ms
      target: 1
  graceful_stop: 5s
  think_time:
    min: 1ms
    max: 2ms
  thresholds:
    http_reqs:
      - count<0
`), 0o644))

	cmd := &cobra.Command{}
	cmd.SetOut(&bytes.Buffer{})
	err := runScenario(cmd, runOptions{configFile: configPath, baseURL: backend.URL()})
	assert.ErrorIs(t, err, errThresholdsFailed)
}

func TestVersionCommand(t *testing.T) {
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"version", "--env-file", ""})
	defer rootCmd.SetArgs(nil)

	require.NoError(t, rootCmd.Execute())
	assert.Contains(t, out.String(), "secchub-loadtest version dev")
}
