package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"secchub-loadtest/internal/auth"
	"secchub-loadtest/internal/domain"
	"secchub-loadtest/internal/scenario"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to create temp file: %v", err)
	}
	return path
}

func TestLoadFileYAML(t *testing.T) {
	content := `
scenario:
  name: nightly
  description: Nightly load run
  base_url: http://staging:8080
  start_vus: 0
  stages:
    - duration: 30s
      target: 20
    - duration: 1m
      target: 20
    - duration: 10s
      target: 0
  graceful_stop: 15s
  think_time:
    min: 500ms
    max: 2s
  weights:
    log: 0
    planning: 50
  credentials:
    email: root@secchub.com
    password: secret
  roles:
    teacher:
      email: prof@secchub.com
      password: secret
  thresholds:
    http_req_duration:
      - p(95)<800
  registry:
    backend: redis
    redis_addr: localhost:6379
  history: runs.db
`
	cfg, err := LoadFile(writeFile(t, "config.yaml", content))
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.Scenario.Name != "nightly" {
		t.Errorf("expected name 'nightly', got '%s'", cfg.Scenario.Name)
	}
	if len(cfg.Scenario.Stages) != 3 {
		t.Errorf("expected 3 stages, got %d", len(cfg.Scenario.Stages))
	}
	if cfg.Scenario.StartVUs == nil || *cfg.Scenario.StartVUs != 0 {
		t.Error("expected explicit start_vus 0")
	}
	if cfg.Scenario.Credentials == nil || cfg.Scenario.Credentials.Email != "root@secchub.com" {
		t.Errorf("unexpected credentials: %+v", cfg.Scenario.Credentials)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("unexpected validation error: %v", err)
	}

	sc, err := cfg.ToScenarioConfig()
	if err != nil {
		t.Fatalf("failed to convert config: %v", err)
	}
	if sc.BaseURL != "http://staging:8080" {
		t.Errorf("unexpected base URL %s", sc.BaseURL)
	}
	if sc.StartVUs != 0 {
		t.Errorf("expected start VUs 0, got %d", sc.StartVUs)
	}
	if sc.TotalDuration() != 100*time.Second {
		t.Errorf("expected 100s total, got %v", sc.TotalDuration())
	}
	if sc.GracefulStop != 15*time.Second {
		t.Errorf("expected 15s graceful stop, got %v", sc.GracefulStop)
	}
	if sc.ThinkMin != 500*time.Millisecond || sc.ThinkMax != 2*time.Second {
		t.Errorf("unexpected think time %v-%v", sc.ThinkMin, sc.ThinkMax)
	}
	if sc.DomainWeights[domain.Log] != 0 || sc.DomainWeights[domain.Planning] != 50 {
		t.Errorf("unexpected weights %v", sc.DomainWeights)
	}
	if sc.DomainWeights[domain.Admin] != 14 {
		t.Errorf("expected unspecified weights to keep defaults, got %v", sc.DomainWeights[domain.Admin])
	}
	if sc.Roles[auth.RoleTeacher].Email != "prof@secchub.com" {
		t.Errorf("unexpected teacher credentials %+v", sc.Roles[auth.RoleTeacher])
	}
	if sc.Roles[auth.RoleStudent].Email != "student@secchub.com" {
		t.Errorf("expected default student credentials, got %+v", sc.Roles[auth.RoleStudent])
	}
	if len(sc.Thresholds) != 1 {
		t.Errorf("expected thresholds to be replaced, got %v", sc.Thresholds)
	}
	if sc.RegistryBackend != scenario.RegistryRedis || sc.RedisAddr != "localhost:6379" {
		t.Errorf("unexpected registry %s %s", sc.RegistryBackend, sc.RedisAddr)
	}
	if sc.HistoryPath != "runs.db" {
		t.Errorf("unexpected history path %s", sc.HistoryPath)
	}
	if err := sc.Validate(); err != nil {
		t.Errorf("expected converted config to be valid: %v", err)
	}
}

func TestLoadFileJSON(t *testing.T) {
	content := `{
  "scenario": {
    "preset": "smoke",
    "base_url": "http://localhost:9090",
    "http_timeout": "5s"
  }
}`
	cfg, err := LoadFile(writeFile(t, "config.json", content))
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	sc, err := cfg.ToScenarioConfig()
	if err != nil {
		t.Fatalf("failed to convert config: %v", err)
	}
	if sc.Name != "smoke" {
		t.Errorf("expected preset name 'smoke', got '%s'", sc.Name)
	}
	if sc.PeakVUs() != 1 {
		t.Errorf("expected smoke preset stages, got peak %d", sc.PeakVUs())
	}
	if sc.HTTPTimeout != 5*time.Second {
		t.Errorf("expected 5s timeout, got %v", sc.HTTPTimeout)
	}
}

func TestLoadFileNotFound(t *testing.T) {
	_, err := LoadFile("/nonexistent/config.yaml")
	if err == nil {
		t.Error("expected error for nonexistent file")
	}
}

func TestLoadFileUnsupportedFormat(t *testing.T) {
	_, err := LoadFile(writeFile(t, "config.txt", "test"))
	if err == nil {
		t.Error("expected error for unsupported format")
	}
}

func TestLoadFileInvalidYAML(t *testing.T) {
	_, err := LoadFile(writeFile(t, "config.yaml", "scenario: [unclosed"))
	if err == nil {
		t.Error("expected parse error")
	}
}

func TestToScenarioConfigDefaults(t *testing.T) {
	sc, err := (&FileConfig{}).ToScenarioConfig()
	if err != nil {
		t.Fatalf("failed to convert config: %v", err)
	}

	def := scenario.DefaultConfig()
	if sc.Name != def.Name || sc.StartVUs != def.StartVUs || sc.GracefulStop != def.GracefulStop {
		t.Errorf("expected defaults, got %+v", sc)
	}
	if sc.DomainWeights != nil {
		t.Error("expected nil weights to select defaults at run time")
	}
	if sc.Roles != nil {
		t.Error("expected nil roles to select defaults at run time")
	}
}

func TestToScenarioConfigErrors(t *testing.T) {
	tests := []struct {
		name   string
		config ScenarioConfig
	}{
		{"unknown preset", ScenarioConfig{Preset: "soak"}},
		{"invalid stage duration", ScenarioConfig{Stages: []StageConfig{{Duration: "ten", Target: 1}}}},
		{"invalid graceful stop", ScenarioConfig{GracefulStop: "soon"}},
		{"invalid think time", ScenarioConfig{ThinkTime: ThinkTimeConfig{Min: "1"}}},
		{"invalid http timeout", ScenarioConfig{HTTPTimeout: "x"}},
		{"unknown domain", ScenarioConfig{Weights: map[string]float64{"billing": 1}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &FileConfig{Scenario: tt.config}
			if _, err := cfg.ToScenarioConfig(); err == nil {
				t.Error("expected conversion error")
			}
		})
	}
}

func TestValidate(t *testing.T) {
	negative := -1

	tests := []struct {
		name     string
		config   ScenarioConfig
		hasError bool
	}{
		{"valid config", ScenarioConfig{}, false},
		{"known preset", ScenarioConfig{Preset: "load"}, false},
		{"unknown preset", ScenarioConfig{Preset: "soak"}, true},
		{"negative start VUs", ScenarioConfig{StartVUs: &negative}, true},
		{"negative max VUs", ScenarioConfig{MaxVUs: -1}, true},
		{"negative stage target", ScenarioConfig{Stages: []StageConfig{{Duration: "1s", Target: -5}}}, true},
		{"unknown domain", ScenarioConfig{Weights: map[string]float64{"billing": 1}}, true},
		{"negative weight", ScenarioConfig{Weights: map[string]float64{"admin": -1}}, true},
		{"known role", ScenarioConfig{Roles: map[string]auth.Credentials{"Program": {Email: "p@x"}}}, false},
		{"unknown role", ScenarioConfig{Roles: map[string]auth.Credentials{"dean": {Email: "d@x"}}}, true},
		{"bad threshold", ScenarioConfig{Thresholds: map[string][]string{"errors": {"rate~1"}}}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := FileConfig{Scenario: tt.config}
			err := cfg.Validate()
			if tt.hasError && err == nil {
				t.Error("expected validation error")
			}
			if !tt.hasError && err != nil {
				t.Errorf("unexpected validation error: %v", err)
			}
		})
	}
}
