package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"secchub-loadtest/internal/auth"
	"secchub-loadtest/internal/domain"
	"secchub-loadtest/internal/metrics"
	"secchub-loadtest/internal/scenario"

	"gopkg.in/yaml.v3"
)

// FileConfig は設定ファイルの構造
type FileConfig struct {
	Scenario ScenarioConfig `yaml:"scenario" json:"scenario"`
}

// ScenarioConfig はシナリオ設定
type ScenarioConfig struct {
	Preset      string `yaml:"preset" json:"preset"` // 指定すると、このプリセットを上書きする
	Name        string `yaml:"name" json:"name"`
	Description string `yaml:"description" json:"description"`
	BaseURL     string `yaml:"base_url" json:"base_url"`

	StartVUs     *int          `yaml:"start_vus" json:"start_vus"`
	MaxVUs       int           `yaml:"max_vus" json:"max_vus"`
	Stages       []StageConfig `yaml:"stages" json:"stages"`
	GracefulStop string        `yaml:"graceful_stop" json:"graceful_stop"`

	ThinkTime   ThinkTimeConfig    `yaml:"think_time" json:"think_time"`
	HTTPTimeout string             `yaml:"http_timeout" json:"http_timeout"`
	Weights     map[string]float64 `yaml:"weights" json:"weights"`

	Credentials *auth.Credentials           `yaml:"credentials" json:"credentials"`
	Roles       map[string]auth.Credentials `yaml:"roles" json:"roles"`

	Thresholds map[string][]string `yaml:"thresholds" json:"thresholds"`

	Registry RegistryConfig `yaml:"registry" json:"registry"`
	History  string         `yaml:"history" json:"history"`
}

// StageConfig はランプの1段階
type StageConfig struct {
	Duration string `yaml:"duration" json:"duration"`
	Target   int    `yaml:"target" json:"target"`
}

// ThinkTimeConfig はイテレーション間の待ち時間
type ThinkTimeConfig struct {
	Min string `yaml:"min" json:"min"`
	Max string `yaml:"max" json:"max"`
}

// RegistryConfig は作成IDの保存先
type RegistryConfig struct {
	Backend   string `yaml:"backend" json:"backend"`
	RedisAddr string `yaml:"redis_addr" json:"redis_addr"`
}

// LoadFile は設定ファイルを読み込む
func LoadFile(path string) (*FileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config FileConfig
	ext := strings.ToLower(filepath.Ext(path))

	switch ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("failed to parse YAML: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("failed to parse JSON: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported config format: %s", ext)
	}

	return &config, nil
}

// ToScenarioConfig はFileConfigをscenario.Configに変換する
// 未指定の項目はプリセット（なければデフォルト設定）の値を使う
func (f *FileConfig) ToScenarioConfig() (scenario.Config, error) {
	sc := f.Scenario

	config := scenario.DefaultConfig()
	if sc.Preset != "" {
		preset, ok := scenario.GetPreset(sc.Preset)
		if !ok {
			return config, fmt.Errorf("unknown preset: %s", sc.Preset)
		}
		config = preset
	}

	if sc.Name != "" {
		config.Name = sc.Name
	}
	if sc.Description != "" {
		config.Description = sc.Description
	}
	if sc.BaseURL != "" {
		config.BaseURL = sc.BaseURL
	}

	// 負荷の形
	if sc.StartVUs != nil {
		config.StartVUs = *sc.StartVUs
	}
	if sc.MaxVUs > 0 {
		config.MaxVUs = sc.MaxVUs
	}
	if len(sc.Stages) > 0 {
		stages, err := parseStages(sc.Stages)
		if err != nil {
			return config, err
		}
		config.Stages = stages
	}
	if err := setDuration(&config.GracefulStop, sc.GracefulStop, "graceful_stop"); err != nil {
		return config, err
	}

	// イテレーション
	if err := setDuration(&config.ThinkMin, sc.ThinkTime.Min, "think_time.min"); err != nil {
		return config, err
	}
	if err := setDuration(&config.ThinkMax, sc.ThinkTime.Max, "think_time.max"); err != nil {
		return config, err
	}
	if err := setDuration(&config.HTTPTimeout, sc.HTTPTimeout, "http_timeout"); err != nil {
		return config, err
	}
	if len(sc.Weights) > 0 {
		weights, err := parseWeights(sc.Weights)
		if err != nil {
			return config, err
		}
		config.DomainWeights = weights
	}

	// 認証
	if sc.Credentials != nil {
		config.Credentials = *sc.Credentials
	}
	if len(sc.Roles) > 0 {
		roles := auth.DefaultRoles()
		for name, creds := range sc.Roles {
			roles[auth.Role(strings.ToLower(name))] = creds
		}
		config.Roles = roles
	}

	if len(sc.Thresholds) > 0 {
		config.Thresholds = sc.Thresholds
	}

	if sc.Registry.Backend != "" {
		config.RegistryBackend = strings.ToLower(sc.Registry.Backend)
	}
	if sc.Registry.RedisAddr != "" {
		config.RedisAddr = sc.Registry.RedisAddr
	}
	if sc.History != "" {
		config.HistoryPath = sc.History
	}

	return config, nil
}

func setDuration(dst *time.Duration, value, field string) error {
	if value == "" {
		return nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", field, err)
	}
	*dst = d
	return nil
}

// parseStages は文字列の時間を持つステージをパースする
func parseStages(stages []StageConfig) ([]scenario.Stage, error) {
	out := make([]scenario.Stage, 0, len(stages))
	for i, s := range stages {
		d, err := time.ParseDuration(s.Duration)
		if err != nil {
			return nil, fmt.Errorf("invalid duration in stage %d: %w", i+1, err)
		}
		out = append(out, scenario.Stage{Duration: d, Target: s.Target})
	}
	return out, nil
}

// parseWeights はドメイン名の重みをパースする
// 指定されなかったドメインはデフォルトの重みのまま
func parseWeights(weights map[string]float64) (map[domain.Domain]float64, error) {
	out := domain.DefaultWeights()
	for name, w := range weights {
		d, err := domain.ParseDomain(name)
		if err != nil {
			return nil, err
		}
		out[d] = w
	}
	return out, nil
}

// Validate は設定を検証する
func (f *FileConfig) Validate() error {
	sc := f.Scenario

	if sc.Preset != "" {
		if _, ok := scenario.GetPreset(sc.Preset); !ok {
			return fmt.Errorf("unknown preset: %s", sc.Preset)
		}
	}

	if sc.StartVUs != nil && *sc.StartVUs < 0 {
		return fmt.Errorf("start_vus must be non-negative")
	}

	if sc.MaxVUs < 0 {
		return fmt.Errorf("max_vus must be non-negative")
	}

	for i, s := range sc.Stages {
		if s.Target < 0 {
			return fmt.Errorf("stages[%d].target must be non-negative", i)
		}
	}

	for name, w := range sc.Weights {
		if _, err := domain.ParseDomain(name); err != nil {
			return fmt.Errorf("weights: %w", err)
		}
		if w < 0 {
			return fmt.Errorf("weights.%s must be non-negative", name)
		}
	}

	for name := range sc.Roles {
		switch auth.Role(strings.ToLower(name)) {
		case auth.RoleAdmin, auth.RoleTeacher, auth.RoleStudent, auth.RoleProgram:
		default:
			return fmt.Errorf("unknown role: %s", name)
		}
	}

	if _, err := metrics.ParseThresholds(sc.Thresholds); err != nil {
		return fmt.Errorf("thresholds: %w", err)
	}

	return nil
}
