package scenario

import (
	"errors"
	"fmt"
	"math"
	"net/url"
	"time"

	"secchub-loadtest/internal/auth"
	"secchub-loadtest/internal/domain"
	"secchub-loadtest/internal/metrics"
)

// Registry backends for created resource IDs
const (
	RegistryMemory = "memory"
	RegistryRedis  = "redis"
)

// Stage はランプの1段階。Duration の間にVU数をTargetへ線形に変化させる
type Stage struct {
	Duration time.Duration
	Target   int
}

// Config はシナリオの設定
type Config struct {
	Name        string // シナリオ名
	Description string // 説明
	BaseURL     string // 対象APIのベースURL

	// 負荷の形
	StartVUs     int           // 最初のステージの開始VU数
	Stages       []Stage       // ランプの段階
	MaxVUs       int           // VU数の上限（0で無制限）
	GracefulStop time.Duration // 終了時に実行中のイテレーションを待つ時間
	TickInterval time.Duration // VU数の再計算間隔

	// イテレーション
	ThinkMin      time.Duration
	ThinkMax      time.Duration
	DomainWeights map[domain.Domain]float64 // nilならデフォルトの重み
	HTTPTimeout   time.Duration

	// 認証
	Credentials auth.Credentials               // セットアップで使う管理者
	Roles       map[auth.Role]auth.Credentials // 副ロール。nilならデフォルト

	// 合否判定。メトリクス名→条件式
	Thresholds map[string][]string

	// 作成したIDの保存先
	RegistryBackend string // memory | redis
	RedisAddr       string

	HistoryPath string // 実行履歴のsqliteファイル。空なら保存しない
}

// DefaultThresholds はデフォルトの合否条件を返す
func DefaultThresholds() map[string][]string {
	return map[string][]string{
		metrics.Errors:          {"rate<0.05"},
		metrics.HTTPReqDuration: {"p(95)<1000", "p(99)<2000"},
		metrics.HTTPReqFailed:   {"rate<0.05"},
	}
}

// DefaultConfig はデフォルト設定を返す
func DefaultConfig() Config {
	return Config{
		Name:            "default",
		Description:     "Default scenario",
		BaseURL:         "http://localhost:8080",
		StartVUs:        1,
		Stages:          []Stage{{Duration: 10 * time.Second, Target: 5}},
		GracefulStop:    30 * time.Second,
		TickInterval:    100 * time.Millisecond,
		ThinkMin:        time.Second,
		ThinkMax:        3 * time.Second,
		HTTPTimeout:     60 * time.Second,
		Credentials:     auth.Credentials{Email: "admin@secchub.com", Password: "password"},
		Thresholds:      DefaultThresholds(),
		RegistryBackend: RegistryMemory,
	}
}

// Validate は設定を検証する
func (c Config) Validate() error {
	if c.BaseURL == "" {
		return errors.New("base URL is required")
	}
	if u, err := url.Parse(c.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid base URL: %q", c.BaseURL)
	}
	if len(c.Stages) == 0 {
		return errors.New("at least one stage is required")
	}
	for i, s := range c.Stages {
		if s.Duration < 0 {
			return fmt.Errorf("stage %d: negative duration", i+1)
		}
		if s.Target < 0 {
			return fmt.Errorf("stage %d: negative target", i+1)
		}
	}
	if c.TotalDuration() <= 0 {
		return errors.New("total stage duration must be positive")
	}
	if c.StartVUs < 0 {
		return errors.New("start VUs must be non-negative")
	}
	if c.MaxVUs < 0 {
		return errors.New("max VUs must be non-negative")
	}
	if c.GracefulStop < 0 {
		return errors.New("graceful stop must be non-negative")
	}
	if c.ThinkMin < 0 || c.ThinkMax < c.ThinkMin {
		return fmt.Errorf("invalid think time range: %v-%v", c.ThinkMin, c.ThinkMax)
	}
	if c.Credentials.Email == "" {
		return errors.New("admin credentials are required")
	}
	for d, w := range c.DomainWeights {
		if !d.Valid() {
			return fmt.Errorf("unknown domain in weights: %v", d)
		}
		if w < 0 || math.IsNaN(w) || math.IsInf(w, 0) {
			return fmt.Errorf("invalid weight for %s: %v", d, w)
		}
	}
	if _, err := metrics.ParseThresholds(c.Thresholds); err != nil {
		return err
	}
	switch c.RegistryBackend {
	case "", RegistryMemory:
	case RegistryRedis:
		if c.RedisAddr == "" {
			return errors.New("redis registry requires an address")
		}
	default:
		return fmt.Errorf("unknown registry backend: %q", c.RegistryBackend)
	}
	return nil
}

// TotalDuration は全ステージの合計時間を返す
func (c Config) TotalDuration() time.Duration {
	var total time.Duration
	for _, s := range c.Stages {
		total += s.Duration
	}
	return total
}

// PeakVUs はステージ中の最大VU数を返す
func (c Config) PeakVUs() int {
	peak := c.StartVUs
	for _, s := range c.Stages {
		peak = max(peak, s.Target)
	}
	if c.MaxVUs > 0 {
		peak = min(peak, c.MaxVUs)
	}
	return peak
}

// TargetAt は経過時間elapsedでのVU目標数と、現在のステージ番号（0始まり）を返す
// 全ステージが終わっていればdoneがtrueになる
// 長さ0のステージは選ばれないが、その目標値が次のステージの補間の起点になる
func TargetAt(startVUs int, stages []Stage, elapsed time.Duration) (target, stage int, done bool) {
	from := startVUs
	var offset time.Duration
	for i, s := range stages {
		end := offset + s.Duration
		if elapsed < end {
			frac := float64(elapsed-offset) / float64(s.Duration)
			return from + int(math.Round(float64(s.Target-from)*frac)), i, false
		}
		from = s.Target
		offset = end
	}
	if len(stages) == 0 {
		return startVUs, 0, true
	}
	return stages[len(stages)-1].Target, len(stages) - 1, true
}
