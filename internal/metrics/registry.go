package metrics

import (
	"math"
	"math/rand/v2"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// 組み込みメトリクス名
const (
	HTTPReqs           = "http_reqs"
	HTTPReqDuration    = "http_req_duration"
	HTTPReqFailed      = "http_req_failed"
	Checks             = "checks"
	Errors             = "errors"
	OperationsByModule = "operations_by_module"
	IterationDuration  = "iteration_duration"
)

// Rate は真偽値サンプルのうち true の割合を追跡する
type Rate struct {
	name  string
	trues atomic.Uint64
	total atomic.Uint64
	prom  *prometheus.CounterVec
}

// Add はサンプルを1件追加する
func (r *Rate) Add(v bool) {
	r.total.Add(1)
	outcome := "false"
	if v {
		r.trues.Add(1)
		outcome = "true"
	}
	if r.prom != nil {
		r.prom.WithLabelValues(r.name, outcome).Inc()
	}
}

// Value は true の割合を返す（0.0〜1.0）。サンプルなしは0
func (r *Rate) Value() float64 {
	total := r.total.Load()
	if total == 0 {
		return 0
	}
	return float64(r.trues.Load()) / float64(total)
}

// Trues は true サンプル数を返す
func (r *Rate) Trues() uint64 {
	return r.trues.Load()
}

// Count は総サンプル数を返す
func (r *Rate) Count() uint64 {
	return r.total.Load()
}

// Trend はミリ秒値の分布を追跡する
// サンプル上限を超えた後はリザーバサンプリングで保持する
type Trend struct {
	name       string
	maxSamples int
	prom       *prometheus.HistogramVec

	mu      sync.Mutex
	samples []float64
	count   uint64
	sum     float64
	min     float64
	max     float64
}

// Add は値を1件追加する
func (t *Trend) Add(v float64) {
	t.mu.Lock()
	t.count++
	t.sum += v
	if t.count == 1 || v < t.min {
		t.min = v
	}
	if t.count == 1 || v > t.max {
		t.max = v
	}
	if len(t.samples) < t.maxSamples {
		t.samples = append(t.samples, v)
	} else if j := rand.Uint64N(t.count); j < uint64(t.maxSamples) {
		t.samples[j] = v
	}
	t.mu.Unlock()

	if t.prom != nil {
		t.prom.WithLabelValues(t.name).Observe(v)
	}
}

// AddDuration は時間をミリ秒として追加する
func (t *Trend) AddDuration(d time.Duration) {
	t.Add(float64(d) / float64(time.Millisecond))
}

// Percentile は線形補間のパーセンタイルを返す
func (t *Trend) Percentile(p float64) float64 {
	t.mu.Lock()
	sorted := make([]float64, len(t.samples))
	copy(sorted, t.samples)
	t.mu.Unlock()

	sort.Float64s(sorted)
	return percentileSorted(sorted, p)
}

// TrendStats はTrendの集計値
type TrendStats struct {
	Count uint64  `json:"count"`
	Avg   float64 `json:"avg"`
	Min   float64 `json:"min"`
	Med   float64 `json:"med"`
	Max   float64 `json:"max"`
	P90   float64 `json:"p90"`
	P95   float64 `json:"p95"`
	P99   float64 `json:"p99"`
}

// Stats は集計値を返す
func (t *Trend) Stats() TrendStats {
	t.mu.Lock()
	count, sum, lo, hi := t.count, t.sum, t.min, t.max
	sorted := make([]float64, len(t.samples))
	copy(sorted, t.samples)
	t.mu.Unlock()

	if count == 0 {
		return TrendStats{}
	}
	sort.Float64s(sorted)

	return TrendStats{
		Count: count,
		Avg:   sum / float64(count),
		Min:   lo,
		Med:   percentileSorted(sorted, 50),
		Max:   hi,
		P90:   percentileSorted(sorted, 90),
		P95:   percentileSorted(sorted, 95),
		P99:   percentileSorted(sorted, 99),
	}
}

// Counter はタグ別に加算される累積値
type Counter struct {
	name string
	prom *prometheus.CounterVec

	mu    sync.Mutex
	total float64
	byTag map[string]float64
}

// Add は値を加算する。tag は空でもよい
func (c *Counter) Add(v float64, tag string) {
	if v < 0 || math.IsNaN(v) {
		return
	}
	c.mu.Lock()
	c.total += v
	if tag != "" {
		c.byTag[tag] += v
	}
	c.mu.Unlock()

	if c.prom != nil {
		c.prom.WithLabelValues(c.name, tag).Add(v)
	}
}

// Total は合計値を返す
func (c *Counter) Total() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.total
}

// ByTag はタグ別の値のコピーを返す
func (c *Counter) ByTag() map[string]float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]float64, len(c.byTag))
	for k, v := range c.byTag {
		out[k] = v
	}
	return out
}

// RegistryConfig はRegistryの設定
type RegistryConfig struct {
	Namespace       string // Prometheusの名前空間
	MaxTrendSamples int    // Trendごとのサンプル上限
	Prometheus      bool   // Prometheusへのミラーを有効化
}

// DefaultRegistryConfig はデフォルト設定を返す
func DefaultRegistryConfig() RegistryConfig {
	return RegistryConfig{
		Namespace:       "secchub_loadtest",
		MaxTrendSamples: 50000,
		Prometheus:      true,
	}
}

// Registry は名前付きのRate・Trend・Counterを保持する
type Registry struct {
	config RegistryConfig
	prom   *promMirror

	mu       sync.RWMutex
	rates    map[string]*Rate
	trends   map[string]*Trend
	counters map[string]*Counter
}

// NewRegistry は新しいRegistryを作成する
func NewRegistry(config RegistryConfig) *Registry {
	if config.MaxTrendSamples <= 0 {
		config.MaxTrendSamples = DefaultRegistryConfig().MaxTrendSamples
	}
	r := &Registry{
		config:   config,
		rates:    make(map[string]*Rate),
		trends:   make(map[string]*Trend),
		counters: make(map[string]*Counter),
	}
	if config.Prometheus {
		r.prom = newPromMirror(config.Namespace)
	}
	return r
}

// Rate は名前のRateを返す。未登録なら作成する
func (r *Registry) Rate(name string) *Rate {
	r.mu.RLock()
	rate, ok := r.rates[name]
	r.mu.RUnlock()
	if ok {
		return rate
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if rate, ok := r.rates[name]; ok {
		return rate
	}
	rate = &Rate{name: name}
	if r.prom != nil {
		rate.prom = r.prom.rates
	}
	r.rates[name] = rate
	return rate
}

// Trend は名前のTrendを返す。未登録なら作成する
func (r *Registry) Trend(name string) *Trend {
	r.mu.RLock()
	trend, ok := r.trends[name]
	r.mu.RUnlock()
	if ok {
		return trend
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if trend, ok := r.trends[name]; ok {
		return trend
	}
	trend = &Trend{name: name, maxSamples: r.config.MaxTrendSamples}
	if r.prom != nil {
		trend.prom = r.prom.trends
	}
	r.trends[name] = trend
	return trend
}

// Counter は名前のCounterを返す。未登録なら作成する
func (r *Registry) Counter(name string) *Counter {
	r.mu.RLock()
	counter, ok := r.counters[name]
	r.mu.RUnlock()
	if ok {
		return counter
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if counter, ok := r.counters[name]; ok {
		return counter
	}
	counter = &Counter{name: name, byTag: make(map[string]float64)}
	if r.prom != nil {
		counter.prom = r.prom.counters
	}
	r.counters[name] = counter
	return counter
}

// Gatherer はPrometheusのGathererを返す。無効時はnil
func (r *Registry) Gatherer() prometheus.Gatherer {
	if r.prom == nil {
		return nil
	}
	return r.prom.registry
}

// RateStats はRateの集計値
type RateStats struct {
	Value float64 `json:"value"`
	Trues uint64  `json:"trues"`
	Count uint64  `json:"count"`
}

// CounterStats はCounterの集計値
type CounterStats struct {
	Total float64            `json:"total"`
	ByTag map[string]float64 `json:"by_tag,omitempty"`
}

// Snapshot はRegistry全体の集計値
type Snapshot struct {
	Rates    map[string]RateStats    `json:"rates"`
	Trends   map[string]TrendStats   `json:"trends"`
	Counters map[string]CounterStats `json:"counters"`
}

// Snapshot は全メトリクスの集計値を返す
func (r *Registry) Snapshot() Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()

	snap := Snapshot{
		Rates:    make(map[string]RateStats, len(r.rates)),
		Trends:   make(map[string]TrendStats, len(r.trends)),
		Counters: make(map[string]CounterStats, len(r.counters)),
	}
	for name, rate := range r.rates {
		snap.Rates[name] = RateStats{Value: rate.Value(), Trues: rate.Trues(), Count: rate.Count()}
	}
	for name, trend := range r.trends {
		snap.Trends[name] = trend.Stats()
	}
	for name, counter := range r.counters {
		snap.Counters[name] = CounterStats{Total: counter.Total(), ByTag: counter.ByTag()}
	}
	return snap
}

// SortedNames はマップのキーを昇順で返す
func SortedNames[V any](m map[string]V) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
