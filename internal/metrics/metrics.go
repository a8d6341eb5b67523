package metrics

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// Iterations はVUイテレーションの実行統計を収集する
type Iterations struct {
	total         atomic.Uint64
	completed     atomic.Uint64
	aborted       atomic.Uint64
	totalDuration atomic.Uint64

	mu         sync.RWMutex
	startTime  time.Time
	durations  []time.Duration
	maxSamples int
}

// Config はIterationsの設定
type Config struct {
	MaxSamples int // パーセンタイル計算用のサンプル上限
}

// DefaultConfig はデフォルト設定を返す
func DefaultConfig() Config {
	return Config{MaxSamples: 10000}
}

// NewIterations は新しいIterationsを作成する
func NewIterations() *Iterations {
	return NewIterationsWithConfig(DefaultConfig())
}

// NewIterationsWithConfig は設定を指定してIterationsを作成する
func NewIterationsWithConfig(config Config) *Iterations {
	if config.MaxSamples <= 0 {
		config.MaxSamples = DefaultConfig().MaxSamples
	}
	return &Iterations{
		startTime:  time.Now(),
		durations:  make([]time.Duration, 0, min(config.MaxSamples, 1024)),
		maxSamples: config.MaxSamples,
	}
}

// RecordCompleted は完了したイテレーションを記録する
func (m *Iterations) RecordCompleted(d time.Duration) {
	m.total.Add(1)
	m.completed.Add(1)
	m.totalDuration.Add(uint64(d.Nanoseconds()))

	m.mu.Lock()
	if len(m.durations) < m.maxSamples {
		m.durations = append(m.durations, d)
	}
	m.mu.Unlock()
}

// RecordAborted は中断されたイテレーションを記録する
func (m *Iterations) RecordAborted(d time.Duration) {
	m.total.Add(1)
	m.aborted.Add(1)
	m.totalDuration.Add(uint64(d.Nanoseconds()))
}

// Total は総イテレーション数を返す
func (m *Iterations) Total() uint64 {
	return m.total.Load()
}

// Completed は完了数を返す
func (m *Iterations) Completed() uint64 {
	return m.completed.Load()
}

// Aborted は中断数を返す
func (m *Iterations) Aborted() uint64 {
	return m.aborted.Load()
}

// PerSecond は開始からの平均イテレーション/秒を返す
func (m *Iterations) PerSecond() float64 {
	m.mu.RLock()
	elapsed := time.Since(m.startTime).Seconds()
	m.mu.RUnlock()
	if elapsed == 0 {
		return 0
	}
	return float64(m.total.Load()) / elapsed
}

// AverageDuration は平均所要時間を返す
func (m *Iterations) AverageDuration() time.Duration {
	total := m.total.Load()
	if total == 0 {
		return 0
	}
	return time.Duration(m.totalDuration.Load() / total)
}

// Percentile は完了イテレーションの所要時間パーセンタイルを返す（サンプルベース）
func (m *Iterations) Percentile(p float64) time.Duration {
	m.mu.RLock()
	sorted := make([]time.Duration, len(m.durations))
	copy(sorted, m.durations)
	m.mu.RUnlock()

	if len(sorted) == 0 {
		return 0
	}
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i] < sorted[j]
	})

	values := make([]float64, len(sorted))
	for i, d := range sorted {
		values[i] = float64(d)
	}
	return time.Duration(percentileSorted(values, p))
}

// AbortRate は中断率を返す（0.0〜1.0）
func (m *Iterations) AbortRate() float64 {
	total := m.total.Load()
	if total == 0 {
		return 0
	}
	return float64(m.aborted.Load()) / float64(total)
}

// Reset は統計を初期化する
func (m *Iterations) Reset() {
	m.total.Store(0)
	m.completed.Store(0)
	m.aborted.Store(0)
	m.totalDuration.Store(0)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.startTime = time.Now()
	m.durations = m.durations[:0]
}

// IterationSnapshot はイテレーション統計のスナップショット
type IterationSnapshot struct {
	Total           uint64        `json:"total"`
	Completed       uint64        `json:"completed"`
	Aborted         uint64        `json:"aborted"`
	PerSecond       float64       `json:"per_second"`
	AverageDuration time.Duration `json:"average_duration"`
	P95Duration     time.Duration `json:"p95_duration"`
	AbortRate       float64       `json:"abort_rate"`
	Elapsed         time.Duration `json:"elapsed"`
}

// Snapshot は現在の統計のスナップショットを返す
func (m *Iterations) Snapshot() IterationSnapshot {
	m.mu.RLock()
	elapsed := time.Since(m.startTime)
	m.mu.RUnlock()

	return IterationSnapshot{
		Total:           m.Total(),
		Completed:       m.Completed(),
		Aborted:         m.Aborted(),
		PerSecond:       m.PerSecond(),
		AverageDuration: m.AverageDuration(),
		P95Duration:     m.Percentile(95),
		AbortRate:       m.AbortRate(),
		Elapsed:         elapsed,
	}
}

// percentileSorted は昇順スライスの線形補間パーセンタイルを返す
func percentileSorted(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if p <= 0 {
		return sorted[0]
	}
	if p >= 100 {
		return sorted[n-1]
	}

	index := (p / 100.0) * float64(n-1)
	lower := int(index)
	upper := lower + 1
	if upper >= n {
		return sorted[n-1]
	}

	weight := index - float64(lower)
	return sorted[lower]*(1-weight) + sorted[upper]*weight
}
