package worker

import (
	"context"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"secchub-loadtest/internal/errs"
	"secchub-loadtest/internal/logger"
	"secchub-loadtest/internal/metrics"
)

// Iteration はVUが繰り返し実行する1イテレーション
type Iteration func(ctx context.Context, vu int) error

// ErrorHandler はイテレーションのエラーを受け取る
type ErrorHandler func(vu int, err error)

// PoolConfig はVUプールの設定
type PoolConfig struct {
	MaxVUs       int           // Scaleの上限（0で無制限）
	GracefulStop time.Duration // Stop時に実行中のイテレーションを待つ時間
}

// DefaultPoolConfig はデフォルト設定を返す
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		MaxVUs:       0,
		GracefulStop: 30 * time.Second,
	}
}

type vu struct {
	id     int
	retire chan struct{}
}

// VUPool は仮想ユーザーのゴルーチンを管理する
// 各VUはイテレーションを順番に実行し続ける
type VUPool struct {
	iterate    Iteration
	config     PoolConfig
	iterations *metrics.Iterations
	onError    ErrorHandler

	mu       sync.Mutex
	ctx      context.Context
	cancel   context.CancelFunc
	vus      []*vu
	nextID   int
	started  bool
	stopping atomic.Bool

	wg     sync.WaitGroup
	active atomic.Int32
}

// NewVUPool は新しいVUプールを作成する
func NewVUPool(iterate Iteration, config PoolConfig) *VUPool {
	if config.MaxVUs < 0 {
		config.MaxVUs = 0
	}
	if config.GracefulStop < 0 {
		config.GracefulStop = 0
	}
	return &VUPool{
		iterate:    iterate,
		config:     config,
		iterations: metrics.NewIterations(),
	}
}

// OnError はエラーハンドラを設定する
func (p *VUPool) OnError(fn ErrorHandler) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onError = fn
}

// Iterations はイテレーション統計を返す
func (p *VUPool) Iterations() *metrics.Iterations {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.iterations
}

// Start はプールを起動する。VUはScaleで追加する
// ctx のキャンセルは実行中のイテレーションを即座に中断する
func (p *VUPool) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.started {
		return
	}

	p.ctx, p.cancel = context.WithCancel(ctx)
	p.started = true
	p.stopping.Store(false)

	logger.Debug("vus", "VU pool started (max %d, graceful stop %v)", p.config.MaxVUs, p.config.GracefulStop)
}

// Scale はアクティブなVU数をtargetに合わせ、実際のVU数を返す
// 減らす場合は新しいVUから順に、実行中のイテレーションが終わった時点で退出する
func (p *VUPool) Scale(target int) int {
	if target < 0 {
		target = 0
	}
	if p.config.MaxVUs > 0 && target > p.config.MaxVUs {
		target = p.config.MaxVUs
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.started || p.stopping.Load() {
		return len(p.vus)
	}

	for len(p.vus) < target {
		p.nextID++
		v := &vu{id: p.nextID, retire: make(chan struct{})}
		p.vus = append(p.vus, v)
		p.wg.Add(1)
		p.active.Add(1)
		go p.run(v)
	}
	for len(p.vus) > target {
		last := p.vus[len(p.vus)-1]
		p.vus = p.vus[:len(p.vus)-1]
		close(last.retire)
	}
	return len(p.vus)
}

func (p *VUPool) run(v *vu) {
	defer p.wg.Done()
	defer p.active.Add(-1)

	p.mu.Lock()
	ctx, iterations, onError := p.ctx, p.iterations, p.onError
	p.mu.Unlock()

	for {
		select {
		case <-v.retire:
			return
		case <-ctx.Done():
			return
		default:
		}

		start := time.Now()
		err := p.iterate(ctx, v.id)
		elapsed := time.Since(start)

		if err == nil && ctx.Err() != nil {
			err = ctx.Err()
		}
		if err == nil {
			iterations.RecordCompleted(elapsed)
			continue
		}

		iterations.RecordAborted(elapsed)
		if onError != nil {
			onError(v.id, err)
		}
		if ctx.Err() != nil {
			return
		}
		if errs.IsFatal(err) {
			logger.Error("vus", "VU %d stopped: %v", v.id, err)
			p.remove(v)
			return
		}
	}
}

func (p *VUPool) remove(v *vu) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if i := slices.Index(p.vus, v); i >= 0 {
		p.vus = slices.Delete(p.vus, i, i+1)
	}
}

// Stop は全VUを退出させる
// GracefulStop を過ぎても終わらないイテレーションはコンテキストをキャンセルして中断する
// 中断が発生した場合はtrueを返す
func (p *VUPool) Stop() bool {
	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		return false
	}
	p.stopping.Store(true)
	for _, v := range p.vus {
		close(v.retire)
	}
	p.vus = nil
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	aborted := false
	timer := time.NewTimer(p.config.GracefulStop)
	defer timer.Stop()
	select {
	case <-done:
	case <-timer.C:
		aborted = p.active.Load() > 0
		if aborted {
			logger.Warn("vus", "Graceful stop of %v expired, interrupting %d VUs", p.config.GracefulStop, p.active.Load())
		}
	}
	p.cancel()
	<-done

	p.mu.Lock()
	p.started = false
	p.mu.Unlock()

	logger.Debug("vus", "VU pool stopped")
	return aborted
}

// VUs はアクティブなVU数を返す
func (p *VUPool) VUs() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.vus)
}

// Running は退出待ちを含めて動作中のVUゴルーチン数を返す
func (p *VUPool) Running() int {
	return int(p.active.Load())
}

// MaxVUs はVU数の上限を返す
func (p *VUPool) MaxVUs() int {
	return p.config.MaxVUs
}
