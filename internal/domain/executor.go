package domain

import (
	"context"
	"errors"
	"fmt"
	"time"

	"secchub-loadtest/internal/errs"
	"secchub-loadtest/internal/logger"
	"secchub-loadtest/internal/metrics"
	"secchub-loadtest/internal/runstate"
	"secchub-loadtest/internal/weighted"
)

// ExecutorConfig はExecutorの設定
type ExecutorConfig struct {
	Weights  map[Domain]float64 // 未指定のドメインは重み0
	ThinkMin time.Duration
	ThinkMax time.Duration
}

// DefaultExecutorConfig はデフォルト設定を返す
func DefaultExecutorConfig() ExecutorConfig {
	return ExecutorConfig{
		Weights:  DefaultWeights(),
		ThinkMin: time.Second,
		ThinkMax: 3 * time.Second,
	}
}

// Executor は1イテレーション分のシナリオを選択して実行する
type Executor struct {
	env    Env
	config ExecutorConfig
	table  *weighted.Table[Domain]
}

// NewExecutor は新しいExecutorを作成する
func NewExecutor(env Env, config ExecutorConfig) (*Executor, error) {
	if env.Client == nil {
		return nil, errors.New("executor requires an HTTP client")
	}
	if config.Weights == nil {
		config.Weights = DefaultWeights()
	}
	if config.ThinkMin < 0 || config.ThinkMax < config.ThinkMin {
		return nil, fmt.Errorf("invalid think time range: %v-%v", config.ThinkMin, config.ThinkMax)
	}
	for d := range config.Weights {
		if !d.Valid() {
			return nil, fmt.Errorf("unknown domain in weights: %v", d)
		}
	}

	options := make([]weighted.Option[Domain], 0, domainCount)
	for _, d := range Domains() {
		options = append(options, weighted.Option[Domain]{
			Label:  d.String(),
			Weight: config.Weights[d],
			Value:  d,
		})
	}
	table, err := weighted.NewTable(options...)
	if err != nil {
		return nil, fmt.Errorf("failed to build domain table: %w", err)
	}
	if table.Total() == 0 {
		logger.Warn("executor", "All domain weights are zero; iterations will only think")
	}

	return &Executor{
		env:    env.withDefaults(),
		config: config,
		table:  table,
	}, nil
}

// Metrics はメトリクスレジストリを返す
func (e *Executor) Metrics() *metrics.Registry {
	return e.env.Metrics
}

// RunIteration は1イテレーションを実行する
// トークンがない場合は何も送信せずにerrs.ErrMissingTokenを返す
// ctx がキャンセルされた場合はctx.Err()を返す
func (e *Executor) RunIteration(ctx context.Context, rc *runstate.Context) error {
	if rc == nil || rc.Token() == "" {
		return errs.ErrMissingToken
	}

	chosen := e.table.Pick(e.env.Rand)
	if chosen.Weight > 0 {
		e.RunDomain(ctx, rc, chosen.Value)
	}

	e.think(ctx)
	return ctx.Err()
}

// RunDomain は指定ドメインのシナリオを1回実行する
func (e *Executor) RunDomain(ctx context.Context, rc *runstate.Context, d Domain) {
	e.env.Metrics.Counter(metrics.OperationsByModule).Add(1, d.String())
	d.run(ctx, newSession(&e.env, rc, d))
}

func (e *Executor) think(ctx context.Context) {
	span := e.config.ThinkMax - e.config.ThinkMin
	d := e.config.ThinkMin + time.Duration(e.env.Rand.Float64()*float64(span))
	e.env.Sleep(ctx, d)
}
