package scenario

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"secchub-loadtest/internal/auth"
	"secchub-loadtest/internal/client"
	"secchub-loadtest/internal/domain"
	"secchub-loadtest/internal/errs"
	"secchub-loadtest/internal/events"
	"secchub-loadtest/internal/logger"
	"secchub-loadtest/internal/metrics"
	"secchub-loadtest/internal/runstate"
	"secchub-loadtest/internal/worker"
)

// ErrAlreadyRunning is returned by Run while another run is in progress.
var ErrAlreadyRunning = errors.New("scenario is already running")

const progressInterval = 10 * time.Second

// Status は実行中のシナリオの状態
type Status struct {
	RunID      string                     `json:"run_id"`
	Scenario   string                     `json:"scenario"`
	Running    bool                       `json:"running"`
	Stage      int                        `json:"stage"`
	Stages     int                        `json:"stages"`
	VUs        int                        `json:"vus"`
	Elapsed    time.Duration              `json:"elapsed"`
	Iterations *metrics.IterationSnapshot `json:"iterations,omitempty"`
}

// Engine はシナリオ実行エンジン
type Engine struct {
	config   Config
	eventBus *events.Bus
	metrics  *metrics.Registry
	registry runstate.Registry
	ownsReg  bool
	env      domain.Env
	client   *client.Client

	mu        sync.RWMutex
	running   bool
	runID     string
	startedAt time.Time
	stage     int
	pool      *worker.VUPool
	stop      context.CancelFunc
}

// New は新しいEngineを作成する
func New(config Config) *Engine {
	return &Engine{
		config: config,
	}
}

// SetEventBus はイベントバスを設定する
func (e *Engine) SetEventBus(bus *events.Bus) {
	e.eventBus = bus
}

// SetMetrics はメトリクスレジストリを設定する。未設定ならRunごとに作成する
func (e *Engine) SetMetrics(reg *metrics.Registry) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.metrics = reg
}

// SetRegistry は作成IDの保存先を設定する。未設定なら設定に従って作成する
// 設定したRegistryは呼び出し側が閉じる
func (e *Engine) SetRegistry(reg runstate.Registry) {
	e.registry = reg
	e.ownsReg = false
}

// SetEnv はドメイン実行環境の既定値を上書きする（乱数源やスリープ関数など）
// Client と Metrics はエンジンが設定する
func (e *Engine) SetEnv(env domain.Env) {
	e.env = env
}

// Config はシナリオ設定を返す
func (e *Engine) Config() Config {
	return e.config
}

// Run はシナリオを実行する
// セットアップの認証に失敗した場合はイテレーションを1回も実行せずにエラーを返す
func (e *Engine) Run(ctx context.Context) (*Result, error) {
	if err := e.config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid scenario %q: %w", e.config.Name, err)
	}

	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return nil, ErrAlreadyRunning
	}
	e.running = true
	e.runID = uuid.NewString()
	e.stage = 0
	if e.metrics == nil {
		e.metrics = metrics.NewRegistry(metrics.DefaultRegistryConfig())
	}
	runCtx, stop := context.WithCancel(ctx)
	e.stop = stop
	e.mu.Unlock()

	defer func() {
		stop()
		e.mu.Lock()
		e.running = false
		e.stop = nil
		e.mu.Unlock()
	}()

	result := &Result{
		RunID:        e.runID,
		ScenarioName: e.config.Name,
		BaseURL:      e.config.BaseURL,
		StartTime:    time.Now(),
	}

	logger.Info("", "=== Scenario '%s' started (run %s) ===", e.config.Name, e.runID)

	defer e.closeRegistry()
	defer e.closeIdle()
	exec, rc, err := e.setup(ctx)
	if err != nil {
		e.publish(events.NewRunFinishedEvent(e.runID, e.config.Name, false, err))
		return nil, fmt.Errorf("setup failed: %w", err)
	}

	e.publish(events.NewRunStartedEvent(e.runID, e.config.Name))

	pool := e.newPool(exec, rc)
	result.Interrupted, result.PeakVUs = e.ramp(runCtx, pool)

	result.EndTime = time.Now()
	result.Duration = result.EndTime.Sub(result.StartTime)

	e.teardown(result, rc)
	e.collectResults(result, pool)
	e.evaluate(result)

	e.publish(events.NewRunFinishedEvent(e.runID, e.config.Name, result.Passed(), nil))
	logger.Info("", "=== Scenario '%s' completed ===", e.config.Name)

	return result, nil
}

// Stop は実行中のランプを終了させる。実行中のイテレーションは猶予時間内に終わるのを待つ
func (e *Engine) Stop() {
	e.mu.RLock()
	stop := e.stop
	e.mu.RUnlock()
	if stop != nil {
		stop()
	}
}

// setup はログイン、実行コンテキスト、Executorを用意する
func (e *Engine) setup(ctx context.Context) (*domain.Executor, *runstate.Context, error) {
	cfg := e.config
	logger.Info("setup", "Base URL: %s", cfg.BaseURL)
	logger.Info("setup", "Stages: %s (total %v, peak %d VUs)", formatStages(cfg.Stages), cfg.TotalDuration(), cfg.PeakVUs())
	logger.Info("setup", "Domain weights: %s", formatWeights(cfg.DomainWeights))
	logger.Info("setup", "Authenticating %s...", cfg.Credentials.Email)

	c := client.New(client.Config{
		BaseURL: cfg.BaseURL,
		Timeout: cfg.HTTPTimeout,
	}, e.metrics)
	e.client = c

	authenticator := auth.NewAuthenticator(c, e.metrics, cfg.Roles)
	tokens, err := authenticator.Authenticate(ctx, cfg.Credentials)
	if err != nil {
		logger.Error("setup", "Authentication failed: %v", err)
		return nil, nil, err
	}
	logger.Info("setup", "Admin authentication successful")

	if e.registry == nil {
		reg, err := e.openRegistry(ctx)
		if err != nil {
			return nil, nil, err
		}
		e.registry = reg
		e.ownsReg = true
	}
	rc := runstate.New(e.runID, tokens.AccessToken, cfg.BaseURL, e.registry)

	env := e.env
	env.Client = c
	env.Metrics = e.metrics
	if env.Auth == nil {
		env.Auth = authenticator
	}
	exec, err := domain.NewExecutor(env, domain.ExecutorConfig{
		Weights:  cfg.DomainWeights,
		ThinkMin: cfg.ThinkMin,
		ThinkMax: cfg.ThinkMax,
	})
	if err != nil {
		return nil, nil, errs.Fatal("setup", "invalid executor configuration", err)
	}
	return exec, rc, nil
}

func (e *Engine) openRegistry(ctx context.Context) (runstate.Registry, error) {
	if e.config.RegistryBackend != RegistryRedis {
		return runstate.NewMemoryRegistry(), nil
	}
	reg, err := runstate.NewRedisRegistry(ctx, runstate.RedisConfig{
		Addr:  e.config.RedisAddr,
		RunID: e.runID,
	})
	if err != nil {
		return nil, errs.Fatal("setup", "registry unavailable", err)
	}
	logger.Info("setup", "Sharing created IDs through redis at %s", e.config.RedisAddr)
	return reg, nil
}

func (e *Engine) closeRegistry() {
	if e.registry == nil || !e.ownsReg {
		return
	}
	if err := e.registry.Close(); err != nil {
		logger.Warn("", "Failed to close registry: %v", err)
	}
	e.registry = nil
}

// closeIdle はVUが使い終えたキープアライブ接続を閉じる
func (e *Engine) closeIdle() {
	if e.client == nil {
		return
	}
	e.client.CloseIdle()
	e.client = nil
}

func (e *Engine) newPool(exec *domain.Executor, rc *runstate.Context) *worker.VUPool {
	iterDuration := e.metrics.Trend(metrics.IterationDuration)
	pool := worker.NewVUPool(func(ctx context.Context, _ int) error {
		start := time.Now()
		err := exec.RunIteration(ctx, rc)
		iterDuration.AddDuration(time.Since(start))
		return err
	}, worker.PoolConfig{
		MaxVUs:       e.config.MaxVUs,
		GracefulStop: e.config.GracefulStop,
	})
	pool.OnError(func(vu int, err error) {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			e.publish(events.NewIterationAbortedEvent(e.runID, err))
			return
		}
		logger.Warn("vus", "VU %d iteration failed: %v", vu, err)
	})
	return pool
}

// ramp はステージに従ってVU数を変化させ、全ステージ終了後にプールを停止する
func (e *Engine) ramp(ctx context.Context, pool *worker.VUPool) (interrupted bool, peak int) {
	cfg := e.config
	tick := cfg.TickInterval
	if tick <= 0 {
		tick = 100 * time.Millisecond
	}

	// イテレーションはランプ終了後も猶予時間まで続けるため、ランプのctxとは切り離す
	pool.Start(context.WithoutCancel(ctx))

	e.mu.Lock()
	e.pool = pool
	e.startedAt = time.Now()
	e.mu.Unlock()

	rampDone := make(chan struct{})
	var peakMu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer close(rampDone)
		start := time.Now()
		ticker := time.NewTicker(tick)
		defer ticker.Stop()

		lastStage, lastVUs := -1, -1
		for {
			target, stage, done := TargetAt(cfg.StartVUs, cfg.Stages, time.Since(start))
			if stage != lastStage {
				lastStage = stage
				e.setStage(stage)
				logger.Info("ramp", "Stage %d/%d: target %d VUs over %v", stage+1, len(cfg.Stages), cfg.Stages[stage].Target, cfg.Stages[stage].Duration)
				e.publish(events.NewStageChangedEvent(e.runID, stage+1, cfg.Stages[stage].Target))
			}
			if done {
				return nil
			}
			if vus := pool.Scale(target); vus != lastVUs {
				lastVUs = vus
				peakMu.Lock()
				peak = max(peak, vus)
				peakMu.Unlock()
				e.publish(events.NewVUsScaledEvent(e.runID, vus))
			}

			select {
			case <-gctx.Done():
				logger.Info("ramp", "Run stopped before the last stage finished")
				return nil
			case <-ticker.C:
			}
		}
	})
	g.Go(func() error {
		ticker := time.NewTicker(progressInterval)
		defer ticker.Stop()
		for {
			select {
			case <-rampDone:
				return nil
			case <-ticker.C:
				snap := pool.Iterations().Snapshot()
				logger.Info("ramp", "VUs %d, iterations %d (%.1f/s), aborted %d", pool.VUs(), snap.Total, snap.PerSecond, snap.Aborted)
			}
		}
	})
	_ = g.Wait()

	logger.Info("ramp", "Stages complete, waiting up to %v for %d VUs", cfg.GracefulStop, pool.Running())
	interrupted = pool.Stop()

	peakMu.Lock()
	defer peakMu.Unlock()
	return interrupted, peak
}

func (e *Engine) setStage(stage int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stage = stage
}

// teardown は作成したリソース数をカテゴリ順に記録する
func (e *Engine) teardown(result *Result, rc *runstate.Context) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	summary, err := runstate.Summarize(ctx, rc.Resources())
	if err != nil {
		logger.Warn("teardown", "Failed to summarize created resources: %v", err)
		return
	}
	result.Created = summary

	logger.Info("teardown", "Load test complete")
	for _, c := range summary {
		logger.Info("teardown", "Created %s: %d", c.Category, c.Count)
	}
}

func (e *Engine) collectResults(result *Result, pool *worker.VUPool) {
	snap := e.metrics.Snapshot()
	result.Metrics = snap
	result.Iterations = pool.Iterations().Snapshot()
	result.HTTPRequests = uint64(snap.Counters[metrics.HTTPReqs].Total)
	result.HTTPFailedRate = snap.Rates[metrics.HTTPReqFailed].Value
	result.ErrorRate = snap.Rates[metrics.Errors].Value
	result.CheckPassRate = snap.Rates[metrics.Checks].Value
	result.HTTPDuration = snap.Trends[metrics.HTTPReqDuration]
	result.OperationsByModule = snap.Counters[metrics.OperationsByModule].ByTag
}

// evaluate は合否条件を評価し、失敗した条件をイベントとして通知する
func (e *Engine) evaluate(result *Result) {
	thresholds, err := metrics.ParseThresholds(e.config.Thresholds)
	if err != nil {
		// Validate 済み
		logger.Error("", "Invalid thresholds: %v", err)
		return
	}
	result.Thresholds = e.metrics.Evaluate(thresholds)
	for _, r := range result.Thresholds {
		if r.Passed {
			continue
		}
		logger.Warn("thresholds", "%s crossed (actual %.4f)", r.Name, r.Actual)
		e.publish(events.NewThresholdCrossedEvent(e.runID, r.Name, r.Actual))
	}
}

func (e *Engine) publish(ev events.Event) {
	e.eventBus.Publish(ev)
}

// IsRunning は実行中かどうかを返す
func (e *Engine) IsRunning() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.running
}

// Status は現在の状態を返す
func (e *Engine) Status() Status {
	e.mu.RLock()
	defer e.mu.RUnlock()

	s := Status{
		RunID:    e.runID,
		Scenario: e.config.Name,
		Running:  e.running,
		Stage:    e.stage + 1,
		Stages:   len(e.config.Stages),
	}
	if e.pool != nil {
		s.VUs = e.pool.VUs()
		snap := e.pool.Iterations().Snapshot()
		s.Iterations = &snap
	}
	if !e.startedAt.IsZero() && e.running {
		s.Elapsed = time.Since(e.startedAt)
	}
	return s
}

// Metrics はメトリクスレジストリを返す。まだ作成されていなければnil
func (e *Engine) Metrics() *metrics.Registry {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.metrics
}

func formatStages(stages []Stage) string {
	parts := make([]string, len(stages))
	for i, s := range stages {
		parts[i] = fmt.Sprintf("%v→%d", s.Duration, s.Target)
	}
	return strings.Join(parts, ", ")
}

func formatWeights(weights map[domain.Domain]float64) string {
	if weights == nil {
		weights = domain.DefaultWeights()
	}
	parts := make([]string, 0, len(weights))
	for _, d := range domain.Domains() {
		parts = append(parts, fmt.Sprintf("%s(%g)", d, weights[d]))
	}
	return strings.Join(parts, " ")
}
