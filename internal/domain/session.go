package domain

import (
	"context"
	"fmt"
	"math/rand/v2"
	"net/http"
	"time"

	"github.com/google/uuid"

	"secchub-loadtest/internal/auth"
	"secchub-loadtest/internal/check"
	"secchub-loadtest/internal/client"
	"secchub-loadtest/internal/logger"
	"secchub-loadtest/internal/metrics"
	"secchub-loadtest/internal/runstate"
	"secchub-loadtest/internal/weighted"
)

const (
	stepPause  = 200 * time.Millisecond
	shortPause = 100 * time.Millisecond
)

// Rand はシナリオが使う乱数源
type Rand interface {
	Float64() float64
	IntN(n int) int
}

type globalRand struct{}

func (globalRand) Float64() float64 { return rand.Float64() }
func (globalRand) IntN(n int) int   { return rand.IntN(n) }

// Env はシナリオ実行の依存関係をまとめる
type Env struct {
	Client  *client.Client
	Metrics *metrics.Registry
	Auth    *auth.Authenticator // nil ならClientとMetricsから作成
	Rand    Rand                // nil ならmath/rand/v2
	Sleep   func(ctx context.Context, d time.Duration)
	Now     func() time.Time
}

func (e Env) withDefaults() Env {
	if e.Metrics == nil {
		e.Metrics = metrics.NewRegistry(metrics.DefaultRegistryConfig())
	}
	if e.Auth == nil {
		e.Auth = auth.NewAuthenticator(e.Client, e.Metrics, nil)
	}
	if e.Rand == nil {
		e.Rand = globalRand{}
	}
	if e.Sleep == nil {
		e.Sleep = Sleep
	}
	if e.Now == nil {
		e.Now = time.Now
	}
	return e
}

// Sleep はdだけ待つ。ctxがキャンセルされると即座に戻る
func Sleep(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

type operation func(ctx context.Context, s *session)

// session は1回のドメイン実行の状態
type session struct {
	env    *Env
	rc     *runstate.Context
	domain Domain
	errors *metrics.Rate
	global *metrics.Rate
}

func newSession(env *Env, rc *runstate.Context, d Domain) *session {
	return &session{
		env:    env,
		rc:     rc,
		domain: d,
		errors: env.Metrics.Rate(d.String() + "_errors"),
		global: env.Metrics.Rate(metrics.Errors),
	}
}

// dispatch は重み付きテーブルから操作を1つ選んで実行する
func (s *session) dispatch(ctx context.Context, table *weighted.Table[operation]) {
	op := table.Pick(s.env.Rand)
	logger.Debug(s.domain.String(), "Running %s", op.Label)
	op.Value(ctx, s)
}

// do はリクエストを送信し、トレンドとエラー率を記録する
// ctx が終了している場合は送信も記録もしない
func (s *session) do(ctx context.Context, trend string, req client.Request, checks ...check.Check) (*client.Response, bool) {
	if err := ctx.Err(); err != nil {
		return &client.Response{Err: err}, false
	}

	resp := s.env.Client.Do(ctx, req)
	if ctx.Err() != nil {
		return resp, false
	}

	s.env.Metrics.Trend(trend).AddDuration(resp.Duration)
	ok := check.Run(s.env.Metrics, resp, checks...)
	s.errors.Add(!ok)
	s.global.Add(!ok)

	if !ok {
		logger.Debug(s.domain.String(), "%s %s failed checks (status %d)", req.Method, req.Path, resp.Status)
	}
	return resp, ok
}

func (s *session) get(ctx context.Context, trend, path string, checks ...check.Check) (*client.Response, bool) {
	return s.do(ctx, trend, client.Request{
		Method: http.MethodGet,
		Path:   path,
		Token:  s.rc.Token(),
	}, checks...)
}

func (s *session) send(ctx context.Context, trend, method, path string, body any, checks ...check.Check) (*client.Response, bool) {
	return s.do(ctx, trend, client.Request{
		Method: method,
		Path:   path,
		Body:   body,
		Token:  s.rc.Token(),
	}, checks...)
}

func (s *session) sendAs(ctx context.Context, token, trend, method, path string, body any, checks ...check.Check) (*client.Response, bool) {
	return s.do(ctx, trend, client.Request{
		Method: method,
		Path:   path,
		Body:   body,
		Token:  token,
	}, checks...)
}

func (s *session) pause(ctx context.Context, d time.Duration) {
	s.env.Sleep(ctx, d)
}

// intn は [lo, hi] の整数を返す
func (s *session) intn(lo, hi int) int {
	return lo + s.env.Rand.IntN(hi-lo+1)
}

func (s *session) chance() bool {
	return s.env.Rand.Float64() > 0.5
}

func (s *session) record(ctx context.Context, category runstate.Category, id int64) {
	s.rc.Record(ctx, category, id)
}

func (s *session) uniqueID() string {
	return fmt.Sprintf("%d_%s", s.env.Now().UnixMilli(), uuid.NewString()[:8])
}

func choose[T any](s *session, items []T) T {
	return items[s.env.Rand.IntN(len(items))]
}
