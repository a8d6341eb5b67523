package runstate

import (
	"context"
	"time"

	"secchub-loadtest/internal/logger"
)

// Context は1回の実行全体で共有される状態
// token と baseURL は作成後に変更されない
type Context struct {
	runID     string
	token     string
	baseURL   string
	startedAt time.Time
	resources Registry
}

// New は新しいContextを作成する
func New(runID, token, baseURL string, resources Registry) *Context {
	if resources == nil {
		resources = NewMemoryRegistry()
	}
	return &Context{
		runID:     runID,
		token:     token,
		baseURL:   baseURL,
		startedAt: time.Now(),
		resources: resources,
	}
}

// RunID は実行IDを返す
func (c *Context) RunID() string {
	return c.runID
}

// Token は管理者のベアラートークンを返す
func (c *Context) Token() string {
	return c.token
}

// BaseURL は対象APIのベースURLを返す
func (c *Context) BaseURL() string {
	return c.baseURL
}

// StartedAt はsetup完了時刻を返す
func (c *Context) StartedAt() time.Time {
	return c.startedAt
}

// Resources は作成リソースのRegistryを返す
func (c *Context) Resources() Registry {
	return c.resources
}

// Record はIDを記録する。失敗はログのみでイテレーションには伝播しない
func (c *Context) Record(ctx context.Context, category Category, id int64) {
	if err := c.resources.Append(ctx, category, id); err != nil {
		logger.Warn("runstate", "Failed to record %s id %d: %v", category, id, err)
	}
}
