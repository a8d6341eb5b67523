// Package client provides the HTTP client virtual users drive the backend with.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"secchub-loadtest/internal/logger"
	"secchub-loadtest/internal/metrics"
)

// Config はClientの設定
type Config struct {
	BaseURL             string        // 対象APIのベースURL
	Timeout             time.Duration // リクエストごとのタイムアウト
	MaxIdleConnsPerHost int           // ホストごとのアイドル接続数
	UserAgent           string
}

// DefaultConfig はデフォルト設定を返す
func DefaultConfig() Config {
	return Config{
		BaseURL:             "http://localhost:8080",
		Timeout:             60 * time.Second,
		MaxIdleConnsPerHost: 100,
		UserAgent:           "secchub-loadtest/1.0",
	}
}

// Request は1回のAPI呼び出し
type Request struct {
	Method    string
	Path      string     // BaseURLからの相対パス
	Query     url.Values // 省略可
	Body      any        // JSONにエンコードされる。nilなら本文なし
	Token     string     // 空ならAuthorizationヘッダーなし
	Accept    string     // 空なら application/json
	Operation string     // ログ用の操作名
}

// Client はSecHub APIへのHTTPクライアント
type Client struct {
	config  Config
	http    *http.Client
	metrics *metrics.Registry
}

// New は新しいClientを作成する。reg が nil の場合は組み込みメトリクスを記録しない
func New(config Config, reg *metrics.Registry) *Client {
	defaults := DefaultConfig()
	if config.Timeout <= 0 {
		config.Timeout = defaults.Timeout
	}
	if config.MaxIdleConnsPerHost <= 0 {
		config.MaxIdleConnsPerHost = defaults.MaxIdleConnsPerHost
	}
	if config.UserAgent == "" {
		config.UserAgent = defaults.UserAgent
	}
	config.BaseURL = strings.TrimRight(config.BaseURL, "/")

	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          config.MaxIdleConnsPerHost * 2,
		MaxIdleConnsPerHost:   config.MaxIdleConnsPerHost,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: time.Second,
	}

	return &Client{
		config: config,
		http: &http.Client{
			Transport: transport,
			Timeout:   config.Timeout,
		},
		metrics: reg,
	}
}

// BaseURL はベースURLを返す
func (c *Client) BaseURL() string {
	return c.config.BaseURL
}

// Do はリクエストを送信する
// 転送エラーやタイムアウトもResponse.Errに格納し、エラーとしては返さない
func (c *Client) Do(ctx context.Context, req Request) *Response {
	start := time.Now()
	resp := c.do(ctx, req)
	resp.Duration = time.Since(start)

	c.record(resp)

	if resp.Err != nil {
		logger.Debug("client", "%s %s (%s) failed: %v", req.Method, req.Path, req.Operation, resp.Err)
	}
	return resp
}

func (c *Client) do(ctx context.Context, req Request) *Response {
	target := c.config.BaseURL + req.Path
	if len(req.Query) > 0 {
		target += "?" + req.Query.Encode()
	}

	var body io.Reader
	if req.Body != nil {
		data, err := json.Marshal(req.Body)
		if err != nil {
			return &Response{Err: fmt.Errorf("failed to encode request body: %w", err)}
		}
		body = bytes.NewReader(data)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, target, body)
	if err != nil {
		return &Response{Err: fmt.Errorf("failed to build request: %w", err)}
	}

	accept := req.Accept
	if accept == "" {
		accept = "application/json"
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", accept)
	httpReq.Header.Set("User-Agent", c.config.UserAgent)
	httpReq.Header.Set("X-Request-ID", uuid.NewString())
	if req.Token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+req.Token)
	}

	httpResp, err := c.http.Do(httpReq)
	if err != nil {
		return &Response{Err: err}
	}
	defer httpResp.Body.Close()

	data, err := io.ReadAll(httpResp.Body)
	return &Response{
		Status: httpResp.StatusCode,
		Header: httpResp.Header,
		Body:   data,
		Err:    err,
	}
}

func (c *Client) record(resp *Response) {
	if c.metrics == nil {
		return
	}
	c.metrics.Counter(metrics.HTTPReqs).Add(1, "")
	c.metrics.Trend(metrics.HTTPReqDuration).AddDuration(resp.Duration)
	c.metrics.Rate(metrics.HTTPReqFailed).Add(resp.Failed())
}

// CloseIdle はアイドル接続を閉じる
func (c *Client) CloseIdle() {
	c.http.CloseIdleConnections()
}
