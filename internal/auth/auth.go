// Package auth obtains bearer tokens from the backend's login endpoint.
package auth

import (
	"context"
	"fmt"
	"net/http"

	"secchub-loadtest/internal/check"
	"secchub-loadtest/internal/client"
	"secchub-loadtest/internal/errs"
	"secchub-loadtest/internal/logger"
	"secchub-loadtest/internal/metrics"
)

// Credentials はログイン情報
type Credentials struct {
	Email    string `json:"email" yaml:"email"`
	Password string `json:"password" yaml:"password"`
}

// Tokens はログインで得られるトークン
type Tokens struct {
	AccessToken  string
	RefreshToken string
}

// Role はバックエンドのユーザーロール
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleTeacher Role = "teacher"
	RoleStudent Role = "student"
	RoleProgram Role = "program"
)

// DefaultRoles はモックデータのロール別ユーザーを返す
func DefaultRoles() map[Role]Credentials {
	return map[Role]Credentials{
		RoleAdmin:   {Email: "admin@secchub.com", Password: "password"},
		RoleTeacher: {Email: "teacher@secchub.com", Password: "password"},
		RoleStudent: {Email: "student@secchub.com", Password: "password"},
		RoleProgram: {Email: "program@secchub.com", Password: "password"},
	}
}

// Authenticator はログイン処理を行う
type Authenticator struct {
	client  *client.Client
	metrics *metrics.Registry
	roles   map[Role]Credentials
}

// NewAuthenticator は新しいAuthenticatorを作成する。roles が nil ならDefaultRoles
func NewAuthenticator(c *client.Client, reg *metrics.Registry, roles map[Role]Credentials) *Authenticator {
	if roles == nil {
		roles = DefaultRoles()
	}
	return &Authenticator{client: c, metrics: reg, roles: roles}
}

// Authenticate はログインしてトークンを返す
// 200以外またはaccessTokenなしの場合はKindFatalのエラーを返す
func (a *Authenticator) Authenticate(ctx context.Context, creds Credentials) (Tokens, error) {
	resp := a.login(ctx, creds, "authenticate")

	ok := check.Run(a.metrics, resp,
		check.Status("authentication successful", http.StatusOK),
		check.Has("token received", "accessToken"),
	)
	if !ok {
		cause := resp.Err
		if cause == nil {
			cause = fmt.Errorf("status %d: %s", resp.Status, truncate(resp.Body, 200))
		}
		return Tokens{}, errs.Fatal("authenticate", "login failed for "+creds.Email, cause)
	}

	access, _ := resp.String("accessToken")
	refresh, _ := resp.String("refreshToken")
	if access == "" {
		return Tokens{}, errs.Fatal("authenticate", "empty access token for "+creds.Email, nil)
	}
	return Tokens{AccessToken: access, RefreshToken: refresh}, nil
}

// LoginAs はロールのユーザーでログインしてアクセストークンを返す
// 失敗はKindDegradedのエラーとなり、呼び出し側は依存ステップのみスキップする
func (a *Authenticator) LoginAs(ctx context.Context, role Role) (string, error) {
	creds, ok := a.roles[role]
	if !ok {
		return "", errs.Degraded("login", "no credentials for role "+string(role), nil)
	}

	resp := a.login(ctx, creds, "role_login")
	if resp.Err != nil || resp.Status != http.StatusOK {
		logger.Warn("auth", "Failed to authenticate %s: status %d", creds.Email, resp.Status)
		return "", errs.Degraded("login", "role "+string(role)+" unavailable", resp.Err)
	}

	token, ok := resp.String("accessToken")
	if !ok || token == "" {
		logger.Warn("auth", "Failed to parse login response for %s", creds.Email)
		return "", errs.Degraded("login", "role "+string(role)+" returned no token", nil)
	}
	return token, nil
}

func (a *Authenticator) login(ctx context.Context, creds Credentials, operation string) *client.Response {
	return a.client.Do(ctx, client.Request{
		Method:    http.MethodPost,
		Path:      "/auth/login",
		Body:      creds,
		Operation: operation,
	})
}

// Authenticate はメトリクスなしでログインする
func Authenticate(ctx context.Context, c *client.Client, creds Credentials) (Tokens, error) {
	return NewAuthenticator(c, nil, nil).Authenticate(ctx, creds)
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
