package domain

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"secchub-loadtest/internal/auth"
	"secchub-loadtest/internal/check"
	"secchub-loadtest/internal/client"
	"secchub-loadtest/internal/weighted"
)

const (
	trendSecurityAuth = "security_authentication_duration_ms"
	trendSecurityUser = "security_user_duration_ms"
)

var mockUsers = func() []auth.Credentials {
	names := []string{
		"admin", "user", "student", "teacher", "program",
		"maria.garcia", "carlos.lopez", "ana.rodriguez", "luis.martinez", "sofia.hernandez",
		"user-is", "user-si",
		"dr.silva", "prof.torres", "dr.morales", "prof.castro", "dr.vargas",
		"juan.perez", "laura.jimenez", "diego.ramirez", "camila.santos", "andres.flores", "valentina.cruz",
		"coord.cs", "coord.is",
	}
	users := make([]auth.Credentials, len(names))
	for i, name := range names {
		users[i] = auth.Credentials{Email: name + "@secchub.com", Password: "password"}
	}
	return users
}()

var securityOps = weighted.MustTable(
	weighted.Option[operation]{Label: "user", Weight: 70, Value: securityUser},
	weighted.Option[operation]{Label: "authentication", Weight: 30, Value: securityAuthentication},
)

func runSecurity(ctx context.Context, s *session) {
	s.dispatch(ctx, securityOps)
}

// securityAuthentication はログインとトークン更新を行う
// 認証エンドポイントにはベアラートークンを付けない
func securityAuthentication(ctx context.Context, s *session) {
	user := choose(s, mockUsers)

	resp, ok := s.do(ctx, trendSecurityAuth, client.Request{
		Method:    http.MethodPost,
		Path:      "/auth/login",
		Body:      user,
		Operation: "login",
	},
		check.Status("login status is 200", http.StatusOK),
		check.Has("login returns access token", "accessToken"),
		check.Has("login returns refresh token", "refreshToken"),
	)
	s.pause(ctx, stepPause)

	refresh, _ := resp.String("refreshToken")
	if !ok || refresh == "" {
		return
	}

	s.do(ctx, trendSecurityAuth, client.Request{
		Method:    http.MethodPost,
		Path:      "/auth/refresh",
		Body:      map[string]string{"refreshToken": refresh},
		Operation: "refresh",
	},
		check.Status("refresh status is 200", http.StatusOK),
		check.Has("refresh returns new access token", "accessToken"),
		check.Has("refresh returns new refresh token", "refreshToken"),
	)
	s.pause(ctx, stepPause)
}

func securityUser(ctx context.Context, s *session) {
	s.get(ctx, trendSecurityUser, "/user",
		check.Status("getCurrentUser status is 200", http.StatusOK),
		check.Custom("getCurrentUser returns user data", func(r *client.Response) bool {
			return r.Has("username") && r.Has("email")
		}),
	)
	s.pause(ctx, stepPause)

	s.get(ctx, trendSecurityUser, "/user/all",
		check.Status("getAllUsers status is 200", http.StatusOK),
		check.IsArray("getAllUsers returns array"),
		check.NonEmptyArray("getAllUsers has multiple users"),
	)
	s.pause(ctx, stepPause)

	target := choose(s, mockUsers)
	s.get(ctx, trendSecurityUser, "/user/email?email="+url.QueryEscape(target.Email),
		check.Status("getUserByEmail status is 200", http.StatusOK),
		check.Equals("getUserByEmail returns correct email", "email", target.Email),
	)
	s.pause(ctx, stepPause)

	userID := s.intn(1, 25)
	s.get(ctx, trendSecurityUser, fmt.Sprintf("/user/id/%d", userID),
		check.Status("getUserById status is 200 or 404", http.StatusOK, http.StatusNotFound),
		check.Custom("getUserById returns user if 200", func(r *client.Response) bool {
			if r.Status != http.StatusOK {
				return true
			}
			id, ok := r.ID()
			return ok && id == int64(userID)
		}),
	)
	s.pause(ctx, stepPause)

	random := choose(s, mockUsers)
	s.get(ctx, trendSecurityUser, "/user/email?email="+url.QueryEscape(random.Email),
		check.Status("getUserByEmail(random) status is 200", http.StatusOK),
		check.Has("getUserByEmail(random) has username", "username"),
	)
	s.pause(ctx, stepPause)

	s.get(ctx, trendSecurityUser, fmt.Sprintf("/user/id/%d", s.intn(16, 25)),
		check.Status("getUserById(high) status is 200 or 404", http.StatusOK, http.StatusNotFound),
	)
	s.pause(ctx, stepPause)
}
