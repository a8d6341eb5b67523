package testbackend

import (
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func do(t *testing.T, b *Backend, method, path, token, body string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, b.URL()+path, strings.NewReader(body))
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestBackendRequiresToken(t *testing.T) {
	b := New()
	defer b.Close()

	resp := do(t, b, http.MethodGet, "/courses", "", "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = do(t, b, http.MethodGet, "/courses", TokenFor("admin@secchub.com"), "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 2, b.Hits("courses.list"))
	assert.Equal(t, TokenFor("admin@secchub.com"), b.LastToken("courses.list"))
}

func TestBackendLogin(t *testing.T) {
	b := New()
	defer b.Close()

	resp := do(t, b, http.MethodPost, "/auth/login", "", `{"email":"admin@secchub.com","password":"password"}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = do(t, b, http.MethodPost, "/auth/login", "", `{"email":"admin@secchub.com","password":"wrong"}`)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	b.RejectLogin("admin@secchub.com")
	resp = do(t, b, http.MethodPost, "/auth/login", "", `{"email":"admin@secchub.com","password":"password"}`)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, 3, b.Hits("auth.login"))
}

func TestBackendFailAndReset(t *testing.T) {
	b := New()
	defer b.Close()
	token := TokenFor("admin@secchub.com")

	b.Fail("courses.create", http.StatusServiceUnavailable)
	resp := do(t, b, http.MethodPost, "/courses", token, `{"name":"x"}`)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	b.Reset()
	assert.Zero(t, b.TotalHits())

	resp = do(t, b, http.MethodPost, "/courses", token, `{"name":"x"}`)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, 1, b.HitsWithPrefix("courses."))
}
