package app

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/authkit/internal/config"
	"github.com/dropDatabas3/authkit/internal/oauth/pkce"
	"github.com/dropDatabas3/authkit/internal/security/tokencipher"
	"github.com/dropDatabas3/authkit/internal/store/sqlite"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	t.Setenv("AUTH_KIT_JWT_SECRET", "app-test-secret")
	t.Setenv("AUTH_KIT_STORAGE_DSN", sqlite.MemoryDSN)
	t.Setenv("AUTH_KIT_OAUTH_PROVIDERS", "github")
	t.Setenv("AUTH_KIT_OAUTH_GITHUB_CLIENT_ID", "gh-client")
	t.Setenv("AUTH_KIT_OAUTH_GITHUB_CLIENT_SECRET", "gh-secret")
	t.Setenv("AUTH_KIT_OAUTH_TOKEN_ENCRYPTION_KEY", base64.StdEncoding.EncodeToString(make([]byte, 32)))
	cfg, err := config.Load("")
	require.NoError(t, err)
	return cfg
}

func TestBuild_SQLiteMemory(t *testing.T) {
	a, err := Build(context.Background(), testConfig(t))
	require.NoError(t, err)
	defer a.Close()

	srv := httptest.NewServer(a.Handler)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/readyz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/oauth/providers")
	require.NoError(t, err)
	var list struct{ Providers []string }
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&list))
	resp.Body.Close()
	assert.Equal(t, []string{"github"}, list.Providers)

	body := `{"redirect_uri":"https://app.example.com/cb","code_challenge":"` + pkce.Challenge(pkce.GenerateVerifier()) + `","code_challenge_method":"S256"}`
	resp, err = http.Post(srv.URL+"/auth/oauth/github/authorize", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	var auth struct {
		AuthorizationURL string `json:"authorization_url"`
		State            string `json:"state"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&auth))
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, strings.HasPrefix(auth.AuthorizationURL, "https://github.com/login/oauth/authorize?"), auth.AuthorizationURL)
	assert.NotEmpty(t, auth.State)

	resp, err = http.Post(srv.URL+"/oauth/google/authorize", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestBuild_RedisBackedLimiter(t *testing.T) {
	mr := miniredis.RunT(t)
	t.Setenv("AUTH_KIT_CACHE_KIND", "redis")
	t.Setenv("AUTH_KIT_CACHE_REDIS_ADDR", mr.Addr())
	t.Setenv("AUTH_KIT_RATE_LIMIT_ENABLED", "true")
	t.Setenv("AUTH_KIT_RATE_LIMIT_REQUESTS", "2")
	cfg := testConfig(t)

	a, err := Build(context.Background(), cfg)
	require.NoError(t, err)
	defer a.Close()

	codes := make([]int, 0, 3)
	for range 3 {
		rr := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/oauth/github/callback", strings.NewReader(`{}`))
		req.Header.Set("Content-Type", "application/json")
		req.RemoteAddr = "198.51.100.7:4000"
		a.Handler.ServeHTTP(rr, req)
		codes = append(codes, rr.Code)
	}
	assert.Equal(t, []int{400, 400, 429}, codes)
	assert.NotEmpty(t, mr.Keys())
}

func TestBuild_UnknownDriver(t *testing.T) {
	cfg := testConfig(t)
	cfg.Storage.Driver = "oracle"
	_, err := Build(context.Background(), cfg)
	assert.Error(t, err)
}

func TestNewCipher_NoKeyIsUnconfigured(t *testing.T) {
	c, err := newCipher(config.OAuthConfig{})
	require.NoError(t, err)
	require.NotNil(t, c)
	assert.False(t, c.Configured())
	_, err = c.Encrypt("gho_abc")
	assert.ErrorIs(t, err, tokencipher.ErrNotConfigured)
}

func TestBuild_ProvidersWithoutKeyFails(t *testing.T) {
	cfg := testConfig(t)
	cfg.OAuth.TokenEncryptionKey = ""
	a, err := Build(context.Background(), cfg)
	require.Error(t, err)
	assert.Nil(t, a)
	assert.Contains(t, err.Error(), "token_encryption_key is required")
}

func TestTenants(t *testing.T) {
	o := config.OAuthConfig{Tenants: map[string]config.TenantOAuth{"zeta": {}, "acme": {}, "default": {}}}
	assert.Equal(t, []string{"default", "acme", "zeta"}, Tenants(o))
}
