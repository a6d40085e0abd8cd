package router

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/authkit/internal/cache"
	"github.com/dropDatabas3/authkit/internal/domain/repository"
	authctrl "github.com/dropDatabas3/authkit/internal/http/controllers/auth"
	healthctrl "github.com/dropDatabas3/authkit/internal/http/controllers/health"
	oauthctrl "github.com/dropDatabas3/authkit/internal/http/controllers/oauth"
	"github.com/dropDatabas3/authkit/internal/metrics"
	"github.com/dropDatabas3/authkit/internal/oauth/providers"
	"github.com/dropDatabas3/authkit/internal/oauth/service"
	"github.com/dropDatabas3/authkit/internal/oauth/state"
	"github.com/dropDatabas3/authkit/internal/session"
)

// stubService answers from canned values and records the last request.
type stubService struct {
	err          error
	lastAuth     service.AuthorizeRequest
	lastCallback service.CallbackRequest
	lastLink     service.LinkRequest
	unlinked     string
	sessions     *session.Manager
}

func (s *stubService) Providers(context.Context, string) []string {
	return []string{"google", "github"}
}

func (s *stubService) ProviderInfo(context.Context, string) []providers.Info {
	return []providers.Info{{Name: "google", DisplayName: "Google", Enabled: true}}
}

func (s *stubService) Authorize(_ context.Context, req service.AuthorizeRequest) (*service.AuthorizeResult, error) {
	s.lastAuth = req
	if s.err != nil {
		return nil, s.err
	}
	return &service.AuthorizeResult{Provider: req.Provider, AuthorizationURL: "https://idp/auth", State: "st"}, nil
}

func (s *stubService) Callback(ctx context.Context, req service.CallbackRequest) (*service.LoginResult, error) {
	s.lastCallback = req
	if s.err != nil {
		return nil, s.err
	}
	pair, err := s.sessions.Issue(ctx, req.Tenant, "u1")
	if err != nil {
		return nil, err
	}
	return &service.LoginResult{
		User:   &repository.User{ID: "u1", Email: "ana@example.com", IsActive: true, CreatedAt: time.Unix(0, 0).UTC()},
		Tokens: pair,
	}, nil
}

func (s *stubService) Link(_ context.Context, req service.LinkRequest) (*service.LinkResult, error) {
	s.lastLink = req
	if s.err != nil {
		return nil, s.err
	}
	return &service.LinkResult{Provider: req.Provider}, nil
}

func (s *stubService) Unlink(_ context.Context, _, callerID, provider string) error {
	s.unlinked = callerID + "/" + provider
	return s.err
}

func (s *stubService) Links(context.Context, string) (*service.LinksResult, error) {
	return &service.LinksResult{Links: []service.LinkedAccount{{ID: "l1", Provider: "github"}}, HasUsablePassword: true}, s.err
}

func (s *stubService) RefreshLinkTokens(_ context.Context, _, _, provider string) (*service.RefreshResult, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &service.RefreshResult{Provider: provider}, nil
}

type fixture struct {
	handler  http.Handler
	svc      *stubService
	sessions *session.Manager
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	sessions, err := session.New(session.Config{
		Secret: []byte("router-secret"), Issuer: "test",
		AccessTTL: time.Minute, RefreshTTL: time.Hour, StepUpTTL: time.Minute,
	}, cache.NewMemory(""))
	require.NoError(t, err)
	m, err := metrics.New(nil)
	require.NoError(t, err)

	svc := &stubService{sessions: sessions}
	h := New(Deps{
		OAuth:          oauthctrl.NewController(svc),
		Auth:           authctrl.NewController(sessions),
		Health:         healthctrl.NewController("test", healthctrl.Check{Name: "store", Ping: func(context.Context) error { return nil }}),
		Tokens:         sessions,
		Metrics:        m,
		Inflight:       m.HTTPInflight,
		MetricsHandler: m.Handler(),
	})
	return &fixture{handler: h, svc: svc, sessions: sessions}
}

func (f *fixture) do(t *testing.T, method, path, body, token string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	f.handler.ServeHTTP(rr, req)
	return rr
}

func decode(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out), rr.Body.String())
	return out
}

const challenge = "E9Melhoa2OwvFrEMTJguCHaoeK1t8URWbuGJSstw-cM"

func TestProviders(t *testing.T) {
	f := newFixture(t)
	for _, prefix := range []string{"/oauth", "/auth/oauth"} {
		rr := f.do(t, http.MethodGet, prefix+"/providers", "", "")
		require.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, []any{"google", "github"}, decode(t, rr)["providers"])
		assert.Equal(t, "no-store", rr.Header().Get("Cache-Control"))
	}
	rr := f.do(t, http.MethodGet, "/oauth/providers/info", "", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"display_name":"Google"`)
}

func TestAuthorize(t *testing.T) {
	f := newFixture(t)
	body := `{"redirect_uri":"https://app/cb","code_challenge":"` + challenge + `","code_challenge_method":"S256"}`
	rr := f.do(t, http.MethodPost, "/oauth/google/authorize", body, "")
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	out := decode(t, rr)
	assert.Equal(t, "https://idp/auth", out["authorization_url"])
	assert.Equal(t, "st", out["state"])
	assert.Equal(t, "google", f.svc.lastAuth.Provider)
	assert.Equal(t, "default", f.svc.lastAuth.Tenant)
	assert.Empty(t, f.svc.lastAuth.CallerID)

	pair, err := f.sessions.Issue(context.Background(), "default", "u1")
	require.NoError(t, err)
	body = `{"redirect_uri":"https://app/cb","code_challenge":"` + challenge + `","mode":"link"}`
	rr = f.do(t, http.MethodPost, "/oauth/github/authorize", body, pair.AccessToken)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "u1", f.svc.lastAuth.CallerID)
	assert.Equal(t, state.ModeLink, f.svc.lastAuth.Mode)
	assert.Equal(t, "S256", f.svc.lastAuth.CodeChallengeMethod)

	rr = f.do(t, http.MethodPost, "/oauth/google/authorize", `{"redirect_uri":"app/cb"}`, "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	rr = f.do(t, http.MethodPost, "/oauth/google/authorize", `{"redirect_uri":"https://app/cb","extra":1}`, "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "INVALID_JSON", decode(t, rr)["code"])
}

func TestCallback(t *testing.T) {
	f := newFixture(t)
	body := `{"code":"c","state":"s","redirect_uri":"https://app/cb","code_verifier":"v"}`
	rr := f.do(t, http.MethodPost, "/auth/oauth/google/callback", body, "")
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	out := decode(t, rr)
	tokens := out["tokens"].(map[string]any)
	assert.Equal(t, "bearer", tokens["token_type"])
	assert.NotEmpty(t, tokens["refresh_token"])
	assert.Equal(t, false, out["requires_2fa"])
	assert.Equal(t, "ana@example.com", out["user"].(map[string]any)["email"])

	rr = f.do(t, http.MethodPost, "/oauth/google/callback", `{"code":"c","state":"s","redirect_uri":"https://app/cb"}`, "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "MISSING_FIELDS", decode(t, rr)["code"])
}

func TestErrorMapping(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{service.ErrProviderNotEnabled, 400, "provider_not_enabled"},
		{state.ErrExpired, 400, "state_expired"},
		{&state.MismatchError{Field: "redirect_uri"}, 400, "state_invalid"},
		{&state.MissingFieldError{Field: "mode"}, 400, "state_invalid"},
		{service.ErrStateModeMismatch, 400, "state_invalid"},
		{service.ErrPKCEMismatch, 400, "pkce_mismatch"},
		{&providers.TokenExchangeError{Failure: providers.Failure{Provider: "github", Code: "bad_verification_code"}}, 400, "provider_error"},
		{service.ErrEmailRequired, 400, "email_required"},
		{service.ErrAlreadyLinked, 409, "CONFLICT"},
		{service.ErrIdentityMismatch, 409, "CONFLICT"},
		{service.ErrUserDisabled, 403, "ACCOUNT_DISABLED"},
		{&providers.ConfigError{Provider: "apple"}, 500, "config_error"},
		{service.ErrTokenDecrypt, 500, "encryption_error"},
		{assert.AnError, 500, "INTERNAL_SERVER_ERROR"},
	}
	f := newFixture(t)
	body := `{"code":"c","state":"s","redirect_uri":"https://app/cb","code_verifier":"v"}`
	for _, tc := range cases {
		f.svc.err = tc.err
		rr := f.do(t, http.MethodPost, "/oauth/google/callback", body, "")
		assert.Equal(t, tc.status, rr.Code, "%v", tc.err)
		out := decode(t, rr)
		assert.Equal(t, tc.code, out["code"], "%v", tc.err)
		// provider payloads never reach the client
		assert.NotContains(t, rr.Body.String(), "bad_verification_code")
	}
}

func TestLinks(t *testing.T) {
	f := newFixture(t)
	rr := f.do(t, http.MethodGet, "/oauth/links", "", "")
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	pair, err := f.sessions.Issue(context.Background(), "default", "u1")
	require.NoError(t, err)
	tok := pair.AccessToken

	rr = f.do(t, http.MethodGet, "/oauth/links", "", tok)
	require.Equal(t, http.StatusOK, rr.Code)
	out := decode(t, rr)
	assert.Equal(t, true, out["has_usable_password"])
	assert.Len(t, out["links"], 1)

	body := `{"code":"c","state":"s","redirect_uri":"https://app/cb","code_verifier":"v"}`
	rr = f.do(t, http.MethodPost, "/oauth/links/github/link", body, tok)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "Social account linked successfully", decode(t, rr)["message"])
	assert.Equal(t, "u1", f.svc.lastLink.CallerID)

	rr = f.do(t, http.MethodDelete, "/oauth/links/GitHub", "", tok)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "u1/github", f.svc.unlinked)

	f.svc.err = service.ErrLockout
	rr = f.do(t, http.MethodDelete, "/oauth/links/github", "", tok)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	out = decode(t, rr)
	assert.Equal(t, "lockout", out["code"])
	assert.NotEmpty(t, out["detail"])

	f.svc.err = service.ErrNotLinked
	rr = f.do(t, http.MethodDelete, "/oauth/links/apple", "", tok)
	assert.Equal(t, http.StatusNotFound, rr.Code)

	f.svc.err = nil
	rr = f.do(t, http.MethodPost, "/oauth/links/google/refresh", "", tok)
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestSessionRefresh(t *testing.T) {
	f := newFixture(t)
	pair, err := f.sessions.Issue(context.Background(), "default", "u1")
	require.NoError(t, err)

	body := `{"refresh_token":"` + pair.RefreshToken + `"}`
	rr := f.do(t, http.MethodPost, "/auth/refresh", body, "")
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.NotEqual(t, pair.RefreshToken, decode(t, rr)["refresh_token"])

	rr = f.do(t, http.MethodPost, "/auth/refresh", body, "")
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = f.do(t, http.MethodPost, "/auth/logout", `{"refresh_token":"whatever"}`, "")
	assert.Equal(t, http.StatusNoContent, rr.Code)
}

func TestHealthAndMetrics(t *testing.T) {
	f := newFixture(t)
	assert.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/healthz", "", "").Code)
	assert.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/readyz", "", "").Code)

	rr := f.do(t, http.MethodGet, "/metrics", "", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "authkit_http_requests_total")

	rr = f.do(t, http.MethodGet, "/nope", "", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, "NOT_FOUND", decode(t, rr)["code"])
}
