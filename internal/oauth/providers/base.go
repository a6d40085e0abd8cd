package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"
)

const maxBody = 1 << 20

// userAgent is sent on every provider call; GitHub rejects requests without one.
const userAgent = "authkit-oauth/1"

// BaseConfig describes an authorization-code provider.
type BaseConfig struct {
	Name     string
	ClientID string
	Endpoint oauth2.Endpoint
	// Scopes are used when the caller does not override them.
	Scopes []string
	// Extras are appended to every authorize URL.
	Extras []oauth2.AuthCodeOption
	// ClientSecret is called once per token request.
	ClientSecret func() (string, error)
	// APIHeaders are added to GetJSON requests.
	APIHeaders map[string]string
}

// Base implements the authorization code grant shared by all adapters.
// Adapters embed it and supply FetchProfile.
type Base struct {
	cfg  BaseConfig
	opts Options
}

// NewBase returns a Base with opts normalized.
func NewBase(cfg BaseConfig, opts Options) *Base {
	return &Base{cfg: cfg, opts: opts.Normalize()}
}

// StaticSecret adapts a fixed client secret.
func StaticSecret(s string) func() (string, error) {
	return func() (string, error) { return s, nil }
}

func (b *Base) Name() string              { return b.cfg.Name }
func (b *Base) Now() time.Time            { return b.opts.Now() }
func (b *Base) Client() *http.Client      { return b.opts.HTTPClient }
func (b *Base) ClientID() string          { return b.cfg.ClientID }
func (b *Base) Endpoint() oauth2.Endpoint { return b.cfg.Endpoint }

func (b *Base) AuthorizeURL(redirectURI, codeChallenge, state, scope string) (string, error) {
	if redirectURI == "" {
		return "", errors.New("providers: redirect_uri is required")
	}
	if codeChallenge == "" {
		return "", errors.New("providers: code_challenge is required")
	}
	scopes := b.cfg.Scopes
	if s := strings.Fields(scope); len(s) > 0 {
		scopes = s
	}
	oc := oauth2.Config{
		ClientID:    b.cfg.ClientID,
		Endpoint:    b.cfg.Endpoint,
		RedirectURL: redirectURI,
		Scopes:      scopes,
	}
	opts := append([]oauth2.AuthCodeOption{
		oauth2.SetAuthURLParam("code_challenge", codeChallenge),
		oauth2.SetAuthURLParam("code_challenge_method", "S256"),
	}, b.cfg.Extras...)
	return oc.AuthCodeURL(state, opts...), nil
}

func (b *Base) ExchangeCode(ctx context.Context, code, codeVerifier, redirectURI string) (*Tokens, error) {
	form := url.Values{}
	form.Set("grant_type", "authorization_code")
	form.Set("code", code)
	form.Set("redirect_uri", redirectURI)
	form.Set("code_verifier", codeVerifier)
	return b.postToken(ctx, "exchange", form)
}

// RefreshToken keeps refreshToken on the result when the provider does not
// rotate it.
func (b *Base) RefreshToken(ctx context.Context, refreshToken string) (*Tokens, error) {
	if refreshToken == "" {
		return nil, &TokenExchangeError{Failure{Provider: b.cfg.Name, Kind: KindMalformed, Description: "no refresh token"}}
	}
	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", refreshToken)
	tok, err := b.postToken(ctx, "refresh", form)
	if err != nil {
		return nil, err
	}
	if tok.RefreshToken == "" {
		tok.RefreshToken = refreshToken
	}
	return tok, nil
}

type tokenResponse struct {
	AccessToken      string  `json:"access_token"`
	TokenType        string  `json:"token_type"`
	RefreshToken     string  `json:"refresh_token"`
	IDToken          string  `json:"id_token"`
	Scope            string  `json:"scope"`
	ExpiresIn        FlexInt `json:"expires_in"`
	Error            string  `json:"error"`
	ErrorDescription string  `json:"error_description"`
}

func (b *Base) postToken(ctx context.Context, op string, form url.Values) (*Tokens, error) {
	start := b.opts.Now()
	fail := func(f Failure) error {
		f.Provider = b.cfg.Name
		b.observe(op, string(f.Kind), start)
		return &TokenExchangeError{f}
	}

	secret, err := b.cfg.ClientSecret()
	if err != nil {
		return nil, fail(Failure{Kind: KindMalformed, Description: "client secret", Err: err})
	}
	form.Set("client_id", b.cfg.ClientID)
	form.Set("client_secret", secret)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.cfg.Endpoint.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fail(Failure{Kind: KindNetwork, Err: err})
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)

	resp, err := b.opts.HTTPClient.Do(req)
	if err != nil {
		return nil, fail(Failure{Kind: KindNetwork, Err: err})
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, fail(Failure{Kind: KindNetwork, Status: resp.StatusCode, Err: err})
	}

	tr, decodeErr := decodeTokenResponse(resp.Header.Get("Content-Type"), body)
	if resp.StatusCode/100 != 2 {
		f := Failure{Kind: KindStatus, Status: resp.StatusCode}
		if decodeErr == nil {
			f.Code, f.Description = tr.Error, tr.ErrorDescription
		} else {
			f.Description = snippet(body)
		}
		return nil, fail(f)
	}
	if decodeErr != nil {
		return nil, fail(Failure{Kind: KindMalformed, Status: resp.StatusCode, Err: decodeErr})
	}
	// Providers such as GitHub answer 200 with an error body.
	if tr.Error != "" {
		return nil, fail(Failure{Kind: KindProtocol, Status: resp.StatusCode, Code: tr.Error, Description: tr.ErrorDescription})
	}
	if tr.AccessToken == "" {
		return nil, fail(Failure{Kind: KindMalformed, Status: resp.StatusCode, Description: "no access_token in response"})
	}
	b.observe(op, "ok", start)

	if tr.TokenType == "" {
		tr.TokenType = "Bearer"
	}
	tok := &Tokens{
		AccessToken:  tr.AccessToken,
		TokenType:    tr.TokenType,
		RefreshToken: tr.RefreshToken,
		IDToken:      tr.IDToken,
		Scope:        tr.Scope,
		ExpiresIn:    int(tr.ExpiresIn),
	}
	if tok.ExpiresIn > 0 {
		at := b.opts.Now().Add(time.Duration(tok.ExpiresIn) * time.Second).UTC()
		tok.ExpiresAt = &at
	}
	return tok, nil
}

func decodeTokenResponse(contentType string, body []byte) (tokenResponse, error) {
	var tr tokenResponse
	mt, _, _ := mime.ParseMediaType(contentType)
	if mt == "application/x-www-form-urlencoded" || mt == "text/plain" {
		v, err := url.ParseQuery(string(body))
		if err != nil {
			return tr, err
		}
		tr.AccessToken = v.Get("access_token")
		tr.TokenType = v.Get("token_type")
		tr.RefreshToken = v.Get("refresh_token")
		tr.Scope = v.Get("scope")
		tr.Error = v.Get("error")
		tr.ErrorDescription = v.Get("error_description")
		return tr, nil
	}
	err := json.Unmarshal(body, &tr)
	return tr, err
}

// GetJSON calls a bearer-protected endpoint and decodes the JSON body into
// out. Failures come back as *ProfileError.
func (b *Base) GetJSON(ctx context.Context, op, endpoint, accessToken string, out any) error {
	start := b.opts.Now()
	fail := func(f Failure) error {
		f.Provider = b.cfg.Name
		b.observe(op, string(f.Kind), start)
		return &ProfileError{f}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fail(Failure{Kind: KindNetwork, Err: err})
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
	for k, v := range b.cfg.APIHeaders {
		req.Header.Set(k, v)
	}

	resp, err := b.opts.HTTPClient.Do(req)
	if err != nil {
		return fail(Failure{Kind: KindNetwork, Err: err})
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return fail(Failure{Kind: KindNetwork, Status: resp.StatusCode, Err: err})
	}
	if resp.StatusCode/100 != 2 {
		return fail(Failure{Kind: KindStatus, Status: resp.StatusCode, Description: snippet(body)})
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fail(Failure{Kind: KindMalformed, Status: resp.StatusCode, Err: err})
	}
	b.observe(op, "ok", start)
	return nil
}

func (b *Base) observe(op, outcome string, start time.Time) {
	if b.opts.Observer == nil {
		return
	}
	b.opts.Observer.ObserveProviderCall(b.cfg.Name, op, outcome, b.opts.Now().Sub(start))
}

func snippet(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > 200 {
		s = s[:200] + "..."
	}
	return s
}

// String implements fmt.Stringer for log output.
func (t *Tokens) String() string {
	return fmt.Sprintf("Tokens{type=%s scope=%q expires_in=%d refresh=%t id_token=%t}",
		t.TokenType, t.Scope, t.ExpiresIn, t.RefreshToken != "", t.IDToken != "")
}
