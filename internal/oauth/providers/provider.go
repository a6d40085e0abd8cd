// Package providers defines the contract every social login adapter
// implements and the per-tenant registry that builds them.
//
// The provider set is closed: google, github and apple. The registry is the
// only place that maps a provider name to an implementation, so the OAuth
// service never depends on a concrete adapter.
package providers

import (
	"context"
	"net/http"
	"time"

	"github.com/dropDatabas3/authkit/internal/config"
)

// Provider is one OAuth 2.0 identity provider.
type Provider interface {
	Name() string

	// AuthorizeURL builds the provider authorization endpoint URL with
	// response_type=code and an S256 code challenge. An empty scope selects
	// the provider defaults; otherwise scope is a space separated override.
	AuthorizeURL(redirectURI, codeChallenge, state, scope string) (string, error)

	// ExchangeCode redeems an authorization code.
	ExchangeCode(ctx context.Context, code, codeVerifier, redirectURI string) (*Tokens, error)

	// FetchProfile resolves the normalized identity behind tokens.
	FetchProfile(ctx context.Context, tokens *Tokens) (*Profile, error)

	// RefreshToken trades a refresh token for a new access token.
	RefreshToken(ctx context.Context, refreshToken string) (*Tokens, error)
}

// Tokens is a token endpoint response. It lives for one request.
type Tokens struct {
	AccessToken  string
	TokenType    string
	RefreshToken string
	IDToken      string
	Scope        string
	ExpiresIn    int
	ExpiresAt    *time.Time
}

// Profile is a provider identity normalized across providers.
// ProviderUserID is the immutable subject, never the email.
type Profile struct {
	Provider       string
	ProviderUserID string
	Email          string
	EmailVerified  *bool
	Username       string
	IDToken        string
}

// Credentials is the credential tuple a factory receives.
type Credentials = config.ProviderCredentials

// Observer receives one call per outbound provider request.
type Observer interface {
	ObserveProviderCall(provider, op, outcome string, elapsed time.Duration)
}

// Options carries shared dependencies into factories.
type Options struct {
	HTTPClient *http.Client
	Observer   Observer
	Now        func() time.Time
}

// Factory builds a Provider from complete credentials.
type Factory func(creds Credentials, opts Options) (Provider, error)

// Normalize fills the defaults a factory relies on.
func (o Options) Normalize() Options {
	if o.HTTPClient == nil {
		o.HTTPClient = &http.Client{Timeout: 10 * time.Second}
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}
