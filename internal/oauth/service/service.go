// Package service is the social login orchestrator: it starts authorization
// flows, completes callbacks into sessions, and links or unlinks provider
// accounts while enforcing the state, PKCE, collision and lockout rules.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/dropDatabas3/authkit/internal/domain/repository"
	"github.com/dropDatabas3/authkit/internal/events"
	"github.com/dropDatabas3/authkit/internal/oauth/pkce"
	"github.com/dropDatabas3/authkit/internal/oauth/providers"
	"github.com/dropDatabas3/authkit/internal/oauth/state"
	"github.com/dropDatabas3/authkit/internal/observability/logger"
	"github.com/dropDatabas3/authkit/internal/security/tokencipher"
	"github.com/dropDatabas3/authkit/internal/session"
)

// OAuthService is consumed by the HTTP controllers.
type OAuthService interface {
	Providers(ctx context.Context, tenant string) []string
	ProviderInfo(ctx context.Context, tenant string) []providers.Info
	Authorize(ctx context.Context, req AuthorizeRequest) (*AuthorizeResult, error)
	Callback(ctx context.Context, req CallbackRequest) (*LoginResult, error)
	Link(ctx context.Context, req LinkRequest) (*LinkResult, error)
	Unlink(ctx context.Context, tenant, callerID, provider string) error
	Links(ctx context.Context, callerID string) (*LinksResult, error)
	RefreshLinkTokens(ctx context.Context, tenant, callerID, provider string) (*RefreshResult, error)
}

// ProviderSource resolves adapters. *providers.Registry implements it.
type ProviderSource interface {
	Get(ctx context.Context, tenant, provider string) (providers.Provider, error)
	Available(ctx context.Context, tenant string) []string
	Info(ctx context.Context, tenant string) []providers.Info
}

// SessionIssuer issues login credentials. *session.Manager implements it.
type SessionIssuer interface {
	Issue(ctx context.Context, tenant, userID string) (*session.Pair, error)
	IssueStepUp(tenant, userID string) (*session.Pair, error)
}

// FlowObserver counts operations. *metrics.Metrics implements it.
type FlowObserver interface {
	ObserveFlow(provider, op, outcome string)
}

// Deps contains dependencies for the OAuth service.
type Deps struct {
	Providers ProviderSource
	State     *state.Codec
	Cipher    *tokencipher.Cipher
	Store     repository.Store
	Sessions  SessionIssuer
	Events    events.Emitter // optional
	Observer  FlowObserver   // optional
	Now       func() time.Time
}

type oauthService struct {
	providers ProviderSource
	state     *state.Codec
	cipher    *tokencipher.Cipher
	users     repository.UserRepository
	social    repository.SocialAccountRepository
	passkeys  repository.PasskeyRepository
	sessions  SessionIssuer
	events    events.Emitter
	observer  FlowObserver
	now       func() time.Time
}

var _ OAuthService = (*oauthService)(nil)

// New creates the OAuth service.
func New(d Deps) (OAuthService, error) {
	switch {
	case d.Providers == nil:
		return nil, errors.New("oauth service: providers required")
	case d.State == nil:
		return nil, errors.New("oauth service: state codec required")
	case d.Cipher == nil:
		return nil, errors.New("oauth service: token cipher required")
	case d.Store == nil:
		return nil, errors.New("oauth service: store required")
	case d.Sessions == nil:
		return nil, errors.New("oauth service: session issuer required")
	}
	s := &oauthService{
		providers: d.Providers,
		state:     d.State,
		cipher:    d.Cipher,
		users:     d.Store.Users(),
		social:    d.Store.SocialAccounts(),
		passkeys:  d.Store.Passkeys(),
		sessions:  d.Sessions,
		events:    d.Events,
		observer:  d.Observer,
		now:       d.Now,
	}
	if s.events == nil {
		s.events = events.Nop{}
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s, nil
}

func (s *oauthService) log(ctx context.Context, op string) *zap.Logger {
	return logger.From(ctx).With(logger.Layer("service"), logger.Component("oauth"), logger.Op(op))
}

func (s *oauthService) observe(provider, op string, err error) {
	if s.observer != nil {
		s.observer.ObserveFlow(provider, op, Outcome(err))
	}
}

func (s *oauthService) Providers(ctx context.Context, tenant string) []string {
	return s.providers.Available(ctx, tenant)
}

func (s *oauthService) ProviderInfo(ctx context.Context, tenant string) []providers.Info {
	return s.providers.Info(ctx, tenant)
}

// provider resolves an adapter, folding unknown and disabled into
// ErrProviderNotEnabled. Credential problems stay *providers.ConfigError.
func (s *oauthService) provider(ctx context.Context, tenant, name string) (providers.Provider, error) {
	p, err := s.providers.Get(ctx, tenant, name)
	switch {
	case errors.Is(err, providers.ErrUnknownProvider), errors.Is(err, providers.ErrProviderDisabled):
		return nil, fmt.Errorf("%w: %w", ErrProviderNotEnabled, err)
	case err != nil:
		return nil, err
	}
	return p, nil
}

// verifyPKCE recomputes the challenge from the verifier and compares it with
// the one sealed in the state.
func verifyPKCE(claims *state.Claims, verifier string) error {
	if !pkce.ValidLength(verifier) || !pkce.Verify(verifier, claims.CodeChallenge) {
		return ErrPKCEMismatch
	}
	return nil
}

// exchange runs code exchange and profile fetch, normalizing adapter errors.
func (s *oauthService) exchange(ctx context.Context, p providers.Provider, code, verifier, redirectURI string) (*providers.Tokens, *providers.Profile, error) {
	tokens, err := p.ExchangeCode(ctx, code, verifier, redirectURI)
	if err != nil {
		return nil, nil, asTokenError(p.Name(), err)
	}
	profile, err := p.FetchProfile(ctx, tokens)
	if err != nil {
		return nil, nil, asProfileError(p.Name(), err)
	}
	if profile.ProviderUserID == "" {
		return nil, nil, providers.NewProfileError(p.Name(), providers.KindMalformed, "empty subject")
	}
	return tokens, profile, nil
}

// sealTokens encrypts every token present. Empty fields stay nil so an
// update keeps the stored value.
func (s *oauthService) sealTokens(t *providers.Tokens) (repository.SocialTokens, error) {
	var out repository.SocialTokens
	var err error
	if out.AccessTokenEnc, err = s.cipher.EncryptOptional(t.AccessToken); err != nil {
		return out, err
	}
	if out.RefreshTokenEnc, err = s.cipher.EncryptOptional(t.RefreshToken); err != nil {
		return out, err
	}
	if out.IDTokenEnc, err = s.cipher.EncryptOptional(t.IDToken); err != nil {
		return out, err
	}
	out.TokenType = optional(t.TokenType)
	out.Scope = optional(t.Scope)
	out.ExpiresAt = t.ExpiresAt
	return out, nil
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
