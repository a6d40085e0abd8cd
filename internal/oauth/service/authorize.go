package service

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/dropDatabas3/authkit/internal/oauth/pkce"
	"github.com/dropDatabas3/authkit/internal/oauth/state"
	"github.com/dropDatabas3/authkit/internal/observability/logger"
	"github.com/dropDatabas3/authkit/internal/validation"
)

// AuthorizeRequest starts a login or link flow.
type AuthorizeRequest struct {
	Tenant              string
	Provider            string
	RedirectURI         string
	CodeChallenge       string
	CodeChallengeMethod string
	Mode                state.Mode
	Scope               string
	// CallerID is the authenticated user; required for ModeLink.
	CallerID string
}

type AuthorizeResult struct {
	Provider         string
	AuthorizationURL string
	State            string
}

func (s *oauthService) Authorize(ctx context.Context, req AuthorizeRequest) (res *AuthorizeResult, err error) {
	provider := strings.ToLower(strings.TrimSpace(req.Provider))
	log := s.log(ctx, "authorize").With(logger.Provider(provider), logger.TenantID(req.Tenant), logger.Mode(string(req.Mode)))
	defer func() { s.observe(provider, "authorize", err) }()

	if !slices.Contains(s.providers.Available(ctx, req.Tenant), provider) {
		log.Warn("provider not available")
		return nil, fmt.Errorf("%w: %s", ErrProviderNotEnabled, provider)
	}
	if req.CodeChallengeMethod != pkce.MethodS256 {
		return nil, fmt.Errorf("%w: code_challenge_method must be S256", ErrInvalidRequest)
	}
	if !pkce.ValidLength(req.CodeChallenge) {
		return nil, fmt.Errorf("%w: code_challenge must be %d-%d characters", ErrInvalidRequest, pkce.MinLength, pkce.MaxLength)
	}
	if strings.TrimSpace(req.RedirectURI) == "" {
		return nil, fmt.Errorf("%w: redirect_uri required", ErrInvalidRequest)
	}
	scope, ok := validation.NormalizeScope(req.Scope)
	if !ok {
		return nil, fmt.Errorf("%w: malformed scope", ErrInvalidRequest)
	}

	mode := req.Mode
	if mode == "" {
		mode = state.ModeLogin
	}
	params := state.Params{
		Provider:      provider,
		RedirectURI:   req.RedirectURI,
		Mode:          mode,
		CodeChallenge: req.CodeChallenge,
	}
	switch mode {
	case state.ModeLogin:
	case state.ModeLink:
		if req.CallerID == "" {
			return nil, fmt.Errorf("%w: link mode requires an authenticated user", ErrUnauthenticated)
		}
		params.LinkUserID = req.CallerID
	default:
		return nil, fmt.Errorf("%w: mode must be login or link", ErrInvalidRequest)
	}

	p, err := s.provider(ctx, req.Tenant, provider)
	if err != nil {
		log.Error("resolve provider failed", logger.Err(err))
		return nil, err
	}
	stateToken, err := s.state.Sign(params)
	if err != nil {
		return nil, fmt.Errorf("sign state: %w", err)
	}
	authURL, err := p.AuthorizeURL(req.RedirectURI, req.CodeChallenge, stateToken, scope)
	if err != nil {
		return nil, fmt.Errorf("build authorize url: %w", err)
	}

	log.Debug("authorization started")
	return &AuthorizeResult{Provider: provider, AuthorizationURL: authURL, State: stateToken}, nil
}
