package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dropDatabas3/authkit/internal/config"
	"github.com/dropDatabas3/authkit/internal/domain/repository"
	"github.com/dropDatabas3/authkit/internal/events"
	"github.com/dropDatabas3/authkit/internal/oauth/state"
	"github.com/dropDatabas3/authkit/internal/observability/logger"
)

// LinkRequest completes a link flow for an authenticated caller.
type LinkRequest struct {
	CallbackRequest
	CallerID string
}

type LinkResult struct {
	Provider string
	Account  *repository.SocialAccount
}

// LinkedAccount is the public view of a link. Tokens never leave the service.
type LinkedAccount struct {
	ID               string    `json:"id"`
	Provider         string    `json:"provider"`
	ProviderEmail    *string   `json:"provider_email,omitempty"`
	ProviderUsername *string   `json:"provider_username,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
}

type LinksResult struct {
	Links             []LinkedAccount `json:"links"`
	HasUsablePassword bool            `json:"has_usable_password"`
}

type RefreshResult struct {
	Provider  string     `json:"provider"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

func (s *oauthService) Link(ctx context.Context, req LinkRequest) (res *LinkResult, err error) {
	provider := strings.ToLower(strings.TrimSpace(req.Provider))
	log := s.log(ctx, "link").With(logger.Provider(provider), logger.TenantID(req.Tenant), logger.UserID(req.CallerID))
	defer func() { s.observe(provider, "link", err) }()

	if req.CallerID == "" {
		return nil, ErrUnauthenticated
	}
	if req.Code == "" || req.State == "" {
		return nil, fmt.Errorf("%w: code and state required", ErrInvalidRequest)
	}
	claims, err := s.state.Verify(req.State, state.Expect{Provider: provider, RedirectURI: req.RedirectURI})
	if err != nil {
		log.Warn("state rejected", logger.Err(err))
		return nil, err
	}
	if claims.Mode != state.ModeLink {
		return nil, fmt.Errorf("%w: expected link, got %s", ErrStateModeMismatch, claims.Mode)
	}
	if claims.LinkUserID != req.CallerID {
		log.Warn("link state issued to another user")
		return nil, ErrLinkUserMismatch
	}
	if err := verifyPKCE(claims, req.CodeVerifier); err != nil {
		log.Warn("pkce binding failed")
		return nil, err
	}

	p, err := s.provider(ctx, req.Tenant, provider)
	if err != nil {
		return nil, err
	}
	tokens, profile, err := s.exchange(ctx, p, req.Code, req.CodeVerifier, req.RedirectURI)
	if err != nil {
		logProviderFailure(log, err)
		return nil, err
	}

	user, err := s.users.GetByID(ctx, req.CallerID)
	if repository.IsNotFound(err) {
		return nil, ErrUnauthenticated
	}
	if err != nil {
		return nil, fmt.Errorf("load caller: %w", err)
	}
	if !user.IsActive {
		return nil, ErrUserDisabled
	}

	switch _, err := s.social.GetByUserAndProvider(ctx, user.ID, provider); {
	case err == nil:
		return nil, ErrProviderAlreadyLinked
	case !repository.IsNotFound(err):
		return nil, fmt.Errorf("lookup user link: %w", err)
	}
	switch owner, err := s.social.GetByProvider(ctx, provider, profile.ProviderUserID); {
	case err == nil:
		log.Warn("provider identity owned by another user", logger.String("owner_id", owner.UserID))
		return nil, ErrAlreadyLinked
	case !repository.IsNotFound(err):
		return nil, fmt.Errorf("lookup provider identity: %w", err)
	}

	sealed, err := s.sealTokens(tokens)
	if err != nil {
		return nil, fmt.Errorf("seal tokens: %w", err)
	}
	acc, err := s.social.Create(ctx, linkInput(user.ID, profile, sealed))
	if repository.IsConflict(err) {
		return nil, ErrAlreadyLinked
	}
	if err != nil {
		return nil, fmt.Errorf("create social account: %w", err)
	}

	s.events.Emit(ctx, events.SocialAccountLinked{
		Tenant: req.Tenant, UserID: user.ID, Provider: provider,
	})
	log.Info("social account linked")
	return &LinkResult{Provider: provider, Account: acc}, nil
}

// Unlink removes the caller's link for provider unless it is the last way
// left to sign in. Remaining methods are the other links, passkeys and a
// usable password.
func (s *oauthService) Unlink(ctx context.Context, tenant, callerID, provider string) (err error) {
	provider = strings.ToLower(strings.TrimSpace(provider))
	log := s.log(ctx, "unlink").With(logger.Provider(provider), logger.TenantID(tenant), logger.UserID(callerID))
	defer func() { s.observe(provider, "unlink", err) }()

	if callerID == "" {
		return ErrUnauthenticated
	}
	if !config.IsKnownProvider(provider) {
		return ErrNotLinked
	}
	user, err := s.users.GetByID(ctx, callerID)
	if repository.IsNotFound(err) {
		return ErrUnauthenticated
	}
	if err != nil {
		return fmt.Errorf("load caller: %w", err)
	}

	links, err := s.social.ListByUser(ctx, user.ID)
	if err != nil {
		return fmt.Errorf("list links: %w", err)
	}
	var target *repository.SocialAccount
	others := 0
	for i := range links {
		if links[i].Provider == provider {
			target = &links[i]
			continue
		}
		others++
	}
	if target == nil {
		return ErrNotLinked
	}

	passkeys, err := s.passkeys.CountByUser(ctx, user.ID)
	if err != nil {
		return fmt.Errorf("count passkeys: %w", err)
	}
	remaining := others + passkeys
	if user.HasUsablePassword {
		remaining++
	}
	if remaining == 0 {
		log.Info("unlink refused: last login method")
		return ErrLockout
	}

	if err := s.social.Delete(ctx, target.ID); err != nil {
		if repository.IsNotFound(err) {
			return ErrNotLinked
		}
		return fmt.Errorf("delete social account: %w", err)
	}
	s.events.Emit(ctx, events.SocialAccountUnlinked{
		Tenant: tenant, UserID: user.ID, Provider: provider,
	})
	log.Info("social account unlinked", logger.Int("remaining_methods", remaining))
	return nil
}

func (s *oauthService) Links(ctx context.Context, callerID string) (*LinksResult, error) {
	if callerID == "" {
		return nil, ErrUnauthenticated
	}
	user, err := s.users.GetByID(ctx, callerID)
	if repository.IsNotFound(err) {
		return nil, ErrUnauthenticated
	}
	if err != nil {
		return nil, fmt.Errorf("load caller: %w", err)
	}
	links, err := s.social.ListByUser(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("list links: %w", err)
	}
	out := &LinksResult{Links: make([]LinkedAccount, 0, len(links)), HasUsablePassword: user.HasUsablePassword}
	for _, l := range links {
		out.Links = append(out.Links, LinkedAccount{
			ID:               l.ID,
			Provider:         l.Provider,
			ProviderEmail:    l.ProviderEmail,
			ProviderUsername: l.ProviderUsername,
			CreatedAt:        l.CreatedAt,
		})
	}
	return out, nil
}

// RefreshLinkTokens uses the stored refresh token to renew the provider
// access token. Providers that rotate refresh tokens get the new one stored.
func (s *oauthService) RefreshLinkTokens(ctx context.Context, tenant, callerID, provider string) (res *RefreshResult, err error) {
	provider = strings.ToLower(strings.TrimSpace(provider))
	log := s.log(ctx, "refresh_link").With(logger.Provider(provider), logger.TenantID(tenant), logger.UserID(callerID))
	defer func() { s.observe(provider, "refresh_link", err) }()

	if callerID == "" {
		return nil, ErrUnauthenticated
	}
	acc, err := s.social.GetByUserAndProvider(ctx, callerID, provider)
	if repository.IsNotFound(err) {
		return nil, ErrNotLinked
	}
	if err != nil {
		return nil, fmt.Errorf("lookup user link: %w", err)
	}
	if acc.RefreshTokenEnc == nil || *acc.RefreshTokenEnc == "" {
		return nil, ErrNoRefreshToken
	}
	refresh, err := s.cipher.Decrypt(*acc.RefreshTokenEnc)
	if err != nil {
		log.Error("stored refresh token unreadable", logger.Err(err))
		return nil, fmt.Errorf("%w: %w", ErrTokenDecrypt, err)
	}

	p, err := s.provider(ctx, tenant, provider)
	if err != nil {
		return nil, err
	}
	tokens, err := p.RefreshToken(ctx, refresh)
	if err != nil {
		err = asTokenError(provider, err)
		logProviderFailure(log, err)
		return nil, err
	}
	sealed, err := s.sealTokens(tokens)
	if err != nil {
		return nil, fmt.Errorf("seal tokens: %w", err)
	}
	if err := s.social.UpdateTokens(ctx, acc.ID, sealed); err != nil {
		return nil, fmt.Errorf("update social tokens: %w", err)
	}
	log.Debug("provider tokens refreshed")
	return &RefreshResult{Provider: provider, ExpiresAt: tokens.ExpiresAt}, nil
}
