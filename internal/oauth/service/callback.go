package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/dropDatabas3/authkit/internal/domain/repository"
	"github.com/dropDatabas3/authkit/internal/events"
	"github.com/dropDatabas3/authkit/internal/oauth/providers"
	"github.com/dropDatabas3/authkit/internal/oauth/state"
	"github.com/dropDatabas3/authkit/internal/observability/logger"
	"github.com/dropDatabas3/authkit/internal/session"
)

// CallbackRequest completes a login flow.
type CallbackRequest struct {
	Tenant       string
	Provider     string
	Code         string
	State        string
	RedirectURI  string
	CodeVerifier string
}

// LoginResult has the same shape as a password login. With Requires2FA the
// tokens hold only a step-up token.
type LoginResult struct {
	User        *repository.User
	Tokens      *session.Pair
	Requires2FA bool
	// Created is true when the callback registered a new user.
	Created bool
}

func (s *oauthService) Callback(ctx context.Context, req CallbackRequest) (res *LoginResult, err error) {
	provider := strings.ToLower(strings.TrimSpace(req.Provider))
	log := s.log(ctx, "callback").With(logger.Provider(provider), logger.TenantID(req.Tenant))
	defer func() { s.observe(provider, "callback", err) }()

	if req.Code == "" || req.State == "" {
		return nil, fmt.Errorf("%w: code and state required", ErrInvalidRequest)
	}
	claims, err := s.state.Verify(req.State, state.Expect{Provider: provider, RedirectURI: req.RedirectURI})
	if err != nil {
		log.Warn("state rejected", logger.Err(err))
		return nil, err
	}
	// callback es sólo login; link tiene su propio endpoint
	if claims.Mode != state.ModeLogin {
		return nil, fmt.Errorf("%w: expected login, got %s", ErrStateModeMismatch, claims.Mode)
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
	if strings.TrimSpace(profile.Email) == "" {
		return nil, ErrEmailRequired
	}
	sealed, err := s.sealTokens(tokens)
	if err != nil {
		return nil, fmt.Errorf("seal tokens: %w", err)
	}

	user, created, err := s.resolveIdentity(ctx, profile, sealed)
	if errors.Is(err, ErrUserDisabled) {
		log.Warn("inactive user attempted social login")
		return nil, err
	}
	if err != nil {
		return nil, err
	}
	log = log.With(logger.UserID(user.ID))
	if created {
		log.Info("user registered via social login")
		s.events.Emit(ctx, events.UserRegistered{
			Tenant: req.Tenant, UserID: user.ID, Email: user.Email,
			Method: events.MethodSocial, Provider: provider,
		})
	}
	if !user.IsActive {
		log.Warn("inactive user attempted social login")
		return nil, ErrUserDisabled
	}

	res = &LoginResult{User: user, Created: created}
	if user.TwoFactorEnabled {
		res.Requires2FA = true
		if res.Tokens, err = s.sessions.IssueStepUp(req.Tenant, user.ID); err != nil {
			return nil, fmt.Errorf("issue step-up token: %w", err)
		}
	} else {
		if res.Tokens, err = s.sessions.Issue(ctx, req.Tenant, user.ID); err != nil {
			return nil, fmt.Errorf("issue session: %w", err)
		}
		now := s.now().UTC()
		if err := s.users.UpdateLastLogin(ctx, user.ID, now); err != nil {
			log.Warn("update last login failed", logger.Err(err))
		} else {
			user.LastLoginAt = &now
		}
	}

	s.events.Emit(ctx, events.UserLoggedIn{
		Tenant: req.Tenant, UserID: user.ID, Method: events.MethodSocial,
		Provider: provider, Requires2FA: res.Requires2FA,
	})
	log.Info("social login completed", logger.Bool("requires_2fa", res.Requires2FA))
	return res, nil
}

// resolveIdentity maps a profile to a local user:
//  1. an existing link for (provider, subject) logs in its owner; an orphaned
//     link is deleted and resolution continues;
//  2. a user with the profile email gets the link, unless that user is
//     disabled or already links a different identity of the same provider;
//  3. otherwise a new user is registered with the link.
//
// Stored tokens are replaced with sealed in every branch.
func (s *oauthService) resolveIdentity(ctx context.Context, profile *providers.Profile, sealed repository.SocialTokens) (*repository.User, bool, error) {
	log := s.log(ctx, "resolve_identity").With(logger.Provider(profile.Provider))

	acc, err := s.social.GetByProvider(ctx, profile.Provider, profile.ProviderUserID)
	switch {
	case err == nil:
		user, uerr := s.users.GetByID(ctx, acc.UserID)
		if uerr == nil {
			if err := s.social.UpdateTokens(ctx, acc.ID, sealed); err != nil {
				return nil, false, fmt.Errorf("update social tokens: %w", err)
			}
			return user, false, nil
		}
		if !repository.IsNotFound(uerr) {
			return nil, false, fmt.Errorf("load link owner: %w", uerr)
		}
		log.Warn("orphaned social account removed", logger.String("social_account_id", acc.ID))
		if err := s.social.Delete(ctx, acc.ID); err != nil && !repository.IsNotFound(err) {
			return nil, false, fmt.Errorf("delete orphaned link: %w", err)
		}
	case !repository.IsNotFound(err):
		return nil, false, fmt.Errorf("lookup social account: %w", err)
	}

	user, err := s.users.GetByEmail(ctx, profile.Email)
	switch {
	case err == nil:
		if !user.IsActive {
			return nil, false, ErrUserDisabled
		}
		if err := s.linkExistingUser(ctx, user, profile, sealed); err != nil {
			return nil, false, err
		}
		return user, false, nil
	case !repository.IsNotFound(err):
		return nil, false, fmt.Errorf("lookup user by email: %w", err)
	}

	user, err = s.users.Create(ctx, repository.CreateUserInput{
		Email:             profile.Email,
		IsVerified:        profile.EmailVerified != nil && *profile.EmailVerified,
		HasUsablePassword: false,
	})
	if repository.IsConflict(err) {
		// otra request registró el mismo email entre el lookup y el insert
		if user, err = s.users.GetByEmail(ctx, profile.Email); err != nil {
			return nil, false, fmt.Errorf("reload user after conflict: %w", err)
		}
		if !user.IsActive {
			return nil, false, ErrUserDisabled
		}
		if err := s.linkExistingUser(ctx, user, profile, sealed); err != nil {
			return nil, false, err
		}
		return user, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("create user: %w", err)
	}
	if _, err := s.social.Create(ctx, linkInput(user.ID, profile, sealed)); err != nil {
		if repository.IsConflict(err) {
			return nil, false, ErrAlreadyLinked
		}
		return nil, false, fmt.Errorf("create social account: %w", err)
	}
	return user, true, nil
}

func (s *oauthService) linkExistingUser(ctx context.Context, user *repository.User, profile *providers.Profile, sealed repository.SocialTokens) error {
	existing, err := s.social.GetByUserAndProvider(ctx, user.ID, profile.Provider)
	switch {
	case err == nil:
		if existing.ProviderUserID != profile.ProviderUserID {
			return ErrIdentityMismatch
		}
		if err := s.social.UpdateTokens(ctx, existing.ID, sealed); err != nil {
			return fmt.Errorf("update social tokens: %w", err)
		}
		return nil
	case !repository.IsNotFound(err):
		return fmt.Errorf("lookup user link: %w", err)
	}

	if _, err := s.social.Create(ctx, linkInput(user.ID, profile, sealed)); err != nil {
		if repository.IsConflict(err) {
			return ErrAlreadyLinked
		}
		return fmt.Errorf("create social account: %w", err)
	}
	return nil
}

func linkInput(userID string, profile *providers.Profile, sealed repository.SocialTokens) repository.CreateSocialAccountInput {
	return repository.CreateSocialAccountInput{
		UserID:           userID,
		Provider:         profile.Provider,
		ProviderUserID:   profile.ProviderUserID,
		ProviderEmail:    optional(profile.Email),
		ProviderUsername: optional(profile.Username),
		Tokens:           sealed,
	}
}

func logProviderFailure(log *zap.Logger, err error) {
	f, ok := providers.AsFailure(err)
	if !ok {
		log.Warn("provider call failed", logger.Err(err))
		return
	}
	log.Warn("provider call failed",
		logger.String("kind", string(f.Kind)),
		logger.Int("status", f.Status),
		logger.String("provider_error", f.Code),
		logger.String("provider_error_description", f.Description),
		logger.Err(f.Err),
	)
}
