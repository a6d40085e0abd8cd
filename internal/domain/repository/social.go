package repository

import (
	"context"
	"time"
)

// SocialAccount links one user to one provider identity.
//
// Unique on (provider, provider_user_id) and on (user_id, provider). Token
// fields hold tokencipher envelopes, never plaintext.
type SocialAccount struct {
	ID               string
	UserID           string
	Provider         string
	ProviderUserID   string
	ProviderEmail    *string
	ProviderUsername *string
	SocialTokens
	CreatedAt time.Time
	UpdatedAt time.Time
}

// SocialTokens are the encrypted token columns. On update a nil field keeps
// the stored value.
type SocialTokens struct {
	AccessTokenEnc  *string
	RefreshTokenEnc *string
	IDTokenEnc      *string
	TokenType       *string
	Scope           *string
	ExpiresAt       *time.Time
}

type CreateSocialAccountInput struct {
	UserID           string
	Provider         string
	ProviderUserID   string
	ProviderEmail    *string
	ProviderUsername *string
	Tokens           SocialTokens
}

// SocialAccountRepository reads and writes social account links.
type SocialAccountRepository interface {
	// GetByProvider finds the link of a provider identity. Returns ErrNotFound.
	GetByProvider(ctx context.Context, provider, providerUserID string) (*SocialAccount, error)

	// GetByUserAndProvider returns ErrNotFound when the user has no link for provider.
	GetByUserAndProvider(ctx context.Context, userID, provider string) (*SocialAccount, error)

	// ListByUser returns the user's links ordered by creation time.
	ListByUser(ctx context.Context, userID string) ([]SocialAccount, error)

	// Create returns ErrConflict when either unique constraint is violated.
	Create(ctx context.Context, in CreateSocialAccountInput) (*SocialAccount, error)

	// UpdateTokens overwrites the non-nil fields of t and bumps updated_at.
	UpdateTokens(ctx context.Context, id string, t SocialTokens) error

	// Delete returns ErrNotFound when id does not exist.
	Delete(ctx context.Context, id string) error
}

// PasskeyRepository is the read-only view of WebAuthn credentials needed
// for lockout checks.
type PasskeyRepository interface {
	CountByUser(ctx context.Context, userID string) (int, error)
}

// Store bundles the repositories of one backend.
type Store interface {
	Users() UserRepository
	SocialAccounts() SocialAccountRepository
	Passkeys() PasskeyRepository
	Ping(ctx context.Context) error
	Close() error
}
