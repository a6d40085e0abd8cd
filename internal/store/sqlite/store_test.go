package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/authkit/internal/domain/repository"
)

func newStore(t *testing.T) *Store {
	t.Helper()
	s, err := OpenMigrated(context.Background(), MemoryDSN)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func ptr[T any](v T) *T { return &v }

func TestMigrate_Idempotent(t *testing.T) {
	ctx := context.Background()
	s, err := OpenMigrated(ctx, filepath.Join(t.TempDir(), "nested", "auth.db"))
	require.NoError(t, err)
	defer s.Close()

	res, err := s.Migrate(ctx)
	require.NoError(t, err)
	assert.Empty(t, res.Applied)
	assert.Equal(t, []int{1, 2}, res.Skipped)
}

func TestUsers_CreateAndLookup(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	u, err := s.Users().Create(ctx, repository.CreateUserInput{Email: " Ana@Example.com ", IsVerified: true})
	require.NoError(t, err)
	assert.Equal(t, "ana@example.com", u.Email)
	assert.True(t, u.IsActive)
	assert.False(t, u.HasUsablePassword)

	got, err := s.Users().GetByEmail(ctx, "ANA@example.COM")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)
	assert.True(t, got.IsVerified)
	assert.Nil(t, got.LastLoginAt)

	_, err = s.Users().Create(ctx, repository.CreateUserInput{Email: "ana@example.com"})
	assert.ErrorIs(t, err, repository.ErrConflict)

	_, err = s.Users().GetByID(ctx, "missing")
	assert.ErrorIs(t, err, repository.ErrNotFound)

	at := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	require.NoError(t, s.Users().UpdateLastLogin(ctx, u.ID, at))
	got, err = s.Users().GetByID(ctx, u.ID)
	require.NoError(t, err)
	require.NotNil(t, got.LastLoginAt)
	assert.True(t, at.Equal(*got.LastLoginAt))

	assert.ErrorIs(t, s.Users().UpdateLastLogin(ctx, "missing", at), repository.ErrNotFound)
}

func TestSocialAccounts_UniqueConstraints(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	u1, err := s.Users().Create(ctx, repository.CreateUserInput{Email: "a@x.com"})
	require.NoError(t, err)
	u2, err := s.Users().Create(ctx, repository.CreateUserInput{Email: "b@x.com"})
	require.NoError(t, err)

	_, err = s.SocialAccounts().Create(ctx, repository.CreateSocialAccountInput{
		UserID: u1.ID, Provider: "google", ProviderUserID: "g-1", ProviderEmail: ptr("a@x.com"),
	})
	require.NoError(t, err)

	// misma identidad, otro usuario
	_, err = s.SocialAccounts().Create(ctx, repository.CreateSocialAccountInput{
		UserID: u2.ID, Provider: "google", ProviderUserID: "g-1",
	})
	assert.ErrorIs(t, err, repository.ErrConflict)

	// mismo usuario, segundo google
	_, err = s.SocialAccounts().Create(ctx, repository.CreateSocialAccountInput{
		UserID: u1.ID, Provider: "google", ProviderUserID: "g-2",
	})
	assert.ErrorIs(t, err, repository.ErrConflict)

	_, err = s.SocialAccounts().Create(ctx, repository.CreateSocialAccountInput{
		UserID: u1.ID, Provider: "github", ProviderUserID: "gh-1",
	})
	require.NoError(t, err)

	list, err := s.SocialAccounts().ListByUser(ctx, u1.ID)
	require.NoError(t, err)
	require.Len(t, list, 2)

	empty, err := s.SocialAccounts().ListByUser(ctx, u2.ID)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestSocialAccounts_UpdateTokensKeepsNilFields(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	u, err := s.Users().Create(ctx, repository.CreateUserInput{Email: "a@x.com"})
	require.NoError(t, err)

	exp := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	acc, err := s.SocialAccounts().Create(ctx, repository.CreateSocialAccountInput{
		UserID: u.ID, Provider: "github", ProviderUserID: "9",
		Tokens: repository.SocialTokens{AccessTokenEnc: ptr("v1:a"), RefreshTokenEnc: ptr("v1:r"), ExpiresAt: &exp},
	})
	require.NoError(t, err)

	require.NoError(t, s.SocialAccounts().UpdateTokens(ctx, acc.ID, repository.SocialTokens{AccessTokenEnc: ptr("v1:a2")}))

	got, err := s.SocialAccounts().GetByUserAndProvider(ctx, u.ID, "github")
	require.NoError(t, err)
	assert.Equal(t, "v1:a2", *got.AccessTokenEnc)
	assert.Equal(t, "v1:r", *got.RefreshTokenEnc)
	assert.Nil(t, got.IDTokenEnc)
	require.NotNil(t, got.ExpiresAt)
	assert.True(t, exp.Equal(*got.ExpiresAt))

	assert.ErrorIs(t, s.SocialAccounts().UpdateTokens(ctx, "missing", repository.SocialTokens{}), repository.ErrNotFound)
}

func TestSocialAccounts_DeleteAndCascade(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	u, err := s.Users().Create(ctx, repository.CreateUserInput{Email: "a@x.com"})
	require.NoError(t, err)
	acc, err := s.SocialAccounts().Create(ctx, repository.CreateSocialAccountInput{UserID: u.ID, Provider: "apple", ProviderUserID: "a-1"})
	require.NoError(t, err)

	require.NoError(t, s.SocialAccounts().Delete(ctx, acc.ID))
	assert.ErrorIs(t, s.SocialAccounts().Delete(ctx, acc.ID), repository.ErrNotFound)

	_, err = s.SocialAccounts().Create(ctx, repository.CreateSocialAccountInput{UserID: u.ID, Provider: "apple", ProviderUserID: "a-1"})
	require.NoError(t, err)
	_, err = s.DB().ExecContext(ctx, `DELETE FROM app_user WHERE id = ?`, u.ID)
	require.NoError(t, err)

	_, err = s.SocialAccounts().GetByProvider(ctx, "apple", "a-1")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestPasskeys_Count(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	u, err := s.Users().Create(ctx, repository.CreateUserInput{Email: "a@x.com"})
	require.NoError(t, err)

	n, err := s.Passkeys().CountByUser(ctx, u.ID)
	require.NoError(t, err)
	assert.Zero(t, n)

	_, err = s.DB().ExecContext(ctx,
		`INSERT INTO passkey (id, user_id, credential_id, public_key, created_at) VALUES ('p1', ?, x'01', x'02', 0)`, u.ID)
	require.NoError(t, err)
	n, err = s.Passkeys().CountByUser(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
