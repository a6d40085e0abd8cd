package pg

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/authkit/internal/domain/repository"
)

func TestIsUniqueViolation(t *testing.T) {
	assert.True(t, isUniqueViolation(fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505"})))
	assert.False(t, isUniqueViolation(&pgconn.PgError{Code: "23503"}))
	assert.False(t, isUniqueViolation(errors.New("x")))
}

func TestNotFound(t *testing.T) {
	assert.ErrorIs(t, notFound(pgx.ErrNoRows), repository.ErrNotFound)
	other := errors.New("x")
	assert.Equal(t, other, notFound(other))
}

// Requiere una base real: AUTH_KIT_TEST_PG_DSN=postgres://... go test ./internal/store/pg
func TestStore_Integration(t *testing.T) {
	dsn := os.Getenv("AUTH_KIT_TEST_PG_DSN")
	if dsn == "" {
		t.Skip("AUTH_KIT_TEST_PG_DSN not set")
	}
	ctx := context.Background()
	s, err := New(ctx, dsn, PoolConfig{MaxConns: 4})
	require.NoError(t, err)
	defer s.Close()
	_, err = s.Migrate(ctx)
	require.NoError(t, err)

	email := fmt.Sprintf("it-%s@example.com", t.Name())
	_, _ = s.Pool().Exec(ctx, `DELETE FROM app_user WHERE LOWER(email) = LOWER($1)`, email)

	u, err := s.Users().Create(ctx, repository.CreateUserInput{Email: email})
	require.NoError(t, err)
	_, err = s.Users().Create(ctx, repository.CreateUserInput{Email: email})
	require.ErrorIs(t, err, repository.ErrConflict)

	acc, err := s.SocialAccounts().Create(ctx, repository.CreateSocialAccountInput{
		UserID: u.ID, Provider: "google", ProviderUserID: "it-" + u.ID,
	})
	require.NoError(t, err)
	_, err = s.SocialAccounts().Create(ctx, repository.CreateSocialAccountInput{
		UserID: u.ID, Provider: "google", ProviderUserID: "other-" + u.ID,
	})
	require.ErrorIs(t, err, repository.ErrConflict)

	access := "v1:x"
	require.NoError(t, s.SocialAccounts().UpdateTokens(ctx, acc.ID, repository.SocialTokens{AccessTokenEnc: &access}))
	got, err := s.SocialAccounts().GetByProvider(ctx, "google", "it-"+u.ID)
	require.NoError(t, err)
	assert.Equal(t, access, *got.AccessTokenEnc)

	n, err := s.Passkeys().CountByUser(ctx, u.ID)
	require.NoError(t, err)
	assert.Zero(t, n)

	require.NoError(t, s.SocialAccounts().Delete(ctx, acc.ID))
	_, err = s.Pool().Exec(ctx, `DELETE FROM app_user WHERE id = $1`, u.ID)
	require.NoError(t, err)
}
