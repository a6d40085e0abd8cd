package session

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/authkit/internal/cache"
)

func newManager(t *testing.T, c cache.Client, opts ...Option) *Manager {
	t.Helper()
	m, err := New(Config{
		Secret:     []byte("0123456789abcdef0123456789abcdef"),
		Issuer:     "authkit",
		AccessTTL:  30 * time.Minute,
		RefreshTTL: time.Hour,
		StepUpTTL:  5 * time.Minute,
	}, c, opts...)
	require.NoError(t, err)
	return m
}

func TestIssue_AccessAndRefresh(t *testing.T) {
	ctx := context.Background()
	m := newManager(t, cache.NewMemory(""))

	p, err := m.Issue(ctx, "acme", "user-1")
	require.NoError(t, err)
	assert.Equal(t, "bearer", p.TokenType)
	assert.Equal(t, int64(1800), p.ExpiresIn)
	assert.NotEmpty(t, p.RefreshToken)

	c, err := m.ParseAccess(p.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "user-1", c.Subject)
	assert.Equal(t, "acme", c.Tenant)
	assert.NotEmpty(t, c.ID)
}

func TestStepUp_NotAcceptedAsAccess(t *testing.T) {
	m := newManager(t, cache.NewMemory(""))
	p, err := m.IssueStepUp("default", "user-1")
	require.NoError(t, err)
	assert.Empty(t, p.RefreshToken)
	assert.Equal(t, int64(300), p.ExpiresIn)

	_, err = m.ParseAccess(p.AccessToken)
	assert.ErrorIs(t, err, ErrWrongTokenType)

	c, err := m.ParseStepUp(p.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, TypeStepUp, c.Type)
}

func TestParseAccess_Expired(t *testing.T) {
	now := time.Now()
	m := newManager(t, cache.NewMemory(""), WithClock(func() time.Time { return now }))
	p, err := m.Issue(context.Background(), "", "u")
	require.NoError(t, err)

	now = now.Add(31 * time.Minute)
	_, err = m.ParseAccess(p.AccessToken)
	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestParseAccess_ForeignSecret(t *testing.T) {
	m := newManager(t, cache.NewMemory(""))
	other, err := New(Config{Secret: []byte("another-secret-another-secret-xx"), Issuer: "authkit",
		AccessTTL: time.Minute, RefreshTTL: time.Minute, StepUpTTL: time.Minute}, cache.NewMemory(""))
	require.NoError(t, err)

	p, err := other.Issue(context.Background(), "", "u")
	require.NoError(t, err)
	_, err = m.ParseAccess(p.AccessToken)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = m.ParseAccess("not-a-jwt")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestRotate_SingleUse(t *testing.T) {
	mr := miniredis.RunT(t)
	rc, err := cache.NewRedis(context.Background(), cache.Config{Addr: mr.Addr(), Prefix: "authkit"})
	require.NoError(t, err)
	defer rc.Close()

	for name, c := range map[string]cache.Client{"memory": cache.NewMemory(""), "redis": rc} {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			m := newManager(t, c)
			p, err := m.Issue(ctx, "acme", "user-1")
			require.NoError(t, err)

			next, uid, err := m.Rotate(ctx, p.RefreshToken)
			require.NoError(t, err)
			assert.Equal(t, "user-1", uid)
			assert.NotEqual(t, p.RefreshToken, next.RefreshToken)

			_, _, err = m.Rotate(ctx, p.RefreshToken)
			assert.ErrorIs(t, err, ErrRefreshNotFound)

			require.NoError(t, m.Revoke(ctx, next.RefreshToken))
			_, _, err = m.Rotate(ctx, next.RefreshToken)
			assert.ErrorIs(t, err, ErrRefreshNotFound)
		})
	}
}

func TestRefresh_StoredHashed(t *testing.T) {
	mr := miniredis.RunT(t)
	rc, err := cache.NewRedis(context.Background(), cache.Config{Addr: mr.Addr()})
	require.NoError(t, err)
	defer rc.Close()

	m := newManager(t, rc)
	p, err := m.Issue(context.Background(), "", "u")
	require.NoError(t, err)
	for _, k := range mr.Keys() {
		assert.NotContains(t, k, p.RefreshToken)
	}
	assert.True(t, mr.Exists(refreshKey(p.RefreshToken)))
}
