package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dropDatabas3/authkit/internal/domain/repository"
)

type socialAccounts struct{ s *Store }

const socialColumns = `id, user_id, provider, provider_user_id, provider_email, provider_username,
	access_token_enc, refresh_token_enc, id_token_enc, token_type, scope, expires_at,
	created_at, updated_at`

func scanSocial(row interface{ Scan(...any) error }) (*repository.SocialAccount, error) {
	var (
		a                                  repository.SocialAccount
		email, username                    sql.NullString
		access, refresh, idTok, typ, scope sql.NullString
		expires                            sql.NullInt64
		createdAt, updatedAt               int64
	)
	err := row.Scan(&a.ID, &a.UserID, &a.Provider, &a.ProviderUserID, &email, &username,
		&access, &refresh, &idTok, &typ, &scope, &expires, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	a.ProviderEmail = strPtr(email)
	a.ProviderUsername = strPtr(username)
	a.AccessTokenEnc = strPtr(access)
	a.RefreshTokenEnc = strPtr(refresh)
	a.IDTokenEnc = strPtr(idTok)
	a.TokenType = strPtr(typ)
	a.Scope = strPtr(scope)
	a.ExpiresAt = timePtr(expires)
	a.CreatedAt = fromMillis(createdAt)
	a.UpdatedAt = fromMillis(updatedAt)
	return &a, nil
}

func (r socialAccounts) GetByProvider(ctx context.Context, provider, providerUserID string) (*repository.SocialAccount, error) {
	return scanSocial(r.s.db.QueryRowContext(ctx,
		`SELECT `+socialColumns+` FROM social_account WHERE provider = ? AND provider_user_id = ?`,
		provider, providerUserID))
}

func (r socialAccounts) GetByUserAndProvider(ctx context.Context, userID, provider string) (*repository.SocialAccount, error) {
	return scanSocial(r.s.db.QueryRowContext(ctx,
		`SELECT `+socialColumns+` FROM social_account WHERE user_id = ? AND provider = ?`,
		userID, provider))
}

func (r socialAccounts) ListByUser(ctx context.Context, userID string) ([]repository.SocialAccount, error) {
	rows, err := r.s.db.QueryContext(ctx,
		`SELECT `+socialColumns+` FROM social_account WHERE user_id = ? ORDER BY created_at, rowid`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []repository.SocialAccount
	for rows.Next() {
		a, err := scanSocial(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

func (r socialAccounts) Create(ctx context.Context, in repository.CreateSocialAccountInput) (*repository.SocialAccount, error) {
	now := r.s.now().UTC().Truncate(time.Millisecond)
	a := &repository.SocialAccount{
		ID:               uuid.NewString(),
		UserID:           in.UserID,
		Provider:         in.Provider,
		ProviderUserID:   in.ProviderUserID,
		ProviderEmail:    in.ProviderEmail,
		ProviderUsername: in.ProviderUsername,
		SocialTokens:     in.Tokens,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	t := in.Tokens
	_, err := r.s.db.ExecContext(ctx, `
		INSERT INTO social_account (id, user_id, provider, provider_user_id, provider_email, provider_username,
			access_token_enc, refresh_token_enc, id_token_enc, token_type, scope, expires_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.UserID, a.Provider, a.ProviderUserID, a.ProviderEmail, a.ProviderUsername,
		t.AccessTokenEnc, t.RefreshTokenEnc, t.IDTokenEnc, t.TokenType, t.Scope, nullMillis(t.ExpiresAt),
		toMillis(now), toMillis(now))
	if isUniqueViolation(err) {
		return nil, fmt.Errorf("sqlite: social account %s/%s: %w", in.Provider, in.ProviderUserID, repository.ErrConflict)
	}
	if err != nil {
		return nil, err
	}
	return a, nil
}

func (r socialAccounts) UpdateTokens(ctx context.Context, id string, t repository.SocialTokens) error {
	res, err := r.s.db.ExecContext(ctx, `
		UPDATE social_account SET
			access_token_enc  = COALESCE(?, access_token_enc),
			refresh_token_enc = COALESCE(?, refresh_token_enc),
			id_token_enc      = COALESCE(?, id_token_enc),
			token_type        = COALESCE(?, token_type),
			scope             = COALESCE(?, scope),
			expires_at        = COALESCE(?, expires_at),
			updated_at        = ?
		WHERE id = ?`,
		t.AccessTokenEnc, t.RefreshTokenEnc, t.IDTokenEnc, t.TokenType, t.Scope, nullMillis(t.ExpiresAt),
		toMillis(r.s.now()), id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (r socialAccounts) Delete(ctx context.Context, id string) error {
	res, err := r.s.db.ExecContext(ctx, `DELETE FROM social_account WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return requireRow(res)
}
