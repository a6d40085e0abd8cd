package pg

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dropDatabas3/authkit/internal/domain/repository"
)

type socialAccounts struct{ pool *pgxpool.Pool }

const socialColumns = `id::text, user_id::text, provider, provider_user_id, provider_email, provider_username,
	access_token_enc, refresh_token_enc, id_token_enc, token_type, scope, expires_at,
	created_at, updated_at`

func scanSocial(row pgx.Row) (*repository.SocialAccount, error) {
	var a repository.SocialAccount
	err := row.Scan(&a.ID, &a.UserID, &a.Provider, &a.ProviderUserID, &a.ProviderEmail, &a.ProviderUsername,
		&a.AccessTokenEnc, &a.RefreshTokenEnc, &a.IDTokenEnc, &a.TokenType, &a.Scope, &a.ExpiresAt,
		&a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	return &a, nil
}

func (r socialAccounts) GetByProvider(ctx context.Context, provider, providerUserID string) (*repository.SocialAccount, error) {
	return scanSocial(r.pool.QueryRow(ctx,
		`SELECT `+socialColumns+` FROM social_account WHERE provider = $1 AND provider_user_id = $2`,
		provider, providerUserID))
}

func (r socialAccounts) GetByUserAndProvider(ctx context.Context, userID, provider string) (*repository.SocialAccount, error) {
	return scanSocial(r.pool.QueryRow(ctx,
		`SELECT `+socialColumns+` FROM social_account WHERE user_id = $1 AND provider = $2`,
		userID, provider))
}

func (r socialAccounts) ListByUser(ctx context.Context, userID string) ([]repository.SocialAccount, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+socialColumns+` FROM social_account WHERE user_id = $1 ORDER BY created_at, id`, userID)
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
	t := in.Tokens
	a, err := scanSocial(r.pool.QueryRow(ctx, `
		INSERT INTO social_account (id, user_id, provider, provider_user_id, provider_email, provider_username,
			access_token_enc, refresh_token_enc, id_token_enc, token_type, scope, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING `+socialColumns,
		uuid.NewString(), in.UserID, in.Provider, in.ProviderUserID, in.ProviderEmail, in.ProviderUsername,
		t.AccessTokenEnc, t.RefreshTokenEnc, t.IDTokenEnc, t.TokenType, t.Scope, t.ExpiresAt))
	if isUniqueViolation(err) {
		return nil, fmt.Errorf("pg: social account %s/%s: %w", in.Provider, in.ProviderUserID, repository.ErrConflict)
	}
	return a, err
}

func (r socialAccounts) UpdateTokens(ctx context.Context, id string, t repository.SocialTokens) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE social_account SET
			access_token_enc  = COALESCE($2, access_token_enc),
			refresh_token_enc = COALESCE($3, refresh_token_enc),
			id_token_enc      = COALESCE($4, id_token_enc),
			token_type        = COALESCE($5, token_type),
			scope             = COALESCE($6, scope),
			expires_at        = COALESCE($7, expires_at),
			updated_at        = NOW()
		WHERE id = $1`,
		id, t.AccessTokenEnc, t.RefreshTokenEnc, t.IDTokenEnc, t.TokenType, t.Scope, t.ExpiresAt)
	if err != nil {
		return err
	}
	return requireRow(tag)
}

func (r socialAccounts) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM social_account WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return requireRow(tag)
}
