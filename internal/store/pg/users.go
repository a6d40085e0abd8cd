package pg

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dropDatabas3/authkit/internal/domain/repository"
)

type users struct{ pool *pgxpool.Pool }

const userColumns = `id::text, email, first_name, is_active, is_verified, has_usable_password,
	two_factor_enabled, last_login_at, created_at, updated_at`

func scanUser(row pgx.Row) (*repository.User, error) {
	var u repository.User
	err := row.Scan(&u.ID, &u.Email, &u.FirstName, &u.IsActive, &u.IsVerified, &u.HasUsablePassword,
		&u.TwoFactorEnabled, &u.LastLoginAt, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	return &u, nil
}

func (r users) GetByID(ctx context.Context, id string) (*repository.User, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, repository.ErrNotFound
	}
	return scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM app_user WHERE id = $1`, id))
}

func (r users) GetByEmail(ctx context.Context, email string) (*repository.User, error) {
	return scanUser(r.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM app_user WHERE LOWER(email) = LOWER($1) LIMIT 1`,
		repository.NormalizeEmail(email)))
}

func (r users) Create(ctx context.Context, in repository.CreateUserInput) (*repository.User, error) {
	id := uuid.NewString()
	email := repository.NormalizeEmail(in.Email)
	u, err := scanUser(r.pool.QueryRow(ctx, `
		INSERT INTO app_user (id, email, first_name, is_verified, has_usable_password)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+userColumns,
		id, email, in.FirstName, in.IsVerified, in.HasUsablePassword))
	if isUniqueViolation(err) {
		return nil, fmt.Errorf("pg: user %s: %w", email, repository.ErrConflict)
	}
	return u, err
}

func (r users) UpdateLastLogin(ctx context.Context, id string, at time.Time) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE app_user SET last_login_at = $2, updated_at = NOW() WHERE id = $1`, id, at)
	if err != nil {
		return err
	}
	return requireRow(tag)
}

type passkeys struct{ pool *pgxpool.Pool }

func (r passkeys) CountByUser(ctx context.Context, userID string) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM passkey WHERE user_id = $1`, userID).Scan(&n)
	return n, err
}
