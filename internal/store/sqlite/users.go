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

type users struct{ s *Store }

const userColumns = `id, email, first_name, is_active, is_verified, has_usable_password,
	two_factor_enabled, last_login_at, created_at, updated_at`

func scanUser(row interface{ Scan(...any) error }) (*repository.User, error) {
	var (
		u                  repository.User
		firstName          sql.NullString
		lastLogin          sql.NullInt64
		createdAt, updated int64
	)
	err := row.Scan(&u.ID, &u.Email, &firstName, &u.IsActive, &u.IsVerified, &u.HasUsablePassword,
		&u.TwoFactorEnabled, &lastLogin, &createdAt, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	u.FirstName = strPtr(firstName)
	u.LastLoginAt = timePtr(lastLogin)
	u.CreatedAt = fromMillis(createdAt)
	u.UpdatedAt = fromMillis(updated)
	return &u, nil
}

func (r users) GetByID(ctx context.Context, id string) (*repository.User, error) {
	return scanUser(r.s.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM app_user WHERE id = ?`, id))
}

func (r users) GetByEmail(ctx context.Context, email string) (*repository.User, error) {
	return scanUser(r.s.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM app_user WHERE email = ? COLLATE NOCASE`, repository.NormalizeEmail(email)))
}

func (r users) Create(ctx context.Context, in repository.CreateUserInput) (*repository.User, error) {
	now := r.s.now().UTC().Truncate(time.Millisecond)
	u := &repository.User{
		ID:                uuid.NewString(),
		Email:             repository.NormalizeEmail(in.Email),
		FirstName:         in.FirstName,
		IsActive:          true,
		IsVerified:        in.IsVerified,
		HasUsablePassword: in.HasUsablePassword,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	_, err := r.s.db.ExecContext(ctx, `
		INSERT INTO app_user (id, email, first_name, is_active, is_verified, has_usable_password,
			two_factor_enabled, created_at, updated_at)
		VALUES (?, ?, ?, 1, ?, ?, 0, ?, ?)`,
		u.ID, u.Email, in.FirstName, u.IsVerified, u.HasUsablePassword, toMillis(now), toMillis(now))
	if isUniqueViolation(err) {
		return nil, fmt.Errorf("sqlite: user %s: %w", u.Email, repository.ErrConflict)
	}
	if err != nil {
		return nil, err
	}
	return u, nil
}

func (r users) UpdateLastLogin(ctx context.Context, id string, at time.Time) error {
	res, err := r.s.db.ExecContext(ctx,
		`UPDATE app_user SET last_login_at = ?, updated_at = ? WHERE id = ?`,
		toMillis(at), toMillis(r.s.now()), id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

type passkeys struct{ s *Store }

func (r passkeys) CountByUser(ctx context.Context, userID string) (int, error) {
	var n int
	err := r.s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM passkey WHERE user_id = ?`, userID).Scan(&n)
	return n, err
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return repository.ErrNotFound
	}
	return nil
}
