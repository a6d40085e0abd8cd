package repository

import (
	"context"
	"strings"
	"time"
)

// User is the local account. Password and passkey management belong to
// other parts of the add-on; this service only reads their flags.
type User struct {
	ID                string
	Email             string
	FirstName         *string
	IsActive          bool
	IsVerified        bool
	HasUsablePassword bool
	TwoFactorEnabled  bool
	LastLoginAt       *time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// CreateUserInput holds the fields of a new user. New users are active.
type CreateUserInput struct {
	Email             string
	FirstName         *string
	IsVerified        bool
	HasUsablePassword bool
}

// UserRepository reads and writes users.
type UserRepository interface {
	// GetByID returns ErrNotFound when no user has id.
	GetByID(ctx context.Context, id string) (*User, error)

	// GetByEmail matches case-insensitively. Returns ErrNotFound.
	GetByEmail(ctx context.Context, email string) (*User, error)

	// Create returns ErrConflict if the email is taken.
	Create(ctx context.Context, in CreateUserInput) (*User, error)

	UpdateLastLogin(ctx context.Context, id string, at time.Time) error
}

// NormalizeEmail is the canonical form stored and queried.
func NormalizeEmail(email string) string { return strings.ToLower(strings.TrimSpace(email)) }
