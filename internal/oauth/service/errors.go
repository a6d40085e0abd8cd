package service

import (
	"errors"
	"fmt"

	"github.com/dropDatabas3/authkit/internal/oauth/providers"
	"github.com/dropDatabas3/authkit/internal/oauth/state"
)

// Errors for the OAuth service. State errors (state.ErrExpired,
// state.ErrInvalid, *state.MissingFieldError), provider errors
// (*providers.TokenExchangeError, *providers.ProfileError) and
// *providers.ConfigError pass through wrapped.
var (
	ErrProviderNotEnabled = errors.New("provider not enabled")
	ErrInvalidRequest     = errors.New("invalid request")
	ErrUnauthenticated    = errors.New("authentication required")
	ErrStateModeMismatch  = errors.New("state mode mismatch")
	ErrPKCEMismatch       = errors.New("pkce verification failed")
	ErrEmailRequired      = errors.New("provider did not return an email")
	ErrLinkUserMismatch   = errors.New("link state belongs to another user")
	ErrLockout            = errors.New("unlink would leave the account without a login method")
	ErrNotLinked          = errors.New("provider not linked")
	ErrUserDisabled       = errors.New("user disabled")
	ErrNoRefreshToken     = errors.New("no refresh token stored for provider")
	ErrTokenDecrypt       = errors.New("stored token could not be decrypted")

	// ErrConflict is the base of every linking conflict.
	ErrConflict = errors.New("conflict")
	// ErrAlreadyLinked: the provider identity belongs to a user already.
	ErrAlreadyLinked = fmt.Errorf("%w: provider account already linked", ErrConflict)
	// ErrProviderAlreadyLinked: the caller links this provider already.
	ErrProviderAlreadyLinked = fmt.Errorf("%w: provider already linked to this user", ErrConflict)
	// ErrIdentityMismatch: the email owner links a different identity of the
	// same provider. Never relinked silently.
	ErrIdentityMismatch = fmt.Errorf("%w: a different account of this provider is linked", ErrConflict)
)

// Outcome classifies err for metrics: "ok" or a short code.
func Outcome(err error) string {
	var missing *state.MissingFieldError
	var cfgErr *providers.ConfigError
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, state.ErrExpired):
		return "state_expired"
	case errors.Is(err, state.ErrInvalid), errors.As(err, &missing):
		return "state_invalid"
	case errors.Is(err, ErrPKCEMismatch):
		return "pkce_mismatch"
	case errors.As(err, &cfgErr):
		return "config_error"
	case isProviderFailure(err):
		return "provider_error"
	case errors.Is(err, ErrConflict):
		return "conflict"
	case errors.Is(err, ErrLockout):
		return "lockout"
	case errors.Is(err, ErrUserDisabled):
		return "user_disabled"
	case errors.Is(err, ErrTokenDecrypt):
		return "encryption_error"
	case errors.Is(err, ErrProviderNotEnabled), errors.Is(err, ErrInvalidRequest),
		errors.Is(err, ErrStateModeMismatch), errors.Is(err, ErrEmailRequired),
		errors.Is(err, ErrLinkUserMismatch), errors.Is(err, ErrNotLinked),
		errors.Is(err, ErrUnauthenticated), errors.Is(err, ErrNoRefreshToken):
		return "rejected"
	}
	return "error"
}

func isProviderFailure(err error) bool {
	_, ok := providers.AsFailure(err)
	return ok
}

// asTokenError keeps typed adapter errors and wraps anything else so
// callers always see a provider taxonomy member.
func asTokenError(provider string, err error) error {
	if isProviderFailure(err) {
		return err
	}
	return &providers.TokenExchangeError{Failure: providers.Failure{Provider: provider, Kind: providers.KindProtocol, Err: err}}
}

func asProfileError(provider string, err error) error {
	if isProviderFailure(err) {
		return err
	}
	return &providers.ProfileError{Failure: providers.Failure{Provider: provider, Kind: providers.KindMalformed, Err: err}}
}
