package oauth

import (
	stderrors "errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/dropDatabas3/authkit/internal/http/errors"
	"github.com/dropDatabas3/authkit/internal/oauth/providers"
	"github.com/dropDatabas3/authkit/internal/oauth/service"
	"github.com/dropDatabas3/authkit/internal/oauth/state"
	"github.com/dropDatabas3/authkit/internal/observability/logger"
)

// toAppError is the single mapping from service errors to the wire.
func toAppError(err error) *errors.AppError {
	var (
		missing *state.MissingFieldError
		cfgErr  *providers.ConfigError
	)
	switch {
	case errors.IsAppError(err):
		return errors.FromError(err)
	case stderrors.As(err, &cfgErr):
		return errors.ErrConfig.WithCause(err)
	case stderrors.Is(err, service.ErrProviderNotEnabled):
		return errors.ErrProviderNotEnabled.WithCause(err)
	case stderrors.Is(err, service.ErrInvalidRequest):
		return errors.ErrBadRequest.WithDetail(err.Error()).WithCause(err)
	case stderrors.Is(err, state.ErrExpired):
		return errors.ErrStateExpired.WithCause(err)
	case stderrors.Is(err, state.ErrInvalid), stderrors.As(err, &missing):
		return errors.ErrStateInvalid.WithCause(err)
	case stderrors.Is(err, service.ErrStateModeMismatch):
		return errors.ErrStateInvalid.WithDetail("state was issued for a different flow").WithCause(err)
	case stderrors.Is(err, service.ErrLinkUserMismatch):
		return errors.ErrStateInvalid.WithDetail("state was issued for a different user").WithCause(err)
	case stderrors.Is(err, service.ErrPKCEMismatch):
		return errors.ErrPKCEMismatch.WithCause(err)
	case isProviderFailure(err):
		return errors.ErrProviderError.WithCause(err)
	case stderrors.Is(err, service.ErrEmailRequired):
		return errors.ErrEmailRequired.WithCause(err)
	case stderrors.Is(err, service.ErrProviderAlreadyLinked):
		return errors.ErrConflict.WithDetail("this provider is already linked to your account").WithCause(err)
	case stderrors.Is(err, service.ErrIdentityMismatch):
		return errors.ErrConflict.WithDetail("a different account of this provider is linked to the user with this email").WithCause(err)
	case stderrors.Is(err, service.ErrConflict):
		return errors.ErrConflict.WithCause(err)
	case stderrors.Is(err, service.ErrLockout):
		return errors.ErrLockout.WithCause(err)
	case stderrors.Is(err, service.ErrNotLinked):
		return errors.ErrNotLinked.WithCause(err)
	case stderrors.Is(err, service.ErrUserDisabled):
		return errors.ErrAccountDisabled.WithCause(err)
	case stderrors.Is(err, service.ErrUnauthenticated):
		return errors.ErrUnauthorized.WithCause(err)
	case stderrors.Is(err, service.ErrNoRefreshToken):
		return errors.ErrBadRequest.WithDetail("provider did not issue a refresh token").WithCause(err)
	case stderrors.Is(err, service.ErrTokenDecrypt):
		return errors.ErrEncryption.WithCause(err)
	}
	return errors.ErrInternalServerError.WithCause(err)
}

func isProviderFailure(err error) bool {
	_, ok := providers.AsFailure(err)
	return ok
}

// writeServiceError logs server faults at error level (provider failures
// with their full detail) and writes the generic envelope.
func writeServiceError(w http.ResponseWriter, log *zap.Logger, err error) {
	appErr := toAppError(err)
	if f, ok := providers.AsFailure(err); ok {
		log.Warn("provider failure",
			logger.Provider(f.Provider),
			logger.String("kind", string(f.Kind)),
			logger.Int("provider_status", f.Status),
			logger.String("provider_error", f.Code),
			logger.String("provider_error_description", f.Description),
			logger.Err(f.Err),
		)
	} else if appErr.HTTPStatus >= http.StatusInternalServerError {
		log.Error("request failed", logger.String("code", appErr.Code), logger.Err(err))
	} else {
		log.Info("request rejected", logger.String("code", appErr.Code), logger.Err(err))
	}
	errors.WriteError(w, appErr)
}
