// Package auth exposes the session endpoints that pair with social login:
// refresh rotation and logout.
package auth

import (
	"context"
	stderrors "errors"
	"net/http"
	"strings"

	"github.com/dropDatabas3/authkit/internal/http/errors"
	"github.com/dropDatabas3/authkit/internal/http/helpers"
	"github.com/dropDatabas3/authkit/internal/observability/logger"
	"github.com/dropDatabas3/authkit/internal/session"
)

// Sessions is implemented by *session.Manager.
type Sessions interface {
	Rotate(ctx context.Context, refresh string) (*session.Pair, string, error)
	Revoke(ctx context.Context, refresh string) error
}

type Controller struct {
	sessions Sessions
}

func NewController(s Sessions) *Controller { return &Controller{sessions: s} }

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

func (c *Controller) read(w http.ResponseWriter, r *http.Request) (string, bool) {
	var req refreshRequest
	if appErr := helpers.ReadJSON(w, r, &req); appErr != nil {
		errors.WriteError(w, appErr)
		return "", false
	}
	tok := strings.TrimSpace(req.RefreshToken)
	if tok == "" || len(tok) > 512 {
		errors.WriteError(w, errors.ErrMissingFields.WithDetail("refresh_token is required"))
		return "", false
	}
	return tok, true
}

// Refresh handles POST /auth/refresh. Each refresh token works once.
func (c *Controller) Refresh(w http.ResponseWriter, r *http.Request) {
	tok, ok := c.read(w, r)
	if !ok {
		return
	}
	pair, userID, err := c.sessions.Rotate(r.Context(), tok)
	if err != nil {
		log := logger.From(r.Context()).With(logger.Layer("controller"), logger.Op("auth.refresh"))
		if stderrors.Is(err, session.ErrRefreshNotFound) {
			log.Info("refresh rejected", logger.Err(err))
			errors.WriteError(w, errors.ErrTokenInvalid.WithDetail("refresh token is invalid or already used"))
			return
		}
		log.Error("refresh failed", logger.Err(err))
		errors.WriteError(w, errors.ErrInternalServerError.WithCause(err))
		return
	}
	logger.From(r.Context()).Debug("session rotated", logger.UserID(userID))
	helpers.WriteJSON(w, http.StatusOK, helpers.TokensFrom(pair))
}

// Logout handles POST /auth/logout; unknown tokens are not an error.
func (c *Controller) Logout(w http.ResponseWriter, r *http.Request) {
	tok, ok := c.read(w, r)
	if !ok {
		return
	}
	if err := c.sessions.Revoke(r.Context(), tok); err != nil {
		logger.From(r.Context()).Error("logout failed", logger.Op("auth.logout"), logger.Err(err))
		errors.WriteError(w, errors.ErrInternalServerError.WithCause(err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
