// Package oauth holds the HTTP handlers of the social login endpoints.
package oauth

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/dropDatabas3/authkit/internal/http/errors"
	"github.com/dropDatabas3/authkit/internal/http/helpers"
	mw "github.com/dropDatabas3/authkit/internal/http/middlewares"
	"github.com/dropDatabas3/authkit/internal/oauth/service"
	"github.com/dropDatabas3/authkit/internal/oauth/state"
	"github.com/dropDatabas3/authkit/internal/observability/logger"
)

const (
	maxCodeLen     = 2048
	maxStateLen    = 4096
	maxRedirectLen = 2048
	maxScopeLen    = 512
)

// Controller maps the OAuth endpoints onto service.OAuthService.
type Controller struct {
	svc service.OAuthService
}

func NewController(svc service.OAuthService) *Controller {
	return &Controller{svc: svc}
}

// Providers handles GET /oauth/providers.
func (c *Controller) Providers(w http.ResponseWriter, r *http.Request) {
	names := c.svc.Providers(r.Context(), mw.GetTenant(r.Context()))
	if names == nil {
		names = []string{}
	}
	helpers.WriteJSON(w, http.StatusOK, map[string]any{"providers": names})
}

// ProviderInfo handles GET /oauth/providers/info.
func (c *Controller) ProviderInfo(w http.ResponseWriter, r *http.Request) {
	helpers.WriteJSON(w, http.StatusOK, map[string]any{
		"providers": c.svc.ProviderInfo(r.Context(), mw.GetTenant(r.Context())),
	})
}

// Authorize handles POST /oauth/{provider}/authorize. Link mode needs an
// authenticated caller (OptionalAuth on the route).
func (c *Controller) Authorize(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	provider := chi.URLParam(r, "provider")
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("oauth.authorize"), logger.Provider(provider))

	var req authorizeRequest
	if appErr := helpers.ReadJSON(w, r, &req); appErr != nil {
		errors.WriteError(w, appErr)
		return
	}
	if appErr := validateRedirect(req.RedirectURI); appErr != nil {
		errors.WriteError(w, appErr)
		return
	}
	if len(req.Scope) > maxScopeLen {
		errors.WriteError(w, errors.ErrBadRequest.WithDetail("scope too long"))
		return
	}
	method := req.CodeChallengeMethod
	if method == "" {
		method = "S256"
	}

	res, err := c.svc.Authorize(ctx, service.AuthorizeRequest{
		Tenant:              mw.GetTenant(ctx),
		Provider:            provider,
		RedirectURI:         req.RedirectURI,
		CodeChallenge:       req.CodeChallenge,
		CodeChallengeMethod: method,
		Mode:                state.Mode(strings.ToLower(req.Mode)),
		Scope:               req.Scope,
		CallerID:            mw.GetUserID(ctx),
	})
	if err != nil {
		writeServiceError(w, log, err)
		return
	}
	helpers.WriteJSON(w, http.StatusOK, authorizeResponse{
		Provider:         res.Provider,
		AuthorizationURL: res.AuthorizationURL,
		State:            res.State,
	})
}

// Callback handles POST /oauth/{provider}/callback.
func (c *Controller) Callback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	provider := chi.URLParam(r, "provider")
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("oauth.callback"), logger.Provider(provider))

	req, ok := readCallback(w, r)
	if !ok {
		return
	}
	res, err := c.svc.Callback(ctx, service.CallbackRequest{
		Tenant:       mw.GetTenant(ctx),
		Provider:     provider,
		Code:         req.Code,
		State:        req.State,
		RedirectURI:  req.RedirectURI,
		CodeVerifier: req.CodeVerifier,
	})
	if err != nil {
		writeServiceError(w, log, err)
		return
	}
	helpers.WriteJSON(w, http.StatusOK, toLoginResponse(res))
}

// Links handles GET /oauth/links.
func (c *Controller) Links(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("oauth.links"))

	res, err := c.svc.Links(ctx, mw.GetUserID(ctx))
	if err != nil {
		writeServiceError(w, log, err)
		return
	}
	helpers.WriteJSON(w, http.StatusOK, res)
}

// Link handles POST /oauth/links/{provider}/link.
func (c *Controller) Link(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	provider := chi.URLParam(r, "provider")
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("oauth.link"), logger.Provider(provider))

	req, ok := readCallback(w, r)
	if !ok {
		return
	}
	res, err := c.svc.Link(ctx, service.LinkRequest{
		CallbackRequest: service.CallbackRequest{
			Tenant:       mw.GetTenant(ctx),
			Provider:     provider,
			Code:         req.Code,
			State:        req.State,
			RedirectURI:  req.RedirectURI,
			CodeVerifier: req.CodeVerifier,
		},
		CallerID: mw.GetUserID(ctx),
	})
	if err != nil {
		writeServiceError(w, log, err)
		return
	}
	helpers.WriteJSON(w, http.StatusOK, linkResponse{
		Success:  true,
		Provider: res.Provider,
		Message:  "Social account linked successfully",
	})
}

// Unlink handles DELETE /oauth/links/{provider}.
func (c *Controller) Unlink(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	provider := strings.ToLower(chi.URLParam(r, "provider"))
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("oauth.unlink"), logger.Provider(provider))

	if err := c.svc.Unlink(ctx, mw.GetTenant(ctx), mw.GetUserID(ctx), provider); err != nil {
		writeServiceError(w, log, err)
		return
	}
	helpers.WriteJSON(w, http.StatusOK, linkResponse{
		Success:  true,
		Provider: provider,
		Message:  "Social account unlinked successfully",
	})
}

// RefreshLink handles POST /oauth/links/{provider}/refresh.
func (c *Controller) RefreshLink(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	provider := chi.URLParam(r, "provider")
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("oauth.refresh_link"), logger.Provider(provider))

	res, err := c.svc.RefreshLinkTokens(ctx, mw.GetTenant(ctx), mw.GetUserID(ctx), provider)
	if err != nil {
		writeServiceError(w, log, err)
		return
	}
	helpers.WriteJSON(w, http.StatusOK, refreshLinkResponse{Success: true, Provider: res.Provider, ExpiresAt: res.ExpiresAt})
}

func readCallback(w http.ResponseWriter, r *http.Request) (callbackRequest, bool) {
	var req callbackRequest
	if appErr := helpers.ReadJSON(w, r, &req); appErr != nil {
		errors.WriteError(w, appErr)
		return req, false
	}
	req.Code = strings.TrimSpace(req.Code)
	req.State = strings.TrimSpace(req.State)
	switch {
	case req.Code == "" || req.State == "" || req.CodeVerifier == "":
		errors.WriteError(w, errors.ErrMissingFields.WithDetail("code, state and code_verifier are required"))
		return req, false
	case len(req.Code) > maxCodeLen:
		errors.WriteError(w, errors.ErrBadRequest.WithDetail("code too long"))
		return req, false
	case len(req.State) > maxStateLen:
		errors.WriteError(w, errors.ErrStateInvalid)
		return req, false
	}
	if appErr := validateRedirect(req.RedirectURI); appErr != nil {
		errors.WriteError(w, appErr)
		return req, false
	}
	return req, true
}

// validateRedirect exige una URL absoluta http(s). El allowlist de
// redirects es responsabilidad del provider (registrado en su consola).
func validateRedirect(raw string) *errors.AppError {
	if raw == "" {
		return errors.ErrMissingFields.WithDetail("redirect_uri is required")
	}
	if len(raw) > maxRedirectLen {
		return errors.ErrBadRequest.WithDetail("redirect_uri too long")
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" || (u.Scheme != "https" && u.Scheme != "http") || u.Fragment != "" {
		return errors.ErrBadRequest.WithDetail("redirect_uri must be an absolute http(s) URL without fragment")
	}
	return nil
}
