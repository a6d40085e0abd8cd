// Package router wires controllers and middlewares onto a chi mux.
package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	authctrl "github.com/dropDatabas3/authkit/internal/http/controllers/auth"
	healthctrl "github.com/dropDatabas3/authkit/internal/http/controllers/health"
	oauthctrl "github.com/dropDatabas3/authkit/internal/http/controllers/oauth"
	"github.com/dropDatabas3/authkit/internal/http/errors"
	mw "github.com/dropDatabas3/authkit/internal/http/middlewares"
	"github.com/dropDatabas3/authkit/internal/rate"
)

// Deps contains everything the router mounts. Metrics and Limiter are
// optional.
type Deps struct {
	OAuth  *oauthctrl.Controller
	Auth   *authctrl.Controller
	Health *healthctrl.Controller

	Tokens mw.AccessParser

	Metrics        mw.HTTPObserver
	Inflight       mw.Gauge
	MetricsHandler http.Handler

	Limiter       rate.Limiter
	OnRateLimited func(r *http.Request)
}

// New builds the root handler. The OAuth routes are mounted under both
// /auth/oauth and /oauth.
func New(d Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(
		mw.WithRecover(),
		mw.WithRequestID(),
		mw.WithLogging(),
		mw.WithSecurityHeaders(),
	)
	if d.Metrics != nil {
		r.Use(mw.WithMetrics(d.Metrics, d.Inflight))
	}
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) { errors.WriteError(w, errors.ErrNotFound) })
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) { errors.WriteError(w, errors.ErrMethodNotAllowed) })

	if d.Health != nil {
		r.Get("/healthz", d.Health.Healthz)
		r.Get("/readyz", d.Health.Readyz)
	}
	if d.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", d.MetricsHandler)
	}

	limit := mw.WithRateLimit(mw.RateLimitConfig{Limiter: d.Limiter, OnReject: d.OnRateLimited})

	if d.Auth != nil {
		r.Group(func(r chi.Router) {
			r.Use(mw.WithNoStore(), limit)
			r.Post("/auth/refresh", d.Auth.Refresh)
			r.Post("/auth/logout", d.Auth.Logout)
		})
	}
	if d.OAuth != nil {
		oauthRoutes := oauthRouter(d.OAuth, d.Tokens, limit)
		r.Mount("/auth/oauth", oauthRoutes)
		r.Mount("/oauth", oauthRoutes)
	}
	return r
}

func oauthRouter(c *oauthctrl.Controller, tokens mw.AccessParser, limit mw.Middleware) http.Handler {
	r := chi.NewRouter()
	r.Use(mw.WithTenant(), mw.WithNoStore())

	r.Get("/providers", c.Providers)
	r.Get("/providers/info", c.ProviderInfo)

	r.Group(func(r chi.Router) {
		r.Use(limit)
		r.With(mw.OptionalAuth(tokens)).Post("/{provider}/authorize", c.Authorize)
		r.Post("/{provider}/callback", c.Callback)
	})

	r.Route("/links", func(r chi.Router) {
		r.Use(mw.RequireAuth(tokens))
		r.Get("/", c.Links)
		r.With(limit).Post("/{provider}/link", c.Link)
		r.Delete("/{provider}", c.Unlink)
		r.With(limit).Post("/{provider}/refresh", c.RefreshLink)
	})
	return r
}
