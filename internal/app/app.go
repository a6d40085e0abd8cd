// Package app is the composition root: it builds every component from a
// config.Config and hands back one http.Handler plus a Close.
package app

import (
	"context"
	"fmt"
	"net/http"
	"slices"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"

	"github.com/dropDatabas3/authkit/internal/cache"
	"github.com/dropDatabas3/authkit/internal/config"
	"github.com/dropDatabas3/authkit/internal/email"
	"github.com/dropDatabas3/authkit/internal/events"
	authctrl "github.com/dropDatabas3/authkit/internal/http/controllers/auth"
	healthctrl "github.com/dropDatabas3/authkit/internal/http/controllers/health"
	oauthctrl "github.com/dropDatabas3/authkit/internal/http/controllers/oauth"
	mw "github.com/dropDatabas3/authkit/internal/http/middlewares"
	"github.com/dropDatabas3/authkit/internal/http/router"
	"github.com/dropDatabas3/authkit/internal/metrics"
	"github.com/dropDatabas3/authkit/internal/oauth/builtin"
	"github.com/dropDatabas3/authkit/internal/oauth/providers"
	"github.com/dropDatabas3/authkit/internal/oauth/service"
	"github.com/dropDatabas3/authkit/internal/oauth/state"
	"github.com/dropDatabas3/authkit/internal/observability/logger"
	"github.com/dropDatabas3/authkit/internal/rate"
	"github.com/dropDatabas3/authkit/internal/security/tokencipher"
	"github.com/dropDatabas3/authkit/internal/session"
	"github.com/dropDatabas3/authkit/internal/store/pg"
)

// App holds the built service.
type App struct {
	Handler  http.Handler
	Registry *providers.Registry
	OAuth    service.OAuthService

	closers []func() error
}

// Close libera recursos en orden inverso al de creación.
func (a *App) Close() error {
	var first error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil && first == nil {
			first = err
		}
	}
	a.closers = nil
	return first
}

func (a *App) onClose(f func() error) { a.closers = append(a.closers, f) }

// Build wires the service. On error everything already opened is closed.
func Build(ctx context.Context, cfg *config.Config) (_ *App, err error) {
	log := logger.L().With(logger.Layer("app"))
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	a := &App{}
	defer func() {
		if err != nil {
			_ = a.Close()
		}
	}()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m, err := metrics.New(reg)
	if err != nil {
		return nil, fmt.Errorf("metrics: %w", err)
	}

	// ─── store ───
	st, err := OpenStore(ctx, cfg.Storage)
	if err != nil {
		return nil, err
	}
	a.onClose(st.Close)
	res, err := st.Migrate(ctx)
	if err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	log.Info("migrations checked", logger.Any("applied", res.Applied), logger.String("driver", cfg.Storage.Driver))
	if p, ok := st.(*pg.Store); ok {
		if err := m.RegisterPool(reg, p.Pool().Stat); err != nil {
			return nil, fmt.Errorf("metrics: %w", err)
		}
	}

	// ─── cache (refresh tokens) ───
	kv, err := cache.New(ctx, cache.Config{
		Driver:   cfg.Cache.Kind,
		Addr:     cfg.Cache.Redis.Addr,
		Password: cfg.Cache.Redis.Password,
		DB:       cfg.Cache.Redis.DB,
		Prefix:   "authkit:",
	})
	if err != nil {
		return nil, err
	}
	a.onClose(kv.Close)
	var rdb *redis.Client
	if r, ok := kv.(*cache.Redis); ok {
		rdb = r.Underlying()
	}

	sessions, err := session.New(session.Config{
		Secret:     []byte(cfg.Session.JWTSecret),
		Issuer:     cfg.Session.Issuer,
		AccessTTL:  cfg.Session.AccessTTL,
		RefreshTTL: cfg.Session.RefreshTTL,
		StepUpTTL:  cfg.Session.StepUpTTL,
	}, kv)
	if err != nil {
		return nil, err
	}

	// ─── oauth ───
	cipher, err := newCipher(cfg.OAuth)
	if err != nil {
		return nil, err
	}
	if !cipher.Configured() {
		log.Warn("token_encryption_key not set; provider tokens cannot be stored")
	}
	codec, err := state.New(cfg.StateKey(), cfg.OAuth.StateTTL)
	if err != nil {
		return nil, err
	}
	a.Registry = builtin.NewRegistry(cfg.OAuth, providers.Options{
		HTTPClient: &http.Client{Timeout: cfg.OAuth.HTTPTimeout},
		Observer:   m,
	})
	if err := a.Registry.Preload(ctx, Tenants(cfg.OAuth)...); err != nil {
		return nil, fmt.Errorf("providers: %w", err)
	}

	dispatcher := events.NewDispatcher(events.DispatcherConfig{
		Buffer:      cfg.Events.Buffer,
		DropIfFull:  true,
		SinkTimeout: 5 * time.Second,
	}, m, eventSinks(cfg, rdb, m)...)
	a.onClose(func() error { dispatcher.Close(); return nil })

	a.OAuth, err = service.New(service.Deps{
		Providers: a.Registry,
		State:     codec,
		Cipher:    cipher,
		Store:     st,
		Sessions:  sessions,
		Events:    dispatcher,
		Observer:  m,
	})
	if err != nil {
		return nil, err
	}

	// ─── http ───
	var limiter rate.Limiter
	if cfg.Rate.Enabled {
		if rdb != nil {
			limiter = rate.NewRedisLimiter(rdb, "authkit:rl:", cfg.Rate.Requests, cfg.Rate.Window)
		} else {
			limiter = rate.NewMemoryLimiter(cfg.Rate.Requests, cfg.Rate.Window)
		}
	}
	a.Handler = router.New(router.Deps{
		OAuth: oauthctrl.NewController(a.OAuth),
		Auth:  authctrl.NewController(sessions),
		Health: healthctrl.NewController(cfg.App.Version,
			healthctrl.Check{Name: "store", Ping: st.Ping},
			healthctrl.Check{Name: "cache", Ping: kv.Ping},
		),
		Tokens:         sessions,
		Metrics:        m,
		Inflight:       m.HTTPInflight,
		MetricsHandler: m.Handler(),
		Limiter:        limiter,
		OnRateLimited:  func(r *http.Request) { m.RateLimited.WithLabelValues(r.URL.Path).Inc() },
	})
	return a, nil
}

// Tenants lists the default tenant plus every tenant with overrides.
func Tenants(o config.OAuthConfig) []string {
	out := []string{mw.DefaultTenant}
	for t := range o.Tenants {
		if t != mw.DefaultTenant {
			out = append(out, t)
		}
	}
	slices.Sort(out[1:])
	return out
}

// newCipher devuelve un Cipher sin configurar si no hay clave; sellar falla
// con ErrNotConfigured.
func newCipher(o config.OAuthConfig) (*tokencipher.Cipher, error) {
	key, err := o.EncryptionKey()
	if err != nil {
		return nil, err
	}
	return tokencipher.New(key)
}

func eventSinks(cfg *config.Config, rdb *redis.Client, m *metrics.Metrics) []events.Sink {
	sinks := []events.Sink{events.LogSink{}, events.MetricsSink{Metrics: m}}
	if rdb != nil && cfg.Events.RedisChannel != "" {
		sinks = append(sinks, events.RedisSink{Client: rdb, Channel: cfg.Events.RedisChannel})
	}
	if cfg.Events.WelcomeEmail && cfg.SMTP.Host != "" {
		sinks = append(sinks, events.MailSink{Sender: email.FromConfig(cfg.SMTP), AppName: cfg.App.Name})
	}
	return sinks
}
