// Package health serves the liveness and readiness endpoints.
package health

import (
	"context"
	"net/http"
	"time"

	"github.com/dropDatabas3/authkit/internal/http/helpers"
	"github.com/dropDatabas3/authkit/internal/observability/logger"
)

// Check is one readiness dependency (store, cache).
type Check struct {
	Name string
	Ping func(ctx context.Context) error
}

type Controller struct {
	checks  []Check
	timeout time.Duration
	version string
}

func NewController(version string, checks ...Check) *Controller {
	return &Controller{checks: checks, timeout: 2 * time.Second, version: version}
}

// Healthz responde 200 mientras el proceso esté vivo.
func (c *Controller) Healthz(w http.ResponseWriter, _ *http.Request) {
	helpers.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok", "version": c.version})
}

// Readyz pings every dependency; any failure is 503.
func (c *Controller) Readyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), c.timeout)
	defer cancel()

	status := http.StatusOK
	results := make(map[string]string, len(c.checks))
	for _, chk := range c.checks {
		if err := chk.Ping(ctx); err != nil {
			status = http.StatusServiceUnavailable
			results[chk.Name] = "down"
			logger.From(ctx).Warn("readiness check failed", logger.Component(chk.Name), logger.Err(err))
			continue
		}
		results[chk.Name] = "up"
	}
	overall := "ready"
	if status != http.StatusOK {
		overall = "not_ready"
	}
	helpers.WriteJSON(w, status, map[string]any{"status": overall, "checks": results})
}
