package middlewares

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

// HTTPObserver records finished requests. *metrics.Metrics implements it.
type HTTPObserver interface {
	ObserveHTTP(method, route string, status int, elapsed time.Duration)
}

// Gauge is the subset of prometheus.Gauge used for in-flight requests.
type Gauge interface {
	Inc()
	Dec()
}

// WithMetrics usa el patrón de ruta de chi como label para no explotar la
// cardinalidad con ids en el path.
func WithMetrics(obs HTTPObserver, inflight Gauge) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if inflight != nil {
				inflight.Inc()
				defer inflight.Dec()
			}
			start := time.Now()
			rec := record(w)
			next.ServeHTTP(rec, r)

			route := "unmatched"
			if rc := chi.RouteContext(r.Context()); rc != nil {
				if p := rc.RoutePattern(); p != "" {
					route = p
				}
			}
			obs.ObserveHTTP(r.Method, route, rec.status, time.Since(start))
		})
	}
}
