// Package metrics defines the Prometheus collectors of the service. Every
// collector is owned by a Metrics value registered on an explicit registry.
package metrics

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "authkit"

type Metrics struct {
	HTTPRequests  *prometheus.CounterVec
	HTTPDuration  *prometheus.HistogramVec
	HTTPInflight  prometheus.Gauge
	OAuthFlows    *prometheus.CounterVec
	ProviderCalls *prometheus.HistogramVec
	Events        *prometheus.CounterVec
	RateLimited   *prometheus.CounterVec

	gatherer prometheus.Gatherer
}

// New creates and registers the collectors on reg. A nil reg uses a fresh
// registry, which keeps tests isolated.
func New(reg *prometheus.Registry) (*Metrics, error) {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	m := &Metrics{
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Número total de requests procesadas",
		}, []string{"method", "route", "status"}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Latencia de los requests HTTP",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		HTTPInflight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "http_inflight_requests",
			Help:      "Requests en vuelo",
		}),
		OAuthFlows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "oauth_flows_total",
			Help:      "OAuth operations by provider, operation and outcome",
		}, []string{"provider", "op", "outcome"}),
		ProviderCalls: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "oauth_provider_call_duration_seconds",
			Help:      "Latency of calls to provider token, profile and key endpoints",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"provider", "op", "outcome"}),
		Events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_total",
			Help:      "Domain events by kind and delivery result",
		}, []string{"kind", "result"}),
		RateLimited: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limited_total",
			Help:      "Requests rejected by the rate limiter",
		}, []string{"route"}),
		gatherer: reg,
	}
	for _, c := range []prometheus.Collector{
		m.HTTPRequests, m.HTTPDuration, m.HTTPInflight, m.OAuthFlows,
		m.ProviderCalls, m.Events, m.RateLimited,
	} {
		if err := register(reg, c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func register(reg prometheus.Registerer, c prometheus.Collector) error {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if !errors.As(err, &are) {
			return err
		}
	}
	return nil
}

// Handler serves /metrics for the registry passed to New.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

// ObserveHTTP records one finished request.
func (m *Metrics) ObserveHTTP(method, route string, status int, elapsed time.Duration) {
	m.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.HTTPDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// ObserveProviderCall satisfies providers.Observer.
func (m *Metrics) ObserveProviderCall(provider, op, outcome string, elapsed time.Duration) {
	m.ProviderCalls.WithLabelValues(provider, op, outcome).Observe(elapsed.Seconds())
}

// ObserveFlow counts an orchestrator operation. outcome is "ok" or an error code.
func (m *Metrics) ObserveFlow(provider, op, outcome string) {
	m.OAuthFlows.WithLabelValues(provider, op, outcome).Inc()
}

// ObserveEvent counts an event delivery attempt.
func (m *Metrics) ObserveEvent(kind, result string) {
	m.Events.WithLabelValues(kind, result).Inc()
}

// RegisterPool exposes pgx pool stats as gauges.
func (m *Metrics) RegisterPool(reg prometheus.Registerer, stat func() *pgxpool.Stat) error {
	gauge := func(name, help string, f func(*pgxpool.Stat) float64) prometheus.Collector {
		return prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "db_pool",
			Name:      name,
			Help:      help,
		}, func() float64 {
			s := stat()
			if s == nil {
				return 0
			}
			return f(s)
		})
	}
	for _, c := range []prometheus.Collector{
		gauge("total_conns", "Conexiones totales del pool", func(s *pgxpool.Stat) float64 { return float64(s.TotalConns()) }),
		gauge("idle_conns", "Conexiones ociosas", func(s *pgxpool.Stat) float64 { return float64(s.IdleConns()) }),
		gauge("acquired_conns", "Conexiones en uso", func(s *pgxpool.Stat) float64 { return float64(s.AcquiredConns()) }),
	} {
		if err := register(reg, c); err != nil {
			return err
		}
	}
	return nil
}
