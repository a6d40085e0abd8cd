package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Observe(t *testing.T) {
	m, err := New(nil)
	require.NoError(t, err)

	m.ObserveHTTP("POST", "/oauth/{provider}/callback", 200, 20*time.Millisecond)
	m.ObserveFlow("google", "callback", "ok")
	m.ObserveFlow("google", "callback", "ok")
	m.ObserveEvent("user_registered", "delivered")
	m.ObserveProviderCall("github", "exchange", "ok", time.Second)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.HTTPRequests.WithLabelValues("POST", "/oauth/{provider}/callback", "200")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.OAuthFlows.WithLabelValues("google", "callback", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Events.WithLabelValues("user_registered", "delivered")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.ProviderCalls))
}

func TestMetrics_Handler(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := New(reg)
	require.NoError(t, err)
	m.ObserveFlow("apple", "authorize", "ok")

	rr := httptest.NewRecorder()
	m.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `authkit_oauth_flows_total{op="authorize",outcome="ok",provider="apple"} 1`)
}

func TestMetrics_RegisterPoolNilStat(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := New(reg)
	require.NoError(t, err)
	require.NoError(t, m.RegisterPool(reg, func() *pgxpool.Stat { return nil }))
	n, err := testutil.GatherAndCount(reg, "authkit_db_pool_total_conns", "authkit_db_pool_idle_conns", "authkit_db_pool_acquired_conns")
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}
