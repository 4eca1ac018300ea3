package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollector_NilIsNoop(t *testing.T) {
	var c *Collector
	assert.NotPanics(t, func() {
		c.SessionLaunched("demo", "shared")
		c.SessionDeleted()
		c.SessionsSwept(3)
		c.SetSessionsTracked(1)
		c.AppCacheHit()
		c.AppCacheMiss()
		c.CollaboratorFailure("store.delete")
		c.ObserveHTTP(http.MethodGet, "/health", 200, time.Millisecond)
	})
}

func TestCollector_Counters(t *testing.T) {
	c := NewCollector("test")

	c.SessionLaunched("demo", "shared")
	c.SessionLaunched("demo", "shared")
	c.SessionsSwept(3)
	c.SetSessionsTracked(2)
	c.AppCacheMiss()
	c.AppCacheHit()
	c.AppCacheHit()

	assert.Equal(t, 2.0, testutil.ToFloat64(c.sessionsLaunched.WithLabelValues("demo", "shared")))
	assert.Equal(t, 3.0, testutil.ToFloat64(c.sessionsSwept))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.sessionsTracked))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.appCacheHits))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.appCacheMisses))
}

func TestCollector_Handler(t *testing.T) {
	c := NewCollector("test")
	c.ObserveHTTP(http.MethodGet, "/platform/apps", 200, 5*time.Millisecond)

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), `test_http_requests_total{method="GET",route="/platform/apps",status="200"} 1`))
}
