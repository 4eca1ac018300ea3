// Package metrics exposes Prometheus instrumentation for the HTTP layer and
// the session registry. A nil *Collector is valid and records nothing.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector holds all platform metrics
type Collector struct {
	registry *prometheus.Registry

	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	sessionsLaunched     *prometheus.CounterVec
	sessionsDeleted      prometheus.Counter
	sessionsSwept        prometheus.Counter
	sessionsTracked      prometheus.Gauge
	appCacheHits         prometheus.Counter
	appCacheMisses       prometheus.Counter
	collaboratorFailures *prometheus.CounterVec
}

// NewCollector registers all metrics on a fresh registry
func NewCollector(namespace string) *Collector {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Collector{
		registry: reg,
		httpRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		httpRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		sessionsLaunched: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "sessions_launched_total",
				Help:      "Total number of launched platform sessions",
			},
			[]string{"app", "user_mode"},
		),
		sessionsDeleted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_deleted_total",
			Help:      "Total number of deleted platform sessions",
		}),
		sessionsSwept: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_expired_swept_total",
			Help:      "Total number of expired sessions removed by cleanup",
		}),
		sessionsTracked: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_tracked",
			Help:      "Number of platform sessions currently held by the registry",
		}),
		appCacheHits: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "app_cache_hits_total",
			Help:      "Application list requests served from cache",
		}),
		appCacheMisses: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "app_cache_misses_total",
			Help:      "Application list requests that rebuilt the cache",
		}),
		collaboratorFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "collaborator_failures_total",
				Help:      "Failed calls to the agent catalog or conversation store",
			},
			[]string{"op"},
		),
	}
}

// Registry exposes the underlying registry, mainly for tests
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the metrics exposition
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

func (c *Collector) ObserveHTTP(method, route string, status int, d time.Duration) {
	if c == nil {
		return
	}
	c.httpRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	c.httpRequestDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

func (c *Collector) SessionLaunched(app, userMode string) {
	if c == nil {
		return
	}
	c.sessionsLaunched.WithLabelValues(app, userMode).Inc()
}

func (c *Collector) SessionDeleted() {
	if c == nil {
		return
	}
	c.sessionsDeleted.Inc()
}

func (c *Collector) SessionsSwept(n int) {
	if c == nil {
		return
	}
	c.sessionsSwept.Add(float64(n))
}

func (c *Collector) SetSessionsTracked(n int) {
	if c == nil {
		return
	}
	c.sessionsTracked.Set(float64(n))
}

func (c *Collector) AppCacheHit() {
	if c == nil {
		return
	}
	c.appCacheHits.Inc()
}

func (c *Collector) AppCacheMiss() {
	if c == nil {
		return
	}
	c.appCacheMisses.Inc()
}

func (c *Collector) CollaboratorFailure(op string) {
	if c == nil {
		return
	}
	c.collaboratorFailures.WithLabelValues(op).Inc()
}
