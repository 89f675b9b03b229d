// Package metrics exposes Prometheus collectors for the profile service.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/zhouzirui/profile-service/backend/internal/model/profile"
)

const namespace = "profile_service"

// Collector owns a private registry so tests can create as many as they like.
// It implements profile.Observer and profile.ToggleSkipObserver.
type Collector struct {
	registry *prometheus.Registry

	changes       *prometheus.CounterVec
	profiles      prometheus.Gauge
	toggleSkipped prometheus.Counter
	checks        *prometheus.CounterVec
	rejected      *prometheus.CounterVec
	requests      *prometheus.HistogramVec
}

// New registers all collectors, including the Go runtime ones.
func New() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		changes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "profile_changes_total",
			Help:      "Committed profile mutations by kind.",
		}, []string{"kind"}),
		profiles: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "profiles",
			Help:      "Number of profiles currently stored.",
		}),
		toggleSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "toggle_skipped_total",
			Help:      "Toggles absorbed as no-ops because the target was missing or malformed.",
		}),
		checks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "permission_checks_total",
			Help:      "Permission checks by decision.",
		}, []string{"result"}),
		rejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_rejected_total",
			Help:      "Profile requests rejected by the store, by operation and reason.",
		}, []string{"op", "reason"}),
		requests: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route and status.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
	}

	c.registry.MustRegister(
		c.changes,
		c.profiles,
		c.toggleSkipped,
		c.checks,
		c.rejected,
		c.requests,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return c
}

// Registry exposes the underlying registry, mainly for tests.
func (c *Collector) Registry() *prometheus.Registry { return c.registry }

// ProfileChanged implements profile.Observer.
func (c *Collector) ProfileChanged(change profile.Change) {
	c.changes.WithLabelValues(string(change.Kind)).Inc()
	c.profiles.Set(float64(change.Count))
}

// ToggleSkipped implements profile.ToggleSkipObserver.
func (c *Collector) ToggleSkipped(_, _, _ string) {
	c.toggleSkipped.Inc()
}

// SetProfiles sets the profile gauge; used once at startup for the seed.
func (c *Collector) SetProfiles(n int) {
	c.profiles.Set(float64(n))
}

// ObserveDecision counts a permission check.
func (c *Collector) ObserveDecision(d profile.Decision) {
	c.checks.WithLabelValues(d.String()).Inc()
}

// ObserveRejected counts a store error returned to an HTTP caller.
func (c *Collector) ObserveRejected(op, reason string) {
	c.rejected.WithLabelValues(op, reason).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

// Middleware records request latency labelled by the matched chi route pattern.
func (c *Collector) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		c.requests.WithLabelValues(r.Method, route, strconv.Itoa(status)).Observe(time.Since(start).Seconds())
	})
}
