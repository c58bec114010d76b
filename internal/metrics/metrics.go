// Package metrics exposes Prometheus metrics for HTTP traffic and for the
// memorial's own events (sign-ins, tributes, candles, uploads).
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sakif/memorial/internal/service"
)

const namespace = "memorial"

var _ service.Observer = (*Metrics)(nil)

// Metrics owns a registry so that tests (and multiple servers in one
// process) never collide on the global default registerer.
type Metrics struct {
	registry *prometheus.Registry

	requestDuration  *prometheus.HistogramVec
	requestTotal     *prometheus.CounterVec
	requestsInFlight prometheus.Gauge

	logins        *prometheus.CounterVec
	registrations prometheus.Counter
	tributes      *prometheus.CounterVec
	candles       *prometheus.CounterVec
	uploads       *prometheus.CounterVec
}

// New creates and registers every collector, plus the Go runtime and
// process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "HTTP request latency in seconds.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route", "status"},
		),
		requestTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "HTTP requests served.",
			},
			[]string{"method", "route", "status"},
		),
		requestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "in_flight_requests",
				Help:      "HTTP requests currently being served.",
			},
		),

		logins: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "login_attempts_total",
				Help:      "Sign-in attempts by outcome.",
			},
			[]string{"outcome"},
		),
		registrations: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "accounts_registered_total",
				Help:      "Accounts created through self-registration.",
			},
		),
		tributes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "tribute_events_total",
				Help:      "Tributes created and deleted.",
			},
			[]string{"event"},
		),
		candles: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "candle_toggles_total",
				Help:      "Candle toggles by resulting state.",
			},
			[]string{"state"},
		),
		uploads: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "uploads_total",
				Help:      "Files stored by category.",
			},
			[]string{"category"},
		),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.requestDuration,
		m.requestTotal,
		m.requestsInFlight,
		m.logins,
		m.registrations,
		m.tributes,
		m.candles,
		m.uploads,
	)
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Middleware records latency and status per chi route pattern. The
// pattern ("/api/tributes/{id}/candle"), not the raw path, is the label,
// so tribute ids never become label values.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		m.requestsInFlight.Inc()
		defer m.requestsInFlight.Dec()

		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				route = p
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		labels := prometheus.Labels{
			"method": r.Method,
			"route":  route,
			"status": strconv.Itoa(status),
		}

		m.requestDuration.With(labels).Observe(time.Since(start).Seconds())
		m.requestTotal.With(labels).Inc()
	})
}

// =========================================================================
// DOMAIN EVENTS (service.Observer)
// =========================================================================

func (m *Metrics) LoginAttempt(success bool) {
	if success {
		m.logins.WithLabelValues("success").Inc()
		return
	}
	m.logins.WithLabelValues("failure").Inc()
}

func (m *Metrics) AccountRegistered() { m.registrations.Inc() }

func (m *Metrics) TributeCreated() { m.tributes.WithLabelValues("created").Inc() }

func (m *Metrics) TributeDeleted() { m.tributes.WithLabelValues("deleted").Inc() }

func (m *Metrics) CandleToggled(lit bool) {
	if lit {
		m.candles.WithLabelValues("lit").Inc()
		return
	}
	m.candles.WithLabelValues("unlit").Inc()
}

func (m *Metrics) FileUploaded(category string) { m.uploads.WithLabelValues(category).Inc() }
