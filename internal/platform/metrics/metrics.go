// Package metrics holds the Prometheus collectors for the sign-up service
// and the echo middleware and handler that expose them.
package metrics

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "camp"

// Metrics is the set of collectors. A nil *Metrics is valid and records
// nothing, so callers never need to guard their calls.
type Metrics struct {
	gatherer prometheus.Gatherer

	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	sessionsActive  prometheus.Gauge
	stepsCompleted  *prometheus.CounterVec
	confirmations   *prometheus.CounterVec
	sendDuration    prometheus.Histogram
	badgeCaptures   *prometheus.CounterVec
}

// New registers the collectors on reg. Passing a fresh prometheus.Registry
// keeps tests isolated from the default registerer.
func New(reg *prometheus.Registry) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		gatherer: reg,
		requestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route, method and status.",
		}, []string{"route", "method", "status"}),
		requestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
		sessionsActive: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "wizard_sessions_active",
			Help:      "Wizard sessions currently held in memory.",
		}),
		stepsCompleted: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "wizard_steps_completed_total",
			Help:      "Steps submitted successfully, by step.",
		}, []string{"step"}),
		confirmations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "confirmation_emails_total",
			Help:      "Confirmation email dispatches by outcome.",
		}, []string{"outcome"}),
		sendDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "confirmation_send_duration_seconds",
			Help:      "Time spent waiting on the email provider.",
			Buckets:   prometheus.DefBuckets,
		}),
		badgeCaptures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "badge_captures_total",
			Help:      "Badge pictures set, by source and outcome.",
		}, []string{"source", "outcome"}),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() echo.HandlerFunc {
	if m == nil {
		return echo.WrapHandler(promhttp.Handler())
	}
	return echo.WrapHandler(promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{}))
}

// Middleware records request counts and latency keyed by the route pattern,
// not the raw path, so session ids do not explode cardinality.
func (m *Metrics) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if m == nil {
				return next(c)
			}
			start := time.Now()
			err := next(c)

			status := c.Response().Status
			if err != nil {
				if he, ok := err.(*echo.HTTPError); ok {
					status = he.Code
				}
			}
			route := c.Path()
			if route == "" {
				route = "unmatched"
			}
			m.requestsTotal.WithLabelValues(route, c.Request().Method, strconv.Itoa(status)).Inc()
			m.requestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
			return err
		}
	}
}

// SetSessions reports the number of live wizard sessions.
func (m *Metrics) SetSessions(n int) {
	if m == nil {
		return
	}
	m.sessionsActive.Set(float64(n))
}

// StepCompleted counts a successful step submission.
func (m *Metrics) StepCompleted(step string) {
	if m == nil {
		return
	}
	m.stepsCompleted.WithLabelValues(step).Inc()
}

// ConfirmationSent counts one dispatch with outcome "sent" or "failed".
func (m *Metrics) ConfirmationSent(outcome string, took time.Duration) {
	if m == nil {
		return
	}
	m.confirmations.WithLabelValues(outcome).Inc()
	m.sendDuration.Observe(took.Seconds())
}

// BadgeCaptured counts a badge upload or camera capture.
func (m *Metrics) BadgeCaptured(source, outcome string) {
	if m == nil {
		return
	}
	m.badgeCaptures.WithLabelValues(source, outcome).Inc()
}
