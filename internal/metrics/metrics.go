// Package metrics owns the Prometheus collectors of the service and the
// echo middleware that records per-route request metrics.
package metrics

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "content_platform_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "route", "status"},
	)
	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "content_platform_http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
	sessionFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auth_session_failures_total",
			Help: "Requests rejected by the session guard, by reason",
		},
		[]string{"reason"},
	)
	tokensIssued = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auth_tokens_issued_total",
			Help: "Signed tokens, by kind",
		},
		[]string{"kind"},
	)
	permissionDenied = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "permission_denied_total",
			Help: "Requests denied by the permission resolver, by resource",
		},
		[]string{"resource"},
	)
	moderationTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "moderation_transitions_total",
			Help: "Tweet status changes, by source status, target status and actor role",
		},
		[]string{"from", "to", "role"},
	)
)

func init() {
	prometheus.MustRegister(httpRequestsTotal)
	prometheus.MustRegister(httpRequestDuration)
	prometheus.MustRegister(sessionFailures)
	prometheus.MustRegister(tokensIssued)
	prometheus.MustRegister(permissionDenied)
	prometheus.MustRegister(moderationTransitions)
}

func SessionFailure(reason string) { sessionFailures.WithLabelValues(reason).Inc() }

func TokenIssued(kind string) { tokensIssued.WithLabelValues(kind).Inc() }

func PermissionDenied(resource string) { permissionDenied.WithLabelValues(resource).Inc() }

// Transition records a status change.  Unchanged statuses are not counted.
func Transition(from, to, role string) {
	if from == to {
		return
	}
	moderationTransitions.WithLabelValues(from, to, role).Inc()
}

// Handler serves the default registry in the Prometheus text format.
func Handler() echo.HandlerFunc { return echo.WrapHandler(promhttp.Handler()) }

// Middleware records request count and latency labelled by the route
// template, so path parameters do not explode label cardinality.
func Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			// the error is rendered here so the recorded status is the one sent
			if err := next(c); err != nil {
				c.Error(err)
			}
			status := c.Response().Status
			route := c.Path()
			if route == "" {
				route = "unmatched"
			}
			method := c.Request().Method
			httpRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
			httpRequestDuration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
			return nil
		}
	}
}
