// Package middleware contains HTTP middleware functions for request processing
package middleware

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Total HTTP requests partitioned by method, route, and status code
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests processed",
		},
		[]string{"method", "route", "status"},
	)

	// Request duration in seconds partitioned by method, route, and status code
	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)

	// In-flight HTTP requests
	httpInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_inflight_requests",
			Help: "Number of HTTP requests currently being served",
		},
	)

	otpSendsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "otp_sends_total",
			Help: "Total OTP send attempts by outcome",
		},
		[]string{"outcome"},
	)

	otpVerificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "otp_verifications_total",
			Help: "Total OTP verification attempts by outcome",
		},
		[]string{"outcome"},
	)

	deliveryStageUpdatesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "delivery_stage_updates_total",
			Help: "Total delivery stage updates by target stage",
		},
		[]string{"stage"},
	)
)

// Metrics returns a Fiber v3 middleware that records basic Prometheus metrics.
// Labels are kept low-cardinality by using the matched route path when available.
func Metrics() fiber.Handler {
	return func(c fiber.Ctx) error {
		start := time.Now()
		httpInFlight.Inc()
		defer httpInFlight.Dec()

		err := c.Next()

		status := c.Response().StatusCode()
		method := c.Method()
		route := c.Path()
		if r := c.Route(); r != nil && r.Path != "" {
			route = r.Path // Use route template to avoid high cardinality
		}

		labels := prometheus.Labels{
			"method": method,
			"route":  route,
			"status": strconv.Itoa(status),
		}
		httpRequestsTotal.With(labels).Inc()
		httpRequestDuration.With(labels).Observe(time.Since(start).Seconds())

		return err
	}
}

// RecordOTPSend counts one OTP send attempt. outcome is one of: sent,
// rate_limited, dispatch_failed, error.
func RecordOTPSend(outcome string) {
	otpSendsTotal.WithLabelValues(outcome).Inc()
}

// RecordOTPVerification counts one verification attempt. outcome is one of:
// verified, invalid_code, not_found, attempts_exceeded, error.
func RecordOTPVerification(outcome string) {
	otpVerificationsTotal.WithLabelValues(outcome).Inc()
}

// RecordDeliveryStageUpdate counts one stage update by target stage
func RecordDeliveryStageUpdate(stage string) {
	deliveryStageUpdatesTotal.WithLabelValues(stage).Inc()
}
