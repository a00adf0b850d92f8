package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// CheckoutMetrics records order creation attempts per checkout path.
type CheckoutMetrics struct {
	duration *prometheus.HistogramVec
	attempts *prometheus.CounterVec
}

// NewCheckoutMetrics registers the checkout metrics on the provided registerer.
func NewCheckoutMetrics(reg prometheus.Registerer) *CheckoutMetrics {
	if reg == nil {
		return &CheckoutMetrics{}
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "checkout_duration_seconds",
		Help:    "Duration of order creation including the gateway call.",
		Buckets: prometheus.DefBuckets,
	}, []string{"source"})
	attempts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "checkout_attempts_total",
		Help: "Order creation attempts by source and outcome.",
	}, []string{"source", "outcome"})
	reg.MustRegister(duration, attempts)
	return &CheckoutMetrics{duration: duration, attempts: attempts}
}

// Observe records one checkout attempt.
func (c *CheckoutMetrics) Observe(source, outcome string, elapsed time.Duration) {
	if c == nil || c.duration == nil {
		return
	}
	c.duration.WithLabelValues(normalizeLabel(source)).Observe(elapsed.Seconds())
	c.attempts.WithLabelValues(normalizeLabel(source), normalizeLabel(outcome)).Inc()
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
