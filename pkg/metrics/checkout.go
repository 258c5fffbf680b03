package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// CheckoutMetrics records sale submissions made by the checkout coordinator.
type CheckoutMetrics struct {
	attempts *prometheus.CounterVec
	success  prometheus.Counter
	failure  *prometheus.CounterVec
	duration prometheus.Histogram
}

// NewCheckoutMetrics registers the checkout collectors on the provided registerer.
func NewCheckoutMetrics(reg prometheus.Registerer) *CheckoutMetrics {
	if reg == nil {
		return &CheckoutMetrics{}
	}
	attempts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pos_checkout_attempts_total",
		Help: "Checkout attempts by payment method.",
	}, []string{"payment_method"})
	success := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "pos_checkout_success_total",
		Help: "Sales committed by the backend.",
	})
	failure := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pos_checkout_failure_total",
		Help: "Failed checkouts by reason.",
	}, []string{"reason"})
	duration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "pos_checkout_submit_duration_seconds",
		Help:    "Latency of the sale submission call.",
		Buckets: prometheus.DefBuckets,
	})
	reg.MustRegister(attempts, success, failure, duration)
	return &CheckoutMetrics{
		attempts: attempts,
		success:  success,
		failure:  failure,
		duration: duration,
	}
}

// IncAttempt counts a submission for the given payment method.
func (m *CheckoutMetrics) IncAttempt(paymentMethod string) {
	if m == nil || m.attempts == nil {
		return
	}
	m.attempts.WithLabelValues(normalizeLabel(paymentMethod)).Inc()
}

// IncSuccess counts a committed sale.
func (m *CheckoutMetrics) IncSuccess() {
	if m == nil || m.success == nil {
		return
	}
	m.success.Inc()
}

// IncFailure counts a failed checkout.
func (m *CheckoutMetrics) IncFailure(reason string) {
	if m == nil || m.failure == nil {
		return
	}
	m.failure.WithLabelValues(normalizeLabel(reason)).Inc()
}

// ObserveSubmit records how long the submission call took.
func (m *CheckoutMetrics) ObserveSubmit(duration time.Duration) {
	if m == nil || m.duration == nil {
		return
	}
	m.duration.Observe(duration.Seconds())
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
