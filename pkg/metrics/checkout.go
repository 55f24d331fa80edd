package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// CheckoutMetrics counts outcomes along the purchase path.
type CheckoutMetrics struct {
	submissions  *prometheus.CounterVec
	initiations  *prometheus.CounterVec
	statusChecks *prometheus.CounterVec
}

// NewCheckoutMetrics registers the checkout counters on the provided registerer.
func NewCheckoutMetrics(reg prometheus.Registerer) *CheckoutMetrics {
	if reg == nil {
		return &CheckoutMetrics{}
	}
	submissions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "order_submissions_total",
		Help:      "Order submissions by outcome.",
	}, []string{"outcome"})
	initiations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "payment_initiations_total",
		Help:      "Hosted payment initiations by outcome.",
	}, []string{"outcome"})
	statusChecks := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "payment_status_checks_total",
		Help:      "Payment status checks by observed result.",
	}, []string{"result"})
	reg.MustRegister(submissions, initiations, statusChecks)
	return &CheckoutMetrics{
		submissions:  submissions,
		initiations:  initiations,
		statusChecks: statusChecks,
	}
}

func (c *CheckoutMetrics) IncSubmission(outcome string) {
	if c == nil || c.submissions == nil {
		return
	}
	c.submissions.WithLabelValues(normalizeLabel(outcome)).Inc()
}

func (c *CheckoutMetrics) IncInitiation(outcome string) {
	if c == nil || c.initiations == nil {
		return
	}
	c.initiations.WithLabelValues(normalizeLabel(outcome)).Inc()
}

func (c *CheckoutMetrics) IncStatusCheck(result string) {
	if c == nil || c.statusChecks == nil {
		return
	}
	c.statusChecks.WithLabelValues(normalizeLabel(result)).Inc()
}

// CommerceMetrics records latency and breaker state of the commerce API client.
type CommerceMetrics struct {
	latency *prometheus.HistogramVec
	breaker *prometheus.GaugeVec
}

func NewCommerceMetrics(reg prometheus.Registerer) *CommerceMetrics {
	if reg == nil {
		return &CommerceMetrics{}
	}
	latency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "commerce_request_duration_seconds",
		Help:      "Latency of commerce API calls.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"endpoint", "outcome"})
	breaker := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "commerce_breaker_state",
		Help:      "Circuit breaker state of the commerce API client (0 closed, 1 half-open, 2 open).",
	}, []string{"name"})
	reg.MustRegister(latency, breaker)
	return &CommerceMetrics{latency: latency, breaker: breaker}
}

func (c *CommerceMetrics) ObserveRequest(endpoint, outcome string, duration time.Duration) {
	if c == nil || c.latency == nil {
		return
	}
	c.latency.WithLabelValues(normalizeLabel(endpoint), normalizeLabel(outcome)).Observe(duration.Seconds())
}

func (c *CommerceMetrics) SetBreakerState(name string, state int) {
	if c == nil || c.breaker == nil {
		return
	}
	c.breaker.WithLabelValues(normalizeLabel(name)).Set(float64(state))
}
