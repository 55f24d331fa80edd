package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func TestCheckoutMetricsCountsOutcomes(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewCheckoutMetrics(reg)

	m.IncSubmission("submitted")
	m.IncSubmission("submitted")
	m.IncSubmission("already_submitted")
	m.IncInitiation("redirect")
	m.IncStatusCheck("")

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}

	if got, err := fetchCounterValue(mfs, "storefront_order_submissions_total", "outcome", "submitted"); err != nil || got != 2 {
		t.Fatalf("expected submitted=2, got %f err=%v", got, err)
	}
	if got, err := fetchCounterValue(mfs, "storefront_order_submissions_total", "outcome", "already_submitted"); err != nil || got != 1 {
		t.Fatalf("expected already_submitted=1, got %f err=%v", got, err)
	}
	if got, err := fetchCounterValue(mfs, "storefront_payment_initiations_total", "outcome", "redirect"); err != nil || got != 1 {
		t.Fatalf("expected redirect=1, got %f err=%v", got, err)
	}
	if got, err := fetchCounterValue(mfs, "storefront_payment_status_checks_total", "result", "unknown"); err != nil || got != 1 {
		t.Fatalf("expected empty result to be labelled unknown, got %f err=%v", got, err)
	}
}

func TestCommerceMetricsObserve(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewCommerceMetrics(reg)
	m.ObserveRequest("create_order", "ok", 120*time.Millisecond)
	m.SetBreakerState("commerce", 2)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	if got, err := fetchHistogramSum(mfs, "storefront_commerce_request_duration_seconds", "endpoint", "create_order"); err != nil || got <= 0 {
		t.Fatalf("expected latency sum > 0, got %f err=%v", got, err)
	}
	mf := findMetricFamily(mfs, "storefront_commerce_breaker_state")
	if mf == nil || mf.GetMetric()[0].GetGauge().GetValue() != 2 {
		t.Fatalf("expected breaker gauge 2")
	}
}

func TestNilMetricsAreSafe(t *testing.T) {
	var m *CheckoutMetrics
	m.IncSubmission("x")
	NewCheckoutMetrics(nil).IncInitiation("x")
	var c *CommerceMetrics
	c.ObserveRequest("x", "y", time.Second)
}
