package metrics

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestCronJobMetricsObserveRun(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewCronJobMetrics(reg)
	m.now = func() time.Time { return time.Unix(1700000000, 0) }

	m.ObserveRun("cart_expiry", 250*time.Millisecond, nil)
	m.ObserveRun("cart_expiry", 100*time.Millisecond, errors.New("boom"))
	m.ObserveRun("", time.Millisecond, nil)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}

	runs := findMetricFamily(mfs, "storefront_cron_runs_total")
	if runs == nil {
		t.Fatalf("runs counter not exported")
	}
	counts := map[string]float64{}
	for _, metric := range runs.GetMetric() {
		if matchesLabel(metric.GetLabel(), "job", "cart_expiry") {
			for _, label := range metric.GetLabel() {
				if label.GetName() == "outcome" {
					counts[label.GetValue()] = metric.GetCounter().GetValue()
				}
			}
		}
	}
	if counts[RunSucceeded] != 1 || counts[RunFailed] != 1 {
		t.Fatalf("unexpected run counts %v", counts)
	}

	if got, err := fetchHistogramSum(mfs, "storefront_cron_run_duration_seconds", "job", "cart_expiry"); err != nil {
		t.Fatalf("fetch duration: %v", err)
	} else if got < 0.34 || got > 0.36 {
		t.Fatalf("expected duration sum 0.35, got %f", got)
	}

	gauge := findMetricFamily(mfs, "storefront_cron_last_success_timestamp_seconds")
	if gauge == nil {
		t.Fatalf("last success gauge not exported")
	}
	for _, metric := range gauge.GetMetric() {
		if matchesLabel(metric.GetLabel(), "job", "cart_expiry") && metric.GetGauge().GetValue() != 1700000000 {
			t.Fatalf("unexpected last success %f", metric.GetGauge().GetValue())
		}
	}

	if _, err := fetchHistogramSum(mfs, "storefront_cron_run_duration_seconds", "job", "unknown"); err != nil {
		t.Fatalf("empty job name should be labelled unknown: %v", err)
	}
}

func TestCronJobMetricsWithoutRegistry(t *testing.T) {
	var nilMetrics *CronJobMetrics
	nilMetrics.ObserveRun("job", time.Second, nil)

	unregistered := NewCronJobMetrics(nil)
	unregistered.ObserveRun("job", time.Second, errors.New("boom"))
}

func fetchCounterValue(mfs []*dto.MetricFamily, name, label, value string) (float64, error) {
	mf := findMetricFamily(mfs, name)
	if mf == nil {
		return 0, fmt.Errorf("metric %q not found", name)
	}
	for _, metric := range mf.GetMetric() {
		if matchesLabel(metric.GetLabel(), label, value) {
			return metric.GetCounter().GetValue(), nil
		}
	}
	return 0, fmt.Errorf("metric %q missing label %s=%s", name, label, value)
}

func fetchHistogramSum(mfs []*dto.MetricFamily, name, label, value string) (float64, error) {
	mf := findMetricFamily(mfs, name)
	if mf == nil {
		return 0, fmt.Errorf("metric %q not found", name)
	}
	for _, metric := range mf.GetMetric() {
		if matchesLabel(metric.GetLabel(), label, value) {
			return metric.GetHistogram().GetSampleSum(), nil
		}
	}
	return 0, fmt.Errorf("histogram %q missing label %s=%s", name, label, value)
}

func findMetricFamily(mfs []*dto.MetricFamily, name string) *dto.MetricFamily {
	for _, mf := range mfs {
		if mf.GetName() == name {
			return mf
		}
	}
	return nil
}

func matchesLabel(labels []*dto.LabelPair, name, value string) bool {
	for _, label := range labels {
		if label.GetName() == name && label.GetValue() == value {
			return true
		}
	}
	return false
}
