package metrics

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestCheckoutMetricsExportsCountersAndHistogram(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewCheckoutMetrics(reg)
	metrics.Observe("cart", "created", 250*time.Millisecond)
	metrics.Observe("cart", "upstream_failure", 10*time.Millisecond)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}

	if got, err := fetchCounterValue(mfs, "checkout_attempts_total", "outcome", "created"); err != nil {
		t.Fatalf("fetch created: %v", err)
	} else if got != 1 {
		t.Fatalf("expected created=1, got %f", got)
	}
	if got, err := fetchHistogramSum(mfs, "checkout_duration_seconds", "source", "cart"); err != nil {
		t.Fatalf("fetch duration: %v", err)
	} else if got <= 0.25 {
		t.Fatalf("expected duration sum > 0.25, got %f", got)
	}
}

func TestWebhookAndOutboxCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	webhooks := NewWebhookMetrics(reg)
	outbox := NewOutboxMetrics(reg)

	webhooks.IncEvent("payment_intent.succeeded", "applied")
	webhooks.IncEvent("payment_intent.succeeded", "applied")
	outbox.IncPublished("order_paid")
	outbox.IncFailed("order_paid")
	outbox.IncDeadLettered("order_paid", "max_attempts")

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	if got, err := fetchCounterValue(mfs, "payment_webhook_events_total", "event_type", "payment_intent.succeeded"); err != nil || got != 2 {
		t.Fatalf("expected webhook counter 2, got %f err=%v", got, err)
	}
	for _, name := range []string{"outbox_published_total", "outbox_publish_failures_total", "outbox_dead_lettered_total"} {
		if got, err := fetchCounterValue(mfs, name, "event_type", "order_paid"); err != nil || got != 1 {
			t.Fatalf("%s: expected 1, got %f err=%v", name, got, err)
		}
	}
}

func TestHTTPMetricsAndHandler(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewHTTPMetrics(reg)
	metrics.Observe(http.MethodPost, "/api/v1/orders", http.StatusCreated, 20*time.Millisecond)

	rec := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `http_requests_total{method="POST",route="/api/v1/orders",status="201"} 1`) {
		t.Fatalf("exposition missing request counter:\n%s", rec.Body.String())
	}
}

func TestNilMetricsAreNoops(t *testing.T) {
	var checkout *CheckoutMetrics
	checkout.Observe("cart", "created", time.Second)
	NewWebhookMetrics(nil).IncEvent("x", "y")
	NewOutboxMetrics(nil).IncPublished("x")
	NewHTTPMetrics(nil).Observe("GET", "/", 200, time.Second)
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
