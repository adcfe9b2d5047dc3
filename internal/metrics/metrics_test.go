package metrics

import (
	"context"
	"testing"
	"time"

	"outfit-studio/internal/config"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func TestParseHeaders(t *testing.T) {
	headers := parseHeaders("signoz-ingestion-key=abc, x-tenant = shop ,broken")
	if headers["signoz-ingestion-key"] != "abc" || headers["x-tenant"] != "shop" {
		t.Fatalf("unexpected headers %v", headers)
	}
	if _, ok := headers["broken"]; ok {
		t.Fatal("pairs without '=' must be skipped")
	}
}

func TestInitMetricsWithoutEndpointIsNoop(t *testing.T) {
	m, shutdown, err := InitMetrics(context.Background(), config.MetricsConfig{})
	if err != nil {
		t.Fatalf("InitMetrics failed: %v", err)
	}
	m.RecordGeneration(context.Background(), OutcomeSuccess, time.Now())
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown failed: %v", err)
	}
}

func TestAnalyticsFailuresAreCountedByTopic(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	m, err := New(provider.Meter("test"))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	ctx := context.Background()
	m.RecordAnalytics(ctx, "orders", false)
	m.RecordAnalytics(ctx, "orders", false)
	m.RecordAnalytics(ctx, "combinations", true)

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(ctx, &rm); err != nil {
		t.Fatalf("Collect failed: %v", err)
	}

	var failures int64
	for _, sm := range rm.ScopeMetrics {
		for _, metric := range sm.Metrics {
			if metric.Name != "analytics_delivery_failures_total" {
				continue
			}
			sum := metric.Data.(metricdata.Sum[int64])
			for _, dp := range sum.DataPoints {
				failures += dp.Value
			}
		}
	}
	if failures != 2 {
		t.Fatalf("expected 2 failures, got %d", failures)
	}
}
