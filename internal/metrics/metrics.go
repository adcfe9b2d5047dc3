package metrics

import (
	"context"
	"fmt"
	"strings"
	"time"

	"outfit-studio/internal/config"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
)

const meterName = "outfit-studio"

// Generation outcomes
const (
	OutcomeSuccess  = "success"
	OutcomeRejected = "rejected"
	OutcomeFailed   = "failed"
	OutcomeInvalid  = "invalid"
)

// AppMetrics holds all application metrics
type AppMetrics struct {
	GenerationRequests metric.Int64Counter
	GenerationAttempts metric.Int64Counter
	GenerationDuration metric.Float64Histogram

	AnalyticsEventsSent       metric.Int64Counter
	AnalyticsDeliveryFailures metric.Int64Counter

	OrdersCompleted       metric.Int64Counter
	SessionStateRecovered metric.Int64Counter
}

// New registers every instrument on meter.
func New(meter metric.Meter) (*AppMetrics, error) {
	m := &AppMetrics{}
	var err error

	if m.GenerationRequests, err = meter.Int64Counter("generation_requests_total",
		metric.WithDescription("Generation requests by outcome")); err != nil {
		return nil, fmt.Errorf("failed to create generation_requests_total: %w", err)
	}
	if m.GenerationAttempts, err = meter.Int64Counter("generation_attempts_total",
		metric.WithDescription("Billable calls made to the image service")); err != nil {
		return nil, fmt.Errorf("failed to create generation_attempts_total: %w", err)
	}
	if m.GenerationDuration, err = meter.Float64Histogram("generation_duration_seconds",
		metric.WithDescription("End-to-end generation latency including retries"),
		metric.WithUnit("s")); err != nil {
		return nil, fmt.Errorf("failed to create generation_duration_seconds: %w", err)
	}
	if m.AnalyticsEventsSent, err = meter.Int64Counter("analytics_events_sent_total",
		metric.WithDescription("Analytics events delivered by topic")); err != nil {
		return nil, fmt.Errorf("failed to create analytics_events_sent_total: %w", err)
	}
	if m.AnalyticsDeliveryFailures, err = meter.Int64Counter("analytics_delivery_failures_total",
		metric.WithDescription("Analytics events that could not be delivered, by topic")); err != nil {
		return nil, fmt.Errorf("failed to create analytics_delivery_failures_total: %w", err)
	}
	if m.OrdersCompleted, err = meter.Int64Counter("orders_completed_total",
		metric.WithDescription("Completed checkouts")); err != nil {
		return nil, fmt.Errorf("failed to create orders_completed_total: %w", err)
	}
	if m.SessionStateRecovered, err = meter.Int64Counter("session_state_recovered_total",
		metric.WithDescription("Corrupted session entries discarded on restore")); err != nil {
		return nil, fmt.Errorf("failed to create session_state_recovered_total: %w", err)
	}

	return m, nil
}

// NewNoop returns metrics that record nothing.
func NewNoop() *AppMetrics {
	m, _ := New(noop.NewMeterProvider().Meter(meterName))
	return m
}

// InitMetrics wires an OTLP/HTTP exporter when an endpoint is configured and
// falls back to no-op instruments otherwise. The returned function flushes and
// shuts the provider down.
func InitMetrics(ctx context.Context, cfg config.MetricsConfig) (*AppMetrics, func(context.Context) error, error) {
	if cfg.OTLPEndpoint == "" {
		return NewNoop(), func(context.Context) error { return nil }, nil
	}

	res, err := resource.New(ctx,
		resource.WithFromEnv(),
		resource.WithAttributes(
			attribute.String("service.name", cfg.ServiceName),
			attribute.String("service.version", cfg.ServiceVersion),
		),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create resource: %w", err)
	}

	exporterOpts := []otlpmetrichttp.Option{
		otlpmetrichttp.WithEndpoint(cfg.OTLPEndpoint),
		otlpmetrichttp.WithURLPath("/v1/metrics"),
	}
	if cfg.OTLPHeaders != "" {
		exporterOpts = append(exporterOpts, otlpmetrichttp.WithHeaders(parseHeaders(cfg.OTLPHeaders)))
	}
	if cfg.OTLPInsecure {
		exporterOpts = append(exporterOpts, otlpmetrichttp.WithInsecure())
	}

	exporter, err := otlpmetrichttp.New(ctx, exporterOpts...)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create OTLP metric exporter: %w", err)
	}

	interval := cfg.Interval
	if interval <= 0 {
		interval = 30 * time.Second
	}

	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(interval))),
	)
	otel.SetMeterProvider(provider)

	m, err := New(provider.Meter(meterName))
	if err != nil {
		_ = provider.Shutdown(ctx)
		return nil, nil, err
	}
	return m, provider.Shutdown, nil
}

func (m *AppMetrics) RecordGeneration(ctx context.Context, outcome string, started time.Time) {
	attrs := metric.WithAttributes(attribute.String("outcome", outcome))
	m.GenerationRequests.Add(ctx, 1, attrs)
	m.GenerationDuration.Record(ctx, time.Since(started).Seconds(), attrs)
}

func (m *AppMetrics) RecordGenerationAttempt(ctx context.Context, provider string) {
	m.GenerationAttempts.Add(ctx, 1, metric.WithAttributes(attribute.String("provider", provider)))
}

func (m *AppMetrics) RecordAnalytics(ctx context.Context, topic string, delivered bool) {
	attrs := metric.WithAttributes(attribute.String("topic", topic))
	if delivered {
		m.AnalyticsEventsSent.Add(ctx, 1, attrs)
		return
	}
	m.AnalyticsDeliveryFailures.Add(ctx, 1, attrs)
}

func (m *AppMetrics) RecordOrder(ctx context.Context, analyticsDelivered bool) {
	m.OrdersCompleted.Add(ctx, 1, metric.WithAttributes(attribute.Bool("analytics_delivered", analyticsDelivered)))
}

func (m *AppMetrics) RecordStateRecovered(ctx context.Context, entry string) {
	m.SessionStateRecovered.Add(ctx, 1, metric.WithAttributes(attribute.String("entry", entry)))
}

// parseHeaders parses "k1=v1,k2=v2" into a header map.
func parseHeaders(raw string) map[string]string {
	headers := make(map[string]string)
	for _, pair := range strings.Split(raw, ",") {
		key, value, ok := strings.Cut(strings.TrimSpace(pair), "=")
		if !ok || key == "" {
			continue
		}
		headers[strings.TrimSpace(key)] = strings.TrimSpace(value)
	}
	return headers
}
