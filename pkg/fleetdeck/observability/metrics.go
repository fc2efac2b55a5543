package observability

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// MetricsRecorder records fleetdeck metrics.
// Use NewMetricsRecorder() for OTel metrics or NoopMetrics{} when disabled.
type MetricsRecorder interface {
	// RecordFetch records a query fetch whose result was applied.
	RecordFetch(ctx context.Context, query string, duration time.Duration, err error)

	// RecordStaleDiscard records a fetch response dropped by last-request-wins.
	RecordStaleDiscard(ctx context.Context, query string)

	// RecordSave records a batch save attempt.
	RecordSave(ctx context.Context, edits int, duration time.Duration, err error)

	// RecordPublish records a bus publish and its delivery count.
	RecordPublish(ctx context.Context, channel string, delivered int)
}

// otelMetrics implements MetricsRecorder using OpenTelemetry.
type otelMetrics struct {
	fetches       metric.Int64Counter
	fetchLatency  metric.Float64Histogram
	fetchErrors   metric.Int64Counter
	staleDiscards metric.Int64Counter
	saves         metric.Int64Counter
	saveLatency   metric.Float64Histogram
	saveEdits     metric.Int64Histogram
	publishes     metric.Int64Counter
	deliveries    metric.Int64Counter
}

var (
	defaultMetrics     *otelMetrics
	defaultMetricsOnce sync.Once
	defaultMetricsErr  error
)

// getDefaultMetrics returns the default OTel metrics instance.
// Lazily initializes the metrics on first call.
func getDefaultMetrics() (*otelMetrics, error) {
	defaultMetricsOnce.Do(func() {
		defaultMetrics, defaultMetricsErr = newOtelMetrics()
	})
	return defaultMetrics, defaultMetricsErr
}

// newOtelMetrics creates a new OTel metrics instance.
func newOtelMetrics() (*otelMetrics, error) {
	meter := otel.Meter("fleetdeck")

	fetches, err := meter.Int64Counter("fleetdeck.query.fetches",
		metric.WithDescription("Number of applied query fetches"),
	)
	if err != nil {
		return nil, err
	}

	fetchLatency, err := meter.Float64Histogram("fleetdeck.query.latency_ms",
		metric.WithDescription("Query fetch latency in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	fetchErrors, err := meter.Int64Counter("fleetdeck.query.errors",
		metric.WithDescription("Number of failed query fetches"),
	)
	if err != nil {
		return nil, err
	}

	staleDiscards, err := meter.Int64Counter("fleetdeck.query.stale_discards",
		metric.WithDescription("Number of fetch responses discarded as stale"),
	)
	if err != nil {
		return nil, err
	}

	saves, err := meter.Int64Counter("fleetdeck.edit.saves",
		metric.WithDescription("Number of batch save attempts"),
	)
	if err != nil {
		return nil, err
	}

	saveLatency, err := meter.Float64Histogram("fleetdeck.edit.latency_ms",
		metric.WithDescription("Batch save latency in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	saveEdits, err := meter.Int64Histogram("fleetdeck.edit.batch_size",
		metric.WithDescription("Number of field edits per saved batch"),
	)
	if err != nil {
		return nil, err
	}

	publishes, err := meter.Int64Counter("fleetdeck.bus.publishes",
		metric.WithDescription("Number of bus publishes"),
	)
	if err != nil {
		return nil, err
	}

	deliveries, err := meter.Int64Counter("fleetdeck.bus.deliveries",
		metric.WithDescription("Number of handler deliveries"),
	)
	if err != nil {
		return nil, err
	}

	return &otelMetrics{
		fetches:       fetches,
		fetchLatency:  fetchLatency,
		fetchErrors:   fetchErrors,
		staleDiscards: staleDiscards,
		saves:         saves,
		saveLatency:   saveLatency,
		saveEdits:     saveEdits,
		publishes:     publishes,
		deliveries:    deliveries,
	}, nil
}

// NewMetricsRecorder returns a MetricsRecorder that uses OpenTelemetry.
// If metrics initialization fails, returns a no-op recorder.
//
// The recorder uses the global OTel meter provider. Configure the provider
// before calling this function:
//
//	import "go.opentelemetry.io/otel"
//	otel.SetMeterProvider(yourProvider)
func NewMetricsRecorder() MetricsRecorder {
	m, err := getDefaultMetrics()
	if err != nil {
		slog.Warn("metrics initialization failed, using no-op recorder",
			slog.String("error", err.Error()))
		return NoopMetrics{}
	}
	return m
}

// RecordFetch records an applied fetch.
func (m *otelMetrics) RecordFetch(ctx context.Context, query string, duration time.Duration, err error) {
	attrs := metric.WithAttributes(attribute.String("query", query))

	m.fetches.Add(ctx, 1, attrs)
	m.fetchLatency.Record(ctx, float64(duration.Milliseconds()), attrs)

	if err != nil {
		m.fetchErrors.Add(ctx, 1, attrs)
	}
}

// RecordStaleDiscard records a discarded response.
func (m *otelMetrics) RecordStaleDiscard(ctx context.Context, query string) {
	m.staleDiscards.Add(ctx, 1, metric.WithAttributes(attribute.String("query", query)))
}

// RecordSave records a save attempt.
func (m *otelMetrics) RecordSave(ctx context.Context, edits int, duration time.Duration, err error) {
	attrs := metric.WithAttributes(attribute.Bool("success", err == nil))
	m.saves.Add(ctx, 1, attrs)
	m.saveLatency.Record(ctx, float64(duration.Milliseconds()), attrs)
	m.saveEdits.Record(ctx, int64(edits), attrs)
}

// RecordPublish records a publish.
func (m *otelMetrics) RecordPublish(ctx context.Context, channel string, delivered int) {
	attrs := metric.WithAttributes(attribute.String("channel", channel))
	m.publishes.Add(ctx, 1, attrs)
	m.deliveries.Add(ctx, int64(delivered), attrs)
}
