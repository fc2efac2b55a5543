package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// NoopMetrics is a MetricsRecorder that does nothing.
// Use when metrics are disabled to avoid overhead.
type NoopMetrics struct{}

// Compile-time interface check.
var _ MetricsRecorder = NoopMetrics{}

// RecordFetch does nothing.
func (NoopMetrics) RecordFetch(_ context.Context, _ string, _ time.Duration, _ error) {}

// RecordStaleDiscard does nothing.
func (NoopMetrics) RecordStaleDiscard(_ context.Context, _ string) {}

// RecordSave does nothing.
func (NoopMetrics) RecordSave(_ context.Context, _ int, _ time.Duration, _ error) {}

// RecordPublish does nothing.
func (NoopMetrics) RecordPublish(_ context.Context, _ string, _ int) {}

// NoopSpanManager is a SpanManager that does nothing.
type NoopSpanManager struct{}

// Compile-time interface check.
var _ SpanManager = NoopSpanManager{}

var noopSpan = noop.Span{}

// StartFetchSpan returns the context unchanged and a no-op span.
func (NoopSpanManager) StartFetchSpan(ctx context.Context, _ string, _ uint64) (context.Context, trace.Span) {
	return ctx, noopSpan
}

// StartSaveSpan returns the context unchanged and a no-op span.
func (NoopSpanManager) StartSaveSpan(ctx context.Context, _ int) (context.Context, trace.Span) {
	return ctx, noopSpan
}

// StartPublishSpan returns the context unchanged and a no-op span.
func (NoopSpanManager) StartPublishSpan(ctx context.Context, _ string) (context.Context, trace.Span) {
	return ctx, noopSpan
}

// EndSpanWithError does nothing.
func (NoopSpanManager) EndSpanWithError(_ trace.Span, _ error) {}

// AddSpanEvent does nothing.
func (NoopSpanManager) AddSpanEvent(_ context.Context, _ string, _ ...attribute.KeyValue) {}
