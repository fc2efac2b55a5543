package observability

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// tracer uses the global OTel tracer provider.
var tracer = otel.Tracer("fleetdeck")

// SpanManager handles trace span lifecycle.
// Use NewSpanManager() for OTel tracing or NoopSpanManager{} when disabled.
type SpanManager interface {
	// StartFetchSpan starts a span for a query fetch.
	StartFetchSpan(ctx context.Context, query string, seq uint64) (context.Context, trace.Span)

	// StartSaveSpan starts a span for a batch save.
	StartSaveSpan(ctx context.Context, edits int) (context.Context, trace.Span)

	// StartPublishSpan starts a span for a bus publish.
	StartPublishSpan(ctx context.Context, channel string) (context.Context, trace.Span)

	// EndSpanWithError completes a span, optionally recording an error.
	EndSpanWithError(span trace.Span, err error)

	// AddSpanEvent adds an event to the current span in context.
	AddSpanEvent(ctx context.Context, name string, attrs ...attribute.KeyValue)
}

// otelSpanManager implements SpanManager using OpenTelemetry.
type otelSpanManager struct{}

// NewSpanManager returns a SpanManager that uses OpenTelemetry.
//
// The span manager uses the global OTel tracer provider. Configure the provider
// before calling this function:
//
//	import "go.opentelemetry.io/otel"
//	otel.SetTracerProvider(yourProvider)
func NewSpanManager() SpanManager {
	return &otelSpanManager{}
}

// StartFetchSpan starts a span for a query fetch.
func (m *otelSpanManager) StartFetchSpan(ctx context.Context, query string, seq uint64) (context.Context, trace.Span) {
	return tracer.Start(ctx, "fleetdeck.query.fetch",
		trace.WithAttributes(
			attribute.String("query.name", query),
			attribute.Int64("query.seq", int64(seq)),
		),
		trace.WithSpanKind(trace.SpanKindClient),
	)
}

// StartSaveSpan starts a span for a batch save.
func (m *otelSpanManager) StartSaveSpan(ctx context.Context, edits int) (context.Context, trace.Span) {
	return tracer.Start(ctx, "fleetdeck.edit.save",
		trace.WithAttributes(
			attribute.Int("edit.count", edits),
		),
		trace.WithSpanKind(trace.SpanKindClient),
	)
}

// StartPublishSpan starts a span for a bus publish.
func (m *otelSpanManager) StartPublishSpan(ctx context.Context, channel string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "fleetdeck.bus.publish",
		trace.WithAttributes(
			attribute.String("bus.channel", channel),
		),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
}

// EndSpanWithError completes a span, optionally recording an error.
func (m *otelSpanManager) EndSpanWithError(span trace.Span, err error) {
	EndSpanWithError(span, err)
}

// AddSpanEvent adds an event to the current span.
func (m *otelSpanManager) AddSpanEvent(ctx context.Context, name string, attrs ...attribute.KeyValue) {
	AddSpanEvent(ctx, name, attrs...)
}

// EndSpanWithError completes a span, optionally recording an error.
func EndSpanWithError(span trace.Span, err error) {
	if span == nil {
		return
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

// AddSpanEvent adds an event to the current span in context.
func AddSpanEvent(ctx context.Context, name string, attrs ...attribute.KeyValue) {
	span := trace.SpanFromContext(ctx)
	if span == nil || !span.IsRecording() {
		return
	}
	span.AddEvent(name, trace.WithAttributes(attrs...))
}
