package observability

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// TracerName is the instrumentation scope for every flowcanvas span.
const TracerName = "flowcanvas"

// globalTracer resolves the tracer on each call so a provider installed
// after startup still receives spans.
func globalTracer() trace.Tracer {
	return otel.Tracer(TracerName)
}

// SpanManager handles trace span lifecycle.
// Use NewSpanManager() for OTel tracing or NoopSpanManager{} when disabled.
type SpanManager interface {
	// StartRunSpan starts a span covering one workflow run.
	StartRunSpan(ctx context.Context, graphID, runID string) (context.Context, trace.Span)

	// StartInvokeSpan starts a child span for the external model call.
	StartInvokeSpan(ctx context.Context, model string) (context.Context, trace.Span)

	// EndSpanWithError completes a span, optionally recording an error.
	EndSpanWithError(span trace.Span, err error)

	// AddSpanEvent adds an event to the current span in context.
	AddSpanEvent(ctx context.Context, name string, attrs ...attribute.KeyValue)
}

// otelSpanManager implements SpanManager using OpenTelemetry.
// A nil tracer means the global provider.
type otelSpanManager struct {
	tracer trace.Tracer
}

// NewSpanManager returns a SpanManager that uses the global OTel provider.
func NewSpanManager() SpanManager {
	return &otelSpanManager{}
}

// NewSpanManagerWithTracer returns a SpanManager that starts spans on tracer.
func NewSpanManagerWithTracer(tracer trace.Tracer) SpanManager {
	return &otelSpanManager{tracer: tracer}
}

func (m *otelSpanManager) tracerOrGlobal() trace.Tracer {
	if m.tracer != nil {
		return m.tracer
	}
	return globalTracer()
}

func (m *otelSpanManager) StartRunSpan(ctx context.Context, graphID, runID string) (context.Context, trace.Span) {
	return startRunSpan(ctx, m.tracerOrGlobal(), graphID, runID)
}

func (m *otelSpanManager) StartInvokeSpan(ctx context.Context, model string) (context.Context, trace.Span) {
	return startInvokeSpan(ctx, m.tracerOrGlobal(), model)
}

func (m *otelSpanManager) EndSpanWithError(span trace.Span, err error) {
	EndSpanWithError(span, err)
}

func (m *otelSpanManager) AddSpanEvent(ctx context.Context, name string, attrs ...attribute.KeyValue) {
	AddSpanEvent(ctx, name, attrs...)
}

// StartRunSpan starts a span for a workflow run on the global tracer.
func StartRunSpan(ctx context.Context, graphID, runID string) (context.Context, trace.Span) {
	return startRunSpan(ctx, globalTracer(), graphID, runID)
}

func startRunSpan(ctx context.Context, tracer trace.Tracer, graphID, runID string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "flowcanvas.run",
		trace.WithAttributes(
			attribute.String("graph.id", graphID),
			attribute.String("run.id", runID),
		),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
}

// StartInvokeSpan starts a client span for the model call on the global tracer.
// The credential is never recorded.
func StartInvokeSpan(ctx context.Context, model string) (context.Context, trace.Span) {
	return startInvokeSpan(ctx, globalTracer(), model)
}

func startInvokeSpan(ctx context.Context, tracer trace.Tracer, model string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "flowcanvas.invoke",
		trace.WithAttributes(
			attribute.String("llm.model", model),
		),
		trace.WithSpanKind(trace.SpanKindClient),
	)
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
