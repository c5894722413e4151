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

// MetricsRecorder records workflow metrics.
// Use NewMetricsRecorder() for OTel metrics or NoopMetrics{} when disabled.
type MetricsRecorder interface {
	// RecordRun records a finished run. category is empty on success.
	RecordRun(ctx context.Context, success bool, category string, duration time.Duration)

	// RecordInvocation records one external model call.
	RecordInvocation(ctx context.Context, model string, duration time.Duration, err error)

	// RecordRejected records a run refused by the single-run guard.
	RecordRejected(ctx context.Context)
}

// otelMetrics implements MetricsRecorder using OpenTelemetry.
type otelMetrics struct {
	runs          metric.Int64Counter
	runLatency    metric.Float64Histogram
	invocations   metric.Int64Counter
	invokeLatency metric.Float64Histogram
	invokeErrors  metric.Int64Counter
	rejected      metric.Int64Counter
}

var (
	defaultMetrics     *otelMetrics
	defaultMetricsOnce sync.Once
	defaultMetricsErr  error
)

// getDefaultMetrics lazily builds the instruments on first use.
func getDefaultMetrics() (*otelMetrics, error) {
	defaultMetricsOnce.Do(func() {
		defaultMetrics, defaultMetricsErr = newOtelMetrics(otel.Meter("flowcanvas"))
	})
	return defaultMetrics, defaultMetricsErr
}

func newOtelMetrics(meter metric.Meter) (*otelMetrics, error) {
	runs, err := meter.Int64Counter("flowcanvas.run.count",
		metric.WithDescription("Number of workflow runs"),
	)
	if err != nil {
		return nil, err
	}

	runLatency, err := meter.Float64Histogram("flowcanvas.run.latency_ms",
		metric.WithDescription("Workflow run latency in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	invocations, err := meter.Int64Counter("flowcanvas.invoke.count",
		metric.WithDescription("Number of model invocations"),
	)
	if err != nil {
		return nil, err
	}

	invokeLatency, err := meter.Float64Histogram("flowcanvas.invoke.latency_ms",
		metric.WithDescription("Model invocation latency in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	invokeErrors, err := meter.Int64Counter("flowcanvas.invoke.errors",
		metric.WithDescription("Number of failed model invocations"),
	)
	if err != nil {
		return nil, err
	}

	rejected, err := meter.Int64Counter("flowcanvas.run.rejected",
		metric.WithDescription("Number of runs rejected while another run was in flight"),
	)
	if err != nil {
		return nil, err
	}

	return &otelMetrics{
		runs:          runs,
		runLatency:    runLatency,
		invocations:   invocations,
		invokeLatency: invokeLatency,
		invokeErrors:  invokeErrors,
		rejected:      rejected,
	}, nil
}

// NewMetricsRecorder returns a MetricsRecorder backed by the global OTel
// meter provider. If initialization fails, returns a no-op recorder.
//
// Configure the provider before the first call:
//
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

// NewMetricsRecorderWithMeter builds a recorder on an explicit meter.
func NewMetricsRecorderWithMeter(meter metric.Meter) (MetricsRecorder, error) {
	m, err := newOtelMetrics(meter)
	if err != nil {
		return nil, err
	}
	return m, nil
}

// RecordRun records a run.
func (m *otelMetrics) RecordRun(ctx context.Context, success bool, category string, duration time.Duration) {
	attrs := []attribute.KeyValue{
		attribute.Bool("success", success),
	}
	if category != "" {
		attrs = append(attrs, attribute.String("category", category))
	}
	m.runs.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.runLatency.Record(ctx, float64(duration.Milliseconds()), metric.WithAttributes(attrs...))
}

// RecordInvocation records a model call.
func (m *otelMetrics) RecordInvocation(ctx context.Context, model string, duration time.Duration, err error) {
	attrs := []attribute.KeyValue{
		attribute.String("model", model),
	}
	m.invocations.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.invokeLatency.Record(ctx, float64(duration.Milliseconds()), metric.WithAttributes(attrs...))
	if err != nil {
		m.invokeErrors.Add(ctx, 1, metric.WithAttributes(attrs...))
	}
}

// RecordRejected records a rejected run.
func (m *otelMetrics) RecordRejected(ctx context.Context) {
	m.rejected.Add(ctx, 1)
}
