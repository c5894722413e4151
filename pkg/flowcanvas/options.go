package flowcanvas

import (
	"log/slog"

	"github.com/randalmurphal/flowcanvas/pkg/flowcanvas/history"
	"github.com/randalmurphal/flowcanvas/pkg/flowcanvas/notify"
	"github.com/randalmurphal/flowcanvas/pkg/flowcanvas/observability"
)

// engineConfig holds the engine's collaborators.
type engineConfig struct {
	logger         *slog.Logger
	metrics        observability.MetricsRecorder
	spans          observability.SpanManager
	tracingEnabled bool
	notifier       notify.Notifier
	history        history.Store
}

func defaultEngineConfig() engineConfig {
	return engineConfig{
		logger:   slog.Default(),
		metrics:  observability.NoopMetrics{},
		spans:    observability.NoopSpanManager{},
		notifier: notify.Discard,
	}
}

// Option configures an Engine.
type Option func(*engineConfig)

// WithLogger sets the logger. Each run enriches it with run_id and graph_id.
func WithLogger(logger *slog.Logger) Option {
	return func(c *engineConfig) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithMetrics enables OpenTelemetry metrics through the global meter provider.
// Default: disabled
func WithMetrics(enabled bool) Option {
	return func(c *engineConfig) {
		if enabled {
			c.metrics = observability.NewMetricsRecorder()
		} else {
			c.metrics = observability.NoopMetrics{}
		}
	}
}

// WithMetricsRecorder sets a specific metrics recorder.
func WithMetricsRecorder(m observability.MetricsRecorder) Option {
	return func(c *engineConfig) {
		if m != nil {
			c.metrics = m
		}
	}
}

// WithTracing enables OpenTelemetry spans for runs and model calls.
// Default: disabled
//
// Example:
//
//	engine := flowcanvas.NewEngine(client, flowcanvas.WithTracing(true))
func WithTracing(enabled bool) Option {
	return func(c *engineConfig) {
		c.tracingEnabled = enabled
		if enabled {
			c.spans = observability.NewSpanManager()
		} else {
			c.spans = observability.NoopSpanManager{}
		}
	}
}

// WithSpanManager enables tracing through spans instead of the global
// OpenTelemetry provider.
func WithSpanManager(spans observability.SpanManager) Option {
	return func(c *engineConfig) {
		if spans != nil {
			c.spans = spans
			c.tracingEnabled = true
		}
	}
}

// WithNotifier sets where failure notifications go.
// Default: notify.Discard
func WithNotifier(n notify.Notifier) Option {
	return func(c *engineConfig) {
		if n != nil {
			c.notifier = n
		}
	}
}

// WithHistory records every outcome in store.
// Default: no history
func WithHistory(store history.Store) Option {
	return func(c *engineConfig) {
		c.history = store
	}
}
