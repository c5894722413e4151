// Package observability provides structured logging, metrics and tracing
// for workflow runs.
//
// Features:
//   - Structured logging via slog (Go stdlib)
//   - Metrics via OpenTelemetry
//   - Tracing via OpenTelemetry
//
// All features are opt-in and have no-op implementations when disabled.
package observability

import (
	"log/slog"
	"time"
)

// EnrichLogger adds run context to a logger.
func EnrichLogger(logger *slog.Logger, runID, graphID string) *slog.Logger {
	if logger == nil {
		return nil
	}
	return logger.With(
		slog.String("run_id", runID),
		slog.String("graph_id", graphID),
	)
}

// LogRunStart logs the start of a workflow run.
func LogRunStart(logger *slog.Logger, runID, graphID string) {
	if logger == nil {
		return
	}
	logger.Info("workflow run starting",
		slog.String("run_id", runID),
		slog.String("graph_id", graphID),
	)
}

// LogRunComplete logs a successful run.
func LogRunComplete(logger *slog.Logger, runID string, durationMs float64, outputChars int) {
	if logger == nil {
		return
	}
	logger.Info("workflow run completed",
		slog.String("run_id", runID),
		slog.Float64("duration_ms", durationMs),
		slog.Int("output_chars", outputChars),
	)
}

// LogRunError logs a failed run with its failure category.
func LogRunError(logger *slog.Logger, runID string, err error, durationMs float64, category string) {
	if logger == nil {
		return
	}
	logger.Error("workflow run failed",
		slog.String("run_id", runID),
		slog.String("error", err.Error()),
		slog.Float64("duration_ms", durationMs),
		slog.String("category", category),
	)
}

// LogRunRejected logs a run refused because another is in flight.
func LogRunRejected(logger *slog.Logger, graphID string) {
	if logger == nil {
		return
	}
	logger.Warn("workflow run rejected",
		slog.String("graph_id", graphID),
		slog.String("reason", "already running"),
	)
}

// LogTransition logs a run state change.
func LogTransition(logger *slog.Logger, from, to string) {
	if logger == nil {
		return
	}
	logger.Debug("run state changed",
		slog.String("from", from),
		slog.String("to", to),
	)
}

// LogInvoke logs the outcome of the external model call.
func LogInvoke(logger *slog.Logger, model string, durationMs float64, err error) {
	if logger == nil {
		return
	}
	if err != nil {
		logger.Warn("model invocation failed",
			slog.String("model", model),
			slog.Float64("duration_ms", durationMs),
			slog.String("error", err.Error()),
		)
		return
	}
	logger.Debug("model invocation completed",
		slog.String("model", model),
		slog.Float64("duration_ms", durationMs),
	)
}

// LogHistoryError logs a failed run history write (non-fatal).
func LogHistoryError(logger *slog.Logger, runID string, err error) {
	if logger == nil {
		return
	}
	logger.Warn("run history write failed",
		slog.String("run_id", runID),
		slog.String("error", err.Error()),
	)
}

// TimedOperation returns a func reporting elapsed milliseconds since the call.
func TimedOperation() func() float64 {
	start := time.Now()
	return func() float64 {
		return float64(time.Since(start).Milliseconds())
	}
}
