// Package observability provides structured logging, metrics, and tracing
// for fleetdeck widgets, queries, and the edit pipeline.
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

// EnrichLogger adds widget context to a logger.
// Returns a new logger with widget_id and component fields.
//
// Example:
//
//	enriched := EnrichLogger(logger, "w-123", "boat_search_results")
//	enriched.Info("searching") // includes widget_id, component
func EnrichLogger(logger *slog.Logger, widgetID, component string) *slog.Logger {
	if logger == nil {
		return nil
	}
	return logger.With(
		slog.String("widget_id", widgetID),
		slog.String("component", component),
	)
}

// LogFetchStart logs the start of a query fetch.
func LogFetchStart(logger *slog.Logger, query string, seq uint64) {
	if logger == nil {
		return
	}
	logger.Debug("fetch starting",
		slog.String("query", query),
		slog.Uint64("seq", seq),
	)
}

// LogFetchComplete logs a fetch whose result was applied.
func LogFetchComplete(logger *slog.Logger, query string, seq uint64, durationMs float64) {
	if logger == nil {
		return
	}
	logger.Debug("fetch completed",
		slog.String("query", query),
		slog.Uint64("seq", seq),
		slog.Float64("duration_ms", durationMs),
	)
}

// LogFetchError logs a fetch failure that was recorded in query state.
func LogFetchError(logger *slog.Logger, query string, seq uint64, err error) {
	if logger == nil {
		return
	}
	logger.Warn("fetch failed",
		slog.String("query", query),
		slog.Uint64("seq", seq),
		slog.String("error", err.Error()),
	)
}

// LogFetchDiscarded logs a response dropped because a newer fetch was issued.
func LogFetchDiscarded(logger *slog.Logger, query string, seq, latest uint64) {
	if logger == nil {
		return
	}
	logger.Debug("stale fetch discarded",
		slog.String("query", query),
		slog.Uint64("seq", seq),
		slog.Uint64("latest_seq", latest),
	)
}

// LogSaveStart logs the start of a batch save.
func LogSaveStart(logger *slog.Logger, edits int) {
	if logger == nil {
		return
	}
	logger.Info("save starting",
		slog.Int("edits", edits),
	)
}

// LogSaveComplete logs a confirmed batch save.
func LogSaveComplete(logger *slog.Logger, edits int, durationMs float64) {
	if logger == nil {
		return
	}
	logger.Info("save completed",
		slog.Int("edits", edits),
		slog.Float64("duration_ms", durationMs),
	)
}

// LogSaveError logs a batch save the remote did not confirm.
func LogSaveError(logger *slog.Logger, edits int, err error) {
	if logger == nil {
		return
	}
	logger.Error("save failed",
		slog.Int("edits", edits),
		slog.String("error", err.Error()),
	)
}

// LogPublish logs a bus publish and how many subscribers received it.
func LogPublish(logger *slog.Logger, channel string, delivered int) {
	if logger == nil {
		return
	}
	logger.Debug("message published",
		slog.String("channel", channel),
		slog.Int("delivered", delivered),
	)
}

// TimedOperation measures the duration of an operation.
// Returns a function that, when called, returns the elapsed time in milliseconds.
//
// Example:
//
//	done := TimedOperation()
//	// ... do work ...
//	durationMs := done()
func TimedOperation() func() float64 {
	start := time.Now()
	return func() float64 {
		return float64(time.Since(start).Milliseconds())
	}
}
