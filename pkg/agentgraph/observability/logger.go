// Package observability provides structured logging, metrics and tracing
// for agentgraph runs.
//
// Features:
//   - Structured logging via slog
//   - Metrics via OpenTelemetry or Prometheus
//   - Tracing via OpenTelemetry
//
// All features are opt-in and have no-op implementations when disabled.
package observability

import (
	"log/slog"
	"time"
)

// EnrichLogger adds workflow and run fields to a logger.
func EnrichLogger(logger *slog.Logger, workflow, runID string) *slog.Logger {
	if logger == nil {
		return nil
	}
	return logger.With(
		slog.String("workflow", workflow),
		slog.String("run_id", runID),
	)
}

// LogRunStart logs the start of a workflow run.
func LogRunStart(logger *slog.Logger, entryPoints []string, resumed bool) {
	if logger == nil {
		return
	}
	logger.Info("workflow run starting",
		slog.Any("entry_points", entryPoints),
		slog.Bool("resumed", resumed),
	)
}

// LogRunComplete logs successful run completion.
func LogRunComplete(logger *slog.Logger, durationMs float64, iterations int) {
	if logger == nil {
		return
	}
	logger.Info("workflow run completed",
		slog.Float64("duration_ms", durationMs),
		slog.Int("iterations", iterations),
	)
}

// LogRunError logs run failure.
func LogRunError(logger *slog.Logger, err error, durationMs float64, lastNode string) {
	if logger == nil {
		return
	}
	logger.Error("workflow run failed",
		slog.String("error", err.Error()),
		slog.Float64("duration_ms", durationMs),
		slog.String("last_node", lastNode),
	)
}

// LogNodeStart logs node execution start.
func LogNodeStart(logger *slog.Logger, nodeID, nodeType string) {
	if logger == nil {
		return
	}
	logger.Debug("node starting",
		slog.String("node_id", nodeID),
		slog.String("node_type", nodeType),
	)
}

// LogNodeComplete logs successful node completion.
func LogNodeComplete(logger *slog.Logger, nodeID string, durationMs float64) {
	if logger == nil {
		return
	}
	logger.Debug("node completed",
		slog.String("node_id", nodeID),
		slog.Float64("duration_ms", durationMs),
	)
}

// LogNodeError logs node execution error.
func LogNodeError(logger *slog.Logger, nodeID string, err error) {
	if logger == nil {
		return
	}
	logger.Error("node failed",
		slog.String("node_id", nodeID),
		slog.String("error", err.Error()),
	)
}

// LogNodeSkipped logs a node whose only incoming condition was false.
func LogNodeSkipped(logger *slog.Logger, nodeID, from string) {
	if logger == nil {
		return
	}
	logger.Debug("node skipped",
		slog.String("node_id", nodeID),
		slog.String("from", from),
	)
}

// LogConditionError logs an edge condition that failed to evaluate.
// The edge is treated as not taken.
func LogConditionError(logger *slog.Logger, source, target string, err error) {
	if logger == nil {
		return
	}
	logger.Warn("edge condition failed, treating as false",
		slog.String("source", source),
		slog.String("target", target),
		slog.String("error", err.Error()),
	)
}

// LogDisconnected logs nodes unreachable from the first node when edges
// are followed in both directions.
func LogDisconnected(logger *slog.Logger, unreachable []string) {
	if logger == nil {
		return
	}
	logger.Warn("graph has disconnected components",
		slog.Any("unreachable", unreachable),
	)
}

// LogCheckpoint logs checkpoint creation.
func LogCheckpoint(logger *slog.Logger, name, location string, sizeBytes int) {
	if logger == nil {
		return
	}
	logger.Info("checkpoint saved",
		slog.String("checkpoint", name),
		slog.String("location", location),
		slog.Int("size_bytes", sizeBytes),
	)
}

// LogUnserializable logs state values replaced before checkpointing.
func LogUnserializable(logger *slog.Logger, name string, paths []string) {
	if logger == nil || len(paths) == 0 {
		return
	}
	logger.Warn("checkpoint state contains unserializable values",
		slog.String("checkpoint", name),
		slog.Any("paths", paths),
	)
}

// LogCheckpointError logs checkpoint failure.
func LogCheckpointError(logger *slog.Logger, name string, op string, err error) {
	if logger == nil {
		return
	}
	logger.Warn("checkpoint failed",
		slog.String("checkpoint", name),
		slog.String("operation", op),
		slog.String("error", err.Error()),
	)
}

// TimedOperation returns a function reporting milliseconds elapsed since
// TimedOperation was called.
func TimedOperation() func() float64 {
	start := time.Now()
	return func() float64 {
		return float64(time.Since(start).Microseconds()) / 1000
	}
}
