package observability

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// MetricsRecorder records agentgraph metrics.
// Use NewMetricsRecorder for OTel, NewPrometheusMetrics for Prometheus,
// or NoopMetrics{} when disabled.
type MetricsRecorder interface {
	// NodeStarted and NodeFinished bracket a node execution.
	NodeStarted(ctx context.Context, nodeID string)
	NodeFinished(ctx context.Context, nodeID, nodeType string, duration time.Duration, err error)

	// RecordRun records a workflow run completion.
	RecordRun(ctx context.Context, workflow string, success bool, duration time.Duration)

	// RecordCheckpoint records a checkpoint save.
	RecordCheckpoint(ctx context.Context, workflow string, sizeBytes int64)
}

// otelMetrics implements MetricsRecorder using OpenTelemetry.
type otelMetrics struct {
	inflight       metric.Int64UpDownCounter
	nodeExecutions metric.Int64Counter
	nodeLatency    metric.Float64Histogram
	nodeErrors     metric.Int64Counter
	runs           metric.Int64Counter
	runLatency     metric.Float64Histogram
	checkpointSize metric.Int64Histogram
}

func newOtelMetrics(provider metric.MeterProvider) (*otelMetrics, error) {
	meter := provider.Meter("agentgraph")
	m := &otelMetrics{}
	var err error

	if m.inflight, err = meter.Int64UpDownCounter("agentgraph.node.inflight",
		metric.WithDescription("Nodes currently executing"),
	); err != nil {
		return nil, err
	}
	if m.nodeExecutions, err = meter.Int64Counter("agentgraph.node.executions",
		metric.WithDescription("Number of node executions"),
	); err != nil {
		return nil, err
	}
	if m.nodeLatency, err = meter.Float64Histogram("agentgraph.node.latency_ms",
		metric.WithDescription("Node execution latency in milliseconds"),
		metric.WithUnit("ms"),
	); err != nil {
		return nil, err
	}
	if m.nodeErrors, err = meter.Int64Counter("agentgraph.node.errors",
		metric.WithDescription("Number of node execution errors"),
	); err != nil {
		return nil, err
	}
	if m.runs, err = meter.Int64Counter("agentgraph.run.count",
		metric.WithDescription("Number of workflow runs"),
	); err != nil {
		return nil, err
	}
	if m.runLatency, err = meter.Float64Histogram("agentgraph.run.latency_ms",
		metric.WithDescription("Workflow run latency in milliseconds"),
		metric.WithUnit("ms"),
	); err != nil {
		return nil, err
	}
	if m.checkpointSize, err = meter.Int64Histogram("agentgraph.checkpoint.size_bytes",
		metric.WithDescription("Checkpoint size in bytes"),
		metric.WithUnit("By"),
	); err != nil {
		return nil, err
	}
	return m, nil
}

// NewMetricsRecorder returns an OpenTelemetry MetricsRecorder. A nil
// provider means the global one. If instrument creation fails the error
// is logged and a no-op recorder is returned.
func NewMetricsRecorder(provider metric.MeterProvider) MetricsRecorder {
	if provider == nil {
		provider = otel.GetMeterProvider()
	}
	m, err := newOtelMetrics(provider)
	if err != nil {
		slog.Warn("metrics initialization failed, using no-op recorder",
			slog.String("error", err.Error()))
		return NoopMetrics{}
	}
	return m
}

// NodeStarted implements MetricsRecorder.
func (m *otelMetrics) NodeStarted(ctx context.Context, nodeID string) {
	m.inflight.Add(ctx, 1)
}

// NodeFinished implements MetricsRecorder.
func (m *otelMetrics) NodeFinished(ctx context.Context, nodeID, nodeType string, duration time.Duration, err error) {
	attrs := metric.WithAttributes(
		attribute.String("node_id", nodeID),
		attribute.String("node_type", nodeType),
	)
	m.inflight.Add(ctx, -1)
	m.nodeExecutions.Add(ctx, 1, attrs)
	m.nodeLatency.Record(ctx, float64(duration.Microseconds())/1000, attrs)
	if err != nil {
		m.nodeErrors.Add(ctx, 1, attrs)
	}
}

// RecordRun implements MetricsRecorder.
func (m *otelMetrics) RecordRun(ctx context.Context, workflow string, success bool, duration time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String("workflow", workflow),
		attribute.Bool("success", success),
	)
	m.runs.Add(ctx, 1, attrs)
	m.runLatency.Record(ctx, float64(duration.Microseconds())/1000, attrs)
}

// RecordCheckpoint implements MetricsRecorder.
func (m *otelMetrics) RecordCheckpoint(ctx context.Context, workflow string, sizeBytes int64) {
	m.checkpointSize.Record(ctx, sizeBytes, metric.WithAttributes(attribute.String("workflow", workflow)))
}

// MultiMetrics fans every call out to several recorders.
type MultiMetrics []MetricsRecorder

// NodeStarted implements MetricsRecorder.
func (mm MultiMetrics) NodeStarted(ctx context.Context, nodeID string) {
	for _, m := range mm {
		m.NodeStarted(ctx, nodeID)
	}
}

// NodeFinished implements MetricsRecorder.
func (mm MultiMetrics) NodeFinished(ctx context.Context, nodeID, nodeType string, duration time.Duration, err error) {
	for _, m := range mm {
		m.NodeFinished(ctx, nodeID, nodeType, duration, err)
	}
}

// RecordRun implements MetricsRecorder.
func (mm MultiMetrics) RecordRun(ctx context.Context, workflow string, success bool, duration time.Duration) {
	for _, m := range mm {
		m.RecordRun(ctx, workflow, success, duration)
	}
}

// RecordCheckpoint implements MetricsRecorder.
func (mm MultiMetrics) RecordCheckpoint(ctx context.Context, workflow string, sizeBytes int64) {
	for _, m := range mm {
		m.RecordCheckpoint(ctx, workflow, sizeBytes)
	}
}
