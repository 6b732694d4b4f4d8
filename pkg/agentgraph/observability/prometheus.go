package observability

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PrometheusMetrics records agentgraph metrics as Prometheus collectors.
//
// Metrics (namespace "agentgraph"):
//   - inflight_nodes (gauge): nodes currently executing
//   - node_executions_total (counter): labels node_id, node_type, status
//   - node_latency_ms (histogram): labels node_id, status
//   - runs_total (counter): labels workflow, status
//   - run_latency_ms (histogram): labels workflow
//   - checkpoint_size_bytes (histogram): labels workflow
//
// Expose them with promhttp.HandlerFor on the same registry.
type PrometheusMetrics struct {
	inflight       prometheus.Gauge
	nodeExecutions *prometheus.CounterVec
	nodeLatency    *prometheus.HistogramVec
	runs           *prometheus.CounterVec
	runLatency     *prometheus.HistogramVec
	checkpointSize *prometheus.HistogramVec
}

// Compile-time interface check.
var _ MetricsRecorder = (*PrometheusMetrics)(nil)

// NewPrometheusMetrics creates and registers the collectors. A nil
// registerer means prometheus.DefaultRegisterer.
func NewPrometheusMetrics(registerer prometheus.Registerer) *PrometheusMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	factory := promauto.With(registerer)
	latencyBuckets := []float64{1, 5, 10, 50, 100, 500, 1000, 5000, 10000, 60000}

	return &PrometheusMetrics{
		inflight: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "agentgraph",
			Name:      "inflight_nodes",
			Help:      "Nodes currently executing",
		}),
		nodeExecutions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "agentgraph",
			Name:      "node_executions_total",
			Help:      "Node executions by outcome",
		}, []string{"node_id", "node_type", "status"}),
		nodeLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "agentgraph",
			Name:      "node_latency_ms",
			Help:      "Node execution duration in milliseconds",
			Buckets:   latencyBuckets,
		}, []string{"node_id", "status"}),
		runs: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "agentgraph",
			Name:      "runs_total",
			Help:      "Workflow runs by outcome",
		}, []string{"workflow", "status"}),
		runLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "agentgraph",
			Name:      "run_latency_ms",
			Help:      "Workflow run duration in milliseconds",
			Buckets:   latencyBuckets,
		}, []string{"workflow"}),
		checkpointSize: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "agentgraph",
			Name:      "checkpoint_size_bytes",
			Help:      "Encoded checkpoint size in bytes",
			Buckets:   prometheus.ExponentialBuckets(256, 4, 8),
		}, []string{"workflow"}),
	}
}

func statusLabel(ok bool) string {
	if ok {
		return "success"
	}
	return "error"
}

// NodeStarted implements MetricsRecorder.
func (pm *PrometheusMetrics) NodeStarted(context.Context, string) {
	pm.inflight.Inc()
}

// NodeFinished implements MetricsRecorder.
func (pm *PrometheusMetrics) NodeFinished(_ context.Context, nodeID, nodeType string, duration time.Duration, err error) {
	status := statusLabel(err == nil)
	pm.inflight.Dec()
	pm.nodeExecutions.WithLabelValues(nodeID, nodeType, status).Inc()
	pm.nodeLatency.WithLabelValues(nodeID, status).Observe(float64(duration.Microseconds()) / 1000)
}

// RecordRun implements MetricsRecorder.
func (pm *PrometheusMetrics) RecordRun(_ context.Context, workflow string, success bool, duration time.Duration) {
	pm.runs.WithLabelValues(workflow, statusLabel(success)).Inc()
	pm.runLatency.WithLabelValues(workflow).Observe(float64(duration.Microseconds()) / 1000)
}

// RecordCheckpoint implements MetricsRecorder.
func (pm *PrometheusMetrics) RecordCheckpoint(_ context.Context, workflow string, sizeBytes int64) {
	pm.checkpointSize.WithLabelValues(workflow).Observe(float64(sizeBytes))
}
