package observability

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// setupTracingTest creates a tracer provider with an in-memory exporter.
func setupTracingTest(t *testing.T) (SpanManager, *tracetest.InMemoryExporter) {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	t.Cleanup(func() {
		if err := tp.Shutdown(context.Background()); err != nil {
			t.Logf("Error shutting down tracer provider: %v", err)
		}
	})
	return NewSpanManager(tp), exporter
}

func attrMap(kvs []attribute.KeyValue) map[string]string {
	out := make(map[string]string, len(kvs))
	for _, kv := range kvs {
		out[string(kv.Key)] = kv.Value.Emit()
	}
	return out
}

func TestSpanManager_RunAndNodeSpans(t *testing.T) {
	sm, exporter := setupTracingTest(t)

	ctx, runSpan := sm.StartRunSpan(context.Background(), "research", "run-1")
	_, nodeSpan := sm.StartNodeSpan(ctx, "draft", "agent")
	sm.EndSpanWithError(nodeSpan, nil)
	sm.EndSpanWithError(runSpan, nil)

	spans := exporter.GetSpans()
	require.Len(t, spans, 2)

	node, run := spans[0], spans[1]
	assert.Equal(t, "agentgraph.node.draft", node.Name)
	assert.Equal(t, "agentgraph.run", run.Name)
	assert.Equal(t, run.SpanContext.SpanID(), node.Parent.SpanID(), "node span is a child of the run span")

	assert.Equal(t, "research", attrMap(run.Attributes)["workflow.name"])
	assert.Equal(t, "run-1", attrMap(run.Attributes)["run.id"])
	assert.Equal(t, "agent", attrMap(node.Attributes)["node.type"])
	assert.Equal(t, codes.Ok, node.Status.Code)
}

func TestSpanManager_EndWithError(t *testing.T) {
	sm, exporter := setupTracingTest(t)

	_, span := sm.StartNodeSpan(context.Background(), "review", "agent")
	sm.EndSpanWithError(span, errors.New("rejected"))

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, codes.Error, spans[0].Status.Code)
	assert.Equal(t, "rejected", spans[0].Status.Description)
	require.Len(t, spans[0].Events, 1)
	assert.Equal(t, "exception", spans[0].Events[0].Name)

	assert.NotPanics(t, func() { sm.EndSpanWithError(nil, nil) })
}

func TestSpanManager_AddSpanEvent(t *testing.T) {
	sm, exporter := setupTracingTest(t)

	ctx, span := sm.StartRunSpan(context.Background(), "wf", "run")
	sm.AddSpanEvent(ctx, "edge.skipped", attribute.String("target", "publish"))
	span.End()

	// No span in context: silently ignored.
	sm.AddSpanEvent(context.Background(), "ignored")

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	require.Len(t, spans[0].Events, 1)
	assert.Equal(t, "edge.skipped", spans[0].Events[0].Name)
}
