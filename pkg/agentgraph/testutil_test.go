package agentgraph

import (
	"bytes"
	"context"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/agentgraph/pkg/agentgraph/agent"
)

// tracker records the order nodes start and finish in.
type tracker struct {
	mu     sync.Mutex
	events []string
}

func (tr *tracker) add(event string) {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	tr.events = append(tr.events, event)
}

func (tr *tracker) list() []string {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	return append([]string(nil), tr.events...)
}

// trackingLogic returns tool logic that records "start:<id>" and "end:<id>".
func trackingLogic(tr *tracker) NodeLogic {
	return NodeLogicFunc(func(_ context.Context, inv *Invocation) (any, error) {
		tr.add("start:" + inv.Node.ID)
		defer tr.add("end:" + inv.Node.ID)
		return inv.Node.ID + "-done", nil
	})
}

// echoRuntime is an agent runtime that echoes the task.
type echoRuntime struct {
	mu    sync.Mutex
	calls int
}

func (r *echoRuntime) Execute(_ context.Context, a *agent.Agent, task string, _ map[string]any) (map[string]any, error) {
	r.mu.Lock()
	r.calls++
	r.mu.Unlock()
	return map[string]any{"agent_id": a.ID, "echo": task}, nil
}

func (r *echoRuntime) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

// newAgents creates a registry with the given agent ids.
func newAgents(t *testing.T, ids ...string) *agent.Registry {
	t.Helper()
	r := agent.NewRegistry()
	for _, id := range ids {
		require.NoError(t, r.Register(&agent.Agent{ID: id, Role: id, Goal: "test"}))
	}
	return r
}

// chain builds a graph of tool nodes n0 -> n1 -> ... -> n(size-1).
func chain(t require.TestingT, size int, opts ...Option) *Graph {
	g := New("chain", opts...)
	for i := range size {
		require.NoError(t, g.AddNode(NewToolNode(nodeName(i), "noop")))
		if i > 0 {
			require.NoError(t, g.AddEdge(NewEdge(nodeName(i-1), nodeName(i))))
		}
	}
	return g
}

func nodeName(i int) string {
	return "n" + string(rune('a'+i%26)) + string(rune('0'+i/26))
}

// captureLogger returns a logger writing JSON records into the buffer.
func captureLogger() (*slog.Logger, *syncBuffer) {
	buf := &syncBuffer{}
	return slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug})), buf
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}
