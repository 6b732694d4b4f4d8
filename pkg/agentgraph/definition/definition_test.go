package definition

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/agentgraph/pkg/agentgraph"
	"github.com/randalmurphal/agentgraph/pkg/agentgraph/agent"
	"github.com/randalmurphal/agentgraph/pkg/agentgraph/checkpoint"
)

func echoRuntime() *agent.PromptRuntime {
	return agent.NewPromptRuntime(agent.CompleterFunc(
		func(_ context.Context, a *agent.Agent, _ string) (string, error) {
			return "ok:" + a.ID, nil
		}))
}

func TestLoadFile_YAML(t *testing.T) {
	doc, err := LoadFile(filepath.Join("testdata", "research.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "research", doc.Name)
	assert.Len(t, doc.Agents, 3)
	assert.Equal(t, []string{"search"}, doc.Agents[0].Tools)
	assert.Len(t, doc.Nodes, 6)
	assert.Equal(t, 20, doc.Config().Int("max_iterations", 0))
}

func TestBuildAndRun(t *testing.T) {
	doc, err := LoadFile(filepath.Join("testdata", "research.yaml"))
	require.NoError(t, err)

	g, err := doc.Build(agentgraph.WithAgentRuntime(echoRuntime()))
	require.NoError(t, err)

	n, ok := g.Node("input")
	require.True(t, ok)
	assert.Equal(t, agentgraph.NodeInput, n.Type)
	critic, _ := g.Node("critic")
	assert.Equal(t, "critic", critic.Config.Data["agent_id"])

	t.Run("draft requested", func(t *testing.T) {
		state, err := g.Run(context.Background(),
			map[string]any{"topic": "graphs", "draft": true}, doc.RunOptions()...)
		require.NoError(t, err)

		researcher := state["researcher"].(map[string]any)
		assert.Equal(t, "Research graphs", researcher["task"])
		assert.Equal(t, "ok:researcher", researcher["output"])

		assert.Equal(t, agentgraph.DefaultTask, state["critic"].(map[string]any)["task"])
		assert.Equal(t, map[string]any{"node_id": "fact_check", "type": "tool"}, state["fact_check"])

		writer := state["writer"].(map[string]any)
		assert.Equal(t, "Write about graphs for engineers", writer["task"])
		assert.Contains(t, state, "output")
	})

	t.Run("no draft", func(t *testing.T) {
		state, err := g.Run(context.Background(),
			map[string]any{"topic": "graphs", "draft": false}, doc.RunOptions()...)
		require.NoError(t, err)

		assert.NotContains(t, state, "writer")
		assert.NotContains(t, state, "output")
		assert.Equal(t, agentgraph.StatusSkipped, g.NodeStatuses()["writer"])
	})
}

func TestParse_JSON(t *testing.T) {
	doc, err := LoadFile(filepath.Join("testdata", "minimal.json"))
	require.NoError(t, err)

	g, err := doc.Build()
	require.NoError(t, err)

	state, err := g.Run(context.Background(), "hi", doc.RunOptions()...)
	require.NoError(t, err)
	assert.Equal(t, "hi", state["in"])
	assert.Equal(t, "hi", state["out"].(map[string]any)["in"])
}

func TestParse_Errors(t *testing.T) {
	t.Run("missing name", func(t *testing.T) {
		_, err := Parse([]byte(`nodes: []`), checkpoint.FormatYAML)
		assert.ErrorIs(t, err, ErrInvalidDocument)
	})

	t.Run("bad yaml", func(t *testing.T) {
		_, err := Parse([]byte("name: [unclosed"), checkpoint.FormatYAML)
		assert.ErrorIs(t, err, ErrInvalidDocument)
	})

	t.Run("unsupported format", func(t *testing.T) {
		_, err := Parse([]byte(`{}`), checkpoint.Format("toml"))
		assert.ErrorIs(t, err, ErrInvalidDocument)
	})

	t.Run("unsupported extension", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "wf.toml")
		require.NoError(t, os.WriteFile(path, []byte("name = 'x'"), 0o600))
		_, err := LoadFile(path)
		assert.ErrorIs(t, err, ErrInvalidDocument)
	})
}

func TestBuild_CollectsErrors(t *testing.T) {
	doc, err := Parse([]byte(`
name: broken
nodes:
  - id: a
    type: input
  - id: b
    type: router
  - id: a
    type: output
edges:
  - source: a
    target: ghost
`), checkpoint.FormatYAML)
	require.NoError(t, err)

	_, err = doc.Build()
	require.Error(t, err)
	assert.ErrorIs(t, err, agentgraph.ErrInvalidNode)
	assert.ErrorIs(t, err, agentgraph.ErrDuplicateNode)
	assert.ErrorIs(t, err, agentgraph.ErrUnknownNode)
}

func TestBuild_DuplicateAgents(t *testing.T) {
	doc := &Document{
		Name:   "dup",
		Agents: []agent.Agent{{ID: "a"}, {ID: "a"}},
		Nodes:  []NodeSpec{{ID: "a", Type: "agent"}},
	}
	_, err := doc.Build()
	assert.ErrorIs(t, err, ErrInvalidDocument)
}

func TestBuild_Predicates(t *testing.T) {
	doc := &Document{
		Name: "pred",
		Nodes: []NodeSpec{
			{ID: "in", Type: "input"},
			{ID: "go", Type: "tool"},
		},
		Edges: []EdgeSpec{{Source: "in", Target: "go", Predicate: "enabled", Metadata: map[string]any{"label": "gate"}}},
	}

	g, err := doc.Build(agentgraph.WithPredicate("enabled", func(s map[string]any) bool {
		return s["input"] == "yes"
	}))
	require.NoError(t, err)
	assert.Equal(t, "gate", g.Edges()[0].Metadata["label"])

	state, err := g.Run(context.Background(), "yes")
	require.NoError(t, err)
	assert.Contains(t, state, "go")

	state, err = g.Run(context.Background(), "no")
	require.NoError(t, err)
	assert.NotContains(t, state, "go")
}

func TestRunOptions(t *testing.T) {
	doc := &Document{
		Name:     "limited",
		Settings: map[string]any{"max_iterations": 0},
		Nodes:    []NodeSpec{{ID: "in", Type: "input"}},
	}
	g, err := doc.Build()
	require.NoError(t, err)

	_, err = g.Run(context.Background(), nil, doc.RunOptions()...)
	assert.ErrorIs(t, err, agentgraph.ErrMaxIterations)

	assert.Empty(t, (&Document{Name: "none"}).RunOptions())
}

func TestCheckpointStore(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)

	testCases := []struct {
		name     string
		settings map[string]any
		check    func(t *testing.T, s checkpoint.Store)
	}{
		{
			name:     "file",
			settings: map[string]any{"backend": "file", "dir": t.TempDir(), "format": "yaml"},
			check: func(t *testing.T, s checkpoint.Store) {
				fs, ok := s.(*checkpoint.FileStore)
				require.True(t, ok)
				assert.Equal(t, checkpoint.FormatYAML, fs.Format())
			},
		},
		{
			name:     "memory",
			settings: map[string]any{"backend": "memory"},
			check: func(t *testing.T, s checkpoint.Store) {
				assert.IsType(t, &checkpoint.MemoryStore{}, s)
			},
		},
		{
			name:     "sqlite",
			settings: map[string]any{"backend": "sqlite", "path": filepath.Join(t.TempDir(), "cp.db")},
			check: func(t *testing.T, s checkpoint.Store) {
				assert.IsType(t, &checkpoint.SQLiteStore{}, s)
			},
		},
		{
			name:     "redis",
			settings: map[string]any{"backend": "redis", "addr": mr.Addr(), "ttl": "1h"},
			check: func(t *testing.T, s checkpoint.Store) {
				assert.IsType(t, &checkpoint.RedisStore{}, s)
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			doc := &Document{Name: "wf", Settings: map[string]any{"checkpoint": tc.settings}}
			store, err := doc.CheckpointStore(ctx)
			require.NoError(t, err)
			t.Cleanup(func() { store.Close() })
			tc.check(t, store)

			_, err = store.Save(ctx, "wf", "smoke", []byte(`{}`))
			assert.NoError(t, err)
		})
	}

	t.Run("none", func(t *testing.T) {
		store, err := (&Document{Name: "wf"}).CheckpointStore(ctx)
		require.NoError(t, err)
		assert.Nil(t, store)
	})

	t.Run("unknown backend", func(t *testing.T) {
		doc := &Document{Name: "wf", Settings: map[string]any{"checkpoint": map[string]any{"backend": "s3"}}}
		_, err := doc.CheckpointStore(ctx)
		assert.ErrorIs(t, err, ErrInvalidDocument)
	})
}

func TestDocumentCheckpointResume(t *testing.T) {
	doc, err := LoadFile(filepath.Join("testdata", "research.yaml"))
	require.NoError(t, err)
	doc.Settings["checkpoint"] = map[string]any{"backend": "file", "dir": t.TempDir(), "format": "yaml"}

	store, err := doc.CheckpointStore(context.Background())
	require.NoError(t, err)
	defer store.Close()

	var mu sync.Mutex
	calls := map[string]int{}
	rt := agent.NewPromptRuntime(agent.CompleterFunc(func(_ context.Context, a *agent.Agent, _ string) (string, error) {
		mu.Lock()
		defer mu.Unlock()
		calls[a.ID]++
		if a.ID == "writer" && calls[a.ID] == 1 {
			return "", fmt.Errorf("rate limited")
		}
		return "ok", nil
	}))
	g, err := doc.Build(agentgraph.WithAgentRuntime(rt), agentgraph.WithCheckpointStore(store))
	require.NoError(t, err)

	input := map[string]any{"topic": "graphs", "draft": true}
	state, err := g.Run(context.Background(), input, doc.RunOptions()...)
	require.Error(t, err)
	_, err = g.SaveCheckpointTo(context.Background(), nil, "retry", state)
	require.NoError(t, err)

	cp, err := g.LoadCheckpointFrom(context.Background(), nil, "retry")
	require.NoError(t, err)
	final, err := g.Run(context.Background(), input, append(doc.RunOptions(), agentgraph.WithResume(cp))...)
	require.NoError(t, err)

	assert.Equal(t, 1, calls["researcher"])
	assert.Equal(t, 2, calls["writer"])
	assert.Contains(t, final, "output")
}
