/*
Package agentgraph orchestrates language-model agents as a directed graph
of typed nodes.

# Overview

A Graph holds nodes (input, output, agent, tool, condition, human,
subgraph) connected by edges that may be conditional, parallel, or
ordered by priority. Run walks the graph from its entry points and writes
each node's result into a shared state map keyed by node id, so
downstream nodes read upstream results by id.

# Basic Usage

	agents := agent.NewRegistry()
	agents.Register(&agent.Agent{ID: "writer", Role: "Writer", Goal: "Summarize"})

	g := agentgraph.New("summarize",
	    agentgraph.WithAgents(agents),
	    agentgraph.WithAgentRuntime(agent.NewPromptRuntime(completer)))

	g.AddNode(agentgraph.NewInputNode("input"))
	g.AddNode(agentgraph.NewAgentNode("writer", "writer").
	    WithData("task", "Summarize ${input.text}"))
	g.AddNode(agentgraph.NewOutputNode("output"))
	g.AddEdge(agentgraph.NewEdge("input", "writer"))
	g.AddEdge(agentgraph.NewEdge("writer", "output"))

	state, err := g.Run(ctx, map[string]any{"text": "..."})

# Edges

Sequential edges from a node run one at a time in ascending priority
(ties keep insertion order). Edges marked Parallel fan out concurrently
and are all awaited before the node's sequential edges run:

	g.AddEdge(agentgraph.NewEdge("input", "critic", agentgraph.Parallel()))
	g.AddEdge(agentgraph.NewEdge("input", "editor", agentgraph.Parallel()))

Conditions are expressions over the state (package expr), named
predicates registered with WithPredicate, or closures:

	agentgraph.NewEdge("review", "publish", agentgraph.When("review.approved == true"))
	agentgraph.NewEdge("review", "revise", agentgraph.WhenPredicate("needs_revision"))

A condition that fails to evaluate counts as false and is logged as a
warning. The target of an edge that is not taken is marked skipped unless
another edge reaches it.

# Iterations and Cycles

Every node visit consumes one unit of a run-wide budget (default 100,
see WithMaxIterations). A completed node is not executed again when
revisited, so the budget is what stops a cycle.

# Checkpoints

SaveCheckpoint records the state and node statuses; running with
WithResume skips nodes that had completed:

	cp, err := g.LoadCheckpoint(ctx, "step-1", dir)
	state, err := g.Run(ctx, input, agentgraph.WithResume(cp))

Store-based variants (SaveCheckpointTo, LoadCheckpointFrom) accept any
checkpoint.Store: file, memory, SQLite or Redis.

# Errors

Every error matches one class with errors.Is: ErrStructural,
ErrExecution or ErrCheckpoint. Node failures are *NodeExecutionError and
abort the run; the partially filled state is still returned.
*/
package agentgraph
