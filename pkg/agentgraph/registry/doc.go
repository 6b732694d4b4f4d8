// Package registry provides a generic thread-safe registry of named values.
//
// agentgraph uses it for agent handles, named edge predicates and node
// logic overrides:
//
//	agents := registry.New[*agent.Agent]("agent")
//	if err := agents.Register("writer", writer); err != nil {
//	    // name already taken
//	}
//	a, ok := agents.Get("writer")
//
// Register refuses to overwrite an existing name; use Put to replace.
// Names and Range report entries in sorted order so listings are stable.
package registry
