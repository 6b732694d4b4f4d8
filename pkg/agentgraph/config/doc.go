/*
Package config provides typed access to loosely structured configuration.

Node configuration in agentgraph is a map[string]any so that workflow
definitions can carry arbitrary keys. Config reads it without a chain of
type assertions:

	cfg := config.New(node.Config.Data)
	agentID := cfg.String("agent_id", node.ID)
	timeout := cfg.Duration("timeout", 0)

Keys may be dotted paths ("checkpoint.dir"). Missing keys and type
mismatches return the default. Integers decoded from JSON arrive as
float64; Int accepts them when they have no fractional part.

FromFile, FromYAML and FromJSON load engine settings from disk.
*/
package config
