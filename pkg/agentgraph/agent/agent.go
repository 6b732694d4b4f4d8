// Package agent provides the agent handle, a registry of agents, and a
// prompt-building runtime that delegates the model call to a Completer.
package agent

import (
	"errors"
	"time"

	"github.com/randalmurphal/agentgraph/pkg/agentgraph/registry"
)

// Agent describes a language-model agent. It is data only; PromptRuntime
// turns it into a prompt. Timeout bounds one execution; zero means no
// limit beyond the caller's context.
type Agent struct {
	ID          string         `json:"id" yaml:"id"`
	Role        string         `json:"role" yaml:"role"`
	Goal        string         `json:"goal" yaml:"goal"`
	Backstory   string         `json:"backstory,omitempty" yaml:"backstory,omitempty"`
	Tools       []string       `json:"tools,omitempty" yaml:"tools,omitempty"`
	Model       string         `json:"model,omitempty" yaml:"model,omitempty"`
	Temperature float64        `json:"temperature,omitempty" yaml:"temperature,omitempty"`
	Timeout     time.Duration  `json:"timeout,omitempty" yaml:"timeout,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty" yaml:"metadata,omitempty"`
}

// ErrInvalidAgent indicates an agent without an id.
var ErrInvalidAgent = errors.New("agent id is required")

// Registry holds agents by id. It is safe for concurrent use.
type Registry struct {
	agents *registry.Registry[*Agent]
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{agents: registry.New[*Agent]("agent")}
}

// Register adds an agent. Registering an id twice is an error wrapping
// registry.ErrDuplicate.
func (r *Registry) Register(a *Agent) error {
	if a == nil || a.ID == "" {
		return ErrInvalidAgent
	}
	return r.agents.Register(a.ID, a)
}

// Get returns the agent with the given id.
func (r *Registry) Get(id string) (*Agent, bool) {
	return r.agents.Get(id)
}

// Unregister removes an agent and reports whether it was present.
func (r *Registry) Unregister(id string) bool {
	return r.agents.Unregister(id)
}

// Clear removes every agent.
func (r *Registry) Clear() {
	r.agents.Clear()
}

// IDs returns the registered ids, sorted.
func (r *Registry) IDs() []string {
	return r.agents.Names()
}

// Len returns the number of registered agents.
func (r *Registry) Len() int {
	return r.agents.Len()
}
