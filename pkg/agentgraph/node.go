package agentgraph

import (
	"fmt"
	"strings"
	"sync"
)

// NodeType is the kind of work a node performs.
type NodeType string

const (
	NodeInput     NodeType = "input"
	NodeOutput    NodeType = "output"
	NodeAgent     NodeType = "agent"
	NodeTool      NodeType = "tool"
	NodeCondition NodeType = "condition"
	NodeHuman     NodeType = "human"
	NodeSubgraph  NodeType = "subgraph"
)

var nodeTypes = []NodeType{
	NodeInput, NodeOutput, NodeAgent, NodeTool, NodeCondition, NodeHuman, NodeSubgraph,
}

// Valid reports whether t is one of the known node types.
func (t NodeType) Valid() bool {
	for _, known := range nodeTypes {
		if t == known {
			return true
		}
	}
	return false
}

// ParseNodeType parses a node type name, case-insensitively. "start" and
// "end" are accepted as aliases for input and output.
func ParseNodeType(s string) (NodeType, error) {
	switch t := NodeType(strings.ToLower(strings.TrimSpace(s))); t {
	case "start":
		return NodeInput, nil
	case "end":
		return NodeOutput, nil
	default:
		if t.Valid() {
			return t, nil
		}
		return "", fmt.Errorf("%w: unknown node type %q", ErrInvalidNode, s)
	}
}

// NodeStatus is the execution state of a node within the current run.
//
//	pending -> running -> completed | failed
//	pending -> skipped (an incoming condition was false)
type NodeStatus string

const (
	StatusPending   NodeStatus = "pending"
	StatusRunning   NodeStatus = "running"
	StatusCompleted NodeStatus = "completed"
	StatusFailed    NodeStatus = "failed"
	StatusSkipped   NodeStatus = "skipped"
)

// NodeConfig is the type-tagged payload of a node.
// Data carries type-specific keys (agent_id, task, tool_name, condition);
// Metadata is free-form and ignored by the engine.
type NodeConfig struct {
	Type     NodeType       `json:"type" yaml:"type"`
	Data     map[string]any `json:"data,omitempty" yaml:"data,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty" yaml:"metadata,omitempty"`
}

// Node is a typed unit of work. ID, Type and Config are fixed at
// construction; status, result and error belong to the engine.
type Node struct {
	ID     string
	Type   NodeType
	Config NodeConfig

	logic NodeLogic

	mu     sync.RWMutex
	status NodeStatus
	result any
	err    error
}

// NewNode creates a pending node. data may be nil.
func NewNode(id string, nodeType NodeType, data map[string]any) *Node {
	if data == nil {
		data = make(map[string]any)
	}
	return &Node{
		ID:   id,
		Type: nodeType,
		Config: NodeConfig{
			Type:     nodeType,
			Data:     data,
			Metadata: make(map[string]any),
		},
		logic:  defaultLogic(nodeType),
		status: StatusPending,
	}
}

// NewInputNode creates an input node. Its result is a deep copy of the
// run input.
func NewInputNode(id string) *Node {
	return NewNode(id, NodeInput, nil)
}

// NewOutputNode creates an output node. Its result is a deep copy of the
// state as it stood when the node ran.
func NewOutputNode(id string) *Node {
	return NewNode(id, NodeOutput, nil)
}

// NewAgentNode creates a node that delegates to the registered agent
// agentID. Set a "task" template with WithData to control the task text;
// otherwise state["task"] is used.
func NewAgentNode(id, agentID string) *Node {
	return NewNode(id, NodeAgent, map[string]any{"agent_id": agentID})
}

// NewToolNode creates a tool node naming the capability to invoke.
func NewToolNode(id, toolName string) *Node {
	return NewNode(id, NodeTool, map[string]any{"tool_name": toolName})
}

// NewConditionNode creates a condition node. The expression is evaluated
// and reported in the node result; it does not gate edges.
func NewConditionNode(id, expression string) *Node {
	return NewNode(id, NodeCondition, map[string]any{"condition": expression})
}

// WithData sets a config data key and returns the node for chaining.
func (n *Node) WithData(key string, value any) *Node {
	n.Config.Data[key] = value
	return n
}

// WithMetadata sets a metadata key and returns the node for chaining.
func (n *Node) WithMetadata(key string, value any) *Node {
	n.Config.Metadata[key] = value
	return n
}

// Status returns the current status.
func (n *Node) Status() NodeStatus {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.status
}

// Result returns the value produced by the last successful execution.
func (n *Node) Result() any {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.result
}

// Err returns the failure recorded by the last execution, if any.
func (n *Node) Err() error {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.err
}

// Reset returns the node to pending and clears its result and error.
func (n *Node) Reset() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.status = StatusPending
	n.result = nil
	n.err = nil
}

func (n *Node) setRunning() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.status = StatusRunning
	n.err = nil
}

func (n *Node) complete(result any) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.status = StatusCompleted
	n.result = result
}

func (n *Node) fail(err error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.status = StatusFailed
	n.err = err
}

// skip marks the node skipped if it has not been entered yet.
func (n *Node) skip() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.status != StatusPending {
		return false
	}
	n.status = StatusSkipped
	return true
}

// restore applies a status recorded in a checkpoint.
func (n *Node) restore(status NodeStatus, result any) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.status = status
	n.result = result
	n.err = nil
}
