package agentgraph

import (
	"errors"
	"fmt"
)

// Error classes. Every error returned by this package matches exactly one
// of these with errors.Is.
var (
	// ErrStructural marks problems with the shape of the graph.
	ErrStructural = errors.New("structural error")

	// ErrExecution marks failures while running a graph.
	ErrExecution = errors.New("execution error")

	// ErrCheckpoint marks failures saving or loading checkpoints.
	ErrCheckpoint = errors.New("checkpoint error")
)

// Structural errors.
var (
	// ErrInvalidNode indicates a node with an empty id or unknown type.
	ErrInvalidNode = fmt.Errorf("%w: invalid node", ErrStructural)

	// ErrDuplicateNode indicates AddNode was called with an id already present.
	ErrDuplicateNode = fmt.Errorf("%w: duplicate node", ErrStructural)

	// ErrUnknownNode indicates an edge references a node that was never added.
	ErrUnknownNode = fmt.Errorf("%w: unknown node", ErrStructural)

	// ErrEmptyGraph indicates the graph has no nodes.
	ErrEmptyGraph = fmt.Errorf("%w: graph has no nodes", ErrStructural)

	// ErrDanglingEdge indicates an edge whose endpoint is missing from the graph.
	ErrDanglingEdge = fmt.Errorf("%w: dangling edge", ErrStructural)

	// ErrCycle indicates TopologicalSort found a cycle.
	ErrCycle = fmt.Errorf("%w: graph contains a cycle", ErrStructural)

	// ErrNoEntryPoint indicates no node without incoming edges and no
	// input node exists.
	ErrNoEntryPoint = fmt.Errorf("%w: no entry point", ErrStructural)
)

// Execution errors.
var (
	// ErrMaxIterations indicates the run exhausted its iteration budget.
	ErrMaxIterations = fmt.Errorf("%w: exceeded maximum iterations", ErrExecution)

	// ErrAgentNotFound indicates an agent node names an unregistered agent.
	ErrAgentNotFound = fmt.Errorf("%w: agent not found", ErrExecution)

	// ErrNoAgentRuntime indicates an agent node ran without an agent runtime.
	ErrNoAgentRuntime = fmt.Errorf("%w: no agent runtime configured", ErrExecution)
)

// Checkpoint errors.
var (
	// ErrCheckpointNotFound indicates a checkpoint that is absent or
	// unreadable.
	ErrCheckpointNotFound = fmt.Errorf("%w: checkpoint not found", ErrCheckpoint)

	// ErrCheckpointCorrupt indicates a checkpoint that exists but cannot be
	// decoded. It also matches ErrCheckpointNotFound.
	ErrCheckpointCorrupt = fmt.Errorf("%w: corrupt", ErrCheckpointNotFound)

	// ErrNoCheckpointStore indicates a store-based checkpoint call with no
	// store given and none configured with WithCheckpointStore.
	ErrNoCheckpointStore = fmt.Errorf("%w: no checkpoint store configured", ErrCheckpoint)
)

// NodeExecutionError reports a node whose logic failed. The run stops at
// the first such failure.
type NodeExecutionError struct {
	// NodeID is the node that failed.
	NodeID string
	// NodeType is the type of the failed node.
	NodeType NodeType
	// Err is the error returned (or panic recovered) by the node logic.
	Err error
}

// Error implements the error interface.
func (e *NodeExecutionError) Error() string {
	return fmt.Sprintf("node %s (%s): %v", e.NodeID, e.NodeType, e.Err)
}

// Unwrap exposes both the execution class and the cause.
func (e *NodeExecutionError) Unwrap() []error {
	return []error{ErrExecution, e.Err}
}

// PanicError captures a panic raised by node logic.
type PanicError struct {
	// NodeID is the node that panicked.
	NodeID string
	// Value is the value passed to panic().
	Value any
	// Stack is the stack trace at the point of panic.
	Stack string
}

// Error implements the error interface.
func (e *PanicError) Error() string {
	return fmt.Sprintf("node %s panicked: %v", e.NodeID, e.Value)
}

// MaxIterationsError reports the node that would have exceeded the budget.
type MaxIterationsError struct {
	// Max is the configured iteration limit.
	Max int
	// NodeID is the node that was about to be visited.
	NodeID string
}

// Error implements the error interface.
func (e *MaxIterationsError) Error() string {
	return fmt.Sprintf("exceeded maximum iterations (%d) at node %s", e.Max, e.NodeID)
}

// Unwrap returns ErrMaxIterations for errors.Is support.
func (e *MaxIterationsError) Unwrap() error {
	return ErrMaxIterations
}

// CancellationError reports a run stopped by its context.
type CancellationError struct {
	// NodeID is the node that was about to execute.
	NodeID string
	// Cause is context.Canceled or context.DeadlineExceeded.
	Cause error
}

// Error implements the error interface.
func (e *CancellationError) Error() string {
	return fmt.Sprintf("cancelled before node %s: %v", e.NodeID, e.Cause)
}

// Unwrap exposes both the execution class and the context error.
func (e *CancellationError) Unwrap() []error {
	return []error{ErrExecution, e.Cause}
}

// CheckpointError wraps a failed checkpoint operation.
type CheckpointError struct {
	// Workflow is the graph name.
	Workflow string
	// Name is the checkpoint name.
	Name string
	// Op is "save", "load", "list" or "delete".
	Op string
	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *CheckpointError) Error() string {
	return fmt.Sprintf("checkpoint %s %s/%s: %v", e.Op, e.Workflow, e.Name, e.Err)
}

// Unwrap exposes both the checkpoint class and the cause.
func (e *CheckpointError) Unwrap() []error {
	return []error{ErrCheckpoint, e.Err}
}
