package agentgraph

import (
	"maps"
	"sync"
)

// Bookkeeping keys the engine writes into the state.
const (
	StateKeyInput      = "input"
	StateKeyIterations = "iterations"
	StateKeyTask       = "task"
)

// runState is the shared key-value state of one run. Node results are
// written under their node id; the iteration counter is kept outside the
// map so its check-and-increment is a single critical section.
type runState struct {
	mu         sync.RWMutex
	data       map[string]any
	iterations int
}

func newRunState(seed map[string]any) *runState {
	data := make(map[string]any, len(seed)+2)
	for k, v := range seed {
		data[k] = v
	}
	return &runState{data: data}
}

// tick consumes one unit of the iteration budget for nodeID.
func (s *runState) tick(max int, nodeID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.iterations >= max {
		return &MaxIterationsError{Max: max, NodeID: nodeID}
	}
	s.iterations++
	return nil
}

func (s *runState) set(key string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = value
}

func (s *runState) get(key string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.data[key]
	return v, ok
}

// view returns a shallow copy for condition evaluation.
func (s *runState) view() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m := maps.Clone(s.data)
	m[StateKeyIterations] = s.iterations
	return m
}

// snapshot returns a deep copy that shares nothing with the live state.
func (s *runState) snapshot() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m := deepCopyMap(s.data)
	m[StateKeyIterations] = s.iterations
	return m
}

// final returns the state map handed back to the caller.
func (s *runState) final() map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[StateKeyIterations] = s.iterations
	return s.data
}
