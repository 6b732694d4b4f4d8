package checkpoint

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore keeps checkpoints in process memory. Data is lost when the
// process exits; it suits tests and short-lived workers.
type MemoryStore struct {
	mu     sync.RWMutex
	data   map[string]map[string]memoryEntry // workflow -> name -> entry
	closed bool
}

type memoryEntry struct {
	data      []byte
	updatedAt time.Time
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		data: make(map[string]map[string]memoryEntry),
	}
}

// Save implements Store.
func (m *MemoryStore) Save(_ context.Context, workflow, name string, data []byte) (string, error) {
	if err := validateAddress(workflow, name); err != nil {
		return "", err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return "", ErrStoreClosed
	}
	if m.data[workflow] == nil {
		m.data[workflow] = make(map[string]memoryEntry)
	}

	// Copy so the caller can reuse its buffer.
	stored := make([]byte, len(data))
	copy(stored, data)
	m.data[workflow][name] = memoryEntry{data: stored, updatedAt: time.Now().UTC()}

	return "memory://" + workflow + "/" + name, nil
}

// Load implements Store.
func (m *MemoryStore) Load(_ context.Context, workflow, name string) ([]byte, error) {
	if err := validateAddress(workflow, name); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrStoreClosed
	}
	entry, ok := m.data[workflow][name]
	if !ok {
		return nil, ErrNotFound
	}

	out := make([]byte, len(entry.data))
	copy(out, entry.data)
	return out, nil
}

// List implements Store.
func (m *MemoryStore) List(_ context.Context, workflow string) ([]Info, error) {
	if err := ValidateName(workflow); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrStoreClosed
	}

	infos := make([]Info, 0, len(m.data[workflow]))
	for name, entry := range m.data[workflow] {
		infos = append(infos, Info{
			Workflow:  workflow,
			Name:      name,
			Size:      int64(len(entry.data)),
			UpdatedAt: entry.updatedAt,
		})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos, nil
}

// Delete implements Store.
func (m *MemoryStore) Delete(_ context.Context, workflow, name string) error {
	if err := validateAddress(workflow, name); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrStoreClosed
	}
	delete(m.data[workflow], name)
	return nil
}

// Close implements Store.
func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	m.data = nil
	return nil
}

// Len returns the number of checkpoints across all workflows.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	count := 0
	for _, wf := range m.data {
		count += len(wf)
	}
	return count
}
