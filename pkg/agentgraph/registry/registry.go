package registry

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// ErrDuplicate is returned by Register when the name is already taken.
var ErrDuplicate = errors.New("already registered")

// Registry is a thread-safe set of named values.
// Reads take a shared lock; agents and predicates are looked up far more
// often than they are registered.
type Registry[V any] struct {
	kind    string
	mu      sync.RWMutex
	entries map[string]V
}

// New creates an empty registry. kind names what is stored ("agent",
// "predicate") and only appears in error messages.
func New[V any](kind string) *Registry[V] {
	return &Registry[V]{
		kind:    kind,
		entries: make(map[string]V),
	}
}

// Register adds a value under name. It fails if name is empty or taken.
func (r *Registry[V]) Register(name string, value V) error {
	if name == "" {
		return fmt.Errorf("%s name cannot be empty", r.kind)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.entries[name]; ok {
		return fmt.Errorf("%s %q: %w", r.kind, name, ErrDuplicate)
	}
	r.entries[name] = value
	return nil
}

// Put adds or replaces the value under name.
func (r *Registry[V]) Put(name string, value V) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[name] = value
}

// Get returns the value for name and whether it exists.
func (r *Registry[V]) Get(name string) (V, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.entries[name]
	return v, ok
}

// Has reports whether name is registered.
func (r *Registry[V]) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.entries[name]
	return ok
}

// Unregister removes name. It reports whether anything was removed.
func (r *Registry[V]) Unregister(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.entries[name]; !ok {
		return false
	}
	delete(r.entries, name)
	return true
}

// Clear removes every entry.
func (r *Registry[V]) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = make(map[string]V)
}

// Names returns the registered names in sorted order.
func (r *Registry[V]) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of entries.
func (r *Registry[V]) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// Range calls fn for every entry in name order until fn returns false.
// It iterates over a snapshot, so fn may register or unregister entries.
func (r *Registry[V]) Range(fn func(name string, value V) bool) {
	r.mu.RLock()
	snapshot := make(map[string]V, len(r.entries))
	for k, v := range r.entries {
		snapshot[k] = v
	}
	r.mu.RUnlock()

	names := make([]string, 0, len(snapshot))
	for name := range snapshot {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if !fn(name, snapshot[name]) {
			return
		}
	}
}

// GetOrCreate returns the value for name, creating it with factory if it
// is missing. factory runs at most once per name.
func (r *Registry[V]) GetOrCreate(name string, factory func() V) V {
	r.mu.RLock()
	v, ok := r.entries[name]
	r.mu.RUnlock()
	if ok {
		return v
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if v, ok := r.entries[name]; ok {
		return v
	}
	v = factory()
	r.entries[name] = v
	return v
}
