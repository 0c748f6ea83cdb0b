package sequence

import (
	"context"
	"sort"
	"sync"
)

// Registry owns one Allocator per sequence name for a process.
//
// Write paths receive the Registry (or a single Allocator taken from it)
// explicitly; there are no package-level allocators.
type Registry struct {
	store CounterStore
	opts  []Option

	mu         sync.Mutex
	allocators map[string]*Allocator
}

// NewRegistry creates an empty registry. opts are applied to every
// allocator it creates.
func NewRegistry(store CounterStore, opts ...Option) *Registry {
	return &Registry{
		store:      store,
		opts:       opts,
		allocators: make(map[string]*Allocator),
	}
}

// Allocator returns the allocator for name, creating it on first use.
// Every call with the same name returns the same instance.
func (r *Registry) Allocator(name string) *Allocator {
	r.mu.Lock()
	defer r.mu.Unlock()

	if a, ok := r.allocators[name]; ok {
		return a
	}
	a := NewAllocator(name, r.store, r.opts...)
	r.allocators[name] = a
	return a
}

// NextID returns the next identifier of the named sequence.
func (r *Registry) NextID(ctx context.Context, name string) (int64, error) {
	return r.Allocator(name).NextID(ctx)
}

// Names returns the names of the allocators created so far, sorted.
func (r *Registry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	names := make([]string, 0, len(r.allocators))
	for name := range r.allocators {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
