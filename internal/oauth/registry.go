package oauth

import (
	"fmt"
	"sort"
	"sync"
)

// Registry holds the descriptors known to the process, keyed by Descriptor.Key.
type Registry struct {
	mu          sync.RWMutex
	descriptors map[string]Descriptor
}

// NewRegistry creates a registry pre-loaded with the given descriptors.
func NewRegistry(ds ...Descriptor) (*Registry, error) {
	r := &Registry{descriptors: make(map[string]Descriptor, len(ds))}
	for _, d := range ds {
		if err := r.Register(d); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register validates and stores a copy of d. Keys must be unique.
func (r *Registry) Register(d Descriptor) error {
	if err := d.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.descriptors[d.Key]; ok {
		return fmt.Errorf("oauth: provider already registered: %s", d.Key)
	}
	r.descriptors[d.Key] = d.clone()
	return nil
}

// Lookup returns a copy of the descriptor for key.
func (r *Registry) Lookup(key string) (Descriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.descriptors[key]
	if !ok {
		return Descriptor{}, false
	}
	return d.clone(), true
}

// Keys returns the registered provider keys in lexical order.
func (r *Registry) Keys() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	keys := make([]string, 0, len(r.descriptors))
	for k := range r.descriptors {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
