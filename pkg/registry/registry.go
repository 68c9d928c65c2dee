// Package registry holds the objects a document declares, keyed by ID.
//
// The registry is append-only: objects are registered once and never
// mutated or removed, so handles returned by Lookup stay valid for the life
// of the compilation. It is passed explicitly to every stage that needs it;
// there is no process-wide registry.
package registry

import (
	"sync"

	"github.com/openfroyo/recwire/pkg/engine"
)

// Registry is an append-only set of object handles.
type Registry struct {
	mu      sync.RWMutex
	handles map[string]engine.Handle
	order   []string
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{
		handles: make(map[string]engine.Handle),
	}
}

// Register adds an object. Registering an existing ID fails with DuplicateID.
func (r *Registry) Register(h engine.Handle) error {
	if h.ID == "" {
		return engine.NewInvalidDocumentError("object has empty id", nil)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.handles[h.ID]; exists {
		return engine.NewDuplicateIDError(h.ID)
	}

	h.Capabilities = append([]engine.Capability(nil), h.Capabilities...)
	r.handles[h.ID] = h
	r.order = append(r.order, h.ID)
	return nil
}

// Lookup returns the handle registered under id.
func (r *Registry) Lookup(id string) (engine.Handle, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	h, ok := r.handles[id]
	if !ok {
		return engine.Handle{}, false
	}
	h.Capabilities = append([]engine.Capability(nil), h.Capabilities...)
	return h, true
}

// IDs returns registered IDs in registration order.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return append([]string(nil), r.order...)
}

// WithCapability returns IDs of objects providing c, in registration order.
func (r *Registry) WithCapability(c engine.Capability) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var ids []string
	for _, id := range r.order {
		if r.handles[id].Has(c) {
			ids = append(ids, id)
		}
	}
	return ids
}

// Len returns the number of registered objects.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.order)
}
