// Package resolver turns symbolic object references into registered handles.
package resolver

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/openfroyo/recwire/pkg/engine"
)

// Request is one field's reference awaiting resolution.
type Request struct {
	Field     string
	Reference engine.ObjectReference
}

// Resolver resolves references against an object lookup. It never mutates
// the lookup and never retries a failed reference.
type Resolver struct {
	objects engine.ObjectLookup
	logger  zerolog.Logger
}

// New creates a resolver over objects.
func New(objects engine.ObjectLookup, logger zerolog.Logger) *Resolver {
	return &Resolver{
		objects: objects,
		logger:  logger.With().Str("component", "resolver").Logger(),
	}
}

// Resolve returns the handle for ref. An unregistered ID fails with
// UnknownReference; a handle lacking the capability fails with
// CapabilityMismatch.
func (r *Resolver) Resolve(ref engine.ObjectReference) (*engine.Handle, error) {
	h, ok := r.objects.Lookup(ref.ID)
	if !ok {
		return nil, engine.NewUnknownReferenceError(ref.ID, ref.Capability)
	}
	if !h.Has(ref.Capability) {
		return nil, engine.NewCapabilityMismatchError(ref.ID, ref.Capability, h.Capabilities)
	}

	r.logger.Debug().
		Str("id", ref.ID).
		Str("capability", string(ref.Capability)).
		Msg("Reference resolved")

	return &h, nil
}

// ResolveAll resolves requests in order and stops at the first failure.
// On failure no partial results are returned.
func (r *Resolver) ResolveAll(requests []Request) ([]engine.ResolvedDependency, error) {
	deps := make([]engine.ResolvedDependency, 0, len(requests))
	for _, req := range requests {
		h, err := r.Resolve(req.Reference)
		if err != nil {
			if ce, ok := engine.AsCompileError(err); ok {
				ce.WithField(req.Field)
			}
			return nil, err
		}
		deps = append(deps, engine.ResolvedDependency{
			Field:     req.Field,
			Reference: req.Reference,
			Handle:    *h,
		})
	}
	return deps, nil
}

// Sole returns the single registered object providing c. It fails with
// UnknownReference when no object or more than one object qualifies.
func (r *Resolver) Sole(c engine.Capability) (*engine.Handle, error) {
	var found []string
	for _, id := range r.objects.IDs() {
		if h, ok := r.objects.Lookup(id); ok && h.Has(c) {
			found = append(found, id)
		}
	}

	switch len(found) {
	case 1:
		return r.Resolve(engine.ObjectReference{ID: found[0], Capability: c})
	case 0:
		err := engine.NewUnknownReferenceError("", c)
		err.Message = fmt.Sprintf("no %s is declared", c)
		return nil, err
	default:
		err := engine.NewUnknownReferenceError("", c).WithDetail("candidates", found)
		err.Message = fmt.Sprintf("id is required when more than one %s is declared (%s)",
			c, strings.Join(found, ", "))
		return nil, err
	}
}
