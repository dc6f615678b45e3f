package ecs

import (
	"github.com/rotisserie/eris"
)

// RegisteredComponent is a ComponentInfo with its dense signature index.
type RegisteredComponent struct {
	ComponentInfo
	Index uint32
}

// Registry assigns dense indices to component identifiers and builds
// signatures from them. Indices are retired on deregistration and never
// handed out again, so a signature computed before a type went away can not
// alias one computed after.
type Registry struct {
	byID    map[ComponentID]*RegisteredComponent
	byIndex []*RegisteredComponent
	next    uint32
}

func NewRegistry() *Registry {
	return &Registry{
		byID:    make(map[ComponentID]*RegisteredComponent, 64),
		byIndex: make([]*RegisteredComponent, 0, 64),
	}
}

// Register adds a component descriptor. Registering an identifier that is
// already known is a no-op and returns the existing entry.
func (r *Registry) Register(info ComponentInfo) (*RegisteredComponent, error) {
	if !info.Valid() {
		return nil, eris.Wrapf(ErrInvalidComponent, "register %q", info.ID)
	}
	if rc, ok := r.byID[info.ID]; ok {
		return rc, nil
	}
	if r.next >= MaxComponents {
		return nil, eris.Wrapf(ErrSignatureExhausted, "register %q (%d indices used)", info.ID, r.next)
	}
	rc := &RegisteredComponent{ComponentInfo: info, Index: r.next}
	r.next++
	r.byID[info.ID] = rc
	r.byIndex = append(r.byIndex, rc)
	return rc, nil
}

// Deregister removes the identifier. Its index stays retired.
func (r *Registry) Deregister(id ComponentID) {
	rc, ok := r.byID[id]
	if !ok {
		return
	}
	delete(r.byID, id)
	r.byIndex[rc.Index] = nil
}

// InfoOf returns the registered entry for id.
func (r *Registry) InfoOf(id ComponentID) (*RegisteredComponent, error) {
	rc, ok := r.byID[id]
	if !ok {
		return nil, eris.Wrapf(ErrUnknownComponent, "component %q", id)
	}
	return rc, nil
}

// ByIndex returns the live entry at index, or nil if it was never assigned
// or has been retired.
func (r *Registry) ByIndex(index uint32) *RegisteredComponent {
	if int(index) >= len(r.byIndex) {
		return nil
	}
	return r.byIndex[index]
}

// ToSignature sets the bit of every identifier.
func (r *Registry) ToSignature(ids ...ComponentID) (Signature, error) {
	var sig Signature
	for _, id := range ids {
		rc, ok := r.byID[id]
		if !ok {
			return Signature{}, eris.Wrapf(ErrUnknownComponent, "component %q", id)
		}
		sig = sig.With(rc.Index)
	}
	return sig, nil
}

// Count returns the number of currently registered components.
func (r *Registry) Count() int { return len(r.byID) }

// Retired returns how many indices were handed out and then deregistered.
func (r *Registry) Retired() int { return int(r.next) - len(r.byID) }

// OwnedBy lists the identifiers registered with the given owner.
func (r *Registry) OwnedBy(owner string) []ComponentID {
	var out []ComponentID
	for _, rc := range r.byIndex {
		if rc != nil && rc.Owner == owner {
			out = append(out, rc.ID)
		}
	}
	return out
}
