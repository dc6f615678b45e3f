package ecs

import (
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Disabled marks an entity as inactive.
type Disabled struct{}

// DisabledInHierarchy marks an entity whose ancestor is inactive.
type DisabledInHierarchy struct{}

// Parent links an entity to its parent.
type Parent struct {
	ID EntityID
}

var (
	DisabledComponent            = NewComponent[Disabled]("core.Disabled")
	DisabledInHierarchyComponent = NewComponent[DisabledInHierarchy]("core.DisabledInHierarchy")
	ParentComponent              = NewComponent[Parent]("core.Parent")
)

var ErrHierarchyCycle = eris.New("entity can not be parented to its own descendant")

// ParentOf returns e's parent.
func (w *World) ParentOf(e EntityID) (EntityID, bool) {
	p, ok := ParentComponent.Get(w, e)
	if !ok {
		return 0, false
	}
	return p.ID, true
}

// Children returns e's direct children.
func (w *World) Children(e EntityID) []EntityID {
	return append([]EntityID(nil), w.children[e]...)
}

// SetParent attaches child under parent and refreshes the inherited
// disabled marker of child's subtree.
func (w *World) SetParent(child, parent EntityID) error {
	if w.iterating > 0 {
		return ErrWorldLocked
	}
	if !w.pool.Alive(child) {
		return eris.Wrapf(ErrEntityNotAlive, "set parent of %s", child)
	}
	if !w.pool.Alive(parent) {
		return eris.Wrapf(ErrEntityNotAlive, "parent %s", parent)
	}
	for p, ok := parent, true; ok; p, ok = w.ParentOf(p) {
		if p == child {
			return eris.Wrapf(ErrHierarchyCycle, "%s under %s", child, parent)
		}
	}
	w.unlinkFromParent(child)
	if !w.Has(child, ParentComponent.ID()) {
		if err := w.AddComponent(child, ParentComponent.ID()); err != nil {
			return err
		}
	}
	if err := ParentComponent.Set(w, child, Parent{ID: parent}); err != nil {
		return err
	}
	w.children[parent] = append(w.children[parent], child)
	return w.refreshInherited(child, w.inactive(parent))
}

// ClearParent turns child into a root.
func (w *World) ClearParent(child EntityID) error {
	if w.iterating > 0 {
		return ErrWorldLocked
	}
	if !w.Has(child, ParentComponent.ID()) {
		return nil
	}
	w.unlinkFromParent(child)
	if err := w.RemoveComponent(child, ParentComponent.ID()); err != nil {
		return err
	}
	return w.refreshInherited(child, false)
}

// SetEnabled adds or removes the Disabled marker on e and propagates the
// inherited marker to its descendants.
func (w *World) SetEnabled(e EntityID, enabled bool) error {
	if w.iterating > 0 {
		return ErrWorldLocked
	}
	if !w.pool.Alive(e) {
		return eris.Wrapf(ErrEntityNotAlive, "set enabled on %s", e)
	}
	has := w.Has(e, DisabledComponent.ID())
	switch {
	case enabled && has:
		if err := w.RemoveComponent(e, DisabledComponent.ID()); err != nil {
			return err
		}
	case !enabled && !has:
		if err := w.AddComponent(e, DisabledComponent.ID()); err != nil {
			return err
		}
	}
	for _, c := range w.children[e] {
		if err := w.refreshInherited(c, w.inactive(e)); err != nil {
			return err
		}
	}
	return nil
}

// IsActive reports whether e is alive and neither it nor an ancestor is disabled.
func (w *World) IsActive(e EntityID) bool {
	return w.pool.Alive(e) && !w.inactive(e)
}

func (w *World) inactive(e EntityID) bool {
	return w.Has(e, DisabledComponent.ID()) || w.Has(e, DisabledInHierarchyComponent.ID())
}

func (w *World) refreshInherited(e EntityID, inherited bool) error {
	has := w.Has(e, DisabledInHierarchyComponent.ID())
	switch {
	case inherited && !has:
		if err := w.AddComponent(e, DisabledInHierarchyComponent.ID()); err != nil {
			return err
		}
	case !inherited && has:
		if err := w.RemoveComponent(e, DisabledInHierarchyComponent.ID()); err != nil {
			return err
		}
	}
	for _, c := range w.children[e] {
		if err := w.refreshInherited(c, w.inactive(e)); err != nil {
			return err
		}
	}
	return nil
}

func (w *World) unlinkFromParent(child EntityID) {
	parent, ok := w.ParentOf(child)
	if !ok {
		return
	}
	siblings := w.children[parent]
	for i, s := range siblings {
		if s == child {
			siblings = append(siblings[:i], siblings[i+1:]...)
			break
		}
	}
	if len(siblings) == 0 {
		delete(w.children, parent)
	} else {
		w.children[parent] = siblings
	}
}

// detachHierarchy runs before e is destroyed: e leaves its parent and its
// children become roots.
func (w *World) detachHierarchy(e EntityID) {
	w.unlinkFromParent(e)
	kids := w.children[e]
	delete(w.children, e)
	for _, c := range kids {
		if err := w.RemoveComponent(c, ParentComponent.ID()); err != nil {
			w.log.Warn("detach child failed", zap.Stringer("child", c), zap.Error(err))
			continue
		}
		if err := w.refreshInherited(c, false); err != nil {
			w.log.Warn("refresh detached child failed", zap.Stringer("child", c), zap.Error(err))
		}
	}
}
