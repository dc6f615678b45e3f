package ecs

import (
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// CoreOwner owns the component types the world registers for itself.
const CoreOwner = "core"

// World is the top-level ECS container. It owns the entity pool, the chunk
// store and the deferred command queue, and shares the component Registry
// with the module runtime.
type World struct {
	pool     *EntityPool
	registry *Registry
	chunks   []*Chunk
	bySig    map[Signature]chunkID
	live     int

	commands  []Command
	custom    map[string]CustomHandler
	iterating int
	passes    int

	children map[EntityID][]EntityID

	log *zap.Logger
}

func NewWorld(registry *Registry, log *zap.Logger) *World {
	w := &World{
		pool:     NewEntityPool(),
		registry: registry,
		chunks:   make([]*Chunk, 0, 32),
		bySig:    make(map[Signature]chunkID, 32),
		commands: make([]Command, 0, 64),
		custom:   make(map[string]CustomHandler),
		children: make(map[EntityID][]EntityID),
		log:      log,
	}
	for _, info := range []ComponentInfo{
		DisabledComponent.Info(),
		DisabledInHierarchyComponent.Info(),
		ParentComponent.Info(),
	} {
		info.Owner = CoreOwner
		if _, err := registry.Register(info); err != nil {
			panic(err)
		}
	}
	return w
}

func (w *World) Pool() *EntityPool   { return w.pool }
func (w *World) Registry() *Registry { return w.registry }

func (w *World) Alive(id EntityID) bool {
	return w.pool.Alive(id)
}

// Len returns the number of live entities.
func (w *World) Len() int { return w.pool.Len() }

// ChunkCount returns the number of live chunks, empty ones included.
func (w *World) ChunkCount() int { return w.live }

// Chunks returns the live chunks in creation order.
func (w *World) Chunks() []*Chunk {
	out := make([]*Chunk, 0, w.live)
	for _, c := range w.chunks {
		if c != nil {
			out = append(out, c)
		}
	}
	return out
}

// Iterating reports whether a query currently holds the world.
func (w *World) Iterating() bool { return w.iterating > 0 }

func (w *World) indexOf(id ComponentID) (uint32, bool) {
	rc, err := w.registry.InfoOf(id)
	if err != nil {
		return 0, false
	}
	return rc.Index, true
}

func (w *World) columnOf(e EntityID, id ComponentID) (column, int, bool) {
	if !w.pool.Alive(e) {
		return nil, 0, false
	}
	idx, ok := w.indexOf(id)
	if !ok {
		return nil, 0, false
	}
	loc := w.pool.location(e)
	col := w.chunks[loc.chunk].column(idx)
	if col == nil {
		return nil, 0, false
	}
	return col, loc.row, true
}

// chunkFor returns the chunk for sig, creating it if absent.
func (w *World) chunkFor(sig Signature) (*Chunk, error) {
	if id, ok := w.bySig[sig]; ok {
		return w.chunks[id], nil
	}
	indices := sig.Indices()
	comps := make([]*RegisteredComponent, 0, len(indices))
	for _, idx := range indices {
		rc := w.registry.ByIndex(idx)
		if rc == nil {
			return nil, eris.Wrapf(ErrUnknownComponent, "signature %s references retired index %d", sig, idx)
		}
		comps = append(comps, rc)
	}
	id := chunkID(len(w.chunks))
	c := newChunk(id, sig, comps)
	w.chunks = append(w.chunks, c)
	w.bySig[sig] = id
	w.live++
	w.log.Debug("chunk created", zap.Int32("chunk", int32(id)), zap.Stringer("signature", sig))
	return c, nil
}

// CreateEntity allocates an entity holding exactly the given components.
// Components without Data are zero-constructed.
func (w *World) CreateEntity(values ...Value) (EntityID, error) {
	if w.iterating > 0 {
		return 0, ErrWorldLocked
	}
	var sig Signature
	for _, v := range values {
		idx, ok := w.indexOf(v.ID)
		if !ok {
			return 0, eris.Wrapf(ErrUnknownComponent, "create entity with %q", v.ID)
		}
		sig = sig.With(idx)
	}
	c, err := w.chunkFor(sig)
	if err != nil {
		return 0, err
	}
	e := w.pool.Create()
	row := c.push(e)
	w.pool.setLocation(e, location{chunk: c.id, row: row})
	for _, v := range values {
		if v.Data == nil {
			continue
		}
		if err := w.setValue(e, v.ID, v.Data); err != nil {
			w.destroy(e)
			return 0, err
		}
	}
	return e, nil
}

// move relocates e into dst, copying the components both chunks share.
func (w *World) move(e EntityID, dst *Chunk) {
	loc := w.pool.location(e)
	src := w.chunks[loc.chunk]
	if src == dst {
		return
	}
	row := dst.pushFrom(e, src, loc.row)
	if moved, ok := src.swapRemove(loc.row); ok {
		w.pool.setLocation(moved, loc)
	}
	w.pool.setLocation(e, location{chunk: dst.id, row: row})
}

// AddComponent moves e to the chunk of its signature plus id. The new
// component is zero-constructed.
func (w *World) AddComponent(e EntityID, id ComponentID) error {
	if w.iterating > 0 {
		return ErrWorldLocked
	}
	if !w.pool.Alive(e) {
		return eris.Wrapf(ErrEntityNotAlive, "add %q to %s", id, e)
	}
	idx, ok := w.indexOf(id)
	if !ok {
		return eris.Wrapf(ErrUnknownComponent, "add %q to %s", id, e)
	}
	src := w.chunks[w.pool.location(e).chunk]
	if src.sig.Has(idx) {
		return eris.Wrapf(ErrComponentExists, "add %q to %s", id, e)
	}
	dst, err := w.chunkFor(src.sig.With(idx))
	if err != nil {
		return err
	}
	w.move(e, dst)
	return nil
}

// RemoveComponent moves e to the chunk of its signature minus id.
func (w *World) RemoveComponent(e EntityID, id ComponentID) error {
	if w.iterating > 0 {
		return ErrWorldLocked
	}
	if !w.pool.Alive(e) {
		return eris.Wrapf(ErrEntityNotAlive, "remove %q from %s", id, e)
	}
	idx, ok := w.indexOf(id)
	if !ok {
		return eris.Wrapf(ErrUnknownComponent, "remove %q from %s", id, e)
	}
	src := w.chunks[w.pool.location(e).chunk]
	if !src.sig.Has(idx) {
		return eris.Wrapf(ErrComponentNotFound, "remove %q from %s", id, e)
	}
	dst, err := w.chunkFor(src.sig.Without(idx))
	if err != nil {
		return err
	}
	w.move(e, dst)
	return nil
}

// SetComponent overwrites a component e already has. It is not a
// structural change and is allowed while iterating.
func (w *World) SetComponent(e EntityID, id ComponentID, data any) error {
	if !w.pool.Alive(e) {
		return eris.Wrapf(ErrEntityNotAlive, "set %q on %s", id, e)
	}
	return w.setValue(e, id, data)
}

func (w *World) setValue(e EntityID, id ComponentID, data any) error {
	col, row, ok := w.columnOf(e, id)
	if !ok {
		return eris.Wrapf(ErrComponentNotFound, "set %q on %s", id, e)
	}
	if !col.set(row, data) {
		return eris.Wrapf(ErrValueType, "set %q on %s with %T", id, e, data)
	}
	return nil
}

// Get returns a copy of e's component value.
func (w *World) Get(e EntityID, id ComponentID) (any, bool) {
	col, row, ok := w.columnOf(e, id)
	if !ok {
		return nil, false
	}
	return col.get(row), true
}

func (w *World) Has(e EntityID, id ComponentID) bool {
	_, _, ok := w.columnOf(e, id)
	return ok
}

// SignatureOf returns the signature of e's chunk.
func (w *World) SignatureOf(e EntityID) (Signature, bool) {
	if !w.pool.Alive(e) {
		return Signature{}, false
	}
	return w.chunks[w.pool.location(e).chunk].sig, true
}

// DestroyEntity removes e from its chunk and recycles the slot. Children
// are detached and become roots.
func (w *World) DestroyEntity(e EntityID) error {
	if w.iterating > 0 {
		return ErrWorldLocked
	}
	if !w.pool.Alive(e) {
		return eris.Wrapf(ErrEntityNotAlive, "destroy %s", e)
	}
	w.detachHierarchy(e)
	w.destroy(e)
	return nil
}

func (w *World) destroy(e EntityID) {
	loc := w.pool.location(e)
	if moved, ok := w.chunks[loc.chunk].swapRemove(loc.row); ok {
		w.pool.setLocation(moved, loc)
	}
	w.pool.Destroy(e)
}

// PurgeComponent migrates every entity whose chunk holds id to the chunk
// without it and drops the emptied chunks. Entities survive. It returns the
// number of entities migrated.
func (w *World) PurgeComponent(id ComponentID) (int, error) {
	if w.iterating > 0 {
		return 0, ErrWorldLocked
	}
	idx, ok := w.indexOf(id)
	if !ok {
		return 0, nil
	}
	migrated := 0
	for i, c := range w.chunks {
		if c == nil || !c.sig.Has(idx) {
			continue
		}
		dst, err := w.chunkFor(c.sig.Without(idx))
		if err != nil {
			return migrated, err
		}
		for c.Len() > 0 {
			w.move(c.entities[c.Len()-1], dst)
			migrated++
		}
		delete(w.bySig, c.sig)
		w.chunks[i] = nil
		w.live--
	}
	w.log.Debug("component purged", zap.String("component", string(id)), zap.Int("migrated", migrated))
	return migrated, nil
}

// ChunksReferencing counts live chunks whose signature holds index.
func (w *World) ChunksReferencing(index uint32) int {
	n := 0
	for _, c := range w.chunks {
		if c != nil && c.sig.Has(index) {
			n++
		}
	}
	return n
}

// BeginPass brackets one system update. Deferred commands enqueued inside
// the bracket are flushed when the outermost bracket ends.
func (w *World) BeginPass() {
	w.passes++
}

func (w *World) EndPass() {
	if w.passes == 0 {
		return
	}
	w.passes--
	w.flushIfIdle()
}

func (w *World) lock() {
	w.iterating++
}

func (w *World) unlock() {
	w.iterating--
	w.flushIfIdle()
}

func (w *World) flushIfIdle() {
	if w.iterating == 0 && w.passes == 0 {
		w.Flush()
	}
}
