package module

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/modrt/modrt/internal/core/ecs"
)

// State is the load state of one module.
type State int

const (
	Unloaded State = iota
	PendingLoad
	Loaded
	PendingUnload
)

func (s State) String() string {
	switch s {
	case Unloaded:
		return "Unloaded"
	case PendingLoad:
		return "PendingLoad"
	case Loaded:
		return "Loaded"
	case PendingUnload:
		return "PendingUnload"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Listener receives the load and unload hooks. The plural hooks bracket a
// whole batch; the singular hooks bracket one module inside it.
type Listener interface {
	OnBeforeLoadModules(batch []Module)
	OnBeforeLoadModule(m Module)
	OnAfterLoadModule(m Module)
	OnAfterLoadModules(loaded []Module)
	OnBeforeUnloadModules(batch []Module)
	OnBeforeUnloadModule(m Module)
	OnAfterUnloadModule(m Module)
	OnAfterUnloadModules(unloaded []Module)
}

// NopListener implements Listener with no-ops.
type NopListener struct{}

func (NopListener) OnBeforeLoadModules([]Module)   {}
func (NopListener) OnBeforeLoadModule(Module)      {}
func (NopListener) OnAfterLoadModule(Module)       {}
func (NopListener) OnAfterLoadModules([]Module)    {}
func (NopListener) OnBeforeUnloadModules([]Module) {}
func (NopListener) OnBeforeUnloadModule(Module)    {}
func (NopListener) OnAfterUnloadModule(Module)     {}
func (NopListener) OnAfterUnloadModules([]Module)  {}

type live struct {
	handle    Handle
	registrar *Registrar
}

// Context owns the known modules and applies load and unload requests at
// frame boundaries in dependency-safe order.
type Context struct {
	graph    *Graph
	states   map[uuid.UUID]State
	loads    []Module
	unloads  []Module
	live     map[uuid.UUID]*live
	rt       Runtime
	loaders  Loaders
	listener Listener
	log      *zap.Logger
}

func NewContext(graph *Graph, rt Runtime, loaders Loaders, log *zap.Logger) *Context {
	c := &Context{
		graph:    graph,
		states:   make(map[uuid.UUID]State, graph.Len()),
		live:     make(map[uuid.UUID]*live),
		rt:       rt,
		loaders:  loaders,
		listener: NopListener{},
		log:      log,
	}
	for _, m := range graph.Modules() {
		c.states[m.GUID] = Unloaded
	}
	return c
}

// SetListener installs the hook receiver. nil restores the no-op listener.
func (c *Context) SetListener(l Listener) {
	if l == nil {
		l = NopListener{}
	}
	c.listener = l
}

func (c *Context) Graph() *Graph { return c.graph }

// Available returns every discovered module in discovery order.
func (c *Context) Available() []Module { return c.graph.Modules() }

// Loaded returns the loaded modules in dependency order.
func (c *Context) Loaded() []Module {
	var out []Module
	for _, m := range c.graph.Modules() {
		if c.states[m.GUID] == Loaded || c.states[m.GUID] == PendingUnload {
			out = append(out, m)
		}
	}
	ordered, _ := c.graph.TopologicalOrder(out)
	return ordered
}

func (c *Context) State(m Module) State { return c.states[m.GUID] }

// IsLoaded reports whether m is active, including while an unload is pending.
func (c *Context) IsLoaded(m Module) bool {
	s := c.states[m.GUID]
	return s == Loaded || s == PendingUnload
}

// IsPending reports whether m changes state at the next frame boundary.
func (c *Context) IsPending(m Module) bool {
	s := c.states[m.GUID]
	return s == PendingLoad || s == PendingUnload
}

func (c *Context) FindByName(name string) (Module, bool) { return c.graph.Lookup(name) }

func (c *Context) Info(m Module) (Info, bool) { return c.graph.Info(m) }

// Registrar returns the registrar of a loaded module.
func (c *Context) Registrar(m Module) (*Registrar, bool) {
	l, ok := c.live[m.GUID]
	if !ok {
		return nil, false
	}
	return l.registrar, true
}

// CanLoad reports whether every dependency of m is loaded.
func (c *Context) CanLoad(m Module) bool {
	if !c.graph.Contains(m) {
		return false
	}
	for _, p := range c.graph.Prevs(m) {
		if !c.IsLoaded(p) {
			return false
		}
	}
	return true
}

// CanUnload reports whether no loaded module depends on m.
func (c *Context) CanUnload(m Module) bool {
	if !c.graph.Contains(m) {
		return false
	}
	for _, n := range c.graph.Nexts(m) {
		if c.IsLoaded(n) {
			return false
		}
	}
	return true
}

// LoadAtBeginOfFrame requests m to be loaded at the next ApplyPendingLoads.
// A request for a module that is not Unloaded is ignored with a warning.
func (c *Context) LoadAtBeginOfFrame(m Module) bool {
	if !c.graph.Contains(m) {
		c.log.Warn("load requested for unknown module", zap.String("module", m.Name), zap.Stringer("guid", m.GUID))
		return false
	}
	if s := c.states[m.GUID]; s != Unloaded {
		c.log.Warn("load request ignored", zap.String("module", m.Name), zap.Stringer("state", s))
		return false
	}
	c.states[m.GUID] = PendingLoad
	c.loads = append(c.loads, m)
	return true
}

// UnloadAtEndOfFrame requests m to be unloaded at the next
// ApplyPendingUnloads. A request for a module that is not Loaded is ignored
// with a warning.
func (c *Context) UnloadAtEndOfFrame(m Module) bool {
	if !c.graph.Contains(m) {
		c.log.Warn("unload requested for unknown module", zap.String("module", m.Name), zap.Stringer("guid", m.GUID))
		return false
	}
	if s := c.states[m.GUID]; s != Loaded {
		c.log.Warn("unload request ignored", zap.String("module", m.Name), zap.Stringer("state", s))
		return false
	}
	c.states[m.GUID] = PendingUnload
	c.unloads = append(c.unloads, m)
	return true
}

// LoadWithDependenciesAtBeginOfFrame requests m and every transitive
// dependency of m that is not loaded yet. It returns those modules in load
// order, m last, including the ones that were already pending.
func (c *Context) LoadWithDependenciesAtBeginOfFrame(m Module) []Module {
	if !c.graph.Contains(m) {
		c.log.Warn("load requested for unknown module", zap.String("module", m.Name), zap.Stringer("guid", m.GUID))
		return nil
	}
	if c.IsLoaded(m) {
		c.log.Warn("load request ignored", zap.String("module", m.Name), zap.Stringer("state", c.states[m.GUID]))
		return nil
	}
	var want []Module
	for _, p := range c.graph.AllPrevsOf(m) {
		if s := c.states[p.GUID]; s == Unloaded || s == PendingLoad {
			want = append(want, p)
		}
	}
	ordered, err := c.graph.TopologicalOrder(want)
	if err != nil {
		c.log.Error("order dependencies", zap.String("module", m.Name), zap.Error(err))
		return nil
	}
	ordered = append(ordered, m)
	for _, p := range ordered {
		if c.states[p.GUID] == Unloaded {
			c.LoadAtBeginOfFrame(p)
		}
	}
	return ordered
}

// UnloadWithDependantsAtEndOfFrame requests m and every loaded transitive
// dependant of m, dependants first. The returned list holds every module
// that goes away with m, pending ones included, so reloading it in reverse
// restores the loaded set.
func (c *Context) UnloadWithDependantsAtEndOfFrame(m Module) []Module {
	if !c.graph.Contains(m) {
		c.log.Warn("unload requested for unknown module", zap.String("module", m.Name), zap.Stringer("guid", m.GUID))
		return nil
	}
	if !c.IsLoaded(m) {
		c.log.Warn("unload request ignored", zap.String("module", m.Name), zap.Stringer("state", c.states[m.GUID]))
		return nil
	}
	var want []Module
	for _, n := range c.graph.AllNextsOf(m) {
		if c.IsLoaded(n) {
			want = append(want, n)
		}
	}
	ordered, err := c.graph.TopologicalOrder(want)
	if err != nil {
		c.log.Error("order dependants", zap.String("module", m.Name), zap.Error(err))
		return nil
	}
	reverse(ordered)
	ordered = append(ordered, m)
	for _, n := range ordered {
		if c.states[n.GUID] == Loaded {
			c.UnloadAtEndOfFrame(n)
		}
	}
	return ordered
}

func reverse(ms []Module) {
	for i, j := 0, len(ms)-1; i < j; i, j = i+1, j-1 {
		ms[i], ms[j] = ms[j], ms[i]
	}
}

// ApplyPendingLoads loads every pending module in dependency order and
// returns the modules that ended up loaded.
func (c *Context) ApplyPendingLoads() []Module {
	if len(c.loads) == 0 {
		return nil
	}
	batch, err := c.graph.TopologicalOrder(c.loads)
	c.loads = c.loads[:0]
	if err != nil {
		// the graph is acyclic and every queued module is known
		panic(err)
	}

	c.listener.OnBeforeLoadModules(batch)
	var loaded []Module
	for _, m := range batch {
		if c.load(m) {
			loaded = append(loaded, m)
		}
	}
	c.listener.OnAfterLoadModules(loaded)
	return loaded
}

func (c *Context) load(m Module) bool {
	log := c.log.With(zap.String("module", m.Name))
	if !c.CanLoad(m) {
		log.Warn("module dropped: dependencies not loaded")
		c.states[m.GUID] = Unloaded
		return false
	}
	c.listener.OnBeforeLoadModule(m)

	info, _ := c.graph.Info(m)
	h, err := c.loaders.open(info)
	if err != nil {
		log.Error("open module failed", zap.Error(err))
		c.states[m.GUID] = Unloaded
		return false
	}
	reg := newRegistrar(info, c.rt, c.log)
	if err := safeCall("initialize", h.Plugin().Initialize, reg); err != nil {
		log.Error("initialize failed, rolling back", zap.Error(err))
		reg.teardown()
		reg.invalidate()
		if err := h.Close(); err != nil {
			log.Warn("close module handle", zap.Error(err))
		}
		c.states[m.GUID] = Unloaded
		return false
	}
	c.live[m.GUID] = &live{handle: h, registrar: reg}
	c.states[m.GUID] = Loaded
	log.Info("module loaded", zap.Stringer("version", info.Version))
	c.listener.OnAfterLoadModule(m)
	return true
}

// ApplyPendingUnloads unloads every pending module, dependants first, and
// returns the modules that ended up unloaded.
func (c *Context) ApplyPendingUnloads() []Module {
	if len(c.unloads) == 0 {
		return nil
	}
	batch, err := c.graph.TopologicalOrder(c.unloads)
	c.unloads = c.unloads[:0]
	if err != nil {
		panic(err)
	}
	reverse(batch)

	c.listener.OnBeforeUnloadModules(batch)
	var unloaded []Module
	for _, m := range batch {
		if c.unload(m) {
			unloaded = append(unloaded, m)
		}
	}
	c.listener.OnAfterUnloadModules(unloaded)
	return unloaded
}

func (c *Context) unload(m Module) bool {
	log := c.log.With(zap.String("module", m.Name))
	for _, n := range c.graph.Nexts(m) {
		if c.IsLoaded(n) {
			log.Warn("module kept: a loaded module depends on it", zap.String("dependant", n.Name))
			c.states[m.GUID] = Loaded
			return false
		}
	}
	c.listener.OnBeforeUnloadModule(m)

	l := c.live[m.GUID]
	reg := l.registrar
	reg.teardown()
	if err := safeCall("shutdown", l.handle.Plugin().Shutdown, reg); err != nil {
		log.Error("shutdown failed", zap.Error(err))
	}
	// Shutdown may still register through the registrar.
	reg.teardown()
	if err := l.handle.Close(); err != nil {
		log.Warn("close module handle", zap.Error(err))
	}
	reg.invalidate()
	for _, idx := range reg.ComponentIndices() {
		if n := c.rt.World.ChunksReferencing(idx); n > 0 {
			panic(fmt.Sprintf("module %s unloaded but %d chunk(s) still reference component index %d", m.Name, n, idx))
		}
	}
	if left := c.rt.World.Registry().OwnedBy(m.Name); len(left) > 0 {
		panic(fmt.Sprintf("module %s unloaded but still owns components %v", m.Name, left))
	}

	delete(c.live, m.GUID)
	c.states[m.GUID] = Unloaded
	log.Info("module unloaded")
	c.listener.OnAfterUnloadModule(m)
	return true
}

// UnloadAll cancels pending loads and unloads every loaded module right
// away, dependants first.
func (c *Context) UnloadAll() []Module {
	for _, m := range c.loads {
		c.states[m.GUID] = Unloaded
	}
	c.loads = c.loads[:0]
	c.unloads = c.unloads[:0]
	for _, m := range c.graph.Modules() {
		if c.states[m.GUID] == Loaded || c.states[m.GUID] == PendingUnload {
			c.states[m.GUID] = PendingUnload
			c.unloads = append(c.unloads, m)
		}
	}
	return c.ApplyPendingUnloads()
}

// safeCall runs a plugin entry point, turning a panic into an error.
// Fatal errors keep unwinding.
func safeCall(name string, fn func(*Registrar) error, r *Registrar) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			if isFatal(rec) {
				panic(rec)
			}
			err = eris.Errorf("%s panicked: %v", name, rec)
		}
	}()
	return fn(r)
}

func isFatal(rec any) bool {
	err, ok := rec.(error)
	return ok && eris.Is(err, ecs.ErrInvalidComponent)
}
