package engine

import (
	"reflect"
	"sort"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/modrt/modrt/internal/core/ecs"
	"github.com/modrt/modrt/internal/core/event"
	"github.com/modrt/modrt/internal/core/system"
	"github.com/modrt/modrt/internal/module"
)

// SystemTiming is one system update measured during the current frame.
type SystemTiming struct {
	Name    string
	Phase   system.Phase
	Elapsed time.Duration
}

// FrameStats is the per-frame instrumentation. It is cleared at the end of
// PostUpdate.
type FrameStats struct {
	Frame   uint64
	Start   time.Time
	Systems []SystemTiming
}

// Context is the composition root: it owns the world, the system runner,
// the event bus and the module context, and drives the frame lifecycle
// across its subcontexts.
type Context struct {
	world   *ecs.World
	runner  *system.Runner
	bus     *event.Bus
	modules *module.Context
	host    Host

	subs   []subEntry
	byName map[string]Subcontext

	resources     []any
	byType        map[reflect.Type]any
	resourcesLive bool

	initialized bool
	inFrame     bool
	frame       uint64
	stats       FrameStats

	log *zap.Logger
}

// New builds an engine over the discovered module graph. The systems and
// modules subcontexts are registered up front.
func New(graph *module.Graph, loaders module.Loaders, log *zap.Logger) *Context {
	world := ecs.NewWorld(ecs.NewRegistry(), log.Named("world"))
	c := &Context{
		world:  world,
		runner: system.NewRunner(world, log.Named("systems")),
		bus:    event.NewBus(),
		host:   NopHost{},
		byName: make(map[string]Subcontext),
		byType: make(map[reflect.Type]any),
		log:    log,
	}
	c.modules = module.NewContext(graph, module.Runtime{
		World:     c.world,
		Runner:    c.runner,
		Bus:       c.bus,
		Resources: c,
	}, loaders, log.Named("modules"))
	c.modules.SetListener(c)
	c.runner.SetObserver(c.observeSystem)

	// built-ins can not collide
	_ = c.AddSubcontext(&systemsSubcontext{runner: c.runner}, PrioritySystems)
	_ = c.AddSubcontext(&modulesSubcontext{modules: c.modules}, PriorityModules)
	return c
}

func (c *Context) World() *ecs.World        { return c.world }
func (c *Context) Runner() *system.Runner   { return c.runner }
func (c *Context) Bus() *event.Bus          { return c.bus }
func (c *Context) Modules() *module.Context { return c.modules }
func (c *Context) Log() *zap.Logger         { return c.log }
func (c *Context) FrameCount() uint64       { return c.frame }
func (c *Context) Stats() FrameStats        { return c.stats }
func (c *Context) Initialized() bool        { return c.initialized }

func (c *Context) Subcontext(name string) (Subcontext, bool) {
	s, ok := c.byName[name]
	return s, ok
}

// SetHost installs the application host. nil restores NopHost.
func (c *Context) SetHost(h Host) {
	if h == nil {
		h = NopHost{}
	}
	c.host = h
}

// AddSubcontext registers s. Subcontexts receive frame hooks in
// registration order; priority only orders shutdown, higher last.
func (c *Context) AddSubcontext(s Subcontext, priority int) error {
	if _, ok := c.byName[s.Name()]; ok {
		return eris.Wrapf(ErrDuplicateSubcontext, "%q", s.Name())
	}
	if c.initialized {
		if i, ok := s.(Initializer); ok {
			if err := i.OnInitialize(c); err != nil {
				return eris.Wrapf(err, "initialize subcontext %s", s.Name())
			}
		}
	}
	c.subs = append(c.subs, subEntry{sub: s, priority: priority})
	c.byName[s.Name()] = s
	return nil
}

// Initialize runs OnInitialize on every subcontext, then on the host, loads
// the registered resources and queues the startup modules for the first
// frame.
func (c *Context) Initialize(startup []string) error {
	for _, e := range c.subs {
		if i, ok := e.sub.(Initializer); ok {
			if err := i.OnInitialize(c); err != nil {
				return eris.Wrapf(err, "initialize subcontext %s", e.sub.Name())
			}
		}
	}
	if err := c.host.OnInitialize(c); err != nil {
		return eris.Wrap(err, "initialize host")
	}
	for _, res := range c.resources {
		if l, ok := res.(ResourceLoader); ok {
			if err := l.OnLoad(c); err != nil {
				return eris.Wrapf(err, "load resource %T", res)
			}
		}
	}
	c.resourcesLive = true
	c.initialized = true
	return c.queueStartup(startup)
}

// queueStartup requests every listed module. Duplicates are skipped with a
// warning; a name that resolves to no module is fatal.
func (c *Context) queueStartup(names []string) error {
	seen := make(map[module.Module]bool, len(names))
	for _, name := range names {
		m, ok := c.modules.FindByName(name)
		if !ok {
			return eris.Wrapf(module.ErrUnknownModule, "startup module %q", name)
		}
		if seen[m] {
			c.log.Warn("duplicate startup module skipped", zap.String("module", name))
			continue
		}
		seen[m] = true
		c.modules.LoadAtBeginOfFrame(m)
	}
	return nil
}

// Frame runs one frame. Frames do not nest.
func (c *Context) Frame(dt time.Duration) error {
	if !c.initialized {
		return ErrNotInitialized
	}
	if c.inFrame {
		return ErrReentrantFrame
	}
	c.inFrame = true
	defer func() { c.inFrame = false }()

	c.stats.Frame = c.frame
	c.stats.Start = time.Now()

	c.modules.ApplyPendingLoads()
	c.preUpdate()
	c.host.OnUpdate(dt)
	for _, e := range c.subs {
		if u, ok := e.sub.(BeforeUpdater); ok {
			u.OnBeforeUpdate(dt)
		}
	}
	for _, e := range c.subs {
		if u, ok := e.sub.(Updater); ok {
			u.OnUpdate(dt)
		}
	}
	for _, e := range c.subs {
		if u, ok := e.sub.(AfterUpdater); ok {
			u.OnAfterUpdate(dt)
		}
	}
	for _, e := range c.subs {
		if u, ok := e.sub.(UIDrawer); ok {
			u.OnUI()
		}
	}
	c.postUpdate()
	c.modules.ApplyPendingUnloads()
	c.frame++
	return nil
}

func (c *Context) preUpdate() {
	c.bus.SwapBuffers()
	c.bus.DispatchAll()
	for _, e := range c.subs {
		if p, ok := e.sub.(PreUpdater); ok {
			p.OnPreUpdate()
		}
	}
}

func (c *Context) postUpdate() {
	for _, e := range c.subs {
		if p, ok := e.sub.(PostUpdater); ok {
			p.OnPostUpdate()
		}
	}
	c.stats.Systems = c.stats.Systems[:0]
}

func (c *Context) observeSystem(name string, phase system.Phase, elapsed time.Duration) {
	c.stats.Systems = append(c.stats.Systems, SystemTiming{Name: name, Phase: phase, Elapsed: elapsed})
}

// Shutdown unloads resources in reverse order, shuts the host down, then
// every subcontext in ascending priority. The subcontext set and resource
// list are cleared. Shutting down an engine that is not initialized does
// nothing.
func (c *Context) Shutdown() {
	if !c.initialized {
		return
	}
	for i := len(c.resources) - 1; i >= 0; i-- {
		if u, ok := c.resources[i].(ResourceUnloader); ok {
			u.OnUnload(c)
		}
	}
	c.resourcesLive = false
	c.host.OnShutdown(c)

	order := append([]subEntry(nil), c.subs...)
	sort.SliceStable(order, func(i, j int) bool { return order[i].priority < order[j].priority })
	for _, e := range order {
		if s, ok := e.sub.(Shutdowner); ok {
			s.OnShutdown(c)
		}
	}
	c.subs = nil
	c.byName = make(map[string]Subcontext)
	c.resources = nil
	c.byType = make(map[reflect.Type]any)
	c.initialized = false
}

func (c *Context) listeners() []module.Listener {
	var out []module.Listener
	for _, e := range c.subs {
		if l, ok := e.sub.(module.Listener); ok {
			out = append(out, l)
		}
	}
	if l, ok := c.host.(module.Listener); ok {
		out = append(out, l)
	}
	return out
}

func (c *Context) OnBeforeLoadModules(batch []module.Module) {
	for _, l := range c.listeners() {
		l.OnBeforeLoadModules(batch)
	}
}

func (c *Context) OnBeforeLoadModule(m module.Module) {
	for _, l := range c.listeners() {
		l.OnBeforeLoadModule(m)
	}
}

func (c *Context) OnAfterLoadModule(m module.Module) {
	event.Emit(c.bus, event.ModuleLoaded{Name: m.Name, GUID: m.GUID})
	for _, l := range c.listeners() {
		l.OnAfterLoadModule(m)
	}
}

func (c *Context) OnAfterLoadModules(loaded []module.Module) {
	for _, l := range c.listeners() {
		l.OnAfterLoadModules(loaded)
	}
}

func (c *Context) OnBeforeUnloadModules(batch []module.Module) {
	for _, l := range c.listeners() {
		l.OnBeforeUnloadModules(batch)
	}
}

func (c *Context) OnBeforeUnloadModule(m module.Module) {
	for _, l := range c.listeners() {
		l.OnBeforeUnloadModule(m)
	}
}

func (c *Context) OnAfterUnloadModule(m module.Module) {
	event.Emit(c.bus, event.ModuleUnloaded{Name: m.Name, GUID: m.GUID})
	for _, l := range c.listeners() {
		l.OnAfterUnloadModule(m)
	}
}

func (c *Context) OnAfterUnloadModules(unloaded []module.Module) {
	for _, l := range c.listeners() {
		l.OnAfterUnloadModules(unloaded)
	}
}
