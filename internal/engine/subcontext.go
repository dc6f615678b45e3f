package engine

import (
	"time"

	"github.com/modrt/modrt/internal/core/system"
	"github.com/modrt/modrt/internal/module"
)

// Subcontext is a long-lived participant in the frame lifecycle. It opts
// into individual hooks by implementing the interfaces below, and into
// module load/unload hooks by implementing module.Listener.
type Subcontext interface {
	Name() string
}

type (
	Initializer   interface{ OnInitialize(c *Context) error }
	Shutdowner    interface{ OnShutdown(c *Context) }
	PreUpdater    interface{ OnPreUpdate() }
	BeforeUpdater interface{ OnBeforeUpdate(dt time.Duration) }
	Updater       interface{ OnUpdate(dt time.Duration) }
	AfterUpdater  interface{ OnAfterUpdate(dt time.Duration) }
	UIDrawer      interface{ OnUI() }
	PostUpdater   interface{ OnPostUpdate() }
)

// Host is the application driving the frame loop.
type Host interface {
	OnInitialize(c *Context) error
	OnUpdate(dt time.Duration)
	OnShutdown(c *Context)
}

// NopHost is a Host that does nothing.
type NopHost struct{}

func (NopHost) OnInitialize(*Context) error { return nil }
func (NopHost) OnUpdate(time.Duration)      {}
func (NopHost) OnShutdown(*Context)         {}

// Built-in subcontext priorities. Higher priorities are torn down later.
const (
	PrioritySystems = 0
	PriorityModules = 10
)

type subEntry struct {
	sub      Subcontext
	priority int
}

// systemsSubcontext runs every registered system over the world.
type systemsSubcontext struct {
	runner *system.Runner
}

func (s *systemsSubcontext) Name() string { return "systems" }

func (s *systemsSubcontext) OnUpdate(dt time.Duration) {
	s.runner.Tick(dt)
}

// modulesSubcontext unloads every module when the engine shuts down.
type modulesSubcontext struct {
	modules *module.Context
}

func (s *modulesSubcontext) Name() string { return "modules" }

func (s *modulesSubcontext) OnShutdown(*Context) {
	s.modules.UnloadAll()
}
