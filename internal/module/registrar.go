package module

import (
	"github.com/modrt/modrt/internal/core/ecs"
	"github.com/modrt/modrt/internal/core/event"
	"github.com/modrt/modrt/internal/core/system"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// ResourceHost accepts resources registered by modules.
type ResourceHost interface {
	AddResource(res any) error
	RemoveResource(res any)
}

// Runtime is what a module may register into.
type Runtime struct {
	World     *ecs.World
	Runner    *system.Runner
	Bus       *event.Bus
	Resources ResourceHost
}

// Registrar is the capability a plugin receives. Everything registered
// through it is torn down when the module unloads, after which the
// registrar refuses further use.
type Registrar struct {
	module Module
	info   Info
	rt     Runtime
	log    *zap.Logger
	valid  bool

	components []ecs.ComponentID
	indices    []uint32
	systems    []system.Handle
	resources  []any
	subs       []event.Subscription
	customs    []string
}

func newRegistrar(info Info, rt Runtime, log *zap.Logger) *Registrar {
	return &Registrar{
		module: info.Module,
		info:   info,
		rt:     rt,
		log:    log.With(zap.String("module", info.Name)),
		valid:  true,
	}
}

func (r *Registrar) Module() Module    { return r.module }
func (r *Registrar) Info() Info        { return r.info }
func (r *Registrar) Log() *zap.Logger  { return r.log }
func (r *Registrar) World() *ecs.World { return r.rt.World }
func (r *Registrar) Valid() bool       { return r.valid }

func (r *Registrar) check(op string) error {
	if !r.valid {
		return eris.Wrapf(ErrRegistrarInvalid, "%s by %s", op, r.module.Name)
	}
	return nil
}

// RegisterComponent registers a component type owned by this module. A type
// that is already registered is returned as is and stays with its owner.
// A descriptor without identifier or storage is a programming error and
// panics; the panic is not contained by the module's entry point.
func (r *Registrar) RegisterComponent(info ecs.ComponentInfo) (*ecs.RegisteredComponent, error) {
	if err := r.check("register component"); err != nil {
		return nil, err
	}
	if !info.Valid() {
		panic(eris.Wrapf(ecs.ErrInvalidComponent, "module %s registered component %q", r.module.Name, info.ID))
	}
	if rc, err := r.rt.World.Registry().InfoOf(info.ID); err == nil {
		return rc, nil
	}
	info.Owner = r.module.Name
	rc, err := r.rt.World.Registry().Register(info)
	if err != nil {
		return nil, err
	}
	r.components = append(r.components, rc.ID)
	r.indices = append(r.indices, rc.Index)
	r.log.Debug("component registered", zap.String("component", string(rc.ID)), zap.Uint32("index", rc.Index))
	return rc, nil
}

// AddSystem schedules s until the module unloads.
func (r *Registrar) AddSystem(s system.System) (system.Handle, error) {
	if err := r.check("add system"); err != nil {
		return 0, err
	}
	h := r.rt.Runner.Register(s)
	r.systems = append(r.systems, h)
	return h, nil
}

// AddResource hands res to the engine until the module unloads.
func (r *Registrar) AddResource(res any) error {
	if err := r.check("add resource"); err != nil {
		return err
	}
	if r.rt.Resources == nil {
		return eris.New("runtime has no resource host")
	}
	if err := r.rt.Resources.AddResource(res); err != nil {
		return err
	}
	r.resources = append(r.resources, res)
	return nil
}

// HandleCustom registers the world handler for custom deferred commands of
// the given kind.
func (r *Registrar) HandleCustom(kind string, fn ecs.CustomHandler) error {
	if err := r.check("handle custom command"); err != nil {
		return err
	}
	r.rt.World.HandleCustom(kind, fn)
	r.customs = append(r.customs, kind)
	return nil
}

// Subscribe subscribes fn to events of type T until the module unloads.
func Subscribe[T any](r *Registrar, fn func(T)) error {
	if err := r.check("subscribe"); err != nil {
		return err
	}
	if r.rt.Bus == nil {
		return eris.New("runtime has no event bus")
	}
	r.subs = append(r.subs, event.Subscribe(r.rt.Bus, fn))
	return nil
}

// ComponentIndices returns the indices of the components this module owns.
func (r *Registrar) ComponentIndices() []uint32 {
	return append([]uint32(nil), r.indices...)
}

// teardown purges and deregisters the module's components, then removes its
// systems, resources, subscriptions and custom handlers. It may run more
// than once.
func (r *Registrar) teardown() {
	w := r.rt.World
	for i := len(r.components) - 1; i >= 0; i-- {
		id := r.components[i]
		migrated, err := w.PurgeComponent(id)
		if err != nil {
			r.log.Error("purge component failed", zap.String("component", string(id)), zap.Error(err))
		} else if migrated > 0 {
			r.log.Debug("component purged", zap.String("component", string(id)), zap.Int("entities", migrated))
		}
		w.Registry().Deregister(id)
	}
	r.components = r.components[:0]

	for _, h := range r.systems {
		r.rt.Runner.Remove(h)
	}
	r.systems = r.systems[:0]

	for i := len(r.resources) - 1; i >= 0; i-- {
		r.rt.Resources.RemoveResource(r.resources[i])
	}
	r.resources = r.resources[:0]

	for _, s := range r.subs {
		s.Cancel()
	}
	r.subs = r.subs[:0]

	for _, kind := range r.customs {
		w.RemoveCustomHandler(kind)
	}
	r.customs = r.customs[:0]
}

func (r *Registrar) invalidate() {
	r.valid = false
}
