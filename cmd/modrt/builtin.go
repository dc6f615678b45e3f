package main

import (
	"time"

	"go.uber.org/zap"

	"github.com/modrt/modrt/internal/core/ecs"
	"github.com/modrt/modrt/internal/core/event"
	"github.com/modrt/modrt/internal/core/system"
	"github.com/modrt/modrt/internal/module"
)

// builtinCatalog holds the plugins compiled into the binary, addressed by
// "go:<name>" manifest entries.
func builtinCatalog() *module.Catalog {
	c := module.NewCatalog()
	c.Register("heartbeat", func() module.Plugin { return &heartbeat{every: 10 * time.Second} })
	return c
}

// Beats counts heartbeats on the heartbeat module's own entity.
type Beats struct{ Count int }

var beatsComponent = ecs.ComponentOf[Beats]()

// heartbeat logs world size periodically and every module load/unload.
type heartbeat struct {
	every   time.Duration
	elapsed time.Duration
	entity  ecs.EntityID
}

func (h *heartbeat) Initialize(r *module.Registrar) error {
	log := r.Log()
	world := r.World()
	if err := module.Subscribe(r, func(e event.ModuleLoaded) {
		log.Info("module loaded", zap.String("module", e.Name), zap.Stringer("guid", e.GUID))
	}); err != nil {
		return err
	}
	if err := module.Subscribe(r, func(e event.ModuleUnloaded) {
		log.Info("module unloaded", zap.String("module", e.Name), zap.Stringer("guid", e.GUID))
	}); err != nil {
		return err
	}
	if _, err := r.RegisterComponent(beatsComponent.Info()); err != nil {
		return err
	}
	e, err := world.CreateEntity(beatsComponent.Value(Beats{}))
	if err != nil {
		return err
	}
	h.entity = e
	_, err = r.AddSystem(system.NewFunc("heartbeat", system.PhasePostUpdate, func(dt time.Duration) {
		h.elapsed += dt
		if h.elapsed < h.every {
			return
		}
		h.elapsed = 0
		beats, ok := beatsComponent.Get(world, h.entity)
		if !ok {
			return
		}
		beats.Count++
		log.Info("heartbeat", zap.Int("beat", beats.Count), zap.Int("entities", world.Len()))
	}))
	return err
}

func (h *heartbeat) Shutdown(r *module.Registrar) error {
	return r.World().Defer(ecs.DestroyCmd(h.entity))
}
