package system

import (
	"sort"
	"time"

	"go.uber.org/zap"
)

// Handle identifies one registration in a Runner.
type Handle uint64

// Pass brackets a system update so structural changes requested during it
// are deferred until it ends. ecs.World implements it.
type Pass interface {
	BeginPass()
	EndPass()
}

// Observer receives the wall time of every system update.
type Observer func(name string, phase Phase, elapsed time.Duration)

type entry struct {
	handle Handle
	system System
	name   string
}

// Runner executes systems in phase order each frame. Systems of the same
// phase run in registration order.
type Runner struct {
	systems  []entry
	sorted   bool
	next     Handle
	pass     Pass
	observer Observer
	log      *zap.Logger
}

func NewRunner(pass Pass, log *zap.Logger) *Runner {
	return &Runner{
		systems: make([]entry, 0, 16),
		pass:    pass,
		log:     log,
	}
}

// Register adds s and returns the handle that removes it.
func (r *Runner) Register(s System) Handle {
	r.next++
	r.systems = append(r.systems, entry{handle: r.next, system: s, name: NameOf(s)})
	r.sorted = false
	return r.next
}

// Remove drops the system registered under h.
func (r *Runner) Remove(h Handle) bool {
	for i, e := range r.systems {
		if e.handle == h {
			r.systems = append(r.systems[:i], r.systems[i+1:]...)
			return true
		}
	}
	return false
}

func (r *Runner) Len() int { return len(r.systems) }

// SetObserver installs the timing observer. nil disables timing.
func (r *Runner) SetObserver(o Observer) {
	r.observer = o
}

func (r *Runner) Tick(dt time.Duration) {
	r.ensureSorted()
	for _, e := range r.snapshot() {
		r.run(e, dt)
	}
}

// TickPhase only runs the systems of the given phase.
func (r *Runner) TickPhase(phase Phase, dt time.Duration) {
	r.ensureSorted()
	for _, e := range r.snapshot() {
		if e.system.Phase() == phase {
			r.run(e, dt)
		}
	}
}

// snapshot keeps removals made by a system from shifting the slice under
// the loop.
func (r *Runner) snapshot() []entry {
	return append([]entry(nil), r.systems...)
}

func (r *Runner) run(e entry, dt time.Duration) {
	if r.pass != nil {
		r.pass.BeginPass()
		defer r.pass.EndPass()
	}
	start := time.Now()
	r.safeUpdate(e, dt)
	if r.observer != nil {
		r.observer(e.name, e.system.Phase(), time.Since(start))
	}
}

// safeUpdate keeps one faulty system from taking down the frame loop.
func (r *Runner) safeUpdate(e entry, dt time.Duration) {
	defer func() {
		if rec := recover(); rec != nil {
			r.log.Error("system panic recovered",
				zap.String("system", e.name),
				zap.Stringer("phase", e.system.Phase()),
				zap.Any("panic", rec),
			)
		}
	}()
	e.system.Update(dt)
}

func (r *Runner) ensureSorted() {
	if !r.sorted {
		sort.SliceStable(r.systems, func(i, j int) bool {
			return r.systems[i].system.Phase() < r.systems[j].system.Phase()
		})
		r.sorted = true
	}
}
