package system

import (
	"fmt"
	"strings"
	"time"
)

// Phase defines execution ordering within a single frame.
type Phase int

const (
	PhaseInput      Phase = iota // 0: external input
	PhasePreUpdate               // 1: react to last frame's events
	PhaseUpdate                  // 2: module logic
	PhasePostUpdate              // 3: derived state
	PhaseCleanup                 // 4: destroy queued entities
)

var phaseNames = [...]string{"input", "pre_update", "update", "post_update", "cleanup"}

func (p Phase) String() string {
	if p < 0 || int(p) >= len(phaseNames) {
		return fmt.Sprintf("Phase(%d)", int(p))
	}
	return phaseNames[p]
}

// ParsePhase maps a phase name ("update", "post_update", ...) to its Phase.
func ParsePhase(s string) (Phase, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for i, n := range phaseNames {
		if n == s {
			return Phase(i), nil
		}
	}
	return 0, fmt.Errorf("unknown phase %q", s)
}

// System is the interface every ECS system implements.
type System interface {
	Phase() Phase
	Update(dt time.Duration)
}

// Named is implemented by systems that report a name for logs and timings.
type Named interface {
	Name() string
}

// Func adapts a plain function to System.
type Func struct {
	name  string
	phase Phase
	fn    func(dt time.Duration)
}

func NewFunc(name string, phase Phase, fn func(dt time.Duration)) *Func {
	return &Func{name: name, phase: phase, fn: fn}
}

func (f *Func) Phase() Phase            { return f.phase }
func (f *Func) Name() string            { return f.name }
func (f *Func) Update(dt time.Duration) { f.fn(dt) }

// NameOf returns s's name, or its Go type when it has none.
func NameOf(s System) string {
	if n, ok := s.(Named); ok {
		return n.Name()
	}
	return fmt.Sprintf("%T", s)
}
