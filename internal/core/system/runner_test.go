package system

import (
	"testing"
	"time"

	"go.uber.org/zap"
	"gotest.tools/v3/assert"
)

type passCounter struct {
	begins, ends int
}

func (p *passCounter) BeginPass() { p.begins++ }
func (p *passCounter) EndPass()   { p.ends++ }

func TestRunnerOrdersByPhaseThenRegistration(t *testing.T) {
	r := NewRunner(nil, zap.NewNop())
	var order []string
	add := func(name string, phase Phase) Handle {
		return r.Register(NewFunc(name, phase, func(time.Duration) { order = append(order, name) }))
	}
	add("late", PhaseCleanup)
	add("a", PhaseUpdate)
	add("input", PhaseInput)
	add("b", PhaseUpdate)

	r.Tick(time.Millisecond)
	assert.DeepEqual(t, order, []string{"input", "a", "b", "late"})

	order = nil
	r.TickPhase(PhaseUpdate, time.Millisecond)
	assert.DeepEqual(t, order, []string{"a", "b"})
}

func TestRunnerRemoveByHandle(t *testing.T) {
	r := NewRunner(nil, zap.NewNop())
	calls := 0
	h := r.Register(NewFunc("counter", PhaseUpdate, func(time.Duration) { calls++ }))
	r.Tick(0)
	assert.Assert(t, r.Remove(h))
	assert.Assert(t, !r.Remove(h))
	r.Tick(0)
	assert.Equal(t, calls, 1)
	assert.Equal(t, r.Len(), 0)
}

func TestRunnerBracketsEachSystemInAPass(t *testing.T) {
	p := &passCounter{}
	r := NewRunner(p, zap.NewNop())
	r.Register(NewFunc("one", PhaseUpdate, func(time.Duration) {
		assert.Equal(t, p.begins-p.ends, 1)
	}))
	r.Register(NewFunc("boom", PhaseUpdate, func(time.Duration) { panic("boom") }))

	var timed []string
	r.SetObserver(func(name string, _ Phase, _ time.Duration) { timed = append(timed, name) })
	r.Tick(0)
	assert.Equal(t, p.begins, 2)
	assert.Equal(t, p.ends, 2)
	assert.DeepEqual(t, timed, []string{"one", "boom"})
}

func TestParsePhase(t *testing.T) {
	for _, p := range []Phase{PhaseInput, PhasePreUpdate, PhaseUpdate, PhasePostUpdate, PhaseCleanup} {
		got, err := ParsePhase(p.String())
		assert.NilError(t, err)
		assert.Equal(t, got, p)
	}
	_, err := ParsePhase("render")
	assert.ErrorContains(t, err, "unknown phase")
}
