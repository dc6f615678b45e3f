package ecs

import (
	"fmt"
	"testing"

	"github.com/rotisserie/eris"
	"gotest.tools/v3/assert"
)

type Position struct{ X, Y float64 }
type Velocity struct{ X, Y float64 }
type Gun struct{ Ammo int }

var (
	positionComp = NewComponent[Position]("test.Position")
	velocityComp = NewComponent[Velocity]("test.Velocity")
	gunComp      = NewComponent[Gun]("test.Gun").Serializable()
)

func TestRegisterTwiceYieldsOneIndex(t *testing.T) {
	r := NewRegistry()
	first, err := r.Register(positionComp.Info())
	assert.NilError(t, err)
	count := r.Count()

	second, err := r.Register(positionComp.Info())
	assert.NilError(t, err)
	assert.Equal(t, first.Index, second.Index)
	assert.Equal(t, count, r.Count())
}

func TestRegisterAssignsDenseIndices(t *testing.T) {
	r := NewRegistry()
	for i, c := range []ComponentInfo{positionComp.Info(), velocityComp.Info(), gunComp.Info()} {
		rc, err := r.Register(c)
		assert.NilError(t, err)
		assert.Equal(t, rc.Index, uint32(i))
	}
	rc, err := r.InfoOf(gunComp.ID())
	assert.NilError(t, err)
	assert.Assert(t, rc.Serializable)
	assert.Equal(t, rc.Size, gunComp.Info().Size)
}

func TestRegisterRejectsInvalidDescriptor(t *testing.T) {
	r := NewRegistry()
	_, err := r.Register(ComponentInfo{ID: "bare"})
	assert.Assert(t, eris.Is(err, ErrInvalidComponent))

	_, err = r.Register(NewComponent[Gun]("").Info())
	assert.Assert(t, eris.Is(err, ErrInvalidComponent))
}

func TestDeregisterRetiresIndex(t *testing.T) {
	r := NewRegistry()
	pos, err := r.Register(positionComp.Info())
	assert.NilError(t, err)
	r.Deregister(positionComp.ID())

	_, err = r.InfoOf(positionComp.ID())
	assert.Assert(t, eris.Is(err, ErrUnknownComponent))
	assert.Assert(t, r.ByIndex(pos.Index) == nil)

	vel, err := r.Register(velocityComp.Info())
	assert.NilError(t, err)
	assert.Assert(t, vel.Index != pos.Index)

	again, err := r.Register(positionComp.Info())
	assert.NilError(t, err)
	assert.Assert(t, again.Index != pos.Index)
	assert.Equal(t, r.Retired(), 1)
}

func TestComponentOfNamesByTypeAndOwnedByFilters(t *testing.T) {
	auto := ComponentOf[Gun]()
	assert.Equal(t, auto.ID(), ComponentID("github.com/modrt/modrt/internal/core/ecs.Gun"))

	r := NewRegistry()
	owned := auto.Info()
	owned.Owner = "armory"
	_, err := r.Register(owned)
	assert.NilError(t, err)
	_, err = r.Register(positionComp.Info())
	assert.NilError(t, err)

	assert.DeepEqual(t, r.OwnedBy("armory"), []ComponentID{auto.ID()})
	assert.Equal(t, len(r.OwnedBy("nobody")), 0)

	r.Deregister(auto.ID())
	assert.Equal(t, len(r.OwnedBy("armory")), 0)
}

func TestToSignature(t *testing.T) {
	r := NewRegistry()
	p, _ := r.Register(positionComp.Info())
	v, _ := r.Register(velocityComp.Info())

	sig, err := r.ToSignature(velocityComp.ID(), positionComp.ID())
	assert.NilError(t, err)
	assert.Assert(t, sig.Has(p.Index))
	assert.Assert(t, sig.Has(v.Index))
	assert.DeepEqual(t, sig.Indices(), []uint32{p.Index, v.Index})

	_, err = r.ToSignature(positionComp.ID(), gunComp.ID())
	assert.Assert(t, eris.Is(err, ErrUnknownComponent))
}

func TestSignatureExhaustion(t *testing.T) {
	r := NewRegistry()
	for i := 0; i < MaxComponents; i++ {
		_, err := r.Register(NewComponent[int](ComponentID(fmt.Sprintf("n%d", i))).Info())
		assert.NilError(t, err)
	}
	_, err := r.Register(gunComp.Info())
	assert.Assert(t, eris.Is(err, ErrSignatureExhausted))
}

func TestSignatureSetOps(t *testing.T) {
	var a, b Signature
	a = a.With(1).With(3)
	b = b.With(3)
	assert.Assert(t, a.ContainsAll(b))
	assert.Assert(t, !b.ContainsAll(a))
	assert.Assert(t, a.ContainsAny(b))
	assert.Assert(t, a.ContainsNone(Signature{}.With(7)))
	assert.Equal(t, a.Without(1), b)
	assert.Assert(t, Signature{}.IsEmpty())
	assert.Equal(t, a.String(), "{1,3}")
}
