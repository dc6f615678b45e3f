package ecs

import (
	"testing"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"gotest.tools/v3/assert"
)

func newTestWorld(t *testing.T) *World {
	t.Helper()
	w := NewWorld(NewRegistry(), zap.NewNop())
	for _, c := range []ComponentInfo{positionComp.Info(), velocityComp.Info(), gunComp.Info()} {
		_, err := w.Registry().Register(c)
		assert.NilError(t, err)
	}
	return w
}

func TestEntityGenerationInvalidatesStaleHandles(t *testing.T) {
	w := newTestWorld(t)
	e, err := w.CreateEntity()
	assert.NilError(t, err)
	assert.Assert(t, !e.IsZero())
	assert.NilError(t, w.DestroyEntity(e))
	assert.Assert(t, !w.Alive(e))

	reused, err := w.CreateEntity()
	assert.NilError(t, err)
	assert.Equal(t, reused.Index(), e.Index())
	assert.Assert(t, reused.Generation() != e.Generation())
	assert.Assert(t, !w.Alive(e))

	err = w.AddComponent(e, positionComp.ID())
	assert.Assert(t, eris.Is(err, ErrEntityNotAlive))
}

func TestCreateEntityPlacesInSignatureChunk(t *testing.T) {
	w := newTestWorld(t)
	a, err := w.CreateEntity(positionComp.Value(Position{X: 1}), velocityComp.Value(Velocity{Y: 2}))
	assert.NilError(t, err)
	b, err := w.CreateEntity(Value{ID: velocityComp.ID()}, Value{ID: positionComp.ID()})
	assert.NilError(t, err)

	sa, _ := w.SignatureOf(a)
	sb, _ := w.SignatureOf(b)
	assert.Equal(t, sa, sb)

	pos, ok := positionComp.Get(w, a)
	assert.Assert(t, ok)
	assert.Equal(t, pos.X, 1.0)
	vel, ok := velocityComp.Get(w, b)
	assert.Assert(t, ok)
	assert.Equal(t, *vel, Velocity{})

	_, err = w.CreateEntity(Value{ID: "nope"})
	assert.Assert(t, eris.Is(err, ErrUnknownComponent))

	_, err = w.CreateEntity(Value{ID: gunComp.ID(), Data: "not a gun"})
	assert.Assert(t, eris.Is(err, ErrValueType))
	assert.Equal(t, w.Len(), 2)
}

func TestAddRemoveRoundTripPreservesValues(t *testing.T) {
	w := newTestWorld(t)
	others := make([]EntityID, 0, 4)
	for i := 0; i < 4; i++ {
		o, err := w.CreateEntity(positionComp.Value(Position{X: float64(i)}), velocityComp.Value(Velocity{X: float64(-i)}))
		assert.NilError(t, err)
		others = append(others, o)
	}
	e := others[1]
	before, _ := w.SignatureOf(e)

	assert.NilError(t, w.AddComponent(e, gunComp.ID()))
	assert.NilError(t, gunComp.Set(w, e, Gun{Ammo: 6}))
	assert.NilError(t, w.RemoveComponent(e, gunComp.ID()))

	after, _ := w.SignatureOf(e)
	assert.Equal(t, before, after)
	for i, o := range others {
		pos, ok := positionComp.Get(w, o)
		assert.Assert(t, ok)
		assert.Equal(t, pos.X, float64(i))
		vel, ok := velocityComp.Get(w, o)
		assert.Assert(t, ok)
		assert.Equal(t, vel.X, float64(-i))
	}
	assert.Assert(t, !w.Has(e, gunComp.ID()))
}

func TestAddExistingAndRemoveMissing(t *testing.T) {
	w := newTestWorld(t)
	e, err := w.CreateEntity(Value{ID: positionComp.ID()})
	assert.NilError(t, err)
	assert.Assert(t, eris.Is(w.AddComponent(e, positionComp.ID()), ErrComponentExists))
	assert.Assert(t, eris.Is(w.RemoveComponent(e, gunComp.ID()), ErrComponentNotFound))
}

func TestQueryFiltersChunksBySignature(t *testing.T) {
	w := newTestWorld(t)
	setups := []struct {
		values []Value
		count  int
	}{
		{[]Value{{ID: positionComp.ID()}, {ID: velocityComp.ID()}}, 5},
		{[]Value{{ID: positionComp.ID()}}, 10},
		{[]Value{{ID: velocityComp.ID()}}, 15},
		{[]Value{{ID: positionComp.ID()}, {ID: gunComp.ID()}}, 20},
	}
	for _, s := range setups {
		for i := 0; i < s.count; i++ {
			_, err := w.CreateEntity(s.values...)
			assert.NilError(t, err)
		}
	}

	tests := []struct {
		name     string
		filter   Filter
		expected int
	}{
		{"all", Filter{All: []ComponentID{positionComp.ID(), velocityComp.ID()}}, 5},
		{"any", Filter{Any: []ComponentID{velocityComp.ID(), gunComp.ID()}}, 40},
		{"none", Filter{All: []ComponentID{positionComp.ID()}, None: []ComponentID{gunComp.ID()}}, 15},
		{"unknown all", Filter{All: []ComponentID{"missing"}}, 0},
		{"unknown any", Filter{Any: []ComponentID{"missing"}}, 0},
		{"unknown none ignored", Filter{All: []ComponentID{velocityComp.ID()}, None: []ComponentID{"missing"}}, 20},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := w.Query(tt.filter)
			assert.Equal(t, q.Count(), tt.expected)

			visited := 0
			for r := range q.Rows() {
				visited++
				sig := r.Chunk().Signature()
				assert.Assert(t, sig.ContainsAll(q.all))
				assert.Assert(t, sig.ContainsNone(q.none))
			}
			assert.Equal(t, visited, tt.expected)
		})
	}
}

func TestQueryIsRestartable(t *testing.T) {
	w := newTestWorld(t)
	for i := 0; i < 3; i++ {
		_, err := w.CreateEntity(positionComp.Value(Position{X: 1}))
		assert.NilError(t, err)
	}
	q := w.Query(Filter{All: []ComponentID{positionComp.ID()}})
	sum := 0.0
	for pass := 0; pass < 2; pass++ {
		for r := range q.Rows() {
			sum += positionComp.At(r).X
		}
	}
	assert.Equal(t, sum, 6.0)

	for r := range q.Rows() {
		_ = r
		break
	}
	assert.Assert(t, !w.Iterating())
}

func TestDirectMutationRefusedWhileIterating(t *testing.T) {
	w := newTestWorld(t)
	e, err := w.CreateEntity(Value{ID: positionComp.ID()})
	assert.NilError(t, err)
	w.Query(Filter{All: []ComponentID{positionComp.ID()}}).Each(func(r Row) {
		assert.Assert(t, eris.Is(w.AddComponent(r.Entity(), gunComp.ID()), ErrWorldLocked))
		assert.Assert(t, eris.Is(w.DestroyEntity(r.Entity()), ErrWorldLocked))
		_, err := w.CreateEntity()
		assert.Assert(t, eris.Is(err, ErrWorldLocked))
		assert.NilError(t, positionComp.Set(w, r.Entity(), Position{X: 9}))
	})
	pos, _ := positionComp.Get(w, e)
	assert.Equal(t, pos.X, 9.0)
}

func TestDeferredRemovalVisibleAfterIteration(t *testing.T) {
	w := newTestWorld(t)
	e, err := w.CreateEntity(Value{ID: positionComp.ID()}, Value{ID: gunComp.ID()})
	assert.NilError(t, err)

	q := w.Query(Filter{All: []ComponentID{gunComp.ID()}})
	seen := 0
	for r := range q.Rows() {
		seen++
		assert.NilError(t, w.Defer(RemoveCmd(r.Entity(), gunComp.ID())))
		assert.Assert(t, w.Has(r.Entity(), gunComp.ID()))
		assert.Equal(t, w.Pending(), 1)
	}
	assert.Equal(t, seen, 1)
	assert.Equal(t, w.Pending(), 0)
	assert.Assert(t, !w.Has(e, gunComp.ID()))
	assert.Equal(t, q.Count(), 0)
}

func TestDeferredCommandsWaitForOuterPass(t *testing.T) {
	w := newTestWorld(t)
	e, err := w.CreateEntity(Value{ID: positionComp.ID()})
	assert.NilError(t, err)
	q := w.Query(Filter{All: []ComponentID{positionComp.ID()}})

	w.BeginPass()
	q.Each(func(r Row) {
		assert.NilError(t, w.Defer(AddCmd(r.Entity(), gunComp.Value(Gun{Ammo: 3}))))
	})
	assert.Assert(t, !w.Has(e, gunComp.ID()))
	q.Each(func(r Row) {
		assert.NilError(t, w.Defer(DestroyCmd(r.Entity())))
		assert.NilError(t, w.Defer(CreateCmd(positionComp.Value(Position{Y: 4}))))
	})
	w.EndPass()

	assert.Assert(t, !w.Alive(e))
	assert.Equal(t, w.Len(), 1)
	assert.Equal(t, q.Count(), 1)
}

func TestDeferOutsideIterationAppliesImmediately(t *testing.T) {
	w := newTestWorld(t)
	e, err := w.CreateEntity()
	assert.NilError(t, err)
	assert.NilError(t, w.Defer(AddCmd(e, gunComp.Value(Gun{Ammo: 1}))))
	g, ok := gunComp.Get(w, e)
	assert.Assert(t, ok)
	assert.Equal(t, g.Ammo, 1)
}

func TestCustomCommand(t *testing.T) {
	w := newTestWorld(t)
	var got []any
	w.HandleCustom("record", func(_ *World, payload any) error {
		got = append(got, payload)
		return nil
	})
	_, err := w.CreateEntity(Value{ID: positionComp.ID()})
	assert.NilError(t, err)
	w.Query(Filter{All: []ComponentID{positionComp.ID()}}).Each(func(Row) {
		assert.NilError(t, w.Defer(CustomCmd("record", 42)))
		assert.NilError(t, w.Defer(CustomCmd("unhandled", nil)))
		assert.Equal(t, len(got), 0)
	})
	assert.DeepEqual(t, got, []any{42})

	w.RemoveCustomHandler("record")
	err = w.Defer(CustomCmd("record", 1))
	assert.Assert(t, eris.Is(err, ErrNoCustomHandler))
}

func TestPurgeComponentKeepsEntities(t *testing.T) {
	w := newTestWorld(t)
	armed, err := w.CreateEntity(gunComp.Value(Gun{Ammo: 3}))
	assert.NilError(t, err)
	mixed, err := w.CreateEntity(gunComp.Value(Gun{Ammo: 1}), positionComp.Value(Position{X: 5}))
	assert.NilError(t, err)

	gun, err := w.Registry().InfoOf(gunComp.ID())
	assert.NilError(t, err)
	migrated, err := w.PurgeComponent(gunComp.ID())
	assert.NilError(t, err)
	assert.Equal(t, migrated, 2)
	assert.Equal(t, w.ChunksReferencing(gun.Index), 0)
	w.Registry().Deregister(gunComp.ID())

	assert.Assert(t, w.Alive(armed))
	sig, _ := w.SignatureOf(armed)
	assert.Assert(t, sig.IsEmpty())

	pos, ok := positionComp.Get(w, mixed)
	assert.Assert(t, ok)
	assert.Equal(t, pos.X, 5.0)
	_, ok = w.Get(mixed, gunComp.ID())
	assert.Assert(t, !ok)
}

func TestDestroyKeepsOtherRowsAddressable(t *testing.T) {
	w := newTestWorld(t)
	ids := make([]EntityID, 0, 5)
	for i := 0; i < 5; i++ {
		e, err := w.CreateEntity(positionComp.Value(Position{X: float64(i)}))
		assert.NilError(t, err)
		ids = append(ids, e)
	}
	assert.NilError(t, w.DestroyEntity(ids[0]))
	assert.NilError(t, w.DestroyEntity(ids[2]))
	for _, i := range []int{1, 3, 4} {
		pos, ok := positionComp.Get(w, ids[i])
		assert.Assert(t, ok)
		assert.Equal(t, pos.X, float64(i))
	}
}
