package scripting

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
	"gotest.tools/v3/assert"

	"github.com/modrt/modrt/internal/core/ecs"
	"github.com/modrt/modrt/internal/core/event"
	"github.com/modrt/modrt/internal/core/system"
	"github.com/modrt/modrt/internal/module"
)

const spinnerScript = `
local spin

function initialize(rt)
  spin = rt:component("Spin")
  rt:system("update", function(dt)
    rt:each({spin}, function(e)
      rt:set(e, spin, (rt:get(e, spin) or 0) + 1)
    end)
  end)
  local e = rt:spawn({spin})
  rt:set(e, spin, STEP)
  rt:log("spinner ready")
end

function shutdown(rt)
  rt:log("spinner down " .. rt:count({spin}))
end
`

type luaFixture struct {
	ctx *module.Context
	rt  module.Runtime
	mod module.Module
}

func newLuaFixture(t *testing.T, script string) *luaFixture {
	t.Helper()
	dir := t.TempDir()
	assert.NilError(t, os.MkdirAll(filepath.Join(dir, "lib"), 0o755))
	assert.NilError(t, os.WriteFile(filepath.Join(dir, "lib", "consts.lua"), []byte("STEP = 10\n"), 0o644))
	assert.NilError(t, os.WriteFile(filepath.Join(dir, "main.lua"), []byte(script), 0o644))

	info := module.Info{
		Module:  module.Module{Name: "spinner", GUID: uuid.New()},
		Version: module.Version{Major: 1},
		Entry:   "lua:main.lua",
		Dir:     dir,
	}
	g, err := module.BuildGraph([]module.Info{info})
	assert.NilError(t, err)

	world := ecs.NewWorld(ecs.NewRegistry(), zap.NewNop())
	rt := module.Runtime{
		World:  world,
		Runner: system.NewRunner(world, zap.NewNop()),
		Bus:    event.NewBus(),
	}
	ctx := module.NewContext(g, rt, module.Loaders{"lua": NewLoader(zap.NewNop())}, zap.NewNop())
	return &luaFixture{ctx: ctx, rt: rt, mod: info.Module}
}

func TestLuaModuleRegistersComponentsAndSystems(t *testing.T) {
	f := newLuaFixture(t, spinnerScript)
	f.ctx.LoadAtBeginOfFrame(f.mod)
	assert.Equal(t, len(f.ctx.ApplyPendingLoads()), 1)

	w := f.rt.World
	spin := ecs.ComponentID("spinner.Spin")
	q := w.Query(ecs.Filter{All: []ecs.ComponentID{spin}})
	assert.Equal(t, q.Count(), 1)
	assert.Equal(t, f.rt.Runner.Len(), 1)

	f.rt.Runner.Tick(time.Millisecond)
	f.rt.Runner.Tick(time.Millisecond)

	var ent ecs.EntityID
	for r := range q.Rows() {
		ent = r.Entity()
		v, ok := r.Get(spin)
		assert.Assert(t, ok)
		assert.Equal(t, v.(Slot).Value, lua.LValue(lua.LNumber(12)))
	}

	f.ctx.UnloadAtEndOfFrame(f.mod)
	assert.Equal(t, len(f.ctx.ApplyPendingUnloads()), 1)
	assert.Assert(t, w.Alive(ent))
	sig, _ := w.SignatureOf(ent)
	assert.Assert(t, sig.IsEmpty())
	assert.Equal(t, f.rt.Runner.Len(), 0)
}

func TestLuaInitializeErrorRollsBack(t *testing.T) {
	f := newLuaFixture(t, `
function initialize(rt)
  rt:component("Half")
  error("boom")
end
`)
	f.ctx.LoadAtBeginOfFrame(f.mod)
	assert.Equal(t, len(f.ctx.ApplyPendingLoads()), 0)
	_, err := f.rt.World.Registry().InfoOf("spinner.Half")
	assert.Assert(t, err != nil)
	assert.Equal(t, f.ctx.State(f.mod), module.Unloaded)
}

func TestLuaSyntaxErrorFailsOpen(t *testing.T) {
	f := newLuaFixture(t, "function initialize(rt")
	f.ctx.LoadAtBeginOfFrame(f.mod)
	assert.Equal(t, len(f.ctx.ApplyPendingLoads()), 0)
}

func TestLuaDestroyIsDeferredInsideEach(t *testing.T) {
	f := newLuaFixture(t, `
local tag
function initialize(rt)
  tag = rt:component("Tag")
  for i = 1, 3 do rt:spawn({tag}) end
  rt:system("cleanup", function(dt)
    rt:each({tag}, function(e) rt:destroy(e) end)
  end)
end
`)
	f.ctx.LoadAtBeginOfFrame(f.mod)
	assert.Equal(t, len(f.ctx.ApplyPendingLoads()), 1)
	assert.Equal(t, f.rt.World.Len(), 3)
	f.rt.Runner.Tick(0)
	assert.Equal(t, f.rt.World.Len(), 0)
}
