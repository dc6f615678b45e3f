package scripting

import (
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"

	"github.com/modrt/modrt/internal/core/ecs"
	"github.com/modrt/modrt/internal/core/system"
)

// Slot is the component type of every Lua-declared component: one Lua
// value per entity.
type Slot struct {
	Value lua.LValue
}

// newRuntimeTable builds the rt object handed to initialize/shutdown.
// Methods are called with ':' so argument 1 is rt itself.
func (e *Engine) newRuntimeTable() *lua.LTable {
	rt := e.vm.NewTable()
	e.vm.SetFuncs(rt, map[string]lua.LGFunction{
		"component": e.luaComponent,
		"system":    e.luaSystem,
		"spawn":     e.luaSpawn,
		"destroy":   e.luaDestroy,
		"get":       e.luaGet,
		"set":       e.luaSet,
		"each":      e.luaEach,
		"count":     e.luaCount,
		"log":       e.luaLog,
	})
	rt.RawSetString("module", lua.LString(e.info.Name))
	return rt
}

// componentID qualifies a bare component name with the module name.
func (e *Engine) componentID(name string) ecs.ComponentID {
	if strings.Contains(name, ".") {
		return ecs.ComponentID(name)
	}
	return ecs.ComponentID(e.info.Name + "." + name)
}

func (e *Engine) componentIDs(L *lua.LState, t *lua.LTable) []ecs.ComponentID {
	var ids []ecs.ComponentID
	t.ForEach(func(_, v lua.LValue) {
		s, ok := v.(lua.LString)
		if !ok {
			L.ArgError(2, "component names must be strings")
		}
		ids = append(ids, e.componentID(string(s)))
	})
	return ids
}

func toEntity(L *lua.LState, n int) ecs.EntityID {
	return ecs.EntityID(uint64(L.CheckNumber(n)))
}

func pushEntity(L *lua.LState, id ecs.EntityID) {
	L.Push(lua.LNumber(float64(id)))
}

// rt:component(name) -> id
func (e *Engine) luaComponent(L *lua.LState) int {
	id := e.componentID(L.CheckString(2))
	if _, err := e.reg.RegisterComponent(ecs.NewComponent[Slot](id).Info()); err != nil {
		L.RaiseError("register component %s: %v", id, err)
		return 0
	}
	L.Push(lua.LString(id))
	return 1
}

// rt:system(phase, fn) registers fn(dt_seconds).
func (e *Engine) luaSystem(L *lua.LState) int {
	phase, err := system.ParsePhase(L.CheckString(2))
	if err != nil {
		L.ArgError(2, err.Error())
		return 0
	}
	fn := L.CheckFunction(3)
	e.systems++
	name := fmt.Sprintf("%s/lua#%d", e.info.Name, e.systems)
	_, err = e.reg.AddSystem(system.NewFunc(name, phase, func(dt time.Duration) {
		if err := e.vm.CallByParam(lua.P{
			Fn:      fn,
			NRet:    0,
			Protect: true,
		}, lua.LNumber(dt.Seconds())); err != nil {
			e.log.Error("lua system error", zap.String("system", name), zap.Error(err))
		}
	}))
	if err != nil {
		L.RaiseError("add system: %v", err)
	}
	return 0
}

// rt:spawn({names}) -> entity, or nil when the spawn had to be deferred.
func (e *Engine) luaSpawn(L *lua.LState) int {
	var values []ecs.Value
	if t, ok := L.Get(2).(*lua.LTable); ok {
		for _, id := range e.componentIDs(L, t) {
			values = append(values, ecs.Value{ID: id})
		}
	}
	w := e.reg.World()
	ent, err := w.CreateEntity(values...)
	switch {
	case err == nil:
		pushEntity(L, ent)
	case eris.Is(err, ecs.ErrWorldLocked):
		if err := w.Defer(ecs.CreateCmd(values...)); err != nil {
			L.RaiseError("spawn: %v", err)
		}
		L.Push(lua.LNil)
	default:
		L.RaiseError("spawn: %v", err)
	}
	return 1
}

// rt:destroy(e) is always deferred.
func (e *Engine) luaDestroy(L *lua.LState) int {
	if err := e.reg.World().Defer(ecs.DestroyCmd(toEntity(L, 2))); err != nil {
		e.log.Warn("lua destroy failed", zap.Error(err))
	}
	return 0
}

// rt:get(e, name) -> value or nil
func (e *Engine) luaGet(L *lua.LState) int {
	v, ok := e.reg.World().Get(toEntity(L, 2), e.componentID(L.CheckString(3)))
	if !ok {
		L.Push(lua.LNil)
		return 1
	}
	slot, ok := v.(Slot)
	if !ok || slot.Value == nil {
		L.Push(lua.LNil)
		return 1
	}
	L.Push(slot.Value)
	return 1
}

// rt:set(e, name, value) -> ok
func (e *Engine) luaSet(L *lua.LState) int {
	err := e.reg.World().SetComponent(toEntity(L, 2), e.componentID(L.CheckString(3)), Slot{Value: L.Get(4)})
	L.Push(lua.LBool(err == nil))
	return 1
}

func (e *Engine) query(L *lua.LState) *ecs.Query {
	t := L.CheckTable(2)
	return e.reg.World().Query(ecs.Filter{All: e.componentIDs(L, t)})
}

// rt:each({names}, fn(e)) visits every matching entity.
func (e *Engine) luaEach(L *lua.LState) int {
	q := e.query(L)
	fn := L.CheckFunction(3)
	for row := range q.Rows() {
		if err := L.CallByParam(lua.P{
			Fn:      fn,
			NRet:    0,
			Protect: true,
		}, lua.LNumber(float64(row.Entity()))); err != nil {
			e.log.Error("lua each callback error", zap.Error(err))
			break
		}
	}
	return 0
}

// rt:count({names}) -> n
func (e *Engine) luaCount(L *lua.LState) int {
	L.Push(lua.LNumber(e.query(L).Count()))
	return 1
}

// rt:log(msg)
func (e *Engine) luaLog(L *lua.LState) int {
	e.reg.Log().Info(L.CheckString(2), zap.String("source", "lua"))
	return 0
}
