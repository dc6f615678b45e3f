package scripting

import (
	"fmt"
	"os"
	"path/filepath"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"

	"github.com/modrt/modrt/internal/module"
)

// Engine wraps the gopher-lua VM of one Lua module. It is both the plugin
// and its handle: closing the handle closes the VM.
// Single-goroutine access only (frame loop).
type Engine struct {
	vm   *lua.LState
	info module.Info
	rt   *lua.LTable
	reg  *module.Registrar
	log  *zap.Logger

	systems int
}

// NewEngine creates a VM for the module in dir, loads every script under
// dir/lib, then runs the entry script.
func NewEngine(info module.Info, entry string, log *zap.Logger) (*Engine, error) {
	vm := lua.NewState(lua.Options{
		SkipOpenLibs: false,
	})

	vm.SetGlobal("API_VERSION", lua.LNumber(1))
	vm.SetGlobal("MODULE_NAME", lua.LString(info.Name))

	e := &Engine{vm: vm, info: info, log: log.With(zap.String("module", info.Name))}

	if err := e.loadDir(filepath.Join(info.Dir, "lib")); err != nil {
		vm.Close()
		return nil, fmt.Errorf("load lib scripts: %w", err)
	}
	path := filepath.Join(info.Dir, entry)
	if err := vm.DoFile(path); err != nil {
		vm.Close()
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	e.log.Debug("loaded lua module", zap.String("file", path))
	return e, nil
}

// loadDir loads all .lua files in a directory.
func (e *Engine) loadDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil // skip missing dirs
		}
		return err
	}
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".lua" {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if err := e.vm.DoFile(path); err != nil {
			return fmt.Errorf("load %s: %w", path, err)
		}
		e.log.Debug("loaded lua script", zap.String("file", path))
	}
	return nil
}

func (e *Engine) Plugin() module.Plugin { return e }

// Initialize binds the registrar and calls the script's initialize(rt).
func (e *Engine) Initialize(r *module.Registrar) error {
	e.reg = r
	e.rt = e.newRuntimeTable()
	return e.callHook("initialize")
}

// Shutdown calls the script's shutdown(rt), if defined.
func (e *Engine) Shutdown(*module.Registrar) error {
	return e.callHook("shutdown")
}

func (e *Engine) Close() error {
	e.vm.Close()
	return nil
}

// callHook calls a global function with the runtime table. Missing hooks
// are skipped.
func (e *Engine) callHook(name string) error {
	fn := e.vm.GetGlobal(name)
	if fn == lua.LNil {
		return nil
	}
	if err := e.vm.CallByParam(lua.P{
		Fn:      fn,
		NRet:    0,
		Protect: true,
	}, e.rt); err != nil {
		return fmt.Errorf("lua %s: %w", name, err)
	}
	return nil
}

// Loader opens "lua:<file>" entries relative to the module directory.
type Loader struct {
	log *zap.Logger
}

func NewLoader(log *zap.Logger) *Loader {
	return &Loader{log: log}
}

func (l *Loader) Open(info module.Info, target string) (module.Handle, error) {
	return NewEngine(info, target, l.log)
}
