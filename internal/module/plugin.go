package module

import (
	"strings"

	"github.com/rotisserie/eris"
)

// Plugin is the code side of a module. Initialize registers components,
// systems and resources through the registrar. Shutdown releases whatever
// the registrar does not tear down by itself.
type Plugin interface {
	Initialize(r *Registrar) error
	Shutdown(r *Registrar) error
}

// Handle is an opened plugin. Close is called once the module is unloaded
// and nothing registered by it remains reachable.
type Handle interface {
	Plugin() Plugin
	Close() error
}

// Loader opens the plugin behind an entry. target is the entry text after
// the "scheme:" prefix.
type Loader interface {
	Open(info Info, target string) (Handle, error)
}

// Loaders maps an entry scheme ("go", "lua") to its loader.
type Loaders map[string]Loader

func (ls Loaders) open(info Info) (Handle, error) {
	if info.Entry == "" {
		return staticHandle{plugin: Funcs{}}, nil
	}
	scheme, target, ok := strings.Cut(info.Entry, ":")
	if !ok {
		return nil, eris.Wrapf(ErrNoLoader, "%s: entry %q has no scheme", info.Name, info.Entry)
	}
	l, ok := ls[scheme]
	if !ok {
		return nil, eris.Wrapf(ErrNoLoader, "%s: scheme %q", info.Name, scheme)
	}
	h, err := l.Open(info, target)
	if err != nil {
		return nil, eris.Wrapf(err, "open %s", info.Entry)
	}
	return h, nil
}

// Funcs adapts a pair of functions to Plugin. Nil functions are no-ops.
type Funcs struct {
	Init func(r *Registrar) error
	Stop func(r *Registrar) error
}

func (f Funcs) Initialize(r *Registrar) error {
	if f.Init == nil {
		return nil
	}
	return f.Init(r)
}

func (f Funcs) Shutdown(r *Registrar) error {
	if f.Stop == nil {
		return nil
	}
	return f.Stop(r)
}

type staticHandle struct {
	plugin Plugin
}

func (h staticHandle) Plugin() Plugin { return h.plugin }
func (h staticHandle) Close() error   { return nil }

// Factory builds a fresh plugin instance for each load.
type Factory func() Plugin

// Catalog resolves "go:<name>" entries against plugins compiled into the
// binary.
type Catalog struct {
	factories map[string]Factory
}

func NewCatalog() *Catalog {
	return &Catalog{factories: make(map[string]Factory)}
}

func (c *Catalog) Register(name string, f Factory) {
	c.factories[name] = f
}

func (c *Catalog) Names() []string {
	names := make([]string, 0, len(c.factories))
	for n := range c.factories {
		names = append(names, n)
	}
	return names
}

func (c *Catalog) Open(info Info, target string) (Handle, error) {
	f, ok := c.factories[target]
	if !ok {
		return nil, eris.Wrapf(ErrNoLoader, "no builtin plugin %q for %s", target, info.Name)
	}
	return staticHandle{plugin: f()}, nil
}
