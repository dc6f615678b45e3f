package module

import (
	"strings"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
)

// Graph holds the dependency edges between discovered modules. An edge
// A -> B means A depends on B. Nodes are numbered in discovery order.
type Graph struct {
	infos  []Info
	index  map[uuid.UUID]int
	byName map[string]int
	prevs  [][]int // dependencies
	nexts  [][]int // dependants
	order  []int   // topological, dependencies first
}

// BuildGraph resolves every declared dependency against the discovered set
// and rejects unresolved, outdated, duplicate and cyclic dependencies.
func BuildGraph(infos []Info) (*Graph, error) {
	g := &Graph{
		infos:  append([]Info(nil), infos...),
		index:  make(map[uuid.UUID]int, len(infos)),
		byName: make(map[string]int, len(infos)),
		prevs:  make([][]int, len(infos)),
		nexts:  make([][]int, len(infos)),
	}
	for i, info := range g.infos {
		if _, dup := g.index[info.GUID]; dup {
			return nil, eris.Wrapf(ErrDuplicateModule, "guid %s (%s)", info.GUID, info.Name)
		}
		key := foldName(info.Name)
		if _, dup := g.byName[key]; dup {
			return nil, eris.Wrapf(ErrDuplicateModule, "name %q", info.Name)
		}
		g.index[info.GUID] = i
		g.byName[key] = i
	}
	for i, info := range g.infos {
		seen := make(map[int]bool, len(info.Dependencies))
		for _, dep := range info.Dependencies {
			j, ok := g.byName[foldName(dep.Name)]
			if !ok {
				return nil, eris.Wrapf(ErrUnresolvedDependency, "%s requires %q", info.Name, dep.Name)
			}
			if have := g.infos[j].Version; have.Less(dep.MinVersion) {
				return nil, eris.Wrapf(ErrVersionMismatch, "%s requires %s >= %s, found %s",
					info.Name, dep.Name, dep.MinVersion, have)
			}
			if seen[j] {
				continue
			}
			seen[j] = true
			g.prevs[i] = append(g.prevs[i], j)
			g.nexts[j] = append(g.nexts[j], i)
		}
	}
	order, err := g.sort()
	if err != nil {
		return nil, err
	}
	g.order = order
	return g, nil
}

// sort is Kahn's algorithm, always taking the ready node discovered first.
func (g *Graph) sort() ([]int, error) {
	pending := make([]int, len(g.infos))
	for i := range g.infos {
		pending[i] = len(g.prevs[i])
	}
	done := make([]bool, len(g.infos))
	order := make([]int, 0, len(g.infos))
	for len(order) < len(g.infos) {
		next := -1
		for i := range g.infos {
			if !done[i] && pending[i] == 0 {
				next = i
				break
			}
		}
		if next < 0 {
			var stuck []string
			for i, info := range g.infos {
				if !done[i] {
					stuck = append(stuck, info.Name)
				}
			}
			return nil, eris.Wrapf(ErrCyclicDependency, "among %s", strings.Join(stuck, ", "))
		}
		done[next] = true
		order = append(order, next)
		for _, n := range g.nexts[next] {
			pending[n]--
		}
	}
	return order, nil
}

func (g *Graph) Len() int { return len(g.infos) }

// Modules returns every discovered module in discovery order.
func (g *Graph) Modules() []Module {
	out := make([]Module, len(g.infos))
	for i, info := range g.infos {
		out[i] = info.Module
	}
	return out
}

func (g *Graph) Infos() []Info {
	return append([]Info(nil), g.infos...)
}

func (g *Graph) Info(m Module) (Info, bool) {
	i, ok := g.index[m.GUID]
	if !ok {
		return Info{}, false
	}
	return g.infos[i], true
}

// Lookup finds a module by case-folded name.
func (g *Graph) Lookup(name string) (Module, bool) {
	i, ok := g.byName[foldName(name)]
	if !ok {
		return Module{}, false
	}
	return g.infos[i].Module, true
}

func (g *Graph) Contains(m Module) bool {
	_, ok := g.index[m.GUID]
	return ok
}

func (g *Graph) modules(idx []int) []Module {
	out := make([]Module, len(idx))
	for k, i := range idx {
		out[k] = g.infos[i].Module
	}
	return out
}

// Prevs returns the direct dependencies of m.
func (g *Graph) Prevs(m Module) []Module {
	i, ok := g.index[m.GUID]
	if !ok {
		return nil
	}
	return g.modules(g.prevs[i])
}

// Nexts returns the modules that depend directly on m.
func (g *Graph) Nexts(m Module) []Module {
	i, ok := g.index[m.GUID]
	if !ok {
		return nil
	}
	return g.modules(g.nexts[i])
}

// AllPrevsOf returns every transitive dependency of m, without m itself,
// in discovery order.
func (g *Graph) AllPrevsOf(m Module) []Module {
	return g.closure(m, g.prevs)
}

// AllNextsOf returns every transitive dependant of m, without m itself,
// in discovery order.
func (g *Graph) AllNextsOf(m Module) []Module {
	return g.closure(m, g.nexts)
}

func (g *Graph) closure(m Module, edges [][]int) []Module {
	start, ok := g.index[m.GUID]
	if !ok {
		return nil
	}
	seen := make([]bool, len(g.infos))
	stack := append([]int(nil), edges[start]...)
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if seen[n] || n == start {
			continue
		}
		seen[n] = true
		stack = append(stack, edges[n]...)
	}
	var idx []int
	for i, s := range seen {
		if s {
			idx = append(idx, i)
		}
	}
	return g.modules(idx)
}

// TopologicalOrder orders subset so that every module follows all of its
// transitive dependencies that are also in subset. Ties are broken by
// discovery order. Duplicates in subset are dropped.
func (g *Graph) TopologicalOrder(subset []Module) ([]Module, error) {
	want := make(map[int]bool, len(subset))
	for _, m := range subset {
		i, ok := g.index[m.GUID]
		if !ok {
			return nil, eris.Wrapf(ErrUnknownModule, "%s (%s)", m.Name, m.GUID)
		}
		want[i] = true
	}
	out := make([]Module, 0, len(want))
	for _, i := range g.order {
		if want[i] {
			out = append(out, g.infos[i].Module)
		}
	}
	return out, nil
}

// DependsOn reports whether a depends on b, directly or transitively.
func (g *Graph) DependsOn(a, b Module) bool {
	for _, p := range g.AllPrevsOf(a) {
		if p.Equal(b) {
			return true
		}
	}
	return false
}
