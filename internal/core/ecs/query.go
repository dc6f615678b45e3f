package ecs

import "iter"

// Filter selects chunks by signature: every All component, at least one
// Any component (when Any is non-empty), and no None component.
type Filter struct {
	All  []ComponentID
	Any  []ComponentID
	None []ComponentID
}

// Query is a lazy, restartable view over the chunks matching a Filter.
// Unknown components never raise: an unknown All component makes the query
// empty, unknown Any/None components are ignored.
type Query struct {
	world *World
	all   Signature
	any   Signature
	none  Signature
	empty bool
}

// Query builds a query over all entities.
func (w *World) Query(f Filter) *Query {
	q := &Query{world: w}
	for _, id := range f.All {
		idx, ok := w.indexOf(id)
		if !ok {
			q.empty = true
			continue
		}
		q.all = q.all.With(idx)
	}
	for _, id := range f.Any {
		if idx, ok := w.indexOf(id); ok {
			q.any = q.any.With(idx)
		}
	}
	if len(f.Any) > 0 && q.any.IsEmpty() {
		q.empty = true
	}
	for _, id := range f.None {
		if idx, ok := w.indexOf(id); ok {
			q.none = q.none.With(idx)
		}
	}
	return q
}

// QueryAll matches every live entity.
func (w *World) QueryAll() *Query {
	return w.Query(Filter{})
}

// QueryActive builds a query that skips disabled entities and the
// descendants of disabled entities.
func (w *World) QueryActive(f Filter) *Query {
	f.None = append(append([]ComponentID(nil), f.None...), DisabledComponent.ID(), DisabledInHierarchyComponent.ID())
	return w.Query(f)
}

// Matches tests a chunk signature against the query masks.
func (q *Query) Matches(sig Signature) bool {
	if q.empty {
		return false
	}
	if !sig.ContainsAll(q.all) {
		return false
	}
	if !q.any.IsEmpty() && !sig.ContainsAny(q.any) {
		return false
	}
	return sig.ContainsNone(q.none)
}

// Chunks returns the matching chunks at the time of the call.
func (q *Query) Chunks() []*Chunk {
	var out []*Chunk
	for _, c := range q.world.chunks {
		if c != nil && q.Matches(c.sig) {
			out = append(out, c)
		}
	}
	return out
}

// Rows iterates every matching row. The world is locked for structural
// changes while the sequence runs; deferred commands enqueued meanwhile are
// flushed when the outermost iteration (or system pass) ends.
func (q *Query) Rows() iter.Seq[Row] {
	return func(yield func(Row) bool) {
		chunks := q.Chunks()
		q.world.lock()
		defer q.world.unlock()
		for _, c := range chunks {
			for i := 0; i < c.Len(); i++ {
				if !yield(Row{world: q.world, chunk: c, row: i}) {
					return
				}
			}
		}
	}
}

// Each calls fn for every matching row.
func (q *Query) Each(fn func(Row)) {
	for r := range q.Rows() {
		fn(r)
	}
}

// Count returns the number of matching entities.
func (q *Query) Count() int {
	n := 0
	for _, c := range q.Chunks() {
		n += c.Len()
	}
	return n
}

// Row is one entity visited by a query.
type Row struct {
	world *World
	chunk *Chunk
	row   int
}

func (r Row) Entity() EntityID { return r.chunk.entities[r.row] }
func (r Row) Chunk() *Chunk    { return r.chunk }

// Get returns a copy of the row's component value.
func (r Row) Get(id ComponentID) (any, bool) {
	idx, ok := r.world.indexOf(id)
	if !ok {
		return nil, false
	}
	col := r.chunk.column(idx)
	if col == nil {
		return nil, false
	}
	return col.get(r.row), true
}
