package ecs

import "reflect"

// ComponentID is the stable identity token of one component type.
type ComponentID string

// ComponentInfo is the runtime type descriptor of a component kind. It is
// built once by NewComponent and copied into the Registry, so nothing in the
// registry points back into the code that declared the type.
type ComponentInfo struct {
	ID           ComponentID
	Size         uintptr
	Align        uintptr
	Owner        string
	Serializable bool

	valueType reflect.Type
	newColumn func() column
}

// Valid reports whether the descriptor was built by NewComponent.
func (i ComponentInfo) Valid() bool {
	return i.ID != "" && i.newColumn != nil
}

// ValueType returns the Go type stored for this component.
func (i ComponentInfo) ValueType() reflect.Type { return i.valueType }

// column is the type-erased storage of one component inside one chunk.
// It carries the construct/copy/destroy operations of the descriptor.
type column interface {
	Len() int
	pushZero()
	pushFrom(src column, row int)
	swapRemove(row int)
	get(row int) any
	set(row int, v any) bool
}

// typedColumn is a dense slice of T. No reflect on the hot path.
type typedColumn[T any] struct {
	data []T
}

func (c *typedColumn[T]) Len() int { return len(c.data) }

func (c *typedColumn[T]) pushZero() {
	var zero T
	c.data = append(c.data, zero)
}

func (c *typedColumn[T]) pushFrom(src column, row int) {
	s := src.(*typedColumn[T])
	c.data = append(c.data, s.data[row])
}

func (c *typedColumn[T]) swapRemove(row int) {
	last := len(c.data) - 1
	c.data[row] = c.data[last]
	var zero T
	c.data[last] = zero
	c.data = c.data[:last]
}

func (c *typedColumn[T]) get(row int) any { return c.data[row] }

func (c *typedColumn[T]) set(row int, v any) bool {
	switch t := v.(type) {
	case T:
		c.data[row] = t
	case *T:
		c.data[row] = *t
	default:
		return false
	}
	return true
}

// Component is a typed handle over a ComponentInfo.
type Component[T any] struct {
	info ComponentInfo
}

// NewComponent builds the descriptor for T under the given identifier.
func NewComponent[T any](id ComponentID) Component[T] {
	t := reflect.TypeOf((*T)(nil)).Elem()
	return Component[T]{info: ComponentInfo{
		ID:        id,
		Size:      t.Size(),
		Align:     uintptr(t.Align()),
		valueType: t,
		newColumn: func() column { return &typedColumn[T]{data: make([]T, 0, 16)} },
	}}
}

// ComponentOf builds the descriptor for T named after its package path and type name.
func ComponentOf[T any]() Component[T] {
	t := reflect.TypeOf((*T)(nil)).Elem()
	return NewComponent[T](ComponentID(t.PkgPath() + "." + t.Name()))
}

func (c Component[T]) ID() ComponentID     { return c.info.ID }
func (c Component[T]) Info() ComponentInfo { return c.info }

// Serializable marks the component as carrying serializable data.
func (c Component[T]) Serializable() Component[T] {
	c.info.Serializable = true
	return c
}

// Value pairs the component with an initial value for CreateEntity/Defer.
func (c Component[T]) Value(v T) Value {
	return Value{ID: c.info.ID, Data: v}
}

// Get returns a pointer into e's row. The pointer is only valid until the
// next structural change of the world.
func (c Component[T]) Get(w *World, e EntityID) (*T, bool) {
	col, row, ok := w.columnOf(e, c.info.ID)
	if !ok {
		return nil, false
	}
	tc, ok := col.(*typedColumn[T])
	if !ok {
		return nil, false
	}
	return &tc.data[row], true
}

func (c Component[T]) Set(w *World, e EntityID, v T) error {
	return w.SetComponent(e, c.info.ID, v)
}

// At returns the component of the row being visited, or nil when the
// row's chunk does not hold it (possible for Any filters).
func (c Component[T]) At(r Row) *T {
	idx, ok := r.world.indexOf(c.info.ID)
	if !ok {
		return nil
	}
	col := r.chunk.column(idx)
	if col == nil {
		return nil
	}
	tc, ok := col.(*typedColumn[T])
	if !ok {
		return nil
	}
	return &tc.data[r.row]
}

// Value is an untyped component value used to construct or set components.
// A nil Data means zero-construct.
type Value struct {
	ID   ComponentID
	Data any
}
