package ecs

type chunkID int32

const noColumn = -1

// Chunk is the columnar store for every entity sharing one signature.
// Row i of every column belongs to entities[i].
type Chunk struct {
	id         chunkID
	sig        Signature
	components []*RegisteredComponent
	slots      [MaxComponents]int16
	columns    []column
	entities   []EntityID
}

func newChunk(id chunkID, sig Signature, components []*RegisteredComponent) *Chunk {
	c := &Chunk{
		id:         id,
		sig:        sig,
		components: components,
		columns:    make([]column, len(components)),
		entities:   make([]EntityID, 0, 64),
	}
	for i := range c.slots {
		c.slots[i] = noColumn
	}
	for i, rc := range components {
		c.slots[rc.Index] = int16(i)
		c.columns[i] = rc.newColumn()
	}
	return c
}

func (c *Chunk) Signature() Signature { return c.sig }
func (c *Chunk) Len() int             { return len(c.entities) }

// Entities returns the chunk's entity column. Callers must not modify it.
func (c *Chunk) Entities() []EntityID { return c.entities }

// Components lists the identifiers stored by this chunk in index order.
func (c *Chunk) Components() []ComponentID {
	out := make([]ComponentID, len(c.components))
	for i, rc := range c.components {
		out[i] = rc.ID
	}
	return out
}

func (c *Chunk) column(index uint32) column {
	if index >= MaxComponents {
		return nil
	}
	slot := c.slots[index]
	if slot == noColumn {
		return nil
	}
	return c.columns[slot]
}

// push appends e with zero-constructed components and returns its row.
func (c *Chunk) push(e EntityID) int {
	for _, col := range c.columns {
		col.pushZero()
	}
	c.entities = append(c.entities, e)
	return len(c.entities) - 1
}

// pushFrom appends e, copying every component it shares with src's row and
// zero-constructing the rest.
func (c *Chunk) pushFrom(e EntityID, src *Chunk, srcRow int) int {
	for i, rc := range c.components {
		if from := src.column(rc.Index); from != nil {
			c.columns[i].pushFrom(from, srcRow)
		} else {
			c.columns[i].pushZero()
		}
	}
	c.entities = append(c.entities, e)
	return len(c.entities) - 1
}

// swapRemove destroys row and moves the last row into its place. It returns
// the entity that now occupies row, if any.
func (c *Chunk) swapRemove(row int) (EntityID, bool) {
	for _, col := range c.columns {
		col.swapRemove(row)
	}
	last := len(c.entities) - 1
	moved := c.entities[last]
	c.entities[row] = moved
	c.entities[last] = 0
	c.entities = c.entities[:last]
	if row == last {
		return 0, false
	}
	return moved, true
}
