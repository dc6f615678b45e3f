package ecs

import (
	"strconv"
	"strings"

	"github.com/TheBitDrifter/mask"
)

// MaxComponents is the width of a Signature. Registry indices are never
// reused within a process, so this also bounds the number of Register calls
// for distinct identifiers over the process lifetime.
const MaxComponents = 256

// Signature is the exact set of component indices a chunk stores.
// It is comparable and used directly as a map key.
type Signature struct {
	bits mask.Mask
}

// With returns a copy of s with index set.
func (s Signature) With(index uint32) Signature {
	s.bits.Mark(index)
	return s
}

// Without returns a copy of s with index cleared.
func (s Signature) Without(index uint32) Signature {
	s.bits.Unmark(index)
	return s
}

func (s Signature) Has(index uint32) bool {
	var single mask.Mask
	single.Mark(index)
	return s.bits.ContainsAll(single)
}

// ContainsAll reports whether every index of o is in s.
func (s Signature) ContainsAll(o Signature) bool { return s.bits.ContainsAll(o.bits) }

// ContainsAny reports whether s and o share an index.
func (s Signature) ContainsAny(o Signature) bool { return s.bits.ContainsAny(o.bits) }

// ContainsNone reports whether s and o are disjoint.
func (s Signature) ContainsNone(o Signature) bool { return s.bits.ContainsNone(o.bits) }

func (s Signature) IsEmpty() bool { return s == Signature{} }

// Indices lists the set indices in ascending order.
func (s Signature) Indices() []uint32 {
	out := make([]uint32, 0, 8)
	for i := uint32(0); i < MaxComponents; i++ {
		if s.Has(i) {
			out = append(out, i)
		}
	}
	return out
}

func (s Signature) String() string {
	idx := s.Indices()
	parts := make([]string, len(idx))
	for i, v := range idx {
		parts[i] = strconv.FormatUint(uint64(v), 10)
	}
	return "{" + strings.Join(parts, ",") + "}"
}
