package lir

import (
	"math/bits"

	"tlog.app/go/tlog/tlwire"
)

// AccessSet is a coarse alias class tagged on loads and stores so the
// CSE filter and the scheduler can reason about aliasing conservatively:
// two accesses with disjoint AccessSets are known not to alias, so a
// store to one set never invalidates CSE entries keyed on the other.
// It is a bitmap rather than a single class id because a call's
// CallInfo may report that it touches several classes at once.
type AccessSet struct {
	b  []uint64
	b0 [1]uint64
}

// Predefined access classes. Classes above ClassUser are free for the
// front-end to hand out per user-defined aggregate or pointer kind.
const (
	ClassStack = iota
	ClassReadOnly
	ClassUser
)

// NewAccessSet returns an AccessSet with the given classes set.
func NewAccessSet(classes ...int) AccessSet {
	var s AccessSet
	s.b = s.b0[:]

	for _, c := range classes {
		s.Set(c)
	}

	return s
}

func (s *AccessSet) Set(i int) {
	i, j := s.ij(i)
	s.grow(i)
	s.b[i] |= 1 << j
}

// Intersects reports whether s and o share at least one class; this is
// the test the CSE filter uses to decide whether a store busts a given
// load's cache entry.
func (s AccessSet) Intersects(o AccessSet) bool {
	n := len(s.b)
	if len(o.b) < n {
		n = len(o.b)
	}

	for i := 0; i < n; i++ {
		if s.b[i]&o.b[i] != 0 {
			return true
		}
	}

	return false
}

// IsSet reports whether class i is a member of s.
func (s AccessSet) IsSet(i int) bool {
	i, j := s.ij(i)
	if i >= len(s.b) {
		return false
	}

	return s.b[i]&(1<<j) != 0
}

func (s AccessSet) TlogAppend(b []byte) []byte {
	var e tlwire.LowEncoder

	b = e.AppendTag(b, tlwire.Array, -1)

	for i, w := range s.b {
		for w != 0 {
			j := bits.TrailingZeros64(w)
			b = e.AppendInt(b, i*64+j)
			w &^= 1 << j
		}
	}

	b = e.AppendBreak(b)

	return b
}

func (s *AccessSet) ij(pos int) (i, j int) {
	return pos / 64, pos % 64
}

func (s *AccessSet) grow(i int) {
	if i < len(s.b) {
		return
	}

	nb := make([]uint64, i+1)
	copy(nb, s.b)
	s.b = nb
}
