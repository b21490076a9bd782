package pipeline

import (
	"github.com/gundermanc/nanojit/src/nanojit/arena"
	"github.com/gundermanc/nanojit/src/nanojit/lir"
)

// bufferSink is the leaf of the chain (§4.2). It imposes no semantics:
// every Emit call allocates a fresh node from the arena and appends it
// to the fragment, full stop.
type bufferSink struct {
	a    *arena.Arena
	frag Frag

	nextID int32
}

// NewBuffer returns the leaf sink that all filters ultimately bottom
// out at.
func NewBuffer(a *arena.Arena, frag Frag) Sink {
	return &bufferSink{a: a, frag: frag}
}

func (s *bufferSink) Emit(e lir.Emission) (*lir.Node, error) {
	s.nextID++

	n := lir.NewNode(s.a, s.nextID, e)
	s.frag.Append(n)

	return n, nil
}
