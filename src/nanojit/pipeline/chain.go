package pipeline

import (
	"io"

	"github.com/gundermanc/nanojit/src/nanojit/arena"
	"github.com/gundermanc/nanojit/src/nanojit/lir"
)

// Options selects which optional filters Build splices into the chain.
// In an unoptimized build the optimizing filters (CSE, expr-fold and
// the bottom validate) are bypassed (§4.3); the softfloat and verbose
// filters are installed whenever their option is set.
type Options struct {
	Optimize   bool
	Verbose    io.Writer // nil disables the verbose sink.
	SoftFloat  map[lir.Opcode]*lir.CallInfo // nil disables the softfloat filter.
}

// Build assembles the writer pipeline the fragment assembler feeds,
// in the order §4.3 specifies: validate (top) -> verbose -> CSE ->
// softfloat -> expr-fold -> validate (bottom) -> buffer (leaf).
func Build(a *arena.Arena, frag Frag, opt Options) Sink {
	var s Sink = NewBuffer(a, frag)

	if opt.Optimize {
		s = NewValidate(s, "bottom")
		s = NewFold(s)
	}

	if opt.SoftFloat != nil {
		s = NewSoftfloat(s, opt.SoftFloat)
	}

	if opt.Optimize {
		s = NewCSE(s)
	}

	if opt.Verbose != nil {
		s = NewVerbose(s, opt.Verbose)
	}

	s = NewValidate(s, "top")

	return s
}
