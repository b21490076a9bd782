// Package pipeline implements the writer chain the fragment assembler
// feeds, from the assembler down: validate -> verbose -> CSE ->
// softfloat -> expr-fold -> validate -> buffer-writer. Every link implements the single-method
// Sink capability and owns the sink it forwards to, per SPEC_FULL.md
// §6.3's note that this captures the filter chain's observable behavior
// without inheritance.
package pipeline

import "github.com/gundermanc/nanojit/src/nanojit/lir"

// Sink is the one capability every pipeline link exposes: emit an
// instruction, get back the node that now represents it (which may be
// an earlier node, if a filter upstream decided this emission was
// redundant).
type Sink interface {
	Emit(e lir.Emission) (*lir.Node, error)
}

// Frag exposes the subset of *lir.Fragment the leaf sink needs to keep
// Head/Tail current as it appends nodes.
type Frag interface {
	Append(n *lir.Node)
}
