package lir

import "github.com/gundermanc/nanojit/src/nanojit/arena"

// Emission describes one instruction a pipeline client wants appended
// to the stream. Only the fields relevant to Op are meaningful; every
// filter but the leaf buffer sink forwards whatever it doesn't touch
// unchanged (SPEC_FULL.md §6.3).
type Emission struct {
	Op   Opcode
	Type Type

	Operands []*Node // 0-3 fixed operands.

	Imm uint64 // OpImm* literal, raw bits.

	Access AccessSet // OpLd*/OpSt*/OpCall* alias class.
	Offset int32     // OpLd*/OpSt* byte offset.

	Call *CallInfo // OpCall*.
	Args []*Node   // OpCall* arguments, already reverse-ordered.

	Guard *GuardRecord // OpGuard*, OpXt, OpXf, OpX.

	Name string // "name = op ..." binding, for the verbose round-trip.
}

// NewNode is the one place a *Node is constructed. It bump-allocates
// the node from a, fills it in from e, and assigns the next sequence
// id — called only by the leaf buffer sink (§4.2); every filter above
// it operates on nodes this produced.
func NewNode(a *arena.Arena, id int32, e Emission) *Node {
	n := arena.Alloc1[Node](a)

	n.id = id
	n.Op = e.Op
	n.Type = e.Type
	n.Access = e.Access
	n.Offset = e.Offset
	n.Call = e.Call
	n.Guard = e.Guard
	n.Name = e.Name
	n.imm = e.Imm
	n.args = e.Args

	if len(e.Operands) > 3 {
		panic("lir: at most 3 fixed operands are supported")
	}
	n.nOperand = uint8(len(e.Operands))
	copy(n.operands[:], e.Operands)

	return n
}
