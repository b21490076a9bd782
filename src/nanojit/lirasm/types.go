package lirasm

import "github.com/gundermanc/nanojit/src/nanojit/lir"

// resultType returns the Type an opcode's own mnemonic variant implies
// for the node it produces — most LIR opcodes carry their result type
// in their name (addi vs addq vs addd), so the assembler never asks
// the user to spell it out separately.
func resultType(op lir.Opcode) lir.Type {
	switch op {
	case lir.OpAddI, lir.OpSubI, lir.OpMulI, lir.OpDivI, lir.OpModI,
		lir.OpAndI, lir.OpOrI, lir.OpXorI, lir.OpLshI, lir.OpRshI, lir.OpRshUI,
		lir.OpNotI, lir.OpNegI, lir.OpCmovI, lir.OpImmI,
		lir.OpQ2I, lir.OpD2I, lir.OpLdI, lir.OpLd2I,
		lir.OpEqI, lir.OpNeI, lir.OpLtI, lir.OpGtI, lir.OpLeI, lir.OpGeI,
		lir.OpEqQ, lir.OpNeQ, lir.OpLtQ, lir.OpGtQ, lir.OpLeQ, lir.OpGeQ,
		lir.OpEqD, lir.OpNeD, lir.OpLtD, lir.OpGtD, lir.OpLeD, lir.OpGeD:
		return lir.TI32
	case lir.OpAddQ, lir.OpSubQ, lir.OpMulQ, lir.OpDivQ,
		lir.OpAndQ, lir.OpOrQ, lir.OpXorQ, lir.OpLshQ, lir.OpRshQ, lir.OpRshUQ,
		lir.OpNotQ, lir.OpNegQ, lir.OpCmovQ, lir.OpImmQ,
		lir.OpI2Q, lir.OpD2Q, lir.OpLdQ:
		return lir.TI64
	case lir.OpAddD, lir.OpSubD, lir.OpMulD, lir.OpDivD, lir.OpNegD,
		lir.OpCmovD, lir.OpImmD, lir.OpUI2D, lir.OpI2D, lir.OpQ2D, lir.OpLdD:
		return lir.TF64
	case lir.OpImmF, lir.OpLdF:
		return lir.TF32
	case lir.OpAddF4, lir.OpSubF4, lir.OpMulF4, lir.OpLdF4:
		return lir.TF128
	case lir.OpAllocP:
		return lir.TPtr
	case lir.OpCallI:
		return lir.TI32
	case lir.OpCallQ:
		return lir.TI64
	case lir.OpCallD:
		return lir.TF64
	case lir.OpCallF4:
		return lir.TF128
	case lir.OpParam:
		return lir.TI32
	default:
		return lir.TVoid
	}
}
