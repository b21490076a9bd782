package pipeline

import (
	"math"

	"github.com/gundermanc/nanojit/src/nanojit/lir"
)

// foldSink constant-folds arithmetic and casts, and applies a handful
// of algebraic identities (x+0 -> x, x*1 -> x, x & x -> x, cmov(true, a,
// b) -> a), without reordering any side effect (§4.3 item 5). It never
// looks past its own operands: folding is purely local, which is what
// keeps the "preserves observable semantics" contract trivially true.
type foldSink struct {
	next Sink
}

// NewFold wraps next with the expression folder.
func NewFold(next Sink) Sink {
	return &foldSink{next: next}
}

func (s *foldSink) Emit(e lir.Emission) (*lir.Node, error) {
	if n, ok := s.fold(e); ok {
		return n, nil
	}

	return s.next.Emit(e)
}

// fold returns a replacement for e when a constant-fold or algebraic
// identity applies, and false otherwise (in which case the caller
// should emit e as given).
func (s *foldSink) fold(e lir.Emission) (*lir.Node, bool) {
	switch e.Op {
	case lir.OpAddI:
		if identityOperand(e, 0, isZero) != nil {
			return e.Operands[1], true
		}
		if identityOperand(e, 1, isZero) != nil {
			return e.Operands[0], true
		}
		return s.foldIntBin(e, func(a, b int32) int32 { return a + b })
	case lir.OpSubI:
		if identityOperand(e, 1, isZero) != nil {
			return e.Operands[0], true
		}
		return s.foldIntBin(e, func(a, b int32) int32 { return a - b })
	case lir.OpMulI:
		if n := firstNonNil(identityOperand(e, 0, isOne), identityOperand(e, 1, isOne)); n != nil {
			return otherOperand(e, n), true
		}
		return s.foldIntBin(e, func(a, b int32) int32 { return a * b })
	case lir.OpAndI:
		if sameOperand(e) {
			return e.Operands[0], true
		}
		return s.foldIntBin(e, func(a, b int32) int32 { return a & b })
	case lir.OpOrI:
		if sameOperand(e) {
			return e.Operands[0], true
		}
		return s.foldIntBin(e, func(a, b int32) int32 { return a | b })
	case lir.OpXorI:
		return s.foldIntBin(e, func(a, b int32) int32 { return a ^ b })
	case lir.OpCmovI, lir.OpCmovQ, lir.OpCmovD:
		if e.Operands[0].IsConstant() {
			if e.Operands[0].ImmI32() != 0 {
				return e.Operands[1], true
			}
			return e.Operands[2], true
		}
		return nil, false
	case lir.OpI2Q:
		if e.Operands[0].IsConstant() {
			return s.emitImmQ(int64(e.Operands[0].ImmI32()))
		}
	case lir.OpI2D:
		if e.Operands[0].IsConstant() {
			return s.emitImmD(float64(e.Operands[0].ImmI32()))
		}
	}

	return nil, false
}

func (s *foldSink) foldIntBin(e lir.Emission, apply func(a, b int32) int32) (*lir.Node, bool) {
	if len(e.Operands) != 2 || !e.Operands[0].IsConstant() || !e.Operands[1].IsConstant() {
		return nil, false
	}

	v := apply(e.Operands[0].ImmI32(), e.Operands[1].ImmI32())
	n, _ := s.emitImmI(v)
	return n, true
}

func (s *foldSink) emitImmI(v int32) (*lir.Node, bool) {
	n, err := s.next.Emit(lir.Emission{Op: lir.OpImmI, Type: lir.TI32, Imm: uint64(uint32(v))})
	return n, err == nil
}

func (s *foldSink) emitImmQ(v int64) (*lir.Node, bool) {
	n, err := s.next.Emit(lir.Emission{Op: lir.OpImmQ, Type: lir.TI64, Imm: uint64(v)})
	return n, err == nil
}

func (s *foldSink) emitImmD(v float64) (*lir.Node, bool) {
	n, err := s.next.Emit(lir.Emission{Op: lir.OpImmD, Type: lir.TF64, Imm: math.Float64bits(v)})
	return n, err == nil
}

func isZero(n *lir.Node) bool { return n.IsConstant() && n.ImmI32() == 0 }
func isOne(n *lir.Node) bool  { return n.IsConstant() && n.ImmI32() == 1 }

// identityOperand returns operand i of e if it is constant and
// satisfies pred, else nil. Used for "x <op> 0 -> x" style rewrites.
func identityOperand(e lir.Emission, i int, pred func(*lir.Node) bool) *lir.Node {
	if i >= len(e.Operands) {
		return nil
	}
	n := e.Operands[i]
	if pred(n) {
		return n
	}
	return nil
}

func firstNonNil(a, b *lir.Node) *lir.Node {
	if a != nil {
		return a
	}
	return b
}

func otherOperand(e lir.Emission, identity *lir.Node) *lir.Node {
	if e.Operands[0] == identity {
		return e.Operands[1]
	}
	return e.Operands[0]
}

func sameOperand(e lir.Emission) bool {
	return len(e.Operands) == 2 && e.Operands[0] == e.Operands[1]
}
