package pipeline

import "github.com/gundermanc/nanojit/src/nanojit/lir"

// softfloatSink rewrites addd/subd/muld/divd and the float<->int casts
// into calls to soft-float helper routines (§4.3 item 4). It is only
// spliced into the pipeline when the target has no FP hardware; the
// amd64 reference backend in nanojit/nativeemit has hardware FP, so the
// driver never installs this filter for it by default (SPEC_FULL.md
// §6.9, resolving the Open Question in spec.md §9).
type softfloatSink struct {
	next  Sink
	calls map[lir.Opcode]*lir.CallInfo
}

// NewSoftfloat wraps next with the soft-float filter. calls maps the
// hardware opcodes it rewrites to the CallInfo of the helper that
// replaces them; a caller typically builds this from the built-in table
// nanojit/lirasm registers.
func NewSoftfloat(next Sink, calls map[lir.Opcode]*lir.CallInfo) Sink {
	return &softfloatSink{next: next, calls: calls}
}

func (s *softfloatSink) Emit(e lir.Emission) (*lir.Node, error) {
	ci, ok := s.calls[e.Op]
	if !ok {
		return s.next.Emit(e)
	}

	call := lir.Emission{
		Op:   callOpcodeFor(ci.RetTy),
		Type: ci.RetTy,
		Call: ci,
		Args: reverse(e.Operands),
	}

	return s.next.Emit(call)
}

func callOpcodeFor(t lir.Type) lir.Opcode {
	switch t {
	case lir.TI32:
		return lir.OpCallI
	case lir.TI64:
		return lir.OpCallQ
	case lir.TF64:
		return lir.OpCallD
	case lir.TF128:
		return lir.OpCallF4
	default:
		return lir.OpCallV
	}
}

// reverse returns ops in reverse order, the ABI ordering §4.5 and §9
// require call arguments to preserve.
func reverse(ops []*lir.Node) []*lir.Node {
	out := make([]*lir.Node, len(ops))
	for i, o := range ops {
		out[len(ops)-1-i] = o
	}
	return out
}
