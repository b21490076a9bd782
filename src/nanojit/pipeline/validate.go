package pipeline

import (
	"tlog.app/go/errors"

	"github.com/gundermanc/nanojit/src/nanojit/lir"
)

// validateSink checks every emission before forwarding it unchanged.
// It fails loudly on an unknown opcode, an arity mismatch, a nil
// operand, a call whose arguments don't match its CallInfo's count and
// types, or a branch condition that isn't i32. Other operand types are
// not checked: an arithmetic opcode fed an operand of the wrong Type
// passes through. It is purely observational: it never rewrites or
// elides an emission.
//
// Two instances run in the chain (§4.3 items 1 and 6): one above every
// other filter, catching whatever the assembler itself emits, and one
// below the expression folder, catching anything the folder's rewrites
// introduced. Both share this implementation.
type validateSink struct {
	next  Sink
	label string // "top" or "bottom", for error messages only.
}

// NewValidate wraps next with a validating sink.
func NewValidate(next Sink, label string) Sink {
	return &validateSink{next: next, label: label}
}

func (s *validateSink) Emit(e lir.Emission) (*lir.Node, error) {
	if want := e.Op.Arity(); want >= 0 && len(e.Operands) != want {
		return nil, errors.New("validate(%s): %s expects %d operand(s), got %d", s.label, e.Op, want, len(e.Operands))
	}

	if e.Op.Arity() < 0 && e.Op != lir.OpCallI && e.Op != lir.OpCallQ &&
		e.Op != lir.OpCallD && e.Op != lir.OpCallF4 && e.Op != lir.OpCallV {
		return nil, errors.New("validate(%s): unknown opcode %s", s.label, e.Op)
	}

	for i, o := range e.Operands {
		if o == nil {
			return nil, errors.New("validate(%s): %s operand %d is nil", s.label, e.Op, i)
		}
	}

	if isCall(e.Op) {
		if e.Call == nil {
			return nil, errors.New("validate(%s): %s has no CallInfo", s.label, e.Op)
		}
		if len(e.Args) != len(e.Call.ArgTy) {
			return nil, errors.New("validate(%s): call to %s expects %d arg(s), got %d", s.label, e.Call.Name, len(e.Call.ArgTy), len(e.Args))
		}
		for i, a := range e.Args {
			if a.Type != e.Call.ArgTy[i] {
				return nil, errors.New("validate(%s): call to %s arg %d: expected %s, got %s", s.label, e.Call.Name, i, e.Call.ArgTy[i], a.Type)
			}
		}
	}

	if e.Op.IsBranch() && e.Op != lir.OpJ {
		if e.Operands[0].Type != lir.TI32 {
			return nil, errors.New("validate(%s): %s condition must be i32, got %s", s.label, e.Op, e.Operands[0].Type)
		}
	}

	return s.next.Emit(e)
}

func isCall(op lir.Opcode) bool {
	switch op {
	case lir.OpCallI, lir.OpCallQ, lir.OpCallD, lir.OpCallF4, lir.OpCallV:
		return true
	default:
		return false
	}
}
