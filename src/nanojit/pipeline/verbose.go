package pipeline

import (
	"fmt"
	"io"

	"github.com/gundermanc/nanojit/src/nanojit/lir"
	"github.com/nikandfor/hacked/hfmt"
)

// verboseSink prints a textual dump of every emission to w before
// forwarding it unchanged (§4.3 item 2). It is purely observational.
// Each line is written in the assembler's statement syntax, with two
// exceptions that the assembler does not read back as written: a label
// is printed as a bare "name:" line rather than as the prefix of the
// statement that follows it, and an operand with no bound name is
// printed as "tN" (its node ID), which names no binding.
type verboseSink struct {
	next Sink
	w    io.Writer
}

// NewVerbose wraps next with a sink that echoes every emission to w.
func NewVerbose(next Sink, w io.Writer) Sink {
	return &verboseSink{next: next, w: w}
}

func (s *verboseSink) Emit(e lir.Emission) (*lir.Node, error) {
	n, err := s.next.Emit(e)
	if err != nil {
		return nil, err
	}

	b := AppendFormat(nil, n)
	b = append(b, '\n')
	if _, err := s.w.Write(b); err != nil {
		return nil, err
	}

	return n, nil
}

// Format renders n as one line of the same form the verbose sink
// writes (see verboseSink for the cases the assembler does not read
// back as written).
func Format(n *lir.Node) string {
	return string(AppendFormat(nil, n))
}

// AppendFormat appends n's textual form to b, the same append-build
// style compiler/format/format.go's app() uses hfmt.Appendf for,
// rather than allocating one string per dumped line.
func AppendFormat(b []byte, n *lir.Node) []byte {
	prefix := ""
	if n.Name != "" {
		prefix = n.Name + " = "
	}

	switch n.Op {
	case lir.OpImmI:
		return hfmt.Appendf(b, "%s%s %d", prefix, n.Op, n.ImmI32())
	case lir.OpImmQ:
		return hfmt.Appendf(b, "%s%s %d", prefix, n.Op, n.ImmI64())
	case lir.OpImmD:
		return hfmt.Appendf(b, "%s%s %g", prefix, n.Op, n.ImmF64())
	case lir.OpImmF:
		return hfmt.Appendf(b, "%s%s %g", prefix, n.Op, n.ImmF32())
	case lir.OpLabel:
		return hfmt.Appendf(b, "%s:", n.Name)
	case lir.OpLdI, lir.OpLdQ, lir.OpLdD, lir.OpLdF, lir.OpLdF4, lir.OpLd2I:
		return hfmt.Appendf(b, "%s%s %s %d", prefix, n.Op, operandName(n.Operand(0)), n.Offset)
	case lir.OpStI, lir.OpStQ, lir.OpStD, lir.OpStF, lir.OpStF4:
		return hfmt.Appendf(b, "%s%s %s %s %d", prefix, n.Op, operandName(n.Operand(0)), operandName(n.Operand(1)), n.Offset)
	case lir.OpAllocP:
		return hfmt.Appendf(b, "%s%s %d", prefix, n.Op, n.RawImm())
	case lir.OpJ:
		return hfmt.Appendf(b, "j %s", targetName(n))
	case lir.OpJt, lir.OpJf:
		return hfmt.Appendf(b, "%s %s %s", n.Op, operandName(n.Operand(0)), targetName(n))
	default:
		if isCall(n.Op) {
			b = hfmt.Appendf(b, "%s%s %s %s", prefix, n.Op, n.Call.Name, n.Call.ABI)
			// Args are stored in reverse lexical order; print them in
			// source order.
			args := n.Args()
			for i := len(args) - 1; i >= 0; i-- {
				b = hfmt.Appendf(b, " %s", operandName(args[i]))
			}
			return b
		}

		b = hfmt.Appendf(b, "%s%s", prefix, n.Op)
		for i := 0; i < n.NumOperands(); i++ {
			b = hfmt.Appendf(b, " %s", operandName(n.Operand(i)))
		}
		return b
	}
}

func operandName(n *lir.Node) string {
	if n.Name != "" {
		return n.Name
	}
	return fmt.Sprintf("t%d", n.ID())
}

func targetName(n *lir.Node) string {
	if n.Target == nil {
		return "<unresolved>"
	}
	if n.Target.Name != "" {
		return n.Target.Name
	}
	return fmt.Sprintf("L%d", n.Target.ID())
}
