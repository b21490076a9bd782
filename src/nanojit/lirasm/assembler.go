package lirasm

import (
	"tlog.app/go/errors"
	"tlog.app/go/tlog"

	"github.com/gundermanc/nanojit/src/nanojit/lir"
	"github.com/gundermanc/nanojit/src/nanojit/pipeline"
)

// jumpFixup is a forward-jump worklist entry: a branch node (j/jt/jf)
// whose Target is still nil, waiting on a "name:" site that may not
// have been parsed yet (SPEC_FULL.md §6.5, spec.md §4.5 step 3).
type jumpFixup struct {
	name string
	node *lir.Node
}

// Assembler drives one fragment's body through a pipeline.Sink,
// resolving NAME operands against the fragment's label maps as it
// goes. One Assembler is used per fragment; the driver constructs a
// fresh Fragment and Assembler for each `.begin`/`.end` block (or the
// single implicit "main" fragment).
type Assembler struct {
	sink pipeline.Sink
	frag *lir.Fragment
	tz   *Tokenizer

	calls  map[string]*lir.CallInfo
	jumps  []jumpFixup
	access lir.AccessSet
}

// NewAssembler returns an Assembler for frag, reading from tz and
// emitting into sink. calls seeds the known-function table (built-ins
// such as the soft-float helpers); the assembler adds an entry for
// every user-defined function it encounters so repeat calls validate
// against the first call's inferred signature.
func NewAssembler(sink pipeline.Sink, frag *lir.Fragment, tz *Tokenizer, calls map[string]*lir.CallInfo) *Assembler {
	if calls == nil {
		calls = make(map[string]*lir.CallInfo)
	}

	return &Assembler{
		sink:   sink,
		frag:   frag,
		tz:     tz,
		calls:  calls,
		access: lir.NewAccessSet(lir.ClassUser),
	}
}

// Fragment returns the fragment this Assembler is building, for the
// driver to register and later hand to the native emitter.
func (a *Assembler) Fragment() *lir.Fragment { return a.frag }

// Assemble runs the full per-fragment protocol of spec.md §4.5: emit
// start + numParams param pseudo-instructions, read statements until
// ".end" or EOF, resolve forward jumps, emit the trailing unconditional
// exit, and classify the fragment's return type.
func (a *Assembler) Assemble(numParams int) error {
	if _, err := a.sink.Emit(lir.Emission{Op: lir.OpStart, Type: lir.TVoid}); err != nil {
		return errors.Wrap(err, "fragment %s: start", a.frag.Name)
	}

	for i := 0; i < numParams; i++ {
		if _, err := a.sink.Emit(lir.Emission{Op: lir.OpParam, Type: lir.TI32}); err != nil {
			return errors.Wrap(err, "fragment %s: param %d", a.frag.Name, i)
		}
	}

	for {
		tok, err := a.tz.Peek()
		if err != nil {
			return errors.Wrap(err, "fragment %s", a.frag.Name)
		}

		if tok.Kind == KindEOF {
			break
		}
		if tok.Kind == KindNewline {
			a.tz.Next()
			continue
		}
		if tok.Kind == KindName && tok.Text == ".end" {
			a.tz.Next()
			a.consumeOptionalNewline()
			break
		}

		if err := a.statement(); err != nil {
			return errors.Wrap(err, "fragment %s: line %d", a.frag.Name, tok.Line)
		}
	}

	return a.finish()
}

func (a *Assembler) consumeOptionalNewline() {
	tok, err := a.tz.Peek()
	if err == nil && tok.Kind == KindNewline {
		a.tz.Next()
	}
}

// statement parses one `(NAME ":")? (NAME "=")? OPCODE operand*`
// production (spec.md §6 grammar) and feeds the resulting emission(s)
// into the sink.
func (a *Assembler) statement() error {
	var jumpLabel, bindName string

	tok, err := a.tz.Next()
	if err != nil {
		return err
	}

	nxt, err := a.tz.Peek()
	if err != nil {
		return err
	}

	if tok.Kind == KindName && nxt.Kind == KindPunct && nxt.Text == ":" {
		a.tz.Next()
		jumpLabel = tok.Text

		tok, err = a.tz.Next()
		if err != nil {
			return err
		}
		nxt, err = a.tz.Peek()
		if err != nil {
			return err
		}
	}

	if tok.Kind == KindName && nxt.Kind == KindPunct && nxt.Text == "=" {
		a.tz.Next()
		bindName = tok.Text

		tok, err = a.tz.Next()
		if err != nil {
			return err
		}
	}

	if tok.Kind != KindName {
		return errors.New("line %d: expected opcode, got %s %q", tok.Line, tok.Kind, tok.Text)
	}

	if jumpLabel != "" {
		labelNode, err := a.sink.Emit(lir.Emission{Op: lir.OpLabel, Type: lir.TVoid, Name: jumpLabel})
		if err != nil {
			return err
		}
		if err := a.frag.BindJumpLabel(jumpLabel, labelNode); err != nil {
			return err
		}
	}

	n, err := a.dispatch(tok, bindName)
	if err != nil {
		return err
	}

	if bindName != "" {
		if err := a.frag.BindLabel(bindName, n); err != nil {
			return err
		}
	}

	return a.endOfStatement()
}

func (a *Assembler) endOfStatement() error {
	tok, err := a.tz.Next()
	if err != nil {
		return err
	}
	if tok.Kind != KindNewline && tok.Kind != KindEOF {
		return errors.New("line %d: expected end of statement, got %q", tok.Line, tok.Text)
	}
	return nil
}

// dispatch looks up opTok's mnemonic and emits the node it describes,
// per the arity/shape table of spec.md §4.5 step 2.
func (a *Assembler) dispatch(opTok Token, bindName string) (*lir.Node, error) {
	op, ok := lir.Lookup(opTok.Text)
	if !ok {
		return nil, errors.New("line %d: unknown opcode %q", opTok.Line, opTok.Text)
	}

	switch {
	case op == lir.OpAllocP:
		return a.immediate(op, bindName, parseIntLiteral)
	case op == lir.OpImmI:
		return a.immediateInt(op, bindName, 32)
	case op == lir.OpImmQ:
		return a.immediateInt(op, bindName, 64)
	case op == lir.OpImmD:
		return a.immediateFloat(op, bindName, 64)
	case op == lir.OpImmF:
		return a.immediateFloat(op, bindName, 32)
	case isLoadOp(op):
		return a.load(op, bindName)
	case isStoreOp(op):
		return a.store(op, bindName)
	case isCallOp(op):
		return a.call(op, bindName)
	case isBranchOp(op):
		return a.branch(op, bindName)
	case isGuardOp(op):
		return a.guard(op, bindName, nil, true)
	case isReturnOp(op):
		return a.ret(op, bindName)
	case op == lir.OpCmovI, op == lir.OpCmovQ, op == lir.OpCmovD:
		return a.cmov(op, bindName)
	default:
		return a.arithmetic(op, bindName)
	}
}

func (a *Assembler) operand() (*lir.Node, error) {
	name, err := a.tz.GetName()
	if err != nil {
		return nil, err
	}
	n, ok := a.frag.Lookup(name)
	if !ok {
		return nil, errors.New("line %d: unknown operand %q", a.tz.Line(), name)
	}
	return n, nil
}

func (a *Assembler) immediate(op lir.Opcode, bindName string, parse func(Token) (int64, error)) (*lir.Node, error) {
	tok, err := a.tz.Next()
	if err != nil {
		return nil, err
	}
	v, err := parse(tok)
	if err != nil {
		return nil, err
	}
	return a.sink.Emit(lir.Emission{Op: op, Type: resultType(op), Imm: uint64(v), Name: bindName})
}

func (a *Assembler) immediateInt(op lir.Opcode, bindName string, bits int) (*lir.Node, error) {
	tok, err := a.tz.Next()
	if err != nil {
		return nil, err
	}
	v, err := parseIntLiteral(tok)
	if err != nil {
		return nil, err
	}

	imm := uint64(v)
	if bits == 32 {
		imm = uint64(uint32(v))
	}

	return a.sink.Emit(lir.Emission{Op: op, Type: resultType(op), Imm: imm, Name: bindName})
}

func (a *Assembler) immediateFloat(op lir.Opcode, bindName string, bits int) (*lir.Node, error) {
	tok, err := a.tz.Next()
	if err != nil {
		return nil, err
	}
	v, err := parseFloatLiteral(tok)
	if err != nil {
		return nil, err
	}

	return a.sink.Emit(lir.Emission{Op: op, Type: resultType(op), Imm: floatBits(bits, v), Name: bindName})
}

func (a *Assembler) load(op lir.Opcode, bindName string) (*lir.Node, error) {
	base, err := a.operand()
	if err != nil {
		return nil, err
	}

	offTok, err := a.tz.Next()
	if err != nil {
		return nil, err
	}
	off, err := parseIntLiteral(offTok)
	if err != nil {
		return nil, err
	}

	return a.sink.Emit(lir.Emission{
		Op:       op,
		Type:     resultType(op),
		Operands: []*lir.Node{base},
		Offset:   int32(off),
		Access:   a.access,
		Name:     bindName,
	})
}

func (a *Assembler) store(op lir.Opcode, bindName string) (*lir.Node, error) {
	val, err := a.operand()
	if err != nil {
		return nil, err
	}
	base, err := a.operand()
	if err != nil {
		return nil, err
	}

	offTok, err := a.tz.Next()
	if err != nil {
		return nil, err
	}
	off, err := parseIntLiteral(offTok)
	if err != nil {
		return nil, err
	}

	return a.sink.Emit(lir.Emission{
		Op:       op,
		Type:     lir.TVoid,
		Operands: []*lir.Node{val, base},
		Offset:   int32(off),
		Access:   a.access,
		Name:     bindName,
	})
}

func (a *Assembler) cmov(op lir.Opcode, bindName string) (*lir.Node, error) {
	cond, err := a.operand()
	if err != nil {
		return nil, err
	}
	ifTrue, err := a.operand()
	if err != nil {
		return nil, err
	}
	ifFalse, err := a.operand()
	if err != nil {
		return nil, err
	}

	return a.sink.Emit(lir.Emission{
		Op:       op,
		Type:     resultType(op),
		Operands: []*lir.Node{cond, ifTrue, ifFalse},
		Name:     bindName,
	})
}

func (a *Assembler) ret(op lir.Opcode, bindName string) (*lir.Node, error) {
	val, err := a.operand()
	if err != nil {
		return nil, err
	}

	a.frag.AddReturn(op)

	return a.sink.Emit(lir.Emission{Op: op, Type: lir.TVoid, Operands: []*lir.Node{val}, Name: bindName})
}

// arithmetic handles every unary/binary opcode whose operands are all
// resolved by name: plain int/quad/double/float4 arithmetic, casts,
// and comparisons (spec.md §4.5 "Unary / binary / ternary arithmetic").
func (a *Assembler) arithmetic(op lir.Opcode, bindName string) (*lir.Node, error) {
	arity := op.Arity()
	if arity < 0 {
		return nil, errors.New("line %d: unsupported opcode shape %s", a.tz.Line(), op)
	}

	ops := make([]*lir.Node, arity)
	for i := range ops {
		n, err := a.operand()
		if err != nil {
			return nil, err
		}
		ops[i] = n
	}

	return a.sink.Emit(lir.Emission{Op: op, Type: resultType(op), Operands: ops, Name: bindName})
}

// branch handles j/jt/jf: same-fragment jumps whose target is a
// "label:" site, resolved after .end by resolveJumps (spec.md §4.5
// step 3). The branch node's Target stays nil until then.
func (a *Assembler) branch(op lir.Opcode, bindName string) (*lir.Node, error) {
	var ops []*lir.Node

	if op != lir.OpJ {
		cond, err := a.operand()
		if err != nil {
			return nil, err
		}
		ops = []*lir.Node{cond}
	}

	target, err := a.tz.GetName()
	if err != nil {
		return nil, err
	}

	n, err := a.sink.Emit(lir.Emission{Op: op, Type: lir.TVoid, Operands: ops, Name: bindName})
	if err != nil {
		return nil, err
	}

	a.jumps = append(a.jumps, jumpFixup{name: target, node: n})

	return n, nil
}

// guard handles guard/guardxov/xt/xf (and, via finish, the trailing
// unconditional x): conditional or unconditional side exits that carry
// a fresh GuardRecord/SideExit rather than a same-fragment jump target
// (spec.md §4.5 "Guard/guard-xov/jump-jov"). Their eventual target is
// another fragment's entry, set later by the registry's Patch.
//
// countsAsExit is false only for the trailing unconditional exit
// finish() appends to every fragment: that one is a safety net, not a
// declared exit path, so it must not make an otherwise reti-only
// fragment look like it mixes return types. A user-written guard does
// contribute its returnBit (bitGuard), the same way ret does, so a
// fragment whose only way out is a guard classifies as RetGuard instead
// of warning "no return type".
func (a *Assembler) guard(op lir.Opcode, bindName string, presetLine *int, countsAsExit bool) (*lir.Node, error) {
	var ops []*lir.Node

	if op.Arity() == 1 {
		cond, err := a.operand()
		if err != nil {
			return nil, err
		}
		ops = []*lir.Node{cond}
	}

	line := a.tz.Line()
	if presetLine != nil {
		line = *presetLine
	}

	exit := &lir.SideExit{Line: line}
	rec := &lir.GuardRecord{Exit: exit}

	if countsAsExit {
		a.frag.AddReturn(op)
	}

	return a.sink.Emit(lir.Emission{Op: op, Type: lir.TVoid, Operands: ops, Guard: rec, Name: bindName})
}

// call handles `func abi arg1 … argN`. A known built-in is validated
// against its registered CallInfo; an unknown name is treated as
// user-defined, with its signature inferred from the call opcode's
// return-type variant and each argument's own result type, and
// remembered so later calls to the same name are checked consistently.
func (a *Assembler) call(op lir.Opcode, bindName string) (*lir.Node, error) {
	fnName, err := a.tz.GetName()
	if err != nil {
		return nil, err
	}

	abiTok, err := a.tz.Next()
	if err != nil {
		return nil, err
	}
	abi, ok := parseABI(abiTok.Text)
	if !ok {
		return nil, errors.New("line %d: unknown ABI %q", abiTok.Line, abiTok.Text)
	}

	var args []*lir.Node
	for {
		peek, err := a.tz.Peek()
		if err != nil {
			return nil, err
		}
		if peek.Kind == KindNewline || peek.Kind == KindEOF {
			break
		}

		n, err := a.operand()
		if err != nil {
			return nil, err
		}
		args = append(args, n)
	}

	ci, known := a.calls[fnName]
	if known {
		if ci.ABI != abi {
			return nil, errors.New("line %d: call to %s: ABI mismatch: have %s, want %s", a.tz.Line(), fnName, abi, ci.ABI)
		}
		if len(args) != len(ci.ArgTy) {
			return nil, errors.New("line %d: call to %s: expected %d arg(s), got %d", a.tz.Line(), fnName, len(ci.ArgTy), len(args))
		}
		for i, arg := range args {
			if arg.Type != ci.ArgTy[i] {
				return nil, errors.New("line %d: call to %s: arg %d: expected %s, got %s", a.tz.Line(), fnName, i, ci.ArgTy[i], arg.Type)
			}
		}
	} else {
		argTy := make([]lir.Type, len(args))
		for i, arg := range args {
			argTy[i] = arg.Type
		}
		ci = &lir.CallInfo{Name: fnName, ABI: abi, ArgTy: argTy, RetTy: resultType(op)}
		a.calls[fnName] = ci
	}

	return a.sink.Emit(lir.Emission{
		Op:   op,
		Type: resultType(op),
		Call: ci,
		Args: reverseNodes(args),
		Name: bindName,
	})
}

// finish resolves every forward jump, emits the trailing unconditional
// exit every fragment ends with, and classifies its return type
// (spec.md §4.5 steps 3-5).
func (a *Assembler) finish() error {
	for _, fx := range a.jumps {
		target, ok := a.frag.LookupJumpLabel(fx.name)
		if !ok {
			return errors.New("fragment %s: jump to unknown label %q", a.frag.Name, fx.name)
		}
		fx.node.Target = target
	}

	if _, err := a.guard(lir.OpX, "", nil, false); err != nil {
		return errors.Wrap(err, "fragment %s: trailing exit", a.frag.Name)
	}

	class, warnNone, warnMixed := a.frag.Classify()
	a.frag.Return = class

	if warnNone {
		tlog.Printw("fragment has no return type", "fragment", a.frag.Name)
	}
	if warnMixed {
		tlog.Printw("fragment mixes return types, last write wins", "fragment", a.frag.Name, "class", class)
	}

	return nil
}

func parseABI(s string) (lir.ABI, bool) {
	switch s {
	case "cdecl":
		return lir.ABICdecl, true
	case "fastcall":
		return lir.ABIFastcall, true
	case "stdcall":
		return lir.ABIStdcall, true
	case "thiscall":
		return lir.ABIThiscall, true
	default:
		return 0, false
	}
}

func reverseNodes(ns []*lir.Node) []*lir.Node {
	out := make([]*lir.Node, len(ns))
	for i, n := range ns {
		out[len(ns)-1-i] = n
	}
	return out
}

func isLoadOp(op lir.Opcode) bool {
	switch op {
	case lir.OpLdI, lir.OpLdQ, lir.OpLdD, lir.OpLdF, lir.OpLdF4, lir.OpLd2I:
		return true
	default:
		return false
	}
}

func isStoreOp(op lir.Opcode) bool {
	switch op {
	case lir.OpStI, lir.OpStQ, lir.OpStD, lir.OpStF, lir.OpStF4:
		return true
	default:
		return false
	}
}

func isCallOp(op lir.Opcode) bool {
	switch op {
	case lir.OpCallI, lir.OpCallQ, lir.OpCallD, lir.OpCallF4, lir.OpCallV:
		return true
	default:
		return false
	}
}

func isReturnOp(op lir.Opcode) bool {
	switch op {
	case lir.OpRetI, lir.OpRetQ, lir.OpRetD, lir.OpRetF4:
		return true
	default:
		return false
	}
}

func isBranchOp(op lir.Opcode) bool { return op.IsBranch() }
func isGuardOp(op lir.Opcode) bool  { return op.IsSideExit() }
