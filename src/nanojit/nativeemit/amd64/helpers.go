package amd64

import (
	"unsafe"

	"github.com/gundermanc/nanojit/src/nanojit/lir"
)

// isWide64 reports whether n's own result occupies a full 64-bit
// slot (quads and pointers) rather than a 32-bit one (everything
// else but doubles/float4, which have their own load/store paths).
func isWide64(n *lir.Node) bool {
	return n.Type == lir.TI64 || n.Type == lir.TPtr
}

// loadOperand reloads op's value from its stack slot into reg, at
// the width op's own result type implies.
func (s *emitState) loadOperand(op *lir.Node, reg int) {
	if isWide64(op) {
		s.c.movRegMem64(reg, RBP, s.slot[op])
	} else {
		s.c.movRegMem32(reg, RBP, s.slot[op])
	}
}

// storeResultGP spills reg into n's slot, at the width n's result
// type implies.
func (s *emitState) storeResultGP(n *lir.Node, reg int) {
	if isWide64(n) {
		s.c.movMemReg64(RBP, s.slot[n], reg)
	} else {
		s.c.movMemReg32(RBP, s.slot[n], reg)
	}
}

func (s *emitState) loadOperandSD(op *lir.Node, xmm int) {
	s.c.movsdRegMem(xmm, RBP, s.slot[op])
}

func (s *emitState) storeResultSD(n *lir.Node, xmm int) {
	s.c.movsdMemReg(RBP, s.slot[n], xmm)
}

func (s *emitState) loadOperand128(op *lir.Node, xmm int) {
	s.c.movupsRegMem(xmm, RBP, s.slot[op])
}

// intALU handles the commutative-shape two-operand integer ops: load
// both operands, apply op to the scratch pair, store the result.
func (s *emitState) intALU(n *lir.Node, op func(*buf, int, int, bool)) {
	w := isWide64(n)
	s.loadOperand(n.Operand(0), scratch)
	s.loadOperand(n.Operand(1), scratch2)
	op(&s.c, scratch, scratch2, w)
	s.storeResultGP(n, scratch)
}

// intMul: imul clobbers only its destination, so the same scratch
// pair suffices.
func (s *emitState) intMul(n *lir.Node) {
	w := isWide64(n)
	s.loadOperand(n.Operand(0), scratch)
	s.loadOperand(n.Operand(1), scratch2)
	s.c.imulRegReg(scratch, scratch2, w)
	s.storeResultGP(n, scratch)
}

// intDivMod: idiv takes its dividend from RDX:RAX (or EDX:EAX) and
// its divisor from an arbitrary register; RCX is pressed into service
// as that divisor register since it isn't RDX or RAX.
func (s *emitState) intDivMod(n *lir.Node) {
	w := isWide64(n)
	s.loadOperand(n.Operand(0), RAX)
	s.loadOperand(n.Operand(1), RCX)
	s.c.cqoOrCdq(w)
	s.c.idivReg(RCX, w)
	if n.Op == lir.OpModI {
		s.storeResultGP(n, RDX)
	} else {
		s.storeResultGP(n, RAX)
	}
}

// shift: ext selects SHL(4)/SHR(5)/SAR(7) per the x86 /digit
// extension; the shift count always comes from CL since LIR never
// guarantees its second operand is a compile-time constant.
func (s *emitState) shift(n *lir.Node, ext byte) {
	w := isWide64(n)
	s.loadOperand(n.Operand(0), scratch)
	s.loadOperand(n.Operand(1), RCX)
	s.c.shiftCL(ext, scratch, w)
	s.storeResultGP(n, scratch)
}

// intCompare computes a 0/1 i32 result via cmp + setcc + movzx, per
// the comparison opcode's condition code.
func (s *emitState) intCompare(n *lir.Node) {
	w := n.Operand(0).Type == lir.TI64 || n.Operand(0).Type == lir.TPtr
	s.loadOperand(n.Operand(0), scratch)
	s.loadOperand(n.Operand(1), scratch2)
	s.c.cmpRegReg(scratch, scratch2, w)
	s.c.setcc(conditionCodeFor(n.Op), scratch)
	s.c.movzxByte(scratch)
	s.storeResultGP(n, scratch)
}

func conditionCodeFor(op lir.Opcode) byte {
	switch op {
	case lir.OpEqI, lir.OpEqQ:
		return ccE
	case lir.OpNeI, lir.OpNeQ:
		return ccNE
	case lir.OpLtI, lir.OpLtQ:
		return ccL
	case lir.OpGtI, lir.OpGtQ:
		return ccG
	case lir.OpLeI, lir.OpLeQ:
		return ccLE
	case lir.OpGeI, lir.OpGeQ:
		return ccGE
	default:
		return ccE
	}
}

// cmovInt implements cmov(cond, ifTrue, ifFalse): test cond, then
// conditionally move ifFalse over a register preloaded with ifTrue,
// reading the branch the opposite way (cmovz overwrites with
// ifFalse when cond is zero) so the common case needs only one cmov.
func (s *emitState) cmovInt(n *lir.Node) {
	s.loadOperand(n.Operand(1), scratch)  // ifTrue
	s.loadOperand(n.Operand(2), scratch2) // ifFalse
	s.loadOperand(n.Operand(0), R10)      // cond
	s.c.testRegReg(R10, R10, false)
	s.c.cmovcc(ccE, scratch, scratch2)
	s.storeResultGP(n, scratch)
}

func (s *emitState) doubleALU(n *lir.Node, op func(*buf, int, int)) {
	s.loadOperandSD(n.Operand(0), scratchXMM)
	s.loadOperandSD(n.Operand(1), scratchXMM2)
	op(&s.c, scratchXMM, scratchXMM2)
	s.storeResultSD(n, scratchXMM)
}

func (s *emitState) float4ALU(n *lir.Node, op func(*buf, int, int)) {
	s.loadOperand128(n.Operand(0), scratchXMM)
	s.loadOperand128(n.Operand(1), scratchXMM2)
	op(&s.c, scratchXMM, scratchXMM2)
	s.c.movupsMemReg(RBP, s.slot[n], scratchXMM)
}

// emitEpilogue restores the caller's frame and returns; every Ret
// opcode funnels through here. Side exits tear the frame down inline,
// before their trampoline (see emitSideExit).
func (s *emitState) emitEpilogue() {
	s.c.movRegReg64(RSP, RBP)
	s.c.pop(RBP)
	s.c.ret()
}

// emitSideExit lays down the fixed 5-byte jmp rel32 trampoline every
// guard/side-exit opcode compiles to (spec.md §4.7), immediately
// followed by a default bail-out stub (emitBailout). The exit path
// tears down the fragment's frame (mov rsp, rbp; pop rbp) before the
// trampoline, so whatever the trampoline reaches runs with the stack
// exactly as this fragment's caller left it. An unpatched
// trampoline's displacement defaults to 0, which lands exactly on the
// stub's first byte — the byte right after the jmp instruction — so
// the default target never needs computing explicitly; the registry's
// Patch rewrites the displacement to skip the stub and jump to another
// fragment's entry instead, which then returns straight to this
// fragment's caller.
func (s *emitState) emitSideExit(n *lir.Node) {
	if n.Op == lir.OpXt || n.Op == lir.OpXf || n.Op == lir.OpGuard {
		s.loadOperand(n.Operand(0), scratch)
		s.c.testRegReg(scratch, scratch, false)
		cc := byte(ccE) // OpXt: exit when cond is true, so skip the exit on false/zero.
		if n.Op == lir.OpXf || n.Op == lir.OpGuard {
			cc = ccNE // OpXf/OpGuard: exit when cond is false, so skip the exit on true/nonzero.
		}
		skip := s.c.jccRel32(cc)
		s.c.movRegReg64(RSP, RBP)
		s.c.pop(RBP)
		patchAt := s.c.jmpRel32()
		s.emitBailout(n)
		skipTarget := s.c.len()
		s.c.patchI32(skip, int32(skipTarget-(skip+4)))
		s.recordSideExit(n, patchAt)
	} else {
		// OpX exits unconditionally. OpGuardXo exits only when the
		// hardware overflow flag set by the immediately preceding
		// arithmetic op is set; it has no explicit operand.
		if n.Op == lir.OpGuardXo {
			skip := s.c.jccRel32(ccNO)
			s.c.movRegReg64(RSP, RBP)
			s.c.pop(RBP)
			patchAt := s.c.jmpRel32()
			s.emitBailout(n)
			skipTarget := s.c.len()
			s.c.patchI32(skip, int32(skipTarget-(skip+4)))
			s.recordSideExit(n, patchAt)
			return
		}
		s.c.movRegReg64(RSP, RBP)
		s.c.pop(RBP)
		patchAt := s.c.jmpRel32()
		s.emitBailout(n)
		s.recordSideExit(n, patchAt)
	}
}

// emitBailout is the default side-exit target: it loads the guard's
// source line into RAX — the same register a reti/retq result comes
// back in — and returns; emitSideExit has already torn down the frame.
// A fragment whose only exits are guards is therefore called exactly
// like an int-returning one; the driver tells the two apart by the
// fragment's classified ReturnClass, not by a distinct calling
// convention.
func (s *emitState) emitBailout(n *lir.Node) {
	var line int32
	if n.Guard != nil && n.Guard.Exit != nil {
		line = int32(n.Guard.Exit.Line)
	}
	s.c.movImm32(RAX, uint32(line))
	s.c.ret()
}

func (s *emitState) recordSideExit(n *lir.Node, patchAt int) {
	if n.Guard == nil || n.Guard.Exit == nil {
		return
	}
	s.exits = append(s.exits, sideExitFixup{exit: n.Guard.Exit, patchAt: patchAt})
}

// emitCall supports up to 6 integer/pointer arguments placed in the
// System V AMD64 order; a call with more arguments, or any
// floating-point argument, is outside this reference backend's scope
// and reported as unsupported rather than miscompiled.
func (s *emitState) emitCall(n *lir.Node) bool {
	// calld/callf4 would need to classify a double/float4 return in
	// xmm0 rather than rax, which this stack-slot backend doesn't
	// model; every softfloat helper happens to be called through
	// calli/callq instead (its doubles travel as raw-bit i64
	// arguments/results, per builtins.go's ABICdecl table), so this
	// limitation never actually bites the soft-float rewrite path.
	if n.Op == lir.OpCallD || n.Op == lir.OpCallF4 {
		return false
	}

	args := n.Args()
	if len(args) > len(sysVIntArgRegs) {
		return false
	}
	for _, a := range args {
		if a.Type == lir.TF64 || a.Type == lir.TF32 || a.Type == lir.TF128 {
			return false
		}
	}

	for i, a := range args {
		s.loadOperand(a, sysVIntArgRegs[i])
	}

	s.c.movImm64(scratch, uint64(n.Call.Target))
	s.c.callReg(scratch)

	switch n.Op {
	case lir.OpCallI:
		s.c.movMemReg32(RBP, s.slot[n], RAX)
	case lir.OpCallQ:
		s.storeResultGP(n, RAX)
	case lir.OpCallV:
		// No result to store.
	}

	return true
}

// patchRel32At writes a little-endian rel32 directly at addr, used by
// Patch to rewrite an already-executable trampoline in place. Callers
// are responsible for having reopened write access via
// nativeemit.CodeArena.Unseal first.
func patchRel32At(addr uintptr, rel int32) {
	p := (*[4]byte)(unsafe.Pointer(addr))
	p[0] = byte(rel)
	p[1] = byte(rel >> 8)
	p[2] = byte(rel >> 16)
	p[3] = byte(rel >> 24)
}
