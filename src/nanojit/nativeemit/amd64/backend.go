package amd64

import (
	"context"

	"github.com/gundermanc/nanojit/src/nanojit/lir"
	"github.com/gundermanc/nanojit/src/nanojit/nativeemit"
	"tlog.app/go/errors"
	"tlog.app/go/loc"
	"tlog.app/go/tlog"
)

// Backend is the reference System V AMD64 Emitter: every LIR value
// gets its own 8-byte (or, for float4, 16-byte) slot below the
// fragment's frame pointer, reloaded into a scratch register on each
// use. This is deliberately not a register allocator — see the
// package doc comment.
type Backend struct{}

// New returns a ready-to-use Backend. It carries no state between
// fragments; each Emit call starts a fresh encoding.
func New() *Backend { return &Backend{} }

// fixup records a branch site whose rel32 displacement can't be
// resolved until every node in the fragment has an assigned byte
// offset.
type fixup struct {
	patchAt int
	target  *lir.Node
}

// sideExitFixup remembers where a guard's trampoline landed so its
// address can be stamped into the SideExit once the code has been
// copied into its final, executable location.
type sideExitFixup struct {
	exit    *lir.SideExit
	patchAt int // position, within the encoding buffer, of the trampoline's rel32 field.
}

type emitState struct {
	c      buf
	slot   map[*lir.Node]int32 // byte offset from RBP, negative.
	off    map[*lir.Node]int   // byte offset of the node's first instruction byte.
	frame  int32
	fixups []fixup
	exits  []sideExitFixup
}

const slotSize = 8
const slot4Size = 16

func (s *emitState) allocSlot(n *lir.Node, wide bool) int32 {
	sz := int32(slotSize)
	if wide {
		sz = slot4Size
	}
	s.frame += sz
	off := -s.frame
	s.slot[n] = off
	return off
}

// Emit compiles frag's node stream into code in three forward steps: a
// first walk assigns every value-producing node a stack slot, a second
// walk emits instructions while recording every node's byte offset,
// and a final pass over the fixup list — now that every offset is
// known — resolves branch displacements. This stands in for a true
// backward-streaming single-pass emitter.
func (b *Backend) Emit(frag *lir.Fragment, code *nativeemit.CodeArena) (nativeemit.Result, error) {
	tr, _ := tlog.SpawnFromContextAndWrap(context.Background(), "native emit")
	tr.Printw("native emit begin", "fragment", frag.Name, "from", loc.Caller(0))

	st := &emitState{
		slot: make(map[*lir.Node]int32),
		off:  make(map[*lir.Node]int),
	}

	frag.Walk(func(n *lir.Node) {
		if needsSlot(n) {
			st.allocSlot(n, n.Type == lir.TF128)
		}
	})

	// Round the frame up to a 16-byte boundary, matching the ABI's
	// stack-alignment requirement at call sites.
	if st.frame%16 != 0 {
		st.frame += 16 - st.frame%16
	}

	st.c.push(RBP)
	st.c.movRegReg64(RBP, RSP)
	st.c.subRspImm32(st.frame)

	paramIdx := 0
	status := nativeemit.StatusNone

	frag.Walk(func(n *lir.Node) {
		if status != nativeemit.StatusNone {
			return
		}
		st.off[n] = st.c.len()

		switch n.Op {
		case lir.OpStart, lir.OpLabel:
			// No code; the recorded offset is what jump fixups resolve to.

		case lir.OpParam:
			if paramIdx >= len(sysVIntArgRegs) {
				status = nativeemit.StatusStackFull
				return
			}
			st.c.movMemReg64(RBP, st.slot[n], sysVIntArgRegs[paramIdx])
			paramIdx++

		case lir.OpImmI, lir.OpImmF:
			st.c.movImm32(scratch, uint32(n.RawImm()))
			st.c.movMemReg32(RBP, st.slot[n], scratch)
		case lir.OpImmQ, lir.OpImmD:
			st.c.movImm64(scratch, n.RawImm())
			st.c.movMemReg64(RBP, st.slot[n], scratch)

		case lir.OpAllocP:
			// The node's own slot doubles as the allocation's backing
			// storage; its address is what every subsequent load/store
			// through this pointer resolves to.
			st.c.leaRegMem(scratch, RBP, st.slot[n])
			st.c.movMemReg64(RBP, st.slot[n], scratch)

		case lir.OpAddI, lir.OpAddQ:
			st.intALU(n, (*buf).addRegReg)
		case lir.OpSubI, lir.OpSubQ:
			st.intALU(n, (*buf).subRegReg)
		case lir.OpAndI, lir.OpAndQ:
			st.intALU(n, (*buf).andRegReg)
		case lir.OpOrI, lir.OpOrQ:
			st.intALU(n, (*buf).orRegReg)
		case lir.OpXorI, lir.OpXorQ:
			st.intALU(n, (*buf).xorRegReg)
		case lir.OpMulI, lir.OpMulQ:
			st.intMul(n)
		case lir.OpDivI, lir.OpModI, lir.OpDivQ:
			st.intDivMod(n)
		case lir.OpLshI, lir.OpLshQ:
			st.shift(n, 4)
		case lir.OpRshI, lir.OpRshQ:
			st.shift(n, 7)
		case lir.OpRshUI, lir.OpRshUQ:
			st.shift(n, 5)

		case lir.OpNotI, lir.OpNotQ:
			st.loadOperand(n.Operand(0), scratch)
			st.c.notReg(scratch, n.Op == lir.OpNotQ)
			st.storeResultGP(n, scratch)
		case lir.OpNegI, lir.OpNegQ:
			st.loadOperand(n.Operand(0), scratch)
			st.c.negReg(scratch, n.Op == lir.OpNegQ)
			st.storeResultGP(n, scratch)

		case lir.OpEqI, lir.OpNeI, lir.OpLtI, lir.OpGtI, lir.OpLeI, lir.OpGeI,
			lir.OpEqQ, lir.OpNeQ, lir.OpLtQ, lir.OpGtQ, lir.OpLeQ, lir.OpGeQ:
			st.intCompare(n)

		case lir.OpCmovI, lir.OpCmovQ:
			st.cmovInt(n)

		case lir.OpI2Q:
			st.loadOperand(n.Operand(0), scratch)
			st.c.movsxd(scratch, scratch)
			st.storeResultGP(n, scratch)
		case lir.OpQ2I:
			st.loadOperand(n.Operand(0), scratch)
			st.c.movMemReg32(RBP, st.slot[n], scratch)

		case lir.OpAddD:
			st.doubleALU(n, (*buf).addsd)
		case lir.OpSubD:
			st.doubleALU(n, (*buf).subsd)
		case lir.OpMulD:
			st.doubleALU(n, (*buf).mulsd)
		case lir.OpDivD:
			st.doubleALU(n, (*buf).divsd)
		case lir.OpNegD:
			st.loadOperandSD(n.Operand(0), scratchXMM2)
			st.c.xorps(scratchXMM, scratchXMM)
			st.c.subsd(scratchXMM, scratchXMM2)
			st.storeResultSD(n, scratchXMM)

		case lir.OpI2D, lir.OpUI2D, lir.OpQ2D:
			st.loadOperand(n.Operand(0), scratch)
			st.c.cvtsi2sd(scratchXMM, scratch)
			st.storeResultSD(n, scratchXMM)
		case lir.OpD2I:
			st.loadOperandSD(n.Operand(0), scratchXMM)
			st.c.cvttsd2si(scratch, scratchXMM)
			st.c.movMemReg32(RBP, st.slot[n], scratch)
		case lir.OpD2Q:
			st.loadOperandSD(n.Operand(0), scratchXMM)
			st.c.cvttsd2si(scratch, scratchXMM)
			st.storeResultGP(n, scratch)

		case lir.OpLdI:
			st.loadOperand(n.Operand(0), scratch)
			st.c.movRegMem32(scratch2, scratch, n.Offset)
			st.c.movMemReg32(RBP, st.slot[n], scratch2)
		case lir.OpLd2I:
			// movsx r32, word [base+offset]: sign-extending 16-bit load.
			st.loadOperand(n.Operand(0), scratch)
			st.c.emit(rex(false, scratch2 >= 8, false, scratch >= 8))
			st.c.emitBytes(0x0F, 0xBF)
			st.c.disp(scratch2, scratch, n.Offset)
			st.c.movMemReg32(RBP, st.slot[n], scratch2)
		case lir.OpLdQ:
			st.loadOperand(n.Operand(0), scratch)
			st.c.movRegMem64(scratch2, scratch, n.Offset)
			st.storeResultGP(n, scratch2)
		case lir.OpLdD:
			st.loadOperand(n.Operand(0), scratch)
			st.c.movsdRegMem(scratchXMM, scratch, n.Offset)
			st.storeResultSD(n, scratchXMM)
		case lir.OpLdF4:
			st.loadOperand(n.Operand(0), scratch)
			st.c.movupsRegMem(scratchXMM, scratch, n.Offset)
			st.c.movupsMemReg(RBP, st.slot[n], scratchXMM)

		case lir.OpStI:
			st.loadOperand(n.Operand(0), scratch)
			st.loadOperand(n.Operand(1), scratch2)
			st.c.movMemReg32(scratch2, n.Offset, scratch)
		case lir.OpStQ:
			st.loadOperand(n.Operand(0), scratch)
			st.loadOperand(n.Operand(1), scratch2)
			st.c.movMemReg64(scratch2, n.Offset, scratch)
		case lir.OpStD:
			st.loadOperandSD(n.Operand(0), scratchXMM)
			st.loadOperand(n.Operand(1), scratch2)
			st.c.movsdMemReg(scratch2, n.Offset, scratchXMM)
		case lir.OpStF4:
			st.loadOperand128(n.Operand(0), scratchXMM)
			st.loadOperand(n.Operand(1), scratch2)
			st.c.movupsMemReg(scratch2, n.Offset, scratchXMM)

		case lir.OpAddF4:
			st.float4ALU(n, (*buf).addps)
		case lir.OpSubF4:
			st.float4ALU(n, (*buf).subps)
		case lir.OpMulF4:
			st.float4ALU(n, (*buf).mulps)

		case lir.OpJ:
			at := st.c.jmpRel32()
			st.fixups = append(st.fixups, fixup{patchAt: at, target: n.Target})
		case lir.OpJt, lir.OpJf:
			st.loadOperand(n.Operand(0), scratch)
			st.c.testRegReg(scratch, scratch, false)
			cc := byte(ccNE)
			if n.Op == lir.OpJf {
				cc = ccE
			}
			at := st.c.jccRel32(cc)
			st.fixups = append(st.fixups, fixup{patchAt: at, target: n.Target})

		case lir.OpGuard, lir.OpGuardXo, lir.OpXt, lir.OpXf, lir.OpX:
			st.emitSideExit(n)

		case lir.OpCallI, lir.OpCallQ, lir.OpCallD, lir.OpCallF4, lir.OpCallV:
			if !st.emitCall(n) {
				status = nativeemit.StatusUnsupportedOpcode
			}

		case lir.OpRetI, lir.OpRetQ:
			st.loadOperand(n.Operand(0), RAX)
			st.emitEpilogue()
		case lir.OpRetD:
			st.loadOperandSD(n.Operand(0), scratchXMM)
			st.emitEpilogue()
		case lir.OpRetF4:
			// SysV classifies a 16-byte all-SSE aggregate as two
			// eightbytes returned in xmm0:xmm1; movups alone would
			// only fill xmm0's low 128 bits and leave xmm1 stale.
			off := st.slot[n.Operand(0)]
			st.c.movsdRegMem(XMM0, RBP, off)
			st.c.movsdRegMem(XMM1, RBP, off+8)
			st.emitEpilogue()

		default:
			status = nativeemit.StatusUnsupportedOpcode
		}
	})

	if status != nativeemit.StatusNone {
		tr.Printw("native emit failed", "fragment", frag.Name, "status", status.String())
		return nativeemit.Result{Status: status}, nil
	}

	for _, fx := range st.fixups {
		targetOff, ok := st.off[fx.target]
		if !ok {
			return nativeemit.Result{Status: nativeemit.StatusUnknownBranch}, nil
		}
		rel := int32(targetOff - (fx.patchAt + 4))
		st.c.patchI32(fx.patchAt, rel)
	}

	start := code.Len()
	dst := code.Reserve(st.c.len())
	copy(dst, st.c.b)
	entry := code.Base() + uintptr(start)

	for _, sx := range st.exits {
		sx.exit.Trampoline = entry + uintptr(sx.patchAt)
	}

	frag.Entry = entry

	tr.Printw("native emit done", "fragment", frag.Name, "bytes", st.c.len(), "from", loc.Caller(0))

	return nativeemit.Result{Entry: entry, Status: nativeemit.StatusNone}, nil
}

// Patch rewrites a side exit's trampoline to jump to target's entry
// instead of falling into the default bail-out stub. The code
// arena is briefly reopened for writing around the rewrite, since a
// sealed arena is execute-only.
func (b *Backend) Patch(code *nativeemit.CodeArena, exit *lir.SideExit, target *lir.Fragment) error {
	if exit.Trampoline == 0 {
		return errors.New("nativeemit/amd64: patch requested before native emission recorded a trampoline")
	}
	if target.Entry == 0 {
		return errors.New("nativeemit/amd64: patch target fragment %q has no compiled entry", target.Name)
	}

	relFrom := exit.Trampoline + 4
	rel := int32(int64(target.Entry) - int64(relFrom))

	if err := code.Unseal(); err != nil {
		return err
	}
	patchRel32At(exit.Trampoline, rel)
	return code.Reseal()
}

// needsSlot reports whether n's opcode produces a value that must be
// materialized somewhere for later instructions to reload — every
// opcode but the control/void family.
func needsSlot(n *lir.Node) bool {
	switch n.Op {
	case lir.OpStart, lir.OpLabel, lir.OpJ, lir.OpJt, lir.OpJf,
		lir.OpStI, lir.OpStQ, lir.OpStD, lir.OpStF, lir.OpStF4,
		lir.OpRetI, lir.OpRetQ, lir.OpRetD, lir.OpRetF4,
		lir.OpGuard, lir.OpGuardXo, lir.OpXt, lir.OpXf, lir.OpX,
		lir.OpCallV:
		return false
	default:
		return true
	}
}
