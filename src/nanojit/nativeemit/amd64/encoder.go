package amd64

// buf is an append-only byte stream with 32-bit-displacement patch
// support, the same shape as the buffer a code-generating assembler
// builds up before copying it into executable pages.
type buf struct {
	b []byte
}

func (c *buf) emit(b byte)        { c.b = append(c.b, b) }
func (c *buf) emitBytes(bs ...byte) { c.b = append(c.b, bs...) }

func (c *buf) emitU32(v uint32) {
	c.emit(byte(v))
	c.emit(byte(v >> 8))
	c.emit(byte(v >> 16))
	c.emit(byte(v >> 24))
}

func (c *buf) emitI32(v int32) { c.emitU32(uint32(v)) }

func (c *buf) emitU64(v uint64) {
	c.emitU32(uint32(v))
	c.emitU32(uint32(v >> 32))
}

func (c *buf) len() int { return len(c.b) }

// patchI32 rewrites the 4 bytes at pos, used once a forward branch's
// or call's target offset becomes known in the encoder's second pass.
func (c *buf) patchI32(pos int, v int32) {
	c.b[pos] = byte(v)
	c.b[pos+1] = byte(v >> 8)
	c.b[pos+2] = byte(v >> 16)
	c.b[pos+3] = byte(v >> 24)
}

// rex builds a REX prefix byte: w selects 64-bit operand size, r/x/b
// extend the ModRM reg, SIB index, and ModRM r/m (or SIB base) fields
// respectively into the r8-r15 range.
func rex(w, r, x, b bool) byte {
	v := byte(0x40)
	if w {
		v |= 0x08
	}
	if r {
		v |= 0x04
	}
	if x {
		v |= 0x02
	}
	if b {
		v |= 0x01
	}
	return v
}

func modrm(mod, reg, rm byte) byte {
	return (mod << 6) | ((reg & 7) << 3) | (rm & 7)
}

func sibByte(scale, index, base byte) byte {
	return (scale << 6) | ((index & 7) << 3) | (base & 7)
}

// disp picks the addressing mode for [base+offset]: no displacement,
// disp8, or disp32, and emits the ModRM (and SIB, if base is RSP/R12,
// which need one to avoid colliding with the RIP-relative encoding)
// plus displacement bytes. reg is the ModRM reg field (either another
// register, or an opcode extension).
func (c *buf) disp(reg, base int, offset int32) {
	needSIB := base&7 == RSP

	switch {
	case offset == 0 && base&7 != RBP:
		c.emit(modrm(0, byte(reg), byte(base)))
		if needSIB {
			c.emit(sibByte(0, RSP, byte(base)))
		}
	case offset >= -128 && offset <= 127:
		c.emit(modrm(1, byte(reg), byte(base)))
		if needSIB {
			c.emit(sibByte(0, RSP, byte(base)))
		}
		c.emit(byte(offset))
	default:
		c.emit(modrm(2, byte(reg), byte(base)))
		if needSIB {
			c.emit(sibByte(0, RSP, byte(base)))
		}
		c.emitI32(offset)
	}
}

// movRegMem64: mov reg64, [base+offset] (load).
func (c *buf) movRegMem64(reg, base int, offset int32) {
	c.emit(rex(true, reg >= 8, false, base >= 8))
	c.emit(0x8B)
	c.disp(reg, base, offset)
}

// movMemReg64: mov [base+offset], reg64 (store).
func (c *buf) movMemReg64(base int, offset int32, reg int) {
	c.emit(rex(true, reg >= 8, false, base >= 8))
	c.emit(0x89)
	c.disp(reg, base, offset)
}

// movRegMem32/movMemReg32: 32-bit widths, for OpLdI/OpStI (zero-extend on load).
func (c *buf) movRegMem32(reg, base int, offset int32) {
	c.emit(rex(false, reg >= 8, false, base >= 8))
	c.emit(0x8B)
	c.disp(reg, base, offset)
}

func (c *buf) movMemReg32(base int, offset int32, reg int) {
	c.emit(rex(false, reg >= 8, false, base >= 8))
	c.emit(0x89)
	c.disp(reg, base, offset)
}

// movImm64: mov reg64, imm64.
func (c *buf) movImm64(reg int, v uint64) {
	c.emit(rex(true, false, false, reg >= 8))
	c.emit(0xB8 + byte(reg&7))
	c.emitU64(v)
}

// movImm32: mov reg32, imm32 (zero-extends to 64 bits).
func (c *buf) movImm32(reg int, v uint32) {
	if reg >= 8 {
		c.emit(0x41)
	}
	c.emit(0xB8 + byte(reg&7))
	c.emitU32(v)
}

// movRegReg64: mov dst64, src64.
func (c *buf) movRegReg64(dst, src int) {
	if dst == src {
		return
	}
	c.emit(rex(true, src >= 8, false, dst >= 8))
	c.emit(0x89)
	c.emit(modrm(3, byte(src), byte(dst)))
}

func aluOp(opcode byte, dst, src int, w bool) func(*buf) {
	return func(c *buf) {
		c.emit(rex(w, src >= 8, false, dst >= 8))
		c.emit(opcode)
		c.emit(modrm(3, byte(src), byte(dst)))
	}
}

func (c *buf) addRegReg(dst, src int, w bool) { aluOp(0x01, dst, src, w)(c) }
func (c *buf) subRegReg(dst, src int, w bool) { aluOp(0x29, dst, src, w)(c) }
func (c *buf) andRegReg(dst, src int, w bool) { aluOp(0x21, dst, src, w)(c) }
func (c *buf) orRegReg(dst, src int, w bool)  { aluOp(0x09, dst, src, w)(c) }
func (c *buf) xorRegReg(dst, src int, w bool) { aluOp(0x31, dst, src, w)(c) }
func (c *buf) cmpRegReg(dst, src int, w bool) { aluOp(0x39, dst, src, w)(c) }

// imulRegReg: imul dst, src (signed, result in dst).
func (c *buf) imulRegReg(dst, src int, w bool) {
	c.emit(rex(w, dst >= 8, false, src >= 8))
	c.emitBytes(0x0F, 0xAF)
	c.emit(modrm(3, byte(dst), byte(src)))
}

// idivReg: idiv src — divides RDX:RAX (or EDX:EAX) by src,
// quotient in RAX/EAX, remainder in RDX/EDX. Caller must sign-extend
// RAX into RDX (cqo/cdq) first.
func (c *buf) idivReg(src int, w bool) {
	c.emit(rex(w, false, false, src >= 8))
	c.emit(0xF7)
	c.emit(modrm(3, 7, byte(src)))
}

func (c *buf) cqoOrCdq(w bool) {
	if w {
		c.emit(rex(true, false, false, false))
		c.emit(0x99) // CQO
	} else {
		c.emit(0x99) // CDQ
	}
}

// shiftImm: shl/shr/sar dst, imm8. ext selects the operation (4=SHL, 5=SHR, 7=SAR).
func (c *buf) shiftImm(ext byte, dst int, n byte, w bool) {
	c.emit(rex(w, false, false, dst >= 8))
	c.emit(0xC1)
	c.emit(modrm(3, ext, byte(dst)))
	c.emit(n)
}

// shiftCL: shl/shr/sar dst, cl.
func (c *buf) shiftCL(ext byte, dst int, w bool) {
	c.emit(rex(w, false, false, dst >= 8))
	c.emit(0xD3)
	c.emit(modrm(3, ext, byte(dst)))
}

func (c *buf) notReg(dst int, w bool) {
	c.emit(rex(w, false, false, dst >= 8))
	c.emit(0xF7)
	c.emit(modrm(3, 2, byte(dst)))
}

func (c *buf) negReg(dst int, w bool) {
	c.emit(rex(w, false, false, dst >= 8))
	c.emit(0xF7)
	c.emit(modrm(3, 3, byte(dst)))
}

func (c *buf) testRegReg(a, b int, w bool) {
	c.emit(rex(w, b >= 8, false, a >= 8))
	c.emit(0x85)
	c.emit(modrm(3, byte(b), byte(a)))
}

// setcc: setCC al-equivalent byte of dst (low 8 bits), then the
// caller movzx's it up if a wider zero-extended result is needed.
func (c *buf) setcc(cc byte, dst int) {
	if dst >= 8 {
		c.emit(0x41)
	}
	c.emitBytes(0x0F, 0x90|cc)
	c.emit(modrm(3, 0, byte(dst)))
}

// movzxByte: movzx dst32, dst8 — zero-extends the byte setcc wrote.
func (c *buf) movzxByte(dst int) {
	c.emit(rex(false, dst >= 8, false, dst >= 8))
	c.emitBytes(0x0F, 0xB6)
	c.emit(modrm(3, byte(dst), byte(dst)))
}

// cmovcc: cmovCC dst, src (64-bit).
func (c *buf) cmovcc(cc byte, dst, src int) {
	c.emit(rex(true, dst >= 8, false, src >= 8))
	c.emitBytes(0x0F, 0x40|cc)
	c.emit(modrm(3, byte(dst), byte(src)))
}

func (c *buf) push(reg int) {
	if reg >= 8 {
		c.emit(0x41)
	}
	c.emit(0x50 + byte(reg&7))
}

func (c *buf) pop(reg int) {
	if reg >= 8 {
		c.emit(0x41)
	}
	c.emit(0x58 + byte(reg&7))
}

func (c *buf) ret() { c.emit(0xC3) }

// jmpRel32 emits a 5-byte unconditional near jump with a placeholder
// displacement, returning the position of the displacement field so
// the caller can patch it once the target offset is known. This is
// also the exact shape a guard's trampoline stub takes (spec.md §4.7):
// 5 bytes, always present, rewritable in place by Patch.
func (c *buf) jmpRel32() (patchAt int) {
	c.emit(0xE9)
	patchAt = c.len()
	c.emitI32(0)
	return patchAt
}

// jccRel32 emits a near conditional jump (0F 8x) with a placeholder
// rel32, mirroring jmpRel32.
func (c *buf) jccRel32(cc byte) (patchAt int) {
	c.emitBytes(0x0F, 0x80|cc)
	patchAt = c.len()
	c.emitI32(0)
	return patchAt
}

// callReg emits an indirect call (FF /2) through a register already loaded
// with the absolute target address (the reference backend never
// emits rip-relative or PLT-style calls; every CallInfo carries an
// absolute Target, so this is always correct).
func (c *buf) callReg(reg int) {
	if reg >= 8 {
		c.emit(0x41)
	}
	c.emit(0xFF)
	c.emit(modrm(3, 2, byte(reg)))
}

// Condition codes for Jcc/SETcc/CMOVcc, sharing the low nibble the
// x86 encoding assigns each comparison.
const (
	ccO  = 0x0
	ccNO = 0x1
	ccB  = 0x2 // below / JB (unsigned <)
	ccAE = 0x3
	ccE  = 0x4
	ccNE = 0x5
	ccBE = 0x6
	ccA  = 0x7 // above (unsigned >)
	ccL  = 0xC // less (signed <)
	ccGE = 0xD
	ccLE = 0xE
	ccG  = 0xF // greater (signed >)
)

// --- SSE2 scalar double + packed float4 ---

func sseRex(dst, src int) byte {
	return rex(false, dst >= 8, false, src >= 8)
}

func maybeSSERex(dst, src int, c *buf) {
	if dst >= 8 || src >= 8 {
		c.emit(sseRex(dst, src))
	}
}

// movsdRegMem: movsd xmm, [base+offset] (scalar double load).
func (c *buf) movsdRegMem(xmm, base int, offset int32) {
	c.emitBytes(0xF2)
	maybeSSERex(xmm, base, c)
	c.emitBytes(0x0F, 0x10)
	c.disp(xmm, base, offset)
}

func (c *buf) movsdMemReg(base int, offset int32, xmm int) {
	c.emitBytes(0xF2)
	maybeSSERex(xmm, base, c)
	c.emitBytes(0x0F, 0x11)
	c.disp(xmm, base, offset)
}

// sseArith emits an optional mandatory prefix (0xF2 for scalar
// double, none for packed float4), an optional REX for r8-r15 operand
// access, the two-byte opcode, and the register-direct ModRM.
func sseArith(prefix byte, op byte, dst, src int, c *buf) {
	if prefix != 0 {
		c.emit(prefix)
	}
	maybeSSERex(dst, src, c)
	c.emitBytes(0x0F, op)
	c.emit(modrm(3, byte(dst), byte(src)))
}

func (c *buf) addsd(dst, src int) { sseArith(0xF2, 0x58, dst, src, c) }
func (c *buf) subsd(dst, src int) { sseArith(0xF2, 0x5C, dst, src, c) }
func (c *buf) mulsd(dst, src int) { sseArith(0xF2, 0x59, dst, src, c) }
func (c *buf) divsd(dst, src int) { sseArith(0xF2, 0x5E, dst, src, c) }
func (c *buf) ucomisd(dst, src int) {
	maybeSSERex(dst, src, c)
	c.emitBytes(0x66, 0x0F, 0x2E)
	c.emit(modrm(3, byte(dst), byte(src)))
}

// cvtsi2sd: convert a 64-bit integer in a GP register to a scalar
// double in an XMM register.
func (c *buf) cvtsi2sd(xmm, gpSrc int) {
	c.emitBytes(0xF2)
	c.emit(rex(true, xmm >= 8, false, gpSrc >= 8))
	c.emitBytes(0x0F, 0x2A)
	c.emit(modrm(3, byte(xmm), byte(gpSrc)))
}

// cvttsd2si: truncating convert of a scalar double to a 64-bit integer.
func (c *buf) cvttsd2si(gpDst, xmmSrc int) {
	c.emitBytes(0xF2)
	c.emit(rex(true, gpDst >= 8, false, xmmSrc >= 8))
	c.emitBytes(0x0F, 0x2C)
	c.emit(modrm(3, byte(gpDst), byte(xmmSrc)))
}

// movupsRegMem/movupsMemReg: unaligned 128-bit load/store, used for
// float4 (spec.md's packed 4xf32 type has no declared alignment
// requirement, so this backend never assumes 16-byte alignment).
func (c *buf) movupsRegMem(xmm, base int, offset int32) {
	maybeSSERex(xmm, base, c)
	c.emitBytes(0x0F, 0x10)
	c.disp(xmm, base, offset)
}

func (c *buf) movupsMemReg(base int, offset int32, xmm int) {
	maybeSSERex(xmm, base, c)
	c.emitBytes(0x0F, 0x11)
	c.disp(xmm, base, offset)
}

func (c *buf) addps(dst, src int) { sseArith(0x00, 0x58, dst, src, c) }
func (c *buf) subps(dst, src int) { sseArith(0x00, 0x5C, dst, src, c) }
func (c *buf) mulps(dst, src int) { sseArith(0x00, 0x59, dst, src, c) }
func (c *buf) xorps(dst, src int) { sseArith(0x00, 0x57, dst, src, c) }

// movsxd: movsxd dst64, src32 — sign-extends a 32-bit GP register
// into a 64-bit one (OpI2Q).
func (c *buf) movsxd(dst, src int) {
	c.emit(rex(true, dst >= 8, false, src >= 8))
	c.emit(0x63)
	c.emit(modrm(3, byte(dst), byte(src)))
}

// subRspImm32/addRspImm32: sub/add rsp, imm32 — frame (de)allocation.
func (c *buf) subRspImm32(n int32) {
	c.emit(rex(true, false, false, false))
	c.emit(0x81)
	c.emit(modrm(3, 5, RSP))
	c.emitI32(n)
}

func (c *buf) addRspImm32(n int32) {
	c.emit(rex(true, false, false, false))
	c.emit(0x81)
	c.emit(modrm(3, 0, RSP))
	c.emitI32(n)
}

// leaRegMem: lea dst, [base+offset].
func (c *buf) leaRegMem(dst, base int, offset int32) {
	c.emit(rex(true, dst >= 8, false, base >= 8))
	c.emit(0x8D)
	c.disp(dst, base, offset)
}
