package amd64

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAddRegRegREXW(t *testing.T) {
	var c buf
	c.addRegReg(RAX, RCX, true)
	// REX.W (0x48), ADD r/m64, r64 (0x01), ModRM reg=RCX rm=RAX -> 11 001 000
	require.Equal(t, []byte{0x48, 0x01, 0xC8}, c.b)
}

func TestMovImm64(t *testing.T) {
	var c buf
	c.movImm64(RDI, 0x1122334455667788)
	require.Equal(t, []byte{
		0x48, 0xBF,
		0x88, 0x77, 0x66, 0x55, 0x44, 0x33, 0x22, 0x11,
	}, c.b)
}

func TestMovImm32ExtendedReg(t *testing.T) {
	var c buf
	c.movImm32(R9, 0x2A)
	require.Equal(t, []byte{0x41, 0xB9, 0x2A, 0x00, 0x00, 0x00}, c.b)
}

func TestJmpRel32PlaceholderAndPatch(t *testing.T) {
	var c buf
	at := c.jmpRel32()
	require.Equal(t, 5, c.len(), "jmp rel32 is always 5 bytes")
	require.Equal(t, byte(0xE9), c.b[0])

	c.patchI32(at, 10)
	require.Equal(t, []byte{0xE9, 0x0A, 0x00, 0x00, 0x00}, c.b)
}

func TestDispNoDisplacement(t *testing.T) {
	var c buf
	c.movRegMem64(RAX, RDI, 0)
	// REX.W, mov r64 <- [r/m64] (0x8B), ModRM mod=00 reg=RAX rm=RDI
	require.Equal(t, []byte{0x48, 0x8B, modrm(0, RAX, RDI)}, c.b)
}

func TestDispRequiresSIBForRSPBase(t *testing.T) {
	var c buf
	c.movRegMem64(RAX, RSP, 0)
	require.Equal(t, []byte{
		0x48, 0x8B,
		modrm(0, RAX, RSP),
		sibByte(0, RSP, RSP),
	}, c.b)
}

func TestDispDisp8(t *testing.T) {
	var c buf
	c.movMemReg64(RBP, -8, RAX)
	require.Equal(t, []byte{
		0x48, 0x89,
		modrm(1, RAX, RBP),
		0xF8, // -8 as a byte
	}, c.b)
}

func TestDispDisp32(t *testing.T) {
	var c buf
	c.movMemReg64(RBP, 1000, RAX)
	require.Equal(t, []byte{
		0x48, 0x89,
		modrm(2, RAX, RBP),
		0xE8, 0x03, 0x00, 0x00,
	}, c.b)
}

func TestSetccAndMovzx(t *testing.T) {
	var c buf
	c.setcc(ccE, RAX)
	c.movzxByte(RAX)
	require.Equal(t, []byte{
		0x0F, 0x94, modrm(3, 0, RAX),
		// movzxByte always emits its REX byte, even when neither
		// operand needs the r8-r15 extension bits.
		0x40, 0x0F, 0xB6, modrm(3, RAX, RAX),
	}, c.b)
}

func TestMovRegRegNoOpWhenSame(t *testing.T) {
	var c buf
	c.movRegReg64(RAX, RAX)
	require.Empty(t, c.b, "mov reg,reg to itself must not emit anything")
}

func TestPushPopExtendedRegs(t *testing.T) {
	var c buf
	c.push(R12)
	c.pop(R12)
	require.Equal(t, []byte{0x41, 0x50 + 4, 0x41, 0x58 + 4}, c.b)
}
