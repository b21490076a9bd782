// Package amd64 is the reference native-emitter backend: a
// stack-slot-per-node encoder targeting the System V AMD64 calling
// convention. It trades register allocation for simplicity, per the
// Non-goals carved out for this backend — every LIR value lives in
// its own stack slot and is reloaded into a scratch register on each
// use, rather than being assigned a physical register for its live
// range.
package amd64

// General-purpose register encodings, ModRM/SIB/REX.B numbering.
const (
	RAX = 0
	RCX = 1
	RDX = 2
	RBX = 3
	RSP = 4
	RBP = 5
	RSI = 6
	RDI = 7
	R8  = 8
	R9  = 9
	R10 = 10
	R11 = 11
	R12 = 12
	R13 = 13
	R14 = 14
	R15 = 15
)

// scratch is the general-purpose register every stack-slot reload
// lands in before an operation executes and every result is computed
// into before it's stored back. RAX doubles as the function's integer
// return register, which is convenient for ret.
const scratch = RAX

// scratch2 holds a node's second operand once reloaded, freeing RAX
// for the instruction's result.
const scratch2 = RCX

// sysVIntArgRegs is the System V AMD64 integer/pointer argument
// register order, used both for reading the fragment's own Params and
// for placing a call's arguments before transferring control.
var sysVIntArgRegs = [6]int{RDI, RSI, RDX, RCX, R8, R9}

// XMM0-XMM3 identify the SSE2 registers used for scalar double and packed
// float4 operations; encoded the same way general registers are, just
// routed through the 0F-prefixed opcode space.
const (
	XMM0 = 0
	XMM1 = 1
	XMM2 = 2
	XMM3 = 3
)

const scratchXMM = XMM0
const scratchXMM2 = XMM1
