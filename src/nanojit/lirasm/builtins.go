package lirasm

import (
	"github.com/gundermanc/nanojit/src/nanojit/lir"
	"github.com/gundermanc/nanojit/src/nanojit/softfloat"
)

// builtin pairs a CallInfo with the Go function it resolves to, for
// built-ins whose Target is fixed at process start rather than
// user-defined at a call site.
type builtin struct {
	info lir.CallInfo
	fn   any
}

// softFloatBuiltins is the built-in call table the softfloat pipeline
// filter rewrites hardware float ops into (SPEC_FULL.md §6.9). It is
// also the table the assembler's Call dispatch consults when a "call"
// line names one of these functions directly.
var softFloatBuiltins = []builtin{
	{lir.CallInfo{Name: "dadd", ABI: ABIForHelper, ArgTy: []lir.Type{lir.TI64, lir.TI64}, RetTy: lir.TI64, Pure: true}, softfloat.Dadd},
	{lir.CallInfo{Name: "dsub", ABI: ABIForHelper, ArgTy: []lir.Type{lir.TI64, lir.TI64}, RetTy: lir.TI64, Pure: true}, softfloat.Dsub},
	{lir.CallInfo{Name: "dmul", ABI: ABIForHelper, ArgTy: []lir.Type{lir.TI64, lir.TI64}, RetTy: lir.TI64, Pure: true}, softfloat.Dmul},
	{lir.CallInfo{Name: "ddiv", ABI: ABIForHelper, ArgTy: []lir.Type{lir.TI64, lir.TI64}, RetTy: lir.TI64, Pure: true}, softfloat.Ddiv},
	{lir.CallInfo{Name: "dcmpeq", ABI: ABIForHelper, ArgTy: []lir.Type{lir.TI64, lir.TI64}, RetTy: lir.TI32, Pure: true}, softfloat.DcmpEq},
	{lir.CallInfo{Name: "dcmplt", ABI: ABIForHelper, ArgTy: []lir.Type{lir.TI64, lir.TI64}, RetTy: lir.TI32, Pure: true}, softfloat.DcmpLt},
	{lir.CallInfo{Name: "dcmpgt", ABI: ABIForHelper, ArgTy: []lir.Type{lir.TI64, lir.TI64}, RetTy: lir.TI32, Pure: true}, softfloat.DcmpGt},
	{lir.CallInfo{Name: "dcmple", ABI: ABIForHelper, ArgTy: []lir.Type{lir.TI64, lir.TI64}, RetTy: lir.TI32, Pure: true}, softfloat.DcmpLe},
	{lir.CallInfo{Name: "dcmpge", ABI: ABIForHelper, ArgTy: []lir.Type{lir.TI64, lir.TI64}, RetTy: lir.TI32, Pure: true}, softfloat.DcmpGe},
	{lir.CallInfo{Name: "i2d", ABI: ABIForHelper, ArgTy: []lir.Type{lir.TI64}, RetTy: lir.TI64, Pure: true}, softfloat.I2d},
	{lir.CallInfo{Name: "d2i", ABI: ABIForHelper, ArgTy: []lir.Type{lir.TI64}, RetTy: lir.TI64, Pure: true}, softfloat.D2i},
	{lir.CallInfo{Name: "ui2d", ABI: ABIForHelper, ArgTy: []lir.Type{lir.TI64}, RetTy: lir.TI64, Pure: true}, softfloat.Ui2d},
}

// ABIForHelper is the calling convention soft-float helpers and other
// built-ins are invoked with; cdecl, since they're ordinary Go
// functions called through a trampoline rather than hand-tuned asm.
const ABIForHelper = lir.ABICdecl

// BuiltinTable returns the call name -> CallInfo map the assembler's
// Call dispatch consults for known functions, with Target resolved to
// each Go function's code pointer.
func BuiltinTable() map[string]*lir.CallInfo {
	m := make(map[string]*lir.CallInfo, len(softFloatBuiltins))
	for i := range softFloatBuiltins {
		b := &softFloatBuiltins[i]
		ci := b.info
		ci.Target = funcAddr(b.fn)
		m[ci.Name] = &ci
	}
	return m
}

// SoftFloatRewriteTable returns the opcode -> CallInfo map the
// softfloat pipeline filter installs, built from the same builtins.
func SoftFloatRewriteTable() map[lir.Opcode]*lir.CallInfo {
	table := BuiltinTable()

	return map[lir.Opcode]*lir.CallInfo{
		lir.OpAddD: table["dadd"],
		lir.OpSubD: table["dsub"],
		lir.OpMulD: table["dmul"],
		lir.OpDivD: table["ddiv"],
		lir.OpEqD:  table["dcmpeq"],
		lir.OpLtD:  table["dcmplt"],
		lir.OpGtD:  table["dcmpgt"],
		lir.OpLeD:  table["dcmple"],
		lir.OpGeD:  table["dcmpge"],
		lir.OpI2D:  table["i2d"],
		lir.OpD2I:  table["d2i"],
		lir.OpUI2D: table["ui2d"],
	}
}
