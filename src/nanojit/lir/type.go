package lir

// Type is the result-type tag carried by every instruction node.
type Type uint8

const (
	TVoid Type = iota
	TI32
	TI64
	TF32
	TF64
	TF128 // 4x f32, a packed float4
	TPtr
)

func (t Type) String() string {
	switch t {
	case TVoid:
		return "void"
	case TI32:
		return "i32"
	case TI64:
		return "i64"
	case TF32:
		return "f32"
	case TF64:
		return "f64"
	case TF128:
		return "f128"
	case TPtr:
		return "ptr"
	default:
		return "type?"
	}
}

// ABI is a calling convention tag for CallInfo.
type ABI uint8

const (
	ABICdecl ABI = iota
	ABIFastcall
	ABIStdcall
	ABIThiscall
)

func (a ABI) String() string {
	switch a {
	case ABICdecl:
		return "cdecl"
	case ABIFastcall:
		return "fastcall"
	case ABIStdcall:
		return "stdcall"
	case ABIThiscall:
		return "thiscall"
	default:
		return "abi?"
	}
}

// ReturnClass classifies a fragment's overall return type, derived from
// the OR of every Ret opcode's type bit seen during assembly.
type ReturnClass uint8

const (
	RetNone ReturnClass = iota
	RetInt
	RetQuad
	RetDouble
	RetFloat
	RetFloat4
	RetGuard
)

func (r ReturnClass) String() string {
	switch r {
	case RetInt:
		return "int"
	case RetQuad:
		return "quad"
	case RetDouble:
		return "double"
	case RetFloat:
		return "float"
	case RetFloat4:
		return "float4"
	case RetGuard:
		return "guard"
	default:
		return "none"
	}
}

// returnBit is the bit a Ret-family opcode contributes to a fragment's
// return mask. Multiple bits set means the fragment mixes return types;
// spec says warn, not reject, with the last-written bit winning.
type returnBit uint8

const (
	bitInt returnBit = 1 << iota
	bitQuad
	bitDouble
	bitFloat
	bitFloat4
	bitGuard
)

func (b returnBit) class() ReturnClass {
	switch b {
	case bitInt:
		return RetInt
	case bitQuad:
		return RetQuad
	case bitDouble:
		return RetDouble
	case bitFloat:
		return RetFloat
	case bitFloat4:
		return RetFloat4
	case bitGuard:
		return RetGuard
	default:
		return RetNone
	}
}
