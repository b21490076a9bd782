// Package softfloat provides the helper routines the pipeline's
// soft-float filter rewrites hardware float opcodes into, for targets
// that have no FP unit. They are ordinary Go functions operating on the
// raw bit patterns lir.Node immediates carry, registered as built-in
// CallInfos (marked Pure) in the assembler's call-table. The pipeline's
// CSE filter never merges calls, these included.
package softfloat

import "math"

// Dadd, Dsub, Dmul, Ddiv implement f64 arithmetic bit-for-bit the way
// the corresponding hardware instruction would, so substituting one for
// the other preserves observable semantics (SPEC_FULL.md §6.3).
func Dadd(a, b uint64) uint64 { return bits(math.Float64frombits(a) + math.Float64frombits(b)) }
func Dsub(a, b uint64) uint64 { return bits(math.Float64frombits(a) - math.Float64frombits(b)) }
func Dmul(a, b uint64) uint64 { return bits(math.Float64frombits(a) * math.Float64frombits(b)) }
func Ddiv(a, b uint64) uint64 { return bits(math.Float64frombits(a) / math.Float64frombits(b)) }

// DcmpEq, DcmpLt, DcmpGt, DcmpLe, DcmpGe return 1/0 the way the hardware
// comparison's i32 result would.
func DcmpEq(a, b uint64) uint64 { return boolBit(math.Float64frombits(a) == math.Float64frombits(b)) }
func DcmpLt(a, b uint64) uint64 { return boolBit(math.Float64frombits(a) < math.Float64frombits(b)) }
func DcmpGt(a, b uint64) uint64 { return boolBit(math.Float64frombits(a) > math.Float64frombits(b)) }
func DcmpLe(a, b uint64) uint64 { return boolBit(math.Float64frombits(a) <= math.Float64frombits(b)) }
func DcmpGe(a, b uint64) uint64 { return boolBit(math.Float64frombits(a) >= math.Float64frombits(b)) }

// I2d, D2i, Ui2d implement the corresponding cast opcodes.
func I2d(a uint64) uint64  { return bits(float64(int32(a))) }
func D2i(a uint64) uint64  { return uint64(uint32(int32(math.Float64frombits(a)))) }
func Ui2d(a uint64) uint64 { return bits(float64(uint32(a))) }

func bits(f float64) uint64 { return math.Float64bits(f) }

func boolBit(b bool) uint64 {
	if b {
		return 1
	}
	return 0
}
