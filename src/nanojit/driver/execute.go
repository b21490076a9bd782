package driver

import (
	"fmt"
	"math"
	"unsafe"

	"github.com/gundermanc/nanojit/src/nanojit/lir"

	"tlog.app/go/errors"
)

// funcFromEntry reinterprets a raw JIT code address as a callable Go
// func value of type T. A Go func value is itself a pointer to a
// funcval record whose first word is the address execution actually
// jumps to; entry only holds that address, it isn't itself a funcval,
// so one more level of indirection is needed than a plain cast gives:
// entry's own address stands in for the funcval (its first word is
// entry's value, exactly what a zero-argument, no-capture funcval
// needs), and ptr's own address is where T's single-word
// representation is read from.
func funcFromEntry[T any](entry uintptr) T {
	ptr := unsafe.Pointer(&entry)
	return *(*T)(unsafe.Pointer(&ptr))
}

// Execute calls frag's compiled entry with the calling signature its
// ReturnClass implies, and formats the result exactly as spec.md §6's
// "--execute" flag requires. The amd64 backend's prologue/epilogue
// matches the System V calling convention closely enough that
// funcFromEntry's reinterpreted func value works for every return
// shape this reference backend emits; a production-grade host would
// instead call through an asm trampoline the way other_examples'
// recompiler.go's callCompiledCode does.
func Execute(frag *lir.Fragment) (string, error) {
	if frag.Entry == 0 {
		return "", errors.New("driver: fragment %s has no compiled entry", frag.Name)
	}

	switch frag.Return {
	case lir.RetInt:
		fn := funcFromEntry[func() int32](frag.Entry)
		return fmt.Sprintf("Output is: %d", fn()), nil

	case lir.RetQuad:
		fn := funcFromEntry[func() int64](frag.Entry)
		return fmt.Sprintf("Output is: %d", fn()), nil

	case lir.RetDouble:
		fn := funcFromEntry[func() float64](frag.Entry)
		return fmt.Sprintf("Output is: %s", formatFloat(fn())), nil

	case lir.RetFloat:
		fn := funcFromEntry[func() float32](frag.Entry)
		return fmt.Sprintf("Output is: %s", formatFloat(float64(fn()))), nil

	case lir.RetFloat4:
		fn := funcFromEntry[func() [4]float32](frag.Entry)
		v := fn()
		return fmt.Sprintf("Output is: %s,%s,%s,%s",
			formatFloat(float64(v[0])), formatFloat(float64(v[1])),
			formatFloat(float64(v[2])), formatFloat(float64(v[3]))), nil

	case lir.RetGuard:
		fn := funcFromEntry[func() int32](frag.Entry)
		return fmt.Sprintf("Exited block on line: %d", fn()), nil

	default:
		return "", errors.New("driver: fragment %s has no return type, cannot execute", frag.Name)
	}
}

// formatFloat matches spec.md §6's "%g or NAN or +/-INF" rule.
func formatFloat(f float64) string {
	switch {
	case math.IsNaN(f):
		return "NAN"
	case math.IsInf(f, 1):
		return "INF"
	case math.IsInf(f, -1):
		return "-INF"
	default:
		return fmt.Sprintf("%g", f)
	}
}
