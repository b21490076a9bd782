package driver

import "github.com/gundermanc/nanojit/src/nanojit/lir"

// framesPerUnit matches spec.md §6's "--stkskip N" accounting: N units
// of roughly 512 int32 frames each, recursed before invoking the
// fragment, as a deep-stack test for the native emitter's frame setup.
const framesPerUnit = 512

// ExecuteWithStackSkip recurses depth*framesPerUnit plain Go call
// frames, each holding a 512-int32 array so the compiler can't elide
// the frame, before calling Execute. This is the deep-stack variant of
// spec.md §6's "--stkskip N" flag: it proves the fragment's own
// prologue still reserves its frame correctly however deep the host's
// stack already runs.
func ExecuteWithStackSkip(frag *lir.Fragment, depth int) (string, error) {
	if depth <= 0 {
		return Execute(frag)
	}
	return recurseFrames(frag, depth*framesPerUnit)
}

func recurseFrames(frag *lir.Fragment, remaining int) (string, error) {
	var pad [framesPerUnit]int32
	pad[0] = int32(remaining)

	if remaining <= 0 {
		return Execute(frag)
	}

	out, err := recurseFrames(frag, remaining-1)

	// Touch pad so the compiler can't prove the frame is dead and
	// collapse the recursion via tail-call/inlining.
	if pad[0] == -1 {
		out += "?"
	}

	return out, err
}
