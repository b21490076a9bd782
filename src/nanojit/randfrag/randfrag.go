// Package randfrag implements the "--random N" fuzz fragment generator
// spec.md §1 and §6 describe as an external collaborator: this repo
// gives it a small, deterministic-seed implementation instead, driving
// the exact same pipeline.Sink the textual assembler drives, so
// nothing it emits could not also have come from a real source file
// (SPEC_FULL.md §6.10).
package randfrag

import (
	"math/rand/v2"

	"github.com/gundermanc/nanojit/src/nanojit/lir"
	"github.com/gundermanc/nanojit/src/nanojit/pipeline"

	"tlog.app/go/errors"
)

// weightedOps is the opcode table Generate walks; every entry is a
// pure binary i32 op so every emitted node can feed any later one
// without a type check.
var weightedOps = []lir.Opcode{
	lir.OpAddI, lir.OpSubI, lir.OpMulI,
	lir.OpAndI, lir.OpOrI, lir.OpXorI,
	lir.OpEqI, lir.OpNeI, lir.OpLtI, lir.OpGtI,
}

// Generate emits start, approximately n arithmetic/comparison
// instructions, and a trailing "reti" + unconditional exit into sink,
// seeded from seed so two calls with the same (n, seed) produce
// byte-identical fragments. math/rand/v2 is used here on purpose: no
// PRNG library is grounded in the retrieved pack for this narrow a
// need (DESIGN.md).
func Generate(sink pipeline.Sink, frag *lir.Fragment, n int, seed uint64) error {
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))

	if _, err := sink.Emit(lir.Emission{Op: lir.OpStart, Type: lir.TVoid}); err != nil {
		return errors.Wrap(err, "randfrag: start")
	}

	pool := make([]*lir.Node, 0, n+1)

	seed0, err := emitImm(sink, rng)
	if err != nil {
		return errors.Wrap(err, "randfrag: seed immediate")
	}
	pool = append(pool, seed0)

	for i := 0; i < n; i++ {
		if rng.IntN(4) == 0 {
			imm, err := emitImm(sink, rng)
			if err != nil {
				return errors.Wrap(err, "randfrag: immediate %d", i)
			}
			pool = append(pool, imm)
			continue
		}

		op := weightedOps[rng.IntN(len(weightedOps))]
		a := pool[rng.IntN(len(pool))]
		b := pool[rng.IntN(len(pool))]

		node, err := sink.Emit(lir.Emission{Op: op, Type: lir.TI32, Operands: []*lir.Node{a, b}})
		if err != nil {
			return errors.Wrap(err, "randfrag: op %d (%s)", i, op)
		}
		pool = append(pool, node)
	}

	result := pool[len(pool)-1]
	frag.AddReturn(lir.OpRetI)
	if _, err := sink.Emit(lir.Emission{Op: lir.OpRetI, Type: lir.TVoid, Operands: []*lir.Node{result}}); err != nil {
		return errors.Wrap(err, "randfrag: return")
	}

	exit := &lir.SideExit{Line: 0}
	if _, err := sink.Emit(lir.Emission{Op: lir.OpX, Type: lir.TVoid, Guard: &lir.GuardRecord{Exit: exit}}); err != nil {
		return errors.Wrap(err, "randfrag: trailing exit")
	}

	class, _, _ := frag.Classify()
	frag.Return = class

	return nil
}

func emitImm(sink pipeline.Sink, rng *rand.Rand) (*lir.Node, error) {
	return sink.Emit(lir.Emission{Op: lir.OpImmI, Type: lir.TI32, Imm: uint64(uint32(rng.Int32()))})
}
