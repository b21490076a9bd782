package pipeline

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/gundermanc/nanojit/src/nanojit/arena"
	"github.com/gundermanc/nanojit/src/nanojit/lir"
)

func newFrag() *lir.Fragment { return lir.NewFragment("t") }

func TestCSEIdempotence(t *testing.T) {
	a := arena.New()
	frag := newFrag()
	s := Build(a, frag, Options{Optimize: true})

	x, err := s.Emit(lir.Emission{Op: lir.OpImmI, Type: lir.TI32, Imm: 1})
	require.NoError(t, err)
	y, err := s.Emit(lir.Emission{Op: lir.OpImmI, Type: lir.TI32, Imm: 2})
	require.NoError(t, err)

	add1, err := s.Emit(lir.Emission{Op: lir.OpAddI, Type: lir.TI32, Operands: []*lir.Node{x, y}})
	require.NoError(t, err)
	add2, err := s.Emit(lir.Emission{Op: lir.OpAddI, Type: lir.TI32, Operands: []*lir.Node{x, y}})
	require.NoError(t, err)

	require.Same(t, add1, add2, "identical pure addi emissions must CSE to the same node")
}

func TestCSEBustAcrossStore(t *testing.T) {
	a := arena.New()
	frag := newFrag()
	s := Build(a, frag, Options{Optimize: true})

	class := lir.NewAccessSet(lir.ClassUser)

	base, err := s.Emit(lir.Emission{Op: lir.OpAllocP, Type: lir.TPtr, Imm: 8})
	require.NoError(t, err)
	val, err := s.Emit(lir.Emission{Op: lir.OpImmI, Type: lir.TI32, Imm: 7})
	require.NoError(t, err)

	ld1, err := s.Emit(lir.Emission{Op: lir.OpLdI, Type: lir.TI32, Operands: []*lir.Node{base}, Access: class})
	require.NoError(t, err)

	_, err = s.Emit(lir.Emission{Op: lir.OpStI, Type: lir.TVoid, Operands: []*lir.Node{val, base}, Access: class})
	require.NoError(t, err)

	ld2, err := s.Emit(lir.Emission{Op: lir.OpLdI, Type: lir.TI32, Operands: []*lir.Node{base}, Access: class})
	require.NoError(t, err)

	require.NotSame(t, ld1, ld2, "a store to an intervening access set must suppress CSE merging")
}

func TestCSEMergesRepeatedLoad(t *testing.T) {
	a := arena.New()
	frag := newFrag()
	s := Build(a, frag, Options{Optimize: true})

	class := lir.NewAccessSet(lir.ClassUser)
	base, err := s.Emit(lir.Emission{Op: lir.OpAllocP, Type: lir.TPtr, Imm: 8})
	require.NoError(t, err)

	ld1, err := s.Emit(lir.Emission{Op: lir.OpLdI, Type: lir.TI32, Operands: []*lir.Node{base}, Offset: 0, Access: class})
	require.NoError(t, err)

	ld2, err := s.Emit(lir.Emission{Op: lir.OpLdI, Type: lir.TI32, Operands: []*lir.Node{base}, Offset: 0, Access: class})
	require.NoError(t, err)

	require.Same(t, ld1, ld2, "two identical loads with no intervening store must CSE to the same node")
}

func TestCSEDistinguishesLoadOffset(t *testing.T) {
	a := arena.New()
	frag := newFrag()
	s := Build(a, frag, Options{Optimize: true})

	class := lir.NewAccessSet(lir.ClassUser)
	base, err := s.Emit(lir.Emission{Op: lir.OpAllocP, Type: lir.TPtr, Imm: 8})
	require.NoError(t, err)

	ld0, err := s.Emit(lir.Emission{Op: lir.OpLdI, Type: lir.TI32, Operands: []*lir.Node{base}, Offset: 0, Access: class})
	require.NoError(t, err)

	ld4, err := s.Emit(lir.Emission{Op: lir.OpLdI, Type: lir.TI32, Operands: []*lir.Node{base}, Offset: 4, Access: class})
	require.NoError(t, err)

	require.NotSame(t, ld0, ld4, "loads at different offsets from the same base must not collide in the CSE table")
}

func TestConstantFolding(t *testing.T) {
	a := arena.New()
	frag := newFrag()
	s := Build(a, frag, Options{Optimize: true})

	t0, err := s.Emit(lir.Emission{Op: lir.OpImmI, Type: lir.TI32, Imm: 3})
	require.NoError(t, err)
	t1, err := s.Emit(lir.Emission{Op: lir.OpImmI, Type: lir.TI32, Imm: 4})
	require.NoError(t, err)

	r, err := s.Emit(lir.Emission{Op: lir.OpAddI, Type: lir.TI32, Operands: []*lir.Node{t0, t1}})
	require.NoError(t, err)

	require.True(t, r.IsConstant())
	require.Equal(t, int32(7), r.ImmI32())
}

func TestAlgebraicIdentities(t *testing.T) {
	a := arena.New()
	frag := newFrag()
	s := Build(a, frag, Options{Optimize: true})

	x, err := s.Emit(lir.Emission{Op: lir.OpParam, Type: lir.TI32})
	require.NoError(t, err)

	zero, err := s.Emit(lir.Emission{Op: lir.OpImmI, Type: lir.TI32, Imm: 0})
	require.NoError(t, err)

	r, err := s.Emit(lir.Emission{Op: lir.OpAddI, Type: lir.TI32, Operands: []*lir.Node{x, zero}})
	require.NoError(t, err)

	require.Same(t, x, r, "x + 0 must fold to x")
}

func TestLabelFlushesCSE(t *testing.T) {
	a := arena.New()
	frag := newFrag()
	s := Build(a, frag, Options{Optimize: true})

	class := lir.NewAccessSet(lir.ClassUser)
	base, _ := s.Emit(lir.Emission{Op: lir.OpAllocP, Type: lir.TPtr, Imm: 8})

	ld1, err := s.Emit(lir.Emission{Op: lir.OpLdI, Type: lir.TI32, Operands: []*lir.Node{base}, Access: class})
	require.NoError(t, err)

	_, err = s.Emit(lir.Emission{Op: lir.OpLabel, Type: lir.TVoid, Name: "L"})
	require.NoError(t, err)

	ld2, err := s.Emit(lir.Emission{Op: lir.OpLdI, Type: lir.TI32, Operands: []*lir.Node{base}, Access: class})
	require.NoError(t, err)

	require.NotSame(t, ld1, ld2, "a label must flush the entire CSE cache")
}
