package lirasm

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/gundermanc/nanojit/src/nanojit/arena"
	"github.com/gundermanc/nanojit/src/nanojit/lir"
	"github.com/gundermanc/nanojit/src/nanojit/pipeline"
)

func assemble(t *testing.T, src string) (*lir.Fragment, error) {
	t.Helper()

	a := arena.New()
	frag := lir.NewFragment("t")
	sink := pipeline.Build(a, frag, pipeline.Options{Optimize: true})
	tz := NewTokenizer([]byte(src))

	asm := NewAssembler(sink, frag, tz, nil)
	err := asm.Assemble(0)
	return frag, err
}

func TestAssembleBindAndReturn(t *testing.T) {
	frag, err := assemble(t, `
a = immi 2
b = immi 3
r = addi a b
reti r
`)
	require.NoError(t, err)
	require.Equal(t, lir.RetInt, frag.Return)
}

func TestAssembleUnknownOpcode(t *testing.T) {
	_, err := assemble(t, "r = bogusop 1\n")
	require.Error(t, err)
	require.Contains(t, err.Error(), "unknown opcode")
}

func TestAssembleUnknownOperand(t *testing.T) {
	_, err := assemble(t, "r = addi x y\n")
	require.Error(t, err)
	require.Contains(t, err.Error(), "unknown operand")
}

func TestAssembleDuplicateBindName(t *testing.T) {
	_, err := assemble(t, `
a = immi 1
a = immi 2
`)
	require.Error(t, err)
}

func TestAssembleJumpToUnknownLabel(t *testing.T) {
	_, err := assemble(t, `
c = immi 1
jt c nosuchlabel
reti c
`)
	require.Error(t, err)
	require.Contains(t, err.Error(), "unknown label")
}

func TestAssembleForwardJumpResolves(t *testing.T) {
	frag, err := assemble(t, `
c = immi 0
jt c L
reti c
L: one = immi 1
reti one
`)
	require.NoError(t, err)
	require.Equal(t, lir.RetInt, frag.Return)
}

func TestAssembleGuardOnlyFragmentClassifiesAsGuard(t *testing.T) {
	frag, err := assemble(t, `
c = immi 1
L = xt c
`)
	require.NoError(t, err)
	require.Equal(t, lir.RetGuard, frag.Return)

	n, ok := frag.SideExit("L")
	require.True(t, ok)
	require.True(t, n.Op.IsSideExit())
}

func TestAssembleBadArityOperand(t *testing.T) {
	_, err := assemble(t, "r = addi 1\n")
	require.Error(t, err)
}

func TestAssembleMissingEndOfStatement(t *testing.T) {
	_, err := assemble(t, "a = immi 1 2\n")
	require.Error(t, err)
}
