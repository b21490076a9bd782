package registry

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/gundermanc/nanojit/src/nanojit/arena"
	"github.com/gundermanc/nanojit/src/nanojit/lir"
	"github.com/gundermanc/nanojit/src/nanojit/nativeemit"
	"github.com/gundermanc/nanojit/src/nanojit/pipeline"
)

// fakeEmitter lets the registry's Patch logic be tested without a real
// CodeArena or machine encoding: it just records the call.
type fakeEmitter struct {
	patched []string
	fail    error
}

func (f *fakeEmitter) Emit(frag *lir.Fragment, code *nativeemit.CodeArena) (nativeemit.Result, error) {
	return nativeemit.Result{}, nil
}

func (f *fakeEmitter) Patch(code *nativeemit.CodeArena, exit *lir.SideExit, target *lir.Fragment) error {
	if f.fail != nil {
		return f.fail
	}
	f.patched = append(f.patched, target.Name)
	return nil
}

func guardFragment(t *testing.T, name, label string) *lir.Fragment {
	t.Helper()

	a := arena.New()
	frag := lir.NewFragment(name)
	sink := pipeline.Build(a, frag, pipeline.Options{})

	cond, err := sink.Emit(lir.Emission{Op: lir.OpImmI, Type: lir.TI32, Imm: 1})
	require.NoError(t, err)

	exit := &lir.SideExit{Line: 1}
	n, err := sink.Emit(lir.Emission{
		Op:       lir.OpXt,
		Type:     lir.TVoid,
		Operands: []*lir.Node{cond},
		Guard:    &lir.GuardRecord{Exit: exit},
	})
	require.NoError(t, err)
	require.NoError(t, frag.BindLabel(label, n))

	return frag
}

func TestRegisterDuplicateName(t *testing.T) {
	r := New(&fakeEmitter{}, nil)

	require.NoError(t, r.Register(lir.NewFragment("a")))
	err := r.Register(lir.NewFragment("a"))
	require.Error(t, err)
	require.Contains(t, err.Error(), "duplicate fragment name")
}

func TestLookupMissing(t *testing.T) {
	r := New(&fakeEmitter{}, nil)
	_, ok := r.Lookup("nope")
	require.False(t, ok)
}

func TestPatchSucceeds(t *testing.T) {
	emitter := &fakeEmitter{}
	r := New(emitter, nil)

	src := guardFragment(t, "A", "L")
	dest := lir.NewFragment("B")

	require.NoError(t, r.Register(src))
	require.NoError(t, r.Register(dest))

	require.NoError(t, r.Patch("A", "L", "B"))
	require.Equal(t, []string{"B"}, emitter.patched)

	node, ok := src.SideExit("L")
	require.True(t, ok)
	require.Same(t, dest, node.Guard.Exit.Target)
}

func TestPatchUnknownSource(t *testing.T) {
	r := New(&fakeEmitter{}, nil)
	require.NoError(t, r.Register(lir.NewFragment("B")))

	err := r.Patch("A", "L", "B")
	require.Error(t, err)
	require.Contains(t, err.Error(), "source fragment")
}

func TestPatchUnknownDestination(t *testing.T) {
	r := New(&fakeEmitter{}, nil)
	require.NoError(t, r.Register(guardFragment(t, "A", "L")))

	err := r.Patch("A", "L", "B")
	require.Error(t, err)
	require.Contains(t, err.Error(), "destination fragment")
}

func TestPatchUnknownLabel(t *testing.T) {
	r := New(&fakeEmitter{}, nil)
	require.NoError(t, r.Register(guardFragment(t, "A", "L")))
	require.NoError(t, r.Register(lir.NewFragment("B")))

	err := r.Patch("A", "nosuch", "B")
	require.Error(t, err)
	require.Contains(t, err.Error(), "no guard label")
}

