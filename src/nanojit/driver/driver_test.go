package driver

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func mustCompile(t *testing.T, src string, opts Options) *Driver {
	t.Helper()

	d, err := New(opts)
	require.NoError(t, err)

	_, err = d.Compile([]byte(src))
	require.NoError(t, err)

	return d
}

func TestIntegerAdd(t *testing.T) {
	src := `
a = immi 2
b = immi 3
r = addi a b
reti r
`
	d := mustCompile(t, src, Options{Optimize: true})

	frag, ok := d.Registry().Lookup("main")
	require.True(t, ok)

	out, err := Execute(frag)
	require.NoError(t, err)
	require.Equal(t, "Output is: 5", out)
}

func TestDoubleDivideByZero(t *testing.T) {
	src := `
a = immd 1.0
b = immd 0.0
r = divd a b
retd r
`
	d := mustCompile(t, src, Options{Optimize: true})

	frag, ok := d.Registry().Lookup("main")
	require.True(t, ok)

	out, err := Execute(frag)
	require.NoError(t, err)
	require.Equal(t, "Output is: INF", out)
}

func TestFloat4StoreLoadRoundTrip(t *testing.T) {
	src := `
q = allocp 16
f0 = immf 1.0
f1 = immf 2.0
f2 = immf 3.0
f3 = immf 4.0
stf f0 q 0
stf f1 q 4
stf f2 q 8
stf f3 q 12
v = ldf4 q 0
p = allocp 16
stf4 v p 0
w = ldf4 p 0
retf4 w
`
	d := mustCompile(t, src, Options{Optimize: true})

	frag, ok := d.Registry().Lookup("main")
	require.True(t, ok)

	out, err := Execute(frag)
	require.NoError(t, err)
	require.Equal(t, "Output is: 1,2,3,4", out)
}

func TestBranchAndLabel(t *testing.T) {
	src := `
a = immi 0
c = eqi a a
jt c L
reti a
L: one = immi 1
reti one
`
	d := mustCompile(t, src, Options{Optimize: true})

	frag, ok := d.Registry().Lookup("main")
	require.True(t, ok)

	out, err := Execute(frag)
	require.NoError(t, err)
	require.Equal(t, "Output is: 1", out)
}

func TestGuardOnlyFragmentDefaultBailout(t *testing.T) {
	src := `
cond = immi 1
L = xt cond
`
	d := mustCompile(t, src, Options{Optimize: true})

	frag, ok := d.Registry().Lookup("main")
	require.True(t, ok)
	require.Equal(t, "guard", frag.Return.String())

	out, err := Execute(frag)
	require.NoError(t, err)
	require.Equal(t, "Exited block on line: 3", out)
}

func TestPatchAcrossFragments(t *testing.T) {
	src := `
.begin A
cond = immi 1
L = xt cond
reti cond
.end
.begin B
v = immi 42
reti v
.end
.patch A.L -> B
`
	d := mustCompile(t, src, Options{Optimize: true})

	fragA, ok := d.Registry().Lookup("A")
	require.True(t, ok)

	out, err := Execute(fragA)
	require.NoError(t, err)
	require.Equal(t, "Output is: 42", out)
}
