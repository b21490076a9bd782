package arena

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAllocStable(t *testing.T) {
	a := New()

	p1 := a.Alloc(8, 8)
	p2 := a.Alloc(8, 8)

	require.NotSame(t, &p1[0], &p2[0])

	p1[0] = 0xAB
	require.Equal(t, byte(0xAB), p1[0], "allocation must stay stable across further Alloc calls")
}

func TestAllocAcrossChunks(t *testing.T) {
	a := New()

	first := a.Alloc(chunkSize-1, 1)
	second := a.Alloc(64, 1)

	first[0] = 1
	second[0] = 2

	require.Equal(t, byte(1), first[0])
	require.Equal(t, byte(2), second[0])

	allocs, bytes := a.Stats()
	require.Equal(t, 2, allocs)
	require.Equal(t, chunkSize-1+64, bytes)
}

func TestResetClearsStats(t *testing.T) {
	a := New()
	a.Alloc(16, 8)
	a.Reset()

	allocs, bytes := a.Stats()
	require.Equal(t, 0, allocs)
	require.Equal(t, 0, bytes)
}
