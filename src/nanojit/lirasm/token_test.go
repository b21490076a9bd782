package lirasm

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func tokenTexts(t *testing.T, src string) []string {
	t.Helper()

	tz := NewTokenizer([]byte(src))
	var out []string
	for {
		tok, err := tz.Next()
		require.NoError(t, err)
		if tok.Kind == KindEOF {
			return out
		}
		out = append(out, tok.Text)
	}
}

func TestTokenizerSplitsNamesNumbersAndPunct(t *testing.T) {
	toks := tokenTexts(t, "a = addi x1 0x10")
	require.Equal(t, []string{"a", "=", "addi", "x1", "0x10"}, toks)
}

func TestTokenizerSemicolonIsNewline(t *testing.T) {
	tz := NewTokenizer([]byte("a;b"))

	tok, err := tz.Next()
	require.NoError(t, err)
	require.Equal(t, KindName, tok.Kind)

	tok, err = tz.Next()
	require.NoError(t, err)
	require.Equal(t, KindNewline, tok.Kind)

	tok, err = tz.Next()
	require.NoError(t, err)
	require.Equal(t, KindName, tok.Kind)
	require.Equal(t, "b", tok.Text)
}

func TestTokenizerDotNameForPatch(t *testing.T) {
	toks := tokenTexts(t, "A.L -> B")
	require.Equal(t, []string{"A.L", "->", "B"}, toks)
}

func TestTokenizerPeekDoesNotConsume(t *testing.T) {
	tz := NewTokenizer([]byte("foo bar"))

	p1, err := tz.Peek()
	require.NoError(t, err)
	p2, err := tz.Peek()
	require.NoError(t, err)
	require.Equal(t, p1, p2)

	n, err := tz.Next()
	require.NoError(t, err)
	require.Equal(t, p1, n)
}

func TestTokenizerRejectsUnknownByte(t *testing.T) {
	tz := NewTokenizer([]byte("a @ b"))

	_, err := tz.Next()
	require.NoError(t, err)

	_, err = tz.Next()
	require.Error(t, err)
}

func TestTokenizerLineTracking(t *testing.T) {
	tz := NewTokenizer([]byte("a\nb\nc"))

	tok, err := tz.Next()
	require.NoError(t, err)
	require.Equal(t, 1, tok.Line)

	_, err = tz.Next()
	require.NoError(t, err)

	tok, err = tz.Next()
	require.NoError(t, err)
	require.Equal(t, 2, tok.Line)
}
