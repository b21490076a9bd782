package lirasm

import (
	"math"
	"strconv"
	"strings"

	"tlog.app/go/errors"
)

// isLiteral reports whether tok could be a numeric literal operand: a
// NUMBER token, or a NAME token that is really a minus-led NUMBER
// (the tokenizer's identifier-like run swallows a leading "-" before
// classify ever sees it, since "-" is itself a valid identifier-rune).
func isLiteral(tok Token) bool {
	if tok.Kind == KindNumber {
		return true
	}
	return tok.Kind == KindName && strings.HasPrefix(tok.Text, "-") && len(tok.Text) > 1
}

// parseIntLiteral parses a decimal or 0x-prefixed hex integer literal,
// honoring a leading "-" the tokenizer folded into the run.
func parseIntLiteral(tok Token) (int64, error) {
	if !isLiteral(tok) {
		return 0, errors.New("lirasm: line %d: expected integer literal, got %q", tok.Line, tok.Text)
	}

	v, err := strconv.ParseInt(tok.Text, 0, 64)
	if err != nil {
		return 0, errors.Wrap(err, "lirasm: line %d: bad integer literal %q", tok.Line, tok.Text)
	}
	return v, nil
}

// parseFloatLiteral parses a floating-point literal, decimal or
// scientific notation.
func parseFloatLiteral(tok Token) (float64, error) {
	if !isLiteral(tok) {
		return 0, errors.New("lirasm: line %d: expected float literal, got %q", tok.Line, tok.Text)
	}

	v, err := strconv.ParseFloat(tok.Text, 64)
	if err != nil {
		return 0, errors.Wrap(err, "lirasm: line %d: bad float literal %q", tok.Line, tok.Text)
	}
	return v, nil
}

// floatBits packs v as the raw bit pattern an immf/immd node's Imm
// field stores, at the given width.
func floatBits(bits int, v float64) uint64 {
	if bits == 32 {
		return uint64(math.Float32bits(float32(v)))
	}
	return math.Float64bits(v)
}
