// Package lirasm implements the textual LIR front end: a tokenizer and
// a per-fragment assembler that feed the pipeline.Sink chain a stream
// of lir.Emission values.
package lirasm

import (
	"tlog.app/go/errors"
)

// Kind classifies a Token.
type Kind uint8

const (
	KindEOF Kind = iota
	KindName
	KindNumber
	KindPunct
	KindNewline
)

func (k Kind) String() string {
	switch k {
	case KindEOF:
		return "EOF"
	case KindName:
		return "NAME"
	case KindNumber:
		return "NUMBER"
	case KindPunct:
		return "PUNCT"
	case KindNewline:
		return "NEWLINE"
	default:
		return "kind?"
	}
}

// Token is one lexeme, with the source line it started on for
// diagnostics.
type Token struct {
	Kind Kind
	Text string
	Line int
}

// Tokenizer is a single pass over the input, emitted one token at a
// time by Next. It is ASCII-only by contract; any other byte is a
// fatal lex error. One token of lookahead is supported via Peek, which
// the assembler needs to disambiguate "label:" / "name =" / opcode at
// the start of a statement.
type Tokenizer struct {
	b    []byte
	i    int
	line int

	peeked    Token
	peekedErr error
	hasPeek   bool
}

// NewTokenizer returns a Tokenizer positioned at the start of b.
func NewTokenizer(b []byte) *Tokenizer {
	return &Tokenizer{b: b, line: 1}
}

// Peek returns the next token without consuming it.
func (t *Tokenizer) Peek() (Token, error) {
	if !t.hasPeek {
		t.peeked, t.peekedErr = t.next()
		t.hasPeek = true
	}
	return t.peeked, t.peekedErr
}

// Next returns the next token, skipping horizontal whitespace. It
// matches, in priority order: the two-char punctuation "->",
// identifier-like runs over [A-Za-z0-9_$.+-], single-char punctuation
// from ":,=[]()", and ";" or newline as NEWLINE — a fragment body is
// many statements on one logical line as often as one per line, and
// ";" is what separates them.
func (t *Tokenizer) Next() (Token, error) {
	if t.hasPeek {
		t.hasPeek = false
		return t.peeked, t.peekedErr
	}
	return t.next()
}

func (t *Tokenizer) next() (Token, error) {
	t.skipHSpace()

	if t.i >= len(t.b) {
		return Token{Kind: KindEOF, Line: t.line}, nil
	}

	line := t.line
	c := t.b[t.i]

	switch {
	case c == ';':
		t.i++
		return Token{Kind: KindNewline, Text: ";", Line: line}, nil
	case c == '\n':
		t.i++
		t.line++
		return Token{Kind: KindNewline, Text: "\n", Line: line}, nil
	case c == '-' && t.i+1 < len(t.b) && t.b[t.i+1] == '>':
		t.i += 2
		return Token{Kind: KindPunct, Text: "->", Line: line}, nil
	case isIdentStart(c):
		start := t.i
		for t.i < len(t.b) && isIdentRune(t.b[t.i]) {
			t.i++
		}
		text := string(t.b[start:t.i])
		return Token{Kind: classify(text), Text: text, Line: line}, nil
	case c == ':' || c == ',' || c == '=' || c == '[' || c == ']' || c == '(' || c == ')':
		t.i++
		return Token{Kind: KindPunct, Text: string(c), Line: line}, nil
	default:
		return Token{}, errors.New("lirasm: line %d: unrecognized character %q", line, c)
	}
}

// Eat consumes the next token and asserts its Kind; if exact is
// non-empty it also asserts the token's literal text.
func (t *Tokenizer) Eat(k Kind, exact string) (Token, error) {
	tok, err := t.Next()
	if err != nil {
		return Token{}, err
	}
	if tok.Kind != k {
		return Token{}, errors.New("lirasm: line %d: expected %s, got %s %q", tok.Line, k, tok.Kind, tok.Text)
	}
	if exact != "" && tok.Text != exact {
		return Token{}, errors.New("lirasm: line %d: expected %q, got %q", tok.Line, exact, tok.Text)
	}
	return tok, nil
}

// GetName consumes and returns a NAME token's text.
func (t *Tokenizer) GetName() (string, error) {
	tok, err := t.Eat(KindName, "")
	if err != nil {
		return "", err
	}
	return tok.Text, nil
}

// Line returns the tokenizer's current line, for error messages raised
// outside of Next/Eat.
func (t *Tokenizer) Line() int { return t.line }

func (t *Tokenizer) skipHSpace() {
	for t.i < len(t.b) {
		switch t.b[t.i] {
		case ' ', '\t', '\r':
			t.i++
			continue
		}
		break
	}
}

func isIdentStart(c byte) bool {
	return isIdentRune(c)
}

func isIdentRune(c byte) bool {
	switch {
	case c >= 'A' && c <= 'Z', c >= 'a' && c <= 'z', c >= '0' && c <= '9':
		return true
	case c == '_' || c == '$' || c == '.' || c == '+' || c == '-':
		return true
	default:
		return false
	}
}

// classify decides whether an identifier-like run is a NUMBER or a
// NAME: "0x"/"0X"-prefixed or digit-led (including a leading ".9"
// style literal) runs are NUMBER, everything else is NAME.
func classify(s string) Kind {
	if len(s) == 0 {
		return KindName
	}

	if len(s) > 1 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		return KindNumber
	}

	c := s[0]
	if c >= '0' && c <= '9' {
		return KindNumber
	}
	if c == '.' && len(s) > 1 && s[1] >= '0' && s[1] <= '9' {
		return KindNumber
	}

	return KindName
}
