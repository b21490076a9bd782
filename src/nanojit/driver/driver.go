// Package driver is the top-level compilation unit spec.md §4.8
// describes: it owns the general arena and the code arena, reads one
// input source, dispatches its ".begin"/".end"/".patch" directives (or
// treats the whole file as one implicit "main" fragment), drives each
// fragment through the tokenizer, assembler, pipeline, and native
// emitter, and can execute a compiled fragment's entry point the way
// spec.md §6's "--execute" flag requires.
package driver

import (
	"io"

	"github.com/gundermanc/nanojit/src/nanojit/arena"
	"github.com/gundermanc/nanojit/src/nanojit/lir"
	"github.com/gundermanc/nanojit/src/nanojit/lirasm"
	"github.com/gundermanc/nanojit/src/nanojit/nativeemit"
	"github.com/gundermanc/nanojit/src/nanojit/nativeemit/amd64"
	"github.com/gundermanc/nanojit/src/nanojit/pipeline"
	"github.com/gundermanc/nanojit/src/nanojit/registry"

	"tlog.app/go/errors"
	"tlog.app/go/tlog"
)

// NumParams is how many callee-saved parameter slots every fragment
// reserves during the "emit start + N params" step of spec.md §4.5
// step 1. Every end-to-end scenario in spec.md §8 is a zero-argument
// fragment; this reference driver still reserves a small, fixed pool
// so a fragment that does use "param" has somewhere to read from.
const NumParams = 4

// Options configures a Driver's compilation and execution behavior,
// covering the CLI surface of spec.md §6.
type Options struct {
	Optimize bool
	Verbose  io.Writer

	// NoHWFloat forces the soft-float filter into the pipeline even
	// though the amd64 backend has hardware FP, matching "--no-hw-float"
	// (SPEC_FULL.md §6.9, §11).
	NoHWFloat bool
}

// Driver owns the two arenas spec.md §5 describes (general + code) for
// the lifetime of one compilation run, plus the fragment registry that
// backs ".patch".
type Driver struct {
	opts Options

	arena   *arena.Arena
	code    *nativeemit.CodeArena
	emitter nativeemit.Emitter
	reg     *registry.Registry

	calls map[string]*lir.CallInfo

	patches []patchDirective
	names   []string // fragment names in compile order, for Fragments().
}

type patchDirective struct {
	src, label, dest string
}

// New allocates a fresh Driver: a code arena (mmap'd read/write, sealed
// only once every fragment has been compiled) and an amd64 reference
// backend bound to it through a Registry.
func New(opts Options) (*Driver, error) {
	code, err := nativeemit.NewCodeArena()
	if err != nil {
		return nil, errors.Wrap(err, "driver: new code arena")
	}

	emitter := amd64.New()

	return &Driver{
		opts:    opts,
		arena:   arena.New(),
		code:    code,
		emitter: emitter,
		reg:     registry.New(emitter, code),
		calls:   lirasm.BuiltinTable(),
	}, nil
}

// Compile reads src, compiles every fragment it names (the implicit
// single "main" fragment, or any number of ".begin"/".end" blocks with
// ".patch" directives interspersed), applies every patch once the code
// arena is sealed, and returns the fragment registry for lookup.
func (d *Driver) Compile(src []byte) (*registry.Registry, error) {
	tz := lirasm.NewTokenizer(src)

	first, err := tz.Peek()
	for err == nil && first.Kind == lirasm.KindNewline {
		tz.Next()
		first, err = tz.Peek()
	}
	if err != nil {
		return nil, err
	}

	if !isDirective(first) {
		if err := d.compileFragment(tz, "main"); err != nil {
			return nil, err
		}
	} else if err := d.compileDirectives(tz); err != nil {
		return nil, err
	}

	if err := d.code.Seal(); err != nil {
		return nil, errors.Wrap(err, "driver: seal code arena")
	}

	for _, p := range d.patches {
		if err := d.reg.Patch(p.src, p.label, p.dest); err != nil {
			return nil, errors.Wrap(err, "driver: patch %s.%s -> %s", p.src, p.label, p.dest)
		}
	}

	return d.reg, nil
}

func isDirective(tok lirasm.Token) bool {
	return tok.Kind == lirasm.KindName && (tok.Text == ".begin" || tok.Text == ".patch")
}

func (d *Driver) compileDirectives(tz *lirasm.Tokenizer) error {
	for {
		tok, err := tz.Peek()
		if err != nil {
			return err
		}

		switch {
		case tok.Kind == lirasm.KindEOF:
			return nil
		case tok.Kind == lirasm.KindNewline:
			tz.Next()
		case tok.Kind == lirasm.KindName && tok.Text == ".begin":
			tz.Next()
			name, err := tz.GetName()
			if err != nil {
				return err
			}
			if _, err := tz.Eat(lirasm.KindNewline, ""); err != nil {
				return err
			}
			if err := d.compileFragment(tz, name); err != nil {
				return err
			}
		case tok.Kind == lirasm.KindName && tok.Text == ".patch":
			tz.Next()
			if err := d.parsePatch(tz); err != nil {
				return err
			}
		default:
			return errors.New("driver: line %d: expected .begin or .patch, got %q", tok.Line, tok.Text)
		}
	}
}

// parsePatch reads "NAME.NAME -> NAME" and queues it; it is only
// applied once every fragment has a compiled entry (Compile seals the
// code arena and drains the queue after the directive loop finishes),
// since a ".patch" may textually precede the ".begin" of the fragment
// it names as a destination.
//
// "." is one of the tokenizer's identifier runes (token.go), so
// "src.label" lexes as a single NAME rather than NAME "." NAME; this
// splits it on the first dot instead of expecting three tokens.
func (d *Driver) parsePatch(tz *lirasm.Tokenizer) error {
	qualified, err := tz.GetName()
	if err != nil {
		return err
	}

	dot := -1
	for i := 0; i < len(qualified); i++ {
		if qualified[i] == '.' {
			dot = i
			break
		}
	}
	if dot < 0 {
		return errors.New("driver: line %d: expected src.label, got %q", tz.Line(), qualified)
	}
	src, label := qualified[:dot], qualified[dot+1:]

	if _, err := tz.Eat(lirasm.KindPunct, "->"); err != nil {
		return err
	}
	dest, err := tz.GetName()
	if err != nil {
		return err
	}
	if _, err := tz.Eat(lirasm.KindNewline, ""); err != nil {
		return err
	}

	d.patches = append(d.patches, patchDirective{src: src, label: label, dest: dest})
	return nil
}

// compileFragment runs one fragment's body (spec.md §4.5) through a
// fresh pipeline.Sink and lirasm.Assembler, emits it natively, and
// registers the result under name.
func (d *Driver) compileFragment(tz *lirasm.Tokenizer, name string) error {
	frag := lir.NewFragment(name)

	popts := pipeline.Options{
		Optimize: d.opts.Optimize,
		Verbose:  d.opts.Verbose,
	}
	if d.opts.NoHWFloat {
		popts.SoftFloat = lirasm.SoftFloatRewriteTable()
	}

	sink := pipeline.Build(d.arena, frag, popts)
	asm := lirasm.NewAssembler(sink, frag, tz, d.calls)

	if err := asm.Assemble(NumParams); err != nil {
		return errors.Wrap(err, "driver: fragment %s", name)
	}

	result, err := d.emitter.Emit(asm.Fragment(), d.code)
	if err != nil {
		return errors.Wrap(err, "driver: fragment %s: native emit", name)
	}
	if result.Status != nativeemit.StatusNone {
		return errors.New("driver: fragment %s: native emit: %s", name, result.Status)
	}

	if err := d.reg.Register(frag); err != nil {
		return errors.Wrap(err, "driver: fragment %s", name)
	}
	d.names = append(d.names, name)

	tlog.Printw("fragment compiled", "fragment", name, "entry", frag.Entry, "return", frag.Return)

	return nil
}

// Fragments returns every fragment name Compile registered, in the
// order they were compiled.
func (d *Driver) Fragments() []string { return append([]string(nil), d.names...) }

// Registry exposes the fragment registry for callers that want to
// Lookup or re-Patch after Compile returns.
func (d *Driver) Registry() *registry.Registry { return d.reg }

// DumpSRecords is intentionally inert: the teacher's commented-out
// S-record dumper never emitted and its page-termination rule was left
// "FIXME", so SPEC_FULL.md §11 resolves the open question as a no-op
// rather than resurrecting it.
func (d *Driver) DumpSRecords() ([]byte, error) { return nil, nil }
