package driver

import (
	"github.com/gundermanc/nanojit/src/nanojit/lir"
	"github.com/gundermanc/nanojit/src/nanojit/lirasm"
	"github.com/gundermanc/nanojit/src/nanojit/nativeemit"
	"github.com/gundermanc/nanojit/src/nanojit/pipeline"
	"github.com/gundermanc/nanojit/src/nanojit/randfrag"

	"tlog.app/go/errors"
	"tlog.app/go/tlog"
)

// CompileRandom builds and natively emits a fuzz fragment generated by
// randfrag.Generate instead of parsing source text, for spec.md §6's
// "--random N" flag. The fragment is registered under name exactly
// like one parsed from a file, so Execute and Registry.Patch can't
// tell the two apart.
func (d *Driver) CompileRandom(name string, n int, seed uint64) (*lir.Fragment, error) {
	frag := lir.NewFragment(name)

	popts := pipeline.Options{Optimize: d.opts.Optimize, Verbose: d.opts.Verbose}
	if d.opts.NoHWFloat {
		popts.SoftFloat = lirasm.SoftFloatRewriteTable()
	}
	sink := pipeline.Build(d.arena, frag, popts)

	if err := randfrag.Generate(sink, frag, n, seed); err != nil {
		return nil, errors.Wrap(err, "driver: random fragment %s", name)
	}

	result, err := d.emitter.Emit(frag, d.code)
	if err != nil {
		return nil, errors.Wrap(err, "driver: random fragment %s: native emit", name)
	}
	if result.Status != nativeemit.StatusNone {
		return nil, errors.New("driver: random fragment %s: native emit: %s", name, result.Status)
	}

	if err := d.reg.Register(frag); err != nil {
		return nil, errors.Wrap(err, "driver: random fragment %s", name)
	}
	d.names = append(d.names, name)

	tlog.Printw("random fragment compiled", "fragment", name, "entry", frag.Entry, "return", frag.Return)

	return frag, nil
}

// Seal flips the code arena from writable to executable. Compile calls
// this itself after a file's fragments are all emitted; a caller that
// only ever uses CompileRandom must call it directly before Execute,
// since CodeArena.Reserve panics on any write attempted afterward.
// Idempotent: sealing twice is a no-op.
func (d *Driver) Seal() error {
	return d.code.Seal()
}
