// Package registry tracks every compiled fragment by name and carries
// out the ".patch src.label -> dest" directive (spec.md §4.7): finding
// the named guard's side exit and asking the native emitter to
// rewrite its trampoline to jump into another fragment instead of
// falling through to the default bail-out stub.
package registry

import (
	"context"

	"github.com/gundermanc/nanojit/src/nanojit/lir"
	"github.com/gundermanc/nanojit/src/nanojit/nativeemit"
	"tlog.app/go/errors"
	"tlog.app/go/loc"
	"tlog.app/go/tlog"
)

// Registry is a flat name -> Fragment table scoped to one compilation
// run; the driver registers each fragment as its ".end" directive
// closes it, and consults the registry for every ".patch" that
// follows.
type Registry struct {
	frags   map[string]*lir.Fragment
	emitter nativeemit.Emitter
	code    *nativeemit.CodeArena
}

// New returns an empty Registry bound to the emitter and code arena
// that compiled (and will patch) every fragment it tracks.
func New(emitter nativeemit.Emitter, code *nativeemit.CodeArena) *Registry {
	return &Registry{
		frags:   make(map[string]*lir.Fragment),
		emitter: emitter,
		code:    code,
	}
}

// Register records frag under its own name. A duplicate name is a
// fatal configuration error — two fragments claiming the same name
// would make every subsequent ".patch" ambiguous.
func (r *Registry) Register(frag *lir.Fragment) error {
	if _, dup := r.frags[frag.Name]; dup {
		return errors.New("registry: duplicate fragment name %q", frag.Name)
	}
	r.frags[frag.Name] = frag
	return nil
}

// Lookup resolves a fragment by name.
func (r *Registry) Lookup(name string) (*lir.Fragment, bool) {
	f, ok := r.frags[name]
	return f, ok
}

// Patch implements "src.label -> dest": it resolves both fragment
// names and the side-exit node the label was bound to within src,
// then delegates the trampoline rewrite to the emitter, since only
// the emitter knows the machine encoding a trampoline takes on the
// target architecture.
func (r *Registry) Patch(srcName, label, destName string) error {
	tr, _ := tlog.SpawnFromContextAndWrap(context.Background(), "registry: patch")

	src, ok := r.frags[srcName]
	if !ok {
		return errors.New("registry: patch source fragment %q not found", srcName)
	}
	dest, ok := r.frags[destName]
	if !ok {
		return errors.New("registry: patch destination fragment %q not found", destName)
	}

	node, ok := src.SideExit(label)
	if !ok {
		return errors.New("registry: fragment %q has no guard label %q", srcName, label)
	}
	if node.Guard == nil || node.Guard.Exit == nil {
		return errors.New("registry: label %q in fragment %q is not a side exit", label, srcName)
	}

	if err := r.emitter.Patch(r.code, node.Guard.Exit, dest); err != nil {
		return errors.Wrap(err, "registry: patch %s.%s -> %s", srcName, label, destName)
	}

	node.Guard.Exit.Target = dest

	tr.Printw("patched guard", "src", srcName, "label", label, "dest", destName, "from", loc.Caller(0))

	return nil
}
