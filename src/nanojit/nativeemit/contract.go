// Package nativeemit defines the native-emitter contract (spec.md
// §4.6) and a concrete amd64 System V reference backend in its amd64
// subpackage.
package nativeemit

import "github.com/gundermanc/nanojit/src/nanojit/lir"

// Status is the native emitter's error-status result. None means
// success; everything else means the fragment was not compiled and
// the driver should abort and report it.
type Status uint8

const (
	StatusNone Status = iota
	StatusBranchTooFar
	StatusStackFull
	StatusUnknownBranch

	// StatusUnsupportedOpcode is this repository's addition to the
	// three spec-mandated statuses: the amd64 reference backend
	// covers a deliberately bounded opcode subset (SPEC_FULL.md
	// §6.6), and reports this instead of pretending every opcode
	// has a target encoding.
	StatusUnsupportedOpcode
)

func (s Status) String() string {
	switch s {
	case StatusNone:
		return "none"
	case StatusBranchTooFar:
		return "branch too far"
	case StatusStackFull:
		return "stack full"
	case StatusUnknownBranch:
		return "unknown branch"
	case StatusUnsupportedOpcode:
		return "unsupported opcode for target"
	default:
		return "status?"
	}
}

// Result is what a successful (or partially successful) Emit call
// reports: the fragment's entry address and a status. Entry is only
// meaningful when Status is StatusNone.
type Result struct {
	Entry  uintptr
	Status Status
}

// Emitter consumes a fully assembled fragment and produces a
// contiguous executable region plus an entry point, or a non-None
// status. Implementations decide their own instruction-selection and
// register-assignment strategy; the contract only constrains the
// observable result (spec.md §4.6, §9 "Non-goals").
type Emitter interface {
	Emit(frag *lir.Fragment, code *CodeArena) (Result, error)

	// Patch rewrites the trampoline at exit so a triggered guard
	// falls through to target's entry instead of the default
	// bail-out stub (spec.md §4.7). It is the emitter's job because
	// only it knows the trampoline's machine encoding; code is the
	// arena the trampoline lives in, so Patch can flip it briefly
	// back to writable and reseal it afterward.
	Patch(code *CodeArena, exit *lir.SideExit, target *lir.Fragment) error
}
