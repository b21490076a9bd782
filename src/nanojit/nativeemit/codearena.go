package nativeemit

import (
	"unsafe"

	"golang.org/x/sys/unix"
	"tlog.app/go/errors"
)

// CodeArena is a bump allocator over a single mmap'd region, following
// arena.Arena's shape but for executable pages instead of plain
// memory: a region is writable until Seal converts it to executable
// exactly once, after which no further code may be appended to it
// (spec.md §5 "write xor execute").
type CodeArena struct {
	mem   []byte
	off   int
	sealed bool
}

const codeArenaSize = 1 << 20 // 1 MiB, generous for the reference backend's output.

// NewCodeArena mmaps a fresh read/write region, growable only by
// allocating a new CodeArena — there is no realloc, matching the
// single-shot lifecycle §5 describes for a compilation run.
func NewCodeArena() (*CodeArena, error) {
	mem, err := unix.Mmap(-1, 0, codeArenaSize, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANONYMOUS)
	if err != nil {
		return nil, errors.Wrap(err, "nativeemit: mmap code arena")
	}

	return &CodeArena{mem: mem}, nil
}

// Reserve returns a slice of n writable bytes at a stable address and
// advances the bump offset. It panics if called after Seal, or if the
// arena is exhausted — a fragment too large for codeArenaSize is a
// configuration error, not a recoverable one, in this reference
// backend.
func (c *CodeArena) Reserve(n int) []byte {
	if c.sealed {
		panic("nativeemit: Reserve after Seal")
	}
	if c.off+n > len(c.mem) {
		panic("nativeemit: code arena exhausted")
	}

	b := c.mem[c.off : c.off+n : c.off+n]
	c.off += n
	return b
}

// Base returns the address of byte 0 of the arena, for computing
// entry points and relative displacements during encoding.
func (c *CodeArena) Base() uintptr {
	return uintptr(unsafe.Pointer(&c.mem[0]))
}

// Len reports how many bytes have been written so far.
func (c *CodeArena) Len() int { return c.off }

// Seal flips the region from read/write to read/execute. After Seal,
// every address handed out by Reserve is callable and immutable,
// except for the narrow Patch exception the registry uses to rewrite
// a guard's trampoline bytes (which briefly reopens write access).
func (c *CodeArena) Seal() error {
	if c.sealed {
		return nil
	}

	if err := unix.Mprotect(c.mem, unix.PROT_READ|unix.PROT_EXEC); err != nil {
		return errors.Wrap(err, "nativeemit: mprotect code arena executable")
	}

	c.sealed = true
	return nil
}

// Unseal briefly reopens write access so Patch can rewrite a
// trampoline's rel32, then the caller is expected to reseal via
// Reseal. Only the native emitter's Patch (reached through the
// registry) calls this.
func (c *CodeArena) Unseal() error {
	return errors.Wrap(
		unix.Mprotect(c.mem, unix.PROT_READ|unix.PROT_WRITE),
		"nativeemit: mprotect code arena writable",
	)
}

// Reseal restores execute access after Unseal.
func (c *CodeArena) Reseal() error {
	return errors.Wrap(
		unix.Mprotect(c.mem, unix.PROT_READ|unix.PROT_EXEC),
		"nativeemit: mprotect code arena executable",
	)
}

// Bytes exposes the underlying region for Patch's direct byte writes;
// callers must only write between Unseal and Reseal.
func (c *CodeArena) Bytes() []byte { return c.mem }
