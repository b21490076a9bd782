package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/gundermanc/nanojit/src/nanojit/driver"

	"nikand.dev/go/cli"
	"tlog.app/go/errors"
	"tlog.app/go/tlog"
)

// Build-query facts for the one backend this reference driver targets
// (spec.md §6's "--show-arch"/"--show-word-size"/"--show-endianness"/
// "--show-float"): amd64, 64-bit, little-endian, hardware floating
// point.
const (
	targetArch     = "amd64"
	targetWordSize = 64
	targetEndian   = "little"
	targetFloat    = "hardware"
)

func main() {
	app := &cli.Command{
		Name:        "lirasm",
		Description: "lirasm assembles and runs textual LIR fragments against the nanojit reference backend",
		Action:      runAct,
		Args:        cli.Args{},
	}

	cli.RunAndExit(app, os.Args, os.Environ())
}

func runAct(c *cli.Command) (err error) {
	ctx := context.Background()
	ctx = tlog.ContextWithSpan(ctx, tlog.Root())
	tr, _ := tlog.SpawnFromContextAndWrap(ctx, "lirasm: run")

	fs := flag.NewFlagSet("lirasm", flag.ContinueOnError)

	execute := fs.Bool("execute", false, "invoke every compiled fragment's entry point")
	verbose := fs.Bool("v", false, "trace the writer pipeline to stderr")
	fs.BoolVar(verbose, "verbose", false, "trace the writer pipeline to stderr")
	optimize := fs.Bool("optimize", true, "run the fold/CSE optimizer passes (default)")
	noOptimize := fs.Bool("no-optimize", false, "disable the fold/CSE optimizer passes")
	noHWFloat := fs.Bool("no-hw-float", false, "force the soft-float filter even on a hardware-FP target")
	showArch := fs.Bool("show-arch", false, "print the target architecture and exit")
	showWordSize := fs.Bool("show-word-size", false, "print the target word size and exit")
	showEndianness := fs.Bool("show-endianness", false, "print the target endianness and exit")
	showFloat := fs.Bool("show-float", false, "print the target floating point model and exit")

	random := &optionalInt{dflt: 100}
	fs.Var(random, "random", "generate a fuzz fragment of approximately N IR instructions instead of reading a file (default 100)")

	stkskip := &optionalInt{dflt: 100}
	fs.Var(stkskip, "stkskip", "recurse ~N x 512 int32 frames before invoking the fragment (default 100)")

	if err := fs.Parse(c.Args); err != nil {
		return errors.Wrap(err, "lirasm: parse flags")
	}

	switch {
	case *showArch:
		fmt.Println(targetArch)
		return nil
	case *showWordSize:
		fmt.Println(targetWordSize)
		return nil
	case *showEndianness:
		fmt.Println(targetEndian)
		return nil
	case *showFloat:
		fmt.Println(targetFloat)
		return nil
	}

	args := fs.Args()
	if random.set && len(args) != 0 {
		return errors.New("lirasm: --random and a filename are mutually exclusive")
	}
	if !random.set && len(args) != 1 {
		return errors.New("lirasm: expected exactly one input filename")
	}

	opts := driver.Options{
		Optimize:  *optimize && !*noOptimize,
		NoHWFloat: *noHWFloat,
	}
	if *verbose {
		opts.Verbose = os.Stderr
	}

	d, err := driver.New(opts)
	if err != nil {
		return errors.Wrap(err, "lirasm: new driver")
	}

	if random.set {
		seed := uint64(time.Now().UnixNano())
		if _, err := d.CompileRandom("main", random.value, seed); err != nil {
			return errors.Wrap(err, "lirasm: random fragment")
		}
		if err := d.Seal(); err != nil {
			return errors.Wrap(err, "lirasm: seal code arena")
		}
	} else {
		src, err := os.ReadFile(args[0])
		if err != nil {
			return errors.Wrap(err, "lirasm: read %s", args[0])
		}
		if _, err := d.Compile(src); err != nil {
			return errors.Wrap(err, "lirasm: compile %s", args[0])
		}
	}

	if !*execute {
		return nil
	}

	reg := d.Registry()
	for _, name := range d.Fragments() {
		frag, ok := reg.Lookup(name)
		if !ok {
			continue
		}

		var out string
		if stkskip.set {
			out, err = driver.ExecuteWithStackSkip(frag, stkskip.value)
		} else {
			out, err = driver.Execute(frag)
		}
		if err != nil {
			return errors.Wrap(err, "lirasm: execute %s", name)
		}

		tr.Printw("executed fragment", "fragment", name)
		fmt.Println(out)
	}

	return nil
}

// optionalInt backs "--random [N]" and "--stkskip [N]": both flags may
// appear bare (take dflt) or with an explicit value, which the stdlib
// flag package's Value interface supports only through the same
// opt-in IsBoolFlag hook bool flags use to allow "-flag" with no "=value".
type optionalInt struct {
	set   bool
	value int
	dflt  int
}

func (o *optionalInt) String() string {
	if o == nil {
		return ""
	}
	return strconv.Itoa(o.value)
}

func (o *optionalInt) Set(s string) error {
	if s == "true" {
		o.value = o.dflt
	} else {
		n, err := strconv.Atoi(s)
		if err != nil {
			return err
		}
		o.value = n
	}
	o.set = true
	return nil
}

func (o *optionalInt) IsBoolFlag() bool { return true }
