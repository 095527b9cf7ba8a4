// Package stdlib supplies a small set of example host functions — sqrt,
// floor, ceil, len, concat — built on the value.CFunc contract. The
// original C core ships no bundled host functions at all; every
// fh_c_func is something the embedder registers itself. These exist
// purely to give the host-callable boundary, and in particular the
// anchor-stack discipline around an allocating host call (concat),
// something concrete to exercise from the CLI and from tests.
package stdlib

import (
	"math"
	"strings"

	"github.com/pkg/errors"

	"github.com/kristofer/cinder/pkg/program"
	"github.com/kristofer/cinder/pkg/value"
)

// Register installs every function in this package into prog under its
// name, ready to be looked up and passed to the VM as an ordinary
// value.CFunc value.
func Register(prog *program.Program) {
	for name, fn := range funcs {
		prog.RegisterHost(name, fn)
	}
}

var funcs = map[string]value.CFunc{
	"sqrt":   sqrtFn,
	"floor":  floorFn,
	"ceil":   ceilFn,
	"len":    lenFn,
	"concat": concatFn,
}

func sqrtFn(progHandle interface{}, ret *value.Value, args []value.Value) error {
	n, err := requireNumber(progHandle, args, 0, "sqrt")
	if err != nil {
		return err
	}
	*ret = value.NumberVal(math.Sqrt(n))
	return nil
}

func floorFn(progHandle interface{}, ret *value.Value, args []value.Value) error {
	n, err := requireNumber(progHandle, args, 0, "floor")
	if err != nil {
		return err
	}
	*ret = value.NumberVal(math.Floor(n))
	return nil
}

func ceilFn(progHandle interface{}, ret *value.Value, args []value.Value) error {
	n, err := requireNumber(progHandle, args, 0, "ceil")
	if err != nil {
		return err
	}
	*ret = value.NumberVal(math.Ceil(n))
	return nil
}

// lenFn reports the length of a string or array argument: a string's
// length is measured like C's strlen (up to, not including, a trailing
// NUL a constructor such as MakeString may have appended), so the
// answer matches what the value "logically" contains rather than the
// storage quirk described on Program.MakeString; an array's length is
// its element count.
func lenFn(progHandle interface{}, ret *value.Value, args []value.Value) error {
	if len(args) < 1 {
		return errArgCount("len", 1, len(args))
	}
	switch {
	case args[0].Type == value.String:
		s, _ := args[0].AsString()
		*ret = value.NumberVal(float64(len(trimNUL(s))))
	case args[0].Type == value.Array:
		arr, _ := args[0].AsArray()
		*ret = value.NumberVal(float64(arr.Size))
	default:
		return errType("len: argument must be a string or array")
	}
	return nil
}

// concatFn allocates a new string holding the concatenation of its two
// string arguments. It is the one function in this package that
// allocates, demonstrating why the CALL opcode brackets every host call
// with an anchor mark/truncate pair: the string this returns is only
// reachable through *ret until the caller's next instruction stores it
// somewhere durable, and the program's collector must not reclaim it
// out from under that window.
func concatFn(progHandle interface{}, ret *value.Value, args []value.Value) error {
	if len(args) < 2 {
		return errArgCount("concat", 2, len(args))
	}
	a, ok := args[0].AsString()
	if !ok {
		return errType("concat: first argument must be a string")
	}
	b, ok := args[1].AsString()
	if !ok {
		return errType("concat: second argument must be a string")
	}
	prog, ok := progHandle.(*program.Program)
	if !ok {
		return errType("concat: host called outside of a program")
	}
	// A stored string's payload may carry its own trailing NUL (see
	// Program.MakeString); strip it from each operand before joining so
	// concatenation doesn't embed a stray zero byte in the middle of the
	// result, then let NewString add the usual single terminator back.
	*ret = prog.NewString(trimNUL(a) + trimNUL(b))
	return nil
}

func trimNUL(s string) string {
	if i := strings.IndexByte(s, 0); i >= 0 {
		return s[:i]
	}
	return s
}

func requireNumber(progHandle interface{}, args []value.Value, i int, name string) (float64, error) {
	if i >= len(args) {
		return 0, errArgCount(name, i+1, len(args))
	}
	if args[i].Type != value.Number {
		return 0, errType(name + ": argument must be a number")
	}
	return args[i].Num(), nil
}

func errArgCount(name string, want, got int) error {
	return errors.Errorf("%s: expected %d argument(s), got %d", name, want, got)
}

func errType(msg string) error {
	return errors.New(msg)
}
