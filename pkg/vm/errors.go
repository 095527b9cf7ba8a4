// Package vm - failure path: recording an error on the bound Program and
// dumping diagnostic context for it, generalized from a source-line
// stack trace into a register-machine frame dump.
package vm

import (
	"github.com/davecgh/go-spew/spew"

	"github.com/kristofer/cinder/internal/vmlog"
	"github.com/kristofer/cinder/pkg/bytecode"
)

// kind classifies why dispatch stopped, purely for the diagnostic log —
// the program's error string (what the embedder actually sees via
// LastError) is set separately by each fail* call.
type kind string

const (
	kindType     kind = "type"
	kindBounds   kind = "bounds"
	kindHost     kind = "host"
	kindLookup   kind = "lookup"
	kindInternal kind = "internal"
)

// failType, failBounds, failInternal, failLookup record a formatted
// error on the program and dump the current frame before returning it.
// Each corresponds to a distinct error category for the diagnostic log.
func (vm *VM) failType(format string, args ...interface{}) error {
	return vm.fail(kindType, format, args...)
}

func (vm *VM) failBounds(format string, args ...interface{}) error {
	return vm.fail(kindBounds, format, args...)
}

func (vm *VM) failInternal(format string, args ...interface{}) error {
	return vm.fail(kindInternal, format, args...)
}

func (vm *VM) failLookup(format string, args ...interface{}) error {
	return vm.fail(kindLookup, format, args...)
}

func (vm *VM) fail(k kind, format string, args ...interface{}) error {
	vm.prog.SetError(format, args...)
	vm.dumpFailure(k)
	return vm.prog.Err()
}

// failHost handles a host callable returning a non-nil error. It is
// treated identically to a script-level failure, except there is no
// extra frame to unwind — a host call never pushes one in this
// implementation — so this only needs to ensure the program's error is
// set and dump the (unchanged) calling frame.
func (vm *VM) failHost(err error) error {
	if vm.prog.Err() == nil {
		vm.prog.SetErrorCause(err, "host function error")
	}
	vm.dumpFailure(kindHost)
	return vm.prog.Err()
}

// dumpFailure writes the active frame and offending instruction to the
// diagnostic channel, using go-spew to render the live register window
// so a human reading logs can see exactly what the dispatch loop was
// holding when it gave up.
func (vm *VM) dumpFailure(k kind) {
	event := vmlog.L().Error().
		Str("kind", string(k)).
		Int("pc", vm.curPC).
		Str("op", bytecode.DecodeOp(vm.curInstr).String())

	if len(vm.frames) > 0 {
		top := vm.frames[len(vm.frames)-1]
		end := top.base + top.fn.NRegs
		if end > len(vm.stack) {
			end = len(vm.stack)
		}
		event = event.
			Str("func", top.fn.Name).
			Str("registers", spew.Sdump(vm.stack[top.base:end]))
	}

	event.Msg("vm dispatch failed")
}
