// Package vm implements the register-based bytecode dispatch loop: the
// call/return protocol over a single growable value stack with
// relocatable register windows.
//
// The VM is oblivious to whatever produced its bytecode. It reads
// *value.FuncObj (code, consts, arity, register count) through the
// program/value packages and never imports package asm — package asm
// is one of several possible producers of that tuple, not a dependency
// of the VM itself.
package vm

import (
	"github.com/kristofer/cinder/pkg/program"
	"github.com/kristofer/cinder/pkg/value"
)

// frame is a single call-frame record: {func, base, ret_addr}, with
// ret_addr represented as a PC index into the caller's own Func.Code
// (or -1 for the entry frame, which has no caller and whose RET exits
// the VM).
type frame struct {
	fn             *value.FuncObj
	base           int // index of register 0 in vm.stack
	callerReturnPC int // PC to resume the caller at; -1 if there is no caller
}

// stackGrowBlock is the growth increment for the value stack.
const stackGrowBlock = 1024

// VM owns the value stack and the call-frame stack, and runs the
// dispatch loop against a Program's heap and host-callable registry.
type VM struct {
	prog   *program.Program
	stack  []value.Value
	frames []frame

	// curPC/curInstr record the instruction currently executing, so the
	// failure path (errors.go) can report exactly where a dispatch
	// error occurred without threading extra parameters through every
	// opcode handler.
	curPC    int
	curInstr uint32
}

// New returns a VM bound to prog with an initial 1024-slot value stack.
func New(prog *program.Program) *VM {
	return &VM{
		prog:  prog,
		stack: make([]value.Value, stackGrowBlock),
	}
}

// Program returns the VM's bound program container.
func (vm *VM) Program() *program.Program { return vm.prog }

// ensureStackSize grows vm.stack, if needed, so indices up to n-1 are
// valid, in 1024-element blocks. Growing may relocate the backing
// array — every caller that holds a slice or pointer into vm.stack
// across a call to this function must recompute it afterwards; this is
// the allocation-reload discipline every potentially-allocating opcode
// observes.
func (vm *VM) ensureStackSize(n int) {
	if len(vm.stack) >= n {
		return
	}
	newSize := (n + stackGrowBlock) / stackGrowBlock * stackGrowBlock
	newStack := make([]value.Value, newSize)
	copy(newStack, vm.stack)
	vm.stack = newStack
}

// CallFunction enters the VM from the host: look up the named function,
// clamp the argument count to its arity, lay out a fresh top-level call
// frame, run until that frame's RET exits the VM, and return the value
// left in the entry return slot.
func (vm *VM) CallFunction(name string, args []value.Value) (value.Value, error) {
	fn, ok := vm.prog.LookupFunc(name)
	if !ok {
		return vm.prog.NullValue(), vm.failLookup("function %q doesn't exist", name)
	}

	nArgs := len(args)
	if nArgs > fn.NParams {
		nArgs = fn.NParams
	}

	retReg := 0
	if len(vm.frames) > 0 {
		prev := vm.frames[len(vm.frames)-1]
		retReg = prev.base + prev.fn.NRegs
	}

	vm.ensureStackSize(retReg + 1 + fn.NRegs)
	vm.stack[retReg] = value.NullVal()
	copy(vm.stack[retReg+1:retReg+1+nArgs], args[:nArgs])
	for i := nArgs; i < fn.NRegs; i++ {
		vm.stack[retReg+1+i] = value.NullVal()
	}

	vm.frames = append(vm.frames, frame{fn: fn, base: retReg + 1, callerReturnPC: -1})

	if err := vm.run(0); err != nil {
		return vm.prog.NullValue(), err
	}
	return vm.stack[retReg], nil
}

// Collect runs a garbage-collection cycle, rooting it in every live
// register window currently on the call stack plus whatever Program
// itself contributes (anchor stack, registered functions). See spec
// section 9.
func (vm *VM) Collect() {
	windows := make([][]value.Value, 0, len(vm.frames))
	for _, f := range vm.frames {
		end := f.base + f.fn.NRegs
		if end > len(vm.stack) {
			end = len(vm.stack)
		}
		windows = append(windows, vm.stack[f.base:end])
	}
	vm.prog.Collect(windows...)
}
