package vm

import "github.com/kristofer/cinder/pkg/value"

// invokeHost implements the host-callable half of the CALL opcode:
// invoke the C function directly, within an anchor-stack mark/truncate
// pair so any object it allocates and returns to the VM survives a
// collection triggered mid-call, without leaking anchors for objects it
// only used transiently.
//
// Unlike a script call, a host call never grows the call-frame stack:
// it runs to completion inline, so there is no frame left to pop on the
// way out and nothing for RET to resume. No frame is pushed for the
// call either (see DESIGN.md's resolved-questions ledger for why that's
// safe here): the argument window a host callable sees always sits
// inside the caller's own register window, which the caller's frame
// already roots for GC, so there is no live state a host-call frame
// would need to protect that isn't already protected.
func (vm *VM) invokeHost(callee value.Value, retReg, argc int) error {
	mark := vm.prog.AnchorMark()
	args := vm.stack[retReg+1 : retReg+1+argc]
	err := callee.CFn()(vm.prog, &vm.stack[retReg], args)
	vm.prog.AnchorTruncate(mark)
	if err != nil {
		return vm.failHost(err)
	}
	return nil
}
