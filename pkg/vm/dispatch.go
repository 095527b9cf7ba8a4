package vm

import (
	"math"

	"github.com/kristofer/cinder/pkg/bytecode"
	"github.com/kristofer/cinder/pkg/value"
)

// run drives the dispatch loop starting at pc in the VM's current top
// frame (the one CallFunction or a prior run call just pushed) until
// that frame, or some frame beneath it, RETs with no caller left — i.e.
// until the call-frame stack the loop was entered with is fully
// unwound.
//
// The outer loop recomputes regBase/constBase/code from the live top
// frame; the inner loop runs instructions until something invalidates
// those — a script CALL (new frame), a RET (popped frame), or a host
// CALL (no frame change, but ensureStackSize may have relocated
// vm.stack) — at which point it breaks back out to the outer loop. This
// is the Go rendering of the original C core's "goto
// changed_stack_frame" reload discipline: every opcode that can grow
// vm.stack or vm.frames forces a fresh read of the register window
// before the next instruction touches it.
func (vm *VM) run(pc int) error {
	for {
		top := &vm.frames[len(vm.frames)-1]
		fn := top.fn
		regBase := vm.stack[top.base:]
		constBase := fn.Consts
		code := fn.Code

		changedFrame := false
		for !changedFrame {
			instr := code[pc]
			vm.curPC = pc
			vm.curInstr = instr
			pc++

			op := bytecode.DecodeOp(instr)
			switch op {
			case bytecode.OpLDC:
				regBase[bytecode.DecodeRA(instr)] = constBase[bytecode.DecodeRU(instr)]

			case bytecode.OpLDNULL:
				regBase[bytecode.DecodeRA(instr)] = value.NullVal()

			case bytecode.OpMOV:
				regBase[bytecode.DecodeRA(instr)] = loadOperand(bytecode.DecodeRB(instr), regBase, constBase)

			case bytecode.OpGETEL:
				ra := bytecode.DecodeRA(instr)
				container := loadOperand(bytecode.DecodeRB(instr), regBase, constBase)
				index := loadOperand(bytecode.DecodeRC(instr), regBase, constBase)
				arr, ok := container.AsArray()
				if !ok {
					return vm.failType("invalid element access (non-container object)")
				}
				if index.Type != value.Number {
					return vm.failType("invalid array access (non-numeric index)")
				}
				v, ok := arr.Get(int(index.Num()))
				if !ok {
					return vm.failBounds("invalid array index")
				}
				regBase[ra] = v

			case bytecode.OpSETEL:
				ra := bytecode.DecodeRA(instr)
				arr, ok := regBase[ra].AsArray()
				if !ok {
					return vm.failType("invalid element access (non-container object)")
				}
				index := loadOperand(bytecode.DecodeRB(instr), regBase, constBase)
				if index.Type != value.Number {
					return vm.failType("invalid array access (non-numeric index)")
				}
				elem := loadOperand(bytecode.DecodeRC(instr), regBase, constBase)
				if !arr.Set(int(index.Num()), elem) {
					return vm.failBounds("invalid array index")
				}

			case bytecode.OpADD, bytecode.OpSUB, bytecode.OpMUL, bytecode.OpDIV, bytecode.OpMOD:
				ra := bytecode.DecodeRA(instr)
				l := loadOperand(bytecode.DecodeRB(instr), regBase, constBase)
				r := loadOperand(bytecode.DecodeRC(instr), regBase, constBase)
				if l.Type != value.Number || r.Type != value.Number {
					return vm.failType("arithmetic on non-numeric values")
				}
				regBase[ra] = value.NumberVal(arith(op, l.Num(), r.Num()))

			case bytecode.OpNEG:
				ra := bytecode.DecodeRA(instr)
				v := loadOperand(bytecode.DecodeRB(instr), regBase, constBase)
				if v.Type != value.Number {
					return vm.failType("arithmetic on non-numeric value")
				}
				regBase[ra] = value.NumberVal(-v.Num())

			case bytecode.OpNOT:
				ra := bytecode.DecodeRA(instr)
				v := loadOperand(bytecode.DecodeRB(instr), regBase, constBase)
				regBase[ra] = boolVal(!value.IsTrue(v))

			case bytecode.OpJMP:
				pc += bytecode.DecodeRS(instr)

			case bytecode.OpTEST:
				ra := bytecode.DecodeRA(instr)
				invert := bytecode.DecodeRB(instr)
				skip := boolToInt(value.IsTrue(regBase[ra])) ^ (invert & 1)
				if skip != 0 {
					pc++
				} else {
					pc += bytecode.DecodeRS(code[pc]) + 1
				}

			case bytecode.OpCMPEQ, bytecode.OpCMPLT, bytecode.OpCMPLE:
				invert := bytecode.DecodeRA(instr)
				l := loadOperand(bytecode.DecodeRB(instr), regBase, constBase)
				r := loadOperand(bytecode.DecodeRC(instr), regBase, constBase)
				result, err := compare(op, l, r)
				if err != nil {
					return vm.failType(err.Error())
				}
				skip := boolToInt(result) ^ (invert & 1)
				if skip != 0 {
					pc++
				} else {
					pc += bytecode.DecodeRS(code[pc]) + 1
				}

			case bytecode.OpCALL:
				callee := regBase[bytecode.DecodeRA(instr)]
				argc := bytecode.DecodeRB(instr)
				retReg := top.base + bytecode.DecodeRA(instr)

				switch callee.Type {
				case value.Func:
					calleeFn, _ := callee.AsFunc()
					vm.ensureStackSize(retReg + 1 + calleeFn.NRegs)
					vm.prepareScriptCall(retReg, argc, calleeFn)
					vm.frames = append(vm.frames, frame{fn: calleeFn, base: retReg + 1, callerReturnPC: pc})
					pc = 0
				case value.CFunc:
					vm.ensureStackSize(retReg + 1 + argc)
					if err := vm.invokeHost(callee, retReg, argc); err != nil {
						return err
					}
				default:
					return vm.failType("call to non-function value")
				}
				changedFrame = true

			case bytecode.OpRET:
				ra := bytecode.DecodeRA(instr)
				hasValue := bytecode.DecodeRB(instr) != 0
				cur := vm.frames[len(vm.frames)-1]
				if hasValue {
					vm.stack[cur.base-1] = regBase[ra]
				} else {
					vm.stack[cur.base-1] = value.NullVal()
				}
				retPC := cur.callerReturnPC
				vm.frames = vm.frames[:len(vm.frames)-1]
				if len(vm.frames) == 0 || retPC < 0 {
					return nil
				}
				pc = retPC
				changedFrame = true

			default:
				return vm.failInternal("unknown opcode")
			}
		}
	}
}

// loadOperand resolves a reg-or-const operand: an
// index <= MaxFuncRegs addresses a register in the current frame,
// otherwise it addresses a constant in the current function's pool.
func loadOperand(index int, regBase, constBase []value.Value) value.Value {
	if bytecode.IsRegIndex(index) {
		return regBase[index]
	}
	return constBase[bytecode.ConstIndex(index)]
}

func arith(op bytecode.Op, l, r float64) float64 {
	switch op {
	case bytecode.OpADD:
		return l + r
	case bytecode.OpSUB:
		return l - r
	case bytecode.OpMUL:
		return l * r
	case bytecode.OpDIV:
		return l / r
	case bytecode.OpMOD:
		return math.Mod(l, r)
	default:
		panic("vm: arith called with non-arithmetic opcode")
	}
}

func boolVal(b bool) value.Value {
	if b {
		return value.NumberVal(1)
	}
	return value.NumberVal(0)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// prepareScriptCall lays out a callee's register window at
// stack[retReg+1:], zero-filling any parameter the caller didn't supply
// and every non-parameter register. Extra arguments beyond fn.NParams
// are silently dropped: the unconditional zero-fill of [NParams, NRegs)
// overwrites whatever the caller laid down there.
func (vm *VM) prepareScriptCall(retReg, argc int, fn *value.FuncObj) {
	base := retReg + 1
	if argc > fn.NParams {
		argc = fn.NParams
	}
	for i := argc; i < fn.NParams; i++ {
		vm.stack[base+i] = value.NullVal()
	}
	for i := fn.NParams; i < fn.NRegs; i++ {
		vm.stack[base+i] = value.NullVal()
	}
}
