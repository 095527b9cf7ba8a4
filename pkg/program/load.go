package program

import (
	"github.com/kristofer/cinder/pkg/bytecode"
	"github.com/kristofer/cinder/pkg/value"
)

// LoadBuilder materializes every function a bytecode.Builder recorded
// into program-owned *value.FuncObj values: it slices the builder's
// shared instruction buffer into each function's own Code (the PC of
// the next function, or the buffer's end for the last one, bounds the
// slice), turns each Const into a runtime value.Value owned by this
// program, and registers the function by name so CallFunction can find
// it. This is the seam between an external compiler (or package asm)
// and the VM: nothing downstream of this call touches *bytecode.Builder
// again.
func (p *Program) LoadBuilder(b *bytecode.Builder) map[string]*value.FuncObj {
	instrs := b.Instructions()
	funcs := b.Funcs()
	loaded := make(map[string]*value.FuncObj, len(funcs))

	for i, f := range funcs {
		end := len(instrs)
		if i+1 < len(funcs) {
			end = funcs[i+1].PC
		}

		obj := p.MakeFunc()
		obj.Name = f.Name
		obj.Code = append([]uint32(nil), instrs[f.PC:end]...)
		obj.NParams = f.NParams
		obj.NRegs = f.NRegs

		consts := b.FuncConsts(f)
		obj.Consts = make([]value.Value, len(consts))
		for j, c := range consts {
			if c.IsString {
				obj.Consts[j] = value.ObjectVal(value.String, p.MakeString(c.Str))
			} else {
				obj.Consts[j] = value.NumberVal(c.Num)
			}
		}

		p.RegisterFunc(f.Name, obj)
		loaded[f.Name] = obj
	}

	return loaded
}
