package program

import (
	"github.com/kristofer/cinder/internal/vmlog"
	"github.com/kristofer/cinder/pkg/value"
)

// Collect runs one mark-sweep cycle over the program's object list.
// Roots are the live register windows of every frame the VM currently
// has on its call stack (passed
// in by the caller — package program has no notion of a call stack of
// its own), the anchor stack, and every function reachable through the
// program's name registry (whose constant pools must in turn stay
// alive). Container objects (arrays, functions) are pushed onto a
// transient grey worklist held in a local slice; their NextGrey field
// is not used to link that worklist, and is set to nil as each one is
// scanned.
func (p *Program) Collect(registerWindows ...[]value.Value) {
	var grey []value.Object

	markValue := func(v value.Value) {
		switch v.Type {
		case value.String:
			if obj, ok := v.Obj().(*value.StringObj); ok {
				value.SetMarked(obj, true)
			}
		case value.Array:
			if arr, ok := v.AsArray(); ok {
				grey = markContainer(arr, grey)
			}
		case value.Func:
			if fn, ok := v.AsFunc(); ok {
				grey = markContainer(fn, grey)
			}
		}
	}

	for _, win := range registerWindows {
		for _, v := range win {
			markValue(v)
		}
	}
	for _, v := range p.anchors {
		markValue(v)
	}
	for _, fn := range p.funcs {
		grey = markContainer(fn, grey)
	}

	for len(grey) > 0 {
		obj := grey[len(grey)-1]
		grey = grey[:len(grey)-1]

		switch o := obj.(type) {
		case *value.ArrayObj:
			o.NextGrey = nil
			for i := 0; i < o.Size; i++ {
				markValue(o.Items[i])
			}
		case *value.FuncObj:
			o.NextGrey = nil
			for _, c := range o.Consts {
				markValue(c)
			}
		}
	}

	p.sweep()
}

// markContainer marks obj if unmarked and, the first time, appends it
// to the grey worklist slice. Returns the (possibly extended) worklist.
func markContainer(obj value.Object, grey []value.Object) []value.Object {
	if value.Marked(obj) {
		return grey
	}
	value.SetMarked(obj, true)
	return append(grey, obj)
}

// sweep walks the object list once, keeping marked objects (and
// resetting their mark for the next cycle) and dropping unmarked ones.
func (p *Program) sweep() {
	var head, tail value.Object
	var kept, freed int
	for obj := p.objects; obj != nil; {
		next := value.Next(obj)
		if value.Marked(obj) {
			value.SetMarked(obj, false)
			value.SetNext(obj, nil)
			if head == nil {
				head = obj
			} else {
				value.SetNext(tail, obj)
			}
			tail = obj
			kept++
		} else {
			freed++
		}
		obj = next
	}
	p.objects = head
	vmlog.L().Debug().Int("kept", kept).Int("freed", freed).Msg("gc sweep")
}
