package program

import "github.com/kristofer/cinder/pkg/value"

// makeObject prepends obj to the program's object list. Every allocator
// in this file funnels through here so the list's O(1)-insert-at-head
// invariant has exactly one implementation.
func (p *Program) makeObject(obj value.Object) {
	value.SetNext(obj, p.objects)
	p.objects = obj
}

// MakeArray allocates an empty array (size 0, cap 0) and links it into
// the object list.
func (p *Program) MakeArray() *value.ArrayObj {
	arr := value.NewArrayObj()
	p.makeObject(arr)
	return arr
}

// MakeFunc allocates an empty function descriptor and links it into the
// object list. LoadBuilder fills in Code/Consts/NParams/NRegs
// afterwards.
func (p *Program) MakeFunc() *value.FuncObj {
	fn := value.NewFuncObj()
	p.makeObject(fn)
	return fn
}

// MakeString allocates a string object from str, including a trailing
// NUL byte — matching the original C core's fh_make_string, which
// computes its allocation size as strlen(str)+1. MakeString
// NUL-terminates; MakeStringN does not.
func (p *Program) MakeString(str string) *value.StringObj {
	return p.MakeStringN(append([]byte(str), 0))
}

// MakeStringN allocates a string object holding exactly data (no
// implicit trailing NUL is added or assumed). Callers that need the
// IsTrue "empty string is falsy" behavior must ensure the bytes they
// pass either are non-empty or start with a NUL themselves; the truly
// empty string constructed this way is truthy, since IsTrue only reads
// a first byte that, here, doesn't exist.
func (p *Program) MakeStringN(data []byte) *value.StringObj {
	cp := make([]byte, len(data))
	copy(cp, data)
	s := value.NewStringObj(cp)
	p.makeObject(s)
	return s
}

// GrowArray extends arr's size by n. On failure
// (overflow or allocation error) it records a program error and leaves
// arr unchanged.
func (p *Program) GrowArray(arr *value.ArrayObj, n int) error {
	if err := arr.Grow(n); err != nil {
		p.SetErrorCause(err, "out of memory")
		return err
	}
	return nil
}

// GetArrayItem returns a bounds-checked borrow of v's i'th element. It
// returns (Value{}, false) if v is not an array or i is out of range —
// the Go analogue of the C core returning NULL for both cases.
func GetArrayItem(v value.Value, i int) (value.Value, bool) {
	arr, ok := v.AsArray()
	if !ok {
		return value.Value{}, false
	}
	return arr.Get(i)
}

// ---- host-facing constructors (C interface functions, spec 4.B) ----
//
// These return a value.Value and, when that value carries a freshly
// allocated object, push it onto the anchor stack before returning —
// keeping it reachable through a collection cycle triggered while a host
// callable still holds onto it but hasn't stored it anywhere else
// reachable. On failure they record an error and return the program's
// null sentinel, leaving the anchor stack unchanged.

// NewNumber wraps n as a Value. Never fails.
func (p *Program) NewNumber(n float64) value.Value {
	return value.NumberVal(n)
}

// NewCFunc wraps a host callable as a Value. Never fails.
func (p *Program) NewCFunc(fn value.CFunc) value.Value {
	return value.CFuncVal(fn)
}

// NewString allocates a NUL-terminated string value and anchors it.
func (p *Program) NewString(str string) value.Value {
	return p.NewStringN(append([]byte(str), 0))
}

// NewStringN allocates a string value from data with no implicit NUL
// and anchors it.
func (p *Program) NewStringN(data []byte) value.Value {
	obj := p.MakeStringN(data)
	v := value.ObjectVal(value.String, obj)
	p.pushAnchor(v)
	return v
}

// NewArray allocates an empty array value and anchors it.
func (p *Program) NewArray() value.Value {
	obj := p.MakeArray()
	v := value.ObjectVal(value.Array, obj)
	p.pushAnchor(v)
	return v
}
