package value

// Object is implemented by every heap-allocated type: StringObj, ArrayObj,
// FuncObj. Every object carries a header with the fields the program's
// object list and the collector need; Object exposes just enough of that
// header for package program to do list bookkeeping without knowing the
// concrete subtype.
type Object interface {
	// header returns the embedded Header so package-internal helpers can
	// thread the object onto the program's object list and mark it
	// during collection.
	header() *Header
}

// Header is embedded in every heap object. It mirrors the C core's
// object header: a next-pointer threading the object onto the program's
// singly-linked object list, a type tag, and a GC mark bit.
type Header struct {
	Next     Object // next object in the program's object list
	Type     Type
	GCMarked bool
}

func (h *Header) header() *Header { return h }

// Next returns the next object in the program's object list (nil at the
// tail). Exported so package program's sweep can walk the chain without
// a dependency cycle back into program internals.
func Next(o Object) Object { return o.header().Next }

// SetNext links o to the given next object. Used only by the allocator
// that prepends new objects to the program's object list.
func SetNext(o Object, next Object) { o.header().Next = next }

// ObjType returns the object's type tag.
func ObjType(o Object) Type { return o.header().Type }

// Marked reports whether the collector has already visited this object
// during the current cycle.
func Marked(o Object) bool { return o.header().GCMarked }

// SetMarked sets or clears the collector's mark bit.
func SetMarked(o Object, marked bool) { o.header().GCMarked = marked }

// StringObj is an immutable byte string. Once created its payload never
// changes; see MakeString vs MakeStringN in package program for the two
// different NUL-termination contracts.
type StringObj struct {
	Header
	data []byte
}

// Bytes returns the string's payload as a Go string. Logically immutable:
// callers must never mutate the returned bytes through unsafe means.
func (s *StringObj) Bytes() string { return string(s.data) }

// Len returns the number of stored bytes, including any trailing NUL a
// constructor chose to append.
func (s *StringObj) Len() int { return len(s.data) }

// NewStringObj is the low-level object constructor; package program calls
// this after deciding how many bytes to allocate (the NUL-termination
// policy lives there, not here).
func NewStringObj(data []byte) *StringObj {
	return &StringObj{Header: Header{Type: String}, data: data}
}

// ArrayCap rounds n up to the next multiple of 16, the array growth
// granularity used throughout allocation and resize.
func ArrayCap(n int) int {
	return (n + 16) / 16 * 16
}

// maxArraySize bounds Size/Cap the way the original C core's uint32_t
// size_t field does. Go's int is 64-bit on amd64/arm64, so a sum of two
// in-range values never wraps the way the C field would; Grow checks
// against this ceiling explicitly instead of relying on overflow to
// signal "too big", which also keeps a single huge n from reaching the
// allocator.
const maxArraySize = 1<<32 - 1

// ArrayObj is a growable, dynamically-typed array. Size is always <= cap;
// items[0:size) are initialized values, items[size:cap) is unused
// capacity. NextGrey is nil outside of a collection cycle; the
// collector in package program keeps its grey worklist in a separate
// slice and only ever clears this field.
type ArrayObj struct {
	Header
	Items    []Value
	Size     int
	Cap      int
	NextGrey Object
}

// NewArrayObj returns an empty array: size 0, cap 0, no backing storage.
func NewArrayObj() *ArrayObj {
	return &ArrayObj{Header: Header{Type: Array}}
}

// Get returns a borrowed copy of items[i] and true iff i is in [0, Size).
func (a *ArrayObj) Get(i int) (Value, bool) {
	if i < 0 || i >= a.Size {
		return Value{}, false
	}
	return a.Items[i], true
}

// Set overwrites items[i] and reports whether i was in bounds.
func (a *ArrayObj) Set(i int, v Value) bool {
	if i < 0 || i >= a.Size {
		return false
	}
	a.Items[i] = v
	return true
}

// Grow extends the array by n elements, reallocating in 16-element
// blocks when needed and initializing the new suffix to Null. It reports
// an error if the new size would wrap a 64-bit int or exceed
// maxArraySize (the original's uint32_t ceiling); on failure the array
// is left unchanged.
func (a *ArrayObj) Grow(n int) error {
	if n < 0 {
		return errOutOfRange
	}
	newSize := a.Size + n
	if newSize < a.Size || newSize > maxArraySize {
		return errOverflow
	}
	if newSize > a.Cap {
		newCap := ArrayCap(newSize)
		newItems := make([]Value, newCap)
		copy(newItems, a.Items[:a.Size])
		a.Items = newItems
		a.Cap = newCap
	}
	for i := a.Size; i < newSize; i++ {
		a.Items[i] = NullVal()
	}
	a.Size = newSize
	return nil
}

// FuncObj is a script-defined function: an immutable constant pool and
// instruction buffer (handed to us finalized by the bytecode builder),
// plus its arity and register-frame size. Code and Consts never change
// after the builder finalizes the function.
type FuncObj struct {
	Header
	Name     string
	Code     []uint32
	Consts   []Value
	NParams  int
	NRegs    int
	NextGrey Object
}

// NewFuncObj returns an empty function descriptor; Program.LoadBuilder
// fills Code/Consts/NParams/NRegs from a bytecode.Builder.
func NewFuncObj() *FuncObj {
	return &FuncObj{Header: Header{Type: Func}}
}
