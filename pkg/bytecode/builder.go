package bytecode

// Const is a compile-time constant as the builder sees it: a tagged
// variant of NUMBER or STRING, kept per-function until
// Program.LoadBuilder materializes it into a runtime value.Value owned
// by a program.
type Const struct {
	IsString bool
	Num      float64
	Str      string
}

// ConstNumber builds a numeric constant.
func ConstNumber(n float64) Const { return Const{Num: n} }

// ConstString builds a string constant. The builder duplicates the
// provided bytes (via Go's string value semantics) rather than sharing
// the compiler's buffer, so the compiler is free to reuse or discard
// its own buffer once emission is done.
func ConstString(s string) Const { return Const{IsString: true, Str: s} }

// Func is a function descriptor as recorded by the builder: its entry
// PC into the shared instruction buffer, parameter/register counts, and
// its own constant pool. The compiler (or assembler) fills these in as
// it emits code; the VM only ever reads them through read-only builder
// accessors.
type Func struct {
	Name    string
	PC      int
	NParams int
	NRegs   int
	consts  []Const
}

// Builder is the append-only bytecode buffer: one shared instruction
// stream, and one function-descriptor table where each function owns
// its own constant pool. It is produced by a compiler external to the
// VM (or, in this repo, by package asm) and only ever read by the VM
// through the accessors below.
type Builder struct {
	instrs []uint32
	funcs  []*Func
}

// NewBuilder returns an empty builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// AddInstr appends a single instruction word and returns its PC.
func (b *Builder) AddInstr(instr uint32) int {
	b.instrs = append(b.instrs, instr)
	return len(b.instrs) - 1
}

// PatchInstr overwrites an already-emitted instruction word — used by an
// assembler/compiler to back-patch forward jumps once the target PC is
// known.
func (b *Builder) PatchInstr(pc int, instr uint32) {
	b.instrs[pc] = instr
}

// NextPC returns the PC the next AddInstr call will use, i.e. the
// current length of the instruction buffer.
func (b *Builder) NextPC() int { return len(b.instrs) }

// AddFunc registers a new function descriptor starting at the builder's
// current instruction position and returns it so the caller can append
// constants and, once n_params/n_regs are known, fill them in.
func (b *Builder) AddFunc(name string, nParams, nRegs int) *Func {
	f := &Func{Name: name, PC: len(b.instrs), NParams: nParams, NRegs: nRegs}
	b.funcs = append(b.funcs, f)
	return f
}

// AddConstNumber appends a numeric constant to fn's pool and returns its
// index.
func (b *Builder) AddConstNumber(fn *Func, n float64) int {
	fn.consts = append(fn.consts, ConstNumber(n))
	return len(fn.consts) - 1
}

// AddConstString appends a string constant to fn's pool and returns its
// index. The original C core's equivalent (fh_add_bc_const_string)
// allocated one byte short of what it then copied. Go's string type
// makes that bug impossible to reproduce (there is no manual allocation
// to under-size), so this simply stores the full string.
func (b *Builder) AddConstString(fn *Func, s string) int {
	fn.consts = append(fn.consts, ConstString(s))
	return len(fn.consts) - 1
}

// Instructions returns a read-only view of the shared instruction
// buffer.
func (b *Builder) Instructions() []uint32 { return b.instrs }

// Funcs returns a read-only view of the function table.
func (b *Builder) Funcs() []*Func { return b.funcs }

// FuncConsts returns a read-only view of fn's constant pool.
func (b *Builder) FuncConsts(fn *Func) []Const { return fn.consts }
