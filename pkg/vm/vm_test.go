package vm_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kristofer/cinder/pkg/bytecode"
	"github.com/kristofer/cinder/pkg/program"
	"github.com/kristofer/cinder/pkg/value"
	"github.com/kristofer/cinder/pkg/vm"
)

// creg returns the RB/RC-field encoding for a function's i'th constant.
// LDC's RU field takes the plain constant index instead.
func creg(i int) int { return bytecode.MaxFuncRegs + 1 + i }

func TestCallFunctionAdd(t *testing.T) {
	b := bytecode.NewBuilder()
	b.AddFunc("add", 2, 2)
	b.AddInstr(bytecode.Instr(bytecode.OpADD, 0, 0, 1))
	b.AddInstr(bytecode.Instr(bytecode.OpRET, 0, 1, 0))

	p := program.New()
	p.LoadBuilder(b)
	machine := vm.New(p)

	result, err := machine.CallFunction("add", []value.Value{value.NumberVal(3), value.NumberVal(4)})
	require.NoError(t, err)
	require.Equal(t, 7.0, result.Num())
}

// sum(arr, n) walks arr[0:n] with a while loop, exercising GETEL, CMP_LT,
// the two-word conditional-jump encoding, and a backward JMP.
func TestCallFunctionArraySum(t *testing.T) {
	b := bytecode.NewBuilder()
	fn := b.AddFunc("sum", 2, 5) // r0=arr r1=n r2=i r3=acc r4=tmp
	zero := b.AddConstNumber(fn, 0)
	one := b.AddConstNumber(fn, 1)

	b.AddInstr(bytecode.InstrU(bytecode.OpLDC, 2, zero)) // i = 0
	b.AddInstr(bytecode.InstrU(bytecode.OpLDC, 3, zero)) // acc = 0

	loopPC := b.NextPC()
	b.AddInstr(bytecode.Instr(bytecode.OpCMPLT, 0, 2, 1)) // i < n
	jmpEndPC := b.AddInstr(0)                              // patched below: taken when false
	b.AddInstr(bytecode.Instr(bytecode.OpGETEL, 4, 0, 2))  // tmp = arr[i]
	b.AddInstr(bytecode.Instr(bytecode.OpADD, 3, 3, 4))    // acc += tmp
	b.AddInstr(bytecode.Instr(bytecode.OpADD, 2, 2, creg(one))) // i += 1
	jmpBackPC := b.AddInstr(0)                             // patched below: always taken
	endPC := b.NextPC()
	b.AddInstr(bytecode.Instr(bytecode.OpRET, 3, 1, 0))

	b.PatchInstr(jmpEndPC, bytecode.InstrS(bytecode.OpJMP, 0, endPC-(jmpEndPC+1)))
	b.PatchInstr(jmpBackPC, bytecode.InstrS(bytecode.OpJMP, 0, loopPC-(jmpBackPC+1)))

	p := program.New()
	p.LoadBuilder(b)
	machine := vm.New(p)

	arrVal := p.NewArray()
	arr, _ := arrVal.AsArray()
	require.NoError(t, p.GrowArray(arr, 4))
	for i, n := range []float64{1, 2, 3, 4} {
		arr.Set(i, value.NumberVal(n))
	}

	result, err := machine.CallFunction("sum", []value.Value{arrVal, value.NumberVal(4)})
	require.NoError(t, err)
	require.Equal(t, 10.0, result.Num())
}

// abs(x): if x < 0 then -x else x, exercising the plain (uninverted)
// CMP_LT two-word jump together with NEG.
func TestCallFunctionAbs(t *testing.T) {
	b := bytecode.NewBuilder()
	fn := b.AddFunc("abs", 1, 1) // r0 = x
	zero := b.AddConstNumber(fn, 0)

	b.AddInstr(bytecode.Instr(bytecode.OpCMPLT, 0, 0, creg(zero))) // x < 0 ?
	jmpPosPC := b.AddInstr(0)                                      // taken when x >= 0
	b.AddInstr(bytecode.Instr(bytecode.OpNEG, 0, 0, 0))            // x = -x
	retPC := b.NextPC()
	b.AddInstr(bytecode.Instr(bytecode.OpRET, 0, 1, 0))

	b.PatchInstr(jmpPosPC, bytecode.InstrS(bytecode.OpJMP, 0, retPC-(jmpPosPC+1)))

	p := program.New()
	p.LoadBuilder(b)
	machine := vm.New(p)

	neg, err := machine.CallFunction("abs", []value.Value{value.NumberVal(-5)})
	require.NoError(t, err)
	require.Equal(t, 5.0, neg.Num())

	pos, err := machine.CallFunction("abs", []value.Value{value.NumberVal(5)})
	require.NoError(t, err)
	require.Equal(t, 5.0, pos.Num())
}

func TestCallFunctionArithmeticTypeError(t *testing.T) {
	b := bytecode.NewBuilder()
	fn := b.AddFunc("bad", 1, 2)
	strIdx := b.AddConstString(fn, "x")
	b.AddInstr(bytecode.Instr(bytecode.OpADD, 1, 0, creg(strIdx)))
	b.AddInstr(bytecode.Instr(bytecode.OpRET, 1, 1, 0))

	p := program.New()
	p.LoadBuilder(b)
	machine := vm.New(p)

	_, err := machine.CallFunction("bad", []value.Value{value.NumberVal(1)})
	require.Error(t, err)
	require.Contains(t, p.LastError(), "non-numeric")
}

// twice(x, double) calls a host-provided callable passed in at the call
// site, exercising the CALL opcode's C_FUNC branch and the anchor
// mark/truncate pair around it.
func TestCallFunctionHostCallDouble(t *testing.T) {
	b := bytecode.NewBuilder()
	b.AddFunc("twice", 2, 3)                             // r0=x r1=callee r2=argcopy
	b.AddInstr(bytecode.Instr(bytecode.OpMOV, 2, 0, 0))  // arg = x
	b.AddInstr(bytecode.Instr(bytecode.OpCALL, 1, 1, 0)) // reg[1](reg[2]) -> reg[1]
	b.AddInstr(bytecode.Instr(bytecode.OpRET, 1, 1, 0))

	p := program.New()
	p.LoadBuilder(b)

	double := p.NewCFunc(func(prog interface{}, ret *value.Value, args []value.Value) error {
		*ret = value.NumberVal(args[0].Num() * 2)
		return nil
	})

	machine := vm.New(p)
	result, err := machine.CallFunction("twice", []value.Value{value.NumberVal(21), double})
	require.NoError(t, err)
	require.Equal(t, 42.0, result.Num())
}

// callInc(x, incFn) calls a script function passed in as a value,
// exercising the CALL opcode's Func branch (a nested script call) from
// within another script call.
func TestCallFunctionScriptToScriptCall(t *testing.T) {
	b := bytecode.NewBuilder()

	inc := b.AddFunc("inc", 1, 2) // r0=x; the 1 comes from the constant pool
	one := b.AddConstNumber(inc, 1)
	b.AddInstr(bytecode.Instr(bytecode.OpADD, 0, 0, creg(one)))
	b.AddInstr(bytecode.Instr(bytecode.OpRET, 0, 1, 0))

	b.AddFunc("callInc", 2, 3)                           // r0=x r1=incFn r2=argcopy
	b.AddInstr(bytecode.Instr(bytecode.OpMOV, 2, 0, 0))  // arg = x
	b.AddInstr(bytecode.Instr(bytecode.OpCALL, 1, 1, 0)) // reg[1](reg[2]) -> reg[1]
	b.AddInstr(bytecode.Instr(bytecode.OpRET, 1, 1, 0))

	p := program.New()
	loaded := p.LoadBuilder(b)
	incFn := loaded["inc"]

	machine := vm.New(p)
	incVal := value.ObjectVal(value.Func, incFn)
	result, err := machine.CallFunction("callInc", []value.Value{value.NumberVal(9), incVal})
	require.NoError(t, err)
	require.Equal(t, 10.0, result.Num())
}

func TestCallFunctionUnknownFunction(t *testing.T) {
	p := program.New()
	machine := vm.New(p)
	_, err := machine.CallFunction("nope", nil)
	require.Error(t, err)
}

// Calling with more arguments than n_params silently drops the extras.
func TestCallFunctionExtraArgsDropped(t *testing.T) {
	b := bytecode.NewBuilder()
	b.AddFunc("id", 1, 1)
	b.AddInstr(bytecode.Instr(bytecode.OpRET, 0, 1, 0))

	p := program.New()
	p.LoadBuilder(b)
	machine := vm.New(p)

	result, err := machine.CallFunction("id", []value.Value{value.NumberVal(1), value.NumberVal(2), value.NumberVal(3)})
	require.NoError(t, err)
	require.Equal(t, 1.0, result.Num())
}

// Calling with fewer arguments than n_params zero-fills the rest with
// null, which then surfaces as an arithmetic type error here.
func TestCallFunctionMissingArgsZeroFilled(t *testing.T) {
	b := bytecode.NewBuilder()
	b.AddFunc("needsTwo", 2, 2)
	b.AddInstr(bytecode.Instr(bytecode.OpADD, 0, 0, 1))
	b.AddInstr(bytecode.Instr(bytecode.OpRET, 0, 1, 0))

	p := program.New()
	p.LoadBuilder(b)
	machine := vm.New(p)

	_, err := machine.CallFunction("needsTwo", []value.Value{value.NumberVal(5)})
	require.Error(t, err)
}

// countdownProgram builds a "countdown(n, self)" function: if n <= 0
// return n, otherwise tail-call self(n-1, self) and return its result.
// Shared by the shallow and deep recursion tests below.
func countdownProgram() (*bytecode.Builder, *bytecode.Func) {
	b := bytecode.NewBuilder()
	fn := b.AddFunc("countdown", 2, 4) // r0=n r1=self r2=argN r3=argSelf
	one := b.AddConstNumber(fn, 1)
	zero := b.AddConstNumber(fn, 0)

	b.AddInstr(bytecode.Instr(bytecode.OpCMPLE, 0, 0, creg(zero))) // n <= 0 ?
	jmpRecursePC := b.AddInstr(0)                                  // taken when n > 0
	b.AddInstr(bytecode.Instr(bytecode.OpRET, 0, 1, 0))            // return n (== 0)

	recursePC := b.NextPC()
	b.AddInstr(bytecode.Instr(bytecode.OpSUB, 2, 0, creg(one))) // argN = n - 1
	b.AddInstr(bytecode.Instr(bytecode.OpMOV, 3, 1, 0))         // argSelf = self
	b.AddInstr(bytecode.Instr(bytecode.OpCALL, 1, 2, 0))        // reg[1](reg[2],reg[3]) -> reg[1]
	b.AddInstr(bytecode.Instr(bytecode.OpRET, 1, 1, 0))

	b.PatchInstr(jmpRecursePC, bytecode.InstrS(bytecode.OpJMP, 0, recursePC-(jmpRecursePC+1)))
	return b, fn
}

// A chain of 200 nested script calls, each advancing the register
// window by two slots; it stays inside the initial 1024-slot stack, so
// stack growth is left to the 10k test below.
func TestCallFunctionDeepRecursion(t *testing.T) {
	b, _ := countdownProgram()

	p := program.New()
	loaded := p.LoadBuilder(b)
	countdown := loaded["countdown"]
	selfVal := value.ObjectVal(value.Func, countdown)

	machine := vm.New(p)
	result, err := machine.CallFunction("countdown", []value.Value{value.NumberVal(200), selfVal})
	require.NoError(t, err)
	require.Equal(t, 0.0, result.Num())
}

// A chain of 10k tail-positioned calls, each pushing its own call frame
// and growing the value stack across many relocations.
func TestCallFunctionDeepRecursion10k(t *testing.T) {
	b, _ := countdownProgram()

	p := program.New()
	loaded := p.LoadBuilder(b)
	countdown := loaded["countdown"]
	selfVal := value.ObjectVal(value.Func, countdown)

	machine := vm.New(p)
	result, err := machine.CallFunction("countdown", []value.Value{value.NumberVal(10000), selfVal})
	require.NoError(t, err)
	require.Equal(t, 0.0, result.Num())
}

// GETEL/SETEL boundary: index size-1 succeeds, index == size fails with
// a bounds error, matching the array's [0, Size) range exactly.
func TestGetElSetElBounds(t *testing.T) {
	tests := []struct {
		name  string
		op    bytecode.Op
		index float64
		ok    bool
	}{
		{"getel at size-1 succeeds", bytecode.OpGETEL, 2, true},
		{"getel at size fails", bytecode.OpGETEL, 3, false},
		{"setel at size-1 succeeds", bytecode.OpSETEL, 2, true},
		{"setel at size fails", bytecode.OpSETEL, 3, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := bytecode.NewBuilder()
			fn := b.AddFunc("f", 1, 3) // r0=arr r1=index r2=result
			idxConst := b.AddConstNumber(fn, tt.index)
			b.AddInstr(bytecode.InstrU(bytecode.OpLDC, 1, idxConst))
			if tt.op == bytecode.OpGETEL {
				b.AddInstr(bytecode.Instr(bytecode.OpGETEL, 2, 0, 1))
			} else {
				b.AddInstr(bytecode.Instr(bytecode.OpSETEL, 0, 1, 1)) // arr[index] = index
			}
			b.AddInstr(bytecode.Instr(bytecode.OpRET, 0, 0, 0))

			p := program.New()
			p.LoadBuilder(b)
			machine := vm.New(p)

			arrVal := p.NewArray()
			arr, _ := arrVal.AsArray()
			require.NoError(t, p.GrowArray(arr, 3))

			_, err := machine.CallFunction("f", []value.Value{arrVal})
			if tt.ok {
				require.NoError(t, err)
			} else {
				require.Error(t, err)
				require.Contains(t, p.LastError(), "invalid array index")
			}
		})
	}
}

// Calling a non-function, non-host value reports a type error rather
// than panicking.
func TestCallFunctionCallToNonCallableValue(t *testing.T) {
	b := bytecode.NewBuilder()
	b.AddFunc("callNumber", 1, 2) // r0=notAFunction r1=argcopy
	b.AddInstr(bytecode.Instr(bytecode.OpCALL, 0, 0, 0))
	b.AddInstr(bytecode.Instr(bytecode.OpRET, 0, 1, 0))

	p := program.New()
	p.LoadBuilder(b)
	machine := vm.New(p)

	_, err := machine.CallFunction("callNumber", []value.Value{value.NumberVal(5)})
	require.Error(t, err)
	require.Contains(t, p.LastError(), "call to non-function value")
}
