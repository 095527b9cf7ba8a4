// Package asm implements a small text assembler for hand-authoring
// register-machine bytecode without going through a real compiler.
// There is no such compiler in this repo, by design — it exists
// purely as a convenience front end for tests, the CLI's `run`/`asm`
// subcommands, and anyone poking at the VM interactively. Production
// embedders are expected to hand the VM a bytecode.Builder (or a set
// of value.FuncObj values) produced by whatever compiler they bring.
//
// Assembly source is a sequence of function blocks:
//
//	func sum(nparams=2, nregs=5)
//	    ldc  r2, #0
//	    ldc  r3, #0
//	loop:
//	    cmplt 0, r2, r1, end
//	    getel r4, r0, r2
//	    add   r3, r3, r4
//	    add   r2, r2, #1
//	    jmp   loop
//	end:
//	    ret r3, 1
//	end
//
// Operands are either a register (r0, r1, ...) or an immediate constant
// (#3, #"a string"), interned into the function's constant pool the
// first time it's used and deduplicated by literal text thereafter
// (so #1 and #1.0 take separate slots). ldc takes only an immediate
// and encodes its plain pool index in RU. cmp*/test
// take their jump target as a trailing label operand rather than a
// separately-assembled jump word — the assembler emits both instruction
// words for you.
package asm

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/kristofer/cinder/pkg/bytecode"
)

// Error reports a problem with one line of source.
type Error struct {
	Line int
	Msg  string
}

func (e *Error) Error() string { return fmt.Sprintf("asm: line %d: %s", e.Line, e.Msg) }

// Assemble parses src and returns a populated bytecode.Builder, or the
// first Error encountered. Jump targets may appear before or after the
// label they name: every instruction that resolves a label defers that
// resolution to a patch closure run only after the whole function body
// has been scanned and every label recorded.
func Assemble(src string) (*bytecode.Builder, error) {
	lines := splitLines(src)

	b := bytecode.NewBuilder()
	if err := assemble(b, lines); err != nil {
		return nil, err
	}
	return b, nil
}

type sourceLine struct {
	n      int // 1-based line number, for error messages
	fields []string
}

// splitLines strips comments (";" to end of line) and blank lines, and
// splits each remaining line into whitespace/comma-separated fields
// with any trailing colon on the first field kept attached (so "loop:"
// and "end:" survive as a single field).
func splitLines(src string) []sourceLine {
	var out []sourceLine
	for i, raw := range strings.Split(src, "\n") {
		line := raw
		if idx := strings.IndexByte(line, ';'); idx >= 0 {
			line = line[:idx]
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		fields := tokenizeFields(line)
		if len(fields) == 0 {
			continue
		}
		out = append(out, sourceLine{n: i + 1, fields: fields})
	}
	return out
}

// tokenizeFields splits a line into fields on whitespace and commas,
// except inside a double-quoted string literal.
func tokenizeFields(line string) []string {
	var fields []string
	var cur strings.Builder
	inString := false
	flush := func() {
		if cur.Len() > 0 {
			fields = append(fields, cur.String())
			cur.Reset()
		}
	}
	for i := 0; i < len(line); i++ {
		c := line[i]
		switch {
		case c == '"':
			inString = !inString
			cur.WriteByte(c)
		case inString:
			cur.WriteByte(c)
		case c == ' ' || c == '\t' || c == ',':
			flush()
		default:
			cur.WriteByte(c)
		}
	}
	flush()
	return fields
}

// funcCtx tracks per-function assembly state: the builder's Func
// descriptor, the label table (populated as label lines are reached),
// and a cache of interned constants so repeated immediates share one
// pool slot.
type funcCtx struct {
	fn       *bytecode.Func
	labels   map[string]int
	constIdx map[string]int
}

func assemble(b *bytecode.Builder, lines []sourceLine) error {
	var cur *funcCtx
	var pendingPatches []func() error

	for _, ln := range lines {
		head := ln.fields[0]
		switch {
		case head == "func":
			fn, err := parseFuncHeader(b, ln)
			if err != nil {
				return err
			}
			cur = &funcCtx{fn: fn, labels: map[string]int{}, constIdx: map[string]int{}}
		case head == "end" && len(ln.fields) == 1:
			cur = nil
		case cur == nil:
			return &Error{ln.n, "instruction outside of a func block"}
		case strings.HasSuffix(head, ":") && len(ln.fields) == 1:
			cur.labels[strings.TrimSuffix(head, ":")] = b.NextPC()
		default:
			patch, err := emit(b, cur, ln)
			if err != nil {
				return err
			}
			if patch != nil {
				pendingPatches = append(pendingPatches, patch)
			}
		}
	}

	for _, patch := range pendingPatches {
		if err := patch(); err != nil {
			return err
		}
	}
	return nil
}

// parseFuncHeader parses `func NAME(nparams=N, nregs=M)` and registers
// the function with the builder.
func parseFuncHeader(b *bytecode.Builder, ln sourceLine) (*bytecode.Func, error) {
	if len(ln.fields) < 2 {
		return nil, &Error{ln.n, "func: missing name/params"}
	}
	// tokenizeFields split the header on its commas; rejoin the pieces.
	name, rest, ok := strings.Cut(strings.Join(ln.fields[1:], ","), "(")
	if !ok || !strings.HasSuffix(rest, ")") {
		return nil, &Error{ln.n, "func: expected NAME(nparams=N, nregs=M)"}
	}
	rest = strings.TrimSuffix(rest, ")")
	parts := strings.FieldsFunc(rest, func(r rune) bool { return r == ',' })
	nparams, nregs := -1, -1
	for _, p := range parts {
		key, val, ok := strings.Cut(strings.TrimSpace(p), "=")
		if !ok {
			return nil, &Error{ln.n, "func: expected key=value parameter"}
		}
		n, err := strconv.Atoi(strings.TrimSpace(val))
		if err != nil {
			return nil, &Error{ln.n, "func: " + err.Error()}
		}
		switch strings.TrimSpace(key) {
		case "nparams":
			nparams = n
		case "nregs":
			nregs = n
		default:
			return nil, &Error{ln.n, "func: unknown parameter " + key}
		}
	}
	if nparams < 0 || nregs < 0 {
		return nil, &Error{ln.n, "func: nparams and nregs are required"}
	}
	return b.AddFunc(name, nparams, nregs), nil
}

// emit assembles one instruction line, returning a patch closure when
// the instruction names a jump target (a label). The jump word is
// emitted as a placeholder; assemble runs every patch closure only
// after the whole source has been walked, so each closure resolves its
// label against the function's complete cur.labels table.
func emit(b *bytecode.Builder, cur *funcCtx, ln sourceLine) (func() error, error) {
	mnemonic := ln.fields[0]
	args := ln.fields[1:]

	reg := func(i int) (int, error) { return parseRegister(ln, args, i) }
	op := func(i int) (int, error) { return parseOperand(b, cur, ln, args[i]) }
	imm := func(i int) (int, error) { return parseImmediateInt(ln, args, i) }

	switch mnemonic {
	case "ldc":
		ra, err := reg(0)
		if err != nil {
			return nil, err
		}
		v, err := op(1)
		if err != nil {
			return nil, err
		}
		if bytecode.IsRegIndex(v) {
			return nil, &Error{ln.n, "ldc: expected #immediate constant"}
		}
		b.AddInstr(bytecode.InstrU(bytecode.OpLDC, ra, bytecode.ConstIndex(v)))

	case "ldnull":
		ra, err := reg(0)
		if err != nil {
			return nil, err
		}
		b.AddInstr(bytecode.Instr(bytecode.OpLDNULL, ra, 0, 0))

	case "mov", "neg", "not":
		ra, err := reg(0)
		if err != nil {
			return nil, err
		}
		rb, err := op(1)
		if err != nil {
			return nil, err
		}
		b.AddInstr(bytecode.Instr(mnemonicOp(mnemonic), ra, rb, 0))

	case "getel", "setel", "add", "sub", "mul", "div", "mod":
		ra, err := reg(0)
		if err != nil {
			return nil, err
		}
		rb, err := op(1)
		if err != nil {
			return nil, err
		}
		rc, err := op(2)
		if err != nil {
			return nil, err
		}
		b.AddInstr(bytecode.Instr(mnemonicOp(mnemonic), ra, rb, rc))

	case "call":
		ra, err := reg(0)
		if err != nil {
			return nil, err
		}
		argc, err := imm(1)
		if err != nil {
			return nil, err
		}
		b.AddInstr(bytecode.Instr(bytecode.OpCALL, ra, argc, 0))

	case "ret":
		ra, err := reg(0)
		if err != nil {
			return nil, err
		}
		hasVal, err := imm(1)
		if err != nil {
			return nil, err
		}
		b.AddInstr(bytecode.Instr(bytecode.OpRET, ra, hasVal, 0))

	case "jmp":
		if len(args) != 1 {
			return nil, &Error{ln.n, "jmp: expected one label"}
		}
		label := args[0]
		jmpPC := b.AddInstr(0)
		return func() error {
			target, ok := cur.labels[label]
			if !ok {
				return &Error{ln.n, "jmp: undefined label " + label}
			}
			b.PatchInstr(jmpPC, bytecode.InstrS(bytecode.OpJMP, 0, target-(jmpPC+1)))
			return nil
		}, nil

	case "test":
		ra, err := reg(0)
		if err != nil {
			return nil, err
		}
		invert, err := imm(1)
		if err != nil {
			return nil, err
		}
		if len(args) != 3 {
			return nil, &Error{ln.n, "test: expected RA, INVERT, LABEL"}
		}
		label := args[2]
		b.AddInstr(bytecode.Instr(bytecode.OpTEST, ra, invert, 0))
		jmpPC := b.AddInstr(0)
		return func() error { return patchJump(b, cur, ln, label, jmpPC) }, nil

	case "cmpeq", "cmplt", "cmple":
		invert, err := imm(0)
		if err != nil {
			return nil, err
		}
		rb, err := op(1)
		if err != nil {
			return nil, err
		}
		rc, err := op(2)
		if err != nil {
			return nil, err
		}
		if len(args) != 4 {
			return nil, &Error{ln.n, mnemonic + ": expected INVERT, B, C, LABEL"}
		}
		label := args[3]
		b.AddInstr(bytecode.Instr(mnemonicOp(mnemonic), invert, rb, rc))
		jmpPC := b.AddInstr(0)
		return func() error { return patchJump(b, cur, ln, label, jmpPC) }, nil

	default:
		return nil, &Error{ln.n, "unknown mnemonic " + mnemonic}
	}
	return nil, nil
}

func patchJump(b *bytecode.Builder, cur *funcCtx, ln sourceLine, label string, jmpPC int) error {
	target, ok := cur.labels[label]
	if !ok {
		return &Error{ln.n, "undefined label " + label}
	}
	b.PatchInstr(jmpPC, bytecode.InstrS(bytecode.OpJMP, 0, target-(jmpPC+1)))
	return nil
}

func mnemonicOp(m string) bytecode.Op {
	switch m {
	case "mov":
		return bytecode.OpMOV
	case "neg":
		return bytecode.OpNEG
	case "not":
		return bytecode.OpNOT
	case "getel":
		return bytecode.OpGETEL
	case "setel":
		return bytecode.OpSETEL
	case "add":
		return bytecode.OpADD
	case "sub":
		return bytecode.OpSUB
	case "mul":
		return bytecode.OpMUL
	case "div":
		return bytecode.OpDIV
	case "mod":
		return bytecode.OpMOD
	case "cmpeq":
		return bytecode.OpCMPEQ
	case "cmplt":
		return bytecode.OpCMPLT
	case "cmple":
		return bytecode.OpCMPLE
	default:
		panic("asm: mnemonicOp called with unmapped mnemonic " + m)
	}
}

func parseRegister(ln sourceLine, args []string, i int) (int, error) {
	if i >= len(args) {
		return 0, &Error{ln.n, "missing register operand"}
	}
	tok := args[i]
	if !strings.HasPrefix(tok, "r") {
		return 0, &Error{ln.n, "expected register, got " + tok}
	}
	n, err := strconv.Atoi(tok[1:])
	if err != nil {
		return 0, &Error{ln.n, "bad register " + tok}
	}
	return n, nil
}

func parseImmediateInt(ln sourceLine, args []string, i int) (int, error) {
	if i >= len(args) {
		return 0, &Error{ln.n, "missing integer operand"}
	}
	n, err := strconv.Atoi(args[i])
	if err != nil {
		return 0, &Error{ln.n, "bad integer " + args[i]}
	}
	return n, nil
}

// parseOperand parses a register-or-constant operand: "rN" addresses a
// register directly; "#VALUE" interns VALUE (a float or a quoted
// string) into the current function's constant pool, deduplicating
// against a prior use of the same literal text, and returns its
// reg-or-const encoded index.
func parseOperand(b *bytecode.Builder, cur *funcCtx, ln sourceLine, tok string) (int, error) {
	if strings.HasPrefix(tok, "r") {
		n, err := strconv.Atoi(tok[1:])
		if err != nil {
			return 0, &Error{ln.n, "bad register " + tok}
		}
		return n, nil
	}
	if !strings.HasPrefix(tok, "#") {
		return 0, &Error{ln.n, "expected register or #immediate, got " + tok}
	}
	lit := tok[1:]
	if idx, ok := cur.constIdx[lit]; ok {
		return bytecode.MaxFuncRegs + 1 + idx, nil
	}
	var idx int
	if strings.HasPrefix(lit, `"`) && strings.HasSuffix(lit, `"`) && len(lit) >= 2 {
		idx = b.AddConstString(cur.fn, lit[1:len(lit)-1])
	} else {
		n, err := strconv.ParseFloat(lit, 64)
		if err != nil {
			return 0, &Error{ln.n, "bad constant " + tok}
		}
		idx = b.AddConstNumber(cur.fn, n)
	}
	cur.constIdx[lit] = idx
	return bytecode.MaxFuncRegs + 1 + idx, nil
}
