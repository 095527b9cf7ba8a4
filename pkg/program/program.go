// Package program implements the program container described in spec
// section 4.B: the heap of script-visible objects (as a singly-linked
// object list), the interned/registered host-callables accessible by
// name, the C-anchor stack that protects values returned to host code
// across a collection cycle, the null sentinel, and the program-wide
// error surface.
package program

import (
	"github.com/pkg/errors"

	"github.com/kristofer/cinder/internal/vmlog"
	"github.com/kristofer/cinder/pkg/value"
)

// Program owns every heap object a running script can reach, plus the
// bookkeeping the VM and host embedder need around it. A Program is a
// self-contained value: tests construct and discard them independently,
// and nothing here is process-wide state.
type Program struct {
	objects value.Object // head of the singly-linked object list

	anchors []value.Value // C-anchor stack (transient roots)

	funcs map[string]*value.FuncObj // name -> script function
	hosts map[string]value.Value    // name -> registered host callable

	err error // last error, wrapped with github.com/pkg/errors

	null value.Value // the NULL sentinel returned by failing constructors
}

// New returns an empty program with no objects, no registered functions,
// and no error set.
func New() *Program {
	return &Program{
		funcs: make(map[string]*value.FuncObj),
		hosts: make(map[string]value.Value),
		null:  value.NullVal(),
	}
}

// NullValue returns the program's null sentinel. Constructors that fail
// to allocate return this value after recording an error.
func (p *Program) NullValue() value.Value { return p.null }

// Teardown releases every object the program holds. The C core walks
// the object list calling per-type destructors; in Go there is no
// manual free, so teardown's job is to drop every reference so the
// runtime's collector can reclaim the objects, and to truncate the
// anchor stack. After Teardown, the object list is empty.
func (p *Program) Teardown() {
	p.objects = nil
	p.anchors = p.anchors[:0]
	p.funcs = make(map[string]*value.FuncObj)
	p.hosts = make(map[string]value.Value)
	vmlog.L().Debug().Msg("program torn down")
}

// ---- error surface ----

// SetError records a formatted error as the program's current error.
// Mirrors the C core's fh_set_error: the offending call site is
// responsible for invoking this (or SetErrorCause) before returning a
// failure indicator.
func (p *Program) SetError(format string, args ...interface{}) {
	p.err = errors.Errorf(format, args...)
}

// SetErrorCause records an error that wraps an underlying cause,
// preserving it for embedders that want to inspect the chain with
// errors.Cause/errors.Unwrap.
func (p *Program) SetErrorCause(cause error, format string, args ...interface{}) {
	p.err = errors.Wrapf(cause, format, args...)
}

// LastError returns the program's current error message, or "" if none
// is set — a plain-string accessor for embedders that inspect the error
// without needing a Go error value.
func (p *Program) LastError() string {
	if p.err == nil {
		return ""
	}
	return p.err.Error()
}

// Err returns the underlying wrapped error value, or nil. Provided
// alongside LastError for embedders that want a real error.
func (p *Program) Err() error { return p.err }

// ClearError resets the error state. Not part of the original C
// contract (which has no explicit clear), but convenient for embedders
// that reinitialize a program and reuse it — and for our own tests that
// run several independent scenarios against a shared Program.
func (p *Program) ClearError() { p.err = nil }

// ---- function registry ----

// RegisterFunc makes a script function callable by name via CallFunction.
// The function object itself must already be on the program's object
// list (i.e. created through MakeFunc); RegisterFunc only records the
// name -> object association.
func (p *Program) RegisterFunc(name string, fn *value.FuncObj) {
	p.funcs[name] = fn
}

// LookupFunc returns the named function and true, or (nil, false) if no
// function was registered under that name.
func (p *Program) LookupFunc(name string) (*value.FuncObj, bool) {
	fn, ok := p.funcs[name]
	return fn, ok
}

// ---- host callable registry ----

// RegisterHost makes a host-provided callable reachable by name, for
// embedders that want to bind a CFunc into a script's registers by
// looking it up rather than wiring it through some other side channel.
// The CLI's run/repl commands register pkg/stdlib here. The VM itself never consults
// this table — a CALL opcode only ever sees whatever value a register
// holds, however it got there.
func (p *Program) RegisterHost(name string, fn value.CFunc) {
	p.hosts[name] = p.NewCFunc(fn)
}

// LookupHost returns the named host callable and true, or the zero
// Value and false if nothing was registered under that name.
func (p *Program) LookupHost(name string) (value.Value, bool) {
	v, ok := p.hosts[name]
	return v, ok
}

// Hosts returns a read-only view of the name -> host-callable registry.
func (p *Program) Hosts() map[string]value.Value { return p.hosts }

// Funcs returns a read-only view of the name -> function registry, used
// by the collector to root every reachable function's constant pool.
func (p *Program) Funcs() map[string]*value.FuncObj { return p.funcs }

// ---- anchor stack ----

// AnchorMark returns the current size of the anchor stack. A host
// callable invocation records this on entry and truncates back to it on
// return, keeping any object created by the callable reachable only for
// its duration unless it was stored somewhere else reachable.
func (p *Program) AnchorMark() int { return len(p.anchors) }

// AnchorTruncate truncates the anchor stack back to mark, releasing the
// anchors (not the objects themselves, which may still be reachable
// through other means) above it.
func (p *Program) AnchorTruncate(mark int) {
	p.anchors = p.anchors[:mark]
}

func (p *Program) pushAnchor(v value.Value) {
	p.anchors = append(p.anchors, v)
}

// Anchors returns a read-only view of the anchor stack, used by the
// collector as a root set.
func (p *Program) Anchors() []value.Value { return p.anchors }
