// Package refvm is an in-process JavaScript object model used as the
// default backend. It has no parser: everything is driven from Go through
// the core.Context interface. It implements the parts of a VM the binding
// layer relies on: prototype chains, accessors, internal slots, handle
// scopes, signatures, persistents with weak callbacks and a mark/sweep
// collector.
package refvm

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/cryguy/njs/internal/core"
	log "github.com/sirupsen/logrus"
)

// jsval is an unboxed VM value.
type jsval struct {
	kind core.Kind
	b    bool
	n    float64
	s    string
	o    *object
}

var undefinedVal = jsval{kind: core.KindUndefined}

func numberVal(f float64) jsval { return jsval{kind: core.KindNumber, n: f} }
func stringVal(s string) jsval  { return jsval{kind: core.KindString, s: s} }

func objectVal(o *object) jsval {
	if o.fn != nil {
		return jsval{kind: core.KindFunction, o: o}
	}
	return jsval{kind: core.KindObject, o: o}
}

// VM is a single-threaded heap plus its only context.
type VM struct {
	heap        map[*object]struct{}
	persistents map[*persistent]struct{}
	scopes      []*scope
	templates   []*functionTemplate
	signatures  int
	pending     *jsval

	global        *object
	objectProto   *object
	functionProto *object
	errorProto    *object
}

var (
	_ core.Context   = (*VM)(nil)
	_ core.Collector = (*VM)(nil)
	_ core.Closer    = (*VM)(nil)
)

// New creates a VM with an empty global object and a base scope that is
// never closed.
func New() *VM {
	vm := &VM{
		heap:        make(map[*object]struct{}),
		persistents: make(map[*persistent]struct{}),
	}
	vm.objectProto = vm.alloc("Object", nil)
	vm.functionProto = vm.alloc("Function", vm.objectProto)
	vm.errorProto = vm.alloc("Error", vm.objectProto)
	vm.global = vm.alloc("global", vm.objectProto)
	vm.scopes = []*scope{{vm: vm}}
	return vm
}

// Backend hands out a fresh VM per context.
type Backend struct{}

func (Backend) Name() string { return "refvm" }

func (Backend) NewContext() (core.Context, error) { return New(), nil }

// Stats is a snapshot of heap bookkeeping.
type Stats struct {
	Objects         int
	Persistents     int
	WeakPersistents int
	Templates       int
	Signatures      int
	Scopes          int
}

func (vm *VM) Stats() Stats {
	st := Stats{
		Objects:     len(vm.heap),
		Persistents: len(vm.persistents),
		Templates:   len(vm.templates),
		Signatures:  vm.signatures,
		Scopes:      len(vm.scopes),
	}
	for p := range vm.persistents {
		if p.weak {
			st.WeakPersistents++
		}
	}
	return st
}

func (vm *VM) Undefined() core.Value        { return vm.newLocal(undefinedVal) }
func (vm *VM) Null() core.Value             { return vm.newLocal(jsval{kind: core.KindNull}) }
func (vm *VM) NewBoolean(b bool) core.Value { return vm.newLocal(jsval{kind: core.KindBoolean, b: b}) }
func (vm *VM) NewNumber(f float64) core.Value {
	return vm.newLocal(numberVal(f))
}
func (vm *VM) NewString(s string) core.Value { return vm.newLocal(stringVal(s)) }

func (vm *VM) NewObject() core.Object {
	return vm.newLocal(objectVal(vm.alloc("Object", vm.objectProto)))
}

func (vm *VM) Global() core.Object { return vm.newLocal(objectVal(vm.global)) }

func (vm *VM) NewError(kind core.ErrorKind, msg string) core.Value {
	return vm.newLocal(objectVal(vm.newError(kind, msg)))
}

func (vm *VM) newError(kind core.ErrorKind, msg string) *object {
	if kind == core.ErrorKindNone {
		kind = core.ErrorKindError
	}
	o := vm.alloc("Error", vm.errorProto)
	o.errKind = kind
	o.define("name", stringVal(kind.String()), core.AttrDontEnum)
	o.define("message", stringVal(msg), core.AttrDontEnum)
	return o
}

func (vm *VM) Throw(v core.Value) {
	val := vm.val(v)
	vm.pending = &val
}

func (vm *VM) Call(fn core.Value, recv core.Value, args ...core.Value) (core.Value, error) {
	out, err := vm.call(vm.val(fn), vm.val(recv), vm.vals(args), false)
	if err != nil {
		return nil, vm.exception(err)
	}
	return vm.newLocal(out), nil
}

func (vm *VM) Construct(fn core.Value, args ...core.Value) (core.Value, error) {
	out, err := vm.call(vm.val(fn), undefinedVal, vm.vals(args), true)
	if err != nil {
		return nil, vm.exception(err)
	}
	return vm.newLocal(out), nil
}

// thrown carries a JS exception through Go call frames inside the VM.
type thrown struct {
	val jsval
}

func (t *thrown) Error() string { return "uncaught " + toString(t.val) }

func (vm *VM) throwType(format string, args ...any) error {
	return &thrown{val: objectVal(vm.newError(core.ErrorKindTypeError, fmt.Sprintf(format, args...)))}
}

// exception converts an internal throw into the error handed to Go callers.
func (vm *VM) exception(err error) error {
	t, ok := err.(*thrown)
	if !ok {
		return err
	}
	exc := &core.Exception{Value: vm.newLocal(t.val), Message: toString(t.val)}
	if o := t.val.o; o != nil && o.errKind != core.ErrorKindNone {
		exc.Kind = o.errKind
		if p, ok := o.props["message"]; ok {
			exc.Message = toString(p.value)
		}
	}
	return exc
}

// takePending clears and returns the exception scheduled by Throw.
func (vm *VM) takePending() error {
	if vm.pending == nil {
		return nil
	}
	t := &thrown{val: *vm.pending}
	vm.pending = nil
	return t
}

func (vm *VM) val(v core.Value) jsval {
	if v == nil {
		return undefinedVal
	}
	l, ok := v.(*local)
	if !ok {
		panic(fmt.Sprintf("refvm: foreign value %T", v))
	}
	if l.vm != vm {
		panic("refvm: value belongs to another VM")
	}
	return l.get()
}

func (vm *VM) vals(vs []core.Value) []jsval {
	out := make([]jsval, len(vs))
	for i, v := range vs {
		out[i] = vm.val(v)
	}
	return out
}

// Close fires the weak callbacks of all remaining weak persistents and
// drops the heap. Strong persistents still set are leaks of the embedder.
func (vm *VM) Close() error {
	var weak []*persistent
	for p := range vm.persistents {
		if p.weak && p.val.o != nil {
			weak = append(weak, p)
		}
	}
	vm.fireWeak(weak)
	if n := len(vm.persistents); n > 0 {
		log.WithField("count", n).Warn("refvm: closing with strong persistents still set")
	}
	vm.heap = make(map[*object]struct{})
	vm.persistents = make(map[*persistent]struct{})
	vm.templates = nil
	return nil
}

func isInt32(f float64) bool {
	return f == math.Trunc(f) && f >= math.MinInt32 && f <= math.MaxInt32 && !(f == 0 && math.Signbit(f))
}

func isUint32(f float64) bool {
	return f == math.Trunc(f) && f >= 0 && f <= math.MaxUint32 && !(f == 0 && math.Signbit(f))
}

func toBoolean(v jsval) bool {
	switch v.kind {
	case core.KindBoolean:
		return v.b
	case core.KindNumber:
		return v.n != 0 && !math.IsNaN(v.n)
	case core.KindString:
		return v.s != ""
	case core.KindObject, core.KindFunction, core.KindSymbol:
		return true
	}
	return false
}

func toNumber(v jsval) float64 {
	switch v.kind {
	case core.KindNull:
		return 0
	case core.KindBoolean:
		if v.b {
			return 1
		}
		return 0
	case core.KindNumber:
		return v.n
	case core.KindString:
		s := strings.TrimSpace(v.s)
		if s == "" {
			return 0
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return math.NaN()
		}
		return f
	}
	return math.NaN()
}

func numberString(f float64) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	case f == math.Trunc(f) && math.Abs(f) < 1e21:
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	return strconv.FormatFloat(f, 'g', -1, 64)
}

func toString(v jsval) string {
	switch v.kind {
	case core.KindUndefined:
		return "undefined"
	case core.KindNull:
		return "null"
	case core.KindBoolean:
		return strconv.FormatBool(v.b)
	case core.KindNumber:
		return numberString(v.n)
	case core.KindString:
		return v.s
	case core.KindFunction:
		return "function " + v.o.className() + "() { [native code] }"
	case core.KindObject:
		if v.o.errKind != core.ErrorKindNone {
			msg := ""
			if p, ok := v.o.props["message"]; ok {
				msg = toString(p.value)
			}
			if msg == "" {
				return v.o.errKind.String()
			}
			return v.o.errKind.String() + ": " + msg
		}
		return "[object " + v.o.class + "]"
	}
	return ""
}

func strictEquals(a, b jsval) bool {
	if a.kind != b.kind {
		return false
	}
	switch a.kind {
	case core.KindUndefined, core.KindNull:
		return true
	case core.KindBoolean:
		return a.b == b.b
	case core.KindNumber:
		return a.n == b.n
	case core.KindString:
		return a.s == b.s
	}
	return a.o == b.o
}
