//go:build !v8

// Package quickjs implements the VM boundary on QuickJS through
// modernc.org/quickjs.
//
// The Go wrapper only moves primitives across RegisterFunc and Eval, so
// every JS value Go holds lives in a handle table inside the VM and is
// addressed by an integer id. A local owns one id and releases it when its
// scope closes; a persistent owns one id until Reset.
package quickjs

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/cryguy/njs/internal/core"
	jsoniter "github.com/json-iterator/go"
	log "github.com/sirupsen/logrus"
	"modernc.org/quickjs"
)

// glueSource installs the handle table and the helpers Go drives it with.
// The four Go entry points are captured and removed from the global
// object.
const glueSource = `(function() {
"use strict";
const api = (function(invoke, getter, setter, weakFired) {
  const table = new Map();
  const weak = new Map();
  const SLOT = Symbol("njs.slot");
  const hasWeak = typeof WeakRef === "function" && typeof FinalizationRegistry === "function";
  const registry = hasWeak ? new FinalizationRegistry((id) => { weak.delete(id); weakFired(id); }) : null;
  let next = 1;

  const put = (v) => { const id = next++; table.set(id, v); return id; };
  const val = (id) => {
    if (table.has(id)) return table.get(id);
    const w = weak.get(id);
    return w === undefined ? undefined : w.ref.deref();
  };
  const isObj = (v) => (typeof v === "object" && v !== null) || typeof v === "function";
  const settle = (f) => { try { return put(f()); } catch (e) { return -put(e); } };
  const take = (r) => {
    if (r < 0) { const e = table.get(-r); table.delete(-r); throw e; }
    if (r === 0) return undefined;
    const v = table.get(r);
    table.delete(r);
    return v;
  };

  return {
    put,
    drop(...ids) {
      for (const id of ids) {
        table.delete(id);
        const w = weak.get(id);
        if (w !== undefined) { registry.unregister(w.token); weak.delete(id); }
      }
    },
    dup(id) { return put(val(id)); },
    global() { return put(globalThis); },
    object() { return put({}); },
    error(kind, msg) { return put(new globalThis[kind](msg)); },
    kind(id) { const v = val(id); return v === null ? "null" : typeof v; },
    num(id) { const v = val(id); return typeof v === "symbol" ? NaN : Number(v); },
    str(id) { return String(val(id)); },
    bool(id) { return !!val(id); },
    same(a, b) { return val(a) === val(b); },
    errName(id) { const v = val(id); return v instanceof Error ? String(v.name) : ""; },
    errMessage(id) { const v = val(id); return v instanceof Error ? String(v.message) : String(v); },
    get(id, key) { return settle(() => val(id)[key]); },
    set(id, key, v) { try { val(id)[key] = val(v); return 0; } catch (e) { return -put(e); } },
    call(fn, recv, ...args) { return settle(() => Reflect.apply(val(fn), val(recv), args.map(val))); },
    construct(fn, ...args) { return settle(() => Reflect.construct(val(fn), args.map(val))); },
    run(src) { return settle(() => (0, eval)(src)); },
    slot(id) {
      const v = val(id);
      return isObj(v) && Object.prototype.hasOwnProperty.call(v, SLOT) ? v[SLOT] : 0;
    },
    setSlot(id, sid) { Object.defineProperty(val(id), SLOT, {value: sid}); },
    makeClass(name, tid) {
      return put(({[name]: function(...args) {
        const f = put([this, new.target, args]);
        try { return take(invoke(tid, f)); } finally { table.delete(f); }
      }})[name]);
    },
    frame(f) {
      const [self, nt, args] = table.get(f);
      return [isObj(self) ? put(self) : 0, nt === undefined ? 0 : 1, ...args.map(put)].join(",");
    },
    prototype(fn) { return put(val(fn).prototype); },
    inherit(child, parent) {
      Object.setPrototypeOf(val(child).prototype, val(parent).prototype);
      Object.setPrototypeOf(val(child), val(parent));
    },
    define(target, name, fn, writable, enumerable, configurable) {
      Object.defineProperty(val(target), name, {value: val(fn), writable, enumerable, configurable});
    },
    defineAccessor(target, name, aid, hasSetter, enumerable, configurable) {
      const desc = {enumerable, configurable, get() { return take(getter(aid, put(this))); }};
      if (hasSetter) {
        desc.set = function(v) { take(setter(aid, put(this), put(v))); };
      }
      Object.defineProperty(val(target), name, desc);
    },
    weaken(id) {
      const v = table.get(id);
      if (!hasWeak || !isObj(v)) return false;
      const token = {};
      table.delete(id);
      weak.set(id, {ref: new WeakRef(v), token});
      registry.register(v, id, token);
      return true;
    },
    strengthen(id) {
      const w = weak.get(id);
      if (w === undefined) return;
      registry.unregister(w.token);
      weak.delete(id);
      table.set(id, w.ref.deref());
    },
    size() { return table.size + weak.size; },
  };
})(globalThis.__njs_invoke, globalThis.__njs_get, globalThis.__njs_set, globalThis.__njs_weak);
Object.defineProperty(globalThis, "__njs", {value: api});
delete globalThis.__njs_invoke;
delete globalThis.__njs_get;
delete globalThis.__njs_set;
delete globalThis.__njs_weak;
})()`

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Backend creates one QuickJS VM per core.Context.
type Backend struct {
	// MemoryLimit caps the VM heap in bytes. Zero means no limit.
	MemoryLimit uintptr
}

func (Backend) Name() string { return "quickjs" }

func (b Backend) NewContext() (core.Context, error) {
	c, err := NewContext()
	if err != nil {
		return nil, err
	}
	if b.MemoryLimit > 0 {
		c.vm.SetMemoryLimit(b.MemoryLimit)
	}
	return c, nil
}

// slotEntry holds the emulated internal fields of one instance.
type slotEntry struct {
	fields []any
	tmpl   *functionTemplate
}

// Context is a QuickJS VM with its handle table.
type Context struct {
	vm *quickjs.VM

	scopes      []*scope
	pending     int
	persistents map[int]*persistent
	templates   []*functionTemplate
	accessors   []*accessor
	signatures  int

	slots    map[int]*slotEntry
	nextSlot int
	fired    int
	closed   bool
}

var (
	_ core.Context         = (*Context)(nil)
	_ core.ScriptRunner    = (*Context)(nil)
	_ core.MicrotaskRunner = (*Context)(nil)
	_ core.Collector       = (*Context)(nil)
	_ core.Closer          = (*Context)(nil)
)

// NewContext creates a VM, registers the Go entry points and installs the
// glue. The base scope is never closed.
func NewContext() (*Context, error) {
	vm, err := quickjs.NewVM()
	if err != nil {
		return nil, fmt.Errorf("quickjs: creating VM: %w", err)
	}
	c := &Context{
		vm:          vm,
		persistents: make(map[int]*persistent),
		slots:       make(map[int]*slotEntry),
		nextSlot:    1,
	}
	c.scopes = []*scope{{c: c}}

	entries := []struct {
		name string
		fn   any
	}{
		{"__njs_invoke", c.invoke},
		{"__njs_get", c.getter},
		{"__njs_set", c.setter},
		{"__njs_weak", c.weakFired},
	}
	for _, e := range entries {
		if err := vm.RegisterFunc(e.name, e.fn, false); err != nil {
			vm.Close()
			return nil, fmt.Errorf("quickjs: registering %s: %w", e.name, err)
		}
	}
	v, err := vm.EvalValue(glueSource, quickjs.EvalGlobal)
	if err != nil {
		vm.Close()
		return nil, fmt.Errorf("quickjs: installing glue: %w", err)
	}
	v.Free()
	return c, nil
}

// eval runs a glue snippet. Glue snippets only fail on programmer error.
func (c *Context) eval(js string) any {
	out, err := c.vm.Eval(js, quickjs.EvalGlobal)
	if err != nil {
		panic(fmt.Sprintf("quickjs: %s: %v", js, err))
	}
	return out
}

func (c *Context) evalf(format string, args ...any) any {
	return c.eval(fmt.Sprintf(format, args...))
}

func (c *Context) evalInt(format string, args ...any) int {
	switch x := c.evalf(format, args...).(type) {
	case int:
		return x
	case int32:
		return int(x)
	case int64:
		return int(x)
	case float64:
		return int(x)
	case bool:
		if x {
			return 1
		}
		return 0
	}
	panic(fmt.Sprintf("quickjs: %s: not an integer", fmt.Sprintf(format, args...)))
}

func (c *Context) evalFloat(format string, args ...any) float64 {
	switch x := c.evalf(format, args...).(type) {
	case int:
		return float64(x)
	case int32:
		return float64(x)
	case int64:
		return float64(x)
	case float64:
		return x
	}
	return math.NaN()
}

func (c *Context) evalString(format string, args ...any) string {
	out := c.evalf(format, args...)
	if s, ok := out.(string); ok {
		return s
	}
	if out == nil {
		return ""
	}
	return fmt.Sprint(out)
}

func (c *Context) evalBool(format string, args ...any) bool {
	b, _ := c.evalf(format, args...).(bool)
	return b
}

// stringLiteral quotes s as a JS string literal.
func stringLiteral(s string) string {
	out, err := json.MarshalToString(s)
	if err != nil {
		panic(fmt.Sprintf("quickjs: quoting string: %v", err))
	}
	return out
}

func numberLiteral(f float64) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	case f == 0 && math.Signbit(f):
		return "-0"
	}
	return strconv.FormatFloat(f, 'g', -1, 64)
}

func (c *Context) Undefined() core.Value { return c.adopt(c.evalInt("__njs.put(undefined)")) }
func (c *Context) Null() core.Value      { return c.adopt(c.evalInt("__njs.put(null)")) }

func (c *Context) NewBoolean(b bool) core.Value {
	return c.adopt(c.evalInt("__njs.put(%t)", b))
}

func (c *Context) NewNumber(f float64) core.Value {
	return c.adopt(c.evalInt("__njs.put(%s)", numberLiteral(f)))
}

func (c *Context) NewString(s string) core.Value {
	return c.adopt(c.evalInt("__njs.put(%s)", stringLiteral(s)))
}

func (c *Context) NewObject() core.Object { return c.adopt(c.evalInt("__njs.object()")) }
func (c *Context) Global() core.Object    { return c.adopt(c.evalInt("__njs.global()")) }

func (c *Context) NewError(kind core.ErrorKind, msg string) core.Value {
	return c.adopt(c.newError(kind, msg))
}

// newError returns an unowned id.
func (c *Context) newError(kind core.ErrorKind, msg string) int {
	if kind == core.ErrorKindNone {
		kind = core.ErrorKindError
	}
	return c.evalInt("__njs.error(%s, %s)", stringLiteral(kind.String()), stringLiteral(msg))
}

func (c *Context) Throw(v core.Value) {
	if c.pending != 0 {
		c.drop(c.pending)
	}
	c.pending = c.dup(c.id(v))
}

func (c *Context) Call(fn core.Value, recv core.Value, args ...core.Value) (core.Value, error) {
	return c.settle(c.evalInt("__njs.call(%d, %d%s)", c.id(fn), c.id(recv), c.idList(args)))
}

func (c *Context) Construct(fn core.Value, args ...core.Value) (core.Value, error) {
	return c.settle(c.evalInt("__njs.construct(%d%s)", c.id(fn), c.idList(args)))
}

// RunScript evaluates src as global code through an indirect eval, so
// top-level let and const bindings do not outlive the script.
func (c *Context) RunScript(src, origin string) (core.Value, error) {
	if origin != "" {
		src += "\n//# sourceURL=" + origin
	}
	return c.settle(c.evalInt("__njs.run(%s)", stringLiteral(src)))
}

func (c *Context) RunMicrotasks() { executePendingJobs(c.vm) }

// Collect runs the QuickJS cycle collector and then the finalization jobs
// it queued. It returns the number of weak callbacks that ran.
func (c *Context) Collect() int {
	before := c.fired
	runGC(c.vm)
	executePendingJobs(c.vm)
	return c.fired - before
}

// settle turns a glue result into a local or an *core.Exception.
func (c *Context) settle(r int) (core.Value, error) {
	if r < 0 {
		return nil, c.exception(-r)
	}
	return c.adopt(r), nil
}

// exception builds the Go error for a thrown value and adopts it.
func (c *Context) exception(id int) *core.Exception {
	exc := &core.Exception{Message: c.evalString("__njs.errMessage(%d)", id)}
	if k := core.ErrorKindFromName(c.evalString("__njs.errName(%d)", id)); k != core.ErrorKindNone {
		exc.Kind = k
	}
	exc.Value = c.adopt(id)
	return exc
}

func (c *Context) dup(id int) int { return c.evalInt("__njs.dup(%d)", id) }

func (c *Context) drop(ids ...int) {
	if len(ids) == 0 || c.closed {
		return
	}
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.Itoa(id)
	}
	c.evalf("__njs.drop(%s)", strings.Join(parts, ","))
}

// id unwraps a core value, mapping the empty handle to undefined (id 0).
func (c *Context) id(v core.Value) int {
	if v == nil {
		return 0
	}
	vv, ok := v.(*value)
	if !ok {
		panic(fmt.Sprintf("quickjs: foreign value %T", v))
	}
	if vv.c != c {
		panic("quickjs: value belongs to another context")
	}
	return vv.handle()
}

func (c *Context) idList(vs []core.Value) string {
	var b strings.Builder
	for _, v := range vs {
		b.WriteString(", ")
		b.WriteString(strconv.Itoa(c.id(v)))
	}
	return b.String()
}

func (c *Context) NewPersistent(v core.Value) core.Persistent {
	p := &persistent{c: c}
	if v != nil {
		p.id = c.dup(c.id(v))
		c.persistents[p.id] = p
	}
	return p
}

// Stats reports bookkeeping counters.
type Stats struct {
	Handles         int
	Slots           int
	Persistents     int
	WeakPersistents int
	Templates       int
	Signatures      int
	Scopes          int
}

func (c *Context) Stats() Stats {
	st := Stats{
		Handles:     c.evalInt("__njs.size()"),
		Slots:       len(c.slots),
		Persistents: len(c.persistents),
		Templates:   len(c.templates),
		Signatures:  c.signatures,
		Scopes:      len(c.scopes),
	}
	for _, p := range c.persistents {
		if p.weak {
			st.WeakPersistents++
		}
	}
	return st
}

// weakFired is called from the finalization registry once the target of
// a weak persistent has been collected.
func (c *Context) weakFired(id int) {
	p, ok := c.persistents[id]
	if !ok || !p.weak {
		return
	}
	c.fireWeak(p)
}

func (c *Context) fireWeak(p *persistent) {
	cb := p.cb
	p.weak, p.cb = false, nil
	if p.slot != 0 {
		delete(c.slots, p.slot)
	}
	c.fired++
	if cb == nil {
		p.Reset()
		return
	}
	cb()
	if !p.IsEmpty() {
		panic("quickjs: weak callback did not reset its persistent")
	}
}

// Close runs the weak callbacks of remaining weak persistents, then frees
// the VM.
func (c *Context) Close() error {
	if c.closed {
		return nil
	}
	var weak []*persistent
	for _, p := range c.persistents {
		if p.weak {
			weak = append(weak, p)
		}
	}
	for _, p := range weak {
		c.fireWeak(p)
	}
	if n := len(c.persistents); n > 0 {
		log.WithField("count", n).Warn("quickjs: closing with strong persistents still set")
	}
	c.closed = true
	c.persistents = make(map[int]*persistent)
	c.slots = make(map[int]*slotEntry)
	c.vm.Close()
	return nil
}
