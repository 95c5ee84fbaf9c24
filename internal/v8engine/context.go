//go:build v8

// Package v8engine implements the VM boundary on V8 through v8go.
package v8engine

import (
	"errors"
	"fmt"

	"github.com/cryguy/njs/internal/core"
	log "github.com/sirupsen/logrus"
	v8 "github.com/tommie/v8go"
)

// glueSource installs the pieces v8go has no API for: class constructors
// that report new.target, accessors, strict property writes and calls
// that hand back the thrown value instead of its string form.
const glueSource = `(function() {
  "use strict";
  return {
    makeClass(name, invoke) {
      return ({[name]: function(...args) {
        return invoke(this, new.target, ...args);
      }})[name];
    },
    inherit(child, parent) {
      Object.setPrototypeOf(child.prototype, parent.prototype);
      Object.setPrototypeOf(child, parent);
    },
    setPrototype(obj, proto) {
      if (proto !== null && (typeof proto === "object" || typeof proto === "function")) {
        Object.setPrototypeOf(obj, proto);
      }
    },
    define(target, name, value, writable, enumerable, configurable) {
      Object.defineProperty(target, name, {value, writable, enumerable, configurable});
    },
    defineAccessor(target, name, getter, setter, enumerable, configurable) {
      const desc = {enumerable, configurable, get: function() { return getter(this); }};
      if (setter !== undefined) {
        desc.set = function(v) { setter(this, v); };
      }
      Object.defineProperty(target, name, desc);
    },
    get(obj, key) { return obj[key]; },
    set(obj, key, value) { obj[key] = value; },
    makeError(kind, message) { return new globalThis[kind](message); },
    tryCall(fn, recv, ...args) {
      try { return {ok: true, v: Reflect.apply(fn, recv, args)}; } catch (e) { return {ok: false, v: e}; }
    },
    tryConstruct(fn, ...args) {
      try { return {ok: true, v: Reflect.construct(fn, args)}; } catch (e) { return {ok: false, v: e}; }
    },
  };
})()`

var glueNames = []string{
	"makeClass", "inherit", "setPrototype", "define", "defineAccessor",
	"get", "set", "makeError", "tryCall", "tryConstruct",
}

// Backend creates one isolate and context per core.Context.
type Backend struct{}

func (Backend) Name() string { return "v8" }

func (Backend) NewContext() (core.Context, error) { return NewContext() }

// slotEntry holds the emulated internal fields of one instance. Field 0 of
// the V8 object stores the entry's id.
type slotEntry struct {
	fields []any
	tmpl   *functionTemplate
}

// Context is a V8 isolate with a single context.
type Context struct {
	iso *v8.Isolate
	ctx *v8.Context

	glue         map[string]*v8.Function
	plainTmpl    *v8.ObjectTemplate
	instanceTmpl *v8.ObjectTemplate

	slots       map[uint32]*slotEntry
	nextSlot    uint32
	persistents map[*persistent]struct{}
	templates   int
	signatures  int
}

var (
	_ core.Context         = (*Context)(nil)
	_ core.ScriptRunner    = (*Context)(nil)
	_ core.MicrotaskRunner = (*Context)(nil)
	_ core.Closer          = (*Context)(nil)
)

func NewContext() (*Context, error) {
	iso := v8.NewIsolate()
	c := &Context{
		iso:         iso,
		ctx:         v8.NewContext(iso),
		glue:        make(map[string]*v8.Function, len(glueNames)),
		slots:       make(map[uint32]*slotEntry),
		nextSlot:    1,
		persistents: make(map[*persistent]struct{}),
	}
	c.plainTmpl = v8.NewObjectTemplate(iso)
	c.instanceTmpl = v8.NewObjectTemplate(iso)
	c.instanceTmpl.SetInternalFieldCount(1)

	g, err := c.ctx.RunScript(glueSource, "njs_glue.js")
	if err != nil {
		c.dispose()
		return nil, fmt.Errorf("v8engine: installing glue: %w", err)
	}
	gobj, err := g.AsObject()
	if err != nil {
		c.dispose()
		return nil, err
	}
	for _, name := range glueNames {
		fv, err := gobj.Get(name)
		if err != nil {
			c.dispose()
			return nil, err
		}
		fn, err := fv.AsFunction()
		if err != nil {
			c.dispose()
			return nil, fmt.Errorf("v8engine: glue %s: %w", name, err)
		}
		c.glue[name] = fn
	}
	return c, nil
}

// callGlue runs a glue helper. Glue helpers only throw on programmer
// error, so the stringified exception is enough.
func (c *Context) callGlue(name string, args ...v8.Valuer) (*v8.Value, error) {
	return c.glue[name].Call(v8.Undefined(c.iso), args...)
}

func (c *Context) newValue(x any) *v8.Value {
	v, err := v8.NewValue(c.iso, x)
	if err != nil {
		panic(fmt.Sprintf("v8engine: NewValue(%T): %v", x, err))
	}
	return v
}

func (c *Context) wrap(v *v8.Value) *value {
	if v == nil {
		return &value{c: c, v: v8.Undefined(c.iso)}
	}
	return &value{c: c, v: v}
}

// raw unwraps a core value, mapping the empty handle to undefined.
func (c *Context) raw(v core.Value) *v8.Value {
	if v == nil {
		return v8.Undefined(c.iso)
	}
	vv, ok := v.(*value)
	if !ok {
		panic(fmt.Sprintf("v8engine: foreign value %T", v))
	}
	if vv.c != c {
		panic("v8engine: value belongs to another context")
	}
	return vv.v
}

func (c *Context) raws(vs []core.Value) []v8.Valuer {
	out := make([]v8.Valuer, len(vs))
	for i, v := range vs {
		out[i] = c.raw(v)
	}
	return out
}

func (c *Context) Undefined() core.Value          { return c.wrap(v8.Undefined(c.iso)) }
func (c *Context) Null() core.Value               { return c.wrap(v8.Null(c.iso)) }
func (c *Context) NewBoolean(b bool) core.Value   { return c.wrap(c.newValue(b)) }
func (c *Context) NewNumber(f float64) core.Value { return c.wrap(c.newValue(f)) }
func (c *Context) NewString(s string) core.Value  { return c.wrap(c.newValue(s)) }

func (c *Context) NewObject() core.Object {
	o, err := c.plainTmpl.NewInstance(c.ctx)
	if err != nil {
		panic(fmt.Sprintf("v8engine: NewObject: %v", err))
	}
	return c.wrap(o.Value)
}

func (c *Context) Global() core.Object { return c.wrap(c.ctx.Global().Value) }

func (c *Context) NewError(kind core.ErrorKind, msg string) core.Value {
	return c.wrap(c.newError(kind, msg))
}

func (c *Context) newError(kind core.ErrorKind, msg string) *v8.Value {
	if kind == core.ErrorKindNone {
		kind = core.ErrorKindError
	}
	v, err := c.callGlue("makeError", c.newValue(kind.String()), c.newValue(msg))
	if err != nil {
		panic(fmt.Sprintf("v8engine: NewError: %v", err))
	}
	return v
}

func (c *Context) Throw(v core.Value) {
	c.iso.ThrowException(c.raw(v))
}

// OpenScope returns a no-op scope: v8go keeps every value alive until its
// context closes.
func (c *Context) OpenScope() core.Scope { return scope{} }

func (c *Context) Call(fn core.Value, recv core.Value, args ...core.Value) (core.Value, error) {
	in := append([]v8.Valuer{c.raw(fn), c.raw(recv)}, c.raws(args)...)
	return c.settle(c.callGlue("tryCall", in...))
}

func (c *Context) Construct(fn core.Value, args ...core.Value) (core.Value, error) {
	in := append([]v8.Valuer{c.raw(fn)}, c.raws(args)...)
	return c.settle(c.callGlue("tryConstruct", in...))
}

// settle unpacks a {ok, v} record produced by tryCall or tryConstruct.
func (c *Context) settle(rec *v8.Value, err error) (core.Value, error) {
	if err != nil {
		return nil, c.exception(err)
	}
	obj, err := rec.AsObject()
	if err != nil {
		return nil, err
	}
	ok, err := obj.Get("ok")
	if err != nil {
		return nil, err
	}
	v, err := obj.Get("v")
	if err != nil {
		return nil, err
	}
	if ok.Boolean() {
		return c.wrap(v), nil
	}
	return nil, c.thrown(v)
}

// thrown builds the Go error for a caught JS value.
func (c *Context) thrown(v *v8.Value) *core.Exception {
	exc := &core.Exception{Value: c.wrap(v), Message: v.String()}
	if !v.IsObject() {
		return exc
	}
	name, err1 := c.callGlue("get", v, c.newValue("name"))
	msg, err2 := c.callGlue("get", v, c.newValue("message"))
	if err1 == nil && err2 == nil && name.IsString() {
		if k := core.ErrorKindFromName(name.String()); k != core.ErrorKindNone {
			exc.Kind = k
			exc.Message = msg.String()
		}
	}
	return exc
}

// exception converts a v8go error into *core.Exception.
func (c *Context) exception(err error) error {
	var jsErr *v8.JSError
	if errors.As(err, &jsErr) {
		return core.ParseException(jsErr.Message)
	}
	return err
}

func (c *Context) NewPersistent(v core.Value) core.Persistent {
	p := &persistent{c: c, v: c.raw(v)}
	c.persistents[p] = struct{}{}
	return p
}

// RunScript compiles and runs src.
func (c *Context) RunScript(src, origin string) (core.Value, error) {
	v, err := c.ctx.RunScript(src, origin)
	if err != nil {
		return nil, c.exception(err)
	}
	return c.wrap(v), nil
}

func (c *Context) RunMicrotasks() { c.ctx.PerformMicrotaskCheckpoint() }

// Stats reports bookkeeping counters.
type Stats struct {
	Slots           int
	Persistents     int
	WeakPersistents int
	Templates       int
	Signatures      int
}

func (c *Context) Stats() Stats {
	st := Stats{
		Slots:       len(c.slots),
		Persistents: len(c.persistents),
		Templates:   c.templates,
		Signatures:  c.signatures,
	}
	for p := range c.persistents {
		if p.weak {
			st.WeakPersistents++
		}
	}
	return st
}

// Close runs the weak callbacks of remaining weak persistents, since V8
// collection is not observable through v8go, then disposes the isolate.
func (c *Context) Close() error {
	var weak []*persistent
	for p := range c.persistents {
		if p.weak && p.v != nil {
			weak = append(weak, p)
		}
	}
	for _, p := range weak {
		cb := p.cb
		p.weak, p.cb = false, nil
		cb()
		if p.v != nil {
			panic("v8engine: weak callback did not reset its persistent")
		}
	}
	if n := len(c.persistents); n > 0 {
		log.WithField("count", n).Warn("v8engine: closing with strong persistents still set")
	}
	c.persistents = make(map[*persistent]struct{})
	c.slots = make(map[uint32]*slotEntry)
	c.dispose()
	return nil
}

func (c *Context) dispose() {
	c.ctx.Close()
	c.iso.Dispose()
}
