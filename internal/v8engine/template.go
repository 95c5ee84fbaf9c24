//go:build v8

package v8engine

import (
	"fmt"

	"github.com/cryguy/njs/internal/core"
	v8 "github.com/tommie/v8go"
)

type accessor struct {
	get  core.GetterCallback
	set  core.SetterCallback
	data core.Value
	sig  *signature
}

type templateProp struct {
	name  string
	fn    *functionTemplate
	acc   *accessor
	attrs core.PropertyAttribute
}

type objectTemplate struct {
	fields int
	props  []templateProp
}

var _ core.ObjectTemplate = (*objectTemplate)(nil)

func (t *objectTemplate) SetInternalFieldCount(n int) { t.fields = n }
func (t *objectTemplate) InternalFieldCount() int    { return t.fields }

func (t *objectTemplate) Set(name string, fn core.FunctionTemplate, attrs core.PropertyAttribute) {
	t.props = append(t.props, templateProp{name: name, fn: asTemplate(fn), attrs: attrs})
}

func (t *objectTemplate) SetAccessor(name string, get core.GetterCallback, set core.SetterCallback, data core.Value, attrs core.PropertyAttribute, sig core.Signature) {
	acc := &accessor{get: get, set: set, data: data, sig: asSignature(sig)}
	t.props = append(t.props, templateProp{name: name, acc: acc, attrs: attrs})
}

// functionTemplate is realized as a JS function produced by the makeClass
// glue whose body forwards to a Go callback together with the receiver and
// new.target.
type functionTemplate struct {
	c         *Context
	cb        core.FunctionCallback
	data      core.Value
	sig       *signature
	className string
	parent    *functionTemplate
	instance  *objectTemplate
	proto     *objectTemplate
	statics   []templateProp
	fn        *v8.Value
}

var _ core.FunctionTemplate = (*functionTemplate)(nil)

func (c *Context) NewFunctionTemplate(cb core.FunctionCallback, data core.Value, sig core.Signature) core.FunctionTemplate {
	c.templates++
	return &functionTemplate{c: c, cb: cb, data: data, sig: asSignature(sig)}
}

func (c *Context) NewSignature(receiver core.FunctionTemplate) core.Signature {
	c.signatures++
	return &signature{tmpl: asTemplate(receiver)}
}

func (c *Context) NewAccessorSignature(receiver core.FunctionTemplate) core.Signature {
	c.signatures++
	return &signature{tmpl: asTemplate(receiver), accessor: true}
}

func (t *functionTemplate) SetClassName(name string) { t.className = name }

func (t *functionTemplate) Inherit(parent core.FunctionTemplate) {
	if t.fn != nil {
		panic("v8engine: Inherit after GetFunction")
	}
	t.parent = asTemplate(parent)
}

func (t *functionTemplate) InstanceTemplate() core.ObjectTemplate {
	if t.instance == nil {
		t.instance = &objectTemplate{}
	}
	return t.instance
}

func (t *functionTemplate) PrototypeTemplate() core.ObjectTemplate {
	if t.proto == nil {
		t.proto = &objectTemplate{}
	}
	return t.proto
}

func (t *functionTemplate) Set(name string, fn core.FunctionTemplate, attrs core.PropertyAttribute) {
	t.statics = append(t.statics, templateProp{name: name, fn: asTemplate(fn), attrs: attrs})
}

func (t *functionTemplate) GetFunction() (core.Object, error) {
	fn, err := t.function()
	if err != nil {
		return nil, err
	}
	return t.c.wrap(fn), nil
}

func (t *functionTemplate) function() (*v8.Value, error) {
	if t.fn != nil {
		return t.fn, nil
	}
	c := t.c
	invoke := v8.NewFunctionTemplate(c.iso, t.invoke).GetFunction(c.ctx)
	fn, err := c.callGlue("makeClass", c.newValue(t.className), invoke)
	if err != nil {
		return nil, fmt.Errorf("v8engine: class %s: %w", t.className, err)
	}
	if t.parent != nil {
		pf, err := t.parent.function()
		if err != nil {
			return nil, err
		}
		if _, err := c.callGlue("inherit", fn, pf); err != nil {
			return nil, err
		}
	}
	t.fn = fn

	if t.proto != nil {
		proto, err := c.callGlue("get", fn, c.newValue("prototype"))
		if err != nil {
			return nil, err
		}
		if err := c.install(proto, t.proto.props); err != nil {
			return nil, err
		}
	}
	if err := c.install(fn, t.statics); err != nil {
		return nil, err
	}
	return fn, nil
}

func (c *Context) install(target *v8.Value, props []templateProp) error {
	for _, p := range props {
		enumerable := c.newValue(p.attrs&core.AttrDontEnum == 0)
		configurable := c.newValue(p.attrs&core.AttrDontDelete == 0)
		name := c.newValue(p.name)

		if p.acc != nil {
			getter := v8.NewFunctionTemplate(c.iso, c.getter(p.acc)).GetFunction(c.ctx)
			var setter v8.Valuer = v8.Undefined(c.iso)
			if p.acc.set != nil {
				setter = v8.NewFunctionTemplate(c.iso, c.setter(p.acc)).GetFunction(c.ctx)
			}
			if _, err := c.callGlue("defineAccessor", target, name, getter, setter, enumerable, configurable); err != nil {
				return fmt.Errorf("installing accessor %q: %w", p.name, err)
			}
			continue
		}

		if p.fn.className == "" {
			p.fn.className = p.name
		}
		f, err := p.fn.function()
		if err != nil {
			return fmt.Errorf("installing %q: %w", p.name, err)
		}
		writable := c.newValue(p.attrs&core.AttrReadOnly == 0)
		if _, err := c.callGlue("define", target, name, f, writable, enumerable, configurable); err != nil {
			return fmt.Errorf("installing %q: %w", p.name, err)
		}
	}
	return nil
}

// invoke receives (this, newTarget, ...args) from the makeClass glue.
func (t *functionTemplate) invoke(info *v8.FunctionCallbackInfo) *v8.Value {
	c := t.c
	args := info.Args()
	recv, newTarget := v8.Undefined(c.iso), v8.Undefined(c.iso)
	if len(args) > 0 {
		recv = args[0]
	}
	if len(args) > 1 {
		newTarget = args[1]
	}
	var rest []*v8.Value
	if len(args) > 2 {
		rest = args[2:]
	}
	construct := !newTarget.IsUndefined()

	var this *value
	if construct {
		inst, err := c.newInstance(t, newTarget)
		if err != nil {
			c.iso.ThrowException(c.newError(core.ErrorKindError, err.Error()))
			return nil
		}
		this = inst
	} else {
		if recv.IsObject() {
			this = c.wrap(recv)
		}
		if t.sig != nil && !t.sig.accepts(this) {
			c.iso.ThrowException(c.newError(core.ErrorKindTypeError, "Illegal invocation"))
			return nil
		}
	}
	if t.cb == nil {
		if construct {
			return this.v
		}
		return nil
	}

	ci := &callbackInfo{c: c, construct: construct, data: t.data}
	if this != nil {
		ci.this = this
	}
	ci.args = make([]core.Value, len(rest))
	for i, a := range rest {
		ci.args[i] = c.wrap(a)
	}
	out := t.cb(ci)

	if construct {
		if out != nil && out.Object() != nil {
			return c.raw(out)
		}
		return this.v
	}
	if out == nil {
		return nil
	}
	return c.raw(out)
}

// newInstance creates the object a class constructor runs against: it
// carries the slot id in its only real internal field and inherits from
// newTarget.prototype.
func (c *Context) newInstance(t *functionTemplate, newTarget *v8.Value) (*value, error) {
	obj, err := c.instanceTmpl.NewInstance(c.ctx)
	if err != nil {
		return nil, err
	}
	id := c.nextSlot
	c.nextSlot++
	if err := obj.SetInternalField(0, id); err != nil {
		return nil, err
	}
	fields := 0
	if t.instance != nil {
		fields = t.instance.fields
	}
	c.slots[id] = &slotEntry{fields: make([]any, fields), tmpl: t}

	proto, err := c.callGlue("get", newTarget, c.newValue("prototype"))
	if err != nil {
		return nil, err
	}
	if _, err := c.callGlue("setPrototype", obj, proto); err != nil {
		return nil, err
	}
	return c.wrap(obj.Value), nil
}

// getter receives (this) from the defineAccessor glue.
func (c *Context) getter(acc *accessor) v8.FunctionCallback {
	return func(info *v8.FunctionCallbackInfo) *v8.Value {
		this, ok := c.accessorReceiver(acc, info.Args())
		if !ok {
			return nil
		}
		out := acc.get(&accessorInfo{c: c, this: this, data: acc.data})
		if out == nil {
			return nil
		}
		return c.raw(out)
	}
}

// setter receives (this, value) from the defineAccessor glue.
func (c *Context) setter(acc *accessor) v8.FunctionCallback {
	return func(info *v8.FunctionCallbackInfo) *v8.Value {
		args := info.Args()
		this, ok := c.accessorReceiver(acc, args)
		if !ok {
			return nil
		}
		v := v8.Undefined(c.iso)
		if len(args) > 1 {
			v = args[1]
		}
		acc.set(&accessorInfo{c: c, this: this, data: acc.data}, c.wrap(v))
		return nil
	}
}

func (c *Context) accessorReceiver(acc *accessor, args []*v8.Value) (*value, bool) {
	var this *value
	if len(args) > 0 && args[0].IsObject() {
		this = c.wrap(args[0])
	}
	if acc.sig != nil && !acc.sig.accepts(this) {
		c.iso.ThrowException(c.newError(core.ErrorKindTypeError, "Illegal invocation"))
		return nil, false
	}
	return this, true
}

type callbackInfo struct {
	c         *Context
	args      []core.Value
	this      *value
	construct bool
	data      core.Value
}

func (i *callbackInfo) Context() core.Context { return i.c }
func (i *callbackInfo) Args() []core.Value    { return i.args }
func (i *callbackInfo) IsConstructCall() bool { return i.construct }
func (i *callbackInfo) Data() core.Value      { return i.data }

func (i *callbackInfo) This() core.Object {
	if i.this == nil {
		return nil
	}
	return i.this
}

type accessorInfo struct {
	c    *Context
	this *value
	data core.Value
}

func (i *accessorInfo) Context() core.Context { return i.c }
func (i *accessorInfo) Data() core.Value      { return i.data }

func (i *accessorInfo) This() core.Object {
	if i.this == nil {
		return nil
	}
	return i.this
}

type signature struct {
	tmpl     *functionTemplate
	accessor bool
}

func (s *signature) Receiver() core.FunctionTemplate { return s.tmpl }

func (s *signature) accepts(v *value) bool {
	if v == nil {
		return false
	}
	e := v.slot()
	if e == nil {
		return false
	}
	for t := e.tmpl; t != nil; t = t.parent {
		if t == s.tmpl {
			return true
		}
	}
	return false
}

func asTemplate(t core.FunctionTemplate) *functionTemplate {
	if t == nil {
		return nil
	}
	ft, ok := t.(*functionTemplate)
	if !ok {
		panic(fmt.Sprintf("v8engine: foreign function template %T", t))
	}
	return ft
}

func asSignature(s core.Signature) *signature {
	if s == nil {
		return nil
	}
	sig, ok := s.(*signature)
	if !ok {
		panic(fmt.Sprintf("v8engine: foreign signature %T", s))
	}
	return sig
}
