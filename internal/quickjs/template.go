//go:build !v8

package quickjs

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/cryguy/njs/internal/core"
)

type accessor struct {
	get  core.GetterCallback
	set  core.SetterCallback
	data int
	sig  *signature
}

type templateProp struct {
	name  string
	fn    *functionTemplate
	acc   *accessor
	attrs core.PropertyAttribute
}

type objectTemplate struct {
	c      *Context
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
	acc := &accessor{get: get, set: set, sig: asSignature(sig)}
	if data != nil {
		acc.data = t.c.dup(t.c.id(data))
	}
	t.props = append(t.props, templateProp{name: name, acc: acc, attrs: attrs})
}

// functionTemplate is realized as a JS function produced by the makeClass
// glue. Its body forwards the receiver, new.target and arguments to
// invoke through the handle table.
type functionTemplate struct {
	c         *Context
	tid       int
	cb        core.FunctionCallback
	data      int
	sig       *signature
	className string
	parent    *functionTemplate
	instance  *objectTemplate
	proto     *objectTemplate
	statics   []templateProp
	fn        int
}

var _ core.FunctionTemplate = (*functionTemplate)(nil)

func (c *Context) NewFunctionTemplate(cb core.FunctionCallback, data core.Value, sig core.Signature) core.FunctionTemplate {
	t := &functionTemplate{c: c, cb: cb, sig: asSignature(sig)}
	if data != nil {
		t.data = c.dup(c.id(data))
	}
	c.templates = append(c.templates, t)
	t.tid = len(c.templates)
	return t
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
	if t.fn != 0 {
		panic("quickjs: Inherit after GetFunction")
	}
	t.parent = asTemplate(parent)
}

func (t *functionTemplate) InstanceTemplate() core.ObjectTemplate {
	if t.instance == nil {
		t.instance = &objectTemplate{c: t.c}
	}
	return t.instance
}

func (t *functionTemplate) PrototypeTemplate() core.ObjectTemplate {
	if t.proto == nil {
		t.proto = &objectTemplate{c: t.c}
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
	return t.c.adopt(t.c.dup(fn)), nil
}

// function instantiates the template once. The function id is owned by
// the context for its whole life.
func (t *functionTemplate) function() (int, error) {
	if t.fn != 0 {
		return t.fn, nil
	}
	c := t.c
	fn := c.evalInt("__njs.makeClass(%s, %d)", stringLiteral(t.className), t.tid)
	if t.parent != nil {
		pf, err := t.parent.function()
		if err != nil {
			return 0, err
		}
		c.evalf("__njs.inherit(%d, %d)", fn, pf)
	}
	t.fn = fn

	if t.proto != nil {
		proto := c.evalInt("__njs.prototype(%d)", fn)
		err := c.install(proto, t.proto.props)
		c.drop(proto)
		if err != nil {
			return 0, err
		}
	}
	if err := c.install(fn, t.statics); err != nil {
		return 0, err
	}
	return fn, nil
}

func (c *Context) install(target int, props []templateProp) error {
	for _, p := range props {
		enumerable := p.attrs&core.AttrDontEnum == 0
		configurable := p.attrs&core.AttrDontDelete == 0
		name := stringLiteral(p.name)

		if p.acc != nil {
			c.accessors = append(c.accessors, p.acc)
			c.evalf("__njs.defineAccessor(%d, %s, %d, %t, %t, %t)",
				target, name, len(c.accessors), p.acc.set != nil, enumerable, configurable)
			continue
		}

		if p.fn.className == "" {
			p.fn.className = p.name
		}
		f, err := p.fn.function()
		if err != nil {
			return fmt.Errorf("installing %q: %w", p.name, err)
		}
		writable := p.attrs&core.AttrReadOnly == 0
		c.evalf("__njs.define(%d, %s, %d, %t, %t, %t)", target, name, f, writable, enumerable, configurable)
	}
	return nil
}

// invoke is called by the makeClass glue. The frame id names the
// [this, new.target, args] triple; the result is an owned id handed to
// JS, 0 for undefined, or the negated id of the exception to throw.
func (c *Context) invoke(tid, frame int) int {
	t := c.templates[tid-1]
	sc := c.OpenScope()
	defer sc.Close()

	parts := strings.Split(c.evalString("__njs.frame(%d)", frame), ",")
	ids := make([]int, len(parts))
	for i, s := range parts {
		ids[i], _ = strconv.Atoi(s)
	}
	construct := ids[1] == 1

	var this *value
	if ids[0] != 0 {
		this = c.adopt(ids[0])
	}
	args := make([]core.Value, len(ids)-2)
	for i, id := range ids[2:] {
		args[i] = c.adopt(id)
	}

	if construct {
		if this == nil {
			return -c.newError(core.ErrorKindTypeError, "Illegal constructor receiver")
		}
		fields := 0
		if t.instance != nil {
			fields = t.instance.fields
		}
		sid := c.nextSlot
		c.nextSlot++
		c.slots[sid] = &slotEntry{fields: make([]any, fields), tmpl: t}
		c.evalf("__njs.setSlot(%d, %d)", this.n, sid)
	} else if t.sig != nil && !t.sig.accepts(this) {
		return -c.newError(core.ErrorKindTypeError, "Illegal invocation")
	}
	if t.cb == nil {
		return 0
	}

	info := &callbackInfo{c: c, args: args, construct: construct, data: t.data}
	if this != nil {
		info.this = this
	}
	out := t.cb(info)
	return c.result(out)
}

// result converts a callback's outcome into what the glue's take expects.
func (c *Context) result(out core.Value) int {
	if c.pending != 0 {
		p := c.pending
		c.pending = 0
		return -p
	}
	if out == nil {
		return 0
	}
	return c.dup(c.id(out))
}

// getter is called by accessor glue with the receiver's id.
func (c *Context) getter(aid, this int) int {
	acc := c.accessors[aid-1]
	sc := c.OpenScope()
	defer sc.Close()

	recv, ok := c.accessorReceiver(acc, this)
	if !ok {
		return -c.newError(core.ErrorKindTypeError, "Illegal invocation")
	}
	return c.result(acc.get(&accessorInfo{c: c, this: recv, data: acc.data}))
}

// setter is called by accessor glue with the receiver's and the assigned
// value's ids.
func (c *Context) setter(aid, this, v int) int {
	acc := c.accessors[aid-1]
	sc := c.OpenScope()
	defer sc.Close()

	val := c.adopt(v)
	recv, ok := c.accessorReceiver(acc, this)
	if !ok {
		return -c.newError(core.ErrorKindTypeError, "Illegal invocation")
	}
	acc.set(&accessorInfo{c: c, this: recv, data: acc.data}, val)
	return c.result(nil)
}

func (c *Context) accessorReceiver(acc *accessor, id int) (*value, bool) {
	recv := c.adopt(id)
	if recv.Object() == nil {
		recv = nil
	}
	if acc.sig != nil && !acc.sig.accepts(recv) {
		return nil, false
	}
	return recv, true
}

type callbackInfo struct {
	c         *Context
	args      []core.Value
	this      *value
	construct bool
	data      int
}

func (i *callbackInfo) Context() core.Context { return i.c }
func (i *callbackInfo) Args() []core.Value    { return i.args }
func (i *callbackInfo) IsConstructCall() bool { return i.construct }
func (i *callbackInfo) Data() core.Value      { return i.c.adopt(i.c.dup(i.data)) }

func (i *callbackInfo) This() core.Object {
	if i.this == nil {
		return nil
	}
	return i.this
}

type accessorInfo struct {
	c    *Context
	this *value
	data int
}

func (i *accessorInfo) Context() core.Context { return i.c }
func (i *accessorInfo) Data() core.Value      { return i.c.adopt(i.c.dup(i.data)) }

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

// accepts reports whether v was instantiated by the signature's template
// or a template inheriting from it.
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
		panic(fmt.Sprintf("quickjs: foreign function template %T", t))
	}
	return ft
}

func asSignature(s core.Signature) *signature {
	if s == nil {
		return nil
	}
	sig, ok := s.(*signature)
	if !ok {
		panic(fmt.Sprintf("quickjs: foreign signature %T", s))
	}
	return sig
}
