package refvm

import (
	"fmt"

	"github.com/cryguy/njs/internal/core"
)

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
	acc := &accessor{get: get, set: set, sig: asSignature(sig)}
	if l, ok := data.(*local); ok && l != nil {
		acc.data = l.get()
	}
	t.props = append(t.props, templateProp{name: name, acc: acc, attrs: attrs})
}

type functionTemplate struct {
	vm        *VM
	cb        core.FunctionCallback
	data      jsval
	sig       *signature
	className string
	parent    *functionTemplate
	instance  *objectTemplate
	proto     *objectTemplate
	statics   []templateProp
	fn        *object
}

var _ core.FunctionTemplate = (*functionTemplate)(nil)

func (vm *VM) NewFunctionTemplate(cb core.FunctionCallback, data core.Value, sig core.Signature) core.FunctionTemplate {
	t := &functionTemplate{vm: vm, cb: cb, data: undefinedVal, sig: asSignature(sig)}
	if data != nil {
		t.data = vm.val(data)
	}
	vm.templates = append(vm.templates, t)
	return t
}

func (vm *VM) NewSignature(receiver core.FunctionTemplate) core.Signature {
	vm.signatures++
	return &signature{tmpl: asTemplate(receiver)}
}

func (vm *VM) NewAccessorSignature(receiver core.FunctionTemplate) core.Signature {
	vm.signatures++
	return &signature{tmpl: asTemplate(receiver), accessor: true}
}

func (t *functionTemplate) SetClassName(name string) { t.className = name }

func (t *functionTemplate) Inherit(parent core.FunctionTemplate) {
	if t.fn != nil {
		panic("refvm: Inherit after GetFunction")
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
	fo, err := t.function()
	if err != nil {
		return nil, err
	}
	return t.vm.newLocal(objectVal(fo)), nil
}

// function instantiates the template once: the function object, its
// prototype chained to the parent's prototype, prototype members and
// statics.
func (t *functionTemplate) function() (*object, error) {
	if t.fn != nil {
		return t.fn, nil
	}
	vm := t.vm
	fo := vm.alloc("Function", vm.functionProto)
	fo.fn = t
	fo.define("name", stringVal(t.className), core.AttrReadOnly|core.AttrDontEnum)

	proto := vm.alloc(t.className, vm.objectProto)
	if t.parent != nil {
		pf, err := t.parent.function()
		if err != nil {
			return nil, err
		}
		fo.proto = pf
		if pp, ok := pf.props["prototype"]; ok && pp.value.o != nil {
			proto.proto = pp.value.o
		}
	}
	proto.define("constructor", objectVal(fo), core.AttrDontEnum)
	fo.define("prototype", objectVal(proto), core.AttrDontEnum|core.AttrDontDelete)
	t.fn = fo

	if t.proto != nil {
		if err := install(proto, t.proto.props); err != nil {
			return nil, err
		}
	}
	if err := install(fo, t.statics); err != nil {
		return nil, err
	}
	return fo, nil
}

func install(o *object, props []templateProp) error {
	for _, p := range props {
		if p.acc != nil {
			o.defineAccessor(p.name, p.acc, p.attrs)
			continue
		}
		if p.fn.className == "" {
			p.fn.className = p.name
		}
		f, err := p.fn.function()
		if err != nil {
			return fmt.Errorf("installing %q: %w", p.name, err)
		}
		o.define(p.name, objectVal(f), p.attrs)
	}
	return nil
}

type signature struct {
	tmpl     *functionTemplate
	accessor bool
}

func (s *signature) Receiver() core.FunctionTemplate { return s.tmpl }

// accepts reports whether o was instantiated by the signature's template
// or a template inheriting from it.
func (s *signature) accepts(o *object) bool {
	if o == nil {
		return false
	}
	for t := o.tmpl; t != nil; t = t.parent {
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
		panic(fmt.Sprintf("refvm: foreign function template %T", t))
	}
	return ft
}

func asSignature(s core.Signature) *signature {
	if s == nil {
		return nil
	}
	sig, ok := s.(*signature)
	if !ok {
		panic(fmt.Sprintf("refvm: foreign signature %T", s))
	}
	return sig
}
