package refvm

import (
	"github.com/cryguy/njs/internal/core"
)

type object struct {
	class   string
	proto   *object
	props   map[string]*property
	keys    []string
	slots   []any
	fn      *functionTemplate
	tmpl    *functionTemplate
	errKind core.ErrorKind
	marked  bool
}

type property struct {
	value jsval
	acc   *accessor
	attrs core.PropertyAttribute
}

type accessor struct {
	get  core.GetterCallback
	set  core.SetterCallback
	data jsval
	sig  *signature
}

func (vm *VM) alloc(class string, proto *object) *object {
	o := &object{class: class, proto: proto, props: make(map[string]*property)}
	vm.heap[o] = struct{}{}
	return o
}

func (o *object) define(key string, v jsval, attrs core.PropertyAttribute) {
	if p, ok := o.props[key]; ok {
		p.value, p.acc, p.attrs = v, nil, attrs
		return
	}
	o.props[key] = &property{value: v, attrs: attrs}
	o.keys = append(o.keys, key)
}

func (o *object) defineAccessor(key string, acc *accessor, attrs core.PropertyAttribute) {
	if _, ok := o.props[key]; !ok {
		o.keys = append(o.keys, key)
	}
	o.props[key] = &property{acc: acc, attrs: attrs}
}

func (o *object) className() string {
	if o.fn != nil {
		return o.fn.className
	}
	return o.class
}

// enumerableKeys returns the enumerable own property names in insertion
// order.
func (o *object) enumerableKeys() []string {
	var out []string
	for _, k := range o.keys {
		if p := o.props[k]; p != nil && p.attrs&core.AttrDontEnum == 0 {
			out = append(out, k)
		}
	}
	return out
}

func (vm *VM) getProp(o *object, recv jsval, key string) (jsval, error) {
	for cur := o; cur != nil; cur = cur.proto {
		p, ok := cur.props[key]
		if !ok {
			continue
		}
		if p.acc == nil {
			return p.value, nil
		}
		if p.acc.get == nil {
			return undefinedVal, nil
		}
		if p.acc.sig != nil && !p.acc.sig.accepts(recv.o) {
			return undefinedVal, vm.throwType("Illegal invocation")
		}
		return vm.runGetter(p.acc, recv)
	}
	return undefinedVal, nil
}

func (vm *VM) setProp(o *object, key string, v jsval) error {
	for cur := o; cur != nil; cur = cur.proto {
		p, ok := cur.props[key]
		if !ok {
			continue
		}
		if p.acc != nil {
			if p.acc.set == nil {
				return vm.throwType("Cannot set property %s of #<%s> which has only a getter", key, o.className())
			}
			if p.acc.sig != nil && !p.acc.sig.accepts(o) {
				return vm.throwType("Illegal invocation")
			}
			return vm.runSetter(p.acc, objectVal(o), v)
		}
		if p.attrs&core.AttrReadOnly != 0 {
			return vm.throwType("Cannot assign to read only property '%s' of object '#<%s>'", key, o.className())
		}
		if cur == o {
			p.value = v
			return nil
		}
		break
	}
	o.define(key, v, core.AttrNone)
	return nil
}

// call invokes a template-backed function. Native callbacks run inside
// their own handle scope.
func (vm *VM) call(fnv jsval, recv jsval, args []jsval, construct bool) (jsval, error) {
	fo := fnv.o
	if fo == nil || fo.fn == nil {
		return undefinedVal, vm.throwType("%s is not a function", toString(fnv))
	}
	t := fo.fn

	var this *object
	if construct {
		var proto *object
		if p, ok := fo.props["prototype"]; ok && p.value.o != nil {
			proto = p.value.o
		} else {
			proto = vm.objectProto
		}
		this = vm.alloc(t.className, proto)
		this.slots = make([]any, t.InstanceTemplate().InternalFieldCount())
		this.tmpl = t
	} else {
		this = recv.o
		if t.sig != nil && !t.sig.accepts(this) {
			return undefinedVal, vm.throwType("Illegal invocation")
		}
	}
	if t.cb == nil {
		if construct {
			return objectVal(this), nil
		}
		return undefinedVal, nil
	}

	var out jsval
	func() {
		sc := vm.OpenScope()
		defer sc.Close()
		info := &callbackInfo{vm: vm, construct: construct, data: vm.newLocal(t.data)}
		if this != nil {
			info.this = vm.newLocal(objectVal(this))
		}
		info.args = make([]core.Value, len(args))
		for i, a := range args {
			info.args[i] = vm.newLocal(a)
		}
		if ret := t.cb(info); ret != nil {
			out = vm.val(ret)
		}
	}()

	if err := vm.takePending(); err != nil {
		return undefinedVal, err
	}
	if construct {
		if out.o != nil {
			return out, nil
		}
		return objectVal(this), nil
	}
	return out, nil
}

func (vm *VM) runGetter(acc *accessor, recv jsval) (jsval, error) {
	var out jsval
	func() {
		sc := vm.OpenScope()
		defer sc.Close()
		if ret := acc.get(vm.accessorInfo(acc, recv)); ret != nil {
			out = vm.val(ret)
		}
	}()
	if err := vm.takePending(); err != nil {
		return undefinedVal, err
	}
	return out, nil
}

func (vm *VM) runSetter(acc *accessor, recv jsval, v jsval) error {
	func() {
		sc := vm.OpenScope()
		defer sc.Close()
		acc.set(vm.accessorInfo(acc, recv), vm.newLocal(v))
	}()
	return vm.takePending()
}

func (vm *VM) accessorInfo(acc *accessor, recv jsval) *accessorInfo {
	info := &accessorInfo{vm: vm, data: vm.newLocal(acc.data)}
	if recv.o != nil {
		info.this = vm.newLocal(recv)
	}
	return info
}

type callbackInfo struct {
	vm        *VM
	args      []core.Value
	this      *local
	construct bool
	data      *local
}

func (i *callbackInfo) Context() core.Context { return i.vm }
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
	vm   *VM
	this *local
	data *local
}

func (i *accessorInfo) Context() core.Context { return i.vm }
func (i *accessorInfo) Data() core.Value      { return i.data }

func (i *accessorInfo) This() core.Object {
	if i.this == nil {
		return nil
	}
	return i.this
}

// Keys lists the enumerable own properties of obj, which must belong to
// this VM.
func (vm *VM) Keys(obj core.Object) []string {
	return vm.val(obj).o.enumerableKeys()
}

// HasOwn reports whether obj has an own property named key.
func (vm *VM) HasOwn(obj core.Object, key string) bool {
	_, ok := vm.val(obj).o.props[key]
	return ok
}

// Delete removes an own property. Non-deletable properties are a TypeError.
func (vm *VM) Delete(obj core.Object, key string) error {
	o := vm.val(obj).o
	p, ok := o.props[key]
	if !ok {
		return nil
	}
	if p.attrs&core.AttrDontDelete != 0 {
		return vm.exception(vm.throwType("Cannot delete property '%s' of #<%s>", key, o.className()))
	}
	delete(o.props, key)
	for i, k := range o.keys {
		if k == key {
			o.keys = append(o.keys[:i], o.keys[i+1:]...)
			break
		}
	}
	return nil
}

// PrototypeOf returns the prototype of obj, or nil.
func (vm *VM) PrototypeOf(obj core.Object) core.Object {
	o := vm.val(obj).o
	if o.proto == nil {
		return nil
	}
	return vm.newLocal(objectVal(o.proto))
}

// Describe returns the attributes of an own property and whether it is an
// accessor.
func (vm *VM) Describe(obj core.Object, key string) (attrs core.PropertyAttribute, isAccessor, ok bool) {
	p, found := vm.val(obj).o.props[key]
	if !found {
		return 0, false, false
	}
	return p.attrs, p.acc != nil, true
}

// HasSetter reports whether the own accessor property key has a setter.
func (vm *VM) HasSetter(obj core.Object, key string) bool {
	p, ok := vm.val(obj).o.props[key]
	return ok && p.acc != nil && p.acc.set != nil
}
