package refvm

import (
	"github.com/cryguy/njs/internal/core"
)

// local is a handle registered in the scope that was innermost when it
// was created. It implements core.Object as well; Object() only hands it
// out as one when it holds an object.
type local struct {
	vm  *VM
	sc  *scope
	val jsval
}

var _ core.Object = (*local)(nil)

func (vm *VM) newLocal(v jsval) *local {
	sc := vm.scopes[len(vm.scopes)-1]
	l := &local{vm: vm, sc: sc, val: v}
	sc.locals = append(sc.locals, l)
	return l
}

func (l *local) get() jsval {
	if l.sc.closed {
		panic("refvm: local handle used after its scope was closed")
	}
	return l.val
}

func (l *local) obj() *object {
	v := l.get()
	if v.o == nil {
		panic("refvm: value is not an object")
	}
	return v.o
}

func (l *local) Kind() core.Kind { return l.get().kind }

func (l *local) IsInt32() bool {
	v := l.get()
	return v.kind == core.KindNumber && isInt32(v.n)
}

func (l *local) IsUint32() bool {
	v := l.get()
	return v.kind == core.KindNumber && isUint32(v.n)
}

func (l *local) Bool() bool     { return toBoolean(l.get()) }
func (l *local) Float() float64 { return toNumber(l.get()) }
func (l *local) String() string { return toString(l.get()) }

func (l *local) Object() core.Object {
	if l.get().o == nil {
		return nil
	}
	return l
}

func (l *local) StrictEquals(other core.Value) bool {
	return strictEquals(l.get(), l.vm.val(other))
}

func (l *local) Get(key string) (core.Value, error) {
	v := l.get()
	out, err := l.vm.getProp(l.obj(), v, key)
	if err != nil {
		return nil, l.vm.exception(err)
	}
	return l.vm.newLocal(out), nil
}

func (l *local) Set(key string, v core.Value) error {
	if err := l.vm.setProp(l.obj(), key, l.vm.val(v)); err != nil {
		return l.vm.exception(err)
	}
	return nil
}

func (l *local) InternalFieldCount() int { return len(l.obj().slots) }

func (l *local) InternalField(i int) any {
	o := l.obj()
	if i < 0 || i >= len(o.slots) {
		panic("refvm: internal field index out of range")
	}
	return o.slots[i]
}

func (l *local) SetInternalField(i int, v any) {
	o := l.obj()
	if i < 0 || i >= len(o.slots) {
		panic("refvm: internal field index out of range")
	}
	o.slots[i] = v
}

type scope struct {
	vm     *VM
	locals []*local
	closed bool
}

func (vm *VM) OpenScope() core.Scope {
	sc := &scope{vm: vm}
	vm.scopes = append(vm.scopes, sc)
	return sc
}

// Close invalidates every local created in the scope. Scopes opened after
// this one and still open are closed with it.
func (s *scope) Close() {
	if s.closed {
		return
	}
	vm := s.vm
	for i := len(vm.scopes) - 1; i > 0; i-- {
		sc := vm.scopes[i]
		sc.closed = true
		sc.locals = nil
		vm.scopes = vm.scopes[:i]
		if sc == s {
			return
		}
	}
}

type persistent struct {
	vm   *VM
	val  jsval
	set  bool
	weak bool
	cb   func()
}

var _ core.Persistent = (*persistent)(nil)

func (vm *VM) NewPersistent(v core.Value) core.Persistent {
	p := &persistent{vm: vm}
	if v != nil {
		p.val = vm.val(v)
		p.set = true
		vm.persistents[p] = struct{}{}
	}
	return p
}

func (p *persistent) IsEmpty() bool { return !p.set }

func (p *persistent) Reset() {
	if !p.set {
		return
	}
	delete(p.vm.persistents, p)
	p.val = undefinedVal
	p.set = false
	p.weak = false
	p.cb = nil
}

func (p *persistent) Local() core.Value {
	if !p.set {
		return nil
	}
	return p.vm.newLocal(p.val)
}

func (p *persistent) SetWeak(cb func()) {
	if !p.set {
		return
	}
	p.weak = true
	p.cb = cb
}

func (p *persistent) ClearWeak() {
	p.weak = false
	p.cb = nil
}

func (p *persistent) IsWeak() bool { return p.weak }
