//go:build v8

package v8engine

import (
	"github.com/cryguy/njs/internal/core"
	v8 "github.com/tommie/v8go"
)

// value is a handle to a V8 value. It implements core.Object as well; the
// object methods are only called on values whose Object() is non-nil.
type value struct {
	c *Context
	v *v8.Value
}

func (v *value) Kind() core.Kind {
	switch {
	case v.v.IsUndefined():
		return core.KindUndefined
	case v.v.IsNull():
		return core.KindNull
	case v.v.IsBoolean():
		return core.KindBoolean
	case v.v.IsNumber():
		return core.KindNumber
	case v.v.IsString():
		return core.KindString
	case v.v.IsSymbol():
		return core.KindSymbol
	case v.v.IsFunction():
		return core.KindFunction
	}
	return core.KindObject
}

func (v *value) IsInt32() bool  { return v.v.IsInt32() }
func (v *value) IsUint32() bool { return v.v.IsUint32() }
func (v *value) Bool() bool     { return v.v.Boolean() }
func (v *value) Float() float64 { return v.v.Number() }
func (v *value) String() string { return v.v.String() }

func (v *value) Object() core.Object {
	if !v.v.IsObject() {
		return nil
	}
	return v
}

func (v *value) StrictEquals(other core.Value) bool {
	o := v.c.raw(other)
	if v.v.IsNumber() && o.IsNumber() {
		return v.v.Number() == o.Number()
	}
	return v.v.SameValue(o)
}

func (v *value) Get(key string) (core.Value, error) {
	out, err := v.c.callGlue("get", v.v, v.c.newValue(key))
	if err != nil {
		return nil, v.c.exception(err)
	}
	return v.c.wrap(out), nil
}

// Set assigns through strict-mode glue so that writes to getter-only
// accessors and read-only properties throw.
func (v *value) Set(key string, val core.Value) error {
	if _, err := v.c.callGlue("set", v.v, v.c.newValue(key), v.c.raw(val)); err != nil {
		return v.c.exception(err)
	}
	return nil
}

// slot returns the emulated internal fields of an instance created by a
// class template, or nil.
func (v *value) slot() *slotEntry {
	obj, err := v.v.AsObject()
	if err != nil || obj.InternalFieldCount() < 1 {
		return nil
	}
	id := obj.GetInternalField(0)
	if id == nil || !id.IsUint32() {
		return nil
	}
	return v.c.slots[id.Uint32()]
}

func (v *value) InternalFieldCount() int {
	if s := v.slot(); s != nil {
		return len(s.fields)
	}
	return 0
}

func (v *value) InternalField(i int) any {
	s := v.slot()
	if s == nil || i < 0 || i >= len(s.fields) {
		return nil
	}
	return s.fields[i]
}

func (v *value) SetInternalField(i int, x any) {
	s := v.slot()
	if s == nil || i < 0 || i >= len(s.fields) {
		panic("v8engine: internal field index out of range")
	}
	s.fields[i] = x
}

type scope struct{}

func (scope) Close() {}

// persistent keeps a value reachable from Go. Weak persistents are only
// collected when the context closes.
type persistent struct {
	c    *Context
	v    *v8.Value
	weak bool
	cb   func()
}

func (p *persistent) IsEmpty() bool { return p.v == nil }

func (p *persistent) Reset() {
	p.v = nil
	p.weak, p.cb = false, nil
	delete(p.c.persistents, p)
}

func (p *persistent) Local() core.Value {
	if p.v == nil {
		return nil
	}
	return p.c.wrap(p.v)
}

func (p *persistent) SetWeak(cb func()) {
	p.weak, p.cb = true, cb
}

func (p *persistent) ClearWeak() {
	p.weak, p.cb = false, nil
}

func (p *persistent) IsWeak() bool { return p.weak }
