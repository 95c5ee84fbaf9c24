//go:build !v8

package quickjs

import (
	"math"

	"github.com/cryguy/njs/internal/core"
)

// value is a local handle: one id in the handle table, released when its
// scope closes. It implements core.Object as well; Object() only hands it
// out as one when it holds an object.
type value struct {
	c  *Context
	sc *scope
	n  int

	known bool
	kind  core.Kind
}

var _ core.Object = (*value)(nil)

// adopt registers an owned id in the innermost scope.
func (c *Context) adopt(id int) *value {
	sc := c.scopes[len(c.scopes)-1]
	v := &value{c: c, sc: sc, n: id}
	sc.ids = append(sc.ids, id)
	return v
}

func (v *value) handle() int {
	if v.sc.closed {
		panic("quickjs: local handle used after its scope was closed")
	}
	return v.n
}

var kindByName = map[string]core.Kind{
	"undefined": core.KindUndefined,
	"null":      core.KindNull,
	"boolean":   core.KindBoolean,
	"number":    core.KindNumber,
	"bigint":    core.KindNumber,
	"string":    core.KindString,
	"symbol":    core.KindSymbol,
	"object":    core.KindObject,
	"function":  core.KindFunction,
}

func (v *value) Kind() core.Kind {
	id := v.handle()
	if !v.known {
		v.kind = kindByName[v.c.evalString("__njs.kind(%d)", id)]
		v.known = true
	}
	return v.kind
}

func (v *value) IsInt32() bool {
	if v.Kind() != core.KindNumber {
		return false
	}
	f := v.Float()
	return f == math.Trunc(f) && f >= math.MinInt32 && f <= math.MaxInt32 && !(f == 0 && math.Signbit(f))
}

func (v *value) IsUint32() bool {
	if v.Kind() != core.KindNumber {
		return false
	}
	f := v.Float()
	return f == math.Trunc(f) && f >= 0 && f <= math.MaxUint32 && !(f == 0 && math.Signbit(f))
}

func (v *value) Bool() bool     { return v.c.evalBool("__njs.bool(%d)", v.handle()) }
func (v *value) Float() float64 { return v.c.evalFloat("__njs.num(%d)", v.handle()) }
func (v *value) String() string { return v.c.evalString("__njs.str(%d)", v.handle()) }

func (v *value) Object() core.Object {
	if k := v.Kind(); k != core.KindObject && k != core.KindFunction {
		return nil
	}
	return v
}

func (v *value) StrictEquals(other core.Value) bool {
	return v.c.evalBool("__njs.same(%d, %d)", v.handle(), v.c.id(other))
}

func (v *value) Get(key string) (core.Value, error) {
	return v.c.settle(v.c.evalInt("__njs.get(%d, %s)", v.handle(), stringLiteral(key)))
}

// Set assigns from strict-mode glue so that writes to getter-only
// accessors and read-only properties throw.
func (v *value) Set(key string, val core.Value) error {
	r := v.c.evalInt("__njs.set(%d, %s, %d)", v.handle(), stringLiteral(key), v.c.id(val))
	if r < 0 {
		return v.c.exception(-r)
	}
	return nil
}

// slot returns the emulated internal fields of an instance created by a
// class template, or nil.
func (v *value) slot() *slotEntry {
	sid := v.c.evalInt("__njs.slot(%d)", v.handle())
	if sid == 0 {
		return nil
	}
	return v.c.slots[sid]
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
		panic("quickjs: internal field index out of range")
	}
	s.fields[i] = x
}

type scope struct {
	c      *Context
	ids    []int
	closed bool
}

func (c *Context) OpenScope() core.Scope {
	sc := &scope{c: c}
	c.scopes = append(c.scopes, sc)
	return sc
}

// Close releases every id adopted in the scope. Scopes opened after this
// one and still open are closed with it.
func (s *scope) Close() {
	if s.closed {
		return
	}
	c := s.c
	for i := len(c.scopes) - 1; i > 0; i-- {
		sc := c.scopes[i]
		sc.closed = true
		c.drop(sc.ids...)
		sc.ids = nil
		c.scopes = c.scopes[:i]
		if sc == s {
			return
		}
	}
}

// persistent owns one id until Reset. A weak persistent's id is held
// through a WeakRef and a FinalizationRegistry entry reports its
// collection.
type persistent struct {
	c    *Context
	id   int
	weak bool
	cb   func()
	slot int
}

var _ core.Persistent = (*persistent)(nil)

func (p *persistent) IsEmpty() bool { return p.id == 0 }

func (p *persistent) Reset() {
	if p.id == 0 {
		return
	}
	delete(p.c.persistents, p.id)
	p.c.drop(p.id)
	p.id = 0
	p.weak, p.cb, p.slot = false, nil, 0
}

func (p *persistent) Local() core.Value {
	if p.id == 0 {
		return nil
	}
	return p.c.adopt(p.c.dup(p.id))
}

// SetWeak falls back to a strong hold when the target is not an object or
// the VM lacks WeakRef; the callback then runs at Close.
func (p *persistent) SetWeak(cb func()) {
	if p.id == 0 {
		return
	}
	if !p.weak {
		p.slot = p.c.evalInt("__njs.slot(%d)", p.id)
		p.c.evalBool("__njs.weaken(%d)", p.id)
	}
	p.weak, p.cb = true, cb
}

func (p *persistent) ClearWeak() {
	if p.weak {
		p.c.evalf("__njs.strengthen(%d)", p.id)
	}
	p.weak, p.cb, p.slot = false, nil, 0
}

func (p *persistent) IsWeak() bool { return p.weak }
