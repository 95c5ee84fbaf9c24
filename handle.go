package njs

import (
	"math"

	"github.com/cryguy/njs/internal/core"
)

// Value is a local handle. The zero Value is empty.
type Value struct {
	h core.Value
}

// ValueOf wraps a backend handle.
func ValueOf(h core.Value) Value { return Value{h: h} }

func (v Value) IsValid() bool { return v.h != nil }

// Reset empties the handle. It is idempotent.
func (v *Value) Reset() { v.h = nil }

// Handle returns the backend handle, nil when empty.
func (v Value) Handle() core.Value { return v.h }

func (v Value) kind() core.Kind {
	if v.h == nil {
		return core.KindUndefined
	}
	return v.h.Kind()
}

func (v Value) IsUndefined() bool       { return v.IsValid() && v.kind() == core.KindUndefined }
func (v Value) IsNull() bool            { return v.IsValid() && v.kind() == core.KindNull }
func (v Value) IsNullOrUndefined() bool { return v.IsNull() || v.IsUndefined() }
func (v Value) IsBoolean() bool         { return v.kind() == core.KindBoolean }
func (v Value) IsNumber() bool          { return v.kind() == core.KindNumber }
func (v Value) IsString() bool          { return v.kind() == core.KindString }
func (v Value) IsFunction() bool        { return v.kind() == core.KindFunction }

func (v Value) IsObject() bool {
	k := v.kind()
	return k == core.KindObject || k == core.KindFunction
}

func (v Value) IsInt32() bool  { return v.IsValid() && v.h.IsInt32() }
func (v Value) IsUint32() bool { return v.IsValid() && v.h.IsUint32() }

func (v Value) Bool() bool     { return v.IsValid() && v.h.Bool() }
func (v Value) Float() float64 {
	if !v.IsValid() {
		return math.NaN()
	}
	return v.h.Float()
}
func (v Value) String() string {
	if !v.IsValid() {
		return ""
	}
	return v.h.String()
}

// StrictEquals compares with JS === semantics. Empty handles are only
// equal to each other.
func (v Value) StrictEquals(other Value) bool {
	if !v.IsValid() || !other.IsValid() {
		return v.IsValid() == other.IsValid()
	}
	return v.h.StrictEquals(other.h)
}

// AsObject reinterprets v as an object handle. The caller must have
// checked IsObject; this is only verified when assertions are on.
func (v Value) AsObject() Object {
	if !AssertionsEnabled() {
		return Object{o: objectOf(v.h)}
	}
	check(v.IsObject(), "AsObject on a %s value", v.kind())
	return Object{o: v.h.Object()}
}

func objectOf(h core.Value) core.Object {
	if o, ok := h.(core.Object); ok {
		return o
	}
	if h == nil {
		return nil
	}
	return h.Object()
}

// Object is a local handle known to refer to an object.
type Object struct {
	o core.Object
}

// ObjectOf wraps a backend object handle.
func ObjectOf(o core.Object) Object { return Object{o: o} }

func (o Object) IsValid() bool       { return o.o != nil }
func (o *Object) Reset()             { o.o = nil }
func (o Object) Handle() core.Object { return o.o }

// Value returns o as a plain value handle.
func (o Object) Value() Value {
	if o.o == nil {
		return Value{}
	}
	return Value{h: o.o}
}

func (o Object) Get(key string) (Value, error) {
	v, err := o.o.Get(key)
	if err != nil {
		return Value{}, err
	}
	return Value{h: v}, nil
}

func (o Object) Set(key string, v Value) error { return o.o.Set(key, v.h) }

func (o Object) InternalFieldCount() int { return o.o.InternalFieldCount() }

// Persistent is a handle that survives handle scopes.
type Persistent struct {
	p core.Persistent
}

func (p Persistent) IsValid() bool { return p.p != nil && !p.p.IsEmpty() }

// Reset releases the target. It is idempotent.
func (p *Persistent) Reset() {
	if p.p != nil {
		p.p.Reset()
		p.p = nil
	}
}

// MakeLocal returns a new local handle to the target in the current scope.
func (p Persistent) MakeLocal() Value {
	if !p.IsValid() {
		return Value{}
	}
	return Value{h: p.p.Local()}
}

// MakePersistent stores v's target in p, replacing any prior target.
func (p *Persistent) MakePersistent(ctx core.Context, v Value) {
	p.Reset()
	if v.IsValid() {
		p.p = ctx.NewPersistent(v.h)
	}
}

func (p Persistent) isWeak() bool { return p.p != nil && p.p.IsWeak() }
