package njs

import (
	"fmt"

	"github.com/cryguy/njs/internal/core"
)

// BindingKind says how a BindingItem is installed on a class.
type BindingKind uint8

const (
	BindStatic BindingKind = iota
	BindMethod
	BindGetter
	BindSetter
)

func (k BindingKind) String() string {
	switch k {
	case BindStatic:
		return "static"
	case BindMethod:
		return "method"
	case BindGetter:
		return "getter"
	case BindSetter:
		return "setter"
	}
	return fmt.Sprintf("BindingKind(%d)", uint8(k))
}

// BindingItem is one entry of a class binding table. Build items with
// Static, Method, Getter and Setter; a getter and setter for the same
// property must be adjacent.
type BindingItem struct {
	Kind BindingKind
	Name string

	call func(r *Reporter) core.FunctionCallback
	get  func(r *Reporter) core.GetterCallback
	set  func(r *Reporter) core.SetterCallback
}

// StaticFunc implements a function installed on the class constructor.
type StaticFunc func(ctx *FunctionCallContext) Result

// MethodFunc implements a prototype method of a class wrapping T.
type MethodFunc[T Wrapped] func(ctx *FunctionCallContext, self T) Result

// GetterFunc and SetterFunc implement a prototype accessor.
type GetterFunc[T Wrapped] func(ctx *GetPropertyContext, self T) Result
type SetterFunc[T Wrapped] func(ctx *SetPropertyContext, self T) Result

// Static declares a function on the class constructor.
func Static(name string, fn StaticFunc) BindingItem {
	return BindingItem{Kind: BindStatic, Name: name, call: func(r *Reporter) core.FunctionCallback {
		return func(info core.CallbackInfo) core.Value {
			ctx := newFunctionCallContext(info, r)
			ctx.handleResult(fn(ctx))
			return ctx.ret
		}
	}}
}

// Method declares a prototype method. The receiver is guaranteed by the
// class signature, so it is unwrapped without a tag check.
func Method[T Wrapped](name string, fn MethodFunc[T]) BindingItem {
	return BindingItem{Kind: BindMethod, Name: name, call: func(r *Reporter) core.FunctionCallback {
		return func(info core.CallbackInfo) core.Value {
			ctx := newFunctionCallContext(info, r)
			self, ok := UnwrapUnsafe[T](ctx.This())
			if !ok {
				ctx.handleResult(ResultInvalidState)
				return nil
			}
			ctx.handleResult(fn(ctx, self))
			return ctx.ret
		}
	}}
}

// Getter declares the read side of a prototype accessor.
func Getter[T Wrapped](name string, fn GetterFunc[T]) BindingItem {
	return BindingItem{Kind: BindGetter, Name: name, get: func(r *Reporter) core.GetterCallback {
		return func(info core.AccessorInfo) core.Value {
			ctx := &GetPropertyContext{info: info}
			ctx.init(info.Context(), r)
			self, ok := UnwrapUnsafe[T](ctx.This())
			if !ok {
				ctx.handleResult(ResultInvalidState)
				return nil
			}
			ctx.handleResult(fn(ctx, self))
			return ctx.ret
		}
	}}
}

// Setter declares the write side of a prototype accessor. It must be
// adjacent to the Getter of the same name.
func Setter[T Wrapped](name string, fn SetterFunc[T]) BindingItem {
	return BindingItem{Kind: BindSetter, Name: name, set: func(r *Reporter) core.SetterCallback {
		return func(info core.AccessorInfo, v core.Value) {
			ctx := &SetPropertyContext{info: info, value: v}
			ctx.init(info.Context(), r)
			self, ok := UnwrapUnsafe[T](ctx.This())
			if !ok {
				ctx.handleResult(ResultInvalidState)
				return
			}
			ctx.handleResult(fn(ctx, self))
		}
	}}
}

func pairs(a, b BindingKind) bool {
	return (a == BindGetter && b == BindSetter) || (a == BindSetter && b == BindGetter)
}

// bindItems installs items on tmpl in order. Call and accessor signatures
// are created on first use and shared by the remaining items.
func bindItems(ctx core.Context, tmpl core.FunctionTemplate, exports Object, items []BindingItem, r *Reporter) {
	var sig, accessorSig core.Signature

	for i := 0; i < len(items); i++ {
		item := items[i]
		switch item.Kind {
		case BindStatic:
			var data core.Value
			if exports.IsValid() {
				data = exports.o
			}
			fn := ctx.NewFunctionTemplate(item.call(r), data, nil)
			fn.SetClassName(item.Name)
			tmpl.Set(item.Name, fn, core.AttrNone)

		case BindMethod:
			if sig == nil {
				sig = ctx.NewSignature(tmpl)
			}
			fn := ctx.NewFunctionTemplate(item.call(r), nil, sig)
			fn.SetClassName(item.Name)
			tmpl.PrototypeTemplate().Set(item.Name, fn, core.AttrNone)

		case BindGetter, BindSetter:
			getter, setter := item, BindingItem{}
			if i+1 < len(items) && items[i+1].Name == item.Name && pairs(item.Kind, items[i+1].Kind) {
				i++
				if item.Kind == BindGetter {
					setter = items[i]
				} else {
					getter, setter = items[i], item
				}
			} else if item.Kind == BindSetter {
				panic(&AssertionError{Msg: fmt.Sprintf("setter %q has no adjacent getter", item.Name)})
			}

			attrs := core.AttrDontEnum | core.AttrDontDelete
			var set core.SetterCallback
			if setter.set != nil {
				set = setter.set(r)
			} else {
				attrs |= core.AttrReadOnly
			}
			if accessorSig == nil {
				accessorSig = ctx.NewAccessorSignature(tmpl)
			}
			tmpl.PrototypeTemplate().SetAccessor(item.Name, getter.get(r), set, nil, attrs, accessorSig)

		default:
			panic(&AssertionError{Msg: fmt.Sprintf("binding %q has unknown kind %s", item.Name, item.Kind)})
		}
	}
}
