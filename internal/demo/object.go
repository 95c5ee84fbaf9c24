package demo

import (
	"github.com/cryguy/njs"
	log "github.com/sirupsen/logrus"
)

// ObjectTag identifies wrapped *Object values.
const ObjectTag njs.ObjectTag = 0xFF

// Object is a pair of integers exposed to scripts as class Object.
type Object struct {
	njs.WrapData
	A, B int32
}

func NewObject(a, b int32) *Object {
	log.WithFields(log.Fields{"a": a, "b": b}).Trace("demo: Object created")
	return &Object{A: a, B: b}
}

// Add adds n to both members.
func (o *Object) Add(n int32) {
	o.A += n
	o.B += n
}

func (o *Object) Equals(other *Object) bool { return o.A == other.A && o.B == other.B }

func (o *Object) Destroy() {
	log.WithFields(log.Fields{"a": o.A, "b": o.B}).Trace("demo: Object destroyed")
}

func StaticMul(a, b int32) int32 { return a * b }

// ObjectClass binds Object:
//
//	new Object(a, b)    both Int32
//	obj.a               read/write
//	obj.b               read-only
//	obj.add(n)          returns obj
//	obj.equals(other)   compares with another Object
//	Object.staticMul(a, b)
var ObjectClass = &njs.Class{
	Name:      "Object",
	Tag:       ObjectTag,
	Construct: constructObject,
	Items: []njs.BindingItem{
		njs.Getter[*Object]("a", func(ctx *njs.GetPropertyContext, self *Object) njs.Result {
			return ctx.ReturnValue(self.A)
		}),
		njs.Setter[*Object]("a", func(ctx *njs.SetPropertyContext, self *Object) njs.Result {
			var a int32
			if r := ctx.UnpackValue(&a); r != njs.ResultOk {
				return r
			}
			self.A = a
			return njs.ResultOk
		}),
		njs.Getter[*Object]("b", func(ctx *njs.GetPropertyContext, self *Object) njs.Result {
			return ctx.ReturnValue(self.B)
		}),
		njs.Method[*Object]("add", objectAdd),
		njs.Method[*Object]("equals", objectEquals),
		njs.Static("staticMul", objectStaticMul),
	},
}

func constructObject(ctx *njs.ConstructCallContext) njs.Result {
	var a, b int32
	if r := ctx.VerifyArgumentsLength(2); r != njs.ResultOk {
		return r
	}
	if r := ctx.UnpackArgument(0, &a); r != njs.ResultOk {
		return r
	}
	if r := ctx.UnpackArgument(1, &b); r != njs.ResultOk {
		return r
	}
	return ctx.ReturnNew(NewObject(a, b))
}

func objectAdd(ctx *njs.FunctionCallContext, self *Object) njs.Result {
	var n int32
	if r := ctx.VerifyArgumentsLength(1); r != njs.ResultOk {
		return r
	}
	if r := ctx.UnpackArgument(0, &n); r != njs.ResultOk {
		return r
	}
	self.Add(n)
	return ctx.ReturnValue(ctx.This())
}

func objectEquals(ctx *njs.FunctionCallContext, self *Object) njs.Result {
	if r := ctx.VerifyArgumentsLength(1); r != njs.ResultOk {
		return r
	}
	other, r := njs.UnwrapArgument[*Object](ctx, 0, ObjectTag)
	if r != njs.ResultOk {
		return r
	}
	return ctx.ReturnValue(self.Equals(other))
}

func objectStaticMul(ctx *njs.FunctionCallContext) njs.Result {
	var a, b int32
	if r := ctx.VerifyArgumentsLength(2); r != njs.ResultOk {
		return r
	}
	if r := ctx.UnpackArgument(0, &a); r != njs.ResultOk {
		return r
	}
	if r := ctx.UnpackArgument(1, &b); r != njs.ResultOk {
		return r
	}
	return ctx.ReturnValue(StaticMul(a, b))
}
