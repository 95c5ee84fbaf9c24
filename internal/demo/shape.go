package demo

import (
	"fmt"
	"math"

	"github.com/cryguy/njs"
)

const (
	ShapeTag  njs.ObjectTag = 0x100
	CircleTag njs.ObjectTag = 0x101
	RectTag   njs.ObjectTag = 0x102
)

// Shape is the native side of the abstract Shape class. Methods bound on
// Shape run against any subclass instance.
type Shape interface {
	njs.Wrapped
	Kind() string
	Area() float64
}

type Circle struct {
	njs.WrapData
	Radius float64
}

func (c *Circle) Kind() string   { return "circle" }
func (c *Circle) Area() float64  { return math.Pi * c.Radius * c.Radius }
func (c *Circle) String() string { return fmt.Sprintf("circle(r=%g)", c.Radius) }

type Rect struct {
	njs.WrapData
	W, H float64
}

func (r *Rect) Kind() string   { return "rect" }
func (r *Rect) Area() float64  { return r.W * r.H }
func (r *Rect) String() string { return fmt.Sprintf("rect(%gx%g)", r.W, r.H) }

var nonNegative = njs.Range[float64]{Min: 0, Max: math.MaxFloat64}

// ShapeClass cannot be instantiated; Circle and Rect inherit its members.
var ShapeClass = &njs.Class{
	Name: "Shape",
	Tag:  ShapeTag,
	Items: []njs.BindingItem{
		njs.Getter[Shape]("kind", func(ctx *njs.GetPropertyContext, self Shape) njs.Result {
			return ctx.ReturnValue(self.Kind())
		}),
		njs.Method[Shape]("area", func(ctx *njs.FunctionCallContext, self Shape) njs.Result {
			if r := ctx.VerifyArgumentsLength(0); r != njs.ResultOk {
				return r
			}
			return ctx.ReturnValue(self.Area())
		}),
		njs.Method[Shape]("toString", func(ctx *njs.FunctionCallContext, self Shape) njs.Result {
			return ctx.ReturnValue(fmt.Sprint(self))
		}),
	},
}

var CircleClass = &njs.Class{
	Name:  "Circle",
	Tag:   CircleTag,
	Super: ShapeClass,
	Construct: func(ctx *njs.ConstructCallContext) njs.Result {
		var r float64
		if res := ctx.VerifyArgumentsLength(1); res != njs.ResultOk {
			return res
		}
		if res := unpackLength(&ctx.FunctionCallContext, 0, &r); res != njs.ResultOk {
			return res
		}
		return ctx.ReturnNew(&Circle{Radius: r})
	},
	Items: []njs.BindingItem{
		njs.Getter[*Circle]("radius", func(ctx *njs.GetPropertyContext, self *Circle) njs.Result {
			return ctx.ReturnValue(self.Radius)
		}),
	},
}

var RectClass = &njs.Class{
	Name:  "Rect",
	Tag:   RectTag,
	Super: ShapeClass,
	Construct: func(ctx *njs.ConstructCallContext) njs.Result {
		var w, h float64
		if res := ctx.VerifyArgumentsRange(1, 2); res != njs.ResultOk {
			return res
		}
		if res := unpackLength(&ctx.FunctionCallContext, 0, &w); res != njs.ResultOk {
			return res
		}
		h = w
		if ctx.ArgumentsLength() == 2 {
			if res := unpackLength(&ctx.FunctionCallContext, 1, &h); res != njs.ResultOk {
				return res
			}
		}
		return ctx.ReturnNew(&Rect{W: w, H: h})
	},
	Items: []njs.BindingItem{
		njs.Getter[*Rect]("width", func(ctx *njs.GetPropertyContext, self *Rect) njs.Result {
			return ctx.ReturnValue(self.W)
		}),
		njs.Getter[*Rect]("height", func(ctx *njs.GetPropertyContext, self *Rect) njs.Result {
			return ctx.ReturnValue(self.H)
		}),
	},
}

func unpackLength(ctx *njs.FunctionCallContext, i int, out *float64) njs.Result {
	if r := ctx.UnpackArgument(i, out); r != njs.ResultOk {
		return ctx.InvalidArgumentTypeID(i, njs.TypeNumber)
	}
	if nonNegative.Validate(*out) != njs.ResultOk {
		return ctx.InvalidArgumentCustom(i, "Expected a non-negative length")
	}
	return njs.ResultOk
}
