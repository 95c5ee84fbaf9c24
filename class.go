package njs

import (
	"fmt"

	"github.com/cryguy/njs/internal/core"
)

// ConstructFunc implements a class constructor. It normally ends with
// ctx.ReturnNew(native).
type ConstructFunc func(ctx *ConstructCallContext) Result

// Class declares a wrapped native type.
type Class struct {
	Name string
	Tag  ObjectTag

	// Construct is nil for abstract classes, whose constructor always
	// throws.
	Construct ConstructFunc

	// Super must be initialized in the same Env before this class.
	Super *Class

	Items []BindingItem
}

func (c *Class) IsAbstract() bool { return c.Construct == nil }

func (c *Class) constructor(r *Reporter) core.FunctionCallback {
	return func(info core.CallbackInfo) core.Value {
		ctx := &ConstructCallContext{class: c}
		ctx.info = info
		ctx.init(info.Context(), r)

		var res Result
		switch {
		case !info.IsConstructCall():
			res = ctx.InvalidConstructCall(c.Name)
		case c.Construct == nil:
			res = ctx.AbstractConstructCall(c.Name)
		default:
			res = c.Construct(ctx)
		}
		ctx.handleResult(res)
		return ctx.ret
	}
}

// InitClass registers c in env and installs its constructor on exports
// under c.Name. Instances get two internal fields: the native and its tag.
func InitClass(env *Env, exports Object, c *Class) (core.FunctionTemplate, error) {
	if _, ok := env.classes[c]; ok {
		return nil, fmt.Errorf("njs: class %s already initialized", c.Name)
	}
	ctx := env.Context

	tmpl := ctx.NewFunctionTemplate(c.constructor(env.Reporter), nil, nil)
	if c.Super != nil {
		super, ok := env.classes[c.Super]
		if !ok {
			return nil, fmt.Errorf("njs: class %s: superclass %s not initialized", c.Name, c.Super.Name)
		}
		tmpl.Inherit(super)
	}
	tmpl.SetClassName(c.Name)
	tmpl.InstanceTemplate().SetInternalFieldCount(2)

	bindItems(ctx, tmpl, exports, c.Items, env.Reporter)

	fn, err := tmpl.GetFunction()
	if err != nil {
		return nil, fmt.Errorf("njs: class %s: %w", c.Name, err)
	}
	if err := exports.o.Set(c.Name, fn); err != nil {
		return nil, fmt.Errorf("njs: class %s: %w", c.Name, err)
	}
	env.addClass(c, tmpl)
	return tmpl, nil
}
