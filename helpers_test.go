package njs

import (
	"testing"

	"github.com/cryguy/njs/internal/core"
	"github.com/cryguy/njs/internal/refvm"
	"github.com/stretchr/testify/require"
)

const pointTag ObjectTag = 7

type point struct {
	WrapData
	x         int32
	destroyed *bool
}

func (p *point) Destroy() {
	if p.destroyed != nil {
		*p.destroyed = true
	}
}

// newPointClass returns a fresh class each call since an Env remembers
// classes by identity.
func newPointClass(destroyed *bool) *Class {
	return &Class{
		Name: "Point",
		Tag:  pointTag,
		Construct: func(ctx *ConstructCallContext) Result {
			var x int32
			if r := ctx.VerifyArgumentsLength(1); r != ResultOk {
				return r
			}
			if r := ctx.UnpackArgument(0, &x); r != ResultOk {
				return r
			}
			return ctx.ReturnNew(&point{x: x, destroyed: destroyed})
		},
		Items: []BindingItem{
			Getter[*point]("x", func(ctx *GetPropertyContext, self *point) Result {
				return ctx.ReturnValue(self.x)
			}),
			Setter[*point]("x", func(ctx *SetPropertyContext, self *point) Result {
				var x int32
				if r := ctx.UnpackValue(&x); r != ResultOk {
					return r
				}
				self.x = x
				return ResultOk
			}),
			Method[*point]("double", func(ctx *FunctionCallContext, self *point) Result {
				self.x *= 2
				return ctx.ReturnValue(self.x)
			}),
			Static("origin", func(ctx *FunctionCallContext) Result {
				return ctx.ReturnValue(int32(0))
			}),
		},
	}
}

type testEnv struct {
	vm      *refvm.VM
	env     *Env
	exports Object
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	vm := refvm.New()
	t.Cleanup(func() { _ = vm.Close() })
	return &testEnv{
		vm:      vm,
		env:     NewEnv(vm, nil, nil),
		exports: Object{o: vm.NewObject()},
	}
}

func (e *testEnv) num(f float64) Value { return Value{h: e.vm.NewNumber(f)} }
func (e *testEnv) str(s string) Value  { return Value{h: e.vm.NewString(s)} }

func (e *testEnv) initClass(t *testing.T, c *Class) Value {
	t.Helper()
	_, err := InitClass(e.env, e.exports, c)
	require.NoError(t, err)
	ctor, err := e.exports.Get(c.Name)
	require.NoError(t, err)
	require.True(t, ctor.IsFunction())
	return ctor
}

func (e *testEnv) construct(t *testing.T, ctor Value, args ...Value) Object {
	t.Helper()
	hs := make([]core.Value, len(args))
	for i, a := range args {
		hs[i] = a.h
	}
	out, err := e.vm.Construct(ctor.h, hs...)
	require.NoError(t, err)
	return Object{o: out.Object()}
}

func (e *testEnv) call(fn, recv Value, args ...Value) (Value, error) {
	hs := make([]core.Value, len(args))
	for i, a := range args {
		hs[i] = a.h
	}
	out, err := e.vm.Call(fn.h, recv.h, hs...)
	if err != nil {
		return Value{}, err
	}
	return Value{h: out}, nil
}

// staticFunction instantiates fn as a standalone function.
func (e *testEnv) staticFunction(t *testing.T, fn StaticFunc) Value {
	t.Helper()
	tmpl := e.vm.NewFunctionTemplate(Static("f", fn).call(e.env.Reporter), nil, nil)
	f, err := tmpl.GetFunction()
	require.NoError(t, err)
	return Value{h: f}
}
