package njs

import (
	"github.com/cryguy/njs/internal/core"
)

// ExecutionContext is the state shared by all binding call contexts: the
// VM context, the reporter used by the trampoline and the payload the
// binding fills before returning a non-ok Result. The payload helpers
// (ThrowTypeError, InvalidArgumentAt, ...) are promoted from Payload.
type ExecutionContext struct {
	Payload
	ctx      core.Context
	reporter *Reporter
}

func (c *ExecutionContext) init(ctx core.Context, r *Reporter) {
	c.ctx = ctx
	c.reporter = r
	c.Payload.Reset()
}

// Context returns the VM context the call runs in.
func (c *ExecutionContext) Context() core.Context { return c.ctx }

func (c *ExecutionContext) Undefined() Value          { return Value{h: c.ctx.Undefined()} }
func (c *ExecutionContext) Null() Value               { return Value{h: c.ctx.Null()} }
func (c *ExecutionContext) NewString(s string) Value  { return Value{h: c.ctx.NewString(s)} }
func (c *ExecutionContext) NewNumber(f float64) Value { return Value{h: c.ctx.NewNumber(f)} }
func (c *ExecutionContext) NewBoolean(b bool) Value   { return Value{h: c.ctx.NewBoolean(b)} }
func (c *ExecutionContext) NewObject() Object         { return Object{o: c.ctx.NewObject()} }

// Pack converts a Go value the same way ReturnValue does.
func (c *ExecutionContext) Pack(in any) (Value, Result) {
	h, r := packValue(c.ctx, in)
	if r != ResultOk {
		return Value{}, c.packFailed(r)
	}
	return Value{h: h}, ResultOk
}

// Throw passes an already constructed exception value through. It is the
// only way binding code raises an exception directly.
func (c *ExecutionContext) Throw(v Value) Result {
	c.ctx.Throw(v.h)
	return ResultBypass
}

// Call invokes fn with the given receiver. An exception thrown by fn is
// left pending and ResultBypass returned.
func (c *ExecutionContext) Call(fn Value, recv Value, args ...Value) (Value, Result) {
	hs := make([]core.Value, len(args))
	for i, a := range args {
		hs[i] = a.h
	}
	out, err := c.ctx.Call(fn.h, recv.h, hs...)
	if err != nil {
		if exc, ok := err.(*core.Exception); ok {
			if exc.Value != nil {
				c.ctx.Throw(exc.Value)
			} else {
				c.ctx.Throw(c.ctx.NewError(exc.Kind, exc.Message))
			}
			return Value{}, ResultBypass
		}
		return Value{}, c.ThrowError(err.Error())
	}
	return Value{h: out}, ResultOk
}

func (c *ExecutionContext) packFailed(r Result) Result {
	c.first = -1
	return r
}

func (c *ExecutionContext) handleResult(r Result) {
	if r != ResultOk {
		c.reporter.Report(c.ctx, r, &c.Payload)
	}
}

// FunctionCallContext is passed to static functions and methods.
type FunctionCallContext struct {
	ExecutionContext
	info core.CallbackInfo
	ret  core.Value
}

func newFunctionCallContext(info core.CallbackInfo, r *Reporter) *FunctionCallContext {
	c := &FunctionCallContext{info: info}
	c.init(info.Context(), r)
	return c
}

func (c *FunctionCallContext) ArgumentsLength() int { return len(c.info.Args()) }

// Argument returns argument i, or undefined past the end.
func (c *FunctionCallContext) Argument(i int) Value {
	args := c.info.Args()
	if i < 0 || i >= len(args) {
		return c.Undefined()
	}
	return Value{h: args[i]}
}

// This returns the receiver, empty when it is not an object.
func (c *FunctionCallContext) This() Value {
	if t := c.info.This(); t != nil {
		return Value{h: t}
	}
	return Value{}
}

func (c *FunctionCallContext) Data() Value           { return Value{h: c.info.Data()} }
func (c *FunctionCallContext) IsConstructCall() bool { return c.info.IsConstructCall() }

func (c *FunctionCallContext) VerifyArgumentsLength(n int) Result {
	if c.ArgumentsLength() != n {
		return c.InvalidArgumentsLength(n)
	}
	return ResultOk
}

func (c *FunctionCallContext) VerifyArgumentsRange(minArgs, maxArgs int) Result {
	if n := c.ArgumentsLength(); n < minArgs || n > maxArgs {
		return c.InvalidArgumentsRange(minArgs, maxArgs)
	}
	return ResultOk
}

// UnpackArgument converts argument i into out. See unpackValue for the
// supported targets.
func (c *FunctionCallContext) UnpackArgument(i int, out any) Result {
	if r := unpackValue(c.Argument(i).h, out); r != ResultOk {
		c.first = i
		return r
	}
	return ResultOk
}

// ReturnValue sets the call's return value.
func (c *FunctionCallContext) ReturnValue(v any) Result {
	h, r := packValue(c.ctx, v)
	if r != ResultOk {
		return c.packFailed(r)
	}
	c.ret = h
	return ResultOk
}

// UnwrapArgument unwraps argument i as a native of the given tag.
func UnwrapArgument[T Wrapped](c *FunctionCallContext, i int, tag ObjectTag) (T, Result) {
	native, r := UnwrapChecked[T](c.Argument(i), tag)
	if r != ResultOk {
		return native, c.InvalidArgumentAt(i)
	}
	return native, ResultOk
}

// ConstructCallContext is passed to class constructors.
type ConstructCallContext struct {
	FunctionCallContext
	class *Class
}

func (c *ConstructCallContext) ClassName() string { return c.class.Name }

// ReturnNew wraps native into the object under construction.
func (c *ConstructCallContext) ReturnNew(native Wrapped) Result {
	this := c.info.This()
	if this == nil {
		return c.InvalidConstructCall(c.class.Name)
	}
	if r := Wrap(c.ctx, Object{o: this}, native, c.class.Tag); r != ResultOk {
		return r
	}
	c.ret = this
	return ResultOk
}

// GetPropertyContext is passed to getters.
type GetPropertyContext struct {
	ExecutionContext
	info core.AccessorInfo
	ret  core.Value
}

func (c *GetPropertyContext) This() Value {
	if t := c.info.This(); t != nil {
		return Value{h: t}
	}
	return Value{}
}

func (c *GetPropertyContext) Data() Value { return Value{h: c.info.Data()} }

func (c *GetPropertyContext) ReturnValue(v any) Result {
	h, r := packValue(c.ctx, v)
	if r != ResultOk {
		return c.packFailed(r)
	}
	c.ret = h
	return ResultOk
}

// SetPropertyContext is passed to setters.
type SetPropertyContext struct {
	ExecutionContext
	info  core.AccessorInfo
	value core.Value
}

func (c *SetPropertyContext) This() Value {
	if t := c.info.This(); t != nil {
		return Value{h: t}
	}
	return Value{}
}

func (c *SetPropertyContext) Data() Value  { return Value{h: c.info.Data()} }
func (c *SetPropertyContext) Value() Value { return Value{h: c.value} }

// UnpackValue converts the assigned value into out.
func (c *SetPropertyContext) UnpackValue(out any) Result {
	if r := unpackValue(c.value, out); r != ResultOk {
		c.first = -1
		return r
	}
	return ResultOk
}
