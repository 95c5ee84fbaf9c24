//go:build !v8

package quickjs

import (
	"math"
	"testing"

	"github.com/cryguy/njs/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newContext(t *testing.T) *Context {
	t.Helper()
	c, err := NewContext()
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestContext_Primitives(t *testing.T) {
	c := newContext(t)

	assert.Equal(t, core.KindUndefined, c.Undefined().Kind())
	assert.Equal(t, core.KindNull, c.Null().Kind())
	assert.True(t, c.NewBoolean(true).Bool())
	assert.Equal(t, "héllo \"quoted\"\n", c.NewString("héllo \"quoted\"\n").String())

	n := c.NewNumber(-7)
	assert.Equal(t, core.KindNumber, n.Kind())
	assert.True(t, n.IsInt32())
	assert.False(t, n.IsUint32())
	assert.Equal(t, float64(-7), n.Float())

	assert.False(t, c.NewNumber(math.Copysign(0, -1)).IsInt32())
	assert.True(t, c.NewNumber(math.MaxUint32).IsUint32())
	assert.True(t, math.IsNaN(c.NewNumber(math.NaN()).Float()))
	assert.True(t, math.IsInf(c.NewNumber(math.Inf(1)).Float(), 1))
	assert.Nil(t, n.Object())
}

func TestContext_ObjectProperties(t *testing.T) {
	c := newContext(t)
	o := c.NewObject()
	require.NoError(t, o.Set("k", c.NewNumber(3)))
	v, err := o.Get("k")
	require.NoError(t, err)
	assert.Equal(t, float64(3), v.Float())

	missing, err := o.Get("nope")
	require.NoError(t, err)
	assert.Equal(t, core.KindUndefined, missing.Kind())

	assert.True(t, o.StrictEquals(o))
	assert.False(t, o.StrictEquals(c.NewObject()))
	assert.Zero(t, o.InternalFieldCount())
}

func TestContext_ScopesReleaseHandles(t *testing.T) {
	c := newContext(t)
	base := c.Stats()

	outer := c.OpenScope()
	s := c.NewString("outer")
	inner := c.OpenScope()
	c.NewObject()
	c.NewNumber(1)
	assert.Equal(t, base.Handles+3, c.Stats().Handles)
	assert.Equal(t, base.Scopes+2, c.Stats().Scopes)

	inner.Close()
	assert.Equal(t, base.Handles+1, c.Stats().Handles)
	assert.Equal(t, "outer", s.String())

	outer.Close()
	assert.Equal(t, base, c.Stats())
	assert.Panics(t, func() { _ = s.String() })
}

func TestContext_ClosingOuterScopeClosesInner(t *testing.T) {
	c := newContext(t)
	base := c.Stats()

	outer := c.OpenScope()
	c.OpenScope()
	c.NewObject()
	outer.Close()
	assert.Equal(t, base, c.Stats())
}

func TestContext_PersistentOutlivesScope(t *testing.T) {
	c := newContext(t)

	sc := c.OpenScope()
	p := c.NewPersistent(c.NewString("kept"))
	sc.Close()

	assert.Equal(t, 1, c.Stats().Persistents)
	assert.Equal(t, "kept", p.Local().String())

	p.Reset()
	assert.True(t, p.IsEmpty())
	assert.Nil(t, p.Local())
	assert.Zero(t, c.Stats().Persistents)
}

func TestContext_WeakCallbacksRunAtClose(t *testing.T) {
	c, err := NewContext()
	require.NoError(t, err)

	fired := 0
	for i := 0; i < 3; i++ {
		p := c.NewPersistent(c.NewObject())
		p.SetWeak(func() {
			fired++
			p.Reset()
		})
		assert.True(t, p.IsWeak())
	}
	assert.Equal(t, 3, c.Stats().WeakPersistents)

	require.NoError(t, c.Close())
	assert.Equal(t, 3, fired)
	require.NoError(t, c.Close())
}

func TestContext_CollectFiresWeakCallbacks(t *testing.T) {
	c := newContext(t)
	if !c.evalBool("typeof FinalizationRegistry === 'function'") {
		t.Skip("VM has no FinalizationRegistry")
	}

	var kept core.Persistent
	fired := 0
	sc := c.OpenScope()
	held := c.NewObject()
	kept = c.NewPersistent(held)
	kept.SetWeak(func() { kept.Reset() })

	dropped := c.NewPersistent(c.NewObject())
	dropped.SetWeak(func() {
		fired++
		dropped.Reset()
	})
	require.NoError(t, c.Global().Set("held", held))
	sc.Close()

	assert.Equal(t, 1, c.Collect())
	assert.Equal(t, 1, fired)
	assert.True(t, dropped.IsEmpty())
	assert.False(t, kept.IsEmpty(), "reachable from the global object")
}

func TestContext_ClearWeakKeepsTargetAlive(t *testing.T) {
	c := newContext(t)

	sc := c.OpenScope()
	p := c.NewPersistent(c.NewObject())
	p.SetWeak(func() { t.Fatal("cleared weak callback ran") })
	p.ClearWeak()
	sc.Close()

	c.Collect()
	assert.False(t, p.IsWeak())
	require.NotNil(t, p.Local())
	assert.Equal(t, core.KindObject, p.Local().Kind())
	p.Reset()
}

func TestContext_RunScriptErrors(t *testing.T) {
	c := newContext(t)

	v, err := c.RunScript("let x = 20; x * 2 + 2", "ok.js")
	require.NoError(t, err)
	assert.Equal(t, float64(42), v.Float())

	_, err = c.RunScript(`throw new RangeError("too far")`, "throw.js")
	var exc *core.Exception
	require.ErrorAs(t, err, &exc)
	assert.Equal(t, core.ErrorKindRangeError, exc.Kind)
	assert.Equal(t, "too far", exc.Message)
	assert.NotNil(t, exc.Value)

	_, err = c.RunScript("(", "bad.js")
	require.ErrorAs(t, err, &exc)
	assert.Equal(t, core.ErrorKindSyntaxError, exc.Kind)

	_, err = c.RunScript(`throw "plain"`, "plain.js")
	require.ErrorAs(t, err, &exc)
	assert.Equal(t, core.ErrorKindNone, exc.Kind)
	assert.Equal(t, "plain", exc.Message)
}

func TestContext_CallAndConstruct(t *testing.T) {
	c := newContext(t)

	fn, err := c.RunScript("(function(x) { return this.k + x; })", "fn.js")
	require.NoError(t, err)
	recv, err := c.RunScript("({k: 40})", "recv.js")
	require.NoError(t, err)
	out, err := c.Call(fn, recv, c.NewNumber(2))
	require.NoError(t, err)
	assert.Equal(t, float64(42), out.Float())

	ctor, err := c.RunScript("(class P { constructor(v) { this.v = v; } })", "ctor.js")
	require.NoError(t, err)
	inst, err := c.Construct(ctor, c.NewString("x"))
	require.NoError(t, err)
	got, err := inst.Object().Get("v")
	require.NoError(t, err)
	assert.Equal(t, "x", got.String())

	_, err = c.Call(c.NewNumber(1), c.Undefined())
	var exc *core.Exception
	require.ErrorAs(t, err, &exc)
	assert.Equal(t, core.ErrorKindTypeError, exc.Kind)
}

func TestContext_MicrotasksRunOnRequest(t *testing.T) {
	c := newContext(t)

	_, err := c.RunScript("globalThis.done = false; Promise.resolve().then(() => { globalThis.done = true; });", "p.js")
	require.NoError(t, err)
	v, err := c.Global().Get("done")
	require.NoError(t, err)
	assert.False(t, v.Bool())

	c.RunMicrotasks()
	v, err = c.Global().Get("done")
	require.NoError(t, err)
	assert.True(t, v.Bool())
}

func TestContext_FunctionTemplate(t *testing.T) {
	c := newContext(t)

	tmpl := c.NewFunctionTemplate(func(info core.CallbackInfo) core.Value {
		if info.IsConstructCall() {
			info.This().SetInternalField(0, "native")
			return nil
		}
		return info.Context().NewNumber(float64(len(info.Args())))
	}, nil, nil)
	tmpl.SetClassName("Thing")
	tmpl.InstanceTemplate().SetInternalFieldCount(2)
	sig := c.NewSignature(tmpl)
	tmpl.PrototypeTemplate().Set("who", c.NewFunctionTemplate(func(info core.CallbackInfo) core.Value {
		return info.Context().NewString(info.This().InternalField(0).(string))
	}, nil, sig), core.AttrNone)

	fn, err := tmpl.GetFunction()
	require.NoError(t, err)
	require.NoError(t, c.Global().Set("Thing", fn))

	out, err := c.RunScript(`"use strict"; new Thing().who()`, "thing.js")
	require.NoError(t, err)
	assert.Equal(t, "native", out.String())

	out, err = c.RunScript(`Thing(1, 2, 3)`, "call.js")
	require.NoError(t, err)
	assert.Equal(t, float64(3), out.Float())

	_, err = c.RunScript(`Thing.prototype.who.call({})`, "foreign.js")
	var exc *core.Exception
	require.ErrorAs(t, err, &exc)
	assert.Equal(t, "Illegal invocation", exc.Message)

	assert.Equal(t, 1, c.Stats().Signatures)
	assert.Equal(t, 2, c.Stats().Templates)
}
