package demo_test

import (
	"math"
	"testing"

	"github.com/cryguy/njs"
	"github.com/cryguy/njs/internal/core"
	"github.com/cryguy/njs/internal/demo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setup(t *testing.T) (*njs.Runtime, njs.Object) {
	t.Helper()
	rt, err := njs.New(njs.DefaultConfig())
	require.NoError(t, err)
	t.Cleanup(func() { _ = rt.Close() })
	exports, err := rt.Require(demo.Name)
	require.NoError(t, err)
	return rt, exports
}

func num(rt *njs.Runtime, f float64) njs.Value { return njs.ValueOf(rt.Context().NewNumber(f)) }

func get(t *testing.T, o njs.Object, key string) njs.Value {
	t.Helper()
	v, err := o.Get(key)
	require.NoError(t, err)
	return v
}

func call(t *testing.T, rt *njs.Runtime, o njs.Object, method string, args ...njs.Value) njs.Value {
	t.Helper()
	out, err := rt.Call(get(t, o, method), o.Value(), args...)
	require.NoError(t, err)
	return out
}

func TestShape_IsAbstract(t *testing.T) {
	rt, exports := setup(t)
	_, err := rt.Construct(get(t, exports, "Shape"))
	var exc *core.Exception
	require.ErrorAs(t, err, &exc)
	assert.Equal(t, core.ErrorKindTypeError, exc.Kind)
	assert.Equal(t, "Cannot instantiate 'Shape': Class is abstract", exc.Message)
}

func TestCircle_InheritsShapeMembers(t *testing.T) {
	rt, exports := setup(t)
	c, err := rt.Construct(get(t, exports, "Circle"), num(rt, 2))
	require.NoError(t, err)

	assert.Equal(t, "circle", get(t, c, "kind").String())
	assert.Equal(t, float64(2), get(t, c, "radius").Float())
	assert.InDelta(t, 4*math.Pi, call(t, rt, c, "area").Float(), 1e-9)
	assert.Equal(t, "circle(r=2)", call(t, rt, c, "toString").String())

	shape, ok := njs.UnwrapUnsafe[demo.Shape](c.Value())
	require.True(t, ok)
	assert.Equal(t, "circle", shape.Kind())
}

func TestRect_Constructor(t *testing.T) {
	rt, exports := setup(t)
	ctor := get(t, exports, "Rect")

	r, err := rt.Construct(ctor, num(rt, 3), num(rt, 4))
	require.NoError(t, err)
	assert.Equal(t, "rect", get(t, r, "kind").String())
	assert.Equal(t, float64(12), call(t, rt, r, "area").Float())

	sq, err := rt.Construct(ctor, num(rt, 5))
	require.NoError(t, err)
	assert.Equal(t, float64(5), get(t, sq, "height").Float())

	_, err = rt.Construct(ctor, num(rt, -1))
	var exc *core.Exception
	require.ErrorAs(t, err, &exc)
	assert.Equal(t, "Invalid argument [0]: Expected a non-negative length", exc.Message)

	_, err = rt.Construct(ctor, njs.ValueOf(rt.Context().NewString("wide")))
	require.ErrorAs(t, err, &exc)
	assert.Equal(t, "Invalid argument [0]: Expected Type 'Number'", exc.Message)
}

func TestShape_MembersRejectForeignReceivers(t *testing.T) {
	rt, exports := setup(t)
	c, err := rt.Construct(get(t, exports, "Circle"), num(rt, 1))
	require.NoError(t, err)
	o, err := rt.Construct(get(t, exports, "Object"), num(rt, 1), num(rt, 2))
	require.NoError(t, err)

	_, err = rt.Call(get(t, c, "area"), o.Value())
	var exc *core.Exception
	require.ErrorAs(t, err, &exc)
	assert.Equal(t, "Illegal invocation", exc.Message)
}

func TestModes_Exported(t *testing.T) {
	_, exports := setup(t)
	modes := get(t, exports, "modes").AsObject()
	assert.Equal(t, float64(demo.ModeReadWrite), get(t, modes, "read-write").Float())
	assert.Equal(t, float64(demo.ModeReadOnly), get(t, modes, "read-only").Float())
}

func TestModuleWithoutQueueSkipsStore(t *testing.T) {
	rt, err := njs.New(njs.DefaultConfig())
	require.NoError(t, err)
	t.Cleanup(func() { _ = rt.Close() })

	env := njs.NewEnv(rt.Context(), nil, nil)
	m, ok := njs.Lookup(demo.Name)
	require.True(t, ok)
	exports, err := m.Load(env)
	require.NoError(t, err)
	assert.True(t, get(t, exports, "Store").IsUndefined())
	assert.True(t, get(t, exports, "Object").IsFunction())
}

func TestOpenDB_StoreOperations(t *testing.T) {
	db, err := demo.OpenDB("file::memory:")
	require.NoError(t, err)
	t.Cleanup(func() {
		sqlDB, _ := db.DB()
		_ = sqlDB.Close()
	})

	rw := demo.NewStore(db, "a", demo.ModeReadWrite)
	require.NoError(t, rw.Put("k", "1"))
	require.NoError(t, rw.Put("k", "2"))

	v, ok, err := rw.Get("k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "2", v)

	_, ok, err = rw.Get("missing")
	require.NoError(t, err)
	assert.False(t, ok)

	n, err := rw.Count()
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	other := demo.NewStore(db, "b", demo.ModeReadOnly)
	assert.Error(t, other.Put("k", "3"))
	n, err = other.Count()
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestStore_CloseReleasesUndeliveredTasks(t *testing.T) {
	rt, err := njs.New(njs.DefaultConfig())
	require.NoError(t, err)
	exports, err := rt.Require(demo.Name)
	require.NoError(t, err)

	store, err := rt.Construct(get(t, exports, "Store"), njs.ValueOf(rt.Context().NewString("closing")))
	require.NoError(t, err)
	s, r := njs.UnwrapChecked[*demo.Store](store.Value(), demo.StoreTag)
	require.Equal(t, njs.ResultOk, r)

	require.NoError(t, rt.SetGlobalFunction("__ignore", func(ctx *njs.FunctionCallContext) njs.Result {
		return njs.ResultOk
	}))
	cb := get(t, njs.ObjectOf(rt.Context().Global()), "__ignore")
	call(t, rt, store, "put", njs.ValueOf(rt.Context().NewString("k")), njs.ValueOf(rt.Context().NewString("v")), cb)
	assert.Equal(t, 1, s.RefCount(), "pinned while the task is in flight")

	require.NoError(t, rt.Close())
	assert.Zero(t, s.RefCount())
}
