package njs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type other struct {
	WrapData
}

func TestWrap_UnwrapChecked(t *testing.T) {
	e := newTestEnv(t)
	ctor := e.initClass(t, newPointClass(nil))
	inst := e.construct(t, ctor, e.num(5))

	p, r := UnwrapChecked[*point](inst.Value(), pointTag)
	require.Equal(t, ResultOk, r)
	assert.Equal(t, int32(5), p.x)
	assert.Equal(t, WrapBoundWeak, p.State())
	assert.True(t, p.IsWeak())
	assert.True(t, p.Handle().StrictEquals(inst.Value()))

	_, r = UnwrapChecked[*point](inst.Value(), pointTag+1)
	assert.Equal(t, ResultInvalidValue, r)

	_, r = UnwrapChecked[*other](inst.Value(), pointTag)
	assert.Equal(t, ResultInvalidValue, r)

	_, r = UnwrapChecked[*point](Value{h: e.vm.NewObject()}, pointTag)
	assert.Equal(t, ResultInvalidValue, r)

	_, r = UnwrapChecked[*point](e.num(1), pointTag)
	assert.Equal(t, ResultInvalidValue, r)
}

func TestWrap_SlotsHoldNativeAndTag(t *testing.T) {
	e := newTestEnv(t)
	ctor := e.initClass(t, newPointClass(nil))
	inst := e.construct(t, ctor, e.num(5))

	require.Equal(t, 2, inst.InternalFieldCount())
	_, ok := inst.o.InternalField(0).(*point)
	assert.True(t, ok)
	assert.Equal(t, NativeTagFromObjectTag(pointTag), inst.o.InternalField(1))
}

func TestWrap_Twice(t *testing.T) {
	e := newTestEnv(t)
	ctor := e.initClass(t, newPointClass(nil))
	inst := e.construct(t, ctor, e.num(5))
	p, r := UnwrapChecked[*point](inst.Value(), pointTag)
	require.Equal(t, ResultOk, r)

	target := e.construct(t, ctor, e.num(6))
	assert.Panics(t, func() { Wrap(e.vm, target, p, pointTag) })

	SetAssertions(false)
	t.Cleanup(func() { SetAssertions(true) })
	assert.Equal(t, ResultInvalidState, Wrap(e.vm, target, p, pointTag))
}

func TestWrap_TargetNeedsTwoFields(t *testing.T) {
	e := newTestEnv(t)
	assert.Panics(t, func() { Wrap(e.vm, Object{o: e.vm.NewObject()}, &point{}, pointTag) })
}

func TestWrap_RefCounting(t *testing.T) {
	e := newTestEnv(t)
	ctor := e.initClass(t, newPointClass(nil))
	inst := e.construct(t, ctor, e.num(5))
	p, _ := UnwrapChecked[*point](inst.Value(), pointTag)

	p.AddRef()
	p.AddRef()
	assert.Equal(t, 2, p.RefCount())
	assert.Equal(t, WrapBoundPinned, p.State())
	assert.False(t, p.IsWeak())

	p.Release()
	assert.Equal(t, WrapBoundPinned, p.State())
	assert.False(t, p.IsWeak())

	p.Release()
	assert.Equal(t, 0, p.RefCount())
	assert.Equal(t, WrapBoundWeak, p.State())
	assert.True(t, p.IsWeak())

	assert.Panics(t, p.Release)
}

func TestWrap_AddRefOnUnbound(t *testing.T) {
	assert.Panics(t, (&point{}).AddRef)

	SetAssertions(false)
	t.Cleanup(func() { SetAssertions(true) })
	p := &point{}
	p.AddRef()
	assert.Equal(t, 0, p.RefCount())
	assert.Equal(t, WrapUnbound, p.State())
}

// constructScoped creates a Point inside a handle scope that is closed
// before returning, so only native references keep it alive.
func constructScoped(t *testing.T, e *testEnv, ctor Value, x float64) *point {
	t.Helper()
	sc := e.vm.OpenScope()
	defer sc.Close()
	inst := e.construct(t, ctor, e.num(x))
	p, r := UnwrapChecked[*point](inst.Value(), pointTag)
	require.Equal(t, ResultOk, r)
	return p
}

func TestWrap_CollectedWhenWeak(t *testing.T) {
	e := newTestEnv(t)
	var destroyed bool
	ctor := e.initClass(t, newPointClass(&destroyed))

	p := constructScoped(t, e, ctor, 1)
	assert.False(t, destroyed)

	assert.Positive(t, e.vm.Collect())
	assert.True(t, destroyed)
	assert.Equal(t, WrapDestroyed, p.State())
	assert.False(t, p.Handle().IsValid())
}

func TestWrap_PinnedSurvivesCollection(t *testing.T) {
	e := newTestEnv(t)
	var destroyed bool
	ctor := e.initClass(t, newPointClass(&destroyed))

	p := constructScoped(t, e, ctor, 1)
	p.AddRef()

	e.vm.Collect()
	assert.False(t, destroyed)
	assert.Equal(t, WrapBoundPinned, p.State())

	func() {
		sc := e.vm.OpenScope()
		defer sc.Close()
		x, err := p.Handle().AsObject().Get("x")
		require.NoError(t, err)
		assert.Equal(t, float64(1), x.Float())
	}()

	p.Release()
	e.vm.Collect()
	assert.True(t, destroyed)
	assert.Equal(t, WrapDestroyed, p.State())
}

func TestWrap_DestroyedAtClose(t *testing.T) {
	e := newTestEnv(t)
	var destroyed bool
	ctor := e.initClass(t, newPointClass(&destroyed))
	e.construct(t, ctor, e.num(1))

	require.NoError(t, e.vm.Close())
	assert.True(t, destroyed)
}

func TestWrapState_String(t *testing.T) {
	assert.Equal(t, "unbound", WrapUnbound.String())
	assert.Equal(t, "bound-weak", WrapBoundWeak.String())
	assert.Equal(t, "bound-pinned", WrapBoundPinned.String())
	assert.Equal(t, "destroyed", WrapDestroyed.String())
	assert.Equal(t, "invalid", WrapState(9).String())
}
