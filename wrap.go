package njs

import (
	"fmt"

	"github.com/cryguy/njs/internal/core"
	log "github.com/sirupsen/logrus"
)

// WrapState is the lifecycle position of a WrapData.
type WrapState uint8

const (
	// WrapUnbound: not yet associated with a JS object.
	WrapUnbound WrapState = iota
	// WrapBoundWeak: associated, no native references; the VM may collect
	// the JS peer and destroy the native.
	WrapBoundWeak
	// WrapBoundPinned: associated and held by native code.
	WrapBoundPinned
	// WrapDestroyed: the JS peer was collected and the native destroyed.
	WrapDestroyed
)

func (s WrapState) String() string {
	switch s {
	case WrapUnbound:
		return "unbound"
	case WrapBoundWeak:
		return "bound-weak"
	case WrapBoundPinned:
		return "bound-pinned"
	case WrapDestroyed:
		return "destroyed"
	}
	return "invalid"
}

// WrapData ties a native value to its JS peer. Embed it in the native
// struct:
//
//	type Point struct {
//		njs.WrapData
//		X, Y int32
//	}
//
// All methods must run on the VM goroutine.
type WrapData struct {
	handle   Persistent
	refCount int
	state    WrapState
	self     Wrapped
}

// Wrapped is implemented by every struct embedding WrapData.
type Wrapped interface {
	wrapData() *WrapData
}

func (w *WrapData) wrapData() *WrapData { return w }

// Destroyer is implemented by natives that release resources when their
// JS peer is collected.
type Destroyer interface {
	Destroy()
}

func (w *WrapData) State() WrapState { return w.state }
func (w *WrapData) RefCount() int    { return w.refCount }

// IsWeak reports whether the JS peer is currently collectable.
func (w *WrapData) IsWeak() bool { return w.handle.isWeak() }

// Handle returns a local handle to the JS peer, empty once destroyed.
func (w *WrapData) Handle() Value { return w.handle.MakeLocal() }

// Wrap binds native to obj: slot 0 receives the native, slot 1 the encoded
// tag, and the native keeps a weak persistent to obj. Wrapping a native
// twice or an object with fewer than two internal fields is an assertion
// failure.
func Wrap(ctx core.Context, obj Object, native Wrapped, tag ObjectTag) Result {
	w := native.wrapData()
	if !check(w.state == WrapUnbound, "wrap of an already %s native", w.state) {
		return ResultInvalidState
	}
	if !check(obj.IsValid() && obj.InternalFieldCount() >= 2, "wrap target needs 2 internal fields") {
		return ResultInvalidState
	}
	obj.o.SetInternalField(0, native)
	obj.o.SetInternalField(1, NativeTagFromObjectTag(tag))

	w.self = native
	w.handle.MakePersistent(ctx, obj.Value())
	w.state = WrapBoundWeak
	w.makeWeak()
	return ResultOk
}

func (w *WrapData) makeWeak() {
	w.handle.p.SetWeak(w.destroy)
}

// AddRef pins the JS peer from native code.
func (w *WrapData) AddRef() {
	if !check(w.state == WrapBoundWeak || w.state == WrapBoundPinned, "AddRef on a %s native", w.state) {
		return
	}
	w.refCount++
	w.handle.p.ClearWeak()
	w.state = WrapBoundPinned
}

// Release drops a reference taken with AddRef. The last release makes the
// JS peer collectable again.
func (w *WrapData) Release() {
	if !check(w.refCount > 0 && w.state == WrapBoundPinned && !w.handle.isWeak(), "Release without matching AddRef (refs=%d, %s)", w.refCount, w.state) {
		return
	}
	w.refCount--
	if w.refCount == 0 {
		w.makeWeak()
		w.state = WrapBoundWeak
	}
}

// destroy is the weak callback and the only path that ends a native's life.
func (w *WrapData) destroy() {
	check(w.refCount == 0, "JS peer collected with %d native references", w.refCount)
	w.handle.Reset()
	w.state = WrapDestroyed
	native := w.self
	w.self = nil
	if d, ok := native.(Destroyer); ok {
		d.Destroy()
	}
	log.WithField("type", fmt.Sprintf("%T", native)).Debug("njs: wrapped native destroyed")
}

// UnwrapChecked returns the native wrapped by v if v is an object with two
// internal fields whose tag is tag and whose native is a T.
func UnwrapChecked[T Wrapped](v Value, tag ObjectTag) (T, Result) {
	var zero T
	if !v.IsObject() {
		return zero, ResultInvalidValue
	}
	o := v.h.Object()
	if o.InternalFieldCount() < 2 {
		return zero, ResultInvalidValue
	}
	n, ok := o.InternalField(1).(NativeTag)
	if !ok || !IsNativeTag(n) || ObjectTagFromNativeTag(n) != tag {
		return zero, ResultInvalidValue
	}
	native, ok := o.InternalField(0).(T)
	if !ok {
		return zero, ResultInvalidValue
	}
	return native, ResultOk
}

// UnwrapUnsafe returns the native of an object already known to be a
// wrapped T, such as the receiver of a signature-checked method. The tag
// is not consulted.
func UnwrapUnsafe[T Wrapped](v Value) (T, bool) {
	native, ok := objectOf(v.h).InternalField(0).(T)
	return native, ok
}
