//go:build !v8

package quickjs

import (
	"reflect"
	"unsafe"

	"modernc.org/libc"
	lib "modernc.org/libquickjs"
	"modernc.org/quickjs"
)

// executePendingJobs runs queued jobs: promise reactions and
// FinalizationRegistry cleanups. The Go wrapper never calls
// JS_ExecutePendingJob itself. Returns the number of jobs run.
func executePendingJobs(vm *quickjs.VM) int {
	rt, tls, ok := extractRuntime(vm)
	if !ok {
		return 0
	}
	count := 0
	for lib.XJS_ExecutePendingJob(tls, rt, 0) > 0 {
		count++
	}
	return count
}

// runGC forces a full cycle collection.
func runGC(vm *quickjs.VM) bool {
	rt, tls, ok := extractRuntime(vm)
	if !ok {
		return false
	}
	lib.XJS_RunGC(tls, rt)
	return true
}

// extractRuntime pulls the unexported tls and cRuntime values out of a
// *quickjs.VM.
//
// Layout as of modernc.org/quickjs v0.17.1:
//
//	type VM struct {
//	    cContext uintptr
//	    ...
//	    runtime  *runtime
//	}
//
//	type runtime struct {
//	    cRuntime uintptr
//	    tls      *libc.TLS
//	}
func extractRuntime(vm *quickjs.VM) (cRuntime uintptr, tls *libc.TLS, ok bool) {
	vmVal := reflect.ValueOf(vm).Elem()
	rtField := vmVal.FieldByName("runtime")
	if !rtField.IsValid() || rtField.IsNil() {
		return 0, nil, false
	}
	rtVal := reflect.NewAt(rtField.Type().Elem(), unsafe.Pointer(rtField.Pointer())).Elem()

	cRuntimeField := rtVal.FieldByName("cRuntime")
	if !cRuntimeField.IsValid() {
		return 0, nil, false
	}
	tlsField := rtVal.FieldByName("tls")
	if !tlsField.IsValid() || tlsField.IsNil() {
		return 0, nil, false
	}
	return uintptr(cRuntimeField.Uint()), (*libc.TLS)(unsafe.Pointer(tlsField.Pointer())), true
}
