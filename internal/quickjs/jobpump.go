package quickjs

import (
	"reflect"
	"unsafe"

	"modernc.org/libc"
	lib "modernc.org/libquickjs"
	"modernc.org/quickjs"
)

// jobPump drains the QuickJS job queue (Promise reactions) through the C
// API. modernc.org/quickjs never calls JS_ExecutePendingJob itself, so
// without it .then callbacks would never run.
type jobPump struct {
	cRuntime uintptr
	tls      *libc.TLS
}

// newJobPump pulls the unexported C runtime handle and TLS out of vm.
//
// Layout relied on (modernc.org/quickjs v0.17):
//
//	type VM struct      { cContext uintptr; ...; runtime *runtime; ... }
//	type runtime struct { cRuntime uintptr; tls *libc.TLS }
func newJobPump(vm *quickjs.VM) (p jobPump, ok bool) {
	rtField := reflect.ValueOf(vm).Elem().FieldByName("runtime")
	if !rtField.IsValid() || rtField.IsNil() {
		return p, false
	}
	rt := reflect.NewAt(rtField.Type().Elem(), unsafe.Pointer(rtField.Pointer())).Elem()

	cRuntime := rt.FieldByName("cRuntime")
	tls := rt.FieldByName("tls")
	if !cRuntime.IsValid() || !tls.IsValid() || tls.IsNil() {
		return p, false
	}
	return jobPump{
		cRuntime: uintptr(cRuntime.Uint()),
		tls:      (*libc.TLS)(unsafe.Pointer(tls.Pointer())),
	}, true
}

// drain runs jobs until the queue is empty and returns how many ran. A job
// that throws is consumed like any other; its exception is dropped.
func (p jobPump) drain() int {
	n := 0
	for {
		ret := lib.XJS_ExecutePendingJob(p.tls, p.cRuntime, 0)
		if ret == 0 {
			return n
		}
		n++
	}
}
