package native

import (
	"fmt"
	"sync/atomic"

	"github.com/brettbedarf/shellstore/internal/util"
	"github.com/puzpuzpuz/xsync/v4"
)

// live counts native objects that have been created and not yet freed.
var live atomic.Int64

// LiveObjects returns the number of native objects currently alive. Useful for
// leak checks in tests.
func LiveObjects() int64 {
	return live.Load()
}

// object is the reference-counted header shared by every apartment-bound
// native object. Method entry points call enter() before touching state.
type object struct {
	refs   atomic.Int32
	thread uint64
	kind   string
	final  func()
}

func (o *object) init(kind string, final func()) {
	o.refs.Store(1)
	o.thread = currentThread()
	o.kind = kind
	o.final = final
	live.Add(1)
}

// AddRef increments the reference count and returns the new count.
func (o *object) AddRef() uint32 {
	n := o.refs.Add(1)
	if n <= 1 {
		o.refs.Add(-1)
		violation("%s: AddRef on a released object", o.kind)
		return 0
	}
	return uint32(n)
}

// Release decrements the reference count and frees the object when it
// reaches zero. Releasing past zero is a lifetime violation.
func (o *object) Release() uint32 {
	n := o.refs.Add(-1)
	switch {
	case n == 0:
		live.Add(-1)
		if o.final != nil {
			o.final()
		}
	case n < 0:
		o.refs.Store(0)
		violation("%s: Release on a released object", o.kind)
		return 0
	}
	return uint32(n)
}

// RefCount reports the current reference count.
func (o *object) RefCount() int32 {
	return o.refs.Load()
}

// enter validates that the object is alive and is being used from the
// apartment thread that created it.
func (o *object) enter() Status {
	if o.refs.Load() <= 0 {
		violation("%s: use after release", o.kind)
		return StatusPointer
	}
	return checkThread(o.thread)
}

// violation reports a lifetime or threading contract violation.
func violation(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	if failFast {
		panic("native: " + msg)
	}
	logger := util.GetLogger("native")
	logger.Error().Msg(msg)
}

// escalate turns a failure into a panic in diagnostic builds.
func escalate(op string, st Status) Status {
	if failFast && st.Failed() {
		panic(fmt.Sprintf("native: %s failed: %s", op, st))
	}
	return st
}

// handles is a typed table of opaque integer handles, used wherever a value
// must cross the native boundary without being a Go pointer.
type handles[T any] struct {
	next  atomic.Uintptr
	table *xsync.Map[uintptr, T]
}

func newHandles[T any]() *handles[T] {
	return &handles[T]{table: xsync.NewMap[uintptr, T]()}
}

func (h *handles[T]) put(v T) uintptr {
	id := h.next.Add(1)
	h.table.Store(id, v)
	return id
}

func (h *handles[T]) get(id uintptr) (T, bool) {
	return h.table.Load(id)
}

func (h *handles[T]) take(id uintptr) (T, bool) {
	return h.table.LoadAndDelete(id)
}
