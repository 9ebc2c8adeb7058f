package native

import (
	"sync/atomic"

	"github.com/puzpuzpuz/xsync/v4"
)

type apartment struct {
	inits atomic.Int32
}

// apartments tracks which OS threads have initialized the shell subsystem.
var apartments = xsync.NewMap[uint64, *apartment]()

// Initialize enters a single-threaded apartment on the calling OS thread.
// The caller must have locked its goroutine to the thread. Returns
// StatusFalse if the thread was already initialized; every successful call
// must be paired with Uninitialize.
func Initialize() Status {
	a, _ := apartments.LoadOrStore(currentThread(), &apartment{})
	if a.inits.Add(1) > 1 {
		return StatusFalse
	}
	return StatusOK
}

// Uninitialize leaves the apartment entered by the matching Initialize.
func Uninitialize() {
	tid := currentThread()
	a, ok := apartments.Load(tid)
	if !ok {
		violation("Uninitialize on a thread that never initialized")
		return
	}
	if a.inits.Add(-1) == 0 {
		apartments.Delete(tid)
	}
}

// InApartment reports whether the calling thread has initialized the subsystem.
func InApartment() bool {
	_, ok := apartments.Load(currentThread())
	return ok
}

func checkThread(owner uint64) Status {
	tid := currentThread()
	if _, ok := apartments.Load(tid); !ok {
		return escalate("apartment check", StatusNotInitialized)
	}
	if owner != tid {
		return escalate("apartment check", StatusWrongThread)
	}
	return StatusOK
}

// CurrentThreadID identifies the calling OS thread. It is only meaningful
// while the calling goroutine is locked to its thread.
func CurrentThreadID() uint64 {
	return currentThread()
}
