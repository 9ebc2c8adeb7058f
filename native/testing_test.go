package native

import (
	"runtime"
	"testing"
)

// apartmentT stops a body running on an apartment thread by panicking;
// onApartment then fails the test from the test goroutine.
type apartmentT struct {
	*testing.T
}

type failNow struct{}

func (t apartmentT) FailNow() {
	t.T.Fail()
	panic(failNow{})
}

func (t apartmentT) Fatal(args ...any) {
	t.T.Error(args...)
	t.FailNow()
}

func (t apartmentT) Fatalf(format string, args ...any) {
	t.T.Errorf(format, args...)
	t.FailNow()
}

// onApartment runs fn on a fresh locked OS thread that has entered an
// apartment, and waits for it to finish. The goroutine exits locked so the
// thread is never reused.
func onApartment(t *testing.T, fn func(t testing.TB)) {
	t.Helper()
	done := make(chan any, 1)
	go func() {
		runtime.LockOSThread()
		defer func() { done <- recover() }()
		if st := Initialize(); st != StatusOK {
			t.Errorf("Initialize() = %s", st)
			return
		}
		defer Uninitialize()
		fn(apartmentT{t})
	}()
	switch p := <-done; p.(type) {
	case nil:
	case failNow:
		t.FailNow()
	default:
		t.Fatalf("apartment panicked: %v", p)
	}
}
