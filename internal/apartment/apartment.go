// Package apartment runs closures on dedicated, single-use OS threads that
// have entered a native shell apartment.
package apartment

import (
	"context"
	"fmt"
	"runtime"
	"runtime/debug"

	"github.com/brettbedarf/shellstore/internal/util"
	"github.com/brettbedarf/shellstore/native"
)

// Future is the eventual result of a closure started with Run.
type Future[T any] struct {
	done  chan struct{}
	value T
	err   error
}

// Done is closed once the closure has returned and the apartment is torn down.
func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}

// Wait blocks until the closure finishes or ctx is done. Cancelling ctx does
// not stop the closure.
func (f *Future[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.value, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Run executes fn on a new OS thread with the native subsystem initialized
// around it. Native objects created by fn must not escape it; pass plain
// data in and out instead. The thread is discarded afterwards.
func Run[T any](fn func() (T, error)) *Future[T] {
	f := &Future[T]{done: make(chan struct{})}
	go func() {
		// Never unlocked: the runtime destroys the thread when this goroutine exits.
		runtime.LockOSThread()
		defer close(f.done)

		logger := util.GetLogger("apartment")
		if st := native.Initialize(); st.Failed() {
			f.err = fmt.Errorf("failed to initialize apartment: %w", st)
			return
		}
		defer native.Uninitialize()

		defer func() {
			if r := recover(); r != nil {
				logger.Error().Interface("panic", r).Bytes("stack", debug.Stack()).Msg("apartment task panicked")
				f.err = fmt.Errorf("apartment task panicked: %v", r)
			}
		}()
		f.value, f.err = fn()
	}()
	return f
}

// Do runs fn with Run and waits for its result.
func Do[T any](ctx context.Context, fn func() (T, error)) (T, error) {
	return Run(fn).Wait(ctx)
}
