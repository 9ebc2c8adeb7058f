// Package apartmenttest runs test bodies on apartment threads.
package apartmenttest

import (
	"context"
	"errors"
	"testing"

	"github.com/brettbedarf/shellstore/internal/apartment"
)

// T is the testing.TB handed to a body running on an apartment thread.
// FailNow marks the test failed and unwinds the body; the goroutine that
// called Do then stops the test.
type T struct {
	*testing.T
}

type failNow struct{}

var errStopped = errors.New("apartment body stopped by FailNow")

func (t T) FailNow() {
	t.T.Fail()
	panic(failNow{})
}

func (t T) Fatal(args ...any) {
	t.T.Error(args...)
	t.FailNow()
}

func (t T) Fatalf(format string, args ...any) {
	t.T.Errorf(format, args...)
	t.FailNow()
}

// Run executes fn on a fresh apartment thread and returns its error.
// A body stopped by FailNow yields a non-nil error.
func Run(t *testing.T, fn func(t testing.TB) error) error {
	_, err := apartment.Do(context.Background(), func() (_ struct{}, err error) {
		defer func() {
			if r := recover(); r != nil {
				if _, ok := r.(failNow); !ok {
					panic(r)
				}
				err = errStopped
			}
		}()
		return struct{}{}, fn(T{t})
	})
	return err
}

// Do is Run that fails the test on the calling goroutine when fn fails.
func Do(t *testing.T, fn func(t testing.TB) error) {
	t.Helper()
	err := Run(t, fn)
	switch {
	case errors.Is(err, errStopped):
		t.FailNow()
	case err != nil:
		t.Fatalf("apartment body: %v", err)
	}
}
