package watcher_test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/brettbedarf/shellstore/config"
	"github.com/brettbedarf/shellstore/internal/apartment"
	"github.com/brettbedarf/shellstore/internal/mocks"
	"github.com/brettbedarf/shellstore/native"
	"github.com/brettbedarf/shellstore/storage"
	"github.com/brettbedarf/shellstore/watcher"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const interval = 50 * time.Millisecond

func testConfig() *config.Config {
	cfg := config.NewDefaultConfig()
	cfg.DebounceInterval = interval
	return cfg
}

// startWatcher watches dir and waits until registration succeeds.
func startWatcher(t *testing.T, dir string) *watcher.Watcher {
	t.Helper()
	w := watcher.NewFromPath(dir, testConfig())
	t.Cleanup(w.Close)
	select {
	case <-w.Watching():
	case <-time.After(5 * time.Second):
		t.Fatalf("watcher stuck in %s", w.State())
	}
	return w
}

// seen is a plain record of one event, copied while its items are alive.
type seen struct {
	kind watcher.Kind
	name string
}

func collect(w *watcher.Watcher) <-chan seen {
	ch := make(chan seen, 16)
	w.OnAny(func(ev watcher.Event) {
		s := seen{kind: ev.Kind}
		if ev.Item != nil {
			s.name = ev.Item.Name()
		}
		ch <- s
	})
	return ch
}

func next(t *testing.T, ch <-chan seen) seen {
	t.Helper()
	select {
	case s := <-ch:
		return s
	case <-time.After(5 * time.Second):
		t.Fatal("no event raised")
		return seen{}
	}
}

func quiet(t *testing.T, ch <-chan seen) {
	t.Helper()
	select {
	case s := <-ch:
		t.Fatalf("unexpected event %s %q", s.kind, s.name)
	case <-time.After(4 * interval):
	}
}

func TestWatcher_BurstRaisesLastOnce(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	w := startWatcher(t, dir)
	events := collect(w)

	var typed sync.WaitGroup
	typed.Add(1)
	w.OnEvent(watcher.FileCreated, func(watcher.Event) { typed.Done() })

	// the burst outlasts one interval, so each notification must restart it
	for i := range 5 {
		native.ChangeNotify(native.NotifyCreate, filepath.Join(dir, fmt.Sprintf("f%d.txt", i)), "")
		time.Sleep(interval / 5)
	}
	last := time.Now()
	native.ChangeNotify(native.NotifyCreate, filepath.Join(dir, "f5.txt"), "")

	got := next(t, events)
	assert.GreaterOrEqual(t, time.Since(last), interval, "raised before the burst went quiet")
	assert.Equal(t, watcher.FileCreated, got.kind)
	assert.Equal(t, "f5.txt", got.name)
	quiet(t, events)
	typed.Wait()
}

func TestWatcher_FolderVariants(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		kind     native.NotifyKind
		create   bool
		expected watcher.Kind
	}{
		{"MkDir", native.NotifyMkDir, true, watcher.FolderCreated},
		{"RmDir", native.NotifyRmDir, false, watcher.FolderDeleted},
		{"Delete", native.NotifyDelete, false, watcher.FileDeleted},
		{"UpdateDir", native.NotifyUpdateDir, true, watcher.FolderUpdated},
		{"Attributes", native.NotifyAttributes, false, watcher.AttributesChanged},
		{"FreeSpace", native.NotifyFreeSpace, false, watcher.FreeSpaceChanged},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			dir := t.TempDir()
			w := startWatcher(t, dir)
			events := collect(w)
			target := filepath.Join(dir, "item")
			if tt.create {
				// the mkdir itself is reported first
				require.NoError(t, os.Mkdir(target, 0o755))
				next(t, events)
			}

			native.ChangeNotify(tt.kind, target, "")
			assert.Equal(t, tt.expected, next(t, events).kind)
		})
	}
}

func TestWatcher_Rename(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	w := startWatcher(t, dir)

	type rename struct {
		kind          watcher.Kind
		from, to      string
		toIsFolderNow bool
	}
	ch := make(chan rename, 4)
	w.OnAny(func(ev watcher.Event) {
		r := rename{kind: ev.Kind}
		if ev.Item != nil {
			r.from = ev.Item.Name()
		}
		if ev.NewItem != nil {
			r.to = ev.NewItem.Name()
			r.toIsFolderNow = ev.NewItem.IsFolder()
		}
		ch <- r
	})

	native.ChangeNotify(native.NotifyRenameItem, filepath.Join(dir, "a.txt"), filepath.Join(dir, "b.txt"))
	select {
	case r := <-ch:
		assert.Equal(t, rename{kind: watcher.FileRenamed, from: "a.txt", to: "b.txt"}, r)
	case <-time.After(5 * time.Second):
		t.Fatal("no rename raised")
	}
}

func TestWatcher_UnmappedReachesAnyOnly(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	w := startWatcher(t, dir)
	events := collect(w)

	typed := &mocks.MockEventHandler{}
	for _, k := range watcher.Kinds() {
		w.OnEvent(k, typed.Handle)
	}

	native.ChangeNotify(native.NotifyKind(0x00100000), filepath.Join(dir, "x"), "")
	assert.Equal(t, watcher.Unmapped, next(t, events).kind)
	quiet(t, events)
	typed.AssertNotCalled(t, "Handle", mock.Anything)
}

func TestWatcher_Unsubscribe(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	w := startWatcher(t, dir)
	events := collect(w)

	removed := &mocks.MockEventHandler{}
	unsubscribe := w.OnEvent(watcher.FileDeleted, removed.Handle)
	unsubscribe()
	unsubscribe()

	native.ChangeNotify(native.NotifyDelete, filepath.Join(dir, "x"), "")
	assert.Equal(t, watcher.FileDeleted, next(t, events).kind)
	removed.AssertNotCalled(t, "Handle", mock.Anything)
}

func TestWatcher_NoEventsAfterClose(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	w := startWatcher(t, dir)
	events := collect(w)

	native.ChangeNotify(native.NotifyCreate, filepath.Join(dir, "pending.txt"), "")
	w.Close()
	assert.Equal(t, watcher.StateDisposed, w.State())

	native.ChangeNotify(native.NotifyCreate, filepath.Join(dir, "late.txt"), "")
	quiet(t, events)
	w.Close()
}

func TestWatcher_CloseFromHandler(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	w := startWatcher(t, dir)

	handler := &mocks.MockEventHandler{}
	done := make(chan struct{})
	handler.On("Handle", mock.Anything).Return(func(watcher.Event) {
		w.Close()
		close(done)
	}).Once()
	w.OnAny(handler.Handle)
	w.OnAny(handler.Handle)

	native.ChangeNotify(native.NotifyCreate, filepath.Join(dir, "x"), "")
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("handler not called")
	}
	assert.Equal(t, watcher.StateDisposed, w.State())
	// the second handler is skipped once the watcher is disposed
	handler.AssertNumberOfCalls(t, "Handle", 1)
}

func TestWatcher_Inert(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	file := filepath.Join(dir, "file.txt")
	require.NoError(t, os.WriteFile(file, nil, 0o644))

	for _, path := range []string{filepath.Join(dir, "missing"), file} {
		w := watcher.NewFromPath(path, testConfig())
		events := collect(w)
		native.ChangeNotify(native.NotifyCreate, filepath.Join(path, "x"), "")
		quiet(t, events)
		assert.Equal(t, watcher.StateRegistering, w.State())
		select {
		case <-w.Watching():
			t.Fatal("inert watcher reported watching")
		default:
		}
		w.Close()
		assert.Equal(t, watcher.StateDisposed, w.State())
	}
}

func TestWatcher_FileSystemEvent(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	w := startWatcher(t, dir)
	events := collect(w)

	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub"), 0o755))
	got := next(t, events)
	assert.Equal(t, watcher.FolderCreated, got.kind)
	assert.Equal(t, "sub", got.name)
}

func TestWatcher_NewFromFolder(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	w, err := apartment.Do(context.Background(), func() (*watcher.Watcher, error) {
		s, ok := storage.TryParse(dir)
		if !ok {
			return nil, fmt.Errorf("parse %s", dir)
		}
		defer s.Close()
		return watcher.New(s.(*storage.Folder), testConfig()), nil
	})
	require.NoError(t, err)
	defer w.Close()

	assert.Equal(t, dir, w.Path())
	select {
	case <-w.Watching():
	case <-time.After(5 * time.Second):
		t.Fatal("not watching")
	}
	assert.Equal(t, watcher.StateWatching, w.State())
}
