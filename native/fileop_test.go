package native

import (
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"unsafe"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recorder is a minimal progress sink that logs every hook it receives.
type recorder struct {
	ProgressSink
	refs  atomic.Int32
	calls []string
	pre   func(op string) Status
}

func recorderOf(this *ProgressSink) *recorder {
	return (*recorder)(unsafe.Pointer(this))
}

func (r *recorder) hook(name string) Status {
	r.calls = append(r.calls, name)
	return StatusOK
}

func (r *recorder) before(op string) Status {
	r.calls = append(r.calls, "pre"+op)
	if r.pre != nil {
		return r.pre(op)
	}
	return StatusOK
}

func (r *recorder) after(op string, result Status) Status {
	if result.Failed() {
		r.calls = append(r.calls, "post"+op+":"+result.String())
	} else {
		r.calls = append(r.calls, "post"+op)
	}
	return StatusOK
}

var recorderVtbl = &ProgressSinkVtbl{
	QueryInterface: func(this *ProgressSink, iid uuid.UUID, out **ProgressSink) Status {
		if iid != IIDFileOperationProgressSink && iid != IIDUnknown {
			*out = nil
			return StatusNoInterface
		}
		recorderOf(this).refs.Add(1)
		*out = this
		return StatusOK
	},
	AddRef:  func(this *ProgressSink) uint32 { return uint32(recorderOf(this).refs.Add(1)) },
	Release: func(this *ProgressSink) uint32 { return uint32(recorderOf(this).refs.Add(-1)) },

	StartOperations: func(this *ProgressSink) Status { return recorderOf(this).hook("start") },
	FinishOperations: func(this *ProgressSink, result Status) Status {
		return recorderOf(this).hook("finish:" + result.String())
	},
	PreRenameItem: func(this *ProgressSink, _ TransferFlags, _ *Item, _ string) Status {
		return recorderOf(this).before("Rename")
	},
	PostRenameItem: func(this *ProgressSink, _ TransferFlags, _ *Item, _ string, result Status, _ *Item) Status {
		return recorderOf(this).after("Rename", result)
	},
	PreMoveItem: func(this *ProgressSink, _ TransferFlags, _, _ *Item, _ string) Status {
		return recorderOf(this).before("Move")
	},
	PostMoveItem: func(this *ProgressSink, _ TransferFlags, _, _ *Item, _ string, result Status, _ *Item) Status {
		return recorderOf(this).after("Move", result)
	},
	PreCopyItem: func(this *ProgressSink, _ TransferFlags, _, _ *Item, _ string) Status {
		return recorderOf(this).before("Copy")
	},
	PostCopyItem: func(this *ProgressSink, _ TransferFlags, _, _ *Item, _ string, result Status, _ *Item) Status {
		return recorderOf(this).after("Copy", result)
	},
	PreDeleteItem: func(this *ProgressSink, _ TransferFlags, _ *Item) Status {
		return recorderOf(this).before("Delete")
	},
	PostDeleteItem: func(this *ProgressSink, _ TransferFlags, _ *Item, result Status, _ *Item) Status {
		return recorderOf(this).after("Delete", result)
	},
	PreNewItem: func(this *ProgressSink, _ TransferFlags, _ *Item, _ string) Status {
		return recorderOf(this).before("New")
	},
	PostNewItem: func(this *ProgressSink, _ TransferFlags, _ *Item, _, _ string, _ FileAttributes, result Status, _ *Item) Status {
		return recorderOf(this).after("New", result)
	},
	UpdateProgress: func(this *ProgressSink, _, _ uint32) Status { return StatusOK },
	ResetTimer:     func(this *ProgressSink) Status { return StatusOK },
	PauseTimer:     func(this *ProgressSink) Status { return StatusOK },
	ResumeTimer:    func(this *ProgressSink) Status { return StatusOK },
}

func newRecorder() *recorder {
	r := &recorder{ProgressSink: ProgressSink{Vtbl: recorderVtbl}}
	r.refs.Store(1)
	return r
}

func mustParse(t testing.TB, path string) *Item {
	t.Helper()
	item, st := ParseDisplayName(path)
	require.Equal(t, StatusOK, st, "parse %s", path)
	return item
}

func TestFileOperation_Empty(t *testing.T) {
	onApartment(t, func(t testing.TB) {
		op, st := CreateFileOperation()
		require.Equal(t, StatusOK, st)
		defer op.Release()
		rec := newRecorder()
		cookie, st := op.Advise(&rec.ProgressSink)
		require.Equal(t, StatusOK, st)
		assert.Equal(t, int32(2), rec.refs.Load())

		assert.Equal(t, StatusOK, op.PerformOperations())
		assert.Equal(t, []string{"start", "finish:S_OK"}, rec.calls)
		assert.Equal(t, StatusUnexpected, op.PerformOperations(), "a transaction runs once")

		require.Equal(t, StatusOK, op.Unadvise(cookie))
		assert.Equal(t, int32(1), rec.refs.Load())
	})
}

func TestFileOperation_CopyThenDelete(t *testing.T) {
	src := t.TempDir()
	dst := t.TempDir()
	file := filepath.Join(src, "a.txt")
	require.NoError(t, os.WriteFile(file, []byte("hello"), 0o644))
	copied := filepath.Join(dst, "a.txt")

	onApartment(t, func(t testing.TB) {
		op, st := CreateFileOperation()
		require.Equal(t, StatusOK, st)
		defer op.Release()
		rec := newRecorder()
		_, st = op.Advise(&rec.ProgressSink)
		require.Equal(t, StatusOK, st)

		item, dest := mustParse(t, file), mustParse(t, dst)
		defer item.Release()
		defer dest.Release()
		require.Equal(t, StatusOK, op.CopyItem(item, dest, ""))

		idl := SimpleIDList(copied, 0)
		later, st := CreateItemFromIDList(idl)
		idl.Free()
		require.Equal(t, StatusOK, st)
		defer later.Release()
		require.Equal(t, StatusOK, op.DeleteItem(later))

		assert.Equal(t, StatusOK, op.PerformOperations())
		assert.Equal(t, []string{"start", "preCopy", "postCopy", "preDelete", "postDelete", "finish:S_OK"}, rec.calls)
	})
	assert.FileExists(t, file)
	assert.NoFileExists(t, copied)
}

func TestFileOperation_SkipAndAbort(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"one", "two", "three"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), nil, 0o644))
	}

	onApartment(t, func(t testing.TB) {
		op, st := CreateFileOperation()
		require.Equal(t, StatusOK, st)
		defer op.Release()
		rec := newRecorder()
		n := 0
		rec.pre = func(string) Status {
			n++
			switch n {
			case 1:
				return StatusSkip
			case 2:
				return StatusOK
			}
			return StatusUserCancelled
		}
		_, st = op.Advise(&rec.ProgressSink)
		require.Equal(t, StatusOK, st)
		for _, name := range []string{"one", "two", "three"} {
			item := mustParse(t, filepath.Join(dir, name))
			require.Equal(t, StatusOK, op.DeleteItem(item))
			item.Release()
		}

		assert.Equal(t, StatusUserCancelled, op.PerformOperations())
		assert.Equal(t, []string{
			"start", "preDelete", "preDelete", "postDelete", "preDelete",
			"finish:COPYENGINE_E_USER_CANCELLED",
		}, rec.calls)
		aborted, _ := op.AnyOperationsAborted()
		assert.True(t, aborted)
	})
	assert.FileExists(t, filepath.Join(dir, "one"))
	assert.NoFileExists(t, filepath.Join(dir, "two"))
	assert.FileExists(t, filepath.Join(dir, "three"))
}

func TestFileOperation_Collisions(t *testing.T) {
	tests := []struct {
		name  string
		flags OperationFlags
		want  string
		files []string
	}{
		{"fail", 0, "postNew:ERROR_ALREADY_EXISTS", []string{"x.txt"}},
		{"rename", FlagRenameOnCollision, "postNew", []string{"x.txt", "x (2).txt"}},
		{"overwrite", FlagNoConfirmation, "postNew", []string{"x.txt"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			require.NoError(t, os.WriteFile(filepath.Join(dir, "x.txt"), []byte("old"), 0o644))

			onApartment(t, func(t testing.TB) {
				op, st := CreateFileOperation()
				require.Equal(t, StatusOK, st)
				defer op.Release()
				require.Equal(t, StatusOK, op.SetOperationFlags(tt.flags))
				rec := newRecorder()
				_, st = op.Advise(&rec.ProgressSink)
				require.Equal(t, StatusOK, st)
				folder := mustParse(t, dir)
				defer folder.Release()
				require.Equal(t, StatusOK, op.NewItem(folder, FileAttributeNormal, "x.txt", ""))
				op.PerformOperations()
				assert.Contains(t, rec.calls, tt.want)
			})

			entries, err := os.ReadDir(dir)
			require.NoError(t, err)
			var names []string
			for _, e := range entries {
				names = append(names, e.Name())
			}
			assert.ElementsMatch(t, tt.files, names)
		})
	}
}

func TestFileOperation_RecycleAndRename(t *testing.T) {
	dir := t.TempDir()
	bin := filepath.Join(t.TempDir(), "bin")
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "tree", "leaf"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "tree", "leaf", "f"), []byte("f"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "old.txt"), nil, 0o644))

	onApartment(t, func(t testing.TB) {
		op, st := CreateFileOperation()
		require.Equal(t, StatusOK, st)
		defer op.Release()
		op.SetOperationFlags(FlagAllowUndo | FlagNoConfirmation)
		op.SetRecycleDir(bin)

		tree := mustParse(t, filepath.Join(dir, "tree"))
		old := mustParse(t, filepath.Join(dir, "old.txt"))
		require.Equal(t, StatusOK, op.DeleteItem(tree))
		require.Equal(t, StatusOK, op.RenameItem(old, "new.txt"))
		assert.Equal(t, StatusInvalidArg, op.RenameItem(old, "a/b"))
		tree.Release()
		old.Release()

		assert.Equal(t, StatusOK, op.PerformOperations())
	})
	assert.NoDirExists(t, filepath.Join(dir, "tree"))
	assert.FileExists(t, filepath.Join(bin, "tree", "leaf", "f"))
	assert.FileExists(t, filepath.Join(dir, "new.txt"))
}

func TestFileOperation_ReleaseDropsSinks(t *testing.T) {
	rec := newRecorder()
	onApartment(t, func(t testing.TB) {
		op, st := CreateFileOperation()
		require.Equal(t, StatusOK, st)
		_, st = op.Advise(&rec.ProgressSink)
		require.Equal(t, StatusOK, st)
		op.Release()
	})
	assert.Equal(t, int32(1), rec.refs.Load(), "engine drops its sink reference when freed")
}

func TestFileOperation_TargetContainsSource(t *testing.T) {
	tests := []struct {
		name string
		move bool
	}{
		{"copy", false},
		{"move", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			keep := filepath.Join(dir, "b", "c", "keep.txt")
			require.NoError(t, os.MkdirAll(filepath.Dir(keep), 0o755))
			require.NoError(t, os.WriteFile(keep, []byte("keep"), 0o644))

			onApartment(t, func(t testing.TB) {
				op, st := CreateFileOperation()
				require.Equal(t, StatusOK, st)
				defer op.Release()
				require.Equal(t, StatusOK, op.SetOperationFlags(FlagNoConfirmation))
				src := mustParse(t, filepath.Dir(keep))
				defer src.Release()
				dest := mustParse(t, dir)
				defer dest.Release()
				if tt.move {
					require.Equal(t, StatusOK, op.MoveItem(src, dest, "b"))
				} else {
					require.Equal(t, StatusOK, op.CopyItem(src, dest, "b"))
				}

				assert.Equal(t, StatusInvalidArg, op.PerformOperations())
			})
			assert.FileExists(t, keep, "replacing an ancestor must not destroy the source")
		})
	}
}
