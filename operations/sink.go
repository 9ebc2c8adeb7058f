package operations

import (
	"sync"
	"sync/atomic"
	"unsafe"

	"github.com/brettbedarf/shellstore/internal/util"
	"github.com/brettbedarf/shellstore/native"
	"github.com/google/uuid"
	"github.com/puzpuzpuz/xsync/v4"
)

// sink is the progress sink block handed to the native engine. The native
// header must stay the first field: hooks recover the block from the header
// pointer they are given.
type sink struct {
	native.ProgressSink
	refs  atomic.Int32
	owner uintptr
}

var (
	// owners maps opaque owner handles to engines so the sink never holds
	// a Go reference to its engine.
	owners    = xsync.NewMap[uintptr, *Engine]()
	nextOwner atomic.Uintptr
)

// sinkVtbl is the function table shared by every sink, built on first use.
var sinkVtbl = sync.OnceValue(func() *native.ProgressSinkVtbl {
	return &native.ProgressSinkVtbl{
		QueryInterface: sinkQueryInterface,
		AddRef:         func(this *native.ProgressSink) uint32 { return sinkOf(this).addRef() },
		Release:        func(this *native.ProgressSink) uint32 { return sinkOf(this).release() },

		StartOperations: func(this *native.ProgressSink) native.Status {
			if e := sinkOf(this).engine(); e != nil {
				e.raise(&Event{Kind: OperationsStarted})
			}
			return native.StatusOK
		},
		FinishOperations: func(this *native.ProgressSink, result native.Status) native.Status {
			if e := sinkOf(this).engine(); e != nil {
				e.raise(&Event{Kind: OperationsFinished, Status: result})
			}
			return native.StatusOK
		},
		PreRenameItem: func(this *native.ProgressSink, flags native.TransferFlags, item *native.Item, newName string) native.Status {
			return sinkOf(this).pre(&hook{kind: ItemRenaming, flags: flags, item: item, name: newName})
		},
		PostRenameItem: func(this *native.ProgressSink, flags native.TransferFlags, item *native.Item, newName string, result native.Status, created *native.Item) native.Status {
			return sinkOf(this).post(&hook{kind: ItemRenamed, flags: flags, item: item, name: newName, status: result, created: created})
		},
		PreMoveItem: func(this *native.ProgressSink, flags native.TransferFlags, item, dest *native.Item, newName string) native.Status {
			return sinkOf(this).pre(&hook{kind: ItemMoving, flags: flags, item: item, dest: dest, name: newName})
		},
		PostMoveItem: func(this *native.ProgressSink, flags native.TransferFlags, item, dest *native.Item, newName string, result native.Status, created *native.Item) native.Status {
			return sinkOf(this).post(&hook{kind: ItemMoved, flags: flags, item: item, dest: dest, name: newName, status: result, created: created})
		},
		PreCopyItem: func(this *native.ProgressSink, flags native.TransferFlags, item, dest *native.Item, newName string) native.Status {
			return sinkOf(this).pre(&hook{kind: ItemCopying, flags: flags, item: item, dest: dest, name: newName})
		},
		PostCopyItem: func(this *native.ProgressSink, flags native.TransferFlags, item, dest *native.Item, newName string, result native.Status, created *native.Item) native.Status {
			return sinkOf(this).post(&hook{kind: ItemCopied, flags: flags, item: item, dest: dest, name: newName, status: result, created: created})
		},
		PreDeleteItem: func(this *native.ProgressSink, flags native.TransferFlags, item *native.Item) native.Status {
			return sinkOf(this).pre(&hook{kind: ItemDeleting, flags: flags, item: item})
		},
		PostDeleteItem: func(this *native.ProgressSink, flags native.TransferFlags, item *native.Item, result native.Status, recycled *native.Item) native.Status {
			return sinkOf(this).post(&hook{kind: ItemDeleted, flags: flags, item: item, status: result, created: recycled})
		},
		PreNewItem: func(this *native.ProgressSink, flags native.TransferFlags, dest *native.Item, newName string) native.Status {
			return sinkOf(this).pre(&hook{kind: ItemCreating, flags: flags, dest: dest, name: newName})
		},
		PostNewItem: func(this *native.ProgressSink, flags native.TransferFlags, dest *native.Item, newName, templateName string, attrs native.FileAttributes, result native.Status, created *native.Item) native.Status {
			return sinkOf(this).post(&hook{kind: ItemCreated, flags: flags, dest: dest, name: newName, template: templateName, attrs: attrs, status: result, created: created})
		},
		UpdateProgress: func(this *native.ProgressSink, workTotal, workSoFar uint32) native.Status {
			if e := sinkOf(this).engine(); e != nil {
				e.raise(&Event{Kind: ProgressUpdated, WorkTotal: workTotal, WorkDone: workSoFar})
			}
			return native.StatusOK
		},
		ResetTimer:  func(*native.ProgressSink) native.Status { return native.StatusOK },
		PauseTimer:  func(*native.ProgressSink) native.Status { return native.StatusOK },
		ResumeTimer: func(*native.ProgressSink) native.Status { return native.StatusOK },
	}
})

// newSink allocates a sink with a reference count of one, owned by e.
func newSink(e *Engine) *sink {
	s := &sink{ProgressSink: native.ProgressSink{Vtbl: sinkVtbl()}}
	s.refs.Store(1)
	s.owner = nextOwner.Add(1)
	owners.Store(s.owner, e)
	return s
}

func sinkOf(this *native.ProgressSink) *sink {
	return (*sink)(unsafe.Pointer(this))
}

func sinkQueryInterface(this *native.ProgressSink, iid uuid.UUID, out **native.ProgressSink) native.Status {
	if out == nil {
		return native.StatusPointer
	}
	if iid != native.IIDFileOperationProgressSink && iid != native.IIDUnknown {
		*out = nil
		return native.StatusNoInterface
	}
	sinkOf(this).addRef()
	*out = this
	return native.StatusOK
}

func (s *sink) addRef() uint32 {
	return uint32(s.refs.Add(1))
}

// release drops one reference. At zero the owner handle is freed; the
// engine may already be closed by then.
func (s *sink) release() uint32 {
	n := s.refs.Add(-1)
	switch {
	case n == 0:
		owners.Delete(s.owner)
	case n < 0:
		s.refs.Store(0)
		logger := util.GetLogger("operations.sink")
		logger.Error().Msg("sink released past zero")
		return 0
	}
	return uint32(n)
}

// engine resolves the owner handle. Nil once the sink has been freed.
func (s *sink) engine() *Engine {
	e, _ := owners.Load(s.owner)
	return e
}

// hook carries the arguments of one pre or post call.
type hook struct {
	kind     Kind
	flags    native.TransferFlags
	item     *native.Item
	dest     *native.Item
	name     string
	template string
	attrs    native.FileAttributes
	status   native.Status
	created  *native.Item
}

func (s *sink) pre(h *hook) native.Status {
	e := s.engine()
	if e == nil {
		return native.StatusOK
	}
	return e.preItem(h)
}

func (s *sink) post(h *hook) native.Status {
	e := s.engine()
	if e == nil {
		return native.StatusOK
	}
	e.postItem(h)
	return native.StatusOK
}
