package native

import (
	"strings"

	"github.com/brettbedarf/shellstore/internal/util"
)

// OperationFlags control a whole file operation.
type OperationFlags uint32

const (
	FlagMultiDestFiles    OperationFlags = 0x0001
	FlagSilent            OperationFlags = 0x0004
	FlagRenameOnCollision OperationFlags = 0x0008
	FlagNoConfirmation    OperationFlags = 0x0010
	FlagAllowUndo         OperationFlags = 0x0040
	FlagFilesOnly         OperationFlags = 0x0080
	FlagNoConfirmMkdir    OperationFlags = 0x0200
	FlagNoErrorUI         OperationFlags = 0x0400
)

type opKind int

const (
	opCopy opKind = iota
	opMove
	opDelete
	opRename
	opNew
)

var opNames = [...]string{"copy", "move", "delete", "rename", "new"}

type queuedOp struct {
	kind     opKind
	item     *Item
	dest     *Item
	name     string
	template string
	attrs    FileAttributes
}

func (q *queuedOp) release() {
	if q.item != nil {
		q.item.Release()
	}
	if q.dest != nil {
		q.dest.Release()
	}
}

type advised struct {
	cookie uint32
	sink   *ProgressSink
}

// FileOperation is a transaction engine: operations are queued, then
// executed together by PerformOperations while advised sinks observe
// every item.
type FileOperation struct {
	object
	flags      OperationFlags
	recycleDir string
	sinks      []advised
	nextCookie uint32
	queue      []*queuedOp
	performed  bool
	aborted    bool
}

// CreateFileOperation creates an engine with a reference count of one.
func CreateFileOperation() (*FileOperation, Status) {
	if !InApartment() {
		return nil, escalate("CreateFileOperation", StatusNotInitialized)
	}
	f := &FileOperation{}
	f.init("FileOperation", f.teardown)
	return f, StatusOK
}

// teardown drops queued items and any sink that was never unadvised.
func (f *FileOperation) teardown() {
	for _, q := range f.queue {
		q.release()
	}
	f.queue = nil
	for _, a := range f.sinks {
		a.sink.Vtbl.Release(a.sink)
	}
	f.sinks = nil
}

// SetOperationFlags replaces the operation flags.
func (f *FileOperation) SetOperationFlags(flags OperationFlags) Status {
	if st := f.enter(); st.Failed() {
		return st
	}
	f.flags = flags
	return StatusOK
}

// SetRecycleDir sets where deletions go when FlagAllowUndo is set. Without
// one, deletions are permanent.
func (f *FileOperation) SetRecycleDir(dir string) Status {
	if st := f.enter(); st.Failed() {
		return st
	}
	f.recycleDir = dir
	return StatusOK
}

// Advise attaches a progress sink. The sink is queried for its progress
// interface, which holds the engine's reference until Unadvise.
func (f *FileOperation) Advise(sink *ProgressSink) (uint32, Status) {
	if st := f.enter(); st.Failed() {
		return 0, st
	}
	if sink == nil || sink.Vtbl == nil {
		return 0, escalate("Advise", StatusPointer)
	}
	var out *ProgressSink
	if st := sink.Vtbl.QueryInterface(sink, IIDFileOperationProgressSink, &out); st.Failed() || out == nil {
		return 0, escalate("Advise", StatusNoInterface)
	}
	f.nextCookie++
	f.sinks = append(f.sinks, advised{cookie: f.nextCookie, sink: out})
	return f.nextCookie, StatusOK
}

// Unadvise detaches the sink registered under cookie and releases it.
func (f *FileOperation) Unadvise(cookie uint32) Status {
	if st := f.enter(); st.Failed() {
		return st
	}
	for i, a := range f.sinks {
		if a.cookie == cookie {
			f.sinks = append(f.sinks[:i], f.sinks[i+1:]...)
			a.sink.Vtbl.Release(a.sink)
			return StatusOK
		}
	}
	return escalate("Unadvise", StatusInvalidArg)
}

// CopyItem queues a copy of item into dest, optionally under a new name.
func (f *FileOperation) CopyItem(item, dest *Item, newName string) Status {
	return f.enqueue("CopyItem", &queuedOp{kind: opCopy, item: item, dest: dest, name: newName})
}

// MoveItem queues a move of item into dest, optionally under a new name.
func (f *FileOperation) MoveItem(item, dest *Item, newName string) Status {
	return f.enqueue("MoveItem", &queuedOp{kind: opMove, item: item, dest: dest, name: newName})
}

// DeleteItem queues the deletion of item.
func (f *FileOperation) DeleteItem(item *Item) Status {
	return f.enqueue("DeleteItem", &queuedOp{kind: opDelete, item: item})
}

// RenameItem queues renaming item in place.
func (f *FileOperation) RenameItem(item *Item, newName string) Status {
	if newName == "" {
		return escalate("RenameItem", StatusInvalidArg)
	}
	return f.enqueue("RenameItem", &queuedOp{kind: opRename, item: item, name: newName})
}

// NewItem queues the creation of name inside dest. A non-empty template is
// the path of a file whose content seeds the new file.
func (f *FileOperation) NewItem(dest *Item, attrs FileAttributes, name, template string) Status {
	if name == "" {
		return escalate("NewItem", StatusInvalidArg)
	}
	return f.enqueue("NewItem", &queuedOp{kind: opNew, dest: dest, name: name, template: template, attrs: attrs})
}

func (f *FileOperation) enqueue(op string, q *queuedOp) Status {
	if st := f.enter(); st.Failed() {
		return st
	}
	if f.performed {
		return escalate(op, StatusUnexpected)
	}
	needItem := q.kind != opNew
	needDest := q.kind == opCopy || q.kind == opMove || q.kind == opNew
	switch {
	case needItem && q.item == nil, needDest && q.dest == nil:
		return escalate(op, StatusPointer)
	case needDest && !q.dest.attrs.IsContainer():
		return escalate(op, StatusInvalidArg)
	case strings.ContainsAny(q.name, `/\`):
		return escalate(op, StatusInvalidArg)
	}
	if q.item != nil {
		if st := q.item.enter(); st.Failed() {
			return st
		}
		q.item.AddRef()
	}
	if q.dest != nil {
		q.dest.AddRef()
	}
	f.queue = append(f.queue, q)
	return StatusOK
}

// AnyOperationsAborted reports whether a pre-operation hook stopped the
// transaction before every queued item was attempted.
func (f *FileOperation) AnyOperationsAborted() (bool, Status) {
	if st := f.enter(); st.Failed() {
		return false, st
	}
	return f.aborted, StatusOK
}

// PerformOperations executes the queue. Every advised sink sees
// StartOperations, a pre and post hook per item, cumulative progress and a
// final FinishOperations. A pre hook returning StatusSkip skips its item; a
// failure aborts the remaining queue. Items that fail do not stop the
// transaction; the first failure becomes the overall result.
func (f *FileOperation) PerformOperations() Status {
	if st := f.enter(); st.Failed() {
		return st
	}
	if f.performed {
		return escalate("PerformOperations", StatusUnexpected)
	}
	f.performed = true
	logger := util.GetLogger("native.FileOperation")

	f.notify(func(s *ProgressSink) Status { return s.Vtbl.StartOperations(s) })
	f.notify(func(s *ProgressSink) Status { return s.Vtbl.ResetTimer(s) })

	units := make([]uint32, len(f.queue))
	var total, done uint32
	for i, q := range f.queue {
		units[i] = q.workUnits()
		total += units[i]
	}
	f.progress(total, done)

	result := StatusOK
	for i, q := range f.queue {
		flags := f.transferFlags(q)
		pre := f.pre(q, flags)
		if pre.Failed() {
			logger.Debug().Str("op", opNames[q.kind]).Str("status", pre.String()).Msg("aborted by sink")
			f.aborted = true
			if result.Succeeded() {
				result = pre
			}
			break
		}
		if pre != StatusSkip && pre != StatusDontProcessChild {
			st, created := f.execute(q)
			logger.Trace().Str("op", opNames[q.kind]).Str("status", st.String()).Msg("item done")
			f.post(q, flags, st, created)
			if created != nil {
				created.Release()
			}
			if st.Failed() && result.Succeeded() {
				result = st
			}
		}
		done += units[i]
		f.progress(total, done)
	}

	f.notify(func(s *ProgressSink) Status { return s.Vtbl.FinishOperations(s, result) })
	if f.aborted {
		return result
	}
	return escalate("PerformOperations", result)
}

func (f *FileOperation) transferFlags(q *queuedOp) TransferFlags {
	flags := TransferNormal
	switch {
	case f.flags&FlagRenameOnCollision != 0:
		flags |= TransferRenameExist
	case f.flags&FlagNoConfirmation != 0:
		flags |= TransferOverwriteExist
	}
	if q.kind == opDelete && f.flags&FlagAllowUndo != 0 {
		flags |= TransferDeleteRecycleIfPossible
	}
	return flags
}

// notify calls fn on every advised sink in advise order.
func (f *FileOperation) notify(fn func(s *ProgressSink) Status) {
	for _, a := range f.sinks {
		fn(a.sink)
	}
}

func (f *FileOperation) progress(total, done uint32) {
	f.notify(func(s *ProgressSink) Status { return s.Vtbl.UpdateProgress(s, total, done) })
}

// pre runs the pre hook on every sink. A failure wins over a skip, which
// wins over success.
func (f *FileOperation) pre(q *queuedOp, flags TransferFlags) Status {
	result := StatusOK
	f.notify(func(s *ProgressSink) Status {
		var st Status
		switch q.kind {
		case opCopy:
			st = s.Vtbl.PreCopyItem(s, flags, q.item, q.dest, q.name)
		case opMove:
			st = s.Vtbl.PreMoveItem(s, flags, q.item, q.dest, q.name)
		case opDelete:
			st = s.Vtbl.PreDeleteItem(s, flags, q.item)
		case opRename:
			st = s.Vtbl.PreRenameItem(s, flags, q.item, q.name)
		case opNew:
			st = s.Vtbl.PreNewItem(s, flags, q.dest, q.name)
		}
		switch {
		case st.Failed() && result.Succeeded():
			result = st
		case st != StatusOK && result == StatusOK:
			result = st
		}
		return st
	})
	return result
}

func (f *FileOperation) post(q *queuedOp, flags TransferFlags, st Status, created *Item) {
	f.notify(func(s *ProgressSink) Status {
		switch q.kind {
		case opCopy:
			return s.Vtbl.PostCopyItem(s, flags, q.item, q.dest, q.name, st, created)
		case opMove:
			return s.Vtbl.PostMoveItem(s, flags, q.item, q.dest, q.name, st, created)
		case opDelete:
			return s.Vtbl.PostDeleteItem(s, flags, q.item, st, created)
		case opRename:
			return s.Vtbl.PostRenameItem(s, flags, q.item, q.name, st, created)
		default:
			return s.Vtbl.PostNewItem(s, flags, q.dest, q.name, q.template, q.attrs, st, created)
		}
	})
}
