// Package operations runs batched copy, move, delete, rename and create
// transactions on the native file operation engine and reports their
// progress as typed events.
package operations

import (
	"context"
	"slices"
	"sync"

	"github.com/brettbedarf/shellstore/config"
	"github.com/brettbedarf/shellstore/internal/metrics"
	"github.com/brettbedarf/shellstore/internal/util"
	"github.com/brettbedarf/shellstore/native"
	"github.com/brettbedarf/shellstore/storage"
	"github.com/prometheus/client_golang/prometheus"
)

type subscription struct {
	kind Kind
	any  bool
	h    Handler
}

// Engine wraps one native file operation with an attached progress sink.
// It is bound to the apartment thread that created it: queue, perform and
// close it there.
type Engine struct {
	op     *native.FileOperation
	sink   *sink
	cookie uint32

	// set while PerformAllContext runs
	ctx     context.Context
	results []ItemResult

	mu      sync.RWMutex
	nextSub uint64
	subs    map[uint64]subscription
}

// operationFlags maps configuration onto engine flags. The engine never
// shows UI.
func operationFlags(cfg *config.Config) native.OperationFlags {
	flags := native.FlagSilent | native.FlagNoErrorUI | native.FlagNoConfirmMkdir
	if cfg.AllowUndo {
		flags |= native.FlagAllowUndo
	}
	if cfg.NoConfirmation {
		flags |= native.FlagNoConfirmation
	}
	if cfg.RenameOnCollision {
		flags |= native.FlagRenameOnCollision
	}
	return flags
}

// NewEngine creates an engine on the calling apartment thread. A nil cfg
// selects the defaults.
func NewEngine(cfg *config.Config) (*Engine, native.Status) {
	if cfg == nil {
		cfg = config.NewDefaultConfig()
	}
	logger := util.GetLogger("operations.Engine")

	op, st := native.CreateFileOperation()
	if st.Failed() {
		return nil, st
	}
	if st := op.SetOperationFlags(operationFlags(cfg)); st.Failed() {
		op.Release()
		return nil, st
	}
	if cfg.RecycleDir != "" {
		if st := op.SetRecycleDir(cfg.RecycleDir); st.Failed() {
			op.Release()
			return nil, st
		}
	}

	e := &Engine{op: op, subs: make(map[uint64]subscription)}
	e.sink = newSink(e)
	cookie, st := op.Advise(&e.sink.ProgressSink)
	if st.Failed() {
		logger.Error().Str("status", st.String()).Msg("failed to advise progress sink")
		e.sink.release()
		op.Release()
		return nil, st
	}
	e.cookie = cookie
	return e, native.StatusOK
}

func itemOf(s storage.Storable) *native.Item {
	if s == nil {
		return nil
	}
	return s.Handle().Item()
}

func folderItem(f *storage.Folder) *native.Item {
	if f == nil {
		return nil
	}
	return f.Handle().Item()
}

// QueueCopy queues copying src into dest. An empty newName keeps the
// source name.
func (e *Engine) QueueCopy(src storage.Storable, dest *storage.Folder, newName string) native.Status {
	return e.op.CopyItem(itemOf(src), folderItem(dest), newName)
}

// QueueMove queues moving src into dest. An empty newName keeps the
// source name.
func (e *Engine) QueueMove(src storage.Storable, dest *storage.Folder, newName string) native.Status {
	return e.op.MoveItem(itemOf(src), folderItem(dest), newName)
}

// QueueDelete queues deleting s. With AllowUndo and a recycle directory
// the item is recycled instead.
func (e *Engine) QueueDelete(s storage.Storable) native.Status {
	return e.op.DeleteItem(itemOf(s))
}

// QueueRename queues renaming s in place.
func (e *Engine) QueueRename(s storage.Storable, newName string) native.Status {
	return e.op.RenameItem(itemOf(s), newName)
}

// QueueCreate queues creating name inside dest. FileAttributeDirectory in
// attrs creates a folder; a non-empty template seeds a new file's content.
func (e *Engine) QueueCreate(dest *storage.Folder, attrs native.FileAttributes, name, template string) native.Status {
	return e.op.NewItem(folderItem(dest), attrs, name, template)
}

// PerformAll executes everything queued. It can only run once.
func (e *Engine) PerformAll() native.Status {
	return e.PerformAllContext(context.Background())
}

// PerformAllContext executes everything queued. Cancelling ctx aborts the
// transaction before the next item; processed items are kept.
func (e *Engine) PerformAllContext(ctx context.Context) native.Status {
	logger := util.GetLogger("operations.Engine")
	e.ctx = ctx
	defer func() { e.ctx = nil }()

	timer := prometheus.NewTimer(metrics.OperationDuration)
	st := e.op.PerformOperations()
	timer.ObserveDuration()

	logger.Debug().Str("status", st.String()).Int("items", len(e.results)).Msg("operations performed")
	return st
}

// AnyOperationsAborted reports whether the transaction stopped early.
func (e *Engine) AnyOperationsAborted() bool {
	aborted, _ := e.op.AnyOperationsAborted()
	return aborted
}

// Results returns the outcome of every processed item in order.
func (e *Engine) Results() []ItemResult {
	return slices.Clone(e.results)
}

// OnEvent subscribes h to one kind. The returned func unsubscribes.
func (e *Engine) OnEvent(kind Kind, h Handler) func() {
	return e.subscribe(subscription{kind: kind, h: h})
}

// OnAny subscribes h to every event.
func (e *Engine) OnAny(h Handler) func() {
	return e.subscribe(subscription{any: true, h: h})
}

func (e *Engine) subscribe(s subscription) func() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.nextSub++
	id := e.nextSub
	e.subs[id] = s
	return func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		delete(e.subs, id)
	}
}

// Close detaches the sink and releases the engine. Safe to call twice.
func (e *Engine) Close() {
	if e.op == nil {
		return
	}
	if e.cookie != 0 {
		e.op.Unadvise(e.cookie)
		e.cookie = 0
	}
	e.sink.release()
	e.sink = nil
	e.op.Release()
	e.op = nil
}

// raise delivers ev to OnAny handlers, then to handlers of its kind, and
// closes the storables it carries.
func (e *Engine) raise(ev *Event) {
	defer ev.close()

	e.mu.RLock()
	var anyHandlers, typed []Handler
	for _, s := range e.subs {
		switch {
		case s.any:
			anyHandlers = append(anyHandlers, s.h)
		case s.kind == ev.Kind:
			typed = append(typed, s.h)
		}
	}
	e.mu.RUnlock()

	for _, h := range append(anyHandlers, typed...) {
		h(ev)
	}
}

// borrow wraps a hook item for the duration of one event.
func borrow(item *native.Item) storage.Storable {
	if item == nil {
		return nil
	}
	item.AddRef()
	return storage.FromItem(item)
}

func borrowFolder(item *native.Item) *storage.Folder {
	s := borrow(item)
	if f, ok := s.(*storage.Folder); ok {
		return f
	}
	if s != nil {
		s.Close()
	}
	return nil
}

func (e *Engine) itemEvent(h *hook) *Event {
	return &Event{
		Kind:     h.kind,
		Item:     borrow(h.item),
		Dest:     borrowFolder(h.dest),
		Result:   borrow(h.created),
		Name:     h.name,
		Template: h.template,
		Attrs:    h.attrs,
		Flags:    h.flags,
		Status:   h.status,
	}
}

func (e *Engine) preItem(h *hook) native.Status {
	if e.ctx != nil && e.ctx.Err() != nil {
		logger := util.GetLogger("operations.Engine")
		logger.Debug().Err(e.ctx.Err()).Str("kind", h.kind.String()).Msg("cancelled before item")
		return native.StatusUserCancelled
	}
	ev := e.itemEvent(h)
	e.raise(ev)
	return ev.decision
}

func (e *Engine) postItem(h *hook) {
	ev := e.itemEvent(h)
	res := ItemResult{Kind: h.kind, Name: h.name, Status: h.status}
	if ev.Item != nil {
		res.Source = ev.Item.ID()
	}
	if ev.Dest != nil {
		res.Dest = ev.Dest.ID()
	}
	if ev.Result != nil {
		res.Result = ev.Result.ID()
	}
	e.results = append(e.results, res)
	metrics.OperationItems.WithLabelValues(opLabel(h.kind), resultLabel(h.status)).Inc()

	logger := util.GetLogger("operations.Engine")
	logger.Trace().Str("kind", h.kind.String()).Str("source", res.Source).Str("status", h.status.String()).Msg("item processed")
	e.raise(ev)
}

func opLabel(k Kind) string {
	switch k {
	case ItemCopied:
		return "copy"
	case ItemMoved:
		return "move"
	case ItemDeleted:
		return "delete"
	case ItemRenamed:
		return "rename"
	case ItemCreated:
		return "create"
	}
	return "unknown"
}

func resultLabel(st native.Status) string {
	if st.Succeeded() {
		return "ok"
	}
	return st.String()
}
