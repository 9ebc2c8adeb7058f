// Package watcher raises debounced, typed events for changes inside one
// folder.
package watcher

import (
	"sync"
	"sync/atomic"

	"github.com/brettbedarf/shellstore/config"
	"github.com/brettbedarf/shellstore/internal/apartment"
	"github.com/brettbedarf/shellstore/internal/debounce"
	"github.com/brettbedarf/shellstore/internal/metrics"
	"github.com/brettbedarf/shellstore/internal/util"
	"github.com/brettbedarf/shellstore/native"
	"github.com/brettbedarf/shellstore/storage"
)

// State is the lifecycle stage of a Watcher.
type State int32

const (
	StateCreated State = iota
	StateRegistering
	StateWatching
	StateDisposed
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "Created"
	case StateRegistering:
		return "Registering"
	case StateWatching:
		return "Watching"
	case StateDisposed:
		return "Disposed"
	}
	return "Unknown"
}

const (
	msgNotify = native.MsgUser + 1
	msgFlush  = native.MsgUser + 2
)

type subscription struct {
	kind Kind
	any  bool
	h    Handler
}

// Watcher owns a message-loop thread that listens for change notifications
// scoped to one folder. Bursts are collapsed by a debouncer, and only the
// last notification of a burst is raised.
type Watcher struct {
	path      string
	queueSize int
	debouncer *debounce.Debouncer

	state    atomic.Int32
	closing  atomic.Bool
	window   atomic.Pointer[native.Window]
	loopTID  atomic.Uint64
	watching chan struct{}
	loop     *apartment.Future[struct{}]
	once     sync.Once

	// loop thread only
	folder    storage.Storable
	printName *native.IDList
	token     uint32
	pending   *decoded

	mu      sync.RWMutex
	nextSub uint64
	subs    map[uint64]subscription
}

// New starts watching folder. The folder is only borrowed for its path;
// the watcher resolves its own handle on the loop thread.
func New(folder *storage.Folder, cfg *config.Config) *Watcher {
	return NewFromPath(folder.ID(), cfg)
}

// NewFromPath starts watching the folder at path. A nil cfg selects the
// defaults. If the folder cannot be resolved or registration fails, the
// watcher stays in StateRegistering and never raises events.
func NewFromPath(path string, cfg *config.Config) *Watcher {
	if cfg == nil {
		cfg = config.NewDefaultConfig()
	}
	w := &Watcher{
		path:      path,
		queueSize: cfg.NotifyQueueSize,
		debouncer: debounce.New(cfg.DebounceInterval),
		watching:  make(chan struct{}),
		subs:      make(map[uint64]subscription),
	}
	w.state.Store(int32(StateRegistering))
	metrics.WatchersActive.Inc()
	w.loop = apartment.Run(w.run)
	return w
}

// Path returns the watched folder's path.
func (w *Watcher) Path() string {
	return w.path
}

// State returns the current lifecycle stage.
func (w *Watcher) State() State {
	return State(w.state.Load())
}

// Watching is closed once registration succeeds.
func (w *Watcher) Watching() <-chan struct{} {
	return w.watching
}

// OnEvent subscribes h to one typed kind. The returned func unsubscribes.
func (w *Watcher) OnEvent(kind Kind, h Handler) func() {
	return w.subscribe(subscription{kind: kind, h: h})
}

// OnAny subscribes h to every event, mapped or not.
func (w *Watcher) OnAny(h Handler) func() {
	return w.subscribe(subscription{any: true, h: h})
}

func (w *Watcher) subscribe(s subscription) func() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.nextSub++
	id := w.nextSub
	w.subs[id] = s
	return func() {
		w.mu.Lock()
		defer w.mu.Unlock()
		delete(w.subs, id)
	}
}

// Close stops the watcher and waits for the loop thread to exit. It is
// idempotent and may be called from any goroutine, including handlers.
func (w *Watcher) Close() {
	w.once.Do(func() {
		w.closing.Store(true)
		if native.CurrentThreadID() == w.loopTID.Load() {
			w.dispose()
			return
		}
		if win := w.window.Load(); win != nil {
			win.PostMessage(native.Message{ID: native.MsgClose})
		}
		<-w.loop.Done()
	})
}

func (w *Watcher) run() (struct{}, error) {
	logger := util.GetLogger("Watcher.loop")
	w.loopTID.Store(native.CurrentThreadID())

	window, st := native.CreateMessageWindow(w.queueSize)
	if st.Failed() {
		logger.Error().Str("status", st.String()).Msg("failed to create message window")
		w.state.Store(int32(StateDisposed))
		metrics.WatchersActive.Dec()
		return struct{}{}, st
	}
	defer window.Release()
	w.window.Store(window)

	for {
		if w.closing.Load() {
			w.dispose()
			return struct{}{}, nil
		}
		msg, ok := window.GetMessage()
		if !ok {
			return struct{}{}, nil
		}
		switch msg.ID {
		case native.MsgCreate:
			w.register()
		case msgNotify:
			w.decode(msg.WParam)
		case msgFlush:
			w.flush()
		case native.MsgClose, native.MsgDestroy:
			w.dispose()
		}
	}
}

// register resolves the folder on the loop thread and subscribes to every
// notification scoped to it.
func (w *Watcher) register() {
	logger := util.GetLogger("Watcher.register")
	s, ok := storage.TryParse(w.path)
	if !ok {
		logger.Warn().Str("path", w.path).Msg("folder not found; watcher is inert")
		return
	}
	if !s.IsFolder() {
		s.Close()
		logger.Warn().Str("path", w.path).Msg("not a folder; watcher is inert")
		return
	}
	w.folder = s
	idl, st := s.Handle().Item().IDList()
	if st.Failed() {
		logger.Warn().Str("status", st.String()).Msg("failed to get print name")
		return
	}
	w.printName = idl
	w.token = native.ChangeNotifyRegister(
		w.window.Load(),
		native.SourceInterrupt|native.SourceShellLevel|native.SourceNewDelivery,
		native.NotifyAllEvents,
		msgNotify,
		[]native.NotifyEntry{{IDList: idl}},
	)
	if w.token == 0 {
		logger.Debug().Str("path", w.path).Msg("registration failed")
		return
	}
	if w.state.CompareAndSwap(int32(StateRegistering), int32(StateWatching)) {
		close(w.watching)
	}
	logger.Debug().Str("path", w.path).Uint32("token", w.token).Msg("watching")
}

// decode turns a notification payload into the pending triple and restarts
// the debounce window.
func (w *Watcher) decode(handle uintptr) {
	lock, kind, items := native.ChangeNotificationLock(handle)
	if lock == nil {
		return
	}
	if w.State() != StateWatching {
		lock.Unlock()
		return
	}
	d := &decoded{
		kind:    kind,
		item:    storage.FromIDList(items[0]),
		newItem: storage.FromIDList(items[1]),
	}
	lock.Unlock()
	metrics.NotificationsReceived.Inc()

	if w.pending != nil {
		w.pending.close()
	}
	w.pending = d
	w.debouncer.Debounce(w.postFlush)
}

// postFlush runs on the debouncer's timer and hands the flush back to the
// loop thread, which owns the pending triple.
func (w *Watcher) postFlush() {
	win := w.window.Load()
	if win == nil || !win.PostMessage(native.Message{ID: msgFlush}) {
		logger := util.GetLogger("Watcher.loop")
		logger.Debug().Str("path", w.path).Msg("flush dropped")
	}
}

func (w *Watcher) flush() {
	d := w.pending
	w.pending = nil
	if d == nil {
		return
	}
	defer d.close()
	if w.State() != StateWatching {
		return
	}
	ev := Event{
		Kind:    classify(d.kind, d.item, d.newItem),
		Native:  d.kind,
		Item:    d.item,
		NewItem: d.newItem,
	}
	metrics.WatcherEvents.WithLabelValues(ev.Kind.String()).Inc()
	logger := util.GetLogger("Watcher.loop")
	logger.Trace().Str("kind", ev.Kind.String()).Str("native", d.kind.String()).Msg("raising event")

	w.mu.RLock()
	var anyHandlers, typed []Handler
	for _, s := range w.subs {
		switch {
		case s.any:
			anyHandlers = append(anyHandlers, s.h)
		case s.kind == ev.Kind && ev.Kind != Unmapped:
			typed = append(typed, s.h)
		}
	}
	w.mu.RUnlock()

	for _, h := range append(anyHandlers, typed...) {
		if w.State() == StateDisposed {
			return
		}
		h(ev)
	}
}

// dispose tears everything down on the loop thread. Safe to call twice.
func (w *Watcher) dispose() {
	if State(w.state.Swap(int32(StateDisposed))) == StateDisposed {
		return
	}
	w.debouncer.Stop()
	if w.token != 0 {
		native.ChangeNotifyDeregister(w.token)
		w.token = 0
	}
	if w.printName != nil {
		w.printName.Free()
		w.printName = nil
	}
	if w.pending != nil {
		w.pending.close()
		w.pending = nil
	}
	if w.folder != nil {
		w.folder.Close()
		w.folder = nil
	}
	if win := w.window.Load(); win != nil {
		win.Destroy()
	}
	metrics.WatchersActive.Dec()
	logger := util.GetLogger("Watcher.loop")
	logger.Debug().Str("path", w.path).Msg("disposed")
}
