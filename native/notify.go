package native

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/brettbedarf/shellstore/internal/util"
	"github.com/fsnotify/fsnotify"
	"github.com/puzpuzpuz/xsync/v4"
)

// NotifyKind is a change notification event bit.
type NotifyKind uint32

const (
	NotifyRenameItem       NotifyKind = 0x00000001
	NotifyCreate           NotifyKind = 0x00000002
	NotifyDelete           NotifyKind = 0x00000004
	NotifyMkDir            NotifyKind = 0x00000008
	NotifyRmDir            NotifyKind = 0x00000010
	NotifyMediaInserted    NotifyKind = 0x00000020
	NotifyMediaRemoved     NotifyKind = 0x00000040
	NotifyDriveRemoved     NotifyKind = 0x00000080
	NotifyDriveAdd         NotifyKind = 0x00000100
	NotifyNetShare         NotifyKind = 0x00000200
	NotifyNetUnshare       NotifyKind = 0x00000400
	NotifyAttributes       NotifyKind = 0x00000800
	NotifyUpdateDir        NotifyKind = 0x00001000
	NotifyUpdateItem       NotifyKind = 0x00002000
	NotifyServerDisconnect NotifyKind = 0x00004000
	NotifyUpdateImage      NotifyKind = 0x00008000
	NotifyDriveAddGUI      NotifyKind = 0x00010000
	NotifyRenameFolder     NotifyKind = 0x00020000
	NotifyFreeSpace        NotifyKind = 0x00040000
	NotifyExtendedEvent    NotifyKind = 0x04000000
	NotifyAssocChanged     NotifyKind = 0x08000000
	NotifyAllEvents        NotifyKind = 0x7FFFFFFF

	// NotifyInterrupt flags events that originated in the file system rather
	// than the shell. On its own it reports lost notifications.
	NotifyInterrupt NotifyKind = 0x80000000
)

var notifyNames = map[NotifyKind]string{
	NotifyRenameItem:       "RENAMEITEM",
	NotifyCreate:           "CREATE",
	NotifyDelete:           "DELETE",
	NotifyMkDir:            "MKDIR",
	NotifyRmDir:            "RMDIR",
	NotifyMediaInserted:    "MEDIAINSERTED",
	NotifyMediaRemoved:     "MEDIAREMOVED",
	NotifyDriveRemoved:     "DRIVEREMOVED",
	NotifyDriveAdd:         "DRIVEADD",
	NotifyNetShare:         "NETSHARE",
	NotifyNetUnshare:       "NETUNSHARE",
	NotifyAttributes:       "ATTRIBUTES",
	NotifyUpdateDir:        "UPDATEDIR",
	NotifyUpdateItem:       "UPDATEITEM",
	NotifyServerDisconnect: "SERVERDISCONNECT",
	NotifyUpdateImage:      "UPDATEIMAGE",
	NotifyDriveAddGUI:      "DRIVEADDGUI",
	NotifyRenameFolder:     "RENAMEFOLDER",
	NotifyFreeSpace:        "FREESPACE",
	NotifyExtendedEvent:    "EXTENDEDEVENT",
	NotifyAssocChanged:     "ASSOCCHANGED",
	NotifyInterrupt:        "INTERRUPT",
}

func (k NotifyKind) String() string {
	if name, ok := notifyNames[k]; ok {
		return name
	}
	if base := k &^ NotifyInterrupt; base != k {
		return base.String() + "|INTERRUPT"
	}
	return fmt.Sprintf("0x%08X", uint32(k))
}

// NotifySource selects where notifications are collected from.
type NotifySource uint32

const (
	SourceInterrupt   NotifySource = 0x0001
	SourceShellLevel  NotifySource = 0x0002
	SourceRecursive   NotifySource = 0x1000
	SourceNewDelivery NotifySource = 0x8000
)

// NotifyEntry scopes a registration to one folder.
type NotifyEntry struct {
	IDList    *IDList
	Recursive bool
}

// renamePairWindow is how long a rename source waits for its destination
// before it is reported as a delete.
const renamePairWindow = 50 * time.Millisecond

type notification struct {
	reg   uint32
	kind  NotifyKind
	items [2]*IDList
}

func (n *notification) free() {
	n.items[0].Free()
	n.items[1].Free()
}

type pendingRename struct {
	path  string
	attrs Attributes
}

type registration struct {
	id      uint32
	window  *Window
	sources NotifySource
	events  NotifyKind
	msg     MessageID
	// mu guards entries and closed against in-flight deliveries.
	mu      sync.RWMutex
	entries []NotifyEntry
	closed  bool
	root    string

	fsw     *fsnotify.Watcher
	done    chan struct{}
	dirs    map[string]bool
	pending *pendingRename
}

var (
	registrations    = xsync.NewMap[uint32, *registration]()
	nextRegistration atomic.Uint32
	notifications    = newHandles[*notification]()
)

// ChangeNotifyRegister subscribes window to change notifications for the
// given entries. Matching notifications are posted as msg with the payload
// handle in WParam and the kind in LParam. Returns 0 on failure.
func ChangeNotifyRegister(w *Window, sources NotifySource, events NotifyKind, msg MessageID, entries []NotifyEntry) uint32 {
	logger := util.GetLogger("native.ChangeNotifyRegister")
	if w == nil || len(entries) == 0 || !InApartment() || w.destroyed.Load() {
		return 0
	}
	reg := &registration{
		window:  w,
		sources: sources,
		events:  events,
		msg:     msg,
		dirs:    make(map[string]bool),
	}
	for _, e := range entries {
		if e.IDList == nil {
			reg.freeEntries()
			return 0
		}
		reg.entries = append(reg.entries, NotifyEntry{
			IDList:    e.IDList.Clone(),
			Recursive: e.Recursive || sources&SourceRecursive != 0,
		})
	}
	reg.root = reg.entries[0].IDList.Path()
	reg.id = nextRegistration.Add(1)
	if sources&SourceInterrupt != 0 {
		if err := reg.watch(); err != nil {
			logger.Debug().Err(err).Msg("file system watch failed")
			reg.freeEntries()
			return 0
		}
	}
	registrations.Store(reg.id, reg)
	logger.Trace().Uint32("id", reg.id).Str("events", events.String()).Msg("registered")
	return reg.id
}

// ChangeNotifyDeregister cancels a registration. Undelivered payloads that
// belong to it are freed.
func ChangeNotifyDeregister(id uint32) bool {
	reg, ok := registrations.LoadAndDelete(id)
	if !ok {
		return false
	}
	reg.mu.Lock()
	reg.closed = true
	reg.mu.Unlock()
	if reg.fsw != nil {
		_ = reg.fsw.Close()
		<-reg.done
	}
	notifications.table.Range(func(h uintptr, n *notification) bool {
		if n.reg == id {
			if n, ok := notifications.take(h); ok {
				n.free()
			}
		}
		return true
	})
	reg.freeEntries()
	return true
}

// NotifyLock holds a locked notification payload until Unlock.
type NotifyLock struct {
	n        *notification
	unlocked atomic.Bool
}

// ChangeNotificationLock claims the payload behind handle and returns its
// kind and the before/after identifiers, which stay valid until Unlock.
// A nil lock means the payload no longer exists.
func ChangeNotificationLock(handle uintptr) (*NotifyLock, NotifyKind, [2]*IDList) {
	n, ok := notifications.take(handle)
	if !ok {
		return nil, 0, [2]*IDList{}
	}
	return &NotifyLock{n: n}, n.kind, n.items
}

// Unlock frees the payload. Unlocking twice is a lifetime violation.
func (l *NotifyLock) Unlock() {
	if !l.unlocked.CompareAndSwap(false, true) {
		violation("NotifyLock: double unlock")
		return
	}
	l.n.free()
}

// ChangeNotify reports an application-originated change to every shell-level
// registration whose scope covers path1 or path2.
func ChangeNotify(kind NotifyKind, path1, path2 string) {
	kind &^= NotifyInterrupt
	folderKind := kind&(NotifyMkDir|NotifyRmDir|NotifyRenameFolder|NotifyUpdateDir) != 0
	resolve := func(p string) (string, Attributes) {
		if p == "" {
			return "", 0
		}
		if abs, err := filepath.Abs(p); err == nil {
			p = abs
		}
		if attrs, st := statAttributes(p); st.Succeeded() && kind&(NotifyDelete|NotifyRmDir) == 0 {
			return p, attrs
		}
		if folderKind {
			return p, AttrFileSystem | AttrFolder
		}
		return p, AttrFileSystem
	}
	p1, a1 := resolve(path1)
	p2, a2 := resolve(path2)
	if kind&(NotifyRenameItem|NotifyRenameFolder) != 0 && p2 != "" {
		// the source no longer exists; it had the destination's type
		a1 = a2
	}
	registrations.Range(func(_ uint32, r *registration) bool {
		if r.sources&SourceShellLevel != 0 {
			r.deliver(kind, p1, a1, p2, a2)
		}
		return true
	})
}

func (r *registration) freeEntries() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.entries {
		e.IDList.Free()
	}
	r.entries = nil
}

func (r *registration) watch() error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	for _, e := range r.entries {
		dir := e.IDList.Path()
		if err := fsw.Add(dir); err != nil {
			_ = fsw.Close()
			return fmt.Errorf("failed to watch %s: %w", dir, err)
		}
		r.dirs[dir] = true
		children, _ := os.ReadDir(dir)
		for _, c := range children {
			if c.IsDir() {
				r.dirs[filepath.Join(dir, c.Name())] = true
			}
		}
	}
	r.fsw = fsw
	r.done = make(chan struct{})
	go r.pump()
	return nil
}

func (r *registration) pump() {
	defer close(r.done)
	logger := util.GetLogger("native.ChangeNotify")
	events, errs := r.fsw.Events, r.fsw.Errors
	var renameTimer <-chan time.Time
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				r.flushRename()
				return
			}
			if r.translate(ev) {
				renameTimer = time.After(renamePairWindow)
			}
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			if errors.Is(err, fsnotify.ErrEventOverflow) {
				logger.Warn().Msg("notification queue overflow")
				r.deliver(NotifyInterrupt, r.root, AttrFileSystem|AttrFolder, "", 0)
				continue
			}
			logger.Error().Err(err).Msg("watch error")
		case <-renameTimer:
			renameTimer = nil
			r.flushRename()
		}
	}
}

// translate maps one file system event onto a notification kind. It returns
// true when a rename source is waiting for its destination.
func (r *registration) translate(ev fsnotify.Event) bool {
	const file = AttrFileSystem
	switch {
	case ev.Has(fsnotify.Create):
		attrs, st := statAttributes(ev.Name)
		if st.Failed() {
			attrs = file
		}
		if attrs.IsContainer() {
			r.dirs[ev.Name] = true
		}
		if p := r.pending; p != nil {
			r.pending = nil
			delete(r.dirs, p.path)
			kind := NotifyRenameItem
			if attrs.IsContainer() {
				kind = NotifyRenameFolder
			}
			r.deliver(kind|NotifyInterrupt, p.path, p.attrs, ev.Name, attrs)
			return false
		}
		kind := NotifyCreate
		if attrs.IsContainer() {
			kind = NotifyMkDir
		}
		r.deliver(kind|NotifyInterrupt, ev.Name, attrs, "", 0)
	case ev.Has(fsnotify.Remove):
		kind, attrs := NotifyDelete, file
		if r.dirs[ev.Name] {
			kind, attrs = NotifyRmDir, file|AttrFolder
			delete(r.dirs, ev.Name)
		}
		r.deliver(kind|NotifyInterrupt, ev.Name, attrs, "", 0)
	case ev.Has(fsnotify.Rename):
		r.flushRename()
		attrs := file
		if r.dirs[ev.Name] {
			attrs |= AttrFolder
		}
		r.pending = &pendingRename{path: ev.Name, attrs: attrs}
		return true
	case ev.Has(fsnotify.Write):
		attrs, st := statAttributes(ev.Name)
		if st.Failed() {
			return false
		}
		kind := NotifyUpdateItem
		if attrs.IsContainer() {
			kind = NotifyUpdateDir
		}
		r.deliver(kind|NotifyInterrupt, ev.Name, attrs, "", 0)
	case ev.Has(fsnotify.Chmod):
		attrs, st := statAttributes(ev.Name)
		if st.Failed() {
			return false
		}
		r.deliver(NotifyAttributes|NotifyInterrupt, ev.Name, attrs, "", 0)
	}
	return false
}

func (r *registration) flushRename() {
	p := r.pending
	if p == nil {
		return
	}
	r.pending = nil
	kind := NotifyDelete
	if p.attrs.IsContainer() {
		kind = NotifyRmDir
		delete(r.dirs, p.path)
	}
	r.deliver(kind|NotifyInterrupt, p.path, p.attrs, "", 0)
}

func (r *registration) accepts(kind NotifyKind) bool {
	base := kind &^ NotifyInterrupt
	if base == 0 {
		return r.sources&SourceInterrupt != 0
	}
	if kind&NotifyInterrupt != 0 && r.sources&SourceInterrupt == 0 {
		return false
	}
	return base&r.events != 0
}

func (r *registration) inScope(path string) bool {
	if path == "" {
		return false
	}
	for _, e := range r.entries {
		dir := e.IDList.Path()
		switch {
		case path == dir, filepath.Dir(path) == dir:
			return true
		case e.Recursive && strings.HasPrefix(path, dir+string(filepath.Separator)):
			return true
		}
	}
	return false
}

func (r *registration) deliver(kind NotifyKind, path1 string, attrs1 Attributes, path2 string, attrs2 Attributes) {
	if !r.accepts(kind) {
		return
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return
	}
	if !r.inScope(path1) && !r.inScope(path2) {
		return
	}
	n := &notification{reg: r.id, kind: kind}
	n.items[0] = newIDList(path1, attrs1)
	if path2 != "" {
		n.items[1] = newIDList(path2, attrs2)
	}
	h := notifications.put(n)
	if !r.window.PostMessage(Message{ID: r.msg, WParam: h, LParam: uintptr(kind)}) {
		if n, ok := notifications.take(h); ok {
			n.free()
		}
		logger := util.GetLogger("native.ChangeNotify")
		logger.Warn().Str("kind", kind.String()).Msg("notification dropped")
	}
}
