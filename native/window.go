package native

import (
	"sync"
	"sync/atomic"
)

// MessageID identifies a window message.
type MessageID uint32

const (
	MsgCreate  MessageID = 0x0001
	MsgDestroy MessageID = 0x0002
	MsgClose   MessageID = 0x0010
	MsgQuit    MessageID = 0x0012

	// MsgUser is the first identifier available for private messages.
	MsgUser MessageID = 0x0400
)

// Message is one queued window message.
type Message struct {
	ID     MessageID
	WParam uintptr
	LParam uintptr
}

// DefaultQueueSize is the message queue depth used when none is given.
const DefaultQueueSize = 256

// Window is a hidden message-only window: a bounded queue drained by the
// apartment thread that created it.
type Window struct {
	object
	queue     chan Message
	quit      chan struct{}
	quitOnce  sync.Once
	destroyed atomic.Bool
}

// CreateMessageWindow creates a window owned by the calling apartment thread.
// MsgCreate is always the first message retrieved.
func CreateMessageWindow(queueSize int) (*Window, Status) {
	if !InApartment() {
		return nil, escalate("CreateMessageWindow", StatusNotInitialized)
	}
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	w := &Window{
		queue: make(chan Message, queueSize),
		quit:  make(chan struct{}),
	}
	w.init("Window", nil)
	w.queue <- Message{ID: MsgCreate}
	return w, StatusOK
}

// PostMessage queues msg without waiting. It may be called from any thread
// and returns false if the window is destroyed or its queue is full.
func (w *Window) PostMessage(msg Message) bool {
	if w.destroyed.Load() {
		return false
	}
	if msg.ID == MsgQuit {
		w.postQuit()
		return true
	}
	select {
	case w.queue <- msg:
		return true
	default:
		return false
	}
}

func (w *Window) postQuit() {
	w.quitOnce.Do(func() { close(w.quit) })
}

// GetMessage blocks until a message is available. It returns false once the
// window has been told to quit. Only the owning thread may call it.
func (w *Window) GetMessage() (Message, bool) {
	if st := w.enter(); st.Failed() {
		return Message{}, false
	}
	select {
	case <-w.quit:
		return Message{ID: MsgQuit}, false
	default:
	}
	select {
	case <-w.quit:
		return Message{ID: MsgQuit}, false
	case msg := <-w.queue:
		return msg, true
	}
}

// Destroy rejects further posts, discards pending messages and makes the
// next GetMessage return false.
func (w *Window) Destroy() Status {
	if st := w.enter(); st.Failed() {
		return st
	}
	if !w.destroyed.CompareAndSwap(false, true) {
		return StatusFalse
	}
	w.postQuit()
	for {
		select {
		case <-w.queue:
		default:
			return StatusOK
		}
	}
}
