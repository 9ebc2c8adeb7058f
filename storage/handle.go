package storage

import "github.com/brettbedarf/shellstore/native"

// noCopy lets go vet's copylocks check flag copies of a Handle.
type noCopy struct{}

func (*noCopy) Lock()   {}
func (*noCopy) Unlock() {}

// Handle owns exactly one reference to a native item. A Handle is either
// null or valid; Close releases the reference once and later calls do
// nothing. Handles must not be copied.
type Handle struct {
	_    noCopy
	item *native.Item
}

// Acquire resolves path into a new handle. A missing path is reported as a
// status, never as a panic (except in shelldebug builds).
func Acquire(path string) (*Handle, native.Status) {
	item, st := native.ParseDisplayName(path)
	if st.Failed() {
		return &Handle{}, st
	}
	return &Handle{item: item}, native.StatusOK
}

// Attach wraps an item whose reference the caller already owns. The
// reference count is not incremented.
func Attach(item *native.Item) *Handle {
	return &Handle{item: item}
}

// IsNull reports whether the handle holds no item.
func (h *Handle) IsNull() bool {
	return h == nil || h.item == nil
}

// Item borrows the underlying item. The handle keeps ownership.
func (h *Handle) Item() *native.Item {
	if h == nil {
		return nil
	}
	return h.item
}

// Detach transfers ownership of the item to the caller and leaves the
// handle null.
func (h *Handle) Detach() *native.Item {
	item := h.item
	h.item = nil
	return item
}

// Close releases the item. Safe to call more than once.
func (h *Handle) Close() {
	if h == nil || h.item == nil {
		return
	}
	item := h.item
	h.item = nil
	item.Release()
}
