package native

import (
	"path/filepath"
	"sync/atomic"
)

// Attributes is a bit set describing a shell item.
type Attributes uint32

const (
	AttrCanCopy      Attributes = 0x00000001
	AttrCanMove      Attributes = 0x00000002
	AttrCanLink      Attributes = 0x00000004
	AttrStorage      Attributes = 0x00000008
	AttrCanRename    Attributes = 0x00000010
	AttrCanDelete    Attributes = 0x00000020
	AttrLink         Attributes = 0x00010000
	AttrReadOnly     Attributes = 0x00040000
	AttrHidden       Attributes = 0x00080000
	AttrStream       Attributes = 0x00400000
	AttrFileSysAnc   Attributes = 0x10000000
	AttrFolder       Attributes = 0x20000000
	AttrFileSystem   Attributes = 0x40000000
	AttrHasSubfolder Attributes = 0x80000000

	// AttrContainer is the "is-container" query mask.
	AttrContainer = AttrFolder
)

// IsContainer reports whether the attributes describe a folder-like item.
func (a Attributes) IsContainer() bool {
	return a&AttrContainer != 0
}

// IDList is an opaque, position-independent identifier for a shell item.
// It is plain data and may cross threads, but must be freed exactly once.
type IDList struct {
	path  string
	attrs Attributes
	freed atomic.Bool
}

func newIDList(path string, attrs Attributes) *IDList {
	live.Add(1)
	return &IDList{path: filepath.Clean(path), attrs: attrs}
}

// SimpleIDList builds an identifier for a path that need not exist, using
// the supplied attributes instead of querying the file system.
func SimpleIDList(path string, attrs Attributes) *IDList {
	return newIDList(path, attrs|AttrFileSystem)
}

// Path returns the file system path the identifier refers to.
func (l *IDList) Path() string {
	return l.path
}

// Attributes returns the attribute snapshot taken when the list was built.
func (l *IDList) Attributes() Attributes {
	return l.attrs
}

// Clone returns an independent copy that must be freed separately.
func (l *IDList) Clone() *IDList {
	if l.freed.Load() {
		violation("IDList: clone after free")
		return nil
	}
	return newIDList(l.path, l.attrs)
}

// Free releases the identifier. Freeing twice is a lifetime violation.
func (l *IDList) Free() {
	if l == nil {
		return
	}
	if !l.freed.CompareAndSwap(false, true) {
		violation("IDList: double free of %q", l.path)
		return
	}
	live.Add(-1)
}
