package native

import (
	"errors"
	"io"
	"os"
	"path/filepath"
)

// EnumFlags selects which children an enumerator yields.
type EnumFlags uint32

const (
	EnumFolders       EnumFlags = 0x00020
	EnumNonFolders    EnumFlags = 0x00040
	EnumIncludeHidden EnumFlags = 0x00080

	EnumAll = EnumFolders | EnumNonFolders | EnumIncludeHidden
)

// Enumerator yields the children of a folder one at a time.
type Enumerator struct {
	object
	dir   string
	flags EnumFlags
	f     *os.File
}

func openEnumerator(dir string, flags EnumFlags) (*Enumerator, Status) {
	f, err := os.Open(dir)
	if err != nil {
		return nil, escalate("BindToEnumerator", StatusFromError(err))
	}
	e := &Enumerator{dir: dir, flags: flags, f: f}
	e.init("Enumerator", e.close)
	return e, StatusOK
}

func (e *Enumerator) close() {
	if e.f != nil {
		_ = e.f.Close()
		e.f = nil
	}
}

// Next returns the next child with a reference count of one, or StatusFalse
// and a nil item once the folder is exhausted.
func (e *Enumerator) Next() (*Item, Status) {
	if st := e.enter(); st.Failed() {
		return nil, st
	}
	if e.f == nil {
		return nil, StatusFalse
	}
	for {
		entries, err := e.f.ReadDir(1)
		if errors.Is(err, io.EOF) || (err == nil && len(entries) == 0) {
			e.close()
			return nil, StatusFalse
		}
		if err != nil {
			e.close()
			return nil, StatusFromError(err)
		}
		entry := entries[0]
		fi, err := entry.Info()
		if err != nil {
			// removed between listing and stat
			continue
		}
		path := filepath.Join(e.dir, entry.Name())
		attrs := attributesOf(entry.Name(), fi)
		if fi.Mode()&os.ModeSymlink != 0 {
			if linked, st := statAttributes(path); st.Succeeded() {
				attrs = linked
			} else {
				attrs |= AttrLink
			}
		}
		if !e.wants(attrs) {
			continue
		}
		return newItem(path, attrs), StatusOK
	}
}

func (e *Enumerator) wants(attrs Attributes) bool {
	if attrs&AttrHidden != 0 && e.flags&EnumIncludeHidden == 0 {
		return false
	}
	if attrs.IsContainer() {
		return e.flags&EnumFolders != 0
	}
	return e.flags&EnumNonFolders != 0
}
