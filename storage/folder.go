package storage

import (
	"iter"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/brettbedarf/shellstore/internal/util"
	"github.com/brettbedarf/shellstore/native"
)

// Filter selects which children Items yields.
type Filter int

const (
	FilterFiles Filter = 1 << iota
	FilterFolders

	FilterAll = FilterFiles | FilterFolders
)

func (f Filter) accepts(s Storable) bool {
	if s.IsFolder() {
		return f&FilterFolders != 0
	}
	return f&FilterFiles != 0
}

// Folder is a container item. It may cache a context menu, which Close
// releases along with the item.
type Folder struct {
	entity
	menu *native.ContextMenu
}

func newFolder(item *native.Item) *Folder {
	return &Folder{entity: entity{handle: Attach(item)}}
}

func (f *Folder) IsFolder() bool { return true }

// Items lazily enumerates the folder's children. Every call starts a new
// enumeration. Yielded storables belong to the caller, who must Close them.
// An enumeration failure ends the sequence early without error.
func (f *Folder) Items(filter Filter) iter.Seq[Storable] {
	return func(yield func(Storable) bool) {
		item := f.handle.Item()
		if item == nil {
			return
		}
		e, st := item.BindToEnumerator(native.EnumAll)
		if st.Failed() {
			logger := util.GetLogger("storage.Folder")
			logger.Debug().Str("folder", f.ID()).Str("status", st.String()).Msg("enumeration failed")
			return
		}
		defer e.Release()
		for {
			child, st := e.Next()
			if st != native.StatusOK {
				return
			}
			s := FromItem(child)
			if !filter.accepts(s) {
				s.Close()
				continue
			}
			if !yield(s) {
				return
			}
		}
	}
}

// Match is Items restricted to children whose name matches a doublestar
// pattern. Only direct children are visited and each is matched by its
// parent-relative name, so "**/x" matches the same names as "x". An invalid
// pattern yields nothing.
func (f *Folder) Match(pattern string, filter Filter) iter.Seq[Storable] {
	return func(yield func(Storable) bool) {
		if !doublestar.ValidatePattern(pattern) {
			return
		}
		for s := range f.Items(filter) {
			name, _ := s.DisplayName(native.DisplayParentRelativeParsing)
			if ok, _ := doublestar.Match(pattern, name); !ok {
				s.Close()
				continue
			}
			if !yield(s) {
				return
			}
		}
	}
}

// ContextMenu returns the folder's context menu, creating it on first use.
// The folder keeps ownership.
func (f *Folder) ContextMenu() (*native.ContextMenu, native.Status) {
	if f.menu != nil {
		return f.menu, native.StatusOK
	}
	item := f.handle.Item()
	if item == nil {
		return nil, native.StatusPointer
	}
	menu, st := item.ContextMenu()
	if st.Failed() {
		return nil, st
	}
	f.menu = menu
	return menu, native.StatusOK
}

// Close releases the cached context menu and then the folder's item.
func (f *Folder) Close() {
	if f.menu != nil {
		f.menu.Release()
		f.menu = nil
	}
	f.entity.Close()
}
