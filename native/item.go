package native

import (
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

// DisplayNameMode selects how an item's name is formatted.
type DisplayNameMode uint32

const (
	DisplayNormal                   DisplayNameMode = 0x00000000
	DisplayParentRelativeParsing    DisplayNameMode = 0x80018001
	DisplayDesktopAbsoluteParsing   DisplayNameMode = 0x80028000
	DisplayParentRelativeEditing    DisplayNameMode = 0x80031001
	DisplayDesktopAbsoluteEditing   DisplayNameMode = 0x8004c000
	DisplayFileSysPath              DisplayNameMode = 0x80058000
	DisplayURL                      DisplayNameMode = 0x80068000
	DisplayParentRelativeAddressBar DisplayNameMode = 0x8007c001
	DisplayParentRelative           DisplayNameMode = 0x80080001
)

// Item is a reference-counted shell item bound to the apartment thread that
// created it.
type Item struct {
	object
	path  string
	attrs Attributes
}

func newItem(path string, attrs Attributes) *Item {
	it := &Item{path: path, attrs: attrs}
	it.init("Item", nil)
	return it
}

// ParseDisplayName resolves a file system path into an item with a
// reference count of one.
func ParseDisplayName(path string) (*Item, Status) {
	if !InApartment() {
		return nil, escalate("ParseDisplayName", StatusNotInitialized)
	}
	if path == "" {
		return nil, escalate("ParseDisplayName", StatusInvalidArg)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, escalate("ParseDisplayName", StatusFromError(err))
	}
	attrs, st := statAttributes(abs)
	if st.Failed() {
		return nil, escalate("ParseDisplayName", st)
	}
	return newItem(abs, attrs), StatusOK
}

// CreateItemFromIDList creates an item from an identifier without touching
// the file system. The identifier is not consumed.
func CreateItemFromIDList(idl *IDList) (*Item, Status) {
	if !InApartment() {
		return nil, escalate("CreateItemFromIDList", StatusNotInitialized)
	}
	if idl == nil {
		return nil, escalate("CreateItemFromIDList", StatusPointer)
	}
	if idl.freed.Load() {
		violation("CreateItemFromIDList: identifier already freed")
		return nil, StatusPointer
	}
	return newItem(idl.path, idl.attrs), StatusOK
}

func statAttributes(path string) (Attributes, Status) {
	lfi, err := os.Lstat(path)
	if err != nil {
		return 0, StatusFromError(err)
	}
	fi := lfi
	var attrs Attributes
	if lfi.Mode()&fs.ModeSymlink != 0 {
		attrs |= AttrLink
		if target, err := os.Stat(path); err == nil {
			fi = target
		}
	}
	return attrs | attributesOf(filepath.Base(path), fi), StatusOK
}

func attributesOf(name string, fi fs.FileInfo) Attributes {
	attrs := AttrFileSystem | AttrCanCopy | AttrCanMove | AttrCanLink | AttrCanRename | AttrCanDelete
	if fi.IsDir() {
		attrs |= AttrFolder | AttrFileSysAnc | AttrStorage
	} else {
		attrs |= AttrStream
	}
	if fi.Mode().Perm()&0o200 == 0 {
		attrs |= AttrReadOnly
	}
	if strings.HasPrefix(name, ".") && name != "." && name != ".." {
		attrs |= AttrHidden
	}
	return attrs
}

// Attributes returns the subset of mask that applies to the item.
func (i *Item) Attributes(mask Attributes) (Attributes, Status) {
	if st := i.enter(); st.Failed() {
		return 0, st
	}
	return i.attrs & mask, StatusOK
}

// DisplayName formats the item's name according to mode.
func (i *Item) DisplayName(mode DisplayNameMode) (string, Status) {
	if st := i.enter(); st.Failed() {
		return "", st
	}
	switch mode {
	case DisplayNormal, DisplayParentRelativeParsing, DisplayParentRelativeEditing,
		DisplayParentRelativeAddressBar, DisplayParentRelative:
		return baseName(i.path), StatusOK
	case DisplayDesktopAbsoluteParsing, DisplayDesktopAbsoluteEditing, DisplayFileSysPath:
		return i.path, StatusOK
	case DisplayURL:
		p := filepath.ToSlash(i.path)
		if !strings.HasPrefix(p, "/") {
			p = "/" + p
		}
		return (&url.URL{Scheme: "file", Path: p}).String(), StatusOK
	default:
		return "", escalate("DisplayName", StatusInvalidArg)
	}
}

func baseName(path string) string {
	if isRoot(path) {
		return path
	}
	return filepath.Base(path)
}

func isRoot(path string) bool {
	return filepath.Dir(path) == path
}

// Parent returns the containing folder of the item.
func (i *Item) Parent() (*Item, Status) {
	if st := i.enter(); st.Failed() {
		return nil, st
	}
	if isRoot(i.path) {
		return nil, StatusFalse
	}
	dir := filepath.Dir(i.path)
	attrs, st := statAttributes(dir)
	if st.IsNotFound() {
		attrs, st = AttrFileSystem|AttrFolder, StatusOK
	}
	if st.Failed() {
		return nil, escalate("Parent", st)
	}
	return newItem(dir, attrs), StatusOK
}

// IDList returns a new identifier for the item that the caller must free.
func (i *Item) IDList() (*IDList, Status) {
	if st := i.enter(); st.Failed() {
		return nil, st
	}
	return newIDList(i.path, i.attrs), StatusOK
}

// BindToEnumerator opens a child enumerator on a folder item.
func (i *Item) BindToEnumerator(flags EnumFlags) (*Enumerator, Status) {
	if st := i.enter(); st.Failed() {
		return nil, st
	}
	if !i.attrs.IsContainer() {
		return nil, escalate("BindToEnumerator", StatusNoInterface)
	}
	return openEnumerator(i.path, flags)
}

// ContextMenu creates a context menu handler for the item.
func (i *Item) ContextMenu() (*ContextMenu, Status) {
	if st := i.enter(); st.Failed() {
		return nil, st
	}
	m := &ContextMenu{target: i.path, folder: i.attrs.IsContainer()}
	m.init("ContextMenu", nil)
	return m, StatusOK
}
