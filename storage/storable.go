// Package storage adapts native shell items into files and folders.
//
// Storables wrap apartment-bound native items: create and use them on the
// same apartment thread (see internal/apartment) and Close them there.
package storage

import (
	"github.com/brettbedarf/shellstore/internal/util"
	"github.com/brettbedarf/shellstore/native"
)

// Storable is a file or folder backed by a native item.
type Storable interface {
	// ID is the canonical file system path. Empty if it cannot be derived.
	ID() string
	// Name is the display name shown to users.
	Name() string
	Handle() *Handle
	DisplayName(mode native.DisplayNameMode) (string, native.Status)
	Parent() (*Folder, bool)
	IsFolder() bool
	Close()
}

type entity struct {
	handle *Handle
	id     string
}

func (e *entity) Handle() *Handle {
	return e.handle
}

func (e *entity) ID() string {
	if e.id == "" {
		if id, st := e.DisplayName(native.DisplayFileSysPath); st.Succeeded() {
			e.id = id
		}
	}
	return e.id
}

func (e *entity) Name() string {
	name, _ := e.DisplayName(native.DisplayNormal)
	return name
}

func (e *entity) DisplayName(mode native.DisplayNameMode) (string, native.Status) {
	item := e.handle.Item()
	if item == nil {
		return "", native.StatusPointer
	}
	return item.DisplayName(mode)
}

func (e *entity) Parent() (*Folder, bool) {
	item := e.handle.Item()
	if item == nil {
		return nil, false
	}
	parent, st := item.Parent()
	if st != native.StatusOK {
		return nil, false
	}
	return newFolder(parent), true
}

func (e *entity) Close() {
	e.handle.Close()
}

// TryParse resolves path into a File or Folder. Missing or unresolvable
// paths return false.
func TryParse(path string) (Storable, bool) {
	item, st := native.ParseDisplayName(path)
	if st.Failed() {
		logger := util.GetLogger("storage.TryParse")
		logger.Debug().Str("path", path).Str("status", st.String()).Msg("not resolved")
		return nil, false
	}
	return FromItem(item), true
}

// FromItem takes ownership of item and wraps it. Container items always
// become a Folder and everything else a File; the choice is made once.
func FromItem(item *native.Item) Storable {
	if item == nil {
		return nil
	}
	attrs, st := item.Attributes(native.AttrContainer)
	if st.Succeeded() && attrs.IsContainer() {
		return newFolder(item)
	}
	return newFile(item)
}

// FromIDList wraps a new item for idl. The identifier is not consumed.
func FromIDList(idl *native.IDList) Storable {
	if idl == nil {
		return nil
	}
	item, st := native.CreateItemFromIDList(idl)
	if st.Failed() {
		return nil
	}
	return FromItem(item)
}

// ParseSimple wraps path without requiring it to exist, classifying it as
// a folder or file as told.
func ParseSimple(path string, folder bool) (Storable, bool) {
	var attrs native.Attributes
	if folder {
		attrs = native.AttrFolder
	}
	idl := native.SimpleIDList(path, attrs)
	defer idl.Free()
	s := FromIDList(idl)
	return s, s != nil
}
