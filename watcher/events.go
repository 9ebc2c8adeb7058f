package watcher

import (
	"github.com/brettbedarf/shellstore/native"
	"github.com/brettbedarf/shellstore/storage"
)

// Kind is the typed meaning of a change notification. The zero Kind marks
// notifications with no typed mapping; they only reach OnAny handlers.
type Kind int

const (
	Unmapped Kind = iota
	FileRenamed
	FolderRenamed
	FileCreated
	FolderCreated
	FileDeleted
	FolderDeleted
	MediaInserted
	MediaRemoved
	DriveRemoved
	DriveAdded
	DriveAddedInteractive
	NetShareAdded
	NetShareRemoved
	AttributesChanged
	FolderUpdated
	FileUpdated
	ServerDisconnected
	ImageUpdated
	FreeSpaceChanged
	AssociationChanged
	ExtendedEventOccurred
	InterruptOccurred
)

var kindNames = [...]string{
	Unmapped:              "Unmapped",
	FileRenamed:           "FileRenamed",
	FolderRenamed:         "FolderRenamed",
	FileCreated:           "FileCreated",
	FolderCreated:         "FolderCreated",
	FileDeleted:           "FileDeleted",
	FolderDeleted:         "FolderDeleted",
	MediaInserted:         "MediaInserted",
	MediaRemoved:          "MediaRemoved",
	DriveRemoved:          "DriveRemoved",
	DriveAdded:            "DriveAdded",
	DriveAddedInteractive: "DriveAddedInteractive",
	NetShareAdded:         "NetShareAdded",
	NetShareRemoved:       "NetShareRemoved",
	AttributesChanged:     "AttributesChanged",
	FolderUpdated:         "FolderUpdated",
	FileUpdated:           "FileUpdated",
	ServerDisconnected:    "ServerDisconnected",
	ImageUpdated:          "ImageUpdated",
	FreeSpaceChanged:      "FreeSpaceChanged",
	AssociationChanged:    "AssociationChanged",
	ExtendedEventOccurred: "ExtendedEventOccurred",
	InterruptOccurred:     "InterruptOccurred",
}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return "Unknown"
	}
	return kindNames[k]
}

// Kinds lists every typed kind.
func Kinds() []Kind {
	kinds := make([]Kind, 0, len(kindNames)-1)
	for k := FileRenamed; k <= InterruptOccurred; k++ {
		kinds = append(kinds, k)
	}
	return kinds
}

// direct maps kinds whose meaning does not depend on the item's variant.
var direct = map[native.NotifyKind]Kind{
	native.NotifyMediaInserted:    MediaInserted,
	native.NotifyMediaRemoved:     MediaRemoved,
	native.NotifyDriveRemoved:     DriveRemoved,
	native.NotifyDriveAdd:         DriveAdded,
	native.NotifyDriveAddGUI:      DriveAddedInteractive,
	native.NotifyNetShare:         NetShareAdded,
	native.NotifyNetUnshare:       NetShareRemoved,
	native.NotifyAttributes:       AttributesChanged,
	native.NotifyUpdateDir:        FolderUpdated,
	native.NotifyUpdateItem:       FileUpdated,
	native.NotifyServerDisconnect: ServerDisconnected,
	native.NotifyUpdateImage:      ImageUpdated,
	native.NotifyFreeSpace:        FreeSpaceChanged,
	native.NotifyAssocChanged:     AssociationChanged,
	native.NotifyExtendedEvent:    ExtendedEventOccurred,
}

// classify picks the typed kind for a notification. Create, delete and
// rename kinds use the File/Folder variant chosen when the item was decoded.
func classify(kind native.NotifyKind, item, newItem storage.Storable) Kind {
	base := kind &^ native.NotifyInterrupt
	if base == 0 {
		if kind&native.NotifyInterrupt != 0 {
			return InterruptOccurred
		}
		return Unmapped
	}
	subject := item
	if subject == nil {
		subject = newItem
	}
	isFolder := subject != nil && subject.IsFolder()
	pick := func(file, folder Kind) Kind {
		if isFolder {
			return folder
		}
		return file
	}
	switch base {
	case native.NotifyRenameItem, native.NotifyRenameFolder:
		return pick(FileRenamed, FolderRenamed)
	case native.NotifyCreate, native.NotifyMkDir:
		return pick(FileCreated, FolderCreated)
	case native.NotifyDelete, native.NotifyRmDir:
		return pick(FileDeleted, FolderDeleted)
	}
	if k, ok := direct[base]; ok {
		return k
	}
	return Unmapped
}

// Event is one debounced change notification. Item is the affected item
// (the source of a rename) and NewItem is the rename destination. Both are
// borrowed: they are closed once every handler has returned.
type Event struct {
	Kind    Kind
	Native  native.NotifyKind
	Item    storage.Storable
	NewItem storage.Storable
}

// Handler receives events on the watcher's loop thread.
type Handler func(Event)

type decoded struct {
	kind    native.NotifyKind
	item    storage.Storable
	newItem storage.Storable
}

func (d *decoded) close() {
	if d.item != nil {
		d.item.Close()
	}
	if d.newItem != nil {
		d.newItem.Close()
	}
}
