package operations

import (
	"github.com/brettbedarf/shellstore/native"
	"github.com/brettbedarf/shellstore/storage"
)

// Kind identifies an engine event.
type Kind int

const (
	OperationsStarted Kind = iota + 1
	OperationsFinished
	ProgressUpdated
	ItemCopying
	ItemCopied
	ItemMoving
	ItemMoved
	ItemDeleting
	ItemDeleted
	ItemCreating
	ItemCreated
	ItemRenaming
	ItemRenamed
)

var kindNames = map[Kind]string{
	OperationsStarted:  "OperationsStarted",
	OperationsFinished: "OperationsFinished",
	ProgressUpdated:    "ProgressUpdated",
	ItemCopying:        "ItemCopying",
	ItemCopied:         "ItemCopied",
	ItemMoving:         "ItemMoving",
	ItemMoved:          "ItemMoved",
	ItemDeleting:       "ItemDeleting",
	ItemDeleted:        "ItemDeleted",
	ItemCreating:       "ItemCreating",
	ItemCreated:        "ItemCreated",
	ItemRenaming:       "ItemRenaming",
	ItemRenamed:        "ItemRenamed",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "Unknown"
}

// IsPre reports whether k is raised before an item is processed.
func (k Kind) IsPre() bool {
	switch k {
	case ItemCopying, ItemMoving, ItemDeleting, ItemCreating, ItemRenaming:
		return true
	}
	return false
}

// IsPost reports whether k is raised after an item was processed.
func (k Kind) IsPost() bool {
	switch k {
	case ItemCopied, ItemMoved, ItemDeleted, ItemCreated, ItemRenamed:
		return true
	}
	return false
}

// Event is one engine notification. Storables are borrowed and closed once
// every handler has returned; copy what must outlive the call.
type Event struct {
	Kind Kind
	// Item is the source of a copy, move, delete or rename.
	Item storage.Storable
	// Dest is the destination folder of a copy, move or create.
	Dest *storage.Folder
	// Result is the item a post event produced: the copy, the moved or
	// renamed item, the new item, or the recycled item of a delete.
	Result   storage.Storable
	Name     string
	Template string
	Attrs    native.FileAttributes
	Flags    native.TransferFlags
	// Status is the item outcome of post events and the overall outcome of
	// OperationsFinished.
	Status native.Status
	// WorkTotal and WorkDone are cumulative counters of ProgressUpdated.
	WorkTotal uint32
	WorkDone  uint32

	decision native.Status
}

// Skip makes the engine pass over the item of a pre event.
func (e *Event) Skip() {
	if e.decision == native.StatusOK {
		e.decision = native.StatusSkip
	}
}

// Abort stops the transaction before the item of a pre event. Items
// already processed are not rolled back.
func (e *Event) Abort() {
	e.decision = native.StatusUserCancelled
}

func (e *Event) close() {
	for _, s := range []storage.Storable{e.Item, e.Result} {
		if s != nil {
			s.Close()
		}
	}
	if e.Dest != nil {
		e.Dest.Close()
	}
}

// Handler receives engine events synchronously on the apartment thread
// running the transaction.
type Handler func(*Event)

// ItemResult is the plain-data outcome of one processed item.
type ItemResult struct {
	Kind   Kind
	Source string
	Dest   string
	Name   string
	Result string
	Status native.Status
}
